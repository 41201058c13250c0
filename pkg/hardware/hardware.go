// Package hardware owns the wheel motors and steering servos and keeps them in step with the
// latest targets from a background loop.
package hardware

import (
	"context"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/actuator"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/kinematics"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/pca9685"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/picobldc"
)

const batteryPollInterval = 10 * time.Second

type WheelDrive interface {
	SetWheelVelocity(w kinematics.Wheel, velocity float64) error
	BattVolts() (float64, error)
	Close() error
}

type SteeringServos interface {
	SetSteerPosition(w kinematics.Wheel, angle float64) error
}

// Devices is one opened set of hardware.  Close releases it.
type Devices struct {
	Drive    WheelDrive
	Steering SteeringServos
	Close    func() error
}

// Opener opens the devices.  It is called again after any device failure.
type Opener func() (*Devices, error)

// Hardware is an actuator.Sink.  Setters only record the desired value; the loop started by
// Start writes whatever has changed every period, re-opening the devices if a write fails.
type Hardware struct {
	logger golog.Logger
	open   Opener
	period time.Duration

	lock         sync.Mutex
	wheel        kinematics.PerWheel[float64]
	steer        kinematics.PerWheel[float64]
	steerWritten kinematics.PerWheel[float64]
	batteryVolts float64
	cancelLoop   context.CancelFunc
	loopDone     sync.WaitGroup
	failureCount int
}

var _ actuator.Sink = (*Hardware)(nil)

func New(open Opener, period time.Duration, logger golog.Logger) *Hardware {
	return &Hardware{
		logger: logger,
		open:   open,
		period: period,
	}
}

// Start runs the device loop until ctx is cancelled or Stop is called.  It returns once the
// first attempt to open the devices has finished.
func (h *Hardware) Start(ctx context.Context) {
	var loopCtx context.Context
	loopCtx, h.cancelLoop = context.WithCancel(ctx)
	var initDone sync.WaitGroup
	initDone.Add(1)
	h.loopDone.Add(1)
	go h.loop(loopCtx, &initDone)
	initDone.Wait()
}

// Stop zeroes the wheels and stops the loop.
func (h *Hardware) Stop() {
	_ = actuator.StopAll(h)
	if h.cancelLoop != nil {
		h.cancelLoop()
	}
	h.loopDone.Wait()
}

func (h *Hardware) SetWheelVelocity(w kinematics.Wheel, velocity float64) error {
	h.lock.Lock()
	h.wheel[w] = velocity
	h.lock.Unlock()
	return nil
}

func (h *Hardware) SetSteerPosition(w kinematics.Wheel, angle float64) error {
	h.lock.Lock()
	h.steer[w] = angle
	h.lock.Unlock()
	return nil
}

// SteerPositions returns the angles most recently written to the servos.
func (h *Hardware) SteerPositions() (kinematics.PerWheel[float64], error) {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.steerWritten, nil
}

// BatteryVolts returns the last battery reading, 0 before the first.
func (h *Hardware) BatteryVolts() float64 {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.batteryVolts
}

func (h *Hardware) Failures() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.failureCount
}

func (h *Hardware) loop(ctx context.Context, initDone *sync.WaitGroup) {
	defer h.loopDone.Done()
	h.logger.Info("Hardware loop started")
	for {
		err := h.loopUntilSomethingBadHappens(ctx, initDone)
		initDone = nil
		if ctx.Err() != nil {
			return
		}
		h.lock.Lock()
		h.failureCount++
		h.lock.Unlock()
		h.logger.Errorw("===== !!! WARNING !!! HARDWARE FAILURE; TRYING TO RECOVER =====", "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(h.period):
		}
	}
}

func (h *Hardware) loopUntilSomethingBadHappens(ctx context.Context, initDone *sync.WaitGroup) error {
	defer func() {
		if initDone != nil {
			initDone.Done()
		}
	}()

	devs, err := h.open()
	if err != nil {
		return errors.Wrap(err, "opening devices")
	}
	defer func() {
		if err := devs.Close(); err != nil {
			h.logger.Warnw("Failed to close devices", "error", err)
		}
	}()

	if initDone != nil {
		initDone.Done()
		initDone = nil
	}

	ticker := time.NewTicker(h.period)
	defer ticker.Stop()

	// Everything is written on the first pass after (re)opening.
	var lastWheel, lastSteer kinematics.PerWheel[float64]
	first := true
	var lastBatteryPoll time.Time

	for {
		h.lock.Lock()
		wheel, steer := h.wheel, h.steer
		h.lock.Unlock()

		for _, w := range kinematics.AllWheels {
			if first || wheel[w] != lastWheel[w] {
				if err := devs.Drive.SetWheelVelocity(w, wheel[w]); err != nil {
					return errors.Wrapf(err, "setting %v wheel velocity", w)
				}
				lastWheel[w] = wheel[w]
			}
			if first || steer[w] != lastSteer[w] {
				if err := devs.Steering.SetSteerPosition(w, steer[w]); err != nil {
					return errors.Wrapf(err, "setting %v steering", w)
				}
				lastSteer[w] = steer[w]
			}
		}
		h.lock.Lock()
		h.steerWritten = lastSteer
		h.lock.Unlock()
		first = false

		if time.Since(lastBatteryPoll) > batteryPollInterval {
			if v, err := devs.Drive.BattVolts(); err != nil {
				h.logger.Warnw("Failed to read battery voltage", "error", err)
			} else {
				h.lock.Lock()
				h.batteryVolts = v
				h.lock.Unlock()
				h.logger.Debugw("Battery", "volts", v)
			}
			lastBatteryPoll = time.Now()
		}

		select {
		case <-ctx.Done():
			// Leave the robot stopped.
			for _, w := range kinematics.AllWheels {
				if err := devs.Drive.SetWheelVelocity(w, 0); err != nil {
					h.logger.Warnw("Failed to stop wheel", "wheel", w, "error", err)
				}
			}
			return nil
		case <-ticker.C:
		}
	}
}

// I2CConfig describes the I2C-attached drive and steering boards.
type I2CConfig struct {
	Bus           string                                   `yaml:"i2c_bus"`
	MaxWheelSpeed float64                                  `yaml:"max_wheel_speed"`
	ServoTravel   float64                                  `yaml:"servo_travel"`
	Servos        kinematics.PerWheel[pca9685.ServoConfig] `yaml:"servos"`
	Watchdog      time.Duration                            `yaml:"watchdog"`
}

// I2COpener opens the Pico-BLDC and PCA9685 boards.
func I2COpener(cfg I2CConfig, logger golog.Logger) Opener {
	return func() (*Devices, error) {
		pico, err := picobldc.New(cfg.Bus, cfg.MaxWheelSpeed, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Watchdog > 0 {
			if err := pico.SetWatchdog(cfg.Watchdog); err != nil {
				_ = pico.Close()
				return nil, err
			}
		}
		board, err := pca9685.Open(cfg.Bus)
		if err != nil {
			_ = pico.Close()
			return nil, err
		}
		if err := board.Configure(); err != nil {
			_ = pico.Close()
			_ = board.Close()
			return nil, errors.Wrap(err, "configuring PCA9685")
		}
		steering, err := pca9685.NewSteering(board, cfg.Servos, cfg.ServoTravel, logger)
		if err != nil {
			_ = pico.Close()
			_ = board.Close()
			return nil, err
		}
		return &Devices{
			Drive:    pico,
			Steering: steering,
			Close: func() error {
				return multierr.Combine(pico.Close(), board.Close())
			},
		}, nil
	}
}
