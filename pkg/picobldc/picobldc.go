// Package picobldc drives the four wheel motors through the Pico-BLDC board.
package picobldc

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"golang.org/x/exp/io/i2c"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/kinematics"
)

const (
	PicoAddr = 0x42

	// Largest register value we send; the board saturates above this.
	MotorFullRange = 0x5fff
)

type Register byte

const (
	RegCtrl Register = iota
	RegStatus
	RegWatchdogTimeout
	RegFaultCount

	RegMot0V
	RegMot1V
	RegMot2V
	RegMot3V

	RegMot0Calib
	RegMot1Calib
	RegMot2Calib
	RegMot3Calib

	RegBattV // LSB=4mV
	RegCurrent
	RegPower

	RegTemperature // LSB = 0.01C
)

const (
	BattVLSB       = 0.004
	CurrentLSB     = 0.0001831054688
	PowerLSB       = CurrentLSB * 20
	TemperatureLSB = 0.01
)

const (
	RegCtrlEnableI2CControl uint16 = 1 << iota
	RegCtrlRun
	RegCtrlDoCalib
	RegCtrlReset
	RegCtrlWatchdogEnable
)

type StatusFlag uint16

const (
	RegStatusFault StatusFlag = 1 << iota
	RegStatusCalibDone
	RegStatusWatchdogExpired
)

// Motor wiring: which velocity register drives which wheel.
var motorRegs = kinematics.PerWheel[Register]{
	kinematics.FrontLeft:  RegMot2V,
	kinematics.FrontRight: RegMot1V,
	kinematics.RearLeft:   RegMot3V,
	kinematics.RearRight:  RegMot0V,
}

// Right-hand motors are mounted mirrored.
var motorDirection = kinematics.PerWheel[float64]{1, -1, 1, -1}

var ErrNotReady = errors.New("Pico-BLDC not ready")

type device interface {
	Write(buf []byte) error
	ReadReg(reg byte, buf []byte) error
	Close() error
}

// PicoBLDC converts wheel velocities (actuator units per second) into motor register values,
// MaxWheelSpeed mapping to MotorFullRange.
type PicoBLDC struct {
	logger        golog.Logger
	maxWheelSpeed float64

	lock            sync.Mutex
	dev             device
	open            func() (device, error)
	lastConfigWord  uint16
	lastConfigTime  time.Time
	watchdogEnabled bool
}

// New opens the board on the given I2C bus device file.
func New(busDevice string, maxWheelSpeed float64, logger golog.Logger) (*PicoBLDC, error) {
	open := func() (device, error) {
		return i2c.Open(&i2c.Devfs{Dev: busDevice}, PicoAddr)
	}
	return newWithDevice(open, maxWheelSpeed, logger)
}

func newWithDevice(open func() (device, error), maxWheelSpeed float64, logger golog.Logger) (*PicoBLDC, error) {
	if !(maxWheelSpeed > 0) {
		return nil, errors.Errorf("picobldc: max wheel speed must be positive, got %v", maxWheelSpeed)
	}
	dev, err := open()
	if err != nil {
		return nil, errors.Wrap(err, "opening Pico-BLDC")
	}
	return &PicoBLDC{
		logger:        logger,
		maxWheelSpeed: maxWheelSpeed,
		dev:           dev,
		open:          open,
	}, nil
}

// MotorValue maps a wheel velocity onto the signed register range.
func (p *PicoBLDC) MotorValue(w kinematics.Wheel, velocity float64) int16 {
	v := velocity / p.maxWheelSpeed * MotorFullRange * motorDirection[w]
	if v >= MotorFullRange {
		return MotorFullRange
	}
	if v <= -MotorFullRange {
		return -MotorFullRange
	}
	return int16(math.Round(v))
}

func (p *PicoBLDC) SetWheelVelocity(w kinematics.Wheel, velocity float64) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if err := p.maybeConfigure(false, true); err != nil {
		return err
	}
	return p.writeReg(motorRegs[w], uint16(p.MotorValue(w, velocity)))
}

func (p *PicoBLDC) SetWatchdog(timeout time.Duration) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if timeout == 0 {
		// Disable.
		p.watchdogEnabled = false
		return p.maybeConfigure(false, false)
	}

	ms := timeout.Milliseconds()
	if ms > math.MaxUint16 {
		ms = math.MaxUint16
	}
	err := p.writeReg(RegWatchdogTimeout, uint16(ms))
	if err != nil {
		return err
	}

	p.watchdogEnabled = true
	return p.maybeConfigure(false, false)
}

// Reset zeroes the motor speeds.
func (p *PicoBLDC) Reset() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.maybeConfigure(true, false)
}

func (p *PicoBLDC) Close() error {
	_ = p.Reset()
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.dev.Close()
}

func (p *PicoBLDC) writeWithRetries(data []byte) error {
	var err error
	for tries := 0; tries < 20; tries++ {
		err = p.dev.Write(data)
		if err == nil {
			if tries > 0 {
				p.logger.Info("Successfully programmed Pico-BLDC after retries")
			}
			return nil
		}
		p.logger.Warnw("Failed to write to Pico-BLDC", "error", err)
		time.Sleep(1 * time.Millisecond)
		_ = p.dev.Close()
		dev, openErr := p.open()
		if openErr != nil {
			continue
		}
		p.dev = dev
	}
	return errors.Wrap(err, "writing to Pico-BLDC")
}

// maybeConfigure must be called with the lock held.
func (p *PicoBLDC) maybeConfigure(resetMotorSpeeds bool, enableMotors bool) error {
	// Figure out if the config word has changed.
	var configWord uint16 = RegCtrlEnableI2CControl
	if resetMotorSpeeds {
		configWord |= RegCtrlReset
	}
	if enableMotors {
		configWord |= RegCtrlRun
	}
	if p.watchdogEnabled {
		configWord |= RegCtrlWatchdogEnable
	}

	if configWord == p.lastConfigWord && time.Since(p.lastConfigTime) < 100*time.Millisecond {
		// Skip writing config if we've done it recently.
		return nil
	}

	if p.lastConfigWord == 0 {
		// First time.  An empty calibration register means the board has never been
		// calibrated, and we can't drive it until it has.
		calib, err := p.readReg(RegMot3Calib)
		if err != nil {
			return err
		}
		if calib == 0 {
			return errors.Wrap(ErrNotReady, "motors not calibrated; run calibration with the wheels off the ground")
		}
	}

	if err := p.writeReg(RegCtrl, configWord); err != nil {
		return err
	}
	if err := p.writeReg(RegStatus, uint16(RegStatusCalibDone)); err != nil {
		return err
	}

	p.lastConfigTime = time.Now()
	p.lastConfigWord = configWord & (^RegCtrlReset) /* Reset flag is not persistent */
	return nil
}

func (p *PicoBLDC) BattVolts() (float64, error) {
	return p.readScaled(RegBattV, BattVLSB)
}

func (p *PicoBLDC) CurrentAmps() (float64, error) {
	return p.readScaled(RegCurrent, CurrentLSB)
}

func (p *PicoBLDC) PowerWatts() (float64, error) {
	return p.readScaled(RegPower, PowerLSB)
}

func (p *PicoBLDC) TemperatureC() (float64, error) {
	return p.readScaled(RegTemperature, TemperatureLSB)
}

func (p *PicoBLDC) Status() (StatusFlag, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	raw, err := p.readReg(RegStatus)
	if err != nil {
		return 0, err
	}
	return StatusFlag(raw), nil
}

func (p *PicoBLDC) readScaled(reg Register, lsb float64) (float64, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	raw, err := p.readReg(reg)
	if err != nil {
		return 0, err
	}
	return float64(raw) * lsb, nil
}

func (p *PicoBLDC) writeReg(reg Register, value uint16) error {
	return p.writeWithRetries([]byte{byte(reg), byte(value >> 8), byte(value)})
}

func (p *PicoBLDC) readReg(reg Register) (uint16, error) {
	var buf [2]byte
	err := p.dev.ReadReg(byte(reg), buf[:])
	if err != nil {
		return 0, errors.Wrapf(err, "reading register %d", reg)
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}
