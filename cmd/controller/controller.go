package main

import (
	"context"
	"math"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/edaniels/golog"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/config"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/drivemode"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/hardware"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/joystick"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/kinematics"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/screen"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/sound"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/telemetry"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/teleop"
)

var CLI struct {
	Config string `help:"YAML config file." type:"path" env:"STEER_CONFIG"`
	Dummy  bool   `help:"Log actuator writes instead of driving hardware." env:"IGNORE_MISSING_HARDWARE"`
	Script string `help:"Play a command script instead of reading the joystick." type:"existingfile"`
	Debug  bool   `help:"Log every tick."`
}

type JoystickUser interface {
	OnJoystickEvent(event *joystick.Event)
}

func main() {
	kong.Parse(&CLI, kong.Description("Four-wheel-steer drive controller."))

	logger := golog.NewDevelopmentLogger("controller")
	if CLI.Debug {
		logger = golog.NewDebugLogger("controller")
	}
	logger.Infow("---- Steer controller ----", "GOMAXPROCS", runtime.GOMAXPROCS(0))

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		logger.Fatalw("Bad config", "error", err)
	}
	if CLI.Dummy {
		cfg.Sink.Kind = config.SinkDummy
	}
	if path, err := cfg.WriteInUse(CLI.Config); err != nil {
		logger.Warnw("Failed to record config in use", "error", err)
	} else {
		logger.Infow("Using config", "path", path)
	}

	// Our global context, we cancel it to trigger shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	registerSignalHandlers(cancel, logger)

	if err := run(ctx, cancel, cfg, logger); err != nil {
		logger.Errorw("Controller failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, logger golog.Logger) error {
	sink, stopSink, err := cfg.OpenSink(ctx, logger)
	if err != nil {
		return err
	}
	defer func() {
		logger.Info("Zeroing motors for shut down")
		if err := stopSink(); err != nil {
			logger.Errorw("Failed to stop actuators", "error", err)
		}
	}()

	trace, err := telemetry.Create(cfg.Telemetry.CSVPath)
	if err != nil {
		return err
	}
	defer trace.Close()

	scale, err := cfg.Scale()
	if err != nil {
		return err
	}

	var scr screen.Screen
	go scr.LoopUpdatingScreen(ctx, cfg.Screen.Device, logger)

	player := sound.NewPlayer(cfg.Sound.Dir, logger)
	defer player.Close()
	player.ModeChanged(kinematics.Stop, cfg.Mode)

	var source drivemode.CommandSource
	var playback *teleop.Playback
	if CLI.Script != "" {
		script, err := teleop.LoadScript(CLI.Script)
		if err != nil {
			return err
		}
		playback = teleop.NewPlayback(script, cfg.Tick)
		source = playback
	} else {
		js := teleop.NewJoystickSource(cfg.Mode, cfg.Limits, logger)
		js.OnModeChange(player.ModeChanged)
		source = js
	}

	hw, _ := sink.(*hardware.Hardware)
	drive := drivemode.New(kinematics.NewSolver(cfg.Geometry), source, sink,
		drivemode.WithTick(cfg.Tick),
		drivemode.WithScale(scale),
		drivemode.WithLogger(logger),
		drivemode.WithTelemetry(trace),
		drivemode.WithObserver(func(t drivemode.Tick) {
			st := screen.State{
				Mode:   t.Outputs.Mode,
				Angles: t.Outputs.Angles.Map(func(a float64) float64 { return a * 180 / math.Pi }),
				Speeds: t.Outputs.Speeds,
				Fault:  t.Err != nil,
			}
			if hw != nil {
				st.BatteryVolts = hw.BatteryVolts()
			}
			scr.Update(st)
		}),
	)
	logger.Infof("----- %s -----", drive.Name())
	drive.Start(ctx)
	defer drive.Stop()

	if playback != nil {
		return waitForScript(ctx, playback, cfg.Tick)
	}

	joystickEvents := initJoystick(ctx, cancel, cfg.Joystick.Device, logger)
	watchdog := time.NewTicker(5 * time.Second)
	defer watchdog.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Context done, stopping drive mode and shutting down")
			return nil
		case event, ok := <-joystickEvents:
			if !ok {
				logger.Warn("Joystick events channel closed!")
				return nil
			}
			deliver(drive, event)
		case <-watchdog.C:
			logger.Debug("Main loop still running")
		}
	}
}

func deliver(ju JoystickUser, event *joystick.Event) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ju.OnJoystickEvent(event)
	}()
	timeout := time.NewTimer(1 * time.Second)
	select {
	case <-done:
		timeout.Stop()
	case <-timeout.C:
		// Sources only record the event; if they block this long, they've probably deadlocked.
		panic("Deadlock? Drive mode blocked OnJoystickEvent for >1s")
	}
}

func waitForScript(ctx context.Context, playback *teleop.Playback, tick time.Duration) error {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for !playback.Done() {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

func initJoystick(ctx context.Context, cancel context.CancelFunc, device string, logger golog.Logger) chan *joystick.Event {
	joystickEvents := make(chan *joystick.Event, 1)
	firstLog := true
	for ctx.Err() == nil {
		j, err := joystick.NewJoystick(device)
		if err != nil {
			if firstLog {
				logger.Warnw("Waiting for joystick", "device", device, "error", err)
				firstLog = false
			}
			time.Sleep(1 * time.Second)
			continue
		}

		logger.Infow("Opened joystick", "device", device)
		go func() {
			defer cancel()
			err := loopReadingJoystickEvents(ctx, j, joystickEvents, logger)
			logger.Errorw("Joystick failed", "error", err)
		}()
		break
	}
	return joystickEvents
}

func registerSignalHandlers(cancelFunc context.CancelFunc, logger golog.Logger) {
	// Hook Ctrl-C to cause shut down.
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		s := <-signals
		logger.Infow("Signal", "signal", s)
		cancelFunc()
		time.Sleep(2 * time.Second)
		os.Exit(0)
	}()
}

func loopReadingJoystickEvents(ctx context.Context, j *joystick.Joystick, events chan *joystick.Event, logger golog.Logger) error {
	defer close(events)
	defer j.Close()
	for ctx.Err() == nil {
		event, err := j.ReadEvent()
		if err != nil {
			return err
		}
		logger.Debugw("Joy", "event", event)
		select {
		case events <- event:
		case <-ctx.Done():
		}
	}
	return ctx.Err()
}
