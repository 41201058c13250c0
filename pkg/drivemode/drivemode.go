// Package drivemode runs the fixed-tick control loop: command source, solver, actuators.
package drivemode

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/actuator"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/joystick"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/kinematics"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/telemetry"
)

const DefaultTick = 20 * time.Millisecond

// CommandSource supplies the mode and command for each tick.
type CommandSource interface {
	Command() (kinematics.Mode, kinematics.Command)
}

// Tick is the result of one pass round the loop.
type Tick struct {
	N       int
	Time    time.Time
	Command kinematics.Command
	Outputs kinematics.Outputs
	Targets kinematics.Targets
	Err     error
}

type Option func(*DriveMode)

func WithClock(c clock.Clock) Option {
	return func(m *DriveMode) { m.clock = c }
}

func WithTick(d time.Duration) Option {
	return func(m *DriveMode) { m.tick = d }
}

func WithScale(s kinematics.Scale) Option {
	return func(m *DriveMode) { m.scale = s }
}

func WithLogger(l golog.Logger) Option {
	return func(m *DriveMode) { m.logger = l }
}

func WithTelemetry(w *telemetry.Writer) Option {
	return func(m *DriveMode) { m.telemetry = w }
}

// WithObserver registers a function called, on the loop goroutine, after every tick.
func WithObserver(f func(Tick)) Option {
	return func(m *DriveMode) { m.observers = append(m.observers, f) }
}

type DriveMode struct {
	solver *kinematics.Solver
	source CommandSource
	sink   actuator.Sink

	clock     clock.Clock
	tick      time.Duration
	scale     kinematics.Scale
	logger    golog.Logger
	telemetry *telemetry.Writer
	observers []func(Tick)

	output   *kinematics.Output
	start    time.Time
	n        int
	lastMode kinematics.Mode

	cancel context.CancelFunc
	stopWG sync.WaitGroup
}

func New(solver *kinematics.Solver, source CommandSource, sink actuator.Sink, opts ...Option) *DriveMode {
	m := &DriveMode{
		solver: solver,
		source: source,
		sink:   sink,
		clock:  clock.New(),
		tick:   DefaultTick,
		scale:  kinematics.RadToDeg,
		logger: golog.Global(),
	}
	for _, o := range opts {
		o(m)
	}
	m.output = kinematics.NewOutput(m.scale, actuator.ActuationFor(sink), m.tick)
	m.start = m.clock.Now()
	m.lastMode = kinematics.Stop
	return m
}

func (m *DriveMode) Name() string {
	return "Drive mode"
}

func (m *DriveMode) Start(ctx context.Context) {
	m.stopWG.Add(1)
	var loopCtx context.Context
	loopCtx, m.cancel = context.WithCancel(ctx)
	go m.loop(loopCtx, m.clock.Ticker(m.tick))
}

// Stop ends the loop and zeroes the wheel velocities.
func (m *DriveMode) Stop() {
	if m.cancel == nil {
		if err := actuator.StopAll(m.sink); err != nil {
			m.logger.Errorw("Failed to stop wheels", "error", err)
		}
		return
	}
	m.cancel()
	m.stopWG.Wait()
}

// OnJoystickEvent passes events through to the source if it takes them.
func (m *DriveMode) OnJoystickEvent(event *joystick.Event) {
	if j, ok := m.source.(interface{ OnJoystickEvent(*joystick.Event) }); ok {
		j.OnJoystickEvent(event)
	}
}

func (m *DriveMode) loop(ctx context.Context, ticker *clock.Ticker) {
	defer m.stopWG.Done()
	defer func() {
		if err := actuator.StopAll(m.sink); err != nil {
			m.logger.Errorw("Failed to stop wheels", "error", err)
		}
	}()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Step()
		}
	}
}

// Step runs one tick.  The loop calls it; offline replay calls it directly.
func (m *DriveMode) Step() Tick {
	mode, cmd := m.source.Command()

	var current kinematics.PerWheel[float64]
	if !mode.IsDriving() {
		raw, err := m.sink.SteerPositions()
		if err != nil {
			m.logger.Warnw("Failed to read steering angles, holding last targets", "error", err)
			current = m.solver.Last().Angles
		} else {
			current = m.output.FromActuator(raw)
		}
	}

	out := m.solver.Compute(mode, cmd, current)
	targets := m.output.Targets(out)
	err := actuator.Apply(m.sink, targets)
	if err != nil {
		m.logger.Errorw("Failed to apply targets", "error", err)
	}

	if out.Mode != m.lastMode {
		m.logger.Infow("Mode", "from", m.lastMode, "to", out.Mode)
		m.lastMode = out.Mode
	}
	m.logger.Debugw("Tick",
		"mode", out.Mode,
		"command", cmd,
		"wheel", targets.Wheel,
		"steer", targets.Steer)

	now := m.clock.Now()
	t := Tick{N: m.n, Time: now, Command: cmd, Outputs: out, Targets: targets, Err: err}
	if terr := m.telemetry.Record(telemetry.NewSample(m.n, now.Sub(m.start).Seconds(), out.Mode, cmd, targets, err)); terr != nil {
		m.logger.Warnw("Failed to record telemetry", "error", terr)
	}
	m.n++
	for _, f := range m.observers {
		f(t)
	}
	return t
}
