// Package base drives the vehicle from velocity requests in the style of a robot base API:
// linear velocity in mm/s with +Y forward and +X to the right, angular velocity in deg/s.
package base

import (
	"context"
	"math"
	"sync"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/actuator"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/chassis"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/kinematics"
)

// Properties of the base.  TurningRadiusMeters is the tightest radius the current mode can
// steer: 0 for PivotTurn, +Inf for modes that never rotate.
type Properties struct {
	WidthMeters         float64
	WheelCircumferenceM float64
	TurningRadiusMeters float64
}

// ErrPositionOnly is returned by New for sinks whose wheels only take positions.  Those need
// a fixed tick to integrate over; drive them through drivemode.
var ErrPositionOnly = errors.New("base needs wheel velocity control")

type Base struct {
	logger golog.Logger
	sink   actuator.Sink

	lock   sync.Mutex
	solver *kinematics.Solver
	output *kinematics.Output
	mode   kinematics.Mode
	moving bool
}

// New starts in OppositePhase.  Targets go to the sink in degrees.
func New(solver *kinematics.Solver, sink actuator.Sink, logger golog.Logger) (*Base, error) {
	if actuator.ActuationFor(sink) != kinematics.ActuationAbsolute {
		return nil, errors.Wrapf(ErrPositionOnly, "%T", sink)
	}
	return &Base{
		logger: logger,
		sink:   sink,
		solver: solver,
		output: kinematics.NewOutput(kinematics.RadToDeg, kinematics.ActuationAbsolute, 0),
		mode:   kinematics.OppositePhase,
	}, nil
}

// ToCommand converts base units to the body frame: m/s forward, m/s left, rad/s anticlockwise.
func ToCommand(linear, angular r3.Vector) kinematics.Command {
	return kinematics.Command{
		LinearX:  linear.Y / 1000,
		LinearY:  -linear.X / 1000,
		AngularZ: angular.Z * math.Pi / 180,
	}
}

func (b *Base) SetMode(mode kinematics.Mode) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if mode != b.mode {
		b.logger.Infow("Steering mode", "from", b.mode, "to", mode)
	}
	b.mode = mode
}

func (b *Base) Mode() kinematics.Mode {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.mode
}

// SetVelocity solves for the current mode and applies the targets immediately.
func (b *Base) SetVelocity(ctx context.Context, linear, angular r3.Vector) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.logger.Debugf(
		"received a SetVelocity with linear X: %.2f, Y: %.2f Z: %.2f (mmPerSec), angular X: %.2f, Y: %.2f, Z: %.2f (degsPerSec)",
		linear.X, linear.Y, linear.Z, angular.X, angular.Y, angular.Z)
	if linear.Z != 0 || angular.X != 0 || angular.Y != 0 {
		return errors.Errorf("base can't move along Z or roll/pitch: linear %v angular %v", linear, angular)
	}

	cmd := ToCommand(linear, angular)

	b.lock.Lock()
	defer b.lock.Unlock()

	// Anything that isn't a driving mode solves as Stop and holds the measured angles.
	var current kinematics.PerWheel[float64]
	if !b.mode.IsDriving() {
		raw, err := b.sink.SteerPositions()
		if err != nil {
			return errors.Wrap(err, "reading steering angles")
		}
		current = b.output.FromActuator(raw)
	}
	out := b.solver.Compute(b.mode, cmd, current)
	err := actuator.Apply(b.sink, b.output.Targets(out))
	b.moving = out.Speeds != (kinematics.PerWheel[float64]{})
	return err
}

// Stop zeroes the wheel speeds and leaves the steering where it is.
func (b *Base) Stop(ctx context.Context) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.moving = false
	return actuator.StopAll(b.sink)
}

func (b *Base) IsMoving(ctx context.Context) (bool, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.moving, nil
}

func (b *Base) Properties(ctx context.Context) (Properties, error) {
	g := b.solver.Geometry()
	return Properties{
		WidthMeters:         g.WheelSeparation(),
		WheelCircumferenceM: 2 * math.Pi * g.WheelRadius,
		TurningRadiusMeters: TurningRadius(g, b.Mode()),
	}, nil
}

// TurningRadius is the smallest radius, measured to the centre of the vehicle, that mode
// can steer.  OppositePhase wheels reach 90 degrees at half the steering track.
func TurningRadius(g chassis.Geometry, mode kinematics.Mode) float64 {
	switch mode {
	case kinematics.PivotTurn:
		return 0
	case kinematics.OppositePhase:
		return g.SteeringTrack / 2
	default:
		return math.Inf(1)
	}
}
