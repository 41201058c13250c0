package base

import (
	"context"
	"math"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/actuator"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/chassis"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/kinematics"
)

func TestToCommand(t *testing.T) {
	cmd := ToCommand(r3.Vector{X: 200, Y: 500}, r3.Vector{Z: 90})
	test.That(t, cmd.LinearX, test.ShouldAlmostEqual, 0.5)
	test.That(t, cmd.LinearY, test.ShouldAlmostEqual, -0.2)
	test.That(t, cmd.AngularZ, test.ShouldAlmostEqual, math.Pi/2)
}

func TestSetVelocity(t *testing.T) {
	ctx := context.Background()
	sink := &actuator.Recorder{}
	b, err := New(kinematics.NewSolver(chassis.Ranger()), sink, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.Mode(), test.ShouldEqual, kinematics.OppositePhase)

	moving, err := b.IsMoving(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, moving, test.ShouldBeFalse)

	// 1 m/s straight ahead on 0.1 m wheels is 10 rad/s.
	test.That(t, b.SetVelocity(ctx, r3.Vector{Y: 1000}, r3.Vector{}), test.ShouldBeNil)
	v, _, s := sink.Snapshot()
	for _, w := range kinematics.AllWheels {
		test.That(t, v[w], test.ShouldAlmostEqual, 10*180/math.Pi)
		test.That(t, s[w], test.ShouldEqual, 0.0)
	}
	moving, _ = b.IsMoving(ctx)
	test.That(t, moving, test.ShouldBeTrue)

	b.SetMode(kinematics.PivotTurn)
	test.That(t, b.SetVelocity(ctx, r3.Vector{}, r3.Vector{Z: 45}), test.ShouldBeNil)
	v, _, s = sink.Snapshot()
	test.That(t, v[kinematics.FrontLeft], test.ShouldAlmostEqual, -45)
	test.That(t, s[kinematics.FrontRight], test.ShouldAlmostEqual, math.Atan(0.364/0.394)*180/math.Pi)

	test.That(t, b.Stop(ctx), test.ShouldBeNil)
	v, _, _ = sink.Snapshot()
	test.That(t, v, test.ShouldResemble, kinematics.PerWheel[float64]{})
	moving, _ = b.IsMoving(ctx)
	test.That(t, moving, test.ShouldBeFalse)
}

func TestSetVelocityStopHolds(t *testing.T) {
	ctx := context.Background()
	for _, mode := range []kinematics.Mode{kinematics.Stop, kinematics.Mode(42)} {
		sink := &actuator.Recorder{Steer: kinematics.PerWheel[float64]{5, 6, 7, 8}}
		b, err := New(kinematics.NewSolver(chassis.Ranger()), sink, golog.NewTestLogger(t))
		test.That(t, err, test.ShouldBeNil)
		b.SetMode(mode)
		test.That(t, b.SetVelocity(ctx, r3.Vector{Y: 300}, r3.Vector{}), test.ShouldBeNil)
		v, _, s := sink.Snapshot()
		test.That(t, v, test.ShouldResemble, kinematics.PerWheel[float64]{})
		for i, want := range []float64{5, 6, 7, 8} {
			test.That(t, s[i], test.ShouldAlmostEqual, want)
		}
		moving, _ := b.IsMoving(ctx)
		test.That(t, moving, test.ShouldBeFalse)
	}
}

func TestNewRejectsPositionOnly(t *testing.T) {
	b, err := New(kinematics.NewSolver(chassis.Ranger()), &actuator.PositionRecorder{}, golog.NewTestLogger(t))
	test.That(t, b, test.ShouldBeNil)
	test.That(t, errors.Is(err, ErrPositionOnly), test.ShouldBeTrue)
}

func TestSetVelocityErrors(t *testing.T) {
	b, err := New(kinematics.NewSolver(chassis.Ranger()), &actuator.Recorder{}, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.SetVelocity(context.Background(), r3.Vector{Z: 1}, r3.Vector{}), test.ShouldNotBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	test.That(t, b.SetVelocity(ctx, r3.Vector{Y: 1}, r3.Vector{}), test.ShouldEqual, context.Canceled)

}

func TestProperties(t *testing.T) {
	ctx := context.Background()
	b, err := New(kinematics.NewSolver(chassis.Ranger()), &actuator.Recorder{}, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	props, err := b.Properties(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, props.WidthMeters, test.ShouldAlmostEqual, 0.494)
	test.That(t, props.WheelCircumferenceM, test.ShouldAlmostEqual, 0.2*math.Pi)
	test.That(t, props.TurningRadiusMeters, test.ShouldAlmostEqual, 0.197)

	b.SetMode(kinematics.PivotTurn)
	props, _ = b.Properties(ctx)
	test.That(t, props.TurningRadiusMeters, test.ShouldEqual, 0.0)

	b.SetMode(kinematics.InPhase)
	props, _ = b.Properties(ctx)
	test.That(t, math.IsInf(props.TurningRadiusMeters, 1), test.ShouldBeTrue)
}

func TestTurningRadiusSaturates(t *testing.T) {
	// Just outside the minimum radius the inner front wheel is short of 90 degrees; inside it,
	// every wheel is pinned at 90.
	g := chassis.Ranger()
	r := TurningRadius(g, kinematics.OppositePhase)
	outside := kinematics.Solve(g, kinematics.OppositePhase, kinematics.Command{LinearX: 1.01 * r, AngularZ: 1}, kinematics.PerWheel[float64]{})
	test.That(t, math.Abs(outside.Angles[kinematics.FrontLeft]), test.ShouldBeLessThan, math.Pi/2)
	inside := kinematics.Solve(g, kinematics.OppositePhase, kinematics.Command{LinearX: 0.99 * r, AngularZ: 1}, kinematics.PerWheel[float64]{})
	test.That(t, inside.Angles[kinematics.FrontLeft], test.ShouldAlmostEqual, math.Pi/2)
}
