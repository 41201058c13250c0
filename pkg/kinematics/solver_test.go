package kinematics

import (
	"math"
	"testing"

	"go.viam.com/test"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/chassis"
)

var ranger = chassis.Geometry{
	WheelBase:       0.364,
	WheelRadius:     0.1,
	SteeringYOffset: 0.05,
	SteeringTrack:   0.394,
}

func expectPerWheel(t *testing.T, actual, expected PerWheel[float64]) {
	t.Helper()
	for _, w := range AllWheels {
		test.That(t, actual[w], test.ShouldAlmostEqual, expected[w], 1e-9)
	}
}

func TestPivotTurn(t *testing.T) {
	out := Solve(ranger, PivotTurn, Command{AngularZ: 1.0}, PerWheel[float64]{})

	a := math.Atan(0.364 / 0.394)
	test.That(t, a, test.ShouldAlmostEqual, 0.7458, 1e-4)
	expectPerWheel(t, out.Angles, PerWheel[float64]{-a, a, a, -a})
	expectPerWheel(t, out.Speeds, PerWheel[float64]{-1, 1, -1, 1})

	t.Run("angles ignore the command", func(t *testing.T) {
		for _, cmd := range []Command{
			{},
			{LinearX: 3, LinearY: -2, AngularZ: 0.1},
			{AngularZ: -7},
		} {
			other := Solve(ranger, PivotTurn, cmd, PerWheel[float64]{})
			test.That(t, other.Angles, test.ShouldResemble, out.Angles)
			test.That(t, other.Speeds, test.ShouldResemble,
				PerWheel[float64]{-cmd.AngularZ, cmd.AngularZ, -cmd.AngularZ, cmd.AngularZ})
			test.That(t, other.Angles[FrontLeft], test.ShouldEqual, other.Angles[RearRight])
			test.That(t, other.Angles[FrontLeft], test.ShouldEqual, -other.Angles[FrontRight])
			test.That(t, other.Angles[FrontLeft], test.ShouldEqual, -other.Angles[RearLeft])
		}
	})
}

func TestOppositePhaseStraight(t *testing.T) {
	out := Solve(ranger, OppositePhase, Command{LinearX: 1.0}, PerWheel[float64]{})
	expectPerWheel(t, out.Angles, PerWheel[float64]{})
	expectPerWheel(t, out.Speeds, Uniform(10.0))

	// No angular rate means no steering whatever the geometry.
	for _, g := range []chassis.Geometry{ranger, {WheelBase: 2, WheelRadius: 0.3, SteeringYOffset: 0.1, SteeringTrack: 1.5}} {
		for _, x := range []float64{-2, 0, 0.5} {
			out := Solve(g, OppositePhase, Command{LinearX: x, LinearY: 1}, PerWheel[float64]{})
			test.That(t, out.Angles, test.ShouldResemble, PerWheel[float64]{})
		}
	}
}

func TestOppositePhaseTurning(t *testing.T) {
	out := Solve(ranger, OppositePhase, Command{LinearX: 0.3, AngularZ: 0.5}, PerWheel[float64]{})

	test.That(t, out.Angles[FrontLeft], test.ShouldAlmostEqual, 0.42419440790376667, 1e-12)
	test.That(t, out.Angles[FrontRight], test.ShouldAlmostEqual, 0.2245067460809429, 1e-12)
	test.That(t, out.Speeds[FrontLeft], test.ShouldAlmostEqual, 1.960955675720343, 1e-12)
	test.That(t, out.Speeds[FrontRight], test.ShouldAlmostEqual, 4.3375818034627756, 1e-12)
	test.That(t, out.Speeds[RearLeft], test.ShouldEqual, out.Speeds[FrontLeft])
	test.That(t, out.Speeds[RearRight], test.ShouldEqual, out.Speeds[FrontRight])

	t.Run("rear counter-steers", func(t *testing.T) {
		for _, cmd := range []Command{
			{LinearX: 0.3, AngularZ: 0.5},
			{LinearX: -1, AngularZ: 0.2},
			{LinearX: 0.1, AngularZ: -3},
			{LinearX: 0, AngularZ: 1},
			{LinearX: 2, AngularZ: 0},
		} {
			out := Solve(ranger, OppositePhase, cmd, PerWheel[float64]{})
			test.That(t, out.Angles[RearLeft], test.ShouldEqual, -out.Angles[FrontLeft])
			test.That(t, out.Angles[RearRight], test.ShouldEqual, -out.Angles[FrontRight])
		}
	})

	t.Run("below threshold keeps wheels straight", func(t *testing.T) {
		out := Solve(ranger, OppositePhase, Command{LinearX: 1, AngularZ: 0.001}, PerWheel[float64]{})
		test.That(t, out.Angles, test.ShouldResemble, PerWheel[float64]{})
	})
}

func TestOppositePhaseSingularity(t *testing.T) {
	for _, tc := range []struct {
		name string
		cmd  Command
		want float64
	}{
		{"spin on the spot", Command{AngularZ: 1}, math.Pi / 2},
		{"spin backwards", Command{AngularZ: -1}, -math.Pi / 2},
		{"boundary", Command{LinearX: 0.197, AngularZ: 1}, math.Pi / 2},
		{"slow forward fast turn", Command{LinearX: 0.1, AngularZ: -2}, -math.Pi / 2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			out := Solve(ranger, OppositePhase, tc.cmd, PerWheel[float64]{})
			test.That(t, out.Angles[FrontLeft], test.ShouldEqual, tc.want)
			test.That(t, out.Angles[FrontRight], test.ShouldEqual, tc.want)
			test.That(t, out.Angles[RearLeft], test.ShouldEqual, -tc.want)
			for _, a := range out.Angles {
				test.That(t, math.IsNaN(a), test.ShouldBeFalse)
			}
		})
	}
}

func TestOppositePhaseReversing(t *testing.T) {
	out := Solve(ranger, OppositePhase, Command{LinearX: -1, AngularZ: 0.5}, PerWheel[float64]{})
	// Reversing flips the hypotenuse terms but not the offset correction.
	offset := 0.5 * 0.05 / 0.1
	test.That(t, out.Speeds[FrontLeft], test.ShouldAlmostEqual,
		-math.Hypot(-1-0.5*0.394/2, 0.5*0.364/2)/0.1-offset, 1e-12)
	test.That(t, out.Speeds[FrontRight], test.ShouldAlmostEqual,
		-math.Hypot(-1+0.5*0.394/2, 0.5*0.364/2)/0.1+offset, 1e-12)
}

func TestInPhase(t *testing.T) {
	t.Run("forward and left", func(t *testing.T) {
		out := Solve(ranger, InPhase, Command{LinearX: 1, LinearY: 1, AngularZ: 5}, PerWheel[float64]{})
		expectPerWheel(t, out.Speeds, Uniform(math.Sqrt2))
		expectPerWheel(t, out.Angles, Uniform(math.Pi/4))
	})

	t.Run("reverse", func(t *testing.T) {
		out := Solve(ranger, InPhase, Command{LinearX: -3, LinearY: 4}, PerWheel[float64]{})
		expectPerWheel(t, out.Speeds, Uniform(-5.0))
		expectPerWheel(t, out.Angles, Uniform(math.Atan(-4.0/3.0)))
	})

	t.Run("lateral only does not move", func(t *testing.T) {
		out := Solve(ranger, InPhase, Command{LinearY: 2.0}, PerWheel[float64]{})
		test.That(t, out.Angles, test.ShouldResemble, PerWheel[float64]{})
		test.That(t, out.Speeds, test.ShouldResemble, PerWheel[float64]{})
	})
}

func TestStop(t *testing.T) {
	current := PerWheel[float64]{0.1, -0.2, 0.3, -0.4}
	for _, m := range []Mode{Stop, Mode(42), Mode(-1)} {
		out := Solve(ranger, m, Command{LinearX: 1, AngularZ: 1}, current)
		test.That(t, out.Mode, test.ShouldEqual, Stop)
		test.That(t, out.Angles, test.ShouldResemble, current)
		test.That(t, out.Speeds, test.ShouldResemble, PerWheel[float64]{})
	}
}

func TestSolverLast(t *testing.T) {
	s := NewSolver(ranger)
	test.That(t, s.Last(), test.ShouldResemble, Outputs{})

	cmd := Command{LinearX: 0.4, AngularZ: 0.3}
	first := s.Compute(OppositePhase, cmd, PerWheel[float64]{})
	second := s.Compute(OppositePhase, cmd, PerWheel[float64]{})
	test.That(t, second, test.ShouldResemble, first)
	test.That(t, s.Last(), test.ShouldResemble, first)

	// Last is a copy.
	last := s.Last()
	last.Speeds[FrontLeft] = 99
	test.That(t, s.Last().Speeds[FrontLeft], test.ShouldEqual, first.Speeds[FrontLeft])

	s.Compute(PivotTurn, Command{AngularZ: 1}, PerWheel[float64]{})
	test.That(t, s.Last().Mode, test.ShouldEqual, PivotTurn)
	test.That(t, s.Geometry(), test.ShouldResemble, ranger)
}
