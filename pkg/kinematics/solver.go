// Package kinematics turns a body-frame velocity command into per-wheel speed and steering
// angle targets for a four-wheel, four-steer chassis.
//
// Speeds come out as wheel angular speeds (rad/s) and angles in radians; see Output for the
// conversion to actuator units.
package kinematics

import (
	"math"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/chassis"
)

// Below this angular rate OppositePhase keeps the wheels straight.
const minSteerAngularRate = 0.001

// Command is a body-frame velocity: m/s forward, m/s to the left, rad/s anticlockwise.
// Callers clamp it to the vehicle's limits.
type Command struct {
	LinearX  float64 `yaml:"linear_x" csv:"linear_x"`
	LinearY  float64 `yaml:"linear_y" csv:"linear_y"`
	AngularZ float64 `yaml:"angular_z" csv:"angular_z"`
}

// Outputs is one complete set of wheel targets.  Every field is written on every computation.
type Outputs struct {
	Mode   Mode
	Speeds PerWheel[float64]
	Angles PerWheel[float64]
}

// Solver computes Outputs for one vehicle and remembers the most recent result.  It is not
// safe for concurrent use; each vehicle owns its own.
type Solver struct {
	geom chassis.Geometry
	last Outputs
}

func NewSolver(geom chassis.Geometry) *Solver {
	return &Solver{geom: geom}
}

func (s *Solver) Geometry() chassis.Geometry {
	return s.geom
}

// Compute solves for the given mode and command and records the result as Last.  current
// holds each steering actuator's measured angle in radians; only Stop reads it.
func (s *Solver) Compute(mode Mode, cmd Command, current PerWheel[float64]) Outputs {
	s.last = Solve(s.geom, mode, cmd, current)
	return s.last
}

// Last returns a copy of the most recent Compute result.
func (s *Solver) Last() Outputs {
	return s.last
}

// Solve is the stateless form of Solver.Compute.
func Solve(g chassis.Geometry, mode Mode, cmd Command, current PerWheel[float64]) Outputs {
	out := Outputs{Mode: mode}
	switch mode {
	case InPhase:
		out.Speeds, out.Angles = inPhase(cmd)
	case OppositePhase:
		out.Speeds, out.Angles = oppositePhase(g, cmd)
	case PivotTurn:
		out.Speeds, out.Angles = pivotTurn(g, cmd)
	default:
		// Hold the steering where it is rather than snapping it back to zero.
		out.Mode = Stop
		out.Angles = current
	}
	return out
}

// sign returns 0 for 0.  That means InPhase with no forward component doesn't move at all,
// even with a lateral command.
func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func inPhase(cmd Command) (speeds, angles PerWheel[float64]) {
	speed := sign(cmd.LinearX) * math.Hypot(cmd.LinearX, cmd.LinearY)

	var ratio float64
	if cmd.LinearX != 0 {
		ratio = cmd.LinearY / cmd.LinearX
	}
	return Uniform(speed), Uniform(math.Atan(ratio))
}

func oppositePhase(g chassis.Geometry, cmd Command) (speeds, angles PerWheel[float64]) {
	x, w := cmd.LinearX, cmd.AngularZ

	// The steering pivot sits SteeringYOffset inboard of the contact patch, so turning
	// drags the wheel sideways around the pivot.
	offset := w * g.SteeringYOffset / g.WheelRadius
	s := sign(x)
	halfTrack := w * g.SteeringTrack / 2
	halfBase := w * g.WheelBase / 2

	left := s*math.Hypot(x-halfTrack, halfBase)/g.WheelRadius - offset
	right := s*math.Hypot(x+halfTrack, halfBase)/g.WheelRadius + offset
	speeds = PerWheel[float64]{left, right, left, right}

	if math.Abs(w) <= minSteerAngularRate {
		return speeds, angles
	}

	var fl, fr float64
	twiceSpeed := 2 * x
	trackAngular := w * g.SteeringTrack
	if math.Abs(twiceSpeed) > math.Abs(trackAngular) {
		fl = math.Atan(w * g.WheelBase / (twiceSpeed - trackAngular))
		fr = math.Atan(w * g.WheelBase / (twiceSpeed + trackAngular))
	} else {
		// Turning centre is between the wheels: point them sideways.
		fl = sign(w) * math.Pi / 2
		fr = fl
	}
	return speeds, PerWheel[float64]{fl, fr, -fl, -fr}
}

func pivotTurn(g chassis.Geometry, cmd Command) (speeds, angles PerWheel[float64]) {
	a := math.Atan(g.WheelBase / g.SteeringTrack)
	w := cmd.AngularZ
	return PerWheel[float64]{-w, w, -w, w}, PerWheel[float64]{-a, a, a, -a}
}
