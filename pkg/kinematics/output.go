package kinematics

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

// Scale converts solver units (radians, rad/s) into actuator units.
type Scale float64

const (
	ScaleNone Scale = 1
	RadToDeg  Scale = 180 / math.Pi
)

func ParseScale(s string) (Scale, error) {
	switch s {
	case "", "rad_to_deg":
		return RadToDeg, nil
	case "none":
		return ScaleNone, nil
	}
	return 0, errors.Errorf("unknown output scale %q", s)
}

// Actuation says how the actuators take their wheel targets.
type Actuation int

const (
	// ActuationAbsolute: wheels take a velocity target, steering takes an absolute angle.
	ActuationAbsolute Actuation = iota
	// ActuationIntegrating: the wheel drives only take positions, so each tick the wheel
	// velocity is integrated into a running position target.
	ActuationIntegrating
)

func (a Actuation) String() string {
	switch a {
	case ActuationAbsolute:
		return "absolute"
	case ActuationIntegrating:
		return "integrating"
	}
	return "unknown"
}

func ParseActuation(s string) (Actuation, error) {
	switch s {
	case "", "absolute":
		return ActuationAbsolute, nil
	case "integrating":
		return ActuationIntegrating, nil
	}
	return 0, errors.Errorf("unknown actuation %q", s)
}

// Targets are Outputs in actuator units, ready for a sink.
type Targets struct {
	Actuation Actuation
	// Wheel is a velocity for ActuationAbsolute and a position for ActuationIntegrating.
	Wheel PerWheel[float64]
	Steer PerWheel[float64]
}

// Output turns Outputs into Targets.  With ActuationIntegrating it carries the running wheel
// positions between ticks, so like the Solver it belongs to a single vehicle.
type Output struct {
	scale     Scale
	actuation Actuation
	period    time.Duration

	wheelPositions PerWheel[float64]
}

// NewOutput returns an Output applying scale to every value.  period is the control tick and
// is only used for ActuationIntegrating.
func NewOutput(scale Scale, actuation Actuation, period time.Duration) *Output {
	return &Output{
		scale:     scale,
		actuation: actuation,
		period:    period,
	}
}

func (o *Output) Actuation() Actuation {
	return o.actuation
}

func (o *Output) Targets(out Outputs) Targets {
	k := float64(o.scale)
	t := Targets{
		Actuation: o.actuation,
		Steer:     out.Angles.Map(func(a float64) float64 { return a * k }),
	}
	speeds := out.Speeds.Map(func(v float64) float64 { return v * k })
	if o.actuation == ActuationIntegrating {
		dt := o.period.Seconds()
		for i, v := range speeds {
			o.wheelPositions[i] += v * dt
		}
		t.Wheel = o.wheelPositions
	} else {
		t.Wheel = speeds
	}
	return t
}

// FromActuator converts measured steering angles from actuator units back to radians.
func (o *Output) FromActuator(angles PerWheel[float64]) PerWheel[float64] {
	k := float64(o.scale)
	return angles.Map(func(a float64) float64 { return a / k })
}

// ResetPositions zeroes the integrated wheel positions, e.g. after the drives are re-homed.
func (o *Output) ResetPositions() {
	o.wheelPositions = PerWheel[float64]{}
}
