// Package actuator defines where wheel targets go once they have been solved for.
package actuator

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/kinematics"
)

// Sink takes targets in actuator units (degrees and degrees/second unless configured
// otherwise).
type Sink interface {
	SetWheelVelocity(w kinematics.Wheel, velocity float64) error
	SetSteerPosition(w kinematics.Wheel, angle float64) error
	// SteerPositions reads back the measured steering angles.
	SteerPositions() (kinematics.PerWheel[float64], error)
}

// PositionOnly is implemented by sinks whose wheel drives only take position targets.
// They need kinematics.ActuationIntegrating.
type PositionOnly interface {
	Sink
	SetWheelPosition(w kinematics.Wheel, position float64) error
}

// ActuationFor picks the actuation a sink can handle.
func ActuationFor(s Sink) kinematics.Actuation {
	if _, ok := s.(PositionOnly); ok {
		return kinematics.ActuationIntegrating
	}
	return kinematics.ActuationAbsolute
}

// Apply sends all eight targets.  A failing actuator doesn't stop the others being updated;
// the errors are combined.
func Apply(s Sink, t kinematics.Targets) error {
	var err error
	for _, w := range kinematics.AllWheels {
		err = multierr.Append(err, setWheel(s, t, w))
	}
	for _, w := range kinematics.AllWheels {
		if e := s.SetSteerPosition(w, t.Steer[w]); e != nil {
			err = multierr.Append(err, errors.Wrapf(e, "steer %v", w))
		}
	}
	return err
}

func setWheel(s Sink, t kinematics.Targets, w kinematics.Wheel) error {
	var err error
	if t.Actuation == kinematics.ActuationIntegrating {
		p, ok := s.(PositionOnly)
		if !ok {
			return errors.Errorf("wheel %v: sink doesn't take wheel positions", w)
		}
		err = p.SetWheelPosition(w, t.Wheel[w])
	} else {
		err = s.SetWheelVelocity(w, t.Wheel[w])
	}
	return errors.Wrapf(err, "wheel %v", w)
}

// StopAll zeroes every wheel velocity, leaving the steering where it is.
func StopAll(s Sink) error {
	var err error
	for _, w := range kinematics.AllWheels {
		if e := s.SetWheelVelocity(w, 0); e != nil {
			err = multierr.Append(err, errors.Wrapf(e, "wheel %v", w))
		}
	}
	return err
}
