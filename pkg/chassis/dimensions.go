package chassis

import (
	"github.com/pkg/errors"
)

// Ranger chassis, all in metres.
const (
	RangerWheelBase       = 0.364
	RangerWheelRadius     = 0.1
	RangerSteeringYOffset = 0.05
	RangerWheelSeparation = 0.494
)

// Geometry holds the constants the kinematics need.  It is fixed for the lifetime of a vehicle.
type Geometry struct {
	// Distance between the front and rear axle lines.
	WheelBase   float64 `yaml:"wheel_base"`
	WheelRadius float64 `yaml:"wheel_radius"`
	// Lateral offset of a steering pivot from the wheel's rolling plane.
	SteeringYOffset float64 `yaml:"steering_y_offset"`
	// Lateral distance between the left and right steering pivots.
	SteeringTrack float64 `yaml:"steering_track"`
}

// Ranger returns the geometry of the default chassis.
func Ranger() Geometry {
	return FromWheelSeparation(RangerWheelBase, RangerWheelRadius, RangerSteeringYOffset, RangerWheelSeparation)
}

// FromWheelSeparation derives the steering track from the wheel-centre separation.
func FromWheelSeparation(wheelBase, wheelRadius, steeringYOffset, wheelSeparation float64) Geometry {
	return Geometry{
		WheelBase:       wheelBase,
		WheelRadius:     wheelRadius,
		SteeringYOffset: steeringYOffset,
		SteeringTrack:   wheelSeparation - 2*steeringYOffset,
	}
}

func (g Geometry) Validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"wheel_base", g.WheelBase},
		{"wheel_radius", g.WheelRadius},
		{"steering_y_offset", g.SteeringYOffset},
		{"steering_track", g.SteeringTrack},
	} {
		if !(f.value > 0) {
			return errors.Errorf("geometry: %s must be positive, got %v", f.name, f.value)
		}
	}
	return nil
}

// WheelSeparation is the distance between the left and right wheel centres.
func (g Geometry) WheelSeparation() float64 {
	return g.SteeringTrack + 2*g.SteeringYOffset
}
