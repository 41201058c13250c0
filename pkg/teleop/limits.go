// Package teleop turns operator input into drive commands.
package teleop

import (
	"math"

	"github.com/pkg/errors"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/kinematics"
)

// Limits caps the command magnitudes.  Linear limits are m/s; the angular limit is deg/s.
type Limits struct {
	LinearX    float64 `yaml:"linear_x"`
	LinearY    float64 `yaml:"linear_y"`
	AngularDeg float64 `yaml:"angular_deg"`
}

func DefaultLimits() Limits {
	return Limits{LinearX: 1, LinearY: 1, AngularDeg: 90}
}

func (l Limits) Validate() error {
	if l.LinearX < 0 || l.LinearY < 0 || l.AngularDeg < 0 {
		return errors.Errorf("limits: must not be negative: %+v", l)
	}
	return nil
}

// AngularZ is the angular limit in rad/s.
func (l Limits) AngularZ() float64 {
	return l.AngularDeg * math.Pi / 180
}

// Clamp limits each component of cmd to its maximum magnitude.
func (l Limits) Clamp(cmd kinematics.Command) kinematics.Command {
	return kinematics.Command{
		LinearX:  clamp(cmd.LinearX, l.LinearX),
		LinearY:  clamp(cmd.LinearY, l.LinearY),
		AngularZ: clamp(cmd.AngularZ, l.AngularZ()),
	}
}

func clamp(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}
