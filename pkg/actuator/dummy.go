package actuator

import (
	"sync"

	"github.com/edaniels/golog"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/kinematics"
)

// Dummy logs every target and behaves like an ideal actuator: the steering reads back
// exactly what was last commanded.
type Dummy struct {
	logger golog.Logger

	lock  sync.Mutex
	steer kinematics.PerWheel[float64]
}

func NewDummy(logger golog.Logger) *Dummy {
	return &Dummy{logger: logger}
}

func (d *Dummy) SetWheelVelocity(w kinematics.Wheel, velocity float64) error {
	d.logger.Infow("DHW: wheel velocity", "wheel", w, "velocity", velocity)
	return nil
}

func (d *Dummy) SetSteerPosition(w kinematics.Wheel, angle float64) error {
	d.logger.Infow("DHW: steer position", "wheel", w, "angle", angle)
	d.lock.Lock()
	d.steer[w] = angle
	d.lock.Unlock()
	return nil
}

func (d *Dummy) SteerPositions() (kinematics.PerWheel[float64], error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.steer, nil
}

var _ Sink = (*Dummy)(nil)

// Recorder keeps every target it is given.  The zero value is ready to use.
type Recorder struct {
	lock sync.Mutex

	WheelVelocity kinematics.PerWheel[float64]
	WheelPosition kinematics.PerWheel[float64]
	Steer         kinematics.PerWheel[float64]
	Updates       int

	// Err, if set, is returned from every setter.
	Err error
}

func (r *Recorder) SetWheelVelocity(w kinematics.Wheel, velocity float64) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.WheelVelocity[w] = velocity
	r.Updates++
	return r.Err
}

func (r *Recorder) SetSteerPosition(w kinematics.Wheel, angle float64) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.Steer[w] = angle
	r.Updates++
	return r.Err
}

func (r *Recorder) SteerPositions() (kinematics.PerWheel[float64], error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.Steer, nil
}

// Snapshot returns a copy of the recorded targets.
func (r *Recorder) Snapshot() (velocity, position, steer kinematics.PerWheel[float64]) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.WheelVelocity, r.WheelPosition, r.Steer
}

// PositionRecorder is a Recorder whose wheels only take positions.
type PositionRecorder struct {
	Recorder
}

func (r *PositionRecorder) SetWheelPosition(w kinematics.Wheel, position float64) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.WheelPosition[w] = position
	r.Updates++
	return r.Err
}

var _ PositionOnly = (*PositionRecorder)(nil)
