package teleop

import (
	"math"
	"sync"

	"github.com/edaniels/golog"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/joystick"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/kinematics"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/tunable"
)

// Stick travel inside this fraction of full scale reads as zero.
const DefaultDeadzone = 0.08

// JoystickSource maps a DualShock-style pad onto drive commands:
//
//	left stick    forward/back and crab left/right
//	right stick   turn
//	Options/Share next/previous steering mode
//	Cross         stop, or resume the last driving mode
//	D-pad         left/right selects a limit, up/down adjusts it
type JoystickSource struct {
	logger   golog.Logger
	deadzone float64
	tunables *tunable.Tunables

	maxX, maxY, maxW *tunable.Tunable

	lock        sync.Mutex
	mode        kinematics.Mode
	lastDriving kinematics.Mode
	lx, ly, rx  int16

	onModeChange func(from, to kinematics.Mode)
}

// NewJoystickSource starts in the given mode.  The limits become tunables in mm/s and deg/s.
func NewJoystickSource(initial kinematics.Mode, limits Limits, logger golog.Logger) *JoystickSource {
	ts := tunable.New(logger)
	s := &JoystickSource{
		logger:      logger,
		deadzone:    DefaultDeadzone,
		tunables:    ts,
		maxX:        ts.Create("max-linear-x-mm/s", int(math.Round(limits.LinearX*1000)), 0, 0, 50),
		maxY:        ts.Create("max-linear-y-mm/s", int(math.Round(limits.LinearY*1000)), 0, 0, 50),
		maxW:        ts.Create("max-angular-deg/s", int(math.Round(limits.AngularDeg)), 0, 0, 5),
		mode:        initial,
		lastDriving: kinematics.OppositePhase,
	}
	if initial != kinematics.Stop {
		s.lastDriving = initial
	}
	return s
}

// OnModeChange registers a callback, run on the joystick goroutine after each mode switch.
func (s *JoystickSource) OnModeChange(f func(from, to kinematics.Mode)) {
	s.lock.Lock()
	s.onModeChange = f
	s.lock.Unlock()
}

func (s *JoystickSource) Tunables() *tunable.Tunables {
	return s.tunables
}

// Limits returns the current, possibly tuned, limits.
func (s *JoystickSource) Limits() Limits {
	return Limits{
		LinearX:    float64(s.maxX.Get()) / 1000,
		LinearY:    float64(s.maxY.Get()) / 1000,
		AngularDeg: float64(s.maxW.Get()),
	}
}

func (s *JoystickSource) OnJoystickEvent(event *joystick.Event) {
	s.lock.Lock()
	from := s.mode
	switch event.Type {
	case joystick.EventTypeAxis:
		switch event.Number {
		case joystick.AxisLStickX:
			s.lx = event.Value
		case joystick.AxisLStickY:
			s.ly = event.Value
		case joystick.AxisRStickX:
			s.rx = event.Value
		case joystick.AxisDPadX:
			if event.Value > 0 {
				s.tunables.SelectNext()
			} else if event.Value < 0 {
				s.tunables.SelectPrev()
			}
		case joystick.AxisDPadY:
			// Up is negative.
			if event.Value < 0 {
				s.tunables.Current().Add(1)
			} else if event.Value > 0 {
				s.tunables.Current().Add(-1)
			}
		}
	case joystick.EventTypeButton:
		if event.Value != 1 {
			break
		}
		switch event.Number {
		case joystick.ButtonOptions:
			s.setModeLocked(s.mode.Next(1))
		case joystick.ButtonShare:
			s.setModeLocked(s.mode.Next(-1))
		case joystick.ButtonCross:
			if s.mode == kinematics.Stop {
				s.setModeLocked(s.lastDriving)
			} else {
				s.setModeLocked(kinematics.Stop)
			}
		}
	}
	to := s.mode
	cb := s.onModeChange
	s.lock.Unlock()

	if from != to {
		s.logger.Infow("Steering mode changed", "from", from, "to", to)
		if cb != nil {
			cb(from, to)
		}
	}
}

func (s *JoystickSource) setModeLocked(m kinematics.Mode) {
	s.mode = m
	if m != kinematics.Stop {
		s.lastDriving = m
	}
}

// SetMode switches mode without a callback.
func (s *JoystickSource) SetMode(m kinematics.Mode) {
	s.lock.Lock()
	s.setModeLocked(m)
	s.lock.Unlock()
}

// Command returns the current mode and the command for the present stick positions.
func (s *JoystickSource) Command() (kinematics.Mode, kinematics.Command) {
	s.lock.Lock()
	mode, lx, ly, rx := s.mode, s.lx, s.ly, s.rx
	s.lock.Unlock()

	l := s.Limits()
	// Stick up and left read negative; the body frame has forward, left and anticlockwise positive.
	return mode, kinematics.Command{
		LinearX:  -s.axis(ly) * l.LinearX,
		LinearY:  -s.axis(lx) * l.LinearY,
		AngularZ: -s.axis(rx) * l.AngularZ(),
	}
}

// axis scales a raw stick value to [-1, 1] with the deadzone removed.
func (s *JoystickSource) axis(raw int16) float64 {
	v := math.Max(-1, math.Min(1, float64(raw)/joystick.AxisMax))
	mag := math.Abs(v)
	if mag <= s.deadzone {
		return 0
	}
	return math.Copysign((mag-s.deadzone)/(1-s.deadzone), v)
}
