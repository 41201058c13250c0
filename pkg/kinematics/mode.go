package kinematics

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Mode selects the steering strategy.  The zero Mode is Stop, and so is any value the solver
// doesn't recognise.
type Mode int

const (
	Stop Mode = iota
	// InPhase (crab steering): all wheels at one heading and one speed.
	InPhase
	// OppositePhase: front and rear pairs steer in mirrored directions.
	OppositePhase
	// PivotTurn: rotate about the vehicle's centre with no translation.
	PivotTurn
)

var ErrUnknownMode = errors.New("unknown steering mode")

var modeNames = map[Mode]string{
	Stop:          "stop",
	InPhase:       "in_phase",
	OppositePhase: "opposite_phase",
	PivotTurn:     "pivot_turn",
}

func (m Mode) String() string {
	if n, ok := modeNames[m]; ok {
		return n
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode accepts the names returned by String, case-insensitively, with '-' or '_'.
func ParseMode(s string) (Mode, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for m, n := range modeNames {
		if n == norm {
			return m, nil
		}
	}
	return Stop, errors.Wrapf(ErrUnknownMode, "%q", s)
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Driving lists the modes that move the vehicle, in the order Next cycles through them.
var Driving = []Mode{InPhase, OppositePhase, PivotTurn}

// IsDriving is false for Stop and for values the solver treats as Stop.
func (m Mode) IsDriving() bool {
	for _, d := range Driving {
		if d == m {
			return true
		}
	}
	return false
}

// Next returns the driving mode delta steps after m, wrapping around.  Stop (and anything
// unrecognised) counts as the position before the first driving mode.
func (m Mode) Next(delta int) Mode {
	idx := -1
	for i, d := range Driving {
		if d == m {
			idx = i
		}
	}
	if idx < 0 {
		if delta > 0 {
			delta--
		}
		idx = 0
	}
	n := len(Driving)
	return Driving[((idx+delta)%n+n)%n]
}
