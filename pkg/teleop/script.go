package teleop

import (
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/kinematics"
)

// Step holds one command for a while.
//
//	steps:
//	  - {mode: opposite_phase, duration: 2s, linear_x: 0.5, angular_z: 0.3}
//	  - {mode: stop, duration: 500ms}
type Step struct {
	Mode               kinematics.Mode `yaml:"mode"`
	Duration           time.Duration   `yaml:"duration"`
	kinematics.Command `yaml:",inline"`
}

type Script struct {
	Steps []Step `yaml:"steps"`
}

func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.UnmarshalStrict(data, &s); err != nil {
		return nil, errors.Wrap(err, "parsing script")
	}
	for i, step := range s.Steps {
		if step.Duration < 0 {
			return nil, errors.Errorf("script step %d: negative duration %v", i, step.Duration)
		}
	}
	return &s, nil
}

func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading script")
	}
	return ParseScript(data)
}

// Duration is the total running time of the script.
func (s *Script) Duration() time.Duration {
	var d time.Duration
	for _, step := range s.Steps {
		d += step.Duration
	}
	return d
}

// Ticks returns the number of ticks each step lasts: its duration rounded up to whole ticks,
// and at least one.
func (s *Script) Ticks(tick time.Duration) []int {
	ticks := make([]int, len(s.Steps))
	for i, step := range s.Steps {
		n := int((step.Duration + tick - 1) / tick)
		if n < 1 {
			n = 1
		}
		ticks[i] = n
	}
	return ticks
}

// Playback is a command source that advances one tick per Command call.  Once the script
// runs out it reports Stop.
type Playback struct {
	script *Script
	ticks  []int

	lock      sync.Mutex
	step      int
	stepTicks int
}

func NewPlayback(script *Script, tick time.Duration) *Playback {
	return &Playback{script: script, ticks: script.Ticks(tick)}
}

func (p *Playback) Command() (kinematics.Mode, kinematics.Command) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.step >= len(p.script.Steps) {
		return kinematics.Stop, kinematics.Command{}
	}
	s := p.script.Steps[p.step]
	p.stepTicks++
	if p.stepTicks >= p.ticks[p.step] {
		p.step++
		p.stepTicks = 0
	}
	return s.Mode, s.Command
}

func (p *Playback) Done() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.step >= len(p.script.Steps)
}
