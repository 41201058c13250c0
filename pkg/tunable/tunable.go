package tunable

import (
	"sync"
	"sync/atomic"

	"github.com/edaniels/golog"
)

// Tunable is an integer knob that can be nudged from the joystick while driving.
type Tunable struct {
	Name     string
	Value    int64
	Min, Max int64
	Step     int64

	logger golog.Logger
}

// Add moves the value by delta steps, clamping to [Min, Max].
func (t *Tunable) Add(delta int) int {
	for {
		old := atomic.LoadInt64(&t.Value)
		newV := old + int64(delta)*t.Step
		if newV < t.Min {
			newV = t.Min
		}
		if t.Max > t.Min && newV > t.Max {
			newV = t.Max
		}
		if atomic.CompareAndSwapInt64(&t.Value, old, newV) {
			t.logger.Infow("Tunable", "name", t.Name, "value", newV)
			return int(newV)
		}
	}
}

func (t *Tunable) Get() int {
	return int(atomic.LoadInt64(&t.Value))
}

type Tunables struct {
	logger golog.Logger

	lock     sync.Mutex
	All      []*Tunable
	selected int
}

func New(logger golog.Logger) *Tunables {
	return &Tunables{logger: logger}
}

// Create registers a tunable.  A zero max leaves it unbounded above; step defaults to 1.
func (t *Tunables) Create(name string, value, min, max, step int) *Tunable {
	if step <= 0 {
		step = 1
	}
	newTunable := &Tunable{
		Name:   name,
		Value:  int64(value),
		Min:    int64(min),
		Max:    int64(max),
		Step:   int64(step),
		logger: t.logger,
	}
	t.lock.Lock()
	t.All = append(t.All, newTunable)
	t.lock.Unlock()
	return newTunable
}

func (t *Tunables) SelectNext() *Tunable {
	return t.move(1)
}

func (t *Tunables) SelectPrev() *Tunable {
	return t.move(-1)
}

func (t *Tunables) move(delta int) *Tunable {
	t.lock.Lock()
	if len(t.All) == 0 {
		t.lock.Unlock()
		return nil
	}
	t.selected = (t.selected + delta + len(t.All)) % len(t.All)
	cur := t.All[t.selected]
	t.lock.Unlock()
	t.logger.Infow("Tunable selected", "name", cur.Name, "value", cur.Get())
	return cur
}

// Current returns the selected tunable, or nil if none were created.
func (t *Tunables) Current() *Tunable {
	t.lock.Lock()
	defer t.lock.Unlock()
	if len(t.All) == 0 {
		return nil
	}
	return t.All[t.selected]
}
