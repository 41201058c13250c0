package sound

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
	"github.com/pkg/errors"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/kinematics"
)

// Player plays WAV cues in the background.  A new sound cuts off the one that's playing.
// If the speaker can't be opened, sounds are logged and dropped.
type Player struct {
	logger       golog.Logger
	dir          string
	soundsToPlay chan string
	done         chan struct{}
	closeOnce    sync.Once

	play func(path string) error
}

// NewPlayer plays "<mode>.wav" files from dir on the default speaker.
func NewPlayer(dir string, logger golog.Logger) *Player {
	s := &speakerOut{logger: logger}
	return newPlayer(dir, logger, s.play)
}

func newPlayer(dir string, logger golog.Logger, play func(path string) error) *Player {
	p := &Player{
		logger:       logger,
		dir:          dir,
		soundsToPlay: make(chan string, 4),
		done:         make(chan struct{}),
		play:         play,
	}
	go p.loop()
	return p
}

func (p *Player) loop() {
	defer close(p.done)
	for soundToPlay := range p.soundsToPlay {
		if err := p.play(soundToPlay); err != nil {
			p.logger.Warnw("Unable to play sound", "path", soundToPlay, "error", err)
		}
	}
}

// Play queues a sound without blocking; if the queue is full the sound is dropped.
func (p *Player) Play(path string) {
	select {
	case p.soundsToPlay <- path:
	default:
		p.logger.Debugw("Sound queue full, dropping", "path", path)
	}
}

// ModeChanged plays the cue for the new mode.
func (p *Player) ModeChanged(from, to kinematics.Mode) {
	p.Play(filepath.Join(p.dir, to.String()+".wav"))
}

// Close stops accepting sounds and waits for the queue to drain.
func (p *Player) Close() {
	p.closeOnce.Do(func() { close(p.soundsToPlay) })
	<-p.done
}

type speakerOut struct {
	logger golog.Logger

	initOnce sync.Once
	initErr  error

	ctrl *beep.Ctrl
	s    beep.StreamSeekCloser
}

func (o *speakerOut) init() (err error) {
	o.initOnce.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				o.initErr = errors.Errorf("speaker init panicked: %v", r)
			}
		}()
		sampleRate := beep.SampleRate(44100)
		o.initErr = speaker.Init(sampleRate, sampleRate.N(time.Second/5))
		if o.initErr != nil {
			o.logger.Warnw("Failed to open speaker", "error", o.initErr)
		}
	})
	return o.initErr
}

func (o *speakerOut) play(path string) error {
	if err := o.init(); err != nil {
		return errors.Wrap(err, "no speaker")
	}
	if o.ctrl != nil {
		speaker.Lock()
		o.ctrl.Paused = true
		o.ctrl.Streamer = nil
		speaker.Unlock()
		o.ctrl = nil
	}
	if o.s != nil {
		o.s.Close()
		o.s = nil
	}

	s, err := decode(path)
	if err != nil {
		return err
	}
	o.s = s
	o.ctrl = &beep.Ctrl{Streamer: s}
	speaker.Play(o.ctrl)
	return nil
}

func decode(path string) (beep.StreamSeekCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening sound")
	}
	s, _, err := wav.Decode(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "decoding sound")
	}
	return s, nil
}
