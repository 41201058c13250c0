// Package telemetry records one CSV row per control tick and summarises recorded traces.
package telemetry

import (
	"io"
	"os"
	"sync"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/kinematics"
)

// Sample is one tick.  Speeds and angles are in actuator units.
type Sample struct {
	Tick     int     `csv:"tick"`
	TimeSec  float64 `csv:"time_s"`
	Mode     string  `csv:"mode"`
	LinearX  float64 `csv:"linear_x"`
	LinearY  float64 `csv:"linear_y"`
	AngularZ float64 `csv:"angular_z"`

	SpeedFL float64 `csv:"speed_fl"`
	SpeedFR float64 `csv:"speed_fr"`
	SpeedRL float64 `csv:"speed_rl"`
	SpeedRR float64 `csv:"speed_rr"`
	AngleFL float64 `csv:"angle_fl"`
	AngleFR float64 `csv:"angle_fr"`
	AngleRL float64 `csv:"angle_rl"`
	AngleRR float64 `csv:"angle_rr"`

	Error string `csv:"error"`
}

func NewSample(tick int, timeSec float64, mode kinematics.Mode, cmd kinematics.Command, t kinematics.Targets, err error) Sample {
	s := Sample{
		Tick:     tick,
		TimeSec:  timeSec,
		Mode:     mode.String(),
		LinearX:  cmd.LinearX,
		LinearY:  cmd.LinearY,
		AngularZ: cmd.AngularZ,
	}
	s.SetSpeeds(t.Wheel)
	s.SetAngles(t.Steer)
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

func (s *Sample) SetSpeeds(v kinematics.PerWheel[float64]) {
	s.SpeedFL, s.SpeedFR, s.SpeedRL, s.SpeedRR = v[0], v[1], v[2], v[3]
}

func (s *Sample) SetAngles(v kinematics.PerWheel[float64]) {
	s.AngleFL, s.AngleFR, s.AngleRL, s.AngleRR = v[0], v[1], v[2], v[3]
}

func (s Sample) Speeds() kinematics.PerWheel[float64] {
	return kinematics.PerWheel[float64]{s.SpeedFL, s.SpeedFR, s.SpeedRL, s.SpeedRR}
}

func (s Sample) Angles() kinematics.PerWheel[float64] {
	return kinematics.PerWheel[float64]{s.AngleFL, s.AngleFR, s.AngleRL, s.AngleRR}
}

// Writer appends samples to a CSV stream.  A nil *Writer discards everything, so callers
// don't need to check whether telemetry is enabled.
type Writer struct {
	lock          sync.Mutex
	out           io.Writer
	closer        io.Closer
	headerWritten bool
}

func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Create opens path for writing.  An empty path disables telemetry and returns nil.
func Create(path string) (*Writer, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "creating telemetry file")
	}
	return &Writer{out: f, closer: f}, nil
}

func (w *Writer) Record(s Sample) error {
	if w == nil {
		return nil
	}
	w.lock.Lock()
	defer w.lock.Unlock()

	records := []Sample{s}
	if !w.headerWritten {
		if err := gocsv.Marshal(records, w.out); err != nil {
			return errors.Wrap(err, "writing telemetry")
		}
		w.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, w.out); err != nil {
		return errors.Wrap(err, "writing telemetry")
	}
	return nil
}

func (w *Writer) Close() error {
	if w == nil || w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

// Read parses a trace written by Writer.
func Read(in io.Reader) ([]Sample, error) {
	var samples []Sample
	if err := gocsv.Unmarshal(in, &samples); err != nil {
		return nil, errors.Wrap(err, "reading telemetry")
	}
	return samples, nil
}

func ReadFile(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening telemetry file")
	}
	defer f.Close()
	return Read(f)
}
