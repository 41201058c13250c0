// Package serialsink sends wheel targets to a motor microcontroller over a serial line.
//
// The protocol is line based ASCII.  Host to MCU:
//
//	V <wheel> <velocity>   wheel velocity target
//	P <wheel> <position>   wheel position target (position-only drives)
//	S <wheel> <angle>      steering angle target
//
// MCU to host:
//
//	A <fl> <fr> <rl> <rr>  measured steering angles
//
// Wheels are numbered 0-3: front-left, front-right, rear-left, rear-right.
package serialsink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.bug.st/serial"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/actuator"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/kinematics"
)

type Sink struct {
	port   io.ReadWriteCloser
	logger golog.Logger

	writeLock sync.Mutex

	lock      sync.Mutex
	commanded kinematics.PerWheel[float64]
	measured  kinematics.PerWheel[float64]
	haveMeas  bool
}

var _ actuator.Sink = (*Sink)(nil)

// Open opens the serial port at 8N1.
func Open(portName string, baud int, logger golog.Logger) (*Sink, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", portName)
	}
	return New(port, logger), nil
}

func New(port io.ReadWriteCloser, logger golog.Logger) *Sink {
	return &Sink{port: port, logger: logger}
}

func (s *Sink) send(op byte, w kinematics.Wheel, v float64) error {
	line := fmt.Sprintf("%c %d %s\n", op, int(w), strconv.FormatFloat(v, 'f', 3, 64))
	s.writeLock.Lock()
	defer s.writeLock.Unlock()
	if _, err := io.WriteString(s.port, line); err != nil {
		return errors.Wrap(err, "writing to serial port")
	}
	return nil
}

func (s *Sink) SetWheelVelocity(w kinematics.Wheel, velocity float64) error {
	return s.send('V', w, velocity)
}

func (s *Sink) SetSteerPosition(w kinematics.Wheel, angle float64) error {
	if err := s.send('S', w, angle); err != nil {
		return err
	}
	s.lock.Lock()
	s.commanded[w] = angle
	s.lock.Unlock()
	return nil
}

// SteerPositions returns the last angles reported by the MCU, or the commanded angles until
// it has reported any.
func (s *Sink) SteerPositions() (kinematics.PerWheel[float64], error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.haveMeas {
		return s.measured, nil
	}
	return s.commanded, nil
}

// Monitor reads reports from the MCU until ctx is done or the port fails.
func (s *Sink) Monitor(ctx context.Context) error {
	lines := make(chan string)
	errC := make(chan error, 1)
	go func() {
		scan := bufio.NewScanner(s.port)
		for scan.Scan() {
			select {
			case lines <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		errC <- scan.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errC:
			if err == nil {
				err = io.EOF
			}
			return errors.Wrap(err, "reading from serial port")
		case line := <-lines:
			if err := s.handleLine(line); err != nil {
				s.logger.Warnw("Bad line from MCU", "line", line, "error", err)
			}
		}
	}
}

func (s *Sink) handleLine(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	switch fields[0] {
	case "A":
		if len(fields) != kinematics.NumWheels+1 {
			return errors.Errorf("expected %d angles, got %d", kinematics.NumWheels, len(fields)-1)
		}
		var angles kinematics.PerWheel[float64]
		for i := range angles {
			v, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return errors.Wrapf(err, "angle %d", i)
			}
			angles[i] = v
		}
		s.lock.Lock()
		s.measured = angles
		s.haveMeas = true
		s.lock.Unlock()
	default:
		s.logger.Debugw("MCU", "line", line)
	}
	return nil
}

func (s *Sink) Close() error {
	return s.port.Close()
}

// PositionSink is a Sink for MCUs whose wheel drives only take position targets.
type PositionSink struct {
	*Sink
}

var _ actuator.PositionOnly = PositionSink{}

func (s PositionSink) SetWheelPosition(w kinematics.Wheel, position float64) error {
	return s.send('P', w, position)
}
