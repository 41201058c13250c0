package config

import (
	"context"
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/actuator"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/hardware"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/serialsink"
)

// OpenSink starts the configured actuator sink.  The returned function stops it and leaves
// the wheels stopped.
func (c *Config) OpenSink(ctx context.Context, logger golog.Logger) (actuator.Sink, func() error, error) {
	switch c.Sink.Kind {
	case SinkDummy, SinkHardware:
		opener := hardware.DummyOpener(logger)
		if c.Sink.Kind == SinkHardware {
			opener = hardware.I2COpener(c.Sink.I2CConfig, logger)
		}
		h := hardware.New(opener, c.Tick, logger)
		h.Start(ctx)
		return h, func() error {
			h.Stop()
			return nil
		}, nil

	case SinkSerial:
		s, err := serialsink.Open(c.Sink.SerialPort, c.Sink.Baud, logger)
		if err != nil {
			return nil, nil, err
		}
		monCtx, cancel := context.WithCancel(ctx)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Monitor(monCtx); err != nil {
				logger.Errorw("Serial monitor stopped", "error", err)
			}
		}()
		var sink actuator.Sink = s
		if c.Integrating() {
			sink = serialsink.PositionSink{Sink: s}
		}
		return sink, func() error {
			err := actuator.StopAll(s)
			cancel()
			err = multierr.Combine(err, errors.Wrap(s.Close(), "closing serial port"))
			wg.Wait()
			return err
		}, nil
	}
	return nil, nil, errors.Errorf("sink: unknown kind %q", c.Sink.Kind)
}
