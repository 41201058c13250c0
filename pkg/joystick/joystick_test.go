package joystick

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
	"time"

	"go.viam.com/test"
)

func encode(t *testing.T, events ...rawEvent) io.ReadCloser {
	t.Helper()
	var buf bytes.Buffer
	for _, e := range events {
		test.That(t, binary.Write(&buf, binary.LittleEndian, e), test.ShouldBeNil)
	}
	return io.NopCloser(&buf)
}

func TestReadEvent(t *testing.T) {
	j := New(encode(t,
		rawEvent{Time: 1000, Value: 1, Type: 0x81, Number: ButtonOptions},
		rawEvent{Time: 1250, Value: -AxisMax, Type: 2, Number: AxisLStickY},
	))

	first, err := j.ReadEvent()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, first.Type, test.ShouldEqual, EventTypeButton)
	test.That(t, first.Pressed(ButtonOptions), test.ShouldBeTrue)
	test.That(t, first.Pressed(ButtonShare), test.ShouldBeFalse)

	second, err := j.ReadEvent()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, second.String(), test.ShouldEqual, "axis(1)=-32767")
	test.That(t, second.Time.Sub(first.Time), test.ShouldEqual, 250*time.Millisecond)

	_, err = j.ReadEvent()
	test.That(t, err, test.ShouldEqual, io.EOF)
	test.That(t, j.Close(), test.ShouldBeNil)
}
