package tunable

import (
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"
)

func TestTunables(t *testing.T) {
	logger, logs := golog.NewObservedTestLogger(t)
	ts := New(logger)
	test.That(t, ts.Current(), test.ShouldBeNil)
	test.That(t, ts.SelectNext(), test.ShouldBeNil)

	speed := ts.Create("speed", 500, 0, 1000, 100)
	turn := ts.Create("turn", 90, 10, 0, 0)

	test.That(t, ts.Current(), test.ShouldEqual, speed)
	test.That(t, speed.Add(3), test.ShouldEqual, 800)
	test.That(t, speed.Add(5), test.ShouldEqual, 1000)
	test.That(t, speed.Add(-20), test.ShouldEqual, 0)

	test.That(t, ts.SelectNext(), test.ShouldEqual, turn)
	test.That(t, turn.Add(1000), test.ShouldEqual, 1090)
	test.That(t, turn.Add(-2000), test.ShouldEqual, 10)
	test.That(t, ts.SelectNext(), test.ShouldEqual, speed)
	test.That(t, ts.SelectPrev(), test.ShouldEqual, turn)

	test.That(t, logs.FilterMessage("Tunable").Len(), test.ShouldEqual, 5)
}
