package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/config"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/kinematics"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/telemetry"
)

func newContext(t *testing.T) (*Context, *bytes.Buffer) {
	var out bytes.Buffer
	return &Context{cfg: config.Default(), logger: golog.NewTestLogger(t), out: &out}, &out
}

func TestSolve(t *testing.T) {
	ctx, out := newContext(t)
	cmd := &SolveCmd{CommandFlags{Mode: kinematics.InPhase, LinearX: 1, LinearY: 1}}
	test.That(t, cmd.Run(ctx), test.ShouldBeNil)
	test.That(t, out.String(), test.ShouldContainSubstring, "mode: in_phase")
	test.That(t, out.String(), test.ShouldContainSubstring, "45.0000")
}

func TestReplayAndSummary(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "script.yaml")
	test.That(t, os.WriteFile(script, []byte(`
steps:
  - {mode: opposite_phase, duration: 100ms, linear_x: 3, angular_z: 0.5}
  - {mode: pivot_turn, duration: 40ms, angular_z: 1}
  - {mode: stop, duration: 20ms}
`), 0o644), test.ShouldBeNil)
	trace := filepath.Join(dir, "trace.csv")

	ctx, out := newContext(t)
	test.That(t, (&ReplayCmd{Script: script, Out: trace, Clamp: true}).Run(ctx), test.ShouldBeNil)
	test.That(t, out.String(), test.ShouldContainSubstring, "8 ticks")

	samples, err := telemetry.ReadFile(trace)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, samples, test.ShouldHaveLength, 8)
	// Clamped to the default 1 m/s.
	test.That(t, samples[0].LinearX, test.ShouldEqual, 1.0)
	test.That(t, samples[1].TimeSec, test.ShouldAlmostEqual, 0.02)
	test.That(t, samples[7].Mode, test.ShouldEqual, "stop")

	out.Reset()
	test.That(t, (&SummaryCmd{Trace: trace}).Run(ctx), test.ShouldBeNil)
	test.That(t, out.String(), test.ShouldContainSubstring, "ticks: 8")
	test.That(t, out.String(), test.ShouldContainSubstring, "opposite_phase")
}

func TestRender(t *testing.T) {
	ctx, _ := newContext(t)
	png := filepath.Join(t.TempDir(), "screen.png")
	cmd := &RenderCmd{CommandFlags: CommandFlags{Mode: kinematics.PivotTurn, AngularZ: 30}, Out: png}
	test.That(t, cmd.Run(ctx), test.ShouldBeNil)
	_, err := os.Stat(png)
	test.That(t, err, test.ShouldBeNil)
}
