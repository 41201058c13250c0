package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/actuator"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/config"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/drivemode"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/kinematics"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/screen"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/telemetry"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/teleop"
)

var CLI struct {
	Config string `help:"YAML config file." type:"path" env:"STEER_CONFIG"`
	Debug  bool   `help:"Debug logging."`

	Solve   SolveCmd   `cmd:"" help:"Solve one command and print the wheel targets."`
	Replay  ReplayCmd  `cmd:"" help:"Run a command script through the solver into a CSV trace."`
	Summary SummaryCmd `cmd:"" help:"Print statistics of a CSV trace."`
	Render  RenderCmd  `cmd:"" help:"Render the status screen for one command as a PNG."`
}

type Context struct {
	cfg    *config.Config
	logger golog.Logger
	out    io.Writer
}

type CommandFlags struct {
	Mode     kinematics.Mode `help:"in_phase, opposite_phase, pivot_turn or stop." default:"opposite_phase"`
	LinearX  float64         `help:"Forward velocity, m/s." name:"linear-x" short:"x"`
	LinearY  float64         `help:"Leftward velocity, m/s." name:"linear-y" short:"y"`
	AngularZ float64         `help:"Anticlockwise angular velocity, deg/s." name:"angular-z" short:"w"`
}

func (f CommandFlags) Command() kinematics.Command {
	return kinematics.Command{LinearX: f.LinearX, LinearY: f.LinearY, AngularZ: f.AngularZ * math.Pi / 180}
}

type SolveCmd struct {
	CommandFlags
}

func (c *SolveCmd) Run(ctx *Context) error {
	scale, err := ctx.cfg.Scale()
	if err != nil {
		return err
	}
	out := kinematics.NewSolver(ctx.cfg.Geometry).Compute(c.Mode, c.Command(), kinematics.PerWheel[float64]{})
	targets := kinematics.NewOutput(scale, kinematics.ActuationAbsolute, ctx.cfg.Tick).Targets(out)

	fmt.Fprintf(ctx.out, "mode: %v\n", out.Mode)
	tw := tabwriter.NewWriter(ctx.out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "wheel\tspeed\tangle\tspeed (rad/s)\tangle (rad)")
	for _, w := range kinematics.AllWheels {
		fmt.Fprintf(tw, "%v\t%.4f\t%.4f\t%.4f\t%.4f\n", w, targets.Wheel[w], targets.Steer[w], out.Speeds[w], out.Angles[w])
	}
	return tw.Flush()
}

type ReplayCmd struct {
	Script string        `arg:"" help:"YAML command script." type:"existingfile"`
	Out    string        `help:"CSV trace to write." short:"o" default:"trace.csv"`
	Tick   time.Duration `help:"Control tick; defaults to the config's."`
	Clamp  bool          `help:"Clamp commands to the configured limits." default:"true" negatable:""`
}

type clampedSource struct {
	drivemode.CommandSource
	limits teleop.Limits
}

func (s clampedSource) Command() (kinematics.Mode, kinematics.Command) {
	mode, cmd := s.CommandSource.Command()
	return mode, s.limits.Clamp(cmd)
}

func (c *ReplayCmd) Run(ctx *Context) error {
	script, err := teleop.LoadScript(c.Script)
	if err != nil {
		return err
	}
	tick := c.Tick
	if tick <= 0 {
		tick = ctx.cfg.Tick
	}
	scale, err := ctx.cfg.Scale()
	if err != nil {
		return err
	}
	trace, err := telemetry.Create(c.Out)
	if err != nil {
		return err
	}
	defer trace.Close()

	playback := teleop.NewPlayback(script, tick)
	var source drivemode.CommandSource = playback
	if c.Clamp {
		source = clampedSource{CommandSource: playback, limits: ctx.cfg.Limits}
	}
	var sink actuator.Sink = &actuator.Recorder{}
	if ctx.cfg.Integrating() {
		sink = &actuator.PositionRecorder{}
	}
	mock := clock.NewMock()
	drive := drivemode.New(kinematics.NewSolver(ctx.cfg.Geometry), source, sink,
		drivemode.WithClock(mock),
		drivemode.WithTick(tick),
		drivemode.WithScale(scale),
		drivemode.WithLogger(ctx.logger),
		drivemode.WithTelemetry(trace),
	)

	ticks := 0
	for !playback.Done() {
		if t := drive.Step(); t.Err != nil {
			return errors.Wrapf(t.Err, "tick %d", t.N)
		}
		mock.Add(tick)
		ticks++
	}
	fmt.Fprintf(ctx.out, "%d ticks (%v) written to %s\n", ticks, time.Duration(ticks)*tick, c.Out)
	return nil
}

type SummaryCmd struct {
	Trace string `arg:"" help:"CSV trace written by replay or the controller." type:"existingfile"`
}

func (c *SummaryCmd) Run(ctx *Context) error {
	samples, err := telemetry.ReadFile(c.Trace)
	if err != nil {
		return err
	}
	telemetry.Summarise(samples).Print(ctx.out)
	return nil
}

type RenderCmd struct {
	CommandFlags
	Out string `help:"PNG to write." short:"o" default:"screen.png"`
}

func (c *RenderCmd) Run(ctx *Context) error {
	out := kinematics.NewSolver(ctx.cfg.Geometry).Compute(c.Mode, c.Command(), kinematics.PerWheel[float64]{})
	st := screen.State{
		Mode:   out.Mode,
		Angles: out.Angles.Map(func(a float64) float64 { return a * 180 / math.Pi }),
		Speeds: out.Speeds,
	}
	if err := screen.SavePNG(c.Out, st); err != nil {
		return err
	}
	fmt.Fprintf(ctx.out, "wrote %s\n", c.Out)
	return nil
}

func main() {
	k := kong.Parse(&CLI, kong.Description("Offline tools for the four-wheel-steer controller."))

	logger := golog.NewDevelopmentLogger("steerctl")
	if CLI.Debug {
		logger = golog.NewDebugLogger("steerctl")
	}
	cfg, err := config.Load(CLI.Config)
	k.FatalIfErrorf(err)

	err = k.Run(&Context{cfg: cfg, logger: logger, out: os.Stdout})
	k.FatalIfErrorf(err)
}
