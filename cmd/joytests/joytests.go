package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/edaniels/golog"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/config"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/joystick"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/kinematics"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/teleop"
)

var CLI struct {
	Config string `help:"YAML config file." type:"path" env:"STEER_CONFIG"`
	Device string `help:"Joystick device; overrides the config." env:"JOYSTICK_DEVICE"`
}

// Prints each joystick event with the command and wheel targets it produces, without driving anything.
func main() {
	kong.Parse(&CLI, kong.Description("Joystick mapping test program."))
	logger := golog.NewDevelopmentLogger("joytests")

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		logger.Fatalw("Bad config", "error", err)
	}
	device := cfg.Joystick.Device
	if CLI.Device != "" {
		device = CLI.Device
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	j, err := joystick.NewJoystick(device)
	if err != nil {
		logger.Fatalw("Failed to open joystick", "device", device, "error", err)
	}
	go func() {
		<-ctx.Done()
		j.Close()
	}()

	source := teleop.NewJoystickSource(cfg.Mode, cfg.Limits, logger)
	solver := kinematics.NewSolver(cfg.Geometry)
	for ctx.Err() == nil {
		event, err := j.ReadEvent()
		if err != nil {
			if ctx.Err() == nil {
				logger.Errorw("Failed to read from joystick", "error", err)
				os.Exit(1)
			}
			return
		}
		source.OnJoystickEvent(event)
		mode, cmd := source.Command()
		out := solver.Compute(mode, cmd, solver.Last().Angles)
		fmt.Printf("%-14s %-14v x=%+.2f y=%+.2f w=%+.2f  angles=%v\n",
			event, mode, cmd.LinearX, cmd.LinearY, cmd.AngularZ,
			out.Angles.Map(func(a float64) float64 { return math.Round(a * 180 / math.Pi) }))
	}
}
