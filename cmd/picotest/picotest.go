package main

import (
	"fmt"
	"time"

	"github.com/alecthomas/kong"
	"github.com/edaniels/golog"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/kinematics"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/picobldc"
)

var CLI struct {
	Bus      string        `help:"I2C bus device." default:"/dev/i2c-1"`
	MaxSpeed float64       `help:"Wheel speed (deg/s) at full motor range." default:"1440"`
	Speed    float64       `help:"Wheel speed to spin every wheel at, deg/s." default:"90"`
	Watchdog time.Duration `help:"Motor watchdog timeout." default:"1s"`
}

func main() {
	kong.Parse(&CLI, kong.Description("Pico-BLDC test program: spins all four wheels and prints board telemetry."))
	logger := golog.NewDevelopmentLogger("picotest")

	pico, err := picobldc.New(CLI.Bus, CLI.MaxSpeed, logger)
	if err != nil {
		logger.Fatalw("Failed to open Pico-BLDC", "error", err)
	}
	defer pico.Close()
	logger.Info("Created PicoBLDC object. Enabling watchdog...")

	if err := pico.SetWatchdog(CLI.Watchdog); err != nil {
		logger.Fatalw("Failed to enable watchdog", "error", err)
	}
	logger.Info("Watchdog enabled.")

	for {
		for _, w := range kinematics.AllWheels {
			if err := pico.SetWheelVelocity(w, CLI.Speed); err != nil {
				logger.Warnw("Failed to set wheel speed", "wheel", w, "error", err)
			}
		}
		battV, _ := pico.BattVolts()
		current, _ := pico.CurrentAmps()
		power, _ := pico.PowerWatts()
		tempC, _ := pico.TemperatureC()
		status, _ := pico.Status()
		fmt.Printf("%.1fC %.2fV %.3fA %.3fW Status=%x\n", tempC, battV, current, power, status)
		time.Sleep(500 * time.Millisecond)
	}
}
