package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/edaniels/golog"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/config"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/kinematics"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/pca9685"
)

var CLI struct {
	Config string `help:"YAML config file with the servo wiring." type:"path" env:"STEER_CONFIG"`
}

func main() {
	kong.Parse(&CLI, kong.Description("Steering servo test program."))
	logger := golog.NewDevelopmentLogger("servotests")

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		logger.Fatalw("Bad config", "error", err)
	}

	pwmController, err := pca9685.Open(cfg.Sink.Bus)
	if err != nil {
		logger.Fatalw("Failed to open PCA9685", "error", err)
	}
	defer pwmController.Close()

	if err := pwmController.Configure(); err != nil {
		logger.Fatalw("Failed to configure PCA9685", "error", err)
	}
	steering, err := pca9685.NewSteering(pwmController, cfg.Sink.Servos, cfg.Sink.ServoTravel, logger)
	if err != nil {
		logger.Fatalw("Bad servo config", "error", err)
	}

	fmt.Println(
		`Commands:
    s <n> <position>   # Raw servo position on a port
    a <wheel> <angle>  # Steering angle for a wheel

<n>        Port number 0-15
<position> Servo position 0.0-1.0; 0.5=centre
<wheel>    0-3: front-left, front-right, rear-left, rear-right
<angle>    Degrees, anticlockwise positive`)

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("\nFailed to read stdin: ", err)
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		switch parts[0] {
		case "s", "a":
			if len(parts) < 3 {
				fmt.Println("Not enough parameters")
				continue
			}
			n, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Println("Expected int, not ", parts[1])
				continue
			}
			v, err := strconv.ParseFloat(parts[2], 64)
			if err != nil {
				fmt.Println("Expected float, not ", parts[2])
				continue
			}
			if parts[0] == "s" {
				fmt.Printf("Setting servo %d to %f\n", n, v)
				err = pwmController.SetServo(n, v)
			} else {
				if n < 0 || n >= kinematics.NumWheels {
					fmt.Println("Expected 0 <= wheel < 4")
					continue
				}
				w := kinematics.Wheel(n)
				fmt.Printf("Steering %v to %.1f (servo %.3f)\n", w, v, steering.ServoValue(w, v))
				err = steering.SetSteerPosition(w, v)
			}
			if err != nil {
				fmt.Println("Failed to write to PCA9685: ", err)
			}
		default:
			fmt.Println("Unknown command", parts[0])
		}
	}
}
