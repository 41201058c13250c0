// Package config loads the controller's YAML configuration.
package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/chassis"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/hardware"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/kinematics"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/teleop"
)

//go:embed defaults.yaml
var defaultsYAML []byte

const (
	SinkDummy    = "dummy"
	SinkHardware = "hardware"
	SinkSerial   = "serial"
)

type Config struct {
	Geometry    chassis.Geometry `yaml:"geometry"`
	Limits      teleop.Limits    `yaml:"limits"`
	Mode        kinematics.Mode  `yaml:"mode"`
	Tick        time.Duration    `yaml:"tick"`
	OutputScale string           `yaml:"output_scale"`
	Actuation   string           `yaml:"actuation"`

	Sink      SinkConfig      `yaml:"sink"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Joystick  JoystickConfig  `yaml:"joystick"`
	Screen    ScreenConfig    `yaml:"screen"`
	Sound     SoundConfig     `yaml:"sound"`
}

type SinkConfig struct {
	Kind               string `yaml:"kind"`
	hardware.I2CConfig `yaml:",inline"`
	SerialPort         string `yaml:"serial_port"`
	Baud               int    `yaml:"baud"`
}

type TelemetryConfig struct {
	CSVPath string `yaml:"csv_path"`
}

type JoystickConfig struct {
	Device string `yaml:"device"`
}

type ScreenConfig struct {
	Device string `yaml:"device"`
}

type SoundConfig struct {
	Dir string `yaml:"dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	if err := yaml.UnmarshalStrict(defaultsYAML, cfg); err != nil {
		panic(errors.Wrap(err, "embedded defaults"))
	}
	return cfg
}

// Load reads path over the defaults, so the file only needs the fields it changes.  An empty
// path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "reading config")
		}
		if err := yaml.UnmarshalStrict(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parsing %s", path)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Geometry.Validate(); err != nil {
		return err
	}
	if err := c.Limits.Validate(); err != nil {
		return err
	}
	if c.Tick <= 0 {
		return errors.Errorf("tick must be positive, got %v", c.Tick)
	}
	if _, err := c.Scale(); err != nil {
		return err
	}
	act, err := kinematics.ParseActuation(c.Actuation)
	if err != nil {
		return err
	}
	switch c.Sink.Kind {
	case SinkDummy:
	case SinkHardware:
		if act == kinematics.ActuationIntegrating {
			return errors.New("the hardware sink takes wheel velocities, not positions")
		}
		if c.Sink.Bus == "" {
			return errors.New("sink: i2c_bus is required")
		}
		if c.Sink.MaxWheelSpeed <= 0 || c.Sink.ServoTravel <= 0 {
			return errors.New("sink: max_wheel_speed and servo_travel must be positive")
		}
	case SinkSerial:
		if c.Sink.SerialPort == "" || c.Sink.Baud <= 0 {
			return errors.New("sink: serial_port and baud are required")
		}
	default:
		return errors.Errorf("sink: unknown kind %q", c.Sink.Kind)
	}
	return nil
}

func (c *Config) Scale() (kinematics.Scale, error) {
	return kinematics.ParseScale(c.OutputScale)
}

// Integrating is true if the wheel drives take positions rather than velocities.
func (c *Config) Integrating() bool {
	a, err := kinematics.ParseActuation(c.Actuation)
	return err == nil && a == kinematics.ActuationIntegrating
}

// InUsePath is where WriteInUse records the effective config for a given input file.
func InUsePath(path string) string {
	if path == "" {
		return "steer-in-use.yaml"
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + "-in-use.yaml"
}

// WriteInUse writes the effective configuration next to the file it was loaded from.
func (c *Config) WriteInUse(path string) (string, error) {
	out := InUsePath(path)
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", errors.Wrap(err, "marshalling config")
	}
	if err := os.WriteFile(out, data, 0o666); err != nil {
		return "", errors.Wrap(err, "writing config in use")
	}
	return out, nil
}
