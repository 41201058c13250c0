// Package pca9685 drives the steering servos from a PCA9685 PWM board.
package pca9685

import (
	"math"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/host"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/kinematics"
)

const (
	DefaultAddr = 0x40

	RegMode1 = 0x00
	RegMode2 = 0x01

	// Each PWM output has two 16-bit (low byte first) registers.
	// First register is the on time, second is the off time.
	RegLEDBase = 0x06

	RegPreScale = 0xfe // Pre-scaler for PWM frequency.
	RegTestMode = 0xff

	NumPorts = 16
	PWMMax   = 4095

	OscillatorFrequency = 25 * physic.MegaHertz
	ServoFrequency      = 50 * physic.Hertz

	ServoMinPulseDuration = 1000 * time.Microsecond
	ServoMaxPulseDuration = 2000 * time.Microsecond
)

// PreScale returns the prescaler register value for an output frequency.
func PreScale(f physic.Frequency) byte {
	return byte(math.Round(float64(OscillatorFrequency)/(float64(f)*(PWMMax+1))) - 1)
}

// pulseToPWM converts a pulse length into an off-time count at freq.
func pulseToPWM(pulse time.Duration, f physic.Frequency) float64 {
	period := float64(time.Second) * float64(physic.Hertz) / float64(f)
	return PWMMax * float64(pulse) / period
}

type bus interface {
	Tx(w, r []byte) error
}

type PCA9685 struct {
	dev    bus
	closer func() error
}

// Open initialises periph and opens the board on the named I2C bus ("" for the first bus).
func Open(busName string) (*PCA9685, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "initialising periph")
	}
	b, err := i2creg.Open(busName)
	if err != nil {
		return nil, errors.Wrapf(err, "opening I2C bus %q", busName)
	}
	return &PCA9685{
		dev:    &i2c.Dev{Bus: b, Addr: DefaultAddr},
		closer: b.Close,
	}, nil
}

func (p *PCA9685) writeReg(reg byte, data ...byte) error {
	return p.dev.Tx(append([]byte{reg}, data...), nil)
}

// Configure puts the board into 50Hz servo mode.
func (p *PCA9685) Configure() error {
	// Put device to sleep.
	if err := p.writeReg(RegMode1, 0x11); err != nil {
		return err
	}
	if err := p.writeReg(RegPreScale, PreScale(ServoFrequency)); err != nil {
		return err
	}
	// Trigger a reset
	if err := p.writeReg(RegMode1, 0x01); err != nil {
		return err
	}
	// Required delay after reset.
	time.Sleep(1 * time.Millisecond)
	// Enable.
	return p.writeReg(RegMode1, 0x81)
}

// SetServo sets a servo position, 0 being the shortest pulse and 1 the longest.
func (p *PCA9685) SetServo(port int, value float64) error {
	if port < 0 || port >= NumPorts {
		return errors.Errorf("servo port out of range: %d", port)
	}
	value = math.Max(0, math.Min(1, value))

	minPWM := pulseToPWM(ServoMinPulseDuration, ServoFrequency)
	maxPWM := pulseToPWM(ServoMaxPulseDuration, ServoFrequency)
	pwmValue := uint16(minPWM + value*(maxPWM-minPWM))
	addr := RegLEDBase + port*4

	return p.writeReg(byte(addr), 0, 0, byte(pwmValue&0xff), byte(pwmValue>>8))
}

func (p *PCA9685) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

// ServoConfig places one steering servo.
type ServoConfig struct {
	Port int `yaml:"port"`
	// Angle (actuator units) the servo sits at when centred.
	Trim float64 `yaml:"trim"`
	// Invert for servos mounted upside down.
	Invert bool `yaml:"invert"`
}

// Steering maps steering angles onto four servos.  Hobby servos don't report their position,
// so SteerPositions returns what was last commanded.
type Steering struct {
	board  *PCA9685
	servos kinematics.PerWheel[ServoConfig]
	// Angle either side of centre at full servo travel.
	travel float64
	logger golog.Logger

	lock     sync.Mutex
	commands kinematics.PerWheel[float64]
}

func NewSteering(board *PCA9685, servos kinematics.PerWheel[ServoConfig], travel float64, logger golog.Logger) (*Steering, error) {
	if !(travel > 0) {
		return nil, errors.Errorf("pca9685: servo travel must be positive, got %v", travel)
	}
	return &Steering{
		board:  board,
		servos: servos,
		travel: travel,
		logger: logger,
	}, nil
}

// ServoValue converts a steering angle to the 0..1 servo range.
func (s *Steering) ServoValue(w kinematics.Wheel, angle float64) float64 {
	cfg := s.servos[w]
	a := angle + cfg.Trim
	if cfg.Invert {
		a = -a
	}
	v := 0.5 + a/(2*s.travel)
	if v < 0 || v > 1 {
		s.logger.Debugw("steering angle beyond servo travel", "wheel", w, "angle", angle)
	}
	return v
}

func (s *Steering) SetSteerPosition(w kinematics.Wheel, angle float64) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.board.SetServo(s.servos[w].Port, s.ServoValue(w, angle)); err != nil {
		return err
	}
	s.commands[w] = angle
	return nil
}

func (s *Steering) SteerPositions() (kinematics.PerWheel[float64], error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.commands, nil
}
