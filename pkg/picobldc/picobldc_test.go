package picobldc

import (
	"encoding/binary"
	"testing"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/kinematics"
)

type fakeDevice struct {
	regs   map[byte]uint16
	writes [][]byte
	fail   int
	closed int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{regs: map[byte]uint16{byte(RegMot3Calib): 0x1234}}
}

func (f *fakeDevice) Write(buf []byte) error {
	if f.fail > 0 {
		f.fail--
		return errors.New("nack")
	}
	f.writes = append(f.writes, append([]byte(nil), buf...))
	f.regs[buf[0]] = binary.BigEndian.Uint16(buf[1:])
	return nil
}

func (f *fakeDevice) ReadReg(reg byte, buf []byte) error {
	binary.BigEndian.PutUint16(buf, f.regs[reg])
	return nil
}

func (f *fakeDevice) Close() error {
	f.closed++
	return nil
}

func newTestPico(t *testing.T, dev *fakeDevice) *PicoBLDC {
	t.Helper()
	p, err := newWithDevice(func() (device, error) { return dev, nil }, 360, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return p
}

func TestMotorValue(t *testing.T) {
	p := newTestPico(t, newFakeDevice())
	test.That(t, p.MotorValue(kinematics.FrontLeft, 0), test.ShouldEqual, int16(0))
	test.That(t, p.MotorValue(kinematics.FrontLeft, 180), test.ShouldEqual, int16(0x3000))
	test.That(t, p.MotorValue(kinematics.FrontRight, 180), test.ShouldEqual, int16(-0x3000))
	test.That(t, p.MotorValue(kinematics.RearLeft, 10000), test.ShouldEqual, int16(MotorFullRange))
	test.That(t, p.MotorValue(kinematics.RearRight, 10000), test.ShouldEqual, int16(-MotorFullRange))
}

func TestSetWheelVelocity(t *testing.T) {
	dev := newFakeDevice()
	p := newTestPico(t, dev)

	test.That(t, p.SetWheelVelocity(kinematics.FrontLeft, 360), test.ShouldBeNil)
	test.That(t, dev.regs[byte(RegCtrl)], test.ShouldEqual, RegCtrlEnableI2CControl|RegCtrlRun)
	test.That(t, dev.regs[byte(RegMot2V)], test.ShouldEqual, uint16(MotorFullRange))

	test.That(t, p.SetWheelVelocity(kinematics.RearRight, 36), test.ShouldBeNil)
	test.That(t, int16(dev.regs[byte(RegMot0V)]), test.ShouldEqual, int16(-2458))

	// Config was written once; it is only refreshed every 100ms.
	ctrlWrites := 0
	for _, w := range dev.writes {
		if w[0] == byte(RegCtrl) {
			ctrlWrites++
		}
	}
	test.That(t, ctrlWrites, test.ShouldEqual, 1)
}

func TestUncalibrated(t *testing.T) {
	dev := newFakeDevice()
	delete(dev.regs, byte(RegMot3Calib))
	p := newTestPico(t, dev)
	err := p.SetWheelVelocity(kinematics.FrontLeft, 10)
	test.That(t, errors.Is(err, ErrNotReady), test.ShouldBeTrue)
	test.That(t, dev.writes, test.ShouldBeEmpty)
}

func TestRetries(t *testing.T) {
	dev := newFakeDevice()
	p := newTestPico(t, dev)

	dev.fail = 3
	test.That(t, p.SetWheelVelocity(kinematics.FrontLeft, 10), test.ShouldBeNil)
	test.That(t, dev.closed, test.ShouldEqual, 3)

	dev.fail = 100
	err := p.SetWheelVelocity(kinematics.FrontLeft, 10)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "nack")
}

func TestTelemetry(t *testing.T) {
	dev := newFakeDevice()
	dev.regs[byte(RegBattV)] = 3000
	p := newTestPico(t, dev)
	v, err := p.BattVolts()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldAlmostEqual, 12.0)
}

func TestNeedsMaxSpeed(t *testing.T) {
	_, err := newWithDevice(func() (device, error) { return newFakeDevice(), nil }, 0, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}
