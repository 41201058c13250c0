package hardware

import (
	"github.com/edaniels/golog"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/actuator"
	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/kinematics"
)

const dummyBatteryVolts = 12.6

type dummyDrive struct {
	logger golog.Logger
}

func (d *dummyDrive) SetWheelVelocity(w kinematics.Wheel, velocity float64) error {
	d.logger.Debugw("DHW: SetWheelVelocity", "wheel", w, "velocity", velocity)
	return nil
}

func (d *dummyDrive) BattVolts() (float64, error) {
	return dummyBatteryVolts, nil
}

func (d *dummyDrive) Close() error {
	d.logger.Info("DHW: Close")
	return nil
}

// DummyOpener opens pretend devices that only log, for running the controller off the robot.
func DummyOpener(logger golog.Logger) Opener {
	return func() (*Devices, error) {
		logger.Info("DHW: Open")
		drive := &dummyDrive{logger: logger}
		return &Devices{
			Drive:    drive,
			Steering: actuator.NewDummy(logger),
			Close:    drive.Close,
		}, nil
	}
}
