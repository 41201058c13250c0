package screen

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/kinematics"
)

func TestRender(t *testing.T) {
	img := Render(State{
		Mode:         kinematics.OppositePhase,
		Angles:       kinematics.PerWheel[float64]{20, 15, -20, -15},
		Speeds:       kinematics.PerWheel[float64]{1, 1, -1, 1},
		BatteryVolts: 12.4,
		Fault:        true,
	})
	test.That(t, img.Bounds(), test.ShouldResemble, image.Rect(0, 0, S, S))

	// The front-left wheel is drawn in yellow at its centre.
	r, g, b, _ := img.At(34, 38).RGBA()
	test.That(t, r>>8, test.ShouldEqual, 255)
	test.That(t, g>>8, test.ShouldBeGreaterThan, 200)
	test.That(t, b>>8, test.ShouldEqual, 0)

	// Background stays black.
	r, g, b, _ = img.At(2, 120).RGBA()
	test.That(t, r|g|b, test.ShouldEqual, 0)
}

func TestRGB565(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, S, S))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(1, 0, color.RGBA{B: 255, A: 255})
	buf := RGB565(img)
	test.That(t, buf, test.ShouldHaveLength, S*S*2)

	// (0,0) lands at the end of the first column, (1,0) at the end of the second.
	test.That(t, buf[(S-1)*2+1], test.ShouldEqual, byte(0xf8))
	test.That(t, buf[(S-1)*2], test.ShouldEqual, byte(0))
	test.That(t, buf[(S-1)*2+S*2], test.ShouldEqual, byte(0x1f))
}

func TestSavePNGAndState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screen.png")
	test.That(t, SavePNG(path, State{Mode: kinematics.PivotTurn}), test.ShouldBeNil)
	info, err := os.Stat(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.Size(), test.ShouldBeGreaterThan, 0)

	var s Screen
	s.Update(State{Mode: kinematics.InPhase, BatteryVolts: 7.4})
	test.That(t, s.State().Mode, test.ShouldEqual, kinematics.InPhase)
}

func TestLoopNoDevice(t *testing.T) {
	var s Screen
	logger, logs := golog.NewObservedTestLogger(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.LoopUpdatingScreen(ctx, filepath.Join(t.TempDir(), "nofb"), logger)
	test.That(t, logs.FilterMessage("Failed to open screen, ignoring").Len(), test.ShouldEqual, 1)
}
