package screen

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/fogleman/gg"
	"github.com/pkg/errors"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/kinematics"
)

const (
	S = 128

	DefaultDevice = "/dev/fb1"
	refresh       = 500 * time.Millisecond
)

// State is what the screen shows.  Angles are in degrees.
type State struct {
	Mode         kinematics.Mode
	Angles       kinematics.PerWheel[float64]
	Speeds       kinematics.PerWheel[float64]
	BatteryVolts float64
	Fault        bool
}

// Screen holds the latest State for the refresh loop.
type Screen struct {
	lock  sync.Mutex
	state State
}

func (s *Screen) Update(state State) {
	s.lock.Lock()
	s.state = state
	s.lock.Unlock()
}

func (s *Screen) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

// Wheel centres on the 128x128 display, front at the top.
var wheelCentres = kinematics.PerWheel[[2]float64]{
	{34, 38}, {94, 38}, {34, 98}, {94, 98},
}

func Render(state State) image.Image {
	dc := gg.NewContext(S, S)
	dc.SetRGB(0, 0, 0)
	dc.Clear()
	dc.SetRGBA(1, 0.9, 0, 1)
	dc.DrawString(state.Mode.String(), 4, 12)

	// Chassis outline.
	dc.SetLineWidth(1)
	dc.DrawRectangle(34, 38, 60, 60)
	dc.Stroke()

	for w, c := range wheelCentres {
		dc.Push()
		dc.RotateAbout(gg.Radians(-state.Angles[w]), c[0], c[1])
		if state.Speeds[w] < 0 {
			dc.SetRGBA(1, 0.4, 0, 1)
		} else {
			dc.SetRGBA(1, 0.9, 0, 1)
		}
		dc.DrawRectangle(c[0]-5, c[1]-12, 10, 24)
		dc.Fill()
		dc.Pop()
	}

	if state.BatteryVolts > 0 {
		dc.Push()
		dc.Translate(S-34, 0)
		dc.Scale(0.4, 0.4)
		drawPowerBar(dc, state.BatteryVolts)
		dc.Pop()
	}

	if state.Fault {
		dc.Push()
		dc.Translate(S/2, S/2+4)
		DrawWarning(dc)
		dc.Pop()
	}
	return dc.Image()
}

// SavePNG renders state to a PNG file.
func SavePNG(path string, state State) error {
	return errors.Wrap(gg.SavePNG(path, Render(state)), "saving screen image")
}

// RGB565 packs img into the framebuffer layout of the 128x128 panel, which is mounted rotated.
func RGB565(img image.Image) []byte {
	buf := make([]byte, S*S*2)
	for y := 0; y < S; y++ {
		for x := 0; x < S; x++ {
			r, g, b, _ := img.At(x, y).RGBA() // 16-bit pre-multiplied

			rb := byte(r >> (16 - 5))
			gb := byte(g >> (16 - 6)) // Green has 6 bits
			bb := byte(b >> (16 - 5))

			buf[(S-1-y)*2+x*S*2+1] = (rb << 3) | (gb >> 3)
			buf[(S-1-y)*2+x*S*2] = bb | (gb << 5)
		}
	}
	return buf
}

// LoopUpdatingScreen redraws the framebuffer until ctx is done, then blanks it.
func (s *Screen) LoopUpdatingScreen(ctx context.Context, device string, logger golog.Logger) {
	f, err := os.OpenFile(device, os.O_RDWR, 0666)
	if err != nil {
		logger.Infow("Failed to open screen, ignoring", "device", device, "error", err)
		return
	}
	defer f.Close()

	ticker := time.NewTicker(refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_, _ = f.Seek(0, 0)
			_, _ = f.Write(make([]byte, S*S*2))
			return
		case <-ticker.C:
		}

		buf := RGB565(Render(s.State()))
		if _, err := f.Seek(0, 0); err != nil {
			logger.Errorw("Screen failure", "error", err)
			return
		}
		for i := 0; i < S; i++ {
			if _, err := f.Write(buf[i*S*2 : (i+1)*S*2]); err != nil {
				logger.Errorw("Screen failure", "error", err)
				return
			}
			time.Sleep(10 * time.Microsecond)
		}
	}
}

const (
	minCellVoltage = 3
	maxCellVoltage = 4.2
)

func drawPowerBar(dc *gg.Context, voltage float64) {
	var cellVoltage float64
	if voltage > 9 {
		// assume the 4-cell pack
		cellVoltage = voltage / 4
	} else {
		// assume the 2-cell pack
		cellVoltage = voltage / 2
	}
	charge := (cellVoltage - minCellVoltage) / (maxCellVoltage - minCellVoltage)

	// Draw the larger power bar at the bottom. Colour depends on charge level.
	if charge < 0.1 {
		dc.SetRGBA(1, 0.2, 0, 1)
	} else {
		dc.SetRGBA(1, 0.9, 0, 1)
	}
	dc.DrawRectangle(0, 70, 30, 10)
	for n := 2; n < 13; n++ {
		if charge >= (float64(n) / 13) {
			dc.DrawRectangle(2, 75-float64(n)*5, 26, 3)
		}
	}
	dc.Fill()
	dc.DrawString(fmt.Sprintf("%.1fv", voltage), -2, 93)
}

func DrawWarning(dc *gg.Context) {
	dc.SetRGB(1, 0.2, 0)
	dc.DrawRegularPolygon(3, 0, 0, 14, 0)
	dc.Fill()
	dc.SetRGBA(0, 0, 0, 0.9)
	dc.DrawString("!", -3, 3)
}
