package sound

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/kinematics"
)

func TestModeChanged(t *testing.T) {
	var lock sync.Mutex
	var played []string
	logger, logs := golog.NewObservedTestLogger(t)
	p := newPlayer("/sounds", logger, func(path string) error {
		lock.Lock()
		defer lock.Unlock()
		played = append(played, path)
		if len(played) == 2 {
			return errors.New("busy")
		}
		return nil
	})
	p.ModeChanged(kinematics.Stop, kinematics.PivotTurn)
	p.ModeChanged(kinematics.PivotTurn, kinematics.Stop)
	p.Close()
	p.Close()

	test.That(t, played, test.ShouldResemble, []string{"/sounds/pivot_turn.wav", "/sounds/stop.wav"})
	test.That(t, logs.FilterMessage("Unable to play sound").Len(), test.ShouldEqual, 1)
}

func TestDecodeErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := decode(filepath.Join(dir, "missing.wav"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "opening sound")

	junk := filepath.Join(dir, "junk.wav")
	test.That(t, os.WriteFile(junk, []byte("not a wav file at all"), 0o644), test.ShouldBeNil)
	_, err = decode(junk)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "decoding sound")
}
