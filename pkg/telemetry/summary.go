package telemetry

import (
	"fmt"
	"io"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/tigerbot-team/tigerbot/steer-controller/pkg/kinematics"
)

type ColumnStats struct {
	Mean, StdDev, Min, Max float64
}

func columnStats(values []float64) ColumnStats {
	if len(values) == 0 {
		return ColumnStats{}
	}
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		std = 0
	}
	cs := ColumnStats{Mean: mean, StdDev: std, Min: math.Inf(1), Max: math.Inf(-1)}
	for _, v := range values {
		cs.Min = math.Min(cs.Min, v)
		cs.Max = math.Max(cs.Max, v)
	}
	return cs
}

// Summary describes a trace.
type Summary struct {
	Ticks       int
	Errors      int
	ModeTicks   map[string]int
	Speeds      kinematics.PerWheel[ColumnStats]
	Angles      kinematics.PerWheel[ColumnStats]
	SpeedSpread ColumnStats
}

// Summarise computes per-wheel statistics.  SpeedSpread is, per tick, the difference between the
// fastest and slowest wheel, which is zero throughout a pure InPhase run.
func Summarise(samples []Sample) Summary {
	s := Summary{Ticks: len(samples), ModeTicks: map[string]int{}}
	var speeds, angles kinematics.PerWheel[[]float64]
	spread := make([]float64, 0, len(samples))
	for _, sample := range samples {
		s.ModeTicks[sample.Mode]++
		if sample.Error != "" {
			s.Errors++
		}
		sp, an := sample.Speeds(), sample.Angles()
		lo, hi := math.Inf(1), math.Inf(-1)
		for w := range sp {
			speeds[w] = append(speeds[w], sp[w])
			angles[w] = append(angles[w], an[w])
			lo, hi = math.Min(lo, sp[w]), math.Max(hi, sp[w])
		}
		spread = append(spread, hi-lo)
	}
	for w := range speeds {
		s.Speeds[w] = columnStats(speeds[w])
		s.Angles[w] = columnStats(angles[w])
	}
	s.SpeedSpread = columnStats(spread)
	return s
}

func (s Summary) Print(out io.Writer) {
	fmt.Fprintf(out, "ticks: %d  errors: %d\n", s.Ticks, s.Errors)
	modes := make([]string, 0, len(s.ModeTicks))
	for m := range s.ModeTicks {
		modes = append(modes, m)
	}
	sort.Strings(modes)
	for _, m := range modes {
		fmt.Fprintf(out, "  %-15s %d\n", m, s.ModeTicks[m])
	}
	fmt.Fprintf(out, "%-12s %10s %10s %10s %10s\n", "", "mean", "stddev", "min", "max")
	row := func(name string, c ColumnStats) {
		fmt.Fprintf(out, "%-12s %10.3f %10.3f %10.3f %10.3f\n", name, c.Mean, c.StdDev, c.Min, c.Max)
	}
	for _, w := range kinematics.AllWheels {
		row(w.String()+" v", s.Speeds[w])
	}
	for _, w := range kinematics.AllWheels {
		row(w.String()+" a", s.Angles[w])
	}
	row("spread", s.SpeedSpread)
}
