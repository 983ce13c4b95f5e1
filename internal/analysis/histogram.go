package analysis

import (
	"math"
	"sort"

	"github.com/san-kum/gassim/internal/dynamo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Histogram is a density-normalized histogram: the bar areas sum to one over
// the in-range samples.
type Histogram struct {
	Edges    []float64 // len(Density)+1
	Density  []float64
	Counts   []float64
	Overflow int // samples at or above the last edge
}

func (h Histogram) Centers() []float64 {
	c := make([]float64, len(h.Density))
	for i := range c {
		c[i] = 0.5 * (h.Edges[i] + h.Edges[i+1])
	}
	return c
}

func (h Histogram) Width() float64 {
	if len(h.Edges) < 2 {
		return 0
	}
	return h.Edges[1] - h.Edges[0]
}

// SpeedHistogram bins speeds into `bins` equal bins over [0, vmax). A
// non-positive vmax uses the largest speed. Negative and non-finite speeds
// are dropped.
func SpeedHistogram(speeds []float64, bins int, vmax float64) Histogram {
	if bins < 1 {
		bins = 1
	}

	xs := make([]float64, 0, len(speeds))
	for _, v := range speeds {
		if v >= 0 && !math.IsInf(v, 0) {
			xs = append(xs, v)
		}
	}
	sort.Float64s(xs)

	if vmax <= 0 {
		vmax = 1
		if len(xs) > 0 && xs[len(xs)-1] > 0 {
			vmax = math.Nextafter(xs[len(xs)-1], math.Inf(1))
		}
	}

	cut := sort.SearchFloat64s(xs, vmax)
	inRange := xs[:cut]

	edges := floats.Span(make([]float64, bins+1), 0, vmax)
	counts := stat.Histogram(nil, edges, inRange, nil)

	density := make([]float64, bins)
	if len(inRange) > 0 {
		width := edges[1] - edges[0]
		for i, c := range counts {
			density[i] = c / (float64(len(inRange)) * width)
		}
	}

	return Histogram{Edges: edges, Density: density, Counts: counts, Overflow: len(xs) - cut}
}

// KolmogorovSmirnov returns the one-sample KS distance between the empirical
// distribution of speeds and the Maxwell-Boltzmann CDF.
func KolmogorovSmirnov(speeds []float64, mb MaxwellBoltzmann) float64 {
	if len(speeds) == 0 {
		return 0
	}
	xs := append([]float64(nil), speeds...)
	sort.Float64s(xs)

	n := float64(len(xs))
	d := 0.0
	for i, x := range xs {
		f := mb.CDF(x)
		d = math.Max(d, math.Max(f-float64(i)/n, float64(i+1)/n-f))
	}
	return d
}

// PooledSpeeds concatenates the speeds of snapshots [from, Len). Discarding
// the first snapshots skips the transient before the gas thermalizes.
func PooledSpeeds(traj *dynamo.Trajectory, from int) []float64 {
	if from < 0 {
		from = 0
	}
	if from >= traj.Len() {
		return nil
	}
	out := make([]float64, 0, (traj.Len()-from)*traj.Particles())
	for _, snap := range traj.Speeds[from:] {
		out = append(out, snap...)
	}
	return out
}

// SpeedSummary describes a sample of speeds.
type SpeedSummary struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

func Summarize(speeds []float64) SpeedSummary {
	if len(speeds) == 0 {
		return SpeedSummary{}
	}
	s := SpeedSummary{N: len(speeds), Min: floats.Min(speeds), Max: floats.Max(speeds)}
	if len(speeds) > 1 {
		s.Mean, s.StdDev = stat.MeanStdDev(speeds, nil)
	} else {
		s.Mean = speeds[0]
	}
	return s
}

// EnergyConservation returns the total kinetic energy of the first and last
// recorded snapshots.
func EnergyConservation(traj *dynamo.Trajectory, mass float64) (first, last float64) {
	if traj.Len() == 0 {
		return 0, 0
	}
	return traj.KineticEnergy(0, mass), traj.KineticEnergy(traj.Len()-1, mass)
}
