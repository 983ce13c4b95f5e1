package analysis

import (
	"math"

	"github.com/san-kum/gassim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"
)

// Separation returns, per step, the root-mean-square distance between
// matching particles of two trajectories. The shorter run bounds the length.
func Separation(a, b *dynamo.Trajectory) []float64 {
	n := min(a.Len(), b.Len())
	out := make([]float64, n)
	for k := 0; k < n; k++ {
		pa, pb := a.Positions[k], b.Positions[k]
		m := min(len(pa), len(pb))
		if m == 0 {
			continue
		}
		sum := 0.0
		for i := 0; i < m; i++ {
			sum += r2.Norm2(r2.Sub(pa[i], pb[i]))
		}
		out[k] = math.Sqrt(sum / float64(m))
	}
	return out
}

// LyapunovExponent estimates the exponential growth rate of the separation
// between a run and a slightly perturbed copy, as the least-squares slope of
// ln(separation) against time. Only steps whose separation lies in
// (0, saturate) take part, since growth stops once it reaches the box scale.
// A positive value means nearby initial states diverge.
func LyapunovExponent(a, b *dynamo.Trajectory, saturate float64) float64 {
	sep := Separation(a, b)

	var ts, logs []float64
	for k, d := range sep {
		if d <= 0 || d >= saturate {
			continue
		}
		ts = append(ts, a.Time(k))
		logs = append(logs, math.Log(d))
	}
	if len(ts) < 2 {
		return 0
	}

	_, slope := stat.LinearRegression(ts, logs, nil, false)
	return slope
}
