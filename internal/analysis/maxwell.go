package analysis

import (
	"math"

	"github.com/san-kum/gassim/internal/physics"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
)

// MaxwellBoltzmann is the 2D speed distribution at the temperature implied by
// every particle starting at InitialSpeed: kT = 0.5*m*v0².
type MaxwellBoltzmann struct {
	Mass         float64
	InitialSpeed float64
}

// For builds the distribution from a gas's fixed mass and initial speed.
func For(g *physics.Gas) MaxwellBoltzmann {
	return MaxwellBoltzmann{Mass: g.Mass(), InitialSpeed: g.InitialSpeed()}
}

// MaxwellBoltzmannDensity returns the density as a plain function of speed.
func MaxwellBoltzmannDensity(mass, initialSpeed float64) func(v float64) float64 {
	return MaxwellBoltzmann{Mass: mass, InitialSpeed: initialSpeed}.Density
}

// KT is the average kinetic energy, used as the thermal energy.
func (mb MaxwellBoltzmann) KT() float64 {
	return 0.5 * mb.Mass * mb.InitialSpeed * mb.InitialSpeed
}

// Sigma2 is kT/m.
func (mb MaxwellBoltzmann) Sigma2() float64 {
	return mb.KT() / mb.Mass
}

// Density is exp(-v²/2σ²)·v/σ². It is total over the reals; only v ≥ 0 is
// physical. A zero initial speed yields NaN.
func (mb MaxwellBoltzmann) Density(v float64) float64 {
	s2 := mb.Sigma2()
	return math.Exp(-v*v/(2*s2)) * v / s2
}

// CDF is the probability that a speed is at most v.
func (mb MaxwellBoltzmann) CDF(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return 1 - math.Exp(-v*v/(2*mb.Sigma2()))
}

// MeanSpeed is σ·sqrt(π/2).
func (mb MaxwellBoltzmann) MeanSpeed() float64 {
	return math.Sqrt(mb.Sigma2()) * math.Sqrt(math.Pi/2)
}

// MostProbableSpeed is the mode of the density, σ.
func (mb MaxwellBoltzmann) MostProbableSpeed() float64 {
	return math.Sqrt(mb.Sigma2())
}

// Curve samples the density at n evenly spaced speeds in [0, vmax].
func (mb MaxwellBoltzmann) Curve(vmax float64, n int) (vs, fs []float64) {
	if n < 2 {
		n = 2
	}
	vs = floats.Span(make([]float64, n), 0, vmax)
	fs = make([]float64, n)
	for i, v := range vs {
		fs[i] = mb.Density(v)
	}
	return vs, fs
}

// Normalization integrates the density over [0, vmax] with the trapezoidal
// rule on n points. For vmax well past the bulk it should be close to one.
func (mb MaxwellBoltzmann) Normalization(vmax float64, n int) float64 {
	vs, fs := mb.Curve(vmax, n)
	return integrate.Trapezoidal(vs, fs)
}
