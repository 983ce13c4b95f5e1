package metrics

import (
	"math"

	"github.com/san-kum/gassim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r2"
)

func kineticEnergy(mass float64, vel []r2.Vec) float64 {
	e := 0.0
	for _, v := range vel {
		e += 0.5 * mass * r2.Norm2(v)
	}
	return e
}

func totalMomentum(mass float64, vel []r2.Vec) r2.Vec {
	var p r2.Vec
	for _, v := range vel {
		p = r2.Add(p, r2.Scale(mass, v))
	}
	return p
}

// Energy is the time-averaged total kinetic energy.
type Energy struct {
	name        string
	mass        float64
	samples     int
	totalEnergy float64
}

func NewEnergy(mass float64) *Energy {
	return &Energy{name: "energy", mass: mass}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(f dynamo.Frame) {
	e.totalEnergy += kineticEnergy(e.mass, f.Velocities)
	e.samples++
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.totalEnergy / float64(e.samples)
}

func (e *Energy) Reset() {
	e.totalEnergy = 0
	e.samples = 0
}

// EnergyDrift is the largest relative deviation of the kinetic energy from
// its first observed value.
type EnergyDrift struct {
	name          string
	mass          float64
	initialEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift(mass float64) *EnergyDrift {
	return &EnergyDrift{name: "energy_drift", mass: mass}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(f dynamo.Frame) {
	energy := kineticEnergy(e.mass, f.Velocities)

	if e.samples == 0 {
		e.initialEnergy = energy
	}
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 { return e.maxDrift }

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}

// MomentumDrift is the largest change in total momentum magnitude seen
// relative to the first frame. Wall bounces change momentum, so this is
// only near zero for runs without wall hits.
type MomentumDrift struct {
	name     string
	mass     float64
	initial  r2.Vec
	maxDrift float64
	samples  int
}

func NewMomentumDrift(mass float64) *MomentumDrift {
	return &MomentumDrift{name: "momentum_drift", mass: mass}
}

func (m *MomentumDrift) Name() string { return m.name }

func (m *MomentumDrift) Observe(f dynamo.Frame) {
	p := totalMomentum(m.mass, f.Velocities)
	if m.samples == 0 {
		m.initial = p
	}
	m.samples++
	m.maxDrift = math.Max(m.maxDrift, r2.Norm(r2.Sub(p, m.initial)))
}

func (m *MomentumDrift) Value() float64 { return m.maxDrift }

func (m *MomentumDrift) Reset() {
	m.initial = r2.Vec{}
	m.maxDrift = 0
	m.samples = 0
}
