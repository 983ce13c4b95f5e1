package dynamo

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// System is a fixed population of particles advanced in discrete steps.
// Positions and Velocities return the live, index-aligned slices; callers
// must treat them as read-only.
type System interface {
	Len() int
	Positions() []r2.Vec
	Velocities() []r2.Vec
	Step(dt float64) StepStats
}

// Energetic is implemented by systems that report their total kinetic energy.
type Energetic interface {
	KineticEnergy() float64
}

// StepStats counts the collisions resolved during one step.
type StepStats struct {
	WallHits        int `json:"wall_hits"`
	PairHits        int `json:"pair_hits"`
	DegeneratePairs int `json:"degenerate_pairs"`
}

func (s *StepStats) Add(other StepStats) {
	s.WallHits += other.WallHits
	s.PairHits += other.PairHits
	s.DegeneratePairs += other.DegeneratePairs
}

// Frame is the state handed to metrics and observers before a step is taken.
// The slices are only valid for the duration of the callback.
type Frame struct {
	Step       int
	Time       float64
	Positions  []r2.Vec
	Velocities []r2.Vec
}

type Metric interface {
	Name() string
	Observe(f Frame)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(f Frame)
}

type Config struct {
	Dt            float64
	Duration      float64
	Steps         int
	Seed          int64
	ValidateState bool
}

func DefaultConfig() Config {
	return Config{
		Duration:      10.0,
		Steps:         750,
		ValidateState: true,
	}
}

// Timestep returns Dt when set, otherwise Duration/Steps.
func (c Config) Timestep() float64 {
	if c.Dt > 0 {
		return c.Dt
	}
	if c.Steps > 0 {
		return c.Duration / float64(c.Steps)
	}
	return 0
}

// Trajectory holds one snapshot per step, recorded before the step is taken.
// Positions[k][i] and Speeds[k][i] describe particle i at step k.
type Trajectory struct {
	Dt        float64
	Positions [][]r2.Vec
	Speeds    [][]float64
}

func (t *Trajectory) Len() int { return len(t.Positions) }

func (t *Trajectory) Particles() int {
	if len(t.Positions) == 0 {
		return 0
	}
	return len(t.Positions[0])
}

func (t *Trajectory) Time(step int) float64 { return float64(step) * t.Dt }

// KineticEnergy returns the total kinetic energy at a step, from the
// recorded speeds.
func (t *Trajectory) KineticEnergy(step int, mass float64) float64 {
	e := 0.0
	for _, v := range t.Speeds[step] {
		e += 0.5 * mass * v * v
	}
	return e
}

type Result struct {
	Trajectory  *Trajectory
	Metrics     map[string]float64
	Collisions  StepStats
	EnergyDrift float64
	StepsTaken  int
}

func finite(vs []r2.Vec) bool {
	for _, v := range vs {
		if math.IsNaN(v.X) || math.IsInf(v.X, 0) || math.IsNaN(v.Y) || math.IsInf(v.Y, 0) {
			return false
		}
	}
	return true
}
