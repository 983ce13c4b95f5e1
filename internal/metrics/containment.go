package metrics

import (
	"math"

	"github.com/san-kum/gassim/internal/dynamo"
	"github.com/san-kum/gassim/internal/physics"
)

// Containment is the fraction of frames in which every particle centre lies
// inside [0, box] on both axes.
type Containment struct {
	name       string
	box        float64
	violations int
	samples    int
}

func NewContainment(box float64) *Containment {
	return &Containment{name: "containment", box: box}
}

func (c *Containment) Name() string { return c.name }

func (c *Containment) Observe(f dynamo.Frame) {
	c.samples++
	for _, p := range f.Positions {
		if !(p.X >= 0 && p.X <= c.box && p.Y >= 0 && p.Y <= c.box) {
			c.violations++
			break
		}
	}
}

func (c *Containment) Value() float64 {
	if c.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(c.violations)/float64(c.samples)
}

func (c *Containment) Reset() {
	c.violations = 0
	c.samples = 0
}

// MinSeparation is the smallest centre-to-centre distance over all frames.
// Values below the particle diameter mean overlap slipped through.
type MinSeparation struct {
	name string
	min  float64
}

func NewMinSeparation() *MinSeparation {
	return &MinSeparation{name: "min_separation", min: math.Inf(1)}
}

func (m *MinSeparation) Name() string { return m.name }

func (m *MinSeparation) Observe(f dynamo.Frame) {
	m.min = math.Min(m.min, physics.MinSeparation(f.Positions))
}

func (m *MinSeparation) Value() float64 { return m.min }

func (m *MinSeparation) Reset() { m.min = math.Inf(1) }
