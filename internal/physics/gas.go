package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/gassim/internal/dynamo"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
)

// gridTolerance absorbs rounding in the evenly spaced grid coordinates.
const gridTolerance = 1e-9

// Params are the population-wide physical constants of a gas.
type Params struct {
	Count        int     `json:"count"`
	Mass         float64 `json:"mass"`
	Radius       float64 `json:"radius"`
	BoxSize      float64 `json:"box_size"`
	InitialSpeed float64 `json:"initial_speed"`
}

// GridSize is the number of grid lines per axis, ceil(sqrt(Count)).
func (p Params) GridSize() int {
	return int(math.Ceil(math.Sqrt(float64(p.Count))))
}

// Spacing is the grid cell width, BoxSize/GridSize.
func (p Params) Spacing() float64 {
	return p.BoxSize / float64(p.GridSize())
}

// Validate reports whether p describes a gas that can be laid out on the
// initial grid without overlap. Errors wrap dynamo.ErrInvalidConfiguration.
func Validate(p Params) error {
	if err := validateScalars(p); err != nil {
		return err
	}

	diameter := 2 * p.Radius
	if p.BoxSize <= diameter {
		return invalid("box size %g must exceed particle diameter %g", p.BoxSize, diameter)
	}
	if s := p.Spacing(); s < diameter {
		return invalid("grid spacing %g (box %g / %d cells) is below particle diameter %g",
			s, p.BoxSize, p.GridSize(), diameter)
	}

	coords := gridCoords(p.GridSize(), p.Radius, p.BoxSize)
	if len(coords) > 1 {
		if pitch := coords[1] - coords[0]; pitch < diameter*(1-gridTolerance) {
			return invalid("grid pitch %g is below particle diameter %g; increase box size", pitch, diameter)
		}
	}
	if first, last := coords[0], coords[len(coords)-1]; first < p.Radius || last > p.BoxSize-p.Radius+gridTolerance {
		return invalid("grid coordinates [%g, %g] leave the box interior [%g, %g]",
			first, last, p.Radius, p.BoxSize-p.Radius)
	}

	return nil
}

func validateScalars(p Params) error {
	switch {
	case p.Count < 1:
		return invalid("count must be at least 1, got %d", p.Count)
	case !(p.Mass > 0) || math.IsInf(p.Mass, 0):
		return invalid("mass must be positive, got %g", p.Mass)
	case !(p.Radius > 0) || math.IsInf(p.Radius, 0):
		return invalid("radius must be positive, got %g", p.Radius)
	case !(p.BoxSize > 0) || math.IsInf(p.BoxSize, 0):
		return invalid("box size must be positive, got %g", p.BoxSize)
	case !(p.InitialSpeed >= 0) || math.IsInf(p.InitialSpeed, 0):
		return invalid("initial speed must be non-negative, got %g", p.InitialSpeed)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", dynamo.ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}

// gridCoords returns n evenly spaced coordinates from radius+spacing/2 to
// box-radius-spacing/2 inclusive. A single coordinate sits at the start.
func gridCoords(n int, radius, box float64) []float64 {
	spacing := box / float64(n)
	start := radius + spacing/2
	end := box - radius - spacing/2
	if n == 1 {
		return []float64{start}
	}
	return floats.Span(make([]float64, n), start, end)
}

// GridPositions lays n particles on a ceil(sqrt(n)) square grid in row-major
// order (x varies slower) and keeps the first n points.
func GridPositions(n int, radius, box float64) []r2.Vec {
	size := int(math.Ceil(math.Sqrt(float64(n))))
	coords := gridCoords(size, radius, box)

	pos := make([]r2.Vec, 0, size*size)
	for _, x := range coords {
		for _, y := range coords {
			pos = append(pos, r2.Vec{X: x, Y: y})
		}
	}
	return pos[:n]
}

// Gas is the particle system state. It is exclusively owned by the
// simulator for the duration of a run.
type Gas struct {
	params    Params
	rule      CollisionRule
	pos       []r2.Vec
	vel       []r2.Vec
	predicted []r2.Vec
}

// NewGas validates p, places particles on the grid and draws each velocity
// direction uniformly from [0, 2π) at p.InitialSpeed.
func NewGas(p Params, rule CollisionRule, rng *rand.Rand) (*Gas, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}

	vel := make([]r2.Vec, p.Count)
	for i := range vel {
		angle := 2 * math.Pi * rng.Float64()
		sin, cos := math.Sincos(angle)
		vel[i] = r2.Vec{X: p.InitialSpeed * cos, Y: p.InitialSpeed * sin}
	}

	return &Gas{
		params:    p,
		rule:      rule,
		pos:       GridPositions(p.Count, p.Radius, p.BoxSize),
		vel:       vel,
		predicted: make([]r2.Vec, p.Count),
	}, nil
}

// NewGasFromState builds a gas with explicit positions and velocities.
// Only the scalar parameters are validated; the layout is taken as given.
func NewGasFromState(p Params, rule CollisionRule, pos, vel []r2.Vec) (*Gas, error) {
	if err := validateScalars(p); err != nil {
		return nil, err
	}
	if len(pos) != p.Count || len(vel) != p.Count {
		return nil, invalid("expected %d positions and velocities, got %d and %d", p.Count, len(pos), len(vel))
	}

	g := &Gas{
		params:    p,
		rule:      rule,
		pos:       make([]r2.Vec, p.Count),
		vel:       make([]r2.Vec, p.Count),
		predicted: make([]r2.Vec, p.Count),
	}
	copy(g.pos, pos)
	copy(g.vel, vel)
	return g, nil
}

func (g *Gas) Len() int              { return len(g.pos) }
func (g *Gas) Params() Params        { return g.params }
func (g *Gas) Rule() CollisionRule   { return g.rule }
func (g *Gas) Positions() []r2.Vec   { return g.pos }
func (g *Gas) Velocities() []r2.Vec  { return g.vel }
func (g *Gas) Mass() float64         { return g.params.Mass }
func (g *Gas) Radius() float64       { return g.params.Radius }
func (g *Gas) BoxSize() float64      { return g.params.BoxSize }
func (g *Gas) InitialSpeed() float64 { return g.params.InitialSpeed }

// Step resolves collisions for the coming step and then integrates positions.
func (g *Gas) Step(dt float64) dynamo.StepStats {
	stats := ResolveCollisions(g, dt)
	Integrate(g, dt)
	return stats
}

// Speeds writes the velocity magnitudes into dst, reallocating if needed.
func (g *Gas) Speeds(dst []float64) []float64 {
	if len(dst) != len(g.vel) {
		dst = make([]float64, len(g.vel))
	}
	for i, v := range g.vel {
		dst[i] = r2.Norm(v)
	}
	return dst
}

func (g *Gas) KineticEnergy() float64 {
	e := 0.0
	for _, v := range g.vel {
		e += 0.5 * g.params.Mass * r2.Norm2(v)
	}
	return e
}

func (g *Gas) Momentum() r2.Vec {
	var p r2.Vec
	for _, v := range g.vel {
		p = r2.Add(p, r2.Scale(g.params.Mass, v))
	}
	return p
}

// MinSeparation returns the smallest centre-to-centre distance, or +Inf for
// a single particle.
func (g *Gas) MinSeparation() float64 {
	return MinSeparation(g.pos)
}

func (g *Gas) Clone() *Gas {
	c, _ := NewGasFromState(g.params, g.rule, g.pos, g.vel)
	return c
}

// MinSeparation returns the smallest pairwise distance among pos.
func MinSeparation(pos []r2.Vec) float64 {
	best := math.Inf(1)
	for i := 0; i < len(pos); i++ {
		for j := i + 1; j < len(pos); j++ {
			if d := r2.Norm(r2.Sub(pos[i], pos[j])); d < best {
				best = d
			}
		}
	}
	return best
}
