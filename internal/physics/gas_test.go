package physics

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/gassim/internal/dynamo"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r2"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func TestValidate_Invalid(t *testing.T) {
	base := Params{Count: 4, Mass: 1, Radius: 1, BoxSize: 10, InitialSpeed: 2}

	tests := []struct {
		name   string
		modify func(p *Params)
	}{
		{"zero count", func(p *Params) { p.Count = 0 }},
		{"negative count", func(p *Params) { p.Count = -3 }},
		{"zero mass", func(p *Params) { p.Mass = 0 }},
		{"zero radius", func(p *Params) { p.Radius = 0 }},
		{"negative radius", func(p *Params) { p.Radius = -1 }},
		{"zero box", func(p *Params) { p.BoxSize = 0 }},
		{"negative speed", func(p *Params) { p.InitialSpeed = -1 }},
		{"nan speed", func(p *Params) { p.InitialSpeed = math.NaN() }},
		{"box not wider than diameter", func(p *Params) { p.Count = 1; p.BoxSize = 2 }},
		{"spacing below diameter", func(p *Params) { p.Count = 100; p.BoxSize = 15 }},
		{"grid pitch overlaps", func(p *Params) { p.Count = 9; p.BoxSize = 6 }},
		{"single particle outside box", func(p *Params) { p.Count = 1; p.BoxSize = 3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.modify(&p)
			err := Validate(p)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, dynamo.ErrInvalidConfiguration) {
				t.Errorf("expected ErrInvalidConfiguration, got %v", err)
			}
			if _, err := NewGas(p, RuleElastic, newRand(1)); err == nil {
				t.Error("NewGas accepted invalid params")
			}
		})
	}
}

func TestGridPositions_Layout(t *testing.T) {
	pos := GridPositions(4, 1, 10)
	expected := []r2.Vec{{X: 3.5, Y: 3.5}, {X: 3.5, Y: 6.5}, {X: 6.5, Y: 3.5}, {X: 6.5, Y: 6.5}}

	if len(pos) != len(expected) {
		t.Fatalf("expected %d positions, got %d", len(expected), len(pos))
	}
	for i := range expected {
		if math.Abs(pos[i].X-expected[i].X) > 1e-12 || math.Abs(pos[i].Y-expected[i].Y) > 1e-12 {
			t.Errorf("position %d = %v, want %v", i, pos[i], expected[i])
		}
	}
}

func TestGridPositions_TruncatesRowMajor(t *testing.T) {
	// 5 particles on a 3x3 grid: first column full, then two of the second.
	pos := GridPositions(5, 0.5, 12)
	if len(pos) != 5 {
		t.Fatalf("expected 5 positions, got %d", len(pos))
	}
	if pos[0].X != pos[1].X || pos[1].X != pos[2].X {
		t.Errorf("first three points should share x, got %v", pos[:3])
	}
	if pos[3].X <= pos[0].X || pos[3].Y != pos[0].Y {
		t.Errorf("fourth point should start the next column, got %v", pos[3])
	}
}

func TestNewGas_GridNonOverlap(t *testing.T) {
	tests := []Params{
		{Count: 1, Mass: 1, Radius: 1, BoxSize: 10, InitialSpeed: 1},
		{Count: 4, Mass: 1, Radius: 1, BoxSize: 10, InitialSpeed: 2},
		{Count: 20, Mass: 1, Radius: 0.2, BoxSize: 40, InitialSpeed: 3},
		{Count: 49, Mass: 2, Radius: 0.4, BoxSize: 20, InitialSpeed: 1},
		{Count: 100, Mass: 1, Radius: 0.3, BoxSize: 40, InitialSpeed: 3},
		{Count: 9, Mass: 1, Radius: 0.5, BoxSize: 10, InitialSpeed: 2},
	}

	for _, p := range tests {
		g, err := NewGas(p, RuleElastic, newRand(7))
		if err != nil {
			t.Fatalf("count=%d: unexpected error: %v", p.Count, err)
		}
		if g.Len() != p.Count || len(g.Velocities()) != p.Count {
			t.Errorf("count=%d: got %d positions, %d velocities", p.Count, g.Len(), len(g.Velocities()))
		}
		if d := g.MinSeparation(); d < 2*p.Radius*(1-1e-9) {
			t.Errorf("count=%d: min separation %f below diameter %f", p.Count, d, 2*p.Radius)
		}
		for i, q := range g.Positions() {
			if q.X < p.Radius || q.X > p.BoxSize-p.Radius || q.Y < p.Radius || q.Y > p.BoxSize-p.Radius {
				t.Errorf("count=%d: particle %d at %v outside interior", p.Count, i, q)
			}
		}
	}
}

func TestNewGas_InitialSpeed(t *testing.T) {
	p := Params{Count: 20, Mass: 1, Radius: 0.2, BoxSize: 40, InitialSpeed: 3}
	g, err := NewGas(p, RuleElastic, newRand(42))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, s := range g.Speeds(nil) {
		if math.Abs(s-p.InitialSpeed) > 1e-12 {
			t.Errorf("particle %d speed %f, want %f", i, s, p.InitialSpeed)
		}
	}

	expectedKE := float64(p.Count) * 0.5 * p.Mass * p.InitialSpeed * p.InitialSpeed
	if math.Abs(g.KineticEnergy()-expectedKE) > 1e-9 {
		t.Errorf("kinetic energy %f, want %f", g.KineticEnergy(), expectedKE)
	}
}

func TestNewGas_SeedDeterminism(t *testing.T) {
	p := Params{Count: 16, Mass: 1, Radius: 0.5, BoxSize: 20, InitialSpeed: 1.5}

	a, _ := NewGas(p, RuleElastic, newRand(99))
	b, _ := NewGas(p, RuleElastic, newRand(99))
	c, _ := NewGas(p, RuleElastic, newRand(100))

	same := true
	for i := range a.Velocities() {
		if a.Velocities()[i] != b.Velocities()[i] {
			t.Fatalf("velocity %d differs for equal seeds", i)
		}
		if a.Velocities()[i] != c.Velocities()[i] {
			same = false
		}
	}
	if same {
		t.Error("different seeds produced identical velocities")
	}
}

func TestNewGasFromState_LengthMismatch(t *testing.T) {
	p := Params{Count: 2, Mass: 1, Radius: 1, BoxSize: 10}
	_, err := NewGasFromState(p, RuleElastic, []r2.Vec{{X: 1, Y: 1}}, []r2.Vec{{}, {}})
	if !errors.Is(err, dynamo.ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestGas_CloneIsIndependent(t *testing.T) {
	p := Params{Count: 4, Mass: 1, Radius: 1, BoxSize: 10, InitialSpeed: 2}
	g, _ := NewGas(p, RuleLiteral, newRand(3))
	c := g.Clone()

	c.Velocities()[0] = r2.Vec{X: 100, Y: 100}
	if g.Velocities()[0] == c.Velocities()[0] {
		t.Error("clone shares velocity storage")
	}
	if c.Rule() != RuleLiteral {
		t.Errorf("clone rule = %v, want literal", c.Rule())
	}
}

func TestGas_Momentum(t *testing.T) {
	p := Params{Count: 2, Mass: 2, Radius: 1, BoxSize: 10}
	g, _ := NewGasFromState(p, RuleElastic,
		[]r2.Vec{{X: 3, Y: 5}, {X: 7, Y: 5}},
		[]r2.Vec{{X: 1, Y: 2}, {X: -3, Y: 0.5}},
	)
	m := g.Momentum()
	if math.Abs(m.X-(-4)) > 1e-12 || math.Abs(m.Y-5) > 1e-12 {
		t.Errorf("momentum = %v, want {-4 5}", m)
	}
}
