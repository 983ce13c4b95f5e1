package physics

import (
	"fmt"
	"strings"

	"github.com/san-kum/gassim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r2"
)

// CollisionRule selects how a pair impulse is applied to the second particle.
type CollisionRule int

const (
	// RuleElastic subtracts the impulse from i and adds it to j.
	RuleElastic CollisionRule = iota
	// RuleLiteral subtracts the impulse from both i and j.
	RuleLiteral
)

var ruleNames = map[CollisionRule]string{
	RuleElastic: "elastic",
	RuleLiteral: "literal",
}

func (r CollisionRule) String() string {
	if name, ok := ruleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("CollisionRule(%d)", int(r))
}

// ParseCollisionRule accepts "elastic" or "literal"; empty means elastic.
func ParseCollisionRule(s string) (CollisionRule, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return RuleElastic, nil
	}
	for r, n := range ruleNames {
		if n == name {
			return r, nil
		}
	}
	return RuleElastic, fmt.Errorf("%w: unknown collision rule %q", dynamo.ErrInvalidConfiguration, s)
}

// Rules lists the collision rules in declaration order.
func Rules() []CollisionRule {
	return []CollisionRule{RuleElastic, RuleLiteral}
}

// ResolveCollisions updates velocities for wall and particle-particle
// collisions that would happen during the next dt. Positions are not touched.
func ResolveCollisions(g *Gas, dt float64) dynamo.StepStats {
	for i := range g.pos {
		g.predicted[i] = r2.Add(g.pos[i], r2.Scale(dt, g.vel[i]))
	}

	var stats dynamo.StepStats
	stats.WallHits = resolveWalls(g)
	stats.PairHits, stats.DegeneratePairs = resolvePairs(g)
	return stats
}

// resolveWalls reflects each velocity component whose predicted coordinate
// crosses a wall. Both bounds of an axis are checked independently.
func resolveWalls(g *Gas) int {
	lo, hi := g.params.Radius, g.params.BoxSize-g.params.Radius
	hits := 0
	for i, p := range g.predicted {
		if p.X < lo {
			g.vel[i].X = -g.vel[i].X
			hits++
		}
		if p.X > hi {
			g.vel[i].X = -g.vel[i].X
			hits++
		}
		if p.Y < lo {
			g.vel[i].Y = -g.vel[i].Y
			hits++
		}
		if p.Y > hi {
			g.vel[i].Y = -g.vel[i].Y
			hits++
		}
	}
	return hits
}

// resolvePairs checks every unordered pair once, in index order, against the
// predicted positions. The impulse is taken along the line joining the
// current centres. Velocity writes are immediate, so later pairs see the
// updates of earlier ones within the same step.
func resolvePairs(g *Gas) (hits, degenerate int) {
	diameter := 2 * g.params.Radius
	n := len(g.pos)

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if r2.Norm(r2.Sub(g.predicted[i], g.predicted[j])) >= diameter {
				continue
			}

			rdiff := r2.Sub(g.pos[i], g.pos[j])
			rr := r2.Dot(rdiff, rdiff)
			if rr == 0 {
				degenerate++
				continue
			}

			vdiff := r2.Sub(g.vel[i], g.vel[j])
			impulse := r2.Scale(r2.Dot(rdiff, vdiff)/rr, rdiff)

			g.vel[i] = r2.Sub(g.vel[i], impulse)
			if g.rule == RuleLiteral {
				g.vel[j] = r2.Sub(g.vel[j], impulse)
			} else {
				g.vel[j] = r2.Add(g.vel[j], impulse)
			}
			hits++
		}
	}
	return hits, degenerate
}

// Integrate moves every particle by its velocity over dt.
func Integrate(g *Gas, dt float64) {
	for i := range g.pos {
		g.pos[i] = r2.Add(g.pos[i], r2.Scale(dt, g.vel[i]))
	}
}
