// Package optim searches gas configurations for the one that minimizes an
// objective computed from a finished run.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/san-kum/gassim/internal/analysis"
	"github.com/san-kum/gassim/internal/config"
	"github.com/san-kum/gassim/internal/dynamo"
	"github.com/san-kum/gassim/internal/experiment"
	"gonum.org/v1/gonum/floats"
)

// Objective scores a run; lower is better. NaN marks the run as unusable.
type Objective func(cfg *config.Config, result *dynamo.Result) float64

// MetricObjective scores runs by a registry metric.
func MetricObjective(name string) Objective {
	return func(_ *config.Config, result *dynamo.Result) float64 {
		v, ok := result.Metrics[name]
		if !ok {
			return math.NaN()
		}
		return v
	}
}

// KSObjective scores runs by the Kolmogorov-Smirnov distance between the
// second half of their speeds and the Maxwell-Boltzmann distribution.
func KSObjective() Objective {
	return func(cfg *config.Config, result *dynamo.Result) float64 {
		traj := result.Trajectory
		mb := analysis.MaxwellBoltzmann{Mass: cfg.Mass, InitialSpeed: cfg.InitialSpeed}
		return analysis.KolmogorovSmirnov(analysis.PooledSpeeds(traj, traj.Len()/2), mb)
	}
}

// ParseObjective maps "ks" to KSObjective and anything else to the metric of
// that name.
func ParseObjective(name string) Objective {
	if strings.EqualFold(name, "ks") {
		return KSObjective()
	}
	return MetricObjective(name)
}

type GridSearch struct {
	base       *config.Config
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(base *config.Config, params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) == 0 || len(params) != len(ranges) {
		return nil, fmt.Errorf("%w: need one range per parameter, got %d names and %d ranges",
			dynamo.ErrInvalidConfiguration, len(params), len(ranges))
	}
	known := base.GetParams()
	for i, p := range params {
		if _, ok := known[p]; !ok {
			return nil, fmt.Errorf("%w: unknown parameter %q", dynamo.ErrInvalidConfiguration, p)
		}
		if len(ranges[i]) == 0 {
			return nil, fmt.Errorf("%w: empty range for %s", dynamo.ErrInvalidConfiguration, p)
		}
	}
	return &GridSearch{base: base, paramNames: params, ranges: ranges}, nil
}

// ParseRange reads "name=min:max:n" into a parameter name and n evenly
// spaced values; "name=v" is a single value.
func ParseRange(s string) (string, []float64, error) {
	name, bounds, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return "", nil, fmt.Errorf("range %q: want name=min:max:n", s)
	}
	parts := strings.Split(bounds, ":")
	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return "", nil, fmt.Errorf("range %q: %w", s, err)
		}
		vals[i] = v
	}
	switch len(vals) {
	case 1:
		return name, vals, nil
	case 3:
		n := int(vals[2])
		if n < 2 || float64(n) != vals[2] {
			return "", nil, fmt.Errorf("range %q: point count must be an integer of at least 2", s)
		}
		return name, floats.Span(make([]float64, n), vals[0], vals[1]), nil
	}
	return "", nil, fmt.Errorf("range %q: want name=min:max:n", s)
}

// Point is one evaluated grid point. Err is set when the configuration was
// invalid or the run failed.
type Point struct {
	Params map[string]float64
	Value  float64
	Err    error
}

// Search runs every grid point and returns the lowest scoring one together
// with all points in visiting order. Only cancellation aborts the search.
func (g *GridSearch) Search(ctx context.Context, registry *experiment.Registry, objective Objective) (Point, []Point, error) {
	best := Point{Value: math.Inf(1)}
	var all []Point

	err := g.searchRecursive(ctx, 0, make(map[string]float64), func(params map[string]float64) {
		pt := g.evaluate(ctx, registry, objective, params)
		all = append(all, pt)
		if pt.Err == nil && pt.Value < best.Value {
			best = pt
		}
	})
	if err != nil {
		return best, all, err
	}
	if best.Params == nil {
		return best, all, fmt.Errorf("%w: no grid point produced a usable run", dynamo.ErrInvalidConfiguration)
	}
	return best, all, nil
}

func (g *GridSearch) searchRecursive(ctx context.Context, depth int, current map[string]float64, visit func(map[string]float64)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		visit(current)
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, visit); err != nil {
			return err
		}
	}
	return nil
}

func (g *GridSearch) evaluate(ctx context.Context, registry *experiment.Registry, objective Objective, params map[string]float64) Point {
	pt := Point{Params: params, Value: math.NaN()}

	cfg := g.base.Clone()
	for k, v := range params {
		if err := cfg.SetParam(k, v); err != nil {
			pt.Err = err
			return pt
		}
	}

	exp := experiment.New(cfg, registry)
	if err := exp.Setup(); err != nil {
		pt.Err = err
		return pt
	}
	result, err := exp.Run(ctx)
	if err != nil {
		pt.Err = err
		return pt
	}

	pt.Value = objective(cfg, result)
	if math.IsNaN(pt.Value) {
		pt.Err = errors.New("objective undefined for this run")
	}
	return pt
}
