package automation

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/san-kum/gassim/internal/analysis"
	"github.com/san-kum/gassim/internal/config"
	"github.com/san-kum/gassim/internal/dynamo"
	"github.com/san-kum/gassim/internal/experiment"
	"github.com/san-kum/gassim/internal/physics"
)

// DivergenceResult compares a run with a copy whose first particle starts
// with its velocity nudged by Epsilon along x.
type DivergenceResult struct {
	Epsilon    float64
	Separation []float64
	Exponent   float64
}

// Divergence runs cfg and its perturbed twin side by side and fits the
// exponential growth of their separation up to saturate.
func Divergence(ctx context.Context, cfg *config.Config, epsilon, saturate float64, registry *experiment.Registry, logger *log.Logger) (*DivergenceResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if epsilon == 0 {
		return nil, fmt.Errorf("%w: perturbation must be non-zero", dynamo.ErrInvalidConfiguration)
	}
	if registry == nil {
		registry = experiment.NewRegistry()
	}
	logger = discard(logger)

	base, err := registry.NewGas(cfg, cfg.Seed)
	if err != nil {
		return nil, err
	}
	twin := base.Clone()
	twin.Velocities()[0].X += epsilon

	sc := cfg.SimConfig()
	trajs := make([]*dynamo.Trajectory, 2)
	for i, g := range []*physics.Gas{base, twin} {
		sim := dynamo.New(g)
		sim.SetLogger(logger.With("twin", i))
		result, err := sim.Run(ctx, sc)
		if err != nil {
			return nil, err
		}
		trajs[i] = result.Trajectory
	}

	return &DivergenceResult{
		Epsilon:    epsilon,
		Separation: analysis.Separation(trajs[0], trajs[1]),
		Exponent:   analysis.LyapunovExponent(trajs[0], trajs[1], saturate),
	}, nil
}
