package automation

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/san-kum/gassim/internal/analysis"
	"github.com/san-kum/gassim/internal/config"
	"github.com/san-kum/gassim/internal/dynamo"
	"github.com/san-kum/gassim/internal/experiment"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// EnsembleSummary aggregates independent runs that differ only in seed.
type EnsembleSummary struct {
	Runs            int
	MeanDrift       float64
	MaxDrift        float64
	MeanKS          float64
	StdKS           float64
	PooledKS        float64
	PooledSpeeds    analysis.SpeedSummary
	TotalWallHits   int
	TotalPairHits   int
	TheoryMeanSpeed float64
}

// RunEnsemble runs cfg with seeds seedStart..seedStart+runs-1 concurrently
// and summarizes energy drift and how closely the equilibrium speeds follow
// Maxwell-Boltzmann.
func RunEnsemble(ctx context.Context, cfg *config.Config, runs int, seedStart int64, registry *experiment.Registry, logger *log.Logger) (*EnsembleSummary, []*dynamo.Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if runs < 1 {
		return nil, nil, fmt.Errorf("%w: runs must be at least 1, got %d", dynamo.ErrInvalidConfiguration, runs)
	}
	if registry == nil {
		registry = experiment.NewRegistry()
	}
	logger = discard(logger)

	ens := dynamo.NewEnsemble(registry.Factory(cfg), runs, seedStart).
		WithMetrics(func() []dynamo.Metric { return registry.DefaultMetrics(cfg) }).
		WithLogger(logger)

	results, err := ens.Run(ctx, cfg.SimConfig())
	if err != nil {
		return nil, nil, err
	}

	return Summarize(cfg, results), results, nil
}

// Summarize computes an EnsembleSummary from finished runs of cfg.
func Summarize(cfg *config.Config, results []*dynamo.Result) *EnsembleSummary {
	mb := analysis.MaxwellBoltzmann{Mass: cfg.Mass, InitialSpeed: cfg.InitialSpeed}
	sum := &EnsembleSummary{Runs: len(results), TheoryMeanSpeed: mb.MeanSpeed()}
	if len(results) == 0 {
		return sum
	}

	drifts := make([]float64, len(results))
	ks := make([]float64, len(results))
	var pooled []float64

	for i, r := range results {
		drifts[i] = r.EnergyDrift
		speeds := equilibriumSpeeds(r.Trajectory)
		ks[i] = analysis.KolmogorovSmirnov(speeds, mb)
		pooled = append(pooled, speeds...)
		sum.TotalWallHits += r.Collisions.WallHits
		sum.TotalPairHits += r.Collisions.PairHits
	}

	sum.MeanDrift = stat.Mean(drifts, nil)
	sum.MaxDrift = floats.Max(drifts)
	sum.MeanKS = stat.Mean(ks, nil)
	if len(ks) > 1 {
		sum.StdKS = stat.StdDev(ks, nil)
	}
	sum.PooledKS = analysis.KolmogorovSmirnov(pooled, mb)
	sum.PooledSpeeds = analysis.Summarize(pooled)
	return sum
}
