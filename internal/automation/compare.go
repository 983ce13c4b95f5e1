package automation

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/san-kum/gassim/internal/analysis"
	"github.com/san-kum/gassim/internal/config"
	"github.com/san-kum/gassim/internal/experiment"
)

// RuleComparison is one collision rule's outcome on a shared configuration.
type RuleComparison struct {
	Rule          string
	InitialEnergy float64
	FinalEnergy   float64
	EnergyDrift   float64
	KS            float64
	PairHits      int
}

// CompareRules runs cfg once per registered collision rule with the same
// seed, so only the pair impulse differs between runs.
func CompareRules(ctx context.Context, cfg *config.Config, registry *experiment.Registry, logger *log.Logger) ([]RuleComparison, error) {
	if registry == nil {
		registry = experiment.NewRegistry()
	}
	logger = discard(logger)

	out := make([]RuleComparison, 0, 2)
	for _, rule := range registry.ListRules() {
		c := cfg.Clone()
		c.Rule = rule

		exp := experiment.New(c, registry).WithLogger(logger.With("rule", rule))
		if err := exp.Setup(); err != nil {
			return nil, err
		}
		result, err := exp.Run(ctx)
		if err != nil {
			return nil, err
		}

		first, last := analysis.EnergyConservation(result.Trajectory, c.Mass)
		out = append(out, RuleComparison{
			Rule:          rule,
			InitialEnergy: first,
			FinalEnergy:   last,
			EnergyDrift:   result.EnergyDrift,
			KS:            ksDistance(c, result.Trajectory),
			PairHits:      result.Collisions.PairHits,
		})
	}
	return out, nil
}
