package experiment

import (
	"fmt"
	"sort"
	"strings"

	"github.com/san-kum/gassim/internal/config"
	"github.com/san-kum/gassim/internal/dynamo"
	"github.com/san-kum/gassim/internal/metrics"
	"github.com/san-kum/gassim/internal/physics"
	"golang.org/x/exp/rand"
)

type Registry struct {
	rules   map[string]physics.CollisionRule
	metrics map[string]func(cfg *config.Config) dynamo.Metric
}

func NewRegistry() *Registry {
	r := &Registry{
		rules:   make(map[string]physics.CollisionRule),
		metrics: make(map[string]func(cfg *config.Config) dynamo.Metric),
	}

	for _, rule := range physics.Rules() {
		r.rules[rule.String()] = rule
	}

	r.metrics["energy"] = func(cfg *config.Config) dynamo.Metric { return metrics.NewEnergy(cfg.Mass) }
	r.metrics["energy_drift"] = func(cfg *config.Config) dynamo.Metric { return metrics.NewEnergyDrift(cfg.Mass) }
	r.metrics["momentum_drift"] = func(cfg *config.Config) dynamo.Metric { return metrics.NewMomentumDrift(cfg.Mass) }
	r.metrics["containment"] = func(cfg *config.Config) dynamo.Metric { return metrics.NewContainment(cfg.BoxSize) }
	r.metrics["min_separation"] = func(cfg *config.Config) dynamo.Metric { return metrics.NewMinSeparation() }
	r.metrics["mean_speed"] = func(cfg *config.Config) dynamo.Metric { return metrics.NewMeanSpeed() }

	return r
}

func (r *Registry) GetRule(name string) (physics.CollisionRule, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return physics.RuleElastic, nil
	}
	rule, ok := r.rules[name]
	if !ok {
		return physics.RuleElastic, fmt.Errorf("%w: unknown collision rule: %s", dynamo.ErrInvalidConfiguration, name)
	}
	return rule, nil
}

func (r *Registry) GetMetric(name string, cfg *config.Config) (dynamo.Metric, error) {
	fn, ok := r.metrics[name]
	if !ok {
		return nil, fmt.Errorf("unknown metric: %s", name)
	}
	return fn(cfg), nil
}

func (r *Registry) ListRules() []string { return sortedKeys(r.rules) }
func (r *Registry) ListMetrics() []string { return sortedKeys(r.metrics) }

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics is the set attached to every CLI run.
func (r *Registry) DefaultMetrics(cfg *config.Config) []dynamo.Metric {
	return []dynamo.Metric{
		metrics.NewEnergyDrift(cfg.Mass),
		metrics.NewMomentumDrift(cfg.Mass),
		metrics.NewMinSeparation(),
		metrics.NewContainment(cfg.BoxSize),
		metrics.NewMeanSpeed(),
	}
}

// NewGas builds the gas described by cfg with velocity angles drawn from a
// source seeded with seed.
func (r *Registry) NewGas(cfg *config.Config, seed int64) (*physics.Gas, error) {
	rule, err := r.GetRule(cfg.Rule)
	if err != nil {
		return nil, err
	}
	return physics.NewGas(cfg.Params(), rule, rand.New(rand.NewSource(uint64(seed))))
}

// Factory adapts NewGas for dynamo.Ensemble.
func (r *Registry) Factory(cfg *config.Config) dynamo.Factory {
	return func(seed int64) (dynamo.System, error) {
		return r.NewGas(cfg, seed)
	}
}
