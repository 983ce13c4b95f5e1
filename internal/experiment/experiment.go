package experiment

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/san-kum/gassim/internal/config"
	"github.com/san-kum/gassim/internal/dynamo"
	"github.com/san-kum/gassim/internal/physics"
)

// Experiment is one seeded run of a configured gas.
type Experiment struct {
	cfg       *config.Config
	registry  *Registry
	gas       *physics.Gas
	simulator *dynamo.Simulator
	logger    *log.Logger
}

func New(cfg *config.Config, registry *Registry) *Experiment {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Experiment{cfg: cfg, registry: registry}
}

func (e *Experiment) WithLogger(l *log.Logger) *Experiment {
	e.logger = l
	return e
}

// Setup validates the configuration, builds the gas and attaches metrics.
// With no metric names the registry defaults are used.
func (e *Experiment) Setup(metricNames ...string) error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}

	gas, err := e.registry.NewGas(e.cfg, e.cfg.Seed)
	if err != nil {
		return err
	}

	ms := e.registry.DefaultMetrics(e.cfg)
	if len(metricNames) > 0 {
		ms = make([]dynamo.Metric, 0, len(metricNames))
		for _, name := range metricNames {
			m, err := e.registry.GetMetric(name, e.cfg)
			if err != nil {
				return err
			}
			ms = append(ms, m)
		}
	}

	e.gas = gas
	e.simulator = dynamo.New(gas)
	e.simulator.SetLogger(e.logger)
	for _, m := range ms {
		e.simulator.AddMetric(m)
	}
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*dynamo.Result, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	return e.simulator.Run(ctx, e.cfg.SimConfig())
}

func (e *Experiment) Config() *config.Config { return e.cfg }

// Gas returns the live system; after Run it holds the final state.
func (e *Experiment) Gas() *physics.Gas { return e.gas }

// GetSimulator returns the underlying simulator for adding observers
func (e *Experiment) GetSimulator() *dynamo.Simulator {
	return e.simulator
}
