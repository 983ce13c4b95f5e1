package dynamo

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// Factory builds an independent system for the given seed.
type Factory func(seed int64) (System, error)

// Ensemble runs numRuns systems with seeds seedStart, seedStart+1, ... in
// parallel. Each run owns its own System, Simulator and metrics.
type Ensemble struct {
	factory   Factory
	metrics   func() []Metric
	logger    *log.Logger
	numRuns   int
	seedStart int64
}

func NewEnsemble(factory Factory, numRuns int, seedStart int64) *Ensemble {
	return &Ensemble{factory: factory, numRuns: numRuns, seedStart: seedStart}
}

// WithMetrics sets a constructor called once per run for fresh metrics.
func (e *Ensemble) WithMetrics(fn func() []Metric) *Ensemble {
	e.metrics = fn
	return e
}

func (e *Ensemble) WithLogger(l *log.Logger) *Ensemble {
	e.logger = l
	return e
}

func (e *Ensemble) Run(ctx context.Context, cfg Config) ([]*Result, error) {
	if e.numRuns < 1 {
		return nil, fmt.Errorf("%w: ensemble needs at least one run, got %d", ErrInvalidConfiguration, e.numRuns)
	}
	results := make([]*Result, e.numRuns)
	errs := make([]error, e.numRuns)

	var wg sync.WaitGroup
	for i := 0; i < e.numRuns; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			cfgCopy := cfg
			cfgCopy.Seed = e.seedStart + int64(idx)

			sys, err := e.factory(cfgCopy.Seed)
			if err != nil {
				errs[idx] = fmt.Errorf("run %d (seed %d): %w", idx, cfgCopy.Seed, err)
				return
			}

			s := New(sys)
			if e.logger != nil {
				s.SetLogger(e.logger.With("run", idx))
			}
			if e.metrics != nil {
				for _, m := range e.metrics() {
					s.AddMetric(m)
				}
			}

			results[idx], errs[idx] = s.Run(ctx, cfgCopy)
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}
