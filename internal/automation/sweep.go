package automation

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/san-kum/gassim/internal/config"
	"github.com/san-kum/gassim/internal/dynamo"
	"github.com/san-kum/gassim/internal/experiment"
	"gonum.org/v1/gonum/floats"
)

// SweepParams are the config keys a sweep may vary.
var SweepParams = []string{"count", "radius", "box_size", "initial_speed", "mass"}

// ParameterSweep runs the base configuration at evenly spaced values of one
// parameter.
type ParameterSweep struct {
	Base      *config.Config
	ParamName string
	ParamMin  float64
	ParamMax  float64
	NumSteps  int
}

// SweepResult holds the outcome at one parameter value. Err is set instead
// of the figures when the value gives an invalid gas.
type SweepResult struct {
	ParamValue  float64
	EnergyDrift float64
	KS          float64
	MeanSpeed   float64
	Collisions  dynamo.StepStats
	Err         error
}

func (s *ParameterSweep) validate() error {
	known := false
	for _, p := range SweepParams {
		if p == s.ParamName {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: cannot sweep %q (one of %v)", dynamo.ErrInvalidConfiguration, s.ParamName, SweepParams)
	}
	if s.NumSteps < 1 {
		return fmt.Errorf("%w: sweep needs at least one point", dynamo.ErrInvalidConfiguration)
	}
	return nil
}

// Values returns the parameter values visited by the sweep.
func (s *ParameterSweep) Values() []float64 {
	if s.NumSteps == 1 {
		return []float64{s.ParamMin}
	}
	return floats.Span(make([]float64, s.NumSteps), s.ParamMin, s.ParamMax)
}

// RunSweep executes a parameter sweep
func RunSweep(ctx context.Context, sweep *ParameterSweep, registry *experiment.Registry, logger *log.Logger) ([]SweepResult, error) {
	if err := sweep.validate(); err != nil {
		return nil, err
	}
	logger = discard(logger)

	values := sweep.Values()
	results := make([]SweepResult, 0, len(values))

	for i, v := range values {
		cfg := sweep.Base.Clone()
		if err := cfg.SetParam(sweep.ParamName, v); err != nil {
			return results, err
		}

		sr := SweepResult{ParamValue: v}

		exp := experiment.New(cfg, registry)
		if err := exp.Setup(); err != nil {
			logger.Warn("skipping sweep point", sweep.ParamName, v, "err", err)
			sr.Err = err
			results = append(results, sr)
			continue
		}

		result, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("%s=%g: %w", sweep.ParamName, v, err)
		}

		sr.EnergyDrift = result.EnergyDrift
		sr.KS = ksDistance(cfg, result.Trajectory)
		sr.MeanSpeed = result.Metrics["mean_speed"]
		sr.Collisions = result.Collisions
		results = append(results, sr)

		logger.Info("sweep point", "index", i+1, "of", len(values), sweep.ParamName, v, "ks", sr.KS)
	}

	return results, nil
}
