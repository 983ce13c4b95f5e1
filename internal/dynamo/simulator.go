package dynamo

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/spatial/r2"
)

type Simulator struct {
	sys       System
	metrics   []Metric
	observers []Observer
	logger    *log.Logger
}

func New(sys System) *Simulator {
	return &Simulator{
		sys:       sys,
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
		logger:    log.New(io.Discard),
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) SetLogger(l *log.Logger) {
	if l != nil {
		s.logger = l
	}
}

func (s *Simulator) System() System { return s.sys }

// Run advances the system cfg.Steps times. Each iteration records the
// current positions and speeds, notifies metrics and observers, then steps.
// On cancellation or divergence the partial result is returned with the error.
func (s *Simulator) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	dt := cfg.Timestep()
	n := s.sys.Len()
	traj := &Trajectory{
		Dt:        dt,
		Positions: make([][]r2.Vec, 0, cfg.Steps),
		Speeds:    make([][]float64, 0, cfg.Steps),
	}
	result := &Result{
		Trajectory: traj,
		Metrics:    make(map[string]float64),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	initialEnergy := s.energy()
	s.logger.Info("run started", "particles", n, "steps", cfg.Steps, "dt", dt, "seed", cfg.Seed)

	for i := 0; i < cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			s.finish(result, initialEnergy)
			return result, fmt.Errorf("%w: %w", ErrContextCanceled, ctx.Err())
		default:
		}

		t := traj.Time(i)
		pos := s.sys.Positions()
		vel := s.sys.Velocities()

		snap := make([]r2.Vec, n)
		copy(snap, pos)
		speeds := make([]float64, n)
		for j, v := range vel {
			speeds[j] = r2.Norm(v)
		}
		traj.Positions = append(traj.Positions, snap)
		traj.Speeds = append(traj.Speeds, speeds)

		frame := Frame{Step: i, Time: t, Positions: snap, Velocities: vel}
		for _, m := range s.metrics {
			m.Observe(frame)
		}
		for _, obs := range s.observers {
			obs.OnStep(frame)
		}

		stats := s.sys.Step(dt)
		result.Collisions.Add(stats)
		result.StepsTaken++

		if stats.DegeneratePairs > 0 {
			s.logger.Debug("skipped zero-separation pairs", "step", i, "pairs", stats.DegeneratePairs)
		}

		if cfg.ValidateState && !(finite(s.sys.Positions()) && finite(s.sys.Velocities())) {
			err := &SimulationError{Step: i, Time: t + dt, Wrapped: ErrSimulationDiverged}
			s.logger.Error("run diverged", "step", i, "time", t+dt)
			s.finish(result, initialEnergy)
			return result, err
		}
	}

	s.finish(result, initialEnergy)
	s.logger.Info("run finished",
		"steps", result.StepsTaken,
		"wall_hits", result.Collisions.WallHits,
		"pair_hits", result.Collisions.PairHits,
		"energy_drift", result.EnergyDrift,
	)

	return result, nil
}

func (s *Simulator) finish(result *Result, initialEnergy float64) {
	finalEnergy := s.energy()
	if initialEnergy != 0 {
		result.EnergyDrift = math.Abs(finalEnergy-initialEnergy) / math.Abs(initialEnergy)
	}
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
}

func validateConfig(cfg Config) error {
	if cfg.Steps < 1 {
		return fmt.Errorf("%w: steps must be at least 1, got %d", ErrInvalidStep, cfg.Steps)
	}
	dt := cfg.Timestep()
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return fmt.Errorf("%w: dt must be positive, got %f", ErrInvalidStep, dt)
	}
	return nil
}

func (s *Simulator) energy() float64 {
	if ec, ok := s.sys.(Energetic); ok {
		return ec.KineticEnergy()
	}
	return 0
}
