package automation

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/san-kum/gassim/internal/analysis"
	"github.com/san-kum/gassim/internal/config"
	"github.com/san-kum/gassim/internal/dynamo"
	"github.com/san-kum/gassim/internal/experiment"
	"github.com/san-kum/gassim/internal/storage"
	"gopkg.in/yaml.v3"
)

// Scenario defines a scripted sequence of runs
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Preset      string         `yaml:"preset"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is a single run. Preset overrides the scenario preset and Set
// applies config keys on top of it.
type ScenarioStep struct {
	Name   string         `yaml:"name"`
	Preset string         `yaml:"preset"`
	Rule   string         `yaml:"rule"`
	Seed   *int64         `yaml:"seed"`
	Set    map[string]any `yaml:"set"`
	SaveAs string         `yaml:"save_as"`
}

// StepResult is the outcome of one scenario step.
type StepResult struct {
	Name   string
	RunID  string
	Config *config.Config
	Result *dynamo.Result
	KS     float64
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s has no steps", path)
	}

	return &scenario, nil
}

func discard(l *log.Logger) *log.Logger {
	if l == nil {
		return log.New(io.Discard)
	}
	return l
}

// equilibriumSpeeds pools the second half of a run, after the initial
// mono-speed state has had time to relax.
func equilibriumSpeeds(traj *dynamo.Trajectory) []float64 {
	return analysis.PooledSpeeds(traj, traj.Len()/2)
}

func ksDistance(cfg *config.Config, traj *dynamo.Trajectory) float64 {
	mb := analysis.MaxwellBoltzmann{Mass: cfg.Mass, InitialSpeed: cfg.InitialSpeed}
	return analysis.KolmogorovSmirnov(equilibriumSpeeds(traj), mb)
}

// StepConfig resolves the configuration of one step.
func (s *Scenario) StepConfig(step ScenarioStep) (*config.Config, error) {
	cfg := config.DefaultConfig()

	preset := step.Preset
	if preset == "" {
		preset = s.Preset
	}
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s", preset)
		}
	}

	keys := make([]string, 0, len(step.Set))
	for k := range step.Set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := cfg.Set(k, fmt.Sprint(step.Set[k])); err != nil {
			return nil, err
		}
	}

	if step.Rule != "" {
		cfg.Rule = step.Rule
	}
	if step.Seed != nil {
		cfg.Seed = *step.Seed
	}
	return cfg, nil
}

// RunScenario executes all steps in a scenario. Steps with save_as are
// written to store when it is non-nil.
func RunScenario(ctx context.Context, scenario *Scenario, registry *experiment.Registry, store *storage.Store, logger *log.Logger) ([]StepResult, error) {
	logger = discard(logger)
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step%d", i+1)
		}
		logger.Info("running scenario step", "scenario", scenario.Name, "step", i+1, "of", len(scenario.Steps), "name", name)

		cfg, err := scenario.StepConfig(step)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}

		exp := experiment.New(cfg, registry).WithLogger(logger.With("step", name))
		if err := exp.Setup(); err != nil {
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}

		result, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		sr := StepResult{Name: name, Config: cfg, Result: result, KS: ksDistance(cfg, result.Trajectory)}

		if step.SaveAs != "" && store != nil {
			if err := store.SaveAs(step.SaveAs, cfg, result); err != nil {
				return results, fmt.Errorf("step %d save: %w", i+1, err)
			}
			sr.RunID = step.SaveAs
		}

		results = append(results, sr)
	}

	return results, nil
}
