package automation

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/gassim/internal/config"
	"github.com/san-kum/gassim/internal/dynamo"
	"github.com/san-kum/gassim/internal/experiment"
	"github.com/san-kum/gassim/internal/storage"
)

const scenarioYAML = `
name: rules
description: elastic against literal on the tutorial box
preset: tutorial
steps:
  - name: elastic
    seed: 3
    save_as: elastic-run
  - name: literal
    rule: literal
    seed: 3
    set:
      steps: 50
      initial_speed: 1.5
`

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadScenario(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if sc.Name != "rules" || sc.Preset != "tutorial" || len(sc.Steps) != 2 {
		t.Fatalf("unexpected scenario: %+v", sc)
	}

	cfg, err := sc.StepConfig(sc.Steps[1])
	if err != nil {
		t.Fatalf("StepConfig: %v", err)
	}
	if cfg.Rule != "literal" || cfg.Steps != 50 || cfg.InitialSpeed != 1.5 || cfg.Seed != 3 || cfg.Count != 4 {
		t.Errorf("unexpected step config: %+v", cfg)
	}

	if _, err := LoadScenario(writeScenario(t, "name: empty\n")); err == nil {
		t.Error("expected error for scenario without steps")
	}
}

func TestStepConfig_Errors(t *testing.T) {
	sc := &Scenario{Preset: "nope"}
	if _, err := sc.StepConfig(ScenarioStep{}); err == nil {
		t.Error("expected error for unknown preset")
	}

	sc = &Scenario{}
	if _, err := sc.StepConfig(ScenarioStep{Set: map[string]any{"gravity": 9.8}}); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestRunScenario(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	if err != nil {
		t.Fatal(err)
	}
	store := storage.New(t.TempDir())

	results, err := RunScenario(context.Background(), sc, experiment.NewRegistry(), store, nil)
	if err != nil {
		t.Fatalf("RunScenario: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	if results[0].RunID != "elastic-run" {
		t.Errorf("first step run id = %q", results[0].RunID)
	}
	if _, err := store.Load("elastic-run"); err != nil {
		t.Errorf("saved run missing: %v", err)
	}
	if results[1].RunID != "" {
		t.Errorf("unsaved step has run id %q", results[1].RunID)
	}
	if results[1].Result.Trajectory.Len() != 50 {
		t.Errorf("literal step recorded %d steps, want 50", results[1].Result.Trajectory.Len())
	}
	if results[0].Result.EnergyDrift > 1e-9 {
		t.Errorf("elastic step drifted: %v", results[0].Result.EnergyDrift)
	}
}

func TestRunSweep(t *testing.T) {
	base := config.GetPreset("tutorial")
	base.Steps = 40

	sweep := &ParameterSweep{Base: base, ParamName: "radius", ParamMin: 0.5, ParamMax: 3, NumSteps: 3}
	results, err := RunSweep(context.Background(), sweep, experiment.NewRegistry(), nil)
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	if results[0].ParamValue != 0.5 || results[0].Err != nil {
		t.Errorf("first point: %+v", results[0])
	}
	// radius 3 cannot fit a 2x2 grid in a 10 box
	if !errors.Is(results[2].Err, dynamo.ErrInvalidConfiguration) {
		t.Errorf("last point should be invalid, got %+v", results[2])
	}
	if base.Radius != 1 {
		t.Error("sweep modified the base config")
	}
}

func TestRunSweep_Validation(t *testing.T) {
	tests := []ParameterSweep{
		{Base: config.DefaultConfig(), ParamName: "gravity", NumSteps: 2},
		{Base: config.DefaultConfig(), ParamName: "mass", NumSteps: 0},
	}
	for _, sw := range tests {
		if _, err := RunSweep(context.Background(), &sw, experiment.NewRegistry(), nil); err == nil {
			t.Errorf("expected error for %+v", sw)
		}
	}

	one := &ParameterSweep{ParamMin: 2, ParamMax: 5, NumSteps: 1}
	if v := one.Values(); len(v) != 1 || v[0] != 2 {
		t.Errorf("Values = %v", v)
	}
}

func TestRunEnsemble(t *testing.T) {
	cfg := config.GetPreset("tutorial")
	cfg.Steps = 60

	summary, results, err := RunEnsemble(context.Background(), cfg, 4, 10, nil, nil)
	if err != nil {
		t.Fatalf("RunEnsemble: %v", err)
	}
	if summary.Runs != 4 || len(results) != 4 {
		t.Fatalf("runs = %d, results = %d", summary.Runs, len(results))
	}
	if summary.MaxDrift > 1e-9 || summary.MeanDrift > summary.MaxDrift {
		t.Errorf("drift mean %v max %v", summary.MeanDrift, summary.MaxDrift)
	}
	if summary.PooledSpeeds.N != 4*30*4 {
		t.Errorf("pooled %d speeds, want %d", summary.PooledSpeeds.N, 4*30*4)
	}
	if summary.PooledKS <= 0 || summary.PooledKS > 1 {
		t.Errorf("pooled KS = %v", summary.PooledKS)
	}

	bad := config.GetPreset("tutorial")
	bad.Radius = 10
	if _, _, err := RunEnsemble(context.Background(), bad, 2, 0, nil, nil); !errors.Is(err, dynamo.ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestRunEnsemble_RunCount(t *testing.T) {
	cfg := config.GetPreset("tutorial")
	cfg.Steps = 10

	tests := []struct {
		name string
		runs int
	}{
		{"zero", 0},
		{"negative", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := RunEnsemble(context.Background(), cfg, tt.runs, 1, nil, nil)
			if !errors.Is(err, dynamo.ErrInvalidConfiguration) {
				t.Errorf("runs=%d: expected ErrInvalidConfiguration, got %v", tt.runs, err)
			}
		})
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(config.DefaultConfig(), nil)
	if s.Runs != 0 || s.TheoryMeanSpeed <= 0 {
		t.Errorf("unexpected empty summary: %+v", s)
	}
}

func TestCompareRules(t *testing.T) {
	cfg := config.GetPreset("tutorial")
	cfg.Count = 9
	cfg.Radius = 0.5
	cfg.Dt = 0.05
	cfg.Steps = 200

	out, err := CompareRules(context.Background(), cfg, nil, nil)
	if err != nil {
		t.Fatalf("CompareRules: %v", err)
	}
	if len(out) != 2 || out[0].Rule != "elastic" || out[1].Rule != "literal" {
		t.Fatalf("unexpected comparison: %+v", out)
	}
	if out[0].EnergyDrift > 1e-9 {
		t.Errorf("elastic drift = %v", out[0].EnergyDrift)
	}
	if out[0].InitialEnergy != out[1].InitialEnergy {
		t.Errorf("runs did not share the initial state: %v vs %v", out[0].InitialEnergy, out[1].InitialEnergy)
	}
}

func TestDivergence(t *testing.T) {
	cfg := config.GetPreset("tutorial")
	cfg.Seed = 4

	res, err := Divergence(context.Background(), cfg, 1e-9, cfg.Radius, nil, nil)
	if err != nil {
		t.Fatalf("Divergence: %v", err)
	}
	if len(res.Separation) != 100 {
		t.Fatalf("separation has %d steps, want 100", len(res.Separation))
	}
	if res.Separation[0] != 0 {
		t.Errorf("twins start apart: %v", res.Separation[0])
	}
	if res.Separation[99] <= 0 {
		t.Error("perturbation never moved the twin")
	}
	if math.IsNaN(res.Exponent) || math.IsInf(res.Exponent, 0) {
		t.Errorf("exponent = %v", res.Exponent)
	}

	neg, err := Divergence(context.Background(), cfg, -1e-9, cfg.Radius, nil, nil)
	if err != nil {
		t.Fatalf("Divergence with negative epsilon: %v", err)
	}
	if neg.Separation[0] != 0 || neg.Separation[99] <= 0 {
		t.Errorf("negative nudge: start %v end %v", neg.Separation[0], neg.Separation[99])
	}

	if _, err := Divergence(context.Background(), cfg, 0, 1, nil, nil); !errors.Is(err, dynamo.ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration for zero epsilon, got %v", err)
	}
}
