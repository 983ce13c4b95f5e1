package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/gassim/internal/dynamo"
	"github.com/san-kum/gassim/internal/physics"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Count != 20 || cfg.Radius != 0.2 || cfg.BoxSize != 40 || cfg.InitialSpeed != 3 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if dt := cfg.SimConfig().Timestep(); dt <= 0 {
		t.Errorf("default timestep should be positive, got %v", dt)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestPresetsAreValid(t *testing.T) {
	for _, name := range ListPresets() {
		if err := GetPreset(name).Validate(); err != nil {
			t.Errorf("preset %s: %v", name, err)
		}
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("tutorial")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Count != 4 || cfg.Dt != 0.01 || cfg.Steps != 100 {
		t.Errorf("unexpected tutorial preset: %+v", cfg)
	}

	cfg.Count = 999
	if Presets["tutorial"].Count != 4 {
		t.Error("GetPreset returned shared storage")
	}

	if GetPreset("nonexistent") != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	names := ListPresets()
	if len(names) != len(Presets) {
		t.Fatalf("expected %d presets, got %d", len(Presets), len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("presets not sorted: %v", names)
		}
	}
}

func TestLoadSave_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")

	cfg := DefaultConfig()
	cfg.Count = 9
	cfg.Rule = "literal"
	cfg.Seed = 42
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, cfg)
	}
}

func TestLoad_PartialYAMLKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yml")
	if err := os.WriteFile(path, []byte("count: 16\nbox_size: 20\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Count != 16 || cfg.BoxSize != 20 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Radius != DefaultRadius || cfg.Steps != DefaultSteps {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoad_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.toml")
	body := "count = 9\nradius = 0.5\nbox_size = 10.0\nrule = \"literal\"\nvalidate_state = false\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Count != 9 || cfg.Radius != 0.5 || cfg.BoxSize != 10 || cfg.Rule != "literal" || cfg.ValidateState {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.InitialSpeed != DefaultInitialSpeed {
		t.Errorf("default initial speed lost: %v", cfg.InitialSpeed)
	}
}

func TestLoadOver_KeepsBase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "override.yaml")
	if err := os.WriteFile(path, []byte("initial_speed: 5\n"), 0644); err != nil {
		t.Fatal(err)
	}

	base := GetPreset("tutorial")
	cfg, err := LoadOver(path, base)
	if err != nil {
		t.Fatalf("LoadOver: %v", err)
	}
	if cfg.InitialSpeed != 5 || cfg.Count != 4 || cfg.Steps != 100 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if base.InitialSpeed != 2 {
		t.Error("LoadOver modified its base")
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("count: [oops"), 0644)
	if _, err := Load(bad); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestLoadEnv(t *testing.T) {
	const key = "GASSIM_TEST_DATA_DIR"
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte(key+"=/tmp/gassim-runs\n"), 0644); err != nil {
		t.Fatal(err)
	}
	os.Unsetenv(key)
	t.Cleanup(func() { os.Unsetenv(key) })

	if err := LoadEnv(path); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if got := Env(key, "data"); got != "/tmp/gassim-runs" {
		t.Errorf("Env = %q", got)
	}
	if got := Env("GASSIM_UNSET_FOR_TEST", "fallback"); got != "fallback" {
		t.Errorf("Env fallback = %q", got)
	}
	if err := LoadEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("missing env file should be ignored, got %v", err)
	}
}

func TestConversions(t *testing.T) {
	cfg := GetPreset("tutorial")

	want := physics.Params{Count: 4, Mass: 1, Radius: 1, BoxSize: 10, InitialSpeed: 2}
	if cfg.Params() != want {
		t.Errorf("Params = %+v", cfg.Params())
	}

	sc := cfg.SimConfig()
	if sc.Dt != 0.01 || sc.Steps != 100 || !sc.ValidateState {
		t.Errorf("SimConfig = %+v", sc)
	}

	rule, err := cfg.CollisionRule()
	if err != nil || rule != physics.RuleElastic {
		t.Errorf("CollisionRule = %v, %v", rule, err)
	}
}

func TestSetAndSetParam(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		key, value string
		check      func() bool
	}{
		{"count", "36", func() bool { return cfg.Count == 36 }},
		{"radius", "0.25", func() bool { return cfg.Radius == 0.25 }},
		{"steps", "10", func() bool { return cfg.Steps == 10 }},
		{"rule", "literal", func() bool { return cfg.Rule == "literal" }},
		{"validate_state", "false", func() bool { return !cfg.ValidateState }},
	}
	for _, tt := range tests {
		if err := cfg.Set(tt.key, tt.value); err != nil {
			t.Errorf("Set(%s): %v", tt.key, err)
			continue
		}
		if !tt.check() {
			t.Errorf("Set(%s, %s) not applied", tt.key, tt.value)
		}
	}

	for _, bad := range [][2]string{{"gravity", "1"}, {"count", "many"}, {"rule", "sticky"}} {
		if err := cfg.Set(bad[0], bad[1]); !errors.Is(err, dynamo.ErrInvalidConfiguration) {
			t.Errorf("Set(%s, %s) error = %v", bad[0], bad[1], err)
		}
	}

	if len(ParamNames()) != len(cfg.GetParams()) {
		t.Errorf("ParamNames = %v", ParamNames())
	}
}

func TestValidate_Errors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Steps = 0
	if err := cfg.Validate(); !errors.Is(err, dynamo.ErrInvalidStep) {
		t.Errorf("expected ErrInvalidStep, got %v", err)
	}

	cfg = DefaultConfig()
	cfg.Count = 100000
	if err := cfg.Validate(); !errors.Is(err, dynamo.ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration, got %v", err)
	}
}
