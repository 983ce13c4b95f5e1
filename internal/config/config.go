package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/san-kum/gassim/internal/dynamo"
	"github.com/san-kum/gassim/internal/physics"
	"gopkg.in/yaml.v3"
)

// Defaults follow the classroom run: 20 particles in a 40x40 box.
const (
	DefaultCount        = 20
	DefaultMass         = 1.0
	DefaultRadius       = 0.2
	DefaultBoxSize      = 40.0
	DefaultInitialSpeed = 3.0
	DefaultDuration     = 10.0
	DefaultSteps        = 750
	DefaultRule         = "elastic"
)

// Environment variables read by LoadEnv callers.
const (
	EnvDataDir  = "GASSIM_DATA"
	EnvLogLevel = "GASSIM_LOG_LEVEL"
)

type Config struct {
	Count         int     `yaml:"count" toml:"count"`
	Mass          float64 `yaml:"mass" toml:"mass"`
	Radius        float64 `yaml:"radius" toml:"radius"`
	BoxSize       float64 `yaml:"box_size" toml:"box_size"`
	InitialSpeed  float64 `yaml:"initial_speed" toml:"initial_speed"`
	Dt            float64 `yaml:"dt,omitempty" toml:"dt"`
	Duration      float64 `yaml:"duration" toml:"duration"`
	Steps         int     `yaml:"steps" toml:"steps"`
	Seed          int64   `yaml:"seed" toml:"seed"`
	Rule          string  `yaml:"rule" toml:"rule"`
	ValidateState bool    `yaml:"validate_state" toml:"validate_state"`
}

func DefaultConfig() *Config {
	return &Config{
		Count:         DefaultCount,
		Mass:          DefaultMass,
		Radius:        DefaultRadius,
		BoxSize:       DefaultBoxSize,
		InitialSpeed:  DefaultInitialSpeed,
		Duration:      DefaultDuration,
		Steps:         DefaultSteps,
		Rule:          DefaultRule,
		ValidateState: true,
	}
}

// Load reads a YAML file, or TOML when the extension is .toml, over the
// defaults.
func Load(path string) (*Config, error) {
	return LoadOver(path, DefaultConfig())
}

// LoadOver is Load with base in place of the defaults. Keys missing from the
// file keep base's values; base itself is not modified.
func LoadOver(path string, base *Config) (*Config, error) {
	cfg := base.Clone()

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadEnv loads the given .env files (default ".env") into the process
// environment. Missing files are not an error.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	present := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

// Env returns the value of key, or def when unset or empty.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (c *Config) Params() physics.Params {
	return physics.Params{
		Count:        c.Count,
		Mass:         c.Mass,
		Radius:       c.Radius,
		BoxSize:      c.BoxSize,
		InitialSpeed: c.InitialSpeed,
	}
}

func (c *Config) CollisionRule() (physics.CollisionRule, error) {
	return physics.ParseCollisionRule(c.Rule)
}

func (c *Config) SimConfig() dynamo.Config {
	return dynamo.Config{
		Dt:            c.Dt,
		Duration:      c.Duration,
		Steps:         c.Steps,
		Seed:          c.Seed,
		ValidateState: c.ValidateState,
	}
}

// Validate checks the particle layout, rule and step settings without
// building anything.
func (c *Config) Validate() error {
	if err := physics.Validate(c.Params()); err != nil {
		return err
	}
	if _, err := c.CollisionRule(); err != nil {
		return err
	}
	if c.Steps < 1 {
		return fmt.Errorf("%w: steps must be at least 1, got %d", dynamo.ErrInvalidStep, c.Steps)
	}
	if c.SimConfig().Timestep() <= 0 {
		return fmt.Errorf("%w: need dt > 0 or duration > 0", dynamo.ErrInvalidStep)
	}
	return nil
}

func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

func (c *Config) GetParams() map[string]float64 {
	return map[string]float64{
		"count":         float64(c.Count),
		"mass":          c.Mass,
		"radius":        c.Radius,
		"box_size":      c.BoxSize,
		"initial_speed": c.InitialSpeed,
		"dt":            c.Dt,
		"duration":      c.Duration,
		"steps":         float64(c.Steps),
		"seed":          float64(c.Seed),
	}
}

// SetParam sets a numeric parameter by its config key.
func (c *Config) SetParam(name string, value float64) error {
	switch name {
	case "count":
		c.Count = int(value)
	case "mass":
		c.Mass = value
	case "radius":
		c.Radius = value
	case "box_size":
		c.BoxSize = value
	case "initial_speed":
		c.InitialSpeed = value
	case "dt":
		c.Dt = value
	case "duration":
		c.Duration = value
	case "steps":
		c.Steps = int(value)
	case "seed":
		c.Seed = int64(value)
	default:
		return fmt.Errorf("%w: unknown parameter %q", dynamo.ErrInvalidConfiguration, name)
	}
	return nil
}

// Set applies a string override such as those from a scenario file.
// Numeric keys go through SetParam; "rule" and "validate_state" are handled
// here.
func (c *Config) Set(name, value string) error {
	switch name {
	case "rule":
		if _, err := physics.ParseCollisionRule(value); err != nil {
			return err
		}
		c.Rule = value
		return nil
	case "validate_state":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: validate_state: %v", dynamo.ErrInvalidConfiguration, err)
		}
		c.ValidateState = b
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", dynamo.ErrInvalidConfiguration, name, err)
	}
	return c.SetParam(name, f)
}

// ParamNames lists the keys accepted by SetParam.
func ParamNames() []string {
	names := make([]string, 0, 9)
	for k := range DefaultConfig().GetParams() {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
