package config

import "sort"

var Presets = map[string]*Config{
	"classroom": DefaultConfig(),
	"tutorial": {
		Count: 4, Mass: 1, Radius: 1, BoxSize: 10, InitialSpeed: 2,
		Dt: 0.01, Steps: 100, Rule: "elastic", ValidateState: true,
	},
	"dense": {
		Count: 100, Mass: 1, Radius: 0.5, BoxSize: 30, InitialSpeed: 3,
		Duration: 20, Steps: 2000, Rule: "elastic", ValidateState: true,
	},
	"equilibrium": {
		Count: 64, Mass: 1, Radius: 0.3, BoxSize: 30, InitialSpeed: 3,
		Duration: 60, Steps: 3000, Rule: "elastic", ValidateState: true,
	},
	"heavy": {
		Count: 25, Mass: 10, Radius: 0.8, BoxSize: 25, InitialSpeed: 1,
		Duration: 30, Steps: 1500, Rule: "elastic", ValidateState: true,
	},
	"literal": {
		Count: DefaultCount, Mass: DefaultMass, Radius: DefaultRadius, BoxSize: DefaultBoxSize,
		InitialSpeed: DefaultInitialSpeed, Duration: DefaultDuration, Steps: DefaultSteps,
		Rule: "literal", ValidateState: true,
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
