package search

import (
	"fmt"
	"sort"
)

// Config tunes the CMA-ES search. Generations bounds the number of
// generations; MaxEvaluations, when positive, bounds fitness calls.
type Config struct {
	Preset         string   `yaml:"preset"`
	Generations    int      `yaml:"generations"`
	Population     int      `yaml:"population"`
	StepSize       float64  `yaml:"step_size"`
	Seed           *uint64  `yaml:"seed"`
	StopCriteria   []string `yaml:"stop_criteria"`
	MaxEvaluations int      `yaml:"max_evaluations"`
}

// DefaultPreset is used when a config names none.
const DefaultPreset = "balanced"

var presets = map[string]Config{
	"quick":            {Generations: 20, Population: 20, StepSize: 0.3},
	"balanced":         {Generations: 100, Population: 40, StepSize: 0.25},
	"intensive":        {Generations: 200, Population: 80, StepSize: 0.2},
	"high_diversity":   {Generations: 100, Population: 60, StepSize: 0.4},
	"fast_convergence": {Generations: 50, Population: 30, StepSize: 0.15, StopCriteria: []string{"saturate_20"}},
}

// Presets lists the preset names in sorted order.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset returns a copy of the named preset.
func Preset(name string) (Config, error) {
	p, ok := presets[name]
	if !ok {
		return Config{}, fmt.Errorf("unknown search preset %q (want one of %v)", name, Presets())
	}
	p.Preset = name
	p.StopCriteria = append([]string(nil), p.StopCriteria...)
	return p, nil
}

// Resolve fills unset fields of c from its preset. Explicit values win.
func (c Config) Resolve() (Config, error) {
	name := c.Preset
	if name == "" {
		name = DefaultPreset
	}
	base, err := Preset(name)
	if err != nil {
		return Config{}, err
	}
	if c.Generations > 0 {
		base.Generations = c.Generations
	}
	if c.Population > 0 {
		base.Population = c.Population
	}
	if c.StepSize > 0 {
		base.StepSize = c.StepSize
	}
	if c.StopCriteria != nil {
		base.StopCriteria = append([]string(nil), c.StopCriteria...)
	}
	base.Seed = c.Seed
	base.MaxEvaluations = c.MaxEvaluations
	return base, base.Validate()
}

// Validate checks a resolved config.
func (c Config) Validate() error {
	switch {
	case c.Generations < 1:
		return fmt.Errorf("search.generations must be positive, got %d", c.Generations)
	case c.Population < 2:
		return fmt.Errorf("search.population must be at least 2, got %d", c.Population)
	case c.StepSize <= 0:
		return fmt.Errorf("search.step_size must be positive, got %g", c.StepSize)
	case c.MaxEvaluations < 0:
		return fmt.Errorf("search.max_evaluations must not be negative, got %d", c.MaxEvaluations)
	}
	_, err := ParseStopCriteria(c.StopCriteria)
	return err
}
