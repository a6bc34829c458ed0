package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/document"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/engine"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/fit"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/report"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/search"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/template"
)

const (
	DefaultWorkbook = "PlantillaBaseQ2K.xlsx"
	DefaultTimeout  = "300s"
	DefaultLogLevel = "info"
)

// LoadConfig loads and parses a configuration file. Relative paths in the
// file are resolved against the file's directory.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

func (c *Config) resolvePaths(base string) {
	for _, p := range []*string{&c.Template.Dir, &c.Template.WorkDir, &c.Output.Dir, &c.Ledger.Path} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

// WorkbookPath is the workbook location, relative names taken from the
// template directory.
func (c *Config) WorkbookPath() string {
	if filepath.IsAbs(c.Template.Workbook) {
		return c.Template.Workbook
	}
	return filepath.Join(c.Template.Dir, c.Template.Workbook)
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.Template.Workbook == "" {
		cfg.Template.Workbook = DefaultWorkbook
	}
	if cfg.Engine.Executable == "" {
		cfg.Engine.Executable = engine.DefaultExecutable
	}
	if cfg.Engine.Timeout == "" {
		cfg.Engine.Timeout = DefaultTimeout
	}
	if cfg.Model.ElementsPerReach == 0 {
		cfg.Model.ElementsPerReach = template.DefaultElementsPerReach
	}
	if cfg.Model.HeadwaterFlow == 0 {
		cfg.Model.HeadwaterFlow = template.DefaultHeadwaterFlow
	}
	if cfg.Model.HeadwaterStation == "" {
		cfg.Model.HeadwaterStation = template.DefaultHeadwaterStation
	}
	if cfg.Search.Preset == "" {
		cfg.Search.Preset = search.DefaultPreset
	}
	if cfg.Ledger.Backend == "" {
		cfg.Ledger.Backend = "memory"
	}
}

// validateConfig performs validation on the configuration
func validateConfig(cfg *Config) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("invalid log_format: %s (must be text or json)", cfg.LogFormat)
	}

	if cfg.Template.Dir == "" {
		return fmt.Errorf("template.dir is required")
	}

	timeout, err := cfg.Engine.GetTimeout()
	if err != nil {
		return fmt.Errorf("invalid engine.timeout %s: %w", cfg.Engine.Timeout, err)
	}
	if timeout <= 0 {
		return fmt.Errorf("engine.timeout must be positive, got %s", cfg.Engine.Timeout)
	}

	if cfg.Model.ElementsPerReach < 1 {
		return fmt.Errorf("model.elements_per_reach must be positive, got %d", cfg.Model.ElementsPerReach)
	}
	if cfg.Model.HeadwaterFlow < 0 {
		return fmt.Errorf("model.headwater_flow cannot be negative, got %g", cfg.Model.HeadwaterFlow)
	}

	if cfg.Header.Month < 0 || cfg.Header.Month > 12 {
		return fmt.Errorf("header.month must be between 1 and 12, got %d", cfg.Header.Month)
	}
	if cfg.Header.Day < 0 || cfg.Header.Day > 31 {
		return fmt.Errorf("header.day must be between 1 and 31, got %d", cfg.Header.Day)
	}

	rates := document.DefaultRates()
	if err := rates.Apply(cfg.Rates); err != nil {
		return err
	}

	known := make(map[string]bool)
	for _, name := range report.Columns() {
		known[name] = true
	}
	observed := make(map[string]bool)
	for _, col := range template.ObservedColumns() {
		observed[strings.TrimSuffix(col, fit.ObservedSuffix)] = true
	}
	for name, w := range cfg.Weights {
		if !known[name] {
			return fmt.Errorf("weights: unknown variable %s", name)
		}
		if !observed[name] {
			return fmt.Errorf("weights: %s is not measured at the monitoring stations", name)
		}
		if w < 0 {
			return fmt.Errorf("weights.%s cannot be negative, got %g", name, w)
		}
	}

	if err := cfg.Parameters.Validate(); err != nil {
		return fmt.Errorf("parameters validation failed: %w", err)
	}

	if _, err := cfg.Search.Resolve(); err != nil {
		return fmt.Errorf("search validation failed: %w", err)
	}

	if cfg.Parallel.Workers < 0 {
		return fmt.Errorf("parallel.workers cannot be negative, got %d", cfg.Parallel.Workers)
	}

	switch cfg.Ledger.Backend {
	case "memory":
	case "sqlite":
		if cfg.Ledger.Path == "" {
			return fmt.Errorf("ledger.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("invalid ledger.backend: %s (must be memory or sqlite)", cfg.Ledger.Backend)
	}

	return nil
}
