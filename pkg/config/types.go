package config

import (
	"sort"
	"time"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/document"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/fit"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/genes"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/search"
)

// Config represents one calibration project
type Config struct {
	LogLevel   string              `yaml:"log_level"`
	LogFormat  string              `yaml:"log_format"`
	Template   Template            `yaml:"template"`
	Header     Header              `yaml:"header"`
	Model      Model               `yaml:"model"`
	Engine     Engine              `yaml:"engine"`
	Rates      map[string]float64  `yaml:"rates,omitempty"`
	Weights    map[string]float64  `yaml:"weights,omitempty"`
	Parameters genes.ParameterSpec `yaml:"parameters,omitempty"`
	Search     search.Config       `yaml:"search"`
	Parallel   Parallel            `yaml:"parallel"`
	Output     Output              `yaml:"output"`
	Ledger     Ledger              `yaml:"ledger"`
	Status     Status              `yaml:"status"`
}

// Template locates the project inputs. Dir holds the engine executable and
// the workbook; WorkDir is the parent of evaluation sandboxes.
type Template struct {
	Dir      string `yaml:"dir"`
	Workbook string `yaml:"workbook"`
	WorkDir  string `yaml:"work_dir,omitempty"`
}

// Header carries the run identity written to the document header
type Header struct {
	RiverName    string   `yaml:"river_name"`
	FileName     string   `yaml:"file_name"`
	Month        int      `yaml:"month"`
	Day          int      `yaml:"day"`
	Year         int      `yaml:"year"`
	TimezoneHour *float64 `yaml:"timezone_hour,omitempty"`
	FinalTime    float64  `yaml:"final_time,omitempty"`
	DtUser       float64  `yaml:"dt_user,omitempty"`
}

// Model holds the network-level build settings
type Model struct {
	ElementsPerReach int     `yaml:"elements_per_reach"`
	HeadwaterFlow    float64 `yaml:"headwater_flow"`
	HeadwaterStation string  `yaml:"headwater_station"`
}

// Engine configures the simulator invocation
type Engine struct {
	Executable string `yaml:"executable"`
	Timeout    string `yaml:"timeout"` // e.g., "300s"
}

// Parallel configures the evaluation pool
type Parallel struct {
	Enabled bool `yaml:"enabled"`
	Workers int  `yaml:"workers"`
}

// Output configures where results are written
type Output struct {
	Dir  string `yaml:"dir"`
	Name string `yaml:"name"`
}

// Ledger selects the run ledger backend: memory or sqlite
type Ledger struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// Status configures the optional status listeners
type Status struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`
}

// GetTimeout parses the engine timeout string to time.Duration
func (e *Engine) GetTimeout() (time.Duration, error) {
	return time.ParseDuration(e.Timeout)
}

// Document returns the document header with the configured fields applied
func (h Header) Document() document.Header {
	out := document.DefaultHeader()
	out.RiverName = h.RiverName
	out.FileName = h.FileName
	out.Month, out.Day, out.Year = h.Month, h.Day, h.Year
	if h.TimezoneHour != nil {
		out.TimezoneHour = *h.TimezoneHour
	}
	if h.FinalTime > 0 {
		out.FinalTime = h.FinalTime
	}
	if h.DtUser > 0 {
		out.DtUser = h.DtUser
	}
	return out
}

// WorkerCount is the requested pool size: one when parallel mode is off.
func (p Parallel) WorkerCount() int {
	if !p.Enabled {
		return 1
	}
	return p.Workers
}

// Pairs returns the scored variables in name order, or nil for the defaults
// when no weights are configured.
func (c *Config) Pairs() []fit.Pair {
	if len(c.Weights) == 0 {
		return nil
	}
	names := make([]string, 0, len(c.Weights))
	for name := range c.Weights {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]fit.Pair, len(names))
	for i, name := range names {
		pairs[i] = fit.PairFor(name)
	}
	return pairs
}

// FitWeights returns the configured weights, or nil for the defaults.
func (c *Config) FitWeights() fit.Weights {
	if len(c.Weights) == 0 {
		return nil
	}
	w := make(fit.Weights, len(c.Weights))
	for k, v := range c.Weights {
		w[k] = v
	}
	return w
}
