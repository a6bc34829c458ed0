package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/engine"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/genes"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/report"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/search"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/template"
)

const minimalYAML = `
template:
  dir: /data/chicamocha
parameters:
  kdc: [0.05, 1.5]
`

const fullYAML = `
log_level: debug
log_format: json
template:
  dir: project
  workbook: Base.xlsx
  work_dir: scratch
header:
  river_name: Rio Test
  file_name: Test
  month: 3
  day: 14
  year: 2024
  timezone_hour: -5
model:
  elements_per_reach: 4
  headwater_flow: 0.2
  headwater_station: HW
engine:
  executable: engine.sh
  timeout: 45s
rates:
  khc: 0.2
weights:
  water_temp_c: 0.1
  dissolved_oxygen: 0.9
parameters:
  kn: [0.05, 2.0, global]
  kaaa: [0.1, 3.0, global]
  kdc: [0.05, 1.5, per_reach]
search:
  preset: fast_convergence
  seed: 7
parallel:
  enabled: true
  workers: 3
output:
  dir: out
  name: Test
ledger:
  backend: sqlite
  path: out/ledger.db
status:
  http_addr: ":9090"
`

func TestParseConfigYAMLDefaults(t *testing.T) {
	cfg, err := ParseConfigYAMLString(minimalYAML)
	if err != nil {
		t.Fatalf("ParseConfigYAMLString returned error: %v", err)
	}
	if cfg.LogLevel != DefaultLogLevel || cfg.LogFormat != "text" {
		t.Fatalf("unexpected log defaults %q %q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.Template.Workbook != DefaultWorkbook {
		t.Fatalf("expected default workbook, got %q", cfg.Template.Workbook)
	}
	if cfg.Engine.Executable != engine.DefaultExecutable {
		t.Fatalf("expected default executable, got %q", cfg.Engine.Executable)
	}
	timeout, err := cfg.Engine.GetTimeout()
	if err != nil || timeout != 300*time.Second {
		t.Fatalf("expected 300s timeout, got %v (%v)", timeout, err)
	}
	if cfg.Model.ElementsPerReach != template.DefaultElementsPerReach ||
		cfg.Model.HeadwaterFlow != template.DefaultHeadwaterFlow ||
		cfg.Model.HeadwaterStation != template.DefaultHeadwaterStation {
		t.Fatalf("unexpected model defaults %+v", cfg.Model)
	}
	if cfg.Search.Preset != search.DefaultPreset {
		t.Fatalf("expected default preset, got %q", cfg.Search.Preset)
	}
	if cfg.Ledger.Backend != "memory" {
		t.Fatalf("expected memory ledger, got %q", cfg.Ledger.Backend)
	}
	if cfg.Pairs() != nil || cfg.FitWeights() != nil {
		t.Fatalf("expected nil pairs and weights without configured weights")
	}
	if cfg.Parallel.WorkerCount() != 1 {
		t.Fatalf("expected serial mode by default, got %d", cfg.Parallel.WorkerCount())
	}
}

func TestParseConfigYAMLFull(t *testing.T) {
	cfg, err := ParseConfigYAMLString(fullYAML)
	if err != nil {
		t.Fatalf("ParseConfigYAMLString returned error: %v", err)
	}

	names := make([]string, len(cfg.Parameters))
	for i, p := range cfg.Parameters {
		names[i] = p.Name
	}
	if strings.Join(names, ",") != "kn,kaaa,kdc" {
		t.Fatalf("expected parameters in file order, got %v", names)
	}
	if cfg.Parameters[2].Scope != genes.PerReach || cfg.Parameters[0].Scope != genes.Global {
		t.Fatalf("unexpected scopes %+v", cfg.Parameters)
	}

	if cfg.Search.Seed == nil || *cfg.Search.Seed != 7 {
		t.Fatalf("expected seed 7, got %v", cfg.Search.Seed)
	}
	resolved, err := cfg.Search.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Generations != 50 || resolved.Population != 30 {
		t.Fatalf("expected fast_convergence preset, got %+v", resolved)
	}

	if cfg.Parallel.WorkerCount() != 3 {
		t.Fatalf("expected 3 workers, got %d", cfg.Parallel.WorkerCount())
	}

	pairs := cfg.Pairs()
	if len(pairs) != 2 || pairs[0].Sim != report.DissolvedOxygen || pairs[1].Sim != report.WaterTemp {
		t.Fatalf("expected pairs sorted by name, got %+v", pairs)
	}
	if w := cfg.FitWeights(); w[report.DissolvedOxygen] != 0.9 {
		t.Fatalf("unexpected weights %v", w)
	}

	h := cfg.Header.Document()
	if h.RiverName != "Rio Test" || h.Month != 3 || h.Year != 2024 {
		t.Fatalf("unexpected header %+v", h)
	}
	if h.TimezoneHour != -5 {
		t.Fatalf("expected timezone override, got %v", h.TimezoneHour)
	}
	if h.Version != "v2.12" || h.FinalTime != 5 {
		t.Fatalf("expected defaults kept for unset header fields, got %+v", h)
	}
}

func TestParseConfigYAMLInvalid(t *testing.T) {
	cases := map[string]struct {
		yaml string
		want string
	}{
		"log level":         {minimalYAML + "log_level: loud\n", "log_level"},
		"log format":        {minimalYAML + "log_format: xml\n", "log_format"},
		"missing template":  {"parameters:\n  kdc: [0, 1]\n", "template.dir"},
		"timeout":           {minimalYAML + "engine:\n  timeout: soon\n", "engine.timeout"},
		"zero timeout":      {minimalYAML + "engine:\n  timeout: 0s\n", "engine.timeout"},
		"elements":          {minimalYAML + "model:\n  elements_per_reach: -1\n", "elements_per_reach"},
		"flow":              {minimalYAML + "model:\n  headwater_flow: -1\n", "headwater_flow"},
		"month":             {minimalYAML + "header:\n  month: 13\n", "header.month"},
		"day":               {minimalYAML + "header:\n  day: 32\n", "header.day"},
		"rate":              {minimalYAML + "rates:\n  bogus: 1\n", "rates.bogus"},
		"weight name":       {minimalYAML + "weights:\n  turbidity: 1\n", "unknown variable"},
		"weight unobserved": {minimalYAML + "weights:\n  conductivity: 1\n", "not measured"},
		"weight sign":       {minimalYAML + "weights:\n  dissolved_oxygen: -1\n", "cannot be negative"},
		"no parameters":     {"template:\n  dir: x\n", "parameters"},
		"bad parameter":     {"template:\n  dir: x\nparameters:\n  kdc: [2, 1]\n", "above max"},
		"preset":            {minimalYAML + "search:\n  preset: turbo\n", "search"},
		"criteria":          {minimalYAML + "search:\n  stop_criteria: [never]\n", "search"},
		"workers":           {minimalYAML + "parallel:\n  workers: -2\n", "parallel.workers"},
		"ledger backend":    {minimalYAML + "ledger:\n  backend: postgres\n", "ledger.backend"},
		"ledger path":       {minimalYAML + "ledger:\n  backend: sqlite\n", "ledger.path"},
		"syntax":            {"template: [\n", "failed to parse"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfigYAMLString(tc.yaml)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadConfigResolvesPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "calibration.yaml")
	if err := os.WriteFile(path, []byte(fullYAML), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Template.Dir != filepath.Join(dir, "project") {
		t.Fatalf("template dir not resolved: %s", cfg.Template.Dir)
	}
	if cfg.Template.WorkDir != filepath.Join(dir, "scratch") {
		t.Fatalf("work dir not resolved: %s", cfg.Template.WorkDir)
	}
	if cfg.Output.Dir != filepath.Join(dir, "out") {
		t.Fatalf("output dir not resolved: %s", cfg.Output.Dir)
	}
	if cfg.Ledger.Path != filepath.Join(dir, "out", "ledger.db") {
		t.Fatalf("ledger path not resolved: %s", cfg.Ledger.Path)
	}
	if cfg.WorkbookPath() != filepath.Join(dir, "project", "Base.xlsx") {
		t.Fatalf("unexpected workbook path %s", cfg.WorkbookPath())
	}
}

func TestLoadConfigKeepsAbsolutePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "calibration.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Template.Dir != "/data/chicamocha" {
		t.Fatalf("absolute path rewritten: %s", cfg.Template.Dir)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestLoadExampleConfig(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "config", "calibration.yaml"))
	if err != nil {
		t.Fatalf("failed to load example config: %v", err)
	}
	if len(cfg.Parameters) == 0 {
		t.Fatalf("expected calibrated parameters in example config")
	}
	if cfg.Ledger.Backend != "sqlite" {
		t.Fatalf("unexpected ledger backend %q", cfg.Ledger.Backend)
	}
}
