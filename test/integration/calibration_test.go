//go:build integration
// +build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/calibration"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/metrics"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/project"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/statusd"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/store"
	"github.com/GoSim-25-26J-441/q2k-calibrator/pkg/config"
	"github.com/GoSim-25-26J-441/q2k-calibrator/pkg/logger"
	"github.com/xuri/excelize/v2"
)

var chemistryHeader = []any{
	"TEMPERATURA", "CONDUCTIVIDAD", "SST", "OXIGENO_DISUELTO", "DBO5", "NTK",
	"NITROGENO_AMONIACAL", "NITRITOS", "NITRATOS", "FOSFORO_TOTAL",
	"ORTOFOSFATOS", "COLIFORMES_TOTALES", "ALCALINIDAD",
	"COLIFORMES_TERMOTOLERANTES", "E_COLI",
}

func chemistry(do float64) []any {
	return []any{18, 120, 10, do, 4, 2, 0.5, 0.1, 1.2, 0.4, 0.1, 1000, 80, 200, 50, 7.2}
}

func concat(parts ...[]any) []any {
	var out []any
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func writeWorkbook(t *testing.T, path string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheets := map[string][][]any{
		"REACHES": {
			{"EST_ARRIBA", "EST_ABAJO", "NOMBRE_TRAMO", "X_QUAL2K_ARRIBA", "X_QUAL2K_ABAJO",
				"ELEV_ARRIBA", "ELEV_ABAJO", "ALPHA_1", "BETA_1", "ALPHA_2", "BETA_2",
				"SOMBRA_[-]", "TEMPERATURA_[C]", "TEMPERATURA_ROCIO_[C]",
				"VELOCIDAD_DEL_VIENTO_[MS]", "COBERTURA_NUBES_[-]"},
			{"CABECERA", "E2", "R1", 10, 5, 2500, 2490, 0.3, 0.5, 5, 0.4, 10, 15, 9, 2, 40},
			{"E2", "E3", "R2", 5, 0, 2490, 2480, 0.2, 0.6, 4, 0.3, 5, 16, 10, 3, 50},
		},
		"SOURCES": {
			concat([]any{"NOMBRE_VERTIMIENTO", "X_QUAL2K", "CAUDAL", "TIPO"}, chemistryHeader, []any{"pH"}),
			concat([]any{"Planta", 6, 0.05, "Vertimiento"}, chemistry(3)),
		},
		"WQ_DATA": {
			concat([]any{"NOMBRE_ESTACIONES", "X_QUAL2K", "CAUDAL"}, chemistryHeader, []any{"PH"}),
			concat([]any{"CABECERA", 10, 0.8}, chemistry(8.1)),
			concat([]any{"E2", 5, 0.9}, chemistry(7.1)),
			concat([]any{"E3", 0, 1.0}, chemistry(6.4)),
		},
	}
	for name, rows := range sheets {
		if _, err := f.NewSheet(name); err != nil {
			t.Fatalf("failed to create sheet %s: %v", name, err)
		}
		for i, row := range rows {
			cell, _ := excelize.CoordinatesToCellName(1, i+1)
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				t.Fatalf("failed to write %s row %d: %v", name, i+1, err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("failed to save workbook: %v", err)
	}
}

var wqLabels = []string{
	"x", "cond", "ISS", "DO", "CBODs", "CBODf", "No", "NH4", "NO3", "PO", "InorgP",
	"Phyto", "Detritus", "Pathogen", "Alk", "Const i", "Const ii", "Const iii", "pH",
	"TN", "TP", "TKN", "TSS", "CBODu", "NH3",
}

func wqRow(x, do float64) string {
	cells := make([]string, len(wqLabels))
	for i := range cells {
		cells[i] = "1.5"
	}
	cells[0] = fmt.Sprint(x)
	cells[3] = fmt.Sprint(do)
	return strings.Join(cells, "  ")
}

// writeEngine installs a shell script standing in for the simulator. It
// writes a fixed report to the path named in message.DAT.
func writeEngine(t *testing.T, dir string) {
	t.Helper()
	report := strings.Join([]string{
		"**Hydraulics Summary**",
		"Downstream  Hydraulics  E'  H  Btop  Ac  U  trav time",
		"x(km)  Q(m3/s)  m  m  m  m2  mps  d",
		"10  .5  0  .3  2  .6  .8  0",
		"0  .7  0  .4  2.2  .8  .9  .2",
		"**Temperature Summary**",
		"Distance  Temp(C)  Temp(C)  Temp(C)",
		"x(km)  Mean  Min  Max",
		"10  18  17  19",
		"0  20  19  21",
		"**Water Quality Summary**",
		strings.Join(wqLabels, "  "),
		strings.Repeat("u  ", len(wqLabels)-1) + "u",
		wqRow(10, 8),
		wqRow(5, 7.2),
		wqRow(0, 6.5),
	}, "\n")
	script := strings.Join([]string{
		"#!/bin/sh",
		`doc=$(sed -n 1p message.DAT | tr -d '"')`,
		`out=$(sed -n 2p message.DAT | tr -d '"')`,
		`test -s "$doc" || exit 3`,
		`cat > "$out" <<'EOF'`,
		report,
		"EOF",
		"",
	}, "\n")
	if err := os.WriteFile(filepath.Join(dir, "engine.sh"), []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write engine: %v", err)
	}
}

func setupProject(t *testing.T) *config.Config {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("the stand-in engine needs a POSIX shell")
	}
	root := t.TempDir()
	tplDir := filepath.Join(root, "template")
	if err := os.MkdirAll(tplDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeWorkbook(t, filepath.Join(tplDir, "PlantillaBaseQ2K.xlsx"))
	writeEngine(t, tplDir)

	yaml := `
log_level: warn
template:
  dir: template
  work_dir: scratch
header:
  river_name: Rio Prueba
  file_name: Prueba
  month: 3
  day: 14
  year: 2024
engine:
  executable: engine.sh
  timeout: 30s
weights:
  dissolved_oxygen: 1
parameters:
  kaaa: [0.1, 3.0, global]
  kdc: [0.05, 1.5, per_reach]
search:
  preset: quick
  generations: 3
  population: 4
  seed: 11
parallel:
  enabled: true
  workers: 2
output:
  dir: out
ledger:
  backend: sqlite
  path: out/ledger.db
`
	if err := os.MkdirAll(filepath.Join(root, "scratch"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(root, "out"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(root, "calibration.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	return cfg
}

func TestCalibrationPipeline(t *testing.T) {
	cfg := setupProject(t)
	ctx := context.Background()

	p, err := project.Open(cfg, logger.Discard())
	if err != nil {
		t.Fatalf("project.Open: %v", err)
	}
	if p.Codec.Len() != 3 {
		t.Fatalf("expected 3 genes, got %d", p.Codec.Len())
	}

	ledger, err := store.Open(ctx, cfg.Ledger.Backend, cfg.Ledger.Path)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer ledger.Close()
	collector := metrics.NewCollector()

	searcher, err := p.Searcher()
	if err != nil {
		t.Fatalf("Searcher: %v", err)
	}
	driver, err := p.Driver(ledger, collector, "it-run")
	if err != nil {
		t.Fatalf("Driver: %v", err)
	}

	out, err := driver.Run(ctx, searcher)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Status != store.StatusCompleted {
		t.Fatalf("expected completed run, got %s", out.Status)
	}
	if out.Evaluations < 4 {
		t.Fatalf("expected at least one generation of evaluations, got %d", out.Evaluations)
	}
	if out.BestFitness <= calibration.InitialBest {
		t.Fatalf("expected a successful evaluation, best %v", out.BestFitness)
	}
	if out.Final == nil || !out.Final.Success {
		t.Fatalf("expected a successful final re-run, got %+v", out.Final)
	}

	report, err := os.ReadFile(out.ReportPath)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	for _, want := range []string{"CALIBRATION RESULTS", "OPTIMAL PARAMETERS:", "kdc", "Reach 2"} {
		if !strings.Contains(string(report), want) {
			t.Fatalf("report missing %q:\n%s", want, report)
		}
	}
	if _, err := os.Stat(out.ConfigPath); err != nil {
		t.Fatalf("configuration export: %v", err)
	}
	for _, ext := range []string{".csv", ".q2k", ".out"} {
		path := filepath.Join(cfg.Output.Dir, calibration.ResultsDir, "Prueba"+ext)
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected artifact %s: %v", path, err)
		}
	}

	entries, err := os.ReadDir(cfg.Template.WorkDir)
	if err != nil {
		t.Fatalf("work dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected sandboxes to be removed, found %d entries", len(entries))
	}

	run, err := ledger.Get(ctx, "it-run")
	if err != nil {
		t.Fatalf("ledger Get: %v", err)
	}
	if run.Status != store.StatusCompleted || int64(run.Evaluations) != out.Evaluations {
		t.Fatalf("unexpected ledger run %+v", run)
	}
	evals, err := ledger.Evaluations(ctx, "it-run")
	if err != nil {
		t.Fatalf("ledger Evaluations: %v", err)
	}
	if int64(len(evals)) != out.Evaluations {
		t.Fatalf("expected %d ledger evaluations, got %d", out.Evaluations, len(evals))
	}

	srv, err := statusd.New(statusd.Config{Ledger: ledger, Metrics: collector, Logger: logger.Discard()})
	if err != nil {
		t.Fatalf("statusd.New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/calibration/it-run")
	if err != nil {
		t.Fatalf("GET run: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Run map[string]any `json:"run"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Run["status"] != "completed" {
		t.Fatalf("unexpected run payload %v", body.Run)
	}

	metricsResp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer metricsResp.Body.Close()
	if metricsResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", metricsResp.StatusCode)
	}
}

func TestCalibrationCancelled(t *testing.T) {
	cfg := setupProject(t)
	p, err := project.Open(cfg, logger.Discard())
	if err != nil {
		t.Fatalf("project.Open: %v", err)
	}
	searcher, err := p.Searcher()
	if err != nil {
		t.Fatalf("Searcher: %v", err)
	}
	driver, err := p.Driver(nil, nil, "")
	if err != nil {
		t.Fatalf("Driver: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := driver.Run(ctx, searcher)
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
	if out.Status != store.StatusCancelled {
		t.Fatalf("expected cancelled status, got %s", out.Status)
	}
}
