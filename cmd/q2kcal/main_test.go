package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/metrics"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/statusd"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/store"
	"github.com/GoSim-25-26J-441/q2k-calibrator/pkg/config"
	"github.com/GoSim-25-26J-441/q2k-calibrator/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "calibration.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const ledgerConfig = `
log_level: error
template:
  dir: template
parameters:
  kdc: [0.05, 1.5, per_reach]
ledger:
  backend: sqlite
  path: ledger.db
`

func TestPresetsCommand(t *testing.T) {
	out, err := execute(t, "presets")
	require.NoError(t, err)
	assert.Contains(t, out, "balanced (default)")
	assert.Contains(t, out, "fast_convergence")
	assert.Contains(t, out, "[saturate_20]")
}

func TestCalibrateFlagsOverrideConfig(t *testing.T) {
	cfg, err := config.ParseConfigYAMLString("template:\n  dir: x\nparameters:\n  kdc: [0, 1]\n")
	require.NoError(t, err)

	cmd := newCalibrateCommand(&rootOptions{})
	require.NoError(t, cmd.ParseFlags([]string{
		"--preset", "intensive", "--generations", "7", "--seed", "0",
		"--workers", "4", "--output", "results", "--http-addr", ":0",
	}))
	opts := &calibrateOptions{}
	flags := cmd.Flags()
	opts.preset, _ = flags.GetString("preset")
	opts.generations, _ = flags.GetInt("generations")
	opts.seed, _ = flags.GetUint64("seed")
	opts.workers, _ = flags.GetInt("workers")
	opts.outputDir, _ = flags.GetString("output")
	opts.httpAddr, _ = flags.GetString("http-addr")
	opts.apply(cmd, cfg)

	assert.Equal(t, "intensive", cfg.Search.Preset)
	assert.Equal(t, 7, cfg.Search.Generations)
	require.NotNil(t, cfg.Search.Seed, "an explicit zero seed is kept")
	assert.Equal(t, uint64(0), *cfg.Search.Seed)
	assert.True(t, cfg.Parallel.Enabled)
	assert.Equal(t, 4, cfg.Parallel.WorkerCount())
	assert.Equal(t, "results", cfg.Output.Dir)
	assert.Equal(t, ":0", cfg.Status.HTTPAddr)
}

func TestCalibrateWorkersHelp(t *testing.T) {
	flag := newCalibrateCommand(&rootOptions{}).Flags().Lookup("workers")
	require.NotNil(t, flag)
	assert.Contains(t, flag.Usage, fmt.Sprintf("min(%d, CPUs-1)", utils.DefaultWorkers))
	assert.NotContains(t, flag.Usage, "one per CPU")
}

func TestAlongsideStatusFailureKeepsWork(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	ledger := store.NewMemoryStore()
	defer ledger.Close()
	srv, err := statusd.New(statusd.Config{
		HTTPAddr: busy.Addr().String(),
		Ledger:   ledger,
		Metrics:  metrics.NewCollector(),
	})
	require.NoError(t, err)

	finished := false
	err = alongside(context.Background(), srv.Serve, func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
		finished = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, finished, "a status listen failure must not cancel the run")
}

func TestAlongsideStopsServeAfterWork(t *testing.T) {
	stopped := make(chan struct{})
	serve := func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return nil
	}
	want := fmt.Errorf("search failed")
	err := alongside(context.Background(), serve, func(context.Context) error { return want })
	assert.ErrorIs(t, err, want)
	select {
	case <-stopped:
	default:
		t.Fatalf("serve still running after work returned")
	}
}

func TestHistoryCommand(t *testing.T) {
	path := writeConfig(t, ledgerConfig)
	ctx := context.Background()

	ledger, err := store.OpenSQLite(ctx, filepath.Join(filepath.Dir(path), "ledger.db"))
	require.NoError(t, err)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err = ledger.Create(ctx, store.Run{ID: "older", Search: "cmaes/quick", CreatedAt: base})
	require.NoError(t, err)
	_, err = ledger.Create(ctx, store.Run{ID: "newer", Search: "cmaes/balanced", CreatedAt: base.Add(time.Hour)})
	require.NoError(t, err)
	_, err = ledger.SetStatus(ctx, "newer", store.StatusCompleted, "")
	require.NoError(t, err)
	require.NoError(t, ledger.SetBest(ctx, "newer", 0.42, []float64{0.3, 0.7}, 12))
	require.NoError(t, ledger.AddGeneration(ctx, store.Generation{RunID: "newer", Generation: 1, BestThisGen: 0.4, BestOverall: 0.42, At: base}))
	require.NoError(t, ledger.Close())

	out, err := execute(t, "--config", path, "history")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "newer"), "newest run first: %q", lines[1])
	assert.Contains(t, lines[1], "completed")

	out, err = execute(t, "--config", path, "history", "newer")
	require.NoError(t, err)
	assert.Contains(t, out, "best fitness: 0.420000")
	assert.Contains(t, out, "cmaes/balanced")
	assert.Contains(t, out, "0.400000")

	_, err = execute(t, "--config", path, "history", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMissingConfig(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "history")
	assert.ErrorContains(t, err, "failed to read config file")
}
