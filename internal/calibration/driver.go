package calibration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/document"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/genes"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/metrics"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/sandbox"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/store"
	"github.com/GoSim-25-26J-441/q2k-calibrator/pkg/logger"
	"github.com/GoSim-25-26J-441/q2k-calibrator/pkg/utils"
)

const (
	// DefaultTimeout bounds one dispatched evaluation.
	DefaultTimeout = 300 * time.Second
	// InitialBest is the best fitness before any evaluation succeeds.
	InitialBest = sandbox.FailureFitness

	ReportFile  = "parametros_calibrados.txt"
	ConfigFile  = "config_calibracion.txt"
	ResultsDir  = "resultados"
	DefaultName = "calibration"

	logEvery = 5
)

// ErrRunning is returned when Run is called on a driver that is already
// running a calibration.
var ErrRunning = errors.New("calibration already running")

// GenerationRecord is one entry of the generation history.
type GenerationRecord struct {
	Generation  int
	BestThisGen float64
	BestOverall float64
}

// Outcome summarizes a finished run.
type Outcome struct {
	RunID       string
	Status      store.Status
	BestFitness float64
	BestGenes   []float64
	Evaluations int64
	History     []GenerationRecord
	// Final is the full-reporting re-run of the best candidate, if any.
	Final      *sandbox.Result
	ReportPath string
	ConfigPath string
}

// Option configures a Driver.
type Option func(*Driver)

// WithWorkers sets the requested pool size. It is clamped to leave one CPU
// free; zero picks the default.
func WithWorkers(n int) Option { return func(d *Driver) { d.workers = n } }

// WithTimeout sets the per-dispatch timeout.
func WithTimeout(t time.Duration) Option { return func(d *Driver) { d.timeout = t } }

// WithLedger records the run, every evaluation and each generation in s.
func WithLedger(s store.Store) Option { return func(d *Driver) { d.ledger = s } }

// WithTelemetry reports evaluation and generation counters to c.
func WithTelemetry(c *metrics.Collector) Option { return func(d *Driver) { d.telemetry = c } }

// WithLogger replaces the component logger.
func WithLogger(l *slog.Logger) Option { return func(d *Driver) { d.log = l } }

// WithOutput sets where the report, the configuration export and the final
// run artifacts are written. An empty dir skips all of them.
func WithOutput(dir, name string) Option {
	return func(d *Driver) {
		d.outDir = dir
		if name != "" {
			d.name = name
		}
	}
}

// WithRunID fixes the ledger id of the next run.
func WithRunID(id string) Option { return func(d *Driver) { d.runID = id } }

// Driver owns all mutable calibration state. Searchers only see it through
// the Fitness and GenerationObserver interfaces.
type Driver struct {
	codec     *genes.Codec
	eval      Evaluator
	workers   int
	timeout   time.Duration
	ledger    store.Store
	telemetry *metrics.Collector
	log       *slog.Logger
	outDir    string
	name      string
	runID     string

	mu          sync.Mutex
	running     bool
	ctx         context.Context
	cancel      context.CancelCauseFunc
	pool        *Pool
	evaluations int64
	best        float64
	bestGenes   []float64
	history     []GenerationRecord
	fatal       error
}

// NewDriver wires a driver for codec's gene space.
func NewDriver(codec *genes.Codec, eval Evaluator, opts ...Option) (*Driver, error) {
	if codec == nil {
		return nil, &document.ConfigurationError{Field: "parameters", Reason: "no gene codec"}
	}
	if eval == nil {
		return nil, fmt.Errorf("calibration: nil evaluator")
	}
	d := &Driver{
		codec:   codec,
		eval:    eval,
		timeout: DefaultTimeout,
		name:    DefaultName,
		best:    InitialBest,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = logger.Component("calibration")
	}
	if d.timeout < 0 {
		return nil, &document.ConfigurationError{Field: "engine.timeout", Reason: "must not be negative"}
	}
	d.workers = utils.WorkerCount(d.workers, runtime.NumCPU())
	return d, nil
}

// Workers is the resolved pool size.
func (d *Driver) Workers() int { return d.workers }

// Fitness evaluates one candidate through the pool. It is safe to call from
// several goroutines while Run is in progress.
func (d *Driver) Fitness(candidate []float64) float64 {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return sandbox.FailureFitness
	}
	d.evaluations++
	id := d.evaluations
	ctx, pool := d.ctx, d.pool
	d.mu.Unlock()

	if d.telemetry != nil {
		d.telemetry.Started()
	}
	res, err := pool.Submit(ctx, sandbox.Request{ID: id, Genes: candidate})
	if d.telemetry != nil {
		d.telemetry.ObserveEvaluation(metrics.OutcomeOf(res), res.Duration)
	}
	if err != nil {
		var ce *document.ConfigurationError
		if errors.As(err, &ce) {
			d.abort(err)
		}
		return sandbox.FailureFitness
	}
	d.record(id, res)
	return res.Fitness
}

func (d *Driver) abort(err error) {
	d.mu.Lock()
	if d.fatal == nil {
		d.fatal = err
		d.log.Error("configuration error, stopping calibration", "error", err)
	}
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel(err)
	}
}

func (d *Driver) record(id int64, res sandbox.Result) {
	d.mu.Lock()
	improved := res.Fitness > d.best
	if improved {
		d.best = res.Fitness
		d.bestGenes = append(d.bestGenes[:0], res.Genes...)
	}
	best, runID := d.best, d.runID
	d.mu.Unlock()

	switch {
	case !res.Success:
		d.log.Warn("evaluation failed", "eval_id", id, "error", res.Err, "duration", res.Duration)
	case improved:
		d.log.Info("new best", "eval_id", id, "fitness", res.Fitness)
	case id%logEvery == 0:
		d.log.Info("evaluation", "eval_id", id, "fitness", res.Fitness)
	}
	if improved && d.telemetry != nil {
		d.telemetry.SetBest(best)
	}

	if d.ledger == nil {
		return
	}
	e := store.Evaluation{
		RunID:    runID,
		ID:       id,
		Genes:    res.Genes,
		Fitness:  res.Fitness,
		Success:  res.Success,
		Duration: res.Duration,
		At:       time.Now().UTC(),
	}
	if res.Err != nil {
		e.Error = res.Err.Error()
	}
	if err := d.ledger.AddEvaluation(context.Background(), e); err != nil {
		d.log.Warn("failed to record evaluation", "eval_id", id, "error", err)
	}
}

// OnGeneration appends to the history. The overall best recorded is the
// larger of the searcher's view and the driver's.
func (d *Driver) OnGeneration(gen int, bestThisGen, bestOverall float64) {
	d.mu.Lock()
	overall := d.best
	if bestOverall > overall {
		overall = bestOverall
	}
	rec := GenerationRecord{Generation: gen, BestThisGen: bestThisGen, BestOverall: overall}
	d.history = append(d.history, rec)
	runID := d.runID
	d.mu.Unlock()

	d.log.Info("generation completed", "generation", gen, "best_this_gen", bestThisGen, "best_overall", overall)
	if d.telemetry != nil {
		d.telemetry.SetGeneration(gen)
	}
	if d.ledger != nil {
		g := store.Generation{RunID: runID, Generation: gen, BestThisGen: bestThisGen, BestOverall: overall, At: time.Now().UTC()}
		if err := d.ledger.AddGeneration(context.Background(), g); err != nil {
			d.log.Warn("failed to record generation", "generation", gen, "error", err)
		}
	}
}

// Best returns the best fitness and genes seen so far.
func (d *Driver) Best() (float64, []float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.best, append([]float64(nil), d.bestGenes...)
}

// History returns a copy of the generation history.
func (d *Driver) History() []GenerationRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]GenerationRecord(nil), d.history...)
}

// Run searches with s, then re-runs the best candidate with full reporting
// and writes the calibration report. The pool is closed before anything else
// happens on every exit path. A cancelled run still reports what it found.
func (d *Driver) Run(ctx context.Context, s Searcher) (Outcome, error) {
	if s == nil {
		return Outcome{}, fmt.Errorf("calibration: nil searcher")
	}
	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return Outcome{}, ErrRunning
	}
	if d.runID == "" {
		d.runID = utils.GenerateRunID()
	}
	d.running = true
	d.ctx, d.cancel = runCtx, cancel
	d.evaluations, d.best, d.bestGenes, d.history, d.fatal = 0, InitialBest, nil, nil, nil
	pool := NewPool(d.eval, d.workers, d.timeout)
	d.pool = pool
	runID := d.runID
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.running = false
		d.ctx, d.cancel, d.pool = nil, nil, nil
		d.runID = ""
		d.mu.Unlock()
	}()

	d.startLedger(ctx, runID, s)
	d.log.Info("calibration started", "run_id", runID, "genes", d.codec.Len(), "reaches", d.codec.Reaches(), "workers", d.workers, "timeout", d.timeout)

	searchErr := func() (err error) {
		defer pool.Close()
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("search panicked: %v", r)
			}
		}()
		return s.Search(runCtx, Problem{Bounds: d.codec, Fitness: d, Observer: d, Workers: d.workers})
	}()

	d.mu.Lock()
	out := Outcome{
		RunID:       runID,
		BestFitness: d.best,
		BestGenes:   append([]float64(nil), d.bestGenes...),
		Evaluations: d.evaluations,
		History:     append([]GenerationRecord(nil), d.history...),
	}
	fatal := d.fatal
	d.mu.Unlock()

	var runErr error
	switch {
	case fatal != nil:
		out.Status, runErr = store.StatusFailed, fatal
	case ctx.Err() != nil:
		out.Status, runErr = store.StatusCancelled, ctx.Err()
	case searchErr != nil:
		out.Status, runErr = store.StatusFailed, fmt.Errorf("failed to search: %w", searchErr)
	default:
		out.Status = store.StatusCompleted
	}
	d.log.Info("search finished", "run_id", runID, "status", out.Status, "evaluations", out.Evaluations,
		"generations", len(out.History), "best_fitness", out.BestFitness)

	if fatal == nil && len(out.BestGenes) > 0 {
		if err := d.finish(context.WithoutCancel(ctx), s, &out); err != nil && runErr == nil {
			out.Status, runErr = store.StatusFailed, err
		}
	}
	d.finishLedger(ctx, &out, runErr)
	if d.telemetry != nil {
		d.telemetry.RunFinished(string(out.Status))
	}
	return out, runErr
}

// finish re-runs the best candidate and writes the report files.
func (d *Driver) finish(ctx context.Context, s Searcher, out *Outcome) error {
	if d.outDir == "" {
		return nil
	}
	if err := os.MkdirAll(d.outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	final := out.BestFitness
	res, err := d.eval.Evaluate(ctx, sandbox.Request{
		ID:     out.Evaluations + 1,
		Genes:  out.BestGenes,
		Report: &sandbox.ReportOptions{Dir: filepath.Join(d.outDir, ResultsDir), Name: d.name},
	})
	if err != nil {
		return fmt.Errorf("failed to re-run best candidate: %w", err)
	}
	out.Final = &res
	if res.Success {
		final = res.Fitness
		d.log.Info("final run completed", "fitness", res.Fitness, "files", res.Files)
	} else {
		d.log.Warn("final run failed", "error", res.Err)
	}

	values, err := d.codec.Values(out.BestGenes)
	if err != nil {
		return fmt.Errorf("failed to group best genes: %w", err)
	}
	settings := describe(s)

	out.ReportPath = filepath.Join(d.outDir, ReportFile)
	err = writeFile(out.ReportPath, func(f *os.File) error {
		return WriteReport(f, ReportData{
			RunID:        out.RunID,
			FinalFitness: final,
			Evaluations:  out.Evaluations,
			Workers:      d.workers,
			Search:       settings,
			Parameters:   values,
			Reaches:      d.codec.Reaches(),
			History:      out.History,
		})
	})
	if err != nil {
		return err
	}

	out.ConfigPath = filepath.Join(d.outDir, ConfigFile)
	return writeFile(out.ConfigPath, func(f *os.File) error {
		return WriteConfiguration(f, settings, d.codec.Spec(), d.codec.Reaches(), d.workers, d.timeout)
	})
}

func (d *Driver) startLedger(ctx context.Context, runID string, s Searcher) {
	if d.ledger == nil {
		return
	}
	run := store.Run{ID: runID, Genes: d.codec.Len(), Workers: d.workers, Search: searchName(s)}
	if _, err := d.ledger.Create(ctx, run); err != nil {
		d.log.Warn("failed to create ledger run", "run_id", runID, "error", err)
		return
	}
	if _, err := d.ledger.SetStatus(ctx, runID, store.StatusRunning, ""); err != nil {
		d.log.Warn("failed to update ledger run", "run_id", runID, "error", err)
	}
}

func (d *Driver) finishLedger(ctx context.Context, out *Outcome, runErr error) {
	if d.ledger == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	best := out.BestFitness
	if out.Final != nil && out.Final.Success {
		best = out.Final.Fitness
	}
	if err := d.ledger.SetBest(ctx, out.RunID, best, out.BestGenes, int(out.Evaluations)); err != nil {
		d.log.Warn("failed to record best", "run_id", out.RunID, "error", err)
	}
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	if _, err := d.ledger.SetStatus(ctx, out.RunID, out.Status, msg); err != nil {
		d.log.Warn("failed to update ledger run", "run_id", out.RunID, "error", err)
	}
}

func describe(s Searcher) []Setting {
	if ds, ok := s.(Describer); ok {
		return ds.Describe()
	}
	return nil
}

func searchName(s Searcher) string {
	if n, ok := s.(fmt.Stringer); ok {
		return n.String()
	}
	return fmt.Sprintf("%T", s)
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
