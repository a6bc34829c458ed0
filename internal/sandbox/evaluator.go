// Package sandbox runs one candidate end to end in a private working
// directory: decode, build, serialize, run the engine, parse and score.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/document"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/engine"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/fit"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/genes"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/q2k"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/report"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/table"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/template"
	"github.com/GoSim-25-26J-441/q2k-calibrator/pkg/logger"
	"github.com/GoSim-25-26J-441/q2k-calibrator/pkg/utils"
)

// FailureFitness is the score of a candidate whose evaluation failed.
const FailureFitness = -999.0

// DefaultDocumentName is used when the header carries no file name.
const DefaultDocumentName = "calibration"

// ReportOptions asks for the evaluation artifacts to be kept.
type ReportOptions struct {
	Dir  string
	Name string
}

// Request is one candidate to evaluate. Empty Genes means the default
// overrides of the template.
type Request struct {
	ID     int64
	Genes  []float64
	Report *ReportOptions
}

// Result is the outcome of one evaluation. Err is set when Success is false.
type Result struct {
	ID       int64
	Genes    []float64
	Fitness  float64
	Summary  fit.Summary
	Success  bool
	Err      error
	Duration time.Duration
	// Files lists the artifacts written for a Report request.
	Files []string
}

// Config wires an Evaluator. Template, Observed and Runner are required.
type Config struct {
	// TemplateDir holds the engine binary and any files it needs; they are
	// copied into every sandbox.
	TemplateDir string
	// WorkDir is the parent of the sandboxes. Empty means the OS temp dir.
	WorkDir  string
	Template *template.Template
	Settings template.Settings
	Codec    *genes.Codec
	Observed *table.Frame
	Pairs    []fit.Pair
	Weights  fit.Weights
	Runner   *engine.Runner
	Logger   *slog.Logger
}

// Evaluator is safe for concurrent use; every call works in its own
// directory and shares only read-only inputs.
type Evaluator struct {
	cfg Config
	log *slog.Logger
}

// New checks cfg and fills its defaults.
func New(cfg Config) (*Evaluator, error) {
	switch {
	case cfg.Template == nil:
		return nil, &document.ConfigurationError{Field: "template", Reason: "no template loaded"}
	case cfg.Observed == nil:
		return nil, &document.ConfigurationError{Field: "observed", Reason: "no observations"}
	case cfg.Runner == nil:
		return nil, &document.ConfigurationError{Field: "engine", Reason: "no engine runner"}
	}
	if !cfg.Observed.Has(report.Distance) {
		return nil, &document.ConfigurationError{Field: "observed", Reason: "observations have no distance column"}
	}
	dist, err := cfg.Observed.Column(report.Distance)
	if err != nil {
		return nil, err
	}
	for i, x := range dist {
		if math.IsNaN(x) {
			return nil, &document.ConfigurationError{Field: "observed", Reason: fmt.Sprintf("observation %d has no distance", i+1)}
		}
	}
	if len(cfg.Pairs) == 0 {
		cfg.Pairs = fit.DefaultPairs()
	}
	if cfg.Weights == nil {
		cfg.Weights = fit.DefaultWeights()
	}
	for _, p := range cfg.Pairs {
		if _, ok := cfg.Weights[p.Sim]; !ok {
			return nil, &document.ConfigurationError{Field: "weights." + p.Sim, Reason: "scored variable has no weight"}
		}
	}
	if cfg.Settings.Header.FileName == "" {
		cfg.Settings.Header.FileName = DefaultDocumentName
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Component("sandbox")
	}
	return &Evaluator{cfg: cfg, log: log}, nil
}

// Evaluate scores one candidate. Failures are folded into a Result with
// FailureFitness; only a configuration error is returned, and the caller
// should stop the run when it sees one.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (res Result, err error) {
	start := time.Now()
	res = Result{
		ID:      req.ID,
		Genes:   append([]float64(nil), req.Genes...),
		Fitness: FailureFitness,
	}
	defer func() {
		if p := recover(); p != nil {
			res.Success = false
			res.Fitness = FailureFitness
			res.Err = fmt.Errorf("evaluation %d panicked: %v", req.ID, p)
			err = nil
			e.log.Error("evaluation panicked", "eval_id", req.ID, "panic", p)
		}
		res.Duration = time.Since(start)
	}()

	out, runErr := e.run(ctx, req)
	if runErr != nil {
		res.Err = runErr
		var cfg *document.ConfigurationError
		if errors.As(runErr, &cfg) {
			return res, runErr
		}
		e.log.Warn("evaluation failed", "eval_id", req.ID, "error", runErr)
		return res, nil
	}
	res.Summary = out.summary
	res.Fitness = out.summary.Fitness
	res.Files = out.files
	res.Success = true
	return res, nil
}

type outcome struct {
	summary fit.Summary
	files   []string
}

func (e *Evaluator) run(ctx context.Context, req Request) (outcome, error) {
	if e.cfg.Codec == nil && len(req.Genes) > 0 {
		return outcome{}, fmt.Errorf("got %d genes but no parameter codec is configured", len(req.Genes))
	}
	dir, err := os.MkdirTemp(e.cfg.WorkDir, utils.EvaluationDirPrefix(req.ID))
	if err != nil {
		return outcome{}, fmt.Errorf("failed to create sandbox: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			e.log.Warn("failed to remove sandbox", "dir", dir, "error", err)
		}
	}()

	if e.cfg.TemplateDir != "" {
		if err := copyTemplateFiles(e.cfg.TemplateDir, dir); err != nil {
			return outcome{}, err
		}
	}

	settings := e.cfg.Settings
	settings.Header.FileDir = dir
	if len(req.Genes) > 0 {
		overrides, err := e.cfg.Codec.Decode(req.Genes)
		if err != nil {
			return outcome{}, fmt.Errorf("failed to decode genes: %w", err)
		}
		settings.Overrides = overrides
	}

	doc, err := template.Build(e.cfg.Template, settings)
	if err != nil {
		return outcome{}, err
	}
	paths, err := q2k.WriteRegistration(dir, settings.Header.FileName)
	if err != nil {
		return outcome{}, err
	}
	if err := q2k.WriteFile(paths.Document, doc); err != nil {
		return outcome{}, err
	}

	if err := e.cfg.Runner.Run(ctx, dir, paths); err != nil {
		return outcome{}, err
	}

	rep, err := report.ParseFile(paths.Report)
	if err != nil {
		return outcome{}, err
	}
	sim, err := report.Canonical(rep)
	if err != nil {
		return outcome{}, err
	}
	if surplus := e.cfg.Observed.Len() - sim.Len(); surplus > 0 {
		e.log.Warn("more observations than simulated points, extras dropped", "eval_id", req.ID, "dropped", surplus)
	}
	aligned, err := fit.Align(sim, e.cfg.Observed)
	if err != nil {
		return outcome{}, err
	}
	summary, err := fit.Score(aligned, e.cfg.Pairs, e.cfg.Weights)
	if err != nil {
		return outcome{}, err
	}

	out := outcome{summary: summary}
	if req.Report != nil {
		files, err := export(req.Report, aligned, paths)
		if err != nil {
			return outcome{}, err
		}
		out.files = files
	}
	return out, nil
}

func export(opts *ReportOptions, aligned *table.Frame, paths q2k.Paths) ([]string, error) {
	name := opts.Name
	if name == "" {
		name = DefaultDocumentName
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	csvPath := filepath.Join(opts.Dir, name+".csv")
	f, err := os.Create(csvPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", csvPath, err)
	}
	if err := aligned.WriteCSV(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write %s: %w", csvPath, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close %s: %w", csvPath, err)
	}

	files := []string{csvPath}
	for _, src := range []string{paths.Document, paths.Report} {
		dst := filepath.Join(opts.Dir, name+filepath.Ext(src))
		if err := copyFile(src, dst); err != nil {
			return nil, err
		}
		files = append(files, dst)
	}
	return files, nil
}
