// Package project assembles a calibration from its configuration: the
// workbook template, gene codec, evaluator, searcher and driver.
package project

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/calibration"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/document"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/engine"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/genes"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/metrics"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/sandbox"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/search"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/store"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/table"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/template"
	"github.com/GoSim-25-26J-441/q2k-calibrator/pkg/config"
	"github.com/GoSim-25-26J-441/q2k-calibrator/pkg/logger"
)

// Project is a loaded calibration project.
type Project struct {
	Config    *config.Config
	Template  *template.Template
	Codec     *genes.Codec
	Observed  *table.Frame
	Evaluator *sandbox.Evaluator
	Timeout   time.Duration

	log *slog.Logger
}

// Open reads the configured workbook and assembles the project.
func Open(cfg *config.Config, log *slog.Logger) (*Project, error) {
	tpl, err := template.LoadWorkbook(cfg.WorkbookPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s: %w", cfg.WorkbookPath(), err)
	}
	return New(cfg, tpl, log)
}

// New assembles a project around an already loaded template.
func New(cfg *config.Config, tpl *template.Template, log *slog.Logger) (*Project, error) {
	if log == nil {
		log = logger.Component("project")
	}
	timeout, err := cfg.Engine.GetTimeout()
	if err != nil {
		return nil, fmt.Errorf("invalid engine timeout: %w", err)
	}
	codec, err := genes.NewCodec(cfg.Parameters, len(tpl.Reaches))
	if err != nil {
		return nil, fmt.Errorf("failed to build gene codec: %w", err)
	}

	p := &Project{
		Config:   cfg,
		Template: tpl,
		Codec:    codec,
		Observed: template.ObservedFrame(tpl.Stations),
		Timeout:  timeout,
		log:      log,
	}
	p.Evaluator, err = sandbox.New(sandbox.Config{
		TemplateDir: cfg.Template.Dir,
		WorkDir:     cfg.Template.WorkDir,
		Template:    tpl,
		Settings:    p.Settings(),
		Codec:       codec,
		Observed:    p.Observed,
		Pairs:       cfg.Pairs(),
		Weights:     cfg.FitWeights(),
		Runner:      engine.NewRunner(cfg.Engine.Executable, timeout),
		Logger:      log.With("component", "sandbox"),
	})
	if err != nil {
		return nil, err
	}
	log.Info("project loaded",
		"reaches", len(tpl.Reaches),
		"stations", len(tpl.Stations),
		"sources", len(tpl.Sources),
		"genes", codec.Len())
	return p, nil
}

// Settings are the document build settings shared by every evaluation.
func (p *Project) Settings() template.Settings {
	m := p.Config.Model
	return template.Settings{
		Header:           p.Config.Header.Document(),
		ElementsPerReach: m.ElementsPerReach,
		HeadwaterFlow:    m.HeadwaterFlow,
		HeadwaterStation: m.HeadwaterStation,
		Rates:            p.Config.Rates,
	}
}

// Document builds the engine document for one gene vector. Empty genes give
// the default overrides.
func (p *Project) Document(vector []float64) (*document.Document, error) {
	s := p.Settings()
	if len(vector) > 0 {
		overrides, err := p.Codec.Decode(vector)
		if err != nil {
			return nil, err
		}
		s.Overrides = overrides
	}
	return template.Build(p.Template, s)
}

// Name is the base name for result files.
func (p *Project) Name() string {
	if p.Config.Output.Name != "" {
		return p.Config.Output.Name
	}
	if p.Config.Header.FileName != "" {
		return p.Config.Header.FileName
	}
	return calibration.DefaultName
}

// Searcher returns the configured search method.
func (p *Project) Searcher() (*search.CMAES, error) {
	return search.NewCMAES(p.Config.Search, p.log.With("component", "search"))
}

// Driver returns a calibration driver for this project. ledger and
// collector may be nil.
func (p *Project) Driver(ledger store.Store, collector *metrics.Collector, runID string) (*calibration.Driver, error) {
	opts := []calibration.Option{
		calibration.WithWorkers(p.Config.Parallel.WorkerCount()),
		calibration.WithTimeout(p.Timeout),
		calibration.WithLogger(p.log.With("component", "calibration")),
	}
	if p.Config.Output.Dir != "" {
		opts = append(opts, calibration.WithOutput(p.Config.Output.Dir, p.Name()))
	}
	if ledger != nil {
		opts = append(opts, calibration.WithLedger(ledger))
	}
	if collector != nil {
		opts = append(opts, calibration.WithTelemetry(collector))
	}
	if runID != "" {
		opts = append(opts, calibration.WithRunID(runID))
	}
	return calibration.NewDriver(p.Codec, p.Evaluator, opts...)
}
