// Package search adapts gonum's CMA-ES to the calibration driver. The
// search runs in the unit box; candidates are mapped to gene units before
// they are scored.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/calibration"
	"github.com/GoSim-25-26J-441/q2k-calibrator/pkg/logger"
)

// CMAES is a calibration.Searcher.
type CMAES struct {
	cfg      Config
	criteria []Criterion
	log      *slog.Logger
}

// NewCMAES resolves cfg against its preset.
func NewCMAES(cfg Config, log *slog.Logger) (*CMAES, error) {
	resolved, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}
	criteria, err := ParseStopCriteria(resolved.StopCriteria)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Component("search")
	}
	return &CMAES{cfg: resolved, criteria: criteria, log: log}, nil
}

// Config returns the resolved configuration.
func (c *CMAES) Config() Config { return c.cfg }

func (c *CMAES) String() string { return "cmaes/" + c.cfg.Preset }

func (c *CMAES) Describe() []calibration.Setting {
	seed := "random"
	if c.cfg.Seed != nil {
		seed = fmt.Sprint(*c.cfg.Seed)
	}
	stop := make([]string, len(c.criteria))
	for i, cr := range c.criteria {
		stop[i] = cr.String()
	}
	return []calibration.Setting{
		{Name: "method", Value: "CMA-ES"},
		{Name: "preset", Value: c.cfg.Preset},
		{Name: "generations", Value: c.cfg.Generations},
		{Name: "population", Value: c.cfg.Population},
		{Name: "step_size", Value: c.cfg.StepSize},
		{Name: "max_evaluations", Value: c.cfg.MaxEvaluations},
		{Name: "random_seed", Value: seed},
		{Name: "stop_criteria", Value: stop},
	}
}

// Search minimizes the negated fitness. It returns ctx.Err() when the
// context ends the search, and nil for any normal termination.
func (c *CMAES) Search(ctx context.Context, p calibration.Problem) error {
	if p.Bounds == nil || p.Fitness == nil {
		return fmt.Errorf("search: problem needs bounds and a fitness")
	}
	dim := p.Bounds.Len()
	if dim < 1 {
		return fmt.Errorf("search: empty gene space")
	}

	problem := optimize.Problem{
		Func: func(u []float64) float64 {
			if ctx.Err() != nil {
				return costOf(calibrationFailure)
			}
			return costOf(p.Fitness.Fitness(p.Bounds.Denormalize(u)))
		},
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}

	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	settings := &optimize.Settings{
		Converger:       newGenerations(c.criteria, p.Observer),
		MajorIterations: c.cfg.Generations,
		FuncEvaluations: c.cfg.MaxEvaluations,
		Concurrent:      workers,
	}
	method := &optimize.CmaEsChol{
		InitStepSize: c.cfg.StepSize,
		Population:   c.cfg.Population,
		ForgetBest:   true,
		Src:          c.source(),
	}

	start := make([]float64, dim)
	for i := range start {
		start[i] = 0.5
	}

	c.log.Info("search started", "method", "cmaes", "preset", c.cfg.Preset, "dim", dim,
		"generations", c.cfg.Generations, "population", c.cfg.Population, "concurrent", workers)
	began := time.Now()
	res, err := optimize.Minimize(problem, start, settings, method)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		return fmt.Errorf("failed to run cmaes: %w", err)
	}
	c.log.Info("search finished", "status", res.Status.String(), "generations", res.Stats.MajorIterations,
		"evaluations", res.Stats.FuncEvaluations, "elapsed", time.Since(began))
	return nil
}

// calibrationFailure is what a cancelled evaluation scores.
const calibrationFailure = -999.0

func (c *CMAES) source() rand.Source {
	if c.cfg.Seed == nil {
		return rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return rand.NewPCG(*c.cfg.Seed, *c.cfg.Seed)
}
