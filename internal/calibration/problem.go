// Package calibration drives a stochastic search over gene vectors, scoring
// every candidate in a sandbox and keeping the best-so-far state.
package calibration

import (
	"context"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/sandbox"
)

// Fitness scores one candidate in gene units. Higher is better; NaN means
// the score is undefined.
type Fitness interface {
	Fitness(candidate []float64) float64
}

// FitnessFunc adapts a plain function to Fitness.
type FitnessFunc func(candidate []float64) float64

func (f FitnessFunc) Fitness(candidate []float64) float64 { return f(candidate) }

// GenerationObserver is told when the searcher completes a generation.
type GenerationObserver interface {
	OnGeneration(gen int, bestThisGen, bestOverall float64)
}

// Bounds describes the search box. genes.Codec satisfies it.
type Bounds interface {
	Len() int
	Normalize(v []float64) []float64
	Denormalize(u []float64) []float64
}

// Problem is what a Searcher optimizes. Workers bounds how many Fitness
// calls the searcher may have in flight at once.
type Problem struct {
	Bounds   Bounds
	Fitness  Fitness
	Observer GenerationObserver
	Workers  int
}

// Searcher maximizes p.Fitness until its own stop rule fires or ctx ends.
type Searcher interface {
	Search(ctx context.Context, p Problem) error
}

// Setting is one named search option, for reports.
type Setting struct {
	Name  string
	Value any
}

// Describer is implemented by searchers that can list their settings.
type Describer interface {
	Describe() []Setting
}

// Evaluator scores one request. *sandbox.Evaluator satisfies it.
type Evaluator interface {
	Evaluate(ctx context.Context, req sandbox.Request) (sandbox.Result, error)
}
