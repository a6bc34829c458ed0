// Package store keeps a ledger of calibration runs: one record per run plus
// every evaluation and generation it produced.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

var (
	ErrNotFound = errors.New("run not found")
	ErrExists   = errors.New("run already exists")
)

// Run is the summary record of one calibration.
type Run struct {
	ID          string
	Status      Status
	Error       string
	Genes       int
	Workers     int
	Search      string
	BestFitness float64
	BestGenes   []float64
	Evaluations int
	CreatedAt   time.Time
	StartedAt   time.Time
	EndedAt     time.Time
}

// Evaluation is one scored candidate.
type Evaluation struct {
	RunID    string
	ID       int64
	Genes    []float64
	Fitness  float64
	Success  bool
	Error    string
	Duration time.Duration
	At       time.Time
}

// Generation is one search generation.
type Generation struct {
	RunID       string
	Generation  int
	BestThisGen float64
	BestOverall float64
	At          time.Time
}

// Store persists the ledger. Implementations are safe for concurrent use.
type Store interface {
	Create(ctx context.Context, run Run) (Run, error)
	Get(ctx context.Context, id string) (Run, error)
	List(ctx context.Context, limit int) ([]Run, error)
	SetStatus(ctx context.Context, id string, status Status, errMsg string) (Run, error)
	SetBest(ctx context.Context, id string, fitness float64, genes []float64, evaluations int) error
	AddEvaluation(ctx context.Context, e Evaluation) error
	AddGeneration(ctx context.Context, g Generation) error
	Evaluations(ctx context.Context, runID string) ([]Evaluation, error)
	Generations(ctx context.Context, runID string) ([]Generation, error)
	Close() error
}

// DefaultListLimit bounds List when no limit is given.
const DefaultListLimit = 50

// Open returns the store for kind: "memory" (or empty) or "sqlite".
func Open(ctx context.Context, kind, path string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return OpenSQLite(ctx, path)
	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", kind)
	}
}

func stamp(status Status, run *Run, now time.Time) {
	run.Status = status
	switch {
	case status == StatusRunning:
		if run.StartedAt.IsZero() {
			run.StartedAt = now
		}
	case status.Terminal():
		run.EndedAt = now
	}
}
