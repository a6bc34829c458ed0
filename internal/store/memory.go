package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/q2k-calibrator/pkg/utils"
)

type memoryRun struct {
	run         Run
	evaluations []Evaluation
	generations []Generation
}

// MemoryStore keeps the ledger in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*memoryRun
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*memoryRun)}
}

func (s *MemoryStore) Create(_ context.Context, run Run) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = utils.GenerateRunID()
	}
	if _, exists := s.runs[run.ID]; exists {
		return Run{}, fmt.Errorf("%w: %s", ErrExists, run.ID)
	}
	if run.Status == "" {
		run.Status = StatusPending
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	s.runs[run.ID] = &memoryRun{run: run}
	return run, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[id]
	if !ok {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return copyRun(rec.run), nil
}

// List returns the newest runs first.
func (s *MemoryStore) List(_ context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = DefaultListLimit
	}
	out := make([]Run, 0, len(s.runs))
	for _, rec := range s.runs {
		out = append(out, copyRun(rec.run))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) SetStatus(_ context.Context, id string, status Status, errMsg string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[id]
	if !ok {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if errMsg != "" {
		rec.run.Error = errMsg
	}
	stamp(status, &rec.run, time.Now().UTC())
	return copyRun(rec.run), nil
}

func (s *MemoryStore) SetBest(_ context.Context, id string, fitness float64, genes []float64, evaluations int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rec.run.BestFitness = fitness
	rec.run.BestGenes = append([]float64(nil), genes...)
	rec.run.Evaluations = evaluations
	return nil
}

func (s *MemoryStore) AddEvaluation(_ context.Context, e Evaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[e.RunID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, e.RunID)
	}
	e.Genes = append([]float64(nil), e.Genes...)
	rec.evaluations = append(rec.evaluations, e)
	return nil
}

func (s *MemoryStore) AddGeneration(_ context.Context, g Generation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[g.RunID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, g.RunID)
	}
	rec.generations = append(rec.generations, g)
	return nil
}

// Evaluations returns the run's evaluations ordered by id.
func (s *MemoryStore) Evaluations(_ context.Context, runID string) ([]Evaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	out := make([]Evaluation, len(rec.evaluations))
	for i, e := range rec.evaluations {
		e.Genes = append([]float64(nil), e.Genes...)
		out[i] = e
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Generations(_ context.Context, runID string) ([]Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return append([]Generation(nil), rec.generations...), nil
}

func (s *MemoryStore) Close() error { return nil }

func copyRun(r Run) Run {
	r.BestGenes = append([]float64(nil), r.BestGenes...)
	return r
}
