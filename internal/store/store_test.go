package store

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()
	sqlite, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestCreateAndGet(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			run, err := s.Create(ctx, Run{Genes: 3, Workers: 2, Search: "cmaes/quick"})
			if err != nil {
				t.Fatalf("Create returned error: %v", err)
			}
			if run.ID == "" {
				t.Fatalf("expected generated run id")
			}
			if run.Status != StatusPending {
				t.Fatalf("expected pending, got %s", run.Status)
			}

			got, err := s.Get(ctx, run.ID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Genes != 3 || got.Workers != 2 || got.Search != "cmaes/quick" {
				t.Fatalf("unexpected run %+v", got)
			}
			if got.CreatedAt.IsZero() {
				t.Fatalf("expected created_at")
			}
		})
	}
}

func TestCreateDuplicate(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := s.Create(ctx, Run{ID: "run-1"}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			_, err := s.Create(ctx, Run{ID: "run-1"})
			if !errors.Is(err, ErrExists) {
				t.Fatalf("expected ErrExists, got %v", err)
			}
		})
	}
}

func TestGetMissing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(context.Background(), "nope")
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if err := s.SetBest(context.Background(), "nope", 1, nil, 1); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound from SetBest, got %v", err)
			}
		})
	}
}

func TestSetStatusSetsTimestamps(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			run, _ := s.Create(ctx, Run{ID: "run-1"})
			if !run.StartedAt.IsZero() || !run.EndedAt.IsZero() {
				t.Fatalf("expected timestamps not set initially")
			}

			run, err := s.SetStatus(ctx, "run-1", StatusRunning, "")
			if err != nil {
				t.Fatalf("SetStatus running: %v", err)
			}
			if run.StartedAt.IsZero() || !run.EndedAt.IsZero() {
				t.Fatalf("running sets only started_at: %+v", run)
			}

			run, err = s.SetStatus(ctx, "run-1", StatusFailed, "engine missing")
			if err != nil {
				t.Fatalf("SetStatus failed: %v", err)
			}
			if run.EndedAt.IsZero() || run.Error != "engine missing" {
				t.Fatalf("unexpected run %+v", run)
			}

			got, _ := s.Get(ctx, "run-1")
			if got.Status != StatusFailed || got.Error != "engine missing" {
				t.Fatalf("status not persisted: %+v", got)
			}
		})
	}
}

func TestEvaluationsAndGenerations(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := s.Create(ctx, Run{ID: "run-1"}); err != nil {
				t.Fatal(err)
			}
			now := time.Now().UTC()
			evals := []Evaluation{
				{RunID: "run-1", ID: 2, Genes: []float64{0.2, 0.3}, Fitness: math.NaN(), Success: true, Duration: 1500 * time.Millisecond, At: now},
				{RunID: "run-1", ID: 1, Genes: []float64{0.1, 0.4}, Fitness: 0.61, Success: true, At: now},
				{RunID: "run-1", ID: 3, Genes: []float64{0.9, 0.9}, Fitness: -999, Error: "timeout", At: now},
			}
			for _, e := range evals {
				if err := s.AddEvaluation(ctx, e); err != nil {
					t.Fatalf("AddEvaluation: %v", err)
				}
			}
			for g := 1; g <= 2; g++ {
				if err := s.AddGeneration(ctx, Generation{RunID: "run-1", Generation: g, BestThisGen: 0.5, BestOverall: 0.61, At: now}); err != nil {
					t.Fatalf("AddGeneration: %v", err)
				}
			}
			if err := s.SetBest(ctx, "run-1", 0.61, []float64{0.1, 0.4}, 3); err != nil {
				t.Fatalf("SetBest: %v", err)
			}

			got, err := s.Evaluations(ctx, "run-1")
			if err != nil {
				t.Fatalf("Evaluations: %v", err)
			}
			if len(got) != 3 || got[0].ID != 1 || got[2].ID != 3 {
				t.Fatalf("expected evaluations ordered by id, got %+v", got)
			}
			if !math.IsNaN(got[1].Fitness) {
				t.Fatalf("expected NaN fitness to survive, got %v", got[1].Fitness)
			}
			if got[1].Duration != 1500*time.Millisecond {
				t.Fatalf("duration: %v", got[1].Duration)
			}
			if got[2].Success || got[2].Error != "timeout" {
				t.Fatalf("failure not persisted: %+v", got[2])
			}
			if got[0].Genes[1] != 0.4 {
				t.Fatalf("genes: %v", got[0].Genes)
			}

			gens, err := s.Generations(ctx, "run-1")
			if err != nil {
				t.Fatalf("Generations: %v", err)
			}
			if len(gens) != 2 || gens[1].Generation != 2 {
				t.Fatalf("unexpected generations %+v", gens)
			}

			run, _ := s.Get(ctx, "run-1")
			if run.BestFitness != 0.61 || run.Evaluations != 3 || len(run.BestGenes) != 2 {
				t.Fatalf("best not persisted: %+v", run)
			}

			if _, err := s.Evaluations(ctx, "nope"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestListNewestFirst(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			for i, id := range []string{"a", "b", "c"} {
				if _, err := s.Create(ctx, Run{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
					t.Fatal(err)
				}
			}
			runs, err := s.List(ctx, 2)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
				t.Fatalf("unexpected order %+v", runs)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "", "")
	if err != nil {
		t.Fatalf("Open memory: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", s)
	}
	if _, err := Open(ctx, "sqlite", ""); err == nil {
		t.Fatalf("expected error for missing sqlite path")
	}
	if _, err := Open(ctx, "postgres", "x"); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestClosedSQLite(t *testing.T) {
	s, err := OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(context.Background(), "x"); err == nil {
		t.Fatalf("expected error after close")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
