package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/q2k-calibrator/pkg/utils"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists the ledger in a SQLite file.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the ledger at path. ":memory:" keeps
// it in memory.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	// one writer; also keeps ":memory:" on a single connection
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping ledger: %w", err)
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create ledger tables: %w", err)
	}
	return &SQLiteStore{path: path, db: db}, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			genes INTEGER NOT NULL,
			workers INTEGER NOT NULL,
			search TEXT NOT NULL,
			best_fitness REAL,
			best_genes TEXT NOT NULL DEFAULT '[]',
			evaluations INTEGER NOT NULL DEFAULT 0,
			created_at_ms INTEGER NOT NULL,
			started_at_ms INTEGER NOT NULL DEFAULT 0,
			ended_at_ms INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS evaluations (
			run_id TEXT NOT NULL REFERENCES runs(id),
			id INTEGER NOT NULL,
			genes TEXT NOT NULL,
			fitness REAL,
			success INTEGER NOT NULL,
			error TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			at_ms INTEGER NOT NULL,
			PRIMARY KEY (run_id, id)
		);
		CREATE TABLE IF NOT EXISTS generations (
			run_id TEXT NOT NULL REFERENCES runs(id),
			generation INTEGER NOT NULL,
			best_this_gen REAL,
			best_overall REAL,
			at_ms INTEGER NOT NULL,
			PRIMARY KEY (run_id, generation)
		);
	`)
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("ledger is closed")
	}
	return s.db, nil
}

func (s *SQLiteStore) Create(ctx context.Context, run Run) (Run, error) {
	db, err := s.getDB()
	if err != nil {
		return Run{}, err
	}
	if run.ID == "" {
		run.ID = utils.GenerateRunID()
	}
	if run.Status == "" {
		run.Status = StatusPending
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	genes, err := encodeGenes(run.BestGenes)
	if err != nil {
		return Run{}, err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, status, error, genes, workers, search, best_fitness, best_genes, evaluations, created_at_ms, started_at_ms, ended_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, string(run.Status), run.Error, run.Genes, run.Workers, run.Search,
		nullable(run.BestFitness), genes, run.Evaluations,
		unixMs(run.CreatedAt), unixMs(run.StartedAt), unixMs(run.EndedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return Run{}, fmt.Errorf("%w: %s", ErrExists, run.ID)
		}
		return Run{}, fmt.Errorf("failed to insert run: %w", err)
	}
	return run, nil
}

const runColumns = `id, status, error, genes, workers, search, best_fitness, best_genes, evaluations, created_at_ms, started_at_ms, ended_at_ms`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r                      Run
		status, genes          string
		best                   sql.NullFloat64
		created, started, ended int64
	)
	if err := row.Scan(&r.ID, &status, &r.Error, &r.Genes, &r.Workers, &r.Search,
		&best, &genes, &r.Evaluations, &created, &started, &ended); err != nil {
		return Run{}, err
	}
	r.Status = Status(status)
	r.BestFitness = fromNullable(best)
	v, err := decodeGenes(genes)
	if err != nil {
		return Run{}, err
	}
	r.BestGenes = v
	r.CreatedAt, r.StartedAt, r.EndedAt = fromUnixMs(created), fromUnixMs(started), fromUnixMs(ended)
	return r, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Run, error) {
	db, err := s.getDB()
	if err != nil {
		return Run{}, err
	}
	r, err := scanRun(db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Run, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at_ms DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SetStatus(ctx context.Context, id string, status Status, errMsg string) (Run, error) {
	run, err := s.Get(ctx, id)
	if err != nil {
		return Run{}, err
	}
	if errMsg != "" {
		run.Error = errMsg
	}
	stamp(status, &run, time.Now().UTC())

	db, err := s.getDB()
	if err != nil {
		return Run{}, err
	}
	_, err = db.ExecContext(ctx, `UPDATE runs SET status = ?, error = ?, started_at_ms = ?, ended_at_ms = ? WHERE id = ?`,
		string(run.Status), run.Error, unixMs(run.StartedAt), unixMs(run.EndedAt), id)
	if err != nil {
		return Run{}, fmt.Errorf("failed to update run: %w", err)
	}
	return run, nil
}

func (s *SQLiteStore) SetBest(ctx context.Context, id string, fitness float64, genes []float64, evaluations int) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	encoded, err := encodeGenes(genes)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `UPDATE runs SET best_fitness = ?, best_genes = ?, evaluations = ? WHERE id = ?`,
		nullable(fitness), encoded, evaluations, id)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) AddEvaluation(ctx context.Context, e Evaluation) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	genes, err := encodeGenes(e.Genes)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO evaluations (run_id, id, genes, fitness, success, error, duration_ms, at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.RunID, e.ID, genes, nullable(e.Fitness), e.Success, e.Error, e.Duration.Milliseconds(), unixMs(e.At))
	if err != nil {
		return fmt.Errorf("failed to insert evaluation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AddGeneration(ctx context.Context, g Generation) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO generations (run_id, generation, best_this_gen, best_overall, at_ms)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, generation) DO UPDATE SET
			best_this_gen = excluded.best_this_gen,
			best_overall = excluded.best_overall,
			at_ms = excluded.at_ms
	`, g.RunID, g.Generation, nullable(g.BestThisGen), nullable(g.BestOverall), unixMs(g.At))
	if err != nil {
		return fmt.Errorf("failed to insert generation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Evaluations(ctx context.Context, runID string) ([]Evaluation, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, genes, fitness, success, error, duration_ms, at_ms
		FROM evaluations WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	var out []Evaluation
	for rows.Next() {
		var (
			e          = Evaluation{RunID: runID}
			genes      string
			fitness    sql.NullFloat64
			durationMs int64
			atMs       int64
		)
		if err := rows.Scan(&e.ID, &genes, &fitness, &e.Success, &e.Error, &durationMs, &atMs); err != nil {
			return nil, err
		}
		if e.Genes, err = decodeGenes(genes); err != nil {
			return nil, err
		}
		e.Fitness = fromNullable(fitness)
		e.Duration = time.Duration(durationMs) * time.Millisecond
		e.At = fromUnixMs(atMs)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Generations(ctx context.Context, runID string) ([]Generation, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT generation, best_this_gen, best_overall, at_ms
		FROM generations WHERE run_id = ? ORDER BY generation
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}
	defer rows.Close()

	var out []Generation
	for rows.Next() {
		var (
			g             = Generation{RunID: runID}
			thisGen, best sql.NullFloat64
			atMs          int64
		)
		if err := rows.Scan(&g.Generation, &thisGen, &best, &atMs); err != nil {
			return nil, err
		}
		g.BestThisGen, g.BestOverall = fromNullable(thisGen), fromNullable(best)
		g.At = fromUnixMs(atMs)
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// NaN and infinities are stored as NULL and read back as NaN.
func nullable(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: utils.Finite(v)}
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func encodeGenes(v []float64) (string, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode genes: %w", err)
	}
	return string(b), nil
}

func decodeGenes(s string) ([]float64, error) {
	var v []float64
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("failed to decode genes: %w", err)
	}
	if len(v) == 0 {
		return nil, nil
	}
	return v, nil
}

func unixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMs(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
