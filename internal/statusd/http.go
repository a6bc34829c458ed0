// Package statusd serves the state of calibrations over HTTP and exposes a
// gRPC health service while a calibration is running.
package statusd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/metrics"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/store"
	"github.com/GoSim-25-26J-441/q2k-calibrator/pkg/logger"
	"github.com/GoSim-25-26J-441/q2k-calibrator/pkg/utils"
)

const maxListLimit = 1000

type HTTPServer struct {
	mux    *http.ServeMux
	ledger store.Store
}

// NewHTTPServer serves the ledger. A nil collector leaves /metrics unrouted.
func NewHTTPServer(ledger store.Store, collector *metrics.Collector) *HTTPServer {
	s := &HTTPServer{mux: http.NewServeMux(), ledger: ledger}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/calibration", s.handleRuns)
	s.mux.HandleFunc("/v1/calibration/", s.handleRunByID)
	if collector != nil {
		s.mux.Handle("/metrics", collector.Handler())
	}
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleRuns lists runs, newest first.
func (s *HTTPServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := store.DefaultListLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = min(parsed, maxListLimit)
		}
	}

	runs, err := s.ledger.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]map[string]any, 0, len(runs))
	for _, run := range runs {
		out = append(out, runJSON(run))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

// handleRunByID serves /v1/calibration/{id}, /v1/calibration/{id}/history
// and /v1/calibration/{id}/evaluations.
func (s *HTTPServer) handleRunByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1/calibration/")
	id, sub, _ := strings.Cut(path, "/")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	switch sub {
	case "":
		run, err := s.ledger.Get(r.Context(), id)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"run": runJSON(run)})
	case "history":
		gens, err := s.ledger.Generations(r.Context(), id)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		out := make([]map[string]any, 0, len(gens))
		for _, g := range gens {
			out = append(out, map[string]any{
				"generation":    g.Generation,
				"best_this_gen": number(g.BestThisGen),
				"best_overall":  number(g.BestOverall),
				"at_unix_ms":    g.At.UnixMilli(),
			})
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"run_id": id, "history": out})
	case "evaluations":
		evals, err := s.ledger.Evaluations(r.Context(), id)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		out := make([]map[string]any, 0, len(evals))
		for _, e := range evals {
			out = append(out, map[string]any{
				"id":          e.ID,
				"genes":       e.Genes,
				"fitness":     number(e.Fitness),
				"success":     e.Success,
				"error":       e.Error,
				"duration_ms": e.Duration.Milliseconds(),
			})
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"run_id": id, "evaluations": out})
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}

func runJSON(run store.Run) map[string]any {
	return map[string]any{
		"id":                 run.ID,
		"status":             string(run.Status),
		"error":              run.Error,
		"genes":              run.Genes,
		"workers":            run.Workers,
		"search":             run.Search,
		"best_fitness":       number(run.BestFitness),
		"best_genes":         run.BestGenes,
		"evaluations":        run.Evaluations,
		"created_at_unix_ms": unixMs(run.CreatedAt),
		"started_at_unix_ms": unixMs(run.StartedAt),
		"ended_at_unix_ms":   unixMs(run.EndedAt),
	}
}

// number maps NaN and infinities to null; JSON has no encoding for them.
func number(v float64) any {
	if !utils.Finite(v) {
		return nil
	}
	return v
}

func unixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
