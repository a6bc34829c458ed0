package metrics

import (
	"errors"
	"io"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/sandbox"
)

func TestObserveEvaluation(t *testing.T) {
	c := NewCollector()
	c.Started()
	c.Started()
	assert.Equal(t, 2.0, testutil.ToFloat64(c.inFlight))

	c.ObserveEvaluation(OutcomeSuccess, 2*time.Second)
	c.ObserveEvaluation(OutcomeFailure, time.Second)

	assert.Equal(t, 0.0, testutil.ToFloat64(c.inFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.evaluations.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.evaluations.WithLabelValues(OutcomeFailure)))
	assert.Equal(t, 1, testutil.CollectAndCount(c.duration))
}

func TestBestAndGeneration(t *testing.T) {
	c := NewCollector()
	c.SetBest(0.42)
	c.SetGeneration(7)
	c.RunFinished("completed")

	assert.Equal(t, 0.42, testutil.ToFloat64(c.best))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.generation))

	expected := `
# HELP q2kcal_runs_total Finished calibration runs by status.
# TYPE q2kcal_runs_total counter
q2kcal_runs_total{status="completed"} 1
`
	require.NoError(t, testutil.CollectAndCompare(c.runs, strings.NewReader(expected)))
}

func TestHandler(t *testing.T) {
	c := NewCollector()
	c.SetBest(0.5)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "q2kcal_best_fitness 0.5")
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		name string
		res  sandbox.Result
		want string
	}{
		{"success", sandbox.Result{Success: true, Fitness: 0.3}, OutcomeSuccess},
		{"failure", sandbox.Result{Fitness: sandbox.FailureFitness, Err: errors.New("boom")}, OutcomeFailure},
		{"undefined", sandbox.Result{Success: true, Fitness: math.NaN()}, OutcomeUndefined},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OutcomeOf(tt.res))
		})
	}
}

func TestCollectorsAreIndependent(t *testing.T) {
	a, b := NewCollector(), NewCollector()
	a.SetBest(1)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.best))
}
