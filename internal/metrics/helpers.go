package metrics

import (
	"math"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/sandbox"
)

// OutcomeOf classifies a sandbox result for the evaluations counter.
func OutcomeOf(res sandbox.Result) string {
	switch {
	case !res.Success:
		return OutcomeFailure
	case math.IsNaN(res.Fitness):
		return OutcomeUndefined
	default:
		return OutcomeSuccess
	}
}
