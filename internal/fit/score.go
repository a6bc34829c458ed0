package fit

import (
	"fmt"
	"math"
	"slices"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/report"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/table"
)

// ObservedSuffix marks observation columns in an aligned frame.
const ObservedSuffix = "_obs"

// Pair names a simulated column and the observed column it is scored
// against.
type Pair struct {
	Sim string
	Obs string
}

// PairFor returns the pair for a canonical variable name.
func PairFor(name string) Pair {
	return Pair{Sim: name, Obs: name + ObservedSuffix}
}

// DefaultPairs lists the variables scored during calibration.
func DefaultPairs() []Pair {
	return []Pair{
		PairFor(report.WaterTemp),
		PairFor(report.DissolvedOxygen),
		PairFor(report.CBODFast),
		PairFor(report.TotalKjeldahlNitrogen),
		PairFor(report.Ammonium),
		PairFor(report.TotalPhosphorus),
	}
}

// Weights maps a simulated variable name to its share of the fitness.
type Weights map[string]float64

// DefaultWeights returns the calibration weights. They sum to 1.
func DefaultWeights() Weights {
	return Weights{
		report.DissolvedOxygen:       0.20,
		report.Ammonium:              0.15,
		report.TotalPhosphorus:       0.15,
		report.TotalKjeldahlNitrogen: 0.15,
		report.WaterTemp:             0.10,
		report.CBODFast:              0.25,
	}
}

// MissingWeightError is returned when a scored variable has no weight.
type MissingWeightError struct {
	Variable string
}

func (e *MissingWeightError) Error() string {
	return fmt.Sprintf("no weight for variable %q", e.Variable)
}

// Weighted returns the weighted sum of scores, summed in name order. Every
// score needs a weight. NaN scores are not skipped.
func Weighted(scores map[string]float64, weights Weights) (float64, error) {
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	slices.Sort(names)

	var total float64
	for _, name := range names {
		w, ok := weights[name]
		if !ok {
			return math.NaN(), &MissingWeightError{Variable: name}
		}
		total += scores[name] * w
	}
	return total, nil
}

// VariableScore holds every statistic for one variable.
type VariableScore struct {
	Name  string
	N     int
	KGE   float64
	R     float64
	Alpha float64
	Beta  float64
	NSE   float64
	RMSE  float64
	PBIAS float64
}

// Summary is the outcome of scoring one aligned frame.
type Summary struct {
	Variables []VariableScore
	Rows      int
	Fitness   float64
}

// KGEs returns the per-variable KGE values.
func (s Summary) KGEs() map[string]float64 {
	out := make(map[string]float64, len(s.Variables))
	for _, v := range s.Variables {
		out[v.Name] = v.KGE
	}
	return out
}

// Score keeps the rows where every scored column is present, computes each
// pair's statistics on them and folds the KGE values into the weighted
// fitness in pair order.
func Score(aligned *table.Frame, pairs []Pair, weights Weights) (Summary, error) {
	cols := make([][]float64, 0, 2*len(pairs))
	for _, p := range pairs {
		if _, ok := weights[p.Sim]; !ok {
			return Summary{Fitness: math.NaN()}, &MissingWeightError{Variable: p.Sim}
		}
		for _, name := range []string{p.Sim, p.Obs} {
			c, err := aligned.Column(name)
			if err != nil {
				return Summary{Fitness: math.NaN()}, fmt.Errorf("failed to score: %w", err)
			}
			cols = append(cols, c)
		}
	}

	var keep []int
	for i := 0; i < aligned.Len(); i++ {
		complete := true
		for _, c := range cols {
			if math.IsNaN(c[i]) {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, i)
		}
	}

	sum := Summary{Rows: len(keep)}
	for k, p := range pairs {
		sim := pick(cols[2*k], keep)
		obs := pick(cols[2*k+1], keep)
		v := VariableScore{
			Name:  p.Sim,
			N:     len(keep),
			NSE:   NSE(obs, sim),
			RMSE:  RMSE(obs, sim),
			PBIAS: PBIAS(obs, sim),
		}
		v.KGE, v.R, v.Alpha, v.Beta = KGEComponents(obs, sim)
		sum.Variables = append(sum.Variables, v)
		sum.Fitness += v.KGE * weights[p.Sim]
	}
	return sum, nil
}

func pick(col []float64, rows []int) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = col[r]
	}
	return out
}
