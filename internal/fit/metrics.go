// Package fit scores simulated series against observations and aligns the
// two on longitudinal distance.
//
// Undefined statistics are NaN. A NaN per-variable score makes the weighted
// fitness NaN as well; callers decide how to rank such candidates.
package fit

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// valid drops every pair where either side is NaN or infinite.
func valid(obs, sim []float64) (o, s []float64) {
	n := min(len(obs), len(sim))
	o = make([]float64, 0, n)
	s = make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if bad(obs[i]) || bad(sim[i]) {
			continue
		}
		o = append(o, obs[i])
		s = append(s, sim[i])
	}
	return o, s
}

func bad(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// KGEComponents returns the Kling-Gupta efficiency with its correlation,
// variability ratio and bias ratio. At least two valid pairs are required.
func KGEComponents(obs, sim []float64) (kge, r, alpha, beta float64) {
	nan := math.NaN()
	o, s := valid(obs, sim)
	if len(o) < 2 {
		return nan, nan, nan, nan
	}

	r = stat.Correlation(o, s, nil)

	alpha = nan
	if sdObs := stat.StdDev(o, nil); sdObs != 0 {
		alpha = stat.StdDev(s, nil) / sdObs
	}

	beta = nan
	if meanObs := stat.Mean(o, nil); meanObs != 0 {
		beta = stat.Mean(s, nil) / meanObs
	}

	if math.IsNaN(r) || math.IsNaN(alpha) || math.IsNaN(beta) {
		return nan, r, alpha, beta
	}
	kge = 1 - math.Sqrt((r-1)*(r-1)+(alpha-1)*(alpha-1)+(beta-1)*(beta-1))
	return kge, r, alpha, beta
}

// KGE is the Kling-Gupta efficiency. 1 is a perfect fit.
func KGE(obs, sim []float64) float64 {
	k, _, _, _ := KGEComponents(obs, sim)
	return k
}

// NSE is the Nash-Sutcliffe efficiency.
func NSE(obs, sim []float64) float64 {
	o, s := valid(obs, sim)
	if len(o) < 2 {
		return math.NaN()
	}
	mean := stat.Mean(o, nil)
	var num, den float64
	for i := range o {
		num += (o[i] - s[i]) * (o[i] - s[i])
		den += (o[i] - mean) * (o[i] - mean)
	}
	if den == 0 {
		return math.NaN()
	}
	return 1 - num/den
}

// RMSE is the root mean square error.
func RMSE(obs, sim []float64) float64 {
	o, s := valid(obs, sim)
	if len(o) < 1 {
		return math.NaN()
	}
	var sum float64
	for i := range o {
		sum += (o[i] - s[i]) * (o[i] - s[i])
	}
	return math.Sqrt(sum / float64(len(o)))
}

// PBIAS is the percent bias. Positive values mean the simulation
// underestimates.
func PBIAS(obs, sim []float64) float64 {
	o, s := valid(obs, sim)
	if len(o) < 1 {
		return math.NaN()
	}
	var diff, total float64
	for i := range o {
		diff += o[i] - s[i]
		total += o[i]
	}
	if total == 0 {
		return math.NaN()
	}
	return 100 * diff / total
}
