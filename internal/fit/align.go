package fit

import (
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/report"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/table"
)

// Align matches each observation to one simulated row and returns the
// simulated frame, sorted by ascending distance, with the observation
// columns appended. Observations are visited in ascending distance; each
// takes the closest simulated row not yet taken, the lower distance on a
// tie. Unmatched simulated rows carry NaN observations. Observations left
// over once every simulated row is taken are dropped.
func Align(sim, obs *table.Frame) (*table.Frame, error) {
	key := report.Distance
	if !sim.Has(key) || !obs.Has(key) {
		return nil, fmt.Errorf("align: both frames need a %s column", key)
	}

	s := sim.Clone()
	if err := s.SortBy(key, false); err != nil {
		return nil, err
	}
	o := obs.Clone()
	if err := o.SortBy(key, false); err != nil {
		return nil, err
	}

	var extra []string
	for _, c := range o.Columns() {
		if c == key {
			continue
		}
		if s.Has(c) {
			return nil, fmt.Errorf("align: column %q present in both frames", c)
		}
		extra = append(extra, c)
	}

	simKeys, _ := s.Column(key)
	taken := make([]bool, len(simKeys))
	match := make([]int, len(simKeys))
	for i := range match {
		match[i] = -1
	}

	for j := 0; j < o.Len(); j++ {
		d := o.Value(j, key)
		if math.IsNaN(d) {
			return nil, fmt.Errorf("align: observation %d has no distance", j)
		}
		best, bestGap := -1, math.Inf(1)
		for i, k := range simKeys {
			if taken[i] || math.IsNaN(k) {
				continue
			}
			if gap := math.Abs(k - d); gap < bestGap {
				best, bestGap = i, gap
			}
		}
		if best < 0 {
			break
		}
		taken[best] = true
		match[best] = j
	}

	out, err := table.New(append(s.Columns(), extra...)...)
	if err != nil {
		return nil, err
	}
	for i := 0; i < s.Len(); i++ {
		row := s.Row(i)
		for _, c := range extra {
			v := math.NaN()
			if match[i] >= 0 {
				v = o.Value(match[i], c)
			}
			row = append(row, v)
		}
		if err := out.Append(row); err != nil {
			return nil, err
		}
	}
	return out, nil
}
