package search

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/optimize"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/calibration"
)

// Criterion is a stop rule checked after every generation.
type Criterion interface {
	// Check reports a terminal status given the overall best fitness and the
	// number of generations since it last improved.
	Check(best float64, stale int) optimize.Status
	String() string
}

// ReachCriterion stops once the best fitness reaches Target.
type ReachCriterion struct {
	Target float64
}

func (c ReachCriterion) Check(best float64, _ int) optimize.Status {
	if best >= c.Target {
		return optimize.Success
	}
	return optimize.NotTerminated
}

func (c ReachCriterion) String() string { return "reach_" + strconv.FormatFloat(c.Target, 'g', -1, 64) }

// SaturateCriterion stops after Generations generations without improvement.
type SaturateCriterion struct {
	Generations int
}

func (c SaturateCriterion) Check(_ float64, stale int) optimize.Status {
	if stale >= c.Generations {
		return optimize.FunctionConvergence
	}
	return optimize.NotTerminated
}

func (c SaturateCriterion) String() string { return "saturate_" + strconv.Itoa(c.Generations) }

// ParseStopCriteria parses "reach_<fitness>" and "saturate_<generations>".
func ParseStopCriteria(specs []string) ([]Criterion, error) {
	out := make([]Criterion, 0, len(specs))
	for _, s := range specs {
		kind, arg, ok := strings.Cut(strings.TrimSpace(s), "_")
		if !ok || arg == "" {
			return nil, fmt.Errorf("invalid stop criterion %q: want reach_<fitness> or saturate_<generations>", s)
		}
		switch kind {
		case "reach":
			v, err := strconv.ParseFloat(arg, 64)
			if err != nil || math.IsNaN(v) {
				return nil, fmt.Errorf("invalid stop criterion %q: bad fitness", s)
			}
			out = append(out, ReachCriterion{Target: v})
		case "saturate":
			n, err := strconv.Atoi(arg)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("invalid stop criterion %q: bad generation count", s)
			}
			out = append(out, SaturateCriterion{Generations: n})
		default:
			return nil, fmt.Errorf("invalid stop criterion %q: unknown kind %s", s, kind)
		}
	}
	return out, nil
}

// generations is the optimize.Converger of a search. gonum calls it once per
// major iteration, which for CMA-ES is one generation; the location it sees
// holds the best sample of that generation.
type generations struct {
	criteria []Criterion
	observer calibration.GenerationObserver

	gen   int
	best  float64
	stale int
}

func newGenerations(criteria []Criterion, observer calibration.GenerationObserver) *generations {
	return &generations{criteria: criteria, observer: observer, best: math.NaN()}
}

func (g *generations) Init(int) {
	g.gen, g.stale, g.best = 0, 0, math.NaN()
}

func (g *generations) Converged(loc *optimize.Location) optimize.Status {
	g.gen++
	fit := fitnessOf(loc.F)
	switch {
	case math.IsNaN(fit):
		g.stale++
	case math.IsNaN(g.best) || fit > g.best:
		g.best, g.stale = fit, 0
	default:
		g.stale++
	}
	if g.observer != nil {
		g.observer.OnGeneration(g.gen, fit, g.best)
	}
	if math.IsNaN(g.best) {
		return optimize.NotTerminated
	}
	for _, c := range g.criteria {
		if s := c.Check(g.best, g.stale); s != optimize.NotTerminated {
			return s
		}
	}
	return optimize.NotTerminated
}

// costOf turns a fitness to maximize into a cost to minimize. CMA-ES ranks
// samples by cost and skips NaN, so an undefined fitness ranks last.
func costOf(fitness float64) float64 {
	if math.IsNaN(fitness) {
		return math.Inf(1)
	}
	return -fitness
}

func fitnessOf(cost float64) float64 {
	if math.IsInf(cost, 1) || math.IsNaN(cost) {
		return math.NaN()
	}
	return -cost
}
