// Package genes maps between flat gene vectors and per-reach rate overrides.
package genes

import (
	"errors"
	"fmt"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/document"
	"github.com/GoSim-25-26J-441/q2k-calibrator/pkg/utils"
)

// AllReaches marks a gene that is broadcast to every reach.
const AllReaches = -1

// ErrLength is returned when a vector does not fit the gene map.
var ErrLength = errors.New("gene vector length does not match gene map")

// Gene locates one position of the vector.
type Gene struct {
	Parameter string
	Rate      document.RateKey
	Reach     int
}

// GeneMap lists genes in vector order.
type GeneMap []Gene

// Codec is built once per run and is safe for concurrent use.
type Codec struct {
	spec    ParameterSpec
	reaches int
	genes   GeneMap
	lower   []float64
	upper   []float64
}

// NewCodec lays out genes in parameter order: one gene per Global parameter and
// one per reach for a PerReach parameter.
func NewCodec(spec ParameterSpec, reaches int) (*Codec, error) {
	if reaches < 1 {
		return nil, &document.ConfigurationError{Field: "reaches", Reason: fmt.Sprintf("need at least one reach, got %d", reaches)}
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	c := &Codec{spec: append(ParameterSpec(nil), spec...), reaches: reaches}
	for _, p := range spec {
		key, _ := p.Key()
		if p.Scope == Global {
			c.add(p, key, AllReaches)
			continue
		}
		for r := 0; r < reaches; r++ {
			c.add(p, key, r)
		}
	}
	return c, nil
}

func (c *Codec) add(p Parameter, key document.RateKey, reach int) {
	c.genes = append(c.genes, Gene{Parameter: p.Name, Rate: key, Reach: reach})
	c.lower = append(c.lower, p.Min)
	c.upper = append(c.upper, p.Max)
}

// Len is the number of genes.
func (c *Codec) Len() int { return len(c.genes) }

// Reaches is the reach count the codec was built for.
func (c *Codec) Reaches() int { return c.reaches }

// Spec returns the parameters in gene order.
func (c *Codec) Spec() ParameterSpec { return append(ParameterSpec(nil), c.spec...) }

// Map returns a copy of the gene layout.
func (c *Codec) Map() GeneMap { return append(GeneMap(nil), c.genes...) }

// Bounds returns per-gene lower and upper bounds.
func (c *Codec) Bounds() (lower, upper []float64) {
	return append([]float64(nil), c.lower...), append([]float64(nil), c.upper...)
}

// Decode turns a vector into overrides. Columns without a gene stay unset.
func (c *Codec) Decode(v []float64) (document.RateOverrides, error) {
	if len(v) != len(c.genes) {
		return document.RateOverrides{}, fmt.Errorf("%w: got %d, want %d", ErrLength, len(v), len(c.genes))
	}
	o := document.NewRateOverrides(c.reaches)
	for i, g := range c.genes {
		if g.Reach == AllReaches {
			o.SetAll(g.Rate, v[i])
			continue
		}
		o.Set(g.Reach, g.Rate, v[i])
	}
	return o, nil
}

// Encode is the inverse of Decode. A Global gene reads reach 0.
func (c *Codec) Encode(o document.RateOverrides) ([]float64, error) {
	if o.Len() != c.reaches {
		return nil, &document.ConfigurationError{Field: "overrides", Reason: fmt.Sprintf("have %d reaches, want %d", o.Len(), c.reaches)}
	}
	v := make([]float64, len(c.genes))
	for i, g := range c.genes {
		reach := g.Reach
		if reach == AllReaches {
			reach = 0
		}
		val, ok := o.Reach(reach)[g.Rate].Get()
		if !ok {
			return nil, fmt.Errorf("gene %d (%s, reach %d) is unset", i, g.Parameter, reach+1)
		}
		v[i] = val
	}
	return v, nil
}

// Value is one parameter's decoded value(s), for reporting.
type Value struct {
	Parameter Parameter
	Values    []float64
}

// Values groups a vector by parameter. Global parameters carry one value,
// PerReach ones carry one per reach.
func (c *Codec) Values(v []float64) ([]Value, error) {
	if len(v) != len(c.genes) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrLength, len(v), len(c.genes))
	}
	out := make([]Value, 0, len(c.spec))
	i := 0
	for _, p := range c.spec {
		n := 1
		if p.Scope == PerReach {
			n = c.reaches
		}
		out = append(out, Value{Parameter: p, Values: append([]float64(nil), v[i:i+n]...)})
		i += n
	}
	return out, nil
}

// Normalize maps v into [0,1] per gene. Degenerate bounds map to 0.
func (c *Codec) Normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		span := c.upper[i] - c.lower[i]
		if span == 0 {
			continue
		}
		out[i] = (v[i] - c.lower[i]) / span
	}
	return out
}

// Denormalize maps u from [0,1] back into the bounds, clamping first.
func (c *Codec) Denormalize(u []float64) []float64 {
	out := make([]float64, len(u))
	for i := range u {
		x := utils.ClampFloat64(u[i], 0, 1)
		out[i] = c.lower[i] + x*(c.upper[i]-c.lower[i])
	}
	return out
}
