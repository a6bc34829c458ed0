package genes

import (
	"fmt"
	"strings"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/document"
	"gopkg.in/yaml.v3"
)

// Scope says whether a parameter is shared by every reach or varies per
// reach.
type Scope int

const (
	Global Scope = iota
	PerReach
)

func (s Scope) String() string {
	switch s {
	case Global:
		return "global"
	case PerReach:
		return "per_reach"
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}

// ParseScope accepts "global" or "per_reach" (also "reach").
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "global", "":
		return Global, nil
	case "per_reach", "per-reach", "reach":
		return PerReach, nil
	}
	return 0, fmt.Errorf("unknown scope %q", s)
}

func (s *Scope) UnmarshalYAML(n *yaml.Node) error {
	var raw string
	if err := n.Decode(&raw); err != nil {
		return err
	}
	v, err := ParseScope(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s Scope) MarshalYAML() (any, error) {
	return s.String(), nil
}

// Parameter is one calibrated rate with its search bounds.
type Parameter struct {
	Name  string  `yaml:"name"`
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
	Scope Scope   `yaml:"scope"`
}

// Key resolves the parameter name to its override column.
func (p Parameter) Key() (document.RateKey, error) {
	return document.ParseRateKey(p.Name)
}

// ParameterSpec is an ordered list of calibrated parameters. Gene order
// follows the list.
//
// In YAML it is either a mapping, whose key order is kept:
//
//	kaaa: [0.1, 3, global]
//	kdc:  [0.05, 1.5, per_reach]
//
// or a list of {name, min, max, scope} entries.
type ParameterSpec []Parameter

func (s *ParameterSpec) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.SequenceNode:
		var list []Parameter
		if err := n.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	case yaml.MappingNode:
		out := make(ParameterSpec, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			name := n.Content[i].Value
			p, err := parameterFromTuple(name, n.Content[i+1])
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		*s = out
		return nil
	}
	return fmt.Errorf("line %d: parameters must be a mapping or a list", n.Line)
}

func parameterFromTuple(name string, n *yaml.Node) (Parameter, error) {
	if n.Kind == yaml.MappingNode {
		var p Parameter
		if err := n.Decode(&p); err != nil {
			return Parameter{}, err
		}
		p.Name = name
		return p, nil
	}
	if n.Kind != yaml.SequenceNode || len(n.Content) < 2 || len(n.Content) > 3 {
		return Parameter{}, fmt.Errorf("line %d: %s must be [min, max] or [min, max, scope]", n.Line, name)
	}
	p := Parameter{Name: name}
	if err := n.Content[0].Decode(&p.Min); err != nil {
		return Parameter{}, fmt.Errorf("%s min: %w", name, err)
	}
	if err := n.Content[1].Decode(&p.Max); err != nil {
		return Parameter{}, fmt.Errorf("%s max: %w", name, err)
	}
	if len(n.Content) == 3 {
		if err := n.Content[2].Decode(&p.Scope); err != nil {
			return Parameter{}, fmt.Errorf("%s scope: %w", name, err)
		}
	}
	return p, nil
}

// MarshalYAML writes the mapping form.
func (s ParameterSpec) MarshalYAML() (any, error) {
	m := &yaml.Node{Kind: yaml.MappingNode}
	for _, p := range s {
		tuple := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, v := range []any{p.Min, p.Max, p.Scope.String()} {
			var item yaml.Node
			if err := item.Encode(v); err != nil {
				return nil, err
			}
			tuple.Content = append(tuple.Content, &item)
		}
		m.Content = append(m.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: p.Name},
			tuple,
		)
	}
	return m, nil
}

// Validate checks names and bounds.
func (s ParameterSpec) Validate() error {
	if len(s) == 0 {
		return &document.ConfigurationError{Field: "parameters", Reason: "no parameters to calibrate"}
	}
	seen := make(map[document.RateKey]string, len(s))
	for _, p := range s {
		key, err := p.Key()
		if err != nil {
			return err
		}
		if prev, dup := seen[key]; dup {
			return &document.ConfigurationError{Field: p.Name, Reason: fmt.Sprintf("duplicates parameter %s", prev)}
		}
		seen[key] = p.Name
		if p.Min > p.Max {
			return &document.ConfigurationError{Field: p.Name, Reason: fmt.Sprintf("min %g above max %g", p.Min, p.Max)}
		}
		if p.Scope != Global && p.Scope != PerReach {
			return &document.ConfigurationError{Field: p.Name, Reason: "unknown scope"}
		}
	}
	return nil
}
