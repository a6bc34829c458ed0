package document

import (
	"fmt"
	"strings"
)

// RateKey names one per-reach override column.
type RateKey int

// Override columns in the order the engine reads them.
const (
	Kaaa RateKey = iota
	Vss
	Khc
	Kdcs
	Kdc
	Khn
	Von
	Kn
	Ki
	Vdi
	Khp
	Vop
	Vip
	Kga
	Krea
	Kexa
	Kdea
	Va
	KgaF
	KreaF
	KexaF
	KdeaF
	Kdt
	Vdt
	Ffast

	NumReachRates
)

var rateKeyNames = [NumReachRates]string{
	"kaaa", "vss", "khc", "kdcs", "kdc", "khn", "von", "kn", "ki", "vdi",
	"khp", "vop", "vip", "kga", "krea", "kexa", "kdea", "va",
	"kgaF", "kreaF", "kexaF", "kdeaF", "kdt", "vdt", "ffast",
}

func (k RateKey) String() string {
	if k < 0 || k >= NumReachRates {
		return fmt.Sprintf("RateKey(%d)", int(k))
	}
	return rateKeyNames[k]
}

// Global returns the name of the global rate the column overrides, or "" for
// reaeration, which has no scalar global value.
func (k RateKey) Global() string {
	if k == Kaaa || k < 0 || k >= NumReachRates {
		return ""
	}
	return rateKeyNames[k]
}

// ParseRateKey accepts a column name with or without the "_rch" suffix.
func ParseRateKey(name string) (RateKey, error) {
	base := strings.TrimSuffix(name, "_rch")
	for i, n := range rateKeyNames {
		if n == base {
			return RateKey(i), nil
		}
	}
	return 0, &ConfigurationError{Field: name, Reason: "not an overridable reach rate"}
}

// ReachRates is one reach's override row.
type ReachRates [NumReachRates]OptFloat

// RateOverrides holds one override row per reach.
type RateOverrides struct {
	rows []ReachRates
}

// NewRateOverrides returns n rows with every column unset.
func NewRateOverrides(n int) RateOverrides {
	return RateOverrides{rows: make([]ReachRates, n)}
}

// DefaultRateOverrides returns the overrides used when a run does not
// calibrate anything: nitrification pinned to 0.001 on every reach.
func DefaultRateOverrides(n int) RateOverrides {
	o := NewRateOverrides(n)
	o.SetAll(Kn, 0.001)
	return o
}

// OverridesFromColumns builds overrides from per-column lists. Every list must
// have exactly n entries.
func OverridesFromColumns(n int, columns map[RateKey][]OptFloat) (RateOverrides, error) {
	o := NewRateOverrides(n)
	for key := RateKey(0); key < NumReachRates; key++ {
		col, ok := columns[key]
		if !ok {
			continue
		}
		if len(col) != n {
			return RateOverrides{}, configErrorf(key.String(), "override list has %d entries, want %d", len(col), n)
		}
		for i, v := range col {
			o.rows[i][key] = v
		}
	}
	return o, nil
}

// Len returns the number of reaches.
func (o RateOverrides) Len() int {
	return len(o.rows)
}

// Reach returns a copy of one reach's row.
func (o RateOverrides) Reach(i int) ReachRates {
	return o.rows[i]
}

// Column returns the values of one column in reach order.
func (o RateOverrides) Column(key RateKey) []OptFloat {
	out := make([]OptFloat, len(o.rows))
	for i := range o.rows {
		out[i] = o.rows[i][key]
	}
	return out
}

// Set overrides one column on one reach.
func (o RateOverrides) Set(reach int, key RateKey, v float64) {
	o.rows[reach][key] = Some(v)
}

// SetAll overrides one column on every reach.
func (o RateOverrides) SetAll(key RateKey, v float64) {
	for i := range o.rows {
		o.rows[i][key] = Some(v)
	}
}

// Clone returns an independent copy.
func (o RateOverrides) Clone() RateOverrides {
	rows := make([]ReachRates, len(o.rows))
	copy(rows, o.rows)
	return RateOverrides{rows: rows}
}
