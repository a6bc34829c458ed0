package document

import "math"

// Missing is the value the engine reads as "not available".
const Missing = -99999.0

// OptFloat is a float that may be unset. The zero value is unset.
type OptFloat struct {
	value float64
	valid bool
}

// Some returns a set OptFloat. NaN is treated as unset.
func Some(v float64) OptFloat {
	if math.IsNaN(v) {
		return OptFloat{}
	}
	return OptFloat{value: v, valid: true}
}

// None returns an unset OptFloat.
func None() OptFloat {
	return OptFloat{}
}

// Get returns the value and whether it is set.
func (o OptFloat) Get() (float64, bool) {
	return o.value, o.valid
}

// IsSet reports whether the value is set.
func (o OptFloat) IsSet() bool {
	return o.valid
}

// Or returns the value, or def when unset.
func (o OptFloat) Or(def float64) float64 {
	if !o.valid {
		return def
	}
	return o.value
}

// Float returns the value, or NaN when unset.
func (o OptFloat) Float() float64 {
	return o.Or(math.NaN())
}

// Diel is an hourly series covering one day.
type Diel [24]OptFloat

// ConstantDiel returns a series holding v for every hour.
func ConstantDiel(v float64) Diel {
	var d Diel
	for i := range d {
		d[i] = Some(v)
	}
	return d
}
