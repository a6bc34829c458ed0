// Package template holds the field data a calibration starts from (reaches,
// point sources and monitoring stations) and turns it into an engine
// document.
package template

import "math"

// Chemistry is a water sample as measured in the field. Nitrogen and
// phosphorus species are in mg/L; NaN marks a missing measurement.
type Chemistry struct {
	Temperature     float64
	Conductivity    float64
	TSS             float64
	DO              float64
	BOD5            float64
	NTK             float64
	Ammonium        float64
	Nitrite         float64
	Nitrate         float64
	TotalP          float64
	Orthophosphate  float64
	TotalColiforms  float64
	Alkalinity      float64
	ThermoColiforms float64
	EColi           float64
	PH              float64
}

// Missing returns a sample with every field unset.
func Missing() Chemistry {
	nan := math.NaN()
	return Chemistry{
		Temperature: nan, Conductivity: nan, TSS: nan, DO: nan, BOD5: nan, NTK: nan,
		Ammonium: nan, Nitrite: nan, Nitrate: nan, TotalP: nan, Orthophosphate: nan,
		TotalColiforms: nan, Alkalinity: nan, ThermoColiforms: nan, EColi: nan, PH: nan,
	}
}

// Filled replaces every missing field with v.
func (c Chemistry) Filled(v float64) Chemistry {
	for _, p := range c.fields() {
		if math.IsNaN(*p) {
			*p = v
		}
	}
	return c
}

func (c *Chemistry) fields() []*float64 {
	return []*float64{
		&c.Temperature, &c.Conductivity, &c.TSS, &c.DO, &c.BOD5, &c.NTK,
		&c.Ammonium, &c.Nitrite, &c.Nitrate, &c.TotalP, &c.Orthophosphate,
		&c.TotalColiforms, &c.Alkalinity, &c.ThermoColiforms, &c.EColi, &c.PH,
	}
}

// Reach is one row of the reach sheet, meteorology included.
type Reach struct {
	Up       string
	Down     string
	Name     string
	XUp      float64
	XDown    float64
	ElevUp   float64
	ElevDown float64
	Alpha1   float64
	Beta1    float64
	Alpha2   float64
	Beta2    float64

	Shade      float64
	AirTemp    float64
	DewPoint   float64
	Wind       float64
	CloudCover float64
}

// Source is a discharge ("vert...") or abstraction ("capt...").
type Source struct {
	Name string
	X    float64
	Flow float64
	Kind string
	Chemistry
}

// Station is a monitoring point. Stations double as observations and, for
// the headwater station, as the upstream boundary.
type Station struct {
	Name string
	X    float64
	Flow float64
	Chemistry
}

// Template is the full field data set of one river.
type Template struct {
	Reaches  []Reach
	Sources  []Source
	Stations []Station
}
