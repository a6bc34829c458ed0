package template

import (
	"fmt"
	"math"
	"strings"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/document"
)

// Conversion constants for field chemistry.
const (
	inorganicShare = 0.15
	detritusShare  = 0.85
	bodRate        = 0.23 // 1/d
	bodDays        = 5
	bodFastFactor  = 1.46
	mgToUg         = 1000
)

// Defaults applied by Build when a setting is zero.
const (
	DefaultElementsPerReach = 10
	DefaultHeadwaterFlow    = 1.06007e-06
	DefaultHeadwaterStation = "CABECERA"
)

// Derived holds engine state variables computed from one sample. N and P
// species are in µg/L.
type Derived struct {
	ISS      float64
	Detritus float64
	CBODSlow float64
	CBODFast float64
	Norg     float64
	NH4      float64
	NO3      float64
	Porg     float64
	InorgP   float64
	TKN      float64
	TN       float64
	TP       float64
}

// Derive splits solids, estimates slow CBOD from BOD5 and converts nutrients
// to µg/L. Missing inputs give NaN outputs.
func (c Chemistry) Derive() Derived {
	ntk := c.NTK * mgToUg
	nh4 := c.Ammonium * mgToUg
	tp := c.TotalP * mgToUg
	po4 := c.Orthophosphate * mgToUg
	d := Derived{
		ISS:      c.TSS * inorganicShare,
		Detritus: c.TSS * detritusShare,
		CBODSlow: c.BOD5/(1-math.Exp(-bodRate*bodDays)) - bodFastFactor*c.BOD5,
		CBODFast: c.BOD5,
		Norg:     ntk - nh4,
		NH4:      nh4,
		NO3:      c.Nitrite*mgToUg + c.Nitrate*mgToUg,
		Porg:     tp - po4,
		InorgP:   po4,
		TKN:      ntk,
	}
	d.TN = d.Norg + d.NH4 + d.NO3
	d.TP = d.Porg + d.InorgP
	return d
}

// Settings are the run-level inputs of Build.
type Settings struct {
	Header           document.Header
	ElementsPerReach int
	HeadwaterFlow    float64
	HeadwaterStation string
	// Rates are run-level custom values by rate name.
	Rates map[string]float64
	// Overrides replaces the default per-reach overrides when it has rows.
	Overrides document.RateOverrides
}

func (s Settings) withDefaults() Settings {
	if s.ElementsPerReach <= 0 {
		s.ElementsPerReach = DefaultElementsPerReach
	}
	if s.HeadwaterFlow == 0 {
		s.HeadwaterFlow = DefaultHeadwaterFlow
	}
	if s.HeadwaterStation == "" {
		s.HeadwaterStation = DefaultHeadwaterStation
	}
	return s
}

// Build assembles the engine document for t. The template is not modified.
func Build(t *Template, s Settings) (*document.Document, error) {
	s = s.withDefaults()
	if len(t.Reaches) == 0 {
		return nil, &document.ConfigurationError{Field: "reaches", Reason: "template has no reaches"}
	}

	rates := document.DefaultRates()
	if err := rates.Apply(s.Rates); err != nil {
		return nil, err
	}

	overrides := s.Overrides
	if overrides.Len() == 0 {
		overrides = document.DefaultRateOverrides(len(t.Reaches))
	}

	hw, err := headwater(t, s.HeadwaterStation)
	if err != nil {
		return nil, err
	}

	doc := &document.Document{
		Header:       s.Header,
		Reaches:      reaches(t.Reaches, s),
		Light:        document.DefaultLight(),
		PointSources: pointSources(t.Sources),
		Rates:        rates,
		Overrides:    overrides,
		Headwaters:   []document.Headwater{hw},
		Meteorology:  meteorology(t.Reaches),
		Temperature:  temperatureRecords(t.Stations),
		WaterQuality: waterQuality(t.Stations),
		Diel:         document.DefaultDiel(),
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

func reaches(rows []Reach, s Settings) []document.Reach {
	out := make([]document.Reach, len(rows))
	for i, r := range rows {
		out[i] = document.Reach{
			UpLabel:   r.Up,
			DownLabel: r.Down,
			Name:      r.Name,
			XUp:       r.XUp,
			XDown:     r.XDown,
			Elements:  s.ElementsPerReach,
			ElevUp:    r.ElevUp,
			ElevDown:  r.ElevDown,
			Flow:      document.Some(s.HeadwaterFlow),
			Slope:     document.Some(document.Missing),
			Alpha1:    r.Alpha1,
			Beta1:     r.Beta1,
			Alpha2:    r.Alpha2,
			Beta2:     r.Beta2,
			Frsed:     1e-05,
			Frsod:     1e-05,
			DamA:      1.25,
			DamB:      0.9,
		}
	}
	return out
}

func pointSources(rows []Source) []document.PointSource {
	out := make([]document.PointSource, len(rows))
	for i, src := range rows {
		c := src.Chemistry.Filled(0)
		d := c.Derive()

		ps := document.PointSource{
			Name:        src.Name,
			X:           orZero(src.X),
			Temperature: document.DielValue{Mean: c.Temperature},
		}
		if ps.Name == "" {
			ps.Name = fmt.Sprintf("Vert_%d", i+1)
		}
		flow := orZero(src.Flow)
		switch kind := strings.ToLower(strings.TrimSpace(src.Kind)); {
		case strings.HasPrefix(kind, "capt"):
			ps.Abstraction = flow
		case strings.HasPrefix(kind, "vert"):
			ps.Inflow = flow
		}

		means := [document.NumSourceConstituents]float64{
			document.SrcCond:      c.Conductivity,
			document.SrcISS:       d.ISS,
			document.SrcDO:        c.DO,
			document.SrcCBODSlow:  d.CBODSlow,
			document.SrcCBODFast:  d.CBODFast,
			document.SrcNorg:      d.Norg,
			document.SrcNH4:       d.NH4,
			document.SrcNO3:       d.NO3,
			document.SrcPorg:      d.Porg,
			document.SrcInorgP:    d.InorgP,
			document.SrcDetritus:  d.Detritus,
			document.SrcPathogens: c.TotalColiforms,
			document.SrcAlk:       c.Alkalinity,
			document.SrcConstI:    c.ThermoColiforms,
			document.SrcConstII:   c.EColi,
			document.SrcPH:        c.PH,
		}
		for k, m := range means {
			ps.Constituents[k] = document.DielValue{Mean: m}
		}
		out[i] = ps
	}
	return out
}

func headwater(t *Template, station string) (document.Headwater, error) {
	var st *Station
	for i := range t.Stations {
		if t.Stations[i].Name == station {
			st = &t.Stations[i]
			break
		}
	}
	if st == nil {
		return document.Headwater{}, &document.ConfigurationError{Field: "headwater_station", Reason: fmt.Sprintf("station %q not found", station)}
	}
	var reach Reach
	for _, r := range t.Reaches {
		if r.Up == station {
			reach = r
			break
		}
	}

	raw := st.Chemistry
	c := raw.Filled(0)
	if math.IsNaN(raw.Temperature) {
		c.Temperature = 20
	}
	if math.IsNaN(raw.PH) {
		c.PH = 7
	}
	d := c.Derive()

	zero := document.Some(0)
	hw := document.Headwater{
		BeginReach:  1,
		Name:        st.Name,
		Flow:        document.Some(orZero(st.Flow)),
		Elevation:   document.Some(reach.ElevUp),
		WeirHeight:  zero,
		WeirWidth:   zero,
		Alpha1:      document.Some(reach.Alpha1),
		Beta1:       document.Some(reach.Beta1),
		Alpha2:      document.Some(reach.Alpha2),
		Beta2:       document.Some(reach.Beta2),
		Slope:       zero,
		Manning:     zero,
		BottomWidth: zero,
		SideSlope1:  zero,
		SideSlope2:  zero,
		Ediff:       zero,
		DamA:        document.Some(1.25),
		DamB:        document.Some(0.9),
		Temperature: document.ConstantDiel(c.Temperature),
		PH:          document.ConstantDiel(c.PH),
	}

	series := [document.NumHeadwaterConstituents]float64{
		c.Conductivity, d.ISS, c.DO, d.CBODSlow, d.CBODFast, d.Norg, d.NH4, d.NO3,
		d.Porg, d.InorgP, 0, 0, 0, d.Detritus, c.TotalColiforms, c.Alkalinity,
		c.ThermoColiforms, c.EColi, 0,
	}
	for k, v := range series {
		hw.Constituents[k] = document.ConstantDiel(v)
	}
	return hw, nil
}

func meteorology(rows []Reach) document.Meteorology {
	var m document.Meteorology
	for _, r := range rows {
		m.Shade = append(m.Shade, document.ConstantDiel(r.Shade))
		m.AirTemp = append(m.AirTemp, document.ConstantDiel(r.AirTemp))
		m.DewPoint = append(m.DewPoint, document.ConstantDiel(r.DewPoint))
		m.Wind = append(m.Wind, document.ConstantDiel(r.Wind))
		m.CloudCover = append(m.CloudCover, document.ConstantDiel(r.CloudCover))
	}
	return m
}

func temperatureRecords(stations []Station) []document.TemperatureRecord {
	out := make([]document.TemperatureRecord, len(stations))
	for i, st := range stations {
		out[i] = document.TemperatureRecord{
			X:    orZero(st.X),
			Mean: document.Some(st.Temperature),
		}
	}
	return out
}

func waterQuality(stations []Station) []document.WaterQualityStation {
	out := make([]document.WaterQualityStation, len(stations))
	for i, st := range stations {
		d := st.Chemistry.Derive()
		ws := document.WaterQualityStation{X: orZero(st.X)}
		set := func(c document.WQConstituent, v float64) {
			ws.Values[c] = document.Some(v)
		}
		set(document.WQCond, st.Conductivity)
		set(document.WQISS, d.ISS)
		set(document.WQDO, st.DO)
		set(document.WQCBODSlow, d.CBODSlow)
		set(document.WQCBODFast, d.CBODFast)
		set(document.WQNorg, d.Norg)
		set(document.WQNH4, d.NH4)
		set(document.WQNO3, d.NO3)
		set(document.WQPorg, d.Porg)
		set(document.WQInorgP, d.InorgP)
		set(document.WQDetritus, d.Detritus)
		set(document.WQPathogens, st.TotalColiforms)
		set(document.WQAlk, st.Alkalinity)
		set(document.WQConstI, st.ThermoColiforms)
		set(document.WQConstII, st.EColi)
		set(document.WQPH, st.PH)
		set(document.WQTSS, st.TSS)
		set(document.WQTN, d.TN)
		set(document.WQTP, d.TP)
		set(document.WQTKN, d.TKN)
		out[i] = ws
	}
	return out
}

func orZero(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
