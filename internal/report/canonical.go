package report

import (
	"fmt"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/table"
)

// Section titles the engine writes for the three summaries.
const (
	HydraulicsSection   = "Hydraulics Summary"
	TemperatureSection  = "Temperature Summary"
	WaterQualitySection = "Water Quality Summary"
)

// Distance is the shared key column of every canonical table, in km.
const Distance = "distance"

// Canonical output columns.
const (
	Flow                  = "flow"
	HydraulicHead         = "hydraulic_head"
	ChannelTopWidth       = "channel_top_width"
	CrossSectionArea      = "cross_section_area"
	FlowVelocity          = "flow_velocity"
	TravelTime            = "travel_time"
	WaterTemp             = "water_temp_c"
	Conductivity          = "conductivity"
	InorganicSolids       = "inorganic_suspended_solids"
	DissolvedOxygen       = "dissolved_oxygen"
	CBODSlow              = "carbonaceous_bod_slow"
	CBODFast              = "carbonaceous_bod_fast"
	Nitrite               = "nitrite"
	Ammonium              = "ammonium"
	Nitrate               = "nitrate"
	OrganicPhosphorus     = "organic_phosphorus"
	InorganicPhosphorus   = "inorganic_phosphorus"
	Detritus              = "detritus"
	Pathogen              = "pathogen"
	Alkalinity            = "alkalinity"
	ConstI                = "const_i"
	ConstII               = "const_ii"
	ConstIII              = "const_iii"
	PH                    = "pH"
	TotalNitrogen         = "total_nitrogen"
	TotalPhosphorus       = "total_phosphorus"
	TotalKjeldahlNitrogen = "total_kjeldahl_nitrogen"
	TotalSuspendedSolids  = "total_suspended_solids"
	UltimateCBOD          = "ultimate_cbod"
	Ammonia               = "ammonia"
)

var hydraulicsLabels = map[string]string{
	"Downstream": Distance,
	"Hydraulics": Flow,
	"H":          HydraulicHead,
	"Btop":       ChannelTopWidth,
	"Ac":         CrossSectionArea,
	"U":          FlowVelocity,
	"trav time":  TravelTime,
}

var hydraulicsColumns = []string{
	Distance, Flow, HydraulicHead, ChannelTopWidth, CrossSectionArea, FlowVelocity, TravelTime,
}

var temperatureLabels = map[string]string{
	"Distance": Distance,
	"Temp(C)":  WaterTemp,
}

var temperatureColumns = []string{Distance, WaterTemp}

var waterQualityLabels = map[string]string{
	"x":         Distance,
	"cond":      Conductivity,
	"ISS":       InorganicSolids,
	"DO":        DissolvedOxygen,
	"CBODs":     CBODSlow,
	"CBODf":     CBODFast,
	"No":        Nitrite,
	"NH4":       Ammonium,
	"NO3":       Nitrate,
	"PO":        OrganicPhosphorus,
	"InorgP":    InorganicPhosphorus,
	"Detritus":  Detritus,
	"Pathogen":  Pathogen,
	"Alk":       Alkalinity,
	"Const i":   ConstI,
	"Const ii":  ConstII,
	"Const iii": ConstIII,
	"pH":        PH,
	"TN":        TotalNitrogen,
	"TP":        TotalPhosphorus,
	"TKN":       TotalKjeldahlNitrogen,
	"TSS":       TotalSuspendedSolids,
	"CBODu":     UltimateCBOD,
	"NH3":       Ammonia,
}

var waterQualityColumns = []string{
	Distance, Conductivity, InorganicSolids, DissolvedOxygen, CBODSlow, CBODFast,
	Nitrite, Ammonium, Nitrate, OrganicPhosphorus, InorganicPhosphorus, Detritus,
	Pathogen, Alkalinity, ConstI, ConstII, ConstIII, PH, TotalNitrogen,
	TotalPhosphorus, TotalKjeldahlNitrogen, TotalSuspendedSolids, UltimateCBOD, Ammonia,
}

// Canonical merges the hydraulics, temperature and water-quality summaries
// into one frame keyed by Distance. Temperature and then hydraulics rows are
// attached to each water-quality row by nearest distance; repeated distances
// keep their first row. The result is sorted by descending distance.
func Canonical(rep *Report) (*table.Frame, error) {
	hyd, err := summary(rep, HydraulicsSection, hydraulicsLabels, hydraulicsColumns)
	if err != nil {
		return nil, err
	}
	temps, err := summary(rep, TemperatureSection, temperatureLabels, temperatureColumns)
	if err != nil {
		return nil, err
	}
	wq, err := summary(rep, WaterQualitySection, waterQualityLabels, waterQualityColumns)
	if err != nil {
		return nil, err
	}

	merged, err := table.MergeNearest(wq, temps, Distance)
	if err != nil {
		return nil, &FormatError{Section: TemperatureSection, Reason: err.Error()}
	}
	if err := merged.DedupBy(Distance); err != nil {
		return nil, err
	}
	merged, err = table.MergeNearest(merged, hyd, Distance)
	if err != nil {
		return nil, &FormatError{Section: HydraulicsSection, Reason: err.Error()}
	}
	if err := merged.DedupBy(Distance); err != nil {
		return nil, err
	}
	if err := merged.SortBy(Distance, true); err != nil {
		return nil, err
	}
	return merged, nil
}

func summary(rep *Report, title string, labels map[string]string, want []string) (*table.Frame, error) {
	s, err := rep.Section(title)
	if err != nil {
		return nil, err
	}
	f, err := s.Frame(labels, want)
	if err != nil {
		return nil, err
	}
	if err := f.SortBy(Distance, false); err != nil {
		return nil, fmt.Errorf("failed to sort %s: %w", title, err)
	}
	return f, nil
}

// Columns lists the canonical columns of the merged frame, Distance excluded.
func Columns() []string {
	seen := map[string]bool{Distance: true}
	var out []string
	for _, cols := range [][]string{waterQualityColumns, temperatureColumns, hydraulicsColumns} {
		for _, c := range cols {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}
