package template

import (
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/fit"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/report"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/table"
)

// ObservedColumns lists the columns of ObservedFrame, distance first.
func ObservedColumns() []string {
	return []string{
		report.Distance,
		report.WaterTemp + fit.ObservedSuffix,
		report.TotalSuspendedSolids + fit.ObservedSuffix,
		report.DissolvedOxygen + fit.ObservedSuffix,
		report.CBODFast + fit.ObservedSuffix,
		report.TotalKjeldahlNitrogen + fit.ObservedSuffix,
		report.Ammonium + fit.ObservedSuffix,
		report.TotalPhosphorus + fit.ObservedSuffix,
	}
}

// ObservedFrame turns the monitoring stations into the observation table the
// alignment step matches against. Units follow the engine report, so N and P
// are in µg/L. Missing measurements stay NaN. It panics if a row does not
// match ObservedColumns.
func ObservedFrame(stations []Station) *table.Frame {
	f := table.MustNew(ObservedColumns()...)
	for _, st := range stations {
		d := st.Chemistry.Derive()
		if err := f.Append([]float64{
			st.X,
			st.Temperature,
			st.TSS,
			st.DO,
			d.CBODFast,
			d.TKN,
			d.NH4,
			st.TotalP * mgToUg,
		}); err != nil {
			panic(err)
		}
	}
	return f
}
