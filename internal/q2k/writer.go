package q2k

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/document"
)

// wqPerLine is the width of an observed water-quality value group.
const wqPerLine = 10

// lineWriter keeps the first write error so block writers stay linear.
type lineWriter struct {
	w   *bufio.Writer
	err error
}

func (lw *lineWriter) line(fields ...string) {
	if lw.err != nil {
		return
	}
	if _, err := lw.w.WriteString(strings.Join(fields, ",")); err != nil {
		lw.err = err
		return
	}
	lw.err = lw.w.WriteByte('\n')
}

// paddedLine writes the fields followed by the trailing empty quoted field
// the engine expects after hourly series.
func (lw *lineWriter) paddedLine(fields []string) {
	lw.line(append(fields, `""`)...)
}

// Serialize renders doc to text. The output depends only on doc.
func Serialize(doc *document.Document) (string, error) {
	var sb strings.Builder
	if err := Write(&sb, doc); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Write renders doc to w in protocol block order.
func Write(w io.Writer, doc *document.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	lw := &lineWriter{w: bufio.NewWriter(w)}
	writeHeader(lw, &doc.Header)
	writeReaches(lw, doc)
	writeLight(lw, &doc.Light)
	writePointSources(lw, doc.PointSources)
	writeDiffuseSources(lw, doc.DiffuseSources)
	writeRates(lw, &doc.Rates)
	writeOverrides(lw, doc.Overrides)
	writeBoundary(lw, doc.Boundary)
	writeHeadwaters(lw, doc.Headwaters)
	writeMeteorology(lw, doc.Meteorology)
	writeTemperature(lw, doc.Temperature)
	writeHydraulics(lw, doc.Hydraulics)
	writeWaterQuality(lw, doc.WaterQuality)
	writeDiel(lw, doc.Diel)

	if lw.err != nil {
		return fmt.Errorf("failed to write document: %w", lw.err)
	}
	if err := lw.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush document: %w", err)
	}
	return nil
}

func writeHeader(lw *lineWriter, h *document.Header) {
	lw.line(quote(h.Version))
	lw.line(quote(h.RiverName), quote(h.FileName), quote(h.FileDir), quote(h.AppLabel))
	lw.line(strconv.Itoa(h.Month), strconv.Itoa(h.Day), strconv.Itoa(h.Year))
	lw.line(
		FormatNumber(h.TimezoneHour),
		FormatNumber(h.PCO2),
		FormatNumber(h.DtUser),
		FormatNumber(h.FinalTime),
		quote(h.IntegrationMethod),
		quote(h.PHMethod),
	)
}

func writeReaches(lw *lineWriter, doc *document.Document) {
	lw.line(strconv.Itoa(len(doc.Reaches)), strconv.Itoa(len(doc.Headwaters)), strconv.Itoa(doc.Elements()))
	for i := range doc.Reaches {
		r := &doc.Reaches[i]
		lw.line(
			quote(r.UpLabel), quote(r.DownLabel), quote(r.Name),
			FormatNumber(r.XUp), FormatNumber(r.XDown), strconv.Itoa(r.Elements),
			FormatNumber(r.ElevUp), FormatNumber(r.ElevDown),
			FormatNumber(r.Latitude[0]), FormatNumber(r.Latitude[1]), FormatNumber(r.Latitude[2]),
			FormatNumber(r.Longitude[0]), FormatNumber(r.Longitude[1]), FormatNumber(r.Longitude[2]),
			formatOpt(r.Flow),
			FormatNumber(r.BottomWidth), FormatNumber(r.SideSlope1), FormatNumber(r.SideSlope2),
			formatOpt(r.Slope), FormatNumber(r.Manning),
			FormatNumber(r.Alpha1), FormatNumber(r.Beta1), FormatNumber(r.Alpha2), FormatNumber(r.Beta2),
			FormatNumber(r.Ediff), FormatNumber(r.Frsed), FormatNumber(r.Frsod),
			FormatNumber(r.SOD), FormatNumber(r.JCH4), FormatNumber(r.JNH4), FormatNumber(r.JSRP),
			quote(r.WeirType),
			FormatNumber(r.WeirHeight), FormatNumber(r.WeirWidth),
			FormatNumber(r.DamA), FormatNumber(r.DamB), FormatNumber(r.Evap),
		)
	}
}

func writeLight(lw *lineWriter, l *document.Light) {
	lw.line(numbers(l.PAR, l.Kep, l.Kela, l.Kenla, l.Kess, l.Kepom)...)
	lw.line(
		quote(l.SolarMethod),
		FormatNumber(l.NfacBras),
		FormatNumber(l.AtcRyanStolz),
		quote(l.LongwaveMethod),
		quote(l.WindFunction),
	)
	lw.line(numbers(l.SedThickness, l.SedDiffusivity, l.SedDensity,
		l.WaterDensity, l.SedHeatCapacity, l.WaterHeatCapacity)...)
	lw.line(quote(l.SedimentComputation))
}

func writePointSources(lw *lineWriter, sources []document.PointSource) {
	lw.line(strconv.Itoa(len(sources)))
	for i := range sources {
		s := &sources[i]
		lw.line(
			quote(s.Name),
			strconv.Itoa(s.Headwater),
			FormatNumber(s.X),
			FormatNumber(s.Abstraction),
			FormatNumber(s.Inflow),
			FormatNumber(s.Temperature.Mean),
			FormatNumber(s.Temperature.Amp),
			FormatNumber(s.Temperature.MaxTime),
		)
		for _, c := range s.Constituents {
			lw.line(numbers(c.Mean, c.Amp, c.MaxTime)...)
		}
	}
}

func writeDiffuseSources(lw *lineWriter, sources []document.DiffuseSource) {
	lw.line(strconv.Itoa(len(sources)))
	for i := range sources {
		s := &sources[i]
		lw.line(
			quote(s.Name),
			strconv.Itoa(s.Headwater),
			FormatNumber(s.XUp),
			FormatNumber(s.XDown),
			FormatNumber(s.Abstraction),
			FormatNumber(s.Inflow),
			FormatNumber(s.Temperature),
		)
		for _, c := range s.Constituents {
			lw.line(FormatNumber(c))
		}
		lw.line(FormatNumber(s.PH))
	}
}

// writeRates writes the sixteen fixed-shape global rate lines.
func writeRates(lw *lineWriter, r *document.Rates) {
	// stoichiometry
	lw.line(numbers(r.VSS, r.MgC, r.MgN, r.MgP, r.MgD, r.MgA)...)
	// oxygen; the engine reads ron in mgO/mgN x 1000
	lw.line(numbers(r.Tka, r.Roc, r.Ron*1000)...)
	lw.line(numbers(r.Ksocf, r.Ksona, r.Ksodn, r.Ksop, r.Ksob,
		r.Khc, r.Tkhc, r.Kdcs, r.Tkdcs, r.Kdc, r.Tkdc, r.Khn, r.Tkhn, r.Von)...)
	lw.line(numbers(r.Kn, r.Tkn, r.Ki, r.Tki, r.Vdi, r.Tvdi,
		r.Khp, r.Tkhp, r.Vop, r.Vip, r.Kspi, r.Kdpi)...)
	lw.line(numbers(r.Kga, r.Tkga, r.Krea, r.Tkrea, r.Kexa, r.Tkexa,
		r.Kdea, r.Tkdea, r.Ksn, r.Ksp, r.Ksc, r.Isat)...)

	floating := numbers(r.Khnx, r.Va)
	floating = append(floating, quote(r.TypeF))
	floating = append(floating, numbers(r.KgaF, r.TkgaF, r.KreaF, r.TkreaF,
		r.KexaF, r.TkexaF, r.KdeaF, r.Abmax)...)
	lw.line(floating...)

	lw.line(numbers(r.TkdeaF, r.KsnF, r.KspF, r.KscF, r.IsatF, r.KhnxF,
		r.Kdt, r.Tkdt, r.Ffast, r.Vdt)...)
	lw.line(numbers(r.Dummy[:]...)...)
	lw.line(append(numbers(r.Kai, r.KaWindMethod), numbers(r.ReaExtras[:]...)...)...)
	lw.line(numbers(r.NINpmin, r.NIPpmin, r.NINpupmax, r.NIPpupmax)...)
	for _, c := range r.Generic {
		lw.line(numbers(c.K, c.Theta, c.Settling)...)
	}
	lw.line(quoteAll(r.SaturationTypes[:])...)
	lw.line(quoteAll(r.ReaerationMethods[:])...)
	lw.line(numbers(r.ReaA, r.ReaB, r.ReaC)...)
}

func writeOverrides(lw *lineWriter, o document.RateOverrides) {
	for i := 0; i < o.Len(); i++ {
		row := o.Reach(i)
		fields := make([]string, len(row))
		for k, v := range row {
			fields[k] = formatOpt(v)
		}
		lw.line(fields...)
	}
}

func writeBoundary(lw *lineWriter, b document.Boundary) {
	lw.line(FormatNumber(b.DaylightSaving))
	lw.line(formatBool(b.Downstream))
}

func writeHeadwaters(lw *lineWriter, hws []document.Headwater) {
	for i := range hws {
		h := &hws[i]
		lw.line(
			strconv.Itoa(h.BeginReach),
			quote(h.Name),
			formatOpt(h.Flow),
			formatOpt(h.Elevation),
			quote(h.WeirType),
			formatOpt(h.WeirHeight),
			formatOpt(h.WeirWidth),
			formatOpt(h.Alpha1),
			formatOpt(h.Beta1),
			formatOpt(h.Alpha2),
			formatOpt(h.Beta2),
			formatOpt(h.Slope),
			formatOpt(h.Manning),
			formatOpt(h.BottomWidth),
			formatOpt(h.SideSlope1),
			formatOpt(h.SideSlope2),
			formatOpt(h.Ediff),
			formatOpt(h.DamA),
			formatOpt(h.DamB),
		)
		lw.paddedLine(dielCells(h.Temperature, formatBlank))
		for _, c := range h.Constituents {
			lw.paddedLine(dielCells(c, formatBlank))
		}
		lw.paddedLine(dielCells(h.PH, formatBlank))
	}
}

func writeMeteorology(lw *lineWriter, m document.Meteorology) {
	for _, block := range m.Series() {
		for _, d := range block {
			lw.paddedLine(dielCells(d, formatOpt))
		}
	}
}

func writeTemperature(lw *lineWriter, recs []document.TemperatureRecord) {
	lw.line(strconv.Itoa(len(recs)))
	for _, r := range recs {
		lw.line(strconv.Itoa(r.Headwater), FormatNumber(r.X),
			formatOpt(r.Mean), formatOpt(r.Min), formatOpt(r.Max))
	}
}

func writeHydraulics(lw *lineWriter, recs []document.HydraulicsRecord) {
	lw.line(strconv.Itoa(len(recs)))
	for _, r := range recs {
		lw.line(strconv.Itoa(r.Headwater), FormatNumber(r.X),
			formatOpt(r.Flow), formatOpt(r.Depth), formatOpt(r.Velocity), formatOpt(r.TravelTime))
	}
}

func writeWaterQuality(lw *lineWriter, stations []document.WaterQualityStation) {
	lw.line(quote("WQ Data"), strconv.Itoa(len(stations)))
	for i := range stations {
		st := &stations[i]
		lw.line(strconv.Itoa(st.Headwater), FormatNumber(st.X))
		values := make([]string, len(st.Values))
		for j, v := range st.Values {
			values[j] = formatOpt(v)
		}
		for start := 0; start < len(values); start += wqPerLine {
			end := min(start+wqPerLine, len(values))
			lw.line(values[start:end]...)
		}
	}
	lw.line(quote("WQ Data Min"), "0")
	lw.line(quote("WQ Data Max"), "0")
}

func writeDiel(lw *lineWriter, d document.DielControl) {
	lw.line(strconv.Itoa(d.Days), strconv.Itoa(d.Integration))
	lw.line(strconv.Itoa(len(d.Stations)))
	lw.line(quote("MULTSTATION DIEL"))
	if len(d.Stations) == 0 {
		lw.line(quote("STATION"), "0")
	}
	for _, x := range d.Stations {
		lw.line(quote("STATION"), FormatNumber(x))
	}
	lw.line(quote("END MULTSTATION DIEL"))
}

func numbers(vs ...float64) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = FormatNumber(v)
	}
	return out
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = quote(s)
	}
	return out
}

func dielCells(d document.Diel, format func(document.OptFloat) string) []string {
	out := make([]string, len(d))
	for i, v := range d {
		out[i] = format(v)
	}
	return out
}
