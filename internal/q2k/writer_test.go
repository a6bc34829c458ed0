package q2k

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0.5, ".5"},
		{-0.5, "-.5"},
		{40, "40"},
		{1.5, "1.5"},
		{0, "0"},
		{1e-05, "1E-05"},
		{0.000013, "1.3E-05"},
		{0.0001, ".0001"},
		{4.16666666666667e-03, ".00416666666666667"},
		{1.06007e-06, "1.06007E-06"},
		{4.57 * 1000, "4570"},
		{-99999, "-99999"},
		{123456789012345678, "1.23456789012346E+17"},
		{math.NaN(), "-99999"},
		{math.Inf(1), "-99999"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatNumber(tt.in))
		})
	}
}

func sampleDocument() *document.Document {
	reaches := []document.Reach{
		{UpLabel: "CABECERA", DownLabel: "E1", Name: "R1", XUp: 10, XDown: 6, Elements: 10,
			ElevUp: 2500, ElevDown: 2450, Flow: document.Some(1.06007e-06), Slope: document.Some(document.Missing),
			Alpha1: 0.5, Beta1: 0.4, Alpha2: 2.1, Beta2: 0.3, Frsed: 1e-05, Frsod: 1e-05, DamA: 1.25, DamB: 0.9},
		{UpLabel: "E1", DownLabel: "E2", Name: "R2", XUp: 6, XDown: 0, Elements: 10,
			ElevUp: 2450, ElevDown: 2400, Flow: document.Some(1.06007e-06), Slope: document.Some(document.Missing),
			Alpha1: 0.5, Beta1: 0.4, Alpha2: 2.1, Beta2: 0.3, Frsed: 1e-05, Frsod: 1e-05, DamA: 1.25, DamB: 0.9},
	}

	overrides := document.NewRateOverrides(2)
	overrides.Set(1, document.Kn, 0.25)

	hw := document.Headwater{
		BeginReach: 1, Name: "CABECERA", Flow: document.Some(0.12), Elevation: document.Some(2500),
		DamA: document.Some(1.25), DamB: document.Some(0.9),
		Temperature: document.ConstantDiel(18.5),
		PH:          document.ConstantDiel(7.2),
	}
	for i := range hw.Constituents {
		hw.Constituents[i] = document.ConstantDiel(float64(i))
	}
	hw.Constituents[document.SrcPhyto] = document.Diel{}

	met := document.Meteorology{}
	for range reaches {
		met.Shade = append(met.Shade, document.ConstantDiel(0.3))
		met.AirTemp = append(met.AirTemp, document.ConstantDiel(20))
		met.DewPoint = append(met.DewPoint, document.ConstantDiel(12))
		met.Wind = append(met.Wind, document.ConstantDiel(1.5))
		met.CloudCover = append(met.CloudCover, document.ConstantDiel(0.4))
	}

	var station document.WaterQualityStation
	station.X = 5.5
	station.Values[document.WQDO] = document.Some(7.1)
	station.Values[document.WQTKN] = document.Some(1200)

	header := document.DefaultHeader()
	header.RiverName = "Test"
	header.FileName = "Test"
	header.FileDir = "/tmp/test"
	header.AppLabel = "Test (6/27/2012)"
	header.Month, header.Day, header.Year = 6, 27, 2012

	return &document.Document{
		Header:  header,
		Reaches: reaches,
		Light:   document.DefaultLight(),
		PointSources: []document.PointSource{
			{Name: "V1", X: 7.5, Inflow: 0.02, Temperature: document.DielValue{Mean: 21}},
		},
		Rates:        document.DefaultRates(),
		Overrides:    overrides,
		Headwaters:   []document.Headwater{hw},
		Meteorology:  met,
		Temperature:  []document.TemperatureRecord{{X: 5.5, Mean: document.Some(19)}},
		WaterQuality: []document.WaterQualityStation{station},
		Diel:         document.DefaultDiel(),
	}
}

func TestSerializeDeterministic(t *testing.T) {
	doc := sampleDocument()
	first, err := Serialize(doc)
	require.NoError(t, err)
	second, err := Serialize(doc)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	third, err := Serialize(sampleDocument())
	require.NoError(t, err)
	assert.Equal(t, first, third, "equal documents must render identically")
}

func TestSerializeBlockShape(t *testing.T) {
	text, err := Serialize(sampleDocument())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")

	const n = 2
	want := 4 + // header
		1 + n + // reaches
		4 + // light
		1 + (1 + document.NumSourceConstituents) + // point sources
		1 + // diffuse sources
		16 + // rates
		n + // overrides
		2 + // boundary
		(1 + 1 + document.NumHeadwaterConstituents + 1) + // headwater
		5*n + // meteorology
		1 + 1 + // temperature
		1 + // hydraulics
		1 + (1 + 4) + 2 + // water quality
		5 // diel
	require.Len(t, lines, want)

	assert.Equal(t, `"v2.12"`, lines[0])
	assert.Equal(t, `"Test","Test","/tmp/test","Test (6/27/2012)"`, lines[1])
	assert.Equal(t, "6,27,2012", lines[2])
	assert.Equal(t, `-6,.000347,.00416666666666667,5,"Euler","Brent"`, lines[3])
	assert.Equal(t, "2,1,20", lines[4])

	reach := strings.Split(lines[5], ",")
	assert.Len(t, reach, 37)
	assert.Equal(t, "1.06007E-06", reach[14])
	assert.Equal(t, "-99999", reach[18])

	assert.Equal(t, `"END MULTSTATION DIEL"`, lines[len(lines)-1])
	assert.Equal(t, `"STATION",0`, lines[len(lines)-2])
	assert.Equal(t, "5,1", lines[len(lines)-5])
}

func TestSerializeRatesAndOverrides(t *testing.T) {
	text, err := Serialize(sampleDocument())
	require.NoError(t, err)

	assert.Contains(t, text, "\n1.024,2.69,4570\n")
	assert.Contains(t, text, "\n\"Exponential\",\"Exponential\",\"Exponential\",\"Exponential\",\"Exponential\",\"Half saturation\",\"Half saturation\"\n")
	assert.Contains(t, text, "\n\"O'Connor-Dobbins\",\"None\"\n")
	assert.Contains(t, text, "\n.FALSE.\n")

	unset := strings.TrimSuffix(strings.Repeat("-99999,", int(document.NumReachRates)), ",")
	assert.Contains(t, text, "\n"+unset+"\n")

	row := make([]string, document.NumReachRates)
	for i := range row {
		row[i] = "-99999"
	}
	row[document.Kn] = ".25"
	assert.Contains(t, text, "\n"+strings.Join(row, ",")+"\n")
}

func TestSerializeHeadwaterSeries(t *testing.T) {
	text, err := Serialize(sampleDocument())
	require.NoError(t, err)

	temp := strings.TrimSuffix(strings.Repeat("18.5,", 24), ",") + `,""`
	assert.Contains(t, text, "\n"+temp+"\n")

	blank := strings.Repeat(",", 23) + `,""`
	assert.Contains(t, text, "\n"+blank+"\n", "unset headwater hours render as blank cells")

	shade := strings.TrimSuffix(strings.Repeat(".3,", 24), ",") + `,""`
	count := 0
	for _, line := range strings.Split(text, "\n") {
		if line == shade {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestSerializeWaterQualityChunks(t *testing.T) {
	text, err := Serialize(sampleDocument())
	require.NoError(t, err)

	idx := strings.Index(text, "\"WQ Data\",1\n")
	require.GreaterOrEqual(t, idx, 0)
	block := strings.Split(text[idx:], "\n")

	assert.Equal(t, "0,5.5", block[1])
	first := strings.Split(block[2], ",")
	require.Len(t, first, 10)
	assert.Equal(t, "7.1", first[document.WQDO])
	assert.Len(t, strings.Split(block[3], ","), 10)
	assert.Len(t, strings.Split(block[4], ","), 10)
	assert.Equal(t, "1200", block[5])
	assert.Equal(t, `"WQ Data Min",0`, block[6])
	assert.Equal(t, `"WQ Data Max",0`, block[7])
}

func TestSerializeRejectsMismatchedOverrides(t *testing.T) {
	doc := sampleDocument()
	doc.Overrides = document.NewRateOverrides(3)
	_, err := Serialize(doc)
	var cfgErr *document.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestWriteRegistration(t *testing.T) {
	dir := t.TempDir()
	p, err := WriteRegistration(dir, "River")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "River.q2k"), p.Document)
	assert.Equal(t, filepath.Join(dir, "River.out"), p.Report)

	data, err := os.ReadFile(filepath.Join(dir, RegistrationFile))
	require.NoError(t, err)
	assert.Equal(t, "\""+p.Document+"\"\n\""+p.Report+"\"\n", string(data))
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.q2k")
	require.NoError(t, WriteFile(path, sampleDocument()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text, err := Serialize(sampleDocument())
	require.NoError(t, err)
	assert.Equal(t, text, string(data))
}
