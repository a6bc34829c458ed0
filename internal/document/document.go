package document

// Header identifies the run and sets the integration controls.
type Header struct {
	Version           string
	RiverName         string
	FileName          string
	FileDir           string
	AppLabel          string
	Month             int
	Day               int
	Year              int
	TimezoneHour      float64
	PCO2              float64
	DtUser            float64
	FinalTime         float64
	IntegrationMethod string
	PHMethod          string
}

// Reach is one discretized river segment.
type Reach struct {
	UpLabel   string
	DownLabel string
	Name      string
	XUp       float64
	XDown     float64
	Elements  int
	ElevUp    float64
	ElevDown  float64
	// Latitude and Longitude are degrees, minutes, seconds.
	Latitude  [3]float64
	Longitude [3]float64
	Flow      OptFloat

	BottomWidth float64
	SideSlope1  float64
	SideSlope2  float64
	Slope       OptFloat
	Manning     float64
	Alpha1      float64
	Beta1       float64
	Alpha2      float64
	Beta2       float64

	Ediff float64
	Frsed float64
	Frsod float64
	SOD   float64
	JCH4  float64
	JNH4  float64
	JSRP  float64

	WeirType   string
	WeirHeight float64
	WeirWidth  float64
	DamA       float64
	DamB       float64
	Evap       float64
}

// Light holds light extinction and sediment heat constants.
type Light struct {
	PAR   float64
	Kep   float64
	Kela  float64
	Kenla float64
	Kess  float64
	Kepom float64

	SolarMethod    string
	NfacBras       float64
	AtcRyanStolz   float64
	LongwaveMethod string
	WindFunction   string

	SedThickness      float64
	SedDiffusivity    float64
	SedDensity        float64
	WaterDensity      float64
	SedHeatCapacity   float64
	WaterHeatCapacity float64

	SedimentComputation string
}

// DielValue describes a sinusoidal daily load.
type DielValue struct {
	Mean    float64
	Amp     float64
	MaxTime float64
}

// NumSourceConstituents is the number of constituents carried by a point
// source, pH included.
const NumSourceConstituents = 20

// PointSource is a discharge or abstraction at a single location.
type PointSource struct {
	Name string
	// Headwater is the zero based headwater index the source belongs to.
	Headwater    int
	X            float64
	Abstraction  float64
	Inflow       float64
	Temperature  DielValue
	Constituents [NumSourceConstituents]DielValue
}

// NumDiffuseConstituents excludes pH, which has its own line.
const NumDiffuseConstituents = 19

// DiffuseSource is a load spread between two distances.
type DiffuseSource struct {
	Name         string
	Headwater    int
	XUp          float64
	XDown        float64
	Abstraction  float64
	Inflow       float64
	Temperature  float64
	Constituents [NumDiffuseConstituents]float64
	PH           float64
}

// Boundary holds daylight saving and the downstream boundary flag.
type Boundary struct {
	DaylightSaving float64
	Downstream     bool
}

// NumHeadwaterConstituents is the number of hourly constituent series of a
// headwater, temperature and pH excluded.
const NumHeadwaterConstituents = 19

// Headwater is the upstream boundary condition of the network.
type Headwater struct {
	BeginReach  int
	Name        string
	Flow        OptFloat
	Elevation   OptFloat
	WeirType    string
	WeirHeight  OptFloat
	WeirWidth   OptFloat
	Alpha1      OptFloat
	Beta1       OptFloat
	Alpha2      OptFloat
	Beta2       OptFloat
	Slope       OptFloat
	Manning     OptFloat
	BottomWidth OptFloat
	SideSlope1  OptFloat
	SideSlope2  OptFloat
	Ediff       OptFloat
	DamA        OptFloat
	DamB        OptFloat

	Temperature  Diel
	Constituents [NumHeadwaterConstituents]Diel
	PH           Diel
}

// Meteorology holds hourly forcing per reach. Each slice is indexed by reach.
type Meteorology struct {
	Shade      []Diel
	AirTemp    []Diel
	DewPoint   []Diel
	Wind       []Diel
	CloudCover []Diel
}

type metBlock struct {
	name   string
	series []Diel
}

func (m Meteorology) blocks() []metBlock {
	return []metBlock{
		{"shade", m.Shade},
		{"air_temp", m.AirTemp},
		{"dew_point", m.DewPoint},
		{"wind", m.Wind},
		{"cloud_cover", m.CloudCover},
	}
}

// Series returns the five variable blocks in protocol order.
func (m Meteorology) Series() [][]Diel {
	blocks := m.blocks()
	out := make([][]Diel, len(blocks))
	for i, b := range blocks {
		out[i] = b.series
	}
	return out
}

// TemperatureRecord is an observed temperature at a distance.
type TemperatureRecord struct {
	Headwater int
	X         float64
	Mean      OptFloat
	Min       OptFloat
	Max       OptFloat
}

// HydraulicsRecord is an observed hydraulic state at a distance.
type HydraulicsRecord struct {
	Headwater  int
	X          float64
	Flow       OptFloat
	Depth      OptFloat
	Velocity   OptFloat
	TravelTime OptFloat
}

// WaterQualityStation is one observed station, one value per constituent.
type WaterQualityStation struct {
	Headwater int
	X         float64
	Values    [NumWQConstituents]OptFloat
}

// DielControl is the diel simulation block.
type DielControl struct {
	Days        int
	Integration int
	Stations    []float64
}

// Document is everything the engine reads for one run.
type Document struct {
	Header         Header
	Reaches        []Reach
	Light          Light
	PointSources   []PointSource
	DiffuseSources []DiffuseSource
	Rates          Rates
	Overrides      RateOverrides
	Boundary       Boundary
	Headwaters     []Headwater
	Meteorology    Meteorology
	Temperature    []TemperatureRecord
	Hydraulics     []HydraulicsRecord
	WaterQuality   []WaterQualityStation
	Diel           DielControl
}

// Elements returns the total number of computational elements.
func (d *Document) Elements() int {
	n := 0
	for _, r := range d.Reaches {
		n += r.Elements
	}
	return n
}

// Validate checks the shape invariants the serializer relies on.
func (d *Document) Validate() error {
	n := len(d.Reaches)
	if n == 0 {
		return configErrorf("reaches", "at least one reach is required")
	}
	if d.Overrides.Len() != n {
		return configErrorf("overrides", "have %d reaches, topology has %d", d.Overrides.Len(), n)
	}
	for _, m := range d.Meteorology.blocks() {
		if len(m.series) != n {
			return configErrorf("meteorology."+m.name, "have %d series, topology has %d reaches", len(m.series), n)
		}
	}
	for i, r := range d.Reaches {
		if r.Elements < 1 {
			return configErrorf("reaches", "reach %d (%s) has no elements", i, r.Name)
		}
	}
	return nil
}
