package document

// DefaultLight returns the light and sediment heat constants used by the
// calibration templates.
func DefaultLight() Light {
	return Light{
		PAR: 0.47, Kep: 0.2, Kela: 0.0088, Kenla: 0.054, Kess: 0.052, Kepom: 0.174,
		SolarMethod:    "Bras",
		NfacBras:       2,
		AtcRyanStolz:   0.8,
		LongwaveMethod: "Brunt",
		WindFunction:   "Brady-Graves-Geyer",

		SedThickness:      15,
		SedDiffusivity:    0.0064,
		SedDensity:        1.6,
		WaterDensity:      1,
		SedHeatCapacity:   0.4,
		WaterHeatCapacity: 1,

		SedimentComputation: "Yes",
	}
}

// DefaultDiel returns a five day diel run with no extra stations.
func DefaultDiel() DielControl {
	return DielControl{Days: 5, Integration: 1}
}

// DefaultHeader returns a header with the engine version and integration
// methods filled in. Identity fields are left to the caller.
func DefaultHeader() Header {
	return Header{
		Version:           "v2.12",
		TimezoneHour:      -6,
		PCO2:              0.000347,
		DtUser:            4.16666666666667e-03,
		FinalTime:         5,
		IntegrationMethod: "Euler",
		PHMethod:          "Brent",
	}
}
