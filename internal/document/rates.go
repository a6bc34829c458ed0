package document

import (
	"fmt"
	"sort"
)

// GenericConstituent holds the decay, temperature and settling constants of
// one generic constituent.
type GenericConstituent struct {
	K        float64
	Theta    float64
	Settling float64
}

// Rates is the global kinetic rate set.
type Rates struct {
	VSS, MgC, MgN, MgP, MgD, MgA float64

	Tka, Roc, Ron float64

	Ksocf, Ksona, Ksodn, Ksop, Ksob float64
	Khc, Tkhc, Kdcs, Tkdcs          float64
	Kdc, Tkdc, Khn, Tkhn, Von       float64

	Kn, Tkn, Ki, Tki, Vdi, Tvdi float64
	Khp, Tkhp, Vop, Vip         float64
	Kspi, Kdpi                  float64

	Kga, Tkga, Krea, Tkrea, Kexa, Tkexa float64
	Kdea, Tkdea, Ksn, Ksp, Ksc, Isat    float64

	Khnx, Va      float64
	TypeF         string
	KgaF, TkgaF   float64
	KreaF, TkreaF float64
	KexaF, TkexaF float64
	KdeaF, Abmax  float64

	TkdeaF, KsnF, KspF, KscF, IsatF, KhnxF float64
	Kdt, Tkdt, Ffast, Vdt                  float64

	Dummy [6]float64

	Kai, KaWindMethod float64
	ReaExtras         [4]float64

	NINpmin, NIPpmin, NINpupmax, NIPpupmax float64

	Generic [3]GenericConstituent

	SaturationTypes   [7]string
	ReaerationMethods [2]string

	ReaA, ReaB, ReaC float64

	custom map[string]bool
}

// DefaultRates returns the built-in global rate set.
func DefaultRates() Rates {
	return Rates{
		VSS: .1, MgC: 40, MgN: 7.2, MgP: 1, MgD: 100, MgA: 1,
		Tka: 1.024, Roc: 2.69, Ron: 4.57,
		Ksocf: .6, Ksona: .6, Ksodn: .6, Ksop: .6, Ksob: .6,
		Khc: 0, Tkhc: 1.07, Kdcs: 0, Tkdcs: 1.047,
		Kdc: .09, Tkdc: 1.047, Khn: .015, Tkhn: 1.07, Von: .0005,
		Kn: .08, Tkn: 1.07, Ki: .1, Tki: 1.07, Vdi: .8, Tvdi: 1.07,
		Khp: .03, Tkhp: 1.07, Vop: .001, Vip: .8,
		Kspi: 1, Kdpi: 1000,
		Kga: 3.8, Tkga: 1.07, Krea: .15, Tkrea: 1.07, Kexa: .3, Tkexa: 1.07,
		Kdea: .1, Tkdea: 1.07, Ksn: 100, Ksp: 10, Ksc: .000013, Isat: 250,
		Khnx: 25, Va: 0, TypeF: "Zero-order",
		KgaF: 200, TkgaF: 1.07, KreaF: .2, TkreaF: 1.07,
		KexaF: .12, TkexaF: 1.07, KdeaF: .1, Abmax: 1000,
		TkdeaF: 1.07, KsnF: 300, KspF: 100, KscF: .000013, IsatF: 100, KhnxF: 25,
		Kdt: .23, Tkdt: 1.07, Ffast: 1, Vdt: .008,
		Kai: .72, KaWindMethod: .1, ReaExtras: [4]float64{72, 5, .9, .13},
		NINpmin: .8, NIPpmin: 1.07, NINpupmax: 1, NIPpupmax: 1,
		Generic: [3]GenericConstituent{
			{K: 0, Theta: 1, Settling: 0},
			{K: 0, Theta: 1, Settling: 0},
			{K: 0, Theta: 1, Settling: 0},
		},
		SaturationTypes: [7]string{
			"Exponential", "Exponential", "Exponential", "Exponential",
			"Exponential", "Half saturation", "Half saturation",
		},
		ReaerationMethods: [2]string{"O'Connor-Dobbins", "None"},
		ReaA: 3.93, ReaB: .5, ReaC: 1.5,
	}
}

type rateField func(r *Rates) *float64

// rateFields maps the scalar rate names accepted by Set and Get.
var rateFields = map[string]rateField{
	"vss": func(r *Rates) *float64 { return &r.VSS }, "mgC": func(r *Rates) *float64 { return &r.MgC },
	"mgN": func(r *Rates) *float64 { return &r.MgN }, "mgP": func(r *Rates) *float64 { return &r.MgP },
	"mgD": func(r *Rates) *float64 { return &r.MgD }, "mgA": func(r *Rates) *float64 { return &r.MgA },
	"tka": func(r *Rates) *float64 { return &r.Tka }, "roc": func(r *Rates) *float64 { return &r.Roc },
	"ron": func(r *Rates) *float64 { return &r.Ron },
	"Ksocf": func(r *Rates) *float64 { return &r.Ksocf }, "Ksona": func(r *Rates) *float64 { return &r.Ksona },
	"Ksodn": func(r *Rates) *float64 { return &r.Ksodn }, "Ksop": func(r *Rates) *float64 { return &r.Ksop },
	"Ksob": func(r *Rates) *float64 { return &r.Ksob },
	"khc": func(r *Rates) *float64 { return &r.Khc }, "tkhc": func(r *Rates) *float64 { return &r.Tkhc },
	"kdcs": func(r *Rates) *float64 { return &r.Kdcs }, "tkdcs": func(r *Rates) *float64 { return &r.Tkdcs },
	"kdc": func(r *Rates) *float64 { return &r.Kdc }, "tkdc": func(r *Rates) *float64 { return &r.Tkdc },
	"khn": func(r *Rates) *float64 { return &r.Khn }, "tkhn": func(r *Rates) *float64 { return &r.Tkhn },
	"von": func(r *Rates) *float64 { return &r.Von },
	"kn": func(r *Rates) *float64 { return &r.Kn }, "tkn": func(r *Rates) *float64 { return &r.Tkn },
	"ki": func(r *Rates) *float64 { return &r.Ki }, "tki": func(r *Rates) *float64 { return &r.Tki },
	"vdi": func(r *Rates) *float64 { return &r.Vdi }, "tvdi": func(r *Rates) *float64 { return &r.Tvdi },
	"khp": func(r *Rates) *float64 { return &r.Khp }, "tkhp": func(r *Rates) *float64 { return &r.Tkhp },
	"vop": func(r *Rates) *float64 { return &r.Vop }, "vip": func(r *Rates) *float64 { return &r.Vip },
	"kspi": func(r *Rates) *float64 { return &r.Kspi }, "Kdpi": func(r *Rates) *float64 { return &r.Kdpi },
	"kga": func(r *Rates) *float64 { return &r.Kga }, "tkga": func(r *Rates) *float64 { return &r.Tkga },
	"krea": func(r *Rates) *float64 { return &r.Krea }, "tkrea": func(r *Rates) *float64 { return &r.Tkrea },
	"kexa": func(r *Rates) *float64 { return &r.Kexa }, "tkexa": func(r *Rates) *float64 { return &r.Tkexa },
	"kdea": func(r *Rates) *float64 { return &r.Kdea }, "tkdea": func(r *Rates) *float64 { return &r.Tkdea },
	"ksn": func(r *Rates) *float64 { return &r.Ksn }, "ksp": func(r *Rates) *float64 { return &r.Ksp },
	"ksc": func(r *Rates) *float64 { return &r.Ksc }, "Isat": func(r *Rates) *float64 { return &r.Isat },
	"khnx": func(r *Rates) *float64 { return &r.Khnx }, "va": func(r *Rates) *float64 { return &r.Va },
	"kgaF": func(r *Rates) *float64 { return &r.KgaF }, "tkgaF": func(r *Rates) *float64 { return &r.TkgaF },
	"kreaF": func(r *Rates) *float64 { return &r.KreaF }, "tkreaF": func(r *Rates) *float64 { return &r.TkreaF },
	"kexaF": func(r *Rates) *float64 { return &r.KexaF }, "tkexaF": func(r *Rates) *float64 { return &r.TkexaF },
	"kdeaF": func(r *Rates) *float64 { return &r.KdeaF }, "abmax": func(r *Rates) *float64 { return &r.Abmax },
	"tkdeaF": func(r *Rates) *float64 { return &r.TkdeaF }, "ksnF": func(r *Rates) *float64 { return &r.KsnF },
	"kspF": func(r *Rates) *float64 { return &r.KspF }, "kscF": func(r *Rates) *float64 { return &r.KscF },
	"Isatf": func(r *Rates) *float64 { return &r.IsatF }, "khnxF": func(r *Rates) *float64 { return &r.KhnxF },
	"kdt": func(r *Rates) *float64 { return &r.Kdt }, "tkdt": func(r *Rates) *float64 { return &r.Tkdt },
	"ffast": func(r *Rates) *float64 { return &r.Ffast }, "vdt": func(r *Rates) *float64 { return &r.Vdt },
	"kai": func(r *Rates) *float64 { return &r.Kai }, "kawindmethod": func(r *Rates) *float64 { return &r.KaWindMethod },
	"NINpmin": func(r *Rates) *float64 { return &r.NINpmin }, "NIPpmin": func(r *Rates) *float64 { return &r.NIPpmin },
	"NINpupmax": func(r *Rates) *float64 { return &r.NINpupmax }, "NIPpupmax": func(r *Rates) *float64 { return &r.NIPpupmax },
	"reaa": func(r *Rates) *float64 { return &r.ReaA }, "reab": func(r *Rates) *float64 { return &r.ReaB },
	"reac": func(r *Rates) *float64 { return &r.ReaC },
}

// RateNames lists every name accepted by Set, sorted.
func RateNames() []string {
	names := make([]string, 0, len(rateFields))
	for name := range rateFields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a scalar global rate by name.
func (r *Rates) Get(name string) (float64, bool) {
	f, ok := rateFields[name]
	if !ok {
		return 0, false
	}
	return *f(r), true
}

// Set overrides a scalar global rate for the whole run.
func (r *Rates) Set(name string, v float64) error {
	f, ok := rateFields[name]
	if !ok {
		return configErrorf("rates."+name, "unknown rate")
	}
	*f(r) = v
	if r.custom == nil {
		r.custom = make(map[string]bool)
	}
	r.custom[name] = true
	return nil
}

// Apply sets every rate in custom. Keys are applied in sorted order so the
// first unknown name reported is stable.
func (r *Rates) Apply(custom map[string]float64) error {
	names := make([]string, 0, len(custom))
	for name := range custom {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := r.Set(name, custom[name]); err != nil {
			return err
		}
	}
	return nil
}

// IsCustom reports whether name was set for this run.
func (r *Rates) IsCustom(name string) bool {
	return r.custom[name]
}

// Clone returns an independent copy.
func (r Rates) Clone() Rates {
	out := r
	if r.custom != nil {
		out.custom = make(map[string]bool, len(r.custom))
		for k, v := range r.custom {
			out.custom[k] = v
		}
	}
	return out
}

// Layer names where an effective rate came from.
type Layer int

const (
	LayerEngine Layer = iota
	LayerDefault
	LayerRun
	LayerReach
)

func (l Layer) String() string {
	switch l {
	case LayerDefault:
		return "default"
	case LayerRun:
		return "run"
	case LayerReach:
		return "reach"
	default:
		return "engine"
	}
}

// Effective resolves the rate applied to one reach: a per-reach override wins
// over a run-level value, which wins over the built-in default. Rates without
// a global counterpart (reaeration) resolve to LayerEngine when not overridden.
func (r *Rates) Effective(o RateOverrides, reach int, key RateKey) (float64, Layer, error) {
	if reach < 0 || reach >= o.Len() {
		return 0, LayerEngine, fmt.Errorf("reach %d out of range [0, %d)", reach, o.Len())
	}
	if v, ok := o.Reach(reach)[key].Get(); ok {
		return v, LayerReach, nil
	}
	name := key.Global()
	if name == "" {
		return 0, LayerEngine, nil
	}
	v, _ := r.Get(name)
	if r.IsCustom(name) {
		return v, LayerRun, nil
	}
	return v, LayerDefault, nil
}
