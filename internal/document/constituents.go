package document

// WQConstituent indexes an observed water-quality station value.
type WQConstituent int

// Observed constituents in the order the engine reads them.
const (
	WQCond WQConstituent = iota
	WQISS
	WQDO
	WQCBODSlow
	WQCBODFast
	WQNorg
	WQNH4
	WQNO3
	WQPorg
	WQInorgP
	WQPhyto
	WQDetritus
	WQPathogens
	WQAlk
	WQConstI
	WQConstII
	WQConstIII
	WQPH
	WQBotAlg
	WQTN
	WQTP
	WQTSS
	WQNH3
	WQSatData
	WQSODData
	WQSediment1
	WQSediment2
	WQSediment3
	WQCBODu
	WQTOC
	WQTKN

	NumWQConstituents
)

var wqNames = [NumWQConstituents]string{
	"Cond", "ISS", "DO", "CBODs", "CBODf", "Norg", "NH4", "NO3",
	"Porg", "Inorg_P", "Phyto", "Detr", "Pathogens", "Alk",
	"Constituent_i", "Constituent_ii", "Constituent_iii", "pH",
	"Bot_Alg", "TN", "TP", "TSS", "NH3", "Sat_data", "SOD_data",
	"Sediment_1", "Sediment_2", "Sediment_3", "CBODu", "TOC", "TKN",
}

func (c WQConstituent) String() string {
	if c < 0 || c >= NumWQConstituents {
		return "unknown"
	}
	return wqNames[c]
}

// Source and headwater constituent slots. Point sources carry all twenty,
// headwaters and diffuse sources carry the first nineteen and give pH its own
// line.
const (
	SrcCond = iota
	SrcISS
	SrcDO
	SrcCBODSlow
	SrcCBODFast
	SrcNorg
	SrcNH4
	SrcNO3
	SrcPorg
	SrcInorgP
	SrcPhyto
	SrcIntN
	SrcIntP
	SrcDetritus
	SrcPathogens
	SrcAlk
	SrcConstI
	SrcConstII
	SrcConstIII
	SrcPH
)
