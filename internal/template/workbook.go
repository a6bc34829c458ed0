package template

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Workbook sheet names.
const (
	ReachSheet   = "REACHES"
	SourceSheet  = "SOURCES"
	StationSheet = "WQ_DATA"
)

// SheetError reports a problem with one sheet of the input workbook.
type SheetError struct {
	Sheet  string
	Row    int // 1-based, 0 when the whole sheet is at fault
	Column string
	Reason string
}

func (e *SheetError) Error() string {
	switch {
	case e.Row > 0 && e.Column != "":
		return fmt.Sprintf("sheet %s row %d column %s: %s", e.Sheet, e.Row, e.Column, e.Reason)
	case e.Column != "":
		return fmt.Sprintf("sheet %s column %s: %s", e.Sheet, e.Column, e.Reason)
	default:
		return fmt.Sprintf("sheet %s: %s", e.Sheet, e.Reason)
	}
}

// LoadWorkbook reads the three template sheets from an .xlsx file.
func LoadWorkbook(path string) (*Template, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()
	return ReadWorkbook(f)
}

// ReadWorkbook reads an already opened workbook.
func ReadWorkbook(f *excelize.File) (*Template, error) {
	present := make(map[string]bool)
	for _, name := range f.GetSheetList() {
		present[name] = true
	}
	sheets := make(map[string]*sheet, 3)
	for _, name := range []string{ReachSheet, SourceSheet, StationSheet} {
		if !present[name] {
			return nil, &SheetError{Sheet: name, Reason: "sheet not found"}
		}
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", name, err)
		}
		if len(rows) == 0 {
			return nil, &SheetError{Sheet: name, Reason: "sheet is empty"}
		}
		sheets[name] = newSheet(name, rows)
	}

	reaches, err := readReaches(sheets[ReachSheet])
	if err != nil {
		return nil, err
	}
	sources, err := readSources(sheets[SourceSheet])
	if err != nil {
		return nil, err
	}
	stations, err := readStations(sheets[StationSheet])
	if err != nil {
		return nil, err
	}
	return &Template{Reaches: reaches, Sources: sources, Stations: stations}, nil
}

type sheet struct {
	name   string
	header map[string]int
	rows   [][]string
	lines  []int
}

func newSheet(name string, rows [][]string) *sheet {
	s := &sheet{name: name, header: make(map[string]int, len(rows[0]))}
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if _, dup := s.header[h]; !dup && h != "" {
			s.header[h] = i
		}
	}
	for i, r := range rows[1:] {
		if blank(r) {
			continue
		}
		s.rows = append(s.rows, r)
		s.lines = append(s.lines, i+2)
	}
	return s
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func (s *sheet) require(cols ...string) error {
	for _, c := range cols {
		if _, ok := s.header[c]; !ok {
			return &SheetError{Sheet: s.name, Column: c, Reason: "column not found"}
		}
	}
	return nil
}

func (s *sheet) cell(row int, col string) string {
	i, ok := s.header[col]
	if !ok || i >= len(s.rows[row]) {
		return ""
	}
	return strings.TrimSpace(s.rows[row][i])
}

func (s *sheet) text(row int, col string) string {
	return s.cell(row, col)
}

// number parses a numeric cell. Empty cells and absent columns give NaN.
func (s *sheet) number(row int, col string) (float64, error) {
	raw := s.cell(row, col)
	if raw == "" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		return 0, &SheetError{Sheet: s.name, Row: s.lines[row], Column: col, Reason: fmt.Sprintf("not a number: %q", raw)}
	}
	return v, nil
}

// numbers fills dst in order from cols, stopping at the first bad cell.
func (s *sheet) numbers(row int, cols []string, dst ...*float64) error {
	for i, c := range cols {
		v, err := s.number(row, c)
		if err != nil {
			return err
		}
		*dst[i] = v
	}
	return nil
}

var chemistryColumns = []string{
	"TEMPERATURA", "CONDUCTIVIDAD", "SST", "OXIGENO_DISUELTO", "DBO5", "NTK",
	"NITROGENO_AMONIACAL", "NITRITOS", "NITRATOS", "FOSFORO_TOTAL",
	"ORTOFOSFATOS", "COLIFORMES_TOTALES", "ALCALINIDAD",
	"COLIFORMES_TERMOTOLERANTES", "E_COLI",
}

func (s *sheet) chemistry(row int) (Chemistry, error) {
	c := Missing()
	if err := s.numbers(row, chemistryColumns,
		&c.Temperature, &c.Conductivity, &c.TSS, &c.DO, &c.BOD5, &c.NTK,
		&c.Ammonium, &c.Nitrite, &c.Nitrate, &c.TotalP,
		&c.Orthophosphate, &c.TotalColiforms, &c.Alkalinity,
		&c.ThermoColiforms, &c.EColi,
	); err != nil {
		return Chemistry{}, err
	}
	phCol := "pH"
	if _, ok := s.header[phCol]; !ok {
		phCol = "PH"
	}
	ph, err := s.number(row, phCol)
	if err != nil {
		return Chemistry{}, err
	}
	c.PH = ph
	return c, nil
}

var reachColumns = []string{
	"X_QUAL2K_ARRIBA", "X_QUAL2K_ABAJO", "ELEV_ARRIBA", "ELEV_ABAJO",
	"ALPHA_1", "BETA_1", "ALPHA_2", "BETA_2",
	"SOMBRA_[-]", "TEMPERATURA_[C]", "TEMPERATURA_ROCIO_[C]",
	"VELOCIDAD_DEL_VIENTO_[MS]", "COBERTURA_NUBES_[-]",
}

func readReaches(s *sheet) ([]Reach, error) {
	if err := s.require(append([]string{"EST_ARRIBA", "EST_ABAJO", "NOMBRE_TRAMO"}, reachColumns...)...); err != nil {
		return nil, err
	}
	out := make([]Reach, 0, len(s.rows))
	for i := range s.rows {
		r := Reach{
			Up:   s.text(i, "EST_ARRIBA"),
			Down: s.text(i, "EST_ABAJO"),
			Name: s.text(i, "NOMBRE_TRAMO"),
		}
		if err := s.numbers(i, reachColumns,
			&r.XUp, &r.XDown, &r.ElevUp, &r.ElevDown,
			&r.Alpha1, &r.Beta1, &r.Alpha2, &r.Beta2,
			&r.Shade, &r.AirTemp, &r.DewPoint, &r.Wind, &r.CloudCover,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func readSources(s *sheet) ([]Source, error) {
	if err := s.require("NOMBRE_VERTIMIENTO", "X_QUAL2K", "CAUDAL", "TIPO"); err != nil {
		return nil, err
	}
	out := make([]Source, 0, len(s.rows))
	for i := range s.rows {
		src := Source{Name: s.text(i, "NOMBRE_VERTIMIENTO"), Kind: s.text(i, "TIPO")}
		if err := s.numbers(i, []string{"X_QUAL2K", "CAUDAL"}, &src.X, &src.Flow); err != nil {
			return nil, err
		}
		c, err := s.chemistry(i)
		if err != nil {
			return nil, err
		}
		src.Chemistry = c
		out = append(out, src)
	}
	return out, nil
}

func readStations(s *sheet) ([]Station, error) {
	if err := s.require("NOMBRE_ESTACIONES", "X_QUAL2K"); err != nil {
		return nil, err
	}
	out := make([]Station, 0, len(s.rows))
	for i := range s.rows {
		st := Station{Name: s.text(i, "NOMBRE_ESTACIONES")}
		if err := s.numbers(i, []string{"X_QUAL2K", "CAUDAL"}, &st.X, &st.Flow); err != nil {
			return nil, err
		}
		if math.IsNaN(st.X) {
			return nil, &SheetError{Sheet: s.name, Row: s.lines[i], Column: "X_QUAL2K", Reason: "station has no distance"}
		}
		c, err := s.chemistry(i)
		if err != nil {
			return nil, err
		}
		st.Chemistry = c
		out = append(out, st)
	}
	return out, nil
}
