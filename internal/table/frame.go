// Package table holds small numeric frames keyed by named columns. Missing
// cells are NaN.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"slices"
	"sort"
	"strconv"
)

// Frame is a row-major table of float64 cells.
type Frame struct {
	columns []string
	index   map[string]int
	rows    [][]float64
}

// New returns an empty frame. Column names must be unique.
func New(columns ...string) (*Frame, error) {
	f := &Frame{
		columns: slices.Clone(columns),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if _, dup := f.index[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		f.index[c] = i
	}
	return f, nil
}

// MustNew is New for fixed column lists.
func MustNew(columns ...string) *Frame {
	f, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return f
}

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	return slices.Clone(f.columns)
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.rows)
}

// Has reports whether col exists.
func (f *Frame) Has(col string) bool {
	_, ok := f.index[col]
	return ok
}

// Append adds a row. The row is copied.
func (f *Frame) Append(row []float64) error {
	if len(row) != len(f.columns) {
		return fmt.Errorf("row has %d cells, frame has %d columns", len(row), len(f.columns))
	}
	f.rows = append(f.rows, slices.Clone(row))
	return nil
}

// Row returns a copy of row i.
func (f *Frame) Row(i int) []float64 {
	return slices.Clone(f.rows[i])
}

// Value returns the cell at row i of col, or NaN when col is absent.
func (f *Frame) Value(i int, col string) float64 {
	j, ok := f.index[col]
	if !ok {
		return math.NaN()
	}
	return f.rows[i][j]
}

// Column returns a copy of one column.
func (f *Frame) Column(col string) ([]float64, error) {
	j, ok := f.index[col]
	if !ok {
		return nil, fmt.Errorf("unknown column %q", col)
	}
	out := make([]float64, len(f.rows))
	for i, r := range f.rows {
		out[i] = r[j]
	}
	return out, nil
}

// Select returns a new frame holding cols in the given order.
func (f *Frame) Select(cols ...string) (*Frame, error) {
	idx := make([]int, len(cols))
	for k, c := range cols {
		j, ok := f.index[c]
		if !ok {
			return nil, fmt.Errorf("unknown column %q", c)
		}
		idx[k] = j
	}
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	out.rows = make([][]float64, len(f.rows))
	for i, r := range f.rows {
		row := make([]float64, len(idx))
		for k, j := range idx {
			row[k] = r[j]
		}
		out.rows[i] = row
	}
	return out, nil
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	out := MustNew(f.columns...)
	out.rows = make([][]float64, len(f.rows))
	for i, r := range f.rows {
		out.rows[i] = slices.Clone(r)
	}
	return out
}

// SortBy stably sorts rows by col. NaN keys sort last.
func (f *Frame) SortBy(col string, descending bool) error {
	j, ok := f.index[col]
	if !ok {
		return fmt.Errorf("unknown column %q", col)
	}
	sort.SliceStable(f.rows, func(a, b int) bool {
		x, y := f.rows[a][j], f.rows[b][j]
		switch {
		case math.IsNaN(x):
			return false
		case math.IsNaN(y):
			return true
		case descending:
			return x > y
		default:
			return x < y
		}
	})
	return nil
}

// DedupBy drops every row whose col value was already seen, keeping the first.
func (f *Frame) DedupBy(col string) error {
	j, ok := f.index[col]
	if !ok {
		return fmt.Errorf("unknown column %q", col)
	}
	seen := make(map[float64]bool, len(f.rows))
	kept := f.rows[:0]
	for _, r := range f.rows {
		if seen[r[j]] {
			continue
		}
		seen[r[j]] = true
		kept = append(kept, r)
	}
	f.rows = kept
	return nil
}

// WriteCSV writes a header row and every row. NaN cells are left empty.
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	record := make([]string, len(f.columns))
	for _, r := range f.rows {
		for j, v := range r {
			if math.IsNaN(v) {
				record[j] = ""
				continue
			}
			record[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
