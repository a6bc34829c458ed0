// Package report reads the engine's textual output. A report is a sequence of
// sections introduced by **Title** lines; each section body is a loosely
// aligned text table.
package report

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/table"
)

var (
	titleLine    = regexp.MustCompile(`^\s*\*\*(.*?)\*\*\s*$`)
	zeroLabel    = regexp.MustCompile(`0([A-Za-z_])`)
	cellSplit    = regexp.MustCompile(`\s{2,}`)
	numericBlock = regexp.MustCompile(`^(?:[-+]?\d*\.?\d+(?:[Ee][-+]?\d+)?)(?:\s+[-+]?\d*\.?\d+(?:[Ee][-+]?\d+)?)+$`)
)

// FormatError reports a report that does not have the expected shape.
type FormatError struct {
	Section string
	Reason  string
}

func (e *FormatError) Error() string {
	if e.Section == "" {
		return fmt.Sprintf("malformed report: %s", e.Reason)
	}
	return fmt.Sprintf("malformed report section %q: %s", e.Section, e.Reason)
}

// Report holds raw section bodies by title.
type Report struct {
	titles []string
	bodies map[string]string
}

// Parse splits r into sections. Lines before the first title are ignored. A
// repeated title replaces the earlier body.
func Parse(r io.Reader) (*Report, error) {
	rep := &Report{bodies: make(map[string]string)}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var (
		current string
		open    bool
		body    []string
	)
	flush := func() {
		if !open {
			return
		}
		if _, seen := rep.bodies[current]; !seen {
			rep.titles = append(rep.titles, current)
		}
		rep.bodies[current] = strings.Join(body, "\n")
	}

	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t\r")
		if m := titleLine.FindStringSubmatch(line); m != nil {
			flush()
			current, open, body = strings.TrimSpace(m[1]), true, nil
			continue
		}
		body = append(body, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	flush()
	return rep, nil
}

// ParseFile parses the report at path.
func ParseFile(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open report: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Titles returns section titles in first-seen order.
func (r *Report) Titles() []string {
	return append([]string(nil), r.titles...)
}

// Body returns the raw text of a section.
func (r *Report) Body(title string) (string, bool) {
	b, ok := r.bodies[title]
	return b, ok
}

// Section parses the named section into a table.
func (r *Report) Section(title string) (*Section, error) {
	body, ok := r.bodies[title]
	if !ok {
		return nil, &FormatError{Section: title, Reason: "section not found"}
	}
	s, err := ParseSection(body)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) && fe.Section == "" {
			fe.Section = title
		}
		return nil, err
	}
	s.Title = title
	return s, nil
}

// Section is a parsed text table. Every row has exactly len(Header) cells;
// short rows are padded with empty cells.
type Section struct {
	Title  string
	Header []string
	Rows   [][]string
}

// ParseSection turns a section body into a header and data rows. The row
// after the header carries units and is discarded.
func ParseSection(body string) (*Section, error) {
	body = zeroLabel.ReplaceAllString(body, "0  $1")

	var rows [][]string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Trim(line, "-") == "" {
			continue
		}
		rows = append(rows, splitCells(line))
	}
	if len(rows) == 0 {
		return nil, &FormatError{Reason: "no header row"}
	}

	s := &Section{Header: rows[0]}
	if len(rows) < 2 {
		return s, nil
	}
	for i, row := range rows[2:] {
		if len(row) > len(s.Header) {
			return nil, &FormatError{Reason: fmt.Sprintf("data row %d has %d cells, header has %d", i+1, len(row), len(s.Header))}
		}
		padded := make([]string, len(s.Header))
		copy(padded, row)
		s.Rows = append(s.Rows, padded)
	}
	return s, nil
}

func splitCells(line string) []string {
	var cells []string
	for _, c := range cellSplit.Split(line, -1) {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if numericBlock.MatchString(c) {
			cells = append(cells, strings.Fields(c)...)
			continue
		}
		cells = append(cells, c)
	}
	return cells
}

// Index returns the position of the first column called name, or -1.
func (s *Section) Index(name string) int {
	for i, h := range s.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Numeric reports whether every non-empty cell of column i parses as a number.
func (s *Section) Numeric(i int) bool {
	for _, row := range s.Rows {
		if row[i] == "" {
			continue
		}
		if _, err := strconv.ParseFloat(row[i], 64); err != nil {
			return false
		}
	}
	return true
}

// Floats returns column i as numbers. Empty cells are NaN. A column holding
// any text cell is a FormatError.
func (s *Section) Floats(i int) ([]float64, error) {
	if i < 0 || i >= len(s.Header) {
		return nil, &FormatError{Section: s.Title, Reason: fmt.Sprintf("column %d out of range", i)}
	}
	out := make([]float64, len(s.Rows))
	for r, row := range s.Rows {
		if row[i] == "" {
			out[r] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(row[i], 64)
		if err != nil {
			return nil, &FormatError{Section: s.Title, Reason: fmt.Sprintf("column %q is not numeric (row %d: %q)", s.Header[i], r+1, row[i])}
		}
		out[r] = v
	}
	return out, nil
}

// Frame extracts a numeric frame. columns maps report labels to output
// names; the first occurrence of a label wins. Labels are emitted in the
// order of want, which lists output names.
func (s *Section) Frame(columns map[string]string, want []string) (*table.Frame, error) {
	source := make(map[string]int, len(want))
	for i, h := range s.Header {
		name, ok := columns[h]
		if !ok {
			continue
		}
		if _, dup := source[name]; !dup {
			source[name] = i
		}
	}

	data := make([][]float64, len(want))
	for k, name := range want {
		i, ok := source[name]
		if !ok {
			return nil, &FormatError{Section: s.Title, Reason: fmt.Sprintf("missing column for %s", name)}
		}
		col, err := s.Floats(i)
		if err != nil {
			return nil, err
		}
		data[k] = col
	}

	f, err := table.New(want...)
	if err != nil {
		return nil, err
	}
	row := make([]float64, len(want))
	for r := range s.Rows {
		for k := range want {
			row[k] = data[k][r]
		}
		if err := f.Append(row); err != nil {
			return nil, err
		}
	}
	return f, nil
}
