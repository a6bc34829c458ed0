package table

import (
	"fmt"
	"math"
	"sort"
)

// MergeNearest attaches to every left row the right row whose key is closest.
// Both inputs are sorted by key first; the result follows the sorted left
// order. On equal distance the lower right key wins. Right columns other than
// the key are appended after the left columns.
func MergeNearest(left, right *Frame, key string) (*Frame, error) {
	if !left.Has(key) || !right.Has(key) {
		return nil, fmt.Errorf("merge key %q missing", key)
	}

	l := left.Clone()
	r := right.Clone()
	if err := l.SortBy(key, false); err != nil {
		return nil, err
	}
	if err := r.SortBy(key, false); err != nil {
		return nil, err
	}

	var extra []string
	for _, c := range r.columns {
		if c == key {
			continue
		}
		if l.Has(c) {
			return nil, fmt.Errorf("column %q present on both sides", c)
		}
		extra = append(extra, c)
	}

	out, err := New(append(l.Columns(), extra...)...)
	if err != nil {
		return nil, err
	}

	rk, _ := r.Column(key)
	for i := range l.rows {
		k := l.rows[i][l.index[key]]
		if math.IsNaN(k) {
			return nil, fmt.Errorf("row %d has no %s", i, key)
		}
		row := append(make([]float64, 0, len(out.columns)), l.rows[i]...)
		match := nearest(rk, k)
		for _, c := range extra {
			if match < 0 {
				row = append(row, math.NaN())
				continue
			}
			row = append(row, r.rows[match][r.index[c]])
		}
		out.rows = append(out.rows, row)
	}
	return out, nil
}

// nearest returns the index in sorted keys closest to k, or -1 when keys is
// empty. NaN keys sort last and are never matched.
func nearest(keys []float64, k float64) int {
	n := len(keys)
	for n > 0 && math.IsNaN(keys[n-1]) {
		n--
	}
	if n == 0 {
		return -1
	}
	fwd := sort.SearchFloat64s(keys[:n], k)
	switch {
	case fwd == 0:
		return 0
	case fwd == n:
		return n - 1
	}
	back := fwd - 1
	if k-keys[back] <= keys[fwd]-k {
		return back
	}
	return fwd
}
