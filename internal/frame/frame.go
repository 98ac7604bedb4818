package frame

import (
	"fmt"
	"sort"
)

// TimestampColumn is the shared axis every frame is keyed by.
const TimestampColumn = "timestamp"

// Series is a single named float64 column with per-row validity.
// A false entry in Valid marks a null cell.
type Series struct {
	Name  string
	Vals  []float64
	Valid []bool
}

// NullCount returns the number of null cells in the series.
func (s *Series) NullCount() int {
	n := 0
	for _, ok := range s.Valid {
		if !ok {
			n++
		}
	}
	return n
}

// Frame is an in-memory columnar table keyed by one int64 millisecond
// timestamp column. All data columns are float64 with validity masks and
// share the timestamp axis length. A frame is owned by a single pipeline
// run; none of its methods are safe for concurrent use.
type Frame struct {
	ts    []int64
	cols  []*Series
	index map[string]int
	attrs map[string]string
}

// New creates a frame over the given timestamp axis. The slice is owned by
// the frame afterwards.
func New(ts []int64) *Frame {
	return &Frame{
		ts:    ts,
		index: make(map[string]int),
	}
}

// NumRows returns the row count.
func (f *Frame) NumRows() int {
	return len(f.ts)
}

// NumColumns returns the number of data columns (timestamp excluded).
func (f *Frame) NumColumns() int {
	return len(f.cols)
}

// Timestamps returns the timestamp axis. Callers must not mutate it.
func (f *Frame) Timestamps() []int64 {
	return f.ts
}

// Columns returns data column names in insertion order.
func (f *Frame) Columns() []string {
	names := make([]string, 0, len(f.cols))
	for _, c := range f.cols {
		names = append(names, c.Name)
	}
	return names
}

// HasColumn reports whether a data column exists. The timestamp column
// always exists.
func (f *Frame) HasColumn(name string) bool {
	if name == TimestampColumn {
		return true
	}
	_, ok := f.index[name]
	return ok
}

// Column returns a data column by name.
func (f *Frame) Column(name string) (*Series, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

// Value returns the cell at (name, row) and whether it is non-null.
func (f *Frame) Value(name string, row int) (float64, bool) {
	s, ok := f.Column(name)
	if !ok || row < 0 || row >= len(s.Vals) {
		return 0, false
	}
	return s.Vals[row], s.Valid[row]
}

// AddColumn appends a data column. A nil valid mask means every cell is
// non-null. Re-adding an existing name replaces the column in place.
func (f *Frame) AddColumn(name string, vals []float64, valid []bool) error {
	if name == TimestampColumn {
		return fmt.Errorf("column name %q is reserved", TimestampColumn)
	}
	if len(vals) != len(f.ts) {
		return fmt.Errorf("column %s: length %d does not match %d rows", name, len(vals), len(f.ts))
	}
	if valid == nil {
		valid = make([]bool, len(vals))
		for i := range valid {
			valid[i] = true
		}
	}
	if len(valid) != len(vals) {
		return fmt.Errorf("column %s: validity mask length mismatch", name)
	}
	s := &Series{Name: name, Vals: vals, Valid: valid}
	if i, ok := f.index[name]; ok {
		f.cols[i] = s
		return nil
	}
	f.index[name] = len(f.cols)
	f.cols = append(f.cols, s)
	return nil
}

// SetAttr attaches a lineage attribute (alignment method, anchor symbol and
// the like) to the frame.
func (f *Frame) SetAttr(key, value string) {
	if f.attrs == nil {
		f.attrs = make(map[string]string)
	}
	f.attrs[key] = value
}

// Attr returns a lineage attribute.
func (f *Frame) Attr(key string) (string, bool) {
	v, ok := f.attrs[key]
	return v, ok
}

// Attrs returns a copy of all lineage attributes.
func (f *Frame) Attrs() map[string]string {
	out := make(map[string]string, len(f.attrs))
	for k, v := range f.attrs {
		out[k] = v
	}
	return out
}

// IsSortedByTimestamp reports whether the timestamp axis is non-decreasing.
func (f *Frame) IsSortedByTimestamp() bool {
	for i := 1; i < len(f.ts); i++ {
		if f.ts[i] < f.ts[i-1] {
			return false
		}
	}
	return true
}

// SortByTimestamp reorders all rows so the timestamp axis is ascending.
// The sort is stable so later duplicates stay behind earlier ones.
func (f *Frame) SortByTimestamp() {
	if f.IsSortedByTimestamp() {
		return
	}
	perm := make([]int, len(f.ts))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		return f.ts[perm[a]] < f.ts[perm[b]]
	})
	f.applyPermutation(perm)
}

// DedupKeepLast drops rows with duplicated timestamps, keeping the last
// occurrence. The frame must already be sorted by timestamp.
func (f *Frame) DedupKeepLast() {
	if len(f.ts) < 2 {
		return
	}
	keep := make([]bool, len(f.ts))
	for i := range f.ts {
		if i == len(f.ts)-1 || f.ts[i] != f.ts[i+1] {
			keep[i] = true
		}
	}
	f.FilterRows(keep)
}

// FilterRows keeps only the rows flagged true in the mask.
func (f *Frame) FilterRows(keep []bool) {
	if len(keep) != len(f.ts) {
		return
	}
	n := 0
	for i := range keep {
		if keep[i] {
			f.ts[n] = f.ts[i]
			for _, c := range f.cols {
				c.Vals[n] = c.Vals[i]
				c.Valid[n] = c.Valid[i]
			}
			n++
		}
	}
	f.ts = f.ts[:n]
	for _, c := range f.cols {
		c.Vals = c.Vals[:n]
		c.Valid = c.Valid[:n]
	}
}

func (f *Frame) applyPermutation(perm []int) {
	ts := make([]int64, len(perm))
	for i, p := range perm {
		ts[i] = f.ts[p]
	}
	f.ts = ts
	for _, c := range f.cols {
		vals := make([]float64, len(perm))
		valid := make([]bool, len(perm))
		for i, p := range perm {
			vals[i] = c.Vals[p]
			valid[i] = c.Valid[p]
		}
		c.Vals = vals
		c.Valid = valid
	}
}
