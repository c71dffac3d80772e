// Package dataset handles acquisition and preparation of the reservoir
// dataset: downloading and expanding the source archive, selecting and
// reading the data file, and turning the raw table into the filtered
// numeric frame the models train on.
//
// The lifecycle is linear and runs exactly once per pipeline run:
//
//	Table (raw strings) -> Frame (numeric, no missing values)
//	  -> filtered Frame (domain validity filters)
//	  -> modeling Frame (seven predictors + target)
//
// Every transformation returns a new value; nothing here mutates its
// input.
package dataset

import (
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	pkgerrors "github.com/petroml/orfcast/pkg/errors"
)

// Table is a raw tabular dataset as read from a spreadsheet or CSV file:
// a header row plus string cells. Column types are not known yet and rows
// may be ragged.
type Table struct {
	Columns []string
	Rows    [][]string
}

// NumRows returns the number of data rows (excluding the header).
func (t *Table) NumRows() int { return len(t.Rows) }

// HasColumn reports whether the header contains the named column.
// Column names are case-sensitive throughout the pipeline.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Frame is a fully numeric table: named float64 columns of equal length
// with no missing values. It is the working representation between
// cleaning and model fitting.
type Frame struct {
	names []string
	cols  [][]float64
	index map[string]int
}

// NewFrame creates a Frame from ordered column names and their data. All
// columns must have the same length.
func NewFrame(names []string, cols [][]float64) (*Frame, error) {
	if len(names) != len(cols) {
		return nil, pkgerrors.NewValueError("NewFrame", "names and columns count mismatch")
	}
	n := -1
	for _, col := range cols {
		if n == -1 {
			n = len(col)
		} else if len(col) != n {
			return nil, pkgerrors.NewDimensionError("NewFrame", n, len(col), 0)
		}
	}
	f := &Frame{names: names, cols: cols, index: make(map[string]int, len(names))}
	for i, name := range names {
		f.index[name] = i
	}
	return f, nil
}

// Names returns the column names in declaration order.
func (f *Frame) Names() []string {
	out := make([]string, len(f.names))
	copy(out, f.names)
	return out
}

// NumRows returns the row count.
func (f *Frame) NumRows() int {
	if len(f.cols) == 0 {
		return 0
	}
	return len(f.cols[0])
}

// NumCols returns the column count.
func (f *Frame) NumCols() int { return len(f.cols) }

// Has reports whether the frame contains the named column.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns the data of the named column, or nil if absent. The
// returned slice is the frame's own storage; callers must not modify it.
func (f *Frame) Column(name string) []float64 {
	i, ok := f.index[name]
	if !ok {
		return nil
	}
	return f.cols[i]
}

// FilterRows returns a new Frame containing only the rows for which keep
// returns true.
func (f *Frame) FilterRows(keep func(row int) bool) *Frame {
	kept := make([]int, 0, f.NumRows())
	for i := 0; i < f.NumRows(); i++ {
		if keep(i) {
			kept = append(kept, i)
		}
	}

	cols := make([][]float64, len(f.cols))
	for c := range f.cols {
		col := make([]float64, len(kept))
		for j, i := range kept {
			col[j] = f.cols[c][i]
		}
		cols[c] = col
	}
	out, _ := NewFrame(f.Names(), cols)
	return out
}

// Select returns a new Frame with exactly the named columns, in the given
// order. Fails with SchemaError on the first missing column.
func (f *Frame) Select(names ...string) (*Frame, error) {
	cols := make([][]float64, 0, len(names))
	for _, name := range names {
		i, ok := f.index[name]
		if !ok {
			return nil, pkgerrors.NewSchemaError("Frame.Select", name)
		}
		col := make([]float64, len(f.cols[i]))
		copy(col, f.cols[i])
		cols = append(cols, col)
	}
	out := make([]string, len(names))
	copy(out, names)
	return NewFrame(out, cols)
}

// Matrix returns the named columns as a dense (rows, len(names)) matrix
// for model fitting. Fails with SchemaError on a missing column.
func (f *Frame) Matrix(names ...string) (*mat.Dense, error) {
	n := f.NumRows()
	m := mat.NewDense(n, len(names), nil)
	for j, name := range names {
		col := f.Column(name)
		if col == nil {
			return nil, pkgerrors.NewSchemaError("Frame.Matrix", name)
		}
		for i := 0; i < n; i++ {
			m.Set(i, j, col[i])
		}
	}
	return m, nil
}

// Vector returns the named column as a (rows, 1) matrix. Fails with
// SchemaError if the column is absent.
func (f *Frame) Vector(name string) (*mat.Dense, error) {
	return f.Matrix(name)
}

// missingCell reports whether a raw cell represents a missing value.
func missingCell(cell string) bool {
	s := strings.TrimSpace(cell)
	if s == "" {
		return true
	}
	switch strings.ToUpper(s) {
	case "NA", "N/A", "NAN", "NULL":
		return true
	}
	return false
}

// parseNumeric parses a raw cell as a float64. Thousands separators are
// tolerated since spreadsheet exports often carry them.
func parseNumeric(cell string) (float64, bool) {
	s := strings.TrimSpace(cell)
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
