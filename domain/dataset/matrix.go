package dataset

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a dense, row-indexed numeric table. Missing cells are NaN.
// It carries both the wide indicator matrix and the merged feature table.
type Matrix struct {
	Index   []string    // row keys, e.g. PolityKey
	Columns []string    // column names
	Data    [][]float64 // rows x columns
}

// NewMatrix allocates an all-missing matrix
func NewMatrix(index, columns []string) *Matrix {
	data := make([][]float64, len(index))
	for i := range data {
		row := make([]float64, len(columns))
		for j := range row {
			row[j] = math.NaN()
		}
		data[i] = row
	}
	return &Matrix{
		Index:   append([]string(nil), index...),
		Columns: append([]string(nil), columns...),
		Data:    data,
	}
}

// Dims returns rows and columns
func (m *Matrix) Dims() (int, int) {
	return len(m.Index), len(m.Columns)
}

// ColumnIndex returns the position of a column or -1
func (m *Matrix) ColumnIndex(name string) int {
	for j, c := range m.Columns {
		if c == name {
			return j
		}
	}
	return -1
}

// Column copies one column by name
func (m *Matrix) Column(name string) ([]float64, error) {
	j := m.ColumnIndex(name)
	if j < 0 {
		return nil, fmt.Errorf("column %q not in matrix", name)
	}
	out := make([]float64, len(m.Data))
	for i, row := range m.Data {
		out[i] = row[j]
	}
	return out, nil
}

// Set writes a cell addressed by row position and column name
func (m *Matrix) Set(i int, column string, v float64) error {
	j := m.ColumnIndex(column)
	if j < 0 {
		return fmt.Errorf("column %q not in matrix", column)
	}
	m.Data[i][j] = v
	return nil
}

// ColumnCoverage is the fraction of non-missing cells in column j
func (m *Matrix) ColumnCoverage(j int) float64 {
	if len(m.Data) == 0 {
		return 0
	}
	seen := 0
	for _, row := range m.Data {
		if !math.IsNaN(row[j]) {
			seen++
		}
	}
	return float64(seen) / float64(len(m.Data))
}

// RowCoverage is the fraction of non-missing cells in row i
func (m *Matrix) RowCoverage(i int) float64 {
	if len(m.Columns) == 0 {
		return 0
	}
	seen := 0
	for _, v := range m.Data[i] {
		if !math.IsNaN(v) {
			seen++
		}
	}
	return float64(seen) / float64(len(m.Columns))
}

// SelectColumns returns a copy restricted to the named columns, in that order
func (m *Matrix) SelectColumns(names []string) (*Matrix, error) {
	idx := make([]int, len(names))
	for k, name := range names {
		j := m.ColumnIndex(name)
		if j < 0 {
			return nil, fmt.Errorf("column %q not in matrix", name)
		}
		idx[k] = j
	}
	out := &Matrix{
		Index:   append([]string(nil), m.Index...),
		Columns: append([]string(nil), names...),
		Data:    make([][]float64, len(m.Data)),
	}
	for i, row := range m.Data {
		r := make([]float64, len(idx))
		for k, j := range idx {
			r[k] = row[j]
		}
		out.Data[i] = r
	}
	return out, nil
}

// SelectRows returns a copy with the rows at the given positions
func (m *Matrix) SelectRows(rows []int) *Matrix {
	out := &Matrix{
		Index:   make([]string, len(rows)),
		Columns: append([]string(nil), m.Columns...),
		Data:    make([][]float64, len(rows)),
	}
	for k, i := range rows {
		out.Index[k] = m.Index[i]
		out.Data[k] = append([]float64(nil), m.Data[i]...)
	}
	return out
}

// DropIncomplete keeps only rows with no missing value
func (m *Matrix) DropIncomplete() *Matrix {
	var keep []int
	for i, row := range m.Data {
		complete := true
		for _, v := range row {
			if math.IsNaN(v) {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, i)
		}
	}
	return m.SelectRows(keep)
}

// SortByIndex orders rows lexically by key
func (m *Matrix) SortByIndex() {
	order := make([]int, len(m.Index))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return m.Index[order[a]] < m.Index[order[b]] })
	sorted := m.SelectRows(order)
	m.Index, m.Data = sorted.Index, sorted.Data
}

// Dense copies the values into a gonum matrix
func (m *Matrix) Dense() *mat.Dense {
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(r, c, nil)
	for i, row := range m.Data {
		out.SetRow(i, row)
	}
	return out
}

// FromDense wraps a gonum matrix with row and column labels
func FromDense(d mat.Matrix, index, columns []string) *Matrix {
	r, c := d.Dims()
	out := &Matrix{
		Index:   append([]string(nil), index...),
		Columns: append([]string(nil), columns...),
		Data:    make([][]float64, r),
	}
	for i := 0; i < r; i++ {
		row := make([]float64, c)
		for j := 0; j < c; j++ {
			row[j] = d.At(i, j)
		}
		out.Data[i] = row
	}
	return out
}
