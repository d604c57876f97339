// Package distribution turns spend records into campaign x channel matrices,
// normalizes them into percentage shares and finds the dominant counterpart
// of every campaign and channel.
package distribution

import (
	"github.com/FACorreiaa/campaign-spend-insights/pkg/money"
)

// TotalLabel names the synthetic Total axis appended by the normalizer.
const TotalLabel = "Total"

// Matrix is a dense, rectangular table of values indexed by row and column
// labels. Rows are campaigns and columns are channels.
type Matrix struct {
	Rows    []string    `json:"rows"`
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
}

// NewMatrix returns a zero-filled matrix with the given labels.
func NewMatrix(rows, columns []string) *Matrix {
	values := make([][]float64, len(rows))
	for i := range values {
		values[i] = make([]float64, len(columns))
	}
	return &Matrix{
		Rows:    append([]string{}, rows...),
		Columns: append([]string{}, columns...),
		Values:  values,
	}
}

// IsEmpty reports whether the matrix has no rows or no columns.
func (m *Matrix) IsEmpty() bool {
	return m == nil || len(m.Rows) == 0 || len(m.Columns) == 0
}

// At returns the value at row i, column j.
func (m *Matrix) At(i, j int) float64 {
	return m.Values[i][j]
}

// RowIndex returns the position of a row label.
func (m *Matrix) RowIndex(label string) (int, bool) {
	return indexOf(m.Rows, label)
}

// ColumnIndex returns the position of a column label.
func (m *Matrix) ColumnIndex(label string) (int, bool) {
	return indexOf(m.Columns, label)
}

// Get returns the value for a (row, column) label pair.
func (m *Matrix) Get(row, column string) (float64, bool) {
	i, ok := m.RowIndex(row)
	if !ok {
		return 0, false
	}
	j, ok := m.ColumnIndex(column)
	if !ok {
		return 0, false
	}
	return m.Values[i][j], true
}

// RowSums returns the sum of every row, added in decimal so spend that
// cancels out sums to exactly 0.
func (m *Matrix) RowSums() []float64 {
	sums := make([]float64, len(m.Rows))
	for i, row := range m.Values {
		sums[i] = money.SumFloats(row)
	}
	return sums
}

// ColumnSums returns the sum of every column, added in decimal.
func (m *Matrix) ColumnSums() []float64 {
	sums := make([]float64, len(m.Columns))
	column := make([]float64, len(m.Rows))
	for j := range m.Columns {
		for i, row := range m.Values {
			column[i] = row[j]
		}
		sums[j] = money.SumFloats(column)
	}
	return sums
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	c := NewMatrix(m.Rows, m.Columns)
	for i := range m.Values {
		copy(c.Values[i], m.Values[i])
	}
	return c
}

func indexOf(labels []string, label string) (int, bool) {
	for i, l := range labels {
		if l == label {
			return i, true
		}
	}
	return -1, false
}
