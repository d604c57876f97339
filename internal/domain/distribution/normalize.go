package distribution

import (
	"github.com/FACorreiaa/campaign-spend-insights/pkg/money"
)

// Orientation tells which axis a distribution's percentages are relative to.
type Orientation string

const (
	// ByRow: every campaign's channel shares add up to 100.
	ByRow Orientation = "row"
	// ByColumn: every channel's campaign shares add up to 100.
	ByColumn Orientation = "column"
)

// Distribution is a percentage view of an aggregate matrix. A non-empty row
// distribution carries a trailing Total column, a column distribution a
// trailing Total row. The Total axis is identified by position, so a campaign
// or channel that happens to be called "Total" is still an ordinary label.
type Distribution struct {
	Orientation Orientation `json:"orientation"`
	Matrix      *Matrix     `json:"matrix"`

	// exact holds the unrounded shares without the Total axis, laid out like
	// Matrix. Summarize compares these so equal spend stays tied after rounding.
	exact *Matrix
}

// IsEmpty reports whether the distribution has no cells.
func (d *Distribution) IsEmpty() bool {
	return d == nil || d.Matrix.IsEmpty()
}

// Subjects returns the labels findings are reported for: campaigns for a row
// distribution, channels for a column distribution. The Total axis is excluded.
func (d *Distribution) Subjects() []string {
	if d.IsEmpty() {
		return nil
	}
	if d.Orientation == ByRow {
		return d.Matrix.Rows
	}
	return d.Matrix.Columns
}

// Counterparts returns the labels shares are split across, excluding Total.
func (d *Distribution) Counterparts() []string {
	if d.IsEmpty() {
		return nil
	}
	if d.Orientation == ByRow {
		return d.Matrix.Columns[:len(d.Matrix.Columns)-1]
	}
	return d.Matrix.Rows[:len(d.Matrix.Rows)-1]
}

// TotalIndex returns the position of the Total axis: the last column of a row
// distribution or the last row of a column distribution. It is -1 when empty.
func (d *Distribution) TotalIndex() int {
	if d.IsEmpty() {
		return -1
	}
	if d.Orientation == ByRow {
		return len(d.Matrix.Columns) - 1
	}
	return len(d.Matrix.Rows) - 1
}

// Share returns the percentage for a subject/counterpart pair. A counterpart
// of TotalLabel that is not a real counterpart resolves to the Total axis.
func (d *Distribution) Share(subject, counterpart string) (float64, bool) {
	if d.IsEmpty() {
		return 0, false
	}
	s, ok := indexOf(d.Subjects(), subject)
	if !ok {
		return 0, false
	}
	c, ok := indexOf(d.Counterparts(), counterpart)
	if !ok {
		if counterpart != TotalLabel {
			return 0, false
		}
		c = d.TotalIndex()
	}
	return d.cell(s, c), true
}

// Total returns the Total cell of a subject.
func (d *Distribution) Total(subject string) (float64, bool) {
	s, ok := indexOf(d.Subjects(), subject)
	if !ok {
		return 0, false
	}
	return d.cell(s, d.TotalIndex()), true
}

func (d *Distribution) cell(subject, counterpart int) float64 {
	if d.Orientation == ByRow {
		return d.Matrix.Values[subject][counterpart]
	}
	return d.Matrix.Values[counterpart][subject]
}

// Normalize derives both distributions from an aggregate matrix.
func Normalize(agg *Matrix) (row, column *Distribution) {
	return NormalizeRows(agg), NormalizeColumns(agg)
}

// NormalizeRows expresses every cell as a percentage of its row sum and
// appends a Total column. Shares have two decimals and add up to exactly 100,
// which is also the Total. A row whose spend sums to zero is all 0, Total
// included.
func NormalizeRows(agg *Matrix) *Distribution {
	if agg.IsEmpty() {
		return &Distribution{Orientation: ByRow, Matrix: NewMatrix(nil, nil)}
	}

	cols := append(append([]string{}, agg.Columns...), TotalLabel)
	out := NewMatrix(agg.Rows, cols)
	exact := NewMatrix(agg.Rows, agg.Columns)
	total := len(cols) - 1

	for i, sum := range agg.RowSums() {
		if sum == 0 {
			continue
		}
		copy(out.Values[i], money.Apportion(agg.Values[i]))
		for j, v := range agg.Values[i] {
			exact.Values[i][j] = money.Share(v, sum)
		}
		out.Values[i][total] = 100.0
	}

	return &Distribution{Orientation: ByRow, Matrix: out, exact: exact}
}

// NormalizeColumns expresses every cell as a percentage of its column sum and
// appends a Total row. Shares have two decimals and add up to exactly 100,
// which is also the Total. Zero-sum columns are all 0 including Total.
func NormalizeColumns(agg *Matrix) *Distribution {
	if agg.IsEmpty() {
		return &Distribution{Orientation: ByColumn, Matrix: NewMatrix(nil, nil)}
	}

	rows := append(append([]string{}, agg.Rows...), TotalLabel)
	out := NewMatrix(rows, agg.Columns)
	exact := NewMatrix(agg.Rows, agg.Columns)
	total := len(rows) - 1

	column := make([]float64, len(agg.Rows))
	for j, sum := range agg.ColumnSums() {
		if sum == 0 {
			continue
		}
		for i := range agg.Rows {
			column[i] = agg.Values[i][j]
		}
		for i, share := range money.Apportion(column) {
			out.Values[i][j] = share
			exact.Values[i][j] = money.Share(column[i], sum)
		}
		out.Values[total][j] = 100.0
	}

	return &Distribution{Orientation: ByColumn, Matrix: out, exact: exact}
}
