package distribution_test

import (
	"fmt"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/distribution"
	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/spend"
)

func rec(campaign, channel string, amount float64) spend.Record {
	return spend.Record{Campaign: campaign, Month: 1, Year: 2025, Channel: channel, Spend: amount}
}

func TestAggregate(t *testing.T) {
	records := []spend.Record{
		rec("ads2", "channel2", 10),
		rec("ads1", "channel1", 5),
		rec("ads1", "channel1", 7.5),
		rec("ads1", "channel3", -2),
	}

	m := distribution.Aggregate(records)

	assert.Equal(t, []string{"ads1", "ads2"}, m.Rows)
	assert.Equal(t, []string{"channel1", "channel2", "channel3"}, m.Columns)
	assert.Equal(t, [][]float64{
		{12.5, 0, -2},
		{0, 10, 0},
	}, m.Values)
}

func TestAggregate_OrderIndependent(t *testing.T) {
	a := []spend.Record{rec("b", "y", 1), rec("a", "x", 2), rec("a", "y", 3)}
	b := []spend.Record{rec("a", "y", 3), rec("b", "y", 1), rec("a", "x", 2)}

	assert.Equal(t, distribution.Aggregate(a), distribution.Aggregate(b))
}

func TestNormalizeRows_Scenario(t *testing.T) {
	agg := distribution.Aggregate([]spend.Record{
		rec("A", "channel1", 80),
		rec("A", "channel2", 20),
	})

	d := distribution.NormalizeRows(agg)

	assert.Equal(t, distribution.ByRow, d.Orientation)
	assert.Equal(t, []string{"channel1", "channel2", distribution.TotalLabel}, d.Matrix.Columns)
	assert.Equal(t, []float64{80.0, 20.0, 100.0}, d.Matrix.Values[0])
}

func TestNormalizeRows_ZeroSumRow(t *testing.T) {
	agg := distribution.Aggregate([]spend.Record{
		rec("A", "channel1", 30),
		rec("A", "channel2", 10),
		rec("Z", "channel1", 0),
		rec("Z", "channel2", 0),
	})

	d := distribution.NormalizeRows(agg)

	i, ok := d.Matrix.RowIndex("Z")
	require.True(t, ok)
	assert.Equal(t, []float64{0, 0, 0}, d.Matrix.Values[i])
	assert.Equal(t, []float64{75, 25, 100}, d.Matrix.Values[0])
}

func TestNormalizeRows_CancellingSpend(t *testing.T) {
	agg := distribution.Aggregate([]spend.Record{
		rec("A", "channel1", 50),
		rec("A", "channel2", -50),
	})

	d := distribution.NormalizeRows(agg)

	assert.Equal(t, []float64{0, 0, 0}, d.Matrix.Values[0])
}

func TestNormalizeRows_Rounding(t *testing.T) {
	agg := distribution.Aggregate([]spend.Record{
		rec("A", "channel1", 1),
		rec("A", "channel2", 1),
		rec("A", "channel3", 1),
	})

	d := distribution.NormalizeRows(agg)

	// the leftover hundredth goes to the first of the equal remainders
	assert.Equal(t, []float64{33.34, 33.33, 33.33, 100}, d.Matrix.Values[0])

	findings := distribution.Summarize(d)
	require.Len(t, findings, 1)
	assert.Equal(t, "channel1", findings[0].Counterpart)
	assert.Equal(t, 33.34, findings[0].Percentage)
	assert.Equal(t, []string{"channel2", "channel3"}, findings[0].TiedWith)
}

func TestNormalizeRows_LargestRemainder(t *testing.T) {
	tests := []struct {
		name   string
		spend  []float64
		shares []float64
	}{
		{"seven equal channels", []float64{1, 1, 1, 1, 1, 1, 1}, []float64{14.29, 14.29, 14.29, 14.29, 14.28, 14.28, 14.28}},
		{"largest remainder wins", []float64{1, 2, 3}, []float64{16.67, 33.33, 50}},
		{"exact shares untouched", []float64{10, 10, 80}, []float64{10, 10, 80}},
		{"half hundredths", []float64{12.345, 87.655}, []float64{12.35, 87.65}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := make([]spend.Record, 0, len(tt.spend))
			for j, v := range tt.spend {
				records = append(records, rec("A", fmt.Sprintf("channel%d", j+1), v))
			}

			values := distribution.NormalizeRows(distribution.Aggregate(records)).Matrix.Values[0]

			assert.Equal(t, tt.shares, values[:len(values)-1])
			assert.Equal(t, 100.0, values[len(values)-1])
			assertExactHundred(t, values[:len(values)-1])
		})
	}
}

func TestNormalizeColumns_LargestRemainder(t *testing.T) {
	agg := distribution.Aggregate([]spend.Record{
		rec("A", "channel1", 1),
		rec("B", "channel1", 1),
		rec("C", "channel1", 1),
	})

	d := distribution.NormalizeColumns(agg)

	assert.Equal(t, [][]float64{{33.34}, {33.33}, {33.33}, {100}}, d.Matrix.Values)
}

func TestNormalizeRows_FloatCancellation(t *testing.T) {
	agg := distribution.Aggregate([]spend.Record{
		rec("A", "channel1", 0.1),
		rec("A", "channel2", 0.2),
		rec("A", "channel3", -0.3),
		rec("B", "channel1", 0.1),
		rec("B", "channel1", 0.2),
		rec("B", "channel1", -0.3),
	})

	row, col := distribution.Normalize(agg)

	assert.Equal(t, []float64{0, 0, 0, 0}, row.Matrix.Values[0])
	assert.Equal(t, []float64{0, 0, 0, 0}, row.Matrix.Values[1])
	assert.Equal(t, 0.0, agg.Values[1][0])
	// each channel column still has spend from A alone
	assert.Equal(t, []float64{100, 100, 100}, col.Matrix.Values[0])
	assert.Equal(t, []float64{0, 0, 0}, col.Matrix.Values[1])
}

func TestNormalize_TotalNamedLabels(t *testing.T) {
	agg := distribution.Aggregate([]spend.Record{
		rec(distribution.TotalLabel, "c1", 30),
		rec(distribution.TotalLabel, "c2", 10),
		rec("Z", "c1", 90),
	})
	row, col := distribution.Normalize(agg)

	assert.Equal(t, []string{distribution.TotalLabel, "Z", distribution.TotalLabel}, col.Matrix.Rows)
	assert.Equal(t, []string{distribution.TotalLabel, "Z"}, col.Counterparts())
	assert.Equal(t, 2, col.TotalIndex())

	share, ok := col.Share("c1", distribution.TotalLabel)
	require.True(t, ok)
	assert.Equal(t, 25.0, share)

	total, ok := col.Total("c1")
	require.True(t, ok)
	assert.Equal(t, 100.0, total)

	share, ok = row.Share(distribution.TotalLabel, "c1")
	require.True(t, ok)
	assert.Equal(t, 75.0, share)

	findings := distribution.Summarize(col)
	require.Len(t, findings, 2)
	assert.Equal(t, "Z", findings[0].Counterpart)
	assert.Equal(t, distribution.TotalLabel, findings[1].Counterpart)
	assert.Equal(t, 100.0, findings[1].Percentage)
}

func assertExactHundred(t *testing.T, values []float64) {
	t.Helper()
	sum := decimal.Zero
	for _, v := range values {
		d := decimal.NewFromFloat(v)
		assert.GreaterOrEqual(t, d.Exponent(), int32(-2), "%v has more than two decimals", v)
		sum = sum.Add(d)
	}
	assert.True(t, sum.Equal(decimal.NewFromInt(100)), "shares sum to %s", sum)
}

func TestNormalizeColumns(t *testing.T) {
	agg := distribution.Aggregate([]spend.Record{
		rec("A", "channel1", 50),
		rec("B", "channel1", 50),
		rec("A", "channel2", 10),
		rec("B", "channel2", 30),
		rec("A", "channel3", 0),
	})

	d := distribution.NormalizeColumns(agg)

	assert.Equal(t, distribution.ByColumn, d.Orientation)
	assert.Equal(t, []string{"A", "B", distribution.TotalLabel}, d.Matrix.Rows)
	assert.Equal(t, [][]float64{
		{50, 25, 0},
		{50, 75, 0},
		{100, 100, 0},
	}, d.Matrix.Values)
}

func TestNormalize_Empty(t *testing.T) {
	agg := distribution.Aggregate(nil)
	require.True(t, agg.IsEmpty())

	row, col := distribution.Normalize(agg)

	for _, d := range []*distribution.Distribution{row, col} {
		assert.True(t, d.IsEmpty())
		assert.Empty(t, d.Matrix.Rows)
		assert.Empty(t, d.Matrix.Columns)
		assert.Empty(t, distribution.Summarize(d))
	}
}

func TestNormalize_DoesNotMutateAggregate(t *testing.T) {
	agg := distribution.Aggregate([]spend.Record{rec("A", "x", 3), rec("B", "y", 4)})
	before := agg.Clone()

	distribution.Normalize(agg)

	assert.Equal(t, before, agg)
}

func randomRecords(seed int64, n int) []spend.Record {
	faker := gofakeit.New(seed)
	campaigns := []string{"ads1", "ads2", "ads3", "ads4", "ads5"}
	channels := []string{"search", "social", "video", "display"}

	records := make([]spend.Record, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, spend.Record{
			Campaign: campaigns[faker.Number(0, len(campaigns)-1)],
			Month:    faker.Number(1, 12),
			Year:     2025,
			Channel:  channels[faker.Number(0, len(channels)-1)],
			Spend:    faker.Float64Range(0, 50000),
		})
	}
	return records
}

func TestNormalize_SumsToHundred(t *testing.T) {
	for seed := int64(1); seed <= 25; seed++ {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			agg := distribution.Aggregate(randomRecords(seed, 200))
			row, col := distribution.Normalize(agg)

			for i := range row.Matrix.Rows {
				values := row.Matrix.Values[i]
				var sum float64
				for _, v := range values[:len(values)-1] {
					sum += v
				}
				assert.InDelta(t, 100.0, sum, 0.01)
				assertExactHundred(t, values[:len(values)-1])
				assert.Equal(t, 100.0, values[len(values)-1])
			}

			last := len(col.Matrix.Rows) - 1
			for j := range col.Matrix.Columns {
				column := make([]float64, last)
				var sum float64
				for i := 0; i < last; i++ {
					column[i] = col.Matrix.Values[i][j]
					sum += column[i]
				}
				assert.InDelta(t, 100.0, sum, 0.01)
				assertExactHundred(t, column)
				assert.Equal(t, 100.0, col.Matrix.Values[last][j])
			}
		})
	}
}

func TestNormalize_TwoChannelsWithinOneHundredth(t *testing.T) {
	faker := gofakeit.New(7)
	for i := 0; i < 200; i++ {
		agg := distribution.Aggregate([]spend.Record{
			rec("A", "channel1", faker.Float64Range(0.01, 1000)),
			rec("A", "channel2", faker.Float64Range(0.01, 1000)),
		})
		values := distribution.NormalizeRows(agg).Matrix.Values[0]
		assert.InDelta(t, 100.0, values[0]+values[1], 0.01+1e-9)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	records := randomRecords(99, 500)

	row1, col1 := distribution.Normalize(distribution.Aggregate(records))
	row2, col2 := distribution.Normalize(distribution.Aggregate(records))

	assert.Equal(t, row1, row2)
	assert.Equal(t, col1, col2)
}

func TestSummarize_Rows(t *testing.T) {
	agg := distribution.Aggregate([]spend.Record{
		rec("ads1", "channel1", 10),
		rec("ads1", "channel3", 80),
		rec("ads1", "channel2", 10),
		rec("ads2", "channel2", 60),
		rec("ads2", "channel3", 40),
	})

	findings := distribution.Summarize(distribution.NormalizeRows(agg))

	require.Len(t, findings, 2)
	assert.Equal(t, distribution.Finding{Subject: "ads1", Counterpart: "channel3", Percentage: 80}, findings[0])
	assert.Equal(t, distribution.Finding{Subject: "ads2", Counterpart: "channel2", Percentage: 60}, findings[1])
}

func TestSummarize_ColumnTieBreak(t *testing.T) {
	agg := distribution.Aggregate([]spend.Record{
		rec("B", "channel1", 50),
		rec("A", "channel1", 50),
		rec("A", "channel2", 5),
	})
	col := distribution.NormalizeColumns(agg)

	for run := 0; run < 10; run++ {
		findings := distribution.Summarize(col)
		require.Len(t, findings, 2)
		assert.Equal(t, distribution.Finding{
			Subject:     "channel1",
			Counterpart: "A",
			Percentage:  50,
			TiedWith:    []string{"B"},
		}, findings[0])
		assert.Equal(t, "A", findings[1].Counterpart)
		assert.Equal(t, 100.0, findings[1].Percentage)
	}
}

func TestSummarize_TotalNeverWins(t *testing.T) {
	agg := distribution.Aggregate([]spend.Record{rec("A", "channel1", 1)})

	row := distribution.Summarize(distribution.NormalizeRows(agg))
	col := distribution.Summarize(distribution.NormalizeColumns(agg))

	require.Len(t, row, 1)
	assert.Equal(t, "channel1", row[0].Counterpart)
	require.Len(t, col, 1)
	assert.Equal(t, "A", col[0].Counterpart)
}

func TestDistribution_Share(t *testing.T) {
	agg := distribution.Aggregate([]spend.Record{rec("A", "x", 1), rec("A", "y", 3)})
	row, col := distribution.Normalize(agg)

	share, ok := row.Share("A", "y")
	require.True(t, ok)
	assert.Equal(t, 75.0, share)

	total, ok := row.Share("A", distribution.TotalLabel)
	require.True(t, ok)
	assert.Equal(t, 100.0, total)

	share, ok = col.Share("y", "A")
	require.True(t, ok)
	assert.Equal(t, 100.0, share)

	_, ok = col.Share("missing", "A")
	assert.False(t, ok)

	assert.Equal(t, []string{"x", "y"}, row.Counterparts())
	assert.Equal(t, []string{"x", "y"}, col.Subjects())
}
