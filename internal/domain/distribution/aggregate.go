package distribution

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/campaign-spend-insights/internal/domain/spend"
)

// Aggregate sums spend per (campaign, channel) in decimal. Both axes are
// sorted so the output is identical for any ordering of the same records.
// Combinations that never occur are 0, and so are non-finite amounts. An
// empty input gives an empty matrix.
func Aggregate(records []spend.Record) *Matrix {
	if len(records) == 0 {
		return NewMatrix(nil, nil)
	}

	campaigns := make(map[string]int)
	channels := make(map[string]int)
	for _, r := range records {
		campaigns[r.Campaign] = 0
		channels[r.Channel] = 0
	}

	rows := sortedKeys(campaigns)
	cols := sortedKeys(channels)
	for i, c := range rows {
		campaigns[c] = i
	}
	for j, c := range cols {
		channels[c] = j
	}

	sums := make([][]decimal.Decimal, len(rows))
	for i := range sums {
		sums[i] = make([]decimal.Decimal, len(cols))
	}
	for _, r := range records {
		if math.IsNaN(r.Spend) || math.IsInf(r.Spend, 0) {
			continue
		}
		i, j := campaigns[r.Campaign], channels[r.Channel]
		sums[i][j] = sums[i][j].Add(decimal.NewFromFloat(r.Spend))
	}

	m := NewMatrix(rows, cols)
	for i := range sums {
		for j, s := range sums[i] {
			m.Values[i][j] = s.InexactFloat64()
		}
	}
	return m
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
