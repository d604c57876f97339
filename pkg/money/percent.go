package money

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// PercentPlaces is the number of decimals kept on percentage shares.
const PercentPlaces = 2

// Round rounds v to the given number of decimal places, half away from zero
// (12.345 -> 12.35, -0.125 -> -0.13). Non-finite input yields 0.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Share returns part as a percentage of whole, unrounded.
// A zero whole yields 0 instead of a NaN or infinite share.
func Share(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}

// RoundPercent rounds a percentage share to PercentPlaces decimals.
func RoundPercent(v float64) float64 {
	return Round(v, PercentPlaces)
}

// SumFloats adds values in decimal so amounts that cancel out sum to exactly 0.
func SumFloats(values []float64) float64 {
	return sumDecimal(values).InexactFloat64()
}

func sumDecimal(values []float64) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total
}

// Apportion splits 100 across parts in proportion to their values. Every share
// has PercentPlaces decimals and the shares add up to exactly 100: each is
// rounded down to a hundredth and the hundredths left over go to the largest
// remainders, ties to the earlier part. Parts summing to zero get 0 each.
func Apportion(parts []float64) []float64 {
	shares := make([]float64, len(parts))
	whole := sumDecimal(parts)
	if whole.IsZero() {
		return shares
	}

	scale := decimal.New(100, PercentPlaces) // 100% in hundredths
	units := make([]int64, len(parts))
	remainders := make([]decimal.Decimal, len(parts))
	var assigned int64
	for i, p := range parts {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			p = 0
		}
		exact := decimal.NewFromFloat(p).Mul(scale).Div(whole)
		floor := exact.Floor()
		units[i] = floor.IntPart()
		remainders[i] = exact.Sub(floor)
		assigned += units[i]
	}

	order := make([]int, len(parts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]].GreaterThan(remainders[order[b]])
	})

	left := scale.IntPart() - assigned
	for k := int64(0); k < left; k++ {
		units[order[k%int64(len(order))]]++
	}

	for i, u := range units {
		shares[i] = decimal.New(u, -PercentPlaces).InexactFloat64()
	}
	return shares
}
