package dashboard

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// scaleTrunc multiplies v by factor and drops the fraction.
func scaleTrunc(v, factor float64) *int64 {
	if !finite(v) || !finite(factor) {
		return nil
	}
	n := decimal.NewFromFloat(v).Mul(decimal.NewFromFloat(factor)).Truncate(0).IntPart()
	return &n
}

// divTrunc divides v by divisor and drops the fraction.
func divTrunc(v, divisor float64) int64 {
	if !finite(v) || divisor == 0 {
		return 0
	}
	return decimal.NewFromFloat(v).Div(decimal.NewFromFloat(divisor)).Truncate(0).IntPart()
}

// roundInt rounds half to even, the way the history tables have always been
// rounded.
func roundInt(v *float64) *int64 {
	if v == nil || !finite(*v) {
		return nil
	}
	n := decimal.NewFromFloat(*v).RoundBank(0).IntPart()
	return &n
}

func roundPlaces(v float64, places int32) *float64 {
	if !finite(v) {
		return nil
	}
	f := decimal.NewFromFloat(v).RoundBank(places).InexactFloat64()
	return &f
}

func sub(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	d := *a - *b
	return &d
}

func lookup(m map[float64]float64, k float64) *float64 {
	v, ok := m[k]
	if !ok {
		return nil
	}
	return &v
}

func fptr(v float64) *float64 {
	return &v
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
