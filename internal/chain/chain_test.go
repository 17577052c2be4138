package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ladder(from, step float64, n int) []Strike {
	out := make([]Strike, n)
	for i := range out {
		out[i] = Strike{Price: from + float64(i)*step}
	}
	return out
}

func TestNewSortsAndDeduplicates(t *testing.T) {
	c := New("NIFTY", "2025-01-30", 0, []Strike{
		{Price: 200, Call: &Leg{OI: 1}},
		{Price: 100},
		{Price: 200, Call: &Leg{OI: 2}},
		{Price: 150},
	})
	assert.Equal(t, []float64{100, 150, 200}, c.Prices())
	s, ok := c.Find(200)
	require.True(t, ok)
	assert.Equal(t, 2.0, s.Call.OI)
}

func TestFind(t *testing.T) {
	c := New("NIFTY", "", 0, ladder(24000, 50, 10))
	s, ok := c.Find(24250)
	require.True(t, ok)
	assert.Equal(t, 24250.0, s.Price)

	_, ok = c.Find(24260)
	assert.False(t, ok)
	_, ok = c.Find(1)
	assert.False(t, ok)
}

func TestNearest(t *testing.T) {
	c := New("NIFTY", "", 0, ladder(100, 10, 5)) // 100..140
	tests := []struct {
		ref  float64
		want int
	}{
		{50, 0},
		{100, 0},
		{104, 0},
		{105, 0}, // equidistant resolves low
		{106, 1},
		{139, 4},
		{500, 4},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, c.Nearest(tt.ref), "ref=%v", tt.ref)
	}
	assert.Equal(t, -1, New("X", "", 0, nil).Nearest(10))
}

func TestCenterFallsBackToMiddle(t *testing.T) {
	c := New("NIFTY", "", 0, ladder(100, 10, 7))
	assert.Equal(t, 3, c.Center(0))
	assert.Equal(t, 1, c.Center(111))
}

func TestWindow(t *testing.T) {
	c := New("NIFTY", "", 0, ladder(0, 1, 100))

	w := c.Window(50, 20)
	assert.Equal(t, 41, w.Len())
	assert.Equal(t, 30.0, w.Strikes[0].Price)
	assert.Equal(t, 70.0, w.Strikes[40].Price)

	edge := c.Window(3, 20)
	assert.Equal(t, 24, edge.Len())
	assert.Equal(t, 0.0, edge.Strikes[0].Price)

	end := c.Window(98, 20)
	assert.Equal(t, 99.0, end.Strikes[end.Len()-1].Price)
}

func TestSplit(t *testing.T) {
	c := New("NIFTY", "", 0, ladder(100, 10, 100)) // 100..1090

	w := c.Split(555, 25, 26)
	require.Equal(t, 51, w.Len())
	assert.Equal(t, 310.0, w.Strikes[0].Price)
	assert.Equal(t, 550.0, w.Strikes[24].Price)
	assert.Equal(t, 560.0, w.Strikes[25].Price)

	// A spot equal to a strike keeps that strike on the lower side.
	w = c.Split(550, 25, 26)
	assert.Equal(t, 550.0, w.Strikes[24].Price)

	short := New("NIFTY", "", 0, ladder(100, 10, 10)).Split(125, 25, 26)
	assert.Equal(t, 10, short.Len())
}

func TestSplitWithoutSpotUsesMiddle(t *testing.T) {
	c := New("NIFTY", "", 0, ladder(100, 10, 10)) // middle 150
	w := c.Split(0, 2, 1)
	assert.Equal(t, []float64{140, 150, 160}, w.Prices())
}

func TestSpotBand(t *testing.T) {
	prices := []float64{100, 110, 120}

	lo, hi, ok := SpotBand(prices, 113)
	assert.True(t, ok)
	assert.Equal(t, 110.0, lo)
	assert.Equal(t, 120.0, hi)

	lo, hi, ok = SpotBand(prices, 110)
	assert.True(t, ok)
	assert.Equal(t, 110.0, lo)
	assert.Equal(t, 110.0, hi)

	lo, hi, ok = SpotBand(prices, 150)
	assert.True(t, ok)
	assert.Equal(t, 120.0, lo)
	assert.Zero(t, hi)

	_, _, ok = SpotBand(prices, 0)
	assert.False(t, ok)
}

func TestMaxPainInputZeroesMissingLegs(t *testing.T) {
	c := New("NIFTY", "", 0, []Strike{
		{Price: 100, Call: &Leg{OI: 10, LTP: 3}},
		{Price: 110, Put: &Leg{OI: 7, LTP: 2}},
	})
	rows := c.MaxPainInput()
	require.Len(t, rows, 2)
	assert.Equal(t, 10.0, rows[0].CallOI)
	assert.Zero(t, rows[0].PutOI)
	assert.Equal(t, 7.0, rows[1].PutOI)
	assert.Equal(t, 2.0, rows[1].PutPrice)
	assert.Zero(t, rows[1].CallOI)
}
