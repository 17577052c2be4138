// Package chain holds a typed, strike-sorted option chain for one underlying
// and expiry, and the windowing helpers the dashboards are built from.
package chain

import (
	"math"
	"sort"

	"github.com/dgnsrekt/maxpain-dashboard/internal/maxpain"
)

type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
}

// Leg is one side (call or put) of a strike.
type Leg struct {
	LTP       float64 `json:"ltp"`
	OI        float64 `json:"oi"`
	Volume    float64 `json:"volume"`
	IV        float64 `json:"iv"`
	PrevClose float64 `json:"prev_close"`
	PrevOI    float64 `json:"prev_oi"`
	Greeks    Greeks  `json:"greeks"`
}

type Strike struct {
	Price float64 `json:"strike"`
	Call  *Leg    `json:"ce,omitempty"`
	Put   *Leg    `json:"pe,omitempty"`
}

// Chain is ordered ascending by strike price without duplicates.
type Chain struct {
	Underlying string   `json:"underlying"`
	Expiry     string   `json:"expiry"`
	Spot       float64  `json:"spot"`
	Strikes    []Strike `json:"strikes"`
}

// New sorts strikes ascending. When a price appears more than once the last
// occurrence is kept.
func New(underlying, expiry string, spot float64, strikes []Strike) *Chain {
	sorted := make([]Strike, len(strikes))
	copy(sorted, strikes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })

	out := sorted[:0]
	for _, s := range sorted {
		if n := len(out); n > 0 && out[n-1].Price == s.Price {
			out[n-1] = s
			continue
		}
		out = append(out, s)
	}

	return &Chain{Underlying: underlying, Expiry: expiry, Spot: spot, Strikes: out}
}

func (c *Chain) Len() int { return len(c.Strikes) }

func (c *Chain) Prices() []float64 {
	out := make([]float64, len(c.Strikes))
	for i, s := range c.Strikes {
		out[i] = s.Price
	}
	return out
}

// Find looks up a strike by price.
func (c *Chain) Find(price float64) (Strike, bool) {
	i := sort.Search(len(c.Strikes), func(i int) bool { return c.Strikes[i].Price >= price })
	if i < len(c.Strikes) && c.Strikes[i].Price == price {
		return c.Strikes[i], true
	}
	return Strike{}, false
}

// Nearest returns the index of the strike closest to ref. Equidistant strikes
// resolve to the lower one. Returns -1 for an empty chain.
func (c *Chain) Nearest(ref float64) int {
	n := len(c.Strikes)
	if n == 0 {
		return -1
	}
	i := sort.Search(n, func(i int) bool { return c.Strikes[i].Price >= ref })
	switch {
	case i == 0:
		return 0
	case i == n:
		return n - 1
	}
	if math.Abs(c.Strikes[i].Price-ref) < math.Abs(ref-c.Strikes[i-1].Price) {
		return i
	}
	return i - 1
}

// Center is the strike nearest spot, or the middle strike when spot is unknown.
func (c *Chain) Center(spot float64) int {
	if len(c.Strikes) == 0 {
		return -1
	}
	if spot > 0 {
		return c.Nearest(spot)
	}
	return len(c.Strikes) / 2
}

// Window returns up to k strikes either side of center.
func (c *Chain) Window(center, k int) *Chain {
	if len(c.Strikes) == 0 || center < 0 {
		return c.with(nil)
	}
	lo := max(0, center-k)
	hi := min(len(c.Strikes), center+k+1)
	return c.with(c.Strikes[lo:hi])
}

// Split returns the last below strikes at or under spot followed by the
// first above strikes over it. A non-positive spot is replaced by the middle
// strike.
func (c *Chain) Split(spot float64, below, above int) *Chain {
	if len(c.Strikes) == 0 {
		return c.with(nil)
	}
	if spot <= 0 {
		spot = c.Strikes[len(c.Strikes)/2].Price
	}
	lo, hi := SplitBounds(c.Prices(), spot, below, above)
	return c.with(c.Strikes[lo:hi])
}

// SplitBounds is Split over a bare sorted price slice, returning the half-open
// index range.
func SplitBounds(prices []float64, spot float64, below, above int) (int, int) {
	pivot := sort.Search(len(prices), func(i int) bool { return prices[i] > spot })
	return max(0, pivot-below), min(len(prices), pivot+above)
}

func (c *Chain) with(strikes []Strike) *Chain {
	out := make([]Strike, len(strikes))
	copy(out, strikes)
	return &Chain{Underlying: c.Underlying, Expiry: c.Expiry, Spot: c.Spot, Strikes: out}
}

// MaxPainInput converts the chain to aggregator rows. A missing leg
// contributes zero open interest and price.
func (c *Chain) MaxPainInput() maxpain.Chain {
	rows := make(maxpain.Chain, len(c.Strikes))
	for i, s := range c.Strikes {
		rows[i].Strike = s.Price
		if s.Call != nil {
			rows[i].CallOI = s.Call.OI
			rows[i].CallPrice = s.Call.LTP
		}
		if s.Put != nil {
			rows[i].PutOI = s.Put.OI
			rows[i].PutPrice = s.Put.LTP
		}
	}
	return rows
}

// SpotBand returns the highest strike at or below spot and the lowest strike
// at or above it. A side that does not exist is returned as 0; ok is false
// only when neither does.
func SpotBand(prices []float64, spot float64) (lower, upper float64, ok bool) {
	if len(prices) == 0 || spot <= 0 {
		return 0, 0, false
	}
	i := sort.Search(len(prices), func(i int) bool { return prices[i] >= spot })
	if i < len(prices) {
		upper = prices[i]
	}
	switch {
	case i < len(prices) && prices[i] == spot:
		lower = spot
	case i > 0:
		lower = prices[i-1]
	}
	return lower, upper, lower > 0 || upper > 0
}
