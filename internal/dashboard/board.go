// Package dashboard turns live option chains and snapshot history into the
// tables shown by the web dashboard and the terminal.
package dashboard

import (
	"time"

	"github.com/dgnsrekt/maxpain-dashboard/internal/chain"
	"github.com/dgnsrekt/maxpain-dashboard/internal/dhan"
	"github.com/dgnsrekt/maxpain-dashboard/internal/maxpain"
)

// Highlight marks a row for colouring. Max pain wins over the spot band.
type Highlight string

const (
	HighlightNone    Highlight = ""
	HighlightMaxPain Highlight = "max_pain"
	HighlightATM     Highlight = "atm"
)

// Factors are the display multipliers applied before truncating to integers.
type Factors struct {
	IV    float64
	Delta float64
	Gamma float64
	Vega  float64
}

type BoardOptions struct {
	Window  int
	Scale   float64
	Factors Factors
}

type LegView struct {
	LTP    *float64 `json:"ltp"`
	OI     *float64 `json:"oi"`
	Volume *float64 `json:"volume"`
	IV     *int64   `json:"iv"`
	Delta  *int64   `json:"delta"`
	Gamma  *int64   `json:"gamma"`
	Vega   *int64   `json:"vega"`
}

type LiveRow struct {
	Strike    float64   `json:"strike"`
	CE        LegView   `json:"ce"`
	PE        LegView   `json:"pe"`
	MaxPain   int64     `json:"max_pain"`
	Highlight Highlight `json:"highlight,omitempty"`
}

// Board is the live option chain window around the spot.
type Board struct {
	Underlying    string    `json:"underlying"`
	Expiry        string    `json:"expiry"`
	Spot          *float64  `json:"spot"`
	PrevClose     *float64  `json:"prev_close"`
	PctChange     *float64  `json:"pct_change"`
	MaxPainStrike float64   `json:"max_pain_strike"`
	ATMLower      *float64  `json:"atm_lower"`
	ATMUpper      *float64  `json:"atm_upper"`
	Rows          []LiveRow `json:"rows"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BuildBoard selects opts.Window strikes either side of the strike nearest
// the quoted spot and computes max pain over that window only. A nil quote
// centres the window on the middle strike and leaves the spot band empty.
func BuildBoard(c *chain.Chain, q *dhan.Quote, opts BoardOptions, now time.Time) (*Board, error) {
	if c == nil || c.Len() == 0 {
		return nil, ErrEmptyChain
	}

	var spot float64
	b := &Board{Underlying: c.Underlying, Expiry: c.Expiry, UpdatedAt: now}
	if q != nil && q.LTP > 0 {
		spot = q.LTP
		b.Spot = roundPlaces(q.LTP, 2)
		if q.PrevClose > 0 {
			b.PrevClose = roundPlaces(q.PrevClose, 2)
		}
		if pct, ok := q.PctChange(); ok {
			b.PctChange = roundPlaces(pct, 2)
		}
	}

	window := c.Window(c.Center(spot), opts.Window)
	mp, err := maxpain.Compute(window.MaxPainInput())
	if err != nil {
		return nil, err
	}
	b.MaxPainStrike = mp.MaxPainStrike()

	lower, upper, inBand := chain.SpotBand(window.Prices(), spot)
	if inBand {
		if lower > 0 {
			b.ATMLower = fptr(lower)
		}
		if upper > 0 {
			b.ATMUpper = fptr(upper)
		}
	}

	b.Rows = make([]LiveRow, window.Len())
	for i, s := range window.Strikes {
		row := LiveRow{
			Strike:  s.Price,
			CE:      legView(s.Call, opts.Factors),
			PE:      legView(s.Put, opts.Factors),
			MaxPain: divTrunc(mp.Losses[i], opts.Scale),
		}
		switch {
		case i == mp.MaxPainIndex:
			row.Highlight = HighlightMaxPain
		case inBand && (s.Price == lower || s.Price == upper):
			row.Highlight = HighlightATM
		}
		b.Rows[i] = row
	}

	return b, nil
}

func legView(l *chain.Leg, f Factors) LegView {
	if l == nil {
		return LegView{}
	}
	v := LegView{
		OI:     fptr(l.OI),
		Volume: fptr(l.Volume),
		IV:     scaleTrunc(l.IV, f.IV),
		Delta:  scaleTrunc(l.Greeks.Delta, f.Delta),
		Gamma:  scaleTrunc(l.Greeks.Gamma, f.Gamma),
		Vega:   scaleTrunc(l.Greeks.Vega, f.Vega),
	}
	// A zero last price means the contract has not traded.
	if l.LTP != 0 {
		v.LTP = roundPlaces(l.LTP, 2)
	}
	return v
}
