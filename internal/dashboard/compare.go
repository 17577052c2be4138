package dashboard

import (
	"sort"

	"github.com/dgnsrekt/maxpain-dashboard/internal/chain"
	"github.com/dgnsrekt/maxpain-dashboard/internal/maxpain"
	"github.com/dgnsrekt/maxpain-dashboard/internal/snapshot"
)

type CompareOptions struct {
	Below int
	Above int
	// Scale divides raw live losses to the units stored in history.
	Scale float64
	// CompareScale divides both history and live values for display.
	CompareScale float64
}

// CompareRow is one strike of the max-pain comparison. Values are rounded
// to integers; a nil value means no data.
type CompareRow struct {
	Strike     float64   `json:"strike"`
	Live       *int64    `json:"mp_live"`
	T1         *int64    `json:"mp_t1"`
	T2         *int64    `json:"mp_t2"`
	DeltaLive  *int64    `json:"delta_live_t1"`
	DeltaT1T2  *int64    `json:"delta_t1_t2"`
	DeltaDelta *int64    `json:"delta_delta"`
	Highlight  Highlight `json:"highlight,omitempty"`
}

type Comparison struct {
	Underlying string       `json:"underlying"`
	Spot       *float64     `json:"spot"`
	Now        string       `json:"now"`
	T1         string       `json:"t1"`
	T2         string       `json:"t2"`
	MinStrike  *float64     `json:"min_strike"`
	BandLower  *float64     `json:"band_lower"`
	BandUpper  *float64     `json:"band_upper"`
	Rows       []CompareRow `json:"rows"`
}

// IVRow holds implied volatility changes scaled by the IV factor and rounded
// to one decimal.
type IVRow struct {
	Strike    float64   `json:"strike"`
	CELiveT1  *float64  `json:"ce_live_t1"`
	CET1T2    *float64  `json:"ce_t1_t2"`
	PELiveT1  *float64  `json:"pe_live_t1"`
	PET1T2    *float64  `json:"pe_t1_t2"`
	Highlight Highlight `json:"highlight,omitempty"`
}

type IVComparison struct {
	Underlying string   `json:"underlying"`
	Spot       *float64 `json:"spot"`
	T1         string   `json:"t1"`
	T2         string   `json:"t2"`
	BandLower  *float64 `json:"band_lower"`
	BandUpper  *float64 `json:"band_upper"`
	Rows       []IVRow  `json:"rows"`
}

// band returns the highest price at or below spot and the lowest price
// strictly above it.
func band(prices []float64, spot float64) (lower, upper *float64) {
	if spot <= 0 {
		return nil, nil
	}
	i := sort.Search(len(prices), func(i int) bool { return prices[i] > spot })
	if i > 0 {
		lower = fptr(prices[i-1])
	}
	if i < len(prices) {
		upper = fptr(prices[i])
	}
	return lower, upper
}

func inBand(strike float64, lower, upper *float64) bool {
	return (lower != nil && *lower == strike) || (upper != nil && *upper == strike)
}

// BuildComparison compares max pain per strike between the live chain and
// two snapshot minutes. Strikes are limited to opts.Below at or under the
// spot and opts.Above over it, and only strikes present at t1 are listed.
// live may be nil, leaving the live columns empty. A non-positive spot
// selects the window around the middle historical strike and disables the
// spot band.
func BuildComparison(history []snapshot.Row, live *chain.Chain, spot float64, t1, t2, now string, opts CompareOptions) *Comparison {
	out := &Comparison{Underlying: underlyingOf(live), Now: now, T1: t1, T2: t2}
	if spot > 0 {
		out.Spot = fptr(spot)
	}

	priced := make([]snapshot.Row, 0, len(history))
	for _, r := range history {
		if r.MaxPain != nil && finite(*r.MaxPain) {
			priced = append(priced, r)
		}
	}
	all := snapshot.Strikes(priced)
	if len(all) == 0 {
		return out
	}

	pivot := spot
	if pivot <= 0 {
		pivot = all[len(all)/2]
	}
	lo, hi := chain.SplitBounds(all, pivot, opts.Below, opts.Above)
	window := all[lo:hi]

	mpT1 := snapshot.MeanByStrike(priced, t1, snapshot.FieldMaxPain)
	mpT2 := snapshot.MeanByStrike(priced, t2, snapshot.FieldMaxPain)

	var liveMP map[float64]float64
	if live != nil {
		liveMP = liveMaxPain(live, window, opts.Scale)
	}

	display := func(v *float64) *float64 {
		if v == nil || opts.CompareScale <= 0 {
			return v
		}
		return fptr(*v / opts.CompareScale)
	}

	var prevDelta *float64
	first := true
	for _, s := range window {
		t1v := display(lookup(mpT1, s))
		if t1v == nil {
			continue
		}
		t2v := display(lookup(mpT2, s))
		var liveV *float64
		if liveMP != nil {
			liveV = display(lookup(liveMP, s))
		}
		delta := sub(liveV, t1v)

		row := CompareRow{
			Strike:    s,
			Live:      roundInt(liveV),
			T1:        roundInt(t1v),
			T2:        roundInt(t2v),
			DeltaLive: roundInt(delta),
			DeltaT1T2: roundInt(sub(t1v, t2v)),
		}
		if !first {
			row.DeltaDelta = roundInt(sub(delta, prevDelta))
		}
		first = false
		prevDelta = delta
		out.Rows = append(out.Rows, row)
	}

	prices := make([]float64, len(out.Rows))
	minIdx := -1
	for i, r := range out.Rows {
		prices[i] = r.Strike
		if r.Live != nil && (minIdx < 0 || *r.Live < *out.Rows[minIdx].Live) {
			minIdx = i
		}
	}
	out.BandLower, out.BandUpper = band(prices, spot)
	if minIdx >= 0 {
		out.MinStrike = fptr(out.Rows[minIdx].Strike)
	}
	for i := range out.Rows {
		switch {
		case i == minIdx:
			out.Rows[i].Highlight = HighlightMaxPain
		case inBand(out.Rows[i].Strike, out.BandLower, out.BandUpper):
			out.Rows[i].Highlight = HighlightATM
		}
	}

	return out
}

// liveMaxPain computes losses over window using the live chain's open
// interest, treating strikes the chain does not list as empty.
func liveMaxPain(live *chain.Chain, window []float64, scale float64) map[float64]float64 {
	input := make(maxpain.Chain, len(window))
	for i, s := range window {
		input[i].Strike = s
		if st, ok := live.Find(s); ok {
			if st.Call != nil {
				input[i].CallOI, input[i].CallPrice = st.Call.OI, st.Call.LTP
			}
			if st.Put != nil {
				input[i].PutOI, input[i].PutPrice = st.Put.OI, st.Put.LTP
			}
		}
	}
	mp, err := maxpain.Compute(input)
	if err != nil {
		return nil
	}
	scaled := mp.Scaled(scale)
	out := make(map[float64]float64, len(window))
	for i, s := range window {
		out[s] = scaled[i]
	}
	return out
}

// BuildIVComparison lists every historical strike with the change in CE and
// PE implied volatility between the live chain and t1, and between t1 and
// t2. Without a live chain the table is empty.
func BuildIVComparison(history []snapshot.Row, live *chain.Chain, spot float64, t1, t2 string, factor float64) *IVComparison {
	out := &IVComparison{Underlying: underlyingOf(live), T1: t1, T2: t2}
	if spot > 0 {
		out.Spot = fptr(spot)
	}

	strikes := snapshot.Strikes(history)
	out.BandLower, out.BandUpper = band(strikes, spot)
	if live == nil {
		return out
	}

	ce1 := snapshot.MeanByStrike(history, t1, snapshot.FieldCEIV)
	ce2 := snapshot.MeanByStrike(history, t2, snapshot.FieldCEIV)
	pe1 := snapshot.MeanByStrike(history, t1, snapshot.FieldPEIV)
	pe2 := snapshot.MeanByStrike(history, t2, snapshot.FieldPEIV)

	scaled := func(v *float64) *float64 {
		if v == nil {
			return nil
		}
		return roundPlaces(*v*factor, 1)
	}

	out.Rows = make([]IVRow, len(strikes))
	for i, s := range strikes {
		var liveCE, livePE float64
		if st, ok := live.Find(s); ok {
			if st.Call != nil {
				liveCE = st.Call.IV
			}
			if st.Put != nil {
				livePE = st.Put.IV
			}
		}
		c1, p1 := lookup(ce1, s), lookup(pe1, s)
		row := IVRow{
			Strike:   s,
			CELiveT1: scaled(sub(fptr(liveCE), c1)),
			CET1T2:   scaled(sub(c1, lookup(ce2, s))),
			PELiveT1: scaled(sub(fptr(livePE), p1)),
			PET1T2:   scaled(sub(p1, lookup(pe2, s))),
		}
		if inBand(s, out.BandLower, out.BandUpper) {
			row.Highlight = HighlightATM
		}
		out.Rows[i] = row
	}

	return out
}

func underlyingOf(c *chain.Chain) string {
	if c == nil {
		return ""
	}
	return c.Underlying
}
