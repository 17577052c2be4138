package dhan

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dgnsrekt/maxpain-dashboard/internal/chain"
)

// Instrument identifies an underlying on the broker API.
type Instrument struct {
	Name string
	// Scrip and Segment address the option chain endpoints.
	Scrip   int
	Segment string
	// SecurityID and QuoteSegment address the market feed endpoints.
	SecurityID   int
	QuoteSegment string
}

// Quote is the index spot price with the previous session close.
type Quote struct {
	LTP       float64 `json:"ltp"`
	PrevClose float64 `json:"prev_close"`
}

// PctChange is the move from the previous close in percent. ok is false when
// either price is missing.
func (q *Quote) PctChange() (float64, bool) {
	if q == nil || q.LTP == 0 || q.PrevClose == 0 {
		return 0, false
	}
	return (q.LTP - q.PrevClose) / q.PrevClose * 100, true
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type underlyingRequest struct {
	UnderlyingScrip int    `json:"UnderlyingScrip"`
	UnderlyingSeg   string `json:"UnderlyingSeg"`
	Expiry          string `json:"Expiry,omitempty"`
}

type chainPayload struct {
	LastPrice float64                 `json:"last_price"`
	OC        map[string]strikePayload `json:"oc"`
}

type strikePayload struct {
	CE *legPayload `json:"ce"`
	PE *legPayload `json:"pe"`
}

type legPayload struct {
	LastPrice         float64 `json:"last_price"`
	OI                float64 `json:"oi"`
	Volume            float64 `json:"volume"`
	ImpliedVolatility float64 `json:"implied_volatility"`
	PreviousClose     float64 `json:"previous_close_price"`
	PreviousOI        float64 `json:"previous_oi"`
	Greeks            struct {
		Delta float64 `json:"delta"`
		Gamma float64 `json:"gamma"`
		Theta float64 `json:"theta"`
		Vega  float64 `json:"vega"`
	} `json:"greeks"`
}

func (l *legPayload) leg() *chain.Leg {
	if l == nil {
		return nil
	}
	return &chain.Leg{
		LTP:       l.LastPrice,
		OI:        l.OI,
		Volume:    l.Volume,
		IV:        l.ImpliedVolatility,
		PrevClose: l.PreviousClose,
		PrevOI:    l.PreviousOI,
		Greeks: chain.Greeks{
			Delta: l.Greeks.Delta,
			Gamma: l.Greeks.Gamma,
			Theta: l.Greeks.Theta,
			Vega:  l.Greeks.Vega,
		},
	}
}

// toChain parses the string strike keys ("25000.000000") once so the rest of
// the program works with numeric strikes.
func (p *chainPayload) toChain(underlying, expiry string) (*chain.Chain, error) {
	strikes := make([]chain.Strike, 0, len(p.OC))
	for key, sp := range p.OC {
		price, err := strconv.ParseFloat(strings.TrimSpace(key), 64)
		if err != nil {
			return nil, fmt.Errorf("parsing strike %q: %w", key, err)
		}
		strikes = append(strikes, chain.Strike{
			Price: price,
			Call:  sp.CE.leg(),
			Put:   sp.PE.leg(),
		})
	}
	return chain.New(underlying, expiry, p.LastPrice, strikes), nil
}

type ohlcPayload struct {
	LastPrice float64 `json:"last_price"`
	OHLC      struct {
		Open  float64 `json:"open"`
		Close float64 `json:"close"`
		High  float64 `json:"high"`
		Low   float64 `json:"low"`
	} `json:"ohlc"`
}
