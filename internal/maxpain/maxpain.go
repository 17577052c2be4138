// Package maxpain computes the aggregate intrinsic value that option writers
// would owe at each candidate settlement strike of a single expiry, and the
// strike at which that liability is smallest.
package maxpain

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrEmptyChain = errors.New("chain has no strikes")
	ErrUnsorted   = errors.New("strikes must be strictly ascending")
	ErrNegative   = errors.New("open interest and prices must be non-negative")
	ErrNotFinite  = errors.New("values must be finite")
)

// Row is one strike of a chain. Missing values are represented as 0.
type Row struct {
	Strike    float64
	CallOI    float64
	CallPrice float64
	PutOI     float64
	PutPrice  float64
}

// Chain is ordered ascending by Strike with no duplicate strikes.
type Chain []Row

// Validate reports the first structural problem with the chain.
func (c Chain) Validate() error {
	if len(c) == 0 {
		return ErrEmptyChain
	}
	for i, r := range c {
		for _, v := range [...]float64{r.Strike, r.CallOI, r.CallPrice, r.PutOI, r.PutPrice} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("strike %d: %w", i, ErrNotFinite)
			}
		}
		if r.CallOI < 0 || r.PutOI < 0 || r.CallPrice < 0 || r.PutPrice < 0 {
			return fmt.Errorf("strike %v: %w", r.Strike, ErrNegative)
		}
		if i > 0 && r.Strike <= c[i-1].Strike {
			return fmt.Errorf("strike %v after %v: %w", r.Strike, c[i-1].Strike, ErrUnsorted)
		}
	}
	return nil
}

// Strikes returns the strike prices in chain order.
func (c Chain) Strikes() []float64 {
	out := make([]float64, len(c))
	for i, r := range c {
		out[i] = r.Strike
	}
	return out
}

// Losses returns the writer liability at every strike of the chain:
//
//	loss[i] = Σ_{j<i} (S_i − S_j)·callOI_j + Σ_{j>i} (S_j − S_i)·putOI_j
//
// The call side is expanded as S_i·Σ callOI_j − Σ S_j·callOI_j over j < i and
// the put side as Σ S_j·putOI_j − S_i·Σ putOI_j over j > i, so one forward and
// one backward pass suffice.
func Losses(c Chain) []float64 {
	n := len(c)
	losses := make([]float64, n)
	if n == 0 {
		return losses
	}

	var callOI, callNotional float64
	for i := 0; i < n; i++ {
		s := c[i].Strike
		losses[i] = s*callOI - callNotional
		callOI += c[i].CallOI
		callNotional += c[i].Strike * c[i].CallOI
	}

	var putOI, putNotional float64
	for i := n - 1; i >= 0; i-- {
		s := c[i].Strike
		losses[i] += putNotional - s*putOI
		putOI += c[i].PutOI
		putNotional += c[i].Strike * c[i].PutOI
	}

	return losses
}

// Result holds the per-strike losses and the max-pain position.
type Result struct {
	Strikes      []float64
	Losses       []float64
	MaxPainIndex int
}

// Compute validates the chain and evaluates every strike.
func Compute(c Chain) (*Result, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	losses := Losses(c)
	return &Result{
		Strikes:      c.Strikes(),
		Losses:       losses,
		MaxPainIndex: MinIndex(losses),
	}, nil
}

// MaxPainStrike is the strike with the smallest loss. Ties resolve to the
// lowest strike.
func (r *Result) MaxPainStrike() float64 {
	return r.Strikes[r.MaxPainIndex]
}

// MinLoss is the loss at the max-pain strike.
func (r *Result) MinLoss() float64 {
	return r.Losses[r.MaxPainIndex]
}

// Scaled divides every loss by divisor for display. A non-positive divisor
// returns the raw values.
func (r *Result) Scaled(divisor float64) []float64 {
	out := make([]float64, len(r.Losses))
	for i, l := range r.Losses {
		if divisor > 0 {
			out[i] = l / divisor
		} else {
			out[i] = l
		}
	}
	return out
}

// MinIndex returns the index of the first minimum, or -1 for an empty slice.
func MinIndex(values []float64) int {
	if len(values) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] < values[best] {
			best = i
		}
	}
	return best
}
