package dashboard

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/maxpain-dashboard/internal/chain"
	"github.com/dgnsrekt/maxpain-dashboard/internal/config"
	"github.com/dgnsrekt/maxpain-dashboard/internal/dhan"
	"github.com/dgnsrekt/maxpain-dashboard/internal/metrics"
	"github.com/dgnsrekt/maxpain-dashboard/internal/quote"
	"github.com/dgnsrekt/maxpain-dashboard/internal/snapshot"
)

// Service assembles dashboard tables from the live API and the history store.
type Service struct {
	client      dhan.Client
	spot        quote.Source
	store       snapshot.Store
	underlyings []config.UnderlyingConfig
	board       BoardOptions
	compare     CompareOptions
	ivFactor    float64
	location    *time.Location
	metrics     *metrics.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

func NewService(client dhan.Client, spot quote.Source, store snapshot.Store, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) *Service {
	d := cfg.Dashboard
	return &Service{
		client:      client,
		spot:        spot,
		store:       store,
		underlyings: cfg.Underlyings,
		board: BoardOptions{
			Window:  d.LiveWindow,
			Scale:   d.Scale,
			Factors: Factors{IV: d.Display.IV, Delta: d.Display.Delta, Gamma: d.Display.Gamma, Vega: d.Display.Vega},
		},
		compare: CompareOptions{
			Below:        d.CompareBelow,
			Above:        d.CompareAbove,
			Scale:        d.Scale,
			CompareScale: d.CompareScale,
		},
		ivFactor: d.IVFactor,
		location: cfg.Market.Location(),
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Underlyings returns the configured names in display order.
func (s *Service) Underlyings() []string {
	out := make([]string, len(s.underlyings))
	for i, u := range s.underlyings {
		out[i] = u.Instrument().Name
	}
	return out
}

func (s *Service) lookup(symbol string) (config.UnderlyingConfig, error) {
	for _, u := range s.underlyings {
		if u.Instrument().Name == normalize(symbol) {
			return u, nil
		}
	}
	return config.UnderlyingConfig{}, fmt.Errorf("%w: %s", ErrUnknownUnderlying, symbol)
}

// quote returns nil when every spot source fails; callers fall back to the
// middle strike.
func (s *Service) quote(ctx context.Context, u config.UnderlyingConfig) *dhan.Quote {
	q, err := s.spot.Spot(ctx, u.Target())
	if err != nil {
		s.logger.Warn("spot unavailable", zap.String("underlying", u.Name), zap.Error(err))
		return nil
	}
	s.metrics.SetSpot(u.Instrument().Name, q.LTP)
	return q
}

func spotOf(q *dhan.Quote) float64 {
	if q == nil {
		return 0
	}
	return q.LTP
}

// liveChain fetches the chain of the nearest expiry.
func (s *Service) liveChain(ctx context.Context, u config.UnderlyingConfig) (*chain.Chain, error) {
	inst := u.Instrument()
	expiries, err := s.client.ExpiryList(ctx, inst)
	if err != nil {
		return nil, fmt.Errorf("listing expiries: %w", err)
	}
	if len(expiries) == 0 {
		return nil, dhan.ErrNoExpiry
	}
	c, err := s.client.OptionChain(ctx, inst, expiries[0])
	if err != nil {
		return nil, fmt.Errorf("fetching chain: %w", err)
	}
	return c, nil
}

// Board builds the live board for symbol.
func (s *Service) Board(ctx context.Context, symbol string) (*Board, error) {
	u, err := s.lookup(symbol)
	if err != nil {
		return nil, err
	}

	q := s.quote(ctx, u)
	c, err := s.liveChain(ctx, u)
	if err != nil {
		return nil, err
	}

	b, err := BuildBoard(c, q, s.board, s.now().In(s.location))
	if err != nil {
		return nil, err
	}
	b.Underlying = u.Instrument().Name
	return b, nil
}

// Timestamps returns the HH:MM snapshot times shared by every underlying
// that has history, newest first.
func (s *Service) Timestamps(ctx context.Context) ([]string, error) {
	var histories [][]snapshot.Row
	for _, u := range s.underlyings {
		rows, err := s.store.Load(ctx, u.Instrument().Name)
		if errors.Is(err, snapshot.ErrNoHistory) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading %s history: %w", u.Name, err)
		}
		histories = append(histories, rows)
	}

	times := snapshot.CommonTimes(histories...)
	if len(times) == 0 {
		return nil, ErrNoTimestamps
	}
	return times, nil
}

// resolveTimes fills empty t1/t2 with the latest and previous common
// timestamps and checks explicit ones exist in history.
func (s *Service) resolveTimes(ctx context.Context, history []snapshot.Row, t1, t2 string) (string, string, error) {
	if t1 == "" || t2 == "" {
		times, err := s.Timestamps(ctx)
		if err != nil {
			return "", "", err
		}
		if t1 == "" {
			t1 = times[0]
		}
		if t2 == "" {
			t2 = times[min(1, len(times)-1)]
		}
	}

	known := snapshot.Times(history)
	for _, t := range []string{t1, t2} {
		if _, ok := known[t]; !ok {
			return "", "", fmt.Errorf("%w: %s", ErrUnknownTimestamp, t)
		}
	}
	return t1, t2, nil
}

type comparisonInput struct {
	underlying string
	history    []snapshot.Row
	live       *chain.Chain
	spot       float64
	t1, t2     string
}

func (s *Service) comparisonInput(ctx context.Context, symbol, t1, t2 string) (*comparisonInput, error) {
	u, err := s.lookup(symbol)
	if err != nil {
		return nil, err
	}
	name := u.Instrument().Name

	history, err := s.store.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("loading %s history: %w", name, err)
	}

	t1, t2, err = s.resolveTimes(ctx, history, t1, t2)
	if err != nil {
		return nil, err
	}

	in := &comparisonInput{underlying: name, history: history, t1: t1, t2: t2}
	in.spot = spotOf(s.quote(ctx, u))

	// The tables still render from history alone.
	if in.live, err = s.liveChain(ctx, u); err != nil {
		s.logger.Warn("live chain unavailable", zap.String("underlying", name), zap.Error(err))
		in.live = nil
	}
	return in, nil
}

// Compare builds the max-pain comparison for symbol. Empty t1 or t2 default
// to the latest and previous common timestamps.
func (s *Service) Compare(ctx context.Context, symbol, t1, t2 string) (*Comparison, error) {
	in, err := s.comparisonInput(ctx, symbol, t1, t2)
	if err != nil {
		return nil, err
	}
	now := s.now().In(s.location).Format("15:04")
	c := BuildComparison(in.history, in.live, in.spot, in.t1, in.t2, now, s.compare)
	c.Underlying = in.underlying
	return c, nil
}

// IV builds the implied volatility comparison for symbol.
func (s *Service) IV(ctx context.Context, symbol, t1, t2 string) (*IVComparison, error) {
	in, err := s.comparisonInput(ctx, symbol, t1, t2)
	if err != nil {
		return nil, err
	}
	iv := BuildIVComparison(in.history, in.live, in.spot, in.t1, in.t2, s.ivFactor)
	iv.Underlying = in.underlying
	return iv, nil
}

// HasUnderlying reports whether symbol is configured.
func (s *Service) HasUnderlying(symbol string) bool {
	return slices.Contains(s.Underlyings(), normalize(symbol))
}
