// Package quote resolves the index spot price used to centre the dashboards.
package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/maxpain-dashboard/internal/dhan"
)

var ErrNoPrice = errors.New("no spot price available")

// Target names an underlying for every source that can price it.
type Target struct {
	Instrument dhan.Instrument
	Yahoo      string
}

// Source returns the latest spot quote for an underlying.
type Source interface {
	Spot(ctx context.Context, target Target) (*dhan.Quote, error)
	Name() string
}

// DhanSource prices indices from the broker market feed.
type DhanSource struct {
	client dhan.Client
}

func NewDhanSource(client dhan.Client) *DhanSource {
	return &DhanSource{client: client}
}

func (s *DhanSource) Name() string { return "dhan" }

func (s *DhanSource) Spot(ctx context.Context, target Target) (*dhan.Quote, error) {
	if target.Instrument.SecurityID == 0 {
		return nil, ErrNoPrice
	}
	q, err := s.client.Quote(ctx, target.Instrument)
	if err != nil {
		return nil, err
	}
	if q.LTP <= 0 {
		return nil, ErrNoPrice
	}
	return q, nil
}

const defaultYahooURL = "https://query1.finance.yahoo.com"

// YahooSource reads the one-minute chart endpoint and takes the last close.
type YahooSource struct {
	httpClient *http.Client
	baseURL    string
}

func NewYahooSource(baseURL string, timeout time.Duration) *YahooSource {
	if baseURL == "" {
		baseURL = defaultYahooURL
	}
	return &YahooSource{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

func (s *YahooSource) Name() string { return "yahoo" }

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				PreviousClose      float64 `json:"previousClose"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (s *YahooSource) Spot(ctx context.Context, target Target) (*dhan.Quote, error) {
	if target.Yahoo == "" {
		return nil, ErrNoPrice
	}

	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1m&range=1d", s.baseURL, url.PathEscape(target.Yahoo))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (maxpain-dashboard)")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var chart chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo %s: %s", chart.Chart.Error.Code, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, ErrNoPrice
	}

	r := chart.Chart.Result[0]
	q := &dhan.Quote{PrevClose: r.Meta.ChartPreviousClose}
	if q.PrevClose == 0 {
		q.PrevClose = r.Meta.PreviousClose
	}
	if len(r.Indicators.Quote) > 0 {
		closes := r.Indicators.Quote[0].Close
		for i := len(closes) - 1; i >= 0; i-- {
			if closes[i] != nil {
				q.LTP = *closes[i]
				break
			}
		}
	}
	if q.LTP == 0 {
		q.LTP = r.Meta.RegularMarketPrice
	}
	if q.LTP <= 0 {
		return nil, ErrNoPrice
	}
	return q, nil
}

// Fallback tries each source in order and returns the first price found.
type Fallback struct {
	sources []Source
	logger  *zap.Logger
}

func NewFallback(logger *zap.Logger, sources ...Source) *Fallback {
	return &Fallback{sources: sources, logger: logger}
}

func (f *Fallback) Name() string { return "fallback" }

func (f *Fallback) Spot(ctx context.Context, target Target) (*dhan.Quote, error) {
	var errs []error
	for _, s := range f.sources {
		q, err := s.Spot(ctx, target)
		if err == nil {
			return q, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.logger.Debug("spot source failed",
			zap.String("source", s.Name()),
			zap.String("underlying", target.Instrument.Name),
			zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	if len(errs) == 0 {
		return nil, ErrNoPrice
	}
	return nil, errors.Join(append(errs, ErrNoPrice)...)
}
