package dhan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/maxpain-dashboard/internal/chain"
	"github.com/dgnsrekt/maxpain-dashboard/internal/metrics"
)

const (
	endpointExpiryList  = "/optionchain/expirylist"
	endpointOptionChain = "/optionchain"
	endpointOHLC        = "/marketfeed/ohlc"
)

// Client interface for testability
type Client interface {
	ExpiryList(ctx context.Context, inst Instrument) ([]string, error)
	OptionChain(ctx context.Context, inst Instrument, expiry string) (*chain.Chain, error)
	Quote(ctx context.Context, inst Instrument) (*Quote, error)
}

// Config carries the connection settings. Credentials are never compiled in.
type Config struct {
	BaseURL         string
	ClientID        string
	AccessToken     string
	Timeout         time.Duration
	RetryCount      int
	RetryDelay      time.Duration
	RequestInterval time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

type HTTPClient struct {
	httpClient  *http.Client
	baseURL     string
	clientID    string
	accessToken string
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	retryCount  int
	retryDelay  time.Duration
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewClient(cfg Config, m *metrics.Metrics, logger *zap.Logger) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:       20,
		MaxConnsPerHost:    4,
		IdleConnTimeout:    90 * time.Second,
		DisableCompression: false,
	}

	limit := rate.Inf
	if cfg.RequestInterval > 0 {
		limit = rate.Every(cfg.RequestInterval)
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	c := &HTTPClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		baseURL:     cfg.BaseURL,
		clientID:    cfg.ClientID,
		accessToken: cfg.AccessToken,
		limiter:     rate.NewLimiter(limit, 1),
		retryCount:  cfg.RetryCount,
		retryDelay:  cfg.RetryDelay,
		metrics:     m,
		logger:      logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "dhan",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return c
}

// ExpiryList returns the listed expiries, nearest first.
func (c *HTTPClient) ExpiryList(ctx context.Context, inst Instrument) ([]string, error) {
	body := underlyingRequest{UnderlyingScrip: inst.Scrip, UnderlyingSeg: inst.Segment}

	var expiries []string
	if err := c.call(ctx, endpointExpiryList, body, &expiries); err != nil {
		return nil, err
	}
	if len(expiries) == 0 {
		return nil, ErrNoExpiry
	}
	return expiries, nil
}

func (c *HTTPClient) OptionChain(ctx context.Context, inst Instrument, expiry string) (*chain.Chain, error) {
	body := underlyingRequest{UnderlyingScrip: inst.Scrip, UnderlyingSeg: inst.Segment, Expiry: expiry}

	var payload chainPayload
	if err := c.call(ctx, endpointOptionChain, body, &payload); err != nil {
		return nil, err
	}
	if len(payload.OC) == 0 {
		return nil, ErrNotFound
	}
	return payload.toChain(inst.Name, expiry)
}

// Quote returns the index last price and the previous session close.
func (c *HTTPClient) Quote(ctx context.Context, inst Instrument) (*Quote, error) {
	body := map[string][]int{inst.QuoteSegment: {inst.SecurityID}}

	var bySegment map[string]map[string]ohlcPayload
	if err := c.call(ctx, endpointOHLC, body, &bySegment); err != nil {
		return nil, err
	}

	p, ok := bySegment[inst.QuoteSegment][strconv.Itoa(inst.SecurityID)]
	if !ok {
		return nil, ErrNotFound
	}
	return &Quote{LTP: p.LastPrice, PrevClose: p.OHLC.Close}, nil
}

func (c *HTTPClient) call(ctx context.Context, endpoint string, body, out any) error {
	start := time.Now()
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.post(ctx, endpoint, body, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%s: %w", endpoint, ErrCircuitOpen)
	}
	c.metrics.ObserveAPI(endpoint, outcome(err), time.Since(start))
	return err
}

func (c *HTTPClient) post(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	url := c.baseURL + endpoint

	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // Exponential backoff
			c.logger.Debug("retrying request",
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("client-id", c.clientID)
		req.Header.Set("access-token", c.accessToken)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		c.logger.Debug("requesting", zap.String("endpoint", endpoint), zap.ByteString("body", payload))

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if readErr != nil {
			lastErr = readErr
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return ErrAuthFailed
		case resp.StatusCode == http.StatusNotFound:
			return ErrNotFound
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = ErrRateLimited
			continue
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
		}

		var env envelope
		if err := json.Unmarshal(respBody, &env); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		if env.Status != "" && env.Status != "success" {
			return fmt.Errorf("%s returned status %q: %w", endpoint, env.Status, ErrNotFound)
		}
		if len(env.Data) == 0 || string(env.Data) == "null" {
			return ErrNotFound
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decoding %s data: %w", endpoint, err)
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoExpiry):
		return "not_found"
	case errors.Is(err, ErrAuthFailed):
		return "auth"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "error"
	}
}
