package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"

	"github.com/dgnsrekt/maxpain-dashboard/internal/dashboard"
	"github.com/dgnsrekt/maxpain-dashboard/internal/dhan"
	"github.com/dgnsrekt/maxpain-dashboard/internal/snapshot"
)

// Dashboard is the table source behind the API.
type Dashboard interface {
	Underlyings() []string
	HasUnderlying(symbol string) bool
	Board(ctx context.Context, symbol string) (*dashboard.Board, error)
	Timestamps(ctx context.Context) ([]string, error)
	Compare(ctx context.Context, symbol, t1, t2 string) (*dashboard.Comparison, error)
	IV(ctx context.Context, symbol, t1, t2 string) (*dashboard.IVComparison, error)
}

// Options tells the web page how often to reload each table.
type Options struct {
	BoardRefresh   time.Duration
	CompareRefresh time.Duration
}

type Server struct {
	dash   Dashboard
	events *Events
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

// NewServer creates the API handlers. events may be nil to disable the SSE
// endpoint.
func NewServer(dash Dashboard, events *Events, opts Options, logger *zap.Logger) *Server {
	return &Server{
		dash:   dash,
		events: events,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// ComparisonParams are the optional snapshot times of the compare endpoints.
type ComparisonParams struct {
	T1 *string `json:"t1,omitempty"`
	T2 *string `json:"t2,omitempty"`
}

func (p ComparisonParams) times() (string, string) {
	var t1, t2 string
	if p.T1 != nil {
		t1 = *p.T1
	}
	if p.T2 != nil {
		t2 = *p.T2
	}
	return t1, t2
}

func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   s.now().UTC(),
	})
}

func (s *Server) ListUnderlyings(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"underlyings": s.dash.Underlyings(),
		"refresh": map[string]int{
			"board_seconds":   int(s.opts.BoardRefresh.Seconds()),
			"compare_seconds": int(s.opts.CompareRefresh.Seconds()),
		},
		"events": s.events != nil,
	})
}

func (s *Server) ListTimestamps(w http.ResponseWriter, r *http.Request) {
	times, err := s.dash.Timestamps(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"timestamps": times})
}

func (s *Server) GetBoard(w http.ResponseWriter, r *http.Request) {
	symbol, ok := s.bindSymbol(w, r)
	if !ok {
		return
	}

	board, err := s.dash.Board(r.Context(), symbol)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, board)
}

func (s *Server) GetComparison(w http.ResponseWriter, r *http.Request) {
	symbol, ok := s.bindSymbol(w, r)
	if !ok {
		return
	}
	params, ok := s.bindComparisonParams(w, r)
	if !ok {
		return
	}

	t1, t2 := params.times()
	cmp, err := s.dash.Compare(r.Context(), symbol, t1, t2)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cmp)
}

func (s *Server) GetIVComparison(w http.ResponseWriter, r *http.Request) {
	symbol, ok := s.bindSymbol(w, r)
	if !ok {
		return
	}
	params, ok := s.bindComparisonParams(w, r)
	if !ok {
		return
	}

	t1, t2 := params.times()
	iv, err := s.dash.IV(r.Context(), symbol, t1, t2)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, iv)
}

// StreamBoard sends the current board, then every board the streamer builds.
func (s *Server) StreamBoard(w http.ResponseWriter, r *http.Request) {
	symbol, ok := s.bindSymbol(w, r)
	if !ok {
		return
	}
	if s.events == nil {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "event stream disabled"})
		return
	}
	if !s.dash.HasUnderlying(symbol) {
		s.writeError(w, r, dashboard.ErrUnknownUnderlying)
		return
	}

	s.events.HandleSSE(w, r, symbol, func(ctx context.Context) (any, error) {
		return s.dash.Board(ctx, symbol)
	})
}

func (s *Server) bindSymbol(w http.ResponseWriter, r *http.Request) (string, bool) {
	var symbol string
	err := runtime.BindStyledParameterWithLocation("simple", false, "symbol", runtime.ParamLocationPath, chi.URLParam(r, "symbol"), &symbol)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid symbol: " + err.Error()})
		return "", false
	}
	return symbol, true
}

func (s *Server) bindComparisonParams(w http.ResponseWriter, r *http.Request) (ComparisonParams, bool) {
	var params ComparisonParams
	query := r.URL.Query()

	if err := runtime.BindQueryParameter("form", true, false, "t1", query, &params.T1); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid t1: " + err.Error()})
		return params, false
	}
	if err := runtime.BindQueryParameter("form", true, false, "t2", query, &params.T2); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid t2: " + err.Error()})
		return params, false
	}
	return params, true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dashboard.ErrUnknownUnderlying),
		errors.Is(err, dashboard.ErrNoTimestamps),
		errors.Is(err, snapshot.ErrNoHistory):
		return http.StatusNotFound
	case errors.Is(err, dashboard.ErrUnknownTimestamp):
		return http.StatusBadRequest
	case errors.Is(err, dhan.ErrCircuitOpen),
		errors.Is(err, dhan.ErrRateLimited):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to encode response", zap.Error(err))
	}
}
