package ws

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/maxpain-dashboard/internal/dashboard"
)

// BoardSource builds the live board for an underlying.
type BoardSource interface {
	Board(ctx context.Context, symbol string) (*dashboard.Board, error)
}

// Sink receives every encoded board alongside the WebSocket groups.
type Sink interface {
	Subscribed() []string
	Publish(symbol string, data []byte)
}

// Streamer rebuilds boards for subscribed underlyings on every tick and
// pushes them to the hub and any sinks.
type Streamer struct {
	hub      *Hub
	source   BoardSource
	sinks    []Sink
	encoder  *Encoder
	interval time.Duration
	logger   *zap.Logger
}

// NewStreamer creates a new Streamer.
func NewStreamer(hub *Hub, source BoardSource, interval time.Duration, logger *zap.Logger, sinks ...Sink) (*Streamer, error) {
	enc, err := NewEncoder()
	if err != nil {
		return nil, err
	}

	return &Streamer{
		hub:      hub,
		source:   source,
		sinks:    sinks,
		encoder:  enc,
		interval: interval,
		logger:   logger,
	}, nil
}

// Run starts the streaming loop. Call in a goroutine.
// Returns when context is cancelled.
func (s *Streamer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer s.encoder.Close()

	s.logger.Info("streamer started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("streamer stopping")
			return

		case <-ticker.C:
			s.broadcastNext(ctx)
		}
	}
}

// symbols returns the union of underlyings with at least one subscriber.
func (s *Streamer) symbols() []string {
	seen := make(map[string]bool)
	for _, group := range s.hub.ActiveGroups() {
		if symbol := SymbolOf(group); symbol != "" {
			seen[symbol] = true
		}
	}
	for _, sink := range s.sinks {
		for _, symbol := range sink.Subscribed() {
			seen[symbol] = true
		}
	}

	out := make([]string, 0, len(seen))
	for symbol := range seen {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// broadcastNext sends a fresh board to every subscribed underlying.
func (s *Streamer) broadcastNext(ctx context.Context) {
	for _, symbol := range s.symbols() {
		board, err := s.source.Board(ctx, symbol)
		if err != nil {
			s.logger.Warn("failed to build board",
				zap.String("underlying", symbol),
				zap.Error(err),
			)
			continue
		}

		frame, err := s.encoder.Encode(board)
		if err != nil {
			s.logger.Debug("failed to encode board",
				zap.String("underlying", symbol),
				zap.Error(err),
			)
			continue
		}

		s.hub.BroadcastFrame(GroupFor(symbol), frame)
		for _, sink := range s.sinks {
			sink.Publish(symbol, frame.JSON)
		}

		s.logger.Debug("broadcast board",
			zap.String("underlying", symbol),
			zap.Int("rows", len(board.Rows)),
			zap.Int("encodedSize", len(frame.Protobuf)),
		)
	}
}
