package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Events fans board updates out to Server-Sent Events subscribers. It is fed
// by the WebSocket streamer so one upstream fetch serves both transports.
type Events struct {
	logger *zap.Logger

	mu       sync.RWMutex
	sequence uint64
	clients  map[*sseClient]bool
}

// sseClient represents a connected SSE subscriber.
type sseClient struct {
	symbol  string
	dataCh  chan []byte
	flusher http.Flusher
	writer  http.ResponseWriter
}

func NewEvents(logger *zap.Logger) *Events {
	return &Events{
		logger:  logger,
		clients: make(map[*sseClient]bool),
	}
}

// Subscribed returns the underlyings with at least one SSE client.
func (e *Events) Subscribed() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	seen := make(map[string]bool)
	for client := range e.clients {
		seen[client.symbol] = true
	}
	symbols := make([]string, 0, len(seen))
	for symbol := range seen {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// Publish queues a board JSON document for every subscriber of symbol.
// Slow clients miss the update rather than block the streamer.
func (e *Events) Publish(symbol string, data []byte) {
	eventData := e.formatEvent("board", data)

	e.mu.RLock()
	defer e.mu.RUnlock()

	for client := range e.clients {
		if client.symbol != symbol {
			continue
		}
		select {
		case client.dataCh <- eventData:
		default:
			e.logger.Debug("client channel full, dropping board",
				zap.String("underlying", symbol),
			)
		}
	}
}

// HandleSSE streams boards for symbol. initial builds the first event so a
// new subscriber does not wait a full refresh interval.
func (e *Events) HandleSSE(w http.ResponseWriter, r *http.Request, symbol string, initial func(context.Context) (any, error)) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	client := &sseClient{
		symbol:  symbol,
		dataCh:  make(chan []byte, 4),
		flusher: flusher,
		writer:  w,
	}

	e.addClient(client)
	defer e.removeClient(client)

	e.logger.Info("event client connected",
		zap.String("underlying", symbol),
		zap.String("remote_addr", r.RemoteAddr),
	)

	if board, err := initial(r.Context()); err != nil {
		e.send(client, e.formatEvent("error", mustJSON(errorResponse{Error: err.Error()})))
	} else {
		e.send(client, e.formatEvent("board", mustJSON(board)))
	}

	for {
		select {
		case <-r.Context().Done():
			e.logger.Info("event client disconnected", zap.String("underlying", symbol))
			return
		case eventData := <-client.dataCh:
			if err := e.send(client, eventData); err != nil {
				e.logger.Debug("failed to write to client", zap.Error(err))
				return
			}
		}
	}
}

func (e *Events) addClient(client *sseClient) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clients[client] = true
}

func (e *Events) removeClient(client *sseClient) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.clients, client)
}

func (e *Events) send(client *sseClient, eventData []byte) error {
	if _, err := client.writer.Write(eventData); err != nil {
		return err
	}
	client.flusher.Flush()
	return nil
}

func (e *Events) formatEvent(eventType string, data []byte) []byte {
	e.mu.Lock()
	e.sequence++
	seq := e.sequence
	e.mu.Unlock()

	return []byte(fmt.Sprintf("event: %s\nid: %d\ndata: %s\n\n", eventType, seq, data))
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(`{}`)
	}
	return data
}
