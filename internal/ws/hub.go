// Package ws pushes live max-pain boards to WebSocket subscribers grouped
// by underlying.
package ws

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/dgnsrekt/maxpain-dashboard/internal/metrics"
)

// GroupPrefix prefixes every board group name, e.g. "board.NIFTY".
const GroupPrefix = "board."

// Hub manages WebSocket connections and group subscriptions.
type Hub struct {
	name       string
	clients    map[*Client]bool
	groups     map[string]map[*Client]bool // group -> clients
	register   chan *Client
	unregister chan *Client
	broadcast  chan *GroupMessage
	validGroup func(string) bool
	mu         sync.RWMutex
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// GroupMessage represents a message to broadcast to a group.
type GroupMessage struct {
	Group   string
	Payload []byte
}

// NewHub creates a new Hub. Groups must be board.<SYMBOL> for a symbol in
// symbols.
func NewHub(name string, symbols []string, m *metrics.Metrics, logger *zap.Logger) *Hub {
	known := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		known[strings.ToUpper(s)] = true
	}

	return &Hub{
		name:       name,
		clients:    make(map[*Client]bool),
		groups:     make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *GroupMessage, 256),
		validGroup: func(group string) bool {
			symbol := SymbolOf(group)
			return symbol != "" && known[symbol]
		},
		metrics: m,
		logger:  logger,
	}
}

// GroupFor returns the group name carrying boards for symbol.
func GroupFor(symbol string) string {
	return GroupPrefix + strings.ToUpper(symbol)
}

// SymbolOf extracts the underlying from a board group name.
func SymbolOf(group string) string {
	if !strings.HasPrefix(group, GroupPrefix) {
		return ""
	}
	return strings.TrimPrefix(group, GroupPrefix)
}

// Run processes hub events. Call this in a goroutine.
// Returns when context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hub shutting down", zap.String("hub", h.name))
			h.shutdown()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.metrics.WSConnected()
			h.logger.Debug("client registered",
				zap.String("hub", h.name),
				zap.String("connID", client.connID),
			)

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.groups[msg.Group] {
				select {
				case client.send <- msg.Payload:
				default:
					// Buffer full, schedule disconnect
					go h.drop(client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		for group := range client.groups {
			if clients, found := h.groups[group]; found {
				delete(clients, client)
				if len(clients) == 0 {
					delete(h.groups, group)
				}
			}
		}
		close(client.send)
	}
	h.mu.Unlock()

	if ok {
		h.metrics.WSDisconnected()
		h.logger.Debug("client unregistered",
			zap.String("hub", h.name),
			zap.String("connID", client.connID),
		)
	}
}

func (h *Hub) drop(c *Client) {
	h.unregister <- c
}

// shutdown gracefully closes all client connections.
func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
		h.metrics.WSDisconnected()
	}
	h.groups = make(map[string]map[*Client]bool)
}

// ValidGroup reports whether group names a configured underlying.
func (h *Hub) ValidGroup(group string) bool {
	return h.validGroup(group)
}

// JoinGroup adds a client to a group.
func (h *Hub) JoinGroup(client *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.groups[group] == nil {
		h.groups[group] = make(map[*Client]bool)
	}
	h.groups[group][client] = true
	client.groups[group] = true

	h.logger.Debug("client joined group",
		zap.String("hub", h.name),
		zap.String("connID", client.connID),
		zap.String("group", group),
	)
}

// LeaveGroup removes a client from a group.
func (h *Hub) LeaveGroup(client *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.groups[group]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.groups, group)
		}
	}
	delete(client.groups, group)

	h.logger.Debug("client left group",
		zap.String("hub", h.name),
		zap.String("connID", client.connID),
		zap.String("group", group),
	)
}

// ActiveGroups returns all groups with at least one subscriber, sorted.
func (h *Hub) ActiveGroups() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var groups []string
	for group, clients := range h.groups {
		if len(clients) > 0 {
			groups = append(groups, group)
		}
	}
	sort.Strings(groups)
	return groups
}

// Broadcast sends a preformatted payload to all clients in a group.
func (h *Hub) Broadcast(group string, payload []byte) {
	h.broadcast <- &GroupMessage{Group: group, Payload: payload}
}

// BroadcastFrame sends an encoded frame to all clients in a group.
// Each client formats the data message according to its negotiated protocol.
func (h *Hub) BroadcastFrame(group string, frame *Frame) {
	// Sends are non-blocking, so the read lock keeps remove from closing a
	// channel mid-send.
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.groups[group] {
		msg := client.buildDataMsg(group, frame)
		select {
		case client.send <- msg:
		default:
			go h.drop(client)
		}
	}
}
