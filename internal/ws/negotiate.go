package ws

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// NegotiateResponse tells a client where to connect and what it may join.
type NegotiateResponse struct {
	URL       string   `json:"url"`
	Protocols []string `json:"protocols"`
	Groups    []string `json:"groups"`
}

// NegotiateHandler handles the /negotiate endpoint.
type NegotiateHandler struct {
	path    string
	symbols []string
	logger  *zap.Logger
}

// NewNegotiateHandler creates a new NegotiateHandler for a hub mounted at path.
func NewNegotiateHandler(path string, symbols []string, logger *zap.Logger) *NegotiateHandler {
	return &NegotiateHandler{path: path, symbols: symbols, logger: logger}
}

// ServeHTTP handles GET /negotiate.
func (h *NegotiateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	scheme := "ws"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "wss"
	}

	groups := make([]string, 0, len(h.symbols))
	for _, symbol := range h.symbols {
		groups = append(groups, GroupFor(symbol))
	}

	response := NegotiateResponse{
		URL:       fmt.Sprintf("%s://%s%s", scheme, r.Host, h.path),
		Protocols: []string{ProtocolJSON, ProtocolProtobuf},
		Groups:    groups,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode negotiate response", zap.Error(err))
	}
}
