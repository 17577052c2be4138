package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dgnsrekt/maxpain-dashboard/internal/dashboard"
)

type fakeSource struct {
	calls []string
	mu    sync.Mutex
}

func (f *fakeSource) Board(_ context.Context, symbol string) (*dashboard.Board, error) {
	f.mu.Lock()
	f.calls = append(f.calls, symbol)
	f.mu.Unlock()

	if symbol == "BANKNIFTY" {
		return nil, errors.New("upstream down")
	}
	return &dashboard.Board{
		Underlying:    symbol,
		Expiry:        "2025-01-30",
		MaxPainStrike: 23000,
		Rows: []dashboard.LiveRow{
			{Strike: 23000, MaxPain: 5, Highlight: dashboard.HighlightMaxPain},
		},
	}, nil
}

type recordingSink struct {
	symbols []string
	got     map[string][]byte
}

func (s *recordingSink) Subscribed() []string { return s.symbols }

func (s *recordingSink) Publish(symbol string, data []byte) {
	if s.got == nil {
		s.got = make(map[string][]byte)
	}
	s.got[symbol] = data
}

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub("test", []string{"NIFTY", "BANKNIFTY"}, nil, zap.NewNop())
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, protocol string) *websocket.Conn {
	t.Helper()
	dialer := websocket.Dialer{Subprotocols: []string{protocol}}
	conn, _, err := dialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if msgType != websocket.TextMessage {
		t.Fatalf("expected text frame, got %d", msgType)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return msg
}

func readStruct(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Fatalf("expected binary frame, got %d", msgType)
	}
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return s.AsMap()
}

func TestGroupNames(t *testing.T) {
	if got := GroupFor("nifty"); got != "board.NIFTY" {
		t.Errorf("expected board.NIFTY, got %s", got)
	}
	if got := SymbolOf("board.BANKNIFTY"); got != "BANKNIFTY" {
		t.Errorf("expected BANKNIFTY, got %s", got)
	}
	if got := SymbolOf("blue_SPX_orderflow"); got != "" {
		t.Errorf("expected empty symbol, got %s", got)
	}

	hub := NewHub("test", []string{"nifty"}, nil, zap.NewNop())
	if !hub.ValidGroup("board.NIFTY") {
		t.Error("board.NIFTY should be valid")
	}
	if hub.ValidGroup("board.FINNIFTY") {
		t.Error("unconfigured underlying should be rejected")
	}
}

func TestEncoderRoundTrip(t *testing.T) {
	enc, err := NewEncoder()
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	defer enc.Close()

	board, _ := (&fakeSource{}).Board(context.Background(), "NIFTY")
	frame, err := enc.Encode(board)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	s, err := DecodeProtobuf(frame.Protobuf)
	if err != nil {
		t.Fatalf("DecodeProtobuf: %v", err)
	}
	m := s.AsMap()
	if m["underlying"] != "NIFTY" {
		t.Errorf("expected underlying NIFTY, got %v", m["underlying"])
	}
	if m["max_pain_strike"] != float64(23000) {
		t.Errorf("expected max pain strike 23000, got %v", m["max_pain_strike"])
	}
	if m["spot"] != nil {
		t.Errorf("missing spot should stay null, got %v", m["spot"])
	}

	var decoded dashboard.Board
	if err := json.Unmarshal(frame.JSON, &decoded); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(decoded.Rows) != 1 || decoded.Rows[0].Highlight != dashboard.HighlightMaxPain {
		t.Errorf("unexpected rows %+v", decoded.Rows)
	}
}

func TestEncoderRejectsNonObject(t *testing.T) {
	enc, err := NewEncoder()
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	defer enc.Close()

	if _, err := enc.Encode([]int{1, 2}); err == nil {
		t.Error("expected error for non-object value")
	}
}

func TestJSONClientJoinAndReceive(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, ProtocolJSON)

	connected := readJSON(t, conn)
	if connected["event"] != "connected" || connected["connectionId"] == "" {
		t.Fatalf("unexpected connected message %v", connected)
	}

	conn.WriteJSON(map[string]any{"type": "joinGroup", "group": "board.NIFTY", "ackId": 1})
	ack := readJSON(t, conn)
	if ack["type"] != "ack" || ack["success"] != true || ack["ackId"] != float64(1) {
		t.Fatalf("unexpected ack %v", ack)
	}

	conn.WriteJSON(map[string]any{"type": "joinGroup", "group": "board.SENSEX", "ackId": 2})
	if nack := readJSON(t, conn); nack["success"] != false {
		t.Fatalf("expected failed ack for unknown group, got %v", nack)
	}

	conn.WriteJSON(map[string]any{"type": "ping"})
	if pong := readJSON(t, conn); pong["type"] != "pong" {
		t.Fatalf("expected pong, got %v", pong)
	}

	if groups := hub.ActiveGroups(); len(groups) != 1 || groups[0] != "board.NIFTY" {
		t.Fatalf("expected board.NIFTY active, got %v", groups)
	}

	source := &fakeSource{}
	sink := &recordingSink{symbols: []string{"BANKNIFTY"}}
	streamer, err := NewStreamer(hub, source, time.Minute, zap.NewNop(), sink)
	if err != nil {
		t.Fatalf("NewStreamer: %v", err)
	}
	streamer.broadcastNext(context.Background())

	msg := readJSON(t, conn)
	if msg["type"] != "message" || msg["group"] != "board.NIFTY" {
		t.Fatalf("unexpected data message %v", msg)
	}
	data, ok := msg["data"].(map[string]any)
	if !ok || data["underlying"] != "NIFTY" {
		t.Fatalf("expected board payload, got %v", msg["data"])
	}

	// BANKNIFTY is only subscribed through the sink and its board fails
	if len(source.calls) != 2 || source.calls[0] != "BANKNIFTY" || source.calls[1] != "NIFTY" {
		t.Errorf("expected boards for both symbols, got %v", source.calls)
	}
	if _, ok := sink.got["BANKNIFTY"]; ok {
		t.Error("failed board should not be published")
	}
	if _, ok := sink.got["NIFTY"]; !ok {
		t.Error("sink should receive every built board")
	}
}

func TestProtobufClientReceivesCompressedBoard(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, ProtocolProtobuf)

	if connected := readStruct(t, conn); connected["event"] != "connected" {
		t.Fatalf("unexpected connected message %v", connected)
	}

	join, _ := structpb.NewStruct(map[string]any{"type": "joinGroup", "group": "board.NIFTY", "ackId": 7})
	payload, _ := proto.Marshal(join)
	if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ack := readStruct(t, conn); ack["success"] != true || ack["ackId"] != float64(7) {
		t.Fatalf("unexpected ack %v", ack)
	}

	streamer, err := NewStreamer(hub, &fakeSource{}, time.Minute, zap.NewNop())
	if err != nil {
		t.Fatalf("NewStreamer: %v", err)
	}
	streamer.broadcastNext(context.Background())

	msg := readStruct(t, conn)
	if msg["dataType"] != "protobuf+zstd" {
		t.Fatalf("unexpected data type %v", msg["dataType"])
	}
	compressed, err := base64.StdEncoding.DecodeString(msg["data"].(string))
	if err != nil {
		t.Fatalf("base64: %v", err)
	}
	board, err := DecodeProtobuf(compressed)
	if err != nil {
		t.Fatalf("DecodeProtobuf: %v", err)
	}
	if board.AsMap()["expiry"] != "2025-01-30" {
		t.Errorf("unexpected board %v", board.AsMap())
	}
}

func TestGroupQueryPresubscribes(t *testing.T) {
	hub, srv := startHub(t)

	dialer := websocket.Dialer{}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?group=board.BANKNIFTY&group=board.BOGUS"
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	// Clients without a subprotocol default to JSON
	if connected := readJSON(t, conn); connected["event"] != "connected" {
		t.Fatalf("unexpected connected message %v", connected)
	}

	groups := hub.ActiveGroups()
	if len(groups) != 1 || groups[0] != "board.BANKNIFTY" {
		t.Errorf("expected only board.BANKNIFTY, got %v", groups)
	}
}

func TestNegotiate(t *testing.T) {
	h := NewNegotiateHandler("/ws", []string{"NIFTY", "BANKNIFTY"}, zap.NewNop())

	req := httptest.NewRequest("GET", "http://dash.local/negotiate", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp NegotiateResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.URL != "ws://dash.local/ws" {
		t.Errorf("unexpected url %s", resp.URL)
	}
	if len(resp.Groups) != 2 || resp.Groups[1] != "board.BANKNIFTY" {
		t.Errorf("unexpected groups %v", resp.Groups)
	}
	if len(resp.Protocols) != 2 {
		t.Errorf("unexpected protocols %v", resp.Protocols)
	}
}
