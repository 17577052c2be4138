package ws

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ProtocolJSON     = "json.maxpain.v1"
	ProtocolProtobuf = "protobuf.maxpain.v1"
)

// Upstream message types for internal routing
type (
	joinGroupRequest struct {
		group string
		ackID *uint64
	}
	leaveGroupRequest struct {
		group string
		ackID *uint64
	}
	pingRequest struct{}
)

// parseUpstream routes a decoded upstream message by its "type" field.
func parseUpstream(msg map[string]any) (any, error) {
	msgType, _ := msg["type"].(string)

	var ackID *uint64
	if v, ok := msg["ackId"].(float64); ok && v >= 0 {
		id := uint64(v)
		ackID = &id
	}
	group, _ := msg["group"].(string)

	switch msgType {
	case "joinGroup":
		return &joinGroupRequest{group: group, ackID: ackID}, nil
	case "leaveGroup":
		return &leaveGroupRequest{group: group, ackID: ackID}, nil
	case "ping":
		return &pingRequest{}, nil
	default:
		return nil, fmt.Errorf("unknown message type: %q", msgType)
	}
}

// parseUpstreamMessageJSON parses a JSON-encoded upstream message.
func parseUpstreamMessageJSON(data []byte) (any, error) {
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal JSON upstream message: %w", err)
	}
	return parseUpstream(msg)
}

// parseUpstreamMessage parses a protobuf Struct upstream message.
func parseUpstreamMessage(data []byte) (any, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal upstream message: %w", err)
	}
	return parseUpstream(msg.AsMap())
}

func marshalJSON(msg map[string]any) []byte {
	data, _ := json.Marshal(msg)
	return data
}

func marshalStruct(msg map[string]any) []byte {
	s, err := structpb.NewStruct(msg)
	if err != nil {
		return nil
	}
	data, _ := proto.Marshal(s)
	return data
}

func connectedMessage(connectionID string) map[string]any {
	return map[string]any{
		"type":         "system",
		"event":        "connected",
		"connectionId": connectionID,
	}
}

func ackMessage(ackID uint64, success bool) map[string]any {
	return map[string]any{
		"type":    "ack",
		"ackId":   float64(ackID),
		"success": success,
	}
}

func pongMessage() map[string]any {
	return map[string]any{"type": "pong"}
}

// buildDataMessageJSON embeds the board JSON directly.
func buildDataMessageJSON(group string, rawJSON json.RawMessage) []byte {
	msg := map[string]any{
		"type":     "message",
		"from":     "group",
		"group":    group,
		"dataType": "json",
		"data":     rawJSON,
	}
	data, _ := json.Marshal(msg)
	return data
}

// buildDataMessage wraps a zstd-compressed protobuf Struct. The payload is
// base64 encoded because Struct values cannot carry bytes.
func buildDataMessage(group string, compressed []byte) []byte {
	return marshalStruct(map[string]any{
		"type":     "message",
		"from":     "group",
		"group":    group,
		"dataType": "protobuf+zstd",
		"data":     base64.StdEncoding.EncodeToString(compressed),
	})
}
