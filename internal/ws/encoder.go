package ws

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Frame is one value encoded for both subprotocols.
type Frame struct {
	JSON     json.RawMessage
	Protobuf []byte
}

// Encoder converts values to wire format (JSON, or protobuf Struct + Zstd).
type Encoder struct {
	zstdEncoder *zstd.Encoder
}

// NewEncoder creates a new Encoder with Zstd compression.
func NewEncoder() (*Encoder, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return &Encoder{zstdEncoder: enc}, nil
}

// Encode marshals v to JSON, then re-reads it as a generic map so the same
// field names appear in the protobuf Struct.
func (e *Encoder) Encode(v any) (*Frame, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}

	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("value is not a JSON object: %w", err)
	}

	s, err := structpb.NewStruct(generic)
	if err != nil {
		return nil, fmt.Errorf("build struct: %w", err)
	}

	pbData, err := proto.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal protobuf: %w", err)
	}

	return &Frame{
		JSON:     raw,
		Protobuf: e.zstdEncoder.EncodeAll(pbData, nil),
	}, nil
}

// Close releases encoder resources.
func (e *Encoder) Close() {
	if e.zstdEncoder != nil {
		e.zstdEncoder.Close()
	}
}

// DecodeProtobuf reverses the protobuf half of Encode.
func DecodeProtobuf(compressed []byte) (*structpb.Struct, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	pbData, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}

	var s structpb.Struct
	if err := proto.Unmarshal(pbData, &s); err != nil {
		return nil, fmt.Errorf("unmarshal protobuf: %w", err)
	}
	return &s, nil
}
