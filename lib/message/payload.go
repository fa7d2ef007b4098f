package message

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
)

// Payload is an opaque application value. Clone must return a deep copy,
// so no recipient can observe another recipient's mutation.
type Payload interface {
	Clone() Payload
}

// JSONPayload carries an already encoded JSON document.
type JSONPayload json.RawMessage

// NewJSONPayload encodes v into a JSONPayload.
func NewJSONPayload(v any) (JSONPayload, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal json payload: %w", err)
	}
	return JSONPayload(data), nil
}

// Clone implements Payload
func (p JSONPayload) Clone() Payload {
	if p == nil {
		return JSONPayload(nil)
	}
	cp := make(JSONPayload, len(p))
	copy(cp, p)
	return cp
}

// DecodeJSON unmarshals a JSONPayload into a value of type T.
func DecodeJSON[T any](p Payload) (T, error) {
	var out T
	raw, ok := p.(JSONPayload)
	if !ok {
		return out, fmt.Errorf("payload is %T, not JSONPayload", p)
	}
	// For pointer types json.Unmarshal allocates; for value types &out is enough.
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to unmarshal json payload: %w", err)
	}
	return out, nil
}

// ProtoPayload wraps a Protocol Buffers message (e.g. *wrapperspb.StringValue).
type ProtoPayload struct {
	Msg proto.Message
}

// NewProtoPayload wraps m.
func NewProtoPayload(m proto.Message) ProtoPayload {
	return ProtoPayload{Msg: m}
}

// Clone implements Payload
func (p ProtoPayload) Clone() Payload {
	if p.Msg == nil {
		return ProtoPayload{}
	}
	return ProtoPayload{Msg: proto.Clone(p.Msg)}
}

// Marshal encodes the wrapped message in wire format.
func (p ProtoPayload) Marshal() ([]byte, error) {
	if p.Msg == nil {
		return nil, nil
	}
	return proto.Marshal(p.Msg)
}

// DecodeProto type-asserts the wrapped message of p to M.
func DecodeProto[M proto.Message](p Payload) (M, error) {
	var zero M
	pp, ok := p.(ProtoPayload)
	if !ok {
		return zero, fmt.Errorf("payload is %T, not ProtoPayload", p)
	}
	m, ok := pp.Msg.(M)
	if !ok {
		return zero, fmt.Errorf("proto payload is %T", pp.Msg)
	}
	return m, nil
}
