package wire

import (
	"bytes"
	"encoding/json"
)

// Payload is the tagged JSON/binary variant described in spec.md §3. Exactly
// one of Binary or JSON is meaningful at a time; Binary != nil means the
// payload is a binary blob, otherwise JSON holds the raw JSON value (which
// may itself be "null").
type Payload struct {
	Binary []byte
	JSON   json.RawMessage
}

// JSONPayload wraps an already-marshaled JSON value.
func JSONPayload(raw json.RawMessage) Payload {
	if raw == nil {
		raw = json.RawMessage("null")
	}
	return Payload{JSON: raw}
}

// EncodeJSONPayload marshals an arbitrary Go value into a JSON Payload.
func EncodeJSONPayload(v interface{}) (Payload, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Payload{}, err
	}
	return JSONPayload(raw), nil
}

// BinaryPayload wraps a binary blob. The slice is copied so the caller's
// buffer may be reused.
func BinaryPayload(b []byte) Payload {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Payload{Binary: cp}
}

// IsBinary reports whether this payload carries a binary blob.
func (p Payload) IsBinary() bool {
	return p.Binary != nil
}

// Equal reports structural equality: binary payloads compare bit-exactly,
// JSON payloads compare by decoded value (so whitespace/key-order
// differences don't break equality checks in tests).
func (p Payload) Equal(other Payload) bool {
	if p.IsBinary() != other.IsBinary() {
		return false
	}
	if p.IsBinary() {
		return bytes.Equal(p.Binary, other.Binary)
	}
	var a, b interface{}
	if err := json.Unmarshal(p.JSON, &a); err != nil {
		return bytes.Equal(p.JSON, other.JSON)
	}
	if err := json.Unmarshal(other.JSON, &b); err != nil {
		return false
	}
	return deepEqual(a, b)
}

func deepEqual(a, b interface{}) bool {
	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	return bytes.Equal(aj, bj)
}
