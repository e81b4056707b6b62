// Package phoenixclient implements a client for the Phoenix Channels
// protocol: one logical connection (Socket) multiplexing any number of
// topic-scoped Channels over a single WebSocket, with reconnect-with-backoff,
// automatic re-join, and correlated request/reply calls.
package phoenixclient

import (
	"encoding/json"

	"github.com/whisper/phoenixclient/internal/wire"
)

// Payload is the tagged JSON/binary payload variant from spec.md §3. Binary
// payloads round-trip bit-exactly; JSON payloads compare structurally.
type Payload = wire.Payload

// JSONPayload wraps an already-marshaled JSON value.
func JSONPayload(raw json.RawMessage) Payload { return wire.JSONPayload(raw) }

// EncodeJSONPayload marshals an arbitrary Go value into a JSON Payload.
func EncodeJSONPayload(v interface{}) (Payload, error) { return wire.EncodeJSONPayload(v) }

// BinaryPayload wraps a binary blob. The slice is copied.
func BinaryPayload(b []byte) Payload { return wire.BinaryPayload(b) }
