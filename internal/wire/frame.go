// Package wire implements the Phoenix Channels v2 wire protocol: the JSON
// five-element array frame used over text WebSocket frames, and the
// length-prefixed encoding used over binary WebSocket frames. Both encode
// and decode the same logical Frame.
package wire

import (
	"encoding/json"
	"fmt"
)

// Control topic and event names reserved by the protocol.
const (
	TopicPhoenix = "phoenix"

	EventHeartbeat = "heartbeat"
	EventPhxJoin   = "phx_join"
	EventPhxLeave  = "phx_leave"
	EventPhxReply  = "phx_reply"
	EventPhxClose  = "phx_close"
	EventPhxError  = "phx_error"
)

// Reply status strings carried in a phx_reply payload's "status" field.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Frame is the decoded form of a single protocol message, independent of
// whether it arrived as a text or binary WebSocket frame.
type Frame struct {
	JoinRef *uint64
	MsgRef  *uint64
	Topic   string
	Event   string
	Payload Payload
}

// ReplyEnvelope is the payload shape of a phx_reply frame.
type ReplyEnvelope struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

// NewHeartbeat builds the outbound heartbeat frame: topic "phoenix", event
// "heartbeat", empty JSON object payload.
func NewHeartbeat(msgRef uint64) Frame {
	return Frame{
		MsgRef:  &msgRef,
		Topic:   TopicPhoenix,
		Event:   EventHeartbeat,
		Payload: JSONPayload(json.RawMessage(`{}`)),
	}
}

// IsHeartbeatReply reports whether f is the server's reply to a heartbeat.
func IsHeartbeatReply(f Frame) bool {
	return f.Topic == TopicPhoenix && f.Event == EventPhxReply
}

// DecodeReply parses a phx_reply frame's payload into status + response
// payload. It returns an error if the payload isn't a well-formed reply
// envelope; the Channel Manager drops such a frame, so any waiter for it
// runs to its timeout.
func DecodeReply(p Payload) (status string, response Payload, err error) {
	if p.IsBinary() {
		// Binary replies don't wrap status/response in JSON, and the binary
		// kind byte (see binary.go) has no error variant, so every binary
		// reply is reported as ok and the raw bytes ARE the response.
		return StatusOK, p, nil
	}
	var env ReplyEnvelope
	if err := json.Unmarshal(p.JSON, &env); err != nil {
		return "", Payload{}, fmt.Errorf("wire: decode reply envelope: %w", err)
	}
	if env.Status != StatusOK && env.Status != StatusError {
		return "", Payload{}, fmt.Errorf("wire: reply envelope has unknown status %q", env.Status)
	}
	resp := env.Response
	if len(resp) == 0 {
		resp = json.RawMessage(`{}`)
	}
	return env.Status, JSONPayload(resp), nil
}

// EncodeReplyPayload builds the {"status": ..., "response": ...} envelope
// used when this client needs to emit a reply-shaped payload of its own
// (present for symmetry and tests; the core only ever consumes replies).
func EncodeReplyPayload(status string, response Payload) (Payload, error) {
	raw := response.JSON
	if raw == nil {
		raw = json.RawMessage(`{}`)
	}
	data, err := json.Marshal(ReplyEnvelope{Status: status, Response: raw})
	if err != nil {
		return Payload{}, fmt.Errorf("wire: encode reply envelope: %w", err)
	}
	return JSONPayload(data), nil
}
