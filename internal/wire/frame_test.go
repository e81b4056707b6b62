package wire

import (
	"encoding/json"
	"testing"
)

func ref(v uint64) *uint64 { return &v }

func TestTextRoundTrip_WithRefs(t *testing.T) {
	original := Frame{
		JoinRef: ref(1),
		MsgRef:  ref(42),
		Topic:   "channel:broadcast:json",
		Event:   "custom_event",
		Payload: JSONPayload(json.RawMessage(`{"status":"testng","num":1}`)),
	}

	data, err := EncodeText(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeText(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if *decoded.JoinRef != *original.JoinRef {
		t.Errorf("join_ref mismatch: got %d want %d", *decoded.JoinRef, *original.JoinRef)
	}
	if *decoded.MsgRef != *original.MsgRef {
		t.Errorf("msg_ref mismatch: got %d want %d", *decoded.MsgRef, *original.MsgRef)
	}
	if decoded.Topic != original.Topic || decoded.Event != original.Event {
		t.Errorf("topic/event mismatch: got (%q,%q) want (%q,%q)", decoded.Topic, decoded.Event, original.Topic, original.Event)
	}
	if !decoded.Payload.Equal(original.Payload) {
		t.Errorf("payload mismatch: got %s want %s", decoded.Payload.JSON, original.Payload.JSON)
	}
}

func TestTextRoundTrip_NullRefs(t *testing.T) {
	original := Frame{
		Topic:   "phoenix",
		Event:   "heartbeat",
		Payload: JSONPayload(json.RawMessage(`{}`)),
	}

	data, err := EncodeText(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeText(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.JoinRef != nil || decoded.MsgRef != nil {
		t.Errorf("expected nil refs, got join_ref=%v msg_ref=%v", decoded.JoinRef, decoded.MsgRef)
	}
}

func TestDecodeText_TolerantOfNumericRefs(t *testing.T) {
	data := []byte(`[1, 2, "t", "e", null]`)
	decoded, err := DecodeText(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.JoinRef == nil || *decoded.JoinRef != 1 {
		t.Errorf("expected join_ref 1, got %v", decoded.JoinRef)
	}
	if decoded.MsgRef == nil || *decoded.MsgRef != 2 {
		t.Errorf("expected msg_ref 2, got %v", decoded.MsgRef)
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	original := Frame{
		JoinRef: ref(7),
		MsgRef:  ref(99),
		Topic:   "channel:broadcast:binary",
		Event:   "broadcast",
		Payload: BinaryPayload([]byte{0, 1, 2, 3}),
	}

	data, err := EncodeBinary(KindBroadcast, original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	kind, decoded, err := DecodeBinary(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if kind != KindBroadcast {
		t.Errorf("kind mismatch: got %v want %v", kind, KindBroadcast)
	}
	if !decoded.Payload.Equal(original.Payload) {
		t.Errorf("binary payload not bit-exact: got %v want %v", decoded.Payload.Binary, original.Payload.Binary)
	}
	if decoded.Topic != original.Topic || decoded.Event != original.Event {
		t.Errorf("topic/event mismatch")
	}
}

func TestBinaryRoundTrip_AbsentRefs(t *testing.T) {
	original := Frame{
		Topic:   "channel:x",
		Event:   "y",
		Payload: BinaryPayload(nil),
	}
	data, err := EncodeBinary(KindPush, original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, decoded, err := DecodeBinary(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.JoinRef != nil || decoded.MsgRef != nil {
		t.Errorf("expected nil refs for absent join/msg ref, got %v %v", decoded.JoinRef, decoded.MsgRef)
	}
}

func TestDecodeReply_OkWithResponse(t *testing.T) {
	p := JSONPayload(json.RawMessage(`{"status":"ok","response":{"a":1}}`))
	status, resp, err := DecodeReply(p)
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if status != StatusOK {
		t.Errorf("expected status ok, got %q", status)
	}
	var m map[string]int
	if err := json.Unmarshal(resp.JSON, &m); err != nil || m["a"] != 1 {
		t.Errorf("unexpected response payload: %s (err=%v)", resp.JSON, err)
	}
}

func TestDecodeReply_ErrorStatus(t *testing.T) {
	p := JSONPayload(json.RawMessage(`{"status":"error","response":{"status":"testng","num":1}}`))
	status, resp, err := DecodeReply(p)
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if status != StatusError {
		t.Errorf("expected status error, got %q", status)
	}
	if resp.JSON == nil {
		t.Error("expected non-nil response payload")
	}
}

func TestDecodeReply_UnknownStatusIsError(t *testing.T) {
	p := JSONPayload(json.RawMessage(`{"status":"weird"}`))
	if _, _, err := DecodeReply(p); err == nil {
		t.Fatal("expected error for unknown reply status")
	}
}

func TestPayloadEqual_JSONIgnoresKeyOrder(t *testing.T) {
	a := JSONPayload(json.RawMessage(`{"a":1,"b":2}`))
	b := JSONPayload(json.RawMessage(`{"b":2,"a":1}`))
	if !a.Equal(b) {
		t.Error("expected key-order-independent equality")
	}
}

func TestPayloadEqual_BinaryVsJSONNeverEqual(t *testing.T) {
	a := BinaryPayload([]byte{1, 2, 3})
	b := JSONPayload(json.RawMessage(`[1,2,3]`))
	if a.Equal(b) {
		t.Error("binary and JSON payloads must never compare equal")
	}
}
