package wire

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// refString renders a message/join reference the way the Phoenix wire
// protocol expects it: a decimal string, or JSON null when absent.
func refString(ref *uint64) json.RawMessage {
	if ref == nil {
		return json.RawMessage("null")
	}
	return mustMarshal(strconv.FormatUint(*ref, 10))
}

func parseRef(raw json.RawMessage) (*uint64, error) {
	var s *string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == nil {
			return nil, nil
		}
		v, err := strconv.ParseUint(*s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("wire: ref %q is not an integer: %w", *s, err)
		}
		return &v, nil
	}
	// Some servers emit refs as bare JSON numbers rather than strings;
	// tolerate both on read.
	var n *float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("wire: ref is neither a string nor a number: %w", err)
	}
	if n == nil {
		return nil, nil
	}
	v := uint64(*n)
	return &v, nil
}

// EncodeText renders f as the five-element JSON array text frame:
// [join_ref, msg_ref, topic, event, payload].
func EncodeText(f Frame) ([]byte, error) {
	if f.Payload.IsBinary() {
		return nil, fmt.Errorf("wire: cannot encode binary payload as a text frame")
	}
	payload := f.Payload.JSON
	if payload == nil {
		payload = json.RawMessage("null")
	}
	arr := []json.RawMessage{
		refString(f.JoinRef),
		refString(f.MsgRef),
		mustMarshal(f.Topic),
		mustMarshal(f.Event),
		payload,
	}
	return json.Marshal(arr)
}

func mustMarshal(s string) json.RawMessage {
	raw, _ := json.Marshal(s)
	return raw
}

// DecodeText parses a five-element JSON array text frame into a Frame.
func DecodeText(data []byte) (Frame, error) {
	var raw [5]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Frame{}, fmt.Errorf("wire: decode text frame: %w", err)
	}

	joinRef, err := parseRef(raw[0])
	if err != nil {
		return Frame{}, fmt.Errorf("wire: join_ref: %w", err)
	}
	msgRef, err := parseRef(raw[1])
	if err != nil {
		return Frame{}, fmt.Errorf("wire: msg_ref: %w", err)
	}

	var topic, event string
	if err := json.Unmarshal(raw[2], &topic); err != nil {
		return Frame{}, fmt.Errorf("wire: topic: %w", err)
	}
	if err := json.Unmarshal(raw[3], &event); err != nil {
		return Frame{}, fmt.Errorf("wire: event: %w", err)
	}

	return Frame{
		JoinRef: joinRef,
		MsgRef:  msgRef,
		Topic:   topic,
		Event:   event,
		Payload: JSONPayload(raw[4]),
	}, nil
}
