package wire

import (
	"fmt"
	"strconv"
)

// FrameKind is the role byte at the start of a binary frame: push (client
// request), reply (server response to a push), or broadcast (server event
// with no correlating request).
type FrameKind byte

const (
	KindPush      FrameKind = 0
	KindReply     FrameKind = 1
	KindBroadcast FrameKind = 2
)

// EncodeBinary renders f as the length-prefixed binary frame:
//
//	kind(1) | join_ref_len(1) | msg_ref_len(1) | topic_len(1) | event_len(1) |
//	join_ref | msg_ref | topic | event | binary_payload
//
// join_ref and msg_ref are encoded as their decimal ASCII representation;
// an absent ref has length 0.
func EncodeBinary(kind FrameKind, f Frame) ([]byte, error) {
	if !f.Payload.IsBinary() {
		return nil, fmt.Errorf("wire: cannot encode a JSON payload as a binary frame")
	}

	joinRef := refBytes(f.JoinRef)
	msgRef := refBytes(f.MsgRef)
	topic := []byte(f.Topic)
	event := []byte(f.Event)

	for name, b := range map[string][]byte{"join_ref": joinRef, "msg_ref": msgRef, "topic": topic, "event": event} {
		if len(b) > 255 {
			return nil, fmt.Errorf("wire: %s exceeds 255 bytes", name)
		}
	}

	out := make([]byte, 0, 5+len(joinRef)+len(msgRef)+len(topic)+len(event)+len(f.Payload.Binary))
	out = append(out, byte(kind))
	out = append(out, byte(len(joinRef)), byte(len(msgRef)), byte(len(topic)), byte(len(event)))
	out = append(out, joinRef...)
	out = append(out, msgRef...)
	out = append(out, topic...)
	out = append(out, event...)
	out = append(out, f.Payload.Binary...)
	return out, nil
}

// DecodeBinary parses a length-prefixed binary frame into its kind and
// Frame form.
func DecodeBinary(data []byte) (FrameKind, Frame, error) {
	if len(data) < 5 {
		return 0, Frame{}, fmt.Errorf("wire: binary frame too short: %d bytes", len(data))
	}
	kind := FrameKind(data[0])
	joinLen := int(data[1])
	msgLen := int(data[2])
	topicLen := int(data[3])
	eventLen := int(data[4])

	off := 5
	need := off + joinLen + msgLen + topicLen + eventLen
	if len(data) < need {
		return 0, Frame{}, fmt.Errorf("wire: binary frame header declares %d bytes, have %d", need, len(data))
	}

	joinRef, err := parseRefBytes(data[off : off+joinLen])
	if err != nil {
		return 0, Frame{}, fmt.Errorf("wire: join_ref: %w", err)
	}
	off += joinLen
	msgRef, err := parseRefBytes(data[off : off+msgLen])
	if err != nil {
		return 0, Frame{}, fmt.Errorf("wire: msg_ref: %w", err)
	}
	off += msgLen
	topic := string(data[off : off+topicLen])
	off += topicLen
	event := string(data[off : off+eventLen])
	off += eventLen

	return kind, Frame{
		JoinRef: joinRef,
		MsgRef:  msgRef,
		Topic:   topic,
		Event:   event,
		Payload: BinaryPayload(data[off:]),
	}, nil
}

func refBytes(ref *uint64) []byte {
	if ref == nil {
		return nil
	}
	return []byte(strconv.FormatUint(*ref, 10))
}

func parseRefBytes(b []byte) (*uint64, error) {
	if len(b) == 0 {
		return nil, nil
	}
	v, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
