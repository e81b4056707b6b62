package wire

import "errors"

// Sentinel errors shared by the router and the channel manager (the
// transport supervisor has its own, in internal/transport). The root package translates these into the public
// ConnectError/JoinError/CallError taxonomies (spec.md §7); keeping them
// here lets the internal packages stay decoupled from the public API shape.
var (
	ErrTimeout            = errors.New("wire: timed out waiting for reply")
	ErrSocketDisconnected = errors.New("wire: socket disconnected while awaiting reply")
	ErrShutdown           = errors.New("wire: socket shut down")
	ErrNotJoined          = errors.New("wire: channel is not joined")
	ErrAlreadyJoining     = errors.New("wire: channel is already joining")
	ErrMissingRef         = errors.New("wire: frame has no msg_ref to correlate a reply with")
)

// RejectedError carries the server's verbatim error payload for a join
// rejected via a phx_reply with status "error".
type RejectedError struct {
	Payload Payload
}

func (e *RejectedError) Error() string {
	return "wire: join rejected by server"
}

// ReplyError carries the server's verbatim error payload for a call that
// received a phx_reply with status "error".
type ReplyError struct {
	Payload Payload
}

func (e *ReplyError) Error() string {
	return "wire: call received an error reply"
}
