package phoenixclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/whisper/phoenixclient/internal/transport"
	"github.com/whisper/phoenixclient/internal/wire"
)

// Sentinel errors shared by ConnectError, JoinError, and CallError (spec.md
// §7). Compare with errors.Is.
var (
	ErrTimeout            = wire.ErrTimeout
	ErrSocketDisconnected = wire.ErrSocketDisconnected
	ErrShutdown           = wire.ErrShutdown
	ErrNotJoined          = wire.ErrNotJoined
)

// RejectedError is returned by Channel.Join when the server replies to a
// phx_join with status "error". Payload carries the server's response
// verbatim.
type RejectedError = wire.RejectedError

// ReplyError is returned by Channel.Call when the server replies with
// status "error". Payload carries the server's response verbatim.
type ReplyError = wire.ReplyError

// WebSocketError wraps a transport-level failure that doesn't fit one of
// the named taxonomy members: a dial error, a write failure, or any other
// error surfaced by the underlying gobwas/ws connection.
type WebSocketError struct{ Err error }

func (e *WebSocketError) Error() string {
	return fmt.Sprintf("phoenixclient: websocket error: %v", e.Err)
}

func (e *WebSocketError) Unwrap() error { return e.Err }

// translateConnectErr maps a transport.Supervisor.Connect error onto the
// ConnectError taxonomy: WebSocketError(inner), Timeout, ShuttingDown.
func translateConnectErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, transport.ErrShutdown) {
		return ErrShutdown
	}
	if errors.Is(err, transport.ErrAlreadyStarted) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return &WebSocketError{Err: err}
}

// translateJoinErr maps a channelmgr.Channel.Join error onto the JoinError
// taxonomy: Timeout, Rejected(payload), SocketDisconnected, Shutdown. The
// internal channelmgr layer already turns a server error reply into
// *wire.RejectedError; this only needs to catch anything left over.
func translateJoinErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, wire.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, wire.ErrSocketDisconnected):
		return ErrSocketDisconnected
	case errors.Is(err, wire.ErrShutdown):
		return ErrShutdown
	}
	var rejected *wire.RejectedError
	if errors.As(err, &rejected) {
		return rejected
	}
	return err
}

// translateCallErr maps a channelmgr.Channel.Call/Cast error onto the
// CallError taxonomy: Timeout, Reply(payload), SocketDisconnected, Shutdown,
// WebSocketError(inner).
func translateCallErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, wire.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, wire.ErrSocketDisconnected):
		return ErrSocketDisconnected
	case errors.Is(err, wire.ErrShutdown):
		return ErrShutdown
	case errors.Is(err, wire.ErrNotJoined):
		return ErrNotJoined
	}
	var replyErr *wire.ReplyError
	if errors.As(err, &replyErr) {
		return replyErr
	}
	return &WebSocketError{Err: err}
}
