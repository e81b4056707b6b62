// Package transport implements the Transport Supervisor: the single
// WebSocket connection backing a Socket, its reconnect-with-backoff state
// machine, heartbeats, and the outbound write queue. It knows nothing about
// Phoenix framing — callers hand it opaque bytes plus a binary/text flag,
// the same separation the teacher draws between internal/ws (transport) and
// internal/protocol (framing).
package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Conn is the minimal surface transport needs from a live socket. It exists
// so tests can substitute an in-memory fake instead of dialing a real
// server.
type Conn interface {
	ReadMessage() (data []byte, binary bool, err error)
	WriteMessage(data []byte, binary bool) error
	Close() error
}

// Dialer opens a Conn to url. A handshake rejected at the HTTP layer (e.g. a
// 403 on a rotated key) should surface as *DialStatusError so the supervisor
// can classify it as terminal rather than retryable.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// DialStatusError reports a WebSocket handshake that was rejected by the
// server at the HTTP layer, e.g. 403 Forbidden on a rotated or revoked key.
// The supervisor treats this as a non-retryable failure (spec.md's
// key-rotation scenario) rather than a transient transport error.
type DialStatusError struct {
	StatusCode int
}

func (e *DialStatusError) Error() string {
	return fmt.Sprintf("transport: handshake rejected with HTTP %d", e.StatusCode)
}

// wsDialer is the default Dialer, backed by gobwas/ws the same way the
// teacher's loadtest client dials the production server.
type wsDialer struct{}

// NewDialer returns the default gobwas/ws-backed Dialer.
func NewDialer() Dialer { return wsDialer{} }

func (wsDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, _, _, err := ws.Dial(ctx, url)
	if err != nil {
		if rej, ok := err.(ws.StatusError); ok {
			return nil, &DialStatusError{StatusCode: int(rej)}
		}
		return nil, fmt.Errorf("transport: dial: %w", err)
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn net.Conn
}

func (c *wsConn) ReadMessage() ([]byte, bool, error) {
	data, op, err := wsutil.ReadServerData(c.conn)
	if err != nil {
		return nil, false, err
	}
	return data, op == ws.OpBinary, nil
}

func (c *wsConn) WriteMessage(data []byte, binary bool) error {
	op := ws.OpText
	if binary {
		op = ws.OpBinary
	}
	return wsutil.WriteClientMessage(c.conn, op, data)
}

func (c *wsConn) Close() error { return c.conn.Close() }
