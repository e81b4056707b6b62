package phoenixclient

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/whisper/phoenixclient/internal/channelmgr"
	"github.com/whisper/phoenixclient/internal/metrics"
	"github.com/whisper/phoenixclient/internal/router"
	"github.com/whisper/phoenixclient/internal/transport"
	"github.com/whisper/phoenixclient/internal/wire"
)

// Status mirrors the socket-level lifecycle states from spec.md §3.
type Status = transport.Status

// The Status values a Socket moves through.
const (
	NeverConnected     = transport.NeverConnected
	Connected          = transport.Connected
	WaitingToReconnect = transport.WaitingToReconnect
	Disconnected       = transport.Disconnected
	ShuttingDown       = transport.ShuttingDown
	ShutDown           = transport.ShutDown
)

// StatusEvent is delivered to every Socket.Statuses() subscriber on each
// transition; Err carries the triggering failure for WaitingToReconnect and
// a terminal Disconnected.
type StatusEvent = transport.StatusEvent

// Socket is the process-wide handle for one logical connection to a Phoenix
// server (spec.md §3): URL, status, the monotonic message-reference counter,
// the table of active channels, and the status-observer subscription list.
type Socket struct {
	url string

	sup  *transport.Supervisor
	mgr  *channelmgr.Manager
	rt   *router.Router
	refs wire.RefCounter

	rejoinTimeout time.Duration

	monitorOnce sync.Once
}

// Spawn constructs a Socket against url in the NeverConnected state without
// connecting. url's query parameters (shared_secret, id, ...) are preserved
// verbatim and used as-is during the handshake.
func Spawn(url string) *Socket {
	return SpawnConfig(transport.DefaultConfig(url))
}

// SpawnConfig constructs a Socket with explicit transport configuration: a
// custom Dialer, backoff schedule, heartbeat interval, or outbound queue
// depth.
func SpawnConfig(cfg transport.Config) *Socket {
	s := &Socket{
		url:           cfg.URL,
		rejoinTimeout: cfg.ConnectTimeout,
	}
	if s.rejoinTimeout <= 0 {
		s.rejoinTimeout = 5 * time.Second
	}

	s.rt = router.New(s.send)
	s.mgr = channelmgr.New(&s.refs, s.rt)
	s.sup = transport.NewSupervisor(cfg, s.onInbound, s.buildHeartbeat)
	return s
}

// URL returns the server URL this socket was spawned against.
func (s *Socket) URL() string { return s.url }

// Status returns the socket's current lifecycle status.
func (s *Socket) Status() Status { return s.sup.Status() }

// Statuses returns a channel receiving every status transition. The channel
// is closed once the socket reaches ShutDown.
func (s *Socket) Statuses() <-chan StatusEvent { return s.sup.Statuses() }

// HasNeverConnected reports whether Connect has never been called (or never
// succeeded).
func (s *Socket) HasNeverConnected() bool { return s.Status() == NeverConnected }

// IsConnected reports whether the socket currently has a live WebSocket.
func (s *Socket) IsConnected() bool { return s.Status() == Connected }

// IsDisconnected reports whether the socket is in the terminal-until-
// reconnect Disconnected state (explicit Disconnect, or a non-retryable
// handshake rejection such as a revoked key).
func (s *Socket) IsDisconnected() bool { return s.Status() == Disconnected }

// IsShutDown reports whether Shutdown has completed; once true it never
// becomes false again.
func (s *Socket) IsShutDown() bool { return s.Status() == ShutDown }

// Connect dials the server and blocks until the handshake completes, the
// deadline elapses, or the dial is rejected outright. On success the socket
// also starts its automatic reconnect/heartbeat/re-join machinery and moves
// to Connected.
func (s *Socket) Connect(timeout time.Duration) error {
	s.monitorOnce.Do(s.startMonitor)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.sup.Connect(ctx); err != nil {
		return translateConnectErr(err)
	}
	return nil
}

// Disconnect tears down the current WebSocket and stops the automatic
// reconnect loop. Every channel returns to Joining (awaiting a future
// Connect) and every in-flight call fails with SocketDisconnected.
func (s *Socket) Disconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.sup.Disconnect(ctx)
}

// Shutdown permanently terminates the socket: the connection is closed, no
// further reconnects are attempted, every channel moves to Closed, and
// every pending call fails exactly once with Shutdown. Shutdown is
// absorbing; subsequent operations fail immediately.
func (s *Socket) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.sup.Shutdown(ctx)
}

// Channel returns the Channel handle for topic, creating it in the
// NeverJoined state on first use. payload is the optional join payload sent
// with every (re)join of this channel.
func (s *Socket) Channel(topic string, payload Payload) *Channel {
	return &Channel{
		inner:   s.mgr.Channel(topic),
		payload: payload,
	}
}

// send encodes f per its payload kind and hands it to the transport
// supervisor's outbound queue. Shared by Router.Await/Send (wired in at
// construction) so every outbound frame, whatever channel or router call
// produced it, goes through the same single writer.
func (s *Socket) send(ctx context.Context, f wire.Frame) error {
	if f.Payload.IsBinary() {
		data, err := wire.EncodeBinary(wire.KindPush, f)
		if err != nil {
			return fmt.Errorf("phoenixclient: encode binary push: %w", err)
		}
		return s.sup.Send(ctx, data, true)
	}
	data, err := wire.EncodeText(f)
	if err != nil {
		return fmt.Errorf("phoenixclient: encode text push: %w", err)
	}
	return s.sup.Send(ctx, data, false)
}

// onInbound decodes a raw frame off the wire and routes it through the
// Channel Manager. Invoked from the transport's reader goroutine; it must
// not block.
func (s *Socket) onInbound(data []byte, binary bool) {
	var (
		f   wire.Frame
		err error
	)
	if binary {
		_, f, err = wire.DecodeBinary(data)
	} else {
		f, err = wire.DecodeText(data)
	}
	if err != nil {
		log.Printf("phoenixclient: dropping unparseable frame (binary=%v): %v", binary, err)
		return
	}
	if wire.IsHeartbeatReply(f) {
		s.sup.NotifyHeartbeatAck()
	}
	s.mgr.Route(f)
}

// buildHeartbeat allocates the next message reference and encodes the
// phoenix/heartbeat push the transport's heartbeat loop sends on its fixed
// interval.
func (s *Socket) buildHeartbeat() ([]byte, bool) {
	ref := s.refs.Next()
	data, err := wire.EncodeText(wire.NewHeartbeat(ref))
	if err != nil {
		// wire.NewHeartbeat always produces a JSON payload; this cannot fail.
		log.Printf("phoenixclient: encode heartbeat: %v", err)
		return nil, false
	}
	return data, false
}

// startMonitor runs for the lifetime of the socket, translating transport
// status transitions into the Channel Manager / Router side effects spec.md
// §4 requires: a transport loss fails every pending call and marks every
// channel for re-join; a subsequent reconnect re-joins them; shutdown fails
// every pending call once and closes every channel.
func (s *Socket) startMonitor() {
	ch := s.sup.Statuses()
	go func() {
		wasConnected := false
		for ev := range ch {
			switch ev.Status {
			case transport.WaitingToReconnect, transport.Disconnected:
				if wasConnected {
					s.rt.FailAll(wire.ErrSocketDisconnected)
					s.mgr.OnTransportLost()
					metrics.ActiveSockets.Dec()
					wasConnected = false
				}
			case transport.Connected:
				if !wasConnected {
					s.mgr.OnReconnected(s.rejoinTimeout)
					metrics.ActiveSockets.Inc()
					wasConnected = true
				}
			case transport.ShutDown:
				if wasConnected {
					metrics.ActiveSockets.Dec()
					wasConnected = false
				}
				s.rt.Close(wire.ErrShutdown)
				s.mgr.Shutdown()
			}
		}
	}()
}
