package phoenixclient

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/whisper/phoenixclient/internal/transport"
	"github.com/whisper/phoenixclient/internal/wire"
)

// fakeConn is an in-memory transport.Conn driven by a fakeServer, the same
// discipline internal/transport's own supervisor_test.go uses to avoid a
// real network socket in tests.
type fakeConn struct {
	mu     sync.Mutex
	closed bool
	inbox  chan frameMsg
	outbox chan frameMsg
}

type frameMsg struct {
	data   []byte
	binary bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbox: make(chan frameMsg, 64), outbox: make(chan frameMsg, 64)}
}

func (c *fakeConn) ReadMessage() ([]byte, bool, error) {
	m, ok := <-c.inbox
	if !ok {
		return nil, false, io.EOF
	}
	return m.data, m.binary, nil
}

func (c *fakeConn) WriteMessage(data []byte, binary bool) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return io.ErrClosedPipe
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.outbox <- frameMsg{data: cp, binary: binary}
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.inbox)
	}
	return nil
}

// push delivers a server->client frame; a no-op once the conn is closed.
func (c *fakeConn) push(data []byte, binary bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.inbox <- frameMsg{data: data, binary: binary}:
	default:
	}
}

// subscription records one joined conn's current join_ref for a topic, so
// a broadcast to that conn carries a join_ref its channel will accept.
type subscription struct {
	conn    *fakeConn
	joinRef *uint64
}

// fakeServer is a scripted stand-in for a Phoenix server: it replies ok to
// any join except "channel:error:json" (which rejects with the join
// payload echoed back, per spec.md §8 scenario 4), echoes any other call's
// payload back as its ok-reply, never replies to "raise" (scenario 6),
// closes the connection on "socket_disconnect" (scenario 2), answers
// "close_channel" with a phx_close push and "error_channel" with an ok reply
// plus a phx_error push, and fans out "broadcast" pushes to every conn
// joined to the same topic, the sender's own included (scenario 5).
type fakeServer struct {
	mu   sync.Mutex
	subs map[string][]*subscription
}

func newFakeServer() *fakeServer {
	return &fakeServer{subs: make(map[string][]*subscription)}
}

// serve drains conn's outbox, replying to each frame until the connection
// closes.
func (s *fakeServer) serve(conn *fakeConn) {
	for msg := range conn.outbox {
		s.handle(conn, msg)
	}
}

func (s *fakeServer) handle(conn *fakeConn, msg frameMsg) {
	var (
		f   wire.Frame
		err error
	)
	if msg.binary {
		_, f, err = wire.DecodeBinary(msg.data)
	} else {
		f, err = wire.DecodeText(msg.data)
	}
	if err != nil {
		return
	}

	switch f.Event {
	case wire.EventHeartbeat:
		s.reply(conn, f, wire.StatusOK, wire.JSONPayload(json.RawMessage(`{}`)), false)
	case wire.EventPhxJoin:
		s.join(conn, f)
	case wire.EventPhxLeave:
		s.reply(conn, f, wire.StatusOK, wire.JSONPayload(json.RawMessage(`{}`)), false)
		s.unsubscribe(conn, f.Topic)
	case "raise":
		// Simulates a crashed server-side handler: no reply is ever sent.
	case "socket_disconnect":
		conn.Close()
	case "close_channel":
		// Simulates a server-initiated phx_close: the call itself never
		// gets a reply, only the close push, so the in-flight request must
		// be failed by the channel's own phx_close handling rather than by
		// a transport-level disconnect.
		s.pushClose(conn, f)
	case "error_channel":
		// Simulates a server-initiated phx_error on an otherwise healthy
		// connection: the call itself still gets its ok reply, but the
		// channel must also see itself marked for re-join.
		s.reply(conn, f, wire.StatusOK, wire.JSONPayload(json.RawMessage(`{}`)), false)
		s.pushError(conn, f)
	case "broadcast":
		s.broadcast(f)
	default:
		s.reply(conn, f, wire.StatusOK, f.Payload, f.Payload.IsBinary())
	}
}

func (s *fakeServer) join(conn *fakeConn, f wire.Frame) {
	if f.Topic == "channel:error:json" {
		s.reply(conn, f, wire.StatusError, f.Payload, false)
		return
	}
	s.mu.Lock()
	s.subs[f.Topic] = append(s.subs[f.Topic], &subscription{conn: conn, joinRef: f.JoinRef})
	s.mu.Unlock()
	s.reply(conn, f, wire.StatusOK, wire.JSONPayload(json.RawMessage(`{}`)), false)
}

func (s *fakeServer) pushClose(conn *fakeConn, f wire.Frame) {
	out := wire.Frame{
		JoinRef: f.JoinRef,
		Topic:   f.Topic,
		Event:   wire.EventPhxClose,
		Payload: wire.JSONPayload(json.RawMessage(`{}`)),
	}
	data, err := wire.EncodeText(out)
	if err != nil {
		return
	}
	conn.push(data, false)
}

func (s *fakeServer) pushError(conn *fakeConn, f wire.Frame) {
	out := wire.Frame{
		JoinRef: f.JoinRef,
		Topic:   f.Topic,
		Event:   wire.EventPhxError,
		Payload: wire.JSONPayload(json.RawMessage(`{}`)),
	}
	data, err := wire.EncodeText(out)
	if err != nil {
		return
	}
	conn.push(data, false)
}

func (s *fakeServer) unsubscribe(conn *fakeConn, topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.subs[topic]
	kept := subs[:0]
	for _, sub := range subs {
		if sub.conn != conn {
			kept = append(kept, sub)
		}
	}
	s.subs[topic] = kept
}

func (s *fakeServer) broadcast(f wire.Frame) {
	s.mu.Lock()
	subs := append([]*subscription(nil), s.subs[f.Topic]...)
	s.mu.Unlock()
	for _, sub := range subs {
		s.pushEvent(sub, f)
	}
}

func (s *fakeServer) pushEvent(sub *subscription, f wire.Frame) {
	out := wire.Frame{JoinRef: sub.joinRef, Topic: f.Topic, Event: f.Event, Payload: f.Payload}
	if f.Payload.IsBinary() {
		data, err := wire.EncodeBinary(wire.KindBroadcast, out)
		if err != nil {
			return
		}
		sub.conn.push(data, true)
		return
	}
	data, err := wire.EncodeText(out)
	if err != nil {
		return
	}
	sub.conn.push(data, false)
}

func (s *fakeServer) reply(conn *fakeConn, f wire.Frame, status string, response wire.Payload, binary bool) {
	if f.MsgRef == nil {
		return
	}
	if binary {
		data, err := wire.EncodeBinary(wire.KindReply, wire.Frame{
			JoinRef: f.JoinRef, MsgRef: f.MsgRef, Topic: f.Topic, Event: wire.EventPhxReply, Payload: response,
		})
		if err != nil {
			return
		}
		conn.push(data, true)
		return
	}
	envelope, err := wire.EncodeReplyPayload(status, response)
	if err != nil {
		return
	}
	data, err := wire.EncodeText(wire.Frame{
		JoinRef: f.JoinRef, MsgRef: f.MsgRef, Topic: f.Topic, Event: wire.EventPhxReply, Payload: envelope,
	})
	if err != nil {
		return
	}
	conn.push(data, false)
}

// scriptedDialer dials a fresh fakeConn wired to server on every call,
// recording each for tests that need to simulate a mid-test transport drop.
// A test may also push scripted failures onto queue; they're consumed in
// order ahead of the default successful-dial behavior, for simulating a
// string of retryable errors (or a terminal one) on reconnect.
type scriptedDialer struct {
	server *fakeServer

	mu    sync.Mutex
	conns []*fakeConn
	queue []func() (transport.Conn, error)
}

func (d *scriptedDialer) Dial(ctx context.Context, url string) (transport.Conn, error) {
	d.mu.Lock()
	var next func() (transport.Conn, error)
	if len(d.queue) > 0 {
		next = d.queue[0]
		d.queue = d.queue[1:]
	}
	d.mu.Unlock()

	if next != nil {
		return next()
	}

	conn := newFakeConn()
	d.mu.Lock()
	d.conns = append(d.conns, conn)
	d.mu.Unlock()
	go d.server.serve(conn)
	return conn, nil
}

func (d *scriptedDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

// pushFailure enqueues a scripted dial failure to be returned by a future
// Dial call, ahead of the default successful behavior.
func (d *scriptedDialer) pushFailure(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, func() (transport.Conn, error) { return nil, err })
}
