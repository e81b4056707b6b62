package transport

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/whisper/phoenixclient/internal/metrics"
)

// Config configures a Supervisor.
type Config struct {
	URL               string
	ConnectTimeout    time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	OutboundQueueSize int
	Backoff           BackoffSchedule
	Dialer            Dialer
}

// DefaultConfig returns a Config with spec.md's defaults: a 5s connect
// timeout, a 30s heartbeat interval on the reserved "phoenix" topic, and
// the capped-exponential reconnect schedule.
func DefaultConfig(url string) Config {
	return Config{
		URL:               url,
		ConnectTimeout:    5 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		HeartbeatTimeout:  10 * time.Second,
		OutboundQueueSize: 256,
		Backoff:           DefaultBackoff(),
		Dialer:            NewDialer(),
	}
}

// InboundFunc receives every frame read off the wire, undecoded. The caller
// (the Channel Manager, by way of the root package) is responsible for
// parsing it.
type InboundFunc func(data []byte, binary bool)

// HeartbeatFunc builds the next outbound heartbeat frame; the caller
// supplies it because only the wire-protocol layer knows how to encode a
// "phoenix"/"heartbeat" push.
type HeartbeatFunc func() (data []byte, binary bool)

// Supervisor owns the single WebSocket connection for a Socket: dialing,
// the reconnect-with-backoff loop, heartbeats, and the bounded outbound
// write queue drained by one writer goroutine. It is deliberately ignorant
// of Phoenix framing, mirroring the teacher's split between internal/ws
// (transport) and internal/protocol (message shape).
type Supervisor struct {
	cfg       Config
	onInbound InboundFunc
	heartbeat HeartbeatFunc

	bus *statusBus

	mu      sync.Mutex
	status  Status
	started bool
	conn    Conn
	cancel  context.CancelFunc
	done    chan struct{}

	outbound chan outboundMsg
	rng      *rand.Rand

	lastHeartbeatAck time.Time
}

type outboundMsg struct {
	data   []byte
	binary bool
}

// NewSupervisor constructs a Supervisor. onInbound is invoked from the
// reader goroutine for every frame received; it must not block for long.
// heartbeat builds the periodic keepalive push.
func NewSupervisor(cfg Config, onInbound InboundFunc, heartbeat HeartbeatFunc) *Supervisor {
	if cfg.Dialer == nil {
		cfg.Dialer = NewDialer()
	}
	if cfg.OutboundQueueSize <= 0 {
		cfg.OutboundQueueSize = 256
	}
	return &Supervisor{
		cfg:       cfg,
		onInbound: onInbound,
		heartbeat: heartbeat,
		bus:       newStatusBus(),
		status:    NeverConnected,
		outbound:  make(chan outboundMsg, cfg.OutboundQueueSize),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Status returns the current socket status.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Statuses returns a channel that receives every status transition. The
// channel is closed when the supervisor reaches ShutDown. Slow consumers
// have stale events dropped rather than blocking the supervisor.
func (s *Supervisor) Statuses() <-chan StatusEvent {
	return s.bus.subscribe()
}

func (s *Supervisor) setStatus(status Status, err error) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
	s.bus.publish(StatusEvent{Status: status, Err: err})
}

// Connect dials once, within ctx. On success it starts the background
// session (reader, writer, heartbeat) and the automatic reconnect loop that
// takes over if the connection later drops, and returns nil. On a dial
// failure it leaves the status unchanged (NeverConnected on a first attempt)
// so the caller may retry. Once Shutdown has been called it returns
// ErrShutdown without dialing.
func (s *Supervisor) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.status == ShuttingDown || s.status == ShutDown {
		s.mu.Unlock()
		return ErrShutdown
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.mu.Unlock()

	dialCtx := ctx
	if s.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, s.cfg.ConnectTimeout)
		defer cancel()
	}

	conn, err := s.cfg.Dialer.Dial(dialCtx, s.cfg.URL)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.started = true
	s.conn = conn
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.setStatus(Connected, nil)
	go s.supervise(runCtx, conn)
	return nil
}

// supervise runs the current connection's reader/writer/heartbeat trio to
// completion, then drives the reconnect loop until the connection is
// restored, explicitly disconnected, or shut down.
func (s *Supervisor) supervise(ctx context.Context, conn Conn) {
	defer close(s.done)
	for {
		err := s.runSession(ctx, conn)
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err == nil {
			// Explicit Disconnect() or Shutdown() tore the session down;
			// runSession only returns nil in that case.
			return
		}

		conn = s.reconnectLoop(ctx, err)
		if conn == nil {
			return
		}
	}
}

// runSession starts the reader, writer, and heartbeat goroutines for one
// live connection and blocks until one of them observes a fatal error or
// the context is cancelled.
func (s *Supervisor) runSession(ctx context.Context, conn Conn) error {
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(sessionCtx)
	// Close the connection as soon as any task fails so a readLoop blocked
	// in ReadMessage returns and g.Wait can complete.
	stopClose := context.AfterFunc(gctx, func() { conn.Close() })
	defer stopClose()
	g.Go(func() error { return s.readLoop(gctx, conn) })
	g.Go(func() error { return s.writeLoop(gctx, conn) })
	if s.heartbeat != nil && s.cfg.HeartbeatInterval > 0 {
		g.Go(func() error { return s.heartbeatLoop(gctx, conn) })
	}

	err := g.Wait()
	conn.Close()

	select {
	case <-ctx.Done():
		return nil
	default:
	}
	if errors.Is(err, errDisconnected) {
		return nil
	}
	return err
}

func (s *Supervisor) readLoop(ctx context.Context, conn Conn) error {
	for {
		data, binary, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if s.onInbound != nil {
			s.onInbound(data, binary)
		}
	}
}

func (s *Supervisor) writeLoop(ctx context.Context, conn Conn) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-s.outbound:
			if err := conn.WriteMessage(msg.data, msg.binary); err != nil {
				return err
			}
		}
	}
}

// NotifyHeartbeatAck records that a heartbeat reply was just observed.
// Called by the caller's inbound layer (which alone knows how to recognize
// a "phoenix"/"phx_reply" frame) whenever one arrives; the transport stays
// ignorant of Phoenix framing itself.
func (s *Supervisor) NotifyHeartbeatAck() {
	s.mu.Lock()
	s.lastHeartbeatAck = time.Now()
	s.mu.Unlock()
}

// errHeartbeatTimeout marks a session torn down because no heartbeat reply
// arrived within the allowed staleness window, distinct from a transport
// read/write error, so it still drives the reconnect loop like one.
var errHeartbeatTimeout = errors.New("transport: heartbeat timeout")

// heartbeatLoop sends a heartbeat push on every tick and, mirroring the
// teacher's checkConnections staleness check, first verifies a reply
// arrived within HeartbeatInterval+HeartbeatTimeout of the last one. A
// stale connection is torn down with errHeartbeatTimeout so supervise
// closes it and enters the reconnect loop, satisfying spec.md §4.1's "no
// heartbeat reply within one interval" rule.
func (s *Supervisor) heartbeatLoop(ctx context.Context, conn Conn) error {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	deadline := s.cfg.HeartbeatInterval + s.cfg.HeartbeatTimeout

	s.mu.Lock()
	s.lastHeartbeatAck = time.Now()
	s.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.mu.Lock()
			last := s.lastHeartbeatAck
			s.mu.Unlock()
			if time.Since(last) > deadline {
				return errHeartbeatTimeout
			}

			data, binary := s.heartbeat()
			if err := conn.WriteMessage(data, binary); err != nil {
				return err
			}
			metrics.HeartbeatsTotal.Inc()
		}
	}
}

// errDisconnected marks a session teardown requested by Disconnect/Shutdown
// rather than a transport failure, so the supervise loop knows not to
// reconnect.
var errDisconnected = errors.New("transport: disconnected")

// reconnectLoop retries the dial with capped-exponential backoff until it
// succeeds, the context is cancelled, or the dial fails with a
// non-retryable *DialStatusError (e.g. a rejected handshake), in which case
// it gives up and leaves the supervisor Disconnected. Every
// WaitingToReconnect it publishes carries the most recent failure: cause
// (the error that ended the session) before the first retry, then the
// previous dial error.
func (s *Supervisor) reconnectLoop(ctx context.Context, cause error) Conn {
	lastErr := cause
	for attempt := 0; ; attempt++ {
		delay := s.cfg.Backoff.Delay(attempt, s.rng)
		s.setStatus(WaitingToReconnect, lastErr)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		dialCtx := ctx
		cancel := func() {}
		if s.cfg.ConnectTimeout > 0 {
			dialCtx, cancel = context.WithTimeout(ctx, s.cfg.ConnectTimeout)
		}
		conn, err := s.cfg.Dialer.Dial(dialCtx, s.cfg.URL)
		cancel()
		if err == nil {
			metrics.ReconnectsTotal.WithLabelValues("success").Inc()
			s.mu.Lock()
			s.conn = conn
			s.mu.Unlock()
			s.setStatus(Connected, nil)
			return conn
		}
		metrics.ReconnectsTotal.WithLabelValues("failure").Inc()
		var statusErr *DialStatusError
		if errors.As(err, &statusErr) {
			s.setStatus(Disconnected, err)
			return nil
		}
		lastErr = err
	}
}

// Send enqueues a frame for the writer goroutine. It blocks until the
// frame is queued or ctx is cancelled. It returns ErrShutdown once the
// supervisor is shutting down or shut down, and ErrNotConnected when there
// is no live connection (never connected, waiting to reconnect, or
// disconnected).
func (s *Supervisor) Send(ctx context.Context, data []byte, binary bool) error {
	s.mu.Lock()
	status := s.status
	s.mu.Unlock()

	switch status {
	case ShuttingDown, ShutDown:
		return ErrShutdown
	case NeverConnected, WaitingToReconnect, Disconnected:
		return ErrNotConnected
	}

	select {
	case s.outbound <- outboundMsg{data: data, binary: binary}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect tears down the current connection and stops the automatic
// reconnect loop. The supervisor returns to a state where Connect may be
// called again.
func (s *Supervisor) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	done := s.done
	conn := s.conn
	s.started = false
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.setStatus(Disconnected, nil)
	return nil
}

// Shutdown permanently terminates the supervisor: the current connection
// is closed, no further reconnects are attempted, and Statuses() channels
// are closed after the terminal ShutDown event.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.setStatus(ShuttingDown, nil)

	s.mu.Lock()
	started := s.started
	cancel := s.cancel
	done := s.done
	conn := s.conn
	s.mu.Unlock()

	if started {
		if conn != nil {
			conn.Close()
		}
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
		}
	}

	s.setStatus(ShutDown, nil)
	s.bus.closeAll()
	return nil
}
