// Package router implements the Request/Reply Router: the msg_ref -> pending
// waiter correlation table behind call() and the fire-and-forget cast()
// primitive. Its pending-request bookkeeping is grounded on
// findnature/dcrdex's wsConn.respHandlers: register a waiter keyed by
// reference, arm a timer, complete or expire it exactly once.
package router

import (
	"context"
	"sync"
	"time"

	"github.com/whisper/phoenixclient/internal/metrics"
	"github.com/whisper/phoenixclient/internal/wire"
)

// SendFunc transmits an already-framed message. It is supplied by the
// caller (the root Socket) so this package stays ignorant of the transport
// and wire-encoding layers.
type SendFunc func(ctx context.Context, f wire.Frame) error

// Router correlates outbound requests with their replies.
type Router struct {
	send SendFunc

	mu      sync.Mutex
	pending map[uint64]*waiter
	closed  bool
	closeErr error
}

type waiter struct {
	resultCh chan result
	timer    *time.Timer
	once     sync.Once
}

type result struct {
	payload wire.Payload
	err     error
}

// New constructs a Router that transmits frames via send.
func New(send SendFunc) *Router {
	return &Router{
		send:    send,
		pending: make(map[uint64]*waiter),
	}
}

// Await sends f (which must carry a non-nil MsgRef) and blocks until a
// matching reply is delivered via Complete, the request times out, ctx is
// cancelled, or the router is failed/closed first.
func (r *Router) Await(ctx context.Context, f wire.Frame, timeout time.Duration) (wire.Payload, error) {
	if f.MsgRef == nil {
		return wire.Payload{}, wire.ErrMissingRef
	}
	msgRef := *f.MsgRef

	r.mu.Lock()
	if r.closed {
		err := r.closeErr
		r.mu.Unlock()
		return wire.Payload{}, err
	}
	w := &waiter{resultCh: make(chan result, 1)}
	w.timer = time.AfterFunc(timeout, func() { r.expire(msgRef) })
	r.pending[msgRef] = w
	metrics.PendingCalls.Set(float64(len(r.pending)))
	r.mu.Unlock()

	start := time.Now()
	if err := r.send(ctx, f); err != nil {
		r.remove(msgRef)
		return wire.Payload{}, err
	}

	select {
	case res := <-w.resultCh:
		if res.err == nil {
			metrics.CallLatency.Observe(time.Since(start).Seconds())
		}
		return res.payload, res.err
	case <-ctx.Done():
		r.remove(msgRef)
		return wire.Payload{}, ctx.Err()
	}
}

// Send transmits a fire-and-forget frame (f.MsgRef must be nil). There is
// no reply to correlate, so this returns as soon as the frame is handed to
// the transport.
func (r *Router) Send(ctx context.Context, f wire.Frame) error {
	r.mu.Lock()
	closed := r.closed
	err := r.closeErr
	r.mu.Unlock()
	if closed {
		return err
	}
	return r.send(ctx, f)
}

// Complete delivers a reply to the waiter registered for msgRef. It reports
// whether a waiter was found; a false result means the reply arrived after
// the request already expired or was never ours (a stale duplicate, or a
// reply for a ref this router never saw).
func (r *Router) Complete(msgRef uint64, status string, response wire.Payload) bool {
	w := r.remove(msgRef)
	if w == nil {
		return false
	}
	var res result
	switch status {
	case wire.StatusOK:
		res = result{payload: response}
	default:
		res = result{err: &wire.ReplyError{Payload: response}}
	}
	w.once.Do(func() {
		w.timer.Stop()
		w.resultCh <- res
	})
	return true
}

// FailAll completes every outstanding waiter with err. Used when the
// transport drops (SocketDisconnected) or the socket shuts down
// (Shutdown).
func (r *Router) FailAll(err error) {
	r.mu.Lock()
	pending := r.pending
	r.pending = make(map[uint64]*waiter)
	metrics.PendingCalls.Set(0)
	r.mu.Unlock()

	for _, w := range pending {
		w.once.Do(func() {
			w.timer.Stop()
			w.resultCh <- result{err: err}
		})
	}
}

// Close fails every outstanding waiter with err and rejects any future
// Await/Send calls with the same error. Used on socket Shutdown.
func (r *Router) Close(err error) {
	r.mu.Lock()
	r.closed = true
	r.closeErr = err
	r.mu.Unlock()
	r.FailAll(err)
}

// Fail completes the waiter for msgRef with err, if one is still pending.
// Unlike FailAll, this targets a single reference — used by the Channel
// Manager when a phx_close fails only the requests a specific channel owns
// (spec.md §4.2 rule 5), leaving every other channel's in-flight calls
// untouched.
func (r *Router) Fail(msgRef uint64, err error) bool {
	w := r.remove(msgRef)
	if w == nil {
		return false
	}
	w.once.Do(func() {
		w.timer.Stop()
		w.resultCh <- result{err: err}
	})
	return true
}

func (r *Router) expire(msgRef uint64) {
	w := r.remove(msgRef)
	if w == nil {
		return
	}
	w.once.Do(func() {
		w.resultCh <- result{err: wire.ErrTimeout}
	})
}

func (r *Router) remove(msgRef uint64) *waiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.pending[msgRef]
	if !ok {
		return nil
	}
	delete(r.pending, msgRef)
	metrics.PendingCalls.Set(float64(len(r.pending)))
	return w
}
