package channelmgr

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/whisper/phoenixclient/internal/events"
	"github.com/whisper/phoenixclient/internal/metrics"
	"github.com/whisper/phoenixclient/internal/router"
	"github.com/whisper/phoenixclient/internal/wire"
)

// defaultRejoinTimeout bounds the self-initiated rejoin a phx_error drives
// (there is no caller waiting to supply one, unlike Manager.OnReconnected's
// rejoin after a transport loss).
const defaultRejoinTimeout = 5 * time.Second

// Channel tracks one topic's join lifecycle and fans its pushed events out
// through an events.Bus.
type Channel struct {
	topic string
	refs  *wire.RefCounter
	rt    *router.Router
	bus   *events.Bus

	mu          sync.Mutex
	state       State
	joinRef     *uint64
	joinPayload wire.Payload
	pendingRefs map[uint64]struct{}
}

func newChannel(topic string, refs *wire.RefCounter, rt *router.Router) *Channel {
	return &Channel{
		topic:       topic,
		refs:        refs,
		rt:          rt,
		bus:         events.NewBus(),
		state:       NeverJoined,
		pendingRefs: make(map[uint64]struct{}),
	}
}

// addPending/removePending track this channel's own outstanding msg_refs,
// so a phx_close can fail exactly the requests it owns (spec.md §4.2 rule
// 5) without reaching into every other channel's in-flight calls.
func (c *Channel) addPending(ref uint64) {
	c.mu.Lock()
	c.pendingRefs[ref] = struct{}{}
	c.mu.Unlock()
}

func (c *Channel) removePending(ref uint64) {
	c.mu.Lock()
	delete(c.pendingRefs, ref)
	c.mu.Unlock()
}

func (c *Channel) takePending() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	refs := make([]uint64, 0, len(c.pendingRefs))
	for r := range c.pendingRefs {
		refs = append(refs, r)
	}
	c.pendingRefs = make(map[uint64]struct{})
	return refs
}

// Topic returns the channel's topic string.
func (c *Channel) Topic() string { return c.topic }

// State returns the channel's current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsJoined reports whether the channel is currently joined.
func (c *Channel) IsJoined() bool {
	return c.State() == Joined
}

// Join sends a phx_join push with the given payload and blocks until the
// server replies, the request times out, or the channel's socket fails.
func (c *Channel) Join(ctx context.Context, payload wire.Payload, timeout time.Duration) (wire.Payload, error) {
	c.mu.Lock()
	switch c.state {
	case Joining, Joined, Leaving:
		c.mu.Unlock()
		return wire.Payload{}, wire.ErrAlreadyJoining
	case Closed:
		c.mu.Unlock()
		return wire.Payload{}, wire.ErrShutdown
	}
	newRef := c.refs.Next()
	c.joinRef = &newRef
	c.joinPayload = payload
	c.state = Joining
	c.mu.Unlock()

	c.addPending(newRef)
	resp, err := c.sendJoin(ctx, newRef, payload, timeout)
	c.removePending(newRef)

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case err == nil:
		c.state = Joined
		metrics.ActiveChannels.Inc()
	case isRejection(err):
		c.state = JoinFailed
	default:
		c.state = NeverJoined
	}
	return resp, translateJoinErr(err)
}

func (c *Channel) sendJoin(ctx context.Context, ref uint64, payload wire.Payload, timeout time.Duration) (wire.Payload, error) {
	f := wire.Frame{
		JoinRef: &ref,
		MsgRef:  &ref,
		Topic:   c.topic,
		Event:   wire.EventPhxJoin,
		Payload: payload,
	}
	return c.rt.Await(ctx, f, timeout)
}

func isRejection(err error) bool {
	var replyErr *wire.ReplyError
	return errors.As(err, &replyErr)
}

// translateJoinErr renames the generic call-reply error into the
// join-specific RejectedError; both carry the server's verbatim payload,
// only the name differs by call site (spec.md §7's JoinError taxonomy).
func translateJoinErr(err error) error {
	var replyErr *wire.ReplyError
	if errors.As(err, &replyErr) {
		return &wire.RejectedError{Payload: replyErr.Payload}
	}
	return err
}

// Call sends event/payload on the channel and blocks for a reply.
func (c *Channel) Call(ctx context.Context, event string, payload wire.Payload, timeout time.Duration) (wire.Payload, error) {
	c.mu.Lock()
	if c.state != Joined {
		c.mu.Unlock()
		return wire.Payload{}, wire.ErrNotJoined
	}
	joinRef := c.joinRef
	c.mu.Unlock()

	msgRef := c.refs.Next()
	f := wire.Frame{
		JoinRef: joinRef,
		MsgRef:  &msgRef,
		Topic:   c.topic,
		Event:   event,
		Payload: payload,
	}
	c.addPending(msgRef)
	defer c.removePending(msgRef)
	return c.rt.Await(ctx, f, timeout)
}

// Cast sends a fire-and-forget push on the channel.
func (c *Channel) Cast(ctx context.Context, event string, payload wire.Payload) error {
	c.mu.Lock()
	if c.state != Joined {
		c.mu.Unlock()
		return wire.ErrNotJoined
	}
	joinRef := c.joinRef
	c.mu.Unlock()

	f := wire.Frame{
		JoinRef: joinRef,
		Topic:   c.topic,
		Event:   event,
		Payload: payload,
	}
	return c.rt.Send(ctx, f)
}

// Leave sends phx_leave and waits for acknowledgement (or timeout); the
// channel is treated as Left either way once the round trip completes.
func (c *Channel) Leave(ctx context.Context, timeout time.Duration) error {
	c.mu.Lock()
	if c.state != Joined && c.state != Joining {
		wasLeft := c.state == Left || c.state == Closed
		c.mu.Unlock()
		if wasLeft {
			return nil
		}
		return wire.ErrNotJoined
	}
	joinRef := c.joinRef
	c.state = Leaving
	c.mu.Unlock()

	msgRef := c.refs.Next()
	f := wire.Frame{
		JoinRef: joinRef,
		MsgRef:  &msgRef,
		Topic:   c.topic,
		Event:   wire.EventPhxLeave,
		Payload: wire.JSONPayload(json.RawMessage(`{}`)),
	}
	c.addPending(msgRef)
	_, err := c.rt.Await(ctx, f, timeout)
	c.removePending(msgRef)

	c.mu.Lock()
	c.state = Left
	c.mu.Unlock()
	metrics.ActiveChannels.Dec()
	return err
}

// Events returns a new subscription to this channel's pushed events.
func (c *Channel) Events(bufSize int) *events.Subscriber {
	return c.bus.Subscribe(bufSize)
}

// route applies a frame already confirmed to belong to this channel and
// whose join_ref matched (callers enforce that before calling route).
func (c *Channel) route(f wire.Frame) {
	switch f.Event {
	case wire.EventPhxReply:
		if f.MsgRef == nil {
			return
		}
		status, resp, err := wire.DecodeReply(f.Payload)
		if err != nil {
			return
		}
		c.rt.Complete(*f.MsgRef, status, resp)
	case wire.EventPhxClose:
		c.mu.Lock()
		c.state = Left
		c.mu.Unlock()
		for _, ref := range c.takePending() {
			c.rt.Fail(ref, wire.ErrSocketDisconnected)
		}
		c.bus.Publish(events.Payload{Event: f.Event, Payload: f.Payload})
	case wire.EventPhxError:
		// phx_error marks the channel for re-join rather than closing it
		// (spec.md §4.2 rule 5) — the transport itself is still up, only
		// this channel's join has errored, so nothing else will rejoin it
		// for us; drive the rejoin here rather than waiting on
		// Manager.OnReconnected, which only fires after a transport loss.
		c.mu.Lock()
		c.state = Joining
		c.mu.Unlock()
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), defaultRejoinTimeout)
			defer cancel()
			c.rejoin(ctx, defaultRejoinTimeout)
		}()
		c.bus.Publish(events.Payload{Event: f.Event, Payload: f.Payload})
	default:
		c.bus.Publish(events.Payload{Event: f.Event, Payload: f.Payload})
	}
}

// currentJoinRef returns the channel's tentative-or-confirmed join_ref, or
// nil if the channel has never started joining.
func (c *Channel) currentJoinRef() *uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joinRef
}

// markTransportLost moves a joined/joining channel back to Joining so an
// automatic rejoin will pick it up once the transport reconnects.
func (c *Channel) markTransportLost() (needsRejoin bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Joined || c.state == Joining {
		c.state = Joining
		return true
	}
	return false
}

// rejoin re-sends phx_join with the channel's original join payload, used
// after the transport reconnects. Errors are swallowed (there is no caller
// waiting); the channel's state reflects the outcome for observers.
func (c *Channel) rejoin(ctx context.Context, timeout time.Duration) {
	c.mu.Lock()
	payload := c.joinPayload
	newRef := c.refs.Next()
	c.joinRef = &newRef
	c.mu.Unlock()

	c.addPending(newRef)
	_, err := c.sendJoin(ctx, newRef, payload, timeout)
	c.removePending(newRef)

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case err == nil:
		c.state = Joined
	case isRejection(err):
		c.state = JoinFailed
	default:
		c.state = NeverJoined
	}
}

// markClosed transitions the channel to its terminal state on socket
// shutdown.
func (c *Channel) markClosed() {
	c.mu.Lock()
	c.state = Closed
	c.mu.Unlock()
	c.bus.Close()
}
