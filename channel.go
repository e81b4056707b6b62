package phoenixclient

import (
	"context"
	"time"

	"github.com/whisper/phoenixclient/internal/channelmgr"
	"github.com/whisper/phoenixclient/internal/events"
)

// ChannelState mirrors the per-channel join lifecycle from spec.md §3.
type ChannelState = channelmgr.State

// The ChannelState values a Channel moves through.
const (
	ChannelNeverJoined = channelmgr.NeverJoined
	ChannelJoining     = channelmgr.Joining
	ChannelJoined      = channelmgr.Joined
	ChannelJoinFailed  = channelmgr.JoinFailed
	ChannelLeaving     = channelmgr.Leaving
	ChannelLeft        = channelmgr.Left
	ChannelClosed      = channelmgr.Closed
)

// Channel is the shared handle for one (socket, topic) pair (spec.md §3): a
// thin façade over the Channel Manager's per-topic state machine, weakly
// back-referencing its owning Socket only through the manager it was handed
// at construction — the Socket, not the Channel, owns the authoritative
// registry.
type Channel struct {
	inner   *channelmgr.Channel
	payload Payload
}

// Topic returns the channel's topic string, e.g. "channel:broadcast:json".
func (c *Channel) Topic() string { return c.inner.Topic() }

// State returns the channel's current lifecycle state.
func (c *Channel) State() ChannelState { return c.inner.State() }

// IsJoined reports whether the channel is currently joined.
func (c *Channel) IsJoined() bool { return c.inner.IsJoined() }

// Join sends a phx_join with the channel's join payload and blocks until the
// server replies, the deadline elapses, or the socket disconnects/shuts
// down. On success it returns the server's ok-payload; the same payload is
// resent automatically on every future re-join after a reconnect.
func (c *Channel) Join(timeout time.Duration) (Payload, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	resp, err := c.inner.Join(ctx, c.payload, timeout)
	return resp, translateJoinErr(err)
}

// Leave sends phx_leave and waits (up to 5s) for acknowledgement; the
// channel is Left either way once the round trip completes or the socket is
// gone.
func (c *Channel) Leave() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.inner.Leave(ctx, 5*time.Second)
}

// Call sends event/payload on the channel and blocks for a correlated
// reply, up to timeout.
func (c *Channel) Call(event string, payload Payload, timeout time.Duration) (Payload, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	resp, err := c.inner.Call(ctx, event, payload, timeout)
	return resp, translateCallErr(err)
}

// Cast sends a fire-and-forget push on the channel. It succeeds once the
// frame is accepted into the outbound queue and never observes the server's
// handling of it (spec.md §9: cast cannot detect a server-side crash).
func (c *Channel) Cast(event string, payload Payload) error {
	return translateCallErr(c.inner.Cast(context.Background(), event, payload))
}

// EventPayload is a single server-pushed channel event delivered through
// Channel.Events (spec.md §6).
type EventPayload struct {
	Event   string
	Payload Payload
}

// EventStream is a subscription to a channel's inbound user events.
type EventStream struct {
	sub *events.Subscriber
}

// Events opens a new subscription to this channel's pushed events, with a
// bounded, drop-oldest buffer (spec.md §9).
func (c *Channel) Events() *EventStream {
	return &EventStream{sub: c.inner.Events(events.DefaultBufferSize)}
}

// Recv blocks until an event is available, ctx is cancelled, or the
// channel/socket closes.
func (e *EventStream) Recv(ctx context.Context) (EventPayload, error) {
	p, err := e.sub.Recv(ctx)
	if err != nil {
		return EventPayload{}, err
	}
	return EventPayload{Event: p.Event, Payload: p.Payload}, nil
}

// Lag reports how many events were dropped for this subscriber because its
// buffer was full when they were published.
func (e *EventStream) Lag() uint64 { return e.sub.Lag() }
