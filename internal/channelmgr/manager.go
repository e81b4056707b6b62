package channelmgr

import (
	"context"
	"sync"
	"time"

	"github.com/whisper/phoenixclient/internal/metrics"
	"github.com/whisper/phoenixclient/internal/router"
	"github.com/whisper/phoenixclient/internal/wire"
)

// Manager owns every Channel for one socket and implements the inbound
// routing rules from spec.md §4.2: heartbeat replies go straight to the
// router; everything else is matched by topic, then by join_ref, before a
// channel ever sees a frame.
type Manager struct {
	refs *wire.RefCounter
	rt   *router.Router

	mu       sync.Mutex
	channels map[string]*Channel
}

// New constructs a Manager sharing refs and rt with the rest of the socket.
func New(refs *wire.RefCounter, rt *router.Router) *Manager {
	return &Manager{
		refs:     refs,
		rt:       rt,
		channels: make(map[string]*Channel),
	}
}

// Channel returns the Channel for topic, creating it in the NeverJoined
// state if this is the first time it's been requested.
func (m *Manager) Channel(topic string) *Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[topic]
	if !ok {
		ch = newChannel(topic, m.refs, m.rt)
		m.channels[topic] = ch
	}
	return ch
}

// Route applies the inbound frame routing rules: heartbeat acks complete
// directly against the router; any other frame is matched to a channel by
// topic and join_ref before it is allowed to complete a waiter or reach
// subscribers.
func (m *Manager) Route(f wire.Frame) {
	if f.Topic == wire.TopicPhoenix && f.Event == wire.EventPhxReply {
		if f.MsgRef == nil {
			return
		}
		status, resp, err := wire.DecodeReply(f.Payload)
		if err != nil {
			return
		}
		m.rt.Complete(*f.MsgRef, status, resp)
		return
	}

	m.mu.Lock()
	ch, ok := m.channels[f.Topic]
	m.mu.Unlock()
	if !ok {
		metrics.FramesDroppedTotal.WithLabelValues("unknown_topic").Inc()
		return
	}

	cur := ch.currentJoinRef()
	if cur == nil || f.JoinRef == nil || *f.JoinRef != *cur {
		metrics.FramesDroppedTotal.WithLabelValues("stale_join_ref").Inc()
		return
	}

	ch.route(f)
}

// OnTransportLost moves every joined/joining channel back to Joining so a
// subsequent OnReconnected will re-establish it.
func (m *Manager) OnTransportLost() {
	m.mu.Lock()
	channels := make([]*Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		channels = append(channels, ch)
	}
	m.mu.Unlock()

	for _, ch := range channels {
		ch.markTransportLost()
	}
}

// OnReconnected re-joins every channel left in the Joining state by a prior
// transport loss. Each rejoin runs in its own goroutine with its own
// timeout since nothing is blocked waiting on the outcome.
func (m *Manager) OnReconnected(rejoinTimeout time.Duration) {
	m.mu.Lock()
	channels := make([]*Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		channels = append(channels, ch)
	}
	m.mu.Unlock()

	for _, ch := range channels {
		if ch.State() != Joining {
			continue
		}
		go func(ch *Channel) {
			ctx, cancel := context.WithTimeout(context.Background(), rejoinTimeout)
			defer cancel()
			ch.rejoin(ctx, rejoinTimeout)
		}(ch)
	}
}

// Shutdown closes every channel permanently.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	channels := make([]*Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		channels = append(channels, ch)
	}
	m.mu.Unlock()

	for _, ch := range channels {
		ch.markClosed()
	}
}
