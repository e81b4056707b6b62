// Package events implements the per-channel broadcast bus: every inbound
// server-pushed event is fanned out to subscribers through a bounded,
// drop-oldest ring buffer. The ring discipline is grounded on the teacher's
// internal/chat.MessageBuffer; the buffer itself is backed by
// github.com/eapache/queue the way momentics/hioload-ws's Executor wraps
// the same queue for task dispatch, rather than a hand-rolled slice ring.
package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/whisper/phoenixclient/internal/wire"
)

// Payload is a single server-pushed channel event.
type Payload struct {
	Event   string
	Payload wire.Payload
}

// ErrClosed is returned by Recv once the channel (and its bus) has closed.
var ErrClosed = errors.New("events: subscription closed")

// DefaultBufferSize is the per-subscriber buffer depth used when callers
// don't specify one.
const DefaultBufferSize = 64

// Bus fans Payload values out to any number of Subscribers.
type Bus struct {
	mu     sync.Mutex
	subs   map[*Subscriber]struct{}
	closed bool
}

// NewBus constructs an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscriber]struct{})}
}

// Subscribe registers a new Subscriber with the given buffer depth (falls
// back to DefaultBufferSize if <= 0).
func (b *Bus) Subscribe(bufSize int) *Subscriber {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	s := &Subscriber{
		q:      queue.New(),
		cap:    bufSize,
		notify: make(chan struct{}, 1),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.closed = true
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Unsubscribe removes s from the fan-out set. Safe to call more than once.
func (b *Bus) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
	s.close()
}

// Publish delivers p to every current subscriber, dropping the oldest
// buffered event for any subscriber whose buffer is full rather than
// blocking the caller (the reader goroutine feeding the Channel Manager).
func (b *Bus) Publish(p Payload) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		s.push(p)
	}
}

// Close permanently closes the bus and every current subscriber. Further
// Subscribe calls return an already-closed Subscriber.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		s.close()
	}
	b.subs = make(map[*Subscriber]struct{})
}

// Subscriber is a single consumer's view of a Bus.
type Subscriber struct {
	mu      sync.Mutex
	q       *queue.Queue
	cap     int
	notify  chan struct{}
	closed  bool
	dropped atomic.Uint64
}

func (s *Subscriber) push(p Payload) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.q.Length() >= s.cap {
		s.q.Remove()
		s.dropped.Add(1)
	}
	s.q.Add(p)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Recv blocks until an event is available, ctx is cancelled, or the
// subscription closes.
func (s *Subscriber) Recv(ctx context.Context) (Payload, error) {
	for {
		s.mu.Lock()
		if s.q.Length() > 0 {
			item := s.q.Peek()
			s.q.Remove()
			s.mu.Unlock()
			return item.(Payload), nil
		}
		if s.closed {
			s.mu.Unlock()
			return Payload{}, ErrClosed
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-ctx.Done():
			return Payload{}, ctx.Err()
		}
	}
}

// Lag reports how many events have been dropped for this subscriber
// because its buffer was full when they were published.
func (s *Subscriber) Lag() uint64 {
	return s.dropped.Load()
}
