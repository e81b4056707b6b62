package events

import (
	"context"
	"testing"
	"time"
)

func TestPublish_DeliversToSubscriber(t *testing.T) {
	b := NewBus()
	s := b.Subscribe(4)
	b.Publish(Payload{Event: "hello"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p, err := s.Recv(ctx)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if p.Event != "hello" {
		t.Errorf("got event %q", p.Event)
	}
}

func TestPublish_DropsOldestWhenFull(t *testing.T) {
	b := NewBus()
	s := b.Subscribe(2)
	b.Publish(Payload{Event: "a"})
	b.Publish(Payload{Event: "b"})
	b.Publish(Payload{Event: "c"}) // should drop "a"

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	first, err := s.Recv(ctx)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if first.Event != "b" {
		t.Errorf("expected oldest retained event to be %q, got %q", "b", first.Event)
	}
	if s.Lag() != 1 {
		t.Errorf("expected lag 1, got %d", s.Lag())
	}
}

func TestClose_UnblocksRecv(t *testing.T) {
	b := NewBus()
	s := b.Subscribe(4)

	done := make(chan error, 1)
	go func() {
		_, err := s.Recv(context.Background())
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	b.Close()

	select {
	case err := <-done:
		if err != ErrClosed {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Recv did not unblock after Close")
	}
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	b := NewBus()
	s := b.Subscribe(4)
	b.Unsubscribe(s)
	b.Publish(Payload{Event: "ignored"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := s.Recv(ctx)
	if err != ErrClosed {
		t.Errorf("expected ErrClosed after unsubscribe, got %v", err)
	}
}
