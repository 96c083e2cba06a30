package events

import (
	"errors"
	"testing"
	"time"
)

func receive(t *testing.T, ch chan interface{}) interface{} {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func assertEmpty(t *testing.T, ch chan interface{}) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected event %#v", v)
	default:
	}
}

func TestBus_TopicFiltering(t *testing.T) {
	bus := NewBus(DefaultPublishTimeout, 4)
	defer bus.Close()

	all := bus.Subscribe()
	closed := bus.SubscribeSessionClosed()
	update := bus.SubscribeForceUpdate()

	cause := errors.New("refresh 401")
	bus.Publish(SessionClosed{Reason: ReasonRefreshFailed, Err: cause})
	bus.Publish(ForceUpdateRequired{StatusCode: 426, Path: "/cart"})

	if ev, ok := receive(t, closed).(SessionClosed); !ok || ev.Reason != ReasonRefreshFailed || !errors.Is(ev.Err, cause) {
		t.Errorf("unexpected session event %#v", ev)
	}
	assertEmpty(t, closed)

	if ev, ok := receive(t, update).(ForceUpdateRequired); !ok || ev.StatusCode != 426 {
		t.Errorf("unexpected update event %#v", ev)
	}
	assertEmpty(t, update)

	receive(t, all)
	receive(t, all)

	if bus.Len() != 3 {
		t.Errorf("expected 3 subscribers, got %d", bus.Len())
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(DefaultPublishTimeout, 1)
	defer bus.Close()

	ch := bus.Subscribe()
	bus.Unsubscribe(ch)

	if bus.Len() != 0 {
		t.Errorf("expected no subscribers, got %d", bus.Len())
	}
	if _, open := <-ch; open {
		t.Error("expected evicted channel to be closed")
	}
	bus.Publish(SessionClosed{Reason: ReasonLogout})
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus(10*time.Millisecond, 0)
	defer bus.Close()
	_ = bus.Subscribe()

	done := make(chan struct{})
	go func() {
		bus.Publish(SessionClosed{Reason: ReasonLogout})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a subscriber that never reads")
	}
}

func TestPublisherFunc(t *testing.T) {
	var got []any
	p := PublisherFunc(func(v any) { got = append(got, v) })
	p.Publish(ForceUpdateRequired{StatusCode: 426})
	Nop.Publish("dropped")

	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
}
