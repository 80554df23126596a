package dispatch

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/sauravbhattacharya001/agentlens/internal/alerts"
	"github.com/sauravbhattacharya001/agentlens/internal/store"
	"github.com/sauravbhattacharya001/agentlens/internal/subscribers"
)

type fakeSubscriber struct {
	name      string
	failUntil int

	mu    sync.Mutex
	calls int
	ch    chan alerts.Notification
}

func (f *fakeSubscriber) Name() string {
	return f.name
}

func (f *fakeSubscriber) Handle(_ context.Context, notification alerts.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failUntil {
		return errors.New("forced failure")
	}
	if f.ch != nil {
		f.ch <- notification
	}
	return nil
}

func (f *fakeSubscriber) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestDispatcherRetriesThenSucceeds(t *testing.T) {
	logger := log.New(os.Stdout, "", 0)
	sub := &fakeSubscriber{name: "sub", failUntil: 2, ch: make(chan alerts.Notification, 1)}
	d := New(logger, []subscribers.Subscriber{sub})
	notification := alerts.Notification{Event: store.AlertEvent{ID: "alert_1"}}

	d.Dispatch(context.Background(), notification)

	select {
	case got := <-sub.ch:
		if got.Event.ID != notification.Event.ID {
			t.Fatalf("unexpected alert id: %s", got.Event.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for dispatch")
	}

	if calls := sub.Calls(); calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDispatcherStopsAfterRetries(t *testing.T) {
	logger := log.New(os.Stdout, "", 0)
	sub := &fakeSubscriber{name: "sub", failUntil: 10, ch: make(chan alerts.Notification, 1)}
	d := New(logger, []subscribers.Subscriber{sub})
	notification := alerts.Notification{Event: store.AlertEvent{ID: "alert_2"}}

	d.Dispatch(context.Background(), notification)
	time.Sleep(800 * time.Millisecond)

	if calls := sub.Calls(); calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	select {
	case <-sub.ch:
		t.Fatalf("did not expect successful dispatch")
	default:
	}
}

func TestDispatcherOutlivesCallerContext(t *testing.T) {
	logger := log.New(os.Stdout, "", 0)
	// First attempt fails so the retry loop has to survive the
	// caller's cancellation to deliver.
	sub := &fakeSubscriber{name: "sub", failUntil: 1, ch: make(chan alerts.Notification, 1)}
	d := New(logger, []subscribers.Subscriber{sub})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Dispatch(ctx, alerts.Notification{Event: store.AlertEvent{ID: "alert_4"}})

	select {
	case got := <-sub.ch:
		if got.Event.ID != "alert_4" {
			t.Fatalf("unexpected alert id: %s", got.Event.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("delivery died with the caller context")
	}
	if calls := sub.Calls(); calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestDispatcherFansOutToAllSubscribers(t *testing.T) {
	logger := log.New(os.Stdout, "", 0)
	first := &fakeSubscriber{name: "first", ch: make(chan alerts.Notification, 1)}
	second := &fakeSubscriber{name: "second", ch: make(chan alerts.Notification, 1)}
	d := New(logger, []subscribers.Subscriber{first, second})

	d.Dispatch(context.Background(), alerts.Notification{Event: store.AlertEvent{ID: "alert_3"}})

	for _, sub := range []*fakeSubscriber{first, second} {
		select {
		case <-sub.ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for subscriber %s", sub.name)
		}
	}
}
