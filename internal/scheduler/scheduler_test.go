package scheduler

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/sauravbhattacharya001/agentlens/internal/alerts"
)

type manualTicker struct {
	ch chan time.Time
}

func (t *manualTicker) Chan() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()                  {}

type recordingEngine struct {
	mu      sync.Mutex
	calls   int
	summary alerts.Summary
	err     error
}

func (e *recordingEngine) EvaluateAll(context.Context) (alerts.Summary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return e.summary, e.err
}

func (e *recordingEngine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *recordingEngine) waitForCount(t *testing.T, want int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if e.Count() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d evaluation passes, got %d", want, e.Count())
}

func TestSchedulerRunsPassPerTick(t *testing.T) {
	engine := &recordingEngine{}
	s := New(engine, time.Minute, log.New(io.Discard, "", 0))

	ticker := &manualTicker{ch: make(chan time.Time, 8)}
	s.tickerFactory = func(time.Duration) schedulerTicker { return ticker }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start scheduler: %v", err)
	}
	defer s.Stop()

	ticker.ch <- time.Now()
	engine.waitForCount(t, 1, 2*time.Second)

	ticker.ch <- time.Now()
	ticker.ch <- time.Now()
	engine.waitForCount(t, 3, 2*time.Second)
}

func TestSchedulerDoubleStart(t *testing.T) {
	engine := &recordingEngine{}
	s := New(engine, time.Minute, nil)
	s.tickerFactory = func(time.Duration) schedulerTicker {
		return &manualTicker{ch: make(chan time.Time)}
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start scheduler: %v", err)
	}
	defer s.Stop()

	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestSchedulerStopHaltsPasses(t *testing.T) {
	engine := &recordingEngine{}
	s := New(engine, time.Minute, nil)

	ticker := &manualTicker{ch: make(chan time.Time, 2)}
	s.tickerFactory = func(time.Duration) schedulerTicker { return ticker }

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start scheduler: %v", err)
	}
	ticker.ch <- time.Now()
	engine.waitForCount(t, 1, 2*time.Second)

	s.Stop()
	before := engine.Count()
	select {
	case ticker.ch <- time.Now():
	default:
	}
	time.Sleep(50 * time.Millisecond)
	if got := engine.Count(); got != before {
		t.Fatalf("expected no passes after stop, got %d extra", got-before)
	}

	// Stop is idempotent.
	s.Stop()
}

func TestSchedulerKeepsRunningOnError(t *testing.T) {
	engine := &recordingEngine{err: errors.New("db gone")}
	s := New(engine, time.Minute, log.New(io.Discard, "", 0))

	ticker := &manualTicker{ch: make(chan time.Time, 4)}
	s.tickerFactory = func(time.Duration) schedulerTicker { return ticker }

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start scheduler: %v", err)
	}
	defer s.Stop()

	ticker.ch <- time.Now()
	ticker.ch <- time.Now()
	engine.waitForCount(t, 2, 2*time.Second)
}
