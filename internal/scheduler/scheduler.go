// Package scheduler drives periodic alert evaluation passes.
package scheduler

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/sauravbhattacharya001/agentlens/internal/alerts"
)

var ErrAlreadyStarted = errors.New("scheduler already started")

// Evaluator is the slice of the alert engine the scheduler drives.
type Evaluator interface {
	EvaluateAll(ctx context.Context) (alerts.Summary, error)
}

type Scheduler struct {
	engine   Evaluator
	interval time.Duration
	logger   *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	tickerFactory func(interval time.Duration) schedulerTicker
}

func New(engine Evaluator, interval time.Duration, logger *log.Logger) *Scheduler {
	if engine == nil {
		panic("scheduler: engine is required")
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Scheduler{
		engine:   engine,
		interval: interval,
		logger:   logger,
		tickerFactory: func(interval time.Duration) schedulerTicker {
			return newRealTicker(interval)
		},
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	ticker := s.tickerFactory(s.interval)
	s.running = true
	s.stopCh = stopCh
	s.doneCh = doneCh
	s.mu.Unlock()

	go s.run(ctx, ticker, stopCh, doneCh)
	return nil
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stopCh := s.stopCh
	doneCh := s.doneCh
	s.running = false
	s.stopCh = nil
	s.doneCh = nil
	s.mu.Unlock()

	close(stopCh)
	<-doneCh
}

func (s *Scheduler) run(ctx context.Context, ticker schedulerTicker, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.Chan():
			s.evaluate(ctx)
		}
	}
}

func (s *Scheduler) evaluate(ctx context.Context) {
	summary, err := s.engine.EvaluateAll(ctx)
	if err != nil {
		s.logger.Printf("alert evaluation pass failed: %v", err)
		return
	}
	if summary.Fired > 0 || summary.Errors > 0 {
		s.logger.Printf("alert pass evaluated=%d fired=%d cooldown=%d ok=%d errors=%d",
			summary.Evaluated, summary.Fired, summary.Cooldown, summary.OK, summary.Errors)
	}
}

type schedulerTicker interface {
	Chan() <-chan time.Time
	Stop()
}

type realTicker struct {
	ticker *time.Ticker
}

func newRealTicker(interval time.Duration) *realTicker {
	return &realTicker{ticker: time.NewTicker(interval)}
}

func (t *realTicker) Chan() <-chan time.Time {
	return t.ticker.C
}

func (t *realTicker) Stop() {
	t.ticker.Stop()
}
