// Package dispatch fans fired alerts out to subscribers with retry.
package dispatch

import (
	"context"
	"log"
	"time"

	"github.com/sauravbhattacharya001/agentlens/internal/alerts"
	"github.com/sauravbhattacharya001/agentlens/internal/subscribers"
)

type Dispatcher struct {
	logger       *log.Logger
	subscribers  []subscribers.Subscriber
	retryCount   int
	retryBackoff time.Duration
}

func New(logger *log.Logger, subs []subscribers.Subscriber) *Dispatcher {
	return &Dispatcher{
		logger:       logger,
		subscribers:  subs,
		retryCount:   3,
		retryBackoff: 150 * time.Millisecond,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, notification alerts.Notification) {
	// Delivery runs async and must outlive the triggering request;
	// keep the caller's values but drop its cancellation.
	ctx = context.WithoutCancel(ctx)
	for _, sub := range d.subscribers {
		s := sub
		go d.dispatchOne(ctx, s, notification)
	}
}

func (d *Dispatcher) dispatchOne(ctx context.Context, sub subscribers.Subscriber, notification alerts.Notification) {
	for attempt := 1; attempt <= d.retryCount; attempt++ {
		err := sub.Handle(ctx, notification)
		if err == nil {
			return
		}

		d.logger.Printf("subscriber=%s alert_id=%s attempt=%d err=%v", sub.Name(), notification.Event.ID, attempt, err)
		if attempt == d.retryCount {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.retryBackoff):
		}
	}
}
