package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sauravbhattacharya001/agentlens/internal/store"
	"github.com/sauravbhattacharya001/agentlens/types"
)

// ErrInvalidMetric reports an unknown metric name.
var ErrInvalidMetric = errors.New("invalid metric")

// Descriptions of every supported metric, exposed through the alert
// metrics catalog.
var Descriptions = map[types.Metric]string{
	types.MetricTotalTokens:         "Sum of tokens_in + tokens_out over sessions started in the window",
	types.MetricAvgTokensPerSession: "Mean per-session token sum over sessions started in the window",
	types.MetricErrorRate:           "Percentage of events in the window with type \"error\"",
	types.MetricAvgDurationMS:       "Mean event duration_ms in the window (events without a duration excluded)",
	types.MetricMaxDurationMS:       "Maximum event duration_ms in the window",
	types.MetricSessionCount:        "Count of sessions started in the window",
	types.MetricEventCount:          "Count of events in the window",
	types.MetricTokenRate:           "Event token sum in the window divided by the window length in minutes",
}

// Evaluator computes windowed aggregates over the store. The window is
// [now - window_minutes, now]; now comes from the injected clock so
// tests can simulate elapsed time.
type Evaluator struct {
	store store.Store
	now   func() time.Time
}

func NewEvaluator(st store.Store) *Evaluator {
	if st == nil {
		panic("metrics: store is required")
	}
	return &Evaluator{
		store: st,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// SetClock replaces the evaluator's clock. Intended for tests and for
// sharing one clock across evaluator and engine.
func (e *Evaluator) SetClock(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

func (e *Evaluator) Evaluate(ctx context.Context, metric types.Metric, windowMinutes int, agentFilter string) (float64, error) {
	if !types.ValidMetric(metric) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMetric, metric)
	}

	to := e.now()
	from := to.Add(-time.Duration(windowMinutes) * time.Minute)

	switch metric {
	case types.MetricTotalTokens, types.MetricAvgTokensPerSession, types.MetricSessionCount:
		agg, err := e.store.SessionAggregates(ctx, from, to, agentFilter)
		if err != nil {
			return 0, err
		}
		switch metric {
		case types.MetricTotalTokens:
			return float64(agg.TotalTokens), nil
		case types.MetricAvgTokensPerSession:
			if agg.SessionCount == 0 {
				return 0, nil
			}
			return float64(agg.TotalTokens) / float64(agg.SessionCount), nil
		default:
			return float64(agg.SessionCount), nil
		}
	default:
		agg, err := e.store.EventAggregates(ctx, from, to, agentFilter)
		if err != nil {
			return 0, err
		}
		switch metric {
		case types.MetricErrorRate:
			if agg.EventCount == 0 {
				return 0, nil
			}
			return 100 * float64(agg.ErrorCount) / float64(agg.EventCount), nil
		case types.MetricAvgDurationMS:
			if agg.AvgDurationMS == nil {
				return 0, nil
			}
			return *agg.AvgDurationMS, nil
		case types.MetricMaxDurationMS:
			if agg.MaxDurationMS == nil {
				return 0, nil
			}
			return *agg.MaxDurationMS, nil
		case types.MetricEventCount:
			return float64(agg.EventCount), nil
		default: // token_rate
			if windowMinutes <= 0 {
				return 0, nil
			}
			return float64(agg.TotalTokens) / float64(windowMinutes), nil
		}
	}
}
