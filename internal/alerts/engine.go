package alerts

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/sauravbhattacharya001/agentlens/internal/ids"
	"github.com/sauravbhattacharya001/agentlens/internal/metrics"
	"github.com/sauravbhattacharya001/agentlens/internal/store"
	"github.com/sauravbhattacharya001/agentlens/types"
)

// Notification carries one fired alert to interested subscribers.
type Notification struct {
	Rule  store.AlertRule  `json:"rule"`
	Event store.AlertEvent `json:"event"`
}

type RuleResult struct {
	RuleID       string        `json:"rule_id"`
	Name         string        `json:"name"`
	Metric       types.Metric  `json:"metric"`
	CurrentValue float64       `json:"current_value"`
	Threshold    float64       `json:"threshold"`
	Outcome      types.Outcome `json:"status"`
	AlertID      string        `json:"alert_id,omitempty"`
	Error        string        `json:"error,omitempty"`
}

type Summary struct {
	Evaluated int          `json:"evaluated"`
	Fired     int          `json:"fired"`
	Cooldown  int          `json:"cooldown"`
	OK        int          `json:"ok"`
	Errors    int          `json:"errors"`
	Results   []RuleResult `json:"results"`
}

type Option func(*Engine)

// WithNotifier registers a callback invoked once per fired alert.
func WithNotifier(notify func(context.Context, Notification)) Option {
	return func(e *Engine) {
		e.notify = notify
	}
}

// WithClock replaces the engine's clock so tests can simulate cooldown
// elapse without sleeping.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine evaluates every enabled rule against its windowed metric and
// persists deduplicated alert events under the rule's cooldown.
type Engine struct {
	store     store.Store
	evaluator *metrics.Evaluator
	logger    *log.Logger
	notify    func(context.Context, Notification)
	now       func() time.Time

	// Serializes evaluate-all passes; together with the store's
	// check-and-insert transaction this keeps a rule from double-firing
	// within its cooldown.
	evalMu sync.Mutex
}

func NewEngine(st store.Store, evaluator *metrics.Evaluator, logger *log.Logger, opts ...Option) *Engine {
	if st == nil {
		panic("alerts: store is required")
	}
	if evaluator == nil {
		panic("alerts: evaluator is required")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	engine := &Engine{
		store:     st,
		evaluator: evaluator,
		logger:    logger,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(engine)
		}
	}
	return engine
}

// EvaluateAll runs one pass over every enabled rule. A rule with an
// unknown metric is reported as a per-rule error; the remaining rules
// still evaluate.
func (e *Engine) EvaluateAll(ctx context.Context) (Summary, error) {
	e.evalMu.Lock()
	defer e.evalMu.Unlock()

	enabled := true
	rules, err := e.store.ListRules(ctx, &enabled)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Results: make([]RuleResult, 0, len(rules))}
	for _, rule := range rules {
		result := e.evaluateRule(ctx, rule)
		summary.Results = append(summary.Results, result)
		summary.Evaluated++
		switch result.Outcome {
		case types.OutcomeFired:
			summary.Fired++
		case types.OutcomeCooldown:
			summary.Cooldown++
		case types.OutcomeError:
			summary.Errors++
		default:
			summary.OK++
		}
	}
	return summary, nil
}

func (e *Engine) evaluateRule(ctx context.Context, rule store.AlertRule) RuleResult {
	result := RuleResult{
		RuleID:    rule.ID,
		Name:      rule.Name,
		Metric:    rule.Metric,
		Threshold: rule.Threshold,
	}

	value, err := e.evaluator.Evaluate(ctx, rule.Metric, rule.WindowMinutes, rule.AgentFilter)
	if err != nil {
		if !errors.Is(err, metrics.ErrInvalidMetric) {
			e.logger.Printf("rule %s evaluation failed: %v", rule.ID, err)
		}
		result.Outcome = types.OutcomeError
		result.Error = err.Error()
		return result
	}
	result.CurrentValue = value

	if !rule.Operator.Compare(value, rule.Threshold) {
		result.Outcome = types.OutcomeOK
		return result
	}

	now := e.now()
	cutoff := now.Add(-time.Duration(rule.CooldownMinutes) * time.Minute)
	rec := store.AlertEvent{
		ID:          ids.New(),
		RuleID:      rule.ID,
		TriggeredAt: now,
		MetricValue: value,
	}
	created, err := e.store.CreateAlertEventIfQuiet(ctx, rule.ID, cutoff, rec)
	if err != nil {
		e.logger.Printf("rule %s alert insert failed: %v", rule.ID, err)
		result.Outcome = types.OutcomeError
		result.Error = err.Error()
		return result
	}
	if !created {
		result.Outcome = types.OutcomeCooldown
		return result
	}

	result.Outcome = types.OutcomeFired
	result.AlertID = rec.ID
	e.logger.Printf("alert fired rule=%s metric=%s value=%v threshold=%v", rule.ID, rule.Metric, value, rule.Threshold)
	if e.notify != nil {
		e.notify(ctx, Notification{Rule: rule, Event: rec})
	}
	return result
}
