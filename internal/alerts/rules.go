package alerts

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sauravbhattacharya001/agentlens/internal/ids"
	"github.com/sauravbhattacharya001/agentlens/internal/metrics"
	"github.com/sauravbhattacharya001/agentlens/internal/store"
	"github.com/sauravbhattacharya001/agentlens/types"
)

const (
	defaultWindowMinutes   = 60
	defaultCooldownMinutes = 15
)

var ErrInvalidRule = errors.New("invalid rule")

// RuleSpec is the producer-facing shape for creating a rule. Zero
// window/cooldown values take the defaults; Enabled defaults to true.
type RuleSpec struct {
	Name            string         `json:"name"`
	Metric          types.Metric   `json:"metric"`
	Operator        types.Operator `json:"operator"`
	Threshold       float64        `json:"threshold"`
	WindowMinutes   int            `json:"window_minutes"`
	AgentFilter     string         `json:"agent_filter"`
	Enabled         *bool          `json:"enabled"`
	CooldownMinutes int            `json:"cooldown_minutes"`
}

// RulePatch is a partial rule update; nil fields keep current values.
type RulePatch struct {
	Name            *string         `json:"name"`
	Metric          *types.Metric   `json:"metric"`
	Operator        *types.Operator `json:"operator"`
	Threshold       *float64        `json:"threshold"`
	WindowMinutes   *int            `json:"window_minutes"`
	AgentFilter     *string         `json:"agent_filter"`
	Enabled         *bool           `json:"enabled"`
	CooldownMinutes *int            `json:"cooldown_minutes"`
}

func (e *Engine) CreateRule(ctx context.Context, spec RuleSpec) (store.AlertRule, error) {
	now := e.now()
	rule := store.AlertRule{
		ID:              ids.New(),
		Name:            strings.TrimSpace(spec.Name),
		Metric:          spec.Metric,
		Operator:        spec.Operator,
		Threshold:       spec.Threshold,
		WindowMinutes:   spec.WindowMinutes,
		AgentFilter:     strings.TrimSpace(spec.AgentFilter),
		Enabled:         true,
		CooldownMinutes: spec.CooldownMinutes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if spec.Enabled != nil {
		rule.Enabled = *spec.Enabled
	}
	if rule.WindowMinutes == 0 {
		rule.WindowMinutes = defaultWindowMinutes
	}
	if rule.CooldownMinutes == 0 {
		rule.CooldownMinutes = defaultCooldownMinutes
	}

	if err := validateRule(rule); err != nil {
		return store.AlertRule{}, err
	}
	if err := e.store.CreateRule(ctx, rule); err != nil {
		return store.AlertRule{}, err
	}
	return rule, nil
}

func (e *Engine) UpdateRule(ctx context.Context, ruleID string, patch RulePatch) (store.AlertRule, error) {
	rule, err := e.store.GetRule(ctx, ruleID)
	if err != nil {
		return store.AlertRule{}, err
	}

	if patch.Name != nil {
		rule.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Metric != nil {
		rule.Metric = *patch.Metric
	}
	if patch.Operator != nil {
		rule.Operator = *patch.Operator
	}
	if patch.Threshold != nil {
		rule.Threshold = *patch.Threshold
	}
	if patch.WindowMinutes != nil {
		rule.WindowMinutes = *patch.WindowMinutes
	}
	if patch.AgentFilter != nil {
		rule.AgentFilter = strings.TrimSpace(*patch.AgentFilter)
	}
	if patch.Enabled != nil {
		rule.Enabled = *patch.Enabled
	}
	if patch.CooldownMinutes != nil {
		rule.CooldownMinutes = *patch.CooldownMinutes
	}
	rule.UpdatedAt = e.now()

	if err := validateRule(rule); err != nil {
		return store.AlertRule{}, err
	}
	if err := e.store.UpdateRule(ctx, rule); err != nil {
		return store.AlertRule{}, err
	}
	return rule, nil
}

func (e *Engine) DeleteRule(ctx context.Context, ruleID string) error {
	return e.store.DeleteRule(ctx, ruleID)
}

func (e *Engine) GetRule(ctx context.Context, ruleID string) (store.AlertRule, error) {
	return e.store.GetRule(ctx, ruleID)
}

func (e *Engine) ListRules(ctx context.Context, enabled *bool) ([]store.AlertRule, error) {
	return e.store.ListRules(ctx, enabled)
}

func validateRule(rule store.AlertRule) error {
	if rule.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if !types.ValidMetric(rule.Metric) {
		return fmt.Errorf("%w: unknown metric %q", ErrInvalidRule, rule.Metric)
	}
	if !types.ValidOperator(rule.Operator) {
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidRule, rule.Operator)
	}
	if math.IsNaN(rule.Threshold) || math.IsInf(rule.Threshold, 0) {
		return fmt.Errorf("%w: threshold must be a finite number", ErrInvalidRule)
	}
	if rule.WindowMinutes <= 0 {
		return fmt.Errorf("%w: window_minutes must be > 0", ErrInvalidRule)
	}
	if rule.CooldownMinutes <= 0 {
		return fmt.Errorf("%w: cooldown_minutes must be > 0", ErrInvalidRule)
	}
	return nil
}

// MetricInfo is one entry of the metric catalog.
type MetricInfo struct {
	Name        types.Metric `json:"name"`
	Description string       `json:"description"`
}

// Catalog lists the supported metrics and operators.
type Catalog struct {
	Metrics   []MetricInfo     `json:"metrics"`
	Operators []types.Operator `json:"operators"`
}

func MetricCatalog() Catalog {
	out := Catalog{Operators: types.Operators()}
	for _, metric := range types.Metrics() {
		out.Metrics = append(out.Metrics, MetricInfo{
			Name:        metric,
			Description: metrics.Descriptions[metric],
		})
	}
	return out
}

// AlertEventQuery mirrors the list filters on /v1/alerts/events.
type AlertEventQuery struct {
	RuleID       string
	Acknowledged *bool
	After        *time.Time
	Before       *time.Time
	Limit        int
}

func (e *Engine) ListAlertEvents(ctx context.Context, query AlertEventQuery) ([]store.AlertEvent, error) {
	return e.store.ListAlertEvents(ctx, store.AlertEventFilter{
		RuleID:       query.RuleID,
		Acknowledged: query.Acknowledged,
		After:        query.After,
		Before:       query.Before,
		Limit:        query.Limit,
	})
}

func (e *Engine) Acknowledge(ctx context.Context, alertID string) error {
	return e.store.AcknowledgeAlertEvent(ctx, alertID, e.now())
}
