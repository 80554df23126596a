package store

import (
	"encoding/json"
	"time"

	"github.com/sauravbhattacharya001/agentlens/types"
)

type Session struct {
	ID        string              `json:"session_id"`
	AgentName string              `json:"agent_name"`
	StartedAt time.Time           `json:"started_at"`
	EndedAt   *time.Time          `json:"ended_at,omitempty"`
	Metadata  json.RawMessage     `json:"metadata,omitempty"`
	TokensIn  int64               `json:"total_tokens_in"`
	TokensOut int64               `json:"total_tokens_out"`
	Status    types.SessionStatus `json:"status"`
}

// SessionEnd is the last-write-wins close applied by a session_end
// record. Token totals are overwritten only when OverrideTokens is set.
type SessionEnd struct {
	SessionID      string
	Status         types.SessionStatus
	EndedAt        time.Time
	OverrideTokens bool
	TokensIn       int64
	TokensOut      int64
}

type Event struct {
	ID            string          `json:"event_id"`
	SessionID     string          `json:"session_id"`
	EventType     types.EventType `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	InputData     json.RawMessage `json:"input_data,omitempty"`
	OutputData    json.RawMessage `json:"output_data,omitempty"`
	Model         string          `json:"model,omitempty"`
	TokensIn      int64           `json:"tokens_in"`
	TokensOut     int64           `json:"tokens_out"`
	ToolCall      json.RawMessage `json:"tool_call,omitempty"`
	DecisionTrace json.RawMessage `json:"decision_trace,omitempty"`
	DurationMS    *float64        `json:"duration_ms,omitempty"`
}

type AlertRule struct {
	ID              string         `json:"rule_id"`
	Name            string         `json:"name"`
	Metric          types.Metric   `json:"metric"`
	Operator        types.Operator `json:"operator"`
	Threshold       float64        `json:"threshold"`
	WindowMinutes   int            `json:"window_minutes"`
	AgentFilter     string         `json:"agent_filter,omitempty"`
	Enabled         bool           `json:"enabled"`
	CooldownMinutes int            `json:"cooldown_minutes"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

type AlertEvent struct {
	ID             string     `json:"alert_id"`
	RuleID         string     `json:"rule_id"`
	TriggeredAt    time.Time  `json:"triggered_at"`
	MetricValue    float64    `json:"metric_value"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

type AlertEventFilter struct {
	RuleID       string
	Acknowledged *bool
	After        *time.Time
	Before       *time.Time
	Limit        int
}

// SessionAggregates covers the session-scoped metrics: token sums and
// counts over sessions started in the window.
type SessionAggregates struct {
	SessionCount int64
	TotalTokens  int64
}

// EventAggregates covers the event-scoped metrics over events whose
// timestamp falls in the window. Duration stats exclude null durations.
type EventAggregates struct {
	EventCount    int64
	ErrorCount    int64
	TotalTokens   int64
	AvgDurationMS *float64
	MaxDurationMS *float64
}
