package types

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventTypeSessionStart EventType = "session_start"
	EventTypeSessionEnd   EventType = "session_end"
	EventTypeLLMCall      EventType = "llm_call"
	EventTypeToolCall     EventType = "tool_call"
	EventTypeAgentCall    EventType = "agent_call"
	EventTypeError        EventType = "error"
	EventTypeToolError    EventType = "tool_error"
	EventTypeAgentError   EventType = "agent_error"
	EventTypeGeneric      EventType = "generic"
)

func ValidEventType(t EventType) bool {
	switch t {
	case EventTypeSessionStart,
		EventTypeSessionEnd,
		EventTypeLLMCall,
		EventTypeToolCall,
		EventTypeAgentCall,
		EventTypeError,
		EventTypeToolError,
		EventTypeAgentError,
		EventTypeGeneric:
		return true
	default:
		return false
	}
}

type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusError     SessionStatus = "error"
	SessionStatusTimeout   SessionStatus = "timeout"
)

func ValidSessionStatus(s SessionStatus) bool {
	switch s {
	case SessionStatusActive, SessionStatusCompleted, SessionStatusError, SessionStatusTimeout:
		return true
	default:
		return false
	}
}

// EventRecord is the wire shape producers post to /v1/events. Fields are
// loosely validated: the ingestion pipeline sanitizes or skips records
// rather than rejecting the batch.
type EventRecord struct {
	EventID   string          `json:"event_id,omitempty"`
	SessionID string          `json:"session_id"`
	EventType EventType       `json:"event_type"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
	AgentName string          `json:"agent_name,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`

	InputData  json.RawMessage `json:"input_data,omitempty"`
	OutputData json.RawMessage `json:"output_data,omitempty"`

	Model     string `json:"model,omitempty"`
	TokensIn  int64  `json:"tokens_in,omitempty"`
	TokensOut int64  `json:"tokens_out,omitempty"`

	ToolCall      json.RawMessage `json:"tool_call,omitempty"`
	DecisionTrace json.RawMessage `json:"decision_trace,omitempty"`

	DurationMS *float64 `json:"duration_ms,omitempty"`

	// session_end extras. Totals overwrite the accumulated counters only
	// when explicitly non-zero.
	Status         SessionStatus `json:"status,omitempty"`
	EndedAt        *time.Time    `json:"ended_at,omitempty"`
	TotalTokensIn  int64         `json:"total_tokens_in,omitempty"`
	TotalTokensOut int64         `json:"total_tokens_out,omitempty"`
}
