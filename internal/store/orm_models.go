package store

import (
	"encoding/json"
	"time"

	"github.com/sauravbhattacharya001/agentlens/types"
)

type sessionRow struct {
	ID        string     `gorm:"primaryKey;size:191"`
	AgentName string     `gorm:"size:191;not null;index"`
	StartedAt time.Time  `gorm:"not null;index"`
	EndedAt   *time.Time ``
	Metadata  string     `gorm:"type:text"`
	TokensIn  int64      `gorm:"not null"`
	TokensOut int64      `gorm:"not null"`
	Status    string     `gorm:"size:32;not null"`
}

func (sessionRow) TableName() string {
	return "sessions"
}

func (r sessionRow) toRecord() Session {
	return Session{
		ID:        r.ID,
		AgentName: r.AgentName,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
		Metadata:  rawFromColumn(r.Metadata),
		TokensIn:  r.TokensIn,
		TokensOut: r.TokensOut,
		Status:    types.SessionStatus(r.Status),
	}
}

func sessionRowFromRecord(rec Session) sessionRow {
	return sessionRow{
		ID:        rec.ID,
		AgentName: rec.AgentName,
		StartedAt: rec.StartedAt,
		EndedAt:   rec.EndedAt,
		Metadata:  columnFromRaw(rec.Metadata),
		TokensIn:  rec.TokensIn,
		TokensOut: rec.TokensOut,
		Status:    string(rec.Status),
	}
}

type eventRow struct {
	ID            string    `gorm:"primaryKey;size:191"`
	SessionID     string    `gorm:"size:191;not null;index"`
	EventType     string    `gorm:"size:32;not null;index"`
	Timestamp     time.Time `gorm:"not null;index"`
	InputData     string    `gorm:"type:text"`
	OutputData    string    `gorm:"type:text"`
	Model         string    `gorm:"size:191"`
	TokensIn      int64     `gorm:"not null"`
	TokensOut     int64     `gorm:"not null"`
	ToolCall      string    `gorm:"type:text"`
	DecisionTrace string    `gorm:"type:text"`
	DurationMS    *float64  ``
}

func (eventRow) TableName() string {
	return "events"
}

func (r eventRow) toRecord() Event {
	return Event{
		ID:            r.ID,
		SessionID:     r.SessionID,
		EventType:     types.EventType(r.EventType),
		Timestamp:     r.Timestamp,
		InputData:     rawFromColumn(r.InputData),
		OutputData:    rawFromColumn(r.OutputData),
		Model:         r.Model,
		TokensIn:      r.TokensIn,
		TokensOut:     r.TokensOut,
		ToolCall:      rawFromColumn(r.ToolCall),
		DecisionTrace: rawFromColumn(r.DecisionTrace),
		DurationMS:    r.DurationMS,
	}
}

func eventRowFromRecord(rec Event) eventRow {
	return eventRow{
		ID:            rec.ID,
		SessionID:     rec.SessionID,
		EventType:     string(rec.EventType),
		Timestamp:     rec.Timestamp,
		InputData:     columnFromRaw(rec.InputData),
		OutputData:    columnFromRaw(rec.OutputData),
		Model:         rec.Model,
		TokensIn:      rec.TokensIn,
		TokensOut:     rec.TokensOut,
		ToolCall:      columnFromRaw(rec.ToolCall),
		DecisionTrace: columnFromRaw(rec.DecisionTrace),
		DurationMS:    rec.DurationMS,
	}
}

type alertRuleRow struct {
	ID              string    `gorm:"primaryKey;size:64"`
	Name            string    `gorm:"size:191;not null"`
	Metric          string    `gorm:"size:64;not null"`
	Operator        string    `gorm:"size:8;not null"`
	Threshold       float64   `gorm:"not null"`
	WindowMinutes   int       `gorm:"not null"`
	AgentFilter     string    `gorm:"size:191"`
	Enabled         bool      `gorm:"not null;index"`
	CooldownMinutes int       `gorm:"not null"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

func (alertRuleRow) TableName() string {
	return "alert_rules"
}

func (r alertRuleRow) toRecord() AlertRule {
	return AlertRule{
		ID:              r.ID,
		Name:            r.Name,
		Metric:          types.Metric(r.Metric),
		Operator:        types.Operator(r.Operator),
		Threshold:       r.Threshold,
		WindowMinutes:   r.WindowMinutes,
		AgentFilter:     r.AgentFilter,
		Enabled:         r.Enabled,
		CooldownMinutes: r.CooldownMinutes,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func alertRuleRowFromRecord(rec AlertRule) alertRuleRow {
	return alertRuleRow{
		ID:              rec.ID,
		Name:            rec.Name,
		Metric:          string(rec.Metric),
		Operator:        string(rec.Operator),
		Threshold:       rec.Threshold,
		WindowMinutes:   rec.WindowMinutes,
		AgentFilter:     rec.AgentFilter,
		Enabled:         rec.Enabled,
		CooldownMinutes: rec.CooldownMinutes,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}
}

type alertEventRow struct {
	ID             string     `gorm:"primaryKey;size:64"`
	RuleID         string     `gorm:"size:64;not null;index:idx_alert_events_rule_time,priority:1"`
	TriggeredAt    time.Time  `gorm:"not null;index:idx_alert_events_rule_time,priority:2"`
	MetricValue    float64    `gorm:"not null"`
	Acknowledged   bool       `gorm:"not null"`
	AcknowledgedAt *time.Time ``
}

func (alertEventRow) TableName() string {
	return "alert_events"
}

func (r alertEventRow) toRecord() AlertEvent {
	return AlertEvent{
		ID:             r.ID,
		RuleID:         r.RuleID,
		TriggeredAt:    r.TriggeredAt,
		MetricValue:    r.MetricValue,
		Acknowledged:   r.Acknowledged,
		AcknowledgedAt: r.AcknowledgedAt,
	}
}

func alertEventRowFromRecord(rec AlertEvent) alertEventRow {
	return alertEventRow{
		ID:             rec.ID,
		RuleID:         rec.RuleID,
		TriggeredAt:    rec.TriggeredAt,
		MetricValue:    rec.MetricValue,
		Acknowledged:   rec.Acknowledged,
		AcknowledgedAt: rec.AcknowledgedAt,
	}
}

func rawFromColumn(col string) json.RawMessage {
	if col == "" {
		return nil
	}
	return json.RawMessage(col)
}

func columnFromRaw(raw json.RawMessage) string {
	return string(raw)
}
