package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// Tx is the set of row mutations available inside one ingestion
// transaction. Either every mutation commits or none do.
type Tx interface {
	// EnsureSession inserts the session if no row with its id exists.
	// An existing row is left untouched.
	EnsureSession(sess Session) error

	// EndSession overwrites status and ended_at (last-write-wins) and,
	// when end.OverrideTokens is set, the token totals.
	EndSession(end SessionEnd) error

	// InsertEvent inserts the event row, reporting false when an event
	// with the same id already exists.
	InsertEvent(ev Event) (bool, error)

	// AddSessionTokens increments the session token counters. The update
	// is additive so concurrent batches interleave safely.
	AddSessionTokens(sessionID string, tokensIn, tokensOut int64) error
}

type Store interface {
	// Ingest runs fn inside one transaction spanning all of its row writes.
	Ingest(ctx context.Context, fn func(tx Tx) error) error

	GetSession(ctx context.Context, sessionID string) (Session, error)
	GetSessionEvents(ctx context.Context, sessionID string, limit int) ([]Event, error)

	SessionAggregates(ctx context.Context, from, to time.Time, agentFilter string) (SessionAggregates, error)
	EventAggregates(ctx context.Context, from, to time.Time, agentFilter string) (EventAggregates, error)

	CreateRule(ctx context.Context, rule AlertRule) error
	GetRule(ctx context.Context, ruleID string) (AlertRule, error)
	UpdateRule(ctx context.Context, rule AlertRule) error
	DeleteRule(ctx context.Context, ruleID string) error
	ListRules(ctx context.Context, enabled *bool) ([]AlertRule, error)

	// CreateAlertEventIfQuiet inserts rec only when the rule has no alert
	// event with triggered_at >= cutoff. The check and insert run in one
	// transaction so concurrent evaluation passes cannot both fire.
	CreateAlertEventIfQuiet(ctx context.Context, ruleID string, cutoff time.Time, rec AlertEvent) (bool, error)
	ListAlertEvents(ctx context.Context, filter AlertEventFilter) ([]AlertEvent, error)
	AcknowledgeAlertEvent(ctx context.Context, alertID string, at time.Time) error

	Close() error
}
