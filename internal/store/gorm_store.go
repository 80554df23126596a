package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/sauravbhattacharya001/agentlens/internal/db"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(driver, dsn string) (*GormStore, error) {
	gormDB, err := dbpkg.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	store := &GormStore{db: gormDB}
	if err := store.migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *GormStore) migrate() error {
	return s.db.AutoMigrate(&sessionRow{}, &eventRow{}, &alertRuleRow{}, &alertEventRow{})
}

type gormTx struct {
	tx *gorm.DB
}

func (s *GormStore) Ingest(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{tx: tx})
	})
}

func (t *gormTx) EnsureSession(sess Session) error {
	row := sessionRowFromRecord(sess)
	res := t.tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("ensure session: %w", res.Error)
	}
	return nil
}

func (t *gormTx) EndSession(end SessionEnd) error {
	updates := map[string]any{
		"status":   string(end.Status),
		"ended_at": &end.EndedAt,
	}
	if end.OverrideTokens {
		updates["tokens_in"] = end.TokensIn
		updates["tokens_out"] = end.TokensOut
	}
	res := t.tx.Model(&sessionRow{}).Where("id = ?", end.SessionID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("end session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *gormTx) InsertEvent(ev Event) (bool, error) {
	row := eventRowFromRecord(ev)
	res := t.tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("insert event: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (t *gormTx) AddSessionTokens(sessionID string, tokensIn, tokensOut int64) error {
	if tokensIn == 0 && tokensOut == 0 {
		return nil
	}
	res := t.tx.Model(&sessionRow{}).Where("id = ?", sessionID).Updates(map[string]any{
		"tokens_in":  gorm.Expr("tokens_in + ?", tokensIn),
		"tokens_out": gorm.Expr("tokens_out + ?", tokensOut),
	})
	if res.Error != nil {
		return fmt.Errorf("add session tokens: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) GetSession(ctx context.Context, sessionID string) (Session, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).Where("id = ?", sessionID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return row.toRecord(), nil
}

func (s *GormStore) GetSessionEvents(ctx context.Context, sessionID string, limit int) ([]Event, error) {
	query := s.db.WithContext(ctx).
		Model(&eventRow{}).
		Where("session_id = ?", sessionID).
		Order("timestamp ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []eventRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get session events: %w", err)
	}
	out := make([]Event, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRecord())
	}
	return out, nil
}

func (s *GormStore) SessionAggregates(ctx context.Context, from, to time.Time, agentFilter string) (SessionAggregates, error) {
	query := s.db.WithContext(ctx).
		Model(&sessionRow{}).
		Where("started_at >= ? AND started_at <= ?", from, to)
	if agentFilter != "" {
		query = query.Where("agent_name = ?", agentFilter)
	}

	var out SessionAggregates
	err := query.
		Select("COUNT(*) AS session_count, COALESCE(SUM(tokens_in + tokens_out), 0) AS total_tokens").
		Scan(&out).Error
	if err != nil {
		return SessionAggregates{}, fmt.Errorf("session aggregates: %w", err)
	}
	return out, nil
}

func (s *GormStore) EventAggregates(ctx context.Context, from, to time.Time, agentFilter string) (EventAggregates, error) {
	query := s.db.WithContext(ctx).
		Model(&eventRow{}).
		Where("events.timestamp >= ? AND events.timestamp <= ?", from, to)
	if agentFilter != "" {
		query = query.
			Joins("JOIN sessions ON sessions.id = events.session_id").
			Where("sessions.agent_name = ?", agentFilter)
	}

	var out EventAggregates
	err := query.
		Select("COUNT(*) AS event_count, " +
			"COALESCE(SUM(CASE WHEN events.event_type = 'error' THEN 1 ELSE 0 END), 0) AS error_count, " +
			"COALESCE(SUM(events.tokens_in + events.tokens_out), 0) AS total_tokens, " +
			"AVG(events.duration_ms) AS avg_duration_ms, " +
			"MAX(events.duration_ms) AS max_duration_ms").
		Scan(&out).Error
	if err != nil {
		return EventAggregates{}, fmt.Errorf("event aggregates: %w", err)
	}
	return out, nil
}

func (s *GormStore) CreateRule(ctx context.Context, rule AlertRule) error {
	row := alertRuleRowFromRecord(rule)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create rule: %w", err)
	}
	return nil
}

func (s *GormStore) GetRule(ctx context.Context, ruleID string) (AlertRule, error) {
	var row alertRuleRow
	err := s.db.WithContext(ctx).Where("id = ?", ruleID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return AlertRule{}, ErrNotFound
		}
		return AlertRule{}, fmt.Errorf("get rule: %w", err)
	}
	return row.toRecord(), nil
}

func (s *GormStore) UpdateRule(ctx context.Context, rule AlertRule) error {
	var existing alertRuleRow
	err := s.db.WithContext(ctx).Where("id = ?", rule.ID).Take(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update rule: %w", err)
	}

	row := alertRuleRowFromRecord(rule)
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	return nil
}

func (s *GormStore) DeleteRule(ctx context.Context, ruleID string) error {
	res := s.db.WithContext(ctx).Where("id = ?", ruleID).Delete(&alertRuleRow{})
	if res.Error != nil {
		return fmt.Errorf("delete rule: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListRules(ctx context.Context, enabled *bool) ([]AlertRule, error) {
	query := s.db.WithContext(ctx).Model(&alertRuleRow{}).Order("created_at ASC")
	if enabled != nil {
		query = query.Where("enabled = ?", *enabled)
	}

	var rows []alertRuleRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	out := make([]AlertRule, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRecord())
	}
	return out, nil
}

func (s *GormStore) CreateAlertEventIfQuiet(ctx context.Context, ruleID string, cutoff time.Time, rec AlertEvent) (bool, error) {
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recent int64
		err := tx.Model(&alertEventRow{}).
			Where("rule_id = ? AND triggered_at >= ?", ruleID, cutoff).
			Count(&recent).Error
		if err != nil {
			return fmt.Errorf("cooldown lookup: %w", err)
		}
		if recent > 0 {
			return nil
		}

		row := alertEventRowFromRecord(rec)
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("create alert event: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (s *GormStore) ListAlertEvents(ctx context.Context, filter AlertEventFilter) ([]AlertEvent, error) {
	query := s.db.WithContext(ctx).Model(&alertEventRow{}).Order("triggered_at DESC")
	if filter.RuleID != "" {
		query = query.Where("rule_id = ?", filter.RuleID)
	}
	if filter.Acknowledged != nil {
		query = query.Where("acknowledged = ?", *filter.Acknowledged)
	}
	if filter.After != nil {
		query = query.Where("triggered_at >= ?", *filter.After)
	}
	if filter.Before != nil {
		query = query.Where("triggered_at <= ?", *filter.Before)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []alertEventRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list alert events: %w", err)
	}
	out := make([]AlertEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRecord())
	}
	return out, nil
}

func (s *GormStore) AcknowledgeAlertEvent(ctx context.Context, alertID string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&alertEventRow{}).Where("id = ?", alertID).Updates(map[string]any{
		"acknowledged":    true,
		"acknowledged_at": &at,
	})
	if res.Error != nil {
		return fmt.Errorf("acknowledge alert event: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	return sqlDB.Close()
}
