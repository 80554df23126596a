package ingest

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sauravbhattacharya001/agentlens/internal/ids"
	"github.com/sauravbhattacharya001/agentlens/internal/store"
	"github.com/sauravbhattacharya001/agentlens/types"
)

const (
	maxSessionIDLen = 128
	maxEventIDLen   = 191
	maxStringLen    = 256
	maxBlobBytes    = 64 * 1024

	defaultAgentName = "default-agent"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// normalized is one sanitized record, ready to apply inside the batch
// transaction.
type normalized struct {
	kind    types.EventType
	session store.Session
	end     store.SessionEnd
	event   store.Event
}

// normalizeRecord validates and sanitizes one producer record. A non-nil
// error means the record is skipped; it never fails the batch.
func normalizeRecord(rec types.EventRecord, now time.Time) (normalized, error) {
	sessionID := strings.TrimSpace(rec.SessionID)
	if !sessionIDPattern.MatchString(sessionID) {
		return normalized{}, fmt.Errorf("invalid session id %q", truncateForError(rec.SessionID))
	}

	eventType := rec.EventType
	if eventType == "" {
		eventType = types.EventTypeGeneric
	}
	if !types.ValidEventType(eventType) {
		return normalized{}, fmt.Errorf("unknown event type %q", truncateForError(string(rec.EventType)))
	}

	timestamp := rec.Timestamp.UTC()
	if rec.Timestamp.IsZero() {
		timestamp = now
	}

	agentName := sanitizeString(rec.AgentName)
	if agentName == "" {
		agentName = defaultAgentName
	}

	out := normalized{kind: eventType}
	switch eventType {
	case types.EventTypeSessionStart:
		out.session = store.Session{
			ID:        sessionID,
			AgentName: agentName,
			StartedAt: timestamp,
			Metadata:  capBlob(rec.Metadata),
			Status:    types.SessionStatusActive,
		}
	case types.EventTypeSessionEnd:
		endedAt := timestamp
		if rec.EndedAt != nil && !rec.EndedAt.IsZero() {
			endedAt = rec.EndedAt.UTC()
		}
		status := rec.Status
		if !types.ValidSessionStatus(status) {
			status = types.SessionStatusCompleted
		}
		totalsIn := clampTokens(rec.TotalTokensIn)
		totalsOut := clampTokens(rec.TotalTokensOut)
		out.session = placeholderSession(sessionID, agentName, timestamp)
		out.end = store.SessionEnd{
			SessionID:      sessionID,
			Status:         status,
			EndedAt:        endedAt,
			OverrideTokens: totalsIn != 0 || totalsOut != 0,
			TokensIn:       totalsIn,
			TokensOut:      totalsOut,
		}
	default:
		eventID := truncateBytes(sanitizeString(rec.EventID), maxEventIDLen)
		if eventID == "" {
			eventID = ids.Short()
		}
		out.session = placeholderSession(sessionID, agentName, timestamp)
		out.event = store.Event{
			ID:            eventID,
			SessionID:     sessionID,
			EventType:     eventType,
			Timestamp:     timestamp,
			InputData:     capBlob(rec.InputData),
			OutputData:    capBlob(rec.OutputData),
			Model:         sanitizeString(rec.Model),
			TokensIn:      clampTokens(rec.TokensIn),
			TokensOut:     clampTokens(rec.TokensOut),
			ToolCall:      capBlob(rec.ToolCall),
			DecisionTrace: capBlob(rec.DecisionTrace),
			DurationMS:    sanitizeDuration(rec.DurationMS),
		}
	}
	return out, nil
}

func placeholderSession(sessionID, agentName string, at time.Time) store.Session {
	return store.Session{
		ID:        sessionID,
		AgentName: agentName,
		StartedAt: at,
		Status:    types.SessionStatusActive,
	}
}

func clampTokens(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func sanitizeDuration(v *float64) *float64 {
	if v == nil || *v < 0 {
		return nil
	}
	return v
}

// sanitizeString strips control characters and caps the length.
func sanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	return truncateBytes(strings.TrimSpace(s), maxStringLen)
}

// truncateBytes caps s at max bytes without splitting a rune.
func truncateBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// capBlob enforces the payload size cap. An oversized blob is replaced
// by a truncation marker instead of being rejected.
func capBlob(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	if len(raw) <= maxBlobBytes {
		return raw
	}
	marker, err := json.Marshal(map[string]any{
		"truncated":     true,
		"original_size": len(raw),
	})
	if err != nil {
		return nil
	}
	return marker
}

func truncateForError(s string) string {
	if len(s) > 64 {
		return s[:64] + "..."
	}
	return s
}
