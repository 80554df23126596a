// Package httpapi exposes the ingest and alerting surface over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sauravbhattacharya001/agentlens/internal/alerts"
	"github.com/sauravbhattacharya001/agentlens/internal/ingest"
	"github.com/sauravbhattacharya001/agentlens/internal/store"
	"github.com/sauravbhattacharya001/agentlens/internal/subscribers/ws"
	"github.com/sauravbhattacharya001/agentlens/types"
)

const maxRequestBytes int64 = 4 << 20

type server struct {
	logger   *log.Logger
	apiKey   string
	pipeline *ingest.Pipeline
	engine   *alerts.Engine
	store    store.Store
	hub      *ws.Hub
}

func NewServer(logger *log.Logger, addr string, apiKey string, pipeline *ingest.Pipeline, engine *alerts.Engine, st store.Store, hub *ws.Hub) *http.Server {
	h := &server{
		logger:   logger,
		apiKey:   apiKey,
		pipeline: pipeline,
		engine:   engine,
		store:    st,
		hub:      hub,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/v1/events", h.handleEvents)
	mux.HandleFunc("/v1/sessions/", h.handleSessions)
	mux.HandleFunc("/v1/alerts/rules", h.handleRules)
	mux.HandleFunc("/v1/alerts/rules/", h.handleRuleByID)
	mux.HandleFunc("/v1/alerts/evaluate", h.handleEvaluate)
	mux.HandleFunc("/v1/alerts/events", h.handleAlertEvents)
	mux.HandleFunc("/v1/alerts/events/", h.handleAlertEventAck)
	mux.HandleFunc("/v1/alerts/metrics", h.handleMetricCatalog)
	mux.HandleFunc("/v1/alerts/ws", h.handleAlertsWS)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// authorized enforces the optional X-API-Key check. An empty configured
// key leaves the API open.
func (s *server) authorized(w http.ResponseWriter, r *http.Request) bool {
	if s.apiKey == "" {
		return true
	}
	if r.Header.Get("X-API-Key") == s.apiKey {
		return true
	}
	http.Error(w, "invalid api key", http.StatusUnauthorized)
	return false
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type eventBatchBody struct {
	Events []types.EventRecord `json:"events"`
}

func (s *server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(w, r) {
		return
	}

	defer r.Body.Close()
	var body eventBatchBody
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	if err := dec.Decode(&body); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return
	}
	if dec.More() {
		http.Error(w, "invalid json: trailing content", http.StatusBadRequest)
		return
	}

	result, err := s.pipeline.Submit(r.Context(), body.Events)
	if err != nil {
		if ingest.IsBatchError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Printf("ingest failed: %v", err)
		http.Error(w, "failed to ingest batch", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleSessions serves /v1/sessions/{id} and /v1/sessions/{id}/events.
func (s *server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(w, r) {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	sessionID, sub, _ := strings.Cut(rest, "/")
	if sessionID == "" {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}

	switch sub {
	case "":
		session, err := s.store.GetSession(r.Context(), sessionID)
		if err != nil {
			s.writeStoreError(w, err, "load session")
			return
		}
		writeJSON(w, http.StatusOK, session)
	case "events":
		limit := parseIntParam(r, "limit", 0)
		events, err := s.store.GetSessionEvents(r.Context(), sessionID, limit)
		if err != nil {
			s.writeStoreError(w, err, "load session events")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": events})
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *server) handleRules(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		var enabled *bool
		if raw := r.URL.Query().Get("enabled"); raw != "" {
			value, err := strconv.ParseBool(raw)
			if err != nil {
				http.Error(w, "enabled must be a boolean", http.StatusBadRequest)
				return
			}
			enabled = &value
		}
		rules, err := s.engine.ListRules(r.Context(), enabled)
		if err != nil {
			s.writeStoreError(w, err, "list rules")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
	case http.MethodPost:
		defer r.Body.Close()
		var spec alerts.RuleSpec
		dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&spec); err != nil {
			http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
			return
		}
		rule, err := s.engine.CreateRule(r.Context(), spec)
		if err != nil {
			if errors.Is(err, alerts.ErrInvalidRule) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			s.writeStoreError(w, err, "create rule")
			return
		}
		writeJSON(w, http.StatusCreated, rule)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *server) handleRuleByID(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	ruleID := strings.TrimPrefix(r.URL.Path, "/v1/alerts/rules/")
	if ruleID == "" || strings.Contains(ruleID, "/") {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		rule, err := s.engine.GetRule(r.Context(), ruleID)
		if err != nil {
			s.writeStoreError(w, err, "load rule")
			return
		}
		writeJSON(w, http.StatusOK, rule)
	case http.MethodPut:
		defer r.Body.Close()
		var patch alerts.RulePatch
		dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&patch); err != nil {
			http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
			return
		}
		rule, err := s.engine.UpdateRule(r.Context(), ruleID, patch)
		if err != nil {
			if errors.Is(err, alerts.ErrInvalidRule) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			s.writeStoreError(w, err, "update rule")
			return
		}
		writeJSON(w, http.StatusOK, rule)
	case http.MethodDelete:
		if err := s.engine.DeleteRule(r.Context(), ruleID); err != nil {
			s.writeStoreError(w, err, "delete rule")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(w, r) {
		return
	}

	summary, err := s.engine.EvaluateAll(r.Context())
	if err != nil {
		s.logger.Printf("evaluate pass failed: %v", err)
		http.Error(w, "evaluation failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *server) handleAlertEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(w, r) {
		return
	}

	query := alerts.AlertEventQuery{
		RuleID: r.URL.Query().Get("rule_id"),
		Limit:  parseIntParam(r, "limit", 0),
	}
	if raw := r.URL.Query().Get("acknowledged"); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "acknowledged must be a boolean", http.StatusBadRequest)
			return
		}
		query.Acknowledged = &value
	}
	if raw := r.URL.Query().Get("after"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "after must be RFC 3339", http.StatusBadRequest)
			return
		}
		query.After = &ts
	}
	if raw := r.URL.Query().Get("before"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "before must be RFC 3339", http.StatusBadRequest)
			return
		}
		query.Before = &ts
	}

	events, err := s.engine.ListAlertEvents(r.Context(), query)
	if err != nil {
		s.writeStoreError(w, err, "list alert events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": events})
}

// handleAlertEventAck serves PUT /v1/alerts/events/{id}/ack.
func (s *server) handleAlertEventAck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(w, r) {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/alerts/events/")
	alertID, action, _ := strings.Cut(rest, "/")
	if alertID == "" || action != "ack" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	if err := s.engine.Acknowledge(r.Context(), alertID); err != nil {
		s.writeStoreError(w, err, "acknowledge alert")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"acknowledged": true})
}

func (s *server) handleMetricCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, alerts.MetricCatalog())
}

func (s *server) handleAlertsWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(w, r) {
		return
	}
	if s.hub == nil {
		http.Error(w, "alert stream not configured", http.StatusNotImplemented)
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: isWebSocketOriginAllowed}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("alerts ws upgrade failed: %v", err)
		return
	}

	s.hub.Add(conn)
	defer s.hub.Remove(conn)

	// Drain client frames so we notice the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *server) writeStoreError(w http.ResponseWriter, err error, action string) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	s.logger.Printf("%s failed: %v", action, err)
	http.Error(w, fmt.Sprintf("failed to %s", action), http.StatusInternalServerError)
}

func parseIntParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func isWebSocketOriginAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	parsedOrigin, err := url.Parse(origin)
	if err != nil || strings.TrimSpace(parsedOrigin.Host) == "" {
		return false
	}
	return strings.EqualFold(parsedOrigin.Host, r.Host)
}
