package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/taxdeedflow/kestrel/internal/alerts"
	"github.com/taxdeedflow/kestrel/internal/domain"
	"github.com/taxdeedflow/kestrel/internal/match"
	"github.com/taxdeedflow/kestrel/internal/repository"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	engine    *match.Engine
	processor *alerts.Processor
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *match.Engine, processor *alerts.Processor, version string) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		engine:    engine,
		processor: processor,
		version:   version,
	}
}

// IngestResponse is the response for POST /properties.
type IngestResponse struct {
	PropertyID string                 `json:"propertyId"`
	RulesTried int                    `json:"rulesTried"`
	Alerts     []*domain.PropertyAlert `json:"alerts"`
	Metadata   struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// IngestProperty handles POST /properties. The property is persisted and
// immediately evaluated against every loaded alert rule.
func (h *Handler) IngestProperty(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req domain.PropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.CountyID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "countyId is required",
		})
		return
	}

	prop := req.ToProperty()
	prop.ID = uuid.New().String()
	prop.TenantID = tenantID

	if h.repo != nil {
		if err := h.repo.SaveProperty(ctx, tenantID, prop); err != nil {
			slog.Error("failed to save property", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save property",
			})
			return
		}
	}

	snapshot := prop.ToMatchable()

	// Cache the projection for repeated evaluation
	if h.cache != nil {
		if err := h.cache.SetSnapshot(ctx, tenantID, prop.ID, &snapshot, time.Hour); err != nil {
			slog.Warn("failed to cache property snapshot", "property_id", prop.ID, "error", err)
		}
	}

	// Evaluate every loaded rule synchronously
	results := h.engine.EvaluateAll(ctx, snapshot)
	raised := h.processor.Process(ctx, tenantID, prop.ID, results)

	for _, alert := range raised {
		if h.repo != nil {
			if err := h.repo.SavePropertyAlert(ctx, tenantID, alert); err != nil {
				slog.Error("failed to save alert", "alert_id", alert.ID, "error", err)
			}
		}
		if h.bus != nil {
			payload, _ := json.Marshal(alert)
			if err := h.bus.Publish(ctx, tenantID, domain.TopicAlertRaised, payload); err != nil {
				slog.Error("failed to publish alert", "alert_id", alert.ID, "error", err)
			}
		}
	}

	resp := IngestResponse{
		PropertyID: prop.ID,
		RulesTried: len(results),
		Alerts:     raised,
	}
	if resp.Alerts == nil {
		resp.Alerts = []*domain.PropertyAlert{}
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusCreated, resp)
}

// GetProperty retrieves a property by ID.
func (h *Handler) GetProperty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	propID := chi.URLParam(r, "id")

	if propID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "property id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	prop, err := h.repo.GetProperty(ctx, tenantID, propID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "property not found",
			})
			return
		}
		slog.Error("failed to get property", "id", propID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get property",
		})
		return
	}

	writeJSON(w, http.StatusOK, prop)
}

// ListProperties returns stored properties, optionally filtered by county.
func (h *Handler) ListProperties(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	countyID := r.URL.Query().Get("countyId")

	props, err := h.repo.ListProperties(ctx, tenantID, countyID)
	if err != nil {
		slog.Error("failed to list properties", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list properties",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"properties": props,
		"count":      len(props),
	})
}

// MatchRequest is the request body for POST /match.
type MatchRequest struct {
	Criteria domain.MatchCriteria `json:"criteria"`

	// RuleID borrows a stored rule's criteria instead of inline criteria.
	RuleID string `json:"ruleId,omitempty"`

	// Properties to match against. When omitted, stored properties are
	// loaded from the repository (optionally filtered by countyId).
	Properties []domain.MatchableProperty `json:"properties,omitempty"`
	CountyID   string                     `json:"countyId,omitempty"`

	// Limit returns only the top N matches by score (0 = all matches).
	Limit int `json:"limit,omitempty"`

	// CountOnly returns just the number of matching properties.
	CountOnly bool `json:"countOnly,omitempty"`
}

// MatchResponse is the response for POST /match.
type MatchResponse struct {
	Matches []domain.PropertyMatch `json:"matches,omitempty"`
	Count   int                    `json:"count"`
	Tried   int                    `json:"tried"`
}

// Match handles POST /match: ad-hoc criteria evaluation against a property
// set without creating a rule.
func (h *Handler) Match(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.RuleID != "" {
		if h.repo == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "repository not available",
			})
			return
		}
		rule, err := h.repo.GetAlertRule(ctx, tenantID, req.RuleID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{
					"error": "rule not found: " + req.RuleID,
				})
				return
			}
			slog.Error("failed to load rule for matching", "rule_id", req.RuleID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to load rule",
			})
			return
		}
		req.Criteria = rule.Criteria
	}

	if !match.IsValidCriteria(req.Criteria) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "criteria must specify at least one condition",
		})
		return
	}

	properties := req.Properties
	if properties == nil {
		if h.repo == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "repository not available",
			})
			return
		}
		stored, err := h.repo.ListProperties(ctx, tenantID, req.CountyID)
		if err != nil {
			slog.Error("failed to load properties for matching", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to load properties",
			})
			return
		}
		properties = make([]domain.MatchableProperty, len(stored))
		for i, p := range stored {
			properties[i] = p.ToMatchable()
		}
	}

	if req.CountOnly {
		writeJSON(w, http.StatusOK, MatchResponse{
			Count: match.CountMatches(properties, req.Criteria),
			Tried: len(properties),
		})
		return
	}

	var matched []domain.PropertyMatch
	if req.Limit > 0 {
		matched = match.TopMatches(properties, req.Criteria, req.Limit)
	} else {
		matched = match.MatchProperties(properties, req.Criteria)
	}

	writeJSON(w, http.StatusOK, MatchResponse{
		Matches: matched,
		Count:   len(matched),
		Tried:   len(properties),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListRules returns all rules loaded in the engine.
// Rules are loaded from the database at startup and can be reloaded via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.engine.LoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": loadedRules,
		"count": len(loadedRules),
	})
}

// GetRule retrieves a rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.engine.LoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating an alert rule.
type CreateRuleRequest struct {
	ID          string                `json:"id,omitempty"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Criteria    domain.MatchCriteria  `json:"criteria"`
	Expression  string                `json:"expression,omitempty"`
	Frequency   domain.AlertFrequency `json:"frequency,omitempty"`
	Enabled     bool                  `json:"enabled"`
}

// CreateRule creates a new alert rule, loads it into the engine, and saves
// it to the database.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "name is required",
		})
		return
	}

	if req.Frequency == "" {
		req.Frequency = domain.FrequencyImmediate
	}
	if !req.Frequency.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "frequency must be one of: immediate, daily, weekly",
		})
		return
	}

	now := time.Now().UTC()
	rule := &domain.AlertRule{
		ID:          req.ID,
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
		Criteria:    req.Criteria,
		Expression:  req.Expression,
		Frequency:   req.Frequency,
		Enabled:     req.Enabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	// Validates both the criteria and any CEL filter expression
	if err := h.engine.ValidateRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid rule: " + err.Error(),
		})
		return
	}

	if rule.Enabled {
		if err := h.engine.LoadRule(rule); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "failed to load rule: " + err.Error(),
			})
			return
		}
	}

	if h.repo != nil {
		if err := h.repo.SaveAlertRule(ctx, tenantID, rule); err != nil {
			slog.Error("failed to save alert rule", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("alert rule created", "id", rule.ID, "name", rule.Name, "tenant_id", tenantID)
	writeJSON(w, http.StatusCreated, rule)
}

// DeleteRule soft-deletes a rule and unloads it from the engine.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.DeleteAlertRule(ctx, tenantID, ruleID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{
					"error": "rule not found",
				})
				return
			}
			slog.Error("failed to delete rule", "id", ruleID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to delete rule",
			})
			return
		}
	}

	h.engine.UnloadRule(ruleID)

	slog.Info("alert rule deleted", "id", ruleID, "tenant_id", tenantID)
	w.WriteHeader(http.StatusNoContent)
}

// ReloadRules reloads all rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListAlertRules(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded from database", "count", len(dbRules), "tenant_id", tenantID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

// ListAlerts returns raised alerts, optionally filtered by rule and limited.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	ruleID := r.URL.Query().Get("ruleId")

	list, err := h.repo.ListPropertyAlerts(ctx, tenantID, ruleID)
	if err != nil {
		slog.Error("failed to list alerts", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list alerts",
		})
		return
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit < len(list) {
			list = list[:limit]
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": list,
		"count":  len(list),
	})
}

// GetAlert retrieves a raised alert by ID.
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	alertID := chi.URLParam(r, "id")

	if alertID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "alert id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	alert, err := h.repo.GetPropertyAlert(ctx, tenantID, alertID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "alert not found",
			})
			return
		}
		slog.Error("failed to get alert", "id", alertID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get alert",
		})
		return
	}

	writeJSON(w, http.StatusOK, alert)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
