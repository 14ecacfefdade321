// Package worker provides async property processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/taxdeedflow/kestrel/internal/alerts"
	"github.com/taxdeedflow/kestrel/internal/domain"
	"github.com/taxdeedflow/kestrel/internal/match"
)

// Worker matches ingested properties against alert rules asynchronously
// from the EventBus.
type Worker struct {
	bus       domain.EventBus
	repo      domain.Repository
	cache     domain.Cache
	engine    *match.Engine
	processor *alerts.Processor

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string

	// WorkerCount is the number of concurrent workers per tenant
	WorkerCount int

	// SnapshotTTL controls how long matched property projections stay cached
	SnapshotTTL time.Duration
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, engine *match.Engine, processor *alerts.Processor) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		repo:      repo,
		cache:     cache,
		engine:    engine,
		processor: processor,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker(cfg)
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID, cfg); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker(cfg Config) error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicPropertyIngested, func(ctx context.Context, msg *domain.Message) error {
		return w.processProperty(ctx, msg.TenantID, msg, cfg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string, cfg Config) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicPropertyIngested, func(ctx context.Context, msg *domain.Message) error {
		return w.processProperty(ctx, tenantID, msg, cfg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicPropertyIngested,
	)

	return nil
}

// PropertyMessage is the message payload for property ingestion.
type PropertyMessage struct {
	PropertyID   string         `json:"propertyId"`
	TenantID     string         `json:"tenantId"`
	TraceID      string         `json:"traceId"`
	CountyID     string         `json:"countyId"`
	CountyName   string         `json:"countyName,omitempty"`
	ParcelNumber string         `json:"parcelNumber,omitempty"`
	Address      string         `json:"address,omitempty"`
	PropertyType *string        `json:"propertyType,omitempty"`
	TotalDue     *float64       `json:"totalDue,omitempty"`
	LotSizeAcres *float64       `json:"lotSizeAcres,omitempty"`
	TotalScore   *float64       `json:"totalScore,omitempty"`
	SaleDate     *time.Time     `json:"saleDate,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// MatchResultMessage is published to the match result topic after evaluation.
type MatchResultMessage struct {
	PropertyID string   `json:"propertyId"`
	TenantID   string   `json:"tenantId"`
	TraceID    string   `json:"traceId"`
	RulesTried int      `json:"rulesTried"`
	AlertCount int      `json:"alertCount"`
	AlertIDs   []string `json:"alertIds,omitempty"`
	DurationMs int64    `json:"durationMs"`
}

// processProperty runs an ingested property through the matching pipeline.
func (w *Worker) processProperty(ctx context.Context, tenantID string, msg *domain.Message, cfg Config) error {
	start := time.Now()

	var propMsg PropertyMessage
	if err := json.Unmarshal(msg.Payload, &propMsg); err != nil {
		slog.Error("failed to parse property message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if propMsg.TenantID != "" {
		tenantID = propMsg.TenantID
	}

	traceID := propMsg.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing property",
		"property_id", propMsg.PropertyID,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	now := time.Now().UTC()
	prop := &domain.Property{
		ID:           propMsg.PropertyID,
		TenantID:     tenantID,
		CountyID:     propMsg.CountyID,
		CountyName:   propMsg.CountyName,
		ParcelNumber: propMsg.ParcelNumber,
		Address:      propMsg.Address,
		PropertyType: propMsg.PropertyType,
		TotalDue:     propMsg.TotalDue,
		LotSizeAcres: propMsg.LotSizeAcres,
		TotalScore:   propMsg.TotalScore,
		SaleDate:     propMsg.SaleDate,
		CreatedAt:    now,
		UpdatedAt:    now,
		Metadata:     propMsg.Metadata,
	}

	// 1. Persist the property record
	if w.repo != nil {
		if err := w.repo.SaveProperty(ctx, tenantID, prop); err != nil {
			slog.Error("failed to save property",
				"property_id", prop.ID,
				"error", err,
			)
		}
	}

	// 2. Cache the matchable projection for fast re-evaluation
	snapshot := prop.ToMatchable()
	if w.cache != nil {
		ttl := cfg.SnapshotTTL
		if ttl == 0 {
			ttl = time.Hour
		}
		if err := w.cache.SetSnapshot(ctx, tenantID, prop.ID, &snapshot, ttl); err != nil {
			slog.Warn("failed to cache property snapshot",
				"property_id", prop.ID,
				"error", err,
			)
		}
	}

	// 3. Evaluate all loaded rules
	results := w.engine.EvaluateAll(ctx, snapshot)

	// 4. Build alerts from matching rules (with throttling)
	raised := w.processor.Process(ctx, tenantID, prop.ID, results)

	// 5. Persist alerts
	alertIDs := make([]string, 0, len(raised))
	for _, alert := range raised {
		if w.repo != nil {
			if err := w.repo.SavePropertyAlert(ctx, tenantID, alert); err != nil {
				slog.Error("failed to save alert",
					"alert_id", alert.ID,
					"property_id", prop.ID,
					"error", err,
				)
				continue
			}
		}
		alertIDs = append(alertIDs, alert.ID)
	}

	// 6. Publish result to match result topic
	result := MatchResultMessage{
		PropertyID: prop.ID,
		TenantID:   tenantID,
		TraceID:    traceID,
		RulesTried: len(results),
		AlertCount: len(alertIDs),
		AlertIDs:   alertIDs,
		DurationMs: time.Since(start).Milliseconds(),
	}
	resultPayload, _ := json.Marshal(result)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicMatchResult, resultPayload); err != nil {
		slog.Error("failed to publish match result",
			"property_id", prop.ID,
			"error", err,
		)
	}

	// 7. Publish each raised alert to the alert topic
	for _, alert := range raised {
		alertPayload, _ := json.Marshal(alert)
		if err := w.bus.Publish(ctx, tenantID, domain.TopicAlertRaised, alertPayload); err != nil {
			slog.Error("failed to publish alert",
				"alert_id", alert.ID,
				"error", err,
			)
		}
	}

	slog.Info("property processed",
		"property_id", prop.ID,
		"tenant_id", tenantID,
		"rules_tried", len(results),
		"alerts_raised", len(alertIDs),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
