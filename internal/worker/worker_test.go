package worker

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/taxdeedflow/kestrel/internal/alerts"
	"github.com/taxdeedflow/kestrel/internal/bus"
	"github.com/taxdeedflow/kestrel/internal/domain"
	"github.com/taxdeedflow/kestrel/internal/match"
)

func fptr(v float64) *float64 { return &v }
func sptr(s string) *string   { return &s }

func newTestEngine(t *testing.T) *match.Engine {
	t.Helper()

	engine, err := match.NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	rules := []*domain.AlertRule{
		{
			ID:       "rule-blair",
			TenantID: "tenant-test",
			Name:     "Blair County watch",
			Criteria: domain.MatchCriteria{
				CountyIDs: []string{"county-blair"},
				MaxBid:    fptr(10000),
			},
			Frequency: domain.FrequencyImmediate,
			Enabled:   true,
		},
		{
			ID:       "rule-high-score",
			TenantID: "tenant-test",
			Name:     "High score only",
			Criteria: domain.MatchCriteria{
				ScoreThreshold: fptr(110),
			},
			Frequency: domain.FrequencyImmediate,
			Enabled:   true,
		},
	}
	if err := engine.LoadRules(rules); err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}

	return engine
}

func TestWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	engine := newTestEngine(t)
	defer engine.Close()

	processor := alerts.NewProcessor(nil)

	worker := NewWorker(eventBus, nil, nil, engine, processor)

	t.Run("StartAndStop", func(t *testing.T) {
		cfg := Config{
			TenantIDs:   []string{"tenant-001"},
			WorkerCount: 1,
		}

		err := worker.Start(cfg)
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := worker.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
		}

		err = worker.Stop()
		if err != nil {
			t.Errorf("Stop failed: %v", err)
		}

		stats = worker.GetStats()
		if stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("ProcessProperty", func(t *testing.T) {
		w := NewWorker(eventBus, nil, nil, engine, processor)

		cfg := Config{
			TenantIDs: []string{"tenant-test"},
		}
		w.Start(cfg)
		defer w.Stop()

		// Track match results
		var resultReceived atomic.Bool
		var resultPayload []byte

		eventBus.Subscribe(context.Background(), "tenant-test", domain.TopicMatchResult, func(ctx context.Context, msg *domain.Message) error {
			resultPayload = msg.Payload
			resultReceived.Store(true)
			return nil
		})

		// Allow subscriptions to be active
		time.Sleep(50 * time.Millisecond)

		propMsg := PropertyMessage{
			PropertyID:   "prop-001",
			TenantID:     "tenant-test",
			TraceID:      "trace-001",
			CountyID:     "county-blair",
			CountyName:   "Blair County, PA",
			PropertyType: sptr("vacant_land"),
			TotalDue:     fptr(4250),
			TotalScore:   fptr(92),
		}

		payload, _ := json.Marshal(propMsg)
		err := eventBus.Publish(context.Background(), "tenant-test", domain.TopicPropertyIngested, payload)
		if err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		// Wait for processing
		time.Sleep(100 * time.Millisecond)

		if !resultReceived.Load() {
			t.Error("expected match result to be published")
		}

		if resultPayload != nil {
			var result MatchResultMessage
			if err := json.Unmarshal(resultPayload, &result); err != nil {
				t.Fatalf("failed to parse match result: %v", err)
			}

			if result.PropertyID != "prop-001" {
				t.Errorf("expected propertyID 'prop-001', got '%s'", result.PropertyID)
			}
			if result.TenantID != "tenant-test" {
				t.Errorf("expected tenantID 'tenant-test', got '%s'", result.TenantID)
			}
			if result.TraceID != "trace-001" {
				t.Errorf("expected traceID 'trace-001', got '%s'", result.TraceID)
			}
			if result.RulesTried != 2 {
				t.Errorf("expected 2 rules tried, got %d", result.RulesTried)
			}
			// Only the Blair County rule matches; the score threshold of 110
			// is above the property's score
			if result.AlertCount != 1 {
				t.Errorf("expected 1 alert, got %d", result.AlertCount)
			}
		}
	})

	t.Run("AlertPublished", func(t *testing.T) {
		w := NewWorker(eventBus, nil, nil, engine, processor)

		cfg := Config{
			TenantIDs: []string{"tenant-alert"},
		}
		w.Start(cfg)
		defer w.Stop()

		var alertReceived atomic.Bool
		var alertPayload []byte

		eventBus.Subscribe(context.Background(), "tenant-alert", domain.TopicAlertRaised, func(ctx context.Context, msg *domain.Message) error {
			alertPayload = msg.Payload
			alertReceived.Store(true)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		propMsg := PropertyMessage{
			PropertyID: "prop-alert",
			TenantID:   "tenant-alert",
			CountyID:   "county-blair",
			TotalDue:   fptr(3000),
		}

		payload, _ := json.Marshal(propMsg)
		eventBus.Publish(context.Background(), "tenant-alert", domain.TopicPropertyIngested, payload)

		time.Sleep(100 * time.Millisecond)

		if !alertReceived.Load() {
			t.Fatal("expected alert to be published for matching property")
		}

		var alert domain.PropertyAlert
		if err := json.Unmarshal(alertPayload, &alert); err != nil {
			t.Fatalf("failed to parse alert: %v", err)
		}
		if alert.RuleID != "rule-blair" {
			t.Errorf("expected ruleID 'rule-blair', got '%s'", alert.RuleID)
		}
		if alert.PropertyID != "prop-alert" {
			t.Errorf("expected propertyID 'prop-alert', got '%s'", alert.PropertyID)
		}
		if alert.Status != domain.AlertStatusNew {
			t.Errorf("expected status new, got '%s'", alert.Status)
		}
	})

	t.Run("NoAlertWhenNoMatch", func(t *testing.T) {
		w := NewWorker(eventBus, nil, nil, engine, processor)

		cfg := Config{
			TenantIDs: []string{"tenant-quiet"},
		}
		w.Start(cfg)
		defer w.Stop()

		var alertReceived atomic.Bool

		eventBus.Subscribe(context.Background(), "tenant-quiet", domain.TopicAlertRaised, func(ctx context.Context, msg *domain.Message) error {
			alertReceived.Store(true)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		// Wrong county and over budget
		propMsg := PropertyMessage{
			PropertyID: "prop-quiet",
			TenantID:   "tenant-quiet",
			CountyID:   "county-cambria",
			TotalDue:   fptr(50000),
		}

		payload, _ := json.Marshal(propMsg)
		eventBus.Publish(context.Background(), "tenant-quiet", domain.TopicPropertyIngested, payload)

		time.Sleep(100 * time.Millisecond)

		if alertReceived.Load() {
			t.Error("expected no alert for non-matching property")
		}
	})

	t.Run("MultiTenant", func(t *testing.T) {
		w := NewWorker(eventBus, nil, nil, engine, processor)

		cfg := Config{
			TenantIDs: []string{"tenant-a", "tenant-b"},
		}
		w.Start(cfg)
		defer w.Stop()

		stats := w.GetStats()
		if stats.SubscriptionCount != 2 {
			t.Errorf("expected 2 subscriptions for 2 tenants, got %d", stats.SubscriptionCount)
		}
	})
}

func TestPropertyMessageParsing(t *testing.T) {
	msg := PropertyMessage{
		PropertyID:   "prop-123",
		TenantID:     "tenant-001",
		TraceID:      "trace-456",
		CountyID:     "county-blair",
		CountyName:   "Blair County, PA",
		ParcelNumber: "01-0123-456",
		PropertyType: sptr("vacant_land"),
		TotalDue:     fptr(1234.56),
		LotSizeAcres: fptr(0.5),
		TotalScore:   fptr(88),
		Metadata:     map[string]any{"source": "county-feed"},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var parsed PropertyMessage
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if parsed.PropertyID != msg.PropertyID {
		t.Errorf("propertyID mismatch: %s", parsed.PropertyID)
	}
	if parsed.TotalDue == nil || *parsed.TotalDue != 1234.56 {
		t.Errorf("totalDue mismatch: %v", parsed.TotalDue)
	}
	if parsed.Metadata["source"] != "county-feed" {
		t.Errorf("metadata mismatch: %v", parsed.Metadata)
	}
}
