// Package alerts turns match engine output into persisted PropertyAlert
// records and decides which matches actually raise an alert.
package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taxdeedflow/kestrel/internal/domain"
	"github.com/taxdeedflow/kestrel/internal/match"
	"github.com/taxdeedflow/kestrel/internal/throttle"
)

// Processor converts rule matches into alert records.
type Processor struct {
	throttler *throttle.Service
}

// NewProcessor creates a new alert processor. The throttler may be nil, in
// which case every match raises an alert.
func NewProcessor(throttler *throttle.Service) *Processor {
	return &Processor{throttler: throttler}
}

// Process builds alert records for the matching subset of rule results.
// Non-matching results are skipped; matching results are throttled by the
// rule's frequency preference before an alert is created.
func (p *Processor) Process(ctx context.Context, tenantID string, propertyID string, results []match.RuleMatch) []*domain.PropertyAlert {
	var out []*domain.PropertyAlert

	for _, rm := range results {
		if !rm.Result.Matches {
			continue
		}

		if p.throttler != nil {
			allowed, err := p.throttler.Allow(ctx, tenantID, rm.Rule)
			if err != nil || !allowed {
				continue
			}
		}

		out = append(out, Build(tenantID, propertyID, rm))
	}

	return out
}

// Build assembles one PropertyAlert record from a rule match.
func Build(tenantID string, propertyID string, rm match.RuleMatch) *domain.PropertyAlert {
	return &domain.PropertyAlert{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		RuleID:     rm.Rule.ID,
		PropertyID: propertyID,
		MatchScore: rm.Result.Score,
		Quality:    match.MatchQualityDescription(rm.Result.Score),
		Reasons:    rm.Result.Reasons.Explanations,
		Status:     domain.AlertStatusNew,
		CreatedAt:  time.Now().UTC(),
	}
}
