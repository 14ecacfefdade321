// Package throttle limits how often an alert rule may raise alerts,
// honoring the rule's notification frequency preference.
package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/taxdeedflow/kestrel/internal/domain"
)

// Service decides whether a rule may raise another alert inside its
// frequency window. A cache counter is consulted first; when no cache is
// available, alert counts come from the repository.
type Service struct {
	repo  domain.Repository
	cache domain.Cache

	// MaxPerWindow caps alerts per rule inside one frequency window.
	MaxPerWindow int64
}

// NewService creates a new throttle service.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:         repo,
		cache:        cache,
		MaxPerWindow: 25,
	}
}

// Allow reports whether the rule may raise an alert now. Immediate rules
// are never throttled. The counter increments as a side effect, so a
// positive answer reserves one slot in the window.
func (s *Service) Allow(ctx context.Context, tenantID string, rule *domain.AlertRule) (bool, error) {
	if tenantID == "" || rule == nil {
		return false, fmt.Errorf("tenantID and rule are required")
	}

	window := rule.Frequency.Window()
	if window == 0 {
		return true, nil
	}

	if s.cache != nil {
		count, err := s.cache.IncrementCounter(ctx, tenantID, "alerts:"+rule.ID, window)
		if err == nil {
			return count <= s.MaxPerWindow, nil
		}
		// Fall through to the repository on cache failure
	}

	if s.repo != nil {
		return s.allowFromRepo(ctx, tenantID, rule.ID, window)
	}

	return false, fmt.Errorf("no data source available")
}

// allowFromRepo counts persisted alerts for the rule inside the window.
func (s *Service) allowFromRepo(ctx context.Context, tenantID, ruleID string, window time.Duration) (bool, error) {
	since := time.Now().Add(-window)

	count, err := s.repo.CountPropertyAlerts(ctx, tenantID, ruleID, since)
	if err != nil {
		return false, fmt.Errorf("failed to count alerts: %w", err)
	}
	return count < s.MaxPerWindow, nil
}
