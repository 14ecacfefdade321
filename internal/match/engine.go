package match

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/taxdeedflow/kestrel/internal/domain"
)

// Engine holds the loaded alert rules and their compiled advanced filters.
// The core criteria evaluation stays in the pure package-level functions;
// the engine only adds rule management and optional CEL filtering on top.
type Engine struct {
	mu          sync.RWMutex
	env         *cel.Env
	loadedRules map[string]*LoadedRule
}

// LoadedRule pairs a rule with its pre-compiled CEL program. Program is nil
// when the rule has no advanced filter expression.
type LoadedRule struct {
	Rule    *domain.AlertRule
	Program cel.Program
}

// RuleMatch is the outcome of evaluating one property against one loaded
// rule.
type RuleMatch struct {
	Rule   *domain.AlertRule
	Result domain.MatchResult
}

// NewEngine creates a new matching engine.
func NewEngine() (*Engine, error) {
	// CEL environment with property variables for advanced filters
	env, err := cel.NewEnv(
		cel.Variable("prop", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("county_id", cel.StringType),
		cel.Variable("county_name", cel.StringType),
		cel.Variable("property_type", cel.StringType),
		cel.Variable("score", cel.DoubleType),
		cel.Variable("total_due", cel.DoubleType),
		cel.Variable("lot_size_acres", cel.DoubleType),
		// Presence flags, since missing fields default to zero values
		cel.Variable("has_score", cel.BoolType),
		cel.Variable("has_total_due", cel.BoolType),
		cel.Variable("has_lot_size", cel.BoolType),
		cel.Variable("has_property_type", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:         env,
		loadedRules: make(map[string]*LoadedRule),
	}, nil
}

// ValidateRule checks a rule without mutating loaded engine rules: the
// criteria set must be non-empty and any advanced filter must compile.
func (e *Engine) ValidateRule(rule *domain.AlertRule) error {
	if rule == nil {
		return fmt.Errorf("alert rule is required")
	}
	if !IsValidRule(rule) {
		return fmt.Errorf("rule %s: at least one criterion must be set", rule.ID)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(rule)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(rule *domain.AlertRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !IsValidRule(rule) {
		return fmt.Errorf("rule %s: at least one criterion must be set", rule.ID)
	}

	loaded, err := e.compileRule(rule)
	if err != nil {
		return err
	}

	e.loadedRules[rule.ID] = loaded
	return nil
}

// LoadRules compiles and loads multiple rules, skipping disabled ones.
func (e *Engine) LoadRules(rules []*domain.AlertRule) error {
	for _, rule := range rules {
		if rule.Enabled {
			if err := e.LoadRule(rule); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules clears all existing rules and loads new ones.
// This enables hot-reloading of rules from the database.
func (e *Engine) ReloadRules(rules []*domain.AlertRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*LoadedRule)
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if !IsValidRule(rule) {
			return fmt.Errorf("rule %s: at least one criterion must be set", rule.ID)
		}
		loaded, err := e.compileRule(rule)
		if err != nil {
			return err
		}
		newRules[rule.ID] = loaded
	}

	e.loadedRules = newRules
	return nil
}

// EvaluateRule evaluates a property against one loaded rule by ID.
// The second return is false when the rule is not loaded.
func (e *Engine) EvaluateRule(ruleID string, p domain.MatchableProperty) (domain.MatchResult, bool) {
	e.mu.RLock()
	loaded, ok := e.loadedRules[ruleID]
	e.mu.RUnlock()

	if !ok {
		return domain.MatchResult{}, false
	}
	return e.evaluate(loaded, p), true
}

// EvaluateAll evaluates a property against every loaded rule. Each rule is
// evaluated independently; the slice order is unspecified.
func (e *Engine) EvaluateAll(ctx context.Context, p domain.MatchableProperty) []RuleMatch {
	e.mu.RLock()
	loaded := make([]*LoadedRule, 0, len(e.loadedRules))
	for _, lr := range e.loadedRules {
		loaded = append(loaded, lr)
	}
	e.mu.RUnlock()

	results := make([]RuleMatch, 0, len(loaded))
	for _, lr := range loaded {
		results = append(results, RuleMatch{
			Rule:   lr.Rule,
			Result: e.evaluate(lr, p),
		})
	}
	return results
}

// evaluate applies the criteria conjunction and then, only when the
// criteria pass, the optional advanced filter. A filter that evaluates
// false, returns a non-bool, or errors demotes the result to a non-match;
// the weighted score is unaffected either way.
func (e *Engine) evaluate(loaded *LoadedRule, p domain.MatchableProperty) domain.MatchResult {
	result := MatchProperty(p, loaded.Rule.Criteria)

	if result.Matches && loaded.Program != nil {
		result.Matches = evalFilter(loaded.Program, p)
	}
	return result
}

// evalFilter runs a compiled advanced filter against the property.
func evalFilter(program cel.Program, p domain.MatchableProperty) bool {
	out, _, err := program.Eval(activation(p))
	if err != nil {
		return false
	}
	return toBool(out)
}

// activation builds the CEL variable bindings for a property. Missing
// optional fields bind to zero values with their has_* flag set false.
func activation(p domain.MatchableProperty) map[string]any {
	propertyType := ""
	if p.PropertyType != nil {
		propertyType = *p.PropertyType
	}

	score, totalDue, lotSize := 0.0, 0.0, 0.0
	if p.TotalScore != nil {
		score = *p.TotalScore
	}
	if p.TotalDue != nil {
		totalDue = *p.TotalDue
	}
	if p.LotSizeAcres != nil {
		lotSize = *p.LotSizeAcres
	}

	return map[string]any{
		"prop": map[string]any{
			"id":             p.ID,
			"county_id":      p.CountyID,
			"county_name":    p.CountyName,
			"property_type":  propertyType,
			"score":          score,
			"total_due":      totalDue,
			"lot_size_acres": lotSize,
		},
		"county_id":         p.CountyID,
		"county_name":       p.CountyName,
		"property_type":     propertyType,
		"score":             score,
		"total_due":         totalDue,
		"lot_size_acres":    lotSize,
		"has_score":         p.TotalScore != nil,
		"has_total_due":     p.TotalDue != nil,
		"has_lot_size":      p.LotSizeAcres != nil,
		"has_property_type": p.PropertyType != nil,
	}
}

func toBool(val ref.Val) bool {
	if b, ok := val.(types.Bool); ok {
		return bool(b)
	}
	return false
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.loadedRules)
}

// LoadedRules returns the currently loaded rule configurations.
func (e *Engine) LoadedRules() []*domain.AlertRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.AlertRule, 0, len(e.loadedRules))
	for _, loaded := range e.loadedRules {
		rules = append(rules, loaded.Rule)
	}
	return rules
}

// UnloadRule removes a rule from the engine, if present.
func (e *Engine) UnloadRule(ruleID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.loadedRules, ruleID)
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadedRules = make(map[string]*LoadedRule)
	return nil
}

func (e *Engine) compileRule(rule *domain.AlertRule) (*LoadedRule, error) {
	if rule.Expression == "" {
		return &LoadedRule{Rule: rule}, nil
	}

	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile filter for rule %s: %w", rule.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: filter expression must return bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", rule.ID, err)
	}

	return &LoadedRule{Rule: rule, Program: program}, nil
}
