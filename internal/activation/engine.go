// Package activation implements the keyword-triggered lore activation
// engine: per turn it scans the current game context against a pool of
// author-defined rules and decides which rule payloads get injected
// into the AI prompt, under a token budget.
package activation

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/loreweave/loreweave/internal/domain"
)

// RandSource supplies uniform values in [0, 1) for probability gating.
// Injected so tests can run deterministic sequences.
type RandSource func() float64

// Engine holds the loaded rule pool and the per-rule activation
// history. Callers must not invoke EvaluateTurn concurrently against
// the same instance; the engine serializes internally but a pass is
// meant to run once per game turn.
type Engine struct {
	mu      sync.Mutex
	env     *cel.Env
	pool    []*loadedRule
	index   map[string]*loadedRule
	history map[string][]int // rule ID -> turn numbers fired
	rand    RandSource
}

// loadedRule pairs a rule with its compiled condition (nil when the
// rule has none).
type loadedRule struct {
	rule      *domain.Rule
	condition cel.Program
}

// NewEngine creates an activation engine. A nil rnd falls back to the
// global math/rand source.
func NewEngine(rnd RandSource) (*Engine, error) {
	env, err := newConditionEnv()
	if err != nil {
		return nil, err
	}

	if rnd == nil {
		rnd = rand.Float64
	}

	return &Engine{
		env:     env,
		index:   make(map[string]*loadedRule),
		history: make(map[string][]int),
		rand:    rnd,
	}, nil
}

// ValidateRule checks a rule without mutating the loaded pool.
func (e *Engine) ValidateRule(rule *domain.Rule) error {
	if rule == nil {
		return fmt.Errorf("rule is required")
	}
	if rule.ID == "" {
		return fmt.Errorf("rule id is required")
	}

	_, err := compileCondition(e.env, rule)
	return err
}

// LoadRule compiles and loads a rule into the engine. Reloading an
// existing ID replaces it in place, keeping its original position for
// priority tie-breaking.
func (e *Engine) LoadRule(rule *domain.Rule) error {
	if err := e.ValidateRule(rule); err != nil {
		return err
	}

	condition, err := compileCondition(e.env, rule)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.index[rule.ID]; ok {
		existing.rule = rule
		existing.condition = condition
		return nil
	}

	lr := &loadedRule{rule: rule, condition: condition}
	e.pool = append(e.pool, lr)
	e.index[rule.ID] = lr
	return nil
}

// LoadRules loads multiple rules, skipping disabled ones.
func (e *Engine) LoadRules(rules []*domain.Rule) error {
	for _, rule := range rules {
		if rule.Enabled {
			if err := e.LoadRule(rule); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules clears all existing rules and loads new ones. This
// enables hot-reloading from the database or lorebook files. The
// activation history is kept: reloading lore must not reset per-turn
// caps mid-game.
func (e *Engine) ReloadRules(rules []*domain.Rule) error {
	compiled := make([]*loadedRule, 0, len(rules))
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		condition, err := compileCondition(e.env, rule)
		if err != nil {
			return err
		}
		compiled = append(compiled, &loadedRule{rule: rule, condition: condition})
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.pool = compiled
	e.index = make(map[string]*loadedRule, len(compiled))
	for _, lr := range compiled {
		e.index[lr.rule.ID] = lr
	}
	return nil
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pool)
}

// GetLoadedRules returns the currently loaded rules in load order.
func (e *Engine) GetLoadedRules() []*domain.Rule {
	e.mu.Lock()
	defer e.mu.Unlock()

	rules := make([]*domain.Rule, 0, len(e.pool))
	for _, lr := range e.pool {
		rules = append(rules, lr.rule)
	}
	return rules
}

// EvaluateTurn runs one activation pass over the loaded pool and
// applies the resulting metadata patches to the rules and history.
// The decision core itself is pure; all mutation happens here.
func (e *Engine) EvaluateTurn(ctx context.Context, tc *domain.TurnContext) (*domain.ActivationResult, error) {
	if tc == nil {
		return nil, fmt.Errorf("turn context is required")
	}
	_ = ctx // no I/O; kept for interface symmetry with the rest of the pipeline

	e.mu.Lock()
	defer e.mu.Unlock()

	result := evaluatePass(e.pool, tc, e.history, e.rand)

	for _, p := range result.Patches {
		e.history[p.RuleID] = append(e.history[p.RuleID], tc.TurnNumber)
		if lr, ok := e.index[p.RuleID]; ok {
			if p.LastActivated > lr.rule.LastActivated {
				lr.rule.LastActivated = p.LastActivated
			}
			if p.ActivationCount > lr.rule.ActivationCount {
				lr.rule.ActivationCount = p.ActivationCount
			}
		}
	}

	return result, nil
}

// ClearHistory wipes the per-rule activation history. Called on
// new-game events.
func (e *Engine) ClearHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = make(map[string][]int)
}

// Stats summarizes the activation history.
type Stats struct {
	// TotalRules is the number of distinct rules with any history.
	TotalRules int `json:"totalRules"`

	// MeanActivations is the mean activation count across rules with
	// history; 0 when none.
	MeanActivations float64 `json:"meanActivations"`
}

// HistoryStats returns activation history statistics.
func (e *Engine) HistoryStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	var stats Stats
	var total int
	for _, turns := range e.history {
		if len(turns) == 0 {
			continue
		}
		stats.TotalRules++
		total += len(turns)
	}
	if stats.TotalRules > 0 {
		stats.MeanActivations = float64(total) / float64(stats.TotalRules)
	}
	return stats
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pool = nil
	e.index = make(map[string]*loadedRule)
	e.history = make(map[string][]int)
	return nil
}

// evaluatePass is the pure decision core: given a rule pool, a turn
// context, the (read-only) activation history, and a randomness source,
// it produces the activation result including metadata patches. It
// never mutates its inputs.
func evaluatePass(pool []*loadedRule, tc *domain.TurnContext, history map[string][]int, rnd RandSource) *domain.ActivationResult {
	result := &domain.ActivationResult{}

	// Highest priority first; ties keep load order.
	sorted := make([]*loadedRule, 0, len(pool))
	for _, lr := range pool {
		if lr.rule.Enabled {
			sorted = append(sorted, lr)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].rule.Priority > sorted[j].rule.Priority
	})

	budget := tc.Budget()
	budgetClosed := false

	for _, lr := range sorted {
		evaluateRule(lr, tc, history, rnd, budget, &budgetClosed, result)
	}

	// Stable secondary sort for output order; processing already ran
	// highest priority first, but admitted rules must come back sorted
	// the same way.
	sort.SliceStable(result.Activated, func(i, j int) bool {
		return result.Activated[i].Priority > result.Activated[j].Priority
	})

	result.BudgetExceeded = result.TotalTokens > budget
	return result
}

// evaluateRule runs the gating pipeline for a single rule. A panic
// while evaluating one rule records it as skipped and never aborts the
// pass.
func evaluateRule(lr *loadedRule, tc *domain.TurnContext, history map[string][]int, rnd RandSource, budget int, budgetClosed *bool, result *domain.ActivationResult) {
	rule := lr.rule

	defer func() {
		if rec := recover(); rec != nil {
			result.Skipped = append(result.Skipped, domain.SkippedRule{
				RuleID: rule.ID,
				Reason: fmt.Sprintf("evaluation error: %v", rec),
			})
		}
	}()

	skip := func(reason string) {
		result.Skipped = append(result.Skipped, domain.SkippedRule{RuleID: rule.ID, Reason: reason})
	}

	// Per-turn activation cap.
	if rule.MaxPerTurn > 0 {
		fired := 0
		for _, turn := range history[rule.ID] {
			if turn == tc.TurnNumber {
				fired++
			}
		}
		if fired >= rule.MaxPerTurn {
			skip(fmt.Sprintf("activation cap reached (%d/%d this turn)", fired, rule.MaxPerTurn))
			return
		}
	}

	// Probability gate.
	prob := rule.ActivationProbability()
	switch {
	case prob >= 100:
		// always passes
	case prob <= 0:
		skip("probability is 0")
		return
	default:
		if rnd()*100 >= prob {
			skip(fmt.Sprintf("probability check failed (%.0f%%)", prob))
			return
		}
	}

	// Rules with nothing to scan are dropped outright, not recorded
	// as skipped.
	scanText := CollectScanText(rule, tc)
	if scanText == "" {
		return
	}

	caseSensitive := tc.CaseSensitive
	if rule.CaseSensitive != nil {
		caseSensitive = *rule.CaseSensitive
	}
	wholeWord := tc.WholeWord
	if rule.WholeWord != nil {
		wholeWord = *rule.WholeWord
	}

	matchedPrimary := MatchKeywords(scanText, rule.PrimaryKeywords, caseSensitive, wholeWord)
	matchedSecondary := MatchKeywords(scanText, rule.SecondaryKeywords, caseSensitive, wholeWord)

	outcome := evaluateLogic(rule, matchedPrimary, matchedSecondary)
	if !outcome.Activated {
		skip(outcome.Reason)
		return
	}

	// Optional CEL condition over turn state.
	if lr.condition != nil {
		ok, err := evalCondition(lr.condition, rule, tc, len(history[rule.ID]))
		if err != nil {
			skip(fmt.Sprintf("condition error: %v", err))
			return
		}
		if !ok {
			skip("condition not met")
			return
		}
	}

	cost := tokenCost(rule)
	if *budgetClosed || result.TotalTokens+cost > budget {
		// Admission is greedy in priority order: the first rule the
		// budget cannot fit closes it for everything after, even
		// cheaper rules.
		*budgetClosed = true
		skip(fmt.Sprintf("token budget exceeded (cost %d, used %d/%d)", cost, result.TotalTokens, budget))
		return
	}

	result.Activated = append(result.Activated, domain.ActivatedRule{
		RuleID:          rule.ID,
		Title:           rule.Title,
		MatchedKeywords: outcome.Matched,
		Reason:          outcome.Reason,
		TokenCost:       cost,
		Priority:        rule.Priority,
		Content:         rule.Content,
		CodexID:         rule.CodexID,
	})
	result.TotalTokens += cost
	result.Patches = append(result.Patches, domain.MetadataPatch{
		RuleID:          rule.ID,
		LastActivated:   tc.TurnNumber,
		ActivationCount: rule.ActivationCount + 1,
	})
}

// tokenCost returns the rule's explicit weight, or an estimate from its
// content length. The estimate is approximate: one token per four
// characters, rounded up, not a real tokenizer count.
func tokenCost(rule *domain.Rule) int {
	if rule.TokenWeight > 0 {
		return rule.TokenWeight
	}
	return (len(rule.Content) + 3) / 4
}
