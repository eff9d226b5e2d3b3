package activation

import (
	"sort"
	"sync"

	"github.com/loreweave/loreweave/internal/domain"
)

// CodexEngine rolls activation results up per codex (lorebook). It
// reports how much of the turn budget each codex consumed and flags
// codices that overran their configured share.
type CodexEngine struct {
	mu      sync.RWMutex
	codices map[string]*domain.Codex // key: codexID
}

// NewCodexEngine creates a new codex rollup engine.
func NewCodexEngine() *CodexEngine {
	return &CodexEngine{
		codices: make(map[string]*domain.Codex),
	}
}

// LoadCodices loads codex configurations into the engine.
func (e *CodexEngine) LoadCodices(codices []*domain.Codex) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.codices = make(map[string]*domain.Codex)
	for _, c := range codices {
		if c.Enabled {
			e.codices[c.ID] = c
		}
	}
}

// ReloadCodices clears and reloads codices (hot reload).
func (e *CodexEngine) ReloadCodices(codices []*domain.Codex) {
	e.LoadCodices(codices)
}

// GetLoadedCodices returns currently loaded codices.
func (e *CodexEngine) GetLoadedCodices() []*domain.Codex {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]*domain.Codex, 0, len(e.codices))
	for _, c := range e.codices {
		result = append(result, c)
	}
	return result
}

// CodexCount returns the number of loaded codices.
func (e *CodexEngine) CodexCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.codices)
}

// Rollup aggregates an activation result per codex. Activated rules
// without a codex (or referencing an unloaded one) are not reported.
// Results come back sorted by tokens consumed, heaviest first.
func (e *CodexEngine) Rollup(result *domain.ActivationResult, budget int) []domain.CodexResult {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.codices) == 0 || result == nil {
		return nil
	}

	byCodex := make(map[string]*domain.CodexResult)
	for _, ar := range result.Activated {
		codex, ok := e.codices[ar.CodexID]
		if !ok {
			continue
		}
		cr, ok := byCodex[codex.ID]
		if !ok {
			cr = &domain.CodexResult{CodexID: codex.ID, CodexName: codex.Name}
			byCodex[codex.ID] = cr
		}
		cr.RulesFired++
		cr.TokensUsed += ar.TokenCost
	}

	results := make([]domain.CodexResult, 0, len(byCodex))
	for id, cr := range byCodex {
		codex := e.codices[id]
		if codex.TokenShare > 0 && budget > 0 {
			cr.Saturated = float64(cr.TokensUsed) > codex.TokenShare*float64(budget)
		}
		results = append(results, *cr)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].TokensUsed != results[j].TokensUsed {
			return results[i].TokensUsed > results[j].TokensUsed
		}
		return results[i].CodexID < results[j].CodexID
	})

	return results
}
