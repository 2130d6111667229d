package service

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// CostGuard enforces a wall-clock budget for a single unit of work — the
// Workflow Runtime uses one per step and checks it before each attempt,
// so no new retry starts once the step's budget is spent (spec §4.K).
// An attempt already in progress is not interrupted.
type CostGuard struct {
	start      time.Time
	spentSoFar time.Duration
	budget     time.Duration
	logger     *zap.Logger
}

// NewCostGuard starts a guard already carrying spentSoFar against budget.
// A zero budget means unlimited.
func NewCostGuard(spentSoFar, budget time.Duration, logger *zap.Logger) *CostGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CostGuard{start: time.Now(), spentSoFar: spentSoFar, budget: budget, logger: logger}
}

// CheckBudget returns an error once elapsed time plus whatever the
// caller already spent exceeds the configured budget.
func (g *CostGuard) CheckBudget() error {
	if g.budget <= 0 {
		return nil
	}
	elapsed := g.spentSoFar + time.Since(g.start)
	if elapsed > g.budget {
		return fmt.Errorf("budget exceeded: %s spent against a %s budget", elapsed, g.budget)
	}
	return nil
}
