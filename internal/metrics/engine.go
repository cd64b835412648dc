package metrics

import (
	"fmt"
	"time"

	"expenzoo/internal/cache"
	"expenzoo/internal/core"
)

// ExpenseSource is the read side of the ledger.
type ExpenseSource interface {
	List() []core.Expense
	Revision() uint64
}

// BudgetSource is the read side of the settings store.
type BudgetSource interface {
	Budget() float64
	Revision() uint64
}

// Engine recomputes the summary on read and memoizes it until the ledger,
// the settings or the current month change.
type Engine struct {
	expenses ExpenseSource
	settings BudgetSource
	clock    func() time.Time
	cache    cache.Cache[core.Summary]
}

func NewEngine(expenses ExpenseSource, settings BudgetSource, clock func() time.Time) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		expenses: expenses,
		settings: settings,
		clock:    clock,
		cache:    cache.NewLRUCache[core.Summary](8, 0),
	}
}

// Summary returns the metrics for the current ledger state. The result is
// a private copy; callers may modify it without touching the memoized value.
func (e *Engine) Summary() core.Summary {
	at := e.clock()
	key := fmt.Sprintf("%d:%d:%04d-%02d", e.expenses.Revision(), e.settings.Revision(), at.Year(), at.Month())
	if s, ok := e.cache.Get(key); ok {
		return cloneSummary(s)
	}
	s := Compute(e.expenses.List(), e.settings.Budget(), at)
	e.cache.Set(key, s)
	return cloneSummary(s)
}

func cloneSummary(s core.Summary) core.Summary {
	s.CategoryBreakdown = append(s.CategoryBreakdown[:0:0], s.CategoryBreakdown...)
	s.Recent = append(s.Recent[:0:0], s.Recent...)
	if s.HighestExpense != nil {
		h := *s.HighestExpense
		s.HighestExpense = &h
	}
	return s
}
