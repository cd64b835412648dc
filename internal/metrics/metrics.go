// Package metrics derives the dashboard figures from a ledger snapshot.
package metrics

import (
	"sort"
	"time"

	"github.com/jinzhu/now"
	"github.com/shopspring/decimal"

	"expenzoo/internal/core"
)

// RecentLimit is how many records the recent list carries.
const RecentLimit = 5

// Compute derives every metric for expenses at instant at. It never mutates
// its input.
func Compute(expenses []core.Expense, budget float64, at time.Time) core.Summary {
	s := core.Summary{
		Year:              at.Year(),
		Month:             int(at.Month()),
		Count:             len(expenses),
		TotalSpent:        TotalSpent(expenses),
		MonthSpent:        MonthSpent(expenses, at),
		CategoryBreakdown: CategoryBreakdown(expenses),
		HighestExpense:    HighestExpense(expenses),
		Recent:            Recent(expenses, RecentLimit),
		Budget:            budget,
	}
	s.BudgetUsedPercent = Percent(s.TotalSpent, budget)
	s.Remaining = decimal.NewFromFloat(budget).Sub(decimal.NewFromFloat(s.TotalSpent)).InexactFloat64()
	s.Health = core.HealthFor(s.BudgetUsedPercent)
	return s
}

// TotalSpent sums every amount without float drift.
func TotalSpent(expenses []core.Expense) float64 {
	return sum(expenses, func(core.Expense) bool { return true })
}

// MonthSpent sums the records dated in the calendar month of at.
func MonthSpent(expenses []core.Expense, at time.Time) float64 {
	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
	start := now.With(day).BeginningOfMonth()
	end := now.With(day).EndOfMonth()
	return sum(expenses, func(e core.Expense) bool {
		return !e.Date.Before(start) && !e.Date.After(end)
	})
}

// CategoryBreakdown groups amounts by category, largest first. Equal
// amounts keep the order in which their category first appears.
func CategoryBreakdown(expenses []core.Expense) []core.CategoryAmount {
	totals := map[string]decimal.Decimal{}
	var order []string
	grand := decimal.Zero
	for _, e := range expenses {
		amt := decimal.NewFromFloat(e.Amount)
		if _, ok := totals[e.Category]; !ok {
			order = append(order, e.Category)
		}
		totals[e.Category] = totals[e.Category].Add(amt)
		grand = grand.Add(amt)
	}

	out := make([]core.CategoryAmount, 0, len(order))
	for _, name := range order {
		amount := totals[name].InexactFloat64()
		out = append(out, core.CategoryAmount{
			Name:    name,
			Amount:  amount,
			Percent: Percent(amount, grand.InexactFloat64()),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount > out[j].Amount })
	return out
}

// HighestExpense returns the largest record, the first one on ties, or nil
// for an empty ledger.
func HighestExpense(expenses []core.Expense) *core.Expense {
	if len(expenses) == 0 {
		return nil
	}
	best := expenses[0]
	for _, e := range expenses[1:] {
		if e.Amount > best.Amount {
			best = e
		}
	}
	return &best
}

// Recent returns up to limit records from the head of the ledger.
func Recent(expenses []core.Expense, limit int) []core.Expense {
	if len(expenses) < limit {
		limit = len(expenses)
	}
	return append([]core.Expense{}, expenses[:limit]...)
}

// Percent returns part as a percentage of whole, or 0 when whole is not
// positive.
func Percent(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return decimal.NewFromFloat(part).
		Div(decimal.NewFromFloat(whole)).
		Mul(decimal.NewFromInt(100)).
		InexactFloat64()
}

func sum(expenses []core.Expense, keep func(core.Expense) bool) float64 {
	total := decimal.Zero
	for _, e := range expenses {
		if keep(e) {
			total = total.Add(decimal.NewFromFloat(e.Amount))
		}
	}
	return total.InexactFloat64()
}
