package core

// Health classifies how much of the budget has been used.
type Health string

const (
	HealthHealthy  Health = "HEALTHY"
	HealthWarning  Health = "WARNING"
	HealthCritical Health = "CRITICAL"
)

// HealthFor maps a budget usage percentage onto a Health level.
func HealthFor(percentUsed float64) Health {
	switch {
	case percentUsed > 90:
		return HealthCritical
	case percentUsed > 70:
		return HealthWarning
	default:
		return HealthHealthy
	}
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name    string  `json:"name"`
	Amount  float64 `json:"amount"`
	Percent float64 `json:"percent"` // share of total spend
}

// Summary holds every derived metric for one ledger state at one instant.
type Summary struct {
	Year  int `json:"year"`
	Month int `json:"month"` // 1-12

	Count             int              `json:"count"`
	TotalSpent        float64          `json:"totalSpent"`
	MonthSpent        float64          `json:"monthSpent"`
	CategoryBreakdown []CategoryAmount `json:"categoryBreakdown"`
	HighestExpense    *Expense         `json:"highestExpense,omitempty"`
	Recent            []Expense        `json:"recent"`

	Budget            float64 `json:"budget"`
	BudgetUsedPercent float64 `json:"budgetUsedPercent"`
	Remaining         float64 `json:"remaining"`
	Health            Health  `json:"health"`
}
