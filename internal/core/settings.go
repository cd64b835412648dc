package core

import (
	"math"
	"strings"
)

// DefaultBudget is the project budget used until the user sets one (10 lakh).
const DefaultBudget = 1000000.0

var defaultCategories = []string{
	"Cement", "Steel", "Sand", "Bricks", "Labour", "Electrical", "Plumbing", "Painting",
}

var protectedCategories = map[string]struct{}{
	"Cement": {}, "Steel": {}, "Sand": {}, "Bricks": {}, "Labour": {},
}

// DefaultCategories returns a fresh copy of the built-in category set.
func DefaultCategories() []string {
	return append([]string(nil), defaultCategories...)
}

// IsProtectedCategory reports whether the presentation layer should refuse
// to delete the category. Nothing in the data layer enforces it.
func IsProtectedCategory(name string) bool {
	_, ok := protectedCategories[name]
	return ok
}

// ValidateBudget rejects zero, negative and non-finite budgets.
func ValidateBudget(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return &ValidationError{Field: "budget", Reason: "must be a positive number"}
	}
	return nil
}

// NormalizeCategory trims a category name and rejects empty ones.
func NormalizeCategory(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &ValidationError{Field: "category", Reason: "name cannot be empty"}
	}
	return name, nil
}

// DedupeCategories trims names, drops empties and keeps the first occurrence
// of each name in input order.
func DedupeCategories(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
