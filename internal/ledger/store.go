package ledger

import (
	"context"
	"fmt"
	"strings"

	"expenzoo/internal/core"
	"expenzoo/internal/storage"
)

// Store owns the ledger, the settings and the backup coordinator over one
// persistence adapter.
type Store struct {
	Ledger   *Ledger
	Settings *Settings
	Backup   *Coordinator
}

// Open builds a Store over kv and loads the persisted state.
func Open(ctx context.Context, kv storage.KV, opts Options) (*Store, error) {
	opts = opts.withDefaults()
	l := NewLedger(kv, opts)
	s := NewSettings(kv)

	if err := s.Load(ctx); err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if err := l.Load(ctx); err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	return &Store{
		Ledger:   l,
		Settings: s,
		Backup:   NewCoordinator(kv, l, s, opts),
	}, nil
}

// AddExpense adds a record after checking its category against the current
// category set.
func (s *Store) AddExpense(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	if !s.Settings.HasCategory(strings.TrimSpace(in.Category)) {
		return core.Expense{}, &core.ValidationError{Field: "category", Reason: fmt.Sprintf("%q is not a known category", in.Category)}
	}
	return s.Ledger.Add(ctx, in)
}
