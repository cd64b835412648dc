// Package ledger owns the local expense ledger, the settings store and the
// backup coordinator that moves both in and out of a portable snapshot.
//
// All state lives in memory and is mirrored to a storage.KV adapter. Every
// mutation stages the new state, persists it whole and only then commits it
// to memory, so a failed write leaves the in-memory view unchanged.
package ledger

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"expenzoo/internal/core"
	"expenzoo/internal/storage"
)

// Storage keys shared with earlier releases of the app.
const (
	KeyBudget     = "@expenzoo_budget"
	KeyCategories = "@expenzoo_categories"
	KeyExpenses   = "@expenses_data"
)

// Options tunes identity and time sources. Zero values use uuid v4 and time.Now.
type Options struct {
	Clock func() time.Time
	NewID func() string
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// Ledger is the ordered list of expense records, newest insertion first.
type Ledger struct {
	mu    sync.Mutex
	kv    storage.KV
	items []core.Expense
	rev   uint64
	opts  Options
}

func NewLedger(kv storage.KV, opts Options) *Ledger {
	return &Ledger{kv: kv, items: []core.Expense{}, opts: opts.withDefaults()}
}

// Load replaces the in-memory list with the persisted one. A missing key
// means an empty ledger. Records that needed an id or a creation time are
// written back so the assigned values survive the next Load.
func (l *Ledger) Load(ctx context.Context) error {
	raw, ok, err := l.kv.Get(ctx, KeyExpenses)
	if err != nil {
		return &core.StorageError{Op: "get", Key: KeyExpenses, Err: err}
	}

	items := []core.Expense{}
	repaired := false
	if ok && strings.TrimSpace(raw) != "" {
		var records []core.BackupExpense
		if err := json.Unmarshal([]byte(raw), &records); err != nil {
			return &core.StorageError{Op: "decode", Key: KeyExpenses, Err: err}
		}
		items, repaired = normalizeRecords(records, l.opts.Clock(), l.opts.NewID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if repaired {
		if err := l.persist(ctx, items); err != nil {
			return err
		}
		slog.InfoContext(ctx, "Ledger records repaired on load")
	}
	l.commit(items)

	slog.InfoContext(ctx, "Ledger loaded", "count", len(items))
	return nil
}

// List returns a copy of the records, newest insertion first.
func (l *Ledger) List() []core.Expense {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]core.Expense(nil), l.items...)
}

// Get returns the record with the given id.
func (l *Ledger) Get(id string) (core.Expense, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.indexOf(id); i >= 0 {
		return l.items[i], true
	}
	return core.Expense{}, false
}

// FilterByCategory returns the records of one category in ledger order. An
// empty category means every record.
func (l *Ledger) FilterByCategory(category string) []core.Expense {
	if category == "" {
		return l.List()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []core.Expense{}
	for _, e := range l.items {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

// Revision changes after every committed mutation.
func (l *Ledger) Revision() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rev
}

// Add validates the input, assigns a fresh id and creation time, and
// prepends the record.
func (l *Ledger) Add(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, err := in.Build(l.uniqueID(), l.opts.Clock())
	if err != nil {
		return core.Expense{}, err
	}

	next := make([]core.Expense, 0, len(l.items)+1)
	next = append(next, e)
	next = append(next, l.items...)
	if err := l.persist(ctx, next); err != nil {
		return core.Expense{}, err
	}
	l.commit(next)

	slog.InfoContext(ctx, "Expense added",
		"id", e.ID,
		"title", e.Title,
		"amount", e.Amount,
		"category", e.Category)
	return e, nil
}

// Update merges the patch onto the record with the given id. An unknown id
// is a silent no-op and reports false.
func (l *Ledger) Update(ctx context.Context, id string, patch core.ExpensePatch) (core.Expense, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(id)
	if i < 0 {
		return core.Expense{}, false, nil
	}
	if patch.Empty() {
		return l.items[i], true, nil
	}

	merged, err := patch.Apply(l.items[i])
	if err != nil {
		return core.Expense{}, true, err
	}

	next := append([]core.Expense(nil), l.items...)
	next[i] = merged
	if err := l.persist(ctx, next); err != nil {
		return core.Expense{}, true, err
	}
	l.commit(next)

	slog.InfoContext(ctx, "Expense updated", "id", id)
	return merged, true, nil
}

// Delete removes the record. Deleting an absent id does nothing.
func (l *Ledger) Delete(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(id)
	if i < 0 {
		return nil
	}

	next := make([]core.Expense, 0, len(l.items)-1)
	next = append(next, l.items[:i]...)
	next = append(next, l.items[i+1:]...)
	if err := l.persist(ctx, next); err != nil {
		return err
	}
	l.commit(next)

	slog.InfoContext(ctx, "Expense deleted", "id", id)
	return nil
}

// Clear empties the ledger and persists the empty list.
func (l *Ledger) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := []core.Expense{}
	if err := l.persist(ctx, next); err != nil {
		return err
	}
	l.commit(next)

	slog.InfoContext(ctx, "Ledger cleared")
	return nil
}

func (l *Ledger) indexOf(id string) int {
	for i, e := range l.items {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (l *Ledger) uniqueID() string {
	for {
		id := l.opts.NewID()
		if l.indexOf(id) < 0 {
			return id
		}
	}
}

func (l *Ledger) persist(ctx context.Context, items []core.Expense) error {
	blob, err := encodeExpenses(items)
	if err != nil {
		return err
	}
	if err := l.kv.Set(ctx, KeyExpenses, blob); err != nil {
		return &core.StorageError{Op: "set", Key: KeyExpenses, Err: err}
	}
	return nil
}

// commit must be called with l.mu held.
func (l *Ledger) commit(items []core.Expense) {
	l.items = items
	l.rev++
}

func encodeExpenses(items []core.Expense) (string, error) {
	if items == nil {
		items = []core.Expense{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", &core.StorageError{Op: "encode", Key: KeyExpenses, Err: err}
	}
	return string(b), nil
}

// normalizeRecords turns decoded records into ledger entries. Missing or
// repeated ids get fresh ones; missing creation times become now; a missing
// date falls back to the creation date. assigned reports whether any id or
// creation time had to be made up.
func normalizeRecords(records []core.BackupExpense, now time.Time, newID func() string) (out []core.Expense, assigned bool) {
	out = make([]core.Expense, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		id := strings.TrimSpace(r.Identifier())
		_, dup := seen[id]
		for id == "" || dup {
			id = newID()
			_, dup = seen[id]
			assigned = true
		}
		seen[id] = struct{}{}

		created := now
		if r.CreatedAt != nil && !r.CreatedAt.IsZero() {
			created = *r.CreatedAt
		} else {
			assigned = true
		}
		date := r.Date
		if date.IsZero() {
			date = core.DateOf(created)
		}
		mode, err := core.ParsePaymentMode(r.PaymentMode)
		if err != nil {
			mode = core.PaymentOther
		}

		out = append(out, core.Expense{
			ID:          id,
			Title:       strings.TrimSpace(r.Title),
			Amount:      r.Amount,
			Category:    strings.TrimSpace(r.Category),
			PaymentMode: mode,
			Notes:       r.Notes,
			Date:        date,
			CreatedAt:   created,
		})
	}
	return out, assigned
}
