package ledger

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"

	"expenzoo/internal/core"
	"expenzoo/internal/storage"
)

// Coordinator moves the ledger and settings in and out of a Snapshot.
// Restore and Reset write all three keys in one batch and lock settings
// before the ledger.
type Coordinator struct {
	kv       storage.KV
	ledger   *Ledger
	settings *Settings
	opts     Options
}

func NewCoordinator(kv storage.KV, l *Ledger, s *Settings, opts Options) *Coordinator {
	return &Coordinator{kv: kv, ledger: l, settings: s, opts: opts.withDefaults()}
}

// Export captures a consistent view of both stores.
func (c *Coordinator) Export(ctx context.Context) core.Snapshot {
	c.settings.mu.Lock()
	defer c.settings.mu.Unlock()
	c.ledger.mu.Lock()
	defer c.ledger.mu.Unlock()

	snap := core.Snapshot{
		Version:    core.SnapshotVersion,
		Timestamp:  c.opts.Clock(),
		Budget:     c.settings.budget,
		Categories: append([]string{}, c.settings.categories...),
		Expenses:   append([]core.Expense{}, c.ledger.items...),
	}
	slog.InfoContext(ctx, "Snapshot exported", "expenses", len(snap.Expenses))
	return snap
}

// ExportJSON renders Export as an indented backup file.
func (c *Coordinator) ExportJSON(ctx context.Context) ([]byte, error) {
	return json.MarshalIndent(c.Export(ctx), "", "  ")
}

// Restore replaces both stores with the contents of a backup file.
// Nothing changes when the file is rejected or the write fails.
func (c *Coordinator) Restore(ctx context.Context, data []byte) error {
	doc, err := core.ParseBackup(data)
	if err != nil {
		return err
	}
	return c.restore(ctx, doc)
}

// RestoreSnapshot is Restore for an already decoded snapshot.
func (c *Coordinator) RestoreSnapshot(ctx context.Context, snap core.Snapshot) error {
	if snap.Expenses == nil {
		return &core.InvalidBackupError{Reason: "missing expenses data"}
	}
	return c.restore(ctx, snap.Document())
}

// Reset removes every persisted key and puts both stores back to defaults.
func (c *Coordinator) Reset(ctx context.Context) error {
	c.settings.mu.Lock()
	defer c.settings.mu.Unlock()
	c.ledger.mu.Lock()
	defer c.ledger.mu.Unlock()

	batch := storage.Batch{Remove: []string{KeyBudget, KeyCategories, KeyExpenses}}
	if err := c.kv.Apply(ctx, batch); err != nil {
		return &core.StorageError{Op: "reset", Err: err}
	}

	c.settings.budget = core.DefaultBudget
	c.settings.categories = core.DefaultCategories()
	c.settings.rev++
	c.ledger.commit([]core.Expense{})

	slog.InfoContext(ctx, "Local data reset")
	return nil
}

func (c *Coordinator) restore(ctx context.Context, doc core.BackupDocument) error {
	budget := core.DefaultBudget
	if doc.Budget != nil && *doc.Budget != 0 {
		budget = *doc.Budget
		if budget < 0 || math.IsNaN(budget) || math.IsInf(budget, 0) {
			return &core.InvalidBackupError{Reason: "budget must be a positive number"}
		}
	}

	categories := core.DefaultCategories()
	if doc.Categories != nil {
		categories = core.DedupeCategories(doc.Categories)
	}

	items, _ := normalizeRecords(doc.Expenses, c.opts.Clock(), c.opts.NewID)

	expensesBlob, err := encodeExpenses(items)
	if err != nil {
		return err
	}
	categoriesBlob, err := encodeCategories(categories)
	if err != nil {
		return err
	}
	batch := storage.Batch{Set: map[string]string{
		KeyBudget:     encodeBudget(budget),
		KeyCategories: categoriesBlob,
		KeyExpenses:   expensesBlob,
	}}

	c.settings.mu.Lock()
	defer c.settings.mu.Unlock()
	c.ledger.mu.Lock()
	defer c.ledger.mu.Unlock()

	if err := c.kv.Apply(ctx, batch); err != nil {
		return &core.StorageError{Op: "restore", Err: err}
	}

	c.settings.budget = budget
	c.settings.categories = categories
	c.settings.rev++
	c.ledger.commit(items)

	slog.InfoContext(ctx, "Snapshot restored",
		"version", doc.Version,
		"expenses", len(items),
		"categories", len(categories))
	return nil
}
