package storage

import (
	"context"
	"errors"
)

// ErrInjected is returned by test adapters configured to fail.
var ErrInjected = errors.New("injected storage failure")

// Batch is a set of key writes and removals applied as one unit.
type Batch struct {
	Set    map[string]string
	Remove []string
}

// Empty reports whether the batch carries no work.
func (b Batch) Empty() bool {
	return len(b.Set) == 0 && len(b.Remove) == 0
}

// KV is the persistence adapter for the local ledger: string keys holding
// JSON encoded blobs.
type KV interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	RemoveMany(ctx context.Context, keys []string) error
	// Apply writes every entry of the batch or none of them.
	Apply(ctx context.Context, b Batch) error
}
