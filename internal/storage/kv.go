package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const kvTable = "kv_store"

// KVStore is the SQLite backed persistence adapter for the local ledger.
type KVStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ KV = (*KVStore)(nil)

func NewKVStore(dbPath string) (*KVStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, err
	}
	return &KVStore{db: db, now: time.Now}, nil
}

func (s *KVStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping verifies the underlying database connection.
func (s *KVStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	query, args, err := sq.Select("value").From(kvTable).Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return "", false, fmt.Errorf("build get query: %w", err)
	}

	var value string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	if err := s.upsert(ctx, s.db, key, value); err != nil {
		return err
	}
	slog.DebugContext(ctx, "Key written", "key", key, "bytes", len(value))
	return nil
}

func (s *KVStore) Remove(ctx context.Context, key string) error {
	return s.RemoveMany(ctx, []string{key})
}

func (s *KVStore) RemoveMany(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.deleteKeys(ctx, s.db, keys)
}

// Apply runs every write and removal of the batch inside one transaction.
func (s *KVStore) Apply(ctx context.Context, b Batch) error {
	if b.Empty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	if len(b.Remove) > 0 {
		if err := s.deleteKeys(ctx, tx, b.Remove); err != nil {
			return err
		}
	}

	// Sorted so statements run in a deterministic order
	keys := make([]string, 0, len(b.Set))
	for k := range b.Set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := s.upsert(ctx, tx, k, b.Set[k]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	slog.InfoContext(ctx, "Batch applied",
		"set", len(b.Set),
		"removed", len(b.Remove))
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *KVStore) upsert(ctx context.Context, db execer, key, value string) error {
	query, args, err := sq.Insert(kvTable).
		Columns("key", "value", "updated_at").
		Values(key, value, s.now().UnixMilli()).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build set query: %w", err)
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) deleteKeys(ctx context.Context, db execer, keys []string) error {
	query, args, err := sq.Delete(kvTable).Where(sq.Eq{"key": keys}).ToSql()
	if err != nil {
		return fmt.Errorf("build remove query: %w", err)
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("remove %v: %w", keys, err)
	}
	return nil
}
