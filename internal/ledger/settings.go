package ledger

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"expenzoo/internal/core"
	"expenzoo/internal/storage"
)

// Settings holds the project budget and the category set.
type Settings struct {
	mu         sync.Mutex
	kv         storage.KV
	budget     float64
	categories []string
	rev        uint64
}

func NewSettings(kv storage.KV) *Settings {
	return &Settings{
		kv:         kv,
		budget:     core.DefaultBudget,
		categories: core.DefaultCategories(),
	}
}

// Load reads both settings keys. Missing or unreadable values fall back to
// the defaults.
func (s *Settings) Load(ctx context.Context) error {
	budget := core.DefaultBudget
	raw, ok, err := s.kv.Get(ctx, KeyBudget)
	if err != nil {
		return &core.StorageError{Op: "get", Key: KeyBudget, Err: err}
	}
	if ok {
		v, perr := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if perr == nil && core.ValidateBudget(v) == nil {
			budget = v
		} else {
			slog.WarnContext(ctx, "Ignoring stored budget", "value", raw)
		}
	}

	categories := core.DefaultCategories()
	raw, ok, err = s.kv.Get(ctx, KeyCategories)
	if err != nil {
		return &core.StorageError{Op: "get", Key: KeyCategories, Err: err}
	}
	if ok {
		var stored []string
		if jerr := json.Unmarshal([]byte(raw), &stored); jerr == nil && stored != nil {
			categories = core.DedupeCategories(stored)
		} else {
			slog.WarnContext(ctx, "Ignoring stored categories", "error", jerr)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.budget = budget
	s.categories = categories
	s.rev++
	return nil
}

func (s *Settings) Budget() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budget
}

// Categories returns a copy of the category set in display order.
func (s *Settings) Categories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.categories...)
}

// HasCategory reports whether name is in the category set.
func (s *Settings) HasCategory(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return indexOfString(s.categories, name) >= 0
}

func (s *Settings) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rev
}

// SetBudget replaces the budget. It must be finite and positive.
func (s *Settings) SetBudget(ctx context.Context, v float64) error {
	if err := core.ValidateBudget(v); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Set(ctx, KeyBudget, encodeBudget(v)); err != nil {
		return &core.StorageError{Op: "set", Key: KeyBudget, Err: err}
	}
	s.budget = v
	s.rev++

	slog.InfoContext(ctx, "Budget updated", "budget", v)
	return nil
}

// AddCategory appends a new category and returns the trimmed name.
func (s *Settings) AddCategory(ctx context.Context, name string) (string, error) {
	name, err := core.NormalizeCategory(name)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if indexOfString(s.categories, name) >= 0 {
		return "", &core.DuplicateError{Name: name}
	}

	next := append(append([]string(nil), s.categories...), name)
	if err := s.persistCategories(ctx, next); err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Category added", "category", name)
	return name, nil
}

// RenameCategory replaces oldName in place. A missing oldName does nothing.
// Expense records keep their category string.
func (s *Settings) RenameCategory(ctx context.Context, oldName, newName string) error {
	newName, err := core.NormalizeCategory(newName)
	if err != nil {
		return err
	}
	oldName = strings.TrimSpace(oldName)

	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOfString(s.categories, oldName)
	if i < 0 || oldName == newName {
		return nil
	}
	if indexOfString(s.categories, newName) >= 0 {
		return &core.DuplicateError{Name: newName}
	}

	next := append([]string(nil), s.categories...)
	next[i] = newName
	if err := s.persistCategories(ctx, next); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Category renamed", "from", oldName, "to", newName)
	return nil
}

// RemoveCategory drops name from the set. A missing name does nothing.
func (s *Settings) RemoveCategory(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)

	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOfString(s.categories, name)
	if i < 0 {
		return nil
	}

	next := make([]string, 0, len(s.categories)-1)
	next = append(next, s.categories[:i]...)
	next = append(next, s.categories[i+1:]...)
	if err := s.persistCategories(ctx, next); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Category removed", "category", name)
	return nil
}

// persistCategories writes and commits; s.mu must be held.
func (s *Settings) persistCategories(ctx context.Context, next []string) error {
	blob, err := encodeCategories(next)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, KeyCategories, blob); err != nil {
		return &core.StorageError{Op: "set", Key: KeyCategories, Err: err}
	}
	s.categories = next
	s.rev++
	return nil
}

func encodeBudget(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func encodeCategories(c []string) (string, error) {
	if c == nil {
		c = []string{}
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", &core.StorageError{Op: "encode", Key: KeyCategories, Err: err}
	}
	return string(b), nil
}

func indexOfString(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}
