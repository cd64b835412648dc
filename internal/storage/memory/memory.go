package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"expenzoo/internal/storage"
)

// Store is an in-memory persistence adapter. Failures can be injected for
// tests through FailWrites.
type Store struct {
	mu     sync.Mutex
	values map[string]string
	writes int
	failOn func(op string, keys []string) error
}

var _ storage.KV = (*Store)(nil)

func New() *Store {
	return &Store{values: map[string]string{}}
}

// NewFromFiles seeds the store from <base>/seed_<key>.json files when present.
// Lines starting with # are ignored.
func NewFromFiles(base string, keys ...string) *Store {
	s := New()
	for _, key := range keys {
		if v := readSeed(filepath.Join(base, "seed_"+seedName(key)+".json")); v != "" {
			s.values[key] = v
		}
	}
	return s
}

// FailWrites makes every following write fail with err when fn returns
// true for it. Passing nil clears the injection.
func (s *Store) FailWrites(fn func(op string, keys []string) bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		s.failOn = nil
		return
	}
	if err == nil {
		err = storage.ErrInjected
	}
	s.failOn = func(op string, keys []string) error {
		if fn(op, keys) {
			return err
		}
		return nil
	}
}

// Writes returns how many successful write operations the store has served.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Snapshot returns a copy of every stored key and value.
func (s *Store) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("set", []string{key}); err != nil {
		return err
	}
	s.values[key] = value
	s.writes++
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	return s.RemoveMany(ctx, []string{key})
}

func (s *Store) RemoveMany(_ context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("remove", keys); err != nil {
		return err
	}
	for _, k := range keys {
		delete(s.values, k)
	}
	s.writes++
	return nil
}

// Apply validates the whole batch against injected failures before touching
// any key, so a failing batch leaves the store unchanged.
func (s *Store) Apply(_ context.Context, b storage.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := append([]string(nil), b.Remove...)
	for k := range b.Set {
		keys = append(keys, k)
	}
	if err := s.check("apply", keys); err != nil {
		return err
	}
	for _, k := range b.Remove {
		delete(s.values, k)
	}
	for k, v := range b.Set {
		s.values[k] = v
	}
	s.writes++
	return nil
}

func (s *Store) check(op string, keys []string) error {
	if s.failOn == nil {
		return nil
	}
	return s.failOn(op, keys)
}

func seedName(key string) string {
	return strings.Trim(strings.NewReplacer("@", "", "/", "_").Replace(key), "_")
}

func readSeed(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
