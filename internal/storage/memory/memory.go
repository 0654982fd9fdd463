// Package memory is an in-process KV store for local runs and tests.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"spendbook/internal/storage"
)

// SeedFile is read by NewFromFiles. It maps a username to that user's
// expense array in the same JSON shape the repositories store.
const SeedFile = "seed_expenses.json"

type Store struct {
	mu     sync.Mutex
	values map[string][]byte
	closed bool
}

func New() *Store {
	return &Store{values: make(map[string][]byte)}
}

// NewFromFiles returns a store pre-loaded from base/seed_expenses.json. A
// missing file yields an empty store.
func NewFromFiles(base string) (*Store, error) {
	s := New()
	raw, err := os.ReadFile(filepath.Join(base, SeedFile))
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed map[string]json.RawMessage
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for _, user := range sortedKeys(seed) {
		name := strings.TrimSpace(user)
		if name == "" {
			continue
		}
		s.values[storage.KeyExpenses(name)] = append([]byte(nil), seed[user]...)
	}
	return s, nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}
	v, ok := s.values[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	s.values[key] = append([]byte(nil), value...)
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	delete(s.values, key)
	return nil
}

// Keys lists the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.values))
	for k := range s.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var errClosed = errors.New("memory store closed")

func sortedKeys(m map[string]json.RawMessage) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
