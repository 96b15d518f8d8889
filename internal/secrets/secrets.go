// Package secrets resolves named credentials. Lookups report absence with
// ok=false rather than an error.
package secrets

import (
	"context"
	"os"
	"strings"
	"sync"
)

// Store looks up named secrets.
type Store interface {
	Get(ctx context.Context, name string) (value string, ok bool, err error)
}

// Writer persists named secrets.
type Writer interface {
	Put(ctx context.Context, name, value string) error
	Delete(ctx context.Context, name string) error
}

// Env reads secrets from environment variables. A name like
// "openai-api-key" maps to PREFIX_OPENAI_API_KEY.
type Env struct {
	Prefix string
}

func (e Env) Get(ctx context.Context, name string) (string, bool, error) {
	key := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", ":", "_").Replace(name))
	if e.Prefix != "" {
		key = strings.ToUpper(e.Prefix) + "_" + key
	}
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false, nil
	}
	return v, true, nil
}

// Chain returns the first secret found in stores, in order.
type Chain []Store

func (c Chain) Get(ctx context.Context, name string) (string, bool, error) {
	for _, s := range c {
		v, ok, err := s.Get(ctx, name)
		if err != nil {
			return "", false, err
		}
		if ok {
			return v, true, nil
		}
	}
	return "", false, nil
}

// Memory is an in-process secret store.
type Memory struct {
	mu   sync.RWMutex
	vals map[string]string
}

// NewMemory returns a store seeded with vals.
func NewMemory(vals map[string]string) *Memory {
	m := &Memory{vals: make(map[string]string, len(vals))}
	for k, v := range vals {
		m.vals[norm(k)] = v
	}
	return m
}

func (m *Memory) Get(ctx context.Context, name string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vals[norm(name)]
	return v, ok, nil
}

func (m *Memory) Put(ctx context.Context, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[norm(name)] = value
	return nil
}

func (m *Memory) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vals, norm(name))
	return nil
}

func norm(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}
