// Package kv is the key-value storage seam under the attribution records.
// Two physical stores back it: the visitor's cookie jar and a server-side
// table partitioned by visitor id ("local" storage)
package kv

import (
	"context"
	"maps"
	"sync"
	"time"
)

// Store is a uniform get/set/delete over one physical store
// maxAge <= 0 on Set means no expiry hint
type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, maxAge time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Kind names a physical store
type Kind string

// Supported physical stores
const (
	KindCookie Kind = "cookie"
	KindLocal  Kind = "local"
)

// Valid reports whether k is a supported kind
func (k Kind) Valid() bool { return k == KindCookie || k == KindLocal }

// Memory is a flat in-process Store, mostly for tests
// it records the last maxAge written per key
type Memory struct {
	mu     sync.Mutex
	data   map[string]string
	maxAge map[string]time.Duration
}

// NewMemory returns an empty Memory store
func NewMemory() *Memory {
	return &Memory{data: map[string]string{}, maxAge: map[string]time.Duration{}}
}

// Get implements Store
func (m *Memory) Get(_ context.Context, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

// Set implements Store
func (m *Memory) Set(_ context.Context, key, value string, maxAge time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.maxAge[key] = maxAge
	return nil
}

// Delete implements Store
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	delete(m.maxAge, key)
	return nil
}

// MaxAge returns the last maxAge written for key
func (m *Memory) MaxAge(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxAge[key]
}

// Snapshot copies the current contents
func (m *Memory) Snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.data)
}
