package kv

import (
	"context"
	"sync"
	"time"
)

// Table is a server-side key-value table partitioned by owner
// Rows carry no expiry; records stamp their own and expiry is checked on read
type Table interface {
	Get(ctx context.Context, owner, key string) (string, bool, error)
	Put(ctx context.Context, owner, key, value string) error
	Delete(ctx context.Context, owner, key string) error
}

// ErrorFunc receives table errors the Store interface cannot return
type ErrorFunc func(op, key string, err error)

// Scoped is a Store over one owner's partition of a Table
type Scoped struct {
	t     Table
	owner string
	onErr ErrorFunc
}

// NewScoped binds a Table to owner; onErr may be nil
func NewScoped(t Table, owner string, onErr ErrorFunc) *Scoped {
	return &Scoped{t: t, owner: owner, onErr: onErr}
}

// Get implements Store; a table error reads as absent
func (s *Scoped) Get(ctx context.Context, key string) (string, bool) {
	v, ok, err := s.t.Get(ctx, s.owner, key)
	if err != nil {
		s.report("get", key, err)
		return "", false
	}
	return v, ok
}

// Set implements Store; maxAge is ignored
func (s *Scoped) Set(ctx context.Context, key, value string, _ time.Duration) error {
	if err := s.t.Put(ctx, s.owner, key, value); err != nil {
		s.report("put", key, err)
		return err
	}
	return nil
}

// Delete implements Store
func (s *Scoped) Delete(ctx context.Context, key string) error {
	if err := s.t.Delete(ctx, s.owner, key); err != nil {
		s.report("delete", key, err)
		return err
	}
	return nil
}

// Owner returns the partition key
func (s *Scoped) Owner() string { return s.owner }

func (s *Scoped) report(op, key string, err error) {
	if s.onErr != nil {
		s.onErr(op, key, err)
	}
}

// MemoryTable is an in-process Table
type MemoryTable struct {
	mu   sync.RWMutex
	rows map[string]map[string]string
}

// NewMemoryTable returns an empty table
func NewMemoryTable() *MemoryTable {
	return &MemoryTable{rows: map[string]map[string]string{}}
}

// Get implements Table
func (m *MemoryTable) Get(_ context.Context, owner, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.rows[owner][key]
	return v, ok, nil
}

// Put implements Table
func (m *MemoryTable) Put(_ context.Context, owner, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[owner]
	if !ok {
		p = map[string]string{}
		m.rows[owner] = p
	}
	p[key] = value
	return nil
}

// Delete implements Table
func (m *MemoryTable) Delete(_ context.Context, owner, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows[owner], key)
	if len(m.rows[owner]) == 0 {
		delete(m.rows, owner)
	}
	return nil
}

// Len reports the number of keys held for owner
func (m *MemoryTable) Len(owner string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows[owner])
}
