package session

import (
	"context"
	"sync"
	"time"

	"commerce-basket/internal/domain"
	"github.com/google/uuid"
)

// Rotation is the outcome of replacing a session key.
type Rotation struct {
	Old string
	New string
}

// Store issues anonymous session keys and keeps, per key, the key it replaced
// at login (the prior-key marker).
type Store interface {
	Issue(ctx context.Context) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Rotate(ctx context.Context, key string) (Rotation, error)
	PriorKey(ctx context.Context, key string) (string, error)
	SetPriorKey(ctx context.Context, key, prior string) error
	ClearPriorKey(ctx context.Context, key string) error
}

type entry struct {
	prior     string
	expiresAt time.Time
}

// Memory is a process-local Store. Entries expire ttl after they were issued
// or rotated.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (m *Memory) Issue(_ context.Context) (string, error) {
	key := uuid.NewString()
	m.mu.Lock()
	m.entries[key] = entry{expiresAt: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return key, nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.lookup(key)
	return ok, nil
}

func (m *Memory) Rotate(_ context.Context, key string) (Rotation, error) {
	if _, ok := m.lookup(key); !ok {
		return Rotation{}, domain.ErrNotFound
	}
	next := uuid.NewString()
	m.mu.Lock()
	delete(m.entries, key)
	m.entries[next] = entry{expiresAt: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return Rotation{Old: key, New: next}, nil
}

func (m *Memory) PriorKey(_ context.Context, key string) (string, error) {
	e, _ := m.lookup(key)
	return e.prior, nil
}

func (m *Memory) SetPriorKey(_ context.Context, key, prior string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || m.now().After(e.expiresAt) {
		return domain.ErrNotFound
	}
	e.prior = prior
	m.entries[key] = e
	return nil
}

func (m *Memory) ClearPriorKey(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		e.prior = ""
		m.entries[key] = e
	}
	return nil
}

func (m *Memory) lookup(key string) (entry, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return entry{}, false
	}
	if m.now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return entry{}, false
	}
	return e, true
}
