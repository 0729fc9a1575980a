package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"n8n-assist-backend/internal/inject"
)

type MemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string][]Message
	maxMessages int
	// Pending injections expire after pendingTTL; zero keeps them forever.
	pendingByHost map[string]inject.PendingInjection
	pendingTTL    time.Duration
	activation    map[string]bool
}

func NewMemoryStore(maxMessages int, pendingTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions:      make(map[string][]Message),
		maxMessages:   maxMessages,
		pendingByHost: make(map[string]inject.PendingInjection),
		pendingTTL:    pendingTTL,
		activation:    make(map[string]bool),
	}
}

func (m *MemoryStore) AppendHistory(_ context.Context, host string, msgs ...Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[host] = trim(append(m.sessions[host], msgs...), m.maxMessages)
	return nil
}

func (m *MemoryStore) History(_ context.Context, host string) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.sessions[host]
	copyMsgs := make([]Message, len(msgs))
	copy(copyMsgs, msgs)
	return copyMsgs, nil
}

func (m *MemoryStore) SetHistory(_ context.Context, host string, msgs []Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[host] = trim(append([]Message(nil), msgs...), m.maxMessages)
	return nil
}

func (m *MemoryStore) ClearHistory(_ context.Context, host string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, host)
	return nil
}

// SavePending stores a copy of p, replacing any earlier record for the host.
func (m *MemoryStore) SavePending(_ context.Context, host string, p inject.PendingInjection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.Workflow = append(json.RawMessage(nil), p.Workflow...)
	p.RouteCandidates = append([]string(nil), p.RouteCandidates...)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	m.pendingByHost[host] = p
	return nil
}

// Pending returns the host's record if within TTL.
func (m *MemoryStore) Pending(_ context.Context, host string) (*inject.PendingInjection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pendingByHost[host]
	if !ok {
		return nil, nil
	}
	if m.pendingTTL > 0 && time.Since(p.CreatedAt) > m.pendingTTL {
		delete(m.pendingByHost, host)
		return nil, nil
	}
	p.Workflow = append(json.RawMessage(nil), p.Workflow...)
	p.RouteCandidates = append([]string(nil), p.RouteCandidates...)
	return &p, nil
}

func (m *MemoryStore) ClearPending(_ context.Context, host string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pendingByHost, host)
	return nil
}

func (m *MemoryStore) Activation(_ context.Context, host string) (bool, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	enabled, ok := m.activation[host]
	return enabled, ok, nil
}

func (m *MemoryStore) SetActivation(_ context.Context, host string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activation[host] = enabled
	return nil
}

func (m *MemoryStore) Close() error { return nil }
