package registry

import (
	"context"
	"sync"
)

// Memory is an in-process Registry. Tokens are lost on restart and not
// shared across instances; it is suitable only for single-instance,
// non-durable deployments and is never a production store.
type Memory struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{tokens: make(map[string]string)}
}

// Register overwrites the stored token for an identity. Last write wins.
func (m *Memory) Register(_ context.Context, identityID, token string) error {
	m.mu.Lock()
	m.tokens[identityID] = token
	m.mu.Unlock()
	return nil
}

// Lookup returns the stored token for an identity, or ErrAbsent.
func (m *Memory) Lookup(_ context.Context, identityID string) (string, error) {
	m.mu.RLock()
	token, ok := m.tokens[identityID]
	m.mu.RUnlock()

	if !ok || token == "" {
		return "", ErrAbsent
	}
	return token, nil
}
