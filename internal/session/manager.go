// Package session keeps live consultations addressable by ID. Each
// session owns its own rule set and state; the manager only guards the
// registry map, never the sessions themselves. Callers of one session
// must stay sequential.
package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/todmy/visa-advisor/internal/engine"
)

// ErrSessionNotFound is returned for unknown session IDs.
var ErrSessionNotFound = errors.New("session not found")

// Manager is a concurrency-safe registry of live consultations.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*engine.Consultation
}

// NewManager creates an empty registry.
func NewManager() *Manager {
	return &Manager{sessions: make(map[uuid.UUID]*engine.Consultation)}
}

// Create registers a new consultation over the rule set and returns
// its ID.
func (m *Manager) Create(rules *engine.RuleSet) (uuid.UUID, *engine.Consultation) {
	id := uuid.New()
	c := engine.NewConsultation(rules)

	m.mu.Lock()
	m.sessions[id] = c
	m.mu.Unlock()

	return id, c
}

// Get looks a consultation up by ID.
func (m *Manager) Get(id uuid.UUID) (*engine.Consultation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return c, nil
}

// Delete removes a consultation from the registry.
func (m *Manager) Delete(id uuid.UUID) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
