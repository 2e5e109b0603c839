// Package session assigns conversation thread identifiers and records turns
// in the session registry.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/persona/internal/storage"
)

// Registry records session turns.
type Registry interface {
	TouchSession(threadID string, now time.Time) (storage.Session, error)
}

// ThreadID picks the identifier for a turn: the existing thread id if the
// caller has one, else the inbound message id, else a new UUID.
func ThreadID(existing, messageID string) string {
	if id := strings.TrimSpace(existing); id != "" {
		return id
	}
	if id := strings.TrimSpace(messageID); id != "" {
		return id
	}
	return uuid.NewString()
}

// Manager resolves thread ids and records each completed turn. A nil
// registry makes Record a pure id assignment.
type Manager struct {
	registry Registry
	now      func() time.Time
}

// NewManager creates a manager over registry (which may be nil).
func NewManager(registry Registry) *Manager {
	return &Manager{registry: registry, now: time.Now}
}

// Record counts a completed turn and returns the session it belongs to.
// Callers record only after the reply succeeds, so failed attempts leave
// turns and last_seen_at untouched.
func (m *Manager) Record(threadID, messageID string) (storage.Session, error) {
	id := ThreadID(threadID, messageID)
	now := m.now()
	if m.registry == nil {
		return storage.Session{ThreadID: id, CreatedAt: now, LastSeenAt: now, Turns: 1}, nil
	}
	sess, err := m.registry.TouchSession(id, now)
	if err != nil {
		return storage.Session{}, fmt.Errorf("recording session %s: %w", id, err)
	}
	return sess, nil
}
