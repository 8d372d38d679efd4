package session

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotReady     = errors.New("session: not ready for dispatch")
	ErrMissingOwner = errors.New("session: missing user id")
)

// Store maps user identifiers to sessions. Absent means idle.
type Store interface {
	Get(userID string) (Session, bool)
	Put(s Session) error
	Delete(userID string)
	Len() int
}

// MemoryStore keeps sessions in process memory; a restart drops in-flight
// interactions.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		now:      time.Now,
	}
}

func (m *MemoryStore) Get(userID string) (Session, bool) {
	userID = strings.TrimSpace(userID)
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return Session{}, false
	}
	return s.clone(), true
}

// Put creates or replaces the session for s.UserID. Storing StateIdle
// deletes it. A dispatched session must be Ready.
func (m *MemoryStore) Put(s Session) error {
	s.UserID = strings.TrimSpace(s.UserID)
	if s.UserID == "" {
		return ErrMissingOwner
	}
	if s.State == StateIdle {
		m.Delete(s.UserID)
		return nil
	}
	if s.State == StateDispatched && !s.Ready() {
		return fmt.Errorf("%w: missing %s", ErrNotReady, strings.Join(s.Missing(), ","))
	}
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.sessions[s.UserID]; ok && s.CreatedAt.IsZero() {
		s.CreatedAt = prev.CreatedAt
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	m.sessions[s.UserID] = s.clone()
	return nil
}

func (m *MemoryStore) Delete(userID string) {
	userID = strings.TrimSpace(userID)
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
}

// HoldsFile reports whether a live session still references path.
func (m *MemoryStore) HoldsFile(path string) bool {
	path = filepath.Clean(strings.TrimSpace(path))
	if path == "." {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		for _, p := range []string{s.SourcePath, s.TargetPath, s.OutputPath} {
			if p != "" && filepath.Clean(p) == path {
				return true
			}
		}
	}
	return false
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
