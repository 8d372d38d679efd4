// Package registry remembers which users have already been greeted.
package registry

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Nyxora-Sanctum/whatsapp-deepfake-bot/internal/fsstore"
)

// Registry records the first contact time of every user. Entries are never
// overwritten.
type Registry interface {
	Has(ctx context.Context, userID string) bool
	Record(ctx context.Context, userID string, at time.Time) error
}

const registryFileName = "users.json"

type fileState struct {
	Users map[string]string `json:"users"`
}

// FileRegistry persists users to <dir>/users.json. The first-seen map is
// cached in memory after the first load.
type FileRegistry struct {
	path string

	mu     sync.Mutex
	loaded bool
	users  map[string]time.Time
}

func NewFileRegistry(dir string) (*FileRegistry, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("registry dir is required")
	}
	return &FileRegistry{
		path:  filepath.Join(dir, registryFileName),
		users: make(map[string]time.Time),
	}, nil
}

func (r *FileRegistry) Path() string { return r.path }

func (r *FileRegistry) Has(ctx context.Context, userID string) bool {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.loadLocked(ctx); err != nil {
		return false
	}
	_, ok := r.users[userID]
	return ok
}

func (r *FileRegistry) Record(ctx context.Context, userID string, at time.Time) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("registry: empty user id")
	}
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	var merged map[string]string
	err := fsstore.MutateJSON(ctx, r.path, fsstore.FileOptions{}, func(st *fileState) error {
		if st.Users == nil {
			st.Users = make(map[string]string)
		}
		if _, exists := st.Users[userID]; !exists {
			st.Users[userID] = at.Format(time.RFC3339)
		}
		merged = st.Users
		return nil
	})
	if err != nil {
		return fmt.Errorf("registry record %s: %w", userID, err)
	}
	r.replaceLocked(merged)
	return nil
}

func (r *FileRegistry) loadLocked(ctx context.Context) error {
	if r.loaded {
		return nil
	}
	var st fileState
	err := fsstore.WithFileLock(ctx, r.path, func() error {
		_, err := fsstore.ReadJSON(r.path, &st)
		return err
	})
	if err != nil {
		return err
	}
	r.replaceLocked(st.Users)
	return nil
}

func (r *FileRegistry) replaceLocked(raw map[string]string) {
	users := make(map[string]time.Time, len(raw))
	for id, ts := range raw {
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			parsed = time.Time{}
		}
		users[id] = parsed
	}
	r.users = users
	r.loaded = true
}

// MemoryRegistry is an in-process Registry.
type MemoryRegistry struct {
	mu    sync.Mutex
	users map[string]time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{users: make(map[string]time.Time)}
}

func (r *MemoryRegistry) Has(_ context.Context, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.users[strings.TrimSpace(userID)]
	return ok
}

func (r *MemoryRegistry) Record(_ context.Context, userID string, at time.Time) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("registry: empty user id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[userID]; !ok {
		r.users[userID] = at
	}
	return nil
}

func (r *MemoryRegistry) FirstSeen(userID string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	at, ok := r.users[strings.TrimSpace(userID)]
	return at, ok
}
