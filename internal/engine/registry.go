package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lazypower/affect/internal/affect"
)

// Session is one live NPC: its immutable config and its memory.
type Session struct {
	ID      string
	Config  affect.NpcConfig
	Memory  *MemoryStore
	Created time.Time
}

// Emotion returns the session's current aggregate. A non-nil match
// restricts it to matching memories.
func (s *Session) Emotion(match func(affect.MemoryEntry) bool) affect.Coordinate {
	return s.Memory.aggregate(s.Config.Personality, s.Config.Memory.DecayRate, match)
}

// Snapshot captures the session for persistence.
func (s *Session) Snapshot() affect.Snapshot {
	entries, clock, nextID, _ := s.Memory.state()
	return affect.Snapshot{
		ID:       s.ID,
		Config:   s.Config,
		Clock:    clock,
		NextID:   nextID,
		Memories: entries,
	}
}

// Registry maps session ids to sessions. Lookups share the lock; create and
// remove take it exclusively. Per-session work happens on the session's own
// MemoryStore lock, never on this one.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Create validates cfg, seeds the optional imported memories and registers
// a new session under a fresh id.
func (r *Registry) Create(cfg affect.NpcConfig, imported []affect.MemoryEntry) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mem, err := seedMemoryStore(imported)
	if err != nil {
		return nil, fmt.Errorf("import memories: %w", err)
	}

	s := &Session{
		ID:      uuid.NewString(),
		Config:  cfg,
		Memory:  mem,
		Created: time.Now(),
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s, nil
}

// Restore re-registers a persisted session under its original id.
func (r *Registry) Restore(snap affect.Snapshot) (*Session, error) {
	if snap.ID == "" {
		return nil, fmt.Errorf("%w: snapshot has no id", affect.ErrInvalidInput)
	}
	if err := snap.Config.Validate(); err != nil {
		return nil, fmt.Errorf("restore %s: %w", snap.ID, err)
	}
	mem, err := restoreMemoryStore(snap)
	if err != nil {
		return nil, fmt.Errorf("restore %s: %w", snap.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[snap.ID]; ok {
		return nil, fmt.Errorf("restore %s: session already exists", snap.ID)
	}
	s := &Session{ID: snap.ID, Config: snap.Config, Memory: mem, Created: time.Now()}
	r.sessions[s.ID] = s
	return s, nil
}

// Get resolves id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("NPC session '%s': %w", id, affect.ErrSessionNotFound)
	}
	return s, nil
}

// Remove deletes id and closes its store.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("NPC session '%s': %w", id, affect.ErrSessionNotFound)
	}
	s.Memory.close()
	return nil
}

// ClearMemory empties id's memory.
func (r *Registry) ClearMemory(id string) error {
	s, err := r.Get(id)
	if err != nil {
		return err
	}
	if err := s.Memory.Clear(); err != nil {
		return fmt.Errorf("NPC session '%s': %w", id, err)
	}
	return nil
}

// List returns the live session ids, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Sessions returns the live sessions in id order.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
