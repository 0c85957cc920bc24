package engine

import (
	"fmt"
	"math"
	"sync"

	"github.com/lazypower/affect/internal/affect"
)

// MemoryStore is the ordered, append-only interaction history of one
// session plus its logical clock. Writers (append, clear, advance) hold the
// lock exclusively; readers share it and only ever see copies.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []affect.MemoryEntry
	clock   int64
	nextID  int64
	version uint64
	closed  bool
}

// NewMemoryStore returns an empty store with the clock at zero.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// seedMemoryStore builds a store from imported entries. Entries are
// validated, not re-decayed; ids are reassigned 1..N in list order and the
// clock starts at the last entry's CreatedAt.
func seedMemoryStore(imported []affect.MemoryEntry) (*MemoryStore, error) {
	s := NewMemoryStore()
	var last int64
	for i, m := range imported {
		if err := affect.ValidateEntry(m); err != nil {
			return nil, fmt.Errorf("memory[%d]: %w", i, err)
		}
		if m.CreatedAt < last {
			return nil, fmt.Errorf("%w: memory[%d] created_at %d is before %d", affect.ErrInvalidInput, i, m.CreatedAt, last)
		}
		last = m.CreatedAt
		m.ID = s.nextID
		s.nextID++
		s.entries = append(s.entries, m)
	}
	s.clock = last
	return s, nil
}

// restoreMemoryStore rebuilds a store from a snapshot verbatim.
func restoreMemoryStore(snap affect.Snapshot) (*MemoryStore, error) {
	s := NewMemoryStore()
	var last, maxID int64
	for i, m := range snap.Memories {
		if err := affect.ValidateEntry(m); err != nil {
			return nil, fmt.Errorf("memory[%d]: %w", i, err)
		}
		if m.CreatedAt < last {
			return nil, fmt.Errorf("%w: memory[%d] created_at %d is before %d", affect.ErrInvalidInput, i, m.CreatedAt, last)
		}
		last = m.CreatedAt
		if m.ID > maxID {
			maxID = m.ID
		}
	}
	if snap.Clock < last {
		return nil, fmt.Errorf("%w: clock %d is behind newest memory %d", affect.ErrInvalidInput, snap.Clock, last)
	}
	s.entries = append(s.entries, snap.Memories...)
	s.clock = snap.Clock
	s.nextID = max(snap.NextID, maxID+1, 1)
	return s, nil
}

// Append advances the clock by elapsed minutes and stores a new entry
// stamped with the resulting clock value.
func (s *MemoryStore) Append(sourceID, text string, c affect.Coordinate, elapsed int64) (affect.MemoryEntry, error) {
	return s.appendWith(sourceID, text, elapsed, func([]affect.MemoryEntry, int64) affect.Coordinate {
		return c
	})
}

// appendWith is Append with the coordinate derived under the write lock from
// the entries present before the append and the clock value the new entry
// will carry.
func (s *MemoryStore) appendWith(sourceID, text string, elapsed int64, derive func(entries []affect.MemoryEntry, now int64) affect.Coordinate) (affect.MemoryEntry, error) {
	if elapsed < 0 {
		return affect.MemoryEntry{}, fmt.Errorf("%w: elapsed %d is negative", affect.ErrInvalidInput, elapsed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return affect.MemoryEntry{}, affect.ErrSessionNotFound
	}

	if err := s.checkElapsed(elapsed); err != nil {
		return affect.MemoryEntry{}, err
	}
	now := s.clock + elapsed
	entry := affect.MemoryEntry{
		ID:         s.nextID,
		SourceID:   sourceID,
		Text:       text,
		Coordinate: derive(s.entries, now).Clamped(),
		CreatedAt:  now,
	}
	s.clock = now
	s.nextID++
	s.entries = append(s.entries, entry)
	s.version++
	return entry, nil
}

// Snapshot returns a copy of the entries in insertion order.
func (s *MemoryStore) Snapshot() []affect.MemoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]affect.MemoryEntry(nil), s.entries...)
}

// Clear drops every entry. The clock and the id counter are kept.
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return affect.ErrSessionNotFound
	}
	s.entries = nil
	s.version++
	return nil
}

// Advance moves the clock forward without recording anything and returns
// the new clock value.
func (s *MemoryStore) Advance(elapsed int64) (int64, error) {
	if elapsed < 0 {
		return 0, fmt.Errorf("%w: elapsed %d is negative", affect.ErrInvalidInput, elapsed)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, affect.ErrSessionNotFound
	}
	if err := s.checkElapsed(elapsed); err != nil {
		return 0, err
	}
	s.clock += elapsed
	s.version++
	return s.clock, nil
}

// checkElapsed rejects steps that would overflow the clock. Callers hold mu.
func (s *MemoryStore) checkElapsed(elapsed int64) error {
	if elapsed > math.MaxInt64-s.clock {
		return fmt.Errorf("%w: elapsed %d overflows clock %d", affect.ErrInvalidInput, elapsed, s.clock)
	}
	return nil
}

// Clock returns the current logical time.
func (s *MemoryStore) Clock() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clock
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// aggregate computes the current emotion under the read lock.
func (s *MemoryStore) aggregate(personality affect.Coordinate, rate float64, match func(affect.MemoryEntry) bool) affect.Coordinate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Aggregate(personality, rate, s.entries, s.clock, match)
}

// state returns a consistent copy of everything a snapshot needs.
func (s *MemoryStore) state() (entries []affect.MemoryEntry, clock, nextID int64, version uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]affect.MemoryEntry(nil), s.entries...), s.clock, s.nextID, s.version
}

// close rejects later writes. Evaluations that resolved the session before
// it was removed fail instead of appending to a dead store.
func (s *MemoryStore) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
