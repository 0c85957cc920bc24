package affect

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxTextLength is the longest interaction text accepted, in characters.
const MaxTextLength = 512

// DefaultDecayRate is applied when a config omits memory.decay_rate.
const DefaultDecayRate = 0.1

// Identity is carried for the caller; aggregation never reads it.
type Identity struct {
	Name       string
	Background string
}

// MemoryConfig controls how fast memories lose influence.
type MemoryConfig struct {
	DecayRate float64
}

// NpcConfig is the immutable per-session configuration.
type NpcConfig struct {
	Identity    Identity
	Personality Coordinate
	Memory      MemoryConfig
}

// DefaultNpcConfig returns a neutral personality with the default decay rate
// and an empty identity (which Validate rejects until a name is set).
func DefaultNpcConfig() NpcConfig {
	return NpcConfig{
		Memory: MemoryConfig{DecayRate: DefaultDecayRate},
	}
}

// Validate checks required fields and bounds. Errors wrap ErrInvalidConfig.
func (c NpcConfig) Validate() error {
	if strings.TrimSpace(c.Identity.Name) == "" {
		return fmt.Errorf("%w: identity.name is required", ErrInvalidConfig)
	}
	if err := c.Personality.Validate(); err != nil {
		return fmt.Errorf("%w: personality %v", ErrInvalidConfig, err)
	}
	if d := c.Memory.DecayRate; !(d >= 0 && d <= 1) {
		return fmt.Errorf("%w: memory.decay_rate %v must be between 0 and 1", ErrInvalidConfig, d)
	}
	return nil
}

// MemoryEntry is one recorded interaction. Entries are never edited once
// stored; decay is computed when the entry is read.
type MemoryEntry struct {
	ID         int64
	SourceID   string // empty when the interaction had no source
	Text       string
	Coordinate Coordinate
	CreatedAt  int64 // session clock, in elapsed minutes
}

// HasSource reports whether the entry was attributed to a source.
func (m MemoryEntry) HasSource() bool {
	return m.SourceID != ""
}

// ValidateText enforces the interaction text bound. Errors wrap
// ErrInvalidInput.
func ValidateText(text string) error {
	if !utf8.ValidString(text) {
		return fmt.Errorf("%w: text is not valid UTF-8", ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(text); n > MaxTextLength {
		return fmt.Errorf("%w: text is %d characters, limit is %d", ErrInvalidInput, n, MaxTextLength)
	}
	return nil
}

// ValidateEntry checks an imported entry before it is seeded into a store.
func ValidateEntry(m MemoryEntry) error {
	if err := ValidateText(m.Text); err != nil {
		return err
	}
	if err := m.Coordinate.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if m.CreatedAt < 0 {
		return fmt.Errorf("%w: created_at %d is negative", ErrInvalidInput, m.CreatedAt)
	}
	return nil
}

// Snapshot is the persisted form of a session: enough to rebuild it under
// the same id with the same clock and id counter.
type Snapshot struct {
	ID       string
	Config   NpcConfig
	Clock    int64
	NextID   int64
	Memories []MemoryEntry
}
