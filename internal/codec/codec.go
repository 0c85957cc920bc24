// Package codec reads and writes the exchange format for NPC configs and
// memory lists. JSON and YAML are both accepted; the format is sniffed from
// the first non-blank byte.
package codec

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/lazypower/affect/internal/affect"
)

// Format selects the encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// ParseFormat maps a flag value onto a Format, defaulting to JSON.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	}
	return "", fmt.Errorf("unknown format %q (want json or yaml)", s)
}

// Detect sniffs the encoding of data.
func Detect(data []byte) Format {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return JSON
	}
	return YAML
}

type identityDoc struct {
	Name       string `json:"name" yaml:"name"`
	Background string `json:"background" yaml:"background"`
}

type memoryConfigDoc struct {
	DecayRate *float64 `json:"decay_rate,omitempty" yaml:"decay_rate,omitempty"`
}

type configDoc struct {
	Identity    identityDoc       `json:"identity" yaml:"identity"`
	Personality affect.Coordinate `json:"personality" yaml:"personality"`
	Memory      *memoryConfigDoc  `json:"memory,omitempty" yaml:"memory,omitempty"`
}

// memoryRecord is one entry of a memory list. Imported ids are accepted in
// any scalar form; numeric ones are kept, the rest read as 0. The registry
// assigns its own ids on import either way. past_time is a memory's age in
// minutes, the older exchange format; a list uses either past_time or
// created_at, never both.
type memoryRecord struct {
	ID        any     `json:"id,omitempty" yaml:"id,omitempty"`
	SourceID  string  `json:"source_id,omitempty" yaml:"source_id,omitempty"`
	Text      string  `json:"text" yaml:"text"`
	Valence   float64 `json:"valence" yaml:"valence"`
	Arousal   float64 `json:"arousal" yaml:"arousal"`
	CreatedAt *int64  `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	PastTime  *int64  `json:"past_time,omitempty" yaml:"past_time,omitempty"`
}

func unmarshal(data []byte, v any) error {
	if Detect(data) == JSON {
		return json.Unmarshal(data, v)
	}
	return yaml.Unmarshal(data, v)
}

func marshal(v any, f Format) ([]byte, error) {
	if f == YAML {
		return yaml.Marshal(v)
	}
	return json.Marshal(v)
}

// DecodeConfig parses an NPC config. A missing memory.decay_rate defaults
// to affect.DefaultDecayRate. Bounds are not checked here; see
// affect.NpcConfig.Validate.
func DecodeConfig(data []byte) (affect.NpcConfig, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return affect.NpcConfig{}, fmt.Errorf("%w: config is empty", affect.ErrInvalidConfig)
	}

	var doc configDoc
	if err := unmarshal(data, &doc); err != nil {
		return affect.NpcConfig{}, fmt.Errorf("%w: failed to parse config: %v", affect.ErrInvalidConfig, err)
	}

	cfg := affect.NpcConfig{
		Identity:    affect.Identity{Name: doc.Identity.Name, Background: doc.Identity.Background},
		Personality: doc.Personality,
		Memory:      affect.MemoryConfig{DecayRate: affect.DefaultDecayRate},
	}
	if doc.Memory != nil && doc.Memory.DecayRate != nil {
		cfg.Memory.DecayRate = *doc.Memory.DecayRate
	}
	return cfg, nil
}

// EncodeConfig writes cfg in format f.
func EncodeConfig(cfg affect.NpcConfig, f Format) ([]byte, error) {
	rate := cfg.Memory.DecayRate
	return marshal(configDoc{
		Identity:    identityDoc{Name: cfg.Identity.Name, Background: cfg.Identity.Background},
		Personality: cfg.Personality,
		Memory:      &memoryConfigDoc{DecayRate: &rate},
	}, f)
}

// DecodeMemories parses a memory list. Blank input is an empty list.
func DecodeMemories(data []byte) ([]affect.MemoryEntry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var records []memoryRecord
	if err := unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: failed to parse memory: %v", affect.ErrInvalidInput, err)
	}

	entries := make([]affect.MemoryEntry, len(records))
	ages := false
	for i, r := range records {
		if r.PastTime != nil {
			ages = true
		}
		var at int64
		if r.CreatedAt != nil {
			at = *r.CreatedAt
		}
		entries[i] = affect.MemoryEntry{
			ID:         numericID(r.ID),
			SourceID:   r.SourceID,
			Text:       r.Text,
			Coordinate: affect.Coordinate{Valence: r.Valence, Arousal: r.Arousal},
			CreatedAt:  at,
		}
	}
	if ages {
		if err := agesToTimestamps(records, entries); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// agesToTimestamps stamps entries from past_time ages so the oldest memory
// sits at 0 and the newest at the largest age, then orders them oldest
// first. Relative ages are preserved; the newest memory is the import time.
func agesToTimestamps(records []memoryRecord, entries []affect.MemoryEntry) error {
	var oldest int64
	for i, r := range records {
		switch {
		case r.CreatedAt != nil:
			return fmt.Errorf("%w: memory[%d] mixes created_at with past_time", affect.ErrInvalidInput, i)
		case r.PastTime == nil:
			return fmt.Errorf("%w: memory[%d] has no past_time", affect.ErrInvalidInput, i)
		case *r.PastTime < 0:
			return fmt.Errorf("%w: memory[%d] past_time %d is negative", affect.ErrInvalidInput, i, *r.PastTime)
		}
		oldest = max(oldest, *r.PastTime)
	}
	for i, r := range records {
		entries[i].CreatedAt = oldest - *r.PastTime
	}
	slices.SortStableFunc(entries, func(a, b affect.MemoryEntry) int {
		return cmp.Compare(a.CreatedAt, b.CreatedAt)
	})
	return nil
}

func numericID(v any) int64 {
	switch id := v.(type) {
	case float64:
		return int64(id)
	case int:
		return int64(id)
	case int64:
		return id
	case uint64:
		return int64(id)
	}
	return 0
}

// EncodeMemories writes entries in format f. An empty list encodes as [].
func EncodeMemories(entries []affect.MemoryEntry, f Format) ([]byte, error) {
	records := make([]memoryRecord, len(entries))
	for i, m := range entries {
		at := m.CreatedAt
		records[i] = memoryRecord{
			ID:        m.ID,
			SourceID:  m.SourceID,
			Text:      m.Text,
			Valence:   m.Coordinate.Valence,
			Arousal:   m.Coordinate.Arousal,
			CreatedAt: &at,
		}
	}
	return marshal(records, f)
}

// EncodeCoordinate writes c as {"valence":..,"arousal":..}.
func EncodeCoordinate(c affect.Coordinate) ([]byte, error) {
	return json.Marshal(c)
}
