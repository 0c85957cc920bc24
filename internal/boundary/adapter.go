// Package boundary is the call surface for hosts that cannot share Go
// memory: every operation parks its result in a Payload owned by the
// Adapter and hands back an opaque Handle. The host reads the payload with
// Take and frees it with Release, exactly once.
package boundary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lazypower/affect/internal/affect"
	"github.com/lazypower/affect/internal/codec"
	"github.com/lazypower/affect/internal/engine"
)

// ErrInvalidHandle is returned for handles that were never issued or were
// already released.
var ErrInvalidHandle = errors.New("invalid handle")

// Handle identifies a payload held by the Adapter. Zero is never issued.
type Handle uint64

// Payload is the result of one operation. Exactly one of Data and Error is
// set. Data is always valid JSON.
type Payload struct {
	OK    bool            `json:"success"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
	Kind  string          `json:"kind,omitempty"`
}

// Adapter translates boundary calls into engine calls. It is the only code
// that constructs or frees payloads.
type Adapter struct {
	engine *engine.Engine
	log    zerolog.Logger

	mu   sync.Mutex
	next Handle
	live map[Handle]*Payload
}

// New wraps e.
func New(e *engine.Engine, log zerolog.Logger) *Adapter {
	return &Adapter{
		engine: e,
		log:    log.With().Str("component", "boundary").Logger(),
		live:   make(map[Handle]*Payload),
	}
}

func (a *Adapter) park(p *Payload) Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next++
	a.live[a.next] = p
	return a.next
}

func (a *Adapter) ok(v any) Handle {
	data, err := json.Marshal(v)
	if err != nil {
		return a.fail(fmt.Errorf("encode result: %w", err))
	}
	return a.park(&Payload{OK: true, Data: data})
}

func (a *Adapter) coordinate(c affect.Coordinate) Handle {
	data, err := codec.EncodeCoordinate(c)
	if err != nil {
		return a.fail(fmt.Errorf("encode result: %w", err))
	}
	return a.raw(data)
}

func (a *Adapter) raw(data []byte) Handle {
	return a.park(&Payload{OK: true, Data: json.RawMessage(data)})
}

func (a *Adapter) fail(err error) Handle {
	kind := affect.KindOf(err)
	a.log.Debug().Err(err).Str("kind", kind).Msg("operation failed")
	return a.park(&Payload{Error: err.Error(), Kind: kind})
}

// Take returns a copy of the payload behind h. The payload stays owned by
// the Adapter until Release.
func (a *Adapter) Take(h Handle) (Payload, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.live[h]
	if !ok {
		return Payload{}, fmt.Errorf("take %d: %w", h, ErrInvalidHandle)
	}
	return *p, nil
}

// Release frees the payload behind h. A second release of the same handle
// reports ErrInvalidHandle.
func (a *Adapter) Release(h Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.live[h]; !ok {
		return fmt.Errorf("release %d: %w", h, ErrInvalidHandle)
	}
	delete(a.live, h)
	return nil
}

// Consume takes and releases h in one step.
func (a *Adapter) Consume(h Handle) (Payload, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.live[h]
	if !ok {
		return Payload{}, fmt.Errorf("consume %d: %w", h, ErrInvalidHandle)
	}
	delete(a.live, h)
	return *p, nil
}

// Outstanding reports how many payloads have not been released.
func (a *Adapter) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// Initialize loads the shared predictor.
func (a *Adapter) Initialize(ctx context.Context) Handle {
	if err := a.engine.Initialize(ctx); err != nil {
		return a.fail(err)
	}
	return a.ok("Model initialized successfully")
}

type createResult struct {
	NpcID string `json:"npc_id"`
}

// CreateSession decodes config (JSON or YAML) and an optional memory list,
// then registers a new session.
func (a *Adapter) CreateSession(config, memories []byte) Handle {
	cfg, err := codec.DecodeConfig(config)
	if err != nil {
		return a.fail(err)
	}
	imported, err := codec.DecodeMemories(memories)
	if err != nil {
		return a.fail(err)
	}
	id, err := a.engine.CreateSession(cfg, imported)
	if err != nil {
		return a.fail(err)
	}
	return a.ok(createResult{NpcID: id})
}

// RemoveSession drops npcID.
func (a *Adapter) RemoveSession(npcID string) Handle {
	if err := a.engine.RemoveSession(npcID); err != nil {
		return a.fail(err)
	}
	return a.ok(fmt.Sprintf("NPC session '%s' removed successfully", npcID))
}

// Evaluate records an interaction and returns the blended reading. An empty
// sourceID records the interaction without a source.
func (a *Adapter) Evaluate(ctx context.Context, npcID, text, sourceID string, elapsed int64) Handle {
	c, err := a.engine.Evaluate(ctx, npcID, text, sourceID, elapsed)
	if err != nil {
		return a.fail(err)
	}
	return a.coordinate(c)
}

// GetEmotion returns the aggregate over all memories.
func (a *Adapter) GetEmotion(npcID string) Handle {
	c, err := a.engine.Emotion(npcID)
	if err != nil {
		return a.fail(err)
	}
	return a.coordinate(c)
}

// GetEmotionBySource returns the aggregate over memories from sourceID.
func (a *Adapter) GetEmotionBySource(npcID, sourceID string) Handle {
	c, err := a.engine.EmotionBySource(npcID, sourceID)
	if err != nil {
		return a.fail(err)
	}
	return a.coordinate(c)
}

// GetMemory returns the session's entries as a JSON array.
func (a *Adapter) GetMemory(npcID string) Handle {
	entries, err := a.engine.Memory(npcID)
	if err != nil {
		return a.fail(err)
	}
	data, err := codec.EncodeMemories(entries, codec.JSON)
	if err != nil {
		return a.fail(fmt.Errorf("encode memory: %w", err))
	}
	return a.raw(data)
}

// ClearMemory empties the session's memory.
func (a *Adapter) ClearMemory(npcID string) Handle {
	if err := a.engine.ClearMemory(npcID); err != nil {
		return a.fail(err)
	}
	return a.ok("Memory cleared successfully")
}

type clockResult struct {
	Clock int64 `json:"clock"`
}

// AdvanceTime moves the session clock forward.
func (a *Adapter) AdvanceTime(npcID string, minutes int64) Handle {
	clock, err := a.engine.AdvanceTime(npcID, minutes)
	if err != nil {
		return a.fail(err)
	}
	return a.ok(clockResult{Clock: clock})
}

// SessionInfo is one row of ListSessions.
type SessionInfo struct {
	NpcID    string            `json:"npc_id"`
	Name     string            `json:"name"`
	Memories int               `json:"memories"`
	Clock    int64             `json:"clock"`
	Emotion  affect.Coordinate `json:"emotion"`
}

// ListSessions describes every live session.
func (a *Adapter) ListSessions() Handle {
	ids, err := a.engine.Sessions()
	if err != nil {
		return a.fail(err)
	}
	out := make([]SessionInfo, 0, len(ids))
	for _, id := range ids {
		s, err := a.engine.Session(id)
		if err != nil {
			// removed between listing and lookup
			continue
		}
		out = append(out, SessionInfo{
			NpcID:    s.ID,
			Name:     s.Config.Identity.Name,
			Memories: s.Memory.Len(),
			Clock:    s.Memory.Clock(),
			Emotion:  s.Emotion(nil),
		})
	}
	return a.ok(out)
}

// Initialized reports whether the shared predictor is loaded.
func (a *Adapter) Initialized() bool {
	return a.engine.Initialized()
}
