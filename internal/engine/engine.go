// Package engine keeps the emotional state of every live NPC session:
// memory stores, decay-weighted aggregation, interaction evaluation and the
// session registry.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lazypower/affect/internal/affect"
	"github.com/lazypower/affect/internal/inference"
	"github.com/lazypower/affect/internal/metrics"
)

// DefaultBlendRatio is the raw reading's share of an evaluation response.
const DefaultBlendRatio = 0.5

// Loader produces the shared predictor. It runs once, from Initialize.
type Loader func(ctx context.Context) (inference.Predictor, error)

// Persister stores session snapshots. *store.DB implements it.
type Persister interface {
	SaveSnapshot(snap affect.Snapshot) error
	DeleteSnapshot(id string) error
}

// Options tune an Engine.
type Options struct {
	// BlendRatio outside (0, 1], including the zero value, means
	// DefaultBlendRatio.
	BlendRatio float64
	Logger     zerolog.Logger
}

// Engine owns the registry and the shared predictor.
type Engine struct {
	Registry *Registry

	load  Loader
	blend float64
	log   zerolog.Logger

	mu        sync.RWMutex
	predictor inference.Predictor
	initErr   error
	closed    bool

	persistMu sync.Mutex
	persister Persister
	saved     map[string]uint64

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates an Engine. Nothing is loaded until Initialize.
func New(load Loader, opts Options) *Engine {
	blend := opts.BlendRatio
	if !(blend > 0 && blend <= 1) {
		blend = DefaultBlendRatio
	}
	return &Engine{
		Registry: NewRegistry(),
		load:     load,
		blend:    blend,
		log:      opts.Logger.With().Str("component", "engine").Logger(),
		saved:    make(map[string]uint64),
		stopCh:   make(chan struct{}),
	}
}

// Static returns a Loader that hands out p.
func Static(p inference.Predictor) Loader {
	return func(context.Context) (inference.Predictor, error) { return p, nil }
}

// SetPersister configures snapshot persistence for Checkpoint and Remove.
func (e *Engine) SetPersister(p Persister) {
	e.persistMu.Lock()
	e.persister = p
	e.persistMu.Unlock()
}

// Initialize loads the predictor. A second successful call is rejected;
// after a failed call every session operation reports ErrNotInitialized
// wrapping the cause until Initialize succeeds.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("%w: engine is closed", affect.ErrNotInitialized)
	}
	if e.predictor != nil {
		return affect.ErrAlreadyInitialized
	}

	p, err := e.load(ctx)
	if err == nil && p == nil {
		err = errors.New("loader returned no predictor")
	}
	if err != nil {
		e.initErr = err
		e.log.Error().Err(err).Msg("predictor initialization failed")
		return fmt.Errorf("%w: %w", affect.ErrNotInitialized, err)
	}
	e.predictor = p
	e.initErr = nil
	e.log.Info().Str("predictor", fmt.Sprintf("%T", p)).Msg("predictor initialized")
	return nil
}

// Initialized reports whether a predictor is loaded.
func (e *Engine) Initialized() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.predictor != nil
}

func (e *Engine) ready() (inference.Predictor, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	switch {
	case e.predictor != nil:
		return e.predictor, nil
	case e.initErr != nil:
		return nil, fmt.Errorf("%w: %w", affect.ErrNotInitialized, e.initErr)
	default:
		return nil, affect.ErrNotInitialized
	}
}

// Close stops background work and releases the predictor.
func (e *Engine) Close() error {
	e.stopOnce.Do(func() { close(e.stopCh) })

	e.mu.Lock()
	p := e.predictor
	e.predictor = nil
	e.closed = true
	e.mu.Unlock()

	if c, ok := p.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// CreateSession registers a new NPC and returns its id.
func (e *Engine) CreateSession(cfg affect.NpcConfig, imported []affect.MemoryEntry) (string, error) {
	if _, err := e.ready(); err != nil {
		return "", err
	}
	s, err := e.Registry.Create(cfg, imported)
	if err != nil {
		return "", err
	}
	metrics.ActiveSessions.Set(float64(e.Registry.Len()))
	if len(imported) > 0 {
		metrics.MemoryOperations.WithLabelValues("import").Add(float64(len(imported)))
	}
	e.log.Info().Str("npc", s.ID).Str("name", cfg.Identity.Name).Int("memories", len(imported)).Msg("session created")
	return s.ID, nil
}

// RemoveSession drops an NPC and its persisted rows.
func (e *Engine) RemoveSession(id string) error {
	if _, err := e.ready(); err != nil {
		return err
	}
	if err := e.Registry.Remove(id); err != nil {
		return err
	}
	metrics.ActiveSessions.Set(float64(e.Registry.Len()))

	e.persistMu.Lock()
	p := e.persister
	delete(e.saved, id)
	e.persistMu.Unlock()
	if p != nil {
		if err := p.DeleteSnapshot(id); err != nil {
			e.log.Warn().Err(err).Str("npc", id).Msg("delete snapshot failed")
		}
	}
	e.log.Info().Str("npc", id).Msg("session removed")
	return nil
}

// Evaluate infers the emotional reading of text, blends it with the
// session's pre-update aggregate, records the blended reading as a new
// memory and returns it. elapsed advances the session clock first. On any
// failure nothing is recorded.
func (e *Engine) Evaluate(ctx context.Context, id, text, sourceID string, elapsed int64) (affect.Coordinate, error) {
	c, err := e.evaluate(ctx, id, text, sourceID, elapsed)
	outcome := "ok"
	if err != nil {
		outcome = affect.KindOf(err)
		e.log.Warn().Err(err).Str("npc", id).Msg("evaluate failed")
	}
	metrics.Evaluations.WithLabelValues(outcome).Inc()
	return c, err
}

func (e *Engine) evaluate(ctx context.Context, id, text, sourceID string, elapsed int64) (affect.Coordinate, error) {
	if err := affect.ValidateText(text); err != nil {
		return affect.Coordinate{}, err
	}
	if elapsed < 0 {
		return affect.Coordinate{}, fmt.Errorf("%w: elapsed %d is negative", affect.ErrInvalidInput, elapsed)
	}
	p, err := e.ready()
	if err != nil {
		return affect.Coordinate{}, err
	}
	s, err := e.Registry.Get(id)
	if err != nil {
		return affect.Coordinate{}, err
	}

	start := time.Now()
	raw, err := p.Predict(ctx, text)
	took := time.Since(start)
	metrics.InferenceLatency.Observe(took.Seconds())
	e.log.Debug().Str("npc", id).Dur("took", took).Msg("inference")
	if err != nil {
		return affect.Coordinate{}, fmt.Errorf("%w: %w", affect.ErrInferenceUnavailable, err)
	}

	personality, rate := s.Config.Personality, s.Config.Memory.DecayRate
	entry, err := s.Memory.appendWith(sourceID, text, elapsed, func(entries []affect.MemoryEntry, now int64) affect.Coordinate {
		before := Aggregate(personality, rate, entries, now, nil)
		return Blend(raw, before, e.blend)
	})
	if err != nil {
		return affect.Coordinate{}, fmt.Errorf("NPC session '%s': %w", id, err)
	}
	metrics.MemoryOperations.WithLabelValues("append").Inc()
	return entry.Coordinate, nil
}

// Emotion returns the session's current aggregate over all memories.
func (e *Engine) Emotion(id string) (affect.Coordinate, error) {
	s, err := e.session(id)
	if err != nil {
		return affect.Coordinate{}, err
	}
	return s.Emotion(nil), nil
}

// EmotionBySource aggregates only memories attributed to source.
func (e *Engine) EmotionBySource(id, source string) (affect.Coordinate, error) {
	s, err := e.session(id)
	if err != nil {
		return affect.Coordinate{}, err
	}
	return s.Emotion(BySource(source)), nil
}

// Memory returns a copy of the session's entries in insertion order.
func (e *Engine) Memory(id string) ([]affect.MemoryEntry, error) {
	s, err := e.session(id)
	if err != nil {
		return nil, err
	}
	return s.Memory.Snapshot(), nil
}

// ClearMemory empties the session's memory; the clock keeps running.
func (e *Engine) ClearMemory(id string) error {
	if _, err := e.ready(); err != nil {
		return err
	}
	if err := e.Registry.ClearMemory(id); err != nil {
		return err
	}
	metrics.MemoryOperations.WithLabelValues("clear").Inc()
	e.log.Info().Str("npc", id).Msg("memory cleared")
	return nil
}

// AdvanceTime moves the session clock forward by minutes and returns the
// new clock value.
func (e *Engine) AdvanceTime(id string, minutes int64) (int64, error) {
	s, err := e.session(id)
	if err != nil {
		return 0, err
	}
	clock, err := s.Memory.Advance(minutes)
	if err != nil {
		return 0, fmt.Errorf("NPC session '%s': %w", id, err)
	}
	metrics.MemoryOperations.WithLabelValues("advance").Inc()
	return clock, nil
}

// Sessions lists live session ids.
func (e *Engine) Sessions() ([]string, error) {
	if _, err := e.ready(); err != nil {
		return nil, err
	}
	return e.Registry.List(), nil
}

// Session returns the live session for id.
func (e *Engine) Session(id string) (*Session, error) {
	return e.session(id)
}

func (e *Engine) session(id string) (*Session, error) {
	if _, err := e.ready(); err != nil {
		return nil, err
	}
	return e.Registry.Get(id)
}

// Snapshot captures one session for persistence or export.
func (e *Engine) Snapshot(id string) (affect.Snapshot, error) {
	s, err := e.session(id)
	if err != nil {
		return affect.Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// Restore re-registers persisted sessions. Bad snapshots are logged and
// skipped; the number restored is returned.
func (e *Engine) Restore(snaps []affect.Snapshot) int {
	restored := 0
	for _, snap := range snaps {
		s, err := e.Registry.Restore(snap)
		if err != nil {
			e.log.Warn().Err(err).Str("npc", snap.ID).Msg("skipping snapshot")
			continue
		}
		_, _, _, version := s.Memory.state()
		e.persistMu.Lock()
		e.saved[s.ID] = version
		e.persistMu.Unlock()
		restored++
	}
	metrics.ActiveSessions.Set(float64(e.Registry.Len()))
	if restored > 0 {
		e.log.Info().Int("sessions", restored).Msg("restored sessions")
	}
	return restored
}

// Checkpoint saves every session that changed since it was last saved and
// returns how many were written.
func (e *Engine) Checkpoint() (int, error) {
	e.persistMu.Lock()
	defer e.persistMu.Unlock()
	if e.persister == nil {
		return 0, nil
	}

	written := 0
	var errs []error
	for _, s := range e.Registry.Sessions() {
		entries, clock, nextID, version := s.Memory.state()
		if v, ok := e.saved[s.ID]; ok && v == version {
			continue
		}
		snap := affect.Snapshot{ID: s.ID, Config: s.Config, Clock: clock, NextID: nextID, Memories: entries}
		if err := e.persister.SaveSnapshot(snap); err != nil {
			errs = append(errs, fmt.Errorf("save %s: %w", s.ID, err))
			continue
		}
		e.saved[s.ID] = version
		written++
	}
	return written, errors.Join(errs...)
}

// StartCheckpointTimer checkpoints every interval until Close.
func (e *Engine) StartCheckpointTimer(interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n, err := e.Checkpoint(); err != nil {
					e.log.Error().Err(err).Msg("checkpoint")
				} else if n > 0 {
					e.log.Debug().Int("sessions", n).Msg("checkpoint")
				}
			case <-e.stopCh:
				return
			}
		}
	}()
}
