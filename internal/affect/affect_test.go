package affect

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.5, 0.5},
		{-1, -1},
		{1, 1},
		{1.5, 1},
		{-3, -1},
		{math.Inf(1), 1},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, Clamp(tt.in))
		})
	}
}

func TestNewCoordinateClamps(t *testing.T) {
	c := NewCoordinate(2, -7)
	assert.Equal(t, Coordinate{Valence: 1, Arousal: -1}, c)
	assert.True(t, c.InBounds())
	assert.False(t, Coordinate{Valence: 1.2}.InBounds())
}

func TestLerp(t *testing.T) {
	a := Coordinate{Valence: 1, Arousal: 0}
	b := Coordinate{Valence: 0, Arousal: 1}

	assert.Equal(t, a, Lerp(a, b, 1))
	assert.Equal(t, b, Lerp(a, b, 0))
	assert.Equal(t, Coordinate{Valence: 0.5, Arousal: 0.5}, Lerp(a, b, 0.5))
}

func TestNpcConfigValidate(t *testing.T) {
	valid := NpcConfig{
		Identity:    Identity{Name: "Alice", Background: "Warrior"},
		Personality: Coordinate{Valence: 0.3, Arousal: -0.2},
		Memory:      MemoryConfig{DecayRate: 0.15},
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *NpcConfig)
	}{
		{"missing name", func(c *NpcConfig) { c.Identity.Name = "  " }},
		{"valence too high", func(c *NpcConfig) { c.Personality.Valence = 1.5 }},
		{"arousal too low", func(c *NpcConfig) { c.Personality.Arousal = -1.01 }},
		{"negative decay", func(c *NpcConfig) { c.Memory.DecayRate = -0.1 }},
		{"decay above one", func(c *NpcConfig) { c.Memory.DecayRate = 1.1 }},
		{"decay NaN", func(c *NpcConfig) { c.Memory.DecayRate = math.NaN() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestDefaultNpcConfig(t *testing.T) {
	c := DefaultNpcConfig()
	assert.Equal(t, 0.1, c.Memory.DecayRate)
	assert.Equal(t, Coordinate{}, c.Personality)
	assert.ErrorIs(t, c.Validate(), ErrInvalidConfig, "empty name must be rejected")
}

func TestValidateText(t *testing.T) {
	assert.NoError(t, ValidateText(""))
	assert.NoError(t, ValidateText(strings.Repeat("a", MaxTextLength)))
	assert.NoError(t, ValidateText(strings.Repeat("é", MaxTextLength)), "limit counts characters, not bytes")
	assert.ErrorIs(t, ValidateText(strings.Repeat("a", MaxTextLength+1)), ErrInvalidInput)
	assert.ErrorIs(t, ValidateText("bad \xff utf8"), ErrInvalidInput)
}

func TestValidateEntry(t *testing.T) {
	ok := MemoryEntry{Text: "hi", Coordinate: Coordinate{Valence: 0.2}, CreatedAt: 3}
	assert.NoError(t, ValidateEntry(ok))

	bad := ok
	bad.Coordinate.Arousal = 2
	assert.ErrorIs(t, ValidateEntry(bad), ErrInvalidInput)

	bad = ok
	bad.CreatedAt = -1
	assert.ErrorIs(t, ValidateEntry(bad), ErrInvalidInput)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("create: %w", ErrInvalidConfig), KindInvalidConfig},
		{fmt.Errorf("get: %w", ErrSessionNotFound), KindSessionNotFound},
		{ErrInvalidInput, KindInvalidInput},
		{fmt.Errorf("a: %w", fmt.Errorf("b: %w", ErrInferenceUnavailable)), KindInferenceUnavailable},
		{fmt.Errorf("%w: %w", ErrNotInitialized, ErrInferenceUnavailable), KindNotInitialized},
		{ErrAlreadyInitialized, KindAlreadyInitialized},
		{errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err))
	}
}
