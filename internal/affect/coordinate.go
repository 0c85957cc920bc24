// Package affect defines the emotional-state types shared by the engine,
// the boundary adapter and the codecs: coordinates on Russell's circumplex,
// NPC configuration, memory entries and the error taxonomy.
package affect

import "fmt"

// Coordinate bounds.
const (
	MinValue = -1.0
	MaxValue = 1.0
)

// Coordinate is a point on the valence/arousal plane. Both components live
// in [-1, 1]; constructors and combinators clamp rather than reject.
type Coordinate struct {
	Valence float64 `json:"valence" yaml:"valence"`
	Arousal float64 `json:"arousal" yaml:"arousal"`
}

// NewCoordinate returns a clamped coordinate.
func NewCoordinate(valence, arousal float64) Coordinate {
	return Coordinate{Valence: Clamp(valence), Arousal: Clamp(arousal)}
}

// Clamp bounds v to [-1, 1]. NaN collapses to 0.
func Clamp(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < MinValue:
		return MinValue
	case v > MaxValue:
		return MaxValue
	}
	return v
}

// Clamped returns c with both components clamped.
func (c Coordinate) Clamped() Coordinate {
	return NewCoordinate(c.Valence, c.Arousal)
}

// InBounds reports whether both components are already within [-1, 1].
func (c Coordinate) InBounds() bool {
	return inRange(c.Valence) && inRange(c.Arousal)
}

// Validate returns an error naming the first out-of-range component.
func (c Coordinate) Validate() error {
	if !inRange(c.Valence) {
		return fmt.Errorf("valence %v must be between %.1f and %.1f", c.Valence, MinValue, MaxValue)
	}
	if !inRange(c.Arousal) {
		return fmt.Errorf("arousal %v must be between %.1f and %.1f", c.Arousal, MinValue, MaxValue)
	}
	return nil
}

// Lerp mixes a and b: weight 1 returns a, weight 0 returns b. The result is
// clamped.
func Lerp(a, b Coordinate, weight float64) Coordinate {
	return NewCoordinate(
		a.Valence*weight+b.Valence*(1-weight),
		a.Arousal*weight+b.Arousal*(1-weight),
	)
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(v=%.3f, a=%.3f)", c.Valence, c.Arousal)
}

func inRange(v float64) bool {
	return v >= MinValue && v <= MaxValue
}
