package engine

import (
	"math"

	"github.com/lazypower/affect/internal/affect"
)

// Aggregation:
//   - each memory is weighted by exp(-decay_rate * age), age in clock minutes
//   - the personality enters as one extra point with BaselineWeight
//   - result = weighted mean of personality and memories, clamped
//   - no matches (or no memories) returns the personality exactly
//   - decay_rate 0 weights every memory 1 regardless of age
//   - computed on every read; entries are never rewritten

// BaselineWeight is the fixed weight of the personality anchor.
const BaselineWeight = 1.0

// DecayWeight returns exp(-rate*age). Negative ages count as zero.
func DecayWeight(rate float64, age int64) float64 {
	if age < 0 {
		age = 0
	}
	return math.Exp(-rate * float64(age))
}

// Aggregate combines personality with the decayed coordinates of entries at
// clock value now. A nil match keeps every entry.
func Aggregate(personality affect.Coordinate, rate float64, entries []affect.MemoryEntry, now int64, match func(affect.MemoryEntry) bool) affect.Coordinate {
	sumV := personality.Valence * BaselineWeight
	sumA := personality.Arousal * BaselineWeight
	total := BaselineWeight
	matched := 0

	for _, m := range entries {
		if match != nil && !match(m) {
			continue
		}
		w := DecayWeight(rate, now-m.CreatedAt)
		sumV += w * m.Coordinate.Valence
		sumA += w * m.Coordinate.Arousal
		total += w
		matched++
	}

	if matched == 0 {
		return personality
	}
	return affect.NewCoordinate(sumV/total, sumA/total)
}

// BySource matches entries attributed to source. Entries without a source
// never match, and neither does an empty source.
func BySource(source string) func(affect.MemoryEntry) bool {
	return func(m affect.MemoryEntry) bool {
		return source != "" && m.SourceID == source
	}
}

// Blend mixes a raw reading with the pre-update aggregate. ratio is the
// share of the raw reading.
func Blend(raw, before affect.Coordinate, ratio float64) affect.Coordinate {
	return affect.Lerp(raw.Clamped(), before, ratio)
}
