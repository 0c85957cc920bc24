package inference

import (
	"context"
	"strings"
	"unicode"

	"github.com/lazypower/affect/internal/affect"
)

// Lexicon is an offline fallback predictor. It averages the circumplex
// coordinates of known words, flips valence after a negator, and lifts
// arousal for exclamation marks. Readings are coarse but deterministic, so
// the server runs without a model and tests get stable numbers.
type Lexicon struct {
	words map[string]affect.Coordinate
}

// NewLexicon returns a Lexicon loaded with the built-in word list.
func NewLexicon() *Lexicon {
	return &Lexicon{words: defaultLexicon}
}

var negators = map[string]bool{
	"not": true, "no": true, "never": true, "don't": true, "didn't": true,
	"won't": true, "can't": true, "isn't": true, "wasn't": true,
}

// Predict scores text. Unknown text reads as neutral (0, 0).
func (l *Lexicon) Predict(ctx context.Context, text string) (affect.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return affect.Coordinate{}, err
	}

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})

	var sum affect.Coordinate
	matched := 0
	negate := false
	for _, tok := range tokens {
		if negators[tok] {
			negate = true
			continue
		}
		c, ok := l.words[tok]
		if !ok {
			continue
		}
		if negate {
			c.Valence = -c.Valence * 0.8
			negate = false
		}
		sum.Valence += c.Valence
		sum.Arousal += c.Arousal
		matched++
	}

	var out affect.Coordinate
	if matched > 0 {
		out.Valence = sum.Valence / float64(matched)
		out.Arousal = sum.Arousal / float64(matched)
	}
	bangs := strings.Count(text, "!")
	if bangs > 3 {
		bangs = 3
	}
	out.Arousal += 0.1 * float64(bangs)

	return out.Clamped(), nil
}

var defaultLexicon = map[string]affect.Coordinate{
	// pleasant, energetic
	"thank":     {Valence: 0.7, Arousal: 0.3},
	"thanks":    {Valence: 0.7, Arousal: 0.3},
	"saving":    {Valence: 0.6, Arousal: 0.5},
	"saved":     {Valence: 0.6, Arousal: 0.5},
	"love":      {Valence: 0.9, Arousal: 0.5},
	"happy":     {Valence: 0.8, Arousal: 0.5},
	"joy":       {Valence: 0.9, Arousal: 0.6},
	"great":     {Valence: 0.7, Arousal: 0.4},
	"wonderful": {Valence: 0.8, Arousal: 0.5},
	"amazing":   {Valence: 0.8, Arousal: 0.7},
	"excited":   {Valence: 0.7, Arousal: 0.9},
	"hero":      {Valence: 0.7, Arousal: 0.5},
	"friend":    {Valence: 0.6, Arousal: 0.1},
	"gift":      {Valence: 0.6, Arousal: 0.4},
	"win":       {Valence: 0.7, Arousal: 0.7},
	"victory":   {Valence: 0.8, Arousal: 0.7},
	"laugh":     {Valence: 0.7, Arousal: 0.6},
	"good":      {Valence: 0.5, Arousal: 0.1},
	"kind":      {Valence: 0.6, Arousal: 0.0},
	"help":      {Valence: 0.4, Arousal: 0.2},
	"life":      {Valence: 0.3, Arousal: 0.1},

	// pleasant, calm
	"calm":     {Valence: 0.4, Arousal: -0.7},
	"peace":    {Valence: 0.6, Arousal: -0.6},
	"relaxed":  {Valence: 0.6, Arousal: -0.7},
	"safe":     {Valence: 0.5, Arousal: -0.4},
	"rest":     {Valence: 0.3, Arousal: -0.6},
	"gentle":   {Valence: 0.5, Arousal: -0.4},
	"content":  {Valence: 0.5, Arousal: -0.3},
	"sleep":    {Valence: 0.2, Arousal: -0.8},
	"quiet":    {Valence: 0.2, Arousal: -0.6},
	"welcome":  {Valence: 0.6, Arousal: 0.1},
	"please":   {Valence: 0.2, Arousal: 0.0},
	"sorry":    {Valence: -0.1, Arousal: -0.2},
	"trust":    {Valence: 0.6, Arousal: -0.1},
	"grateful": {Valence: 0.8, Arousal: 0.2},

	// unpleasant, energetic
	"hate":     {Valence: -0.9, Arousal: 0.7},
	"angry":    {Valence: -0.7, Arousal: 0.8},
	"kill":     {Valence: -0.9, Arousal: 0.9},
	"die":      {Valence: -0.8, Arousal: 0.6},
	"attack":   {Valence: -0.7, Arousal: 0.8},
	"afraid":   {Valence: -0.7, Arousal: 0.7},
	"scared":   {Valence: -0.7, Arousal: 0.7},
	"fear":     {Valence: -0.7, Arousal: 0.7},
	"threat":   {Valence: -0.7, Arousal: 0.6},
	"steal":    {Valence: -0.7, Arousal: 0.5},
	"stole":    {Valence: -0.7, Arousal: 0.5},
	"liar":     {Valence: -0.7, Arousal: 0.5},
	"betray":   {Valence: -0.9, Arousal: 0.6},
	"furious":  {Valence: -0.8, Arousal: 0.9},
	"stupid":   {Valence: -0.6, Arousal: 0.4},
	"bad":      {Valence: -0.5, Arousal: 0.2},
	"terrible": {Valence: -0.8, Arousal: 0.4},

	// unpleasant, calm
	"sad":     {Valence: -0.7, Arousal: -0.4},
	"lonely":  {Valence: -0.6, Arousal: -0.5},
	"tired":   {Valence: -0.3, Arousal: -0.7},
	"bored":   {Valence: -0.4, Arousal: -0.7},
	"lost":    {Valence: -0.5, Arousal: -0.2},
	"gone":    {Valence: -0.4, Arousal: -0.3},
	"dead":    {Valence: -0.8, Arousal: -0.3},
	"cry":     {Valence: -0.6, Arousal: 0.1},
	"grief":   {Valence: -0.8, Arousal: -0.3},
	"alone":   {Valence: -0.5, Arousal: -0.5},
	"ignored": {Valence: -0.5, Arousal: -0.2},
}
