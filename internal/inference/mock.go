package inference

import (
	"context"
	"sync"

	"github.com/lazypower/affect/internal/affect"
)

// MockResult is a canned reply for one input text.
type MockResult struct {
	Coordinate affect.Coordinate
	Err        error
}

// Mock is a test double for the Predictor interface. Texts found in
// Responses get their canned result; everything else gets Default and Err.
// It can also be used for dry-run mode.
type Mock struct {
	Responses map[string]MockResult
	Default   affect.Coordinate
	Err       error

	// Block, when non-nil, is received from before answering so tests can
	// hold a prediction in flight.
	Block chan struct{}

	mu    sync.Mutex
	calls []string
}

// Predict records the call and returns the canned reading.
func (m *Mock) Predict(ctx context.Context, text string) (affect.Coordinate, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()

	if m.Block != nil {
		select {
		case <-m.Block:
		case <-ctx.Done():
			return affect.Coordinate{}, ctx.Err()
		}
	}

	if r, ok := m.Responses[text]; ok {
		return r.Coordinate, r.Err
	}
	return m.Default, m.Err
}

// Calls returns the texts predicted so far, in call order.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
