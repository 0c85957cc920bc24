package affect

import "errors"

// Error taxonomy. Call sites wrap these with fmt.Errorf("...: %w", err);
// use errors.Is or KindOf to classify.
var (
	ErrInvalidConfig        = errors.New("invalid config")
	ErrSessionNotFound      = errors.New("session not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInferenceUnavailable = errors.New("inference unavailable")
	ErrNotInitialized       = errors.New("not initialized")
	ErrAlreadyInitialized   = errors.New("model already initialized")
)

// Kind names used in boundary payloads and HTTP error bodies.
const (
	KindInvalidConfig        = "InvalidConfig"
	KindSessionNotFound      = "SessionNotFound"
	KindInvalidInput         = "InvalidInput"
	KindInferenceUnavailable = "InferenceUnavailable"
	KindNotInitialized       = "NotInitialized"
	KindAlreadyInitialized   = "AlreadyInitialized"
	KindInternal             = "Internal"
)

// KindOf maps err onto its taxonomy name. Nil maps to "".
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotInitialized):
		return KindNotInitialized
	case errors.Is(err, ErrAlreadyInitialized):
		return KindAlreadyInitialized
	case errors.Is(err, ErrInvalidConfig):
		return KindInvalidConfig
	case errors.Is(err, ErrSessionNotFound):
		return KindSessionNotFound
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrInferenceUnavailable):
		return KindInferenceUnavailable
	default:
		return KindInternal
	}
}
