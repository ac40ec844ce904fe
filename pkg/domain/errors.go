package domain

import "errors"

// ErrSessionNotFound is returned when a session key has no stored record (new or expired).
var ErrSessionNotFound = errors.New("session not found")

// ErrInvalidTurn is returned when a turn request lacks identity or utterance.
var ErrInvalidTurn = errors.New("invalid turn request")

// Turn failure taxonomy. Every fatal kind aborts the turn before anything is persisted.
var (
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrExtractionFailed    = errors.New("extraction failed")
	ErrExtractionMalformed = errors.New("extraction malformed")
	ErrPersistenceFailed   = errors.New("persistence failed")

	// ErrValidationClamped marks an out-of-domain value that was coerced. Logged, never returned from a turn.
	ErrValidationClamped = errors.New("validation clamped")
	// ErrNotificationFailed marks a broadcast that did not reach the channel. Never fails a turn.
	ErrNotificationFailed = errors.New("notification failed")
)

// ErrorKind maps an error to a stable identifier for API responses.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidTurn):
		return "invalid_turn"
	case errors.Is(err, ErrTranscriptionFailed):
		return "transcription_failed"
	case errors.Is(err, ErrExtractionMalformed):
		return "extraction_malformed"
	case errors.Is(err, ErrExtractionFailed):
		return "extraction_failed"
	case errors.Is(err, ErrPersistenceFailed):
		return "persistence_failed"
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	default:
		return "internal"
	}
}
