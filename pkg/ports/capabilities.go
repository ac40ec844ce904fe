package ports

import (
	"context"
	"io"

	"github.com/aretw0/tripflow/pkg/domain"
)

// Transcriber converts recorded speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// Extractor proposes slot values and an intent for one utterance.
// The returned payload is untrusted JSON; callers must sanitize it before use.
type Extractor interface {
	Classify(ctx context.Context, transcript string, previous *domain.TripRecord) ([]byte, error)
}

// Notifier delivers a signal to every current listener of a room.
// Delivery is at-least-once and unacknowledged.
type Notifier interface {
	Broadcast(ctx context.Context, room string, signal domain.Signal) error
}
