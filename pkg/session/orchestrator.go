package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/tripflow/internal/logging"
	"github.com/aretw0/tripflow/pkg/dispatch"
	"github.com/aretw0/tripflow/pkg/domain"
	"github.com/aretw0/tripflow/pkg/ports"
	"github.com/aretw0/tripflow/pkg/reducer"
)

// TurnRequest is one utterance from a caller. Text wins over Audio when both are set.
type TurnRequest struct {
	Identity  domain.Identity
	Text      string
	Audio     io.Reader
	AudioName string

	// IdempotencyKey makes a retried turn return the already committed record.
	IdempotencyKey string
}

// TurnResult is the outcome of a committed (or replayed) turn.
type TurnResult struct {
	SessionKey    string
	Record        *domain.TripRecord
	Transcript    string
	AgentResponse string
	Signal        domain.Signal
	Diff          *domain.TripDiff
	Clamped       []reducer.Clamp
	Fresh         bool
	Replayed      bool
}

// Orchestrator runs one full turn: load, transcribe, extract, reduce, save, dispatch.
type Orchestrator struct {
	sessions    *Manager
	extractor   ports.Extractor
	transcriber ports.Transcriber
	dispatcher  *dispatch.Dispatcher
	hooks       domain.TurnHooks
	logger      *slog.Logger

	transcribeTimeout time.Duration
	extractTimeout    time.Duration
	maxUtterance      int
	now               func() time.Time
}

// OrchestratorOption configures the Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithTranscriber enables audio turns.
func WithTranscriber(t ports.Transcriber) OrchestratorOption {
	return func(o *Orchestrator) {
		o.transcriber = t
	}
}

// WithDispatcher sets how response signals are delivered.
func WithDispatcher(d *dispatch.Dispatcher) OrchestratorOption {
	return func(o *Orchestrator) {
		o.dispatcher = d
	}
}

// WithHooks registers observability callbacks.
func WithHooks(h domain.TurnHooks) OrchestratorOption {
	return func(o *Orchestrator) {
		o.hooks = h
	}
}

// WithTurnLogger configures the logger used for turn events.
func WithTurnLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithCallTimeouts bounds the transcription and extraction calls.
func WithCallTimeouts(transcribe, extract time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.transcribeTimeout = transcribe
		o.extractTimeout = extract
	}
}

// WithMaxUtterance bounds text utterances and transcripts in bytes.
func WithMaxUtterance(limit int) OrchestratorOption {
	return func(o *Orchestrator) {
		o.maxUtterance = limit
	}
}

// NewOrchestrator creates an Orchestrator over sessions and extractor.
func NewOrchestrator(sessions *Manager, extractor ports.Extractor, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		sessions:          sessions,
		extractor:         extractor,
		dispatcher:        dispatch.New(),
		logger:            logging.NewNop(),
		transcribeTimeout: 15 * time.Second,
		extractTimeout:    20 * time.Second,
		maxUtterance:      DefaultMaxUtterance,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Sessions returns the session manager.
func (o *Orchestrator) Sessions() *Manager {
	return o.sessions
}

// Dispatcher returns the response dispatcher.
func (o *Orchestrator) Dispatcher() *dispatch.Dispatcher {
	return o.dispatcher
}

// Turn processes one utterance for the caller's session.
//
// The record advances at most once per call and only if every step up to the
// save succeeds; on failure the stored record is left as it was. Caller
// cancellation is ignored once the turn starts; each external call is bounded
// by its own deadline instead.
func (o *Orchestrator) Turn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	key := strings.TrimSpace(req.Identity.Phone)
	if key == "" {
		return nil, fmt.Errorf("%w: missing phone", domain.ErrInvalidTurn)
	}
	if strings.TrimSpace(req.Text) == "" && req.Audio == nil {
		return nil, fmt.Errorf("%w: no text or audio", domain.ErrInvalidTurn)
	}

	ctx = context.WithoutCancel(ctx)
	start := o.now()
	if o.hooks.OnTurnStart != nil {
		o.hooks.OnTurnStart(ctx, key)
	}

	var result *TurnResult
	err := o.sessions.WithLock(ctx, key, func(ctx context.Context) error {
		var err error
		result, err = o.advance(ctx, key, req)
		return err
	})

	event := &domain.TurnEvent{
		Timestamp:  start,
		SessionKey: key,
		Duration:   o.now().Sub(start),
		Err:        err,
	}
	switch {
	case err != nil:
		event.Outcome = domain.OutcomeFailed
		o.logger.Error("turn failed", "session_id", key, "kind", domain.ErrorKind(err), "err", err)
	case result.Replayed:
		event.Outcome = domain.OutcomeReplayed
		event.Intent = result.Record.Intent
		o.logger.Info("turn replayed", "session_id", key, "intent", result.Record.Intent)
	default:
		event.Outcome = domain.OutcomeCommitted
		event.Intent = result.Record.Intent
		result.Signal = o.notify(ctx, key, result.Record)
		o.logger.Info("turn committed",
			"session_id", key,
			"intent", result.Record.Intent,
			"changed", result.Diff.Fields(),
		)
	}
	if o.hooks.OnTurnEnd != nil {
		o.hooks.OnTurnEnd(ctx, event)
	}

	if err != nil {
		return nil, err
	}
	return result, nil
}

// advance runs the read-modify-write part of a turn. Callers hold the session lock.
func (o *Orchestrator) advance(ctx context.Context, key string, req TurnRequest) (*TurnResult, error) {
	previous, fresh, err := o.sessions.loadOrNew(ctx, key, req.Identity)
	if err != nil {
		return nil, fmt.Errorf("%w: load: %w", domain.ErrPersistenceFailed, err)
	}

	if req.IdempotencyKey != "" && previous.LastTurnKey == req.IdempotencyKey {
		return &TurnResult{
			SessionKey: key,
			Record:     previous,
			Signal:     o.dispatcher.Signal(previous.Intent),
			Replayed:   true,
		}, nil
	}

	transcript, err := o.transcribe(ctx, req)
	if err != nil {
		return nil, err
	}

	payload, err := o.extract(ctx, transcript, previous)
	if err != nil {
		return nil, err
	}

	out, err := reducer.ReduceJSON(*previous, payload)
	if err != nil {
		return nil, err
	}
	for _, c := range out.Clamped {
		o.logger.Warn("extracted value clamped",
			"session_id", key,
			"field", c.Field,
			"value", c.Value,
			"err", domain.ErrValidationClamped,
		)
		if o.hooks.OnClamp != nil {
			o.hooks.OnClamp(ctx, &domain.ClampEvent{SessionKey: key, Field: c.Field, Value: c.Value})
		}
	}

	next := out.Next
	next.LastTurnKey = req.IdempotencyKey
	if err := o.sessions.save(ctx, key, next); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistenceFailed, err)
	}

	var before *domain.TripRecord
	if !fresh {
		before = previous
	}
	return &TurnResult{
		SessionKey:    key,
		Record:        next,
		Transcript:    transcript,
		AgentResponse: out.AgentResponse,
		Diff:          domain.Diff(key, before, next),
		Clamped:       out.Clamped,
		Fresh:         fresh,
	}, nil
}

func (o *Orchestrator) transcribe(ctx context.Context, req TurnRequest) (string, error) {
	if text := strings.TrimSpace(req.Text); text != "" {
		clean, err := SanitizeUtterance(text, o.maxUtterance)
		if err != nil {
			return "", fmt.Errorf("%w: %w", domain.ErrInvalidTurn, err)
		}
		return clean, nil
	}
	if o.transcriber == nil {
		return "", fmt.Errorf("%w: audio turns need a transcriber", domain.ErrInvalidTurn)
	}

	ctx, cancel := withTimeout(ctx, o.transcribeTimeout)
	defer cancel()

	text, err := o.transcriber.Transcribe(ctx, req.Audio, req.AudioName)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrTranscriptionFailed, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty transcript", domain.ErrTranscriptionFailed)
	}
	clean, err := SanitizeUtterance(text, o.maxUtterance)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrTranscriptionFailed, err)
	}
	return clean, nil
}

func (o *Orchestrator) extract(ctx context.Context, transcript string, previous *domain.TripRecord) ([]byte, error) {
	ctx, cancel := withTimeout(ctx, o.extractTimeout)
	defer cancel()

	payload, err := o.extractor.Classify(ctx, transcript, previous.Clone())
	if err != nil {
		if errors.Is(err, domain.ErrExtractionMalformed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrExtractionFailed, err)
	}
	return payload, nil
}

func (o *Orchestrator) notify(ctx context.Context, key string, record *domain.TripRecord) domain.Signal {
	sig, err := o.dispatcher.Dispatch(ctx, domain.RoomName(key), record.Intent)
	if o.hooks.OnNotify != nil {
		o.hooks.OnNotify(ctx, &domain.NotifyEvent{
			SessionKey: key,
			Intent:     record.Intent,
			AssetID:    sig.AssetID,
			Err:        err,
		})
	}
	return sig
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
