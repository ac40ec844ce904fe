package domain

import (
	"context"
	"time"
)

// Outcome labels how a turn ended.
type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeReplayed  Outcome = "replayed"
	OutcomeFailed    Outcome = "failed"
)

// TurnEvent describes a finished turn.
type TurnEvent struct {
	Timestamp  time.Time     `json:"timestamp"`
	SessionKey string        `json:"session_key"`
	Outcome    Outcome       `json:"outcome"`
	Intent     Intent        `json:"intent,omitempty"`
	Duration   time.Duration `json:"duration"`
	Err        error         `json:"-"`
}

// ClampEvent describes an extractor value that was outside its domain.
type ClampEvent struct {
	SessionKey string `json:"session_key"`
	Field      string `json:"field"`
	Value      string `json:"value"`
}

// NotifyEvent describes a broadcast attempt.
type NotifyEvent struct {
	SessionKey string `json:"session_key"`
	Intent     Intent `json:"intent"`
	AssetID    string `json:"asset_id"`
	Err        error  `json:"-"`
}

// TurnHooks defines callbacks for turn observability. Any hook may be nil.
type TurnHooks struct {
	OnTurnStart func(context.Context, string)
	OnTurnEnd   func(context.Context, *TurnEvent)
	OnClamp     func(context.Context, *ClampEvent)
	OnNotify    func(context.Context, *NotifyEvent)
}
