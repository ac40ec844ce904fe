package session_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/tripflow/pkg/adapters/memory"
	"github.com/aretw0/tripflow/pkg/dispatch"
	"github.com/aretw0/tripflow/pkg/domain"
	"github.com/aretw0/tripflow/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedExtractor answers each transcript with a fixed payload.
type scriptedExtractor struct {
	mu      sync.Mutex
	replies map[string]string
	err     error
	calls   int
	delay   time.Duration

	inflight atomic.Int32
	peak     atomic.Int32
}

func (s *scriptedExtractor) Classify(ctx context.Context, transcript string, _ *domain.TripRecord) ([]byte, error) {
	n := s.inflight.Add(1)
	defer s.inflight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []byte(s.replies[transcript]), nil
}

type stubTranscriber struct {
	text string
	err  error
}

func (s stubTranscriber) Transcribe(_ context.Context, audio io.Reader, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	_, _ = io.Copy(io.Discard, audio)
	return s.text, nil
}

type failingSaveStore struct {
	*memory.Store
	fail bool
}

func (f *failingSaveStore) Save(ctx context.Context, key string, r *domain.TripRecord, ttl time.Duration) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Store.Save(ctx, key, r, ttl)
}

type captureNotifier struct {
	mu    sync.Mutex
	rooms []string
	sigs  []domain.Signal
	err   error
}

func (c *captureNotifier) Broadcast(_ context.Context, room string, sig domain.Signal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms = append(c.rooms, room)
	c.sigs = append(c.sigs, sig)
	return c.err
}

var caller = domain.Identity{ID: "u-1", Name: "Anil", Phone: "9826012345"}

func newHarness(t *testing.T, ext *scriptedExtractor, opts ...session.OrchestratorOption) (*session.Orchestrator, *failingSaveStore, *captureNotifier) {
	t.Helper()
	store := &failingSaveStore{Store: memory.NewStore()}
	notifier := &captureNotifier{}
	base := []session.OrchestratorOption{
		session.WithDispatcher(dispatch.New(dispatch.WithNotifier(notifier))),
	}
	orch := session.NewOrchestrator(session.NewManager(store), ext, append(base, opts...)...)
	return orch, store, notifier
}

func TestTurn_FreshSessionGreeting(t *testing.T) {
	ext := &scriptedExtractor{replies: map[string]string{"namaste": `{"intent":"greet","greeting":true}`}}
	orch, store, notifier := newHarness(t, ext)

	res, err := orch.Turn(context.Background(), session.TurnRequest{Identity: caller, Text: "namaste"})
	require.NoError(t, err)

	assert.True(t, res.Fresh)
	assert.Equal(t, domain.IntentGreet, res.Record.Intent)
	assert.Equal(t, caller, res.Record.User)
	assert.Nil(t, res.Record.Source)

	stored, err := store.Load(context.Background(), caller.Phone)
	require.NoError(t, err)
	assert.Equal(t, res.Record, stored)

	require.Len(t, notifier.sigs, 1)
	assert.Equal(t, "trip_9826012345", notifier.rooms[0])
	assert.Equal(t, "greet.mp3", notifier.sigs[0].AssetID)
	assert.Equal(t, res.Signal, notifier.sigs[0])
}

func TestTurn_MultiTurnConversation(t *testing.T) {
	ext := &scriptedExtractor{replies: map[string]string{
		"from indore":            `{"intent":"ask_destination","source":"Indore"}`,
		"to rewa, round trip":    `{"intent":"ask_date","destination":"Rewa","tripType":"round_trip"}`,
		"tomorrow 9am, back sun": `{"tripStartDate":"12/03/2026 09:00 AM","tripEndDate":"15/03/2026 06:00 PM"}`,
		"suv please":             `{"preferences":{"vehicleType":"suv"}}`,
		"how much will it cost?": `{"intent":"general","generalQuery":true,"agentResponse":"Let me check the fare."}`,
	}}
	orch, _, notifier := newHarness(t, ext)
	ctx := context.Background()

	want := []struct {
		text   string
		intent domain.Intent
	}{
		{"from indore", domain.IntentAskDestination},
		{"to rewa, round trip", domain.IntentAskDate},
		{"tomorrow 9am, back sun", domain.IntentAskPreferences},
		{"suv please", domain.IntentUnknown},
		{"how much will it cost?", domain.IntentGeneral},
	}
	var last *session.TurnResult
	for _, step := range want {
		res, err := orch.Turn(ctx, session.TurnRequest{Identity: caller, Text: step.text})
		require.NoError(t, err, step.text)
		assert.Equal(t, step.intent, res.Record.Intent, step.text)
		last = res
	}

	assert.Equal(t, "Indore", domain.Value(last.Record.Source))
	assert.Equal(t, "Rewa", domain.Value(last.Record.Destination))
	assert.Equal(t, domain.VehicleSUV, last.Record.Preferences.VehicleType)
	assert.Equal(t, "Let me check the fare.", last.AgentResponse)
	assert.Equal(t, []string{"intent"}, last.Diff.Fields(), "a general question changes no slot")
	assert.Len(t, notifier.sigs, len(want))
	assert.Equal(t, "ask_price.mp3", notifier.sigs[2].AssetID)
	assert.Equal(t, "general.mp3", notifier.sigs[4].AssetID)
}

func TestTurn_AudioIsTranscribed(t *testing.T) {
	ext := &scriptedExtractor{replies: map[string]string{"mujhe indore se jana hai": `{"source":"Indore"}`}}
	orch, _, _ := newHarness(t, ext, session.WithTranscriber(stubTranscriber{text: " mujhe indore se jana hai "}))

	res, err := orch.Turn(context.Background(), session.TurnRequest{
		Identity:  caller,
		Audio:     strings.NewReader("RIFF...."),
		AudioName: "utterance.wav",
	})
	require.NoError(t, err)
	assert.Equal(t, "mujhe indore se jana hai", res.Transcript)
	assert.Equal(t, domain.IntentAskDestination, res.Record.Intent)
}

func TestTurn_FailuresLeaveRecordUnchanged(t *testing.T) {
	ctx := context.Background()
	seed := func(t *testing.T, store *failingSaveStore) *domain.TripRecord {
		r := domain.NewTripRecord(caller)
		r.Source = domain.Str("Indore")
		r.Intent = domain.IntentAskDestination
		require.NoError(t, store.Store.Save(ctx, caller.Phone, r, time.Minute))
		return r
	}

	tests := []struct {
		name     string
		ext      *scriptedExtractor
		opts     []session.OrchestratorOption
		req      session.TurnRequest
		failSave bool
		want     error
	}{
		{
			name: "transcription",
			ext:  &scriptedExtractor{},
			opts: []session.OrchestratorOption{session.WithTranscriber(stubTranscriber{err: errors.New("codec")})},
			req:  session.TurnRequest{Identity: caller, Audio: strings.NewReader("x")},
			want: domain.ErrTranscriptionFailed,
		},
		{
			name: "empty transcript",
			ext:  &scriptedExtractor{},
			opts: []session.OrchestratorOption{session.WithTranscriber(stubTranscriber{text: "  "})},
			req:  session.TurnRequest{Identity: caller, Audio: strings.NewReader("x")},
			want: domain.ErrTranscriptionFailed,
		},
		{
			name: "extraction",
			ext:  &scriptedExtractor{err: errors.New("quota exceeded")},
			req:  session.TurnRequest{Identity: caller, Text: "to rewa"},
			want: domain.ErrExtractionFailed,
		},
		{
			name: "extraction timeout",
			ext:  &scriptedExtractor{delay: time.Second},
			opts: []session.OrchestratorOption{session.WithCallTimeouts(time.Second, 20*time.Millisecond)},
			req:  session.TurnRequest{Identity: caller, Text: "to rewa"},
			want: context.DeadlineExceeded,
		},
		{
			name: "malformed extraction",
			ext:  &scriptedExtractor{replies: map[string]string{"to rewa": `I could not understand`}},
			req:  session.TurnRequest{Identity: caller, Text: "to rewa"},
			want: domain.ErrExtractionMalformed,
		},
		{
			name:     "persistence",
			ext:      &scriptedExtractor{replies: map[string]string{"to rewa": `{"destination":"Rewa"}`}},
			req:      session.TurnRequest{Identity: caller, Text: "to rewa"},
			failSave: true,
			want:     domain.ErrPersistenceFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orch, store, notifier := newHarness(t, tt.ext, tt.opts...)
			before := seed(t, store)
			store.fail = tt.failSave

			res, err := orch.Turn(ctx, tt.req)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.want)

			after, err := store.Load(ctx, caller.Phone)
			require.NoError(t, err)
			assert.Equal(t, before, after)
			assert.Empty(t, notifier.sigs, "failed turns are not announced")
		})
	}
}

func TestTurn_InvalidRequests(t *testing.T) {
	orch, _, _ := newHarness(t, &scriptedExtractor{})
	ctx := context.Background()

	_, err := orch.Turn(ctx, session.TurnRequest{Text: "hello"})
	assert.ErrorIs(t, err, domain.ErrInvalidTurn)

	_, err = orch.Turn(ctx, session.TurnRequest{Identity: caller, Text: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidTurn)

	// Audio without a transcriber.
	_, err = orch.Turn(ctx, session.TurnRequest{Identity: caller, Audio: strings.NewReader("x")})
	assert.ErrorIs(t, err, domain.ErrInvalidTurn)
}

func TestTurn_IdempotentReplay(t *testing.T) {
	ext := &scriptedExtractor{replies: map[string]string{"from indore": `{"source":"Indore"}`}}
	orch, _, notifier := newHarness(t, ext)
	ctx := context.Background()
	req := session.TurnRequest{Identity: caller, Text: "from indore", IdempotencyKey: "turn-1"}

	first, err := orch.Turn(ctx, req)
	require.NoError(t, err)
	second, err := orch.Turn(ctx, req)
	require.NoError(t, err)

	assert.False(t, first.Replayed)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Record, second.Record)
	assert.Equal(t, "ask_destination.mp3", second.Signal.AssetID)
	assert.Equal(t, 1, ext.calls, "a replay must not call the extractor")
	assert.Len(t, notifier.sigs, 1, "a replay must not broadcast again")
}

func TestTurn_NotificationFailureDoesNotFailTurn(t *testing.T) {
	ext := &scriptedExtractor{replies: map[string]string{"hi": `{"intent":"greet"}`}}
	notifier := &captureNotifier{err: errors.New("room gone")}
	store := memory.NewStore()

	var notified *domain.NotifyEvent
	orch := session.NewOrchestrator(session.NewManager(store), ext,
		session.WithDispatcher(dispatch.New(dispatch.WithNotifier(notifier))),
		session.WithHooks(domain.TurnHooks{
			OnNotify: func(_ context.Context, e *domain.NotifyEvent) { notified = e },
		}),
	)

	res, err := orch.Turn(context.Background(), session.TurnRequest{Identity: caller, Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, domain.IntentGreet, res.Record.Intent)

	_, err = store.Load(context.Background(), caller.Phone)
	assert.NoError(t, err)

	require.NotNil(t, notified)
	assert.ErrorIs(t, notified.Err, domain.ErrNotificationFailed)
}

func TestTurn_SameSessionTurnsAreSerialized(t *testing.T) {
	ext := &scriptedExtractor{
		replies: map[string]string{"a": `{"source":"A"}`, "b": `{"destination":"B"}`, "c": `{"tripType":"one_way"}`},
		delay:   10 * time.Millisecond,
	}
	orch, store, _ := newHarness(t, ext)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, text := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			_, err := orch.Turn(ctx, session.TurnRequest{Identity: caller, Text: text})
			assert.NoError(t, err)
		}(text)
	}
	wg.Wait()

	assert.EqualValues(t, 1, ext.peak.Load(), "turns of one session must never overlap")

	// No contribution was lost.
	r, err := store.Load(ctx, caller.Phone)
	require.NoError(t, err)
	assert.Equal(t, "A", domain.Value(r.Source))
	assert.Equal(t, "B", domain.Value(r.Destination))
	assert.Equal(t, domain.TripOneWay, r.TripType)
}

func TestTurn_CallerCancellationDoesNotAbortTurn(t *testing.T) {
	ext := &scriptedExtractor{replies: map[string]string{"from indore": `{"source":"Indore"}`}, delay: 30 * time.Millisecond}
	orch, store, _ := newHarness(t, ext)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	res, err := orch.Turn(ctx, session.TurnRequest{Identity: caller, Text: "from indore"})
	require.NoError(t, err)
	assert.Equal(t, "Indore", domain.Value(res.Record.Source))

	_, err = store.Load(context.Background(), caller.Phone)
	assert.NoError(t, err)
}

func TestTurn_HooksAndClamps(t *testing.T) {
	ext := &scriptedExtractor{replies: map[string]string{
		"ok":     `{"source":"Indore","tripType":"banana"}`,
		"broken": `nonsense`,
	}}

	var mu sync.Mutex
	var starts int
	var ends []*domain.TurnEvent
	var clamps []*domain.ClampEvent
	hooks := domain.TurnHooks{
		OnTurnStart: func(context.Context, string) { mu.Lock(); starts++; mu.Unlock() },
		OnTurnEnd:   func(_ context.Context, e *domain.TurnEvent) { mu.Lock(); ends = append(ends, e); mu.Unlock() },
		OnClamp:     func(_ context.Context, e *domain.ClampEvent) { mu.Lock(); clamps = append(clamps, e); mu.Unlock() },
	}
	orch, _, _ := newHarness(t, ext, session.WithHooks(hooks))
	ctx := context.Background()

	res, err := orch.Turn(ctx, session.TurnRequest{Identity: caller, Text: "ok"})
	require.NoError(t, err)
	assert.Equal(t, domain.TripNotDecided, res.Record.TripType)

	_, err = orch.Turn(ctx, session.TurnRequest{Identity: caller, Text: "broken"})
	require.Error(t, err)

	assert.Equal(t, 2, starts)
	require.Len(t, ends, 2)
	assert.Equal(t, domain.OutcomeCommitted, ends[0].Outcome)
	assert.Equal(t, domain.IntentAskDestination, ends[0].Intent)
	assert.Equal(t, domain.OutcomeFailed, ends[1].Outcome)
	assert.ErrorIs(t, ends[1].Err, domain.ErrExtractionMalformed)

	require.Len(t, clamps, 1)
	assert.Equal(t, "tripType", clamps[0].Field)
	assert.Equal(t, "banana", clamps[0].Value)
}
