package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/tripflow/internal/logging"
	"github.com/aretw0/tripflow/pkg/domain"
)

// Event names pushed to listeners.
const (
	EventSignal = "signal"
	EventDiff   = "diff"
)

// Event is one message for the listeners of a room.
type Event struct {
	Name string
	Data []byte
}

// Hub fans events out to the SSE and WebSocket listeners of each room.
// Slow listeners lose messages instead of blocking a turn.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	logger      *slog.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Hub{
		subscribers: make(map[string]map[chan Event]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a listener for room. The returned func unsubscribes and
// closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(room string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, 10)
	if _, ok := h.subscribers[room]; !ok {
		h.subscribers[room] = make(map[chan Event]struct{})
	}
	h.subscribers[room][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if subs, ok := h.subscribers[room]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(h.subscribers, room)
				}
			}
			close(ch)
		})
	}
}

// Listeners returns the number of subscribers of room.
func (h *Hub) Listeners(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[room])
}

// Publish delivers ev to every listener of room without blocking.
func (h *Hub) Publish(room string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[room] {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("listener buffer full, dropping event", "room", room, "event", ev.Name)
		}
	}
}

// Broadcast implements ports.Notifier.
func (h *Hub) Broadcast(_ context.Context, room string, signal domain.Signal) error {
	data, err := json.Marshal(signal)
	if err != nil {
		return err
	}
	h.Publish(room, Event{Name: EventSignal, Data: data})
	return nil
}
