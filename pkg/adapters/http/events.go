package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/tripflow/pkg/domain"
	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// roomFromQuery accepts ?room=trip_<phone> or ?phone=<phone>.
func roomFromQuery(r *http.Request) string {
	if room := strings.TrimSpace(r.URL.Query().Get("room")); room != "" {
		return room
	}
	if phone := strings.TrimSpace(r.URL.Query().Get("phone")); phone != "" {
		return domain.RoomName(phone)
	}
	return ""
}

// SubscribeEvents handles the GET /events request (SSE).
//
// Signals are always delivered. Diff events can be narrowed with
// ?watch=source,intent so a client only hears about the slots it renders.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	room := roomFromQuery(r)
	if room == "" {
		http.Error(w, "room or phone required", http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.hub.Subscribe(room)
	defer cancel()
	s.logger.Info("SSE: listener subscribed", "room", room)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	watch := parseWatch(r.URL.Query().Get("watch"))
	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: listener disconnected", "room", room)
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Name == EventDiff && !watch.matches(ev.Data) {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Data)
			flusher.Flush()
		}
	}
}

type watchList []string

func parseWatch(raw string) watchList {
	var out watchList
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// matches reports whether a serialized diff touches a watched field.
// A watch on "preferences" covers both preference slots.
func (wl watchList) matches(data []byte) bool {
	if len(wl) == 0 {
		return true
	}
	var diff domain.TripDiff
	if err := json.Unmarshal(data, &diff); err != nil {
		return true
	}
	for _, changed := range diff.Fields() {
		for _, field := range wl {
			if changed == field || strings.HasPrefix(changed, field+".") {
				return true
			}
		}
	}
	return false
}

// wsMessage is the frame sent to WebSocket listeners.
type wsMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// SubscribeWS handles the GET /ws request: the same stream as /events over a WebSocket.
func (s *Server) SubscribeWS(w http.ResponseWriter, r *http.Request) {
	room := roomFromQuery(r)
	if room == "" {
		http.Error(w, "room or phone required", http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws: upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ch, cancel := s.hub.Subscribe(room)
	defer cancel()
	s.logger.Info("ws: listener subscribed", "room", room)

	// Listeners never send; reading only detects the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			s.logger.Info("ws: listener disconnected", "room", room)
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		case ev, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(wsMessage{Event: ev.Name, Data: ev.Data}); err != nil {
				s.logger.Warn("ws: write failed", "room", room, "err", err)
				return
			}
		}
	}
}
