package http

import (
	"io/fs"
	"net/http"
	"os"
	"strings"

	"github.com/aretw0/tripflow/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// GetToken handles the GET /token?name=&phone= request.
func (s *Server) GetToken(w http.ResponseWriter, r *http.Request) {
	if s.tokens == nil {
		http.Error(w, "Realtime tokens are not configured", http.StatusServiceUnavailable)
		return
	}
	phone := strings.TrimSpace(r.URL.Query().Get("phone"))
	if phone == "" {
		http.Error(w, "Phone required", http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		name = "User"
	}

	room := domain.RoomName(phone)
	token, err := s.tokens.ParticipantToken(room, name, phone)
	if err != nil {
		s.logger.Error("token issue failed", "room", room, "err", err)
		http.Error(w, "Token error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "roomName": room})
}

// GetAudio handles the GET /audio/{file} request.
func (s *Server) GetAudio(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	if s.audioDir == "" || !fs.ValidPath(name) || strings.Contains(name, "/") {
		http.Error(w, "Audio not found", http.StatusNotFound)
		return
	}
	fsys := os.DirFS(s.audioDir)
	if info, err := fs.Stat(fsys, name); err != nil || info.IsDir() {
		http.Error(w, "Audio not found", http.StatusNotFound)
		return
	}
	http.ServeFileFS(w, r, fsys, name)
}
