package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aretw0/tripflow/pkg/domain"
	"github.com/aretw0/tripflow/pkg/session"
	"github.com/go-chi/chi/v5"
)

// TurnRequest is the body of POST /turn.
type TurnRequest struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	Text           string `json:"text"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// TurnResponse is returned by the turn endpoints.
type TurnResponse struct {
	Success       bool               `json:"success"`
	TripState     *domain.TripRecord `json:"tripState,omitempty"`
	Transcript    string             `json:"transcript,omitempty"`
	AgentResponse string             `json:"agentResponse,omitempty"`
	Signal        *domain.Signal     `json:"signal,omitempty"`
	Changed       []string           `json:"changed,omitempty"`
	Replayed      bool               `json:"replayed,omitempty"`
	Error         string             `json:"error,omitempty"`
	Kind          string             `json:"kind,omitempty"`
}

// Transcribe handles the POST /transcribe request: a multipart upload with
// file, name, phone and id fields.
func (s *Server) Transcribe(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		s.fail(w, http.StatusBadRequest, "Expected multipart/form-data", "invalid_turn")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid multipart body", "invalid_turn")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.fail(w, http.StatusBadRequest, "Audio file is required", "invalid_turn")
		return
	}
	defer file.Close()

	identity := domain.Identity{
		ID:    strings.TrimSpace(r.FormValue("id")),
		Name:  strings.TrimSpace(r.FormValue("name")),
		Phone: strings.TrimSpace(r.FormValue("phone")),
	}
	if identity.Phone == "" || identity.ID == "" || identity.Name == "" {
		s.fail(w, http.StatusBadRequest, "Phone number, id and name are required", "invalid_turn")
		return
	}

	s.runTurn(w, r, session.TurnRequest{
		Identity:       identity,
		Audio:          file,
		AudioName:      header.Filename,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
}

// Turn handles the POST /turn request carrying an already transcribed utterance.
func (s *Server) Turn(w http.ResponseWriter, r *http.Request) {
	var body TurnRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&body); err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid request body", "invalid_turn")
		return
	}
	key := body.IdempotencyKey
	if key == "" {
		key = r.Header.Get("Idempotency-Key")
	}
	s.runTurn(w, r, session.TurnRequest{
		Identity:       domain.Identity{ID: body.ID, Name: body.Name, Phone: strings.TrimSpace(body.Phone)},
		Text:           body.Text,
		IdempotencyKey: key,
	})
}

func (s *Server) runTurn(w http.ResponseWriter, r *http.Request, req session.TurnRequest) {
	res, err := s.turns.Turn(r.Context(), req)
	if err != nil {
		s.fail(w, statusFor(err), err.Error(), domain.ErrorKind(err))
		return
	}

	if !res.Diff.IsEmpty() {
		if data, err := json.Marshal(res.Diff); err == nil {
			s.hub.Publish(domain.RoomName(res.SessionKey), Event{Name: EventDiff, Data: data})
		}
	}

	sig := res.Signal
	writeJSON(w, http.StatusOK, TurnResponse{
		Success:       true,
		TripState:     res.Record,
		Transcript:    res.Transcript,
		AgentResponse: res.AgentResponse,
		Signal:        &sig,
		Changed:       res.Diff.Fields(),
		Replayed:      res.Replayed,
	})
}

// GetTrip handles the GET /trips/{phone} request.
func (s *Server) GetTrip(w http.ResponseWriter, r *http.Request) {
	record, err := s.turns.Sessions().Load(r.Context(), chi.URLParam(r, "phone"))
	if err != nil {
		s.fail(w, statusFor(err), err.Error(), domain.ErrorKind(err))
		return
	}
	writeJSON(w, http.StatusOK, TurnResponse{Success: true, TripState: record})
}

func (s *Server) fail(w http.ResponseWriter, status int, msg, kind string) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "kind", kind, "err", msg)
	} else {
		s.logger.Warn("request rejected", "status", status, "kind", kind, "err", msg)
	}
	writeJSON(w, status, TurnResponse{Success: false, Error: msg, Kind: kind})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidTurn):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTranscriptionFailed),
		errors.Is(err, domain.ErrExtractionFailed),
		errors.Is(err, domain.ErrExtractionMalformed):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrPersistenceFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
