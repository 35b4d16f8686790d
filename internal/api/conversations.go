package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/closer/internal/analyzer"
	"github.com/MikeSquared-Agency/closer/internal/session"
)

const maxMessageChars = 4000

type messageRequest struct {
	Text string `json:"text"`
}

type conversationResponse struct {
	ID    string          `json:"id"`
	Turns []analyzer.Turn `json:"turns,omitempty"`
}

func (s *Server) createConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.convs.Create(r.Context())
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conversationResponse{ID: conv.ID})
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	turns, err := s.convs.Transcript(id)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	if turns == nil {
		turns = []analyzer.Turn{}
	}
	writeJSON(w, http.StatusOK, conversationResponse{ID: id, Turns: turns})
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if utf8.RuneCountInString(text) > maxMessageChars {
		writeError(w, http.StatusBadRequest, "text is too long")
		return
	}

	reply, err := s.convs.Send(r.Context(), chi.URLParam(r, "id"), text)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) resetConversation(w http.ResponseWriter, r *http.Request) {
	analyzed, err := s.convs.Reset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"analyzed": analyzed})
}

func (s *Server) deleteConversation(w http.ResponseWriter, r *http.Request) {
	analyzed, err := s.convs.Remove(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"analyzed": analyzed})
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrTooManySessions):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
