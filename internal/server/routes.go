package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/affect/internal/affect"
	"github.com/lazypower/affect/internal/boundary"
)

// statusFor maps an error kind onto an HTTP status.
func statusFor(kind string) int {
	switch kind {
	case affect.KindInvalidConfig, affect.KindInvalidInput:
		return http.StatusBadRequest
	case affect.KindSessionNotFound:
		return http.StatusNotFound
	case affect.KindInferenceUnavailable:
		return http.StatusBadGateway
	case affect.KindNotInitialized:
		return http.StatusServiceUnavailable
	case affect.KindAlreadyInitialized:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// reply consumes h and writes its payload. okStatus is used on success.
func (s *Server) reply(w http.ResponseWriter, h boundary.Handle, okStatus int) {
	p, err := s.adapter.Consume(h)
	if err != nil {
		s.log.Error().Err(err).Msg("consume payload")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := okStatus
	if !p.OK {
		status = statusFor(p.Kind)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(p)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(boundary.Payload{Error: msg, Kind: affect.KindInvalidInput})
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	s.reply(w, s.adapter.Initialize(r.Context()), http.StatusOK)
}

func (s *Server) handleListNPCs(w http.ResponseWriter, r *http.Request) {
	s.reply(w, s.adapter.ListSessions(), http.StatusOK)
}

func (s *Server) handleCreateNPC(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Config   json.RawMessage `json:"config"`
		Memories json.RawMessage `json:"memories"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if string(req.Memories) == "null" {
		req.Memories = nil
	}
	s.reply(w, s.adapter.CreateSession(req.Config, req.Memories), http.StatusCreated)
}

func (s *Server) handleRemoveNPC(w http.ResponseWriter, r *http.Request) {
	s.reply(w, s.adapter.RemoveSession(chi.URLParam(r, "npcID")), http.StatusOK)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text     string `json:"text"`
		SourceID string `json:"source_id"`
		Elapsed  int64  `json:"elapsed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	s.reply(w, s.adapter.Evaluate(ctx, chi.URLParam(r, "npcID"), req.Text, req.SourceID, req.Elapsed), http.StatusOK)
}

func (s *Server) handleEmotion(w http.ResponseWriter, r *http.Request) {
	npcID := chi.URLParam(r, "npcID")
	if r.URL.Query().Has("source") {
		s.reply(w, s.adapter.GetEmotionBySource(npcID, r.URL.Query().Get("source")), http.StatusOK)
		return
	}
	s.reply(w, s.adapter.GetEmotion(npcID), http.StatusOK)
}

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	s.reply(w, s.adapter.GetMemory(chi.URLParam(r, "npcID")), http.StatusOK)
}

func (s *Server) handleClearMemory(w http.ResponseWriter, r *http.Request) {
	s.reply(w, s.adapter.ClearMemory(chi.URLParam(r, "npcID")), http.StatusOK)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Minutes int64 `json:"minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	s.reply(w, s.adapter.AdvanceTime(chi.URLParam(r, "npcID"), req.Minutes), http.StatusOK)
}
