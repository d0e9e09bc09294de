package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/attune-ai/attune/internal/api/middleware"
	"github.com/attune-ai/attune/internal/domain"
	"github.com/attune-ai/attune/internal/service"
	"github.com/attune-ai/attune/internal/store"
)

// ElicitationHandler exposes the direct-question loop: ask the selector
// for the next question and close it with an answer or a skip.
type ElicitationHandler struct {
	profiles domain.ProfileStore
	svc      *service.ElicitationService
}

func NewElicitationHandler(profiles domain.ProfileStore, svc *service.ElicitationService) *ElicitationHandler {
	return &ElicitationHandler{profiles: profiles, svc: svc}
}

type nextQuestionResponse struct {
	Ask        bool                      `json:"ask"`
	Reason     string                    `json:"reason,omitempty"`
	ResponseID uuid.UUID                 `json:"response_id,omitempty"`
	QuestionID string                    `json:"question_id,omitempty"`
	Prompt     string                    `json:"prompt,omitempty"`
	Domain     domain.BeliefDomain       `json:"domain,omitempty"`
	Trigger    domain.ElicitationTrigger `json:"trigger,omitempty"`
}

// Next asks the selector whether a question should be spent right now.
// An affirmative answer records the ask immediately, so calling Next is
// committing to show the question.
func (h *ElicitationHandler) Next(w http.ResponseWriter, r *http.Request) {
	workspace := middleware.WorkspaceFromContext(r.Context())
	if workspace == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	profileID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid profile id")
		return
	}

	var sessionID *uuid.UUID
	if raw := r.URL.Query().Get("session_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid session_id")
			return
		}
		sessionID = &id
	}

	profile, err := h.profiles.GetByID(r.Context(), profileID, workspace.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get profile")
		return
	}

	decision, err := h.svc.ShouldAsk(r.Context(), profile, sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to select question")
		return
	}
	if !decision.Ask {
		writeJSON(w, http.StatusOK, nextQuestionResponse{Ask: false, Reason: decision.Reason})
		return
	}

	recorded, err := h.svc.MarkAsked(r.Context(), profile, decision.Question, sessionID, decision.Trigger)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record question")
		return
	}

	writeJSON(w, http.StatusOK, nextQuestionResponse{
		Ask:        true,
		ResponseID: recorded.ID,
		QuestionID: decision.Question.ID,
		Prompt:     decision.Question.Prompt,
		Domain:     decision.Question.Domain,
		Trigger:    decision.Trigger,
	})
}

type answerRequest struct {
	ResponseID uuid.UUID `json:"response_id"`
	Answer     string    `json:"answer,omitempty"`
	Skipped    bool      `json:"skipped,omitempty"`
}

// Answer closes an open question with the user's answer, or records a
// skip. Skips still count against pacing; the engine does not re-ask.
func (h *ElicitationHandler) Answer(w http.ResponseWriter, r *http.Request) {
	workspace := middleware.WorkspaceFromContext(r.Context())
	if workspace == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	profileID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid profile id")
		return
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ResponseID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "response_id is required")
		return
	}

	if _, err := h.profiles.GetByID(r.Context(), profileID, workspace.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get profile")
		return
	}

	if req.Skipped {
		if err := h.svc.RecordSkip(r.Context(), profileID, req.ResponseID); err != nil {
			h.answerError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "skipped"})
		return
	}

	if req.Answer == "" {
		writeError(w, http.StatusBadRequest, "answer is required unless skipped")
		return
	}

	recorded, err := h.svc.RecordAnswer(r.Context(), profileID, req.ResponseID, req.Answer)
	if err != nil {
		h.answerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, recorded)
}

func (h *ElicitationHandler) answerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "question not found")
	case errors.Is(err, service.ErrQuestionNotOpen):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "failed to record answer")
	}
}
