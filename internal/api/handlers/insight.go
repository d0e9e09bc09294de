package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/attune-ai/attune/internal/api/middleware"
	"github.com/attune-ai/attune/internal/domain"
	"github.com/attune-ai/attune/internal/service"
	"github.com/attune-ai/attune/internal/session"
)

var validate = validator.New()

// InsightHandler exposes the proactive-delivery queue on a session:
// queue a candidate, pull the next deliverable, report the reaction.
type InsightHandler struct {
	svc *service.InsightService
	hub *session.Hub
}

func NewInsightHandler(svc *service.InsightService, hub *session.Hub) *InsightHandler {
	return &InsightHandler{svc: svc, hub: hub}
}

type queueInsightRequest struct {
	Type           string   `json:"type" validate:"required,oneof=contradiction clarify next_step recall"`
	Title          string   `json:"title" validate:"required,max=200"`
	Body           string   `json:"body" validate:"max=2000"`
	Action         string   `json:"action" validate:"max=500"`
	Confidence     float64  `json:"confidence" validate:"gte=0,lte=1"`
	Triggers       []string `json:"triggers" validate:"max=4,dive,oneof=session_start idle contextual explicit"`
	ContextTags    []string `json:"context_tags" validate:"max=16,dive,min=1,max=64"`
	MinIdleSeconds int      `json:"min_idle_seconds" validate:"gte=0,lte=3600"`
}

// Queue accepts an externally produced candidate insight. The DTO is
// strict where the service is forgiving: a host application sending
// garbage should hear about it at the edge.
func (h *InsightHandler) Queue(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := h.scoped(w, r)
	if !ok {
		return
	}

	var req queueInsightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	triggers := make([]domain.InsightTrigger, len(req.Triggers))
	for i, t := range req.Triggers {
		triggers[i] = domain.InsightTrigger(t)
	}

	queued, err := h.svc.Queue(r.Context(), sess, service.InsightCandidate{
		Type:           domain.InsightType(req.Type),
		Title:          req.Title,
		Body:           req.Body,
		Action:         req.Action,
		Confidence:     req.Confidence,
		Triggers:       triggers,
		ContextTags:    req.ContextTags,
		MinIdleSeconds: req.MinIdleSeconds,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, queued)
}

// Next runs the full delivery gate for the given moment and returns at
// most one insight. A null insight is the normal case, not an error.
func (h *InsightHandler) Next(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := h.scoped(w, r)
	if !ok {
		return
	}

	trigger := domain.InsightTrigger(r.URL.Query().Get("trigger"))
	if trigger == "" {
		trigger = domain.TriggerExplicit
	}
	if !domain.ValidInsightTrigger(trigger) {
		writeError(w, http.StatusBadRequest, "invalid trigger")
		return
	}

	idleSeconds := 0.0
	if raw := r.URL.Query().Get("idle_seconds"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "invalid idle_seconds")
			return
		}
		idleSeconds = v
	}

	insight, err := h.svc.Next(r.Context(), sess, trigger, r.URL.Query().Get("topic"), idleSeconds)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to evaluate delivery")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"insight": insight})
}

type engagementRequest struct {
	Type domain.EngagementType `json:"type"`
}

func (h *InsightHandler) Engagement(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := h.scoped(w, r)
	if !ok {
		return
	}

	insightID, err := uuid.Parse(chi.URLParam(r, "insightID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid insight id")
		return
	}

	var req engagementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !domain.ValidEngagementType(req.Type) {
		writeError(w, http.StatusBadRequest, "invalid engagement type")
		return
	}

	insight, err := h.svc.RecordEngagement(r.Context(), sess, insightID, req.Type)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInsightNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, insight)
}

type ratingRequest struct {
	Rating float64 `json:"rating"`
}

// Rate records an explicit 1-5 usefulness rating against the insight's
// category. Ratings feed future priority scoring, not this insight.
func (h *InsightHandler) Rate(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := h.scoped(w, r)
	if !ok {
		return
	}

	insightID, err := uuid.Parse(chi.URLParam(r, "insightID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid insight id")
		return
	}

	insight, found := sess.Find(insightID)
	if !found {
		writeError(w, http.StatusNotFound, "insight not found in session queue")
		return
	}

	var req ratingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.RecordRating(r.Context(), sess.ProfileID, insight.Type, req.Rating); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record rating")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (h *InsightHandler) scoped(w http.ResponseWriter, r *http.Request) (*domain.Workspace, *session.State, bool) {
	workspace := middleware.WorkspaceFromContext(r.Context())
	if workspace == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, nil, false
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return nil, nil, false
	}

	sess, found := h.hub.Get(id)
	if !found || sess.WorkspaceID != workspace.ID {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, nil, false
	}
	return workspace, sess, true
}
