package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/attune-ai/attune/internal/api/middleware"
	"github.com/attune-ai/attune/internal/domain"
	"github.com/attune-ai/attune/internal/service"
	"github.com/attune-ai/attune/internal/session"
	"github.com/attune-ai/attune/internal/store"
)

// SessionHandler owns session lifecycle: open, activity telemetry,
// delivery settings, close-and-flush.
type SessionHandler struct {
	profiles   domain.ProfileStore
	hub        *session.Hub
	patterns   *service.PatternService
	insights   *service.InsightService
	reflection *service.ReflectionService
}

func NewSessionHandler(
	profiles domain.ProfileStore,
	hub *session.Hub,
	patterns *service.PatternService,
	insights *service.InsightService,
	reflection *service.ReflectionService,
) *SessionHandler {
	return &SessionHandler{
		profiles:   profiles,
		hub:        hub,
		patterns:   patterns,
		insights:   insights,
		reflection: reflection,
	}
}

type openSessionRequest struct {
	ProfileID uuid.UUID               `json:"profile_id"`
	Settings  *domain.SessionSettings `json:"settings,omitempty"`
}

type openSessionResponse struct {
	SessionID uuid.UUID              `json:"session_id"`
	ProfileID uuid.UUID              `json:"profile_id"`
	StartedAt time.Time              `json:"started_at"`
	Settings  domain.SessionSettings `json:"settings"`
}

// Open starts a session for a profile, bumps the profile's session
// counters, and lets the pattern detectors seed session-start insights.
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	workspace := middleware.WorkspaceFromContext(r.Context())
	if workspace == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req openSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProfileID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "profile_id is required")
		return
	}

	profile, err := h.profiles.GetByID(r.Context(), req.ProfileID, workspace.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get profile")
		return
	}

	if err := h.profiles.RecordSessionStart(r.Context(), profile.ID, time.Now().UTC()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record session start")
		return
	}

	settings := domain.DefaultSessionSettings()
	if req.Settings != nil {
		if !validSettings(*req.Settings) {
			writeError(w, http.StatusBadRequest, "invalid settings")
			return
		}
		settings = *req.Settings
	}

	sess := h.hub.Open(profile.ID, workspace.ID, settings)

	// Absence-return and open-loop detectors run against the profile as it
	// was before this session start.
	h.patterns.OnSessionStart(r.Context(), sess, profile)

	writeJSON(w, http.StatusCreated, openSessionResponse{
		SessionID: sess.ID,
		ProfileID: profile.ID,
		StartedAt: sess.StartedAt,
		Settings:  sess.Settings(),
	})
}

type closeSessionResponse struct {
	Closed        bool `json:"closed"`
	ReflectionRan bool `json:"reflection_ran"`
}

// Close ends a session, flushes its engagement counters to durable
// storage and gives the profile a reflection chance. Both follow-ups are
// best-effort; the close itself always wins.
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	workspace, sess, ok := h.scoped(w, r)
	if !ok {
		return
	}

	closed, found := h.hub.Close(sess.ID)
	if !found {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	if err := h.insights.FlushStats(r.Context(), closed); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to flush session stats")
		return
	}

	// The finished session's length feeds the profile's running average.
	h.patterns.OnSessionClose(r.Context(), closed, time.Now().UTC())

	resp := closeSessionResponse{Closed: true}
	if outcome, err := h.reflection.Run(r.Context(), closed.ProfileID, workspace.ID, false); err == nil && outcome != nil {
		resp.ReflectionRan = outcome.Ran
	}

	writeJSON(w, http.StatusOK, resp)
}

type activityRequest struct {
	Chars int    `json:"chars"`
	Topic string `json:"topic,omitempty"`
}

type activityResponse struct {
	Engagement domain.EngagementLevel `json:"engagement"`
	IdleFor    float64                `json:"idle_for_seconds"`
}

// Activity records keystrokes-level telemetry so the engagement
// estimator tracks how present the user is.
func (h *SessionHandler) Activity(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := h.scoped(w, r)
	if !ok {
		return
	}

	var req activityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Chars < 0 {
		writeError(w, http.StatusBadRequest, "chars must be non-negative")
		return
	}

	now := time.Now().UTC()
	sess.RecordActivity(req.Chars, req.Topic, now)

	writeJSON(w, http.StatusOK, activityResponse{
		Engagement: sess.Level(now),
		IdleFor:    sess.IdleFor(now).Seconds(),
	})
}

// UpdateSettings replaces the session's delivery switches wholesale.
func (h *SessionHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := h.scoped(w, r)
	if !ok {
		return
	}

	var settings domain.SessionSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validSettings(settings) {
		writeError(w, http.StatusBadRequest, "invalid settings")
		return
	}

	sess.UpdateSettings(settings)
	writeJSON(w, http.StatusOK, sess.Settings())
}

func validSettings(s domain.SessionSettings) bool {
	for _, t := range s.MutedTypes {
		if !domain.ValidInsightType(t) {
			return false
		}
	}
	for _, t := range s.EnabledTriggers {
		if !domain.ValidInsightTrigger(t) {
			return false
		}
	}
	return s.MaxInterruptsPerHour >= 0 && s.MaxPerSession >= 0
}

// scoped resolves {id} to a live session owned by the caller's
// workspace. A session from another workspace reads as not found.
func (h *SessionHandler) scoped(w http.ResponseWriter, r *http.Request) (*domain.Workspace, *session.State, bool) {
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
