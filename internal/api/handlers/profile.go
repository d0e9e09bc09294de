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

// ProfileHandler carries the per-profile surface: lifecycle, message
// ingest, reflection, personalization reads and belief reset.
type ProfileHandler struct {
	profiles   domain.ProfileStore
	dimensions domain.DimensionStore
	signals    domain.SignalStore
	ingest     *service.SignalService
	reflection *service.ReflectionService
	contextSvc *service.ContextService
	patterns   *service.PatternService
	hub        *session.Hub
}

func NewProfileHandler(
	profiles domain.ProfileStore,
	dimensions domain.DimensionStore,
	signals domain.SignalStore,
	ingest *service.SignalService,
	reflection *service.ReflectionService,
	contextSvc *service.ContextService,
	patterns *service.PatternService,
	hub *session.Hub,
) *ProfileHandler {
	return &ProfileHandler{
		profiles:   profiles,
		dimensions: dimensions,
		signals:    signals,
		ingest:     ingest,
		reflection: reflection,
		contextSvc: contextSvc,
		patterns:   patterns,
		hub:        hub,
	}
}

type createProfileRequest struct {
	ExternalUserID string             `json:"external_user_id"`
	PrivacyTier    domain.PrivacyTier `json:"privacy_tier"`
}

func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	workspace := middleware.WorkspaceFromContext(r.Context())
	if workspace == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ExternalUserID == "" {
		writeError(w, http.StatusBadRequest, "external_user_id is required")
		return
	}
	if req.PrivacyTier != "" && !domain.ValidPrivacyTier(req.PrivacyTier) {
		writeError(w, http.StatusBadRequest, "invalid privacy_tier")
		return
	}

	profile := &domain.Profile{
		WorkspaceID:    workspace.ID,
		ExternalUserID: req.ExternalUserID,
		PrivacyTier:    req.PrivacyTier,
	}
	if err := h.profiles.Create(r.Context(), profile); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create profile")
		return
	}

	writeJSON(w, http.StatusCreated, profile)
}

func (h *ProfileHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	workspace, id, ok := h.scope(w, r)
	if !ok {
		return
	}

	profile, err := h.profiles.GetByID(r.Context(), id, workspace.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get profile")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

type updatePrivacyRequest struct {
	PrivacyTier domain.PrivacyTier `json:"privacy_tier"`
}

func (h *ProfileHandler) UpdatePrivacy(w http.ResponseWriter, r *http.Request) {
	workspace, id, ok := h.scope(w, r)
	if !ok {
		return
	}

	var req updatePrivacyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !domain.ValidPrivacyTier(req.PrivacyTier) {
		writeError(w, http.StatusBadRequest, "invalid privacy_tier")
		return
	}

	if err := h.profiles.UpdatePrivacyTier(r.Context(), id, workspace.ID, req.PrivacyTier); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update privacy tier")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"privacy_tier": string(req.PrivacyTier)})
}

type ingestMessageRequest struct {
	SessionID *uuid.UUID          `json:"session_id,omitempty"`
	MessageID *uuid.UUID          `json:"message_id,omitempty"`
	Text      string              `json:"text"`
	Mode      domain.ResponseMode `json:"mode,omitempty"`
	// Topic lets the host pass its own subject tag alongside whatever the
	// classifier extracts.
	Topic string `json:"topic,omitempty"`
}

// IngestMessage runs the per-message pipeline leg. An unknown profile is
// reported in the result, not as an HTTP error; the chat pipeline calling
// this must never fail a user turn over modeling state.
func (h *ProfileHandler) IngestMessage(w http.ResponseWriter, r *http.Request) {
	workspace, id, ok := h.scope(w, r)
	if !ok {
		return
	}

	var req ingestMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.Mode != "" && !domain.ValidResponseMode(req.Mode) {
		writeError(w, http.StatusBadRequest, "invalid mode")
		return
	}

	msg := domain.UserMessage{
		Text:      req.Text,
		SessionID: req.SessionID,
		MessageID: req.MessageID,
		Mode:      req.Mode,
		SentAt:    time.Now().UTC(),
	}

	result, err := h.ingest.Ingest(r.Context(), workspace.ID, id, msg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to ingest message")
		return
	}

	// Feed live session telemetry while the message is fresh. The session
	// is optional; without one only the durable leg runs.
	if req.SessionID != nil {
		if sess, found := h.hub.Get(*req.SessionID); found && sess.WorkspaceID == workspace.ID && sess.ProfileID == id {
			topics := result.Topics
			if req.Topic != "" {
				topics = append([]string{req.Topic}, topics...)
			}
			sess.RecordMessage(len(req.Text), topics, time.Now().UTC())
			h.patterns.OnMessage(r.Context(), sess)
		}
	}

	writeJSON(w, http.StatusOK, result)
}

type reflectRequest struct {
	Force     bool       `json:"force,omitempty"`
	SessionID *uuid.UUID `json:"session_id,omitempty"`
}

func (h *ProfileHandler) Reflect(w http.ResponseWriter, r *http.Request) {
	workspace, id, ok := h.scope(w, r)
	if !ok {
		return
	}

	var req reflectRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	outcome, err := h.reflection.Run(r.Context(), id, workspace.ID, req.Force)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "reflection failed")
		return
	}

	// A pass that found confidence gaps can seed clarify insights onto the
	// caller's live session.
	if req.SessionID != nil && len(outcome.Gaps) > 0 {
		if sess, found := h.hub.Get(*req.SessionID); found && sess.WorkspaceID == workspace.ID && sess.ProfileID == id {
			h.patterns.OnReflectionGaps(r.Context(), sess, outcome.Gaps)
		}
	}

	writeJSON(w, http.StatusOK, outcome)
}

func (h *ProfileHandler) Context(w http.ResponseWriter, r *http.Request) {
	workspace, id, ok := h.scope(w, r)
	if !ok {
		return
	}

	pc, err := h.contextSvc.Personalization(r.Context(), id, workspace.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build context")
		return
	}

	writeJSON(w, http.StatusOK, pc)
}

func (h *ProfileHandler) Gaps(w http.ResponseWriter, r *http.Request) {
	workspace, id, ok := h.scope(w, r)
	if !ok {
		return
	}

	gaps, err := h.contextSvc.Gaps(r.Context(), id, workspace.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute gaps")
		return
	}
	if gaps == nil {
		gaps = []service.ElicitationGap{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"gaps": gaps})
}

// ResetDimensions wipes the profile's belief state and any unprocessed
// signals. The profile row itself survives; modeling restarts from zero.
func (h *ProfileHandler) ResetDimensions(w http.ResponseWriter, r *http.Request) {
	workspace, id, ok := h.scope(w, r)
	if !ok {
		return
	}

	if _, err := h.profiles.GetByID(r.Context(), id, workspace.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get profile")
		return
	}

	dims, err := h.dimensions.DeleteByProfile(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset dimensions")
		return
	}
	sigs, err := h.signals.DeleteByProfile(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset signals")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{
		"dimensions_deleted": dims,
		"signals_deleted":    sigs,
	})
}

func (h *ProfileHandler) scope(w http.ResponseWriter, r *http.Request) (*domain.Workspace, uuid.UUID, bool) {
	workspace := middleware.WorkspaceFromContext(r.Context())
	if workspace == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, uuid.Nil, false
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid profile id")
		return nil, uuid.Nil, false
	}
	return workspace, id, true
}
