package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/attune-ai/attune/internal/api/middleware"
	"github.com/attune-ai/attune/internal/service"
)

// ReflectionHandler exposes the fleet sweep for operators and cron-less
// deployments.
type ReflectionHandler struct {
	svc *service.ReflectionService
}

func NewReflectionHandler(svc *service.ReflectionService) *ReflectionHandler {
	return &ReflectionHandler{svc: svc}
}

type sweepRequest struct {
	Limit int `json:"limit,omitempty"`
}

func (h *ReflectionHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	if middleware.WorkspaceFromContext(r.Context()) == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req sweepRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	result, err := h.svc.Sweep(r.Context(), req.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
