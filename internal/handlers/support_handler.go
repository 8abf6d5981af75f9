package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/tastetrail/backend/internal/models"
	"github.com/tastetrail/backend/internal/services"
)

type SupportHandler struct {
	support *services.SupportService
}

func NewSupportHandler(support *services.SupportService) *SupportHandler {
	return &SupportHandler{support: support}
}

// Submit handles POST /api/support.
func (h *SupportHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if h.support == nil {
		writeJSON(w, http.StatusServiceUnavailable, models.NewCodedErrorResponse("SUPPORT_DISABLED", "Support requests are not configured"))
		return
	}
	var req models.SupportRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	ticket, err := h.support.Submit(ctx, &req, clientMeta(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCreated(w, ticket)
}
