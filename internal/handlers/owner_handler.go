package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tastetrail/backend/internal/services"
)

type OwnerHandler struct {
	owner *services.OwnerService
}

func NewOwnerHandler(svc *services.Services) *OwnerHandler {
	return &OwnerHandler{owner: svc.Owner}
}

func (h *OwnerHandler) Restaurants(w http.ResponseWriter, r *http.Request) {
	items, err := h.owner.Restaurants(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, items)
}

func (h *OwnerHandler) Reviews(w http.ResponseWriter, r *http.Request) {
	page, err := h.owner.Reviews(r.Context(), actor(r), chi.URLParam(r, "id"), parsePage(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, page)
}
