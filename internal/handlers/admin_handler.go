package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tastetrail/backend/internal/models"
	"github.com/tastetrail/backend/internal/services"
)

// AdminHandler serves the moderator and admin consoles.
type AdminHandler struct {
	moderation *services.ModerationService
	admin      *services.AdminService
}

func NewAdminHandler(svc *services.Services) *AdminHandler {
	return &AdminHandler{moderation: svc.Moderation, admin: svc.Admin}
}

func (h *AdminHandler) UserAction(w http.ResponseWriter, r *http.Request) {
	var req models.UserActionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	action, err := h.moderation.Act(r.Context(), actor(r), chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCreated(w, action)
}

func (h *AdminHandler) History(w http.ResponseWriter, r *http.Request) {
	hist, err := h.moderation.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, hist)
}

func (h *AdminHandler) Reinstate(w http.ResponseWriter, r *http.Request) {
	target := models.TargetType(strings.ToUpper(chi.URLParam(r, "type")))
	action, err := h.moderation.Reinstate(r.Context(), actor(r), target, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, action)
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, stats)
}

// Users accepts role as a repeated or comma separated parameter.
func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var roles []models.Role
	for _, v := range q["role"] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				roles = append(roles, models.Role(strings.ToUpper(part)))
			}
		}
	}
	page, err := h.admin.ListUsers(r.Context(), roles, strings.TrimSpace(q.Get("q")), parsePage(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, page)
}

func (h *AdminHandler) Announce(w http.ResponseWriter, r *http.Request) {
	var req models.AnnouncementRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.admin.Announce(r.Context(), actor(r), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCreated(w, res)
}
