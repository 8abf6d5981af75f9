package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tastetrail/backend/internal/middleware"
	"github.com/tastetrail/backend/internal/models"
	"github.com/tastetrail/backend/internal/services"
)

type ProfileHandler struct {
	users   *services.UserService
	reviews *services.ReviewService
}

func NewProfileHandler(svc *services.Services) *ProfileHandler {
	return &ProfileHandler{users: svc.Users, reviews: svc.Reviews}
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.GetUserID(r.Context())
	prof, err := h.users.Profile(r.Context(), viewer, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, prof)
}

// UpdateProfile edits the caller's own profile.
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.users.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, user)
}

func (h *ProfileHandler) Reviews(w http.ResponseWriter, r *http.Request) {
	page, err := h.reviews.ListByUser(r.Context(), actor(r), chi.URLParam(r, "id"), parsePage(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, page)
}

func (h *ProfileHandler) Follow(w http.ResponseWriter, r *http.Request) {
	f, err := h.users.Follow(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCreated(w, f)
}

func (h *ProfileHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Unfollow(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]bool{"following": false})
}

func (h *ProfileHandler) Followers(w http.ResponseWriter, r *http.Request) {
	page, err := h.users.Followers(r.Context(), chi.URLParam(r, "id"), parsePage(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, page)
}

func (h *ProfileHandler) Following(w http.ResponseWriter, r *http.Request) {
	page, err := h.users.Following(r.Context(), chi.URLParam(r, "id"), parsePage(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, page)
}
