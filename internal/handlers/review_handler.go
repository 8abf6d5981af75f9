package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tastetrail/backend/internal/models"
	"github.com/tastetrail/backend/internal/services"
)

type ReviewHandler struct {
	reviews  *services.ReviewService
	comments *services.CommentService
}

func NewReviewHandler(svc *services.Services) *ReviewHandler {
	return &ReviewHandler{reviews: svc.Reviews, comments: svc.Comments}
}

func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.reviews.Create(r.Context(), actor(r), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCreated(w, out)
}

func (h *ReviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	out, err := h.reviews.Get(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, out)
}

func (h *ReviewHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.reviews.Update(r.Context(), actor(r), chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, out)
}

func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.reviews.Delete(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]string{"message": "Review deleted"})
}

func (h *ReviewHandler) Trending(w http.ResponseWriter, r *http.Request) {
	items, err := h.reviews.Trending(r.Context(), actor(r), parsePage(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, items)
}

func (h *ReviewHandler) Feed(w http.ResponseWriter, r *http.Request) {
	page, err := h.reviews.Feed(r.Context(), actor(r), parsePage(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, page)
}

func (h *ReviewHandler) Respond(w http.ResponseWriter, r *http.Request) {
	var req models.OwnerResponseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.reviews.Respond(r.Context(), actor(r), chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, out)
}

func (h *ReviewHandler) Promote(w http.ResponseWriter, r *http.Request) {
	var req models.PromoteReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.reviews.Promote(r.Context(), actor(r), chi.URLParam(r, "id"), req.Promoted)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, out)
}

func (h *ReviewHandler) Like(w http.ResponseWriter, r *http.Request) {
	if err := h.reviews.Like(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeCreated(w, map[string]bool{"liked": true})
}

func (h *ReviewHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	if err := h.reviews.Unlike(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]bool{"liked": false})
}

func (h *ReviewHandler) Comments(w http.ResponseWriter, r *http.Request) {
	threads, err := h.comments.List(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, threads)
}

func (h *ReviewHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.comments.Create(r.Context(), actor(r), chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCreated(w, out)
}

func (h *ReviewHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := h.comments.Delete(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]string{"message": "Comment deleted"})
}
