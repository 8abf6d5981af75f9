package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tastetrail/backend/internal/middleware"
	"github.com/tastetrail/backend/internal/models"
	"github.com/tastetrail/backend/internal/services"
)

type NotificationHandler struct {
	notes *services.NotificationService
}

func NewNotificationHandler(svc *services.Services) *NotificationHandler {
	return &NotificationHandler{notes: svc.Notifications}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	unread := queryBool(r, "unread")
	page, err := h.notes.List(r.Context(), middleware.GetUserID(r.Context()), unread != nil && *unread, parsePage(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, page)
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.notes.UnreadCount(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, models.UnreadCount{Count: n})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.notes.MarkRead(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]bool{"read": true})
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.notes.MarkAllRead(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]int64{"updated": n})
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.notes.Delete(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]string{"message": "Notification deleted"})
}
