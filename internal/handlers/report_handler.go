package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tastetrail/backend/internal/models"
	"github.com/tastetrail/backend/internal/services"
)

type ReportHandler struct {
	reports *services.ReportService
}

func NewReportHandler(svc *services.Services) *ReportHandler {
	return &ReportHandler{reports: svc.Reports}
}

func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	report, err := h.reports.Create(r.Context(), actor(r), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCreated(w, report)
}

func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := models.ReportStatus(strings.ToUpper(q.Get("status")))
	target := models.TargetType(strings.ToUpper(q.Get("targetType")))
	page, err := h.reports.List(r.Context(), status, target, parsePage(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, page)
}

func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, report)
}

func (h *ReportHandler) Flags(w http.ResponseWriter, r *http.Request) {
	page, err := h.reports.Flags(r.Context(), parsePage(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, page)
}

func (h *ReportHandler) Investigate(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.Investigate(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, report)
}

func (h *ReportHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.reports.Approve)
}

func (h *ReportHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.reports.Reject)
}

type resolveFunc func(ctx context.Context, a services.Actor, id string, req *models.ResolveReportRequest) (*models.Report, error)

func (h *ReportHandler) resolve(w http.ResponseWriter, r *http.Request, fn resolveFunc) {
	var req models.ResolveReportRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	report, err := fn(r.Context(), actor(r), chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, report)
}
