package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tastetrail/backend/internal/models"
	"github.com/tastetrail/backend/internal/services"
)

// ClaimHandler covers restaurant ownership claims and influencer
// applications. Claims are filed through RestaurantHandler.Claim.
type ClaimHandler struct {
	claims *services.ClaimService
}

func NewClaimHandler(svc *services.Services) *ClaimHandler {
	return &ClaimHandler{claims: svc.Claims}
}

func (h *ClaimHandler) MyClaims(w http.ResponseWriter, r *http.Request) {
	page, err := h.claims.MyClaims(r.Context(), actor(r), parsePage(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, page)
}

func (h *ClaimHandler) ListClaims(w http.ResponseWriter, r *http.Request) {
	page, err := h.claims.ListClaims(r.Context(), statusParam(r), parsePage(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, page)
}

func (h *ClaimHandler) ApproveClaim(w http.ResponseWriter, r *http.Request) {
	var req models.DecisionRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	claim, err := h.claims.ApproveClaim(r.Context(), actor(r), chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, claim)
}

func (h *ClaimHandler) RejectClaim(w http.ResponseWriter, r *http.Request) {
	var req models.DecisionRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	claim, err := h.claims.RejectClaim(r.Context(), actor(r), chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, claim)
}

func (h *ClaimHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req models.CreateApplicationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	app, err := h.claims.CreateApplication(r.Context(), actor(r), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCreated(w, app)
}

func (h *ClaimHandler) MyApplications(w http.ResponseWriter, r *http.Request) {
	page, err := h.claims.MyApplications(r.Context(), actor(r), parsePage(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, page)
}

func (h *ClaimHandler) ListApplications(w http.ResponseWriter, r *http.Request) {
	page, err := h.claims.ListApplications(r.Context(), statusParam(r), parsePage(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, page)
}

func (h *ClaimHandler) ApproveApplication(w http.ResponseWriter, r *http.Request) {
	var req models.DecisionRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	app, err := h.claims.ApproveApplication(r.Context(), actor(r), chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, app)
}

func (h *ClaimHandler) RejectApplication(w http.ResponseWriter, r *http.Request) {
	var req models.DecisionRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	app, err := h.claims.RejectApplication(r.Context(), actor(r), chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, app)
}

func statusParam(r *http.Request) models.ApplicationStatus {
	return models.ApplicationStatus(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))))
}
