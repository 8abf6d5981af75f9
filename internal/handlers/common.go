package handlers

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tastetrail/backend/internal/logging"
	"github.com/tastetrail/backend/internal/media"
	"github.com/tastetrail/backend/internal/middleware"
	"github.com/tastetrail/backend/internal/models"
	"github.com/tastetrail/backend/internal/services"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeOK(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(data))
}

func writeCreated(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(data))
}

// decodeJSON reads a bounded JSON body into dst. On failure it writes the
// 400 response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewCodedErrorResponse("INVALID_BODY", "Invalid request body"))
		return false
	}
	return true
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, models.NewCodedErrorResponse("INVALID_BODY", "Invalid request body"))
		return false
	}
	return true
}

// writeError maps a service error onto the API envelope. Anything outside
// the taxonomy is logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *services.ValidationError
		ban  *services.BanError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(verr.Fields))
	case errors.As(err, &ban):
		resp := models.NewCodedErrorResponse("ACCOUNT_BANNED", ban.Error())
		resp.Data = ban.Details()
		writeJSON(w, http.StatusForbidden, resp)
	case errors.Is(err, media.ErrImageRejected):
		writeJSON(w, http.StatusUnprocessableEntity, models.NewCodedErrorResponse("IMAGE_REJECTED", "An image was rejected by moderation"))
	case errors.Is(err, services.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, models.NewCodedErrorResponse("AUTHENTICATION_REQUIRED", publicMessage(err, services.ErrUnauthenticated)))
	case errors.Is(err, services.ErrForbidden):
		writeJSON(w, http.StatusForbidden, models.NewCodedErrorResponse("PERMISSION_DENIED", publicMessage(err, services.ErrForbidden)))
	case errors.Is(err, services.ErrNotFound):
		writeJSON(w, http.StatusNotFound, models.NewCodedErrorResponse("NOT_FOUND", publicMessage(err, services.ErrNotFound)))
	case errors.Is(err, services.ErrConflict):
		writeJSON(w, http.StatusConflict, models.NewCodedErrorResponse("CONFLICT", publicMessage(err, services.ErrConflict)))
	case errors.Is(err, services.ErrUpstreamUnavailable):
		logging.Ctx(r.Context()).Warn().Err(err).Msg("upstream unavailable")
		writeJSON(w, http.StatusServiceUnavailable, models.NewCodedErrorResponse("UPSTREAM_UNAVAILABLE", "A required service is unavailable, try again later"))
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, models.NewCodedErrorResponse("INTERNAL_ERROR", "Internal server error"))
	}
}

// publicMessage drops the taxonomy suffix from a wrapped sentinel, so
// "already liked: conflict" becomes "already liked".
func publicMessage(err, base error) string {
	msg := strings.TrimSuffix(err.Error(), ": "+base.Error())
	if msg == "" {
		msg = base.Error()
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

func actor(r *http.Request) services.Actor {
	return services.Actor{
		ID:   middleware.GetUserID(r.Context()),
		Role: middleware.GetRole(r.Context()),
	}
}

func clientMeta(r *http.Request) services.ClientMeta {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return services.ClientMeta{UserAgent: r.UserAgent(), IP: host}
}

func parsePage(r *http.Request) services.PageRequest {
	return services.PageRequest{
		Page:  queryInt(r, "page", 1),
		Limit: queryInt(r, "limit", 20),
	}
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func queryBool(r *http.Request, name string) *bool {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &b
}
