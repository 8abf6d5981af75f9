package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/tastetrail/backend/internal/config"
	"github.com/tastetrail/backend/internal/middleware"
	"github.com/tastetrail/backend/internal/models"
	"github.com/tastetrail/backend/internal/services"
)

const (
	refreshCookie     = "refresh_token"
	refreshCookiePath = "/api/auth"
)

type AuthHandler struct {
	auth *services.AuthService
	cfg  config.AuthConfig
}

func NewAuthHandler(auth *services.AuthService, cfg config.AuthConfig) *AuthHandler {
	return &AuthHandler{auth: auth, cfg: cfg}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := h.auth.Register(r.Context(), &req, clientMeta(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.setCookies(w, sess)
	writeCreated(w, authResponse(sess))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := h.auth.Login(r.Context(), &req, clientMeta(r))
	if err != nil {
		var ban *services.BanError
		if errors.As(err, &ban) {
			h.clearCookies(w)
		}
		writeError(w, r, err)
		return
	}
	h.setCookies(w, sess)
	writeOK(w, authResponse(sess))
}

// Refresh rotates the refresh token. The cookie wins over the body.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := ""
	if c, err := r.Cookie(refreshCookie); err == nil {
		token = c.Value
	}
	if token == "" {
		var body models.RefreshRequest
		if !decodeOptionalJSON(w, r, &body) {
			return
		}
		token = body.RefreshToken
	}
	if token == "" {
		writeError(w, r, services.ErrInvalidSession)
		return
	}

	sess, err := h.auth.Refresh(r.Context(), token, clientMeta(r))
	if err != nil {
		h.clearCookies(w)
		writeError(w, r, err)
		return
	}
	h.setCookies(w, sess)
	writeOK(w, authResponse(sess))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := ""
	if c, err := r.Cookie(refreshCookie); err == nil {
		token = c.Value
	}
	if err := h.auth.Logout(r.Context(), token); err != nil {
		writeError(w, r, err)
		return
	}
	h.clearCookies(w)
	writeOK(w, map[string]string{"message": "Logged out"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Me(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, user)
}

func authResponse(s *services.Session) models.AuthResponse {
	return models.AuthResponse{
		Token:        s.AccessToken,
		ExpiresAt:    s.AccessExpires,
		RefreshToken: s.RefreshToken,
		User:         *s.User,
	}
}

func (h *AuthHandler) setCookies(w http.ResponseWriter, s *services.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    s.RefreshToken,
		Path:     refreshCookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  s.RefreshExpires,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	// Readable by the frontend for coarse routing; the API still verifies it.
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessCookie,
		Value:    s.AccessToken,
		Path:     "/",
		Domain:   h.cfg.CookieDomain,
		Expires:  s.AccessExpires,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookies(w http.ResponseWriter) {
	for _, c := range []struct{ name, path string }{
		{refreshCookie, refreshCookiePath},
		{middleware.AccessCookie, "/"},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    "",
			Path:     c.path,
			Domain:   h.cfg.CookieDomain,
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: c.name == refreshCookie,
			Secure:   h.cfg.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
