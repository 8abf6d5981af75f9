package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tastetrail/backend/internal/auth"
	"github.com/tastetrail/backend/internal/authz"
	"github.com/tastetrail/backend/internal/logging"
	"github.com/tastetrail/backend/internal/models"
)

type contextKey string

const (
	UserIDKey contextKey = "userID"
	RoleKey   contextKey = "role"

	// AccessCookie carries the access token for browser clients.
	AccessCookie = "access_token"
)

// TokenVerifier checks the signature, expiry and type of an access token.
type TokenVerifier interface {
	Authenticate(token string) (*auth.Claims, error)
}

// Authenticate resolves the caller from the bearer header, then the
// access_token cookie. Every token is verified before it is trusted; an
// invalid one leaves the request anonymous.
func Authenticate(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims := verify(v, r); claims != nil {
				ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID())
				ctx = context.WithValue(ctx, RoleKey, models.Role(claims.Role))
				log := logging.Ctx(ctx).With().Str(logging.FieldUserID, claims.UserID()).Logger()
				r = r.WithContext(logging.WithLogger(ctx, log))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func verify(v TokenVerifier, r *http.Request) *auth.Claims {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if claims, err := v.Authenticate(strings.TrimSpace(parts[1])); err == nil {
				return claims
			}
		}
	}
	if c, err := r.Cookie(AccessCookie); err == nil && c.Value != "" {
		if claims, err := v.Authenticate(c.Value); err == nil {
			return claims
		}
	}
	return nil
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserID(r.Context()) == "" {
			writeJSON(w, http.StatusUnauthorized, models.NewCodedErrorResponse("AUTHENTICATION_REQUIRED", "Authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission rejects callers whose role may not perform act on obj.
// It implies RequireAuth.
func RequirePermission(e *authz.Enforcer, obj, act string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !e.Can(string(GetRole(r.Context())), obj, act) {
				writeJSON(w, http.StatusForbidden, models.NewCodedErrorResponse("PERMISSION_DENIED", "You do not have permission to perform this action"))
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(UserIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}

func GetRole(ctx context.Context) models.Role {
	role, _ := ctx.Value(RoleKey).(models.Role)
	return role
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
