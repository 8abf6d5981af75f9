package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tastetrail/backend/internal/auth"
	"github.com/tastetrail/backend/internal/logging"
	"github.com/tastetrail/backend/internal/models"
	"github.com/tastetrail/backend/internal/store"
)

// ClientMeta describes the client opening a session.
type ClientMeta struct {
	UserAgent string
	IP        string
}

// Session is an issued token pair.
type Session struct {
	User           *models.User
	AccessToken    string
	AccessExpires  time.Time
	RefreshToken   string
	RefreshExpires time.Time
}

type AuthService struct {
	store      store.Store
	tokens     *auth.Manager
	moderation *ModerationService
	recaptcha  *RecaptchaVerifier
	bcryptCost int
	now        func() time.Time
}

// selfServiceRoles may be chosen at registration. Other roles come from
// an approved application or an admin.
var selfServiceRoles = map[models.Role]bool{
	models.RoleUser:  true,
	models.RoleOwner: true,
}

func (s *AuthService) Register(ctx context.Context, req *models.RegisterRequest, meta ClientMeta) (*Session, error) {
	if err := Validated(req.Validate()); err != nil {
		return nil, err
	}
	if !selfServiceRoles[req.Role] {
		return nil, invalid("role", "role must be USER or OWNER; other roles are granted after review")
	}
	if err := s.recaptcha.Check(ctx, "register", req.RecaptchaToken, meta.IP); err != nil {
		return nil, err
	}

	if _, err := s.store.Users().GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrAccountExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost())
	if err != nil {
		return nil, err
	}
	now := s.now()
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: string(hash),
		Name:         req.Name,
		Role:         req.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, duplicateAs(err, ErrAccountExists)
	}
	logging.Audit(ctx, logging.AuditRegister, user.ID, "", string(user.Role))
	return s.open(ctx, user, meta)
}

func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest, meta ClientMeta) (*Session, error) {
	if err := Validated(req.Validate()); err != nil {
		return nil, err
	}
	user, err := s.store.Users().GetByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		logging.Audit(ctx, logging.AuditLoginFailed, "", "", req.Email)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		logging.Audit(ctx, logging.AuditLoginFailed, user.ID, "", "bad password")
		return nil, ErrInvalidCredentials
	}

	ban, err := s.moderation.CheckUserBan(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if ban != nil {
		logging.Audit(ctx, logging.AuditLoginBanned, user.ID, ban.ID, string(ban.Kind))
		return nil, &BanError{Ban: ban}
	}

	logging.Audit(ctx, logging.AuditLogin, user.ID, "", "")
	return s.open(ctx, user, meta)
}

// Refresh exchanges a refresh token for a new access token and rotates
// the refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta ClientMeta) (*Session, error) {
	claims, err := s.tokens.Verify(refreshToken, auth.TypeRefresh)
	if err != nil {
		return nil, ErrInvalidSession
	}
	sess, err := s.store.Sessions().Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	if sess.UserID != claims.UserID() ||
		subtle.ConstantTimeCompare([]byte(sess.RefreshHash), []byte(auth.HashToken(refreshToken))) != 1 ||
		!s.now().Before(sess.ExpiresAt) {
		return nil, ErrInvalidSession
	}

	user, err := s.store.Users().Get(ctx, sess.UserID)
	if errors.Is(err, store.ErrNotFound) {
		_ = s.store.Sessions().Delete(ctx, sess.ID)
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, err
	}
	ban, err := s.moderation.CheckUserBan(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if ban != nil {
		_, _ = s.store.Sessions().DeleteByUser(ctx, user.ID)
		return nil, &BanError{Ban: ban}
	}

	access, accessExp, err := s.tokens.IssueAccess(user.ID, string(user.Role))
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.tokens.IssueRefresh(user.ID, sess.ID)
	if err != nil {
		return nil, err
	}
	sess.RefreshHash = auth.HashToken(refresh)
	sess.ExpiresAt = refreshExp
	if meta.UserAgent != "" {
		sess.UserAgent = meta.UserAgent
	}
	if meta.IP != "" {
		sess.IP = meta.IP
	}
	if err := s.store.Sessions().Update(ctx, sess); err != nil {
		return nil, err
	}
	return &Session{
		User:           user,
		AccessToken:    access,
		AccessExpires:  accessExp,
		RefreshToken:   refresh,
		RefreshExpires: refreshExp,
	}, nil
}

// Logout revokes the session behind refreshToken. Unknown or invalid
// tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	claims, err := s.tokens.Verify(refreshToken, auth.TypeRefresh)
	if err != nil {
		return nil
	}
	err = s.store.Sessions().Delete(ctx, claims.SessionID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	logging.Audit(ctx, logging.AuditLogout, claims.UserID(), "", "")
	return nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.store.Users().Get(ctx, userID)
	if err != nil {
		return nil, notFoundAs(err, ErrUserNotFound)
	}
	return u, nil
}

// Authenticate verifies an access token.
func (s *AuthService) Authenticate(token string) (*auth.Claims, error) {
	claims, err := s.tokens.Verify(token, auth.TypeAccess)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrUnauthenticated)
	}
	return claims, nil
}

// BootstrapAdmin creates the configured admin account, or promotes it if
// the email is already registered.
func (s *AuthService) BootstrapAdmin(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}
	u, err := s.store.Users().GetByEmail(ctx, email)
	switch {
	case err == nil:
		if u.Role == models.RoleAdmin {
			return nil
		}
		u.Role = models.RoleAdmin
		u.UpdatedAt = s.now()
		return s.store.Users().Update(ctx, u)
	case !errors.Is(err, store.ErrNotFound):
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost())
	if err != nil {
		return err
	}
	now := s.now()
	username := "admin"
	if at := strings.IndexByte(email, '@'); at > 0 {
		username = strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
				return r
			}
			return -1
		}, email[:at])
	}
	return s.store.Users().Create(ctx, &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		Name:         "Administrator",
		Role:         models.RoleAdmin,
		Verified:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func (s *AuthService) open(ctx context.Context, user *models.User, meta ClientMeta) (*Session, error) {
	sessionID := uuid.NewString()
	access, accessExp, err := s.tokens.IssueAccess(user.ID, string(user.Role))
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.tokens.IssueRefresh(user.ID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Sessions().Create(ctx, &models.Session{
		ID:          sessionID,
		UserID:      user.ID,
		RefreshHash: auth.HashToken(refresh),
		UserAgent:   meta.UserAgent,
		IP:          meta.IP,
		ExpiresAt:   refreshExp,
		CreatedAt:   s.now(),
	}); err != nil {
		return nil, err
	}
	return &Session{
		User:           user,
		AccessToken:    access,
		AccessExpires:  accessExp,
		RefreshToken:   refresh,
		RefreshExpires: refreshExp,
	}, nil
}

func (s *AuthService) cost() int {
	if s.bcryptCost < bcrypt.MinCost {
		return bcrypt.DefaultCost
	}
	return s.bcryptCost
}
