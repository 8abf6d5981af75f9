package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tastetrail/backend/internal/models"
)

// Taxonomy. Handlers map these to HTTP statuses with errors.Is.
var (
	ErrUnauthenticated     = errors.New("authentication required")
	ErrForbidden           = errors.New("permission denied")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrValidation          = errors.New("validation failed")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

var (
	ErrUserNotFound         = fmt.Errorf("user %w", ErrNotFound)
	ErrRestaurantNotFound   = fmt.Errorf("restaurant %w", ErrNotFound)
	ErrReviewNotFound       = fmt.Errorf("review %w", ErrNotFound)
	ErrCommentNotFound      = fmt.Errorf("comment %w", ErrNotFound)
	ErrReportNotFound       = fmt.Errorf("report %w", ErrNotFound)
	ErrNotificationNotFound = fmt.Errorf("notification %w", ErrNotFound)
	ErrClaimNotFound        = fmt.Errorf("claim %w", ErrNotFound)
	ErrApplicationNotFound  = fmt.Errorf("application %w", ErrNotFound)
	ErrLikeNotFound         = fmt.Errorf("like %w", ErrNotFound)
	ErrFollowNotFound       = fmt.Errorf("follow %w", ErrNotFound)
	ErrTargetNotFound       = fmt.Errorf("report target %w", ErrNotFound)

	ErrAccountExists      = fmt.Errorf("email or username already registered: %w", ErrConflict)
	ErrRestaurantExists   = fmt.Errorf("a restaurant with this name already exists: %w", ErrConflict)
	ErrAlreadyReviewed    = fmt.Errorf("you have already reviewed this restaurant: %w", ErrConflict)
	ErrAlreadyLiked       = fmt.Errorf("review already liked: %w", ErrConflict)
	ErrAlreadyFollowing   = fmt.Errorf("already following this user: %w", ErrConflict)
	ErrAlreadyReported    = fmt.Errorf("you have already reported this content: %w", ErrConflict)
	ErrReportClosed       = fmt.Errorf("report has already been resolved: %w", ErrConflict)
	ErrDecisionMade       = fmt.Errorf("application has already been reviewed: %w", ErrConflict)
	ErrPendingClaim       = fmt.Errorf("you already have a pending claim for this restaurant: %w", ErrConflict)
	ErrPendingApplication = fmt.Errorf("you already have a pending application: %w", ErrConflict)
	ErrNotBanned          = fmt.Errorf("user has no active ban: %w", ErrConflict)

	ErrInvalidCredentials = fmt.Errorf("invalid email or password: %w", ErrUnauthenticated)
	ErrInvalidSession     = fmt.Errorf("session expired or revoked: %w", ErrUnauthenticated)
)

// ValidationError carries per-field messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// Validated turns a request's field errors into a ValidationError.
func Validated(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// BanError is returned when a banned user tries to authenticate.
type BanError struct {
	Ban *models.ModerationAction
}

func (e *BanError) Error() string {
	if e.Ban.ExpiresAt != nil {
		return fmt.Sprintf("account suspended until %s", e.Ban.ExpiresAt.UTC().Format(time.RFC3339))
	}
	return "account permanently banned"
}

func (e *BanError) Is(target error) bool {
	return target == ErrForbidden
}

func (e *BanError) Details() models.BanDetails {
	return models.BanDetails{
		Reason:    e.Ban.Reason,
		Type:      string(e.Ban.Kind),
		ExpiresAt: e.Ban.ExpiresAt,
	}
}

func forbidden(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrForbidden)
}
