// Package store is the persistence boundary. Services depend on the Store
// interface; MongoDB backs production and an in-memory implementation backs
// development and tests.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/tastetrail/backend/internal/geo"
	"github.com/tastetrail/backend/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Store groups the repositories. WithTx runs fn against a Store whose
// writes commit together or not at all.
type Store interface {
	Users() UserRepository
	Restaurants() RestaurantRepository
	Reviews() ReviewRepository
	Comments() CommentRepository
	Likes() LikeRepository
	Follows() FollowRepository
	Reports() ReportRepository
	Flags() FlagRepository
	Moderation() ModerationRepository
	Notifications() NotificationRepository
	Claims() ClaimRepository
	Applications() ApplicationRepository
	Sessions() SessionRepository

	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
	Close(ctx context.Context) error
}

// Page bounds a list query. Limit 0 means no limit.
type Page struct {
	Offset int
	Limit  int
}

type UserFilter struct {
	Roles []models.Role
	// Query matches username, name or email, case-insensitively.
	Query string
	Page
}

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	Get(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, u *models.User) error
	List(ctx context.Context, f UserFilter) ([]models.User, int64, error)
	CountByRole(ctx context.Context) (map[models.Role]int64, error)
	// IDs returns the ids of users holding any of roles, or of every user
	// when roles is empty.
	IDs(ctx context.Context, roles []models.Role) ([]string, error)
}

const (
	SortNewest = "newest"
	SortName   = "name"
)

type RestaurantFilter struct {
	// IDs restricts the list to these restaurants when non-nil.
	IDs       []string
	Query     string
	Category  string
	PriceTier int
	Verified  *bool
	OwnerID   string
	Sort      string
	Page
}

type RestaurantRepository interface {
	Create(ctx context.Context, r *models.Restaurant) error
	Get(ctx context.Context, id string) (*models.Restaurant, error)
	Update(ctx context.Context, r *models.Restaurant) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f RestaurantFilter) ([]models.Restaurant, int64, error)
	WithinBox(ctx context.Context, box geo.Box) ([]models.Restaurant, error)
	Count(ctx context.Context) (int64, error)
}

// ReviewFilter lists reviews newest first.
type ReviewFilter struct {
	RestaurantID  string
	UserID        string
	UserIDs       []string
	IncludeHidden bool
	HiddenOnly    bool
	Since         time.Time
	Page
}

type ReviewRepository interface {
	Create(ctx context.Context, r *models.Review) error
	Get(ctx context.Context, id string) (*models.Review, error)
	Update(ctx context.Context, r *models.Review) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f ReviewFilter) ([]models.Review, int64, error)
	Count(ctx context.Context, f ReviewFilter) (int64, error)
	// Stats aggregates visible reviews per restaurant. RecentCount counts
	// reviews created at or after since.
	Stats(ctx context.Context, restaurantIDs []string, since time.Time) (map[string]models.ReviewStats, error)
	// ActiveRestaurants returns the restaurants with the most visible
	// reviews created at or after since, busiest first. Limit 0 means no
	// limit.
	ActiveRestaurants(ctx context.Context, since time.Time, limit int) ([]string, error)
	// ReplaceImage rewrites an image reference on every review holding it.
	// An empty replacement removes the reference.
	ReplaceImage(ctx context.Context, oldURL, newURL string) (int64, error)
}

type CommentRepository interface {
	Create(ctx context.Context, c *models.Comment) error
	Get(ctx context.Context, id string) (*models.Comment, error)
	Update(ctx context.Context, c *models.Comment) error
	// Delete removes the comment and its replies.
	Delete(ctx context.Context, id string) error
	// ListByReview returns comments oldest first.
	ListByReview(ctx context.Context, reviewID string, includeHidden bool) ([]models.Comment, error)
	CountByReviews(ctx context.Context, reviewIDs []string) (map[string]int64, error)
	DeleteByReview(ctx context.Context, reviewID string) error
}

type LikeRepository interface {
	Create(ctx context.Context, l *models.Like) error
	Delete(ctx context.Context, userID, reviewID string) error
	CountByReviews(ctx context.Context, reviewIDs []string) (map[string]int64, error)
	LikedBy(ctx context.Context, userID string, reviewIDs []string) (map[string]bool, error)
	DeleteByReview(ctx context.Context, reviewID string) error
}

type FollowRepository interface {
	Create(ctx context.Context, f *models.Follow) error
	Delete(ctx context.Context, followerID, followingID string) error
	Exists(ctx context.Context, followerID, followingID string) (bool, error)
	ListFollowers(ctx context.Context, userID string, p Page) ([]models.Follow, int64, error)
	ListFollowing(ctx context.Context, userID string, p Page) ([]models.Follow, int64, error)
	Counts(ctx context.Context, userID string) (followers, following int64, err error)
	FollowingIDs(ctx context.Context, userID string) ([]string, error)
}

type ReportFilter struct {
	Status     models.ReportStatus
	TargetType models.TargetType
	Page
}

type ReportRepository interface {
	Create(ctx context.Context, r *models.Report) error
	Get(ctx context.Context, id string) (*models.Report, error)
	Update(ctx context.Context, r *models.Report) error
	List(ctx context.Context, f ReportFilter) ([]models.Report, int64, error)
	CountByStatus(ctx context.Context, status models.ReportStatus) (int64, error)
}

type FlagRepository interface {
	// Escalate creates the flag for the content or raises its severity,
	// bumps its report count and records reason.
	Escalate(ctx context.Context, contentID string, contentType models.TargetType, sev models.Severity, reason models.ReportReason, now time.Time) (*models.ContentFlag, error)
	// Delete is a no-op when no flag exists.
	Delete(ctx context.Context, contentID string, contentType models.TargetType) error
	// List orders flags by severity, then most recently updated.
	List(ctx context.Context, p Page) ([]models.ContentFlag, int64, error)
}

type ModerationRepository interface {
	CreateAction(ctx context.Context, a *models.ModerationAction) error
	// ListActions returns actions against a user, newest first.
	ListActions(ctx context.Context, targetUserID string) ([]models.ModerationAction, error)
	// ActiveBan returns the newest ban in force at now, or nil.
	ActiveBan(ctx context.Context, userID string, now time.Time) (*models.ModerationAction, error)
	// ExpireBans ends every ban of the user still in force at now.
	ExpireBans(ctx context.Context, userID string, now time.Time) (int64, error)
	CreateStrike(ctx context.Context, s *models.UserStrike) error
	ListStrikes(ctx context.Context, userID string) ([]models.UserStrike, error)
}

// NotificationKey identifies a notification for duplicate suppression.
type NotificationKey struct {
	UserID     string
	FromUserID string
	Type       models.NotificationType
	TargetID   string
}

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	Exists(ctx context.Context, key NotificationKey) (bool, error)
	// List returns a user's notifications newest first.
	List(ctx context.Context, userID string, unreadOnly bool, p Page) ([]models.Notification, int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, userID, id string) error
}

type ClaimFilter struct {
	Status       models.ApplicationStatus
	UserID       string
	RestaurantID string
	Page
}

type ClaimRepository interface {
	// Create fails with ErrDuplicate when the user already has a pending
	// claim on the restaurant.
	Create(ctx context.Context, c *models.RestaurantClaim) error
	Get(ctx context.Context, id string) (*models.RestaurantClaim, error)
	Update(ctx context.Context, c *models.RestaurantClaim) error
	List(ctx context.Context, f ClaimFilter) ([]models.RestaurantClaim, int64, error)
}

type ApplicationFilter struct {
	Status models.ApplicationStatus
	UserID string
	Page
}

type ApplicationRepository interface {
	// Create fails with ErrDuplicate when the user already has a pending
	// application.
	Create(ctx context.Context, a *models.InfluencerApplication) error
	Get(ctx context.Context, id string) (*models.InfluencerApplication, error)
	Update(ctx context.Context, a *models.InfluencerApplication) error
	List(ctx context.Context, f ApplicationFilter) ([]models.InfluencerApplication, int64, error)
}

type SessionRepository interface {
	Create(ctx context.Context, s *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Update(ctx context.Context, s *models.Session) error
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}
