package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tastetrail/backend/internal/models"
	"github.com/tastetrail/backend/internal/store"
)

type UserService struct {
	store   store.Store
	notes   *NotificationService
	effects *Effects
	now     func() time.Time
}

// Profile returns a public profile as seen by viewerID (may be empty).
func (s *UserService) Profile(ctx context.Context, viewerID, userID string) (*models.UserProfile, error) {
	u, err := s.store.Users().Get(ctx, userID)
	if err != nil {
		return nil, notFoundAs(err, ErrUserNotFound)
	}
	followers, following, err := s.store.Follows().Counts(ctx, userID)
	if err != nil {
		return nil, err
	}
	reviews, err := s.store.Reviews().Count(ctx, store.ReviewFilter{UserID: userID})
	if err != nil {
		return nil, err
	}
	isFollowing := false
	if viewerID != "" && viewerID != userID {
		if isFollowing, err = s.store.Follows().Exists(ctx, viewerID, userID); err != nil {
			return nil, err
		}
	}
	return &models.UserProfile{
		PublicUser:     u.Public(),
		Bio:            u.Bio,
		FollowerCount:  followers,
		FollowingCount: following,
		ReviewCount:    reviews,
		IsFollowing:    isFollowing,
		CreatedAt:      u.CreatedAt,
	}, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, req *models.UpdateProfileRequest) (*models.User, error) {
	if err := Validated(req.Validate()); err != nil {
		return nil, err
	}
	u, err := s.store.Users().Get(ctx, userID)
	if err != nil {
		return nil, notFoundAs(err, ErrUserNotFound)
	}
	if req.Name != nil {
		u.Name = strings.TrimSpace(*req.Name)
	}
	if req.Bio != nil {
		u.Bio = strings.TrimSpace(*req.Bio)
	}
	if req.AvatarURL != nil {
		u.AvatarURL = strings.TrimSpace(*req.AvatarURL)
	}
	if req.Preferences != nil {
		u.Preferences = *req.Preferences
	}
	u.UpdatedAt = s.now()
	if err := s.store.Users().Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) Follow(ctx context.Context, actor Actor, targetID string) (*models.Follow, error) {
	if targetID == actor.ID {
		return nil, invalid("user", "you cannot follow yourself")
	}
	target, err := s.store.Users().Get(ctx, targetID)
	if err != nil {
		return nil, notFoundAs(err, ErrUserNotFound)
	}
	f := &models.Follow{
		ID:          uuid.NewString(),
		FollowerID:  actor.ID,
		FollowingID: target.ID,
		CreatedAt:   s.now(),
	}
	if err := s.store.Follows().Create(ctx, f); err != nil {
		return nil, duplicateAs(err, ErrAlreadyFollowing)
	}

	s.effects.Run(ctx, "notify_follow", func(ctx context.Context) error {
		follower, err := s.store.Users().Get(ctx, actor.ID)
		if err != nil {
			return err
		}
		_, err = s.notes.Notify(ctx, NotifyInput{
			UserID:       target.ID,
			FromUserID:   actor.ID,
			Type:         models.NotifyFollow,
			Title:        "New follower",
			Message:      follower.Username + " started following you",
			TargetID:     actor.ID,
			TargetType:   string(models.TargetUser),
			SkipIfExists: true,
		})
		return err
	})
	return f, nil
}

func (s *UserService) Unfollow(ctx context.Context, actor Actor, targetID string) error {
	err := s.store.Follows().Delete(ctx, actor.ID, targetID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrFollowNotFound
	}
	return err
}

func (s *UserService) Followers(ctx context.Context, userID string, p PageRequest) (models.Page[models.PublicUser], error) {
	if _, err := s.store.Users().Get(ctx, userID); err != nil {
		return models.Page[models.PublicUser]{}, notFoundAs(err, ErrUserNotFound)
	}
	follows, total, err := s.store.Follows().ListFollowers(ctx, userID, p.store())
	if err != nil {
		return models.Page[models.PublicUser]{}, err
	}
	ids := make([]string, len(follows))
	for i, f := range follows {
		ids[i] = f.FollowerID
	}
	return s.usersPage(ctx, ids, total, p)
}

func (s *UserService) Following(ctx context.Context, userID string, p PageRequest) (models.Page[models.PublicUser], error) {
	if _, err := s.store.Users().Get(ctx, userID); err != nil {
		return models.Page[models.PublicUser]{}, notFoundAs(err, ErrUserNotFound)
	}
	follows, total, err := s.store.Follows().ListFollowing(ctx, userID, p.store())
	if err != nil {
		return models.Page[models.PublicUser]{}, err
	}
	ids := make([]string, len(follows))
	for i, f := range follows {
		ids[i] = f.FollowingID
	}
	return s.usersPage(ctx, ids, total, p)
}

func (s *UserService) usersPage(ctx context.Context, ids []string, total int64, p PageRequest) (models.Page[models.PublicUser], error) {
	byID, err := publicUsers(ctx, s.store.Users(), ids)
	if err != nil {
		return models.Page[models.PublicUser]{}, err
	}
	out := make([]models.PublicUser, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, *u)
		}
	}
	return pageOf(out, total, p), nil
}
