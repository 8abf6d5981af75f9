package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tastetrail/backend/internal/authz"
	"github.com/tastetrail/backend/internal/logging"
	"github.com/tastetrail/backend/internal/media"
	"github.com/tastetrail/backend/internal/models"
	"github.com/tastetrail/backend/internal/ranking"
	"github.com/tastetrail/backend/internal/sentiment"
	"github.com/tastetrail/backend/internal/store"
)

const SortTop = "top"

type ReviewService struct {
	store          store.Store
	notes          *NotificationService
	analyzer       sentiment.Analyzer
	media          *media.Moderator
	effects        *Effects
	trending       *trendingCache
	enforcer       *authz.Enforcer
	policy         ranking.Policy
	candidateLimit int
	now            func() time.Time
}

func (s *ReviewService) Create(ctx context.Context, actor Actor, req *models.CreateReviewRequest) (*models.ReviewView, error) {
	if err := Validated(req.Validate()); err != nil {
		return nil, err
	}
	if _, err := s.store.Restaurants().Get(ctx, req.RestaurantID); err != nil {
		return nil, notFoundAs(err, ErrRestaurantNotFound)
	}
	images, err := s.screenImages(ctx, actor.ID, req.Images)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rv := &models.Review{
		ID:           uuid.NewString(),
		UserID:       actor.ID,
		RestaurantID: req.RestaurantID,
		Rating:       req.Rating,
		Content:      req.Content,
		VisitDate:    req.VisitDate,
		Images:       images,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Reviews().Create(ctx, rv); err != nil {
		return nil, duplicateAs(err, ErrAlreadyReviewed)
	}

	s.enrich(ctx, rv.ID, rv.Content)
	s.effects.Run(ctx, "invalidate_trending", s.trending.invalidate)

	views, err := s.decorate(ctx, actor.ID, []models.Review{*rv})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Get returns a review. Hidden reviews are visible only to their author,
// staff and the restaurant owner.
func (s *ReviewService) Get(ctx context.Context, viewer Actor, id string) (*models.ReviewView, error) {
	rv, err := s.store.Reviews().Get(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, ErrReviewNotFound)
	}
	if rv.IsHidden {
		ok, err := s.canSeeHidden(ctx, viewer, rv)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrReviewNotFound
		}
	}
	views, err := s.decorate(ctx, viewer.ID, []models.Review{*rv})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *ReviewService) Update(ctx context.Context, actor Actor, id string, req *models.UpdateReviewRequest) (*models.ReviewView, error) {
	if err := Validated(req.Validate()); err != nil {
		return nil, err
	}
	rv, err := s.store.Reviews().Get(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, ErrReviewNotFound)
	}
	if rv.UserID != actor.ID {
		return nil, forbidden("only the author can edit this review")
	}
	contentChanged := false
	if req.Rating != nil {
		rv.Rating = *req.Rating
	}
	if req.Content != nil {
		c := strings.TrimSpace(*req.Content)
		contentChanged = c != rv.Content
		rv.Content = c
	}
	if req.VisitDate != nil {
		rv.VisitDate = req.VisitDate
	}
	if req.Images != nil {
		images, err := s.screenImages(ctx, actor.ID, req.Images)
		if err != nil {
			return nil, err
		}
		rv.Images = images
	}
	rv.UpdatedAt = s.now()
	if err := s.store.Reviews().Update(ctx, rv); err != nil {
		return nil, err
	}
	if contentChanged {
		s.enrich(ctx, rv.ID, rv.Content)
	}
	views, err := s.decorate(ctx, actor.ID, []models.Review{*rv})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Delete removes a review with its likes and comments. Authors and staff
// may delete.
func (s *ReviewService) Delete(ctx context.Context, actor Actor, id string) error {
	rv, err := s.store.Reviews().Get(ctx, id)
	if err != nil {
		return notFoundAs(err, ErrReviewNotFound)
	}
	if rv.UserID != actor.ID && !actor.IsStaff() {
		return forbidden("only the author can delete this review")
	}
	err = s.store.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.Comments().DeleteByReview(ctx, id); err != nil {
			return err
		}
		if err := tx.Likes().DeleteByReview(ctx, id); err != nil {
			return err
		}
		return notFoundAs(tx.Reviews().Delete(ctx, id), ErrReviewNotFound)
	})
	if err != nil {
		return err
	}

	if s.media != nil && len(rv.Images) > 0 {
		s.effects.Go(ctx, "image_cleanup", func(ctx context.Context) error {
			s.media.Remove(ctx, rv.Images)
			return nil
		})
	}
	s.effects.Run(ctx, "invalidate_trending", s.trending.invalidate)
	return nil
}

// ListByRestaurant lists a restaurant's reviews. Staff and the owner also
// see hidden ones. Sort "top" orders by likes.
func (s *ReviewService) ListByRestaurant(ctx context.Context, viewer Actor, restaurantID, sortBy string, p PageRequest) (models.Page[models.ReviewView], error) {
	r, err := s.store.Restaurants().Get(ctx, restaurantID)
	if err != nil {
		return models.Page[models.ReviewView]{}, notFoundAs(err, ErrRestaurantNotFound)
	}
	f := store.ReviewFilter{
		RestaurantID:  restaurantID,
		IncludeHidden: s.staff(viewer) || (r.OwnerID != "" && r.OwnerID == viewer.ID),
		Page:          p.store(),
	}
	if sortBy != SortTop {
		return s.listPage(ctx, viewer.ID, f, p)
	}

	f.Page = store.Page{}
	items, total, err := s.store.Reviews().List(ctx, f)
	if err != nil {
		return models.Page[models.ReviewView]{}, err
	}
	views, err := s.decorate(ctx, viewer.ID, items)
	if err != nil {
		return models.Page[models.ReviewView]{}, err
	}
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].IsPromoted != views[j].IsPromoted {
			return views[i].IsPromoted
		}
		return views[i].LikeCount > views[j].LikeCount
	})
	sp := p.store()
	if sp.Offset >= len(views) {
		views = nil
	} else if end := sp.Offset + sp.Limit; end < len(views) {
		views = views[sp.Offset:end]
	} else {
		views = views[sp.Offset:]
	}
	return pageOf(views, total, p), nil
}

// ListByUser lists a user's reviews. The author and staff see hidden ones.
func (s *ReviewService) ListByUser(ctx context.Context, viewer Actor, userID string, p PageRequest) (models.Page[models.ReviewView], error) {
	if _, err := s.store.Users().Get(ctx, userID); err != nil {
		return models.Page[models.ReviewView]{}, notFoundAs(err, ErrUserNotFound)
	}
	return s.listPage(ctx, viewer.ID, store.ReviewFilter{
		UserID:        userID,
		IncludeHidden: viewer.ID == userID || s.staff(viewer),
		Page:          p.store(),
	}, p)
}

// ListForOwner includes hidden reviews.
func (s *ReviewService) ListForOwner(ctx context.Context, viewerID, restaurantID string, p PageRequest) (models.Page[models.ReviewView], error) {
	return s.listPage(ctx, viewerID, store.ReviewFilter{
		RestaurantID:  restaurantID,
		IncludeHidden: true,
		Page:          p.store(),
	}, p)
}

// Feed lists visible reviews by users the actor follows.
func (s *ReviewService) Feed(ctx context.Context, actor Actor, p PageRequest) (models.Page[models.ReviewView], error) {
	ids, err := s.store.Follows().FollowingIDs(ctx, actor.ID)
	if err != nil {
		return models.Page[models.ReviewView]{}, err
	}
	if ids == nil {
		ids = []string{}
	}
	return s.listPage(ctx, actor.ID, store.ReviewFilter{UserIDs: ids, Page: p.store()}, p)
}

// Trending ranks recent visible reviews. The ranked page is cached
// without viewer-specific fields, which are filled in per request.
func (s *ReviewService) Trending(ctx context.Context, viewer Actor, p PageRequest) ([]models.ReviewView, error) {
	key := trendingKey("reviews", "all", p)
	var views []models.ReviewView
	if !s.trending.get(ctx, key, &views) {
		var err error
		views, err = s.rankTrending(ctx, p)
		if err != nil {
			return nil, err
		}
		s.trending.set(ctx, key, views)
	}

	if viewer.ID != "" && len(views) > 0 {
		ids := make([]string, len(views))
		for i := range views {
			ids[i] = views[i].ID
		}
		liked, err := s.store.Likes().LikedBy(ctx, viewer.ID, ids)
		if err != nil {
			return nil, err
		}
		for i := range views {
			views[i].IsLiked = liked[views[i].ID]
		}
	}
	return views, nil
}

func (s *ReviewService) rankTrending(ctx context.Context, p PageRequest) ([]models.ReviewView, error) {
	limit := s.candidateLimit
	if limit <= 0 {
		limit = 500
	}
	items, _, err := s.store.Reviews().List(ctx, store.ReviewFilter{Page: store.Page{Limit: limit}})
	if err != nil {
		return nil, err
	}
	views, err := s.decorate(ctx, "", items)
	if err != nil {
		return nil, err
	}
	now := s.now()
	ranked := ranking.Rank(views, func(v models.ReviewView) float64 {
		return s.policy.Score(ranking.Signals{
			Likes:     v.LikeCount,
			Comments:  v.CommentCount,
			Rating:    float64(v.Rating),
			CreatedAt: v.CreatedAt,
		}, now)
	})
	sp := p.store()
	page := ranking.Paginate(ranked, sp.Offset, sp.Limit)
	out := make([]models.ReviewView, len(page))
	for i, sc := range page {
		score := sc.Score
		out[i] = sc.Item
		out[i].Score = &score
	}
	return out, nil
}

func (s *ReviewService) Like(ctx context.Context, actor Actor, reviewID string) error {
	rv, err := s.visible(ctx, actor, reviewID)
	if err != nil {
		return err
	}
	like := &models.Like{
		ID:        uuid.NewString(),
		UserID:    actor.ID,
		ReviewID:  rv.ID,
		CreatedAt: s.now(),
	}
	if err := s.store.Likes().Create(ctx, like); err != nil {
		return duplicateAs(err, ErrAlreadyLiked)
	}
	s.effects.Run(ctx, "notify_like", func(ctx context.Context) error {
		liker, err := s.store.Users().Get(ctx, actor.ID)
		if err != nil {
			return err
		}
		_, err = s.notes.Notify(ctx, NotifyInput{
			UserID:       rv.UserID,
			FromUserID:   actor.ID,
			Type:         models.NotifyLike,
			Title:        "New like",
			Message:      liker.Username + " liked your review",
			TargetID:     rv.ID,
			TargetType:   string(models.TargetReview),
			SkipIfExists: true,
		})
		return err
	})
	return nil
}

func (s *ReviewService) Unlike(ctx context.Context, actor Actor, reviewID string) error {
	err := s.store.Likes().Delete(ctx, actor.ID, reviewID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrLikeNotFound
	}
	return err
}

// IsLiked reports whether the actor likes the review.
func (s *ReviewService) IsLiked(ctx context.Context, actor Actor, reviewID string) (bool, error) {
	if _, err := s.visible(ctx, actor, reviewID); err != nil {
		return false, err
	}
	liked, err := s.store.Likes().LikedBy(ctx, actor.ID, []string{reviewID})
	if err != nil {
		return false, err
	}
	return liked[reviewID], nil
}

// Respond sets the restaurant owner's public reply, replacing any earlier one.
func (s *ReviewService) Respond(ctx context.Context, actor Actor, reviewID string, req *models.OwnerResponseRequest) (*models.ReviewView, error) {
	if err := Validated(req.Validate()); err != nil {
		return nil, err
	}
	rv, err := s.store.Reviews().Get(ctx, reviewID)
	if err != nil {
		return nil, notFoundAs(err, ErrReviewNotFound)
	}
	r, err := s.store.Restaurants().Get(ctx, rv.RestaurantID)
	if err != nil {
		return nil, notFoundAs(err, ErrRestaurantNotFound)
	}
	if r.OwnerID == "" || r.OwnerID != actor.ID {
		return nil, forbidden("only the restaurant owner can respond")
	}
	now := s.now()
	rv.OwnerResponse = &models.OwnerResponse{Content: req.Content, OwnerID: actor.ID, CreatedAt: now}
	rv.UpdatedAt = now
	if err := s.store.Reviews().Update(ctx, rv); err != nil {
		return nil, err
	}

	s.effects.Run(ctx, "notify_owner_response", func(ctx context.Context) error {
		_, err := s.notes.Notify(ctx, NotifyInput{
			UserID:     rv.UserID,
			FromUserID: actor.ID,
			Type:       models.NotifyOwnerResponse,
			Title:      "The owner responded",
			Message:    fmt.Sprintf("%s responded to your review", r.Name),
			TargetID:   rv.ID,
			TargetType: string(models.TargetReview),
			Data:       map[string]interface{}{"restaurant_id": r.ID},
		})
		return err
	})
	views, err := s.decorate(ctx, actor.ID, []models.Review{*rv})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Promote pins or unpins a review. Allowed for the restaurant owner and
// administrators.
func (s *ReviewService) Promote(ctx context.Context, actor Actor, reviewID string, promoted bool) (*models.ReviewView, error) {
	rv, err := s.store.Reviews().Get(ctx, reviewID)
	if err != nil {
		return nil, notFoundAs(err, ErrReviewNotFound)
	}
	r, err := s.store.Restaurants().Get(ctx, rv.RestaurantID)
	if err != nil {
		return nil, notFoundAs(err, ErrRestaurantNotFound)
	}
	isOwner := r.OwnerID != "" && r.OwnerID == actor.ID
	if !isOwner && !s.enforcer.Can(string(actor.Role), authz.ObjRestaurants, authz.ActWrite) {
		return nil, forbidden("only the restaurant owner can promote reviews")
	}
	rv.IsPromoted = promoted
	rv.UpdatedAt = s.now()
	if err := s.store.Reviews().Update(ctx, rv); err != nil {
		return nil, err
	}
	views, err := s.decorate(ctx, actor.ID, []models.Review{*rv})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// visible loads a review the actor is allowed to interact with.
func (s *ReviewService) visible(ctx context.Context, actor Actor, id string) (*models.Review, error) {
	rv, err := s.store.Reviews().Get(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, ErrReviewNotFound)
	}
	if rv.IsHidden {
		ok, err := s.canSeeHidden(ctx, actor, rv)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrReviewNotFound
		}
	}
	return rv, nil
}

func (s *ReviewService) staff(a Actor) bool {
	return s.enforcer.Can(string(a.Role), authz.ObjHiddenContent, authz.ActRead)
}

func (s *ReviewService) canSeeHidden(ctx context.Context, viewer Actor, rv *models.Review) (bool, error) {
	if viewer.ID == "" {
		return false, nil
	}
	if viewer.ID == rv.UserID || s.staff(viewer) {
		return true, nil
	}
	r, err := s.store.Restaurants().Get(ctx, rv.RestaurantID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return r.OwnerID != "" && r.OwnerID == viewer.ID, nil
}

func (s *ReviewService) screenImages(ctx context.Context, userID string, images []string) ([]string, error) {
	if len(images) == 0 || !s.media.Enabled() {
		return images, nil
	}
	out, err := s.media.ReviewAll(ctx, images, userID)
	if errors.Is(err, media.ErrImageMissing) {
		return nil, invalid("images", "an uploaded image could not be found")
	}
	if err != nil && !errors.Is(err, media.ErrImageRejected) {
		return nil, fmt.Errorf("image moderation: %w", err)
	}
	return out, err
}

// enrich labels the review in the background. Failure leaves it unlabelled.
func (s *ReviewService) enrich(ctx context.Context, reviewID, content string) {
	if s.analyzer == nil {
		return
	}
	s.effects.Go(ctx, "sentiment", func(ctx context.Context) error {
		res, err := s.analyzer.Analyze(ctx, content)
		if err != nil {
			return err
		}
		rv, err := s.store.Reviews().Get(ctx, reviewID)
		if err != nil {
			return err
		}
		if rv.Content != content {
			return nil
		}
		rv.Sentiment = res.Sentiment
		rv.Tags = res.Tags
		logging.Ctx(ctx).Debug().Str("review_id", reviewID).Str("sentiment", res.Sentiment).Msg("review labelled")
		return s.store.Reviews().Update(ctx, rv)
	})
}

func (s *ReviewService) listPage(ctx context.Context, viewerID string, f store.ReviewFilter, p PageRequest) (models.Page[models.ReviewView], error) {
	items, total, err := s.store.Reviews().List(ctx, f)
	if err != nil {
		return models.Page[models.ReviewView]{}, err
	}
	views, err := s.decorate(ctx, viewerID, items)
	if err != nil {
		return models.Page[models.ReviewView]{}, err
	}
	return pageOf(views, total, p), nil
}

// decorate attaches authors, counts and the viewer's like state.
func (s *ReviewService) decorate(ctx context.Context, viewerID string, items []models.Review) ([]models.ReviewView, error) {
	out := make([]models.ReviewView, len(items))
	if len(items) == 0 {
		return out, nil
	}
	ids := make([]string, len(items))
	authorIDs := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
		authorIDs[i] = items[i].UserID
	}
	authors, err := publicUsers(ctx, s.store.Users(), authorIDs)
	if err != nil {
		return nil, err
	}
	likes, err := s.store.Likes().CountByReviews(ctx, ids)
	if err != nil {
		return nil, err
	}
	comments, err := s.store.Comments().CountByReviews(ctx, ids)
	if err != nil {
		return nil, err
	}
	liked := map[string]bool{}
	if viewerID != "" {
		if liked, err = s.store.Likes().LikedBy(ctx, viewerID, ids); err != nil {
			return nil, err
		}
	}
	for i := range items {
		out[i] = models.ReviewView{
			Review:       items[i],
			Author:       authors[items[i].UserID],
			LikeCount:    likes[items[i].ID],
			CommentCount: comments[items[i].ID],
			IsLiked:      liked[items[i].ID],
		}
	}
	return out, nil
}
