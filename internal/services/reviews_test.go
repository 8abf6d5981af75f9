package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tastetrail/backend/internal/models"
	"github.com/tastetrail/backend/internal/sentiment"
)

type stubAnalyzer struct {
	result *sentiment.Result
	err    error
}

func (s stubAnalyzer) Analyze(context.Context, string) (*sentiment.Result, error) {
	return s.result, s.err
}

func TestReviewOnePerRestaurant(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.user(t, "eater", models.RoleUser)
	r := env.restaurant(t, "Pho House", "")
	env.review(t, u, r, 5)

	_, err := env.svc.Reviews.Create(ctx, actorOf(u), &models.CreateReviewRequest{
		RestaurantID: r.ID, Rating: 1, Content: "Changed my mind about this place.",
	})
	if !errors.Is(err, ErrAlreadyReviewed) || !errors.Is(err, ErrConflict) {
		t.Fatalf("second review: got %v", err)
	}
	_, err = env.svc.Reviews.Create(ctx, actorOf(u), &models.CreateReviewRequest{
		RestaurantID: "missing", Rating: 3, Content: "Somewhere that does not exist.",
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown restaurant: got %v", err)
	}
	_, err = env.svc.Reviews.Create(ctx, actorOf(u), &models.CreateReviewRequest{RestaurantID: r.ID, Rating: 9, Content: "short"})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Fields["rating"] == "" || verr.Fields["content"] == "" {
		t.Fatalf("invalid review: got %v", err)
	}
}

func TestReviewSentimentEnrichment(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.svc.Reviews.analyzer = stubAnalyzer{result: &sentiment.Result{Sentiment: sentiment.Positive, Tags: []string{"service"}}}
	u := env.user(t, "eater", models.RoleUser)
	rv := env.review(t, u, env.restaurant(t, "Diner", ""), 5)
	env.svc.Effects.Wait()

	stored, _ := env.store.Reviews().Get(ctx, rv.ID)
	if stored.Sentiment != sentiment.Positive || len(stored.Tags) != 1 {
		t.Fatalf("review not labelled: %+v", stored)
	}

	env.svc.Reviews.analyzer = stubAnalyzer{err: errors.New("model down")}
	rv2 := env.review(t, env.user(t, "second", models.RoleUser), env.restaurant(t, "Bistro", ""), 4)
	env.svc.Effects.Wait()
	stored, _ = env.store.Reviews().Get(ctx, rv2.ID)
	if stored.Sentiment != "" {
		t.Fatal("failed analysis must leave the review unlabelled")
	}
}

func TestHiddenReviewVisibility(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	author := env.user(t, "author", models.RoleUser)
	owner := env.user(t, "owner", models.RoleOwner)
	stranger := env.user(t, "stranger", models.RoleUser)
	mod := env.user(t, "mod", models.RoleModerator)
	r := env.restaurant(t, "Owned Place", owner.ID)
	rv := env.review(t, author, r, 1)

	stored, _ := env.store.Reviews().Get(ctx, rv.ID)
	stored.IsHidden = true
	_ = env.store.Reviews().Update(ctx, stored)

	// Authors see their hidden reviews directly and on their profile, but
	// the restaurant listing only includes them for staff and the owner.
	tests := []struct {
		name    string
		viewer  Actor
		visible bool
		listed  bool
	}{
		{"anonymous", Actor{}, false, false},
		{"stranger", actorOf(stranger), false, false},
		{"author", actorOf(author), true, false},
		{"restaurant owner", actorOf(owner), true, true},
		{"moderator", actorOf(mod), true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Reviews.Get(ctx, tt.viewer, rv.ID)
			if tt.visible && err != nil {
				t.Fatalf("should see hidden review: %v", err)
			}
			if !tt.visible && !errors.Is(err, ErrReviewNotFound) {
				t.Fatalf("should not see hidden review: %v", err)
			}

			page, err := env.svc.Reviews.ListByRestaurant(ctx, tt.viewer, r.ID, "", PageRequest{})
			if err != nil {
				t.Fatal(err)
			}
			if listed := page.Total == 1; listed != tt.listed {
				t.Fatalf("listing total = %d", page.Total)
			}
		})
	}

	mine, err := env.svc.Reviews.ListByUser(ctx, actorOf(author), author.ID, PageRequest{})
	if err != nil || mine.Total != 1 {
		t.Fatalf("author's own listing: %+v, %v", mine, err)
	}
	theirs, _ := env.svc.Reviews.ListByUser(ctx, actorOf(stranger), author.ID, PageRequest{})
	if theirs.Total != 0 {
		t.Fatal("stranger should not see hidden reviews on a profile")
	}
}

func TestLikeNotifiesOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	author := env.user(t, "author", models.RoleUser)
	fan := env.user(t, "fan", models.RoleUser)
	rv := env.review(t, author, env.restaurant(t, "Bakery", ""), 5)

	if err := env.svc.Reviews.Like(ctx, actorOf(fan), rv.ID); err != nil {
		t.Fatal(err)
	}
	if err := env.svc.Reviews.Like(ctx, actorOf(fan), rv.ID); !errors.Is(err, ErrAlreadyLiked) {
		t.Fatalf("repeat like: %v", err)
	}
	if err := env.svc.Reviews.Unlike(ctx, actorOf(fan), rv.ID); err != nil {
		t.Fatal(err)
	}
	if err := env.svc.Reviews.Unlike(ctx, actorOf(fan), rv.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unlike when absent: %v", err)
	}
	if err := env.svc.Reviews.Like(ctx, actorOf(fan), rv.ID); err != nil {
		t.Fatal(err)
	}
	if err := env.svc.Reviews.Like(ctx, actorOf(author), rv.ID); err != nil {
		t.Fatal(err)
	}

	if n := countType(env.notifications(t, author.ID), models.NotifyLike); n != 1 {
		t.Fatalf("author got %d like notifications, want 1", n)
	}
	types := env.bus.types(author.ID)
	if len(types) != 2 || types[0] != "notification" || types[1] != "unread_count" {
		t.Fatalf("published events = %v", types)
	}

	view, err := env.svc.Reviews.Get(ctx, actorOf(fan), rv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if view.LikeCount != 2 || !view.IsLiked {
		t.Fatalf("view = like_count %d, is_liked %v", view.LikeCount, view.IsLiked)
	}
}

func TestTrendingReviewsCacheAndInvalidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.user(t, "alpha", models.RoleUser)
	b := env.user(t, "bravo", models.RoleUser)
	fan := env.user(t, "fan", models.RoleUser)

	liked := env.review(t, a, env.restaurant(t, "Old Spot", ""), 4)
	plain := env.review(t, b, env.restaurant(t, "New Spot", ""), 4)
	if err := env.svc.Reviews.Like(ctx, actorOf(fan), liked.ID); err != nil {
		t.Fatal(err)
	}

	first, err := env.svc.Reviews.Trending(ctx, actorOf(fan), PageRequest{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 2 || first[0].ID != liked.ID || !first[0].IsLiked || first[0].Score == nil {
		t.Fatalf("trending = %+v", first)
	}

	anon, _ := env.svc.Reviews.Trending(ctx, Actor{}, PageRequest{Limit: 10})
	if anon[0].IsLiked {
		t.Fatal("cached trending page leaked another viewer's like state")
	}

	if err := env.svc.Reviews.Delete(ctx, actorOf(a), liked.ID); err != nil {
		t.Fatal(err)
	}
	after, _ := env.svc.Reviews.Trending(ctx, Actor{}, PageRequest{Limit: 10})
	if len(after) != 1 || after[0].ID != plain.ID {
		t.Fatalf("trending after delete = %+v", after)
	}
}

func TestOwnerResponseAndPromotion(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.user(t, "owner", models.RoleOwner)
	author := env.user(t, "author", models.RoleUser)
	admin := env.user(t, "admin", models.RoleAdmin)
	r := env.restaurant(t, "Ramen Ya", owner.ID)
	rv := env.review(t, author, r, 4)

	if _, err := env.svc.Reviews.Respond(ctx, actorOf(author), rv.ID, &models.OwnerResponseRequest{Content: "thanks"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("author responding: %v", err)
	}
	view, err := env.svc.Reviews.Respond(ctx, actorOf(owner), rv.ID, &models.OwnerResponseRequest{Content: "Thanks for visiting!"})
	if err != nil {
		t.Fatal(err)
	}
	if view.OwnerResponse == nil || view.OwnerResponse.OwnerID != owner.ID {
		t.Fatalf("owner response = %+v", view.OwnerResponse)
	}
	if _, err := env.svc.Reviews.Respond(ctx, actorOf(owner), rv.ID, &models.OwnerResponseRequest{Content: "Updated reply"}); err != nil {
		t.Fatal(err)
	}
	stored, _ := env.store.Reviews().Get(ctx, rv.ID)
	if stored.OwnerResponse.Content != "Updated reply" {
		t.Fatal("response should be replaced")
	}
	if n := countType(env.notifications(t, author.ID), models.NotifyOwnerResponse); n != 2 {
		t.Fatalf("owner_response notifications = %d", n)
	}

	if _, err := env.svc.Reviews.Promote(ctx, actorOf(author), rv.ID, true); !errors.Is(err, ErrForbidden) {
		t.Fatalf("author promoting: %v", err)
	}
	if _, err := env.svc.Reviews.Promote(ctx, actorOf(admin), rv.ID, true); err != nil {
		t.Fatalf("admin promoting: %v", err)
	}
	top, _ := env.svc.Reviews.ListByRestaurant(ctx, Actor{}, r.ID, SortTop, PageRequest{})
	if len(top.Items) != 1 || !top.Items[0].IsPromoted {
		t.Fatalf("top listing = %+v", top.Items)
	}
}

func TestDeleteReviewRemovesThread(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	author := env.user(t, "author", models.RoleUser)
	other := env.user(t, "other", models.RoleUser)
	mod := env.user(t, "mod", models.RoleModerator)
	rv := env.review(t, author, env.restaurant(t, "Deli", ""), 3)

	if _, err := env.svc.Comments.Create(ctx, actorOf(other), rv.ID, &models.CreateCommentRequest{Content: "Agreed"}); err != nil {
		t.Fatal(err)
	}
	if err := env.svc.Reviews.Delete(ctx, actorOf(other), rv.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger deleting: %v", err)
	}
	if err := env.svc.Reviews.Delete(ctx, actorOf(mod), rv.ID); err != nil {
		t.Fatal(err)
	}
	counts, _ := env.store.Comments().CountByReviews(ctx, []string{rv.ID})
	if counts[rv.ID] != 0 {
		t.Fatal("comments should be deleted with the review")
	}
	if _, err := env.svc.Reviews.Get(ctx, actorOf(author), rv.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted review: %v", err)
	}
}

func TestFeedShowsFollowedAuthors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	reader := env.user(t, "reader", models.RoleUser)
	followed := env.user(t, "followed", models.RoleUser)
	ignored := env.user(t, "ignored", models.RoleUser)
	env.review(t, followed, env.restaurant(t, "A", ""), 5)
	env.review(t, ignored, env.restaurant(t, "B", ""), 5)

	empty, err := env.svc.Reviews.Feed(ctx, actorOf(reader), PageRequest{})
	if err != nil || empty.Total != 0 {
		t.Fatalf("feed before following: %+v, %v", empty, err)
	}
	if _, err := env.svc.Users.Follow(ctx, actorOf(reader), followed.ID); err != nil {
		t.Fatal(err)
	}
	feed, _ := env.svc.Reviews.Feed(ctx, actorOf(reader), PageRequest{})
	if feed.Total != 1 || feed.Items[0].UserID != followed.ID {
		t.Fatalf("feed = %+v", feed.Items)
	}
}
