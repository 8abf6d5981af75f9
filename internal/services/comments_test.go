package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tastetrail/backend/internal/models"
)

func TestCommentThreadsAndNotifications(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	author := env.user(t, "author", models.RoleUser)
	alice := env.user(t, "alice", models.RoleUser)
	bob := env.user(t, "bob", models.RoleUser)
	rv := env.review(t, author, env.restaurant(t, "Dumpling Den", ""), 5)

	top, err := env.svc.Comments.Create(ctx, actorOf(alice), rv.ID, &models.CreateCommentRequest{Content: "  Agreed, the soup dumplings are great.  "})
	if err != nil {
		t.Fatal(err)
	}
	if top.Content != "Agreed, the soup dumplings are great." || top.Author == nil || top.Author.ID != alice.ID {
		t.Fatalf("comment = %+v", top)
	}
	env.clock.Advance(time.Minute)
	reply, err := env.svc.Comments.Create(ctx, actorOf(bob), rv.ID, &models.CreateCommentRequest{Content: "Try the pork ones too.", ParentID: top.ID})
	if err != nil {
		t.Fatal(err)
	}
	env.clock.Advance(time.Minute)
	if _, err := env.svc.Comments.Create(ctx, actorOf(author), rv.ID, &models.CreateCommentRequest{Content: "Thanks both!"}); err != nil {
		t.Fatal(err)
	}

	threads, err := env.svc.Comments.List(ctx, Actor{}, rv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(threads) != 2 || threads[0].ID != top.ID || len(threads[0].Replies) != 1 || threads[0].Replies[0].ID != reply.ID {
		t.Fatalf("threads = %+v", threads)
	}
	if len(threads[1].Replies) != 0 {
		t.Fatal("second thread should have no replies")
	}

	if n := countType(env.notifications(t, author.ID), models.NotifyComment); n != 2 {
		t.Fatalf("review author got %d comment notifications, want 2", n)
	}
	if n := countType(env.notifications(t, alice.ID), models.NotifyReply); n != 1 {
		t.Fatalf("parent author got %d reply notifications, want 1", n)
	}
	// The author's own comment does not notify anyone.
	if n := len(env.notifications(t, bob.ID)); n != 0 {
		t.Fatalf("bob got %d notifications", n)
	}
}

func TestCommentParentRules(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	author := env.user(t, "author", models.RoleUser)
	other := env.user(t, "other", models.RoleUser)
	rv := env.review(t, author, env.restaurant(t, "Pizzeria", ""), 4)
	rv2 := env.review(t, other, env.restaurant(t, "Trattoria", ""), 4)

	top, err := env.svc.Comments.Create(ctx, actorOf(other), rv.ID, &models.CreateCommentRequest{Content: "Nice"})
	if err != nil {
		t.Fatal(err)
	}
	reply, err := env.svc.Comments.Create(ctx, actorOf(author), rv.ID, &models.CreateCommentRequest{Content: "Thanks", ParentID: top.ID})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		reviewID string
		req      models.CreateCommentRequest
		want     error
	}{
		{"reply to a reply", rv.ID, models.CreateCommentRequest{Content: "deeper", ParentID: reply.ID}, ErrValidation},
		{"parent on another review", rv2.ID, models.CreateCommentRequest{Content: "wrong place", ParentID: top.ID}, ErrValidation},
		{"unknown parent", rv.ID, models.CreateCommentRequest{Content: "hello", ParentID: "missing"}, ErrCommentNotFound},
		{"unknown review", "missing", models.CreateCommentRequest{Content: "hello"}, ErrReviewNotFound},
		{"blank content", rv.ID, models.CreateCommentRequest{Content: "   "}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := env.svc.Comments.Create(ctx, actorOf(other), tt.reviewID, &req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCommentDelete(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	author := env.user(t, "author", models.RoleUser)
	commenter := env.user(t, "commenter", models.RoleUser)
	stranger := env.user(t, "stranger", models.RoleUser)
	mod := env.user(t, "mod", models.RoleModerator)
	rv := env.review(t, author, env.restaurant(t, "Sushi Bar", ""), 5)

	top, _ := env.svc.Comments.Create(ctx, actorOf(commenter), rv.ID, &models.CreateCommentRequest{Content: "Which roll?"})
	if _, err := env.svc.Comments.Create(ctx, actorOf(author), rv.ID, &models.CreateCommentRequest{Content: "The dragon roll", ParentID: top.ID}); err != nil {
		t.Fatal(err)
	}
	other, _ := env.svc.Comments.Create(ctx, actorOf(commenter), rv.ID, &models.CreateCommentRequest{Content: "Going tonight"})

	if err := env.svc.Comments.Delete(ctx, actorOf(stranger), top.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger delete: %v", err)
	}
	if err := env.svc.Comments.Delete(ctx, actorOf(commenter), top.ID); err != nil {
		t.Fatal(err)
	}
	if err := env.svc.Comments.Delete(ctx, actorOf(mod), other.ID); err != nil {
		t.Fatalf("moderator delete: %v", err)
	}
	if err := env.svc.Comments.Delete(ctx, actorOf(mod), other.ID); !errors.Is(err, ErrCommentNotFound) {
		t.Fatalf("second delete: %v", err)
	}

	threads, _ := env.svc.Comments.List(ctx, Actor{}, rv.ID)
	if len(threads) != 0 {
		t.Fatalf("replies should go with their parent, got %+v", threads)
	}
}

func TestReplyToReviewAuthorNotifiesOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	author := env.user(t, "author", models.RoleUser)
	fan := env.user(t, "fan", models.RoleUser)
	rv := env.review(t, author, env.restaurant(t, "Noodle Bar", ""), 5)

	top, err := env.svc.Comments.Create(ctx, actorOf(author), rv.ID, &models.CreateCommentRequest{Content: "Edit: went back, still great."})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.Comments.Create(ctx, actorOf(fan), rv.ID, &models.CreateCommentRequest{Content: "Good to know", ParentID: top.ID}); err != nil {
		t.Fatal(err)
	}

	notes := env.notifications(t, author.ID)
	if len(notes) != 1 || notes[0].Type != models.NotifyReply {
		t.Fatalf("author notifications = %+v, want one reply", notes)
	}
}
