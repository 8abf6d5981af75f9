package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tastetrail/backend/internal/models"
	"github.com/tastetrail/backend/internal/store"
)

type CommentService struct {
	store   store.Store
	notes   *NotificationService
	reviews *ReviewService
	now     func() time.Time
}

// List returns the review's comments as threads, oldest first. Replies are
// one level deep.
func (s *CommentService) List(ctx context.Context, viewer Actor, reviewID string) ([]models.CommentThread, error) {
	if _, err := s.reviews.visible(ctx, viewer, reviewID); err != nil {
		return nil, err
	}
	comments, err := s.store.Comments().ListByReview(ctx, reviewID, s.reviews.staff(viewer))
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(comments))
	for i := range comments {
		ids[i] = comments[i].UserID
	}
	authors, err := publicUsers(ctx, s.store.Users(), ids)
	if err != nil {
		return nil, err
	}

	threads := make([]models.CommentThread, 0, len(comments))
	index := make(map[string]int, len(comments))
	for _, c := range comments {
		if c.ParentID != "" {
			continue
		}
		index[c.ID] = len(threads)
		threads = append(threads, models.CommentThread{Comment: c, Author: authors[c.UserID]})
	}
	for _, c := range comments {
		if c.ParentID == "" {
			continue
		}
		i, ok := index[c.ParentID]
		if !ok {
			continue
		}
		threads[i].Replies = append(threads[i].Replies, models.CommentThread{Comment: c, Author: authors[c.UserID]})
	}
	return threads, nil
}

// Create adds a comment or a reply. The comment and its notifications are
// written together.
func (s *CommentService) Create(ctx context.Context, actor Actor, reviewID string, req *models.CreateCommentRequest) (*models.CommentThread, error) {
	if err := Validated(req.Validate()); err != nil {
		return nil, err
	}
	rv, err := s.reviews.visible(ctx, actor, reviewID)
	if err != nil {
		return nil, err
	}

	var parent *models.Comment
	if req.ParentID != "" {
		parent, err = s.store.Comments().Get(ctx, req.ParentID)
		if err != nil {
			return nil, notFoundAs(err, ErrCommentNotFound)
		}
		if parent.ReviewID != rv.ID {
			return nil, invalid("parent_id", "parent comment belongs to another review")
		}
		if parent.ParentID != "" {
			return nil, invalid("parent_id", "replies cannot be nested")
		}
		if parent.IsHidden {
			return nil, ErrCommentNotFound
		}
	}

	author, err := s.store.Users().Get(ctx, actor.ID)
	if err != nil {
		return nil, notFoundAs(err, ErrUserNotFound)
	}

	now := s.now()
	c := &models.Comment{
		ID:        uuid.NewString(),
		ReviewID:  rv.ID,
		UserID:    actor.ID,
		ParentID:  req.ParentID,
		Content:   req.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// The review author hears about every comment in the thread. A reply
	// also notifies the parent's author, once when both are the same user.
	inputs := []NotifyInput{{
		UserID:     rv.UserID,
		FromUserID: actor.ID,
		Type:       models.NotifyComment,
		Title:      "New comment",
		Message:    author.Username + " commented on your review",
		TargetID:   rv.ID,
		TargetType: string(models.TargetReview),
		Data:       map[string]interface{}{"comment_id": c.ID},
	}}
	if parent != nil {
		reply := NotifyInput{
			UserID:     parent.UserID,
			FromUserID: actor.ID,
			Type:       models.NotifyReply,
			Title:      "New reply",
			Message:    author.Username + " replied to your comment",
			TargetID:   rv.ID,
			TargetType: string(models.TargetReview),
			Data:       map[string]interface{}{"comment_id": c.ID, "parent_id": parent.ID},
		}
		if parent.UserID == rv.UserID {
			inputs[0] = reply
		} else {
			inputs = append(inputs, reply)
		}
	}

	var notes []*models.Notification
	err = s.store.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		notes = notes[:0]
		if err := tx.Comments().Create(ctx, c); err != nil {
			return err
		}
		for _, in := range inputs {
			note, err := s.notes.Prepare(ctx, tx, in)
			if err != nil {
				return err
			}
			notes = append(notes, note)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, note := range notes {
		s.notes.Deliver(ctx, note)
	}

	pu := author.Public()
	return &models.CommentThread{Comment: *c, Author: &pu}, nil
}

// Delete removes a comment with its replies. Allowed for the author and staff.
func (s *CommentService) Delete(ctx context.Context, actor Actor, id string) error {
	c, err := s.store.Comments().Get(ctx, id)
	if err != nil {
		return notFoundAs(err, ErrCommentNotFound)
	}
	if c.UserID != actor.ID && !actor.IsStaff() {
		return forbidden("only the author can delete this comment")
	}
	return notFoundAs(s.store.Comments().Delete(ctx, id), ErrCommentNotFound)
}
