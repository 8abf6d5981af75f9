package models

import (
	"strings"
	"time"

	"github.com/tastetrail/backend/internal/validation"
)

type Comment struct {
	ID        string    `json:"id" bson:"_id"`
	ReviewID  string    `json:"review_id" bson:"review_id"`
	UserID    string    `json:"user_id" bson:"user_id"`
	ParentID  string    `json:"parent_id,omitempty" bson:"parent_id,omitempty"`
	Content   string    `json:"content" bson:"content"`
	IsHidden  bool      `json:"is_hidden" bson:"is_hidden"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// CommentThread is a top-level comment with its direct replies.
type CommentThread struct {
	Comment
	Author  *PublicUser     `json:"author,omitempty"`
	Replies []CommentThread `json:"replies,omitempty"`
}

type Like struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"user_id" bson:"user_id"`
	ReviewID  string    `json:"review_id" bson:"review_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

type Follow struct {
	ID          string    `json:"id" bson:"_id"`
	FollowerID  string    `json:"follower_id" bson:"follower_id"`
	FollowingID string    `json:"following_id" bson:"following_id"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

type CreateCommentRequest struct {
	Content  string `json:"content" validate:"notblank,max=2000"`
	ParentID string `json:"parent_id,omitempty"`
}

func (r *CreateCommentRequest) Validate() map[string]string {
	r.Content = strings.TrimSpace(r.Content)
	r.ParentID = strings.TrimSpace(r.ParentID)
	return validation.Struct(r)
}
