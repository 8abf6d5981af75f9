package models

import (
	"strings"
	"time"

	"github.com/tastetrail/backend/internal/validation"
)

type OwnerResponse struct {
	Content   string    `json:"content" bson:"content"`
	OwnerID   string    `json:"owner_id" bson:"owner_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

type Review struct {
	ID            string         `json:"id" bson:"_id"`
	UserID        string         `json:"user_id" bson:"user_id"`
	RestaurantID  string         `json:"restaurant_id" bson:"restaurant_id"`
	Rating        int            `json:"rating" bson:"rating"`
	Content       string         `json:"content" bson:"content"`
	VisitDate     *time.Time     `json:"visit_date,omitempty" bson:"visit_date,omitempty"`
	Images        []string       `json:"images,omitempty" bson:"images,omitempty"`
	IsHidden      bool           `json:"is_hidden" bson:"is_hidden"`
	IsPromoted    bool           `json:"is_promoted" bson:"is_promoted"`
	Sentiment     string         `json:"sentiment,omitempty" bson:"sentiment,omitempty"`
	Tags          []string       `json:"tags,omitempty" bson:"tags,omitempty"`
	OwnerResponse *OwnerResponse `json:"owner_response,omitempty" bson:"owner_response,omitempty"`
	CreatedAt     time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" bson:"updated_at"`
}

// ReviewView is a review decorated for a particular viewer.
type ReviewView struct {
	Review
	Author       *PublicUser `json:"author,omitempty"`
	LikeCount    int64       `json:"like_count"`
	CommentCount int64       `json:"comment_count"`
	IsLiked      bool        `json:"is_liked"`
	Score        *float64    `json:"score,omitempty"`
}

type CreateReviewRequest struct {
	RestaurantID string     `json:"restaurant_id" validate:"required"`
	Rating       int        `json:"rating" validate:"gte=1,lte=5"`
	Content      string     `json:"content" validate:"notblank,min=10,max=5000"`
	VisitDate    *time.Time `json:"visit_date,omitempty"`
	Images       []string   `json:"images,omitempty" validate:"max=10,dive,notblank"`
}

type UpdateReviewRequest struct {
	Rating    *int       `json:"rating,omitempty" validate:"omitempty,gte=1,lte=5"`
	Content   *string    `json:"content,omitempty" validate:"omitempty,notblank,min=10,max=5000"`
	VisitDate *time.Time `json:"visit_date,omitempty"`
	Images    []string   `json:"images,omitempty" validate:"omitempty,max=10,dive,notblank"`
}

type OwnerResponseRequest struct {
	Content string `json:"content" validate:"notblank,max=2000"`
}

type PromoteReviewRequest struct {
	Promoted bool `json:"promoted"`
}

func (r *CreateReviewRequest) Validate() map[string]string {
	r.Content = strings.TrimSpace(r.Content)
	errs := validation.Struct(r)
	if r.VisitDate != nil && r.VisitDate.After(time.Now().Add(24*time.Hour)) {
		errs = validation.Merge(errs, map[string]string{"visit_date": "visit_date cannot be in the future"})
	}
	return errs
}

func (r *UpdateReviewRequest) Validate() map[string]string {
	errs := validation.Struct(r)
	if r.VisitDate != nil && r.VisitDate.After(time.Now().Add(24*time.Hour)) {
		errs = validation.Merge(errs, map[string]string{"visit_date": "visit_date cannot be in the future"})
	}
	return errs
}

func (r *OwnerResponseRequest) Validate() map[string]string {
	r.Content = strings.TrimSpace(r.Content)
	return validation.Struct(r)
}
