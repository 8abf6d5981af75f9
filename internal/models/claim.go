package models

import (
	"strings"
	"time"

	"github.com/tastetrail/backend/internal/validation"
)

type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "PENDING"
	StatusApproved ApplicationStatus = "APPROVED"
	StatusRejected ApplicationStatus = "REJECTED"
)

type RestaurantClaim struct {
	ID            string            `json:"id" bson:"_id"`
	RestaurantID  string            `json:"restaurant_id" bson:"restaurant_id"`
	UserID        string            `json:"user_id" bson:"user_id"`
	Status        ApplicationStatus `json:"status" bson:"status"`
	IsDispute     bool              `json:"is_dispute" bson:"is_dispute"`
	BusinessEmail string            `json:"business_email" bson:"business_email"`
	Phone         string            `json:"phone,omitempty" bson:"phone,omitempty"`
	Proof         string            `json:"proof,omitempty" bson:"proof,omitempty"`
	Message       string            `json:"message,omitempty" bson:"message,omitempty"`
	ReviewedBy    string            `json:"reviewed_by,omitempty" bson:"reviewed_by,omitempty"`
	ReviewNote    string            `json:"review_note,omitempty" bson:"review_note,omitempty"`
	CreatedAt     time.Time         `json:"created_at" bson:"created_at"`
	ReviewedAt    *time.Time        `json:"reviewed_at,omitempty" bson:"reviewed_at,omitempty"`
}

type InfluencerApplication struct {
	ID            string            `json:"id" bson:"_id"`
	UserID        string            `json:"user_id" bson:"user_id"`
	Status        ApplicationStatus `json:"status" bson:"status"`
	Platforms     []string          `json:"platforms" bson:"platforms"`
	FollowerCount int               `json:"follower_count" bson:"follower_count"`
	PortfolioURL  string            `json:"portfolio_url,omitempty" bson:"portfolio_url,omitempty"`
	Message       string            `json:"message,omitempty" bson:"message,omitempty"`
	ReviewedBy    string            `json:"reviewed_by,omitempty" bson:"reviewed_by,omitempty"`
	ReviewNote    string            `json:"review_note,omitempty" bson:"review_note,omitempty"`
	CreatedAt     time.Time         `json:"created_at" bson:"created_at"`
	ReviewedAt    *time.Time        `json:"reviewed_at,omitempty" bson:"reviewed_at,omitempty"`
}

type CreateClaimRequest struct {
	BusinessEmail string `json:"business_email" validate:"required,email"`
	Phone         string `json:"phone" validate:"max=30"`
	Proof         string `json:"proof" validate:"max=2000"`
	Message       string `json:"message" validate:"max=2000"`
}

func (r *CreateClaimRequest) Validate() map[string]string {
	r.BusinessEmail = strings.ToLower(strings.TrimSpace(r.BusinessEmail))
	return validation.Struct(r)
}

type CreateApplicationRequest struct {
	Platforms     []string `json:"platforms" validate:"min=1,max=10,dive,notblank,max=80"`
	FollowerCount int      `json:"follower_count" validate:"gte=0"`
	PortfolioURL  string   `json:"portfolio_url" validate:"omitempty,url"`
	Message       string   `json:"message" validate:"max=2000"`
}

func (r *CreateApplicationRequest) Validate() map[string]string {
	return validation.Struct(r)
}

type DecisionRequest struct {
	Note string `json:"note" validate:"max=2000"`
}

func (r *DecisionRequest) Validate() map[string]string {
	return validation.Struct(r)
}

type Session struct {
	ID          string    `json:"id" bson:"_id"`
	UserID      string    `json:"user_id" bson:"user_id"`
	RefreshHash string    `json:"-" bson:"refresh_hash"`
	UserAgent   string    `json:"user_agent,omitempty" bson:"user_agent,omitempty"`
	IP          string    `json:"ip,omitempty" bson:"ip,omitempty"`
	ExpiresAt   time.Time `json:"expires_at" bson:"expires_at"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}
