package models

import (
	"strings"
	"time"

	"github.com/tastetrail/backend/internal/validation"
)

type NotificationType string

const (
	NotifyLike                NotificationType = "like"
	NotifyComment             NotificationType = "comment"
	NotifyReply               NotificationType = "reply"
	NotifyFollow              NotificationType = "follow"
	NotifyOwnerResponse       NotificationType = "owner_response"
	NotifyReportCreated       NotificationType = "report_created"
	NotifyReportResolved      NotificationType = "report_resolved"
	NotifyModerationAction    NotificationType = "moderation_action"
	NotifyClaimApproved       NotificationType = "restaurant_claim_approved"
	NotifyClaimRejected       NotificationType = "restaurant_claim_rejected"
	NotifyApplicationApproved NotificationType = "influencer_application_approved"
	NotifyApplicationRejected NotificationType = "influencer_application_rejected"
	NotifySystemAnnouncement  NotificationType = "system_announcement"
)

type Notification struct {
	ID         string                 `json:"id" bson:"_id"`
	UserID     string                 `json:"user_id" bson:"user_id"`
	FromUserID string                 `json:"from_user_id,omitempty" bson:"from_user_id,omitempty"`
	Type       NotificationType       `json:"type" bson:"type"`
	Title      string                 `json:"title" bson:"title"`
	Message    string                 `json:"message" bson:"message"`
	TargetID   string                 `json:"target_id,omitempty" bson:"target_id,omitempty"`
	TargetType string                 `json:"target_type,omitempty" bson:"target_type,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty" bson:"data,omitempty"`
	Read       bool                   `json:"read" bson:"read"`
	CreatedAt  time.Time              `json:"created_at" bson:"created_at"`
}

type UnreadCount struct {
	Count int64 `json:"count"`
}

type AnnouncementRequest struct {
	Title   string `json:"title" validate:"notblank,max=200"`
	Message string `json:"message" validate:"notblank,max=5000"`
	Roles   []Role `json:"roles,omitempty" validate:"max=5,dive,oneof=USER INFLUENCER OWNER MODERATOR ADMIN"`
}

func (r *AnnouncementRequest) Validate() map[string]string {
	r.Title = strings.TrimSpace(r.Title)
	r.Message = strings.TrimSpace(r.Message)
	return validation.Struct(r)
}

type AnnouncementResult struct {
	Recipients int `json:"recipients"`
}
