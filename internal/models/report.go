package models

import (
	"strings"
	"time"

	"github.com/tastetrail/backend/internal/validation"
)

type TargetType string

const (
	TargetReview     TargetType = "REVIEW"
	TargetRestaurant TargetType = "RESTAURANT"
	TargetUser       TargetType = "USER"
	TargetComment    TargetType = "COMMENT"
)

type ReportReason string

const (
	ReasonSpam           ReportReason = "SPAM"
	ReasonInappropriate  ReportReason = "INAPPROPRIATE"
	ReasonHarassment     ReportReason = "HARASSMENT"
	ReasonHateSpeech     ReportReason = "HATE_SPEECH"
	ReasonViolence       ReportReason = "VIOLENCE"
	ReasonMisinformation ReportReason = "MISINFORMATION"
	ReasonFakeReview     ReportReason = "FAKE_REVIEW"
	ReasonOther          ReportReason = "OTHER"
)

// ParseReason accepts either the enum value or a display form like
// "Hate speech".
func ParseReason(s string) ReportReason {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	return ReportReason(norm)
}

func (r ReportReason) Valid() bool {
	switch r {
	case ReasonSpam, ReasonInappropriate, ReasonHarassment, ReasonHateSpeech,
		ReasonViolence, ReasonMisinformation, ReasonFakeReview, ReasonOther:
		return true
	}
	return false
}

type ReportStatus string

const (
	ReportPending       ReportStatus = "PENDING"
	ReportInvestigating ReportStatus = "INVESTIGATING"
	ReportResolved      ReportStatus = "RESOLVED"
	ReportRejected      ReportStatus = "REJECTED"
)

// Open reports may still be resolved or rejected.
func (s ReportStatus) Open() bool {
	return s == ReportPending || s == ReportInvestigating
}

type Report struct {
	ID          string       `json:"id" bson:"_id"`
	ReporterID  string       `json:"reporter_id" bson:"reporter_id"`
	TargetID    string       `json:"target_id" bson:"target_id"`
	TargetType  TargetType   `json:"target_type" bson:"target_type"`
	Reason      ReportReason `json:"reason" bson:"reason"`
	Description string       `json:"description,omitempty" bson:"description,omitempty"`
	Status      ReportStatus `json:"status" bson:"status"`
	ResolvedBy  string       `json:"resolved_by,omitempty" bson:"resolved_by,omitempty"`
	Resolution  string       `json:"resolution,omitempty" bson:"resolution,omitempty"`
	ActionID    string       `json:"action_id,omitempty" bson:"action_id,omitempty"`
	CreatedAt   time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" bson:"updated_at"`
	ResolvedAt  *time.Time   `json:"resolved_at,omitempty" bson:"resolved_at,omitempty"`
}

type CreateReportRequest struct {
	TargetID    string     `json:"target_id" validate:"required"`
	TargetType  TargetType `json:"target_type" validate:"required,oneof=REVIEW RESTAURANT USER COMMENT"`
	Reason      string     `json:"reason" validate:"required"`
	Description string     `json:"description" validate:"max=2000"`
}

func (r *CreateReportRequest) Validate() map[string]string {
	r.TargetType = TargetType(strings.ToUpper(strings.TrimSpace(string(r.TargetType))))
	errs := validation.Struct(r)
	if r.Reason != "" && !ParseReason(r.Reason).Valid() {
		errs = validation.Merge(errs, map[string]string{"reason": "reason is not a recognised report reason"})
	}
	return errs
}

type ResolveReportRequest struct {
	Resolution string `json:"resolution" validate:"max=2000"`
}

func (r *ResolveReportRequest) Validate() map[string]string {
	return validation.Struct(r)
}

type ActionKind string

const (
	ActionPermanentBan   ActionKind = "PERMANENT_BAN"
	ActionTemporaryBan   ActionKind = "TEMPORARY_BAN"
	ActionWarning        ActionKind = "WARNING"
	ActionContentRemoval ActionKind = "CONTENT_REMOVAL"
	ActionReinstatement  ActionKind = "REINSTATEMENT"
	ActionRoleChange     ActionKind = "ROLE_CHANGE"
	ActionVerification   ActionKind = "VERIFICATION"
)

func (k ActionKind) IsBan() bool {
	return k == ActionPermanentBan || k == ActionTemporaryBan
}

type ModerationAction struct {
	ID           string     `json:"id" bson:"_id"`
	ModeratorID  string     `json:"moderator_id" bson:"moderator_id"`
	TargetUserID string     `json:"target_user_id,omitempty" bson:"target_user_id,omitempty"`
	TargetID     string     `json:"target_id,omitempty" bson:"target_id,omitempty"`
	TargetType   TargetType `json:"target_type,omitempty" bson:"target_type,omitempty"`
	Kind         ActionKind `json:"kind" bson:"kind"`
	Reason       string     `json:"reason" bson:"reason"`
	ReportID     string     `json:"report_id,omitempty" bson:"report_id,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at" bson:"created_at"`
}

// ActiveBanAt reports whether the action is a ban in force at now. A ban
// without expiry is permanent.
func (a *ModerationAction) ActiveBanAt(now time.Time) bool {
	if !a.Kind.IsBan() {
		return false
	}
	return a.ExpiresAt == nil || a.ExpiresAt.After(now)
}

type UserActionRequest struct {
	Action   string `json:"action" validate:"required,oneof=ban tempban warn promote verify unban"`
	Reason   string `json:"reason" validate:"max=1000"`
	Duration int    `json:"duration" validate:"gte=0,lte=3650"`
	Role     Role   `json:"role,omitempty" validate:"omitempty,oneof=USER INFLUENCER OWNER MODERATOR ADMIN"`
}

func (r *UserActionRequest) Validate() map[string]string {
	r.Action = strings.ToLower(strings.TrimSpace(r.Action))
	r.Reason = strings.TrimSpace(r.Reason)
	errs := validation.Struct(r)
	switch r.Action {
	case "tempban":
		if r.Duration < 1 {
			errs = validation.Merge(errs, map[string]string{"duration": "duration must be at least 1 day for a temporary ban"})
		}
	case "promote":
		if r.Role == "" {
			errs = validation.Merge(errs, map[string]string{"role": "role is required"})
		}
	}
	if (r.Action == "ban" || r.Action == "tempban" || r.Action == "warn") && r.Reason == "" {
		errs = validation.Merge(errs, map[string]string{"reason": "reason is required"})
	}
	return errs
}

// ModerationHistory is everything recorded against one user.
type ModerationHistory struct {
	Actions       []ModerationAction `json:"actions"`
	Strikes       []UserStrike       `json:"strikes"`
	ActiveStrikes int                `json:"active_strikes"`
	ActiveBan     *ModerationAction  `json:"active_ban,omitempty"`
}
