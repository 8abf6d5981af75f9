package models

import "time"

// UserStrike is a penalty tied to a moderation action. A nil ExpiresAt
// means the strike never expires.
type UserStrike struct {
	ID        string     `json:"id" bson:"_id"`
	UserID    string     `json:"user_id" bson:"user_id"`
	ActionID  string     `json:"action_id" bson:"action_id"`
	Reason    string     `json:"reason" bson:"reason"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
}

func (s *UserStrike) ActiveAt(now time.Time) bool {
	return s.ExpiresAt == nil || s.ExpiresAt.After(now)
}

type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

func (s Severity) Level() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Max returns the more severe of s and o.
func (s Severity) Max(o Severity) Severity {
	if o.Level() > s.Level() {
		return o
	}
	return s
}

// ContentFlag aggregates reports against one piece of content.
type ContentFlag struct {
	ID          string         `json:"id" bson:"_id"`
	ContentID   string         `json:"content_id" bson:"content_id"`
	ContentType TargetType     `json:"content_type" bson:"content_type"`
	Severity    Severity       `json:"severity" bson:"severity"`
	ReportCount int            `json:"report_count" bson:"report_count"`
	Reasons     []ReportReason `json:"reasons" bson:"reasons"`
	CreatedAt   time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" bson:"updated_at"`
}
