// Package roles decides the user and restaurant writes produced when an
// admin reviews a role-granting application.
package roles

import (
	"errors"
	"fmt"

	"github.com/tastetrail/backend/internal/models"
)

type Kind string

const (
	ClaimApproval      Kind = "claim_approval"
	InfluencerApproval Kind = "influencer_approval"
)

type Decision string

const (
	Approve Decision = "approve"
	Reject  Decision = "reject"
)

var (
	ErrNotPending      = errors.New("application is not pending")
	ErrUnknownDecision = errors.New("unknown decision")
)

// Transition is the input to a role transition: which workflow, the
// applicant's current role, the application state and the decision.
type Transition struct {
	Kind     Kind
	From     models.Role
	Status   models.ApplicationStatus
	Decision Decision
}

// Outcome lists the writes to apply atomically. A nil pointer field means
// "leave unchanged".
type Outcome struct {
	Status           models.ApplicationStatus
	UserRole         *models.Role
	UserVerified     bool
	SetOwner         bool
	VerifyRestaurant bool
	Notification     models.NotificationType
}

// targetRole is the role each workflow grants.
var targetRole = map[Kind]models.Role{
	ClaimApproval:      models.RoleOwner,
	InfluencerApproval: models.RoleInfluencer,
}

// Apply evaluates t. Promotions are one-directional: an approval never
// lowers the applicant's role.
func Apply(t Transition) (Outcome, error) {
	if t.Status != models.StatusPending {
		return Outcome{}, ErrNotPending
	}
	grant, ok := targetRole[t.Kind]
	if !ok {
		return Outcome{}, fmt.Errorf("unknown transition kind %q", t.Kind)
	}

	switch t.Decision {
	case Reject:
		out := Outcome{Status: models.StatusRejected}
		switch t.Kind {
		case ClaimApproval:
			out.Notification = models.NotifyClaimRejected
		case InfluencerApproval:
			out.Notification = models.NotifyApplicationRejected
		}
		return out, nil

	case Approve:
		out := Outcome{Status: models.StatusApproved}
		if promotes(t.From, grant) {
			role := grant
			out.UserRole = &role
		}
		switch t.Kind {
		case ClaimApproval:
			out.SetOwner = true
			out.VerifyRestaurant = true
			out.Notification = models.NotifyClaimApproved
		case InfluencerApproval:
			out.UserVerified = true
			out.Notification = models.NotifyApplicationApproved
		}
		return out, nil
	}
	return Outcome{}, ErrUnknownDecision
}

// promotes reports whether moving from -> to is an upgrade. Staff roles
// are never replaced by a workflow grant.
func promotes(from, to models.Role) bool {
	if from.IsStaff() {
		return false
	}
	return from == models.RoleUser || from.Rank() < to.Rank()
}
