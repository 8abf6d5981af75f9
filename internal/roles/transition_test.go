package roles

import (
	"errors"
	"testing"

	"github.com/tastetrail/backend/internal/models"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name      string
		in        Transition
		wantRole  models.Role // empty means unchanged
		wantOwner bool
		wantNote  models.NotificationType
	}{
		{
			name:      "claim approval promotes user to owner",
			in:        Transition{Kind: ClaimApproval, From: models.RoleUser, Status: models.StatusPending, Decision: Approve},
			wantRole:  models.RoleOwner,
			wantOwner: true,
			wantNote:  models.NotifyClaimApproved,
		},
		{
			name:      "claim approval keeps admin role",
			in:        Transition{Kind: ClaimApproval, From: models.RoleAdmin, Status: models.StatusPending, Decision: Approve},
			wantOwner: true,
			wantNote:  models.NotifyClaimApproved,
		},
		{
			name:     "influencer approval promotes user",
			in:       Transition{Kind: InfluencerApproval, From: models.RoleUser, Status: models.StatusPending, Decision: Approve},
			wantRole: models.RoleInfluencer,
			wantNote: models.NotifyApplicationApproved,
		},
		{
			name:     "influencer approval does not demote owner",
			in:       Transition{Kind: InfluencerApproval, From: models.RoleOwner, Status: models.StatusPending, Decision: Approve},
			wantNote: models.NotifyApplicationApproved,
		},
		{
			name:     "claim rejection changes nothing",
			in:       Transition{Kind: ClaimApproval, From: models.RoleUser, Status: models.StatusPending, Decision: Reject},
			wantNote: models.NotifyClaimRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Apply(tt.in)
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if tt.wantRole == "" && out.UserRole != nil {
				t.Fatalf("role should be unchanged, got %s", *out.UserRole)
			}
			if tt.wantRole != "" && (out.UserRole == nil || *out.UserRole != tt.wantRole) {
				t.Fatalf("role = %v, want %s", out.UserRole, tt.wantRole)
			}
			if out.SetOwner != tt.wantOwner || out.VerifyRestaurant != tt.wantOwner {
				t.Fatalf("owner writes = %v/%v, want %v", out.SetOwner, out.VerifyRestaurant, tt.wantOwner)
			}
			if out.Notification != tt.wantNote {
				t.Fatalf("notification = %s, want %s", out.Notification, tt.wantNote)
			}
		})
	}
}

func TestApplyRequiresPending(t *testing.T) {
	_, err := Apply(Transition{Kind: ClaimApproval, From: models.RoleUser, Status: models.StatusApproved, Decision: Approve})
	if !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}
}

func TestApplyUnknownDecision(t *testing.T) {
	_, err := Apply(Transition{Kind: ClaimApproval, From: models.RoleUser, Status: models.StatusPending, Decision: "maybe"})
	if !errors.Is(err, ErrUnknownDecision) {
		t.Fatalf("expected ErrUnknownDecision, got %v", err)
	}
}
