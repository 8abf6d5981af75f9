package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tastetrail/backend/internal/logging"
	"github.com/tastetrail/backend/internal/models"
	"github.com/tastetrail/backend/internal/roles"
	"github.com/tastetrail/backend/internal/store"
)

// ClaimService runs restaurant ownership claims and influencer
// applications. Decisions go through roles.Apply and commit in one
// transaction with the user and restaurant writes they imply.
type ClaimService struct {
	store   store.Store
	notes   *NotificationService
	effects *Effects
	now     func() time.Time
}

func (s *ClaimService) CreateClaim(ctx context.Context, actor Actor, restaurantID string, req *models.CreateClaimRequest) (*models.RestaurantClaim, error) {
	if err := Validated(req.Validate()); err != nil {
		return nil, err
	}
	r, err := s.store.Restaurants().Get(ctx, restaurantID)
	if err != nil {
		return nil, notFoundAs(err, ErrRestaurantNotFound)
	}
	if r.OwnerID == actor.ID {
		return nil, invalid("restaurant", "you already own this restaurant")
	}
	c := &models.RestaurantClaim{
		ID:            uuid.NewString(),
		RestaurantID:  r.ID,
		UserID:        actor.ID,
		Status:        models.StatusPending,
		IsDispute:     r.OwnerID != "",
		BusinessEmail: req.BusinessEmail,
		Phone:         strings.TrimSpace(req.Phone),
		Proof:         strings.TrimSpace(req.Proof),
		Message:       strings.TrimSpace(req.Message),
		CreatedAt:     s.now(),
	}
	if err := s.store.Claims().Create(ctx, c); err != nil {
		return nil, duplicateAs(err, ErrPendingClaim)
	}
	return c, nil
}

func (s *ClaimService) MyClaims(ctx context.Context, actor Actor, p PageRequest) (models.Page[models.RestaurantClaim], error) {
	return s.listClaims(ctx, store.ClaimFilter{UserID: actor.ID, Page: p.store()}, p)
}

func (s *ClaimService) ListClaims(ctx context.Context, status models.ApplicationStatus, p PageRequest) (models.Page[models.RestaurantClaim], error) {
	return s.listClaims(ctx, store.ClaimFilter{Status: status, Page: p.store()}, p)
}

func (s *ClaimService) listClaims(ctx context.Context, f store.ClaimFilter, p PageRequest) (models.Page[models.RestaurantClaim], error) {
	items, total, err := s.store.Claims().List(ctx, f)
	if err != nil {
		return models.Page[models.RestaurantClaim]{}, err
	}
	return pageOf(items, total, p), nil
}

func (s *ClaimService) ApproveClaim(ctx context.Context, actor Actor, id string, req *models.DecisionRequest) (*models.RestaurantClaim, error) {
	return s.decideClaim(ctx, actor, id, roles.Approve, req)
}

func (s *ClaimService) RejectClaim(ctx context.Context, actor Actor, id string, req *models.DecisionRequest) (*models.RestaurantClaim, error) {
	return s.decideClaim(ctx, actor, id, roles.Reject, req)
}

func (s *ClaimService) decideClaim(ctx context.Context, actor Actor, id string, d roles.Decision, req *models.DecisionRequest) (*models.RestaurantClaim, error) {
	if err := Validated(req.Validate()); err != nil {
		return nil, err
	}
	var (
		claim *models.RestaurantClaim
		name  string
		notes []NotifyInput
	)
	now := s.now()
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		notes = notes[:0]
		var err error
		claim, err = tx.Claims().Get(ctx, id)
		if err != nil {
			return notFoundAs(err, ErrClaimNotFound)
		}
		user, err := tx.Users().Get(ctx, claim.UserID)
		if err != nil {
			return notFoundAs(err, ErrUserNotFound)
		}
		r, err := tx.Restaurants().Get(ctx, claim.RestaurantID)
		if err != nil {
			return notFoundAs(err, ErrRestaurantNotFound)
		}
		name = r.Name

		out, err := roles.Apply(roles.Transition{
			Kind:     roles.ClaimApproval,
			From:     user.Role,
			Status:   claim.Status,
			Decision: d,
		})
		if errors.Is(err, roles.ErrNotPending) {
			return ErrDecisionMade
		}
		if err != nil {
			return err
		}

		decide(&claim.Status, &claim.ReviewedBy, &claim.ReviewNote, &claim.ReviewedAt, out.Status, actor.ID, req.Note, now)
		if err := tx.Claims().Update(ctx, claim); err != nil {
			return err
		}
		if err := applyUser(ctx, tx, user, out, now); err != nil {
			return err
		}
		if out.SetOwner {
			r.OwnerID = user.ID
			r.Verified = r.Verified || out.VerifyRestaurant
			r.UpdatedAt = now
			if err := tx.Restaurants().Update(ctx, r); err != nil {
				return err
			}
			closed, err := s.rejectCompeting(ctx, tx, claim, actor.ID, now)
			if err != nil {
				return err
			}
			notes = append(notes, closed...)
		}

		msg := fmt.Sprintf("Your claim for %s was approved.", r.Name)
		title := "Claim approved"
		if out.Status == models.StatusRejected {
			msg = fmt.Sprintf("Your claim for %s was rejected.", r.Name)
			title = "Claim rejected"
		}
		if req.Note != "" {
			msg += " " + req.Note
		}
		notes = append(notes, NotifyInput{
			UserID:     user.ID,
			FromUserID: actor.ID,
			Type:       out.Notification,
			Title:      title,
			Message:    msg,
			TargetID:   r.ID,
			TargetType: string(models.TargetRestaurant),
			Data:       map[string]interface{}{"claim_id": claim.ID},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyDecision(ctx, "notify_claim_decision", notes...)
	logging.Audit(ctx, logging.AuditRoleTransition, actor.ID, claim.UserID,
		fmt.Sprintf("%s %s %s", roles.ClaimApproval, claim.Status, name))
	return claim, nil
}

// rejectCompeting closes the other pending claims on the same restaurant.
func (s *ClaimService) rejectCompeting(ctx context.Context, tx store.Store, won *models.RestaurantClaim, reviewerID string, now time.Time) ([]NotifyInput, error) {
	others, _, err := tx.Claims().List(ctx, store.ClaimFilter{RestaurantID: won.RestaurantID, Status: models.StatusPending})
	if err != nil {
		return nil, err
	}
	var out []NotifyInput
	for i := range others {
		c := &others[i]
		if c.ID == won.ID {
			continue
		}
		decide(&c.Status, &c.ReviewedBy, &c.ReviewNote, &c.ReviewedAt, models.StatusRejected, reviewerID, "another claim was approved", now)
		if err := tx.Claims().Update(ctx, c); err != nil {
			return nil, err
		}
		out = append(out, NotifyInput{
			UserID:     c.UserID,
			FromUserID: reviewerID,
			Type:       models.NotifyClaimRejected,
			Title:      "Claim rejected",
			Message:    "Your restaurant claim was closed because another claim was approved.",
			TargetID:   c.RestaurantID,
			TargetType: string(models.TargetRestaurant),
			Data:       map[string]interface{}{"claim_id": c.ID},
		})
	}
	return out, nil
}

func (s *ClaimService) CreateApplication(ctx context.Context, actor Actor, req *models.CreateApplicationRequest) (*models.InfluencerApplication, error) {
	if err := Validated(req.Validate()); err != nil {
		return nil, err
	}
	if actor.Role == models.RoleInfluencer {
		return nil, invalid("role", "you are already an influencer")
	}
	platforms := make([]string, len(req.Platforms))
	for i, p := range req.Platforms {
		platforms[i] = strings.TrimSpace(p)
	}
	a := &models.InfluencerApplication{
		ID:            uuid.NewString(),
		UserID:        actor.ID,
		Status:        models.StatusPending,
		Platforms:     platforms,
		FollowerCount: req.FollowerCount,
		PortfolioURL:  strings.TrimSpace(req.PortfolioURL),
		Message:       strings.TrimSpace(req.Message),
		CreatedAt:     s.now(),
	}
	if err := s.store.Applications().Create(ctx, a); err != nil {
		return nil, duplicateAs(err, ErrPendingApplication)
	}
	return a, nil
}

func (s *ClaimService) MyApplications(ctx context.Context, actor Actor, p PageRequest) (models.Page[models.InfluencerApplication], error) {
	return s.listApplications(ctx, store.ApplicationFilter{UserID: actor.ID, Page: p.store()}, p)
}

func (s *ClaimService) ListApplications(ctx context.Context, status models.ApplicationStatus, p PageRequest) (models.Page[models.InfluencerApplication], error) {
	return s.listApplications(ctx, store.ApplicationFilter{Status: status, Page: p.store()}, p)
}

func (s *ClaimService) listApplications(ctx context.Context, f store.ApplicationFilter, p PageRequest) (models.Page[models.InfluencerApplication], error) {
	items, total, err := s.store.Applications().List(ctx, f)
	if err != nil {
		return models.Page[models.InfluencerApplication]{}, err
	}
	return pageOf(items, total, p), nil
}

func (s *ClaimService) ApproveApplication(ctx context.Context, actor Actor, id string, req *models.DecisionRequest) (*models.InfluencerApplication, error) {
	return s.decideApplication(ctx, actor, id, roles.Approve, req)
}

func (s *ClaimService) RejectApplication(ctx context.Context, actor Actor, id string, req *models.DecisionRequest) (*models.InfluencerApplication, error) {
	return s.decideApplication(ctx, actor, id, roles.Reject, req)
}

func (s *ClaimService) decideApplication(ctx context.Context, actor Actor, id string, d roles.Decision, req *models.DecisionRequest) (*models.InfluencerApplication, error) {
	if err := Validated(req.Validate()); err != nil {
		return nil, err
	}
	var (
		app  *models.InfluencerApplication
		note NotifyInput
	)
	now := s.now()
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		app, err = tx.Applications().Get(ctx, id)
		if err != nil {
			return notFoundAs(err, ErrApplicationNotFound)
		}
		user, err := tx.Users().Get(ctx, app.UserID)
		if err != nil {
			return notFoundAs(err, ErrUserNotFound)
		}
		out, err := roles.Apply(roles.Transition{
			Kind:     roles.InfluencerApproval,
			From:     user.Role,
			Status:   app.Status,
			Decision: d,
		})
		if errors.Is(err, roles.ErrNotPending) {
			return ErrDecisionMade
		}
		if err != nil {
			return err
		}

		decide(&app.Status, &app.ReviewedBy, &app.ReviewNote, &app.ReviewedAt, out.Status, actor.ID, req.Note, now)
		if err := tx.Applications().Update(ctx, app); err != nil {
			return err
		}
		if err := applyUser(ctx, tx, user, out, now); err != nil {
			return err
		}

		title, msg := "Application approved", "Your influencer application was approved."
		if out.Status == models.StatusRejected {
			title, msg = "Application rejected", "Your influencer application was rejected."
		}
		if req.Note != "" {
			msg += " " + req.Note
		}
		note = NotifyInput{
			UserID:     user.ID,
			FromUserID: actor.ID,
			Type:       out.Notification,
			Title:      title,
			Message:    msg,
			TargetID:   app.ID,
			TargetType: "INFLUENCER_APPLICATION",
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyDecision(ctx, "notify_application_decision", note)
	logging.Audit(ctx, logging.AuditRoleTransition, actor.ID, app.UserID,
		fmt.Sprintf("%s %s", roles.InfluencerApproval, app.Status))
	return app, nil
}

// notifyDecision sends decision notifications once the decision has
// committed. A failed notification never undoes the decision.
func (s *ClaimService) notifyDecision(ctx context.Context, name string, inputs ...NotifyInput) {
	s.effects.Run(ctx, name, func(ctx context.Context) error {
		var errs []error
		for _, in := range inputs {
			if _, err := s.notes.Notify(ctx, in); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

func decide(status *models.ApplicationStatus, by, note *string, at **time.Time, to models.ApplicationStatus, reviewer, reviewNote string, now time.Time) {
	*status = to
	*by = reviewer
	*note = strings.TrimSpace(reviewNote)
	t := now
	*at = &t
}

// applyUser writes the role and verification changes of an outcome.
func applyUser(ctx context.Context, tx store.Store, u *models.User, out roles.Outcome, now time.Time) error {
	changed := false
	if out.UserRole != nil && u.Role != *out.UserRole {
		u.Role = *out.UserRole
		changed = true
	}
	if out.UserVerified && !u.Verified {
		u.Verified = true
		changed = true
	}
	if !changed {
		return nil
	}
	u.UpdatedAt = now
	return tx.Users().Update(ctx, u)
}
