package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tastetrail/backend/internal/authz"
	"github.com/tastetrail/backend/internal/logging"
	"github.com/tastetrail/backend/internal/metrics"
	"github.com/tastetrail/backend/internal/models"
	"github.com/tastetrail/backend/internal/store"
)

// SystemModeratorID attributes automated actions such as image rejection.
const SystemModeratorID = "system"

const defaultWarningTTL = 30 * 24 * time.Hour

type ModerationService struct {
	store      store.Store
	notes      *NotificationService
	mailer     Mailer
	enforcer   *authz.Enforcer
	effects    *Effects
	trending   *trendingCache
	warningTTL time.Duration
	now        func() time.Time
}

// CheckUserBan returns the newest ban in force, or nil.
func (s *ModerationService) CheckUserBan(ctx context.Context, userID string) (*models.ModerationAction, error) {
	return s.store.Moderation().ActiveBan(ctx, userID, s.now())
}

func (s *ModerationService) strikeTTL() time.Duration {
	if s.warningTTL <= 0 {
		return defaultWarningTTL
	}
	return s.warningTTL
}

// Act applies an admin action to a user account.
func (s *ModerationService) Act(ctx context.Context, actor Actor, targetID string, req *models.UserActionRequest) (*models.ModerationAction, error) {
	if err := Validated(req.Validate()); err != nil {
		return nil, err
	}
	if targetID == actor.ID {
		return nil, invalid("user", "you cannot moderate your own account")
	}
	target, err := s.store.Users().Get(ctx, targetID)
	if err != nil {
		return nil, notFoundAs(err, ErrUserNotFound)
	}
	if target.Role.IsStaff() && actor.Role != models.RoleAdmin {
		return nil, forbidden("moderators cannot act on staff accounts")
	}

	now := s.now()
	action := &models.ModerationAction{
		ID:           uuid.NewString(),
		ModeratorID:  actor.ID,
		TargetUserID: target.ID,
		TargetID:     target.ID,
		TargetType:   models.TargetUser,
		Reason:       req.Reason,
		CreatedAt:    now,
	}

	var strike *models.UserStrike
	switch req.Action {
	case "ban":
		action.Kind = models.ActionPermanentBan
		strike = &models.UserStrike{}
	case "tempban":
		action.Kind = models.ActionTemporaryBan
		exp := now.Add(time.Duration(req.Duration) * 24 * time.Hour)
		action.ExpiresAt = &exp
		strike = &models.UserStrike{}
	case "warn":
		action.Kind = models.ActionWarning
		exp := now.Add(s.strikeTTL())
		strike = &models.UserStrike{ExpiresAt: &exp}
	case "promote":
		if !req.Role.Valid() {
			return nil, invalid("role", "unknown role")
		}
		if req.Role.IsStaff() && !s.enforcer.Can(string(actor.Role), authz.ObjRoles, authz.ActGrantStaff) {
			return nil, forbidden("only administrators can grant staff roles")
		}
		if target.Role == req.Role {
			return nil, invalid("role", "user already has this role")
		}
		action.Kind = models.ActionRoleChange
		if action.Reason == "" {
			action.Reason = fmt.Sprintf("role changed from %s to %s", target.Role, req.Role)
		}
		target.Role = req.Role
	case "verify":
		action.Kind = models.ActionVerification
		if action.Reason == "" {
			action.Reason = "account verified"
		}
		target.Verified = true
	case "unban":
		action.Kind = models.ActionReinstatement
		if action.Reason == "" {
			action.Reason = "ban lifted"
		}
	default:
		return nil, invalid("action", "unknown action")
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		if req.Action == "unban" {
			n, err := tx.Moderation().ExpireBans(ctx, target.ID, now)
			if err != nil {
				return err
			}
			if n == 0 {
				return ErrNotBanned
			}
		}
		if err := tx.Moderation().CreateAction(ctx, action); err != nil {
			return err
		}
		if strike != nil {
			strike.ID = uuid.NewString()
			strike.UserID = target.ID
			strike.ActionID = action.ID
			strike.Reason = action.Reason
			strike.CreatedAt = now
			if err := tx.Moderation().CreateStrike(ctx, strike); err != nil {
				return err
			}
		}
		if req.Action == "promote" || req.Action == "verify" {
			target.UpdatedAt = now
			if err := tx.Users().Update(ctx, target); err != nil {
				return err
			}
		}
		if action.Kind.IsBan() {
			if _, err := tx.Sessions().DeleteByUser(ctx, target.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ModerationActions.WithLabelValues(string(action.Kind)).Inc()
	logging.Audit(ctx, logging.AuditModeration, actor.ID, target.ID, string(action.Kind))

	s.effects.Run(ctx, "notify_moderation_action", func(ctx context.Context) error {
		_, err := s.notes.Notify(ctx, NotifyInput{
			UserID:     target.ID,
			FromUserID: actor.ID,
			Type:       models.NotifyModerationAction,
			Title:      actionTitle(action.Kind),
			Message:    actionMessage(action),
			TargetID:   action.ID,
			TargetType: "MODERATION_ACTION",
			Data:       map[string]interface{}{"kind": string(action.Kind)},
		})
		return err
	})
	if s.mailer != nil && (action.Kind.IsBan() || action.Kind == models.ActionWarning) {
		s.effects.Go(ctx, "moderation_email", func(ctx context.Context) error {
			return s.mailer.SendModerationEmail(ctx, target.Email, target.Name, actionTitle(action.Kind), actionMessage(action))
		})
	}
	return action, nil
}

// History returns everything recorded against a user.
func (s *ModerationService) History(ctx context.Context, userID string) (*models.ModerationHistory, error) {
	if _, err := s.store.Users().Get(ctx, userID); err != nil {
		return nil, notFoundAs(err, ErrUserNotFound)
	}
	actions, err := s.store.Moderation().ListActions(ctx, userID)
	if err != nil {
		return nil, err
	}
	strikes, err := s.store.Moderation().ListStrikes(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	active := 0
	for i := range strikes {
		if strikes[i].ActiveAt(now) {
			active++
		}
	}
	ban, err := s.store.Moderation().ActiveBan(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	if actions == nil {
		actions = []models.ModerationAction{}
	}
	if strikes == nil {
		strikes = []models.UserStrike{}
	}
	return &models.ModerationHistory{
		Actions:       actions,
		Strikes:       strikes,
		ActiveStrikes: active,
		ActiveBan:     ban,
	}, nil
}

// Reinstate makes hidden review or comment content visible again.
func (s *ModerationService) Reinstate(ctx context.Context, actor Actor, targetType models.TargetType, id string) (*models.ModerationAction, error) {
	now := s.now()
	action := &models.ModerationAction{
		ID:          uuid.NewString(),
		ModeratorID: actor.ID,
		TargetID:    id,
		TargetType:  targetType,
		Kind:        models.ActionReinstatement,
		Reason:      "content reinstated",
		CreatedAt:   now,
	}

	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		switch targetType {
		case models.TargetReview:
			rv, err := tx.Reviews().Get(ctx, id)
			if err != nil {
				return notFoundAs(err, ErrReviewNotFound)
			}
			rv.IsHidden = false
			rv.UpdatedAt = now
			if err := tx.Reviews().Update(ctx, rv); err != nil {
				return err
			}
			action.TargetUserID = rv.UserID
		case models.TargetComment:
			c, err := tx.Comments().Get(ctx, id)
			if err != nil {
				return notFoundAs(err, ErrCommentNotFound)
			}
			c.IsHidden = false
			c.UpdatedAt = now
			if err := tx.Comments().Update(ctx, c); err != nil {
				return err
			}
			action.TargetUserID = c.UserID
		default:
			return invalid("type", "only reviews and comments can be reinstated")
		}
		return tx.Moderation().CreateAction(ctx, action)
	})
	if err != nil {
		return nil, err
	}

	metrics.ModerationActions.WithLabelValues(string(action.Kind)).Inc()
	logging.Audit(ctx, logging.AuditReinstated, actor.ID, id, string(targetType))
	s.effects.Run(ctx, "invalidate_trending", s.trending.invalidate)
	return action, nil
}

// IssueImageStrike records a warning against the uploader of an image
// that failed SafeSearch.
func (s *ModerationService) IssueImageStrike(ctx context.Context, userID, key string) error {
	now := s.now()
	exp := now.Add(s.strikeTTL())
	action := &models.ModerationAction{
		ID:           uuid.NewString(),
		ModeratorID:  SystemModeratorID,
		TargetUserID: userID,
		TargetID:     key,
		Kind:         models.ActionWarning,
		Reason:       "uploaded image violates community guidelines",
		CreatedAt:    now,
	}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.Moderation().CreateAction(ctx, action); err != nil {
			return err
		}
		return tx.Moderation().CreateStrike(ctx, &models.UserStrike{
			ID:        uuid.NewString(),
			UserID:    userID,
			ActionID:  action.ID,
			Reason:    action.Reason,
			ExpiresAt: &exp,
			CreatedAt: now,
		})
	})
	if err != nil {
		return err
	}
	metrics.ModerationActions.WithLabelValues(string(action.Kind)).Inc()
	logging.Audit(ctx, logging.AuditModeration, SystemModeratorID, userID, "image_rejected")

	s.effects.Run(ctx, "notify_image_strike", func(ctx context.Context) error {
		_, err := s.notes.Notify(ctx, NotifyInput{
			UserID:     userID,
			Type:       models.NotifyModerationAction,
			Title:      actionTitle(action.Kind),
			Message:    "An image you uploaded was removed because it violates our community guidelines.",
			TargetID:   action.ID,
			TargetType: "MODERATION_ACTION",
			Data:       map[string]interface{}{"kind": string(action.Kind)},
		})
		return err
	})
	return nil
}

func actionTitle(kind models.ActionKind) string {
	switch kind {
	case models.ActionPermanentBan:
		return "Your account has been banned"
	case models.ActionTemporaryBan:
		return "Your account has been suspended"
	case models.ActionWarning:
		return "You received a warning"
	case models.ActionContentRemoval:
		return "Your content was removed"
	case models.ActionReinstatement:
		return "Your account has been reinstated"
	case models.ActionRoleChange:
		return "Your role has changed"
	case models.ActionVerification:
		return "Your account is verified"
	}
	return "Moderation update"
}

func actionMessage(a *models.ModerationAction) string {
	var b strings.Builder
	b.WriteString(actionTitle(a.Kind))
	if a.Reason != "" {
		b.WriteString(": ")
		b.WriteString(a.Reason)
	}
	if a.ExpiresAt != nil {
		b.WriteString(" (until ")
		b.WriteString(a.ExpiresAt.UTC().Format(time.RFC1123))
		b.WriteString(")")
	}
	return b.String()
}
