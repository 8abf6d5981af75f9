package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tastetrail/backend/internal/logging"
	"github.com/tastetrail/backend/internal/metrics"
	"github.com/tastetrail/backend/internal/models"
	"github.com/tastetrail/backend/internal/store"
)

// reasonSeverity decides whether a report raises a content flag.
var reasonSeverity = map[models.ReportReason]models.Severity{
	models.ReasonHarassment:     models.SeverityHigh,
	models.ReasonHateSpeech:     models.SeverityHigh,
	models.ReasonViolence:       models.SeverityHigh,
	models.ReasonInappropriate:  models.SeverityMedium,
	models.ReasonMisinformation: models.SeverityMedium,
	models.ReasonFakeReview:     models.SeverityMedium,
	models.ReasonSpam:           models.SeverityLow,
	models.ReasonOther:          models.SeverityLow,
}

// reasonAction is the action an approved report produces.
var reasonAction = map[models.ReportReason]models.ActionKind{
	models.ReasonHarassment:     models.ActionContentRemoval,
	models.ReasonHateSpeech:     models.ActionContentRemoval,
	models.ReasonViolence:       models.ActionContentRemoval,
	models.ReasonMisinformation: models.ActionContentRemoval,
	models.ReasonFakeReview:     models.ActionContentRemoval,
	models.ReasonSpam:           models.ActionWarning,
	models.ReasonInappropriate:  models.ActionWarning,
	models.ReasonOther:          models.ActionWarning,
}

func SeverityFor(r models.ReportReason) models.Severity {
	if s, ok := reasonSeverity[r]; ok {
		return s
	}
	return models.SeverityLow
}

func ActionFor(r models.ReportReason) models.ActionKind {
	if k, ok := reasonAction[r]; ok {
		return k
	}
	return models.ActionWarning
}

type ReportService struct {
	store      store.Store
	notes      *NotificationService
	effects    *Effects
	trending   *trendingCache
	threshold  models.Severity
	warningTTL time.Duration
	now        func() time.Time
}

func (s *ReportService) flagThreshold() models.Severity {
	if s.threshold.Level() == 0 {
		return models.SeverityMedium
	}
	return s.threshold
}

// Create files a report and flags the content when the reason is severe
// enough. Staff are notified afterwards.
func (s *ReportService) Create(ctx context.Context, actor Actor, req *models.CreateReportRequest) (*models.Report, error) {
	if err := Validated(req.Validate()); err != nil {
		return nil, err
	}
	reason := models.ParseReason(req.Reason)
	if req.TargetType == models.TargetUser && req.TargetID == actor.ID {
		return nil, invalid("target_id", "you cannot report your own account")
	}
	if _, err := s.targetOwner(ctx, s.store, req.TargetType, req.TargetID); err != nil {
		return nil, err
	}

	now := s.now()
	report := &models.Report{
		ID:          uuid.NewString(),
		ReporterID:  actor.ID,
		TargetID:    req.TargetID,
		TargetType:  req.TargetType,
		Reason:      reason,
		Description: req.Description,
		Status:      models.ReportPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	sev := SeverityFor(reason)

	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.Reports().Create(ctx, report); err != nil {
			return duplicateAs(err, ErrAlreadyReported)
		}
		if sev.Level() >= s.flagThreshold().Level() {
			if _, err := tx.Flags().Escalate(ctx, report.TargetID, report.TargetType, sev, reason, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.effects.Run(ctx, "notify_staff_report", func(ctx context.Context) error {
		staff, err := s.store.Users().IDs(ctx, []models.Role{models.RoleModerator, models.RoleAdmin})
		if err != nil {
			return err
		}
		_, err = s.notes.NotifyAll(ctx, staff, NotifyInput{
			FromUserID: actor.ID,
			Type:       models.NotifyReportCreated,
			Title:      "New report",
			Message:    fmt.Sprintf("A %s was reported for %s", targetNoun(report.TargetType), reasonLabel(reason)),
			TargetID:   report.ID,
			TargetType: "REPORT",
			Data: map[string]interface{}{
				"target_id":   report.TargetID,
				"target_type": string(report.TargetType),
				"severity":    string(sev),
			},
		})
		return err
	})
	return report, nil
}

func (s *ReportService) Get(ctx context.Context, id string) (*models.Report, error) {
	r, err := s.store.Reports().Get(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, ErrReportNotFound)
	}
	return r, nil
}

func (s *ReportService) List(ctx context.Context, status models.ReportStatus, targetType models.TargetType, p PageRequest) (models.Page[models.Report], error) {
	items, total, err := s.store.Reports().List(ctx, store.ReportFilter{Status: status, TargetType: targetType, Page: p.store()})
	if err != nil {
		return models.Page[models.Report]{}, err
	}
	return pageOf(items, total, p), nil
}

func (s *ReportService) Flags(ctx context.Context, p PageRequest) (models.Page[models.ContentFlag], error) {
	items, total, err := s.store.Flags().List(ctx, p.store())
	if err != nil {
		return models.Page[models.ContentFlag]{}, err
	}
	return pageOf(items, total, p), nil
}

// Investigate moves a pending report to INVESTIGATING.
func (s *ReportService) Investigate(ctx context.Context, actor Actor, id string) (*models.Report, error) {
	var report *models.Report
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		r, err := tx.Reports().Get(ctx, id)
		if err != nil {
			return notFoundAs(err, ErrReportNotFound)
		}
		if r.Status != models.ReportPending {
			return fmt.Errorf("report is %s: %w", r.Status, ErrConflict)
		}
		r.Status = models.ReportInvestigating
		r.ResolvedBy = actor.ID
		r.UpdatedAt = s.now()
		report = r
		return tx.Reports().Update(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Approve resolves an open report. The action, the hide or strike, the
// flag removal and the status change commit together.
func (s *ReportService) Approve(ctx context.Context, actor Actor, id string, req *models.ResolveReportRequest) (*models.Report, error) {
	if err := Validated(req.Validate()); err != nil {
		return nil, err
	}
	var (
		report   *models.Report
		action   *models.ModerationAction
		authorID string
		hidden   bool
	)
	now := s.now()

	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		r, err := tx.Reports().Get(ctx, id)
		if err != nil {
			return notFoundAs(err, ErrReportNotFound)
		}
		if !r.Status.Open() {
			return ErrReportClosed
		}

		owner, err := s.targetOwner(ctx, tx, r.TargetType, r.TargetID)
		if err != nil && !errors.Is(err, ErrTargetNotFound) {
			return err
		}
		authorID = owner

		action = &models.ModerationAction{
			ID:           uuid.NewString(),
			ModeratorID:  actor.ID,
			TargetUserID: owner,
			TargetID:     r.TargetID,
			TargetType:   r.TargetType,
			Kind:         ActionFor(r.Reason),
			Reason:       resolutionReason(r, req.Resolution),
			ReportID:     r.ID,
			CreatedAt:    now,
		}
		if err := tx.Moderation().CreateAction(ctx, action); err != nil {
			return err
		}

		switch r.TargetType {
		case models.TargetReview:
			rv, err := tx.Reviews().Get(ctx, r.TargetID)
			if err == nil {
				rv.IsHidden = true
				rv.UpdatedAt = now
				if err := tx.Reviews().Update(ctx, rv); err != nil {
					return err
				}
				hidden = true
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}
		case models.TargetComment:
			c, err := tx.Comments().Get(ctx, r.TargetID)
			if err == nil {
				c.IsHidden = true
				c.UpdatedAt = now
				if err := tx.Comments().Update(ctx, c); err != nil {
					return err
				}
				hidden = true
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}
		case models.TargetUser:
			exp := now.Add(s.strikeTTL())
			if err := tx.Moderation().CreateStrike(ctx, &models.UserStrike{
				ID:        uuid.NewString(),
				UserID:    r.TargetID,
				ActionID:  action.ID,
				Reason:    action.Reason,
				ExpiresAt: &exp,
				CreatedAt: now,
			}); err != nil {
				return err
			}
		}

		if err := tx.Flags().Delete(ctx, r.TargetID, r.TargetType); err != nil {
			return err
		}

		r.Status = models.ReportResolved
		r.ResolvedBy = actor.ID
		r.Resolution = req.Resolution
		r.ActionID = action.ID
		r.UpdatedAt = now
		r.ResolvedAt = &now
		report = r
		return tx.Reports().Update(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	metrics.ReportsResolved.WithLabelValues("approved").Inc()
	metrics.ModerationActions.WithLabelValues(string(action.Kind)).Inc()
	logging.Audit(ctx, logging.AuditReportResolved, actor.ID, report.ID, string(action.Kind))

	s.effects.Run(ctx, "notify_reporter", func(ctx context.Context) error {
		_, err := s.notes.Notify(ctx, NotifyInput{
			UserID:     report.ReporterID,
			FromUserID: actor.ID,
			Type:       models.NotifyReportResolved,
			Title:      "Report resolved",
			Message:    fmt.Sprintf("Thanks for your report. We reviewed the %s and took action.", targetNoun(report.TargetType)),
			TargetID:   report.ID,
			TargetType: "REPORT",
			Data:       map[string]interface{}{"status": string(report.Status), "action": string(action.Kind)},
		})
		return err
	})
	if hidden {
		s.effects.Run(ctx, "notify_content_author", func(ctx context.Context) error {
			_, err := s.notes.Notify(ctx, NotifyInput{
				UserID:     authorID,
				FromUserID: actor.ID,
				Type:       models.NotifyModerationAction,
				Title:      actionTitle(action.Kind),
				Message:    fmt.Sprintf("Your %s was hidden for %s.", targetNoun(report.TargetType), reasonLabel(report.Reason)),
				TargetID:   report.TargetID,
				TargetType: string(report.TargetType),
				Data:       map[string]interface{}{"kind": string(action.Kind)},
			})
			return err
		})
		s.effects.Run(ctx, "invalidate_trending", s.trending.invalidate)
	}
	return report, nil
}

// Reject closes an open report without touching the content.
func (s *ReportService) Reject(ctx context.Context, actor Actor, id string, req *models.ResolveReportRequest) (*models.Report, error) {
	if err := Validated(req.Validate()); err != nil {
		return nil, err
	}
	var report *models.Report
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		r, err := tx.Reports().Get(ctx, id)
		if err != nil {
			return notFoundAs(err, ErrReportNotFound)
		}
		if !r.Status.Open() {
			return ErrReportClosed
		}
		now := s.now()
		r.Status = models.ReportRejected
		r.ResolvedBy = actor.ID
		r.Resolution = req.Resolution
		r.UpdatedAt = now
		r.ResolvedAt = &now
		report = r
		return tx.Reports().Update(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	metrics.ReportsResolved.WithLabelValues("rejected").Inc()
	logging.Audit(ctx, logging.AuditReportRejected, actor.ID, report.ID, "")
	s.effects.Run(ctx, "notify_reporter", func(ctx context.Context) error {
		_, err := s.notes.Notify(ctx, NotifyInput{
			UserID:     report.ReporterID,
			FromUserID: actor.ID,
			Type:       models.NotifyReportResolved,
			Title:      "Report reviewed",
			Message:    fmt.Sprintf("We reviewed the %s you reported and found no violation.", targetNoun(report.TargetType)),
			TargetID:   report.ID,
			TargetType: "REPORT",
			Data:       map[string]interface{}{"status": string(report.Status)},
		})
		return err
	})
	return report, nil
}

// targetOwner returns the user responsible for the reported content.
// Restaurants without an owner yield an empty id.
func (s *ReportService) targetOwner(ctx context.Context, st store.Store, typ models.TargetType, id string) (string, error) {
	switch typ {
	case models.TargetReview:
		rv, err := st.Reviews().Get(ctx, id)
		if err != nil {
			return "", notFoundAs(err, ErrTargetNotFound)
		}
		return rv.UserID, nil
	case models.TargetComment:
		c, err := st.Comments().Get(ctx, id)
		if err != nil {
			return "", notFoundAs(err, ErrTargetNotFound)
		}
		return c.UserID, nil
	case models.TargetUser:
		u, err := st.Users().Get(ctx, id)
		if err != nil {
			return "", notFoundAs(err, ErrTargetNotFound)
		}
		return u.ID, nil
	case models.TargetRestaurant:
		r, err := st.Restaurants().Get(ctx, id)
		if err != nil {
			return "", notFoundAs(err, ErrTargetNotFound)
		}
		return r.OwnerID, nil
	}
	return "", invalid("target_type", "unknown target type")
}

func (s *ReportService) strikeTTL() time.Duration {
	if s.warningTTL <= 0 {
		return defaultWarningTTL
	}
	return s.warningTTL
}

func resolutionReason(r *models.Report, resolution string) string {
	if resolution != "" {
		return resolution
	}
	return "report upheld: " + reasonLabel(r.Reason)
}

func targetNoun(t models.TargetType) string {
	switch t {
	case models.TargetReview:
		return "review"
	case models.TargetComment:
		return "comment"
	case models.TargetRestaurant:
		return "restaurant"
	case models.TargetUser:
		return "user"
	}
	return "content"
}

func reasonLabel(r models.ReportReason) string {
	switch r {
	case models.ReasonHateSpeech:
		return "hate speech"
	case models.ReasonFakeReview:
		return "fake review"
	}
	return strings.ToLower(string(r))
}
