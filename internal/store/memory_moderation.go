package store

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tastetrail/backend/internal/models"
)

type memReports struct{ m *Memory }

func (r memReports) Create(_ context.Context, rep *models.Report) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	for _, existing := range r.m.data.Reports {
		if existing.ReporterID == rep.ReporterID && existing.TargetID == rep.TargetID && existing.TargetType == rep.TargetType {
			return ErrDuplicate
		}
	}
	r.m.data.Reports[rep.ID] = *rep
	return nil
}

func (r memReports) Get(_ context.Context, id string) (*models.Report, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	rep, ok := r.m.data.Reports[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rep, nil
}

func (r memReports) Update(_ context.Context, rep *models.Report) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	if _, ok := r.m.data.Reports[rep.ID]; !ok {
		return ErrNotFound
	}
	r.m.data.Reports[rep.ID] = *rep
	return nil
}

func (r memReports) List(_ context.Context, f ReportFilter) ([]models.Report, int64, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	var out []models.Report
	for _, rep := range r.m.data.Reports {
		if f.Status != "" && rep.Status != f.Status {
			continue
		}
		if f.TargetType != "" && rep.TargetType != f.TargetType {
			continue
		}
		out = append(out, rep)
	}
	newestFirst(out, func(x models.Report) time.Time { return x.CreatedAt }, func(x models.Report) string { return x.ID })
	return page(out, f.Page), int64(len(out)), nil
}

func (r memReports) CountByStatus(_ context.Context, status models.ReportStatus) (int64, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	var n int64
	for _, rep := range r.m.data.Reports {
		if rep.Status == status {
			n++
		}
	}
	return n, nil
}

type memFlags struct{ m *Memory }

func (r memFlags) Escalate(_ context.Context, contentID string, contentType models.TargetType, sev models.Severity, reason models.ReportReason, now time.Time) (*models.ContentFlag, error) {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	for id, f := range r.m.data.Flags {
		if f.ContentID != contentID || f.ContentType != contentType {
			continue
		}
		f.Severity = f.Severity.Max(sev)
		f.ReportCount++
		f.Reasons = append(append([]models.ReportReason(nil), f.Reasons...), reason)
		f.UpdatedAt = now
		r.m.data.Flags[id] = f
		return &f, nil
	}
	f := models.ContentFlag{
		ID:          uuid.NewString(),
		ContentID:   contentID,
		ContentType: contentType,
		Severity:    sev,
		ReportCount: 1,
		Reasons:     []models.ReportReason{reason},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.m.data.Flags[f.ID] = f
	return &f, nil
}

func (r memFlags) Delete(_ context.Context, contentID string, contentType models.TargetType) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	for id, f := range r.m.data.Flags {
		if f.ContentID == contentID && f.ContentType == contentType {
			delete(r.m.data.Flags, id)
		}
	}
	return nil
}

func (r memFlags) List(_ context.Context, p Page) ([]models.ContentFlag, int64, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	out := make([]models.ContentFlag, 0, len(r.m.data.Flags))
	for _, f := range r.m.data.Flags {
		out = append(out, f)
	}
	sortFlags(out)
	return page(out, p), int64(len(out)), nil
}

// sortFlags orders flags most severe first, then most recently updated.
func sortFlags(flags []models.ContentFlag) {
	sort.SliceStable(flags, func(i, j int) bool {
		li, lj := flags[i].Severity.Level(), flags[j].Severity.Level()
		if li != lj {
			return li > lj
		}
		if !flags[i].UpdatedAt.Equal(flags[j].UpdatedAt) {
			return flags[i].UpdatedAt.After(flags[j].UpdatedAt)
		}
		return flags[i].ID < flags[j].ID
	})
}

type memModeration struct{ m *Memory }

func (r memModeration) CreateAction(_ context.Context, a *models.ModerationAction) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	if _, ok := r.m.data.Actions[a.ID]; ok {
		return ErrDuplicate
	}
	r.m.data.Actions[a.ID] = *a
	return nil
}

func (r memModeration) actionsFor(userID string) []models.ModerationAction {
	var out []models.ModerationAction
	for _, a := range r.m.data.Actions {
		if a.TargetUserID == userID {
			out = append(out, a)
		}
	}
	newestFirst(out, func(x models.ModerationAction) time.Time { return x.CreatedAt }, func(x models.ModerationAction) string { return x.ID })
	return out
}

func (r memModeration) ListActions(_ context.Context, targetUserID string) ([]models.ModerationAction, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	return r.actionsFor(targetUserID), nil
}

func (r memModeration) ActiveBan(_ context.Context, userID string, now time.Time) (*models.ModerationAction, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	for _, a := range r.actionsFor(userID) {
		if a.ActiveBanAt(now) {
			return &a, nil
		}
	}
	return nil, nil
}

func (r memModeration) ExpireBans(_ context.Context, userID string, now time.Time) (int64, error) {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	var n int64
	for id, a := range r.m.data.Actions {
		if a.TargetUserID != userID || !a.ActiveBanAt(now) {
			continue
		}
		expired := now
		a.ExpiresAt = &expired
		r.m.data.Actions[id] = a
		n++
	}
	return n, nil
}

func (r memModeration) CreateStrike(_ context.Context, s *models.UserStrike) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	if _, ok := r.m.data.Strikes[s.ID]; ok {
		return ErrDuplicate
	}
	r.m.data.Strikes[s.ID] = *s
	return nil
}

func (r memModeration) ListStrikes(_ context.Context, userID string) ([]models.UserStrike, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	var out []models.UserStrike
	for _, s := range r.m.data.Strikes {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	newestFirst(out, func(x models.UserStrike) time.Time { return x.CreatedAt }, func(x models.UserStrike) string { return x.ID })
	return out, nil
}
