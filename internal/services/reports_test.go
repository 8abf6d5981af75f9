package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tastetrail/backend/internal/models"
	"github.com/tastetrail/backend/internal/store"
)

func TestSeverityAndActionTables(t *testing.T) {
	tests := []struct {
		reason models.ReportReason
		sev    models.Severity
		action models.ActionKind
	}{
		{models.ReasonHarassment, models.SeverityHigh, models.ActionContentRemoval},
		{models.ReasonHateSpeech, models.SeverityHigh, models.ActionContentRemoval},
		{models.ReasonViolence, models.SeverityHigh, models.ActionContentRemoval},
		{models.ReasonInappropriate, models.SeverityMedium, models.ActionWarning},
		{models.ReasonMisinformation, models.SeverityMedium, models.ActionContentRemoval},
		{models.ReasonFakeReview, models.SeverityMedium, models.ActionContentRemoval},
		{models.ReasonSpam, models.SeverityLow, models.ActionWarning},
		{models.ReasonOther, models.SeverityLow, models.ActionWarning},
	}
	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			if got := SeverityFor(tt.reason); got != tt.sev {
				t.Errorf("severity = %s, want %s", got, tt.sev)
			}
			if got := ActionFor(tt.reason); got != tt.action {
				t.Errorf("action = %s, want %s", got, tt.action)
			}
		})
	}
}

func TestReportApproveHidesReviewAndNotifies(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	author := env.user(t, "author", models.RoleUser)
	reporter := env.user(t, "reporter", models.RoleUser)
	mod := env.user(t, "mod", models.RoleModerator)
	r := env.restaurant(t, "Luigi's", "")
	rv := env.review(t, author, r, 2)

	report, err := env.svc.Reports.Create(ctx, actorOf(reporter), &models.CreateReportRequest{
		TargetID:   rv.ID,
		TargetType: models.TargetReview,
		Reason:     "Harassment",
	})
	if err != nil {
		t.Fatalf("create report: %v", err)
	}
	if report.Status != models.ReportPending {
		t.Fatalf("status = %s", report.Status)
	}
	flags, _ := env.svc.Reports.Flags(ctx, PageRequest{})
	if flags.Total != 1 || flags.Items[0].Severity != models.SeverityHigh {
		t.Fatalf("expected one HIGH flag, got %+v", flags)
	}
	if n := countType(env.notifications(t, mod.ID), models.NotifyReportCreated); n != 1 {
		t.Fatalf("moderator got %d report_created notifications", n)
	}

	resolved, err := env.svc.Reports.Approve(ctx, actorOf(mod), report.ID, &models.ResolveReportRequest{})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if resolved.Status != models.ReportResolved || resolved.ActionID == "" {
		t.Fatalf("resolved report = %+v", resolved)
	}

	stored, _ := env.store.Reviews().Get(ctx, rv.ID)
	if !stored.IsHidden {
		t.Fatal("review should be hidden")
	}
	actions, _ := env.store.Moderation().ListActions(ctx, author.ID)
	if len(actions) != 1 || actions[0].Kind != models.ActionContentRemoval {
		t.Fatalf("actions = %+v", actions)
	}
	if flags, _ := env.svc.Reports.Flags(ctx, PageRequest{}); flags.Total != 0 {
		t.Fatalf("flag should be deleted, got %+v", flags.Items)
	}
	if n := countType(env.notifications(t, reporter.ID), models.NotifyReportResolved); n != 1 {
		t.Fatalf("reporter got %d report_resolved notifications", n)
	}
	if n := countType(env.notifications(t, author.ID), models.NotifyModerationAction); n != 1 {
		t.Fatalf("author got %d moderation_action notifications", n)
	}

	if _, err := env.svc.Reviews.Get(ctx, actorOf(reporter), rv.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("hidden review visible to a stranger: %v", err)
	}

	_, err = env.svc.Reports.Approve(ctx, actorOf(mod), report.ID, &models.ResolveReportRequest{})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("second approval: got %v, want conflict", err)
	}
	_, err = env.svc.Reports.Reject(ctx, actorOf(mod), report.ID, &models.ResolveReportRequest{})
	if !errors.Is(err, ErrReportClosed) {
		t.Fatalf("reject after approval: got %v", err)
	}
}

func TestReportUserTargetGetsStrike(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	target := env.user(t, "target", models.RoleUser)
	reporter := env.user(t, "reporter", models.RoleUser)
	admin := env.user(t, "admin", models.RoleAdmin)

	report, err := env.svc.Reports.Create(ctx, actorOf(reporter), &models.CreateReportRequest{
		TargetID:   target.ID,
		TargetType: models.TargetUser,
		Reason:     "SPAM",
	})
	if err != nil {
		t.Fatal(err)
	}
	if flags, _ := env.svc.Reports.Flags(ctx, PageRequest{}); flags.Total != 0 {
		t.Fatal("LOW severity must not raise a flag at the default threshold")
	}
	if _, err := env.svc.Reports.Investigate(ctx, actorOf(admin), report.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.Reports.Approve(ctx, actorOf(admin), report.ID, &models.ResolveReportRequest{Resolution: "spam links"}); err != nil {
		t.Fatal(err)
	}

	strikes, _ := env.store.Moderation().ListStrikes(ctx, target.ID)
	if len(strikes) != 1 || strikes[0].ExpiresAt == nil {
		t.Fatalf("strikes = %+v", strikes)
	}
	want := env.clock.Now().Add(env.cfg.Moderation.WarningStrikeTTL)
	if !strikes[0].ExpiresAt.Equal(want) {
		t.Fatalf("strike expires %v, want %v", strikes[0].ExpiresAt, want)
	}
}

func TestReportCreateErrors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	author := env.user(t, "author", models.RoleUser)
	reporter := env.user(t, "reporter", models.RoleUser)
	r := env.restaurant(t, "Corner Cafe", "")
	rv := env.review(t, author, r, 4)

	req := func(id string, typ models.TargetType) *models.CreateReportRequest {
		return &models.CreateReportRequest{TargetID: id, TargetType: typ, Reason: "OTHER"}
	}
	if _, err := env.svc.Reports.Create(ctx, actorOf(reporter), req(rv.ID, models.TargetReview)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		req  *models.CreateReportRequest
		want error
	}{
		{"duplicate", req(rv.ID, models.TargetReview), ErrConflict},
		{"missing target", req("nope", models.TargetReview), ErrNotFound},
		{"self report", req(reporter.ID, models.TargetUser), ErrValidation},
		{"bad reason", &models.CreateReportRequest{TargetID: rv.ID, TargetType: models.TargetReview, Reason: "boring"}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Reports.Create(ctx, actorOf(reporter), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestReportRejectLeavesContent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	author := env.user(t, "author", models.RoleUser)
	reporter := env.user(t, "reporter", models.RoleUser)
	mod := env.user(t, "mod", models.RoleModerator)
	rv := env.review(t, author, env.restaurant(t, "Taqueria", ""), 5)

	report, err := env.svc.Reports.Create(ctx, actorOf(reporter), &models.CreateReportRequest{
		TargetID: rv.ID, TargetType: models.TargetReview, Reason: "FAKE_REVIEW",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.Reports.Reject(ctx, actorOf(mod), report.ID, &models.ResolveReportRequest{}); err != nil {
		t.Fatal(err)
	}
	stored, _ := env.store.Reviews().Get(ctx, rv.ID)
	if stored.IsHidden {
		t.Fatal("rejected report must not hide the review")
	}
	list, _ := env.svc.Reports.List(ctx, models.ReportRejected, "", PageRequest{})
	if list.Total != 1 {
		t.Fatalf("rejected reports = %d", list.Total)
	}
	if _, err := env.svc.Reports.Investigate(ctx, actorOf(mod), report.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("investigate closed report: %v", err)
	}
	resolved, _, _ := env.store.Reports().List(ctx, store.ReportFilter{Status: models.ReportResolved})
	if len(resolved) != 0 {
		t.Fatal("no report should be resolved")
	}
}
