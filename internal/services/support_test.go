package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tastetrail/backend/internal/models"
)

type supportMail struct {
	ticket, name, email, message string
}

type fakeMailer struct {
	support []supportMail
	fail    bool
}

func (m *fakeMailer) SendModerationEmail(context.Context, string, string, string, string) error {
	return nil
}

func (m *fakeMailer) SendSupportEmail(_ context.Context, ticket, name, email, message string) error {
	if m.fail {
		return errors.New("smtp down")
	}
	m.support = append(m.support, supportMail{ticket, name, email, message})
	return nil
}

func TestSupportSubmit(t *testing.T) {
	env := newTestEnv(t)
	mailer := &fakeMailer{}
	svc := &SupportService{mailer: mailer, now: env.clock.Now}

	out, err := svc.Submit(context.Background(), &models.SupportRequest{
		Name:    "  Dana ",
		Email:   "dana@example.com",
		Message: "My review disappeared after I edited it.",
	}, ClientMeta{IP: "203.0.113.9"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !strings.HasPrefix(out.Ticket, "TT-20250301-120000-") || len(out.Ticket) != len("TT-20250301-120000-")+8 {
		t.Fatalf("ticket = %q", out.Ticket)
	}
	if len(mailer.support) != 1 || mailer.support[0].ticket != out.Ticket || mailer.support[0].name != "Dana" {
		t.Fatalf("mail = %+v", mailer.support)
	}
}

func TestSupportSubmitErrors(t *testing.T) {
	env := newTestEnv(t)

	svc := &SupportService{mailer: &fakeMailer{}, now: env.clock.Now}
	_, err := svc.Submit(context.Background(), &models.SupportRequest{Name: "Dana", Email: "not-an-email", Message: " "}, ClientMeta{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if verr.Fields["email"] == "" || verr.Fields["message"] == "" {
		t.Fatalf("fields = %v", verr.Fields)
	}

	svc = &SupportService{mailer: &fakeMailer{fail: true}, now: env.clock.Now}
	_, err = svc.Submit(context.Background(), &models.SupportRequest{Name: "Dana", Email: "dana@example.com", Message: "hi"}, ClientMeta{})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want upstream unavailable", err)
	}
}
