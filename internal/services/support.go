package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tastetrail/backend/internal/logging"
	"github.com/tastetrail/backend/internal/models"
)

// SupportService forwards contact form submissions to the support inbox.
type SupportService struct {
	mailer    Mailer
	recaptcha *RecaptchaVerifier
	now       func() time.Time
}

func (s *SupportService) Submit(ctx context.Context, req *models.SupportRequest, meta ClientMeta) (*models.SupportTicket, error) {
	if err := Validated(req.Validate()); err != nil {
		return nil, err
	}
	if err := s.recaptcha.Check(ctx, "support", req.RecaptchaToken, meta.IP); err != nil {
		return nil, err
	}

	ticket := s.ticket()
	if err := s.mailer.SendSupportEmail(ctx, ticket, req.Name, req.Email, req.Message); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("ticket", ticket).Msg("support email failed")
		return nil, fmt.Errorf("send support email: %w", ErrUpstreamUnavailable)
	}
	logging.Ctx(ctx).Info().Str("ticket", ticket).Msg("support request forwarded")
	return &models.SupportTicket{Ticket: ticket}, nil
}

// ticket looks like TT-20260131-032508-A1B2C3D4.
func (s *SupportService) ticket() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "TT-" + s.now().UTC().Format("20060102-150405") + "-" + id[:8]
}
