package models

import (
	"strings"

	"github.com/tastetrail/backend/internal/validation"
)

// SupportRequest is a contact form submission. Signed-out visitors may
// send one, so reCAPTCHA guards it when configured.
type SupportRequest struct {
	Name           string `json:"name" validate:"notblank,max=120"`
	Email          string `json:"email" validate:"required,email,max=254"`
	Message        string `json:"message" validate:"notblank,max=4000"`
	RecaptchaToken string `json:"recaptcha_token,omitempty"`
}

func (r *SupportRequest) Validate() map[string]string {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Message = strings.TrimSpace(r.Message)
	r.RecaptchaToken = strings.TrimSpace(r.RecaptchaToken)
	return validation.Struct(r)
}

type SupportTicket struct {
	Ticket string `json:"ticket"`
}
