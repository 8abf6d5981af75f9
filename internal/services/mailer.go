package services

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tastetrail/backend/internal/metrics"
)

// Mailer sends account and support emails. Moderation mail is best-effort.
type Mailer interface {
	SendModerationEmail(ctx context.Context, toEmail, toName, subject, body string) error
	SendSupportEmail(ctx context.Context, ticket, fromName, fromEmail, message string) error
}

type SendGridMailer struct {
	APIKey       string
	FromEmail    string
	FromName     string
	// SupportInbox receives contact form mail. Defaults to FromEmail.
	SupportInbox string
	HTTPClient   *http.Client
	Endpoint     string
}

// NewSendGridMailer returns nil when the API key or sender is missing.
func NewSendGridMailer(apiKey, fromEmail string) *SendGridMailer {
	apiKey, fromEmail = strings.TrimSpace(apiKey), strings.TrimSpace(fromEmail)
	if apiKey == "" || fromEmail == "" {
		return nil
	}
	return &SendGridMailer{
		APIKey:    apiKey,
		FromEmail: fromEmail,
		FromName:  "Taste Trail",
		Endpoint:  "https://api.sendgrid.com/v3/mail/send",
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type sendGridEmailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridPersonalization struct {
	To         []sendGridEmailAddress `json:"to"`
	Subject    string                 `json:"subject"`
	CustomArgs map[string]string      `json:"custom_args,omitempty"`
}

type sendGridMailSendRequest struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridEmailAddress      `json:"from"`
	ReplyTo          *sendGridEmailAddress     `json:"reply_to,omitempty"`
	Content          []sendGridContent         `json:"content"`
}

func (m *SendGridMailer) SendModerationEmail(ctx context.Context, toEmail, toName, subject, body string) error {
	if m == nil {
		return fmt.Errorf("sendgrid mailer not configured")
	}
	toEmail = strings.TrimSpace(toEmail)
	if toEmail == "" {
		return fmt.Errorf("missing recipient address")
	}

	name := strings.TrimSpace(toName)
	greeting := "Hello,"
	if name != "" {
		greeting = fmt.Sprintf("Hello %s,", name)
	}
	plain := fmt.Sprintf(
		"%s\n\n%s\n\nIf you believe this was a mistake, reply to this email and our moderation team will take another look.\n",
		greeting,
		strings.TrimSpace(body),
	)
	return m.send(ctx, sendGridPersonalization{
		To:         []sendGridEmailAddress{{Email: toEmail, Name: name}},
		Subject:    subject,
		CustomArgs: map[string]string{"category": "moderation"},
	}, nil, plain)
}

// SendSupportEmail forwards a contact form submission to the support inbox
// with the sender set as reply-to.
func (m *SendGridMailer) SendSupportEmail(ctx context.Context, ticket, fromName, fromEmail, message string) error {
	if m == nil {
		return fmt.Errorf("sendgrid mailer not configured")
	}
	inbox := m.SupportInbox
	if inbox == "" {
		inbox = m.FromEmail
	}
	plain := fmt.Sprintf("Ticket: %s\nFrom: %s <%s>\n\n%s\n", ticket, fromName, fromEmail, message)
	return m.send(ctx, sendGridPersonalization{
		To:         []sendGridEmailAddress{{Email: inbox}},
		Subject:    fmt.Sprintf("[%s] Support request from %s", ticket, fromName),
		CustomArgs: map[string]string{"category": "support", "ticket": ticket},
	}, &sendGridEmailAddress{Email: fromEmail, Name: fromName}, plain)
}

func (m *SendGridMailer) send(ctx context.Context, p sendGridPersonalization, replyTo *sendGridEmailAddress, plain string) error {
	reqBody := sendGridMailSendRequest{
		Personalizations: []sendGridPersonalization{p},
		From: sendGridEmailAddress{
			Email: m.FromEmail,
			Name:  m.FromName,
		},
		ReplyTo: replyTo,
		Content: []sendGridContent{
			{Type: "text/plain", Value: plain},
		},
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := m.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("sendgrid", "failure").Inc()
		return err
	}
	defer resp.Body.Close()

	// SendGrid returns 202 Accepted on success.
	if resp.StatusCode != http.StatusAccepted {
		metrics.UpstreamRequests.WithLabelValues("sendgrid", "failure").Inc()
		return fmt.Errorf("sendgrid mail send http %d", resp.StatusCode)
	}
	metrics.UpstreamRequests.WithLabelValues("sendgrid", "success").Inc()
	return nil
}
