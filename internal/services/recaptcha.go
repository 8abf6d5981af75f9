package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tastetrail/backend/internal/logging"
	"github.com/tastetrail/backend/internal/metrics"
)

// RecaptchaVerifier checks reCAPTCHA v2 tokens against Google's siteverify
// endpoint. A nil verifier accepts everything.
type RecaptchaVerifier struct {
	Secret     string
	HTTPClient *http.Client
	Endpoint   string
}

// NewRecaptchaVerifier returns nil for an empty secret.
func NewRecaptchaVerifier(secret string) *RecaptchaVerifier {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil
	}
	return &RecaptchaVerifier{
		Secret:     secret,
		Endpoint:   "https://www.google.com/recaptcha/api/siteverify",
		HTTPClient: &http.Client{Timeout: 8 * time.Second},
	}
}

type siteverifyResponse struct {
	Success    bool      `json:"success"`
	ChallengeT time.Time `json:"challenge_ts"`
	Hostname   string    `json:"hostname"`
	ErrorCodes []string  `json:"error-codes"`
}

// Check verifies token for the named form. A missing or rejected token is
// a validation error on recaptcha_token; an unreachable siteverify is
// ErrUpstreamUnavailable.
func (v *RecaptchaVerifier) Check(ctx context.Context, form, token, remoteIP string) error {
	if v == nil {
		return nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return invalid("recaptcha_token", "reCAPTCHA token is required")
	}
	out, err := v.siteverify(ctx, token, remoteIP)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("form", form).Msg("recaptcha verify failed")
		return fmt.Errorf("recaptcha: %w", ErrUpstreamUnavailable)
	}
	if !out.Success {
		reason := strings.Join(out.ErrorCodes, ",")
		if reason == "" {
			reason = "verification_failed"
		}
		logging.Ctx(ctx).Info().Str("form", form).Str("reason", reason).Str("ip", remoteIP).Msg("recaptcha rejected")
		return invalid("recaptcha_token", "captcha verification failed")
	}
	return nil
}

func (v *RecaptchaVerifier) siteverify(ctx context.Context, token, remoteIP string) (*siteverifyResponse, error) {
	form := url.Values{"secret": {v.Secret}, "response": {token}}
	if ip := strings.TrimSpace(remoteIP); ip != "" {
		form.Set("remoteip", ip)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := v.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 8 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("recaptcha", "failure").Inc()
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamRequests.WithLabelValues("recaptcha", "failure").Inc()
		return nil, fmt.Errorf("siteverify http %d", resp.StatusCode)
	}
	metrics.UpstreamRequests.WithLabelValues("recaptcha", "success").Inc()

	var out siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
