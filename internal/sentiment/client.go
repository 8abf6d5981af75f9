// Package sentiment labels review text through an OpenAI-compatible chat
// completions endpoint.
package sentiment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tastetrail/backend/internal/config"
	"github.com/tastetrail/backend/internal/logging"
	"github.com/tastetrail/backend/internal/metrics"
)

const (
	Positive = "positive"
	Neutral  = "neutral"
	Negative = "negative"

	maxTags = 5
)

var ErrBadOutput = errors.New("sentiment: unusable model output")

const systemPrompt = `You label restaurant reviews. Reply with a JSON object only:
{"sentiment": "positive" | "neutral" | "negative", "tags": [up to 5 short lowercase topic tags such as "service", "price", "ambience", or a dish name]}`

type Result struct {
	Sentiment string   `json:"sentiment"`
	Tags      []string `json:"tags"`
}

type Analyzer interface {
	Analyze(ctx context.Context, text string) (*Result, error)
}

// Client calls the model behind a circuit breaker so an unavailable
// upstream fails fast instead of holding request goroutines.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	http     *http.Client
	cb       *gobreaker.CircuitBreaker[*Result]
}

func NewClient(cfg config.SentimentConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	log := logging.Component("sentiment")
	cb := gobreaker.NewCircuitBreaker[*Result](gobreaker.Settings{
		Name:        "sentiment",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// A malformed answer is the model's fault, not the upstream's.
			return err == nil || errors.Is(err, ErrBadOutput)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		http:     &http.Client{Timeout: timeout},
		cb:       cb,
	}
}

func (c *Client) Analyze(ctx context.Context, text string) (*Result, error) {
	res, err := c.cb.Execute(func() (*Result, error) {
		return c.call(ctx, text)
	})
	switch {
	case err == nil:
		metrics.UpstreamRequests.WithLabelValues("sentiment", "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.UpstreamRequests.WithLabelValues("sentiment", "rejected").Inc()
	default:
		metrics.UpstreamRequests.WithLabelValues("sentiment", "failure").Inc()
	}
	return res, err
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) call(ctx context.Context, text string) (*Result, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: text},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("sentiment upstream status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode sentiment response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, ErrBadOutput
	}
	return parseResult(out.Choices[0].Message.Content)
}

func parseResult(content string) (*Result, error) {
	var r Result
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadOutput, err)
	}
	r.Sentiment = strings.ToLower(strings.TrimSpace(r.Sentiment))
	switch r.Sentiment {
	case Positive, Neutral, Negative:
	default:
		return nil, fmt.Errorf("%w: sentiment %q", ErrBadOutput, r.Sentiment)
	}

	seen := make(map[string]bool)
	tags := make([]string, 0, len(r.Tags))
	for _, t := range r.Tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
		if len(tags) == maxTags {
			break
		}
	}
	r.Tags = tags
	return &r, nil
}
