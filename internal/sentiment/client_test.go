package sentiment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tastetrail/backend/internal/config"
)

func replyWith(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var resp chatResponse
		resp.Choices = append(resp.Choices, struct {
			Message chatMessage `json:"message"`
		}{Message: chatMessage{Role: "assistant", Content: content}})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func newTestClient(url string) *Client {
	return NewClient(config.SentimentConfig{Endpoint: url, APIKey: "k", Model: "test", Timeout: time.Second})
}

func TestAnalyzeParsesModelOutput(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		replyWith(`{"sentiment":"Positive","tags":["Service"," price ","service","a","b","c","d"]}`)(w, r)
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Analyze(context.Background(), "Lovely staff and fair prices.")
	if err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer k" {
		t.Fatalf("Authorization header = %q", gotAuth)
	}
	if res.Sentiment != Positive {
		t.Fatalf("sentiment = %q", res.Sentiment)
	}
	want := []string{"service", "price", "a", "b", "c"}
	if len(res.Tags) != len(want) {
		t.Fatalf("tags = %v, want %v", res.Tags, want)
	}
	for i := range want {
		if res.Tags[i] != want[i] {
			t.Fatalf("tags = %v, want %v", res.Tags, want)
		}
	}
}

func TestAnalyzeRejectsUnknownLabel(t *testing.T) {
	srv := httptest.NewServer(replyWith(`{"sentiment":"ecstatic","tags":[]}`))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Analyze(context.Background(), "text")
	if !errors.Is(err, ErrBadOutput) {
		t.Fatalf("got %v, want ErrBadOutput", err)
	}
}

func TestBreakerOpensAfterUpstreamFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	for i := 0; i < 5; i++ {
		if _, err := c.Analyze(context.Background(), "text"); err == nil {
			t.Fatal("expected upstream error")
		}
	}
	_, err := c.Analyze(context.Background(), "text")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("sixth call: got %v, want open breaker", err)
	}
	if n := atomic.LoadInt32(&hits); n != 5 {
		t.Fatalf("upstream hit %d times, want 5", n)
	}
}
