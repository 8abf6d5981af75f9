package main

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/tastetrail/backend/internal/logging"
	"github.com/tastetrail/backend/internal/media"
)

// gcsFinalizeEvent is the subset of a Cloud Storage object we need.
type gcsFinalizeEvent struct {
	Bucket   string            `json:"bucket"`
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata"`
}

// cloudEventEnvelope is Eventarc's structured content mode, where the
// object sits under "data".
type cloudEventEnvelope struct {
	Data gcsFinalizeEvent `json:"data"`
}

type imageRewriter interface {
	ReplaceImage(ctx context.Context, oldURL, newURL string) (int64, error)
}

type worker struct {
	bucket    string
	storage   media.Storage
	moderator *media.Moderator
	reviews   imageRewriter
	timeout   time.Duration
}

func (wk *worker) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(logging.HTTPMiddleware(*logging.Component("media-worker")))
	r.Use(chimw.Recoverer)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/events", wk.handleFinalize)
	return r
}

func parseEvent(raw []byte) (gcsFinalizeEvent, error) {
	var ev gcsFinalizeEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return ev, err
	}
	if ev.Bucket == "" || ev.Name == "" {
		var env cloudEventEnvelope
		if err := json.Unmarshal(raw, &env); err == nil && env.Data.Name != "" {
			ev = env.Data
		}
	}
	return ev, nil
}

// handleFinalize answers 2xx for anything it will never be able to process
// and 5xx for transient failures so Eventarc retries.
func (wk *worker) handleFinalize(w http.ResponseWriter, r *http.Request) {
	log := logging.Ctx(r.Context()).With().
		Str("ce_type", r.Header.Get("Ce-Type")).
		Str("ce_subject", r.Header.Get("Ce-Subject")).
		Logger()

	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	ev, err := parseEvent(raw)
	if err != nil {
		log.Warn().Err(err).Msg("undecodable event")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	log = log.With().Str("bucket", ev.Bucket).Str("key", ev.Name).Logger()

	switch {
	case ev.Name == "":
		log.Warn().Msg("event without object name")
		w.WriteHeader(http.StatusOK)
		return
	case wk.bucket != "" && ev.Bucket != "" && ev.Bucket != wk.bucket:
		log.Warn().Msg("event for another bucket")
		w.WriteHeader(http.StatusOK)
		return
	case !strings.HasPrefix(ev.Name, media.PendingPrefix):
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), wk.timeout)
	defer cancel()

	// The API screens pending images itself when a review references them,
	// so the object may already be gone.
	exists, err := wk.storage.Exists(ctx, ev.Name)
	if err != nil {
		log.Error().Err(err).Msg("object lookup failed")
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if !exists {
		log.Info().Msg("object already handled")
		w.WriteHeader(http.StatusOK)
		return
	}

	userID := ev.Metadata["userId"]
	if userID == "" {
		if md, err := wk.storage.Metadata(ctx, ev.Name); err == nil {
			userID = md["userId"]
		} else {
			log.Warn().Err(err).Msg("metadata lookup failed; no strike can be recorded")
		}
	}

	d, err := wk.moderator.Moderate(ctx, ev.Name, userID)
	if err != nil {
		log.Error().Err(err).Msg("moderation failed")
		http.Error(w, "moderation failed", http.StatusInternalServerError)
		return
	}

	// Reviews may hold either the bare key or its public URL.
	next := d.URL
	for _, old := range []string{ev.Name, wk.storage.URL(ev.Name)} {
		n, err := wk.reviews.ReplaceImage(ctx, old, next)
		if err != nil {
			log.Error().Err(err).Msg("updating review images failed")
			http.Error(w, "update failed", http.StatusInternalServerError)
			return
		}
		if n > 0 {
			log.Info().Int64("reviews", n).Bool("rejected", d.Rejected).Msg("review images updated")
		}
	}
	log.Info().Str("user_id", userID).Bool("rejected", d.Rejected).Str("final", d.FinalKey).Msg("image moderated")
	w.WriteHeader(http.StatusOK)
}
