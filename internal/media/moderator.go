package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tastetrail/backend/internal/logging"
	"github.com/tastetrail/backend/internal/metrics"
)

var (
	ErrImageRejected = errors.New("image rejected: violates community guidelines")
	ErrImageMissing  = errors.New("image not found")
)

// StrikeIssuer records a penalty against the uploader of a rejected image.
type StrikeIssuer interface {
	IssueImageStrike(ctx context.Context, userID, key string) error
}

// Decision is the outcome of screening one pending object.
type Decision struct {
	Key      string
	FinalKey string
	URL      string
	Rejected bool
}

// Moderator screens pending uploads. With a nil detector it is disabled
// and every reference passes through unchanged.
type Moderator struct {
	storage  Storage
	detector Detector
	strikes  StrikeIssuer
}

func NewModerator(storage Storage, detector Detector, strikes StrikeIssuer) *Moderator {
	return &Moderator{storage: storage, detector: detector, strikes: strikes}
}

func (m *Moderator) Enabled() bool {
	return m != nil && m.detector != nil
}

// PendingKey resolves a client reference (a key or a public URL) to a
// pending object key.
func (m *Moderator) PendingKey(ref string) (string, bool) {
	key := ref
	if base := m.storage.URL(""); strings.HasPrefix(ref, base) {
		key = strings.TrimPrefix(ref, base)
	}
	if !strings.HasPrefix(key, PendingPrefix) {
		return "", false
	}
	return key, true
}

// Moderate runs SafeSearch on a pending object. Safe objects are promoted
// to the key without the pending prefix. Unsafe objects are deleted and
// the uploader gets a strike.
func (m *Moderator) Moderate(ctx context.Context, key, userID string) (*Decision, error) {
	log := logging.Ctx(ctx).With().Str("component", "media").Str("key", key).Logger()
	final := strings.TrimPrefix(key, PendingPrefix)

	res, err := m.detector.Detect(ctx, key)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("vision", "failure").Inc()
		return nil, fmt.Errorf("safesearch: %w", err)
	}
	metrics.UpstreamRequests.WithLabelValues("vision", "success").Inc()

	if res.IsUnsafe() {
		log.Warn().
			Str("user_id", userID).
			Str("adult", res.Adult).
			Str("violence", res.Violence).
			Str("racy", res.Racy).
			Msg("image rejected")
		if err := m.storage.Delete(ctx, key); err != nil && !errors.Is(err, ErrObjectNotFound) {
			log.Error().Err(err).Msg("failed to delete rejected image")
		}
		if m.strikes != nil && userID != "" {
			if err := m.strikes.IssueImageStrike(ctx, userID, key); err != nil {
				log.Error().Err(err).Str("user_id", userID).Msg("failed to record image strike")
			}
		}
		return &Decision{Key: key, FinalKey: final, Rejected: true}, nil
	}

	url, err := m.storage.Promote(ctx, key, final)
	if err != nil {
		return nil, fmt.Errorf("promote: %w", err)
	}
	log.Info().Str("final", final).Msg("image approved")
	return &Decision{Key: key, FinalKey: final, URL: url}, nil
}

// Review screens one reference at request time. A pending object that
// was already promoted by the worker resolves to its public URL.
func (m *Moderator) Review(ctx context.Context, ref, userID string) (string, error) {
	if !m.Enabled() {
		return ref, nil
	}
	key, ok := m.PendingKey(ref)
	if !ok {
		return ref, nil
	}

	exists, err := m.storage.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	if !exists {
		final := strings.TrimPrefix(key, PendingPrefix)
		if done, err := m.storage.Exists(ctx, final); err == nil && done {
			return m.storage.URL(final), nil
		}
		return "", ErrImageMissing
	}

	d, err := m.Moderate(ctx, key, userID)
	if err != nil {
		return "", err
	}
	if d.Rejected {
		return "", ErrImageRejected
	}
	return d.URL, nil
}

// ReviewAll screens refs in order and stops at the first failure.
func (m *Moderator) ReviewAll(ctx context.Context, refs []string, userID string) ([]string, error) {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		url, err := m.Review(ctx, ref, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, url)
	}
	return out, nil
}

// Remove deletes the objects behind public URLs, ignoring ones this
// storage does not serve.
func (m *Moderator) Remove(ctx context.Context, urls []string) {
	base := m.storage.URL("")
	for _, u := range urls {
		if !strings.HasPrefix(u, base) {
			continue
		}
		key := strings.TrimPrefix(u, base)
		if err := m.storage.Delete(ctx, key); err != nil && !errors.Is(err, ErrObjectNotFound) {
			logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("image cleanup failed")
		}
	}
}
