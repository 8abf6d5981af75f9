// Package services holds the application logic behind the HTTP handlers.
// Core writes go through store transactions; notifications, cache
// invalidation and enrichment run afterwards as best-effort effects.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/tastetrail/backend/internal/auth"
	"github.com/tastetrail/backend/internal/authz"
	"github.com/tastetrail/backend/internal/cache"
	"github.com/tastetrail/backend/internal/config"
	"github.com/tastetrail/backend/internal/media"
	"github.com/tastetrail/backend/internal/models"
	"github.com/tastetrail/backend/internal/notify"
	"github.com/tastetrail/backend/internal/sentiment"
	"github.com/tastetrail/backend/internal/store"
)

// Actor is the authenticated caller. Role is the role carried by the
// access token.
type Actor struct {
	ID   string
	Role models.Role
}

func (a Actor) IsStaff() bool {
	return a.Role.IsStaff()
}

type Options struct {
	Store    store.Store
	Cache    cache.Cache
	Bus      notify.Publisher
	Tokens   *auth.Manager
	Enforcer *authz.Enforcer
	Config   *config.Config

	// Optional collaborators. Nil disables the feature.
	Analyzer      sentiment.Analyzer
	MediaStorage  media.Storage
	MediaDetector media.Detector
	Mailer        Mailer
	Recaptcha     *RecaptchaVerifier

	Now func() time.Time
}

type Services struct {
	Auth          *AuthService
	Users         *UserService
	Restaurants   *RestaurantService
	Reviews       *ReviewService
	Comments      *CommentService
	Reports       *ReportService
	Moderation    *ModerationService
	Claims        *ClaimService
	Notifications *NotificationService
	Admin         *AdminService
	Owner         *OwnerService
	// Support is nil when no mailer is configured.
	Support       *SupportService

	Media   *media.Moderator
	Uploads *media.Uploader
	Effects *Effects
}

func New(opts Options) *Services {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	cfg := opts.Config
	st := opts.Store
	fx := NewEffects(cfg.Server.RequestTimeout)

	notes := &NotificationService{store: st, bus: opts.Bus, now: now}
	trending := &trendingCache{cache: opts.Cache, ttl: cfg.Cache.TrendingTTL}

	mod := &ModerationService{
		store:      st,
		notes:      notes,
		mailer:     opts.Mailer,
		enforcer:   opts.Enforcer,
		effects:    fx,
		trending:   trending,
		warningTTL: cfg.Moderation.WarningStrikeTTL,
		now:        now,
	}

	var mediaMod *media.Moderator
	var uploads *media.Uploader
	if opts.MediaStorage != nil {
		mediaMod = media.NewModerator(opts.MediaStorage, opts.MediaDetector, mod)
		uploads = media.NewUploader(opts.MediaStorage, cfg.Media.MaxUploadSizeMB<<20, opts.MediaDetector != nil)
	}

	restaurants := &RestaurantService{
		store:          st,
		enforcer:       opts.Enforcer,
		trending:       trending,
		policy:         cfg.Ranking.Restaurant,
		candidateLimit: cfg.Ranking.CandidateLimit,
		now:            now,
	}
	reviews := &ReviewService{
		store:          st,
		notes:          notes,
		analyzer:       opts.Analyzer,
		media:          mediaMod,
		effects:        fx,
		trending:       trending,
		enforcer:       opts.Enforcer,
		policy:         cfg.Ranking.Review,
		candidateLimit: cfg.Ranking.CandidateLimit,
		now:            now,
	}

	var support *SupportService
	if opts.Mailer != nil {
		support = &SupportService{mailer: opts.Mailer, recaptcha: opts.Recaptcha, now: now}
	}

	return &Services{
		Support: support,
		Auth: &AuthService{
			store:      st,
			tokens:     opts.Tokens,
			moderation: mod,
			recaptcha:  opts.Recaptcha,
			bcryptCost: cfg.Auth.BcryptCost,
			now:        now,
		},
		Users:       &UserService{store: st, notes: notes, effects: fx, now: now},
		Restaurants: restaurants,
		Reviews:     reviews,
		Comments:    &CommentService{store: st, notes: notes, reviews: reviews, now: now},
		Reports: &ReportService{
			store:      st,
			notes:      notes,
			effects:    fx,
			trending:   trending,
			threshold:  models.Severity(cfg.Moderation.FlagThreshold),
			warningTTL: cfg.Moderation.WarningStrikeTTL,
			now:        now,
		},
		Moderation:    mod,
		Claims:        &ClaimService{store: st, notes: notes, effects: fx, now: now},
		Notifications: notes,
		Admin:         &AdminService{store: st, notes: notes},
		Owner:         &OwnerService{store: st, restaurants: restaurants, reviews: reviews, enforcer: opts.Enforcer},
		Media:         mediaMod,
		Uploads:       uploads,
		Effects:       fx,
	}
}

// notFoundAs translates store.ErrNotFound into an entity error.
func notFoundAs(err, as error) error {
	if errors.Is(err, store.ErrNotFound) {
		return as
	}
	return err
}

// duplicateAs translates store.ErrDuplicate into a conflict error.
func duplicateAs(err, as error) error {
	if errors.Is(err, store.ErrDuplicate) {
		return as
	}
	return err
}

// maxPage bounds Page so (Page-1)*Limit stays far from int overflow.
// Anything past it reads as an empty page.
const maxPage = 100_000

// PageRequest is a 1-based page and its size.
type PageRequest struct {
	Page  int
	Limit int
}

func (p PageRequest) normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > maxPage {
		p.Page = maxPage
	}
	if p.Limit < 1 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	return p
}

func (p PageRequest) store() store.Page {
	p = p.normalize()
	return store.Page{Offset: (p.Page - 1) * p.Limit, Limit: p.Limit}
}

func pageOf[T any](items []T, total int64, p PageRequest) models.Page[T] {
	p = p.normalize()
	return models.NewPage(items, total, p.Page, p.Limit)
}

// publicUsers loads authors for display, skipping ids that no longer exist.
func publicUsers(ctx context.Context, users store.UserRepository, ids []string) (map[string]*models.PublicUser, error) {
	out := make(map[string]*models.PublicUser, len(ids))
	for _, id := range ids {
		if _, ok := out[id]; ok || id == "" {
			continue
		}
		u, err := users.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		pu := u.Public()
		out[id] = &pu
	}
	return out, nil
}
