package services

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tastetrail/backend/internal/auth"
	"github.com/tastetrail/backend/internal/authz"
	"github.com/tastetrail/backend/internal/cache"
	"github.com/tastetrail/backend/internal/config"
	"github.com/tastetrail/backend/internal/models"
	"github.com/tastetrail/backend/internal/notify"
	"github.com/tastetrail/backend/internal/store"
)

const testPassword = "correct-horse-battery"

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingBus struct {
	mu     sync.Mutex
	events []*notify.Event
}

func (b *recordingBus) Publish(_ context.Context, ev *notify.Event) error {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
	return nil
}

// types returns the event types published for userID, in order.
func (b *recordingBus) types(userID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, ev := range b.events {
		if ev.UserID == userID {
			out = append(out, ev.Type)
		}
	}
	return out
}

type testEnv struct {
	svc   *Services
	store store.Store
	bus   *recordingBus
	clock *clock
	cfg   *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Auth.BcryptCost = bcrypt.MinCost

	enforcer, err := authz.NewEnforcer()
	if err != nil {
		t.Fatalf("enforcer: %v", err)
	}
	env := &testEnv{
		store: store.NewMemory(),
		bus:   &recordingBus{},
		clock: &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		cfg:   cfg,
	}
	env.svc = New(Options{
		Store:    env.store,
		Cache:    cache.NewMemoryCache(),
		Bus:      env.bus,
		Tokens:   auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL),
		Enforcer: enforcer,
		Config:   cfg,
		Now:      env.clock.Now,
	})
	t.Cleanup(env.svc.Effects.Wait)
	return env
}

func (e *testEnv) user(t *testing.T, name string, role models.Role) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	u := &models.User{
		ID:           "u-" + name,
		Email:        name + "@example.com",
		Username:     name,
		PasswordHash: string(hash),
		Name:         name,
		Role:         role,
		CreatedAt:    e.clock.Now(),
		UpdatedAt:    e.clock.Now(),
	}
	if err := e.store.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return u
}

func (e *testEnv) restaurant(t *testing.T, name, ownerID string) *models.Restaurant {
	t.Helper()
	r := &models.Restaurant{
		ID:         "r-" + models.RestaurantKey(name),
		Name:       name,
		NameKey:    models.RestaurantKey(name),
		Address:    "1 Main St",
		Latitude:   40.7128,
		Longitude:  -74.0060,
		PriceTier:  2,
		Categories: []string{"pizza"},
		OwnerID:    ownerID,
		CreatedAt:  e.clock.Now(),
		UpdatedAt:  e.clock.Now(),
	}
	if err := e.store.Restaurants().Create(context.Background(), r); err != nil {
		t.Fatalf("seed restaurant %s: %v", name, err)
	}
	return r
}

func (e *testEnv) review(t *testing.T, author *models.User, r *models.Restaurant, rating int) *models.ReviewView {
	t.Helper()
	rv, err := e.svc.Reviews.Create(context.Background(), actorOf(author), &models.CreateReviewRequest{
		RestaurantID: r.ID,
		Rating:       rating,
		Content:      "The crust was crisp and the sauce was bright.",
	})
	if err != nil {
		t.Fatalf("create review: %v", err)
	}
	return rv
}

// notifications returns every stored notification of userID, newest first.
func (e *testEnv) notifications(t *testing.T, userID string) []models.Notification {
	t.Helper()
	items, _, err := e.store.Notifications().List(context.Background(), userID, false, store.Page{})
	if err != nil {
		t.Fatal(err)
	}
	return items
}

func countType(notes []models.Notification, typ models.NotificationType) int {
	n := 0
	for _, note := range notes {
		if note.Type == typ {
			n++
		}
	}
	return n
}

func actorOf(u *models.User) Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

func TestPageRequestNormalize(t *testing.T) {
	tests := []struct {
		in         PageRequest
		wantOffset int
		wantLimit  int
	}{
		{PageRequest{}, 0, 20},
		{PageRequest{Page: 3, Limit: 10}, 20, 10},
		{PageRequest{Page: -1, Limit: 1000}, 0, 100},
		{PageRequest{Page: math.MaxInt / 50, Limit: 100}, (maxPage - 1) * 100, 100},
	}
	for _, tt := range tests {
		got := tt.in.store()
		if got.Offset != tt.wantOffset || got.Limit != tt.wantLimit {
			t.Errorf("%+v: got %+v", tt.in, got)
		}
	}
}
