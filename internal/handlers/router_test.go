package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"

	"github.com/tastetrail/backend/internal/auth"
	"github.com/tastetrail/backend/internal/authz"
	"github.com/tastetrail/backend/internal/cache"
	"github.com/tastetrail/backend/internal/config"
	"github.com/tastetrail/backend/internal/notify"
	"github.com/tastetrail/backend/internal/services"
	"github.com/tastetrail/backend/internal/store"
)

const (
	adminEmail    = "root@example.com"
	adminPassword = "admin-password-123"
)

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Errors  map[string]string `json:"errors"`
}

type testServer struct {
	*httptest.Server
	svc *services.Services
	bus *readyBus
}

// readyBus signals once the hub has subscribed, so tests never publish
// into a bus nobody is listening on.
type readyBus struct {
	*notify.LocalBus
	ready chan struct{}
}

func (b *readyBus) Subscribe(ctx context.Context) (<-chan *notify.Event, error) {
	ch, err := b.LocalBus.Subscribe(ctx)
	close(b.ready)
	return ch, err
}

func newTestServer(t *testing.T, mods ...func(*services.Options)) *testServer {
	t.Helper()
	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Auth.BcryptCost = bcrypt.MinCost
	cfg.RateLimit.AuthRequests = 0
	cfg.RateLimit.ReportRequests = 0

	enforcer, err := authz.NewEnforcer()
	if err != nil {
		t.Fatalf("enforcer: %v", err)
	}
	bus := &readyBus{LocalBus: notify.NewLocalBus(), ready: make(chan struct{})}
	opts := services.Options{
		Store:    store.NewMemory(),
		Cache:    cache.NewMemoryCache(),
		Bus:      bus,
		Tokens:   auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL),
		Enforcer: enforcer,
		Config:   cfg,
	}
	for _, mod := range mods {
		mod(&opts)
	}
	svc := services.New(opts)
	if err := svc.Auth.BootstrapAdmin(context.Background(), adminEmail, adminPassword); err != nil {
		t.Fatalf("bootstrap admin: %v", err)
	}

	hub := notify.NewHub(16)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.Run(ctx, bus) }()
	<-bus.ready

	srv := httptest.NewServer(NewRouter(RouterDeps{Config: cfg, Services: svc, Enforcer: enforcer, Hub: hub}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		svc.Effects.Wait()
	})
	return &testServer{Server: srv, svc: svc, bus: bus}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (*http.Response, envelope) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.send(t, req)
}

func (s *testServer) send(t *testing.T, req *http.Request) (*http.Response, envelope) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("%s %s: decode: %v", req.Method, req.URL.Path, err)
	}
	return resp, env
}

// expect fails the test unless the response has the given status, then
// decodes data into out when out is non-nil.
func expect(t *testing.T, resp *http.Response, env envelope, status int, out interface{}) {
	t.Helper()
	if resp.StatusCode != status {
		t.Fatalf("%s %s: status %d (%s %s), want %d", resp.Request.Method, resp.Request.URL.Path,
			resp.StatusCode, env.Code, env.Error, status)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
}

type session struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	User         struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Role     string `json:"role"`
	} `json:"user"`
}

func (s *testServer) register(t *testing.T, name, role string) session {
	t.Helper()
	resp, env := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    name + "@example.com",
		"username": name,
		"password": "password-" + name,
		"name":     strings.ToUpper(name[:1]) + name[1:],
		"role":     role,
	})
	var out session
	expect(t, resp, env, http.StatusCreated, &out)
	return out
}

func (s *testServer) login(t *testing.T, email, password string) session {
	t.Helper()
	resp, env := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	var out session
	expect(t, resp, env, http.StatusOK, &out)
	return out
}

type idOnly struct {
	ID string `json:"id"`
}

func (s *testServer) restaurant(t *testing.T, token, name string) string {
	t.Helper()
	resp, env := s.do(t, http.MethodPost, "/api/restaurants", token, map[string]interface{}{
		"name":       name,
		"address":    "12 Mott St, New York",
		"latitude":   40.7146,
		"longitude":  -73.9983,
		"price_tier": 2,
		"categories": []string{"dumplings"},
	})
	var out idOnly
	expect(t, resp, env, http.StatusCreated, &out)
	return out.ID
}

func (s *testServer) review(t *testing.T, token, restaurantID string, rating int) string {
	t.Helper()
	resp, env := s.do(t, http.MethodPost, "/api/reviews", token, map[string]interface{}{
		"restaurant_id": restaurantID,
		"rating":        rating,
		"content":       "Soup dumplings were excellent and the service quick.",
	})
	var out idOnly
	expect(t, resp, env, http.StatusCreated, &out)
	return out.ID
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	resp, err := http.Get(s.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health: %d", resp.StatusCode)
	}
}

func TestReviewLikeFlow(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice", "USER")
	bob := s.register(t, "bob", "USER")

	rid := s.restaurant(t, alice.Token, "Joe's Shanghai")
	resp, env := s.do(t, http.MethodPost, "/api/restaurants", alice.Token, map[string]interface{}{
		"name": "joe's shanghai", "address": "x", "latitude": 1, "longitude": 1, "price_tier": 1,
	})
	expect(t, resp, env, http.StatusConflict, nil)
	if env.Code != "CONFLICT" {
		t.Fatalf("code = %q", env.Code)
	}

	reviewID := s.review(t, bob.Token, rid, 5)
	resp, env = s.do(t, http.MethodPost, "/api/reviews", bob.Token, map[string]interface{}{
		"restaurant_id": rid, "rating": 4, "content": "Second visit was just as good.",
	})
	expect(t, resp, env, http.StatusConflict, nil)

	resp, env = s.do(t, http.MethodPost, "/api/reviews/"+reviewID+"/like", alice.Token, nil)
	expect(t, resp, env, http.StatusCreated, nil)
	resp, env = s.do(t, http.MethodPost, "/api/reviews/"+reviewID+"/like", alice.Token, nil)
	expect(t, resp, env, http.StatusConflict, nil)

	var view struct {
		LikeCount int64 `json:"like_count"`
		IsLiked   bool  `json:"is_liked"`
	}
	resp, env = s.do(t, http.MethodGet, "/api/reviews/"+reviewID, alice.Token, nil)
	expect(t, resp, env, http.StatusOK, &view)
	if view.LikeCount != 1 || !view.IsLiked {
		t.Fatalf("view = %+v", view)
	}

	var stats struct {
		ReviewCount int64   `json:"review_count"`
		AvgRating   float64 `json:"avg_rating"`
	}
	resp, env = s.do(t, http.MethodGet, "/api/restaurants/"+rid, "", nil)
	expect(t, resp, env, http.StatusOK, &stats)
	if stats.ReviewCount != 1 || stats.AvgRating != 5 {
		t.Fatalf("stats = %+v", stats)
	}

	var count struct {
		Count int64 `json:"count"`
	}
	resp, env = s.do(t, http.MethodGet, "/api/notifications/unread-count", bob.Token, nil)
	expect(t, resp, env, http.StatusOK, &count)
	if count.Count != 1 {
		t.Fatalf("unread = %d, want 1", count.Count)
	}

	resp, env = s.do(t, http.MethodDelete, "/api/reviews/"+reviewID+"/like", alice.Token, nil)
	expect(t, resp, env, http.StatusOK, nil)
	resp, env = s.do(t, http.MethodDelete, "/api/reviews/"+reviewID+"/like", alice.Token, nil)
	expect(t, resp, env, http.StatusNotFound, nil)
}

func TestAuthErrors(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice", "USER")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   interface{}
		status int
		code   string
	}{
		{"anonymous write", http.MethodPost, "/api/reviews", "", map[string]int{"rating": 5}, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED"},
		{"garbage token", http.MethodGet, "/api/auth/me", "not-a-jwt", nil, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED"},
		{"user on admin route", http.MethodGet, "/api/admin/reports", alice.Token, nil, http.StatusForbidden, "PERMISSION_DENIED"},
		{"user on owner dashboard", http.MethodGet, "/api/owner/restaurants", alice.Token, nil, http.StatusForbidden, "PERMISSION_DENIED"},
		{"staff self-registration", http.MethodPost, "/api/auth/register", "", map[string]string{
			"email": "mod@example.com", "username": "mod", "password": "password-mod", "name": "Mod", "role": "MODERATOR",
		}, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"bad login", http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "alice@example.com", "password": "wrong-password",
		}, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED"},
		{"unknown review", http.MethodGet, "/api/reviews/nope", "", nil, http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, env := s.do(t, tt.method, tt.path, tt.token, tt.body)
			if resp.StatusCode != tt.status || env.Code != tt.code {
				t.Fatalf("got %d %s (%s), want %d %s", resp.StatusCode, env.Code, env.Error, tt.status, tt.code)
			}
			if env.Success {
				t.Fatal("error response marked successful")
			}
		})
	}
}

func TestValidationEnvelope(t *testing.T) {
	s := newTestServer(t)
	resp, env := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "not-an-email", "username": "x", "password": "short", "name": "X",
	})
	expect(t, resp, env, http.StatusBadRequest, nil)
	if env.Code != "VALIDATION_FAILED" {
		t.Fatalf("code = %q", env.Code)
	}
	for _, field := range []string{"email", "username", "password"} {
		if env.Errors[field] == "" {
			t.Errorf("missing error for %s: %v", field, env.Errors)
		}
	}

	req, _ := http.NewRequest(http.MethodPost, s.URL+"/api/auth/login", strings.NewReader("{"))
	resp, env = s.send(t, req)
	if resp.StatusCode != http.StatusBadRequest || env.Code != "INVALID_BODY" {
		t.Fatalf("malformed body: %d %s", resp.StatusCode, env.Code)
	}
}

func TestRefreshRotationWithCookie(t *testing.T) {
	s := newTestServer(t)
	resp, env := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "carol@example.com", "username": "carol", "password": "password-carol", "name": "Carol",
	})
	expect(t, resp, env, http.StatusCreated, nil)

	var refresh *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == refreshCookie {
			refresh = c
		}
	}
	if refresh == nil || !refresh.HttpOnly || refresh.Path != refreshCookiePath {
		t.Fatalf("refresh cookie = %+v", refresh)
	}

	req, _ := http.NewRequest(http.MethodPost, s.URL+"/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookie, Value: refresh.Value})
	resp, env = s.send(t, req)
	var rotated session
	expect(t, resp, env, http.StatusOK, &rotated)
	if rotated.RefreshToken == "" || rotated.RefreshToken == refresh.Value {
		t.Fatal("refresh token was not rotated")
	}

	// The old token is spent.
	req, _ = http.NewRequest(http.MethodPost, s.URL+"/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookie, Value: refresh.Value})
	resp, env = s.send(t, req)
	expect(t, resp, env, http.StatusUnauthorized, nil)

	// Non-browser clients send it in the body.
	resp, env = s.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": rotated.RefreshToken})
	expect(t, resp, env, http.StatusOK, nil)

	// The access token cookie authenticates on its own.
	req, _ = http.NewRequest(http.MethodGet, s.URL+"/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: rotated.Token})
	resp, env = s.send(t, req)
	expect(t, resp, env, http.StatusOK, nil)
}

func TestReportApprovalHidesReview(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, adminEmail, adminPassword)
	alice := s.register(t, "alice", "USER")
	bob := s.register(t, "bob", "USER")
	mod := s.register(t, "mia", "USER")

	resp, env := s.do(t, http.MethodPost, "/api/admin/users/"+mod.User.ID+"/actions", admin.Token, map[string]string{
		"action": "promote", "role": "MODERATOR", "reason": "new moderator",
	})
	expect(t, resp, env, http.StatusCreated, nil)
	// The new role rides on the next access token.
	mod = s.login(t, "mia@example.com", "password-mia")
	if mod.User.Role != "MODERATOR" {
		t.Fatalf("role = %s", mod.User.Role)
	}

	rid := s.restaurant(t, alice.Token, "Nom Wah")
	reviewID := s.review(t, bob.Token, rid, 1)

	var report idOnly
	resp, env = s.do(t, http.MethodPost, "/api/reports", alice.Token, map[string]string{
		"target_id": reviewID, "target_type": "review", "reason": "Fake review",
	})
	expect(t, resp, env, http.StatusCreated, &report)
	resp, env = s.do(t, http.MethodPost, "/api/reports", alice.Token, map[string]string{
		"target_id": reviewID, "target_type": "REVIEW", "reason": "SPAM",
	})
	expect(t, resp, env, http.StatusConflict, nil)

	resp, env = s.do(t, http.MethodPost, "/api/admin/reports/"+report.ID+"/investigate", mod.Token, nil)
	expect(t, resp, env, http.StatusOK, nil)
	resp, env = s.do(t, http.MethodPost, "/api/admin/reports/"+report.ID+"/approve", mod.Token, map[string]string{
		"resolution": "confirmed fake",
	})
	expect(t, resp, env, http.StatusOK, nil)
	resp, env = s.do(t, http.MethodPost, "/api/admin/reports/"+report.ID+"/reject", mod.Token, nil)
	expect(t, resp, env, http.StatusConflict, nil)

	resp, env = s.do(t, http.MethodGet, "/api/reviews/"+reviewID, alice.Token, nil)
	expect(t, resp, env, http.StatusNotFound, nil)
	resp, env = s.do(t, http.MethodGet, "/api/reviews/"+reviewID, mod.Token, nil)
	expect(t, resp, env, http.StatusOK, nil)

	var hist struct {
		Actions []struct {
			Kind string `json:"kind"`
		} `json:"actions"`
	}
	resp, env = s.do(t, http.MethodGet, "/api/admin/users/"+bob.User.ID+"/moderation", mod.Token, nil)
	expect(t, resp, env, http.StatusOK, &hist)
	if len(hist.Actions) == 0 {
		t.Fatal("approved report recorded no moderation action")
	}

	resp, env = s.do(t, http.MethodPost, "/api/admin/content/review/"+reviewID+"/reinstate", mod.Token, nil)
	expect(t, resp, env, http.StatusOK, nil)
	resp, env = s.do(t, http.MethodGet, "/api/reviews/"+reviewID, alice.Token, nil)
	expect(t, resp, env, http.StatusOK, nil)

	// Moderators cannot act on staff.
	resp, env = s.do(t, http.MethodPost, "/api/admin/users/"+admin.User.ID+"/actions", mod.Token, map[string]string{
		"action": "warn", "reason": "nope",
	})
	expect(t, resp, env, http.StatusForbidden, nil)
}

func TestBannedLoginClearsCookies(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, adminEmail, adminPassword)
	bob := s.register(t, "bob", "USER")

	resp, env := s.do(t, http.MethodPost, "/api/admin/users/"+bob.User.ID+"/actions", admin.Token, map[string]interface{}{
		"action": "tempban", "reason": "spam", "duration": 7,
	})
	expect(t, resp, env, http.StatusCreated, nil)

	resp, env = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "bob@example.com", "password": "password-bob",
	})
	expect(t, resp, env, http.StatusForbidden, nil)
	if env.Code != "ACCOUNT_BANNED" {
		t.Fatalf("code = %q", env.Code)
	}
	var details struct {
		Reason    string  `json:"reason"`
		Type      string  `json:"type"`
		ExpiresAt *string `json:"expires_at"`
	}
	if err := json.Unmarshal(env.Data, &details); err != nil {
		t.Fatal(err)
	}
	if details.Reason != "spam" || details.ExpiresAt == nil {
		t.Fatalf("details = %+v", details)
	}
	cleared := 0
	for _, c := range resp.Cookies() {
		if (c.Name == refreshCookie || c.Name == "access_token") && c.MaxAge < 0 {
			cleared++
		}
	}
	if cleared != 2 {
		t.Fatalf("cleared %d cookies, want 2", cleared)
	}

	// The ban revoked every session.
	resp, env = s.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": bob.RefreshToken})
	expect(t, resp, env, http.StatusUnauthorized, nil)

	resp, env = s.do(t, http.MethodPost, "/api/admin/users/"+bob.User.ID+"/actions", admin.Token, map[string]string{
		"action": "unban", "reason": "appeal accepted",
	})
	expect(t, resp, env, http.StatusCreated, nil)
	s.login(t, "bob@example.com", "password-bob")
}

func TestClaimMakesOwner(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, adminEmail, adminPassword)
	alice := s.register(t, "alice", "USER")
	olga := s.register(t, "olga", "OWNER")

	rid := s.restaurant(t, alice.Token, "Katz's")

	var claim idOnly
	resp, env := s.do(t, http.MethodPost, "/api/restaurants/"+rid+"/claims", olga.Token, map[string]string{
		"business_email": "olga@katz.example", "proof": "business license",
	})
	expect(t, resp, env, http.StatusCreated, &claim)

	var mine struct {
		Total int64 `json:"total"`
	}
	resp, env = s.do(t, http.MethodGet, "/api/claims/mine", olga.Token, nil)
	expect(t, resp, env, http.StatusOK, &mine)
	if mine.Total != 1 {
		t.Fatalf("my claims = %d", mine.Total)
	}

	resp, env = s.do(t, http.MethodPost, "/api/admin/claims/"+claim.ID+"/approve", olga.Token, nil)
	expect(t, resp, env, http.StatusForbidden, nil)
	resp, env = s.do(t, http.MethodPost, "/api/admin/claims/"+claim.ID+"/approve", admin.Token, nil)
	expect(t, resp, env, http.StatusOK, nil)

	var owned []struct {
		ID string `json:"id"`
	}
	resp, env = s.do(t, http.MethodGet, "/api/owner/restaurants", olga.Token, nil)
	expect(t, resp, env, http.StatusOK, &owned)
	if len(owned) != 1 || owned[0].ID != rid {
		t.Fatalf("owned = %+v", owned)
	}

	bob := s.register(t, "bob", "USER")
	reviewID := s.review(t, bob.Token, rid, 3)
	resp, env = s.do(t, http.MethodPost, "/api/reviews/"+reviewID+"/response", alice.Token, map[string]string{"content": "thanks"})
	expect(t, resp, env, http.StatusForbidden, nil)
	resp, env = s.do(t, http.MethodPost, "/api/reviews/"+reviewID+"/response", olga.Token, map[string]string{"content": "Thanks for visiting!"})
	expect(t, resp, env, http.StatusOK, nil)
	resp, env = s.do(t, http.MethodPut, "/api/restaurants/"+rid, olga.Token, map[string]string{"description": "Since 1888"})
	expect(t, resp, env, http.StatusOK, nil)
}

func TestHugePageNumbersReturnEmptyPages(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice", "USER")
	bob := s.register(t, "bob", "USER")
	rid := s.restaurant(t, alice.Token, "Russ & Daughters")
	s.review(t, bob.Token, rid, 5)

	const huge = "page=92233720368547760&limit=100"
	for _, path := range []string{
		"/api/restaurants?" + huge,
		"/api/restaurants/trending?" + huge,
		"/api/reviews/trending?" + huge,
		"/api/restaurants/" + rid + "/reviews?" + huge,
		"/api/restaurants/" + rid + "/reviews?sort=top&" + huge,
	} {
		t.Run(path, func(t *testing.T) {
			resp, env := s.do(t, http.MethodGet, path, "", nil)
			expect(t, resp, env, http.StatusOK, nil)
			// Trending routes return a bare list, the others a page.
			var out struct {
				Items []json.RawMessage `json:"items"`
			}
			if bytes.HasPrefix(env.Data, []byte("[")) {
				if err := json.Unmarshal(env.Data, &out.Items); err != nil {
					t.Fatal(err)
				}
			} else if err := json.Unmarshal(env.Data, &out); err != nil {
				t.Fatal(err)
			}
			if len(out.Items) != 0 {
				t.Fatalf("got %d items past the last page", len(out.Items))
			}
		})
	}
}

func TestNearbyRadiusZeroIsExact(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice", "USER")
	s.restaurant(t, alice.Token, "Joe's Shanghai")

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"default radius", "lat=40.7236&lon=-73.9983", 1},
		{"zero radius at the restaurant", "lat=40.7146&lon=-73.9983&radius=0", 1},
		{"zero radius a kilometre away", "lat=40.7236&lon=-73.9983&radius=0", 0},
		{"negative radius", "lat=40.7146&lon=-73.9983&radius=-1", -1},
		{"radius over the maximum", "lat=40.7146&lon=-73.9983&radius=51", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, env := s.do(t, http.MethodGet, "/api/restaurants/nearby?"+tt.query, "", nil)
			if tt.want < 0 {
				expect(t, resp, env, http.StatusBadRequest, nil)
				return
			}
			var hits []idOnly
			expect(t, resp, env, http.StatusOK, &hits)
			if len(hits) != tt.want {
				t.Fatalf("got %d restaurants, want %d", len(hits), tt.want)
			}
		})
	}
}
