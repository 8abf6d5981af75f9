package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tastetrail/backend/internal/models"
)

func registerReq(name string, role models.Role) *models.RegisterRequest {
	return &models.RegisterRequest{
		Email:    " " + name + "@Example.com",
		Username: name,
		Password: testPassword,
		Name:     name,
		Role:     role,
	}
}

func TestRegisterRoles(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	tests := []struct {
		name string
		role models.Role
		want error
	}{
		{"default user", "", nil},
		{"owner", models.RoleOwner, nil},
		{"influencer needs an application", models.RoleInfluencer, ErrValidation},
		{"moderator", models.RoleModerator, ErrValidation},
		{"admin", models.RoleAdmin, ErrValidation},
		{"unknown", "CHEF", ErrValidation},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := env.svc.Auth.Register(ctx, registerReq("member"+string(rune('a'+i)), tt.role), ClientMeta{})
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if err != nil {
				return
			}
			want := tt.role
			if want == "" {
				want = models.RoleUser
			}
			if sess.User.Role != want || sess.AccessToken == "" || sess.RefreshToken == "" {
				t.Fatalf("session = %+v", sess)
			}
		})
	}

	if _, err := env.svc.Auth.Register(ctx, registerReq("membera", ""), ClientMeta{}); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("duplicate email: %v", err)
	}
}

func TestLoginAndTokens(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	sess, err := env.svc.Auth.Register(ctx, registerReq("diner", ""), ClientMeta{UserAgent: "test"})
	if err != nil {
		t.Fatal(err)
	}
	if sess.User.Email != "diner@example.com" {
		t.Fatalf("email not normalised: %q", sess.User.Email)
	}

	if _, err := env.svc.Auth.Login(ctx, &models.LoginRequest{Email: "diner@example.com", Password: "wrong-password"}, ClientMeta{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("bad password: %v", err)
	}
	if _, err := env.svc.Auth.Login(ctx, &models.LoginRequest{Email: "nobody@example.com", Password: testPassword}, ClientMeta{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: %v", err)
	}

	claims, err := env.svc.Auth.Authenticate(sess.AccessToken)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID() != sess.User.ID || claims.Role != string(models.RoleUser) {
		t.Fatalf("claims = %+v", claims)
	}
	if _, err := env.svc.Auth.Authenticate(sess.RefreshToken); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("refresh token used as access token: %v", err)
	}
}

func TestRefreshRotationAndLogout(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	sess, err := env.svc.Auth.Register(ctx, registerReq("rotator", ""), ClientMeta{})
	if err != nil {
		t.Fatal(err)
	}

	next, err := env.svc.Auth.Refresh(ctx, sess.RefreshToken, ClientMeta{})
	if err != nil {
		t.Fatal(err)
	}
	if next.RefreshToken == sess.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}
	if _, err := env.svc.Auth.Refresh(ctx, sess.RefreshToken, ClientMeta{}); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("reusing the old refresh token: %v", err)
	}
	if _, err := env.svc.Auth.Refresh(ctx, "garbage", ClientMeta{}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("garbage token: %v", err)
	}

	if err := env.svc.Auth.Logout(ctx, next.RefreshToken); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.Auth.Refresh(ctx, next.RefreshToken, ClientMeta{}); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("refresh after logout: %v", err)
	}
	if err := env.svc.Auth.Logout(ctx, "not-a-token"); err != nil {
		t.Fatalf("logout with an invalid token should be a no-op: %v", err)
	}
}

func TestRoleChangeAppliesOnRefresh(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	admin := env.user(t, "admin", models.RoleAdmin)
	sess, err := env.svc.Auth.Register(ctx, registerReq("climber", ""), ClientMeta{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.Moderation.Act(ctx, actorOf(admin), sess.User.ID, &models.UserActionRequest{Action: "promote", Role: models.RoleInfluencer}); err != nil {
		t.Fatal(err)
	}

	old, _ := env.svc.Auth.Authenticate(sess.AccessToken)
	if old.Role != string(models.RoleUser) {
		t.Fatalf("existing access token role = %s", old.Role)
	}
	next, err := env.svc.Auth.Refresh(ctx, sess.RefreshToken, ClientMeta{})
	if err != nil {
		t.Fatal(err)
	}
	claims, _ := env.svc.Auth.Authenticate(next.AccessToken)
	if claims.Role != string(models.RoleInfluencer) {
		t.Fatalf("refreshed access token role = %s", claims.Role)
	}
}

func TestBootstrapAdmin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	if err := env.svc.Auth.BootstrapAdmin(ctx, "", ""); err != nil {
		t.Fatal(err)
	}
	if err := env.svc.Auth.BootstrapAdmin(ctx, "Root.Admin@example.com", testPassword); err != nil {
		t.Fatal(err)
	}
	u, err := env.store.Users().GetByEmail(ctx, "root.admin@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if u.Role != models.RoleAdmin || u.Username != "rootadmin" {
		t.Fatalf("admin = %+v", u)
	}
	if _, err := login(env, u); err != nil {
		t.Fatalf("admin login: %v", err)
	}

	existing := env.user(t, "promoted", models.RoleUser)
	if err := env.svc.Auth.BootstrapAdmin(ctx, existing.Email, testPassword); err != nil {
		t.Fatal(err)
	}
	u, _ = env.store.Users().Get(ctx, existing.ID)
	if u.Role != models.RoleAdmin {
		t.Fatalf("existing account role = %s", u.Role)
	}
}
