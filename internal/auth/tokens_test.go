package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const secret = "test-secret-0123456789"

func TestIssueAndVerifyAccess(t *testing.T) {
	m := NewManager(secret, "tastetrail", time.Hour, 7*24*time.Hour)
	tok, exp, err := m.IssueAccess("user-1", "ADMIN")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if time.Until(exp) > time.Hour || time.Until(exp) < 59*time.Minute {
		t.Fatalf("unexpected expiry %v", exp)
	}

	claims, err := m.Verify(tok, TypeAccess)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID() != "user-1" || claims.Role != "ADMIN" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifyRejectsWrongType(t *testing.T) {
	m := NewManager(secret, "tastetrail", time.Hour, 7*24*time.Hour)
	refresh, _, err := m.IssueRefresh("user-1", "session-1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Verify(refresh, TypeAccess); !errors.Is(err, ErrWrongType) {
		t.Fatalf("refresh token used as access: got %v", err)
	}
	claims, err := m.Verify(refresh, TypeRefresh)
	if err != nil || claims.SessionID != "session-1" {
		t.Fatalf("refresh verify: %+v %v", claims, err)
	}
}

func TestVerifyRejectsForgedSignature(t *testing.T) {
	m := NewManager(secret, "tastetrail", time.Hour, 7*24*time.Hour)
	other := NewManager("another-secret-987654321", "tastetrail", time.Hour, 7*24*time.Hour)
	forged, _, _ := other.IssueAccess("user-1", "ADMIN")
	if _, err := m.Verify(forged, TypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("forged token accepted: %v", err)
	}
}

func TestVerifyRejectsUnsignedToken(t *testing.T) {
	m := NewManager(secret, "tastetrail", time.Hour, 7*24*time.Hour)
	claims := &Claims{Type: TypeAccess, Role: "ADMIN"}
	claims.Subject = "user-1"
	claims.Issuer = "tastetrail"
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Verify(unsigned, TypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("alg=none token accepted: %v", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	m := NewManager(secret, "tastetrail", time.Hour, 7*24*time.Hour)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, _, _ := m.IssueAccess("user-1", "USER")
	m.now = time.Now
	if _, err := m.Verify(tok, TypeAccess); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestHashTokenStable(t *testing.T) {
	if HashToken("abc") != HashToken("abc") || HashToken("abc") == HashToken("abd") {
		t.Fatal("hash must be deterministic and distinguish inputs")
	}
}
