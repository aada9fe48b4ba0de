package usertoken

import (
	"errors"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/Harshil230205/e-book-backend/pkg/domain"
)

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(Config{Secret: "test-secret", Issuer: "issuer-a"})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	return issuer
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	if _, err := NewIssuer(Config{}); err == nil {
		t.Fatalf("expected empty secret to fail")
	}
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t)
	token, expiresAt, err := issuer.Issue("user-1", domain.RoleAdmin, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected expiry in the future, got %v", expiresAt)
	}
	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.SubjectID != "user-1" || claims.Role != domain.RoleAdmin {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestIssueDefaultsToThirtyDays(t *testing.T) {
	issuer := newTestIssuer(t)
	_, expiresAt, err := issuer.Issue("user-1", domain.RoleUser, 0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	want := time.Now().Add(DefaultTTL)
	if diff := want.Sub(expiresAt); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("expiry = %v, want about %v", expiresAt, want)
	}
}

func TestVerifyFailures(t *testing.T) {
	issuer := newTestIssuer(t)
	valid, _, err := issuer.Issue("user-1", domain.RoleUser, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	expiredIssuer := newTestIssuer(t)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := expiredIssuer.Issue("user-1", domain.RoleUser, time.Hour)
	if err != nil {
		t.Fatalf("issue expired: %v", err)
	}

	otherKey, err := NewIssuer(Config{Secret: "other-secret", Issuer: "issuer-a"})
	if err != nil {
		t.Fatalf("new other issuer: %v", err)
	}
	foreign, _, err := otherKey.Issue("user-1", domain.RoleAdmin, time.Hour)
	if err != nil {
		t.Fatalf("issue foreign: %v", err)
	}

	parts := strings.Split(valid, ".")
	tamperedSig := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	noRole := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "issuer-a",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	noRoleSigned, err := noRole.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign no-role token: %v", err)
	}

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "garbage", token: "not-a-token", want: ErrMalformed},
		{name: "empty", token: "", want: ErrMalformed},
		{name: "expired", token: expired, want: ErrExpired},
		{name: "tampered signature", token: tamperedSig, want: ErrInvalidSignature},
		{name: "foreign secret", token: foreign, want: ErrInvalidSignature},
		{name: "missing role", token: noRoleSigned, want: ErrMalformed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := issuer.Verify(tc.token)
			if !errors.Is(err, tc.want) {
				t.Fatalf("verify error = %v, want %v", err, tc.want)
			}
		})
	}
}
