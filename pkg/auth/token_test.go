package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	deckerrors "github.com/agentdeck/agentdeck/pkg/errors"
)

func signedToken(t *testing.T, expiresIn time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "operator",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestOpaqueKeyPassesThrough(t *testing.T) {
	src := NewSource("sk-opaque-key", nil)

	got, err := src.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if got != "sk-opaque-key" {
		t.Errorf("Token = %q, want passthrough", got)
	}
}

func TestEmptyTokenFails(t *testing.T) {
	src := NewSource("", nil)

	_, err := src.Token(context.Background())
	if !deckerrors.IsCode(err, deckerrors.ErrCodeAuthToken) {
		t.Errorf("error = %v, want AUTH_TOKEN", err)
	}
}

func TestValidJWTPassesThrough(t *testing.T) {
	token := signedToken(t, time.Hour)
	src := NewSource(token, nil)

	got, err := src.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if got != token {
		t.Error("Token should return the unexpired JWT unchanged")
	}
}

func TestExpiredJWTWithoutRefreshFails(t *testing.T) {
	src := NewSource(signedToken(t, -time.Minute), nil)

	_, err := src.Token(context.Background())
	if !deckerrors.IsCode(err, deckerrors.ErrCodeAuthExpired) {
		t.Errorf("error = %v, want AUTH_EXPIRED", err)
	}
}

func TestExpiredJWTRefreshes(t *testing.T) {
	fresh := signedToken(t, time.Hour)
	calls := 0
	src := NewSource(signedToken(t, -time.Minute), func(ctx context.Context) (string, error) {
		calls++
		return fresh, nil
	})

	got, err := src.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if got != fresh {
		t.Error("Token should return the refreshed JWT")
	}
	if calls != 1 {
		t.Errorf("refresh called %d times, want 1", calls)
	}

	// Second call should reuse the fresh token without refreshing again.
	if _, err := src.Token(context.Background()); err != nil {
		t.Fatalf("Token (second): %v", err)
	}
	if calls != 1 {
		t.Errorf("refresh called %d times after reuse, want 1", calls)
	}
}

func TestLeewayTriggersEarlyRefresh(t *testing.T) {
	fresh := signedToken(t, time.Hour)
	calls := 0
	// Token expires in 10s but leeway is 30s, so it counts as expired.
	src := NewSource(signedToken(t, 10*time.Second), func(ctx context.Context) (string, error) {
		calls++
		return fresh, nil
	})

	if _, err := src.Token(context.Background()); err != nil {
		t.Fatalf("Token: %v", err)
	}
	if calls != 1 {
		t.Errorf("refresh called %d times, want 1 (leeway refresh)", calls)
	}
}
