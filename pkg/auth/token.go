// Package auth supplies bearer credentials for the platform API and
// stream session. The identity provider itself is out of scope; this
// package only implements the authenticated-fetch contract: hand back
// a token, refuse to hand back one that is already expired.
package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agentdeck/agentdeck/pkg/errors"
)

// TokenSource yields the bearer token for outgoing requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// RefreshFunc fetches a replacement token when the current one expires.
type RefreshFunc func(ctx context.Context) (string, error)

// Source wraps a static token, inspecting JWT expiry when the token is
// a JWT and invoking the refresh hook before it lapses. Opaque API keys
// pass through untouched.
type Source struct {
	mu      sync.Mutex
	token   string
	expiry  time.Time // zero for opaque tokens
	refresh RefreshFunc

	// Leeway is subtracted from the recorded expiry so callers never
	// race the backend clock. Defaults to 30s.
	Leeway time.Duration
}

// NewSource creates a token source from an initial credential.
func NewSource(token string, refresh RefreshFunc) *Source {
	s := &Source{
		token:   token,
		refresh: refresh,
		Leeway:  30 * time.Second,
	}
	s.expiry = jwtExpiry(token)
	return s
}

// Token returns a valid bearer token, refreshing if needed.
func (s *Source) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" {
		return "", errors.New(errors.ErrCodeAuthToken, "no API credential configured").
			WithUserMessage("Sign in or set AGENTDECK_API_KEY")
	}

	if s.expired() {
		if s.refresh == nil {
			return "", errors.New(errors.ErrCodeAuthExpired, "token expired and no refresh configured").
				WithUserMessage("Your session expired, sign in again")
		}
		fresh, err := s.refresh(ctx)
		if err != nil {
			return "", errors.Wrap(err, errors.ErrCodeAuthExpired, "refresh token").
				WithUserMessage("Your session expired, sign in again")
		}
		s.token = fresh
		s.expiry = jwtExpiry(fresh)
	}

	return s.token, nil
}

func (s *Source) expired() bool {
	if s.expiry.IsZero() {
		return false
	}
	return time.Now().After(s.expiry.Add(-s.Leeway))
}

// jwtExpiry extracts the exp claim without verifying the signature.
// The client only schedules refreshes; the backend does verification.
func jwtExpiry(token string) time.Time {
	if strings.Count(token, ".") != 2 {
		return time.Time{}
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
