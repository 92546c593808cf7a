// Package authclient is an HTTP client helper for services that call
// the API with a short-lived access token. It refreshes the token on
// expiry and collapses concurrent refresh attempts into a single
// request; every caller waiting on that refresh shares its outcome.
package authclient

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrNoToken means the source has no token and no refresher produced one.
var ErrNoToken = errors.New("authclient: no access token")

// RefreshFunc exchanges the long-lived credential for a fresh access token.
type RefreshFunc func(ctx context.Context) (string, error)

// TokenSource hands out the current access token and refreshes it on
// demand. Concurrent Refresh calls are deduplicated: only one refresh
// request is in flight at a time and all callers get its result.
type TokenSource struct {
	refresh RefreshFunc

	group singleflight.Group
	mu    sync.RWMutex
	token string
}

func NewTokenSource(refresh RefreshFunc) *TokenSource {
	return &TokenSource{refresh: refresh}
}

// Token returns the cached access token, refreshing first if none is held.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	if token != "" {
		return token, nil
	}
	return s.Refresh(ctx)
}

// Refresh obtains a new access token. If a refresh is already in
// flight the call waits for it instead of issuing another one, so a
// burst of expired requests costs exactly one refresh round trip. A
// failed refresh is shared by all waiters and not cached.
func (s *TokenSource) Refresh(ctx context.Context) (string, error) {
	v, err, _ := s.group.Do("refresh", func() (interface{}, error) {
		token, err := s.refresh(ctx)
		if err != nil {
			return "", err
		}
		if token == "" {
			return "", ErrNoToken
		}
		s.mu.Lock()
		s.token = token
		s.mu.Unlock()
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token so the next Token call refreshes.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

// Transport attaches the bearer token to every request and retries
// once after a 401 with a freshly refreshed token.
type Transport struct {
	Source *TokenSource
	Base   http.RoundTripper
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.Source.Token(req.Context())
	if err != nil {
		return nil, err
	}

	attempt := req.Clone(req.Context())
	attempt.Header.Set("Authorization", "Bearer "+token)
	resp, err := t.base().RoundTrip(attempt)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	// token expired mid-flight: refresh once and retry
	resp.Body.Close()
	t.Source.Invalidate()
	token, err = t.Source.Refresh(req.Context())
	if err != nil {
		return nil, err
	}

	retry := req.Clone(req.Context())
	retry.Header.Set("Authorization", "Bearer "+token)
	return t.base().RoundTrip(retry)
}
