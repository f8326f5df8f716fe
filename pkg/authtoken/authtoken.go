// Package authtoken keeps a cached OAuth access token fresh for upload
// endpoints that want a Bearer header. Refreshing is cheap to call often:
// it only hits the token source once the current token is past half of its
// lifetime, and concurrent callers collapse into a single fetch.
package authtoken

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// AccessToken caches a token from an oauth2.TokenSource.
type AccessToken struct {
	src oauth2.TokenSource
	log zerolog.Logger

	refreshActive atomic.Bool

	mu        sync.RWMutex
	token     *oauth2.Token
	fetchedAt time.Time
}

// New fetches the initial token and returns the cache around it.
func New(src oauth2.TokenSource, log zerolog.Logger) (*AccessToken, error) {
	token, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("fetch access token: %w", err)
	}
	log.Info().Time("expiry", token.Expiry).Msg("access token acquired")
	return &AccessToken{
		src:       src,
		log:       log,
		token:     token,
		fetchedAt: time.Now(),
	}, nil
}

// HeaderValue returns the token formatted for an HTTP Authorization header.
func (a *AccessToken) HeaderValue() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token.Type() + " " + a.token.AccessToken
}

// Refresh re-fetches the token once it is past half of its lifetime. Call
// this regularly; it returns immediately when the token is still fresh or
// another refresh is already pending. A failed refresh keeps the old token.
func (a *AccessToken) Refresh() {
	a.mu.RLock()
	expiry := a.token.Expiry
	fetchedAt := a.fetchedAt
	a.mu.RUnlock()

	if expiry.IsZero() {
		// token never expires
		return
	}
	lifetime := expiry.Sub(fetchedAt)
	if lifetime > 0 && time.Since(fetchedAt) < lifetime/2 {
		a.log.Debug().Msg("token not ready to be refreshed")
		return
	}
	if !a.refreshActive.CompareAndSwap(false, true) {
		// refresh already pending
		return
	}
	defer a.refreshActive.Store(false)

	a.log.Info().Msg("refreshing access token")
	token, err := a.src.Token()
	if err != nil {
		a.log.Warn().Err(err).Msg("failed to refresh access token")
		return
	}

	a.mu.Lock()
	a.token = token
	a.fetchedAt = time.Now()
	a.mu.Unlock()
}
