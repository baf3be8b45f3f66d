// package sources implements the metadata source adapters queried during
// track verification.
//
// Each adapter maps one external catalog (MusicBrainz, Deezer, the Spotify
// catalog itself) onto the uniform [Source] contract: a read-only search that
// returns zero or more candidate records. "No results" is an empty slice;
// transport, auth, and timeout failures are reported as [UnavailableError]
// so the verifier can retry them instead of mistaking outages for rejections.
package sources

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
	"golang.org/x/time/rate"
)

// Known source identifiers.
const (
	NameMusicBrainz = "musicbrainz"
	NameDeezer      = "deezer"
	NameSpotify     = "spotify"
)

// Source is the contract every metadata source adapter implements.
//
// Search has no side effects. Implementations bound their own latency and
// return [UnavailableError] on transport failure or timeout.
type Source interface {
	// Name returns the unique source identifier used in candidate provenance.
	Name() string

	// Search queries the catalog for recordings by the given artist and
	// title, optionally narrowed by album. An empty result is not an error.
	Search(ctx context.Context, artist, title, album string) ([]models.CandidateRecord, error)
}

// UnavailableError marks a transient per-source failure (network, auth,
// rate limiting, timeout). It matches [shared.ErrSourceUnavailable] with
// [errors.Is].
type UnavailableError struct {
	Source string
	Cause  error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Cause)
}

func (e *UnavailableError) Unwrap() error { return e.Cause }

func (e *UnavailableError) Is(target error) bool {
	return target == shared.ErrSourceUnavailable
}

// Default rate limits per source (requests per second), per each catalog's
// published guidelines.
var defaultRateLimits = map[string]rate.Limit{
	NameMusicBrainz: 1,
	NameDeezer:      5,
	NameSpotify:     5,
}

// RateLimiterMap holds one rate.Limiter per source, created once at startup.
type RateLimiterMap struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

// NewRateLimiterMap creates all source rate limiters.
func NewRateLimiterMap() *RateLimiterMap {
	m := &RateLimiterMap{
		limiters: make(map[string]*rate.Limiter, len(defaultRateLimits)),
	}
	for name, limit := range defaultRateLimits {
		m.limiters[name] = rate.NewLimiter(limit, 1)
	}
	return m
}

// Wait blocks until the rate limiter for the given source allows a request,
// or the context is canceled.
func (m *RateLimiterMap) Wait(ctx context.Context, name string) error {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return limiter.Wait(ctx)
}
