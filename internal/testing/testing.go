// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/desertthunder/mixtape/internal/sources"
)

// MockSource is a test double for [sources.Source]. Candidates are returned
// verbatim; Err wins when both are set. Fail and Delay allow simulating
// flaky and slow sources.
type MockSource struct {
	SourceName string
	Candidates []models.CandidateRecord
	Err        error
	Delay      time.Duration

	// FailFirst makes the first N calls return an unavailability error
	// before succeeding.
	FailFirst int

	mu    sync.Mutex
	calls int
}

func (m *MockSource) Name() string {
	if m.SourceName == "" {
		return "mock"
	}
	return m.SourceName
}

func (m *MockSource) Search(ctx context.Context, artist, title, album string) ([]models.CandidateRecord, error) {
	m.mu.Lock()
	m.calls++
	failing := m.calls <= m.FailFirst
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if failing {
		return nil, &sources.UnavailableError{Source: m.Name(), Cause: errors.New("simulated outage")}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Candidates, nil
}

// Calls reports how many times Search ran.
func (m *MockSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockProvider is a test double for the streaming provider. Tracks maps
// "artist - title" (per [models.TrackRequest.String]) to the track returned.
// Every search is recorded in Queries so callers can assert on the exact
// metadata the provider received.
type MockProvider struct {
	Tracks    map[string]*models.ProviderTrack
	SearchErr error

	mu      sync.Mutex
	Queries []models.TrackRequest
	Added   map[string][]string // playlist ID to track IDs, in order
}

func (m *MockProvider) Name() string { return "mock provider" }

func (m *MockProvider) Authenticate(ctx context.Context, credentials map[string]string) error {
	return nil
}

func (m *MockProvider) SearchTrack(ctx context.Context, artist, title, album string) (*models.ProviderTrack, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, models.TrackRequest{Artist: artist, Title: title, Album: album})
	m.mu.Unlock()

	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	req := models.TrackRequest{Artist: artist, Title: title}
	return m.Tracks[req.String()], nil
}

func (m *MockProvider) CreatePlaylist(ctx context.Context, name, description string, public bool) (*models.Playlist, error) {
	return &models.Playlist{ID: "mock-playlist", Name: name, Description: description, Public: public}, nil
}

func (m *MockProvider) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Added == nil {
		m.Added = map[string][]string{}
	}
	m.Added[playlistID] = append(m.Added[playlistID], trackIDs...)
	return nil
}

// MockVerifier is a test double for the verifier. Verdicts maps
// [models.TrackRequest.String] to the verdict returned; unspecified requests
// are rejected. Unavailable forces the all-sources-down error.
type MockVerifier struct {
	Verdicts    map[string]models.VerificationVerdict
	Unavailable bool
	Delay       time.Duration
}

func (m *MockVerifier) Verify(ctx context.Context, req models.TrackRequest) (models.VerificationVerdict, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return models.VerificationVerdict{}, ctx.Err()
		}
	}
	if m.Unavailable {
		return models.VerificationVerdict{}, shared.ErrAllSourcesUnavailable
	}
	if verdict, ok := m.Verdicts[req.String()]; ok {
		return verdict, nil
	}
	return models.VerificationVerdict{Status: models.StatusRejected, Reason: "no source produced a sufficiently confident match"}, nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
