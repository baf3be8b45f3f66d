// package services defines clients for the external collaborators: the
// streaming provider (Spotify) and the track generator (Gemini).
package services

import (
	"context"

	"github.com/desertthunder/mixtape/internal/models"
	"golang.org/x/oauth2"
)

// Provider defines the streaming provider operations the pipeline and the
// playlist builder consume.
type Provider interface {
	// Authenticate performs OAuth or token-based authentication.
	Authenticate(ctx context.Context, credentials map[string]string) error

	// SearchTrack searches the provider catalog for the best playable match,
	// narrowing by album when one is known. Returns (nil, nil) when the
	// catalog has no match; errors are reserved for transport and auth
	// failures.
	SearchTrack(ctx context.Context, artist, title, album string) (*models.ProviderTrack, error)

	// CreatePlaylist creates an empty playlist owned by the authenticated user.
	CreatePlaylist(ctx context.Context, name, description string, public bool) (*models.Playlist, error)

	// AddTracks appends tracks to a playlist in order.
	AddTracks(ctx context.Context, playlistID string, trackIDs []string) error

	// Name returns the provider's display name.
	Name() string
}

// OAuthService is implemented by providers that authenticate via OAuth2
// authorization code flow.
type OAuthService interface {
	Provider

	// GetAuthURL returns the authorization URL for user login.
	GetAuthURL(state string) string

	// GetOAuthConfig exposes the underlying OAuth2 config for the callback server.
	GetOAuthConfig() *oauth2.Config

	// OAuthenticate installs a previously obtained token.
	OAuthenticate(ctx context.Context, token *oauth2.Token) error
}

// Generator produces candidate track lists from a natural-language playlist
// description. The pipeline treats it as a black box and trusts none of its
// output beyond basic validation.
type Generator interface {
	Generate(ctx context.Context, description string, count int) ([]models.TrackRequest, error)
}
