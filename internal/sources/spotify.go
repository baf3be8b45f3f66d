// Spotify catalog [Source] implementation
//
// Wraps the provider's own search API as a verification source. The catalog
// client lives in the services package; this adapter only maps its results
// into candidate records.
package sources

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/services"
	"github.com/desertthunder/mixtape/internal/shared"
)

const spotifySearchLimit = 10

// CatalogSearcher is the slice of the Spotify client this adapter needs.
type CatalogSearcher interface {
	SearchCatalog(ctx context.Context, artist, title, album string, limit int) ([]services.SpotifyTrack, error)
}

// SpotifyCatalog adapts the provider catalog search to the [Source] contract.
type SpotifyCatalog struct {
	catalog CatalogSearcher
	logger  *log.Logger
}

// NewSpotifyCatalog creates the provider-native verification source.
func NewSpotifyCatalog(catalog CatalogSearcher, logger *log.Logger) *SpotifyCatalog {
	return &SpotifyCatalog{
		catalog: catalog,
		logger:  shared.WithLogger(logger, "source", NameSpotify),
	}
}

func (s *SpotifyCatalog) Name() string { return NameSpotify }

// Search queries the Spotify catalog for tracks matching the artist and title.
func (s *SpotifyCatalog) Search(ctx context.Context, artist, title, album string) ([]models.CandidateRecord, error) {
	tracks, err := s.catalog.SearchCatalog(ctx, artist, title, album, spotifySearchLimit)
	if err != nil {
		return nil, &UnavailableError{Source: NameSpotify, Cause: err}
	}

	records := make([]models.CandidateRecord, 0, len(tracks))
	for _, track := range tracks {
		record := models.CandidateRecord{
			SourceID:    NameSpotify,
			TrackName:   track.Name,
			AlbumName:   track.Album.Name,
			ReleaseDate: track.Album.ReleaseDate,
			TypeTag:     strings.ToLower(track.Album.AlbumType),
			ExternalRef: track.ID,
		}
		if len(track.Artists) > 0 {
			record.ArtistName = track.Artists[0].Name
		}
		records = append(records, record)
	}

	s.logger.Debug("catalog search completed", "artist", artist, "title", title, "results", len(records))

	return records, nil
}
