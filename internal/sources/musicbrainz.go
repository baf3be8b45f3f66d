// MusicBrainz [Source] implementation
//
// Queries the /ws/2/recording search endpoint with Lucene syntax. MusicBrainz
// requires a descriptive User-Agent and allows roughly one request per second.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
)

const (
	defaultMBBaseURL   = "https://musicbrainz.org/ws/2"
	defaultMBUserAgent = "mixtape/0.1 (https://github.com/desertthunder/mixtape)"
	mbSearchLimit      = 10
)

// MusicBrainz queries the MusicBrainz recording search API.
type MusicBrainz struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *RateLimiterMap
	logger     *log.Logger
}

// NewMusicBrainz creates a MusicBrainz adapter. Empty config fields fall
// back to the public API defaults.
func NewMusicBrainz(cfg shared.MusicBrainzConfig, timeout time.Duration, limiter *RateLimiterMap, logger *log.Logger) *MusicBrainz {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultMBBaseURL
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultMBUserAgent
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	return &MusicBrainz{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		logger:     shared.WithLogger(logger, "source", NameMusicBrainz),
	}
}

func (m *MusicBrainz) Name() string { return NameMusicBrainz }

// mbRecording mirrors the fields of a recording search hit this adapter consumes.
type mbRecording struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Disambiguation string `json:"disambiguation"`
	Score          int    `json:"score"`
	ArtistCredit   []struct {
		Name string `json:"name"`
	} `json:"artist-credit"`
	Releases []struct {
		Title        string `json:"title"`
		Date         string `json:"date"`
		ReleaseGroup struct {
			PrimaryType    string   `json:"primary-type"`
			SecondaryTypes []string `json:"secondary-types"`
		} `json:"release-group"`
	} `json:"releases"`
	FirstReleaseDate string `json:"first-release-date"`
}

type mbSearchResponse struct {
	Recordings []mbRecording `json:"recordings"`
}

// Search queries MusicBrainz recordings matching the artist and title.
func (m *MusicBrainz) Search(ctx context.Context, artist, title, album string) ([]models.CandidateRecord, error) {
	if err := m.limiter.Wait(ctx, NameMusicBrainz); err != nil {
		return nil, &UnavailableError{Source: NameMusicBrainz, Cause: fmt.Errorf("rate limiter: %w", err)}
	}

	query := fmt.Sprintf(`artist:%q AND recording:%q`, luceneEscape(artist), luceneEscape(title))
	if album != "" {
		query += fmt.Sprintf(` AND release:%q`, luceneEscape(album))
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("fmt", "json")
	params.Set("limit", fmt.Sprintf("%d", mbSearchLimit))

	reqURL := fmt.Sprintf("%s/recording?%s", m.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", m.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, &UnavailableError{Source: NameMusicBrainz, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &UnavailableError{Source: NameMusicBrainz, Cause: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var result mbSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &UnavailableError{Source: NameMusicBrainz, Cause: fmt.Errorf("decode response: %w", err)}
	}

	records := make([]models.CandidateRecord, 0, len(result.Recordings))
	for _, rec := range result.Recordings {
		records = append(records, m.convert(rec))
	}

	m.logger.Debug("recording search completed", "query", query, "results", len(records))

	return records, nil
}

// convert maps a recording hit into a candidate record. The type tag folds
// together the recording disambiguation and the release group types, since
// MusicBrainz spreads version signals across both.
func (m *MusicBrainz) convert(rec mbRecording) models.CandidateRecord {
	record := models.CandidateRecord{
		SourceID:    NameMusicBrainz,
		TrackName:   rec.Title,
		ReleaseDate: rec.FirstReleaseDate,
		ExternalRef: rec.ID,
	}

	if len(rec.ArtistCredit) > 0 {
		record.ArtistName = rec.ArtistCredit[0].Name
	}

	tags := []string{rec.Disambiguation}
	if len(rec.Releases) > 0 {
		release := rec.Releases[0]
		record.AlbumName = release.Title
		if record.ReleaseDate == "" {
			record.ReleaseDate = release.Date
		}
		tags = append(tags, release.ReleaseGroup.PrimaryType)
		tags = append(tags, release.ReleaseGroup.SecondaryTypes...)
	}

	var parts []string
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			parts = append(parts, tag)
		}
	}
	record.TypeTag = strings.ToLower(strings.Join(parts, " "))

	return record
}

// luceneEscape strips characters that would break the quoted Lucene terms.
func luceneEscape(s string) string {
	return strings.NewReplacer(`"`, ` `, `\`, ` `).Replace(s)
}
