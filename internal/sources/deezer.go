// Deezer [Source] implementation
//
// Uses the public /search endpoint, which needs no API key. Deezer reports
// no release dates or version tags on search hits beyond what the album
// title carries, so candidates lean on title and album text for version
// inference.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
)

const (
	defaultDeezerBaseURL = "https://api.deezer.com"
	deezerSearchLimit    = 10
)

// Deezer queries Deezer's public track search.
type Deezer struct {
	baseURL    string
	httpClient *http.Client
	limiter    *RateLimiterMap
	logger     *log.Logger
}

// NewDeezer creates a Deezer adapter. An empty base URL falls back to the
// public API.
func NewDeezer(cfg shared.DeezerConfig, timeout time.Duration, limiter *RateLimiterMap, logger *log.Logger) *Deezer {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultDeezerBaseURL
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	return &Deezer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		logger:     shared.WithLogger(logger, "source", NameDeezer),
	}
}

func (d *Deezer) Name() string { return NameDeezer }

type deezerTrack struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Artist struct {
		Name string `json:"name"`
	} `json:"artist"`
	Album struct {
		Title string `json:"title"`
	} `json:"album"`
}

type deezerSearchResponse struct {
	Data []deezerTrack `json:"data"`
}

// Search queries Deezer for tracks matching the artist and title.
func (d *Deezer) Search(ctx context.Context, artist, title, album string) ([]models.CandidateRecord, error) {
	if err := d.limiter.Wait(ctx, NameDeezer); err != nil {
		return nil, &UnavailableError{Source: NameDeezer, Cause: fmt.Errorf("rate limiter: %w", err)}
	}

	query := fmt.Sprintf(`artist:"%s" track:"%s"`, deezerEscape(artist), deezerEscape(title))
	if album != "" {
		query += fmt.Sprintf(` album:"%s"`, deezerEscape(album))
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(deezerSearchLimit))

	reqURL := d.baseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, &UnavailableError{Source: NameDeezer, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &UnavailableError{Source: NameDeezer, Cause: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var result deezerSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &UnavailableError{Source: NameDeezer, Cause: fmt.Errorf("decode response: %w", err)}
	}

	records := make([]models.CandidateRecord, 0, len(result.Data))
	for _, track := range result.Data {
		records = append(records, models.CandidateRecord{
			SourceID:    NameDeezer,
			ArtistName:  track.Artist.Name,
			TrackName:   track.Title,
			AlbumName:   track.Album.Title,
			ExternalRef: strconv.Itoa(track.ID),
		})
	}

	d.logger.Debug("track search completed", "query", query, "results", len(records))

	return records, nil
}

func deezerEscape(s string) string {
	return strings.ReplaceAll(s, `"`, " ")
}
