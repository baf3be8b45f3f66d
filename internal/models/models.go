// package models defines the data model for the playlist resolution service
package models

import (
	"fmt"
	"strings"
	"time"
)

// VersionPreference identifies which recording of a work the caller wants.
type VersionPreference string

const (
	VersionStudio      VersionPreference = "studio"
	VersionLive        VersionPreference = "live"
	VersionRemix       VersionPreference = "remix"
	VersionCompilation VersionPreference = "compilation"
	VersionOriginal    VersionPreference = "original"
	VersionRemaster    VersionPreference = "remaster"
)

// ParseVersionPreference maps a raw string onto a known preference.
// Unknown or empty values default to studio.
func ParseVersionPreference(s string) VersionPreference {
	switch VersionPreference(strings.ToLower(strings.TrimSpace(s))) {
	case VersionLive:
		return VersionLive
	case VersionRemix:
		return VersionRemix
	case VersionCompilation:
		return VersionCompilation
	case VersionOriginal:
		return VersionOriginal
	case VersionRemaster:
		return VersionRemaster
	default:
		return VersionStudio
	}
}

// TrackRequest is one track proposed by the generator, the unit of work
// for the resolution pipeline. Immutable once created.
type TrackRequest struct {
	Artist  string            `json:"artist"`
	Title   string            `json:"track"`
	Album   string            `json:"album,omitempty"`
	Version VersionPreference `json:"version,omitempty"`
}

// Validate checks the request for the fields the pipeline requires.
func (t TrackRequest) Validate() error {
	if strings.TrimSpace(t.Artist) == "" {
		return fmt.Errorf("artist must not be empty")
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("track title must not be empty")
	}
	return nil
}

// String renders the request for logs and failure reasons.
func (t TrackRequest) String() string {
	return fmt.Sprintf("%s - %s", t.Artist, t.Title)
}

// CandidateRecord is one raw result returned by a single metadata source.
// Records live for a single pipeline run and are never persisted.
type CandidateRecord struct {
	SourceID    string `json:"source_id"`
	ArtistName  string `json:"artist_name"`
	TrackName   string `json:"track_name"`
	AlbumName   string `json:"album_name,omitempty"`
	ReleaseDate string `json:"release_date,omitempty"` // ISO-ish, partial dates allowed (year-only)
	TypeTag     string `json:"type_tag,omitempty"`     // source-specific classification ("live", "compilation", ...)
	ExternalRef string `json:"external_ref"`           // opaque source identifier, provenance only
}

// MatchResult is the matcher's verdict for a single source's candidate list.
type MatchResult struct {
	Candidate    *CandidateRecord `json:"candidate,omitempty"`
	Score        float64          `json:"score"`
	VersionMatch bool             `json:"version_match"`
}

// VerdictStatus enumerates the verifier's possible decisions.
type VerdictStatus string

const (
	StatusConfirmed VerdictStatus = "confirmed"
	StatusDegraded  VerdictStatus = "degraded"
	StatusRejected  VerdictStatus = "rejected"
)

// VerificationVerdict is the combined cross-source decision for one request.
//
// Invariants: a rejected verdict carries no best match, and a confirmed
// verdict is backed by at least one contributing source.
type VerificationVerdict struct {
	Status              VerdictStatus    `json:"status"`
	BestMatch           *CandidateRecord `json:"best_match,omitempty"`
	ContributingSources []string         `json:"contributing_sources,omitempty"`
	Reason              string           `json:"reason,omitempty"`
}

// ProviderTrack is a playable track on the streaming provider.
type ProviderTrack struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album,omitempty"`
	URI    string `json:"uri,omitempty"`
}

// ResolvedTrack is the pipeline output for a successfully resolved request.
type ResolvedTrack struct {
	Request         TrackRequest        `json:"request"`
	Verdict         VerificationVerdict `json:"verdict"`
	ProviderTrackID string              `json:"provider_track_id"`
}

// FailedTrack records a request the pipeline could not resolve, with a
// human-readable reason suitable for direct display.
type FailedTrack struct {
	Request TrackRequest `json:"request"`
	Reason  string       `json:"reason"`
}

// PipelineReport is the batch-level output of a resolution run.
//
// Both sequences preserve input order, and every input request appears in
// exactly one of the two.
type PipelineReport struct {
	Resolved []ResolvedTrack `json:"resolved"`
	Failed   []FailedTrack   `json:"failed"`
}

// Total returns the number of requests the report accounts for.
func (r *PipelineReport) Total() int {
	return len(r.Resolved) + len(r.Failed)
}

// TrackIDs returns the provider track IDs of the resolved sequence, in order.
func (r *PipelineReport) TrackIDs() []string {
	ids := make([]string, len(r.Resolved))
	for i, rt := range r.Resolved {
		ids[i] = rt.ProviderTrackID
	}
	return ids
}

// Playlist represents a playlist on the streaming provider.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TrackCount  int    `json:"track_count"`
	Public      bool   `json:"public"`
	URI         string `json:"uri,omitempty"`
}

// Model defines the base interface for persistent records.
type Model interface {
	ID() string           // ID returns the unique identifier for this record
	CreatedAt() time.Time // CreatedAt returns when this record was created
	Validate() error      // Validate checks the record's data before persistence
}

// Run is a persisted record of one completed resolution batch. Written after
// the batch finishes, never read back by the pipeline itself.
type Run struct {
	RunID         string    `json:"id"`
	Prompt        string    `json:"prompt,omitempty"`
	PlaylistID    string    `json:"playlist_id,omitempty"`
	ResolvedCount int       `json:"resolved_count"`
	FailedCount   int       `json:"failed_count"`
	ReportJSON    string    `json:"report_json"`
	Created       time.Time `json:"created_at"`
}

func (r *Run) ID() string           { return r.RunID }
func (r *Run) CreatedAt() time.Time { return r.Created }

func (r *Run) Validate() error {
	if r.RunID == "" {
		return fmt.Errorf("run id must not be empty")
	}
	if r.ResolvedCount < 0 || r.FailedCount < 0 {
		return fmt.Errorf("run counts must not be negative")
	}
	return nil
}
