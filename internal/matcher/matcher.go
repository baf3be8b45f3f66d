// package matcher scores metadata source candidates against a track request.
//
// Matching is deterministic: the same request and candidate list always
// produce the same result. Similarity is a normalized Levenshtein ratio from
// [strutil], computed over normalized strings (case folded, diacritics
// stripped, version suffixes removed).
package matcher

import (
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
)

// Thresholds carries every numeric cutoff used by the matcher and verifier.
// Loaded from configuration so tuning does not require code changes.
type Thresholds struct {
	ArtistFloor    float64 // below this artist similarity a candidate is disqualified
	Acceptable     float64 // minimum score for a source to count toward confirmation
	HighConfidence float64 // single-source confirmation cutoff
	CrossAgreement float64 // similarity two sources' matches need to count as the same work
	DegradedFloor  float64 // minimum score for a degraded (unconfirmed) verdict
}

// DefaultThresholds returns the tuned starting values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ArtistFloor:    0.6,
		Acceptable:     0.75,
		HighConfidence: 0.9,
		CrossAgreement: 0.9,
		DegradedFloor:  0.5,
	}
}

// Score weights for the combined similarity. Album weight is redistributed
// when either side lacks an album.
const (
	artistWeight = 0.4
	titleWeight  = 0.5
	albumWeight  = 0.1
)

// Matcher ranks candidate records for a request.
type Matcher struct {
	thresholds Thresholds
	metric     *metrics.Levenshtein
}

// New creates a Matcher with the given thresholds.
func New(thresholds Thresholds) *Matcher {
	return &Matcher{
		thresholds: thresholds,
		metric:     metrics.NewLevenshtein(),
	}
}

// Thresholds returns the matcher's configured cutoffs.
func (m *Matcher) Thresholds() Thresholds {
	return m.thresholds
}

// Similarity computes a normalized string similarity in [0,1] over folded
// inputs. Deterministic for any input pair.
func (m *Matcher) Similarity(a, b string) float64 {
	return strutil.Similarity(shared.Normalize(a), shared.Normalize(b), m.metric)
}

// TrackSimilarity measures whether two candidates refer to the same work,
// combining artist and title similarity with the matcher's usual weights.
func (m *Matcher) TrackSimilarity(a, b *models.CandidateRecord) float64 {
	if a == nil || b == nil {
		return 0
	}
	artist := m.Similarity(a.ArtistName, b.ArtistName)
	aTitle, _ := shared.StripVersionSuffix(a.TrackName)
	bTitle, _ := shared.StripVersionSuffix(b.TrackName)
	title := m.Similarity(aTitle, bTitle)
	return (artist*artistWeight + title*titleWeight) / (artistWeight + titleWeight)
}

// scored pairs a candidate with its computed rank inputs.
type scored struct {
	candidate    models.CandidateRecord
	score        float64
	versionMatch bool
}

// Match scores and ranks the candidates from one source against the request.
// Returns a zero-score result with no candidate when the list is empty or
// every candidate is disqualified by the artist floor.
func (m *Matcher) Match(req models.TrackRequest, candidates []models.CandidateRecord) models.MatchResult {
	reqTitle, _ := shared.StripVersionSuffix(req.Title)
	preference := normalizePreference(req.Version)

	ranked := make([]scored, 0, len(candidates))
	for _, cand := range candidates {
		artistSim := m.Similarity(req.Artist, cand.ArtistName)
		if artistSim < m.thresholds.ArtistFloor {
			continue
		}

		candTitle, candHint := shared.StripVersionSuffix(cand.TrackName)
		titleSim := m.Similarity(reqTitle, candTitle)

		var score float64
		if req.Album != "" && cand.AlbumName != "" {
			albumBare, _ := shared.StripVersionSuffix(cand.AlbumName)
			albumSim := m.Similarity(req.Album, albumBare)
			score = artistSim*artistWeight + titleSim*titleWeight + albumSim*albumWeight
		} else {
			// Renormalize so a missing album does not cap the score below 1.
			score = (artistSim*artistWeight + titleSim*titleWeight) / (artistWeight + titleWeight)
		}

		inferred := InferVersion(cand.TypeTag, candHint, cand.AlbumName)

		ranked = append(ranked, scored{
			candidate:    cand,
			score:        score,
			versionMatch: inferred == preference,
		})
	}

	if len(ranked) == 0 {
		return models.MatchResult{Score: 0}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].versionMatch != ranked[j].versionMatch {
			return ranked[i].versionMatch
		}
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return releaseDateBefore(ranked[i].candidate.ReleaseDate, ranked[j].candidate.ReleaseDate)
	})

	best := ranked[0]
	return models.MatchResult{
		Candidate:    &best.candidate,
		Score:        best.score,
		VersionMatch: best.versionMatch,
	}
}

// InferVersion classifies a candidate from its source type tag, any version
// hint extracted from its title, and its album name. Absence of any signal
// means a plain studio recording.
func InferVersion(typeTag, hint, albumName string) models.VersionPreference {
	signal := shared.Normalize(typeTag) + " " + shared.Normalize(hint) + " " + shared.Normalize(albumName)

	switch {
	case strings.Contains(signal, "live"):
		return models.VersionLive
	case strings.Contains(signal, "remix"):
		return models.VersionRemix
	case strings.Contains(signal, "compilation") || strings.Contains(signal, "greatest hits"):
		return models.VersionCompilation
	case strings.Contains(signal, "remaster"):
		return models.VersionRemaster
	default:
		return models.VersionStudio
	}
}

// normalizePreference folds the original preference onto studio: untagged
// releases are the implicit default for both.
func normalizePreference(v models.VersionPreference) models.VersionPreference {
	switch v {
	case "", models.VersionOriginal:
		return models.VersionStudio
	default:
		return v
	}
}

// releaseDateBefore orders partial ISO dates ascending, treating absent
// dates as latest. Lexicographic comparison is sufficient for YYYY,
// YYYY-MM, and YYYY-MM-DD forms.
func releaseDateBefore(a, b string) bool {
	if a == "" {
		return false
	}
	if b == "" {
		return true
	}
	return a < b
}
