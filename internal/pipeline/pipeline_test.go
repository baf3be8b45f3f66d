package pipeline

import (
	"context"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
	mocks "github.com/desertthunder/mixtape/internal/testing"
)

func testEngine(v Verifier, p ProviderSearcher, cfg shared.PipelineConfig) *Engine {
	return NewEngine(v, p, cfg, shared.NewLogger(io.Discard))
}

func confirmed(source string) models.VerificationVerdict {
	return models.VerificationVerdict{
		Status:              models.StatusConfirmed,
		BestMatch:           &models.CandidateRecord{SourceID: source},
		ContributingSources: []string{source},
	}
}

// confirmedAs builds a confirmed verdict whose best match carries the
// verified artist and title, the way a real verification run would.
func confirmedAs(source, artist, title string) models.VerificationVerdict {
	return models.VerificationVerdict{
		Status:              models.StatusConfirmed,
		BestMatch:           &models.CandidateRecord{SourceID: source, ArtistName: artist, TrackName: title},
		ContributingSources: []string{source},
	}
}

// delayedVerifier wraps verdicts with a per-request artificial delay to
// shake out ordering assumptions in the worker pool.
type delayedVerifier struct {
	verdicts map[string]models.VerificationVerdict
	delays   map[string]time.Duration
}

func (d *delayedVerifier) Verify(ctx context.Context, req models.TrackRequest) (models.VerificationVerdict, error) {
	if wait, ok := d.delays[req.String()]; ok {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return models.VerificationVerdict{}, ctx.Err()
		}
	}
	if verdict, ok := d.verdicts[req.String()]; ok {
		return verdict, nil
	}
	return models.VerificationVerdict{Status: models.StatusRejected, Reason: "no source produced a sufficiently confident match"}, nil
}

func TestResolve(t *testing.T) {
	requests := []models.TrackRequest{
		{Artist: "Daft Punk", Title: "One More Time"},
		{Artist: "Fictional Band", Title: "Imaginary Song"},
		{Artist: "Kavinsky", Title: "Nightcall"},
		{Artist: "", Title: "No Artist"},
	}

	verifier := &mocks.MockVerifier{
		Verdicts: map[string]models.VerificationVerdict{
			"Daft Punk - One More Time": confirmedAs("musicbrainz", "Daft Punk", "One More Time"),
			"Kavinsky - Nightcall":      confirmedAs("deezer", "Kavinsky", "Nightcall"),
		},
	}
	provider := &mocks.MockProvider{
		Tracks: map[string]*models.ProviderTrack{
			"Daft Punk - One More Time": {ID: "sp1", Title: "One More Time", Artist: "Daft Punk"},
			// Kavinsky deliberately absent from the provider catalog
		},
	}

	t.Run("every request lands in exactly one bucket", func(t *testing.T) {
		engine := testEngine(verifier, provider, shared.PipelineConfig{Workers: 3})

		report, err := engine.Resolve(context.Background(), requests, nil)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}

		if report.Total() != len(requests) {
			t.Errorf("expected %d accounted requests, got %d", len(requests), report.Total())
		}
		if len(report.Resolved) != 1 {
			t.Fatalf("expected 1 resolved, got %d", len(report.Resolved))
		}
		if report.Resolved[0].ProviderTrackID != "sp1" {
			t.Errorf("unexpected provider track: %q", report.Resolved[0].ProviderTrackID)
		}
		if len(report.Failed) != 3 {
			t.Fatalf("expected 3 failed, got %d", len(report.Failed))
		}
	})

	t.Run("failure reasons", func(t *testing.T) {
		engine := testEngine(verifier, provider, shared.PipelineConfig{Workers: 2})

		report, err := engine.Resolve(context.Background(), requests, nil)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}

		reasons := map[string]string{}
		for _, f := range report.Failed {
			reasons[f.Request.String()] = f.Reason
		}

		if reasons[" - No Artist"] != ReasonInvalidRequest {
			t.Errorf("expected invalid request reason, got %q", reasons[" - No Artist"])
		}
		if reasons["Kavinsky - Nightcall"] != ReasonProviderUnavailable {
			t.Errorf("expected provider unavailable reason, got %q", reasons["Kavinsky - Nightcall"])
		}
		if reasons["Fictional Band - Imaginary Song"] == "" {
			t.Error("expected rejection reason for hallucinated track")
		}
	})

	t.Run("verification outage", func(t *testing.T) {
		engine := testEngine(&mocks.MockVerifier{Unavailable: true}, provider, shared.PipelineConfig{})

		report, err := engine.Resolve(context.Background(), requests[:1], nil)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if len(report.Failed) != 1 || report.Failed[0].Reason != ReasonVerificationDown {
			t.Errorf("expected verification down reason, got %+v", report.Failed)
		}
	})

	t.Run("degraded verdicts still resolve", func(t *testing.T) {
		degraded := &mocks.MockVerifier{
			Verdicts: map[string]models.VerificationVerdict{
				"Daft Punk - One More Time": {
					Status:    models.StatusDegraded,
					BestMatch: &models.CandidateRecord{SourceID: "musicbrainz"},
				},
			},
		}
		engine := testEngine(degraded, provider, shared.PipelineConfig{})

		report, err := engine.Resolve(context.Background(), requests[:1], nil)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if len(report.Resolved) != 1 {
			t.Fatalf("expected degraded track to resolve, got %+v", report.Failed)
		}
		if report.Resolved[0].Verdict.Status != models.StatusDegraded {
			t.Errorf("expected degraded status preserved, got %s", report.Resolved[0].Verdict.Status)
		}
	})

	t.Run("provider searches with verified metadata", func(t *testing.T) {
		req := models.TrackRequest{Artist: "daft pnuk", Title: "one mor time"}
		sloppy := &mocks.MockVerifier{
			Verdicts: map[string]models.VerificationVerdict{
				req.String(): {
					Status: models.StatusConfirmed,
					BestMatch: &models.CandidateRecord{
						ArtistName: "Daft Punk",
						TrackName:  "One More Time",
						AlbumName:  "Discovery",
					},
					ContributingSources: []string{"musicbrainz", "deezer"},
				},
			},
		}
		corrected := &mocks.MockProvider{
			Tracks: map[string]*models.ProviderTrack{
				"Daft Punk - One More Time": {ID: "sp1", Title: "One More Time", Artist: "Daft Punk"},
			},
		}
		engine := testEngine(sloppy, corrected, shared.PipelineConfig{Workers: 1})

		report, err := engine.Resolve(context.Background(), []models.TrackRequest{req}, nil)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if len(report.Resolved) != 1 || report.Resolved[0].ProviderTrackID != "sp1" {
			t.Fatalf("expected the corrected metadata to resolve, got %+v", report)
		}
		if len(corrected.Queries) != 1 {
			t.Fatalf("expected 1 provider query, got %d", len(corrected.Queries))
		}
		q := corrected.Queries[0]
		if q.Artist != "Daft Punk" || q.Title != "One More Time" || q.Album != "Discovery" {
			t.Errorf("provider searched with %q/%q/%q, want verified metadata", q.Artist, q.Title, q.Album)
		}
	})

	t.Run("verified metadata falls back to the request per field", func(t *testing.T) {
		req := models.TrackRequest{Artist: "Kavinsky", Title: "Nightcall"}
		partial := &mocks.MockVerifier{
			Verdicts: map[string]models.VerificationVerdict{
				req.String(): {
					Status:              models.StatusConfirmed,
					BestMatch:           &models.CandidateRecord{SourceID: "deezer"},
					ContributingSources: []string{"deezer"},
				},
			},
		}
		fallback := &mocks.MockProvider{
			Tracks: map[string]*models.ProviderTrack{
				"Kavinsky - Nightcall": {ID: "sp9"},
			},
		}
		engine := testEngine(partial, fallback, shared.PipelineConfig{Workers: 1})

		report, err := engine.Resolve(context.Background(), []models.TrackRequest{req}, nil)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if len(report.Resolved) != 1 || report.Resolved[0].ProviderTrackID != "sp9" {
			t.Fatalf("expected fallback to request fields, got %+v", report)
		}
	})

	t.Run("order preserved under uneven latency", func(t *testing.T) {
		var batch []models.TrackRequest
		verdicts := map[string]models.VerificationVerdict{}
		delays := map[string]time.Duration{}
		tracks := map[string]*models.ProviderTrack{}

		rng := rand.New(rand.NewSource(42))
		for i := 0; i < 12; i++ {
			req := models.TrackRequest{Artist: "Artist", Title: string(rune('A' + i))}
			batch = append(batch, req)
			verdicts[req.String()] = confirmed("musicbrainz")
			delays[req.String()] = time.Duration(rng.Intn(20)) * time.Millisecond
			tracks[req.String()] = &models.ProviderTrack{ID: req.Title}
		}

		engine := testEngine(
			&delayedVerifier{verdicts: verdicts, delays: delays},
			&mocks.MockProvider{Tracks: tracks},
			shared.PipelineConfig{Workers: 4},
		)

		report, err := engine.Resolve(context.Background(), batch, nil)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if len(report.Resolved) != len(batch) {
			t.Fatalf("expected %d resolved, got %d", len(batch), len(report.Resolved))
		}
		for i, resolved := range report.Resolved {
			if resolved.Request.Title != batch[i].Title {
				t.Fatalf("order broken at %d: got %q, want %q", i, resolved.Request.Title, batch[i].Title)
			}
		}
	})

	t.Run("cancellation discards partial results", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		engine := testEngine(verifier, provider, shared.PipelineConfig{})
		report, err := engine.Resolve(ctx, requests, nil)
		if err == nil {
			t.Error("expected error for canceled context")
		}
		if report != nil {
			t.Errorf("expected no report after cancellation, got %+v", report)
		}
	})

	t.Run("batch deadline fails unfinished tracks", func(t *testing.T) {
		slow := &mocks.MockVerifier{
			Delay: 400 * time.Millisecond,
			Verdicts: map[string]models.VerificationVerdict{
				"Daft Punk - One More Time": confirmed("musicbrainz"),
			},
		}
		batch := []models.TrackRequest{
			{Artist: "Daft Punk", Title: "One More Time"},
			{Artist: "Daft Punk", Title: "One More Time"},
			{Artist: "Daft Punk", Title: "One More Time"},
			{Artist: "Daft Punk", Title: "One More Time"},
			{Artist: "Daft Punk", Title: "One More Time"},
		}

		engine := testEngine(slow, provider, shared.PipelineConfig{Workers: 1, BatchTimeout: 1})
		report, err := engine.Resolve(context.Background(), batch, nil)
		if err != nil {
			t.Fatalf("expected report despite batch deadline, got error: %v", err)
		}
		if report.Total() != len(batch) {
			t.Errorf("expected %d accounted requests, got %d", len(batch), report.Total())
		}

		timedOut := 0
		for _, f := range report.Failed {
			if f.Reason == ReasonTimedOut {
				timedOut++
			}
		}
		if timedOut == 0 {
			t.Error("expected at least one timed out track")
		}
		if len(report.Resolved) == 0 {
			t.Error("expected at least one track resolved before the deadline")
		}
	})

	t.Run("progress updates are emitted", func(t *testing.T) {
		progress := make(chan ProgressUpdate, 64)
		engine := testEngine(verifier, provider, shared.PipelineConfig{Workers: 2})

		if _, err := engine.Resolve(context.Background(), requests, progress); err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		close(progress)

		count := 0
		for range progress {
			count++
		}
		if count < len(requests) {
			t.Errorf("expected at least %d updates, got %d", len(requests), count)
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		engine := testEngine(verifier, provider, shared.PipelineConfig{})
		report, err := engine.Resolve(context.Background(), nil, nil)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if report.Total() != 0 {
			t.Errorf("expected empty report, got %d entries", report.Total())
		}
	})
}
