package verifier

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/desertthunder/mixtape/internal/matcher"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/desertthunder/mixtape/internal/sources"
	mocks "github.com/desertthunder/mixtape/internal/testing"
)

func testVerifier(srcs ...sources.Source) *Verifier {
	m := matcher.New(matcher.DefaultThresholds())
	opts := Options{Retries: 2, Backoff: time.Millisecond}
	return New(srcs, m, opts, shared.NewLogger(io.Discard))
}

func exactCandidate(source string) models.CandidateRecord {
	return models.CandidateRecord{
		SourceID:    source,
		ArtistName:  "Daft Punk",
		TrackName:   "One More Time",
		AlbumName:   "Discovery",
		ExternalRef: source + "-ref",
	}
}

func TestVerify(t *testing.T) {
	req := models.TrackRequest{Artist: "Daft Punk", Title: "One More Time"}

	t.Run("two agreeing sources confirm", func(t *testing.T) {
		v := testVerifier(
			&mocks.MockSource{SourceName: "musicbrainz", Candidates: []models.CandidateRecord{exactCandidate("musicbrainz")}},
			&mocks.MockSource{SourceName: "deezer", Candidates: []models.CandidateRecord{exactCandidate("deezer")}},
		)

		verdict, err := v.Verify(context.Background(), req)
		if err != nil {
			t.Fatalf("Verify failed: %v", err)
		}
		if verdict.Status != models.StatusConfirmed {
			t.Errorf("expected confirmed, got %s (reason %q)", verdict.Status, verdict.Reason)
		}
		if len(verdict.ContributingSources) != 2 {
			t.Errorf("expected 2 contributing sources, got %v", verdict.ContributingSources)
		}
		if verdict.BestMatch == nil {
			t.Error("confirmed verdict must carry a best match")
		}
	})

	t.Run("best match comes from the agreeing group", func(t *testing.T) {
		// One source scores highest on a different work; the other two agree
		// with each other on a lesser-scoring one. The agreeing pair decides
		// the verdict, and the best match must be theirs.
		other := func(source string) models.CandidateRecord {
			return models.CandidateRecord{
				SourceID:    source,
				ArtistName:  "Daft Punk",
				TrackName:   "One More Time Tonight",
				ExternalRef: source + "-ref",
			}
		}
		v := testVerifier(
			&mocks.MockSource{SourceName: "musicbrainz", Candidates: []models.CandidateRecord{exactCandidate("musicbrainz")}},
			&mocks.MockSource{SourceName: "deezer", Candidates: []models.CandidateRecord{other("deezer")}},
			&mocks.MockSource{SourceName: "spotify", Candidates: []models.CandidateRecord{other("spotify")}},
		)

		verdict, err := v.Verify(context.Background(), req)
		if err != nil {
			t.Fatalf("Verify failed: %v", err)
		}
		if verdict.Status != models.StatusConfirmed {
			t.Fatalf("expected confirmed, got %s (reason %q)", verdict.Status, verdict.Reason)
		}
		if verdict.BestMatch == nil || verdict.BestMatch.TrackName != "One More Time Tonight" {
			t.Fatalf("best match must belong to the agreeing pair, got %+v", verdict.BestMatch)
		}
		if len(verdict.ContributingSources) != 2 {
			t.Fatalf("expected the agreeing pair, got %v", verdict.ContributingSources)
		}
		for _, name := range verdict.ContributingSources {
			if name == "musicbrainz" {
				t.Errorf("disagreeing source listed as contributing: %v", verdict.ContributingSources)
			}
		}
	})

	t.Run("hallucinated track is rejected", func(t *testing.T) {
		unrelated := models.CandidateRecord{
			SourceID:   "musicbrainz",
			ArtistName: "Completely Different Band",
			TrackName:  "Some Other Song Entirely",
		}
		v := testVerifier(
			&mocks.MockSource{SourceName: "musicbrainz", Candidates: []models.CandidateRecord{unrelated}},
			&mocks.MockSource{SourceName: "deezer"},
		)

		verdict, err := v.Verify(context.Background(), req)
		if err != nil {
			t.Fatalf("Verify failed: %v", err)
		}
		if verdict.Status != models.StatusRejected {
			t.Errorf("expected rejected, got %s", verdict.Status)
		}
		if verdict.Reason != RejectionReason {
			t.Errorf("unexpected reason: %q", verdict.Reason)
		}
		if verdict.BestMatch != nil {
			t.Error("rejected verdict must not carry a best match")
		}
	})

	t.Run("single exact match confirms during partial outage", func(t *testing.T) {
		down := &mocks.MockSource{SourceName: "deezer", FailFirst: 10}
		v := testVerifier(
			&mocks.MockSource{SourceName: "musicbrainz", Candidates: []models.CandidateRecord{exactCandidate("musicbrainz")}},
			down,
		)

		verdict, err := v.Verify(context.Background(), req)
		if err != nil {
			t.Fatalf("Verify failed: %v", err)
		}
		if verdict.Status != models.StatusConfirmed {
			t.Errorf("expected confirmed, got %s", verdict.Status)
		}
		if len(verdict.ContributingSources) != 1 || verdict.ContributingSources[0] != "musicbrainz" {
			t.Errorf("expected musicbrainz alone, got %v", verdict.ContributingSources)
		}
	})

	t.Run("single moderate match degrades", func(t *testing.T) {
		near := models.CandidateRecord{
			SourceID:   "musicbrainz",
			ArtistName: "Daft Punk",
			TrackName:  "Around the World in a Day",
		}
		v := testVerifier(
			&mocks.MockSource{SourceName: "musicbrainz", Candidates: []models.CandidateRecord{near}},
			&mocks.MockSource{SourceName: "deezer"},
		)

		verdict, err := v.Verify(context.Background(), models.TrackRequest{Artist: "Daft Punk", Title: "Around the World"})
		if err != nil {
			t.Fatalf("Verify failed: %v", err)
		}
		if verdict.Status != models.StatusDegraded {
			t.Errorf("expected degraded, got %s (reason %q)", verdict.Status, verdict.Reason)
		}
		if verdict.BestMatch == nil {
			t.Error("degraded verdict should carry its best match")
		}
	})

	t.Run("all sources down", func(t *testing.T) {
		v := testVerifier(
			&mocks.MockSource{SourceName: "musicbrainz", FailFirst: 10},
			&mocks.MockSource{SourceName: "deezer", FailFirst: 10},
		)

		_, err := v.Verify(context.Background(), req)
		if !errors.Is(err, shared.ErrAllSourcesUnavailable) {
			t.Errorf("expected ErrAllSourcesUnavailable, got %v", err)
		}
	})

	t.Run("retries transient outage", func(t *testing.T) {
		flaky := &mocks.MockSource{SourceName: "musicbrainz", FailFirst: 1, Candidates: []models.CandidateRecord{exactCandidate("musicbrainz")}}
		v := testVerifier(flaky)

		verdict, err := v.Verify(context.Background(), req)
		if err != nil {
			t.Fatalf("Verify failed: %v", err)
		}
		if verdict.Status != models.StatusConfirmed {
			t.Errorf("expected confirmed after retry, got %s", verdict.Status)
		}
		if flaky.Calls() != 2 {
			t.Errorf("expected 2 attempts, got %d", flaky.Calls())
		}
	})

	t.Run("gives up after retry budget", func(t *testing.T) {
		flaky := &mocks.MockSource{SourceName: "musicbrainz", FailFirst: 10}
		v := testVerifier(flaky)

		_, err := v.Verify(context.Background(), req)
		if !errors.Is(err, shared.ErrAllSourcesUnavailable) {
			t.Errorf("expected ErrAllSourcesUnavailable, got %v", err)
		}
		if flaky.Calls() != 3 {
			t.Errorf("expected 3 attempts, got %d", flaky.Calls())
		}
	})

	t.Run("invalid request", func(t *testing.T) {
		v := testVerifier(&mocks.MockSource{SourceName: "musicbrainz"})
		if _, err := v.Verify(context.Background(), models.TrackRequest{Artist: "Daft Punk"}); err == nil {
			t.Error("expected error for missing title")
		}
	})

	t.Run("no sources configured", func(t *testing.T) {
		v := testVerifier()
		if _, err := v.Verify(context.Background(), req); !errors.Is(err, shared.ErrAllSourcesUnavailable) {
			t.Error("expected ErrAllSourcesUnavailable for empty source list")
		}
	})

	t.Run("verdicts are stable across runs", func(t *testing.T) {
		v := testVerifier(
			&mocks.MockSource{SourceName: "musicbrainz", Candidates: []models.CandidateRecord{exactCandidate("musicbrainz")}},
			&mocks.MockSource{SourceName: "deezer", Candidates: []models.CandidateRecord{exactCandidate("deezer")}},
		)

		first, err := v.Verify(context.Background(), req)
		if err != nil {
			t.Fatalf("Verify failed: %v", err)
		}
		for i := 0; i < 5; i++ {
			again, err := v.Verify(context.Background(), req)
			if err != nil {
				t.Fatalf("Verify failed: %v", err)
			}
			if again.Status != first.Status || len(again.ContributingSources) != len(first.ContributingSources) {
				t.Fatalf("verdict changed between runs: %+v vs %+v", first, again)
			}
		}
	})

	t.Run("cancellation aborts retries", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		flaky := &mocks.MockSource{SourceName: "musicbrainz", FailFirst: 10}
		v := testVerifier(flaky)

		_, err := v.Verify(ctx, req)
		if err == nil {
			t.Error("expected error for canceled context")
		}
		if flaky.Calls() > 1 {
			t.Errorf("expected no retries after cancellation, got %d calls", flaky.Calls())
		}
	})
}
