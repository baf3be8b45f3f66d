// package verifier cross-checks track requests against independent metadata
// sources and decides whether a request names a real recording.
//
// A single source agreeing with the model proves little; two sources
// converging on the same work is the signal that survives hallucinations.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixtape/internal/matcher"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/desertthunder/mixtape/internal/sources"
)

// RejectionReason is the reason attached to every rejected verdict.
const RejectionReason = "no source produced a sufficiently confident match"

// Options configures retry behavior for flaky sources.
type Options struct {
	Retries int           // additional attempts per source after the first
	Backoff time.Duration // base wait before a retry, doubled each attempt
}

// DefaultOptions returns the standard retry policy.
func DefaultOptions() Options {
	return Options{Retries: 2, Backoff: 500 * time.Millisecond}
}

// Verifier queries all configured sources concurrently and combines their
// best matches into a single [models.VerificationVerdict].
type Verifier struct {
	sources []sources.Source
	matcher *matcher.Matcher
	opts    Options
	logger  *log.Logger
}

// New creates a Verifier over the given sources.
func New(srcs []sources.Source, m *matcher.Matcher, opts Options, logger *log.Logger) *Verifier {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Verifier{sources: srcs, matcher: m, opts: opts, logger: logger}
}

// sourceOutcome is one source's contribution, in configured source order.
type sourceOutcome struct {
	name   string
	result models.MatchResult
	err    error
}

// Verify fans the request out to every source, scores each source's
// candidates and renders the combined verdict. Returns an error wrapping
// [shared.ErrAllSourcesUnavailable] only when no source could be queried at
// all; a verdict is returned in every other case.
func (v *Verifier) Verify(ctx context.Context, req models.TrackRequest) (models.VerificationVerdict, error) {
	if err := req.Validate(); err != nil {
		return models.VerificationVerdict{}, err
	}
	if len(v.sources) == 0 {
		return models.VerificationVerdict{}, fmt.Errorf("no sources configured: %w", shared.ErrAllSourcesUnavailable)
	}

	outcomes := make([]sourceOutcome, len(v.sources))
	var wg sync.WaitGroup
	for i, src := range v.sources {
		wg.Add(1)
		go func(i int, src sources.Source) {
			defer wg.Done()
			candidates, err := v.search(ctx, src, req)
			if err != nil {
				outcomes[i] = sourceOutcome{name: src.Name(), err: err}
				return
			}
			outcomes[i] = sourceOutcome{name: src.Name(), result: v.matcher.Match(req, candidates)}
		}(i, src)
	}
	wg.Wait()

	failed := 0
	for _, o := range outcomes {
		if o.err != nil {
			failed++
			v.logger.Warn("source unavailable", "source", o.name, "track", req.String(), "error", o.err)
		}
	}
	if failed == len(outcomes) {
		return models.VerificationVerdict{}, fmt.Errorf("verifying %q: %w", req.String(), shared.ErrAllSourcesUnavailable)
	}

	return v.decide(outcomes), nil
}

// search queries one source with retries. Only unavailability is retried;
// context cancellation aborts immediately.
func (v *Verifier) search(ctx context.Context, src sources.Source, req models.TrackRequest) ([]models.CandidateRecord, error) {
	var lastErr error
	for attempt := 0; attempt <= v.opts.Retries; attempt++ {
		if attempt > 0 {
			wait := v.opts.Backoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		candidates, err := src.Search(ctx, req.Artist, req.Title, req.Album)
		if err == nil {
			return candidates, nil
		}
		lastErr = err

		if !errors.Is(err, shared.ErrSourceUnavailable) {
			break
		}
	}
	return nil, lastErr
}

// decide applies the confirmation rules over the per-source best matches.
//
// Confirmed needs either two acceptable sources agreeing on the same work, or
// one source alone clearing the high-confidence bar. Anything scoring in the
// degraded band without convergence is passed through unconfirmed so the
// caller can choose what to do with it.
func (v *Verifier) decide(outcomes []sourceOutcome) models.VerificationVerdict {
	thresholds := v.matcher.Thresholds()

	type contribution struct {
		name   string
		result models.MatchResult
	}

	var acceptable []contribution
	var best *contribution
	for _, o := range outcomes {
		if o.err != nil || o.result.Candidate == nil {
			continue
		}
		c := contribution{name: o.name, result: o.result}
		if best == nil || c.result.Score > best.result.Score {
			cc := c
			best = &cc
		}
		if c.result.Score >= thresholds.Acceptable {
			acceptable = append(acceptable, c)
		}
	}

	if best == nil {
		return models.VerificationVerdict{Status: models.StatusRejected, Reason: RejectionReason}
	}

	// Cross-source agreement: at least two acceptable sources resolving to
	// the same work. The verdict's best match must come from the agreeing
	// group, not from a lone source that happened to score higher on a
	// different work.
	if len(acceptable) >= 2 {
		for i, anchor := range acceptable {
			group := []contribution{anchor}
			for j, other := range acceptable {
				if i == j {
					continue
				}
				if v.matcher.TrackSimilarity(anchor.result.Candidate, other.result.Candidate) >= thresholds.CrossAgreement {
					group = append(group, other)
				}
			}
			if len(group) >= 2 {
				top := group[0]
				names := make([]string, len(group))
				for k, c := range group {
					names[k] = c.name
					if c.result.Score > top.result.Score {
						top = c
					}
				}
				return models.VerificationVerdict{
					Status:              models.StatusConfirmed,
					BestMatch:           top.result.Candidate,
					ContributingSources: names,
				}
			}
		}
	}

	if len(acceptable) >= 1 && best.result.Score >= thresholds.HighConfidence {
		return models.VerificationVerdict{
			Status:              models.StatusConfirmed,
			BestMatch:           best.result.Candidate,
			ContributingSources: []string{best.name},
		}
	}

	if best.result.Score >= thresholds.DegradedFloor {
		return models.VerificationVerdict{
			Status:              models.StatusDegraded,
			BestMatch:           best.result.Candidate,
			ContributingSources: []string{best.name},
		}
	}

	return models.VerificationVerdict{Status: models.StatusRejected, Reason: RejectionReason}
}
