// package pipeline orchestrates batch track resolution.
//
// The core abstraction is Engine, which drives each requested track through
// verification and provider resolution on a bounded worker pool. Operations
// emit progress updates via channels for non-blocking status reporting to
// CLI/UI layers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
)

// Failure reasons attached to [models.FailedTrack] records.
const (
	ReasonInvalidRequest      = "invalid request"
	ReasonVerificationDown    = "metadata verification unavailable"
	ReasonProviderUnavailable = "verified but not available on provider"
	ReasonTimedOut            = "timed out"
)

// DefaultWorkers bounds concurrent track resolution when no value is configured.
const DefaultWorkers = 5

// Verifier renders a cross-source verdict for a single track request.
type Verifier interface {
	Verify(ctx context.Context, req models.TrackRequest) (models.VerificationVerdict, error)
}

// ProviderSearcher resolves a verified track to a playable provider track.
// This abstraction allows for easier testing and decoupling from the concrete
// Spotify client.
type ProviderSearcher interface {
	SearchTrack(ctx context.Context, artist, title, album string) (*models.ProviderTrack, error)
}

// Engine resolves batches of track requests. Safe for reuse across runs.
type Engine struct {
	verifier     Verifier
	provider     ProviderSearcher
	workers      int
	batchTimeout time.Duration
	logger       *log.Logger
}

// NewEngine creates an Engine with the provided collaborators. Worker count
// and batch timeout come from configuration; zero values fall back to
// [DefaultWorkers] and no deadline.
func NewEngine(v Verifier, p ProviderSearcher, cfg shared.PipelineConfig, logger *log.Logger) *Engine {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Engine{
		verifier:     v,
		provider:     p,
		workers:      workers,
		batchTimeout: time.Duration(cfg.BatchTimeout) * time.Second,
		logger:       logger,
	}
}

// outcome pairs a result with its input position so the report preserves
// request order regardless of which worker finished first.
type outcome struct {
	resolved *models.ResolvedTrack
	failed   *models.FailedTrack
}

// Resolve verifies and resolves every request in the batch.
//
// Every request lands in exactly one of the report's buckets. Resolution
// order within each bucket follows input order. Cancellation of the parent
// context discards partial results; hitting the batch deadline instead
// fails the unfinished tracks with a timeout reason and returns the report.
func (e *Engine) Resolve(ctx context.Context, requests []models.TrackRequest, progress chan<- ProgressUpdate) (*models.PipelineReport, error) {
	if e.verifier == nil {
		return nil, fmt.Errorf("engine has no verifier")
	}

	batchCtx := ctx
	var cancel context.CancelFunc
	if e.batchTimeout > 0 {
		batchCtx, cancel = context.WithTimeout(ctx, e.batchTimeout)
		defer cancel()
	}

	total := len(requests)
	outcomes := make([]outcome, total)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = e.resolveOne(batchCtx, requests[i], i+1, total, progress)
			}
		}()
	}

	for i := range requests {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	// Parent cancellation invalidates the whole run. The batch deadline only
	// cancels batchCtx, so hitting it still returns a report.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &models.PipelineReport{}
	for _, o := range outcomes {
		if o.resolved != nil {
			report.Resolved = append(report.Resolved, *o.resolved)
		} else if o.failed != nil {
			report.Failed = append(report.Failed, *o.failed)
		}
	}

	e.logger.Info("batch resolved",
		"total", total,
		"resolved", len(report.Resolved),
		"failed", len(report.Failed))

	return report, nil
}

// resolveOne drives a single request through validation, verification and
// provider search.
func (e *Engine) resolveOne(ctx context.Context, req models.TrackRequest, step, total int, progress chan<- ProgressUpdate) outcome {
	if err := req.Validate(); err != nil {
		return e.fail(req, ReasonInvalidRequest, step, total, progress)
	}

	if err := ctx.Err(); err != nil {
		return e.fail(req, ReasonTimedOut, step, total, progress)
	}

	e.sendProgress(progress, verifyingUpdate(step, total, req))

	verdict, err := e.verifier.Verify(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
			return e.fail(req, ReasonTimedOut, step, total, progress)
		case errors.Is(err, shared.ErrAllSourcesUnavailable):
			return e.fail(req, ReasonVerificationDown, step, total, progress)
		default:
			e.logger.Warn("verification failed", "track", req.String(), "error", err)
			return e.fail(req, ReasonVerificationDown, step, total, progress)
		}
	}

	if verdict.Status == models.StatusRejected {
		return e.fail(req, verdict.Reason, step, total, progress)
	}

	if e.provider == nil {
		resolved := &models.ResolvedTrack{Request: req, Verdict: verdict}
		e.sendProgress(progress, resolvedUpdate(step, total, resolved))
		return outcome{resolved: resolved}
	}

	// Search the provider with the source-verified metadata rather than the
	// raw generated strings, which may be misspelled.
	artist, title, album := req.Artist, req.Title, req.Album
	if bm := verdict.BestMatch; bm != nil {
		if bm.ArtistName != "" {
			artist = bm.ArtistName
		}
		if bm.TrackName != "" {
			title = bm.TrackName
		}
		if bm.AlbumName != "" {
			album = bm.AlbumName
		}
	}

	track, err := e.provider.SearchTrack(ctx, artist, title, album)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return e.fail(req, ReasonTimedOut, step, total, progress)
		}
		e.logger.Warn("provider search failed", "track", req.String(), "error", err)
		return e.fail(req, ReasonProviderUnavailable, step, total, progress)
	}
	if track == nil {
		return e.fail(req, ReasonProviderUnavailable, step, total, progress)
	}

	resolved := &models.ResolvedTrack{
		Request:         req,
		Verdict:         verdict,
		ProviderTrackID: track.ID,
	}
	e.sendProgress(progress, resolvedUpdate(step, total, resolved))
	return outcome{resolved: resolved}
}

func (e *Engine) fail(req models.TrackRequest, reason string, step, total int, progress chan<- ProgressUpdate) outcome {
	failed := &models.FailedTrack{Request: req, Reason: reason}
	e.sendProgress(progress, failedUpdate(step, total, failed))
	return outcome{failed: failed}
}

func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}
