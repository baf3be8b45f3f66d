package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/pipeline"
	"github.com/desertthunder/mixtape/internal/repositories"
	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/urfave/cli/v3"
)

// Build generates a track list from the prompt, verifies it, resolves it
// against Spotify and creates the playlist.
func (r *Runner) Build(ctx context.Context, cmd *cli.Command) error {
	prompt := cmd.StringArg("prompt")
	count := cmd.Int("count")
	name := cmd.String("name")
	public := cmd.Bool("public")
	dryRun := cmd.Bool("dry-run")
	useJSON := cmd.Bool("json")

	if prompt == "" {
		return fmt.Errorf("%w: a playlist description is required", shared.ErrMissingArgument)
	}
	if r.generator == nil {
		return fmt.Errorf("%w: generator not configured, set GEMINI_API_KEY or credentials.gemini.api_key", shared.ErrMissingCredentials)
	}

	if !dryRun {
		if err := r.requireSpotify(ctx); err != nil {
			return err
		}
	}

	r.logger.Info("generating track list", "prompt", prompt, "count", count)
	requests, err := r.generator.Generate(ctx, prompt, int(count))
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	if len(requests) == 0 {
		return fmt.Errorf("%w: the model produced no usable tracks", shared.ErrGenerationFailed)
	}

	r.writePlain("Generated %d track suggestions\n\n", len(requests))

	var provider pipeline.ProviderSearcher
	if !dryRun {
		provider = r.spotify
	}

	engine, err := r.buildEngine(provider)
	if err != nil {
		return err
	}

	progress := make(chan pipeline.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.writePlain("%s\n", update.Message)
		}
	}()

	report, resolveErr := engine.Resolve(ctx, requests, progress)

	var playlist *models.Playlist
	var buildErr error
	if resolveErr == nil && !dryRun && len(report.Resolved) > 0 {
		if name == "" {
			name = prompt
			if len(name) > 60 {
				name = name[:60]
			}
		}
		playlist, buildErr = r.createPlaylist(ctx, name, prompt, public, report, progress)
	}

	close(progress)
	<-done

	if resolveErr != nil {
		return fmt.Errorf("pipeline failed: %w", resolveErr)
	}
	if buildErr != nil {
		return buildErr
	}

	if err := r.saveRun(prompt, playlist, report); err != nil {
		r.logger.Warn("failed to persist run", "error", err)
	}

	if useJSON {
		return r.writeJSON(map[string]any{"playlist": playlist, "report": report}, true)
	}

	return r.writeSummary(report, playlist)
}

// Resolve runs the verification pipeline over a JSON file of track requests,
// or a single track given as arguments. No playlist is created.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	inputPath := cmd.String("input")
	artist := cmd.StringArg("artist")
	title := cmd.StringArg("title")
	useJSON := cmd.Bool("json")

	var requests []models.TrackRequest
	switch {
	case inputPath != "":
		data, err := os.ReadFile(inputPath)
		if err != nil {
			return fmt.Errorf("failed to read input file: %w", err)
		}
		if err := json.Unmarshal(data, &requests); err != nil {
			return fmt.Errorf("failed to parse input file: %w", err)
		}
	case artist != "" && title != "":
		requests = []models.TrackRequest{{
			Artist:  artist,
			Title:   title,
			Album:   cmd.String("album"),
			Version: models.ParseVersionPreference(cmd.String("version")),
		}}
	default:
		return fmt.Errorf("%w: provide --input or artist and title arguments", shared.ErrMissingArgument)
	}

	// Provider resolution only when tokens are available; otherwise this is
	// a verify-only run.
	var provider pipeline.ProviderSearcher
	if r.spotify != nil && r.config.Credentials.Spotify.Token() != nil {
		if err := r.requireSpotify(ctx); err == nil {
			provider = r.spotify
		}
	}

	engine, err := r.buildEngine(provider)
	if err != nil {
		return err
	}

	report, err := r.resolveWithProgress(ctx, engine, requests)
	if err != nil {
		return err
	}

	if useJSON {
		return r.writeJSON(report, true)
	}
	return r.writeSummary(report, nil)
}

// createPlaylist creates the playlist, fills it with the resolved tracks and
// announces the step over the progress channel.
func (r *Runner) createPlaylist(ctx context.Context, name, prompt string, public bool, report *models.PipelineReport, progress chan<- pipeline.ProgressUpdate) (*models.Playlist, error) {
	sendUpdate(progress, pipeline.BuildPlaylistUpdate(0, 1, nil))

	playlist, err := r.spotify.CreatePlaylist(ctx, name, fmt.Sprintf("Generated from: %s", prompt), public)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}

	if err := r.spotify.AddTracks(ctx, playlist.ID, report.TrackIDs()); err != nil {
		return nil, fmt.Errorf("failed to add tracks: %w", err)
	}

	sendUpdate(progress, pipeline.BuildPlaylistUpdate(1, 1, playlist))
	return playlist, nil
}

func sendUpdate(progress chan<- pipeline.ProgressUpdate, update pipeline.ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// resolveWithProgress runs the engine while echoing progress to the terminal.
func (r *Runner) resolveWithProgress(ctx context.Context, engine *pipeline.Engine, requests []models.TrackRequest) (*models.PipelineReport, error) {
	progress := make(chan pipeline.ProgressUpdate, 50)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for update := range progress {
			r.writePlain("%s\n", update.Message)
		}
	}()

	report, err := engine.Resolve(ctx, requests, progress)
	close(progress)
	<-done

	if err != nil {
		return nil, fmt.Errorf("pipeline failed: %w", err)
	}
	return report, nil
}

func (r *Runner) writeSummary(report *models.PipelineReport, playlist *models.Playlist) error {
	r.writePlain("\nResolved %d/%d tracks\n", len(report.Resolved), report.Total())

	if playlist != nil {
		r.writePlain("✓ Playlist created: %s (ID: %s)\n", playlist.Name, playlist.ID)
	}

	for _, resolved := range report.Resolved {
		marker := "✓"
		if resolved.Verdict.Status == models.StatusDegraded {
			marker = "~"
		}
		r.writePlain("  %s %s\n", marker, resolved.Request.String())
	}

	if len(report.Failed) > 0 {
		r.writePlain("\nSkipped %d tracks:\n", len(report.Failed))
		for _, failed := range report.Failed {
			r.writePlain("  ✗ %s (%s)\n", failed.Request.String(), failed.Reason)
		}
	}

	return nil
}

// openDatabase opens the configured run-log database and ensures the schema.
func (r *Runner) openDatabase() (*sql.DB, error) {
	path := r.config.Database.Path
	if path == "" {
		path = "mixtape.db"
	}

	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, err
	}

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := repositories.EnsureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// saveRun records a completed pipeline run in the local database.
func (r *Runner) saveRun(prompt string, playlist *models.Playlist, report *models.PipelineReport) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	reportJSON, err := shared.MarshalJSON(report, false)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	run := &models.Run{
		Prompt:        prompt,
		ResolvedCount: len(report.Resolved),
		FailedCount:   len(report.Failed),
		ReportJSON:    string(reportJSON),
	}
	if playlist != nil {
		run.PlaylistID = playlist.ID
	}

	if err := repositories.NewRunRepository(db).Create(run); err != nil {
		return err
	}

	r.logger.Info("run recorded", "id", run.RunID)
	return nil
}

// RunsList prints recent pipeline runs from the local database.
func (r *Runner) RunsList(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")
	useJSON := cmd.Bool("json")

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := repositories.NewRunRepository(db).List(int(limit))
	if err != nil {
		return err
	}

	if useJSON {
		return r.writeJSON(runs, true)
	}

	if len(runs) == 0 {
		return r.writePlain("No runs recorded yet.\n")
	}

	r.writePlain("Recent runs:\n\n")
	for _, run := range runs {
		r.writePlain("%s  %s\n", run.Created.Format("2006-01-02 15:04"), run.RunID)
		if run.Prompt != "" {
			r.writePlain("  Prompt: %s\n", run.Prompt)
		}
		r.writePlain("  Resolved: %d, Failed: %d\n", run.ResolvedCount, run.FailedCount)
		if run.PlaylistID != "" {
			r.writePlain("  Playlist: %s\n", run.PlaylistID)
		}
		r.writePlain("\n")
	}

	return nil
}

// RunsShow prints the full report of a single recorded run.
func (r *Runner) RunsShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: run id is required", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := repositories.NewRunRepository(db).Get(id)
	if err != nil {
		return err
	}

	var report models.PipelineReport
	if err := json.Unmarshal([]byte(run.ReportJSON), &report); err != nil {
		return fmt.Errorf("failed to parse stored report: %w", err)
	}

	return r.writeJSON(map[string]any{"run": run, "report": report}, true)
}
