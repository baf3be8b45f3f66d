package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/pipeline"
	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/desertthunder/mixtape/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI generates a track list for the prompt and walks through preview,
// confirmation and resolution interactively.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	prompt := cmd.StringArg("prompt")
	count := cmd.Int("count")
	name := cmd.String("name")
	public := cmd.Bool("public")

	if prompt == "" {
		return fmt.Errorf("%w: a playlist description is required", shared.ErrMissingArgument)
	}
	if r.generator == nil {
		return fmt.Errorf("%w: generator not configured, set GEMINI_API_KEY or credentials.gemini.api_key", shared.ErrMissingCredentials)
	}
	if err := r.requireSpotify(ctx); err != nil {
		return err
	}

	r.logger.Info("generating track list", "prompt", prompt, "count", count)
	requests, err := r.generator.Generate(ctx, prompt, int(count))
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	if len(requests) == 0 {
		return fmt.Errorf("%w: the model produced no usable tracks", shared.ErrGenerationFailed)
	}

	playlistName := name
	if playlistName == "" {
		playlistName = prompt
		if len(playlistName) > 60 {
			playlistName = playlistName[:60]
		}
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/mixtape-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	build := func(buildCtx context.Context, progress chan<- pipeline.ProgressUpdate) (*ui.BuildOutcome, error) {
		engine, err := r.buildEngine(r.spotify)
		if err != nil {
			return nil, err
		}

		report, err := engine.Resolve(buildCtx, requests, progress)
		if err != nil {
			return nil, err
		}

		var playlist *models.Playlist
		if len(report.Resolved) > 0 {
			playlist, err = r.createPlaylist(buildCtx, playlistName, prompt, public, report, progress)
			if err != nil {
				return nil, err
			}
		}

		if err := r.saveRun(prompt, playlist, report); err != nil {
			r.logger.Warn("failed to persist run", "error", err)
		}

		return &ui.BuildOutcome{Report: report, Playlist: playlist}, nil
	}

	model := ui.NewModel(ctx, requests, build)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
