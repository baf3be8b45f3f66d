package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/urfave/cli/v3"
)

// SourcesTest queries every enabled metadata source for one track and prints
// what each returned, which is useful for checking connectivity and config.
func (r *Runner) SourcesTest(ctx context.Context, cmd *cli.Command) error {
	artist := cmd.StringArg("artist")
	title := cmd.StringArg("title")
	album := cmd.String("album")
	useJSON := cmd.Bool("json")

	if artist == "" || title == "" {
		return fmt.Errorf("%w: artist and title arguments are required", shared.ErrMissingArgument)
	}

	srcs, err := r.buildSources()
	if err != nil {
		return err
	}

	type sourceResult struct {
		Source     string   `json:"source"`
		Count      int      `json:"count"`
		Top        string   `json:"top,omitempty"`
		Error      string   `json:"error,omitempty"`
		Candidates []string `json:"candidates,omitempty"`
	}

	results := make([]sourceResult, 0, len(srcs))
	for _, src := range srcs {
		result := sourceResult{Source: src.Name()}

		candidates, err := src.Search(ctx, artist, title, album)
		if err != nil {
			result.Error = err.Error()
			results = append(results, result)
			continue
		}

		result.Count = len(candidates)
		for _, c := range candidates {
			line := fmt.Sprintf("%s - %s", c.ArtistName, c.TrackName)
			if c.AlbumName != "" {
				line += fmt.Sprintf(" (%s)", c.AlbumName)
			}
			result.Candidates = append(result.Candidates, line)
		}
		if len(result.Candidates) > 0 {
			result.Top = result.Candidates[0]
		}
		results = append(results, result)
	}

	if useJSON {
		return r.writeJSON(results, true)
	}

	r.writePlain("Query: %s - %s\n\n", artist, title)
	for _, result := range results {
		if result.Error != "" {
			r.writePlain("✗ %s: %s\n", result.Source, result.Error)
			continue
		}
		r.writePlain("✓ %s: %d candidates\n", result.Source, result.Count)
		for i, line := range result.Candidates {
			if i >= 3 {
				r.writePlain("    ...\n")
				break
			}
			r.writePlain("    %s\n", line)
		}
	}

	return nil
}
