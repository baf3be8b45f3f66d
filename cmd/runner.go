package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixtape/internal/matcher"
	"github.com/desertthunder/mixtape/internal/pipeline"
	"github.com/desertthunder/mixtape/internal/services"
	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/desertthunder/mixtape/internal/sources"
	"github.com/desertthunder/mixtape/internal/verifier"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	spotify    *services.SpotifyService
	generator  services.Generator
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	Spotify    *services.SpotifyService
	Generator  services.Generator
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		spotify:    opts.Spotify,
		generator:  opts.Generator,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// SetLogger swaps the runner's logger, e.g. to a file logger while the TUI
// owns the terminal.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// thresholds maps the configured matcher cutoffs onto [matcher.Thresholds],
// falling back to the defaults for unset values.
func (r *Runner) thresholds() matcher.Thresholds {
	t := matcher.DefaultThresholds()
	cfg := r.config.Matcher
	if cfg.ArtistFloor > 0 {
		t.ArtistFloor = cfg.ArtistFloor
	}
	if cfg.Acceptable > 0 {
		t.Acceptable = cfg.Acceptable
	}
	if cfg.HighConfidence > 0 {
		t.HighConfidence = cfg.HighConfidence
	}
	if cfg.CrossAgreement > 0 {
		t.CrossAgreement = cfg.CrossAgreement
	}
	if cfg.DegradedFloor > 0 {
		t.DegradedFloor = cfg.DegradedFloor
	}
	return t
}

// buildSources constructs the enabled metadata source adapters.
func (r *Runner) buildSources() ([]sources.Source, error) {
	limiter := sources.NewRateLimiterMap()
	timeout := time.Duration(r.config.Sources.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var srcs []sources.Source
	for _, name := range r.config.Sources.Enabled {
		switch name {
		case sources.NameMusicBrainz:
			srcs = append(srcs, sources.NewMusicBrainz(r.config.Sources.MusicBrainz, timeout, limiter, r.logger))
		case sources.NameDeezer:
			srcs = append(srcs, sources.NewDeezer(r.config.Sources.Deezer, timeout, limiter, r.logger))
		case sources.NameSpotify:
			if r.spotify == nil {
				r.logger.Warn("spotify source enabled but service not initialized, skipping")
				continue
			}
			srcs = append(srcs, sources.NewSpotifyCatalog(r.spotify, r.logger))
		default:
			return nil, fmt.Errorf("%w: unknown source %q", shared.ErrInvalidConfig, name)
		}
	}

	if len(srcs) == 0 {
		return nil, fmt.Errorf("%w: no metadata sources enabled", shared.ErrInvalidConfig)
	}
	return srcs, nil
}

// buildVerifier wires the configured sources, thresholds and retry policy.
func (r *Runner) buildVerifier() (*verifier.Verifier, error) {
	srcs, err := r.buildSources()
	if err != nil {
		return nil, err
	}

	opts := verifier.DefaultOptions()
	if r.config.Pipeline.SourceRetries > 0 {
		opts.Retries = r.config.Pipeline.SourceRetries
	}
	if r.config.Pipeline.RetryBackoffMS > 0 {
		opts.Backoff = time.Duration(r.config.Pipeline.RetryBackoffMS) * time.Millisecond
	}

	return verifier.New(srcs, matcher.New(r.thresholds()), opts, r.logger), nil
}

// buildEngine assembles the resolution pipeline. The provider may be nil for
// verify-only runs.
func (r *Runner) buildEngine(provider pipeline.ProviderSearcher) (*pipeline.Engine, error) {
	v, err := r.buildVerifier()
	if err != nil {
		return nil, err
	}
	return pipeline.NewEngine(v, provider, r.config.Pipeline, r.logger), nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
