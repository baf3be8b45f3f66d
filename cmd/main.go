package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/mixtape/internal/services"
	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}
	shared.LoadEnv(config)

	var spotifyService *services.SpotifyService
	if config.Credentials.Spotify.ClientID != "" && config.Credentials.Spotify.ClientSecret != "" {
		if svc, err := services.NewSpotifyService(config.Credentials.Spotify.Map()); err == nil {
			spotifyService = svc
		}
	}

	var generator services.Generator
	if config.Credentials.Gemini.APIKey != "" {
		if gen, err := services.NewGeminiGenerator(config.Credentials.Gemini.APIKey, config.Credentials.Gemini.Model, logger); err == nil {
			generator = gen
		}
	}

	runner := NewRunner(RunnerOpts{
		Config:    config,
		Spotify:   spotifyService,
		Generator: generator,
		Logger:    logger,
	})

	app := &cli.Command{
		Name:     "mixtape",
		Usage:    "Build verified Spotify playlists from AI suggestions",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		err_ := errors.Unwrap(err)
		if errors.Is(err_, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		} else {
			logger.Fatalf("application error: %v", err)
		}
	}
}
