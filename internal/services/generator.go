// Gemini implementation of [Generator]
//
// Uses the generateContent REST endpoint:
// https://ai.google.dev/api/generate-content
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

const curatorPrompt = `You are a professional music curator. Your goal is to generate a list of songs based on the user's
description. Return ONLY a raw JSON array of objects. Do not include markdown formatting, code
blocks, or explanatory text.
Each object must follow this schema:
{
  "artist": "Artist Name",
  "track": "Track Title",
  "album": "Album Name or null",
  "version": "studio" | "live" | "remix" | "original" | "remaster" | null
}
If the user specifies a number of songs, try to meet that count. Default to 20 if unspecified.`

// generator request/response wire types

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseMIMEType string `json:"responseMimeType,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type generatedTrack struct {
	Artist  string `json:"artist"`
	Track   string `json:"track"`
	Album   string `json:"album"`
	Version string `json:"version"`
}

// GeminiGenerator implements [Generator] against the Gemini API.
type GeminiGenerator struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	retries    int
	backoff    time.Duration
	logger     *log.Logger
}

// NewGeminiGenerator creates a generator for the given API key and model name.
func NewGeminiGenerator(apiKey, model string, logger *log.Logger) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini api key", shared.ErrMissingCredentials)
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &GeminiGenerator{
		apiKey:     apiKey,
		model:      model,
		baseURL:    geminiBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		retries:    2,
		backoff:    time.Second,
		logger:     logger,
	}, nil
}

// SetBaseURL overrides the API base URL. Used by tests.
func (g *GeminiGenerator) SetBaseURL(u string) {
	g.baseURL = u
}

// Generate asks the model for a track list matching the description. The
// model's output is untrusted: entries missing an artist or title are dropped
// and everything else is verified downstream.
func (g *GeminiGenerator) Generate(ctx context.Context, description string, count int) ([]models.TrackRequest, error) {
	if count <= 0 {
		count = 20
	}

	userMessage := fmt.Sprintf("Create a playlist with %d songs based on this description:\n%q", count, description)

	var text string
	var err error
	for attempt := 0; attempt <= g.retries; attempt++ {
		if attempt > 0 {
			wait := g.backoff * time.Duration(1<<(attempt-1))
			g.logger.Warn("retrying generation", "attempt", attempt, "wait", wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		text, err = g.generateContent(ctx, userMessage)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrGenerationFailed, err)
	}

	tracks, err := parseGeneratedTracks(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrGenerationFailed, err)
	}

	requests := make([]models.TrackRequest, 0, len(tracks))
	seen := make(map[string]bool, len(tracks))
	for _, t := range tracks {
		if t.Artist == "" || t.Track == "" {
			continue
		}
		// The model occasionally repeats a track under a slightly different
		// spelling or version suffix.
		key := shared.NormalizeTrackKey(t.Track, t.Artist)
		if seen[key] {
			continue
		}
		seen[key] = true
		requests = append(requests, models.TrackRequest{
			Artist:  t.Artist,
			Title:   t.Track,
			Album:   t.Album,
			Version: models.ParseVersionPreference(t.Version),
		})
	}

	g.logger.Info("generated track list", "requested", count, "usable", len(requests))
	return requests, nil
}

// generateContent performs one generateContent call and returns the raw text
// of the first candidate.
func (g *GeminiGenerator) generateContent(ctx context.Context, userMessage string) (string, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: userMessage}}},
		},
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: curatorPrompt}}},
		GenerationConfig:  &geminiGenerationConfig{ResponseMIMEType: "application/json"},
	}

	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(encoded))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("gemini API error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var result geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from model")
	}

	return result.Candidates[0].Content.Parts[0].Text, nil
}

// parseGeneratedTracks decodes the model output, tolerating stray markdown
// fences and a {"tracks": [...]} wrapper.
func parseGeneratedTracks(text string) ([]generatedTrack, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var tracks []generatedTrack
	if err := json.Unmarshal([]byte(text), &tracks); err == nil {
		return tracks, nil
	}

	var wrapped struct {
		Tracks []generatedTrack `json:"tracks"`
	}
	if err := json.Unmarshal([]byte(text), &wrapped); err == nil && wrapped.Tracks != nil {
		return wrapped.Tracks, nil
	}

	return nil, fmt.Errorf("response was not a list of tracks")
}
