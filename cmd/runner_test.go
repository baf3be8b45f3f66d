package main

import (
	"bytes"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
	tu "github.com/desertthunder/mixtape/internal/testing"
)

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})
	})

	t.Run("thresholds", func(t *testing.T) {
		t.Run("unset config falls back to defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: &shared.Config{}})

			got := runner.thresholds()
			if got.Acceptable != 0.75 {
				t.Errorf("expected default acceptable 0.75, got %v", got.Acceptable)
			}
			if got.HighConfidence != 0.9 {
				t.Errorf("expected default high confidence 0.9, got %v", got.HighConfidence)
			}
		})

		t.Run("configured values override defaults", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Matcher.Acceptable = 0.8
			config.Matcher.DegradedFloor = 0.6
			runner := NewRunner(RunnerOpts{Config: config})

			got := runner.thresholds()
			if got.Acceptable != 0.8 {
				t.Errorf("expected acceptable 0.8, got %v", got.Acceptable)
			}
			if got.DegradedFloor != 0.6 {
				t.Errorf("expected degraded floor 0.6, got %v", got.DegradedFloor)
			}
		})
	})

	t.Run("buildSources", func(t *testing.T) {
		t.Run("builds enabled sources", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Sources.Enabled = []string{"musicbrainz", "deezer"}
			runner := NewRunner(RunnerOpts{Config: config})

			srcs, err := runner.buildSources()
			if err != nil {
				t.Fatalf("buildSources failed: %v", err)
			}
			if len(srcs) != 2 {
				t.Fatalf("expected 2 sources, got %d", len(srcs))
			}
			if srcs[0].Name() != "musicbrainz" || srcs[1].Name() != "deezer" {
				t.Errorf("unexpected source order: %s, %s", srcs[0].Name(), srcs[1].Name())
			}
		})

		t.Run("skips spotify source without service", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Sources.Enabled = []string{"musicbrainz", "spotify"}
			runner := NewRunner(RunnerOpts{Config: config})

			srcs, err := runner.buildSources()
			if err != nil {
				t.Fatalf("buildSources failed: %v", err)
			}
			if len(srcs) != 1 {
				t.Fatalf("expected spotify to be skipped, got %d sources", len(srcs))
			}
		})

		t.Run("rejects unknown source name", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Sources.Enabled = []string{"napster"}
			runner := NewRunner(RunnerOpts{Config: config})

			if _, err := runner.buildSources(); err == nil {
				t.Fatal("expected error for unknown source")
			}
		})

		t.Run("rejects empty source list", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Sources.Enabled = nil
			runner := NewRunner(RunnerOpts{Config: config})

			if _, err := runner.buildSources(); err == nil {
				t.Fatal("expected error when no sources are enabled")
			}
		})
	})

	t.Run("buildVerifier", func(t *testing.T) {
		t.Run("applies configured retry policy", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Sources.Enabled = []string{"deezer"}
			config.Pipeline.SourceRetries = 4
			config.Pipeline.RetryBackoffMS = 250
			runner := NewRunner(RunnerOpts{Config: config})

			v, err := runner.buildVerifier()
			if err != nil {
				t.Fatalf("buildVerifier failed: %v", err)
			}
			if v == nil {
				t.Fatal("expected verifier")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, true)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			expected := `{"key":"value"}` + "\n"
			if result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			// channels cannot be marshaled to JSON
			data := make(chan int)
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			data := map[string]string{"key": "value"}
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writePlain("hello %s", "world")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			err := runner.writePlain("test")

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("writeSummary", func(t *testing.T) {
		report := &models.PipelineReport{
			Resolved: []models.ResolvedTrack{
				{
					Request:         models.TrackRequest{Artist: "Daft Punk", Title: "One More Time"},
					Verdict:         models.VerificationVerdict{Status: models.StatusConfirmed},
					ProviderTrackID: "sp1",
				},
				{
					Request:         models.TrackRequest{Artist: "Justice", Title: "D.A.N.C.E."},
					Verdict:         models.VerificationVerdict{Status: models.StatusDegraded},
					ProviderTrackID: "sp2",
				},
			},
			Failed: []models.FailedTrack{
				{
					Request: models.TrackRequest{Artist: "Daft Punk", Title: "Quantum Sunrise"},
					Reason:  "no source produced a sufficiently confident match",
				},
			},
		}

		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		if err := runner.writeSummary(report, &models.Playlist{ID: "pl1", Name: "Mix"}); err != nil {
			t.Fatalf("writeSummary failed: %v", err)
		}

		result := output.String()
		if !strings.Contains(result, "Resolved 2/3 tracks") {
			t.Errorf("expected resolution count, got %q", result)
		}
		if !strings.Contains(result, "✓ Playlist created: Mix (ID: pl1)") {
			t.Errorf("expected playlist line, got %q", result)
		}
		if !strings.Contains(result, "~ Justice - D.A.N.C.E.") {
			t.Errorf("expected degraded marker, got %q", result)
		}
		if !strings.Contains(result, "✗ Daft Punk - Quantum Sunrise (no source produced a sufficiently confident match)") {
			t.Errorf("expected failure line with reason, got %q", result)
		}
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		if len(commands) != 7 {
			t.Fatalf("expected 7 top-level commands, got %d", len(commands))
		}

		names := map[string]bool{}
		for _, c := range commands {
			names[c.Name] = true
		}
		for _, want := range []string{"setup", "auth", "build", "resolve", "sources", "runs", "tui"} {
			if !names[want] {
				t.Errorf("expected command %q to be registered", want)
			}
		}
	})
}
