package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := EnsureSchema(db); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	return db
}

func TestRunRepository(t *testing.T) {
	t.Run("create assigns id and defaults", func(t *testing.T) {
		repo := NewRunRepository(testDB(t))

		run := &models.Run{
			Prompt:        "late night synthwave",
			ResolvedCount: 18,
			FailedCount:   2,
			ReportJSON:    `{"resolved":[],"failed":[]}`,
		}
		if err := repo.Create(run); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if run.RunID == "" {
			t.Error("expected generated run ID")
		}
		if run.Created.IsZero() {
			t.Error("expected created timestamp")
		}
	})

	t.Run("round trip", func(t *testing.T) {
		repo := NewRunRepository(testDB(t))

		run := &models.Run{
			Prompt:        "rainy day jazz",
			PlaylistID:    "pl42",
			ResolvedCount: 10,
			FailedCount:   0,
			ReportJSON:    `{"resolved":[],"failed":[]}`,
		}
		if err := repo.Create(run); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		got, err := repo.Get(run.RunID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Prompt != run.Prompt {
			t.Errorf("expected prompt %q, got %q", run.Prompt, got.Prompt)
		}
		if got.PlaylistID != "pl42" {
			t.Errorf("expected playlist pl42, got %q", got.PlaylistID)
		}
		if got.ResolvedCount != 10 || got.FailedCount != 0 {
			t.Errorf("unexpected counts: %d/%d", got.ResolvedCount, got.FailedCount)
		}
	})

	t.Run("missing run", func(t *testing.T) {
		repo := NewRunRepository(testDB(t))
		if _, err := repo.Get("nope"); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("empty playlist id stored as null", func(t *testing.T) {
		repo := NewRunRepository(testDB(t))

		run := &models.Run{ReportJSON: "{}"}
		if err := repo.Create(run); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		got, err := repo.Get(run.RunID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.PlaylistID != "" {
			t.Errorf("expected empty playlist ID, got %q", got.PlaylistID)
		}
	})

	t.Run("list newest first", func(t *testing.T) {
		repo := NewRunRepository(testDB(t))

		for i := 0; i < 5; i++ {
			run := &models.Run{
				Prompt:     fmt.Sprintf("prompt %d", i),
				ReportJSON: "{}",
			}
			if err := repo.Create(run); err != nil {
				t.Fatalf("Create failed: %v", err)
			}
		}

		runs, err := repo.List(3)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(runs) != 3 {
			t.Fatalf("expected 3 runs, got %d", len(runs))
		}
		if runs[0].Prompt != "prompt 4" {
			t.Errorf("expected newest run first, got %q", runs[0].Prompt)
		}
		if runs[2].Prompt != "prompt 2" {
			t.Errorf("unexpected order: %q", runs[2].Prompt)
		}
	})

	t.Run("validation failure", func(t *testing.T) {
		repo := NewRunRepository(testDB(t))
		run := &models.Run{ResolvedCount: -1, ReportJSON: "{}"}
		if err := repo.Create(run); err == nil {
			t.Error("expected validation error for negative count")
		}
	})
}
