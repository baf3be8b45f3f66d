package pipeline

import (
	"fmt"

	"github.com/desertthunder/mixtape/internal/models"
)

// ProgressUpdate represents a progress event during a pipeline run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	VerifyTracks Phase = iota
	ResolveTracks
	BuildPlaylist
)

func (p Phase) String() string {
	switch p {
	case VerifyTracks:
		return "verify_tracks"
	case ResolveTracks:
		return "resolve_tracks"
	case BuildPlaylist:
		return "build_playlist"
	default:
		return ""
	}
}

func verifyingUpdate(step, total int, req models.TrackRequest) ProgressUpdate {
	return ProgressUpdate{
		Phase:   VerifyTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Verifying: %s", step, total, req.String()),
	}
}

func resolvedUpdate(step, total int, track *models.ResolvedTrack) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, track.Request.String()),
		Data:    track,
	}
}

func failedUpdate(step, total int, failed *models.FailedTrack) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %s", step, total, failed.Request.String(), failed.Reason),
		Data:    failed,
	}
}

// BuildPlaylistUpdate announces the playlist-creation step that follows a
// resolution run. Called by the build paths, which own that step.
func BuildPlaylistUpdate(step, total int, pl *models.Playlist) ProgressUpdate {
	if pl == nil {
		return ProgressUpdate{
			Phase:   BuildPlaylist,
			Step:    step,
			Total:   total,
			Message: "Creating playlist...",
		}
	}
	return ProgressUpdate{
		Phase:   BuildPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", pl.Name, pl.ID),
		Data:    pl,
	}
}
