package tasks

import (
	"fmt"

	"github.com/desertthunder/linkport/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	Detect Phase = iota
	FetchMetadata
	FetchTracks
	Resolve
	Persist
	ExportPlaylist
)

func (p Phase) String() string {
	switch p {
	case Detect:
		return "detect"
	case FetchMetadata:
		return "fetch_metadata"
	case FetchTracks:
		return "fetch_tracks"
	case Resolve:
		return "resolve"
	case Persist:
		return "persist"
	case ExportPlaylist:
		return "export_playlist"
	default:
		return ""
	}
}

// sendProgress never blocks; updates are dropped when nobody is listening.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func detectUpdate(source models.PlatformID) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Detect,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Detected %s link", source.Label()),
		Data:    source,
	}
}

func fetchMetadataUpdate(source models.PlatformID, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchMetadata,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching %s playlist %s...", source.Label(), id),
	}
}

func fetchTracksUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTracks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching tracks for %s...", name),
	}
}

func resolveUpdate(source models.PlatformID) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Resolve,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Looking up %s link on Spotify...", source.Label()),
	}
}

func persistUpdate(p *models.ImportedPlaylist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Persist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Imported %s (%d tracks)", p.Name, p.TrackCount),
		Data:    p,
	}
}

func exportCompletedUpdate(step, total int, name string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, name, filesCount),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
