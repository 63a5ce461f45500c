package tasks

import "fmt"

// ProgressUpdate represents a progress event during a long-running operation.
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
	FetchProject Phase = iota
	ExportProject
	SyncCache
	WriteManifest
)

func (p Phase) String() string {
	switch p {
	case FetchProject:
		return "fetch_project"
	case ExportProject:
		return "export_project"
	case SyncCache:
		return "sync_cache"
	case WriteManifest:
		return "write_manifest"
	default:
		return ""
	}
}

func fetchingProjectUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchProject,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Fetching project %q...", title),
	}
}

func exportCompletedUpdate(step, total int, title string, files int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportProject,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Exported %q (%d files)", title, files),
	}
}

func exportFailedUpdate(step, total int, title string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportProject,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Failed to export %q: %v", title, err),
	}
}

func syncingCacheUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncCache,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Caching %q...", title),
	}
}
