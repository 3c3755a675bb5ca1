package tasks

import (
	"fmt"

	"github.com/desertthunder/trainhub/internal/models"
)

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
	FetchContent Phase = iota
	CacheContent
	PruneContent
	ExportContent
)

func (p Phase) String() string {
	switch p {
	case FetchContent:
		return "fetch_content"
	case CacheContent:
		return "cache_content"
	case PruneContent:
		return "prune_content"
	case ExportContent:
		return "export_content"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func fetchKindUpdate(step, total int, kind models.Kind) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchContent,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching %ss from the CMS...", step, total, kind),
	}
}

func fetchFailedUpdate(step, total int, kind models.Kind, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchContent,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %ss: %v", step, total, kind, err),
	}
}

func cachedKindUpdate(step, total int, kind models.Kind, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CacheContent,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %ss (%d documents)", step, total, kind, count),
		Data:    count,
	}
}

func prunedUpdate(kind models.Kind, removed int64) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PruneContent,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Removed %d stale %ss", removed, kind),
		Data:    removed,
	}
}

func exportingUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportContent,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, name),
	}
}

func exportCompletedUpdate(step, total int, name string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportContent,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, name, filesCount),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportContent,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
