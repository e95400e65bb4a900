package tui

import (
	"fmt"

	"github.com/pithecene-io/patchreview/patch"
)

// ViewChunks is the chunk browser used by the split command.
const ViewChunks = "chunks"

// Run starts the TUI for viewType.
// Returns an error if the view type doesn't support TUI.
func Run(viewType string, data any) error {
	if !IsTUISupported(viewType) {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}

	chunks, ok := data.([]patch.Chunk)
	if !ok {
		return fmt.Errorf("invalid data type %T for %s", data, viewType)
	}
	return RunChunkTUI(chunks)
}

// IsTUISupported returns true if the view type supports TUI mode.
func IsTUISupported(viewType string) bool {
	for _, v := range SupportedTUIViews() {
		if v == viewType {
			return true
		}
	}
	return false
}

// SupportedTUIViews returns a list of view types that support TUI.
func SupportedTUIViews() []string {
	return []string{ViewChunks}
}
