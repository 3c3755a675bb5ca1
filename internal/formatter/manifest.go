package formatter

import (
	"fmt"
	"time"

	"github.com/desertthunder/trainhub/internal/shared"
)

// ManifestFile describes one exported unit.
type ManifestFile struct {
	Name  string   `json:"name"`
	Files []string `json:"files,omitempty"`
	Items int      `json:"items"`
	Error string   `json:"error,omitempty"`
}

// Manifest summarizes an export run.
type Manifest struct {
	Format     Format         `json:"format"`
	OutputDir  string         `json:"output_dir"`
	ExportedAt time.Time      `json:"exported_at"`
	Successful int            `json:"successful"`
	Failed     int            `json:"failed"`
	Units      []ManifestFile `json:"units"`
}

// WriteManifest writes the manifest as indented JSON to path.
func WriteManifest(m *Manifest, path string) error {
	data, err := shared.MarshalJSON(m, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return WriteFile(path, data)
}
