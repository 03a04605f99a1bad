// Package datadir manages the on-disk layout shared by all pipeline assets.
package datadir

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dirs holds the managed data directories. Raw holds source downloads and
// scrapes, Processed holds cleaned per-source CSVs, Output holds the combined
// dataset, Checkpoints holds resume state and Temp holds partial downloads.
type Dirs struct {
	Base        string
	Raw         string
	Processed   string
	Output      string
	Checkpoints string
	Temp        string
}

// New creates the directory tree rooted at base, creating any missing
// directories.
func New(base string) (*Dirs, error) {
	d := &Dirs{
		Base:        base,
		Raw:         filepath.Join(base, "raw"),
		Processed:   filepath.Join(base, "processed"),
		Output:      filepath.Join(base, "output"),
		Checkpoints: filepath.Join(base, "checkpoints"),
		Temp:        filepath.Join(base, "temp"),
	}
	for _, dir := range []string{d.Base, d.Raw, d.Processed, d.Output, d.Checkpoints, d.Temp} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
	}
	return d, nil
}
