package citywalls

import (
	"os"
	"path/filepath"
	"strings"
)

// Checkpoint persists the last fully processed street so an interrupted
// scrape can resume without re-fetching earlier streets.
type Checkpoint struct {
	path string
}

// NewCheckpoint returns a checkpoint stored under dir.
func NewCheckpoint(dir string) *Checkpoint {
	return &Checkpoint{path: filepath.Join(dir, "citywalls_checkpoint.txt")}
}

// Load returns the checkpointed street name, or "" when none exists.
func (c *Checkpoint) Load() (string, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Save records street as the resume point.
func (c *Checkpoint) Save(street string) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return err
	}
	return os.WriteFile(c.path, []byte(street), 0644)
}

// Clear removes the checkpoint after a completed scrape.
func (c *Checkpoint) Clear() error {
	err := os.Remove(c.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
