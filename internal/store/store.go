// Package store persists materialized datasets as snappy-compressed JSON
// lines with a metadata sidecar.
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/snappy"
)

const (
	dataExt = ".jsonl.sz"
	metaExt = ".meta.json"
)

// Meta describes a stored dataset.
type Meta struct {
	Rows    int       `json:"rows"`
	SavedAt time.Time `json:"saved_at"`
}

// Store reads and writes named datasets under a directory.
type Store struct {
	Dir string
}

func New(dir string) *Store {
	return &Store{Dir: dir}
}

func (s *Store) dataPath(name string) string { return filepath.Join(s.Dir, name+dataExt) }
func (s *Store) metaPath(name string) string { return filepath.Join(s.Dir, name+metaExt) }

// Exists reports whether a dataset with this name has been saved.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.dataPath(name))
	return err == nil
}

// Stat returns the metadata of a stored dataset.
func (s *Store) Stat(name string) (Meta, error) {
	var m Meta
	data, err := os.ReadFile(s.metaPath(name))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("corrupt metadata for %s: %w", name, err)
	}
	return m, nil
}

// Save writes rows as one JSON object per line, snappy-compressed, replacing
// any previous dataset with the same name. The write goes through a temp file
// so a crash never leaves a truncated dataset behind.
func Save[T any](s *Store, name string, rows []T) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.Dir, name+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := snappy.NewBufferedWriter(tmp)
	enc := json.NewEncoder(w)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to encode row: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.dataPath(name)); err != nil {
		return err
	}

	meta := Meta{Rows: len(rows), SavedAt: time.Now().UTC()}
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(s.metaPath(name), data, 0644)
}

// Load reads a stored dataset back.
func Load[T any](s *Store, name string) ([]T, error) {
	f, err := os.Open(s.dataPath(name))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []T
	sc := bufio.NewScanner(snappy.NewReader(f))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		var row T
		if err := json.Unmarshal(sc.Bytes(), &row); err != nil {
			return nil, fmt.Errorf("corrupt row in dataset %s: %w", name, err)
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}
