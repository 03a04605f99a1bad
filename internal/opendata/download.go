package opendata

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ExtractZip unpacks the archive at zipPath into extractDir and returns the
// extracted file paths. Entries escaping the target directory are rejected.
func ExtractZip(zipPath, extractDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer r.Close()

	var extracted []string
	for _, f := range r.File {
		dest := filepath.Join(extractDir, f.Name)
		if !strings.HasPrefix(dest, filepath.Clean(extractDir)+string(os.PathSeparator)) {
			return nil, fmt.Errorf("archive entry escapes extract dir: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0755); err != nil {
				return nil, err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return nil, err
		}

		if err := extractFile(f, dest); err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
		extracted = append(extracted, dest)
	}
	return extracted, nil
}

func extractFile(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

// FindCSV returns the first CSV file among paths.
func FindCSV(paths []string) (string, bool) {
	for _, p := range paths {
		if strings.EqualFold(filepath.Ext(p), ".csv") {
			return p, true
		}
	}
	return "", false
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
