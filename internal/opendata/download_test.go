package opendata

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// buildZip creates an archive with the given name->content entries.
func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractZip(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "data.zip")
	data := buildZip(t, map[string]string{
		"passports.csv": "Адрес\nНевский пр., 28\n",
		"readme.txt":    "экспорт",
	})
	if err := os.WriteFile(zipPath, data, 0644); err != nil {
		t.Fatal(err)
	}

	extractDir := filepath.Join(dir, "extracted")
	files, err := ExtractZip(zipPath, extractDir)
	if err != nil {
		t.Fatalf("ExtractZip: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files: %v", len(files), files)
	}

	csvPath, ok := FindCSV(files)
	if !ok {
		t.Fatal("no CSV found")
	}
	content, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(content, []byte("Невский")) {
		t.Errorf("extracted content = %q", content)
	}
}

func TestExtractZipRejectsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "evil.zip")
	data := buildZip(t, map[string]string{
		"../escape.txt": "outside",
	})
	if err := os.WriteFile(zipPath, data, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := ExtractZip(zipPath, filepath.Join(dir, "extracted")); err == nil {
		t.Fatal("expected error for entry escaping the extract dir")
	}
}

func TestFindCSV(t *testing.T) {
	if _, ok := FindCSV([]string{"a.txt", "b.json"}); ok {
		t.Error("found CSV where none exists")
	}
	path, ok := FindCSV([]string{"a.txt", "data.CSV"})
	if !ok || path != "data.CSV" {
		t.Errorf("FindCSV = %q, %v", path, ok)
	}
}
