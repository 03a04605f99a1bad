package opendata

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/charmap"

	"buildings/internal/types"
)

func TestReadCSVUTF8(t *testing.T) {
	data := []byte("Адрес,Площадь\n\"Невский пр., 28\",7000\nЛиговский пр. 44,120\n")

	cols, records, err := ReadCSV(data)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(cols) != 2 || cols[0] != "Адрес" {
		t.Errorf("columns = %v", cols)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0]["Адрес"] != "Невский пр., 28" {
		t.Errorf("address = %q", records[0]["Адрес"])
	}
	if records[1]["Площадь"] != "120" {
		t.Errorf("area = %q", records[1]["Площадь"])
	}
}

func TestReadCSVWindows1251(t *testing.T) {
	utf := "Адрес,Этажность\nСадовая ул. 12,5\n"
	encoded, err := charmap.Windows1251.NewEncoder().String(utf)
	if err != nil {
		t.Fatal(err)
	}

	cols, records, err := ReadCSV([]byte(encoded))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if cols[0] != "Адрес" {
		t.Errorf("columns = %v, CP1251 header not decoded", cols)
	}
	if records[0]["Адрес"] != "Садовая ул. 12" {
		t.Errorf("address = %q", records[0]["Адрес"])
	}
}

func TestReadCSVRaggedRows(t *testing.T) {
	data := []byte("a,b,c\n1,2\n4,5,6,7\n")

	_, records, err := ReadCSV(data)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records", len(records))
	}
	if records[0]["c"] != "" {
		t.Errorf("short row c = %q, want empty", records[0]["c"])
	}
	if records[1]["c"] != "6" {
		t.Errorf("long row c = %q", records[1]["c"])
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	cols := []string{"Адрес", "Площадь"}
	records := []types.Record{
		{"Адрес": "Невский пр., 28", "Площадь": "7000"},
		{"Адрес": "Садовая ул. 12"}, // missing column written empty
	}

	path := filepath.Join(t.TempDir(), "out.csv")
	if err := WriteCSV(path, cols, records); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	gotCols, gotRecords, err := ReadCSV(data)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(gotCols) != 2 || len(gotRecords) != 2 {
		t.Fatalf("round trip lost data: %v %v", gotCols, gotRecords)
	}
	if gotRecords[1]["Площадь"] != "" {
		t.Errorf("missing column = %q, want empty", gotRecords[1]["Площадь"])
	}
}

func TestColumns(t *testing.T) {
	records := []types.Record{
		{"b": "1", "a": "2"},
		{"c": "3", "a": "4"},
	}
	cols := Columns(records)
	want := []string{"a", "b", "c"}
	if len(cols) != len(want) {
		t.Fatalf("columns = %v", cols)
	}
	for i := range want {
		if cols[i] != want[i] {
			t.Errorf("columns = %v, want %v", cols, want)
		}
	}
}
