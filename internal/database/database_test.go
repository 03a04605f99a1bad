package database

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDSN(t *testing.T) {
	got := dsn("app", "p@ss:word", "db.example.com", "1522", "svc_high", "")
	if !strings.HasPrefix(got, "oracle://") {
		t.Errorf("dsn = %q", got)
	}
	if strings.Contains(got, "p@ss:word") {
		t.Errorf("password not escaped: %q", got)
	}
	if !strings.Contains(got, "db.example.com:1522") {
		t.Errorf("host missing: %q", got)
	}

	withWallet := dsn("app", "pw", "db", "1522", "svc", "/etc/wallet dir")
	if !strings.Contains(withWallet, "wallet_location=") {
		t.Errorf("wallet missing: %q", withWallet)
	}
	if strings.Contains(withWallet, "/etc/wallet dir") {
		t.Errorf("wallet path not escaped: %q", withWallet)
	}
}

func TestIdentFor(t *testing.T) {
	cases := []struct {
		in   string
		pos  int
		want string
	}{
		{"normalized_address", 0, "NORMALIZED_ADDRESS"},
		{"citywalls_json", 1, "CITYWALLS_JSON"},
		{"Год постройки", 2, "C_2"}, // Cyrillic headers get positional names
		{"merge kind", 3, "MERGE_KIND"},
		{"123abc", 4, "C_4"},
		{strings.Repeat("a", 40), 5, strings.Repeat("A", 30)},
	}
	for _, tc := range cases {
		if got := identFor(tc.in, tc.pos); got != tc.want {
			t.Errorf("identFor(%q, %d) = %q, want %q", tc.in, tc.pos, got, tc.want)
		}
	}
}

func TestBuildColumnsDeduplicates(t *testing.T) {
	cols := buildColumns([]string{"Адрес", "Адрес дома", "street"})
	seen := make(map[string]bool)
	for _, c := range cols {
		if seen[c.ident] {
			t.Fatalf("duplicate identifier %q in %+v", c.ident, cols)
		}
		seen[c.ident] = true
	}
}

func TestBuildColumnsMarksClob(t *testing.T) {
	cols := buildColumns([]string{"street", "citywalls_json"})
	for _, c := range cols {
		if c.name == "citywalls_json" && !c.isClob {
			t.Error("citywalls_json not CLOB")
		}
		if c.name == "street" && c.isClob {
			t.Error("street marked CLOB")
		}
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nTEST_DB_USER=scott\nTEST_DB_PASS=\"tiger\"\n\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TEST_DB_USER", "") // ensure unset
	os.Unsetenv("TEST_DB_USER")
	os.Unsetenv("TEST_DB_PASS")

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("TEST_DB_USER"); got != "scott" {
		t.Errorf("TEST_DB_USER = %q", got)
	}
	if got := os.Getenv("TEST_DB_PASS"); got != "tiger" {
		t.Errorf("TEST_DB_PASS = %q (quotes should be stripped)", got)
	}

	// Existing environment values win.
	t.Setenv("TEST_DB_USER", "existing")
	if err := LoadEnvFile(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("TEST_DB_USER"); got != "existing" {
		t.Errorf("TEST_DB_USER = %q, env should win", got)
	}
}
