package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestClient(maxRetries int) *Client {
	c := New(zap.NewNop(), maxRetries)
	c.Backoff = func(int) time.Duration { return 0 }
	return c
}

func TestGetRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			http.Error(w, "temporary", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "payload")
	}))
	defer srv.Close()

	body, err := newTestClient(3).Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(body) != "payload" {
		t.Errorf("body = %q", body)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d", attempts)
	}
}

func TestGetGivesUpAfterMaxRetries(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(2).Get(context.Background(), srv.URL, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestGetSetsHeaders(t *testing.T) {
	var gotUA, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	_, err := newTestClient(1).Get(context.Background(), srv.URL, map[string]string{"Authorization": "Token abc"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotUA == "" || gotUA == "Go-http-client/1.1" {
		t.Errorf("user agent = %q, want a browser string", gotUA)
	}
	if gotAuth != "Token abc" {
		t.Errorf("authorization = %q", gotAuth)
	}
}

func TestGetHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "always failing", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(10)
	c.Backoff = func(int) time.Duration { return time.Hour }

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Get(ctx, srv.URL, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if ctx.Err() == nil {
		t.Error("context should have expired")
	}
}

func TestDownloadUsesContentDisposition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="dataset_export.zip"`)
		fmt.Fprint(w, "zipbytes")
	}))
	defer srv.Close()

	dir := t.TempDir()
	path, err := newTestClient(1).Download(context.Background(), srv.URL+"/export/", dir, "")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if filepath.Base(path) != "dataset_export.zip" {
		t.Errorf("filename = %q", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "zipbytes" {
		t.Errorf("content = %q", data)
	}
}

func TestDownloadFallsBackToURLSegment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data")
	}))
	defer srv.Close()

	path, err := newTestClient(1).Download(context.Background(), srv.URL+"/files/archive.zip", t.TempDir(), "")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if filepath.Base(path) != "archive.zip" {
		t.Errorf("filename = %q", filepath.Base(path))
	}
}
