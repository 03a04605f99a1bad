package opendata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"buildings/internal/fetch"
)

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	f := fetch.New(zap.NewNop(), 1)
	f.Backoff = func(int) time.Duration { return 0 }
	return &Client{
		Fetch:   f,
		Log:     zap.NewNop(),
		BaseURL: srv.URL + "/api/v2",
		Token:   "test-token",
	}
}

func TestFindDatasetPaginates(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/datasets/", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"results":[{"id":42,"name":"Технико-экономические паспорта многоквартирных домов"}],"next":""}`)
			return
		}
		fmt.Fprintf(w, `{"results":[{"id":1,"name":"Другой набор"}],"next":"%s/api/v2/datasets/?per_page=100&page=2"}`, serverURL(r))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv)
	id, err := c.FindDataset(context.Background(), "паспорта многоквартирных")
	require.NoError(t, err)
	assert.Equal(t, 42, id)
	assert.Equal(t, "Token test-token", gotAuth)
}

// serverURL reconstructs the test server base from the request.
func serverURL(r *http.Request) string {
	return "http://" + r.Host
}

func TestFindDatasetNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[],"next":""}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.FindDataset(context.Background(), "несуществующий")
	assert.Error(t, err)
}

func TestLatestVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":7,"structures":[{"id":207},{"id":5}]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)

	version, structure, err := c.LatestVersion(context.Background(), 42, 207)
	require.NoError(t, err)
	assert.Equal(t, 7, version)
	assert.Equal(t, 207, structure)

	// Requested structure missing: first available is used.
	version, structure, err = c.LatestVersion(context.Background(), 42, 999)
	require.NoError(t, err)
	assert.Equal(t, 7, version)
	assert.Equal(t, 207, structure)
}

func TestDataURL(t *testing.T) {
	c := &Client{BaseURL: "https://data.gov.spb.ru/api/v2"}

	url := c.DataURL(42, 7, 207, 1000, 1)
	assert.Equal(t, "https://data.gov.spb.ru/api/v2/datasets/42/versions/7/data/207/?per_page=1000", url)

	url = c.DataURL(42, 7, 207, 1000, 3)
	assert.Equal(t, "https://data.gov.spb.ru/api/v2/datasets/42/versions/7/data/207/?per_page=1000&page=3", url)
}

func TestFetchPageFlattensValues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[
			{"Адрес":"Невский пр., 28","Площадь":7000.5,"Лифт":true,"Примечание":null,"Состав":{"a":1}}
		],"next":""}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	records, next, err := c.FetchPage(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Empty(t, next)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "Невский пр., 28", rec["Адрес"])
	assert.Equal(t, "7000.5", rec["Площадь"])
	assert.Equal(t, "true", rec["Лифт"])
	assert.Equal(t, "", rec["Примечание"])
	assert.Equal(t, `{"a":1}`, rec["Состав"])
}

func TestNewFetchBackoffDoubles(t *testing.T) {
	f := NewFetch(zap.NewNop(), 3)

	require.NotNil(t, f.Backoff)
	assert.Equal(t, 2*time.Second, f.Backoff(0))
	assert.Equal(t, 4*time.Second, f.Backoff(1))
	assert.Equal(t, 8*time.Second, f.Backoff(2))
}
