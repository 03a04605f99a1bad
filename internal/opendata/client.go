package opendata

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"buildings/internal/fetch"
	"buildings/internal/types"
)

// Client talks to the data.gov.spb.ru API v2.
type Client struct {
	Fetch   *fetch.Client
	Log     *zap.Logger
	BaseURL string
	Token   string
}

// NewFetch returns a fetch client tuned for the portal: retry sleeps double
// per attempt (2, 4, 8... seconds) instead of the scraper's tripling cadence.
func NewFetch(log *zap.Logger, maxRetries int) *fetch.Client {
	c := fetch.New(log, maxRetries)
	c.Backoff = func(attempt int) time.Duration {
		return time.Second << uint(attempt+1)
	}
	return c
}

// datasetPage mirrors the /datasets/ listing response.
type datasetPage struct {
	Results []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"results"`
	Next string `json:"next"`
}

// versionInfo mirrors the /versions/latest/ response.
type versionInfo struct {
	ID         int `json:"id"`
	Structures []struct {
		ID int `json:"id"`
	} `json:"structures"`
}

// dataPage mirrors one page of structure data. Row values arrive as
// arbitrary JSON scalars.
type dataPage struct {
	Results []map[string]any `json:"results"`
	Next    string           `json:"next"`
}

func (c *Client) headers() map[string]string {
	h := map[string]string{}
	if c.Token != "" {
		h["Authorization"] = "Token " + c.Token
	}
	return h
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	body, err := c.Fetch.Get(ctx, url, c.headers())
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return nil
}

// FindDataset walks the paginated dataset listing for the first dataset whose
// name contains name (case-insensitive).
func (c *Client) FindDataset(ctx context.Context, name string) (int, error) {
	url := fmt.Sprintf("%s/datasets/?per_page=100", c.BaseURL)
	needle := strings.ToLower(name)

	for url != "" {
		var page datasetPage
		if err := c.getJSON(ctx, url, &page); err != nil {
			return 0, err
		}
		for _, ds := range page.Results {
			if strings.Contains(strings.ToLower(ds.Name), needle) {
				c.Log.Info("dataset found", zap.String("name", ds.Name), zap.Int("id", ds.ID))
				return ds.ID, nil
			}
		}
		url = page.Next
	}
	return 0, fmt.Errorf("dataset %q not found", name)
}

// LatestVersion returns the latest version ID of a dataset together with the
// structure to read: the requested structureID when present, otherwise the
// first available one.
func (c *Client) LatestVersion(ctx context.Context, datasetID, structureID int) (versionID, resolvedStructure int, err error) {
	var info versionInfo
	url := fmt.Sprintf("%s/datasets/%d/versions/latest/", c.BaseURL, datasetID)
	if err := c.getJSON(ctx, url, &info); err != nil {
		return 0, 0, err
	}

	for _, s := range info.Structures {
		if s.ID == structureID {
			return info.ID, structureID, nil
		}
	}
	if len(info.Structures) == 0 {
		return 0, 0, fmt.Errorf("dataset %d version %d has no structures", datasetID, info.ID)
	}
	c.Log.Warn("structure not found, using first available",
		zap.Int("requested", structureID),
		zap.Int("using", info.Structures[0].ID))
	return info.ID, info.Structures[0].ID, nil
}

// DataURL builds the paginated data endpoint for a structure.
func (c *Client) DataURL(datasetID, versionID, structureID, perPage, page int) string {
	url := fmt.Sprintf("%s/datasets/%d/versions/%d/data/%d/?per_page=%d",
		c.BaseURL, datasetID, versionID, structureID, perPage)
	if page > 1 {
		url += fmt.Sprintf("&page=%d", page)
	}
	return url
}

// FetchPage fetches one page of structure data and returns the converted
// records plus the next-page URL ("" when exhausted).
func (c *Client) FetchPage(ctx context.Context, url string) ([]types.Record, string, error) {
	var page dataPage
	if err := c.getJSON(ctx, url, &page); err != nil {
		return nil, "", err
	}

	records := make([]types.Record, 0, len(page.Results))
	for _, row := range page.Results {
		records = append(records, recordFromJSON(row))
	}
	return records, page.Next, nil
}

// recordFromJSON flattens a JSON row into string values.
func recordFromJSON(row map[string]any) types.Record {
	rec := make(types.Record, len(row))
	for k, v := range row {
		switch val := v.(type) {
		case nil:
			rec[k] = ""
		case string:
			rec[k] = val
		case float64:
			rec[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			rec[k] = strconv.FormatBool(val)
		default:
			b, err := json.Marshal(val)
			if err != nil {
				rec[k] = fmt.Sprint(val)
				continue
			}
			rec[k] = string(b)
		}
	}
	return rec
}
