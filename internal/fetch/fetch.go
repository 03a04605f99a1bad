// Package fetch provides the shared HTTP client used by both data sources:
// browser-like User-Agent rotation, bounded retries with exponential backoff
// and context-aware cancellation.
package fetch

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// userAgents rotates between common browser strings; some upstream hosts
// refuse requests with a default Go User-Agent.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.114 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:89.0) Gecko/20100101 Firefox/89.0",
}

// Client wraps an http.Client with retry and logging behavior.
type Client struct {
	HTTP       *http.Client
	Log        *zap.Logger
	MaxRetries int

	// Backoff returns the sleep before retry attempt n (0-based). Tests
	// replace it to avoid real sleeps.
	Backoff func(attempt int) time.Duration
}

// New returns a client with a 10 second request timeout and n retry attempts.
func New(log *zap.Logger, maxRetries int) *Client {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Client{
		HTTP:       &http.Client{Timeout: 10 * time.Second},
		Log:        log,
		MaxRetries: maxRetries,
		Backoff: func(attempt int) time.Duration {
			// 3, 9, 27... seconds, matching the upstream scrape cadence.
			d := time.Second
			for i := 0; i <= attempt; i++ {
				d *= 3
			}
			return d
		},
	}
}

// Get fetches url with retries and returns the response body. Headers are
// applied to every attempt; a rotated User-Agent is set unless the caller
// provided one.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.Backoff(attempt - 1)):
			}
		}

		body, err := c.get(ctx, url, headers)
		if err == nil {
			return body, nil
		}
		lastErr = err
		c.Log.Warn("request failed",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", c.MaxRetries),
			zap.Error(err))
	}
	return nil, fmt.Errorf("all %d attempts failed for %s: %w", c.MaxRetries, url, lastErr)
}

func (c *Client) get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Download streams url into path, preferring the filename from the
// Content-Disposition header when the caller passes an empty name. The final
// file path is returned. The request timeout does not apply; large archives
// take longer than any sane per-request limit, cancellation goes through ctx.
func (c *Client) Download(ctx context.Context, url, dir, name string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])

	client := *c.HTTP
	client.Timeout = 0

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	if name == "" {
		name = filenameFromResponse(resp, url)
	}
	return saveBody(resp.Body, dir, name)
}
