package citywalls

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"time"

	"go.uber.org/zap"

	"buildings/internal/fetch"
	"buildings/internal/types"
)

// maxSamePages is the number of consecutive pages with identical building
// address sets tolerated before pagination is declared stuck.
const maxSamePages = 3

var streetIDRe = regexp.MustCompile(`search-street(\d+)`)

// Scraper walks the citywalls street index and collects building records.
// The zero delay/sleep hooks exist so tests can run without real waits.
type Scraper struct {
	Client  *fetch.Client
	Log     *zap.Logger
	BaseURL string

	IndexURL           string
	Budget             time.Duration
	CheckpointInterval int
	Checkpoint         *Checkpoint

	// OnProgress is called with the accumulated result set after every
	// checkpointed street; the pipeline uses it to persist partial data.
	OnProgress func(all []types.Building)

	// PageDelay returns the politeness delay between page fetches.
	PageDelay func() time.Duration
}

// NewScraper returns a scraper with production delays.
func NewScraper(client *fetch.Client, log *zap.Logger, checkpoint *Checkpoint) *Scraper {
	return &Scraper{
		Client:             client,
		Log:                log,
		BaseURL:            DefaultBaseURL,
		IndexURL:           DefaultBaseURL + "street_index.html",
		Budget:             time.Hour,
		CheckpointInterval: 5,
		Checkpoint:         checkpoint,
		PageDelay: func() time.Duration {
			return time.Second + time.Duration(rand.Int63n(int64(3*time.Second)))
		},
	}
}

// Run scrapes all streets, resuming from the checkpoint when present, and
// returns existing plus newly scraped buildings. Failures are not fatal: an
// unreachable index or a failed street is logged and whatever was collected
// so far is returned, so one bad source never loses resumed data or takes
// down a concurrent pipeline run. Only context cancellation returns an error.
func (s *Scraper) Run(ctx context.Context, existing []types.Building) ([]types.Building, error) {
	all := existing
	start := time.Now()

	streets, err := s.streetLinks(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return all, ctx.Err()
		}
		s.Log.Warn("could not fetch street index, keeping collected data", zap.Error(err))
		return all, nil
	}
	if len(streets) == 0 {
		s.Log.Warn("street index empty")
		return all, nil
	}
	s.Log.Info("street index loaded", zap.Int("streets", len(streets)))

	lastStreet, err := s.Checkpoint.Load()
	if err != nil {
		s.Log.Warn("could not read checkpoint, starting from the top", zap.Error(err))
		lastStreet = ""
	}
	resuming := lastStreet != ""
	if resuming {
		s.Log.Info("resuming from checkpoint", zap.String("street", lastStreet))
	}

	processed := 0
	for _, street := range streets {
		if s.Budget > 0 && time.Since(start) > s.Budget {
			s.Log.Warn("time budget reached, pausing scrape",
				zap.Duration("budget", s.Budget),
				zap.String("next_street", street.Name))
			if err := s.Checkpoint.Save(street.Name); err != nil {
				s.Log.Error("failed to save checkpoint", zap.Error(err))
			}
			return all, nil
		}

		// Skip streets already covered by a previous run. The checkpointed
		// street itself is re-scraped since it may have been cut short.
		if resuming {
			if street.Name != lastStreet {
				continue
			}
			resuming = false
		}

		data, err := s.scrapeStreet(ctx, street)
		if err != nil {
			if ctx.Err() != nil {
				return all, ctx.Err()
			}
			s.Log.Error("street failed", zap.String("street", street.Name), zap.Error(err))
			if err := s.Checkpoint.Save(street.Name); err != nil {
				s.Log.Error("failed to save checkpoint", zap.Error(err))
			}
			continue
		}
		if len(data) == 0 {
			continue
		}

		all = append(all, data...)
		processed++
		if s.CheckpointInterval > 0 && processed%s.CheckpointInterval == 0 {
			if err := s.Checkpoint.Save(street.Name); err != nil {
				s.Log.Error("failed to save checkpoint", zap.Error(err))
			}
			if s.OnProgress != nil {
				s.OnProgress(all)
			}
			s.Log.Info("checkpoint saved",
				zap.String("street", street.Name),
				zap.Int("buildings", len(all)))
		}
	}

	// Completed the full index; the next run starts fresh.
	if err := s.Checkpoint.Clear(); err != nil {
		s.Log.Error("failed to clear checkpoint", zap.Error(err))
	}
	return all, nil
}

// streetLinks fetches and parses the street index page.
func (s *Scraper) streetLinks(ctx context.Context) ([]StreetLink, error) {
	body, err := s.Client.Get(ctx, s.IndexURL, nil)
	if err != nil {
		return nil, err
	}
	return ParseStreetIndex(body, s.BaseURL)
}

// scrapeStreet walks the pagination of one street until an empty page or a
// pagination loop is detected.
func (s *Scraper) scrapeStreet(ctx context.Context, street StreetLink) ([]types.Building, error) {
	var all []types.Building
	var lastAddresses map[string]bool
	sameCount := 0

	for page := 1; ; page++ {
		url, err := s.pageURL(street.URL, page)
		if err != nil {
			return all, err
		}

		body, err := s.Client.Get(ctx, url, nil)
		if err != nil {
			return all, err
		}
		data, err := ParseStreetPage(body, street.Name, s.BaseURL)
		if err != nil {
			return all, err
		}
		if len(data) == 0 {
			break
		}

		// Some streets serve the last page for every higher page number;
		// identical consecutive address sets mean we are looping.
		addresses := make(map[string]bool, len(data))
		for _, b := range data {
			addresses[b.Address] = true
		}
		if sameAddressSet(addresses, lastAddresses) {
			sameCount++
			if sameCount >= maxSamePages {
				s.Log.Warn("pagination loop detected",
					zap.String("street", street.Name),
					zap.Int("page", page))
				break
			}
		} else {
			sameCount = 0
		}
		lastAddresses = addresses

		all = append(all, data...)
		s.Log.Debug("page scraped",
			zap.String("street", street.Name),
			zap.Int("page", page),
			zap.Int("buildings", len(data)))

		if s.PageDelay != nil {
			select {
			case <-ctx.Done():
				return all, ctx.Err()
			case <-time.After(s.PageDelay()):
			}
		}
	}

	s.Log.Info("street scraped",
		zap.String("street", street.Name),
		zap.Int("buildings", len(all)))
	return all, nil
}

// pageURL builds the Nth pagination URL for a street search page.
func (s *Scraper) pageURL(streetURL string, page int) (string, error) {
	if page == 1 {
		return streetURL, nil
	}
	m := streetIDRe.FindStringSubmatch(streetURL)
	if m == nil {
		return "", fmt.Errorf("cannot extract street id from %s", streetURL)
	}
	return fmt.Sprintf("%ssearch-street%s-page%d.html", s.BaseURL, m[1], page), nil
}

func sameAddressSet(a, b map[string]bool) bool {
	if b == nil || len(a) != len(b) {
		return false
	}
	for addr := range a {
		if !b[addr] {
			return false
		}
	}
	return true
}
