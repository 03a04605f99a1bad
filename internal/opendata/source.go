package opendata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"buildings/internal/config"
	"buildings/internal/datadir"
	"buildings/internal/types"
)

// Source orchestrates the dataset download: the exported archive when it
// works, the paginated API otherwise. API progress survives interruption
// through a partial file in the temp directory.
type Source struct {
	Client *Client
	Log    *zap.Logger
	Dirs   *datadir.Dirs
	Config config.OpenDataConfig
}

// Run fetches the dataset and returns its columns and records. When the API
// path fails midway, the partial results collected so far are returned along
// with the error.
func (s *Source) Run(ctx context.Context) ([]string, []types.Record, error) {
	cols, records, err := s.runDirect(ctx)
	if err == nil {
		return cols, records, nil
	}
	s.Log.Warn("direct download failed, falling back to API", zap.Error(err))
	return s.runAPI(ctx)
}

// runDirect downloads and parses the exported archive.
func (s *Source) runDirect(ctx context.Context) ([]string, []types.Record, error) {
	downloadDir := filepath.Join(s.Dirs.Raw, "downloaded_datasets")
	zipPath, err := s.Client.Fetch.Download(ctx, s.Config.DirectDownloadURL, downloadDir, "")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to download archive: %w", err)
	}
	s.Log.Info("archive downloaded", zap.String("path", zipPath))

	extractDir := filepath.Join(downloadDir, s.safeName())
	files, err := ExtractZip(zipPath, extractDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to extract archive: %w", err)
	}

	csvPath, ok := FindCSV(files)
	if !ok {
		return nil, nil, fmt.Errorf("no CSV file in archive %s", zipPath)
	}

	data, err := os.ReadFile(csvPath)
	if err != nil {
		return nil, nil, err
	}
	cols, records, err := ReadCSV(data)
	if err != nil {
		return nil, nil, err
	}
	s.Log.Info("dataset loaded from archive",
		zap.Int("records", len(records)),
		zap.Int("columns", len(cols)))

	if err := s.writeProcessed(cols, records); err != nil {
		return nil, nil, err
	}
	return cols, records, nil
}

// runAPI pages through the portal API, resuming from the partial file when
// one exists.
func (s *Source) runAPI(ctx context.Context) ([]string, []types.Record, error) {
	records, startPage := s.loadPartial()

	datasetID, versionID, structureID, err := s.resolveIDs(ctx, startPage > 1)
	if err != nil {
		// Stale resume info: restart the API fetch from scratch.
		if startPage > 1 {
			s.Log.Warn("could not restore resume info, restarting", zap.Error(err))
			s.clearPartial()
			records, startPage = nil, 1
			datasetID, versionID, structureID, err = s.resolveIDs(ctx, false)
		}
		if err != nil {
			return nil, nil, err
		}
	}

	url := s.Client.DataURL(datasetID, versionID, structureID, s.Config.BatchSize, startPage)
	page := startPage
	for url != "" {
		pageRecords, next, err := s.Client.FetchPage(ctx, url)
		if err != nil {
			s.savePartial(records)
			return Columns(records), records, fmt.Errorf("failed to fetch page %d: %w", page, err)
		}
		records = append(records, pageRecords...)
		s.Log.Info("page fetched", zap.Int("page", page), zap.Int("total_records", len(records)))

		if s.Config.SaveInterval > 0 && page%s.Config.SaveInterval == 0 {
			s.savePartial(records)
		}
		url = next
		page++
	}

	cols := Columns(records)
	if err := s.writeProcessed(cols, records); err != nil {
		return cols, records, err
	}
	s.clearPartial()
	s.Log.Info("dataset loaded from API", zap.Int("records", len(records)))
	return cols, records, nil
}

// resolveIDs finds the dataset, version and structure to read, either from
// the portal or from the saved resume info.
func (s *Source) resolveIDs(ctx context.Context, fromInfo bool) (datasetID, versionID, structureID int, err error) {
	if fromInfo {
		data, err := os.ReadFile(s.infoPath())
		if err != nil {
			return 0, 0, 0, err
		}
		if _, err := fmt.Sscanf(strings.TrimSpace(string(data)), "%d,%d,%d", &datasetID, &versionID, &structureID); err != nil {
			return 0, 0, 0, fmt.Errorf("malformed resume info: %w", err)
		}
		return datasetID, versionID, structureID, nil
	}

	datasetID, err = s.Client.FindDataset(ctx, s.Config.DatasetName)
	if err != nil {
		return 0, 0, 0, err
	}
	versionID, structureID, err = s.Client.LatestVersion(ctx, datasetID, s.Config.StructureID)
	if err != nil {
		return 0, 0, 0, err
	}

	info := fmt.Sprintf("%d,%d,%d", datasetID, versionID, structureID)
	if err := os.WriteFile(s.infoPath(), []byte(info), 0644); err != nil {
		s.Log.Warn("could not save resume info", zap.Error(err))
	}
	return datasetID, versionID, structureID, nil
}

// loadPartial restores previously fetched records and derives the next page
// from their count.
func (s *Source) loadPartial() ([]types.Record, int) {
	data, err := os.ReadFile(s.partialPath())
	if err != nil {
		return nil, 1
	}
	var records []types.Record
	if err := json.Unmarshal(data, &records); err != nil {
		s.Log.Warn("corrupt partial file, starting over", zap.Error(err))
		return nil, 1
	}
	startPage := len(records)/s.Config.BatchSize + 1
	s.Log.Info("resuming API fetch",
		zap.Int("records", len(records)),
		zap.Int("start_page", startPage))
	return records, startPage
}

func (s *Source) savePartial(records []types.Record) {
	data, err := json.Marshal(records)
	if err != nil {
		s.Log.Error("could not marshal partial results", zap.Error(err))
		return
	}
	if err := os.WriteFile(s.partialPath(), data, 0644); err != nil {
		s.Log.Error("could not save partial results", zap.Error(err))
		return
	}
	s.Log.Info("partial results saved", zap.Int("records", len(records)))
}

func (s *Source) clearPartial() {
	os.Remove(s.partialPath())
	os.Remove(s.infoPath())
}

// writeProcessed stores the cleaned per-source CSV copy.
func (s *Source) writeProcessed(cols []string, records []types.Record) error {
	path := filepath.Join(s.Dirs.Processed, s.safeName()+".csv")
	if err := WriteCSV(path, cols, records); err != nil {
		return fmt.Errorf("failed to write processed CSV: %w", err)
	}
	s.Log.Info("processed CSV written", zap.String("path", path))
	return nil
}

func (s *Source) safeName() string {
	return strings.ToLower(strings.ReplaceAll(s.Config.DatasetName, " ", "_"))
}

func (s *Source) partialPath() string {
	return filepath.Join(s.Dirs.Temp, s.safeName()+"_partial.json")
}

func (s *Source) infoPath() string {
	return filepath.Join(s.Dirs.Temp, s.safeName()+"_info.txt")
}
