package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"buildings/internal/citywalls"
	"buildings/internal/combine"
	"buildings/internal/database"
	"buildings/internal/opendata"
	"buildings/internal/store"
	"buildings/internal/types"
)

// Asset names as used on the command line and in the run log.
const (
	AssetCitywalls = "citywalls"
	AssetOpenData  = "opendata"
	AssetCombined  = "combined"
)

// storeOpenData is the open-data dataset name in the store. The citywalls and
// combined names come from configuration.
const storeOpenData = "open_data_records"

var citywallsColumns = []string{
	"street", "title", "photo_url", "address",
	"architects", "year_built", "style", "comments", "page_url",
}

// CitywallsAsset scrapes the citywalls.ru building catalogue.
type CitywallsAsset struct{}

func (a *CitywallsAsset) Name() string   { return AssetCitywalls }
func (a *CitywallsAsset) Deps() []string { return nil }

func (a *CitywallsAsset) Materialize(ctx context.Context, res *Resources) (Result, error) {
	cfg := res.Config
	log := res.Log.With(zap.String("asset", a.Name()))
	name := cfg.Citywalls.OutputName

	checkpoint := citywalls.NewCheckpoint(res.Dirs.Checkpoints)
	scraper := citywalls.NewScraper(res.Fetch, log, checkpoint)
	scraper.IndexURL = cfg.Citywalls.IndexURL
	scraper.Budget = cfg.MaxExecutionTime()
	scraper.CheckpointInterval = cfg.Citywalls.CheckpointInterval
	scraper.OnProgress = func(all []types.Building) {
		if err := store.Save(res.Store, name, all); err != nil {
			log.Error("failed to save partial scrape", zap.Error(err))
		}
	}

	// A pending checkpoint means a previous run was cut short; resume on
	// top of its saved data.
	var existing []types.Building
	if resumeFrom, _ := checkpoint.Load(); resumeFrom != "" {
		loaded, err := store.Load[types.Building](res.Store, name)
		if err != nil {
			log.Warn("checkpoint present but stored data unreadable, starting over", zap.Error(err))
			checkpoint.Clear()
		} else {
			existing = loaded
		}
	}

	buildings, err := scraper.Run(ctx, existing)
	if err != nil {
		return Result{}, err
	}

	if err := store.Save(res.Store, name, buildings); err != nil {
		return Result{}, err
	}
	if err := writeBuildingsCSV(filepath.Join(res.Dirs.Raw, name+".csv"), buildings); err != nil {
		return Result{}, err
	}
	return Result{Rows: len(buildings)}, nil
}

func writeBuildingsCSV(path string, buildings []types.Building) error {
	records := make([]types.Record, 0, len(buildings))
	for _, b := range buildings {
		records = append(records, types.Record{
			"street":     b.Street,
			"title":      b.Title,
			"photo_url":  b.PhotoURL,
			"address":    b.Address,
			"architects": b.Architects,
			"year_built": b.YearBuilt,
			"style":      b.Style,
			"comments":   b.Comments,
			"page_url":   b.PageURL,
		})
	}
	return opendata.WriteCSV(path, citywallsColumns, records)
}

// OpenDataAsset downloads the technical passport dataset from the open data
// portal.
type OpenDataAsset struct{}

func (a *OpenDataAsset) Name() string   { return AssetOpenData }
func (a *OpenDataAsset) Deps() []string { return nil }

func (a *OpenDataAsset) Materialize(ctx context.Context, res *Resources) (Result, error) {
	cfg := res.Config
	log := res.Log.With(zap.String("asset", a.Name()))

	source := &opendata.Source{
		Client: &opendata.Client{
			Fetch:   opendata.NewFetch(log, cfg.OpenData.MaxRetries),
			Log:     log,
			BaseURL: cfg.OpenData.APIBaseURL,
			Token:   cfg.OpenData.Token,
		},
		Log:    log,
		Dirs:   res.Dirs,
		Config: cfg.OpenData,
	}

	cols, records, err := source.Run(ctx)
	if err != nil {
		return Result{}, err
	}

	if err := store.Save(res.Store, storeOpenData, records); err != nil {
		return Result{}, err
	}
	return Result{
		Rows:   len(records),
		Detail: map[string]int{"columns": len(cols)},
	}, nil
}

// CombinedAsset merges the two source datasets by normalized address and
// writes the combined outputs.
type CombinedAsset struct{}

func (a *CombinedAsset) Name() string   { return AssetCombined }
func (a *CombinedAsset) Deps() []string { return []string{AssetCitywalls, AssetOpenData} }

func (a *CombinedAsset) Materialize(ctx context.Context, res *Resources) (Result, error) {
	cfg := res.Config
	log := res.Log.With(zap.String("asset", a.Name()))

	buildings, err := store.Load[types.Building](res.Store, cfg.Citywalls.OutputName)
	if err != nil {
		return Result{}, fmt.Errorf("citywalls dataset not available: %w", err)
	}
	passports, err := store.Load[types.Record](res.Store, storeOpenData)
	if err != nil {
		return Result{}, fmt.Errorf("open data dataset not available: %w", err)
	}

	combined, stats := combine.Merge(buildings, passports, log)

	if err := store.Save(res.Store, cfg.Combine.OutputName, combined); err != nil {
		return Result{}, err
	}
	csvPath := filepath.Join(res.Dirs.Output, cfg.Combine.OutputName+".csv")
	if err := combine.WriteCSV(csvPath, combined); err != nil {
		return Result{}, err
	}
	log.Info("combined CSV written", zap.String("path", csvPath))

	if cfg.Combine.SaveToDB {
		if err := a.saveToDatabase(ctx, res, combined); err != nil {
			return Result{}, err
		}
	}
	return Result{Rows: stats.Total, Detail: stats}, nil
}

func (a *CombinedAsset) saveToDatabase(ctx context.Context, res *Resources, combined []types.CombinedBuilding) error {
	cfg := res.Config

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	cols := combine.ColumnsFor(combined)
	if err := db.EnsureTable(ctx, cols, cfg.Combine.IfExists); err != nil {
		return err
	}

	records := make([]types.Record, 0, len(combined))
	for _, c := range combined {
		records = append(records, combine.Flatten(c))
	}
	if err := db.InsertCombined(ctx, records); err != nil {
		return fmt.Errorf("failed to insert combined records: %w", err)
	}
	res.Log.Info("combined dataset mirrored to database",
		zap.String("table", cfg.Database.Table),
		zap.Int("rows", len(records)))
	return nil
}
