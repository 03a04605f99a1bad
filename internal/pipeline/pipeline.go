// Package pipeline wires the data assets together: it resolves their
// dependency order, materializes them, and records every run.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"buildings/internal/config"
	"buildings/internal/datadir"
	"buildings/internal/fetch"
	"buildings/internal/runlog"
	"buildings/internal/store"
)

// Resources is the shared context every asset materializes against.
type Resources struct {
	Config *config.Config
	Dirs   *datadir.Dirs
	Fetch  *fetch.Client
	Store  *store.Store
	Log    *zap.Logger
}

// NewResources builds the resource set from configuration.
func NewResources(cfg *config.Config, log *zap.Logger) (*Resources, error) {
	dirs, err := datadir.New(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare data directories: %w", err)
	}
	return &Resources{
		Config: cfg,
		Dirs:   dirs,
		Fetch:  fetch.New(log, cfg.Citywalls.MaxRetries),
		Store:  store.New(dirs.Raw),
		Log:    log,
	}, nil
}

// Result is what an asset reports after materializing.
type Result struct {
	Rows   int
	Detail any // asset-specific numbers, serialized into the run log
}

// Asset is one materializable dataset in the pipeline.
type Asset interface {
	Name() string
	Deps() []string
	Materialize(ctx context.Context, res *Resources) (Result, error)
}

// Definitions is the asset registry plus the run log.
type Definitions struct {
	assets map[string]Asset
	res    *Resources
	runs   *runlog.Log
}

// NewDefinitions registers the standard assets against the given resources.
func NewDefinitions(res *Resources, runs *runlog.Log) *Definitions {
	d := &Definitions{
		assets: make(map[string]Asset),
		res:    res,
		runs:   runs,
	}
	d.Register(&CitywallsAsset{})
	d.Register(&OpenDataAsset{})
	d.Register(&CombinedAsset{})
	return d
}

func (d *Definitions) Register(a Asset) {
	d.assets[a.Name()] = a
}

// Names returns the registered asset names, sorted.
func (d *Definitions) Names() []string {
	names := make([]string, 0, len(d.assets))
	for name := range d.assets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run materializes the named assets (all when names is empty) plus every
// dependency, independent assets in parallel. The run and each asset outcome
// are recorded in the run log.
func (d *Definitions) Run(ctx context.Context, names []string) error {
	selected, err := d.resolve(names)
	if err != nil {
		return err
	}

	runID := ""
	if d.runs != nil {
		if runID, err = d.runs.Start(selected); err != nil {
			d.res.Log.Warn("could not record run start", zap.Error(err))
			runID = ""
		}
	}

	runErr := d.materialize(ctx, selected, runID)

	if d.runs != nil && runID != "" {
		if err := d.runs.Finish(runID, runErr); err != nil {
			d.res.Log.Warn("could not record run finish", zap.Error(err))
		}
	}
	return runErr
}

// resolve expands the selection with dependencies and checks every name.
func (d *Definitions) resolve(names []string) ([]string, error) {
	if len(names) == 0 {
		return d.Names(), nil
	}

	selected := make(map[string]bool)
	var visit func(name string) error
	visit = func(name string) error {
		if selected[name] {
			return nil
		}
		a, ok := d.assets[name]
		if !ok {
			return fmt.Errorf("unknown asset %q", name)
		}
		selected[name] = true
		for _, dep := range a.Deps() {
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}

	out := make([]string, 0, len(selected))
	for name := range selected {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// materialize runs the selected assets, launching each as soon as its
// dependencies within the selection have finished.
func (d *Definitions) materialize(ctx context.Context, selected []string, runID string) error {
	inSelection := make(map[string]bool, len(selected))
	for _, name := range selected {
		inSelection[name] = true
	}

	var mu sync.Mutex
	done := make(map[string]chan struct{}, len(selected))
	for _, name := range selected {
		done[name] = make(chan struct{})
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, name := range selected {
		asset := d.assets[name]
		g.Go(func() error {
			for _, dep := range asset.Deps() {
				if !inSelection[dep] {
					continue
				}
				select {
				case <-done[dep]:
				case <-ctx.Done():
					return ctx.Err()
				}
			}

			log := d.res.Log.With(zap.String("asset", asset.Name()))
			log.Info("materializing asset")
			result, err := asset.Materialize(ctx, d.res)
			if err != nil {
				return fmt.Errorf("asset %s: %w", asset.Name(), err)
			}
			log.Info("asset materialized", zap.Int("rows", result.Rows))

			if d.runs != nil && runID != "" {
				mu.Lock()
				if err := d.runs.AssetDone(runID, asset.Name(), result.Rows, result.Detail); err != nil {
					log.Warn("could not record asset outcome", zap.Error(err))
				}
				mu.Unlock()
			}

			close(done[asset.Name()])
			return nil
		})
	}
	return g.Wait()
}
