// Command buildings runs the Saint Petersburg building data pipeline: it
// scrapes the citywalls.ru catalogue, downloads the technical passport
// dataset from the open data portal, merges the two by address, and serves
// lookups against the combined result.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"buildings/internal/config"
	"buildings/internal/database"
	"buildings/internal/pipeline"
	"buildings/internal/runlog"
)

var (
	// Global flags
	configPath string
	dataDir    string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "buildings",
	Short: "Saint Petersburg building data pipeline",
	Long: `buildings collects and merges two views of Saint Petersburg's housing stock:
the architectural catalogue scraped from citywalls.ru and the technical
passports of apartment buildings published on data.gov.spb.ru.

The pipeline materializes three assets (citywalls, opendata, combined) and
writes CSV outputs, a compressed dataset store, and optionally an Oracle
table. Interrupted runs resume from checkpoints.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Credentials may live in a .env next to the binary.
		database.LoadEnvFile(".env")

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, err = buildLogger()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func buildLogger() (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	switch cfg.Logging.Level {
	case "debug":
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "warn":
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	}
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if cfg.Logging.File != "" {
		zcfg.OutputPaths = append(zcfg.OutputPaths, cfg.Logging.File)
	}
	return zcfg.Build()
}

// openPipeline builds the resource set and the asset registry, opening the
// run log under the data directory.
func openPipeline() (*pipeline.Definitions, *runlog.Log, error) {
	res, err := pipeline.NewResources(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	runs, err := runlog.Open(filepath.Join(res.Dirs.Base, "runs.db"))
	if err != nil {
		return nil, nil, err
	}
	return pipeline.NewDefinitions(res, runs), runs, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "buildings.yaml", "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "override the configured data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(watchlistCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(runsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
