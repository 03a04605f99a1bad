package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [asset...]",
	Short: "Materialize pipeline assets",
	Long: `Materializes the named assets plus their dependencies, or the whole
pipeline when no assets are given. Independent assets run in parallel.

Assets:
  citywalls   scrape the citywalls.ru building catalogue
  opendata    download the technical passport dataset
  combined    merge the two sources by normalized address`,
	RunE: func(cmd *cobra.Command, args []string) error {
		defs, runs, err := openPipeline()
		if err != nil {
			return err
		}
		defer runs.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return defs.Run(ctx, args)
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the full pipeline on the configured interval",
	Long: `Runs the whole pipeline immediately and then again on every configured
interval (schedule.run_interval) until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		defs, runs, err := openPipeline()
		if err != nil {
			return err
		}
		defer runs.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return defs.StartScheduler(ctx)
	},
}
