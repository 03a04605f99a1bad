package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"buildings/internal/runlog"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent pipeline runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		runs, err := runlog.Open(filepath.Join(cfg.DataDir, "runs.db"))
		if err != nil {
			return err
		}
		defer runs.Close()

		recent, err := runs.Recent(runsLimit)
		if err != nil {
			return err
		}
		if len(recent) == 0 {
			fmt.Println("No runs recorded yet.")
			return nil
		}

		for _, r := range recent {
			duration := ""
			if !r.FinishedAt.IsZero() {
				duration = r.FinishedAt.Sub(r.StartedAt).Truncate(time.Second).String()
			}
			fmt.Printf("%s  %s  %-8s  %-8s  %s\n",
				r.ID[:8],
				r.StartedAt.Format("2006-01-02 15:04:05"),
				r.Status,
				duration,
				strings.Join(r.Assets, ","))
			if r.Error != "" {
				fmt.Printf("          error: %s\n", r.Error)
			}

			assets, err := runs.AssetRuns(r.ID)
			if err != nil {
				continue
			}
			for _, a := range assets {
				fmt.Printf("          %-10s %d rows", a.Asset, a.Rows)
				if a.Detail != "" {
					fmt.Printf("  %s", a.Detail)
				}
				fmt.Println()
			}
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 10, "number of runs to show")
}
