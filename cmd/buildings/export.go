package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"buildings/internal/export"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the combined dataset as a point shapefile",
	Long: `Writes a POINT shapefile from the combined dataset, one feature per
building with coordinates in its technical passport. Buildings without
coordinates are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		combined, err := loadCombined()
		if err != nil {
			return err
		}

		out := exportOut
		if out == "" {
			out = filepath.Join(cfg.DataDir, "output", cfg.Combine.OutputName+".shp")
		}

		written, skipped, err := export.WriteShapefile(out, combined)
		if err != nil {
			return err
		}
		fmt.Printf("Shapefile written: %s (%d points, %d records without coordinates)\n",
			out, written, skipped)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output .shp path (default <data-dir>/output/<name>.shp)")
}
