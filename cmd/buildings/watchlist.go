package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"buildings/internal/combine"
	"buildings/internal/types"
)

var watchlistCmd = &cobra.Command{
	Use:   "watchlist",
	Short: "Browse saved buildings",
	Long: `Shows the buildings saved from lookups as an interactive list. Select an
entry to view its full combined record.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		combined, err := loadCombined()
		if err != nil {
			return err
		}

		addresses, err := loadWatchlist()
		if err != nil {
			return fmt.Errorf("failed to load watchlist: %w", err)
		}
		if len(addresses) == 0 {
			fmt.Println("Watchlist is empty. Use lookup to add buildings.")
			return nil
		}

		var entries []types.CombinedBuilding
		var lines []string
		for _, addr := range addresses {
			key := combine.CleanKey(addr)
			found := false
			for _, c := range combined {
				if combine.CleanKey(c.NormalizedAddress) == key {
					title := ""
					if c.Citywalls != nil {
						title = c.Citywalls.Title
					}
					entries = append(entries, c)
					lines = append(lines, fmt.Sprintf("%-45s | %s", c.NormalizedAddress, title))
					found = true
					break
				}
			}
			if !found {
				entries = append(entries, types.CombinedBuilding{NormalizedAddress: addr})
				lines = append(lines, fmt.Sprintf("%-45s | (not in current dataset)", addr))
			}
		}

		for _, line := range lines {
			fmt.Println(line)
		}
		fmt.Println("Use ↑/↓ and Enter for details, Esc to exit.")
		interactiveSelect(entries, lines, false)
		return nil
	},
}

func watchlistPath() string {
	return filepath.Join(cfg.DataDir, "watchlist.txt")
}

// loadWatchlist returns the saved addresses. A missing file is an empty list.
func loadWatchlist() ([]string, error) {
	f, err := os.Open(watchlistPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var addresses []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		addr := scanner.Text()
		if addr != "" {
			addresses = append(addresses, addr)
		}
	}
	return addresses, scanner.Err()
}

// saveWatch appends an address to the watchlist unless it is already there.
// Comparison uses the same key cleaning as lookups so whitespace and casing
// differences do not create duplicates.
func saveWatch(address string) error {
	key := combine.CleanKey(address)
	existing, err := loadWatchlist()
	if err != nil {
		return err
	}
	for _, addr := range existing {
		if combine.CleanKey(addr) == key {
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(watchlistPath()), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(watchlistPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintln(f, address)
	return err
}
