package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"buildings/internal/combine"
	"buildings/internal/pipeline"
	"buildings/internal/store"
	"buildings/internal/types"
)

const (
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorReset  = "\033[0m"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup [address]",
	Short: "Look up a building in the combined dataset",
	Long: `Looks up an address in the combined dataset and shows both source views
side by side. With a street name only, lists every building on the street
for interactive selection. Without arguments, starts an interactive prompt.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		combined, err := loadCombined()
		if err != nil {
			return err
		}
		fmt.Printf("Combined dataset loaded (%d records)\n", len(combined))

		if len(args) > 0 {
			lookupAndRender(strings.Join(args, " "), combined, true)
			return nil
		}

		// Interactive loop for multiple lookups.
		reader := bufio.NewReader(os.Stdin)
		for {
			fmt.Print("Enter address or street (blank to quit): ")
			input, _ := reader.ReadString('\n')
			query := strings.TrimSpace(input)
			if query == "" {
				return nil
			}
			lookupAndRender(query, combined, true)
		}
	},
}

// loadCombined reads the combined dataset from the store.
func loadCombined() ([]types.CombinedBuilding, error) {
	res, err := pipeline.NewResources(cfg, logger)
	if err != nil {
		return nil, err
	}
	combined, err := store.Load[types.CombinedBuilding](res.Store, cfg.Combine.OutputName)
	if err != nil {
		return nil, fmt.Errorf("combined dataset not available, run the pipeline first: %w", err)
	}
	return combined, nil
}

// lookupAndRender resolves a query against the combined dataset. An exact
// address renders directly; a street-only query opens the interactive list.
func lookupAndRender(query string, combined []types.CombinedBuilding, askSave bool) {
	parts := combine.ParseAddress(query, true)
	street := combine.CleanKey(parts.Street)
	house := combine.CleanKey(parts.House)

	if street == "" {
		fmt.Printf("Could not parse address: %s\n", query)
		return
	}

	var matches []types.CombinedBuilding
	for _, c := range combined {
		if combine.CleanKey(c.Street) != street {
			continue
		}
		if house != "" && combine.CleanKey(c.House) != house {
			continue
		}
		matches = append(matches, c)
	}

	switch {
	case len(matches) == 0:
		fmt.Printf("No building found for: %s\n", query)
	case len(matches) == 1:
		renderCombined(matches[0])
		if askSave {
			offerSave(matches[0].NormalizedAddress)
		}
	default:
		selectFromMatches(matches, askSave)
	}
}

// selectFromMatches presents multiple hits as an interactive list.
func selectFromMatches(matches []types.CombinedBuilding, askSave bool) {
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].NormalizedAddress < matches[j].NormalizedAddress
	})

	lines := make([]string, len(matches))
	for i, c := range matches {
		title := ""
		if c.Citywalls != nil {
			title = c.Citywalls.Title
		}
		lines[i] = fmt.Sprintf("%-45s | %s", c.NormalizedAddress, title)
	}
	fmt.Printf("%d buildings match:\n", len(matches))
	interactiveSelect(matches, lines, askSave)
}

// renderCombined prints both source views of a building.
func renderCombined(c types.CombinedBuilding) {
	fmt.Println(strings.Repeat("-", 80))
	fmt.Printf("Address           : %s\n", c.NormalizedAddress)
	fmt.Printf("Merged from       : %s%s%s\n", colorGreen, mergeKindLabel(c.MergeKind), colorReset)

	if b := c.Citywalls; b != nil {
		fmt.Println()
		fmt.Printf("%s[citywalls.ru]%s\n", colorYellow, colorReset)
		fmt.Printf("Title             : %s\n", b.Title)
		fmt.Printf("Architects        : %s\n", b.Architects)
		fmt.Printf("Year Built        : %s\n", b.YearBuilt)
		fmt.Printf("Style             : %s\n", b.Style)
		fmt.Printf("Comments          : %s\n", b.Comments)
		fmt.Printf("Page              : %s\n", b.PageURL)
		if b.PhotoURL != "" {
			fmt.Printf("Photo             : %s\n", b.PhotoURL)
		}
	}

	if len(c.Passport) > 0 {
		fmt.Println()
		fmt.Printf("%s[technical passport]%s\n", colorYellow, colorReset)
		cols := make([]string, 0, len(c.Passport))
		for col := range c.Passport {
			cols = append(cols, col)
		}
		sort.Strings(cols)
		for _, col := range cols {
			if v := strings.TrimSpace(c.Passport[col]); v != "" {
				fmt.Printf("%-40s: %s\n", col, v)
			}
		}
	}
	fmt.Println(strings.Repeat("-", 80))
}

func mergeKindLabel(kind string) string {
	switch kind {
	case types.MergeCitywallsOnly:
		return "citywalls only (no passport matched)"
	case types.MergeOpenDataOnly:
		return "technical passport only (no catalogue entry matched)"
	default:
		return "both sources (" + kind + ")"
	}
}

// offerSave asks whether to add the address to the watchlist.
func offerSave(address string) {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Save to watchlist? (y/N): ")
	resp, _ := reader.ReadString('\n')
	resp = strings.ToLower(strings.TrimSpace(resp))
	if resp == "y" || resp == "yes" {
		if err := saveWatch(address); err != nil {
			fmt.Printf("Failed to save: %v\n", err)
		} else {
			fmt.Println("Saved.")
		}
	}
}
