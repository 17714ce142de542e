package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/lanes/internal/fixture"
	"github.com/dyluth/lanes/internal/printer"
	"github.com/spf13/cobra"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load a YAML fixture into the store",
	Long: `Load items, bank memberships and personas from a YAML fixture.

Items without an id get a generated UUID. Items without created_at are
spaced one second apart so the last entry is the newest in the feed.
Re-running a fixture updates items and personas and never duplicates bank
entries.

Example fixture:
  items:
    - id: item-1
      source: wire
      handle: "@ap"
      time: "09:41"
      content: Rates held steady
  bank: [item-1]
  personas:
    - id: analyst
      name: Analyst
      icon_slug: chart
      model: gpt-4o-mini

Examples:
  lanes seed -f board.yml
  LANES_BACKEND=sqlite lanes seed -f board.yml`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "Fixture file (required)")
	_ = seedCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	f, err := fixture.Load(seedFile)
	if err != nil {
		return printer.Error("invalid fixture", err.Error(), []string{"Check the fixture against `lanes seed --help`"})
	}

	store, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	printer.Step("Seeding %d items into instance '%s'...\n", len(f.Items), cfg.Instance)
	res, err := fixture.Seed(ctx, store, f, time.Now())
	if err != nil {
		return fmt.Errorf("seed failed after %d items: %w", res.Items, err)
	}

	printer.Success("Seeded %d items, %d new bank entries, %d personas\n", res.Items, res.Banked, res.Personas)
	return nil
}
