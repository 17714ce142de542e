package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dyluth/lanes/internal/board"
	"github.com/dyluth/lanes/internal/printer"
	"github.com/spf13/cobra"
)

var boardJSON bool

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Render the stored board",
	Long: `Fetch every tracked container from the store and render the board.
Local containers are shown empty; they exist only inside a running engine.

Examples:
  lanes board
  lanes board --json | jq '.containers[].id'`,
	RunE: runBoard,
}

func init() {
	boardCmd.Flags().BoolVar(&boardJSON, "json", false, "Print the board view as JSON")
	rootCmd.AddCommand(boardCmd)
}

func runBoard(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	b, err := board.New(cfg.Topology())
	if err != nil {
		return err
	}
	for _, spec := range cfg.Topology() {
		if !spec.Tracked {
			continue
		}
		items, err := store.FetchContainer(ctx, spec.ID)
		if err != nil {
			return fmt.Errorf("failed to fetch container '%s': %w", spec.ID, err)
		}
		if _, err := b.ApplySnapshot(spec.ID, items); err != nil {
			return fmt.Errorf("failed to apply container '%s': %w", spec.ID, err)
		}
	}

	if boardJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(b.View())
	}
	printer.Board(cmd.OutOrStdout(), b.View())
	return nil
}
