package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/lanes/internal/bankview"
	"github.com/dyluth/lanes/internal/board"
	"github.com/dyluth/lanes/internal/printer"
	"github.com/spf13/cobra"
)

var (
	bankOutputFormat string
	bankContainer    string
	bankSource       string
	bankHandle       string
	bankContains     string
)

var bankCmd = &cobra.Command{
	Use:   "bank [ITEM_ID]",
	Short: "Inspect banked items",
	Long: `Inspect the durable bank (or the feed) in list or get mode.

List Mode (no ITEM_ID):
  Lists the bank in position order as a table or JSONL.

Get Mode (with ITEM_ID):
  Prints one item as pretty-printed JSON.

Examples:
  lanes bank
  lanes bank --output=jsonl | jq -r .id
  lanes bank --container feed-1 --source 'wire*'
  lanes bank 3f2a9c10-...
  lanes bank 3f2a9c   (short ids of 6+ characters are expanded)`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBank,
}

func init() {
	bankCmd.Flags().StringVarP(&bankOutputFormat, "output", "o", "default", "Output format: default or jsonl (ignored in get mode)")
	bankCmd.Flags().StringVar(&bankContainer, "container", "", "Tracked container to list (default: the bank)")
	bankCmd.Flags().StringVar(&bankSource, "source", "", "Filter by origin source glob")
	bankCmd.Flags().StringVar(&bankHandle, "handle", "", "Filter by exact origin handle")
	bankCmd.Flags().StringVar(&bankContains, "contains", "", "Filter by content substring (case-insensitive)")
	rootCmd.AddCommand(bankCmd)
}

func runBank(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	isGetMode := len(args) > 0

	var outputFormat bankview.OutputFormat
	if !isGetMode {
		switch bankOutputFormat {
		case "default":
			outputFormat = bankview.OutputFormatDefault
		case "jsonl":
			outputFormat = bankview.OutputFormatJSONL
		default:
			return printer.Error(
				"invalid output format",
				fmt.Sprintf("Unknown format: %s", bankOutputFormat),
				[]string{"Valid formats: default, jsonl"},
			)
		}
	}

	store, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if isGetMode {
		itemID, err := resolveItem(ctx, store, args[0])
		if err != nil {
			return err
		}
		if err := bankview.GetItem(ctx, store, itemID, cmd.OutOrStdout()); err != nil {
			if bankview.IsNotFound(err) {
				return printer.Error(
					"item not found",
					err.Error(),
					[]string{"List items:\n  lanes bank --container " + cfg.Board.Feed},
				)
			}
			return err
		}
		return nil
	}

	container := board.ContainerID(cfg.Board.Bank)
	if bankContainer != "" {
		container = board.ContainerID(bankContainer)
	}

	filters := &bankview.FilterCriteria{SourceGlob: bankSource, Handle: bankHandle, Contains: bankContains}
	return bankview.ListContainer(ctx, store, container, cfg.Instance, outputFormat, filters, cmd.OutOrStdout())
}
