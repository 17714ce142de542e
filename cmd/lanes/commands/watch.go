package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/dyluth/lanes/internal/printer"
	"github.com/dyluth/lanes/internal/watch"
	"github.com/spf13/cobra"
)

var (
	watchOutputFormat string
	watchTables       []string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream store change notifications",
	Long: `Print every change notification published by the store.

Output Formats:
  default - Human-readable output with timestamps
  json    - Line-delimited JSON for programmatic processing

Examples:
  lanes watch
  lanes watch --table the_bank
  lanes watch --output=json > changes.jsonl`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	watchCmd.Flags().StringSliceVar(&watchTables, "table", nil, "Tables to watch (default: all routed tables)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var outputFormat watch.OutputFormat
	switch watchOutputFormat {
	case "default":
		outputFormat = watch.OutputFormatDefault
	case "json":
		outputFormat = watch.OutputFormatJSON
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	tables := watchTables
	if len(tables) == 0 {
		tables = cfg.Routes().Tables()
	}

	store, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return watch.StreamChanges(ctx, store, tables, outputFormat, cmd.OutOrStdout())
}
