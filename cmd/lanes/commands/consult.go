package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/dyluth/lanes/internal/annotation"
	boarderrors "github.com/dyluth/lanes/internal/errors"
	"github.com/dyluth/lanes/internal/printer"
	"github.com/spf13/cobra"
)

var consultPersona string

var consultCmd = &cobra.Command{
	Use:   "consult ITEM_ID",
	Short: "Stream an annotation for one item",
	Long: `Send an item's content to the annotation endpoint and stream the
response to stdout as it arrives. The persona must be in the catalog
(see lanes personas).

Examples:
  lanes consult item-1 --persona analyst
  LANES_ANNOTATION_ENDPOINT=http://consult:3000/api/consult lanes consult item-1 -p editor`,
	Args: cobra.ExactArgs(1),
	RunE: runConsult,
}

func init() {
	consultCmd.Flags().StringVarP(&consultPersona, "persona", "p", "", "Persona id (required)")
	_ = consultCmd.MarkFlagRequired("persona")
	rootCmd.AddCommand(consultCmd)
}

func runConsult(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if _, err := store.GetPersona(ctx, consultPersona); err != nil {
		if boarderrors.Is(err, boarderrors.ErrNotFound) {
			return printer.Error(
				"persona not found",
				fmt.Sprintf("No persona '%s' in instance '%s'", consultPersona, cfg.Instance),
				[]string{"List personas:\n  lanes personas", "Add personas with a fixture:\n  lanes seed -f board.yml"},
			)
		}
		return fmt.Errorf("failed to load persona: %w", err)
	}

	itemID, err := resolveItem(ctx, store, args[0])
	if err != nil {
		return err
	}
	item, err := store.GetItem(ctx, itemID)
	if err != nil {
		return fmt.Errorf("failed to load item: %w", err)
	}

	transport := annotation.NewHTTPTransport(cfg.Annotation.Endpoint, cfg.Annotation.Timeout)
	stream, err := transport.Open(ctx, item.Content, consultPersona)
	if err != nil {
		return printer.ErrorWithContext(
			"annotation request failed",
			err.Error(),
			map[string]string{"Endpoint": cfg.Annotation.Endpoint, "Persona": consultPersona},
			[]string{"Check annotation.endpoint in lanes.yml"},
		)
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		}
		if err != nil {
			fmt.Fprintln(cmd.OutOrStdout())
			return printer.Error("annotation stream failed", err.Error(), nil)
		}
		fmt.Fprint(cmd.OutOrStdout(), chunk)
	}
}
