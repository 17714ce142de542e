package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/lanes/internal/bankview"
	"github.com/dyluth/lanes/internal/printer"
	"github.com/spf13/cobra"
)

var personasOutputFormat string

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List annotation personas",
	Long: `List the persona catalog ordered by name. Persona ids are what
lanes consult --persona and the annotation endpoint accept.

Examples:
  lanes personas
  lanes personas --output=jsonl | jq -r .id`,
	Args: cobra.NoArgs,
	RunE: runPersonas,
}

func init() {
	personasCmd.Flags().StringVarP(&personasOutputFormat, "output", "o", "default", "Output format: default or jsonl")
	rootCmd.AddCommand(personasCmd)
}

func runPersonas(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if personasOutputFormat != "default" && personasOutputFormat != "jsonl" {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", personasOutputFormat),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	store, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	personas, err := store.ListPersonas(ctx)
	if err != nil {
		return fmt.Errorf("failed to list personas: %w", err)
	}

	if personasOutputFormat == "jsonl" {
		return bankview.FormatPersonasJSONL(cmd.OutOrStdout(), personas)
	}
	bankview.FormatPersonaTable(cmd.OutOrStdout(), personas, cfg.Instance)
	return nil
}
