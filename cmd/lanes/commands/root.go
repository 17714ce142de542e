package commands

import (
	"fmt"

	"github.com/dyluth/lanes/internal/config"
	"github.com/dyluth/lanes/internal/observability"
	"github.com/dyluth/lanes/internal/printer"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string

	configPath string

	// Set by the root PersistentPreRunE for every subcommand.
	cfg    *config.Config
	logger zerolog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lanes",
	Short: "Lanes - realtime drag-and-drop board engine",
	Long: `Lanes keeps a multi-lane board of content cards in sync with a durable
store. Items arrive in the feed, can be dragged between lanes, are banked
durably, and can be annotated by a streaming consult endpoint.

Configuration is read from lanes.yml (or --config) with LANES_* environment
overrides.`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return printer.Error(
				"invalid configuration",
				err.Error(),
				[]string{"Check lanes.yml or pass --config <path>"},
			)
		}
		cfg = loaded
		logger = observability.InitLogger("lanes", cfg.Log.Level, cfg.Log.Format)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute runs the root command.
func Execute() error {
	// Errors are printed by the printer package.
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to lanes.yml (default ./lanes.yml if present)")
}
