// Package commands defines the keihid CLI: the serve command running the
// HTTP API plus admin commands for schema setup, demo data, and dataset
// inspection.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/keihiworks/keihi/internal/buildinfo"
	"github.com/keihiworks/keihi/internal/config"
	"github.com/keihiworks/keihi/internal/logging"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "keihid",
		Short:   "Expense CSV upload and reporting service",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newInitDBCommand())
	rootCmd.AddCommand(newSeedCommand())
	rootCmd.AddCommand(newDatasetsCommand())

	return rootCmd
}

// loadConfig loads .env, the environment configuration, and installs the
// configured logger. Every subcommand starts here.
func loadConfig() (*config.Config, error) {
	// Overload overwrites existing env vars with .env values.
	if err := godotenv.Overload(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}
