// Package cli provides the command-line interface for the market data manager.
package cli

import (
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"portfolio-lab/internal/config"
	"portfolio-lab/internal/ingest"
	"portfolio-lab/internal/logging"
	"portfolio-lab/internal/source"
	"portfolio-lab/internal/store"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  store.DataStore
	Source source.DataSource
	Engine *ingest.Engine
}

// Close releases application resources.
func (a *App) Close() {
	if a.Store != nil {
		a.Store.Close()
	}
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "portfolio-lab",
		Short: "Portfolio-Lab - historical market data manager",
		Long: `Portfolio-Lab tracks financial instruments and maintains a local
database of their historical OHLCV data.

Assets are synced incrementally: each run fetches only the date ranges
missing from the local store, so repeated runs never duplicate records.

Use 'portfolio-lab help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}

			dbPath := cfg.Database.Path
			if dbPath == "" {
				dbPath = filepath.Join(config.DefaultConfigDir(), "portfolio.db")
			}
			dataStore, err := store.NewSQLiteStore(dbPath)
			if err != nil {
				return err
			}
			app.Store = dataStore
			app.Source = source.NewYahooClient(cfg.Source, app.Logger)
			app.Engine = ingest.NewEngine(dataStore, app.Source, app.Logger)
			app.Logger.Debug().Str("db", dbPath).Msg("Store initialized")
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.Close()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/portfolio-lab)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addAssetCommands(rootCmd, app)
	addSyncCommands(rootCmd, app)
	addSettingsCommands(rootCmd, app)

	return rootCmd
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
			} else {
				output.Printf("Portfolio-Lab v%s\n", Version)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Database")
	output.Printf("  Path:     %s\n", cfg.Database.Path)
	output.Println()

	output.Bold("Source")
	output.Printf("  Chart:    %s\n", cfg.Source.ChartURL)
	output.Printf("  Search:   %s\n", cfg.Source.SearchURL)
	output.Printf("  Timeout:  %ds\n", cfg.Source.TimeoutSeconds)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:    %s\n", cfg.Logging.Level)
	output.Printf("  File:     %v\n", cfg.Logging.File)

	return nil
}
