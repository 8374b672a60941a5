// Package cli provides the command-line interface for the market data manager.
package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"portfolio-lab/internal/ingest"
	"portfolio-lab/internal/models"
)

// addSettingsCommands adds the settings command group.
func addSettingsCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage ingestion settings",
		Long: `Manage global key/value settings stored in the database.

Known keys:
  ingestion_years     lookback window in years (default 10)
  ingestion_interval  default fetch interval: 1d, 1wk, 1mo (default 1d)`,
	}

	cmd.AddCommand(newSettingsGetCmd(app))
	cmd.AddCommand(newSettingsSetCmd(app))
	cmd.AddCommand(newSettingsListCmd(app))

	rootCmd.AddCommand(cmd)
}

func newSettingsGetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Show one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			key := args[0]
			value, err := app.Store.GetSetting(ctx, key, defaultForKey(key))
			if err != nil {
				output.Error("Failed to read setting: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{"key": key, "value": value})
			}
			output.Println(value)
			return nil
		},
	}
}

func newSettingsSetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set one setting",
		Example: `  portfolio-lab settings set ingestion_years 5
  portfolio-lab settings set ingestion_interval 1wk`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			key, value := args[0], args[1]
			if err := validateSetting(key, value); err != nil {
				output.Error("%v", err)
				return err
			}

			if err := app.Store.SetSetting(ctx, key, value, descriptionForKey(key)); err != nil {
				output.Error("Failed to set setting: %v", err)
				return err
			}
			output.Success("%s = %s", key, value)
			return nil
		},
	}
}

func newSettingsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			settings, err := app.Store.ListSettings(ctx)
			if err != nil {
				output.Error("Failed to list settings: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(settings)
			}
			if len(settings) == 0 {
				output.Info("No settings stored; defaults apply.")
				output.Dim("ingestion_years = %d, ingestion_interval = %s",
					ingest.DefaultYears, models.IntervalDaily)
				return nil
			}

			table := NewTable(output, "Key", "Value", "Description")
			for _, s := range settings {
				table.AddRow(output.BoldText(s.Key), s.Value, s.Description)
			}
			table.Render()
			return nil
		},
	}
}

// validateSetting rejects values the sync engine could not use.
func validateSetting(key, value string) error {
	switch key {
	case ingest.SettingYears:
		years, err := strconv.Atoi(value)
		if err != nil || years < 1 {
			return fmt.Errorf("%s must be an integer >= 1, got %q", key, value)
		}
	case ingest.SettingInterval:
		if !models.ValidInterval(models.Interval(value)) {
			return fmt.Errorf("%s must be one of 1d, 1wk, 1mo, got %q", key, value)
		}
	}
	return nil
}

func defaultForKey(key string) string {
	switch key {
	case ingest.SettingYears:
		return strconv.Itoa(ingest.DefaultYears)
	case ingest.SettingInterval:
		return string(models.IntervalDaily)
	}
	return ""
}

func descriptionForKey(key string) string {
	switch key {
	case ingest.SettingYears:
		return "Lookback window in years for historical ingestion"
	case ingest.SettingInterval:
		return "Default fetch interval (1d, 1wk, 1mo)"
	}
	return ""
}
