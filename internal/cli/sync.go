// Package cli provides the command-line interface for the market data manager.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"portfolio-lab/internal/ingest"
	"portfolio-lab/internal/models"
)

// addSyncCommands adds the sync command.
func addSyncCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newSyncCmd(app))
}

func newSyncCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sync [ticker|all]",
		Short: "Fetch missing history for one or all assets",
		Long: `Bring stored history up to date.

For each asset the engine determines what is missing - history older than
the earliest stored record (up to the configured lookback window), history
newer than the latest stored record, or everything for a new asset - and
fetches exactly that. Existing records are never refetched or overwritten.`,
		Example: `  portfolio-lab sync
  portfolio-lab sync AAPL
  portfolio-lab sync all`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()

			opts, err := ingest.LoadOptions(ctx, app.Store)
			if err != nil {
				output.Error("Failed to load ingestion settings: %v", err)
				return err
			}

			var assets []models.Asset
			if len(args) == 0 || args[0] == "all" {
				if assets, err = app.Store.ListAssets(ctx); err != nil {
					output.Error("Failed to list assets: %v", err)
					return err
				}
				if len(assets) == 0 {
					output.Info("No assets tracked. Use 'portfolio-lab add <ticker>' to start.")
					return nil
				}
			} else {
				asset, err := app.Store.GetAssetByTicker(ctx, args[0])
				if err != nil {
					output.Error("%v", err)
					return err
				}
				assets = []models.Asset{*asset}
			}

			summary := app.Engine.SyncAll(ctx, assets, opts)

			if output.IsJSON() {
				if err := output.JSON(summary); err != nil {
					return err
				}
			} else {
				printSummary(output, summary)
			}

			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d assets failed to sync", summary.Failed, len(assets))
			}
			return nil
		},
	}
}

func printSummary(output *Output, summary ingest.Summary) {
	for _, r := range summary.Results {
		switch {
		case r.Err != nil:
			output.Error("%-10s sync failed: %v", r.Ticker, r.Err)
		case r.UpToDate:
			output.Dim("%-10s already up to date", r.Ticker)
		case r.Inserted == 0:
			output.Info("%-10s no new data", r.Ticker)
		default:
			line := fmt.Sprintf("%-10s saved %d new records", r.Ticker, r.Inserted)
			if r.Dropped > 0 {
				line += fmt.Sprintf(" (%d malformed rows dropped)", r.Dropped)
			}
			output.Success("%s", line)
		}
	}
	output.Println()
	output.Bold("Done: %s", summary.String())
}
