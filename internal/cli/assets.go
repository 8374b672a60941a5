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

// addAssetCommands adds asset management commands.
func addAssetCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newAddCmd(app))
	rootCmd.AddCommand(newListCmd(app))
	rootCmd.AddCommand(newDeleteCmd(app))
	rootCmd.AddCommand(newSearchCmd(app))
	rootCmd.AddCommand(newDataCmd(app))
}

func newAddCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <ticker>",
		Short: "Track a new asset",
		Long: `Add an asset to the tracked set.

Name, category and sector default to provider metadata when not given.
Unless --no-download is set, the full lookback history is downloaded
immediately after the asset is created.`,
		Example: `  portfolio-lab add AAPL
  portfolio-lab add BTC-USD --category crypto
  portfolio-lab add ^GSPC --name "S&P 500" --category index --no-download`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			ticker := models.NormalizeTicker(args[0])
			name, _ := cmd.Flags().GetString("name")
			category, _ := cmd.Flags().GetString("category")
			sector, _ := cmd.Flags().GetString("sector")
			noDownload, _ := cmd.Flags().GetBool("no-download")

			if category != "" && !models.ValidCategory(models.Category(category)) {
				output.Error("Invalid category: %s", category)
				return fmt.Errorf("invalid category %q", category)
			}

			// Fill gaps from provider metadata; an unreachable provider
			// just means we fall back to defaults.
			if name == "" || category == "" || sector == "" {
				if meta, err := app.Source.FetchMetadata(ctx, ticker); err == nil {
					if name == "" {
						name = meta.Name
					}
					if category == "" {
						category = string(meta.Category)
					}
					if sector == "" {
						sector = meta.Sector
					}
				}
			}
			if name == "" {
				name = ticker
			}
			if category == "" {
				category = string(models.CategoryStock)
			}

			asset := &models.Asset{
				Ticker:   ticker,
				Name:     name,
				Category: models.Category(category),
				Sector:   sector,
				Interval: models.IntervalDaily,
				Active:   true,
			}
			if err := app.Store.CreateAsset(ctx, asset); err != nil {
				output.Error("Failed to add asset: %v", err)
				return err
			}
			output.Success("Added %s (%s)", asset.Name, asset.Ticker)

			if noDownload {
				return nil
			}

			opts, err := ingest.LoadOptions(ctx, app.Store)
			if err != nil {
				output.Error("Failed to load ingestion settings: %v", err)
				return err
			}

			output.Info("Downloading history for %s...", ticker)
			res := app.Engine.SyncAsset(ctx, asset, opts)
			if res.Err != nil {
				output.Warning("Initial download failed: %v", res.Err)
				output.Dim("Run 'portfolio-lab sync %s' to retry.", ticker)
				return nil
			}

			if output.IsJSON() {
				return output.JSON(res)
			}
			output.Success("Saved %d records.", res.Inserted)
			if res.Dropped > 0 {
				output.Warning("Dropped %d malformed rows.", res.Dropped)
			}
			return nil
		},
	}

	cmd.Flags().StringP("name", "n", "", "display name (default: provider metadata)")
	cmd.Flags().StringP("category", "c", "", "category (stock, crypto, index, commodity, custom)")
	cmd.Flags().StringP("sector", "s", "", "sector")
	cmd.Flags().Bool("no-download", false, "skip the initial history download")

	return cmd
}

func newListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tracked assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			assets, err := app.Store.ListAssets(ctx)
			if err != nil {
				output.Error("Failed to list assets: %v", err)
				return err
			}
			if len(assets) == 0 {
				output.Info("No assets tracked. Use 'portfolio-lab add <ticker>' to start.")
				return nil
			}

			type row struct {
				models.Asset
				Records int       `json:"records"`
				First   time.Time `json:"first,omitempty"`
				Last    time.Time `json:"last,omitempty"`
			}

			rows := make([]row, 0, len(assets))
			for _, asset := range assets {
				stats, err := app.Store.AssetStats(ctx, asset.ID)
				if err != nil {
					output.Error("Failed to read stats for %s: %v", asset.Ticker, err)
					return err
				}
				rows = append(rows, row{Asset: asset, Records: stats.Records, First: stats.First, Last: stats.Last})
			}

			if output.IsJSON() {
				return output.JSON(rows)
			}

			table := NewTable(output, "Ticker", "Name", "Category", "Interval", "First", "Last", "Records")
			for _, r := range rows {
				table.AddRow(
					output.BoldText(r.Ticker),
					Truncate(r.Name, 32),
					string(r.Category),
					string(r.Interval),
					FormatDate(r.First),
					FormatDate(r.Last),
					fmt.Sprintf("%d", r.Records),
				)
			}
			table.Render()
			return nil
		},
	}
}

func newDeleteCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <ticker>",
		Short: "Delete an asset and all its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			ticker := models.NormalizeTicker(args[0])
			yes, _ := cmd.Flags().GetBool("yes")

			asset, err := app.Store.GetAssetByTicker(ctx, ticker)
			if err != nil {
				output.Error("%v", err)
				return err
			}

			if !yes && !output.Confirm("Delete %s and ALL its history?", asset.Name) {
				output.Info("Aborted.")
				return nil
			}

			if err := app.Store.DeleteAsset(ctx, ticker); err != nil {
				output.Error("Failed to delete asset: %v", err)
				return err
			}
			output.Success("Deleted %s.", ticker)
			return nil
		},
	}

	cmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")

	return cmd
}

func newSearchCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search the provider for matching symbols",
		Example: `  portfolio-lab search apple
  portfolio-lab search bitcoin`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			query := args[0]
			for _, a := range args[1:] {
				query += " " + a
			}

			matches, err := app.Source.Search(ctx, query)
			if err != nil {
				output.Error("Search failed: %v", err)
				return err
			}
			if len(matches) == 0 {
				output.Info("No matches for %q.", query)
				return nil
			}

			if output.IsJSON() {
				return output.JSON(matches)
			}

			table := NewTable(output, "Symbol", "Name", "Category", "Exchange")
			for _, m := range matches {
				table.AddRow(output.BoldText(m.Symbol), Truncate(m.Name, 40), string(m.Category), m.Exchange)
			}
			table.Render()
			output.Dim("Use 'portfolio-lab add <symbol>' to track one of these.")
			return nil
		},
	}
}

func newDataCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data <ticker>",
		Short: "Show stored OHLCV records for an asset",
		Long:  "Display stored price records. Reads only the local database.",
		Example: `  portfolio-lab data AAPL --limit 20
  portfolio-lab data BTC-USD --from 2024-01-01 --to 2024-03-31`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			ticker := models.NormalizeTicker(args[0])
			fromStr, _ := cmd.Flags().GetString("from")
			toStr, _ := cmd.Flags().GetString("to")
			limit, _ := cmd.Flags().GetInt("limit")

			asset, err := app.Store.GetAssetByTicker(ctx, ticker)
			if err != nil {
				output.Error("%v", err)
				return err
			}

			from := time.Time{}
			to := models.Day(time.Now())
			if fromStr != "" {
				if from, err = time.Parse("2006-01-02", fromStr); err != nil {
					output.Error("Invalid --from date: %v", err)
					return err
				}
			}
			if toStr != "" {
				if to, err = time.Parse("2006-01-02", toStr); err != nil {
					output.Error("Invalid --to date: %v", err)
					return err
				}
			}

			points, err := app.Store.GetPricePoints(ctx, asset.ID, from, to)
			if err != nil {
				output.Error("Failed to read records: %v", err)
				return err
			}
			if limit > 0 && len(points) > limit {
				points = points[len(points)-limit:]
			}
			if len(points) == 0 {
				output.Info("No records stored for %s in that range.", ticker)
				return nil
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"ticker": ticker,
					"count":  len(points),
					"points": points,
				})
			}

			output.Bold("%s - %d records", ticker, len(points))
			table := NewTable(output, "Date", "Open", "High", "Low", "Close", "Volume", "Adj Close")
			for _, p := range points {
				table.AddRow(
					FormatDate(p.Date),
					FormatPrice(p.Open),
					output.Green(FormatPrice(p.High)),
					output.Red(FormatPrice(p.Low)),
					FormatPrice(p.Close),
					FormatVolume(p.Volume),
					FormatOptionalPrice(p.AdjClose),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().String("from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "end date (YYYY-MM-DD)")
	cmd.Flags().IntP("limit", "l", 0, "limit number of rows displayed (0 for all)")

	return cmd
}
