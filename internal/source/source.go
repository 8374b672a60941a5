// Package source provides market data provider interfaces and implementations.
package source

import (
	"context"
	"time"

	"portfolio-lab/internal/models"
)

// DataSource defines the capabilities required from an external market data
// provider. Implementations return an empty slice, not an error, when a
// query simply has no data.
type DataSource interface {
	// FetchRange returns OHLCV rows for the inclusive date range [start, end].
	FetchRange(ctx context.Context, symbol string, start, end time.Time, interval models.Interval) ([]models.PricePoint, error)

	// FetchMetadata returns provider metadata for a symbol, or ErrNoData
	// when the symbol is unknown.
	FetchMetadata(ctx context.Context, symbol string) (*models.AssetMeta, error)

	// Search returns ordered candidate matches for a free-text query.
	Search(ctx context.Context, query string) ([]models.SearchMatch, error)
}
