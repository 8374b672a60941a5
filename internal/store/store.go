// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"portfolio-lab/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Assets
	CreateAsset(ctx context.Context, asset *models.Asset) error
	GetAssetByTicker(ctx context.Context, ticker string) (*models.Asset, error)
	ListAssets(ctx context.Context) ([]models.Asset, error)
	DeleteAsset(ctx context.Context, ticker string) error
	AssetStats(ctx context.Context, assetID int64) (*AssetStats, error)

	// Price points
	InsertPricePoints(ctx context.Context, assetID int64, points []models.PricePoint) (int, error)
	PriceDateRange(ctx context.Context, assetID int64) (DateRange, bool, error)
	GetPricePoints(ctx context.Context, assetID int64, from, to time.Time) ([]models.PricePoint, error)

	// Settings
	GetSetting(ctx context.Context, key, fallback string) (string, error)
	SetSetting(ctx context.Context, key, value, description string) error
	ListSettings(ctx context.Context) ([]models.Setting, error)

	// Lifecycle
	Close() error
}

// DateRange is the inclusive span of stored price dates for one asset.
type DateRange struct {
	Earliest time.Time
	Latest   time.Time
}

// AssetStats summarizes the stored history for one asset.
type AssetStats struct {
	Records int
	First   time.Time
	Last    time.Time
}
