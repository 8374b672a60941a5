// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "portfolio-lab/internal/errors"
	"portfolio-lab/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Tracked assets
	CREATE TABLE IF NOT EXISTS assets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticker TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		sector TEXT,
		interval TEXT NOT NULL DEFAULT '1d',
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Daily OHLCV records, one per asset and date
	CREATE TABLE IF NOT EXISTS market_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		asset_id INTEGER NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
		date DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL,
		adj_close REAL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(asset_id, date)
	);

	-- Global key/value settings
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		description TEXT,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_market_data_asset ON market_data(asset_id);
	CREATE INDEX IF NOT EXISTS idx_market_data_date ON market_data(date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Asset Methods
// ============================================================================

// CreateAsset inserts a new asset and fills its ID and timestamps.
// Returns ErrAssetExists when the ticker is already tracked.
func (s *SQLiteStore) CreateAsset(ctx context.Context, asset *models.Asset) error {
	asset.Ticker = models.NormalizeTicker(asset.Ticker)

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM assets WHERE ticker = ?`, asset.Ticker).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check asset: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%s: %w", asset.Ticker, apperrors.ErrAssetExists)
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO assets (ticker, name, category, sector, interval, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, asset.Ticker, asset.Name, string(asset.Category), nullString(asset.Sector),
		string(asset.Interval), boolInt(asset.Active), now, now)
	if err != nil {
		return fmt.Errorf("failed to insert asset: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read asset id: %w", err)
	}
	asset.ID = id
	asset.CreatedAt = now
	asset.UpdatedAt = now
	return nil
}

// GetAssetByTicker retrieves an asset by its ticker symbol.
// Returns ErrAssetNotFound when the ticker is not tracked.
func (s *SQLiteStore) GetAssetByTicker(ctx context.Context, ticker string) (*models.Asset, error) {
	ticker = models.NormalizeTicker(ticker)

	row := s.db.QueryRowContext(ctx, `
		SELECT id, ticker, name, category, sector, interval, active, created_at, updated_at
		FROM assets WHERE ticker = ?
	`, ticker)

	asset, err := scanAsset(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s: %w", ticker, apperrors.ErrAssetNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query asset: %w", err)
	}
	return asset, nil
}

// ListAssets returns all tracked assets ordered by ticker.
func (s *SQLiteStore) ListAssets(ctx context.Context) ([]models.Asset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ticker, name, category, sector, interval, active, created_at, updated_at
		FROM assets ORDER BY ticker ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	var assets []models.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, *asset)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets: %w", err)
	}
	return assets, nil
}

// DeleteAsset removes an asset; its price points cascade via the foreign key.
func (s *SQLiteStore) DeleteAsset(ctx context.Context, ticker string) error {
	ticker = models.NormalizeTicker(ticker)

	res, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE ticker = ?`, ticker)
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", ticker, apperrors.ErrAssetNotFound)
	}
	return nil
}

// AssetStats summarizes stored history for the asset.
func (s *SQLiteStore) AssetStats(ctx context.Context, assetID int64) (*AssetStats, error) {
	var count int
	var first, last sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1), MIN(date), MAX(date) FROM market_data WHERE asset_id = ?
	`, assetID).Scan(&count, &first, &last)
	if err != nil {
		return nil, fmt.Errorf("failed to query asset stats: %w", err)
	}

	stats := &AssetStats{Records: count}
	if first.Valid {
		stats.First = models.Day(first.Time)
	}
	if last.Valid {
		stats.Last = models.Day(last.Time)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAsset(row rowScanner) (*models.Asset, error) {
	var a models.Asset
	var sector sql.NullString
	var active int
	if err := row.Scan(&a.ID, &a.Ticker, &a.Name, (*string)(&a.Category), &sector,
		(*string)(&a.Interval), &active, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Sector = sector.String
	a.Active = active != 0
	return &a, nil
}

// ============================================================================
// Price Point Methods
// ============================================================================

// InsertPricePoints inserts price points for an asset, skipping any date that
// already has a row. All inserts for one call commit in a single transaction.
// Returns the number of rows actually inserted.
func (s *SQLiteStore) InsertPricePoints(ctx context.Context, assetID int64, points []models.PricePoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO market_data (asset_id, date, open, high, low, close, volume, adj_close)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, p := range points {
		res, err := stmt.ExecContext(ctx, assetID, models.Day(p.Date),
			p.Open, p.High, p.Low, p.Close, nullFloat(p.Volume), nullFloat(p.AdjClose))
		if err != nil {
			return 0, fmt.Errorf("failed to insert price point: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read insert result: %w", err)
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inserted, nil
}

// PriceDateRange returns the earliest and latest stored price dates for an
// asset. The second return value is false when no rows are stored.
func (s *SQLiteStore) PriceDateRange(ctx context.Context, assetID int64) (DateRange, bool, error) {
	var earliest, latest sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT MIN(date), MAX(date) FROM market_data WHERE asset_id = ?
	`, assetID).Scan(&earliest, &latest)
	if err != nil && err != sql.ErrNoRows {
		return DateRange{}, false, fmt.Errorf("failed to query date range: %w", err)
	}
	if !earliest.Valid || !latest.Valid {
		return DateRange{}, false, nil
	}
	return DateRange{
		Earliest: models.Day(earliest.Time),
		Latest:   models.Day(latest.Time),
	}, true, nil
}

// GetPricePoints retrieves stored price points in [from, to], ordered by date.
func (s *SQLiteStore) GetPricePoints(ctx context.Context, assetID int64, from, to time.Time) ([]models.PricePoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, open, high, low, close, volume, adj_close
		FROM market_data
		WHERE asset_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, assetID, models.Day(from), models.Day(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query price points: %w", err)
	}
	defer rows.Close()

	var points []models.PricePoint
	for rows.Next() {
		var p models.PricePoint
		var volume, adjClose sql.NullFloat64
		if err := rows.Scan(&p.Date, &p.Open, &p.High, &p.Low, &p.Close, &volume, &adjClose); err != nil {
			return nil, fmt.Errorf("failed to scan price point: %w", err)
		}
		p.Date = models.Day(p.Date)
		if volume.Valid {
			v := volume.Float64
			p.Volume = &v
		}
		if adjClose.Valid {
			v := adjClose.Float64
			p.AdjClose = &v
		}
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price points: %w", err)
	}
	return points, nil
}

// ============================================================================
// Settings Methods
// ============================================================================

// GetSetting returns the value for key, or fallback when the key is absent.
func (s *SQLiteStore) GetSetting(ctx context.Context, key, fallback string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query setting: %w", err)
	}
	return value, nil
}

// SetSetting creates or updates a setting.
func (s *SQLiteStore) SetSetting(ctx context.Context, key, value, description string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, description, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			description = COALESCE(excluded.description, settings.description),
			updated_at = excluded.updated_at
	`, key, value, nullString(description), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}

// ListSettings returns all settings ordered by key.
func (s *SQLiteStore) ListSettings(ctx context.Context) ([]models.Setting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value, description, updated_at FROM settings ORDER BY key ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	var settings []models.Setting
	for rows.Next() {
		var st models.Setting
		var desc sql.NullString
		if err := rows.Scan(&st.Key, &st.Value, &desc, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		st.Description = desc.String
		settings = append(settings, st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settings: %w", err)
	}
	return settings, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
