// Package ingest implements the incremental synchronization engine that
// keeps each tracked asset's stored history complete between the configured
// lookback horizon and today.
package ingest

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	apperrors "portfolio-lab/internal/errors"
	"portfolio-lab/internal/models"
	"portfolio-lab/internal/source"
	"portfolio-lab/internal/store"
)

// Settings table keys consumed by the engine.
const (
	SettingYears    = "ingestion_years"
	SettingInterval = "ingestion_interval"

	DefaultYears = 10
)

// PriceStore is the slice of the data store the engine needs.
type PriceStore interface {
	PriceDateRange(ctx context.Context, assetID int64) (store.DateRange, bool, error)
	InsertPricePoints(ctx context.Context, assetID int64, points []models.PricePoint) (int, error)
	GetSetting(ctx context.Context, key, fallback string) (string, error)
}

// Options holds one run's ingestion settings, loaded once up front rather
// than read from the settings table mid-algorithm.
type Options struct {
	Years    int
	Interval models.Interval
	Today    time.Time // day granularity UTC; zero means current date
}

// LoadOptions reads ingestion settings from the store, applying defaults for
// absent keys.
func LoadOptions(ctx context.Context, st PriceStore) (Options, error) {
	yearsStr, err := st.GetSetting(ctx, SettingYears, strconv.Itoa(DefaultYears))
	if err != nil {
		return Options{}, err
	}
	years, err := strconv.Atoi(yearsStr)
	if err != nil || years < 1 {
		return Options{}, apperrors.NewValidationError(SettingYears, yearsStr, "must be an integer >= 1")
	}

	intervalStr, err := st.GetSetting(ctx, SettingInterval, string(models.IntervalDaily))
	if err != nil {
		return Options{}, err
	}
	interval := models.Interval(intervalStr)
	if !models.ValidInterval(interval) {
		return Options{}, apperrors.NewValidationError(SettingInterval, intervalStr, "must be one of 1d, 1wk, 1mo")
	}

	return Options{Years: years, Interval: interval}, nil
}

func (o Options) today() time.Time {
	if o.Today.IsZero() {
		return models.Day(time.Now())
	}
	return models.Day(o.Today)
}

// WindowKind identifies why a fetch window is missing from the store.
type WindowKind string

const (
	WindowBackfill WindowKind = "backfill"
	WindowForward  WindowKind = "forward"
	WindowFull     WindowKind = "full"
)

// Window is one inclusive date range to fetch from the provider.
type Window struct {
	Start time.Time
	End   time.Time
	Kind  WindowKind
}

// Plan computes the fetch windows needed to complete an asset's history.
// rng is the stored date range; ok is false when the store holds no rows.
// Windows never overlap the stored range, and a window whose start would
// fall after its end is dropped as a no-op.
func Plan(rng store.DateRange, ok bool, today time.Time, years int) []Window {
	today = models.Day(today)
	target := today.AddDate(0, 0, -years*365)

	if !ok {
		return []Window{{Start: target, End: today, Kind: WindowFull}}
	}

	var windows []Window
	if rng.Earliest.After(target) {
		// Half-open [target, earliest): stop one day short of the
		// earliest stored row so it is never refetched.
		w := Window{Start: target, End: rng.Earliest.AddDate(0, 0, -1), Kind: WindowBackfill}
		if !w.Start.After(w.End) {
			windows = append(windows, w)
		}
	}
	if rng.Latest.Before(today) {
		w := Window{Start: rng.Latest.AddDate(0, 0, 1), End: today, Kind: WindowForward}
		if !w.Start.After(w.End) {
			windows = append(windows, w)
		}
	}
	return windows
}

// Result reports the outcome of syncing one asset.
type Result struct {
	Ticker   string `json:"ticker"`
	Inserted int    `json:"inserted"`
	Dropped  int    `json:"dropped,omitempty"`
	Windows  int    `json:"windows"`
	UpToDate bool   `json:"up_to_date,omitempty"`
	Err      error  `json:"-"`
}

// Summary aggregates a batch run across assets.
type Summary struct {
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Inserted int      `json:"inserted"`
	Results  []Result `json:"results"`
}

// Engine fetches missing history per asset and persists only new rows.
type Engine struct {
	store  PriceStore
	source source.DataSource
	logger zerolog.Logger
}

// NewEngine creates a sync engine.
func NewEngine(st PriceStore, src source.DataSource, logger zerolog.Logger) *Engine {
	return &Engine{store: st, source: src, logger: logger}
}

// SyncAsset brings one asset's stored history up to date. It fetches each
// missing window, drops malformed rows with a diagnostic, and commits each
// window's new rows in one transaction. Running it again immediately inserts
// nothing.
func (e *Engine) SyncAsset(ctx context.Context, asset *models.Asset, opts Options) Result {
	res := Result{Ticker: asset.Ticker}
	logger := e.logger.With().Str("ticker", asset.Ticker).Logger()

	interval := asset.Interval
	if !models.ValidInterval(interval) {
		interval = opts.Interval
	}

	rng, ok, err := e.store.PriceDateRange(ctx, asset.ID)
	if err != nil {
		res.Err = apperrors.Wrapf(err, "reading stored range for %s", asset.Ticker)
		return res
	}

	windows := Plan(rng, ok, opts.today(), opts.Years)
	res.Windows = len(windows)
	if len(windows) == 0 {
		res.UpToDate = true
		logger.Debug().Msg("Already up to date")
		return res
	}

	for _, w := range windows {
		rows, err := e.source.FetchRange(ctx, asset.Ticker, w.Start, w.End, interval)
		if err != nil {
			res.Err = apperrors.NewSourceError(asset.Ticker, string(w.Kind), err)
			return res
		}
		if len(rows) == 0 {
			logger.Debug().
				Str("kind", string(w.Kind)).
				Str("start", w.Start.Format("2006-01-02")).
				Str("end", w.End.Format("2006-01-02")).
				Msg("No data for window")
			continue
		}

		valid, dropped := validateRows(logger, asset.Ticker, rows)
		res.Dropped += dropped

		inserted, err := e.store.InsertPricePoints(ctx, asset.ID, valid)
		if err != nil {
			res.Err = apperrors.Wrapf(err, "persisting %s window for %s", w.Kind, asset.Ticker)
			return res
		}
		res.Inserted += inserted

		logger.Info().
			Str("kind", string(w.Kind)).
			Str("start", w.Start.Format("2006-01-02")).
			Str("end", w.End.Format("2006-01-02")).
			Int("fetched", len(rows)).
			Int("inserted", inserted).
			Msg("Window synced")
	}

	return res
}

// SyncAll processes assets sequentially; one asset's failure never aborts
// the rest of the batch.
func (e *Engine) SyncAll(ctx context.Context, assets []models.Asset, opts Options) Summary {
	summary := Summary{Results: make([]Result, 0, len(assets))}

	for i := range assets {
		res := e.SyncAsset(ctx, &assets[i], opts)
		summary.Results = append(summary.Results, res)

		switch {
		case res.Err != nil:
			summary.Failed++
			e.logger.Warn().Err(res.Err).Str("ticker", res.Ticker).Msg("Asset sync failed")
		case res.UpToDate:
			summary.Skipped++
		default:
			summary.Updated++
			summary.Inserted += res.Inserted
		}
	}

	return summary
}

// validateRows drops rows whose required prices are non-finite. Optional
// fields are allowed to be absent.
func validateRows(logger zerolog.Logger, symbol string, rows []models.PricePoint) ([]models.PricePoint, int) {
	valid := make([]models.PricePoint, 0, len(rows))
	dropped := 0

	for _, r := range rows {
		if field, value, bad := malformedField(r); bad {
			rowErr := apperrors.NewRowError(symbol, r.Date, field, value)
			logger.Warn().Str("field", field).Str("date", r.Date.Format("2006-01-02")).
				Msg(rowErr.Error())
			dropped++
			continue
		}
		valid = append(valid, r)
	}

	return valid, dropped
}

func malformedField(p models.PricePoint) (string, float64, bool) {
	checks := []struct {
		name  string
		value float64
	}{
		{"open", p.Open},
		{"high", p.High},
		{"low", p.Low},
		{"close", p.Close},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) {
			return c.name, c.value, true
		}
	}
	if p.Date.IsZero() {
		return "date", 0, true
	}
	return "", 0, false
}

// String renders a one-line batch summary.
func (s Summary) String() string {
	return fmt.Sprintf("updated %d, skipped %d, failed %d, %d rows inserted",
		s.Updated, s.Skipped, s.Failed, s.Inserted)
}
