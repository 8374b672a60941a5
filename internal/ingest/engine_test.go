package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	apperrors "portfolio-lab/internal/errors"
	"portfolio-lab/internal/models"
	"portfolio-lab/internal/store"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fakeStore is an in-memory PriceStore.
type fakeStore struct {
	points   map[int64]map[time.Time]models.PricePoint
	settings map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		points:   make(map[int64]map[time.Time]models.PricePoint),
		settings: make(map[string]string),
	}
}

func (f *fakeStore) PriceDateRange(_ context.Context, assetID int64) (store.DateRange, bool, error) {
	rows := f.points[assetID]
	if len(rows) == 0 {
		return store.DateRange{}, false, nil
	}
	var rng store.DateRange
	first := true
	for d := range rows {
		if first {
			rng = store.DateRange{Earliest: d, Latest: d}
			first = false
			continue
		}
		if d.Before(rng.Earliest) {
			rng.Earliest = d
		}
		if d.After(rng.Latest) {
			rng.Latest = d
		}
	}
	return rng, true, nil
}

func (f *fakeStore) InsertPricePoints(_ context.Context, assetID int64, pts []models.PricePoint) (int, error) {
	rows := f.points[assetID]
	if rows == nil {
		rows = make(map[time.Time]models.PricePoint)
		f.points[assetID] = rows
	}
	inserted := 0
	for _, p := range pts {
		d := models.Day(p.Date)
		if _, ok := rows[d]; ok {
			continue
		}
		rows[d] = p
		inserted++
	}
	return inserted, nil
}

func (f *fakeStore) GetSetting(_ context.Context, key, fallback string) (string, error) {
	if v, ok := f.settings[key]; ok {
		return v, nil
	}
	return fallback, nil
}

func (f *fakeStore) seed(assetID int64, from, to time.Time) {
	rows := f.points[assetID]
	if rows == nil {
		rows = make(map[time.Time]models.PricePoint)
		f.points[assetID] = rows
	}
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		rows[d] = pricePoint(d)
	}
}

func pricePoint(d time.Time) models.PricePoint {
	return models.PricePoint{Date: d, Open: 100, High: 110, Low: 90, Close: 105}
}

type fetchCall struct {
	symbol     string
	start, end time.Time
}

// fakeSource serves rows from a per-symbol calendar and records calls.
type fakeSource struct {
	rows  map[string][]models.PricePoint
	errs  map[string]error
	calls []fetchCall
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		rows: make(map[string][]models.PricePoint),
		errs: make(map[string]error),
	}
}

func (f *fakeSource) FetchRange(_ context.Context, symbol string, start, end time.Time, _ models.Interval) ([]models.PricePoint, error) {
	f.calls = append(f.calls, fetchCall{symbol: symbol, start: start, end: end})
	if err := f.errs[symbol]; err != nil {
		return nil, err
	}
	var out []models.PricePoint
	for _, p := range f.rows[symbol] {
		if p.Date.Before(start) || p.Date.After(end) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeSource) FetchMetadata(context.Context, string) (*models.AssetMeta, error) {
	return nil, apperrors.ErrNoData
}

func (f *fakeSource) Search(context.Context, string) ([]models.SearchMatch, error) {
	return nil, nil
}

func (f *fakeSource) serveDays(symbol string, from, to time.Time) {
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		f.rows[symbol] = append(f.rows[symbol], pricePoint(d))
	}
}

func newTestEngine(st *fakeStore, src *fakeSource) *Engine {
	return NewEngine(st, src, zerolog.Nop())
}

func TestPlan_ColdStart(t *testing.T) {
	today := day(2024, 1, 1)
	windows := Plan(store.DateRange{}, false, today, 5)

	if len(windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(windows))
	}
	w := windows[0]
	if w.Kind != WindowFull {
		t.Errorf("expected full window, got %s", w.Kind)
	}
	if !w.Start.Equal(today.AddDate(0, 0, -5*365)) || !w.End.Equal(today) {
		t.Errorf("unexpected window [%s, %s]", w.Start, w.End)
	}
}

func TestPlan_BackfillAndForward(t *testing.T) {
	// Stored [2020-01-01, 2023-06-01], 5 year lookback, today 2024-01-01:
	// one backfill window ending the day before the earliest stored row and
	// one forward window starting the day after the latest.
	today := day(2024, 1, 1)
	rng := store.DateRange{Earliest: day(2020, 1, 1), Latest: day(2023, 6, 1)}

	windows := Plan(rng, true, today, 5)
	if len(windows) != 2 {
		t.Fatalf("expected 2 windows, got %d: %+v", len(windows), windows)
	}

	target := today.AddDate(0, 0, -5*365)
	backfill, forward := windows[0], windows[1]
	if backfill.Kind != WindowBackfill {
		t.Errorf("expected backfill first, got %s", backfill.Kind)
	}
	if !backfill.Start.Equal(target) || !backfill.End.Equal(day(2019, 12, 31)) {
		t.Errorf("unexpected backfill window [%s, %s]",
			backfill.Start.Format("2006-01-02"), backfill.End.Format("2006-01-02"))
	}
	if forward.Kind != WindowForward {
		t.Errorf("expected forward second, got %s", forward.Kind)
	}
	if !forward.Start.Equal(day(2023, 6, 2)) || !forward.End.Equal(today) {
		t.Errorf("unexpected forward window [%s, %s]",
			forward.Start.Format("2006-01-02"), forward.End.Format("2006-01-02"))
	}
}

func TestPlan_UpToDate(t *testing.T) {
	today := day(2024, 1, 1)
	rng := store.DateRange{Earliest: today.AddDate(0, 0, -3*365), Latest: today}

	if windows := Plan(rng, true, today, 3); len(windows) != 0 {
		t.Errorf("expected no windows, got %+v", windows)
	}
}

func TestPlan_ForwardOnly(t *testing.T) {
	today := day(2024, 1, 1)
	rng := store.DateRange{Earliest: today.AddDate(0, 0, -10*365), Latest: day(2023, 12, 1)}

	windows := Plan(rng, true, today, 2)
	if len(windows) != 1 || windows[0].Kind != WindowForward {
		t.Fatalf("expected single forward window, got %+v", windows)
	}
	if !windows[0].Start.Equal(day(2023, 12, 2)) || !windows[0].End.Equal(today) {
		t.Errorf("unexpected forward window [%s, %s]", windows[0].Start, windows[0].End)
	}
}

func TestPlan_SingleDayBackfill(t *testing.T) {
	today := day(2024, 1, 1)
	target := today.AddDate(0, 0, -365)
	rng := store.DateRange{Earliest: target.AddDate(0, 0, 1), Latest: today}

	windows := Plan(rng, true, today, 1)
	if len(windows) != 1 || windows[0].Kind != WindowBackfill {
		t.Fatalf("expected single backfill window, got %+v", windows)
	}
	if !windows[0].Start.Equal(target) || !windows[0].End.Equal(target) {
		t.Errorf("expected one-day window at %s, got [%s, %s]",
			target, windows[0].Start, windows[0].End)
	}
}

func TestSyncAsset_ColdStartThenIdempotent(t *testing.T) {
	st := newFakeStore()
	src := newFakeSource()
	engine := newTestEngine(st, src)

	today := day(2024, 1, 1)
	opts := Options{Years: 1, Interval: models.IntervalDaily, Today: today}
	asset := &models.Asset{ID: 1, Ticker: "AAPL", Interval: models.IntervalDaily}

	src.serveDays("AAPL", today.AddDate(0, 0, -2*365), today)

	res := engine.SyncAsset(context.Background(), asset, opts)
	if res.Err != nil {
		t.Fatalf("sync failed: %v", res.Err)
	}
	if res.Inserted != 366 { // [today-365d, today] inclusive
		t.Errorf("expected 366 rows inserted, got %d", res.Inserted)
	}

	// Second run with no calendar change inserts nothing.
	res = engine.SyncAsset(context.Background(), asset, opts)
	if res.Err != nil {
		t.Fatalf("second sync failed: %v", res.Err)
	}
	if !res.UpToDate || res.Inserted != 0 {
		t.Errorf("expected up-to-date no-op, got %+v", res)
	}
}

func TestSyncAsset_GapCoverage(t *testing.T) {
	st := newFakeStore()
	src := newFakeSource()
	engine := newTestEngine(st, src)

	today := day(2024, 1, 1)
	opts := Options{Years: 5, Interval: models.IntervalDaily, Today: today}
	asset := &models.Asset{ID: 7, Ticker: "XYZ", Interval: models.IntervalDaily}

	stored := struct{ from, to time.Time }{day(2020, 1, 1), day(2023, 6, 1)}
	st.seed(asset.ID, stored.from, stored.to)
	src.serveDays("XYZ", today.AddDate(0, 0, -6*365), today)

	before := len(st.points[asset.ID])
	res := engine.SyncAsset(context.Background(), asset, opts)
	if res.Err != nil {
		t.Fatalf("sync failed: %v", res.Err)
	}
	if res.Windows != 2 {
		t.Errorf("expected 2 windows, got %d", res.Windows)
	}

	// The stored range is never refetched.
	for _, call := range src.calls {
		if !call.end.Before(stored.from) && !call.start.After(stored.to) {
			t.Errorf("fetch [%s, %s] overlaps stored range [%s, %s]",
				call.start, call.end, stored.from, stored.to)
		}
	}

	// Every day in [target, today] is now stored exactly once.
	target := today.AddDate(0, 0, -5*365)
	for d := target; !d.After(today); d = d.AddDate(0, 0, 1) {
		if _, ok := st.points[asset.ID][d]; !ok {
			t.Fatalf("missing stored day %s", d.Format("2006-01-02"))
		}
	}
	if got, want := len(st.points[asset.ID])-before, res.Inserted; got != want {
		t.Errorf("store grew by %d rows but result reports %d", got, want)
	}
}

func TestSyncAsset_EmptySourceResponse(t *testing.T) {
	st := newFakeStore()
	src := newFakeSource() // serves nothing
	engine := newTestEngine(st, src)

	asset := &models.Asset{ID: 1, Ticker: "THIN", Interval: models.IntervalDaily}
	opts := Options{Years: 1, Interval: models.IntervalDaily, Today: day(2024, 1, 1)}

	res := engine.SyncAsset(context.Background(), asset, opts)
	if res.Err != nil {
		t.Fatalf("empty response must not be an error: %v", res.Err)
	}
	if res.Inserted != 0 || res.UpToDate {
		t.Errorf("expected zero inserts without up-to-date flag, got %+v", res)
	}
}

func TestSyncAsset_MalformedRowsDropped(t *testing.T) {
	st := newFakeStore()
	src := newFakeSource()
	engine := newTestEngine(st, src)

	today := day(2024, 1, 10)
	asset := &models.Asset{ID: 3, Ticker: "BAD", Interval: models.IntervalDaily}
	st.seed(asset.ID, today.AddDate(0, 0, -370), today.AddDate(0, 0, -3))

	src.rows["BAD"] = []models.PricePoint{
		pricePoint(today.AddDate(0, 0, -2)),
		{Date: today.AddDate(0, 0, -1), Open: 100, High: math.NaN(), Low: 90, Close: 105},
		{Date: today, Open: math.Inf(1), High: 110, Low: 90, Close: 105},
	}

	opts := Options{Years: 1, Interval: models.IntervalDaily, Today: today}
	res := engine.SyncAsset(context.Background(), asset, opts)
	if res.Err != nil {
		t.Fatalf("malformed rows must not fail the batch: %v", res.Err)
	}
	if res.Inserted != 1 {
		t.Errorf("expected 1 valid row inserted, got %d", res.Inserted)
	}
	if res.Dropped != 2 {
		t.Errorf("expected 2 rows dropped, got %d", res.Dropped)
	}
}

func TestSyncAsset_SourceFailure(t *testing.T) {
	st := newFakeStore()
	src := newFakeSource()
	src.errs["DOWN"] = fmt.Errorf("connection refused")
	engine := newTestEngine(st, src)

	asset := &models.Asset{ID: 2, Ticker: "DOWN", Interval: models.IntervalDaily}
	opts := Options{Years: 1, Interval: models.IntervalDaily, Today: day(2024, 1, 1)}

	res := engine.SyncAsset(context.Background(), asset, opts)
	if res.Err == nil {
		t.Fatal("expected an error")
	}
	var srcErr *apperrors.SourceError
	if !errors.As(res.Err, &srcErr) {
		t.Errorf("expected SourceError, got %T: %v", res.Err, res.Err)
	}
}

func TestSyncAll_PartialBatchResilience(t *testing.T) {
	st := newFakeStore()
	src := newFakeSource()
	engine := newTestEngine(st, src)

	today := day(2024, 1, 1)
	opts := Options{Years: 1, Interval: models.IntervalDaily, Today: today}

	src.serveDays("GOOD1", today.AddDate(0, 0, -365), today)
	src.errs["DOWN"] = fmt.Errorf("throttled")
	src.serveDays("GOOD2", today.AddDate(0, 0, -365), today)

	assets := []models.Asset{
		{ID: 1, Ticker: "GOOD1", Interval: models.IntervalDaily},
		{ID: 2, Ticker: "DOWN", Interval: models.IntervalDaily},
		{ID: 3, Ticker: "GOOD2", Interval: models.IntervalDaily},
	}

	summary := engine.SyncAll(context.Background(), assets, opts)
	if summary.Updated != 2 || summary.Failed != 1 {
		t.Errorf("expected 2 updated / 1 failed, got %+v", summary)
	}
	if summary.Inserted != 2*366 {
		t.Errorf("expected %d rows inserted, got %d", 2*366, summary.Inserted)
	}
	if len(st.points[1]) == 0 || len(st.points[3]) == 0 {
		t.Error("healthy assets must still be processed")
	}
}

func TestLoadOptions(t *testing.T) {
	st := newFakeStore()
	ctx := context.Background()

	opts, err := LoadOptions(ctx, st)
	if err != nil {
		t.Fatalf("defaults must load: %v", err)
	}
	if opts.Years != DefaultYears || opts.Interval != models.IntervalDaily {
		t.Errorf("unexpected defaults: %+v", opts)
	}

	st.settings[SettingYears] = "3"
	st.settings[SettingInterval] = "1wk"
	opts, err = LoadOptions(ctx, st)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if opts.Years != 3 || opts.Interval != models.IntervalWeekly {
		t.Errorf("unexpected options: %+v", opts)
	}

	st.settings[SettingYears] = "zero"
	if _, err := LoadOptions(ctx, st); err == nil {
		t.Error("expected error for non-numeric years")
	}

	st.settings[SettingYears] = "0"
	if _, err := LoadOptions(ctx, st); err == nil {
		t.Error("expected error for years < 1")
	}

	st.settings[SettingYears] = "5"
	st.settings[SettingInterval] = "2h"
	if _, err := LoadOptions(ctx, st); err == nil {
		t.Error("expected error for unknown interval")
	}
}
