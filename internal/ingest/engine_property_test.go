package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"portfolio-lab/internal/models"
	"portfolio-lab/internal/store"
)

// Property: for any stored range and lookback, planned windows stay inside
// [target, today], never touch a stored day, and together with the stored
// range cover every day of [target, today] exactly once.
func TestProperty_PlanWindowCoverage(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	today := day(2024, 6, 15)

	properties.Property("windows partition the missing span", prop.ForAll(
		func(years, earliestOff, spanDays int) bool {
			// Stored range: earliest = today - earliestOff days,
			// latest = earliest + spanDays (clamped to today).
			earliest := today.AddDate(0, 0, -earliestOff)
			latest := earliest.AddDate(0, 0, spanDays)
			if latest.After(today) {
				latest = today
			}
			rng := store.DateRange{Earliest: earliest, Latest: latest}

			windows := Plan(rng, true, today, years)
			target := today.AddDate(0, 0, -years*365)

			for _, w := range windows {
				if w.Start.After(w.End) {
					t.Logf("inverted window [%s, %s]", w.Start, w.End)
					return false
				}
				if w.Start.Before(target) || w.End.After(today) {
					t.Logf("window [%s, %s] escapes [%s, %s]", w.Start, w.End, target, today)
					return false
				}
				if !w.End.Before(earliest) && !w.Start.After(latest) {
					t.Logf("window [%s, %s] overlaps stored [%s, %s]", w.Start, w.End, earliest, latest)
					return false
				}
			}

			// Every day from target through today is stored or planned
			// exactly once.
			for d := target; !d.After(today); d = d.AddDate(0, 0, 1) {
				covered := 0
				if !d.Before(earliest) && !d.After(latest) {
					covered++
				}
				for _, w := range windows {
					if !d.Before(w.Start) && !d.After(w.End) {
						covered++
					}
				}
				if covered != 1 {
					t.Logf("day %s covered %d times", d.Format("2006-01-02"), covered)
					return false
				}
			}

			return true
		},
		gen.IntRange(1, 3),
		gen.IntRange(0, 4*365),
		gen.IntRange(0, 4*365),
	))

	properties.Property("cold start plans the full lookback", prop.ForAll(
		func(years int) bool {
			windows := Plan(store.DateRange{}, false, today, years)
			if len(windows) != 1 || windows[0].Kind != WindowFull {
				return false
			}
			return windows[0].Start.Equal(today.AddDate(0, 0, -years*365)) &&
				windows[0].End.Equal(today)
		},
		gen.IntRange(1, 30),
	))

	properties.TestingRun(t)
}

// Property: syncing twice in a row inserts rows only the first time,
// regardless of how much history the provider serves or what was already
// stored.
func TestProperty_SyncIdempotence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	today := day(2024, 6, 15)

	properties.Property("second sync is a no-op", prop.ForAll(
		func(years, storedOff, storedSpan int) bool {
			st := newFakeStore()
			src := newFakeSource()
			engine := newTestEngine(st, src)

			asset := &models.Asset{ID: 1, Ticker: "PROP", Interval: models.IntervalDaily}
			opts := Options{Years: years, Interval: models.IntervalDaily, Today: today}

			if storedSpan >= 0 {
				from := today.AddDate(0, 0, -storedOff)
				to := from.AddDate(0, 0, storedSpan)
				if to.After(today) {
					to = today
				}
				st.seed(asset.ID, from, to)
			}
			src.serveDays("PROP", today.AddDate(0, 0, -(years+1)*365), today)

			first := engine.SyncAsset(context.Background(), asset, opts)
			if first.Err != nil {
				t.Logf("first sync failed: %v", first.Err)
				return false
			}

			second := engine.SyncAsset(context.Background(), asset, opts)
			if second.Err != nil {
				t.Logf("second sync failed: %v", second.Err)
				return false
			}
			if second.Inserted != 0 || !second.UpToDate {
				t.Logf("second sync not idempotent: %+v", second)
				return false
			}
			return true
		},
		gen.IntRange(1, 3),
		gen.IntRange(0, 2*365),
		gen.IntRange(-1, 2*365),
	))

	properties.TestingRun(t)
}
