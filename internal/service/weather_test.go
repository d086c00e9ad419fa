package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/kjstillabower/apiverse/internal/cache"
	"github.com/kjstillabower/apiverse/internal/format"
	"github.com/kjstillabower/apiverse/internal/models"
	"github.com/kjstillabower/apiverse/internal/store"
)

// TestWeatherService_DayIsStable verifies that a date generates once and every
// later lookup, including from a fresh service over the same store, returns it.
func TestWeatherService_DayIsStable(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := newWeatherService(t, st, cache.NewInMemoryCache())

	first, err := svc.Day(ctx, "2024-02-10")
	if err != nil {
		t.Fatalf("Day: %v", err)
	}
	again, err := svc.Day(ctx, "2024-02-10")
	if err != nil {
		t.Fatalf("Day again: %v", err)
	}
	if first != again {
		t.Errorf("second lookup = %+v, want %+v", again, first)
	}

	fresh := newWeatherService(t, st, cache.NewInMemoryCache())
	other, err := fresh.Day(ctx, "2024-02-10")
	if err != nil {
		t.Fatalf("fresh Day: %v", err)
	}
	if other != first {
		t.Errorf("fresh service = %+v, want %+v", other, first)
	}
}

// TestWeatherService_MonthDayCount verifies one record per calendar day,
// in date order, leap years included.
func TestWeatherService_MonthDayCount(t *testing.T) {
	tests := []struct {
		month string
		want  int
	}{
		{"2024-02", 29},
		{"2023-02", 28},
		{"2023-04", 30},
		{"2023-12", 31},
	}
	for _, tt := range tests {
		t.Run(tt.month, func(t *testing.T) {
			svc := newWeatherService(t, store.NewMemoryStore(), cache.NewInMemoryCache())
			recs, err := svc.Month(context.Background(), tt.month)
			if err != nil {
				t.Fatalf("Month: %v", err)
			}
			if len(recs) != tt.want {
				t.Fatalf("len = %d, want %d", len(recs), tt.want)
			}
			for i := 1; i < len(recs); i++ {
				if recs[i-1].Date >= recs[i].Date {
					t.Errorf("records out of order at %d: %s then %s", i, recs[i-1].Date, recs[i].Date)
				}
			}
			if recs[0].Date != tt.month+"-01" {
				t.Errorf("first date = %s", recs[0].Date)
			}
		})
	}
}

// TestWeatherService_PartialMonthRegenerates verifies that a month with some
// days stored is cleared and fully regenerated.
func TestWeatherService_PartialMonthRegenerates(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := newWeatherService(t, st, cache.NewInMemoryCache())

	for _, d := range []string{"2024-03-01", "2024-03-02", "2024-03-20"} {
		if _, err := svc.Day(ctx, d); err != nil {
			t.Fatalf("Day %s: %v", d, err)
		}
	}
	recs, err := svc.Month(ctx, "2024-03")
	if err != nil {
		t.Fatalf("Month: %v", err)
	}
	if len(recs) != 31 {
		t.Fatalf("len = %d, want 31", len(recs))
	}
	n, err := st.Count(ctx, store.NewQuery(models.KindWeather))
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 31 {
		t.Errorf("stored = %d, want 31", n)
	}
}

// TestWeatherService_CompleteMonthIsReused verifies that a fully stored month
// is read back rather than regenerated.
func TestWeatherService_CompleteMonthIsReused(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	svc := newWeatherService(t, st, cache.NewInMemoryCache())

	first, err := svc.Month(ctx, "2023-06")
	if err != nil {
		t.Fatalf("Month: %v", err)
	}
	puts := st.Calls("put")
	second, err := svc.Month(ctx, "2023-06")
	if err != nil {
		t.Fatalf("Month again: %v", err)
	}
	if st.Calls("put") != puts {
		t.Errorf("puts = %d after reread, want %d", st.Calls("put"), puts)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("day %d changed: %+v vs %+v", i, first[i], second[i])
		}
	}
}

// TestWeatherService_InvalidInput verifies validation runs before any store access.
func TestWeatherService_InvalidInput(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	svc := newWeatherService(t, st, cache.NewInMemoryCache())

	if _, err := svc.ResolveDay(ctx, "2024-02-30", format.JSON); !errors.Is(err, ErrValidation) {
		t.Errorf("ResolveDay bad date error = %v, want ErrValidation", err)
	}
	if _, err := svc.ResolveMonth(ctx, "2024-13", format.JSON); !errors.Is(err, ErrValidation) {
		t.Errorf("ResolveMonth bad month error = %v, want ErrValidation", err)
	}
	if _, err := svc.Month(ctx, "March"); !errors.Is(err, ErrValidation) {
		t.Errorf("Month error = %v, want ErrValidation", err)
	}
	if st.Total() != 0 {
		t.Errorf("store calls = %d, want 0", st.Total())
	}
}

// TestWeatherService_CacheFailureIsMiss verifies that a broken cache does not
// fail resolution.
func TestWeatherService_CacheFailureIsMiss(t *testing.T) {
	svc := newWeatherService(t, store.NewMemoryStore(), failingCache{})
	out, err := svc.ResolveDay(context.Background(), "2024-07-04", format.JSON)
	if err != nil {
		t.Fatalf("ResolveDay: %v", err)
	}
	var rec models.WeatherRecord
	if err := json.Unmarshal(out.Content, &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Date != "2024-07-04" {
		t.Errorf("date = %s", rec.Date)
	}
}

// TestWeatherService_SunnyMeansDry verifies the condition invariant across a year.
func TestWeatherService_SunnyMeansDry(t *testing.T) {
	ctx := context.Background()
	svc := newWeatherService(t, store.NewMemoryStore(), cache.NewInMemoryCache())
	for _, m := range []string{"2023-01", "2023-04", "2023-07", "2023-10"} {
		recs, err := svc.Month(ctx, m)
		if err != nil {
			t.Fatalf("Month %s: %v", m, err)
		}
		for _, r := range recs {
			if r.Condition == models.Sunny && r.Precipitation != 0 {
				t.Errorf("%s sunny with precipitation %d", r.Date, r.Precipitation)
			}
			if r.Description != models.Descriptions[r.Condition] {
				t.Errorf("%s description %q does not match %s", r.Date, r.Description, r.Condition)
			}
		}
	}
}

// TestWeatherService_CacheHitSkipsStore verifies that a cached day is served
// without reading the store.
func TestWeatherService_CacheHitSkipsStore(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	svc := newWeatherService(t, st, cache.NewInMemoryCache())

	first, err := svc.ResolveDay(ctx, "2024-01-15", format.JSON)
	if err != nil {
		t.Fatalf("ResolveDay: %v", err)
	}
	calls := st.Total()
	if err := st.DeleteMulti(ctx, models.KindWeather, []string{"2024-01-15"}); err != nil {
		t.Fatalf("DeleteMulti: %v", err)
	}
	calls++

	second, err := svc.ResolveDay(ctx, "2024-01-15", format.JSON)
	if err != nil {
		t.Fatalf("ResolveDay again: %v", err)
	}
	if string(first.Content) != string(second.Content) {
		t.Errorf("cached content differs:\n%s\n%s", first.Content, second.Content)
	}
	if st.Total() != calls {
		t.Errorf("store calls = %d, want %d", st.Total(), calls)
	}
}

// TestWeatherService_RegenerationInvalidatesDays verifies that regenerating a
// month drops the cached entries of the days it replaced.
func TestWeatherService_RegenerationInvalidatesDays(t *testing.T) {
	ctx := context.Background()
	c := cache.NewInMemoryCache()
	svc := newWeatherService(t, store.NewMemoryStore(), c)

	if _, err := svc.ResolveDay(ctx, "2024-05-05", format.JSON); err != nil {
		t.Fatalf("ResolveDay: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "weather:2024-05-05:json"); !ok {
		t.Fatal("day not cached")
	}
	if _, err := svc.Month(ctx, "2024-05"); err != nil {
		t.Fatalf("Month: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "weather:2024-05-05:json"); ok {
		t.Error("day entry still cached after regeneration")
	}
}

// TestWeatherService_ResolveMonthFormats verifies JSON and HTML rendering.
func TestWeatherService_ResolveMonthFormats(t *testing.T) {
	ctx := context.Background()
	svc := newWeatherService(t, store.NewMemoryStore(), cache.NewInMemoryCache())

	out, err := svc.ResolveMonth(ctx, "2024-02", format.JSON)
	if err != nil {
		t.Fatalf("ResolveMonth json: %v", err)
	}
	var recs []models.WeatherRecord
	if err := json.Unmarshal(out.Content, &recs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(recs) != 29 {
		t.Errorf("len = %d, want 29", len(recs))
	}

	page, err := svc.ResolveMonth(ctx, "2024-02", format.HTML)
	if err != nil {
		t.Fatalf("ResolveMonth html: %v", err)
	}
	if page.ContentType != format.ContentTypeHTML {
		t.Errorf("content type = %s", page.ContentType)
	}
}

// TestWeatherService_PrefetchMonth verifies the warmer entry point fills the cache.
func TestWeatherService_PrefetchMonth(t *testing.T) {
	ctx := context.Background()
	c := cache.NewInMemoryCache()
	svc := newWeatherService(t, store.NewMemoryStore(), c)
	if err := svc.PrefetchMonth(ctx, "2024-08"); err != nil {
		t.Fatalf("PrefetchMonth: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "weather:month:2024-08:json"); !ok {
		t.Error("month not cached after prefetch")
	}
	if err := svc.PrefetchMonth(ctx, "bad"); !errors.Is(err, ErrValidation) {
		t.Errorf("PrefetchMonth(bad) = %v, want ErrValidation", err)
	}
}
