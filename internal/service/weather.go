package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/apiverse/internal/format"
	"github.com/kjstillabower/apiverse/internal/generator"
	"github.com/kjstillabower/apiverse/internal/models"
	"github.com/kjstillabower/apiverse/internal/observability"
	"github.com/kjstillabower/apiverse/internal/store"
	"github.com/kjstillabower/apiverse/internal/validation"
)

var allFormats = []format.Format{format.JSON, format.HTML, format.Download}

// WeatherService resolves daily and monthly synthetic weather through
// cache, durable store and generator, in that order.
type WeatherService struct {
	store     store.DocumentStore
	gen       *generator.WeatherGenerator
	formatter *format.Formatter
	resolver  *Resolver
}

func NewWeatherService(st store.DocumentStore, gen *generator.WeatherGenerator, formatter *format.Formatter, resolver *Resolver) *WeatherService {
	return &WeatherService{store: st, gen: gen, formatter: formatter, resolver: resolver}
}

func dayKey(date string, f format.Format) string {
	return fmt.Sprintf("weather:%s:%s", date, f)
}

func monthKey(month string, f format.Format) string {
	return fmt.Sprintf("weather:month:%s:%s", month, f)
}

// ResolveDay returns the weather for date rendered in f.
func (s *WeatherService) ResolveDay(ctx context.Context, date string, f format.Format) (format.Output, error) {
	day, err := validation.ValidateDate(date)
	if err != nil {
		return format.Output{}, err
	}
	date = day.Format(models.DateLayout)
	rec, err := resolve(ctx, s.resolver, "weather_day", dayKey(date, f), func(ctx context.Context) (models.WeatherRecord, error) {
		return s.day(ctx, day)
	})
	if err != nil {
		return format.Output{}, err
	}
	return s.formatter.Render("Weather for "+date, rec, f)
}

// Day returns the stored record for date, generating and persisting it on first use.
func (s *WeatherService) Day(ctx context.Context, date string) (models.WeatherRecord, error) {
	day, err := validation.ValidateDate(date)
	if err != nil {
		return models.WeatherRecord{}, err
	}
	return s.day(ctx, day)
}

func (s *WeatherService) day(ctx context.Context, day time.Time) (models.WeatherRecord, error) {
	date := day.Format(models.DateLayout)
	doc, err := s.store.Get(ctx, models.KindWeather, date)
	if err == nil {
		return store.Decode[models.WeatherRecord](doc)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return models.WeatherRecord{}, fmt.Errorf("load weather %s: %w", date, err)
	}

	rec := s.gen.Generate(day)
	if err := s.save(ctx, rec); err != nil {
		return models.WeatherRecord{}, err
	}
	observability.GeneratedTotal.WithLabelValues("weather").Inc()
	observability.LoggerFrom(ctx).Debug("generated weather", zap.String("date", date))
	return rec, nil
}

func (s *WeatherService) save(ctx context.Context, rec models.WeatherRecord) error {
	fields, err := store.Encode(rec)
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, models.KindWeather, rec.Date, fields); err != nil {
		return fmt.Errorf("save weather %s: %w", rec.Date, err)
	}
	return nil
}

// ResolveMonth returns every day of month, in calendar order, rendered in f.
func (s *WeatherService) ResolveMonth(ctx context.Context, month string, f format.Format) (format.Output, error) {
	first, err := validation.ValidateMonth(month)
	if err != nil {
		return format.Output{}, err
	}
	month = first.Format(models.MonthLayout)
	recs, err := s.resolveMonth(ctx, first, f)
	if err != nil {
		return format.Output{}, err
	}
	return s.formatter.Render("Weather for "+month, recs, f)
}

// PrefetchMonth resolves month into the cache. Used by the cache warmer.
func (s *WeatherService) PrefetchMonth(ctx context.Context, month string) error {
	first, err := validation.ValidateMonth(month)
	if err != nil {
		return err
	}
	_, err = s.resolveMonth(ctx, first, format.JSON)
	return err
}

func (s *WeatherService) resolveMonth(ctx context.Context, first time.Time, f format.Format) ([]models.WeatherRecord, error) {
	month := first.Format(models.MonthLayout)
	return resolve(ctx, s.resolver, "weather_month", monthKey(month, f), func(ctx context.Context) ([]models.WeatherRecord, error) {
		return s.month(ctx, first)
	})
}

// Month returns exactly one record per calendar day of month. A month whose
// stored day count is not the calendar day count is cleared and regenerated.
func (s *WeatherService) Month(ctx context.Context, month string) ([]models.WeatherRecord, error) {
	first, err := validation.ValidateMonth(month)
	if err != nil {
		return nil, err
	}
	return s.month(ctx, first)
}

func (s *WeatherService) month(ctx context.Context, first time.Time) ([]models.WeatherRecord, error) {
	month := first.Format(models.MonthLayout)
	days := models.DaysInMonth(first.Year(), first.Month())
	q := store.NewQuery(models.KindWeather).
		Filter("date", store.Gte, month+"-01").
		Filter("date", store.Lte, month+"-31")

	docs, err := s.store.Fetch(ctx, q, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("load weather month %s: %w", month, err)
	}

	if len(docs) == days {
		recs := make([]models.WeatherRecord, 0, days)
		for _, d := range docs {
			rec, err := store.Decode[models.WeatherRecord](d)
			if err != nil {
				return nil, err
			}
			recs = append(recs, rec)
		}
		slices.SortFunc(recs, func(a, b models.WeatherRecord) int { return strings.Compare(a.Date, b.Date) })
		return recs, nil
	}

	logger := observability.LoggerFrom(ctx)
	logger.Info("regenerating incomplete month",
		zap.String("month", month), zap.Int("stored", len(docs)), zap.Int("days", days))
	observability.MonthRegenerationsTotal.Inc()

	if err := s.store.DeleteMulti(ctx, models.KindWeather, store.Keys(docs)); err != nil {
		return nil, fmt.Errorf("clear weather month %s: %w", month, err)
	}
	// Day entries cached before the regeneration would now disagree with the store.
	var stale []string
	for _, d := range docs {
		for _, f := range allFormats {
			stale = append(stale, dayKey(d.Key, f))
		}
	}
	s.resolver.Invalidate(ctx, stale...)

	recs := make([]models.WeatherRecord, 0, days)
	for d := 1; d <= days; d++ {
		rec := s.gen.Generate(first.AddDate(0, 0, d-1))
		if err := s.save(ctx, rec); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	observability.GeneratedTotal.WithLabelValues("weather").Add(float64(days))
	return recs, nil
}
