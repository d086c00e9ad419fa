package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kjstillabower/apiverse/internal/format"
	"github.com/kjstillabower/apiverse/internal/generator"
	"github.com/kjstillabower/apiverse/internal/models"
	"github.com/kjstillabower/apiverse/internal/observability"
	"github.com/kjstillabower/apiverse/internal/store"
)

// Record is a flattened entity as served: its fields plus "id".
type Record = map[string]any

// EntityService queries imported reference entities with pagination,
// exact-then-substring search and read-time backfill.
type EntityService struct {
	store     store.DocumentStore
	backfill  *generator.Backfiller
	formatter *format.Formatter
	resolver  *Resolver
}

func NewEntityService(st store.DocumentStore, backfill *generator.Backfiller, formatter *format.Formatter, resolver *Resolver) *EntityService {
	return &EntityService{store: st, backfill: backfill, formatter: formatter, resolver: resolver}
}

// Query is a paginated entity lookup.
type Query struct {
	Kind   models.Kind
	Limit  int
	Offset int
	Search string
}

func (q Query) cacheKey(f format.Format) string {
	return fmt.Sprintf("starwars:%s:%d:%d:%s:%s", q.Kind, q.Offset, q.Limit, q.Search, f)
}

// ResolveEntities returns a rendered page of entities.
func (s *EntityService) ResolveEntities(ctx context.Context, q Query, f format.Format) (format.Output, error) {
	page, err := resolve(ctx, s.resolver, "starwars_list", q.cacheKey(f), func(ctx context.Context) (models.Page[Record], error) {
		return s.QueryEntities(ctx, q)
	})
	if err != nil {
		return format.Output{}, err
	}
	return s.formatter.Render("Star Wars "+q.Kind.Plural(), page, f)
}

// QueryEntities returns one page and the total for whichever match path was
// taken. A search first tries an exact match on the name field and falls
// back to a case-insensitive substring scan over every entity of the kind.
func (s *EntityService) QueryEntities(ctx context.Context, q Query) (models.Page[Record], error) {
	schema, ok := models.Schemas[q.Kind]
	if !ok {
		return models.Page[Record]{}, &ValidationError{Field: "kind", Value: string(q.Kind), Reason: "unknown entity kind"}
	}
	base := store.NewQuery(string(q.Kind))

	var (
		docs  []store.Document
		total int
		err   error
	)
	switch {
	case q.Search == "":
		docs, total, err = s.fetchPage(ctx, base, q.Limit, q.Offset)
	default:
		docs, total, err = s.fetchPage(ctx, base.Filter(schema.NameField, store.Eq, q.Search), q.Limit, q.Offset)
		if err == nil && total == 0 {
			docs, total, err = s.substringPage(ctx, base, schema.NameField, q)
		}
	}
	if err != nil {
		return models.Page[Record]{}, fmt.Errorf("query %s: %w", q.Kind, err)
	}

	results := make([]Record, 0, len(docs))
	for _, d := range docs {
		results = append(results, s.toRecord(ctx, q.Kind, d))
	}
	return models.Page[Record]{Count: total, Results: results}, nil
}

func (s *EntityService) fetchPage(ctx context.Context, q store.Query, limit, offset int) ([]store.Document, int, error) {
	total, err := s.store.Count(ctx, q)
	if err != nil || total == 0 {
		return nil, total, err
	}
	docs, err := s.store.Fetch(ctx, q, limit, offset)
	return docs, total, err
}

func (s *EntityService) substringPage(ctx context.Context, base store.Query, nameField string, q Query) ([]store.Document, int, error) {
	all, err := s.store.Fetch(ctx, base, 0, 0)
	if err != nil {
		return nil, 0, err
	}
	needle := strings.ToLower(q.Search)
	var matched []store.Document
	for _, d := range all {
		name, _ := d.Fields[nameField].(string)
		if strings.Contains(strings.ToLower(name), needle) {
			matched = append(matched, d)
		}
	}
	observability.LoggerFrom(ctx).Debug("substring search fallback",
		zap.String("kind", base.Kind), zap.String("search", q.Search), zap.Int("matched", len(matched)))

	start := min(max(q.Offset, 0), len(matched))
	end := len(matched)
	if q.Limit > 0 {
		end = min(start+q.Limit, end)
	}
	return matched[start:end], len(matched), nil
}

// ResolveEntity returns one rendered entity by id.
func (s *EntityService) ResolveEntity(ctx context.Context, kind models.Kind, id int, f format.Format) (format.Output, error) {
	key := fmt.Sprintf("starwars:%s:%d:%s", kind, id, f)
	rec, err := resolve(ctx, s.resolver, "starwars_detail", key, func(ctx context.Context) (Record, error) {
		return s.GetEntity(ctx, kind, id)
	})
	if err != nil {
		return format.Output{}, err
	}
	name, _ := rec[models.Schemas[kind].NameField].(string)
	if name == "" {
		name = "Details"
	}
	return s.formatter.Render(fmt.Sprintf("Star Wars %s: %s", kind, name), rec, f)
}

// GetEntity returns one entity by id, or ErrNotFound.
func (s *EntityService) GetEntity(ctx context.Context, kind models.Kind, id int) (Record, error) {
	if _, ok := models.Schemas[kind]; !ok {
		return nil, &ValidationError{Field: "kind", Value: string(kind), Reason: "unknown entity kind"}
	}
	doc, err := s.store.Get(ctx, string(kind), strconv.Itoa(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("%s with id %d", kind, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s %d: %w", kind, id, err)
	}
	return s.toRecord(ctx, kind, doc), nil
}

func (s *EntityService) toRecord(ctx context.Context, kind models.Kind, d store.Document) Record {
	id, err := strconv.Atoi(d.Key)
	if err != nil {
		observability.LoggerFrom(ctx).Warn("non-numeric entity key", zap.String("kind", string(kind)), zap.String("key", d.Key))
	}
	fields, generated := s.backfill.Fill(kind, d.Fields)
	if generated > 0 {
		observability.BackfilledFieldsTotal.WithLabelValues(string(kind)).Add(float64(generated))
	}
	return models.Entity{ID: id, Kind: kind, Fields: fields}.Flatten()
}
