// Package importer loads the reference entity sets (films, people, planets,
// species, starships, vehicles) from Django-style fixture files into the
// durable store.
package importer

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/apiverse/internal/models"
	"github.com/kjstillabower/apiverse/internal/observability"
	"github.com/kjstillabower/apiverse/internal/store"
)

//go:embed data/*.json
var embedded embed.FS

// Fixture is one record of a fixture file.
type Fixture struct {
	Model  string         `json:"model"`
	PK     int            `json:"pk"`
	Fields map[string]any `json:"fields"`
}

// Order lists every kind with its fixture file in import order. Transport
// precedes the kinds that reference it.
var Order = []struct {
	Kind models.Kind
	File string
}{
	{models.Film, "films.json"},
	{models.Person, "people.json"},
	{models.Planet, "planets.json"},
	{models.Species, "species.json"},
	{models.Transport, "transport.json"},
	{models.Starship, "starships.json"},
	{models.Vehicle, "vehicles.json"},
}

// Result counts the entities written per kind.
type Result map[models.Kind]int

// Total returns the number of entities written across kinds.
func (r Result) Total() int {
	n := 0
	for _, v := range r {
		n += v
	}
	return n
}

// Importer replaces stored reference entities with fixture contents.
type Importer struct {
	store  store.DocumentStore
	data   fs.FS
	logger *zap.Logger
}

// New creates an Importer reading fixtures from data, or from the built-in
// fixtures when data is nil.
func New(st store.DocumentStore, data fs.FS, logger *zap.Logger) *Importer {
	if data == nil {
		data, _ = fs.Sub(embedded, "data")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{store: st, data: data, logger: logger}
}

// FromDir returns an fs.FS over a fixture directory on disk. An empty dir
// selects the built-in fixtures.
func FromDir(dir string) fs.FS {
	if dir == "" {
		return nil
	}
	return os.DirFS(dir)
}

// Populated reports whether films or people are already stored.
func (im *Importer) Populated(ctx context.Context) (bool, error) {
	for _, kind := range []models.Kind{models.Film, models.Person} {
		docs, err := im.store.Fetch(ctx, store.NewQuery(string(kind)), 1, 0)
		if err != nil {
			return false, fmt.Errorf("check %s: %w", kind, err)
		}
		if len(docs) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// Bootstrap imports everything unless reference data already exists.
// Returns a nil Result when skipped.
func (im *Importer) Bootstrap(ctx context.Context) (Result, error) {
	populated, err := im.Populated(ctx)
	if err != nil {
		return nil, err
	}
	if populated {
		im.logger.Info("reference data already present, skipping import")
		return nil, nil
	}
	return im.ImportAll(ctx)
}

// ImportAll imports every kind in Order.
func (im *Importer) ImportAll(ctx context.Context) (Result, error) {
	start := time.Now()
	res := make(Result, len(Order))
	for _, o := range Order {
		n, err := im.ImportKind(ctx, o.Kind)
		if err != nil {
			return res, err
		}
		res[o.Kind] = n
	}
	im.logger.Info("reference import complete",
		zap.Int("entities", res.Total()), zap.Duration("duration", time.Since(start)))
	return res, nil
}

// ImportKind clears every stored entity of kind and writes the fixture set.
// Starships and vehicles take their shared fields from the stored Transport
// with the same pk; their own fields win on conflict.
func (im *Importer) ImportKind(ctx context.Context, kind models.Kind) (int, error) {
	file, ok := fileFor(kind)
	if !ok {
		return 0, fmt.Errorf("no fixture for kind %s", kind)
	}
	fixtures, err := im.load(file)
	if err != nil {
		return 0, err
	}

	existing, err := im.store.Fetch(ctx, store.NewQuery(string(kind)), 0, 0)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", kind, err)
	}
	if err := im.store.DeleteMulti(ctx, string(kind), store.Keys(existing)); err != nil {
		return 0, fmt.Errorf("clear %s: %w", kind, err)
	}

	merge := kind == models.Starship || kind == models.Vehicle
	for _, fx := range fixtures {
		fields := fx.Fields
		if fields == nil {
			fields = map[string]any{}
		}
		if merge {
			fields, err = im.mergeTransport(ctx, fx.PK, fields)
			if err != nil {
				return 0, err
			}
		}
		if err := im.store.Put(ctx, string(kind), strconv.Itoa(fx.PK), fields); err != nil {
			return 0, fmt.Errorf("save %s %d: %w", kind, fx.PK, err)
		}
	}
	observability.ImportedEntitiesTotal.WithLabelValues(string(kind)).Add(float64(len(fixtures)))
	im.logger.Debug("imported kind",
		zap.String("kind", string(kind)), zap.Int("entities", len(fixtures)), zap.Int("replaced", len(existing)))
	return len(fixtures), nil
}

func (im *Importer) mergeTransport(ctx context.Context, pk int, fields map[string]any) (map[string]any, error) {
	out := map[string]any{"transport_id": pk}
	doc, err := im.store.Get(ctx, string(models.Transport), strconv.Itoa(pk))
	switch {
	case err == nil:
		maps.Copy(out, doc.Fields)
	case errors.Is(err, store.ErrNotFound):
		im.logger.Warn("transport missing for entity", zap.Int("pk", pk))
	default:
		return nil, fmt.Errorf("load transport %d: %w", pk, err)
	}
	maps.Copy(out, fields)
	out["transport_id"] = pk
	return out, nil
}

func (im *Importer) load(file string) ([]Fixture, error) {
	raw, err := fs.ReadFile(im.data, file)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", file, err)
	}
	var fixtures []Fixture
	if err := json.Unmarshal(raw, &fixtures); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", file, err)
	}
	return fixtures, nil
}

func fileFor(kind models.Kind) (string, bool) {
	for _, o := range Order {
		if o.Kind == kind {
			return o.File, true
		}
	}
	return "", false
}
