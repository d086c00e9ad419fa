package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"

	"github.com/kjstillabower/apiverse/internal/cache"
	"github.com/kjstillabower/apiverse/internal/format"
	"github.com/kjstillabower/apiverse/internal/generator"
	"github.com/kjstillabower/apiverse/internal/models"
	"github.com/kjstillabower/apiverse/internal/store"
)

var people = []map[string]any{
	{"name": "Luke Skywalker", "height": "172", "mass": "77", "gender": "male"},
	{"name": "C-3PO", "height": "167", "mass": "75", "gender": "n/a"},
	{"name": "R2-D2", "height": "96", "mass": "32", "gender": "n/a"},
	{"name": "Darth Vader", "height": "202", "mass": "136", "gender": "male"},
	{"name": "Leia Organa", "height": "150", "mass": "49", "gender": "female"},
	{"name": "Owen Lars", "height": "178", "mass": "unknown", "gender": "male"},
	{"name": "Anakin Skywalker", "height": "188", "mass": "84", "gender": "male"},
	{"name": "Obi-Wan Kenobi", "height": "182", "mass": "77", "gender": "male"},
	{"name": "Biggs Darklighter", "height": "183", "mass": "84", "gender": "male"},
	{"name": "Beru Whitesun lars", "height": "165", "mass": "75", "gender": "female"},
	{"name": "R5-D4", "height": "97", "mass": "32", "gender": "n/a"},
	{"name": "Wilhuff Tarkin", "height": "180", "mass": "unknown", "gender": "male"},
}

func seedPeople(t *testing.T, st store.DocumentStore) {
	t.Helper()
	for i, p := range people {
		if err := st.Put(context.Background(), string(models.Person), strconv.Itoa(i+1), p); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func newEntityService(t *testing.T, st store.DocumentStore) *EntityService {
	t.Helper()
	return NewEntityService(st, generator.NewBackfiller(generator.NewSource(3)),
		format.New(t.TempDir()), NewResolver(cache.NewInMemoryCache(), ResolverOptions{}))
}

// TestEntityService_Pagination verifies page size, offset and total count.
func TestEntityService_Pagination(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		offset    int
		wantLen   int
		wantFirst string
	}{
		{"first page", 5, 0, 5, "Luke Skywalker"},
		{"second page", 5, 5, 5, "Owen Lars"},
		{"last partial page", 5, 10, 2, "R5-D4"},
		{"past end", 5, 20, 0, ""},
	}
	st := store.NewMemoryStore()
	seedPeople(t, st)
	svc := newEntityService(t, st)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.QueryEntities(context.Background(), Query{Kind: models.Person, Limit: tt.limit, Offset: tt.offset})
			if err != nil {
				t.Fatalf("QueryEntities: %v", err)
			}
			if page.Count != len(people) {
				t.Errorf("count = %d, want %d", page.Count, len(people))
			}
			if len(page.Results) != tt.wantLen {
				t.Fatalf("results = %d, want %d", len(page.Results), tt.wantLen)
			}
			if tt.wantLen > 0 && page.Results[0]["name"] != tt.wantFirst {
				t.Errorf("first = %v, want %s", page.Results[0]["name"], tt.wantFirst)
			}
		})
	}
}

// TestEntityService_Search verifies exact matching and the substring fallback.
func TestEntityService_Search(t *testing.T) {
	tests := []struct {
		search    string
		wantCount int
		wantFirst string
	}{
		{"Luke Skywalker", 1, "Luke Skywalker"},
		{"uke", 1, "Luke Skywalker"},
		{"SKY", 2, "Luke Skywalker"},
		{"lars", 2, "Owen Lars"},
		{"Yoda", 0, ""},
	}
	st := store.NewMemoryStore()
	seedPeople(t, st)
	svc := newEntityService(t, st)

	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			page, err := svc.QueryEntities(context.Background(), Query{Kind: models.Person, Limit: 10, Search: tt.search})
			if err != nil {
				t.Fatalf("QueryEntities: %v", err)
			}
			if page.Count != tt.wantCount {
				t.Errorf("count = %d, want %d", page.Count, tt.wantCount)
			}
			if tt.wantCount > 0 && page.Results[0]["name"] != tt.wantFirst {
				t.Errorf("first = %v, want %s", page.Results[0]["name"], tt.wantFirst)
			}
		})
	}
}

// TestEntityService_SubstringPagination verifies the fallback pages its matches.
func TestEntityService_SubstringPagination(t *testing.T) {
	st := store.NewMemoryStore()
	seedPeople(t, st)
	svc := newEntityService(t, st)

	page, err := svc.QueryEntities(context.Background(), Query{Kind: models.Person, Limit: 1, Offset: 1, Search: "skywalker"})
	if err != nil {
		t.Fatalf("QueryEntities: %v", err)
	}
	if page.Count != 2 || len(page.Results) != 1 {
		t.Fatalf("count = %d, results = %d; want 2 and 1", page.Count, len(page.Results))
	}
	if page.Results[0]["name"] != "Anakin Skywalker" {
		t.Errorf("result = %v", page.Results[0]["name"])
	}
}

// TestEntityService_BackfillIsReadOnly verifies placeholders are filled in
// responses while the stored document keeps its placeholder.
func TestEntityService_BackfillIsReadOnly(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	seedPeople(t, st)
	svc := newEntityService(t, st)

	rec, err := svc.GetEntity(ctx, models.Person, 6)
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	if rec["id"] != 6 {
		t.Errorf("id = %v, want 6", rec["id"])
	}
	mass, _ := rec["mass"].(string)
	if models.IsPlaceholder(mass) {
		t.Errorf("mass not backfilled: %q", mass)
	}
	if _, err := strconv.Atoi(mass); err != nil {
		t.Errorf("mass = %q, want an integer", mass)
	}

	doc, err := st.Get(ctx, string(models.Person), "6")
	if err != nil {
		t.Fatalf("store Get: %v", err)
	}
	if doc.Fields["mass"] != "unknown" {
		t.Errorf("stored mass = %v, want unknown", doc.Fields["mass"])
	}
}

// TestEntityService_NotFound verifies missing ids and unknown kinds.
func TestEntityService_NotFound(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	seedPeople(t, st)
	svc := newEntityService(t, st)

	if _, err := svc.GetEntity(ctx, models.Person, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetEntity(999) = %v, want ErrNotFound", err)
	}
	if _, err := svc.ResolveEntity(ctx, models.Planet, 1, format.JSON); !errors.Is(err, ErrNotFound) {
		t.Errorf("ResolveEntity planet = %v, want ErrNotFound", err)
	}
	if _, err := svc.QueryEntities(ctx, Query{Kind: "Droid"}); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown kind = %v, want ErrValidation", err)
	}
}

// TestEntityService_ResolveEntities verifies the rendered envelope.
func TestEntityService_ResolveEntities(t *testing.T) {
	st := store.NewMemoryStore()
	seedPeople(t, st)
	svc := newEntityService(t, st)

	out, err := svc.ResolveEntities(context.Background(), Query{Kind: models.Person, Limit: 3}, format.JSON)
	if err != nil {
		t.Fatalf("ResolveEntities: %v", err)
	}
	var page models.Page[map[string]any]
	if err := json.Unmarshal(out.Content, &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Count != len(people) || len(page.Results) != 3 {
		t.Errorf("count = %d, results = %d", page.Count, len(page.Results))
	}

	html, err := svc.ResolveEntity(context.Background(), models.Person, 1, format.HTML)
	if err != nil {
		t.Fatalf("ResolveEntity: %v", err)
	}
	if html.ContentType != format.ContentTypeHTML {
		t.Errorf("content type = %s", html.ContentType)
	}
}
