package store

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
)

// MemoryStore implements DocumentStore in process memory. Fields are held as
// encoded JSON so reads see the same value types as the SQLite store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string][]byte)}
}

func (s *MemoryStore) Get(ctx context.Context, kind, key string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	s.mu.RLock()
	raw, ok := s.data[kind][key]
	s.mu.RUnlock()
	if !ok {
		return Document{}, ErrNotFound
	}
	return decodeDocument(kind, key, raw)
}

func (s *MemoryStore) Put(ctx context.Context, kind, key string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", kind, key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[kind] == nil {
		s.data[kind] = make(map[string][]byte)
	}
	s.data[kind][key] = raw
	return nil
}

func (s *MemoryStore) Fetch(ctx context.Context, q Query, limit, offset int) ([]Document, error) {
	docs, err := s.match(ctx, q)
	if err != nil {
		return nil, err
	}
	return page(docs, limit, offset), nil
}

func (s *MemoryStore) Count(ctx context.Context, q Query) (int, error) {
	docs, err := s.match(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (s *MemoryStore) DeleteMulti(ctx context.Context, kind string, keys []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data[kind], k)
	}
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) match(ctx context.Context, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	var out []Document
	for key, raw := range s.data[q.Kind] {
		doc, err := decodeDocument(q.Kind, key, raw)
		if err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		if matches(doc.Fields, q.Filters) {
			out = append(out, doc)
		}
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b Document) int { return compareKeys(a.Key, b.Key) })
	return out, nil
}

func decodeDocument(kind, key string, raw []byte) (Document, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Document{}, fmt.Errorf("decode %s/%s: %w", kind, key, err)
	}
	return Document{Kind: kind, Key: key, Fields: fields}, nil
}

func compareKeys(a, b string) int {
	if c := cmp.Compare(len(a), len(b)); c != 0 {
		return c
	}
	return cmp.Compare(a, b)
}

func matches(fields map[string]any, filters []Filter) bool {
	for _, f := range filters {
		c, ok := compareValues(fields[f.Field], f.Value)
		if !ok {
			return false
		}
		switch f.Op {
		case Eq:
			ok = c == 0
		case Gte:
			ok = c >= 0
		case Lte:
			ok = c <= 0
		case Gt:
			ok = c > 0
		case Lt:
			ok = c < 0
		}
		if !ok {
			return false
		}
	}
	return true
}

// compareValues orders a stored value against a filter value. Values of
// unrelated types never match.
func compareValues(stored, want any) (int, bool) {
	if sf, ok := toFloat(stored); ok {
		wf, ok := toFloat(want)
		if !ok {
			return 0, false
		}
		return cmp.Compare(sf, wf), true
	}
	ss, ok := stored.(string)
	if !ok {
		if sb, isBool := stored.(bool); isBool {
			wb, ok := want.(bool)
			if !ok || sb != wb {
				return 1, ok
			}
			return 0, true
		}
		return 0, false
	}
	ws, ok := want.(string)
	if !ok {
		return 0, false
	}
	return cmp.Compare(ss, ws), true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
