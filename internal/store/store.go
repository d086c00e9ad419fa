// Package store is the durable document store adapter: typed kinds, keyed
// documents, and equality/range filter queries. It owns no business logic.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// ErrNotFound is returned by Get when no document exists for (kind, key).
var ErrNotFound = errors.New("document not found")

// ErrInvalidQuery is returned for filters naming an illegal field or operator.
var ErrInvalidQuery = errors.New("invalid query")

// Document is one stored record.
type Document struct {
	Kind   string
	Key    string
	Fields map[string]any
}

// Op is a filter comparison operator.
type Op string

const (
	Eq  Op = "="
	Gte Op = ">="
	Lte Op = "<="
	Gt  Op = ">"
	Lt  Op = "<"
)

// Filter restricts a query to documents whose field compares to Value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query selects documents of one kind. Build with NewQuery(kind).Filter(...).
type Query struct {
	Kind    string
	Filters []Filter
}

// NewQuery starts a query over kind.
func NewQuery(kind string) Query {
	return Query{Kind: kind}
}

// Filter returns a copy of q with an additional filter.
func (q Query) Filter(field string, op Op, value any) Query {
	filters := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(filters, q.Filters)
	q.Filters = append(filters, Filter{Field: field, Op: op, Value: value})
	return q
}

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (q Query) validate() error {
	if q.Kind == "" {
		return fmt.Errorf("%w: kind is required", ErrInvalidQuery)
	}
	for _, f := range q.Filters {
		if !fieldName.MatchString(f.Field) {
			return fmt.Errorf("%w: field %q", ErrInvalidQuery, f.Field)
		}
		switch f.Op {
		case Eq, Gte, Lte, Gt, Lt:
		default:
			return fmt.Errorf("%w: operator %q", ErrInvalidQuery, f.Op)
		}
	}
	return nil
}

// DocumentStore is the durable store contract. Fetch and Count order results
// by key, shorter keys first, so numeric ids and ISO dates sort naturally.
// A limit of zero or less means no limit.
type DocumentStore interface {
	Get(ctx context.Context, kind, key string) (Document, error)
	Put(ctx context.Context, kind, key string, fields map[string]any) error
	Fetch(ctx context.Context, q Query, limit, offset int) ([]Document, error)
	Count(ctx context.Context, q Query) (int, error)
	DeleteMulti(ctx context.Context, kind string, keys []string) error
	Ping(ctx context.Context) error
	Close() error
}

// Encode converts a typed record into a field map.
func Encode(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return fields, nil
}

// Decode converts a document's fields into a typed record.
func Decode[T any](doc Document) (T, error) {
	var out T
	raw, err := json.Marshal(doc.Fields)
	if err != nil {
		return out, fmt.Errorf("decode %s/%s: %w", doc.Kind, doc.Key, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s/%s: %w", doc.Kind, doc.Key, err)
	}
	return out, nil
}

// Keys returns the keys of docs in order.
func Keys(docs []Document) []string {
	keys := make([]string, len(docs))
	for i, d := range docs {
		keys[i] = d.Key
	}
	return keys
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
