package generator

import (
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/kjstillabower/apiverse/internal/models"
)

// Unknown replaces placeholder values of fields that have no generator.
const Unknown = "unknown"

// FieldGenerator produces a plausible value for one reference field.
type FieldGenerator func(s *Source) string

func intField(lo, hi int) FieldGenerator {
	return func(s *Source) string { return strconv.Itoa(s.IntRange(lo, hi)) }
}

func decimalField(lo, hi float64) FieldGenerator {
	return func(s *Source) string { return strconv.FormatFloat(s.FloatRange(lo, hi), 'f', 1, 64) }
}

func choiceField(choices ...string) FieldGenerator {
	return func(s *Source) string { return Pick(s, choices) }
}

var transportBackfill = map[string]FieldGenerator{
	"cost_in_credits":        intField(1000, 10_000_000),
	"length":                 decimalField(10, 2000),
	"crew":                   intField(1, 1000),
	"passengers":             intField(0, 500),
	"cargo_capacity":         intField(100, 100_000),
	"max_atmosphering_speed": intField(10, 1500),
	"consumables": func(s *Source) string {
		return fmt.Sprintf("%d %s", s.IntRange(1, 10), Pick(s, []string{"days", "weeks", "months", "years"}))
	},
}

var backfillTable = map[models.Kind]map[string]FieldGenerator{
	models.Starship: with(transportBackfill, map[string]FieldGenerator{
		"hyperdrive_rating": decimalField(0.5, 6.0),
		"MGLT":              intField(10, 120),
	}),
	models.Vehicle:   transportBackfill,
	models.Transport: transportBackfill,
	models.Planet: {
		"population":      intField(1000, 1_000_000_000),
		"diameter":        intField(1000, 20000),
		"rotation_period": intField(10, 90),
		"orbital_period":  intField(100, 2000),
		"gravity": func(s *Source) string {
			return strconv.FormatFloat(s.FloatRange(0.5, 2.0), 'f', 1, 64) + " standard"
		},
		"climate": choiceField("temperate", "arid", "tropical", "frozen", "hot", "frigid"),
		"terrain": func(s *Source) string {
			terrains := []string{"mountains", "desert", "grasslands", "forests", "oceans", "swamps", "urban"}
			return strings.Join(Sample(s, terrains, s.IntRange(1, 3)), ", ")
		},
		"surface_water": intField(0, 100),
	},
	models.Person: {
		"height":     intField(60, 250),
		"mass":       intField(20, 200),
		"hair_color": choiceField("black", "brown", "blonde", "red", "white", "none"),
		"skin_color": choiceField("fair", "light", "dark", "green", "blue", "grey"),
		"eye_color":  choiceField("blue", "brown", "green", "yellow", "red", "orange"),
		"birth_year": func(s *Source) string { return fmt.Sprintf("%dBBY", s.IntRange(10, 100)) },
		"gender":     choiceField("male", "female", "n/a", "hermaphrodite"),
	},
}

func with(base, extra map[string]FieldGenerator) map[string]FieldGenerator {
	out := maps.Clone(base)
	maps.Copy(out, extra)
	return out
}

// Backfiller replaces placeholder entity fields at read time.
type Backfiller struct {
	src *Source
}

func NewBackfiller(src *Source) *Backfiller {
	return &Backfiller{src: src}
}

// HasGenerator reports whether (kind, field) has a synthetic value generator.
func HasGenerator(kind models.Kind, field string) bool {
	_, ok := backfillTable[kind][field]
	return ok
}

// Fill returns a copy of fields with every placeholder value replaced, and
// the number of fields that received a generated value. Fields without a
// generator become Unknown. fields itself is not modified.
func (b *Backfiller) Fill(kind models.Kind, fields map[string]any) (map[string]any, int) {
	out := make(map[string]any, len(fields))
	generated := 0
	for k, v := range fields {
		if !models.IsPlaceholder(v) {
			out[k] = v
			continue
		}
		gen, ok := backfillTable[kind][k]
		if !ok {
			out[k] = Unknown
			continue
		}
		out[k] = gen(b.src)
		generated++
	}
	return out, generated
}
