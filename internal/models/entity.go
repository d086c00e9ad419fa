package models

import (
	"fmt"
	"strings"
)

// Kind names a reference-entity set in the durable store.
type Kind string

const (
	Film      Kind = "Film"
	Person    Kind = "Person"
	Planet    Kind = "Planet"
	Species   Kind = "Species"
	Starship  Kind = "Starship"
	Vehicle   Kind = "Vehicle"
	Transport Kind = "Transport"
)

// PublicKinds are the kinds exposed for querying. Transport is auxiliary.
var PublicKinds = []Kind{Film, Person, Planet, Species, Starship, Vehicle}

// Schema is the known field layout of a kind.
type Schema struct {
	NameField string
	Fields    []string
}

var transportFields = []string{
	"name", "model", "manufacturer", "cost_in_credits", "length", "max_atmosphering_speed",
	"crew", "passengers", "cargo_capacity", "consumables",
}

// Schemas holds the field schema of every kind. Fields outside the schema are
// kept as-is so fixture drift does not drop data.
var Schemas = map[Kind]Schema{
	Film: {NameField: "title", Fields: []string{
		"title", "episode_id", "opening_crawl", "director", "producer", "release_date",
		"characters", "planets", "starships", "vehicles", "species",
	}},
	Person: {NameField: "name", Fields: []string{
		"name", "height", "mass", "hair_color", "skin_color", "eye_color", "birth_year", "gender", "homeworld",
	}},
	Planet: {NameField: "name", Fields: []string{
		"name", "rotation_period", "orbital_period", "diameter", "climate", "gravity", "terrain",
		"surface_water", "population",
	}},
	Species: {NameField: "name", Fields: []string{
		"name", "classification", "designation", "average_height", "skin_colors", "hair_colors",
		"eye_colors", "average_lifespan", "homeworld", "language", "people",
	}},
	Transport: {NameField: "name", Fields: transportFields},
	Starship: {NameField: "name", Fields: append(append([]string{}, transportFields...),
		"hyperdrive_rating", "MGLT", "starship_class", "pilots", "transport_id")},
	Vehicle: {NameField: "name", Fields: append(append([]string{}, transportFields...),
		"vehicle_class", "pilots", "transport_id")},
}

// ParseKind resolves a kind from its name or its plural route segment.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "film", "films":
		return Film, nil
	case "person", "people":
		return Person, nil
	case "planet", "planets":
		return Planet, nil
	case "species":
		return Species, nil
	case "starship", "starships":
		return Starship, nil
	case "vehicle", "vehicles":
		return Vehicle, nil
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

// Entity is a reference record of one kind.
type Entity struct {
	ID     int            `json:"id"`
	Kind   Kind           `json:"kind"`
	Fields map[string]any `json:"fields"`
}

// Name returns the canonical name field value, or "" when absent.
func (e Entity) Name() string {
	v, _ := e.Fields[Schemas[e.Kind].NameField].(string)
	return v
}

// IsPlaceholder reports whether a stored value stands for missing data.
func IsPlaceholder(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "", "unknown", "n/a":
			return true
		}
	}
	return false
}

// Page is the count+results envelope returned for list queries.
type Page[T any] struct {
	Count   int `json:"count"`
	Results []T `json:"results"`
}

// Flatten returns the entity's fields with its id, as served to callers.
func (e Entity) Flatten() map[string]any {
	out := make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		out[k] = v
	}
	out["id"] = e.ID
	return out
}

// Plural returns the display name of a kind's collection.
func (k Kind) Plural() string {
	switch k {
	case Person:
		return "People"
	case Species:
		return "Species"
	}
	return string(k) + "s"
}
