// Package search exposes the catalog's authoritative document backend through
// an entity-agnostic query contract: filtered/paginated reads and free-text
// search, both returning raw document bodies.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Entity names one catalog document kind. Each entity maps to exactly one
// backend collection; the mapping is fixed at startup.
type Entity string

const (
	// EntityFilm is backed by the movies collection.
	EntityFilm Entity = "film"
	// EntityGenre is backed by the genres collection.
	EntityGenre Entity = "genre"
	// EntityPerson is backed by the personas collection.
	EntityPerson Entity = "person"
)

var entityCollections = map[Entity]string{
	EntityFilm:   "movies",
	EntityGenre:  "genres",
	EntityPerson: "personas",
}

// Collection resolves the backend collection for the entity.
func (e Entity) Collection() (string, error) {
	collection, ok := entityCollections[e]
	if !ok {
		return "", fmt.Errorf("search: unknown entity %q", e)
	}
	return collection, nil
}

// ErrUnavailable reports that the backend produced no usable answer even
// after retries. An empty hit list is a valid result, never this error.
var ErrUnavailable = errors.New("search: backend unavailable")

// Filter is a single field-match clause. A Field containing the "__"
// separator is interpreted as one level of nesting: "genres__id" matches
// genres.id inside each element of the genres sub-object array. An empty
// Value means no filtering at all rather than match-nothing.
type Filter struct {
	Field string
	Value string
}

// nested splits the filter field into (path, field) when it uses the "__"
// separator.
func (f Filter) nested() (path, field string, ok bool) {
	parts := strings.SplitN(f.Field, "__", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// empty reports whether the clause should be omitted from the query body.
func (f Filter) empty() bool {
	return strings.TrimSpace(f.Field) == "" || strings.TrimSpace(f.Value) == ""
}

// Query describes one filtered read. Pagination is always applied; SortBy is
// optional with a "-" prefix selecting descending order; Filter is optional
// and holds at most one clause.
type Query struct {
	Limit  int
	Offset int
	SortBy string
	Filter *Filter
}

// Storage is the operation set the cache-aside services build on. Both calls
// return the ordered raw document bodies unwrapped from the backend's hit
// envelope; an absent or empty hit list normalizes to an empty slice.
type Storage interface {
	Get(ctx context.Context, entity Entity, query Query) ([]json.RawMessage, error)
	Search(ctx context.Context, entity Entity, text string, limit, offset int) ([]json.RawMessage, error)
}
