package catalog

import "fmt"

// Cache keys are deterministic functions of the entity kind and the
// identifying parameters; distinct parameter sets never collide. The formats
// are part of the external contract and must not drift.
const (
	filmPrefix   = "films"
	genrePrefix  = "genres"
	personPrefix = "persons"

	allGenresKey = "all_genres"
)

func filmKey(id string) string {
	return filmPrefix + ":" + id
}

func filmListKey(genreID string, limit, offset int) string {
	return fmt.Sprintf("%s:%s_%d_%d", filmPrefix, genreID, limit, offset)
}

func genreKey(id string) string {
	return genrePrefix + ":" + id
}

func personKey(id string) string {
	return personPrefix + ":" + id
}
