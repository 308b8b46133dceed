// Package catalog implements the read-through entity services for films,
// genres, and persons: cache first, search backend on a miss, best-effort
// write-back of non-empty results.
package catalog

import "errors"

// ErrUnavailable is the single service-level failure kind: the backend
// produced no usable answer even after retries. Not-found is expressed as a
// nil result or empty slice, never as an error.
var ErrUnavailable = errors.New("catalog: unavailable")

// Genre is a catalog genre document.
type Genre struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PersonRef is the short person form embedded in film documents.
type PersonRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Film is a catalog film document. A null description in the source document
// decodes to the empty string.
type Film struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	IMDBRating  float64     `json:"imdb_rating"`
	Genres      []Genre     `json:"genres"`
	Actors      []PersonRef `json:"actors"`
	Writers     []PersonRef `json:"writers"`
	Directors   []PersonRef `json:"directors"`
}

// PersonFilm links a person to one film with the roles held there. A person
// may hold several roles on the same film.
type PersonFilm struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles"`
}

// Person is a catalog person document. The association order of Films is
// meaningful and preserved through every read path.
type Person struct {
	ID    string       `json:"id"`
	Name  string       `json:"full_name"`
	Films []PersonFilm `json:"films"`
}
