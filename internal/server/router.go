package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/moviehub/catalog/internal/auth"
	"github.com/moviehub/catalog/internal/catalog"
	"github.com/moviehub/catalog/internal/metrics"
)

// FilmReader is the film surface the API binds to.
type FilmReader interface {
	Films(ctx context.Context, genreID string, limit, offset int) ([]catalog.Film, error)
	FilmsByQuery(ctx context.Context, text string, limit, offset int) ([]catalog.Film, error)
	FilmByID(ctx context.Context, id uuid.UUID) (*catalog.Film, error)
}

// GenreReader is the genre surface the API binds to.
type GenreReader interface {
	GenreByID(ctx context.Context, id uuid.UUID) (*catalog.Genre, error)
	AllGenres(ctx context.Context) ([]catalog.Genre, error)
}

// PersonReader is the person surface the API binds to.
type PersonReader interface {
	Search(ctx context.Context, text string, limit, offset int) ([]catalog.Person, error)
	PersonByID(ctx context.Context, id uuid.UUID) (*catalog.Person, error)
	PersonFilms(ctx context.Context, id uuid.UUID) ([]catalog.Film, error)
}

// Identity decodes caller bearer tokens locally.
type Identity interface {
	UserFromToken(accessToken string) *auth.User
}

// SubscriberChecker resolves whether a caller holds subscriber-equivalent
// roles.
type SubscriberChecker interface {
	IsSubscriber(ctx context.Context, user auth.User) bool
}

// API aggregates the collaborators and policy knobs the HTTP surface needs.
type API struct {
	Films       FilmReader
	Genres      GenreReader
	Persons     PersonReader
	Identity    Identity
	Subscribers SubscriberChecker

	// PremiumRating is the rating above which film details require a
	// subscriber-equivalent caller. Zero disables the gate.
	PremiumRating float64

	Metrics *metrics.Recorder
}

// NewRouter dispatches the v1 catalog routes plus health. The metrics
// endpoint is mounted by the caller alongside this handler.
func NewRouter(api *API) http.Handler {
	if api == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "api unavailable", http.StatusServiceUnavailable)
		})
	}

	mux := http.NewServeMux()
	mux.Handle("GET /api/v1/films", api.observed("films_list", api.handleFilms))
	mux.Handle("GET /api/v1/films/search", api.observed("films_search", api.handleFilmSearch))
	mux.Handle("GET /api/v1/films/{id}", api.observed("film_details", api.handleFilmDetails))
	mux.Handle("GET /api/v1/genres", api.observed("genres_list", api.handleGenres))
	mux.Handle("GET /api/v1/genres/{id}", api.observed("genre_details", api.handleGenreDetails))
	mux.Handle("GET /api/v1/persons/search", api.observed("persons_search", api.handlePersonSearch))
	mux.Handle("GET /api/v1/persons/{id}", api.observed("person_details", api.handlePersonDetails))
	mux.Handle("GET /api/v1/persons/{id}/film", api.observed("person_films", api.handlePersonFilms))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

// statusWriter captures the final status code for request metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (a *API) observed(route string, handler http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		recorder := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		handler(recorder, r)
		a.Metrics.ObserveRequest(route, recorder.status, time.Since(started))
	})
}
