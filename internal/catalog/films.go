package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/moviehub/catalog/internal/cache"
	"github.com/moviehub/catalog/internal/metrics"
	"github.com/moviehub/catalog/internal/search"
)

const filmRatingSort = "-imdb_rating"

// FilmService serves film reads with a read-through cache in front of the
// search backend.
type FilmService struct {
	cache   cache.Store
	storage search.Storage
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// NewFilmService wires the film read path.
func NewFilmService(store cache.Store, storage search.Storage, logger *slog.Logger, recorder *metrics.Recorder) *FilmService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FilmService{
		cache:   store,
		storage: storage,
		logger:  logger.With(slog.String("agent", "films")),
		metrics: recorder,
	}
}

// Films lists films sorted by rating descending, optionally narrowed to one
// genre. genreID empty means unfiltered. Results are cached per
// (genre, limit, offset); an empty result is returned as-is and not cached.
func (s *FilmService) Films(ctx context.Context, genreID string, limit, offset int) ([]Film, error) {
	s.logger.Info("getting films",
		slog.String("genre", genreID),
		slog.Int("limit", limit),
		slog.Int("offset", offset))

	key := filmListKey(genreID, limit, offset)
	if films, ok := cacheLookup[[]Film](ctx, s.cache, s.logger, s.metrics, filmPrefix, key); ok {
		return films, nil
	}

	query := search.Query{Limit: limit, Offset: offset, SortBy: filmRatingSort}
	if genreID != "" {
		query.Filter = &search.Filter{Field: "genres__id", Value: genreID}
	}
	documents, err := s.storage.Get(ctx, search.EntityFilm, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list films: %w", ErrUnavailable, err)
	}
	films, err := decodeDocuments[Film](documents)
	if err != nil {
		return nil, fmt.Errorf("catalog: decode films: %w", err)
	}

	if len(films) > 0 {
		cacheStore(ctx, s.cache, s.logger, s.metrics, filmPrefix, key, films)
	}
	return films, nil
}

// FilmsByQuery runs a free-text film search. Search results are volatile and
// deliberately bypass the cache.
func (s *FilmService) FilmsByQuery(ctx context.Context, text string, limit, offset int) ([]Film, error) {
	s.logger.Info("searching films",
		slog.String("query", text),
		slog.Int("limit", limit),
		slog.Int("offset", offset))

	documents, err := s.storage.Search(ctx, search.EntityFilm, text, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: search films: %w", ErrUnavailable, err)
	}
	films, err := decodeDocuments[Film](documents)
	if err != nil {
		return nil, fmt.Errorf("catalog: decode films: %w", err)
	}
	return films, nil
}

// FilmByID returns one film or nil when the id is unknown.
func (s *FilmService) FilmByID(ctx context.Context, id uuid.UUID) (*Film, error) {
	s.logger.Info("getting film", slog.String("id", id.String()))

	key := filmKey(id.String())
	if film, ok := cacheLookup[Film](ctx, s.cache, s.logger, s.metrics, filmPrefix, key); ok {
		return &film, nil
	}

	query := search.Query{
		Limit:  1,
		Filter: &search.Filter{Field: "id", Value: id.String()},
	}
	documents, err := s.storage.Get(ctx, search.EntityFilm, query)
	if err != nil {
		return nil, fmt.Errorf("%w: get film %s: %w", ErrUnavailable, id, err)
	}
	if len(documents) == 0 {
		return nil, nil
	}
	films, err := decodeDocuments[Film](documents[:1])
	if err != nil {
		return nil, fmt.Errorf("catalog: decode film %s: %w", id, err)
	}
	film := films[0]

	cacheStore(ctx, s.cache, s.logger, s.metrics, filmPrefix, key, film)
	return &film, nil
}
