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

// allGenresLimit bounds the unfiltered genre listing; the genre catalog is
// small and served as a single page.
const allGenresLimit = 50

// GenreService serves genre reads with a read-through cache in front of the
// search backend.
type GenreService struct {
	cache   cache.Store
	storage search.Storage
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// NewGenreService wires the genre read path.
func NewGenreService(store cache.Store, storage search.Storage, logger *slog.Logger, recorder *metrics.Recorder) *GenreService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenreService{
		cache:   store,
		storage: storage,
		logger:  logger.With(slog.String("agent", "genres")),
		metrics: recorder,
	}
}

// GenreByID returns one genre or nil when the id is unknown.
func (s *GenreService) GenreByID(ctx context.Context, id uuid.UUID) (*Genre, error) {
	s.logger.Info("getting genre", slog.String("id", id.String()))

	key := genreKey(id.String())
	if genre, ok := cacheLookup[Genre](ctx, s.cache, s.logger, s.metrics, genrePrefix, key); ok {
		return &genre, nil
	}

	query := search.Query{
		Limit:  1,
		Filter: &search.Filter{Field: "id", Value: id.String()},
	}
	documents, err := s.storage.Get(ctx, search.EntityGenre, query)
	if err != nil {
		return nil, fmt.Errorf("%w: get genre %s: %w", ErrUnavailable, id, err)
	}
	if len(documents) == 0 {
		return nil, nil
	}
	genres, err := decodeDocuments[Genre](documents[:1])
	if err != nil {
		return nil, fmt.Errorf("catalog: decode genre %s: %w", id, err)
	}
	genre := genres[0]

	cacheStore(ctx, s.cache, s.logger, s.metrics, genrePrefix, key, genre)
	return &genre, nil
}

// AllGenres lists the genre catalog under a single fixed cache key. An empty
// backend result is returned uncached, so a not-yet-populated catalog is
// re-queried on every call until documents appear.
func (s *GenreService) AllGenres(ctx context.Context) ([]Genre, error) {
	s.logger.Info("getting all genres")

	if genres, ok := cacheLookup[[]Genre](ctx, s.cache, s.logger, s.metrics, genrePrefix, allGenresKey); ok {
		return genres, nil
	}

	documents, err := s.storage.Get(ctx, search.EntityGenre, search.Query{Limit: allGenresLimit})
	if err != nil {
		return nil, fmt.Errorf("%w: list genres: %w", ErrUnavailable, err)
	}
	genres, err := decodeDocuments[Genre](documents)
	if err != nil {
		return nil, fmt.Errorf("catalog: decode genres: %w", err)
	}

	if len(genres) > 0 {
		cacheStore(ctx, s.cache, s.logger, s.metrics, genrePrefix, allGenresKey, genres)
	}
	return genres, nil
}
