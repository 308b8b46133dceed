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

// FilmLookup is the slice of the film service the person service needs for
// its person-to-films fan-out. Injected at construction so the collaborator
// shares the film cache instead of being rebuilt per call.
type FilmLookup interface {
	FilmByID(ctx context.Context, id uuid.UUID) (*Film, error)
}

// PersonService serves person reads with a read-through cache in front of the
// search backend, plus the person-to-films composition.
type PersonService struct {
	cache   cache.Store
	storage search.Storage
	films   FilmLookup
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// NewPersonService wires the person read path with its film collaborator.
func NewPersonService(store cache.Store, storage search.Storage, films FilmLookup, logger *slog.Logger, recorder *metrics.Recorder) *PersonService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersonService{
		cache:   store,
		storage: storage,
		films:   films,
		logger:  logger.With(slog.String("agent", "persons")),
		metrics: recorder,
	}
}

// Search runs a free-text person search. Search results are volatile and
// deliberately bypass the cache.
func (s *PersonService) Search(ctx context.Context, text string, limit, offset int) ([]Person, error) {
	s.logger.Info("searching persons",
		slog.String("query", text),
		slog.Int("limit", limit),
		slog.Int("offset", offset))

	documents, err := s.storage.Search(ctx, search.EntityPerson, text, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: search persons: %w", ErrUnavailable, err)
	}
	persons, err := decodeDocuments[Person](documents)
	if err != nil {
		return nil, fmt.Errorf("catalog: decode persons: %w", err)
	}
	return persons, nil
}

// PersonByID returns one person or nil when the id is unknown.
func (s *PersonService) PersonByID(ctx context.Context, id uuid.UUID) (*Person, error) {
	s.logger.Info("getting person", slog.String("id", id.String()))
	return s.resolvePerson(ctx, id)
}

// PersonFilms resolves the person and then looks up each associated film
// independently, preserving the association order. A failed or missing film
// lookup is logged and dropped; the remaining films are still returned. A nil
// result means the person itself is unknown.
func (s *PersonService) PersonFilms(ctx context.Context, id uuid.UUID) ([]Film, error) {
	s.logger.Info("getting person films", slog.String("id", id.String()))

	person, err := s.resolvePerson(ctx, id)
	if err != nil {
		return nil, err
	}
	if person == nil {
		return nil, nil
	}

	films := make([]Film, 0, len(person.Films))
	for _, association := range person.Films {
		filmID, err := uuid.Parse(association.ID)
		if err != nil {
			s.logger.Error("person references malformed film id",
				slog.String("person", person.ID),
				slog.String("film", association.ID))
			continue
		}
		film, err := s.films.FilmByID(ctx, filmID)
		if err != nil {
			s.logger.Error("film lookup failed during fan-out",
				slog.String("person", person.ID),
				slog.String("film", association.ID),
				slog.Any("error", err))
			continue
		}
		if film == nil {
			s.logger.Warn("person references unknown film",
				slog.String("person", person.ID),
				slog.String("film", association.ID))
			continue
		}
		films = append(films, *film)
	}
	return films, nil
}

func (s *PersonService) resolvePerson(ctx context.Context, id uuid.UUID) (*Person, error) {
	key := personKey(id.String())
	if person, ok := cacheLookup[Person](ctx, s.cache, s.logger, s.metrics, personPrefix, key); ok {
		return &person, nil
	}

	query := search.Query{
		Limit:  1,
		Filter: &search.Filter{Field: "id", Value: id.String()},
	}
	documents, err := s.storage.Get(ctx, search.EntityPerson, query)
	if err != nil {
		return nil, fmt.Errorf("%w: get person %s: %w", ErrUnavailable, id, err)
	}
	if len(documents) == 0 {
		return nil, nil
	}
	persons, err := decodeDocuments[Person](documents[:1])
	if err != nil {
		return nil, fmt.Errorf("catalog: decode person %s: %w", id, err)
	}
	person := persons[0]

	cacheStore(ctx, s.cache, s.logger, s.metrics, personPrefix, key, person)
	return &person, nil
}
