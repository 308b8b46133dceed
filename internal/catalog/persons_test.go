package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/moviehub/catalog/internal/cache"
	"github.com/moviehub/catalog/internal/search"
)

type stubFilmLookup struct {
	films map[string]*Film
	errs  map[string]error
	calls []string
}

func (s *stubFilmLookup) FilmByID(_ context.Context, id uuid.UUID) (*Film, error) {
	key := id.String()
	s.calls = append(s.calls, key)
	if err, ok := s.errs[key]; ok {
		return nil, err
	}
	return s.films[key], nil
}

func TestPersonSearchBypassesCache(t *testing.T) {
	storage := &stubStorage{searchDocuments: rawDocuments(t, Person{ID: "p-1", Name: "George Lucas"})}
	service := NewPersonService(cache.NewMemory(), storage, &stubFilmLookup{}, nil, nil)
	ctx := context.Background()

	persons, err := service.Search(ctx, "lucas", 10, 0)
	require.NoError(t, err)
	require.Len(t, persons, 1)
	require.Equal(t, search.EntityPerson, storage.lastEntity)
	require.Equal(t, "lucas", storage.lastText)

	_, err = service.Search(ctx, "lucas", 10, 0)
	require.NoError(t, err)
	require.Equal(t, 2, storage.searchCalls)
}

func TestPersonByIDCachesHit(t *testing.T) {
	id := uuid.New()
	storage := &stubStorage{getDocuments: rawDocuments(t, Person{
		ID:   id.String(),
		Name: "George Lucas",
		Films: []PersonFilm{
			{ID: uuid.NewString(), Roles: []string{"director"}},
		},
	})}
	service := NewPersonService(cache.NewMemory(), storage, &stubFilmLookup{}, nil, nil)
	ctx := context.Background()

	person, err := service.PersonByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, person)
	require.Equal(t, "George Lucas", person.Name)
	require.Len(t, person.Films, 1)

	again, err := service.PersonByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, person, again)
	require.Equal(t, 1, storage.getCalls, "second read must be served from cache")
}

func TestPersonByIDUnknownReturnsNil(t *testing.T) {
	storage := &stubStorage{}
	service := NewPersonService(cache.NewMemory(), storage, &stubFilmLookup{}, nil, nil)

	person, err := service.PersonByID(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Nil(t, person)
}

func TestPersonFilmsPreservesOrderAndDropsFailures(t *testing.T) {
	personID := uuid.New()
	first := uuid.NewString()
	failed := uuid.NewString()
	missing := uuid.NewString()
	last := uuid.NewString()

	storage := &stubStorage{getDocuments: rawDocuments(t, Person{
		ID:   personID.String(),
		Name: "Prolific",
		Films: []PersonFilm{
			{ID: first, Roles: []string{"actor"}},
			{ID: "not-a-uuid", Roles: []string{"actor"}},
			{ID: failed, Roles: []string{"writer"}},
			{ID: missing, Roles: []string{"director"}},
			{ID: last, Roles: []string{"actor"}},
		},
	})}
	lookup := &stubFilmLookup{
		films: map[string]*Film{
			first: {ID: first, Title: "Alpha"},
			last:  {ID: last, Title: "Omega"},
		},
		errs: map[string]error{failed: errors.New("boom")},
	}
	service := NewPersonService(cache.NewMemory(), storage, lookup, nil, nil)

	films, err := service.PersonFilms(context.Background(), personID)
	require.NoError(t, err)
	require.Len(t, films, 2)
	require.Equal(t, "Alpha", films[0].Title)
	require.Equal(t, "Omega", films[1].Title)

	// The malformed id never reaches the lookup; the other four do, in order.
	require.Equal(t, []string{first, failed, missing, last}, lookup.calls)
}

func TestPersonFilmsUnknownPersonReturnsNil(t *testing.T) {
	storage := &stubStorage{}
	service := NewPersonService(cache.NewMemory(), storage, &stubFilmLookup{}, nil, nil)

	films, err := service.PersonFilms(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Nil(t, films)
}

func TestPersonFilmsBackendErrorSurfaces(t *testing.T) {
	storage := &stubStorage{getErr: errors.New("boom")}
	service := NewPersonService(cache.NewMemory(), storage, &stubFilmLookup{}, nil, nil)

	_, err := service.PersonFilms(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrUnavailable)
}
