package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/moviehub/catalog/internal/retry"
)

func fastPolicy() retry.Policy {
	return retry.Policy{
		Initial:  time.Millisecond,
		Factor:   2,
		Max:      5 * time.Millisecond,
		Attempts: 2,
	}
}

func TestElasticGetUnwrapsHits(t *testing.T) {
	var capturedPath string
	var capturedBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&capturedBody))
		_, _ = w.Write([]byte(`{"hits":{"hits":[
			{"_source":{"id":"a","title":"First"}},
			{"_source":{"id":"b","title":"Second"}}
		]}}`))
	}))
	defer srv.Close()

	client, err := NewElastic(srv.URL, nil, fastPolicy(), nil, nil)
	require.NoError(t, err)

	documents, err := client.Get(context.Background(), EntityFilm, Query{
		Limit:  10,
		Offset: 20,
		SortBy: "-imdb_rating",
	})
	require.NoError(t, err)
	require.Len(t, documents, 2)
	require.JSONEq(t, `{"id":"a","title":"First"}`, string(documents[0]))

	require.Equal(t, "/movies/_search", capturedPath)
	require.Equal(t, float64(20), capturedBody["from"])
	require.Equal(t, float64(10), capturedBody["size"])
	require.Equal(t, map[string]any{"imdb_rating": "desc"}, capturedBody["sort"])
}

func TestElasticSearchRoutesToCollection(t *testing.T) {
	var capturedPath string
	var capturedBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&capturedBody))
		_, _ = w.Write([]byte(`{"hits":{"hits":[{"_source":{"id":"p"}}]}}`))
	}))
	defer srv.Close()

	client, err := NewElastic(srv.URL, nil, fastPolicy(), nil, nil)
	require.NoError(t, err)

	documents, err := client.Search(context.Background(), EntityPerson, "lucas", 5, 0)
	require.NoError(t, err)
	require.Len(t, documents, 1)

	require.Equal(t, "/personas/_search", capturedPath)
	require.Equal(t, map[string]any{
		"query_string": map[string]any{"query": "lucas"},
	}, capturedBody["query"])
}

func TestElasticEmptyHitsNormalizeToEmptySlice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"hits":{"hits":[]}}`))
	}))
	defer srv.Close()

	client, err := NewElastic(srv.URL, nil, fastPolicy(), nil, nil)
	require.NoError(t, err)

	documents, err := client.Get(context.Background(), EntityGenre, Query{Limit: 10})
	require.NoError(t, err)
	require.NotNil(t, documents)
	require.Empty(t, documents)
}

func TestElasticBadStatusFailsWithoutRetry(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewElastic(srv.URL, nil, fastPolicy(), nil, nil)
	require.NoError(t, err)

	_, err = client.Get(context.Background(), EntityFilm, Query{Limit: 1})
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, 1, calls)
}

type flakyDoer struct {
	failures int
	calls    int
}

func (d *flakyDoer) Do(*http.Request) (*http.Response, error) {
	d.calls++
	if d.calls <= d.failures {
		return nil, &url.Error{Op: "Post", URL: "http://backend", Err: errors.New("connection refused")}
	}
	recorder := httptest.NewRecorder()
	_, _ = recorder.WriteString(`{"hits":{"hits":[{"_source":{"id":"x"}}]}}`)
	return recorder.Result(), nil
}

func TestElasticRetriesTransientFailures(t *testing.T) {
	doer := &flakyDoer{failures: 2}
	client, err := NewElastic("http://backend", doer, fastPolicy(), nil, nil)
	require.NoError(t, err)

	documents, err := client.Get(context.Background(), EntityFilm, Query{Limit: 1})
	require.NoError(t, err)
	require.Len(t, documents, 1)
	require.Equal(t, 3, doer.calls)
}

func TestElasticExhaustsRetryBudget(t *testing.T) {
	doer := &flakyDoer{failures: 10}
	client, err := NewElastic("http://backend", doer, fastPolicy(), nil, nil)
	require.NoError(t, err)

	_, err = client.Get(context.Background(), EntityFilm, Query{Limit: 1})
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, 3, doer.calls)
}

func TestNewElasticRequiresURL(t *testing.T) {
	_, err := NewElastic("  ", nil, fastPolicy(), nil, nil)
	require.Error(t, err)
}
