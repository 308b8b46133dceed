package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/moviehub/catalog/internal/metrics"
	"github.com/moviehub/catalog/internal/retry"
)

// httpDoer lets tests substitute the HTTP client.
type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Elastic executes queries against the document backend's search endpoint,
// retrying transient connection failures through the backoff executor.
type Elastic struct {
	baseURL string
	client  httpDoer
	policy  retry.Policy
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// NewElastic wires the search client with its long-lived HTTP handle. The
// client is constructed once at startup and shared across requests.
func NewElastic(baseURL string, client httpDoer, policy retry.Policy, logger *slog.Logger, recorder *metrics.Recorder) (*Elastic, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("search: backend url required")
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Elastic{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		policy:  policy,
		logger:  logger.With(slog.String("agent", "search")),
		metrics: recorder,
	}, nil
}

// hitEnvelope mirrors the backend's search response; only the document
// sources are of interest.
type hitEnvelope struct {
	Hits struct {
		Hits []struct {
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Get runs a filtered, paginated read against the entity's collection.
func (e *Elastic) Get(ctx context.Context, entity Entity, query Query) ([]json.RawMessage, error) {
	e.logger.Debug("getting documents",
		slog.String("entity", string(entity)),
		slog.Int("limit", query.Limit),
		slog.Int("offset", query.Offset))
	return e.request(ctx, entity, buildGetBody(query))
}

// Search runs a free-text query against the entity's collection.
func (e *Elastic) Search(ctx context.Context, entity Entity, text string, limit, offset int) ([]json.RawMessage, error) {
	e.logger.Debug("searching documents",
		slog.String("entity", string(entity)),
		slog.String("query", text))
	return e.request(ctx, entity, buildSearchBody(text, limit, offset))
}

func (e *Elastic) request(ctx context.Context, entity Entity, body map[string]any) ([]json.RawMessage, error) {
	collection, err := entity.Collection()
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("search: encode query body: %w", err)
	}
	endpoint := fmt.Sprintf("%s/%s/_search", e.baseURL, collection)

	started := time.Now()
	envelope, err := retry.Do(ctx, e.logger, e.policy, isTransient, func() (hitEnvelope, error) {
		return e.execute(ctx, endpoint, payload)
	})
	if err != nil {
		e.observe(collection, "error", started)
		e.logger.Error("search backend request failed",
			slog.String("collection", collection),
			slog.Any("error", err))
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	e.observe(collection, "ok", started)

	documents := make([]json.RawMessage, 0, len(envelope.Hits.Hits))
	for _, hit := range envelope.Hits.Hits {
		documents = append(documents, hit.Source)
	}
	return documents, nil
}

func (e *Elastic) execute(ctx context.Context, endpoint string, payload []byte) (hitEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return hitEnvelope{}, fmt.Errorf("search: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return hitEnvelope{}, fmt.Errorf("search: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return hitEnvelope{}, fmt.Errorf("search: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return hitEnvelope{}, fmt.Errorf("search: backend status %d", resp.StatusCode)
	}

	var envelope hitEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return hitEnvelope{}, fmt.Errorf("search: decode response: %w", err)
	}
	return envelope, nil
}

func (e *Elastic) observe(collection, result string, started time.Time) {
	if e.metrics != nil {
		e.metrics.ObserveSearch(collection, result, time.Since(started))
	}
}

// isTransient classifies connection-level failures as retryable; protocol
// errors (bad status, undecodable body) propagate immediately.
func isTransient(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
