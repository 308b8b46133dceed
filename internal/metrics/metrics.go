package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CacheOperation identifies the cache method being instrumented.
type CacheOperation string

const (
	// CacheOperationGet records cache read calls.
	CacheOperationGet CacheOperation = "get"
	// CacheOperationSet records cache write attempts.
	CacheOperationSet CacheOperation = "set"
)

// CacheOutcome captures the result of a cache operation.
type CacheOutcome string

const (
	// CacheHit indicates the read returned a cached payload.
	CacheHit CacheOutcome = "hit"
	// CacheMiss indicates no cached payload was present.
	CacheMiss CacheOutcome = "miss"
	// CacheStored indicates the payload was persisted.
	CacheStored CacheOutcome = "stored"
	// CacheError indicates the operation failed.
	CacheError CacheOutcome = "error"
)

// TokenPath names the step of the credential ladder that produced a service token.
type TokenPath string

const (
	// TokenPathCached means the cached access token was still valid.
	TokenPathCached TokenPath = "cached"
	// TokenPathRefresh means the refresh endpoint minted the returned pair.
	TokenPathRefresh TokenPath = "refresh"
	// TokenPathLogin means a full login minted the returned pair.
	TokenPathLogin TokenPath = "login"
)

// Recorder publishes Prometheus metrics for catalog activity.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	cacheOperations *prometheus.CounterVec

	searchRequests *prometheus.CounterVec
	searchLatency  *prometheus.HistogramVec

	tokenAcquisitions *prometheus.CounterVec
}

// NewRecorder constructs a Prometheus-backed Recorder. When reg is nil a dedicated
// registry is created so multiple recorders can coexist without conflicting with
// the global default registerer.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total API requests served.",
	}, []string{"route", "status_code"})

	httpLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "catalog",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for completed API requests.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"route"})

	cacheOperations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Subsystem: "cache",
		Name:      "operations_total",
		Help:      "Cache store operations executed by the read path.",
	}, []string{"entity", "operation", "result"})

	searchRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Subsystem: "search",
		Name:      "requests_total",
		Help:      "Search backend requests, counted after retries resolve.",
	}, []string{"collection", "result"})

	searchLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "catalog",
		Subsystem: "search",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for search backend requests.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"collection"})

	tokenAcquisitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Subsystem: "token",
		Name:      "acquisitions_total",
		Help:      "Service token acquisitions by credential-ladder step.",
	}, []string{"path", "result"})

	reg.MustRegister(httpRequests, httpLatency, cacheOperations, searchRequests, searchLatency, tokenAcquisitions)

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	return &Recorder{
		gatherer:          reg,
		handler:           handler,
		httpRequests:      httpRequests,
		httpLatency:       httpLatency,
		cacheOperations:   cacheOperations,
		searchRequests:    searchRequests,
		searchLatency:     searchLatency,
		tokenAcquisitions: tokenAcquisitions,
	}
}

// Handler exposes the Prometheus HTTP handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Gatherer returns the underlying Prometheus gatherer for tests and advanced
// integrations.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

// ObserveRequest records the status and latency for a completed API request.
func (r *Recorder) ObserveRequest(route string, statusCode int, duration time.Duration) {
	if r == nil {
		return
	}
	routeLabel := normalizeLabel(route)
	statusLabel := strconv.Itoa(statusCode)
	if statusCode <= 0 {
		statusLabel = "unknown"
	}
	r.httpRequests.WithLabelValues(routeLabel, statusLabel).Inc()
	r.httpLatency.WithLabelValues(routeLabel).Observe(duration.Seconds())
}

// ObserveCache records the result of a cache operation for one entity kind.
func (r *Recorder) ObserveCache(entity string, operation CacheOperation, result CacheOutcome) {
	if r == nil {
		return
	}
	opLabel := string(operation)
	if opLabel == "" {
		opLabel = string(CacheOperationGet)
	}
	r.cacheOperations.WithLabelValues(normalizeLabel(entity), opLabel, normalizeLabel(string(result))).Inc()
}

// ObserveSearch records one resolved search backend request.
func (r *Recorder) ObserveSearch(collection, result string, duration time.Duration) {
	if r == nil {
		return
	}
	collectionLabel := normalizeLabel(collection)
	r.searchRequests.WithLabelValues(collectionLabel, normalizeLabel(result)).Inc()
	r.searchLatency.WithLabelValues(collectionLabel).Observe(duration.Seconds())
}

// ObserveToken records one service token acquisition.
func (r *Recorder) ObserveToken(path TokenPath, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.tokenAcquisitions.WithLabelValues(normalizeLabel(string(path)), result).Inc()
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
