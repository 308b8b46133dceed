package catalog

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/moviehub/catalog/internal/cache"
	"github.com/moviehub/catalog/internal/metrics"
)

// cacheLookup reads and deserializes a cached value. Every failure mode —
// store error, absent key, undecodable payload — degrades to a miss so the
// caller falls through to the backend.
func cacheLookup[T any](ctx context.Context, store cache.Store, logger *slog.Logger, recorder *metrics.Recorder, entity, key string) (T, bool) {
	var value T
	payload, ok, err := store.Get(ctx, key)
	if err != nil {
		logger.Error("cache read failed", slog.String("key", key), slog.Any("error", err))
		recorder.ObserveCache(entity, metrics.CacheOperationGet, metrics.CacheError)
		return value, false
	}
	if !ok {
		recorder.ObserveCache(entity, metrics.CacheOperationGet, metrics.CacheMiss)
		return value, false
	}
	if err := json.Unmarshal([]byte(payload), &value); err != nil {
		logger.Error("cache payload undecodable", slog.String("key", key), slog.Any("error", err))
		recorder.ObserveCache(entity, metrics.CacheOperationGet, metrics.CacheError)
		return value, false
	}
	recorder.ObserveCache(entity, metrics.CacheOperationGet, metrics.CacheHit)
	return value, true
}

// cacheStore serializes and writes a value best-effort: failures are logged
// and absorbed, never surfaced to the read path.
func cacheStore[T any](ctx context.Context, store cache.Store, logger *slog.Logger, recorder *metrics.Recorder, entity, key string, value T) {
	payload, err := json.Marshal(value)
	if err != nil {
		logger.Error("cache payload unencodable", slog.String("key", key), slog.Any("error", err))
		recorder.ObserveCache(entity, metrics.CacheOperationSet, metrics.CacheError)
		return
	}
	if err := store.Set(ctx, key, string(payload), 0); err != nil {
		logger.Error("cache write failed", slog.String("key", key), slog.Any("error", err))
		recorder.ObserveCache(entity, metrics.CacheOperationSet, metrics.CacheError)
		return
	}
	recorder.ObserveCache(entity, metrics.CacheOperationSet, metrics.CacheStored)
}

// decodeDocuments deserializes the raw hit bodies returned by the backend.
func decodeDocuments[T any](documents []json.RawMessage) ([]T, error) {
	values := make([]T, 0, len(documents))
	for _, document := range documents {
		var value T
		if err := json.Unmarshal(document, &value); err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}
