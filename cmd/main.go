package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/moviehub/catalog/internal/auth"
	"github.com/moviehub/catalog/internal/cache"
	"github.com/moviehub/catalog/internal/catalog"
	"github.com/moviehub/catalog/internal/config"
	"github.com/moviehub/catalog/internal/logging"
	"github.com/moviehub/catalog/internal/metrics"
	"github.com/moviehub/catalog/internal/retry"
	"github.com/moviehub/catalog/internal/search"
	"github.com/moviehub/catalog/internal/server"
)

func main() {
	var (
		configFile = flag.String("config", "", "path to server configuration file")
		envPrefix  = flag.String("env-prefix", "CATALOG", "environment variable prefix")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(*envPrefix, *configFile)
	cfg, err := loader.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Server.Logging)
	if err != nil {
		log.Fatalf("failed to configure logger: %v", err)
	}

	cacheLogger := logger.With(slog.String("agent", "cache_factory"))
	store := cache.WithTTL(buildCacheStore(cacheLogger, cfg.Server.Cache), cfg.Server.Cache.TTL())
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Error("cache shutdown failed", slog.Any("error", err))
		}
	}()

	promRegistry := prometheus.NewRegistry()
	metricsRecorder := metrics.NewRecorder(promRegistry)

	policy := retry.Policy{
		Initial:  time.Duration(cfg.Server.Elastic.Retry.InitialMillis) * time.Millisecond,
		Factor:   cfg.Server.Elastic.Retry.Factor,
		Max:      time.Duration(cfg.Server.Elastic.Retry.MaxMillis) * time.Millisecond,
		Attempts: cfg.Server.Elastic.Retry.MaxAttempts,
	}
	storage, err := search.NewElastic(cfg.Server.Elastic.URL, nil, policy, logger, metricsRecorder)
	if err != nil {
		logger.Error("unable to construct search client", slog.Any("error", err))
		os.Exit(1)
	}

	films := catalog.NewFilmService(store, storage, logger, metricsRecorder)
	genres := catalog.NewGenreService(store, storage, logger, metricsRecorder)
	persons := catalog.NewPersonService(store, storage, films, logger, metricsRecorder)

	var keys auth.KeyProvider = auth.StaticKey{}
	if path := strings.TrimSpace(cfg.Server.Auth.PublicKeyFile); path != "" {
		source, err := auth.LoadKeyFile(path)
		if err != nil {
			logger.Error("unable to load validation key", slog.Any("error", err))
			os.Exit(1)
		}
		watcher, err := source.Watch(ctx, logger)
		if err != nil {
			logger.Warn("key rotation watch unavailable", slog.Any("error", err))
		} else {
			defer watcher.Stop()
		}
		keys = source
	} else {
		logger.Warn("no validation key configured, caller tokens will be rejected")
	}

	tokens := auth.NewTokenService(store, nil, keys, auth.TokenServiceConfig{
		BaseURL:  cfg.Server.Auth.URL,
		Login:    cfg.Server.Auth.ServiceLogin,
		Password: cfg.Server.Auth.ServicePassword,
		TokenTTL: cfg.Server.Auth.TokenTTL(),
	}, logger, metricsRecorder)
	users := auth.NewUserService(nil, tokens, cfg.Server.Auth.URL, logger)

	api := &server.API{
		Films:         films,
		Genres:        genres,
		Persons:       persons,
		Identity:      tokens,
		Subscribers:   users,
		PremiumRating: cfg.Server.Auth.PremiumRating,
		Metrics:       metricsRecorder,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsRecorder.Handler())
	mux.Handle("/", server.NewRouter(api))

	srv, err := server.New(cfg, logger, mux)
	if err != nil {
		logger.Error("unable to construct server", slog.Any("error", err))
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated unexpectedly", slog.Any("error", err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}

func buildCacheStore(logger *slog.Logger, cfg config.CacheConfig) cache.Store {
	backend := strings.TrimSpace(strings.ToLower(cfg.Backend))
	switch backend {
	case "", "memory":
		if logger != nil {
			logger.Info("using memory cache", slog.Duration("ttl", cfg.TTL()))
		}
		return cache.NewMemory()
	case "redis":
		redisStore, err := cache.NewRedis(cache.RedisConfig{
			Address:  cfg.Redis.Address,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TLS: cache.RedisTLSConfig{
				Enabled: cfg.Redis.TLS.Enabled,
				CAFile:  cfg.Redis.TLS.CAFile,
			},
		})
		if err != nil {
			if logger != nil {
				logger.Error("redis cache initialization failed", slog.Any("error", err))
				logger.Info("falling back to memory cache")
			}
			return cache.NewMemory()
		}
		if logger != nil {
			logger.Info("using redis cache", slog.String("address", cfg.Redis.Address))
		}
		return redisStore
	default:
		if logger != nil {
			logger.Warn("unsupported cache backend, defaulting to memory", slog.String("backend", cfg.Backend))
		}
		return cache.NewMemory()
	}
}
