package main

import (
	"context"
	"net/http"
	"time"

	"exposureshield/internal/challenge"
	"exposureshield/internal/config"
	"exposureshield/internal/exposure"
	"exposureshield/internal/ratelimit"
	"exposureshield/pkg/breach/dataset"
	"exposureshield/pkg/breach/hibp"
	"exposureshield/pkg/breach/pwnedpasswords"
	"exposureshield/pkg/cache"
	"exposureshield/pkg/cache/memory"
	"exposureshield/pkg/cache/rediscache"
	"exposureshield/pkg/logger"
	"exposureshield/pkg/storage"
	"exposureshield/pkg/storage/file"
	"exposureshield/pkg/storage/postgres"
	"exposureshield/pkg/turnstile"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const replayShards = 32

// getPostgres creates a PostgreSQL client using configuration values and returns it
// along with a cleanup function to close the connection pool.
func getPostgres(ctx context.Context, cfg *config.Config) (*postgres.Store, func()) {
	pgsql, err := postgres.New(ctx, postgres.Options{
		Username:           cfg.Database.Username,
		Password:           cfg.Database.Password,
		Host:               cfg.Database.Host,
		Port:               cfg.Database.Port,
		Database:           cfg.Database.DatabaseName,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime:    cfg.Database.ConnMaxIdleTime,
		MaxOpenConnections: cfg.Database.MaxOpenConnections,
		MaxIdleConnections: cfg.Database.MaxIdleConnections,
		SslMode:            cfg.Database.SslMode,
	})
	if err != nil {
		logger.Fatal(ctx, "could not create postgres storage", zap.Error(err))
	}

	return pgsql, func() {
		logger.Info(ctx, "closing postgres client...")
		if err = pgsql.Close(); err != nil {
			logger.Warn(ctx, "could not close postgres connection", zap.Error(err))
		}
	}
}

// getStorage opens the configured storage backend. The returned pool is only
// set for postgres, which is the only backend able to run job workers.
func getStorage(ctx context.Context, cfg *config.Config) (storage.Storage, *pgxpool.Pool, func()) {
	if cfg.Storage.Backend == config.BackendPostgres {
		pgsql, closeFn := getPostgres(ctx, cfg)

		return pgsql, pgsql.Pool, closeFn
	}

	store, err := file.New(cfg.Storage.Dir)
	if err != nil {
		logger.Fatal(ctx, "could not create file storage", zap.Error(err))
	}
	logger.Info(ctx, "using file storage", zap.String("dir", cfg.Storage.Dir))

	return store, nil, func() {}
}

// getRedis dials Redis when a component is configured to use it. It returns a
// nil client otherwise.
func getRedis(ctx context.Context, cfg *config.Config) (redis.UniversalClient, func()) {
	if !cfg.UsesRedis() {
		return nil, func() {}
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Fatal(ctx, "could not parse redis url", zap.Error(err))
	}
	opts.PoolSize = cfg.Redis.PoolSize
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Fatal(ctx, "could not connect to redis", zap.Error(err))
	}

	return client, func() {
		logger.Info(ctx, "closing redis client...")
		if err := client.Close(); err != nil {
			logger.Warn(ctx, "could not close redis connection", zap.Error(err))
		}
	}
}

func newCache(cfg *config.Config, redisClient redis.UniversalClient) cache.Store {
	if cfg.Cache.Backend == config.BackendRedis {
		return rediscache.New(redisClient, cfg.Redis.KeyPrefix+"cache:")
	}

	return memory.New(memory.Options{MaxEntriesPerShard: cfg.Cache.MaxEntriesPerShard})
}

func newLimiter(cfg *config.Config, redisClient redis.UniversalClient) *ratelimit.Limiter {
	var store ratelimit.Store = ratelimit.NewMemoryStore()
	if cfg.RateLimit.Backend == config.BackendRedis {
		store = ratelimit.NewRedisStore(redisClient, cfg.Redis.KeyPrefix+"ratelimit:")
	}

	return ratelimit.New(store, ratelimit.NewOptions(cfg))
}

// newReplayStore keeps used challenge signatures apart from the lookup cache,
// so scan traffic cannot evict them. The memory variant never evicts live
// entries and refuses new tokens once full.
func newReplayStore(cfg *config.Config, redisClient redis.UniversalClient) cache.Store {
	if cfg.Cache.Backend == config.BackendRedis {
		return rediscache.New(redisClient, cfg.Redis.KeyPrefix+"replay:")
	}

	return memory.New(memory.Options{
		Shards:             replayShards,
		MaxEntriesPerShard: (cfg.Challenge.ReplayMaxEntries + replayShards - 1) / replayShards,
		NoEviction:         true,
	})
}

func newChallengeCodec(ctx context.Context, cfg *config.Config, redisClient redis.UniversalClient) *challenge.Codec {
	opts := challenge.NewOptions(cfg)
	if cfg.Challenge.ReplayGuard {
		opts.Replay = newReplayStore(cfg, redisClient)
	}

	codec, err := challenge.New(opts)
	if err != nil {
		logger.Fatal(ctx, "could not create challenge codec", zap.Error(err))
	}

	return codec
}

// newTurnstile returns a nil Verifier when Turnstile is disabled.
func newTurnstile(cfg *config.Config) turnstile.Verifier {
	if !cfg.Turnstile.Enabled {
		return nil
	}

	return turnstile.New(
		&http.Client{Timeout: cfg.Turnstile.Timeout},
		cfg.Turnstile.SecretKey,
		cfg.Turnstile.VerifyURL,
	)
}

// newAggregator builds the exposure aggregator from every enabled source. A
// disabled source is left nil and reported as skipped.
func newAggregator(ctx context.Context, cfg *config.Config, store cache.Store) exposure.Aggregator {
	var sources exposure.Sources

	if cfg.PwnedPasswords.Enabled {
		sources.Password = pwnedpasswords.New(
			&http.Client{Timeout: cfg.PwnedPasswords.Timeout},
			store,
			pwnedpasswords.Options{
				BaseURL:   cfg.PwnedPasswords.BaseURL,
				CacheTTL:  cfg.PwnedPasswords.CacheTTL,
				UserAgent: cfg.HIBP.UserAgent,
			},
		)
	}

	ds, err := dataset.Load(cfg.Dataset.Path)
	if err != nil {
		logger.Fatal(ctx, "could not load breach dataset", zap.Error(err), zap.String("path", cfg.Dataset.Path))
	}
	logger.Info(ctx, "breach dataset loaded", zap.Int("entries", ds.Len()))
	sources.Dataset = ds

	if cfg.HIBP.Enabled {
		sources.Directory = hibp.New(
			&http.Client{Timeout: cfg.HIBP.Timeout},
			store,
			hibp.Options{
				BaseURL:   cfg.HIBP.BaseURL,
				APIKey:    cfg.HIBP.APIKey,
				UserAgent: cfg.HIBP.UserAgent,
				Retry: hibp.RetryPolicy{
					MaxAttempts:       cfg.HIBP.MaxAttempts,
					DefaultRetryAfter: cfg.HIBP.DefaultRetryAfter,
					MaxBackoff:        cfg.HIBP.MaxBackoff,
				},
				CacheTTL: cfg.HIBP.CacheTTL,
			},
		)
	}

	return exposure.New(sources)
}
