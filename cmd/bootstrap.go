package cmd

import (
	"context"
	"database/sql"
	"log"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/rm-hull/godx"
	"go.uber.org/zap"

	"github.com/rm-hull/fuel-prices-aggregator/internal"
	"github.com/rm-hull/fuel-prices-aggregator/internal/brands"
	"github.com/rm-hull/fuel-prices-aggregator/internal/config"
)

type application struct {
	cfg     *config.Config
	logger  *zap.Logger
	cache   internal.CacheStore
	history internal.PriceHistoryRepository
	service *internal.PriceService
}

// bootstrap initialises shared resources used by both the API server and
// refresh commands: configuration, logging, storage and the price service.
func bootstrap(ctx context.Context, dbPath string, debug bool) (*application, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	godx.GitVersion()
	godx.EnvironmentVars()
	godx.UserInfo()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.LogLevel = "debug"
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "failed to configure logging")
	}
	zap.ReplaceGlobals(logger)

	db, err := internal.Connect(dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize database")
	}

	if err := internal.Migrate("migrations", dbPath); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to migrate SQL")
	}

	cache, err := newCacheStore(ctx, cfg, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	retailers, err := brands.GetRetailersList()
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to load retailers")
	}

	client := internal.NewFeedClient(
		internal.WithUserAgent(cfg.UserAgent),
		internal.WithSourceTimeout(cfg.SourceTimeout),
	)
	history := internal.NewPriceHistoryRepository(db)

	service := internal.NewPriceService(
		internal.NewAggregator(retailers, client, logger),
		cache,
		internal.WithTTL(cfg.CacheTTL),
		internal.WithSchedule(cfg.RefreshSchedule),
		internal.WithHistory(history),
		internal.WithHistoryDays(cfg.HistoryDays),
		internal.WithLogger(logger),
	)

	logger.Info("bootstrapped fuel price service",
		zap.Int("retailers", len(retailers)),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.Duration("cache_ttl", cfg.CacheTTL))

	return &application{
		cfg:     cfg,
		logger:  logger,
		cache:   cache,
		history: history,
		service: service,
	}, nil
}

func newLogger(level string) (*zap.Logger, error) {
	logCfg := zap.NewProductionConfig()

	var err error
	logCfg.Level, err = zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	logCfg.OutputPaths = []string{"stdout"}
	logCfg.ErrorOutputPaths = []string{"stdout"}
	logCfg.Sampling = nil
	return logCfg.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
}

func newCacheStore(ctx context.Context, cfg *config.Config, db *sql.DB) (internal.CacheStore, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		cache, err := internal.NewRedisCacheStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to connect to redis at %s", cfg.RedisAddr)
		}
		return cache, nil
	default:
		return internal.NewSqliteCacheStore(db, nil), nil
	}
}

func (app *application) Close() {
	if err := app.cache.Close(); err != nil {
		app.logger.Error("failed to close cache", zap.Error(err))
	}
	if err := app.history.Close(); err != nil {
		app.logger.Error("failed to close history repository", zap.Error(err))
	}
	_ = app.logger.Sync()
}
