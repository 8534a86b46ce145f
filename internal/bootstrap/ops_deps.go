package bootstrap

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"ops_server/adapter/out/llm"
	"ops_server/adapter/out/messaging"
	"ops_server/adapter/out/persistence"
	"ops_server/config"
	"ops_server/core/domain"
	"ops_server/core/port/in"
	"ops_server/core/port/out"
	"ops_server/core/service/classification"
	"ops_server/core/service/draft"
	"ops_server/core/service/runbook"
	"ops_server/infra/database"
	"ops_server/pkg/cache"
	"ops_server/pkg/logger"
)

// Dependencies holds every wired component. Redis-backed fields are nil
// when REDIS_URL is not set.
type Dependencies struct {
	Config *config.Config

	DB    *sqlx.DB
	Pool  *pgxpool.Pool
	Redis *redis.Client

	Repo     *persistence.RunbookAdapter
	Cache    *cache.RedisCache
	Producer *messaging.RedisProducer

	Classifier *classification.KeywordEngine
	Runbooks   *runbook.Service
	Drafts     in.DraftService
}

// JobProducer returns the producer as a port, or nil without Redis.
func (d *Dependencies) JobProducer() out.RunbookJobProducer {
	if d.Producer == nil {
		return nil
	}
	return d.Producer
}

// NewDependencies connects storage and builds the services.
func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	deps := &Dependencies{Config: cfg}

	// =========================================================================
	// Storage
	// =========================================================================

	dsn := cfg.DatabaseURL
	if cfg.DBDriver == config.DriverSQLite {
		dsn = cfg.SQLitePath
	}
	db, err := database.NewSQLX(ctx, cfg.DBDriver, dsn)
	if err != nil {
		return nil, nil, err
	}
	cleanups = append(cleanups, func() { db.Close() })
	deps.DB = db

	if cfg.DBDriver == config.DriverSQLite {
		if err := persistence.Migrate(ctx, db); err != nil {
			cleanup()
			return nil, nil, err
		}
		logger.Info("SQLite schema ready at %s", cfg.SQLitePath)
	} else {
		pool, err := database.NewPostgres(ctx, cfg.DatabaseURL, nil)
		if err != nil {
			logger.WithError(err).Warn("Postgres pool unavailable, readiness will omit pool stats")
		} else {
			cleanups = append(cleanups, pool.Close)
			deps.Pool = pool
		}
	}
	deps.Repo = persistence.NewRunbookAdapter(db)

	if cfg.RedisURL != "" {
		rdb, err := database.NewRedis(ctx, cfg.RedisURL, nil)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, running without cache, lock and queue")
		} else {
			deps.Redis = rdb
			deps.Cache = cache.NewRedisCache(rdb)
			deps.Producer = messaging.NewRedisProducer(rdb)
			cleanups = append(cleanups, func() { deps.Cache.Close() })
		}
	}

	// =========================================================================
	// Services
	// =========================================================================

	deps.Classifier = classification.NewKeywordEngine()

	runbookDeps := runbook.Dependencies{
		Templates:   deps.Repo,
		Assignments: deps.Repo,
		Personas:    deps.Repo,
		Tasks:       deps.Repo,
	}
	if deps.Cache != nil {
		runbookDeps.Cache = deps.Cache
		runbookDeps.Locker = deps.Cache
		runbookDeps.Events = deps.Producer
	}
	deps.Runbooks = runbook.NewService(runbookDeps, runbook.Config{
		Platform: domain.Platform(cfg.DefaultPlatform),
		LockTTL:  cfg.RunbookLockTTL,
		CacheTTL: cfg.TemplateCacheTTL,
	})

	generator := llm.NewGenerator(llm.Config{
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.LLMModel,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
		Timeout:     time.Duration(cfg.LLMTimeoutSec) * time.Second,
	}, logger.Component("llm"))
	deps.Drafts = draft.NewService(deps.Classifier, generator)

	logger.WithFields(map[string]any{
		"driver":         cfg.DBDriver,
		"redis":          deps.Redis != nil,
		"matrix_version": deps.Classifier.Version(),
	}).Info("Dependencies initialized")

	return deps, cleanup, nil
}
