package bootstrap

import (
	"context"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"ops_server/adapter/in/http"
	"ops_server/config"
	"ops_server/infra/middleware"
	"ops_server/pkg/logger"
	"ops_server/pkg/metrics"
)

const (
	bodyLimit       = 1 * 1024 * 1024
	draftRateLimit  = 30
	draftRateWindow = time.Minute
)

// NewAPI builds the fiber app. The returned cleanup closes storage and stops
// background middleware.
func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := NewApp(ctx, deps)

	logger.Info("API server initialized successfully")
	return app, func() {
		cancel()
		cleanup()
	}, nil
}

// NewApp registers routes over already built dependencies.
func NewApp(ctx context.Context, deps *Dependencies) *fiber.App {
	cfg := deps.Config

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),

		// go-json: faster drop-in for encoding/json
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit:    bodyLimit,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		ServerHeader: "",
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.MaxBodySize(bodyLimit))
	app.Use(middleware.RequestLogger())
	latency := metrics.NewRegistry(1000)
	app.Use(middleware.Latency(latency))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := allowOrigins != "" && allowOrigins != "*"
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,X-Request-ID",
		ExposeHeaders:    "X-Request-ID,X-RateLimit-Limit,X-RateLimit-Remaining,X-RateLimit-Reset",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	health := http.NewHealthHandler(deps.DB, deps.Redis, deps.Classifier.Version()).WithLatency(latency)
	if deps.Pool != nil {
		health.WithPool(deps.Pool)
	}
	health.Register(app)

	api := app.Group("/api/v1")

	http.NewClassificationHandler(deps.Classifier).Register(api)
	http.NewRunbookHandler(deps.Runbooks, deps.JobProducer()).Register(api)

	// Drafts call the LLM, so they get their own budget.
	draftLimiter := middleware.NewRateLimiter(ctx, draftRateLimit, draftRateWindow)
	http.NewDraftHandler(deps.Drafts).Register(api, draftLimiter.Handler())

	return app
}
