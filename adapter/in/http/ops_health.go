package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"ops_server/infra/database"
	"ops_server/pkg/metrics"
)

type HealthHandler struct {
	db      *sqlx.DB
	redis   *redis.Client
	pool    *pgxpool.Pool
	latency *metrics.Registry
	version string
}

// NewHealthHandler creates a health handler. db and rdb may be nil.
func NewHealthHandler(db *sqlx.DB, rdb *redis.Client, matrixVersion string) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb, version: matrixVersion}
}

// WithLatency adds per-route latency percentiles to /ready.
func (h *HealthHandler) WithLatency(reg *metrics.Registry) *HealthHandler {
	h.latency = reg
	return h
}

// WithPool adds postgres pool statistics to /ready.
func (h *HealthHandler) WithPool(pool *pgxpool.Pool) *HealthHandler {
	h.pool = pool
	return h
}

func (h *HealthHandler) Register(app *fiber.App) {
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":         "ok",
		"matrix_version": h.version,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			checks["database"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks["database"] = "healthy"
		}
	} else {
		checks["database"] = "not configured"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks["redis"] = "healthy"
		}
	} else {
		checks["redis"] = "not configured"
	}

	status := "ready"
	statusCode := fiber.StatusOK
	if !allHealthy {
		status = "not ready"
		statusCode = fiber.StatusServiceUnavailable
	}

	body := fiber.Map{
		"status": status,
		"checks": checks,
	}
	if h.pool != nil {
		body["pool"] = database.GetPoolStats(h.pool)
	}
	if h.latency != nil {
		routes := make(map[string]any)
		for name, stats := range h.latency.Snapshot() {
			routes[name] = stats.ToMap()
		}
		body["latency"] = routes
	}
	return c.Status(statusCode).JSON(body)
}
