package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"ops_server/pkg/metrics"
)

// Latency records handler duration per matched route.
func Latency(reg *metrics.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		reg.Record(c.Method()+" "+c.Route().Path, time.Since(start))
		return err
	}
}
