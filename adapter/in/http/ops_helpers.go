// Package http exposes the classification, runbook and draft services over fiber.
package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"ops_server/pkg/apperr"
)

// parseBody decodes a JSON body into dest.
func parseBody(c *fiber.Ctx, dest any) error {
	if len(c.Body()) == 0 {
		return apperr.BadRequest("request body is required")
	}
	if err := c.BodyParser(dest); err != nil {
		return apperr.BadRequest("invalid JSON body").WithError(err)
	}
	return nil
}

// requiredQuery returns a trimmed query parameter or MISSING_FIELD.
func requiredQuery(c *fiber.Ctx, name string) (string, error) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return "", apperr.MissingField(name)
	}
	return v, nil
}
