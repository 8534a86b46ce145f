package http

import (
	"github.com/gofiber/fiber/v2"

	"ops_server/core/port/in"
	"ops_server/pkg/response"
)

// DraftHandler handles draft composition requests
type DraftHandler struct {
	drafts in.DraftService
}

// NewDraftHandler creates a new DraftHandler
func NewDraftHandler(drafts in.DraftService) *DraftHandler {
	return &DraftHandler{drafts: drafts}
}

// Register registers draft routes. Extra handlers (rate limits) run first.
func (h *DraftHandler) Register(router fiber.Router, guards ...fiber.Handler) {
	handlers := append(guards, h.Compose)
	router.Post("/drafts", handlers...)
}

// Compose generates a persona-voiced post for a topic.
func (h *DraftHandler) Compose(c *fiber.Ctx) error {
	var req in.ComposeDraftRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	draft, err := h.drafts.Compose(c.UserContext(), &req)
	if err != nil {
		return err
	}
	return response.OK(c, draft)
}
