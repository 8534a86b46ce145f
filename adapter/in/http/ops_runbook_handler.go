package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"ops_server/core/port/in"
	"ops_server/core/port/out"
	"ops_server/core/service/runbook"
	"ops_server/pkg/apperr"
	"ops_server/pkg/response"
)

type templateCacheInvalidator interface {
	InvalidateTemplateCache(ctx context.Context) error
}

// RunbookHandler handles runbook generation requests
type RunbookHandler struct {
	service  in.RunbookService
	producer out.RunbookJobProducer
}

// NewRunbookHandler creates a new RunbookHandler. producer may be nil, in
// which case async generation is rejected.
func NewRunbookHandler(service in.RunbookService, producer out.RunbookJobProducer) *RunbookHandler {
	return &RunbookHandler{service: service, producer: producer}
}

// Register registers runbook routes
func (h *RunbookHandler) Register(router fiber.Router) {
	runbooks := router.Group("/runbooks")
	runbooks.Post("/generate", h.Generate)
	runbooks.Post("/preview", h.Preview)
	runbooks.Post("/templates/refresh", h.RefreshTemplates)
	runbooks.Get("/:staff_id", h.List)
}

type generateRequest struct {
	in.GenerateRunbookRequest
	Async bool `json:"async"`
}

// Generate replaces the staff's 7-day window, or queues the work when async is set.
func (h *RunbookHandler) Generate(c *fiber.Ctx) error {
	var req generateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if req.Async {
		if h.producer == nil {
			return apperr.BadRequest("async generation is not available")
		}
		if err := runbook.ValidateRequest(&req.GenerateRunbookRequest); err != nil {
			return err
		}
		job := &out.RunbookGenerateJob{
			StaffID:  req.StaffID,
			Date:     req.Date,
			RoleType: req.RoleType,
			Source:   "api",
		}
		if err := h.producer.PublishRunbookGenerate(c.UserContext(), job); err != nil {
			return apperr.ExternalError("redis", err)
		}
		return response.Accepted(c, fiber.Map{
			"queued":    true,
			"staff_id":  req.StaffID,
			"date":      req.Date,
			"queued_at": time.Now().UTC().Format(time.RFC3339),
		})
	}

	result, err := h.service.Generate(c.UserContext(), &req.GenerateRunbookRequest)
	if err != nil {
		return err
	}
	return response.Created(c, result)
}

// Preview runs the expansion without writing.
func (h *RunbookHandler) Preview(c *fiber.Ctx) error {
	var req in.GenerateRunbookRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := h.service.Preview(c.UserContext(), &req)
	if err != nil {
		return err
	}
	return response.OK(c, result)
}

// List returns stored tasks of a staff member between from and to.
func (h *RunbookHandler) List(c *fiber.Ctx) error {
	from := c.Query("from")
	if from == "" {
		from = time.Now().Format("2006-01-02")
	}
	to := c.Query("to")

	tasks, err := h.service.ListTasks(c.UserContext(), c.Params("staff_id"), from, to)
	if err != nil {
		return err
	}
	if to == "" {
		start, _ := time.Parse("2006-01-02", from)
		_, to = runbook.Window(start)
	}
	return response.OKWithMeta(c, tasks, &response.Meta{Total: len(tasks), From: from, To: to})
}

// RefreshTemplates drops the cached template list.
func (h *RunbookHandler) RefreshTemplates(c *fiber.Ctx) error {
	inv, ok := h.service.(templateCacheInvalidator)
	if !ok {
		return response.NoContent(c)
	}
	if err := inv.InvalidateTemplateCache(c.UserContext()); err != nil {
		return apperr.ExternalError("redis", err)
	}
	return response.NoContent(c)
}
