package runbook

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"ops_server/core/domain"
	"ops_server/core/port/in"
	"ops_server/core/port/out"
	"ops_server/pkg/apperr"
	"ops_server/pkg/logger"
)

// Config tunes the runbook service.
type Config struct {
	Platform domain.Platform
	LockTTL  time.Duration
	CacheTTL time.Duration
}

// Dependencies are the ports the service talks to. Cache, Locker and Events are optional.
type Dependencies struct {
	Templates   out.TemplateRepository
	Assignments out.AssignmentRepository
	Personas    out.PersonaRepository
	Tasks       out.TaskRepository

	Cache    out.TemplateCache
	Locker   out.RunbookLocker
	Events   out.RunbookEventPublisher
	Expander *Expander
}

// Service implements in.RunbookService
type Service struct {
	templates   out.TemplateRepository
	assignments out.AssignmentRepository
	personas    out.PersonaRepository
	tasks       out.TaskRepository
	cache       out.TemplateCache
	locker      out.RunbookLocker
	events      out.RunbookEventPublisher
	expander    *Expander
	cfg         Config

	// collapses concurrent requests for the same staff and window
	inflight singleflight.Group
}

// NewService creates a new RunbookService
func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.Platform == "" {
		cfg.Platform = domain.PlatformThreads
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Minute
	}
	expander := deps.Expander
	if expander == nil {
		expander = NewExpander(cfg.Platform, WithLogger(logger.Component("runbook")))
	}
	return &Service{
		templates:   deps.Templates,
		assignments: deps.Assignments,
		personas:    deps.Personas,
		tasks:       deps.Tasks,
		cache:       deps.Cache,
		locker:      deps.Locker,
		events:      deps.Events,
		expander:    expander,
		cfg:         cfg,
	}
}

var _ in.RunbookService = (*Service)(nil)

// =============================================================================
// Generation
// =============================================================================

type window struct {
	staffID uuid.UUID
	start   time.Time
	from    string
	to      string
}

func (s *Service) Generate(ctx context.Context, req *in.GenerateRunbookRequest) (*in.RunbookResult, error) {
	w, err := parseRequest(req)
	if err != nil {
		return nil, err
	}

	key := w.staffID.String() + "|" + w.from
	v, err, shared := s.inflight.Do(key, func() (interface{}, error) {
		return s.generate(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.WithField("staff_id", w.staffID.String()).Debug("runbook generation shared with concurrent caller")
	}
	return v.(*in.RunbookResult), nil
}

func (s *Service) generate(ctx context.Context, w window) (*in.RunbookResult, error) {
	start := time.Now()
	log := logger.WithFields(map[string]any{
		"staff_id": w.staffID.String(),
		"from":     w.from,
		"to":       w.to,
	})

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, lockKey(w.staffID), s.cfg.LockTTL)
		switch {
		case errors.Is(err, out.ErrLockHeld):
			return nil, apperr.Conflict("runbook generation already in progress for this staff member").
				WithDetail("staff_id", w.staffID.String())
		case err != nil:
			log.WithError(err).Warn("runbook lock unavailable, continuing without it")
		default:
			defer release()
		}
	}

	tasks, err := s.plan(ctx, w)
	if err != nil {
		return nil, err
	}

	if err := s.tasks.ReplaceWindow(ctx, w.staffID, w.from, w.to, tasks); err != nil {
		return nil, apperr.DatabaseError("replace runbook window", err)
	}

	if s.events != nil {
		event := &out.RunbookGeneratedEvent{
			StaffID:     w.staffID.String(),
			From:        w.from,
			To:          w.to,
			Generated:   len(tasks),
			GeneratedAt: time.Now().UTC(),
		}
		if err := s.events.PublishRunbookGenerated(ctx, event); err != nil {
			log.WithError(err).Warn("failed to publish runbook event")
		}
	}

	log.WithDuration(time.Since(start)).Info("runbook generated: %d tasks", len(tasks))
	return newResult(w, tasks, false), nil
}

func (s *Service) Preview(ctx context.Context, req *in.GenerateRunbookRequest) (*in.RunbookResult, error) {
	w, err := parseRequest(req)
	if err != nil {
		return nil, err
	}
	tasks, err := s.plan(ctx, w)
	if err != nil {
		return nil, err
	}
	return newResult(w, tasks, true), nil
}

// plan loads inputs and expands them without writing anything.
func (s *Service) plan(ctx context.Context, w window) ([]domain.TaskInstance, error) {
	assignments, err := s.assignments.ListAssignments(ctx, w.staffID)
	if err != nil {
		return nil, apperr.DatabaseError("list persona assignments", err)
	}
	idx := ResolveAssignments(assignments)

	var system *uuid.UUID
	if idx.Empty() {
		system, err = s.personas.AnyPersona(ctx)
		if err != nil {
			return nil, apperr.DatabaseError("load fallback persona", err)
		}
		if system == nil {
			return nil, apperr.NoPersona(w.staffID.String(), ErrNoPersona)
		}
	}

	templates, err := s.activeTemplates(ctx)
	if err != nil {
		return nil, err
	}
	prepared, err := PrepareTemplates(templates)
	if err != nil {
		var tplErr *TemplateError
		if errors.As(err, &tplErr) {
			return nil, apperr.InvalidTemplate(tplErr.TemplateID.String(), err)
		}
		return nil, apperr.InvalidTemplate("", err)
	}

	tasks, err := s.expander.Expand(ExpandInput{
		StaffID:       w.staffID,
		Start:         w.start,
		Templates:     prepared,
		Assignments:   idx,
		SystemPersona: system,
	})
	if err != nil {
		if errors.Is(err, ErrNoPersona) {
			return nil, apperr.NoPersona(w.staffID.String(), err)
		}
		return nil, apperr.InternalWithError(err)
	}
	return tasks, nil
}

func (s *Service) activeTemplates(ctx context.Context) ([]domain.TaskTemplate, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.GetTemplates(ctx)
		if err != nil {
			logger.WithError(err).Warn("template cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	templates, err := s.templates.ListActiveTemplates(ctx)
	if err != nil {
		return nil, apperr.DatabaseError("list task templates", err)
	}

	if s.cache != nil && s.cfg.CacheTTL > 0 {
		if err := s.cache.SetTemplates(ctx, templates, s.cfg.CacheTTL); err != nil {
			logger.WithError(err).Warn("template cache write failed")
		}
	}
	return templates, nil
}

// InvalidateTemplateCache drops cached templates so the next run reads storage.
func (s *Service) InvalidateTemplateCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.InvalidateTemplates(ctx)
}

// =============================================================================
// Read back
// =============================================================================

func (s *Service) ListTasks(ctx context.Context, staffID, from, to string) ([]domain.TaskInstance, error) {
	id, err := parseStaffID(staffID)
	if err != nil {
		return nil, err
	}
	if from == "" {
		return nil, apperr.MissingField("from")
	}
	start, err := time.Parse(domain.DateLayout, from)
	if err != nil {
		return nil, apperr.InvalidInput("from", "expected YYYY-MM-DD")
	}
	if to == "" {
		_, to = Window(start)
	}
	end, err := time.Parse(domain.DateLayout, to)
	if err != nil {
		return nil, apperr.InvalidInput("to", "expected YYYY-MM-DD")
	}
	if end.Before(start) {
		return nil, apperr.InvalidInput("to", "must not be before from")
	}

	tasks, err := s.tasks.ListWindow(ctx, id, from, to)
	if err != nil {
		return nil, apperr.DatabaseError("list runbook tasks", err)
	}
	return tasks, nil
}

// =============================================================================
// Helpers
// =============================================================================

// ValidateRequest checks a generation request without running it.
func ValidateRequest(req *in.GenerateRunbookRequest) error {
	_, err := parseRequest(req)
	return err
}

func parseRequest(req *in.GenerateRunbookRequest) (window, error) {
	if req == nil {
		return window{}, apperr.BadRequest("request body is required")
	}
	id, err := parseStaffID(req.StaffID)
	if err != nil {
		return window{}, err
	}
	if strings.TrimSpace(req.Date) == "" {
		return window{}, apperr.MissingField("date")
	}
	start, err := time.Parse(domain.DateLayout, strings.TrimSpace(req.Date))
	if err != nil {
		return window{}, apperr.InvalidInput("date", "expected YYYY-MM-DD")
	}
	switch domain.RoleType(strings.TrimSpace(req.RoleType)) {
	case "", domain.RoleOperator:
	default:
		return window{}, apperr.InvalidInput("role_type", "unsupported role type")
	}

	from, to := Window(start)
	return window{staffID: id, start: start, from: from, to: to}, nil
}

func parseStaffID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, apperr.MissingField("staff_id")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.InvalidInput("staff_id", "must be a UUID")
	}
	return id, nil
}

func lockKey(staffID uuid.UUID) string {
	return "runbook:lock:" + staffID.String()
}

func newResult(w window, tasks []domain.TaskInstance, dryRun bool) *in.RunbookResult {
	return &in.RunbookResult{
		StaffID:   w.staffID.String(),
		From:      w.from,
		To:        w.to,
		Generated: len(tasks),
		Tasks:     tasks,
		DryRun:    dryRun,
	}
}
