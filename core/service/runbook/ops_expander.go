package runbook

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ops_server/core/domain"
)

// =============================================================================
// Prepared templates
// =============================================================================

// PreparedTemplate is a template with its derived fields decoded once.
type PreparedTemplate struct {
	domain.TaskTemplate
	TimeBlock domain.TimeBlock
	Schedule  Schedule
}

// TemplateError identifies the template that failed to prepare.
type TemplateError struct {
	TemplateID uuid.UUID
	Err        error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %s: %v", e.TemplateID, e.Err)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

// PrepareTemplates drops disabled templates and decodes the rest.
// A single malformed template fails the whole batch.
func PrepareTemplates(templates []domain.TaskTemplate) ([]PreparedTemplate, error) {
	prepared := make([]PreparedTemplate, 0, len(templates))
	for _, t := range templates {
		if !t.Enabled {
			continue
		}
		t.TimeSlot = normalizeSlot(t.TimeSlot)
		block, err := DeriveTimeBlock(t.TimeSlot)
		if err != nil {
			return nil, &TemplateError{TemplateID: t.ID, Err: err}
		}
		schedule, err := DecodeSchedule(t.Frequency, t.Rule)
		if err != nil {
			return nil, &TemplateError{TemplateID: t.ID, Err: err}
		}
		prepared = append(prepared, PreparedTemplate{TaskTemplate: t, TimeBlock: block, Schedule: schedule})
	}
	return prepared, nil
}

// =============================================================================
// Expander
// =============================================================================

// Window returns the inclusive date range covered by a window starting at start.
func Window(start time.Time) (from, to string) {
	return start.Format(domain.DateLayout), start.AddDate(0, 0, domain.RunbookWindowDays-1).Format(domain.DateLayout)
}

// ExpandInput is everything one expansion needs.
type ExpandInput struct {
	StaffID     uuid.UUID
	Start       time.Time
	Templates   []PreparedTemplate
	Assignments AssignmentIndex
	// SystemPersona is used only when the staff has no assignments.
	SystemPersona *uuid.UUID
}

// Expander materialises task instances. It performs no I/O.
type Expander struct {
	platform domain.Platform
	newID    func() uuid.UUID
	now      func() time.Time
	log      zerolog.Logger
}

// ExpanderOption customises an Expander.
type ExpanderOption func(*Expander)

// WithIDFunc overrides task id generation.
func WithIDFunc(fn func() uuid.UUID) ExpanderOption {
	return func(e *Expander) { e.newID = fn }
}

// WithClock overrides the CreatedAt clock.
func WithClock(fn func() time.Time) ExpanderOption {
	return func(e *Expander) { e.now = fn }
}

// WithLogger sets the logger used for persona resolution traces.
func WithLogger(log zerolog.Logger) ExpanderOption {
	return func(e *Expander) { e.log = log }
}

// NewExpander creates an expander that files every task under platform.
func NewExpander(platform domain.Platform, opts ...ExpanderOption) *Expander {
	if platform == "" {
		platform = domain.PlatformThreads
	}
	e := &Expander{
		platform: platform,
		newID:    uuid.New,
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand produces the tasks of a 7-day window, day by day in template order.
//
// A template bound to a persona yields a task only when that persona is
// assigned to the staff. An unbound template yields one task per assigned
// persona, or a single task under the system persona when the staff has no
// assignments at all.
func (e *Expander) Expand(in ExpandInput) ([]domain.TaskInstance, error) {
	policy := PersonaPolicy{System: in.SystemPersona, Log: e.log.With().Str("staff_id", in.StaffID.String()).Logger()}
	idx := in.Assignments

	var fallback uuid.UUID
	if idx.Empty() {
		persona, _, err := policy.Resolve(idx, nil)
		if err != nil {
			return nil, err
		}
		fallback = persona
	}

	createdAt := e.now().UTC()
	tasks := make([]domain.TaskInstance, 0, len(in.Templates)*domain.RunbookWindowDays)

	for d := 0; d < domain.RunbookWindowDays; d++ {
		day := in.Start.AddDate(0, 0, d)
		date := day.Format(domain.DateLayout)

		for i := range in.Templates {
			tpl := &in.Templates[i]
			if !tpl.Schedule.Includes(day.Weekday()) {
				continue
			}

			switch {
			case tpl.PersonaID != nil:
				if !idx.Has(*tpl.PersonaID) {
					e.log.Debug().
						Str("template_id", tpl.ID.String()).
						Str("persona_id", tpl.PersonaID.String()).
						Msg("bound persona not assigned, skipping")
					continue
				}
				persona, _, err := policy.Resolve(idx, tpl.PersonaID)
				if err != nil {
					return nil, err
				}
				tasks = append(tasks, e.instance(in.StaffID, date, tpl, persona, idx.AccountFor(persona), createdAt))

			case !idx.Empty():
				for _, p := range idx.Personas {
					persona, _, err := policy.Resolve(idx, &p)
					if err != nil {
						return nil, err
					}
					tasks = append(tasks, e.instance(in.StaffID, date, tpl, persona, idx.AccountFor(persona), createdAt))
				}

			default:
				tasks = append(tasks, e.instance(in.StaffID, date, tpl, fallback, idx.PrimaryAccount, createdAt))
			}
		}
	}
	return tasks, nil
}

func (e *Expander) instance(staffID uuid.UUID, date string, tpl *PreparedTemplate, persona uuid.UUID, account *uuid.UUID, createdAt time.Time) domain.TaskInstance {
	var payload json.RawMessage
	if len(tpl.Rule) > 0 {
		payload = append(json.RawMessage(nil), tpl.Rule...)
	}
	return domain.TaskInstance{
		ID:            e.newID(),
		StaffID:       staffID,
		AccountID:     account,
		PersonaID:     persona,
		TaskDate:      date,
		TaskKind:      tpl.TaskType,
		TaskType:      tpl.TaskType,
		TimeBlock:     tpl.TimeBlock,
		ScheduledTime: tpl.TimeSlot,
		Priority:      tpl.Priority,
		Payload:       payload,
		Status:        domain.TaskStatusPendingPublish,
		ContentText:   nil,
		Platform:      e.platform,
		CreatedAt:     createdAt,
	}
}
