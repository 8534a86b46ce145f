package out

import (
	"context"

	"ops_server/core/domain"

	"github.com/google/uuid"
)

// TemplateRepository reads recurring task templates.
type TemplateRepository interface {
	// ListActiveTemplates returns enabled templates ordered by time_slot ascending.
	ListActiveTemplates(ctx context.Context) ([]domain.TaskTemplate, error)
}

// AssignmentRepository reads staff ↔ persona ↔ account pairings.
type AssignmentRepository interface {
	// ListAssignments returns the pairings of one staff member in insertion order.
	ListAssignments(ctx context.Context, staffID uuid.UUID) ([]domain.Assignment, error)
	// ListStaffWithAssignments returns every staff member with at least one pairing.
	ListStaffWithAssignments(ctx context.Context) ([]uuid.UUID, error)
}

// PersonaRepository reads the system-wide persona table.
type PersonaRepository interface {
	// AnyPersona returns an arbitrary persona id, or nil when the table is empty.
	AnyPersona(ctx context.Context) (*uuid.UUID, error)
}

// TaskRepository stores materialised task instances.
type TaskRepository interface {
	// ReplaceWindow deletes the staff's tasks dated within [from, to] and inserts tasks,
	// atomically.
	ReplaceWindow(ctx context.Context, staffID uuid.UUID, from, to string, tasks []domain.TaskInstance) error
	DeleteWindow(ctx context.Context, staffID uuid.UUID, from, to string) (int64, error)
	ListWindow(ctx context.Context, staffID uuid.UUID, from, to string) ([]domain.TaskInstance, error)
}
