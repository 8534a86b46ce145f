package in

import (
	"context"

	"ops_server/core/domain"
)

// RunbookService materialises the rolling task window of a staff member.
type RunbookService interface {
	// Generate replaces the staff's tasks in [date, date+6] with a fresh expansion.
	Generate(ctx context.Context, req *GenerateRunbookRequest) (*RunbookResult, error)
	// Preview runs the same expansion without touching storage.
	Preview(ctx context.Context, req *GenerateRunbookRequest) (*RunbookResult, error)
	// ListTasks reads back stored tasks in [from, to].
	ListTasks(ctx context.Context, staffID, from, to string) ([]domain.TaskInstance, error)
}

// GenerateRunbookRequest identifies one generation window.
type GenerateRunbookRequest struct {
	StaffID  string `json:"staff_id"`
	Date     string `json:"date"`                // YYYY-MM-DD, window start
	RoleType string `json:"role_type,omitempty"` // defaults to operator
}

// RunbookResult describes a generated (or previewed) window.
type RunbookResult struct {
	StaffID   string                `json:"staff_id"`
	From      string                `json:"from"`
	To        string                `json:"to"`
	Generated int                   `json:"generated"`
	Tasks     []domain.TaskInstance `json:"tasks"`
	DryRun    bool                  `json:"dry_run,omitempty"`
}
