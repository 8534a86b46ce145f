package out

import (
	"context"
	"time"
)

// Stream names
const (
	StreamRunbookGenerate = "runbook:generate"
	StreamRunbookEvents   = "runbook:events"
)

// RunbookJobProducer enqueues regeneration work for the worker.
type RunbookJobProducer interface {
	PublishRunbookGenerate(ctx context.Context, job *RunbookGenerateJob) error
}

// RunbookEventPublisher announces finished generations.
type RunbookEventPublisher interface {
	PublishRunbookGenerated(ctx context.Context, event *RunbookGeneratedEvent) error
}

// RunbookGenerateJob asks the worker to regenerate one staff window.
type RunbookGenerateJob struct {
	StaffID  string `json:"staff_id"`
	Date     string `json:"date"` // YYYY-MM-DD
	RoleType string `json:"role_type,omitempty"`
	Source   string `json:"source,omitempty"` // api, scheduler, cli
}

// RunbookGeneratedEvent is emitted after a window was replaced.
type RunbookGeneratedEvent struct {
	StaffID     string    `json:"staff_id"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Generated   int       `json:"generated"`
	GeneratedAt time.Time `json:"generated_at"`
}
