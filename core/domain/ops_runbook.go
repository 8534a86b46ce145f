package domain

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Frequency controls on which days a template materialises.
type Frequency string

const (
	FrequencyDaily        Frequency = "daily"
	FrequencyWeekday      Frequency = "weekday"
	FrequencyWeekend      Frequency = "weekend"
	FrequencyWeekly       Frequency = "weekly"
	FrequencyWeeklyCustom Frequency = "weekly_custom"
)

// TimeBlock is the bucket a task's scheduled time falls into.
// The names are historical labels kept for the UI; only the hour boundaries matter.
type TimeBlock string

const (
	TimeBlockMorningRoutine TimeBlock = "morning_routine"
	TimeBlockWakeUp         TimeBlock = "wake_up"
	TimeBlockWarmUp         TimeBlock = "warm_up"
	TimeBlockProduction     TimeBlock = "production"
	TimeBlockWar            TimeBlock = "war"
	TimeBlockClosing        TimeBlock = "closing"
)

// TaskStatus represents the lifecycle state of a work task
type TaskStatus string

const (
	TaskStatusPendingPublish TaskStatus = "pending_publish"
	TaskStatusPublished      TaskStatus = "published"
	TaskStatusSkipped        TaskStatus = "skipped"
)

// RoleType is the staff profile type that selects a template set.
type RoleType string

const (
	RoleOperator RoleType = "operator"
)

// Platform is where generated posts are published.
type Platform string

const (
	PlatformThreads   Platform = "threads"
	PlatformInstagram Platform = "instagram"
)

// TaskTemplate describes a recurring task type. Read-only for the generator.
type TaskTemplate struct {
	ID        uuid.UUID       `json:"id"`
	TaskType  string          `json:"task_type"`
	TimeSlot  string          `json:"time_slot"` // HH:MM
	Priority  int             `json:"priority"`
	PersonaID *uuid.UUID      `json:"persona_id,omitempty"`
	Rule      json.RawMessage `json:"rule,omitempty"`
	Frequency Frequency       `json:"frequency"`
	Enabled   bool            `json:"enabled"`
}

// Assignment pairs a staff member with a persona and, optionally, the account it posts from.
type Assignment struct {
	StaffID   uuid.UUID  `json:"staff_id"`
	PersonaID uuid.UUID  `json:"persona_id"`
	AccountID *uuid.UUID `json:"account_id,omitempty"`
}

// TaskInstance is one materialised, dated unit of work.
type TaskInstance struct {
	ID            uuid.UUID       `json:"id"`
	StaffID       uuid.UUID       `json:"staff_id"`
	AccountID     *uuid.UUID      `json:"account_id"`
	PersonaID     uuid.UUID       `json:"persona_id"`
	TaskDate      string          `json:"task_date"` // YYYY-MM-DD
	TaskKind      string          `json:"task_kind"`
	TaskType      string          `json:"task_type"`
	TimeBlock     TimeBlock       `json:"time_block"`
	ScheduledTime string          `json:"scheduled_time"`
	Priority      int             `json:"priority"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Status        TaskStatus      `json:"status"`
	ContentText   *string         `json:"content_text"`
	Platform      Platform        `json:"platform"`
	CreatedAt     time.Time       `json:"created_at"`
}

// DateLayout is the ISO calendar date format used for task_date.
const DateLayout = "2006-01-02"

// RunbookWindowDays is the length of the rolling generation window.
const RunbookWindowDays = 7
