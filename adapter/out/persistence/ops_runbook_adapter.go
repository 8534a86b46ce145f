package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"ops_server/core/domain"
	"ops_server/core/port/out"
)

// insertBatchSize keeps multi-row inserts under driver parameter limits.
const insertBatchSize = 500

// RunbookAdapter implements the template, assignment, persona and task ports.
// Queries are written with ? placeholders and rebound for the connected driver.
type RunbookAdapter struct {
	db *sqlx.DB
}

// NewRunbookAdapter creates a new RunbookAdapter
func NewRunbookAdapter(db *sqlx.DB) *RunbookAdapter {
	return &RunbookAdapter{db: db}
}

var (
	_ out.TemplateRepository   = (*RunbookAdapter)(nil)
	_ out.AssignmentRepository = (*RunbookAdapter)(nil)
	_ out.PersonaRepository    = (*RunbookAdapter)(nil)
	_ out.TaskRepository       = (*RunbookAdapter)(nil)
)

// =============================================================================
// Templates
// =============================================================================

type templateRow struct {
	ID        uuid.UUID      `db:"id"`
	TaskType  string         `db:"task_type"`
	TimeSlot  string         `db:"time_slot"`
	Priority  int            `db:"priority"`
	PersonaID uuid.NullUUID  `db:"persona_id"`
	Rule      sql.NullString `db:"rule"`
	Frequency string         `db:"frequency"`
	Enabled   bool           `db:"enabled"`
}

func (r *templateRow) toDomain() domain.TaskTemplate {
	t := domain.TaskTemplate{
		ID:        r.ID,
		TaskType:  r.TaskType,
		TimeSlot:  trimSeconds(r.TimeSlot),
		Priority:  r.Priority,
		Frequency: domain.Frequency(r.Frequency),
		Enabled:   r.Enabled,
	}
	if r.PersonaID.Valid {
		id := r.PersonaID.UUID
		t.PersonaID = &id
	}
	if r.Rule.Valid && r.Rule.String != "" {
		t.Rule = json.RawMessage(r.Rule.String)
	}
	return t
}

func (r *RunbookAdapter) ListActiveTemplates(ctx context.Context) ([]domain.TaskTemplate, error) {
	query := `
		SELECT id, task_type, CAST(time_slot AS TEXT) AS time_slot, priority, persona_id,
		       CAST(rule AS TEXT) AS rule, frequency, enabled
		FROM work_task_templates
		WHERE enabled = TRUE
		ORDER BY time_slot ASC`

	var rows []templateRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list active templates: %w", err)
	}

	templates := make([]domain.TaskTemplate, len(rows))
	for i := range rows {
		templates[i] = rows[i].toDomain()
	}
	return templates, nil
}

// =============================================================================
// Assignments & personas
// =============================================================================

type assignmentRow struct {
	StaffID   uuid.UUID     `db:"staff_id"`
	PersonaID uuid.UUID     `db:"persona_id"`
	AccountID uuid.NullUUID `db:"account_id"`
}

func (r *RunbookAdapter) ListAssignments(ctx context.Context, staffID uuid.UUID) ([]domain.Assignment, error) {
	query := r.db.Rebind(`
		SELECT staff_id, persona_id, account_id
		FROM persona_assignments
		WHERE staff_id = ?
		ORDER BY created_at ASC, id ASC`)

	var rows []assignmentRow
	if err := r.db.SelectContext(ctx, &rows, query, staffID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	assignments := make([]domain.Assignment, len(rows))
	for i, row := range rows {
		assignments[i] = domain.Assignment{StaffID: row.StaffID, PersonaID: row.PersonaID}
		if row.AccountID.Valid {
			id := row.AccountID.UUID
			assignments[i].AccountID = &id
		}
	}
	return assignments, nil
}

func (r *RunbookAdapter) ListStaffWithAssignments(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.SelectContext(ctx, &ids, `SELECT DISTINCT staff_id FROM persona_assignments ORDER BY staff_id`); err != nil {
		return nil, fmt.Errorf("list staff with assignments: %w", err)
	}
	return ids, nil
}

func (r *RunbookAdapter) AnyPersona(ctx context.Context) (*uuid.UUID, error) {
	var id uuid.UUID
	if err := r.db.GetContext(ctx, &id, `SELECT id FROM personas LIMIT 1`); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("any persona: %w", err)
	}
	return &id, nil
}

// =============================================================================
// Tasks
// =============================================================================

type taskRow struct {
	ID            uuid.UUID      `db:"id"`
	StaffID       uuid.UUID      `db:"staff_id"`
	AccountID     uuid.NullUUID  `db:"account_id"`
	PersonaID     uuid.UUID      `db:"persona_id"`
	TaskDate      string         `db:"task_date"`
	TaskKind      string         `db:"task_kind"`
	TaskType      string         `db:"task_type"`
	TimeBlock     string         `db:"time_block"`
	ScheduledTime string         `db:"scheduled_time"`
	Priority      int            `db:"priority"`
	Payload       sql.NullString `db:"payload"`
	Status        string         `db:"status"`
	ContentText   sql.NullString `db:"content_text"`
	Platform      string         `db:"platform"`
	CreatedAt     string         `db:"created_at"`
}

func newTaskRow(t *domain.TaskInstance) taskRow {
	row := taskRow{
		ID:            t.ID,
		StaffID:       t.StaffID,
		PersonaID:     t.PersonaID,
		TaskDate:      t.TaskDate,
		TaskKind:      t.TaskKind,
		TaskType:      t.TaskType,
		TimeBlock:     string(t.TimeBlock),
		ScheduledTime: t.ScheduledTime,
		Priority:      t.Priority,
		Status:        string(t.Status),
		Platform:      string(t.Platform),
		CreatedAt:     t.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if t.AccountID != nil {
		row.AccountID = uuid.NullUUID{UUID: *t.AccountID, Valid: true}
	}
	if len(t.Payload) > 0 {
		row.Payload = sql.NullString{String: string(t.Payload), Valid: true}
	}
	if t.ContentText != nil {
		row.ContentText = sql.NullString{String: *t.ContentText, Valid: true}
	}
	return row
}

func (r *taskRow) toDomain() domain.TaskInstance {
	t := domain.TaskInstance{
		ID:            r.ID,
		StaffID:       r.StaffID,
		PersonaID:     r.PersonaID,
		TaskDate:      r.TaskDate,
		TaskKind:      r.TaskKind,
		TaskType:      r.TaskType,
		TimeBlock:     domain.TimeBlock(r.TimeBlock),
		ScheduledTime: trimSeconds(r.ScheduledTime),
		Priority:      r.Priority,
		Status:        domain.TaskStatus(r.Status),
		Platform:      domain.Platform(r.Platform),
		CreatedAt:     parseTimestamp(r.CreatedAt),
	}
	if r.AccountID.Valid {
		id := r.AccountID.UUID
		t.AccountID = &id
	}
	if r.Payload.Valid && r.Payload.String != "" {
		t.Payload = json.RawMessage(r.Payload.String)
	}
	if r.ContentText.Valid {
		text := r.ContentText.String
		t.ContentText = &text
	}
	return t
}

const insertTaskSQL = `
	INSERT INTO work_tasks (
		id, staff_id, account_id, persona_id, task_date, task_kind, task_type,
		time_block, scheduled_time, priority, payload, status, content_text, platform, created_at
	) VALUES (
		:id, :staff_id, :account_id, :persona_id, :task_date, :task_kind, :task_type,
		:time_block, :scheduled_time, :priority, :payload, :status, :content_text, :platform, :created_at
	)`

// ReplaceWindow deletes and re-inserts the window in one transaction.
// Any insert failure rolls the whole window back.
func (r *RunbookAdapter) ReplaceWindow(ctx context.Context, staffID uuid.UUID, from, to string, tasks []domain.TaskInstance) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	deleteSQL := tx.Rebind(`DELETE FROM work_tasks WHERE staff_id = ? AND task_date >= ? AND task_date <= ?`)
	if _, err := tx.ExecContext(ctx, deleteSQL, staffID, from, to); err != nil {
		return fmt.Errorf("delete task window: %w", err)
	}

	for start := 0; start < len(tasks); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(tasks) {
			end = len(tasks)
		}
		rows := make([]taskRow, 0, end-start)
		for i := start; i < end; i++ {
			rows = append(rows, newTaskRow(&tasks[i]))
		}
		if _, err := tx.NamedExecContext(ctx, insertTaskSQL, rows); err != nil {
			return fmt.Errorf("insert %d tasks: %w", len(rows), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit task window: %w", err)
	}
	return nil
}

func (r *RunbookAdapter) DeleteWindow(ctx context.Context, staffID uuid.UUID, from, to string) (int64, error) {
	query := r.db.Rebind(`DELETE FROM work_tasks WHERE staff_id = ? AND task_date >= ? AND task_date <= ?`)
	result, err := r.db.ExecContext(ctx, query, staffID, from, to)
	if err != nil {
		return 0, fmt.Errorf("delete task window: %w", err)
	}
	return result.RowsAffected()
}

func (r *RunbookAdapter) ListWindow(ctx context.Context, staffID uuid.UUID, from, to string) ([]domain.TaskInstance, error) {
	query := r.db.Rebind(`
		SELECT id, staff_id, account_id, persona_id, CAST(task_date AS TEXT) AS task_date,
		       task_kind, task_type, time_block, CAST(scheduled_time AS TEXT) AS scheduled_time,
		       priority, CAST(payload AS TEXT) AS payload, status, content_text, platform, created_at
		FROM work_tasks
		WHERE staff_id = ? AND task_date >= ? AND task_date <= ?
		ORDER BY task_date ASC, scheduled_time ASC, persona_id ASC`)

	var rows []taskRow
	if err := r.db.SelectContext(ctx, &rows, query, staffID, from, to); err != nil {
		return nil, fmt.Errorf("list task window: %w", err)
	}

	tasks := make([]domain.TaskInstance, len(rows))
	for i := range rows {
		tasks[i] = rows[i].toDomain()
	}
	return tasks, nil
}

// =============================================================================
// Seeding
// =============================================================================

// CreatePersona inserts a persona. It returns ErrDuplicate if the id exists.
func (r *RunbookAdapter) CreatePersona(ctx context.Context, id uuid.UUID, name string) error {
	var n int
	if err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM personas WHERE id = ?`), id); err != nil {
		return fmt.Errorf("check persona: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("persona %s: %w", id, ErrDuplicate)
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO personas (id, name) VALUES (?, ?)`), id, name); err != nil {
		return fmt.Errorf("create persona: %w", err)
	}
	return nil
}

// AssignPersona pairs a staff member with an existing persona.
// The pair must be new and the persona must exist.
func (r *RunbookAdapter) AssignPersona(ctx context.Context, a domain.Assignment) error {
	var n int
	if err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM personas WHERE id = ?`), a.PersonaID); err != nil {
		return fmt.Errorf("check persona: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("persona %s: %w", a.PersonaID, ErrNotFound)
	}
	if err := r.db.GetContext(ctx, &n, r.db.Rebind(`
		SELECT COUNT(*) FROM persona_assignments WHERE staff_id = ? AND persona_id = ?`), a.StaffID, a.PersonaID); err != nil {
		return fmt.Errorf("check assignment: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("assignment %s/%s: %w", a.StaffID, a.PersonaID, ErrDuplicate)
	}

	var account uuid.NullUUID
	if a.AccountID != nil {
		account = uuid.NullUUID{UUID: *a.AccountID, Valid: true}
	}
	query := r.db.Rebind(`INSERT INTO persona_assignments (staff_id, persona_id, account_id) VALUES (?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query, a.StaffID, a.PersonaID, account); err != nil {
		return fmt.Errorf("assign persona: %w", err)
	}
	return nil
}

// SaveTemplate inserts a template, replacing any row with the same id.
func (r *RunbookAdapter) SaveTemplate(ctx context.Context, t domain.TaskTemplate) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM work_task_templates WHERE id = ?`), t.ID); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}

	row := templateRow{
		ID:        t.ID,
		TaskType:  t.TaskType,
		TimeSlot:  t.TimeSlot,
		Priority:  t.Priority,
		Frequency: string(t.Frequency),
		Enabled:   t.Enabled,
	}
	if t.PersonaID != nil {
		row.PersonaID = uuid.NullUUID{UUID: *t.PersonaID, Valid: true}
	}
	if len(t.Rule) > 0 {
		row.Rule = sql.NullString{String: string(t.Rule), Valid: true}
	}
	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO work_task_templates (id, task_type, time_slot, priority, persona_id, rule, frequency, enabled)
		VALUES (:id, :task_type, :time_slot, :priority, :persona_id, :rule, :frequency, :enabled)`, row); err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return tx.Commit()
}

// =============================================================================
// Helpers
// =============================================================================

// trimSeconds turns a TIME rendering ("09:30:00") into HH:MM.
func trimSeconds(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 5 && s[5] == ':' {
		return s[:5]
	}
	return s
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
