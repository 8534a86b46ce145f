package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"ops_server/core/domain"
)

var (
	staffA   = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	staffB   = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	personaX = uuid.MustParse("10000000-0000-0000-0000-000000000001")
	personaY = uuid.MustParse("10000000-0000-0000-0000-000000000002")
	accountX = uuid.MustParse("20000000-0000-0000-0000-000000000001")
	created  = time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)
)

func newTestAdapter(t *testing.T) *RunbookAdapter {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewRunbookAdapter(db)
}

func task(id int, date, slot string, persona uuid.UUID) domain.TaskInstance {
	return domain.TaskInstance{
		ID:            uuid.NewSHA1(uuid.NameSpaceOID, []byte{byte(id)}),
		StaffID:       staffA,
		PersonaID:     persona,
		TaskDate:      date,
		TaskKind:      "post",
		TaskType:      "post",
		TimeBlock:     domain.TimeBlockProduction,
		ScheduledTime: slot,
		Priority:      id,
		Payload:       json.RawMessage(`{"template_id":"t"}`),
		Status:        domain.TaskStatusPendingPublish,
		Platform:      domain.PlatformThreads,
		CreatedAt:     created,
	}
}

func TestAnyPersona(t *testing.T) {
	repo := newTestAdapter(t)
	ctx := context.Background()

	id, err := repo.AnyPersona(ctx)
	if err != nil || id != nil {
		t.Fatalf("AnyPersona() on empty table = (%v, %v), want (nil, nil)", id, err)
	}

	if err := repo.CreatePersona(ctx, personaX, "阿哲"); err != nil {
		t.Fatal(err)
	}
	id, err = repo.AnyPersona(ctx)
	if err != nil || id == nil || *id != personaX {
		t.Fatalf("AnyPersona() = (%v, %v), want %s", id, err, personaX)
	}

	if err := repo.CreatePersona(ctx, personaX, "again"); !errors.Is(err, ErrDuplicate) {
		t.Errorf("CreatePersona() duplicate error = %v, want ErrDuplicate", err)
	}
}

func TestAssignments(t *testing.T) {
	repo := newTestAdapter(t)
	ctx := context.Background()

	for _, p := range []uuid.UUID{personaX, personaY} {
		if err := repo.CreatePersona(ctx, p, p.String()); err != nil {
			t.Fatal(err)
		}
	}
	acct := accountX
	seed := []domain.Assignment{
		{StaffID: staffA, PersonaID: personaY, AccountID: &acct},
		{StaffID: staffA, PersonaID: personaX},
		{StaffID: staffB, PersonaID: personaX},
	}
	for _, a := range seed {
		if err := repo.AssignPersona(ctx, a); err != nil {
			t.Fatalf("AssignPersona(%v) error = %v", a, err)
		}
	}

	got, err := repo.ListAssignments(ctx, staffA)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(seed[:2], got); diff != "" {
		t.Errorf("ListAssignments() mismatch (-want +got):\n%s", diff)
	}

	staff, err := repo.ListStaffWithAssignments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uuid.UUID{staffA, staffB}, staff); diff != "" {
		t.Errorf("ListStaffWithAssignments() mismatch (-want +got):\n%s", diff)
	}

	if err := repo.AssignPersona(ctx, seed[1]); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate assignment error = %v, want ErrDuplicate", err)
	}
	missing := domain.Assignment{StaffID: staffA, PersonaID: uuid.New()}
	if err := repo.AssignPersona(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown persona error = %v, want ErrNotFound", err)
	}
}

func TestListActiveTemplates(t *testing.T) {
	repo := newTestAdapter(t)
	ctx := context.Background()

	bound := personaX
	templates := []domain.TaskTemplate{
		{ID: uuid.New(), TaskType: "evening", TimeSlot: "20:00", Priority: 1, Frequency: domain.FrequencyDaily, Enabled: true},
		{ID: uuid.New(), TaskType: "weekly", TimeSlot: "09:00", Priority: 2, PersonaID: &bound,
			Rule: json.RawMessage(`{"weekly_days":[1,3]}`), Frequency: domain.FrequencyWeeklyCustom, Enabled: true},
		{ID: uuid.New(), TaskType: "off", TimeSlot: "10:00", Frequency: domain.FrequencyDaily, Enabled: false},
	}
	for _, tpl := range templates {
		if err := repo.SaveTemplate(ctx, tpl); err != nil {
			t.Fatalf("SaveTemplate() error = %v", err)
		}
	}

	got, err := repo.ListActiveTemplates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []domain.TaskTemplate{templates[1], templates[0]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListActiveTemplates() mismatch (-want +got):\n%s", diff)
	}

	// Saving again replaces instead of duplicating.
	templates[0].Priority = 9
	if err := repo.SaveTemplate(ctx, templates[0]); err != nil {
		t.Fatal(err)
	}
	got, _ = repo.ListActiveTemplates(ctx)
	if len(got) != 2 || got[1].Priority != 9 {
		t.Errorf("after re-save got %+v", got)
	}
}

func TestReplaceWindow(t *testing.T) {
	repo := newTestAdapter(t)
	ctx := context.Background()
	from, to := "2024-01-01", "2024-01-07"

	outside := task(1, "2024-01-08", "09:00", personaX)
	if err := repo.ReplaceWindow(ctx, staffA, "2024-01-08", "2024-01-14", []domain.TaskInstance{outside}); err != nil {
		t.Fatal(err)
	}

	acct := accountX
	first := []domain.TaskInstance{
		task(2, "2024-01-01", "09:00", personaX),
		task(3, "2024-01-02", "09:00", personaX),
	}
	first[1].AccountID = &acct
	if err := repo.ReplaceWindow(ctx, staffA, from, to, first); err != nil {
		t.Fatalf("ReplaceWindow() error = %v", err)
	}
	got, err := repo.ListWindow(ctx, staffA, from, to)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, got); diff != "" {
		t.Errorf("ListWindow() mismatch (-want +got):\n%s", diff)
	}

	second := []domain.TaskInstance{
		task(5, "2024-01-03", "20:00", personaY),
		task(4, "2024-01-03", "08:00", personaX),
	}
	if err := repo.ReplaceWindow(ctx, staffA, from, to, second); err != nil {
		t.Fatal(err)
	}
	got, _ = repo.ListWindow(ctx, staffA, from, to)
	want := []domain.TaskInstance{second[1], second[0]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("window after replace mismatch (-want +got):\n%s", diff)
	}

	next, _ := repo.ListWindow(ctx, staffA, "2024-01-08", "2024-01-14")
	if len(next) != 1 || next[0].ID != outside.ID {
		t.Errorf("rows outside the window changed: %+v", next)
	}
}

func TestReplaceWindowRollsBack(t *testing.T) {
	repo := newTestAdapter(t)
	ctx := context.Background()
	from, to := "2024-01-01", "2024-01-07"

	kept := []domain.TaskInstance{task(1, "2024-01-01", "09:00", personaX)}
	if err := repo.ReplaceWindow(ctx, staffA, from, to, kept); err != nil {
		t.Fatal(err)
	}

	dup := task(2, "2024-01-02", "09:00", personaX)
	if err := repo.ReplaceWindow(ctx, staffA, from, to, []domain.TaskInstance{dup, dup}); err == nil {
		t.Fatal("ReplaceWindow() with duplicate ids expected error")
	}

	got, _ := repo.ListWindow(ctx, staffA, from, to)
	if len(got) != 1 || got[0].ID != kept[0].ID {
		t.Errorf("window after failed replace = %+v, want the original row", got)
	}
}

func TestDeleteWindow(t *testing.T) {
	repo := newTestAdapter(t)
	ctx := context.Background()

	tasks := []domain.TaskInstance{
		task(1, "2024-01-01", "09:00", personaX),
		task(2, "2024-01-05", "09:00", personaX),
	}
	if err := repo.ReplaceWindow(ctx, staffA, "2024-01-01", "2024-01-07", tasks); err != nil {
		t.Fatal(err)
	}

	n, err := repo.DeleteWindow(ctx, staffA, "2024-01-01", "2024-01-03")
	if err != nil || n != 1 {
		t.Fatalf("DeleteWindow() = (%d, %v), want (1, nil)", n, err)
	}
	n, _ = repo.DeleteWindow(ctx, staffB, "2024-01-01", "2024-01-07")
	if n != 0 {
		t.Errorf("DeleteWindow() for another staff = %d, want 0", n)
	}
}

func TestTrimSeconds(t *testing.T) {
	tests := map[string]string{
		"09:30:00": "09:30",
		"09:30":    "09:30",
		" 7:05 ":   "7:05",
	}
	for in, want := range tests {
		if got := trimSeconds(in); got != want {
			t.Errorf("trimSeconds(%q) = %q, want %q", in, got, want)
		}
	}
}
