package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"ops_server/adapter/out/persistence"
	"ops_server/infra/database"
)

const seedYAML = `
personas:
  - id: 11111111-1111-1111-1111-111111111111
    name: 阿哲
assignments:
  - staff_id: 22222222-2222-2222-2222-222222222222
    persona_id: 11111111-1111-1111-1111-111111111111
templates:
  - id: 33333333-3333-3333-3333-333333333333
    task_type: post
    time_slot: "09:00"
    frequency: weekly_custom
    rule:
      weekly_days: [1, 3, 5]
  - id: 44444444-4444-4444-4444-444444444444
    task_type: reply
    time_slot: "21:30"
    enabled: false
`

func TestApplySeed(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewSQLX(ctx, database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := persistence.Migrate(ctx, db); err != nil {
		t.Fatal(err)
	}
	repo := persistence.NewRunbookAdapter(db)

	seed, err := loadSeed(strings.NewReader(seedYAML))
	if err != nil {
		t.Fatalf("loadSeed() error = %v", err)
	}
	stats, err := applySeed(ctx, repo, seed)
	if err != nil {
		t.Fatalf("applySeed() error = %v", err)
	}
	if stats != (seedStats{Personas: 1, Assignments: 1, Templates: 2}) {
		t.Errorf("stats = %+v", stats)
	}

	templates, err := repo.ListActiveTemplates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(templates) != 1 || templates[0].TaskType != "post" {
		t.Fatalf("active templates = %+v", templates)
	}
	if !strings.Contains(string(templates[0].Rule), "weekly_days") {
		t.Errorf("rule = %s", templates[0].Rule)
	}

	staff, err := repo.ListStaffWithAssignments(ctx)
	if err != nil || len(staff) != 1 || staff[0] != uuid.MustParse("22222222-2222-2222-2222-222222222222") {
		t.Errorf("staff = %v, err = %v", staff, err)
	}

	// Re-applying is idempotent.
	stats, err = applySeed(ctx, repo, seed)
	if err != nil {
		t.Fatalf("second applySeed() error = %v", err)
	}
	if stats.Skipped != 2 || stats.Personas != 0 || stats.Templates != 2 {
		t.Errorf("second stats = %+v", stats)
	}
}

func TestApplySeedRejectsBadIDs(t *testing.T) {
	seed, err := loadSeed(strings.NewReader("personas:\n  - id: nope\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := applySeed(context.Background(), nil, seed); err == nil {
		t.Error("expected error for invalid persona id")
	}
}

func TestClassifyCommands(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"classify", []string{"classify", "湖人", "勇士"}, "nba"},
		{"classify general", []string{"classify", "天氣"}, "general"},
		{"expand", []string{"expand", "湖人"}, "勇士"},
		{"asset type", []string{"asset-type", "百家樂", "教學"}, "casino_baccarat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			rootCmd.SetOut(&out)
			rootCmd.SetArgs(tt.args)
			if err := rootCmd.Execute(); err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output = %q, want %q", out.String(), tt.want)
			}
		})
	}
}
