package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"ops_server/adapter/out/persistence"
	"ops_server/core/domain"
	"ops_server/internal/bootstrap"
)

var seedCmd = &cobra.Command{
	Use:   "seed [file.yaml]",
	Short: "Load personas, assignments and templates from YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeed,
}

// seedFile is the YAML layout accepted by seed.
type seedFile struct {
	Personas []struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"personas"`
	Assignments []struct {
		StaffID   string `yaml:"staff_id"`
		PersonaID string `yaml:"persona_id"`
		AccountID string `yaml:"account_id"`
	} `yaml:"assignments"`
	Templates []struct {
		ID        string         `yaml:"id"`
		TaskType  string         `yaml:"task_type"`
		TimeSlot  string         `yaml:"time_slot"`
		Priority  int            `yaml:"priority"`
		PersonaID string         `yaml:"persona_id"`
		Frequency string         `yaml:"frequency"`
		Rule      map[string]any `yaml:"rule"`
		Enabled   *bool          `yaml:"enabled"`
	} `yaml:"templates"`
}

type seedStore interface {
	CreatePersona(ctx context.Context, id uuid.UUID, name string) error
	AssignPersona(ctx context.Context, a domain.Assignment) error
	SaveTemplate(ctx context.Context, t domain.TaskTemplate) error
}

type seedStats struct {
	Personas, Assignments, Templates, Skipped int
}

func runSeed(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	seed, err := loadSeed(f)
	if err != nil {
		return err
	}

	return withDeps(func(ctx context.Context, deps *bootstrap.Dependencies) error {
		stats, err := applySeed(ctx, deps.Repo, seed)
		if err != nil {
			return err
		}
		if deps.Cache != nil {
			_ = deps.Runbooks.InvalidateTemplateCache(ctx)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "personas=%d assignments=%d templates=%d skipped=%d\n",
			stats.Personas, stats.Assignments, stats.Templates, stats.Skipped)
		return nil
	})
}

func loadSeed(r io.Reader) (*seedFile, error) {
	var seed seedFile
	if err := yaml.NewDecoder(r).Decode(&seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &seed, nil
}

// applySeed writes the seed. Existing personas and assignments are skipped;
// templates are upserted.
func applySeed(ctx context.Context, store seedStore, seed *seedFile) (seedStats, error) {
	var stats seedStats

	for _, p := range seed.Personas {
		id, err := uuid.Parse(p.ID)
		if err != nil {
			return stats, fmt.Errorf("persona %q: %w", p.ID, err)
		}
		switch err := store.CreatePersona(ctx, id, p.Name); {
		case errors.Is(err, persistence.ErrDuplicate):
			stats.Skipped++
		case err != nil:
			return stats, err
		default:
			stats.Personas++
		}
	}

	for _, a := range seed.Assignments {
		assignment, err := parseAssignment(a.StaffID, a.PersonaID, a.AccountID)
		if err != nil {
			return stats, err
		}
		switch err := store.AssignPersona(ctx, assignment); {
		case errors.Is(err, persistence.ErrDuplicate):
			stats.Skipped++
		case err != nil:
			return stats, fmt.Errorf("assign %s to %s: %w", a.PersonaID, a.StaffID, err)
		default:
			stats.Assignments++
		}
	}

	for _, t := range seed.Templates {
		id, err := uuid.Parse(t.ID)
		if err != nil {
			return stats, fmt.Errorf("template %q: %w", t.ID, err)
		}
		tpl := domain.TaskTemplate{
			ID:        id,
			TaskType:  t.TaskType,
			TimeSlot:  t.TimeSlot,
			Priority:  t.Priority,
			Frequency: domain.Frequency(strings.TrimSpace(t.Frequency)),
			Enabled:   t.Enabled == nil || *t.Enabled,
		}
		if tpl.Frequency == "" {
			tpl.Frequency = domain.FrequencyDaily
		}
		if t.PersonaID != "" {
			pid, err := uuid.Parse(t.PersonaID)
			if err != nil {
				return stats, fmt.Errorf("template %s persona: %w", t.ID, err)
			}
			tpl.PersonaID = &pid
		}
		if t.Rule != nil {
			if tpl.Rule, err = json.Marshal(t.Rule); err != nil {
				return stats, fmt.Errorf("template %s rule: %w", t.ID, err)
			}
		}
		if err := store.SaveTemplate(ctx, tpl); err != nil {
			return stats, err
		}
		stats.Templates++
	}
	return stats, nil
}

func parseAssignment(staff, persona, account string) (domain.Assignment, error) {
	var a domain.Assignment
	var err error
	if a.StaffID, err = uuid.Parse(staff); err != nil {
		return a, fmt.Errorf("staff_id %q: %w", staff, err)
	}
	if a.PersonaID, err = uuid.Parse(persona); err != nil {
		return a, fmt.Errorf("persona_id %q: %w", persona, err)
	}
	if account != "" {
		acc, err := uuid.Parse(account)
		if err != nil {
			return a, fmt.Errorf("account_id %q: %w", account, err)
		}
		a.AccountID = &acc
	}
	return a, nil
}
