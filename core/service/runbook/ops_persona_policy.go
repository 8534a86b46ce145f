package runbook

import (
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ops_server/core/domain"
)

// ErrNoPersona means no persona could be resolved anywhere in the system.
var ErrNoPersona = errors.New("no persona available")

// AssignmentIndex is the resolved view of a staff member's assignments.
type AssignmentIndex struct {
	// Personas holds each assigned persona once, in first-seen order.
	Personas []uuid.UUID
	// PrimaryPersona and PrimaryAccount come from the first assignment.
	PrimaryPersona *uuid.UUID
	PrimaryAccount *uuid.UUID

	accounts map[uuid.UUID]*uuid.UUID
}

// ResolveAssignments indexes assignments. On duplicate personas the first pairing wins.
func ResolveAssignments(assignments []domain.Assignment) AssignmentIndex {
	idx := AssignmentIndex{accounts: make(map[uuid.UUID]*uuid.UUID, len(assignments))}
	for i, a := range assignments {
		if i == 0 {
			persona := a.PersonaID
			idx.PrimaryPersona = &persona
			idx.PrimaryAccount = a.AccountID
		}
		if _, seen := idx.accounts[a.PersonaID]; seen {
			continue
		}
		idx.accounts[a.PersonaID] = a.AccountID
		idx.Personas = append(idx.Personas, a.PersonaID)
	}
	return idx
}

// Empty reports whether the staff has no assignments.
func (idx AssignmentIndex) Empty() bool {
	return len(idx.Personas) == 0
}

// Has reports whether persona is assigned to the staff.
func (idx AssignmentIndex) Has(persona uuid.UUID) bool {
	_, ok := idx.accounts[persona]
	return ok
}

// AccountFor returns the persona's paired account, else the primary account.
func (idx AssignmentIndex) AccountFor(persona uuid.UUID) *uuid.UUID {
	if account := idx.accounts[persona]; account != nil {
		return account
	}
	return idx.PrimaryAccount
}

// PersonaTier names the policy step that produced a persona.
type PersonaTier string

const (
	TierAssignment PersonaTier = "assignment"
	TierPrimary    PersonaTier = "primary"
	TierSystem     PersonaTier = "system"
)

// PersonaPolicy resolves the persona a task is filed under.
// Tiers are tried in order: the candidate's own assignment, the staff's
// primary persona, then any persona in the system.
type PersonaPolicy struct {
	System *uuid.UUID
	Log    zerolog.Logger
}

// Resolve applies the tiers for an optional candidate persona.
func (p PersonaPolicy) Resolve(idx AssignmentIndex, candidate *uuid.UUID) (uuid.UUID, PersonaTier, error) {
	if candidate != nil && idx.Has(*candidate) {
		p.Log.Debug().Str("persona_id", candidate.String()).Str("tier", string(TierAssignment)).Msg("persona resolved")
		return *candidate, TierAssignment, nil
	}
	if idx.PrimaryPersona != nil {
		p.Log.Debug().Str("persona_id", idx.PrimaryPersona.String()).Str("tier", string(TierPrimary)).Msg("persona resolved")
		return *idx.PrimaryPersona, TierPrimary, nil
	}
	if p.System != nil {
		p.Log.Debug().Str("persona_id", p.System.String()).Str("tier", string(TierSystem)).Msg("persona resolved")
		return *p.System, TierSystem, nil
	}
	p.Log.Debug().Msg("persona unresolved")
	return uuid.Nil, "", ErrNoPersona
}
