// Package store defines the durable registry snapshot and its persistence
// contract. The snapshot is a single document: the current registry state
// plus an append-only history of every prior write.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/concordia-bot/concordia/internal/guild/domain"
)

// ErrStaleRevision indicates a save whose base revision no longer matches the
// stored snapshot; the caller must re-read, re-validate, and retry.
var ErrStaleRevision = errors.New("snapshot revision is stale")

// State is the current registry content.
type State struct {
	Factions  []domain.Faction  `json:"factions"`
	Alliances []domain.Alliance `json:"alliances"`
}

// NewState returns an empty state with allocated slices so the persisted
// document always contains arrays.
func NewState() State {
	return State{
		Factions:  []domain.Faction{},
		Alliances: []domain.Alliance{},
	}
}

// Clone deep-copies the state so callers and history entries cannot alias.
func (s State) Clone() State {
	out := State{
		Factions:  make([]domain.Faction, len(s.Factions)),
		Alliances: make([]domain.Alliance, len(s.Alliances)),
	}
	copy(out.Factions, s.Factions)
	for i, alliance := range s.Alliances {
		alliance.MemberFactionIDs = slices.Clone(alliance.MemberFactionIDs)
		out.Alliances[i] = alliance
	}
	return out
}

// FactionByID finds a faction record by ID.
func (s State) FactionByID(factionID string) (domain.Faction, bool) {
	for _, faction := range s.Factions {
		if faction.ID == factionID {
			return faction, true
		}
	}
	return domain.Faction{}, false
}

// FactionByRoleID finds a faction record by its directory role.
func (s State) FactionByRoleID(roleID string) (domain.Faction, bool) {
	for _, faction := range s.Factions {
		if faction.RoleID == roleID {
			return faction, true
		}
	}
	return domain.Faction{}, false
}

// AllianceByID finds an alliance record by ID.
func (s State) AllianceByID(allianceID string) (domain.Alliance, bool) {
	for _, alliance := range s.Alliances {
		if alliance.ID == allianceID {
			return alliance, true
		}
	}
	return domain.Alliance{}, false
}

// AlliancesFoundedBy lists alliances whose founding faction is the given one.
func (s State) AlliancesFoundedBy(factionID string) []domain.Alliance {
	var founded []domain.Alliance
	for _, alliance := range s.Alliances {
		if alliance.FoundingFactionID == factionID {
			founded = append(founded, alliance)
		}
	}
	return founded
}

// AlliancesContaining lists alliances the given faction is a member of.
func (s State) AlliancesContaining(factionID string) []domain.Alliance {
	var containing []domain.Alliance
	for _, alliance := range s.Alliances {
		if alliance.HasMember(factionID) {
			containing = append(containing, alliance)
		}
	}
	return containing
}

// UpsertFaction replaces a faction record by ID, or appends it.
func (s *State) UpsertFaction(faction domain.Faction) {
	for i := range s.Factions {
		if s.Factions[i].ID == faction.ID {
			s.Factions[i] = faction
			return
		}
	}
	s.Factions = append(s.Factions, faction)
}

// RemoveFaction deletes a faction record by ID. It reports whether a record
// was removed.
func (s *State) RemoveFaction(factionID string) bool {
	before := len(s.Factions)
	s.Factions = slices.DeleteFunc(s.Factions, func(faction domain.Faction) bool {
		return faction.ID == factionID
	})
	return len(s.Factions) != before
}

// UpsertAlliance replaces an alliance record by ID, or appends it.
func (s *State) UpsertAlliance(alliance domain.Alliance) {
	for i := range s.Alliances {
		if s.Alliances[i].ID == alliance.ID {
			s.Alliances[i] = alliance
			return
		}
	}
	s.Alliances = append(s.Alliances, alliance)
}

// RemoveAlliance deletes an alliance record by ID. It reports whether a
// record was removed.
func (s *State) RemoveAlliance(allianceID string) bool {
	before := len(s.Alliances)
	s.Alliances = slices.DeleteFunc(s.Alliances, func(alliance domain.Alliance) bool {
		return alliance.ID == allianceID
	})
	return len(s.Alliances) != before
}

// HistoryEntry is one archived write. It persists as a two-element array of
// ISO timestamp and state document.
type HistoryEntry struct {
	Timestamp time.Time
	State     State
}

// MarshalJSON encodes the entry as [isoTimestamp, state].
func (e HistoryEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.Timestamp.UTC().Format(time.RFC3339Nano), e.State})
}

// UnmarshalJSON decodes the [isoTimestamp, state] pair form.
func (e *HistoryEntry) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode history entry: %w", err)
	}
	var iso string
	if err := json.Unmarshal(raw[0], &iso); err != nil {
		return fmt.Errorf("decode history timestamp: %w", err)
	}
	timestamp, err := time.Parse(time.RFC3339Nano, iso)
	if err != nil {
		return fmt.Errorf("parse history timestamp: %w", err)
	}
	var state State
	if err := json.Unmarshal(raw[1], &state); err != nil {
		return fmt.Errorf("decode history state: %w", err)
	}
	e.Timestamp = timestamp
	e.State = state
	return nil
}

// Snapshot is the whole persisted document.
type Snapshot struct {
	Revision uint64         `json:"revision"`
	Current  State          `json:"current"`
	Historic []HistoryEntry `json:"historic"`
}

// ConfigStore persists the registry snapshot.
//
// Save deep-copies the incoming state, appends a history entry, bumps the
// revision, and replaces the whole document atomically. A Save whose
// baseRevision does not match the stored revision fails with
// ErrStaleRevision and writes nothing.
type ConfigStore interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, current State, baseRevision uint64) (Snapshot, error)
}
