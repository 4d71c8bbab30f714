package registry

import (
	"context"

	"github.com/concordia-bot/concordia/internal/directory"
	"github.com/concordia-bot/concordia/internal/guild/domain"
	"github.com/concordia-bot/concordia/internal/guild/store"
	apperrors "github.com/concordia-bot/concordia/internal/platform/errors"
)

// Membership derivation. Founder, admin, and member status are never stored;
// each check queries the directory at the moment it is needed.

// isFounder reports whether the subject holds the guild-wide founder role.
func (r *Registry) isFounder(ctx context.Context, subjectID string) (bool, error) {
	held, err := r.dir.SubjectHasRole(ctx, subjectID, r.settings.FounderRoleID)
	if err != nil {
		return false, apperrors.Wrap(apperrors.CodeDirectoryFailure, "check founder role", err)
	}
	return held, nil
}

// memberFaction finds the faction whose role the subject currently holds.
// The at-most-one-faction invariant means the first hit is the only hit.
func (r *Registry) memberFaction(ctx context.Context, state store.State, subjectID string) (domain.Faction, bool, error) {
	for _, faction := range state.Factions {
		held, err := r.dir.SubjectHasRole(ctx, subjectID, faction.RoleID)
		if err != nil {
			return domain.Faction{}, false, apperrors.Wrap(apperrors.CodeDirectoryFailure, "check faction role", err)
		}
		if held {
			return faction, true, nil
		}
	}
	return domain.Faction{}, false, nil
}

// isFactionAdmin reports whether the subject can view the faction's admin
// channel, which is what admin status means.
func (r *Registry) isFactionAdmin(ctx context.Context, faction domain.Faction, subjectID string) (bool, error) {
	canView, err := r.dir.ChannelPermission(ctx, faction.AdminChannelID, subjectID)
	if err != nil {
		return false, apperrors.Wrap(apperrors.CodeDirectoryFailure, "check admin channel permission", err)
	}
	return canView, nil
}

// isFounderOf reports whether the subject is this faction's founder: holder
// of both the guild-wide founder role and the faction's member role.
func (r *Registry) isFounderOf(ctx context.Context, faction domain.Faction, subjectID string) (bool, error) {
	founder, err := r.isFounder(ctx, subjectID)
	if err != nil || !founder {
		return false, err
	}
	held, err := r.dir.SubjectHasRole(ctx, subjectID, faction.RoleID)
	if err != nil {
		return false, apperrors.Wrap(apperrors.CodeDirectoryFailure, "check faction role", err)
	}
	return held, nil
}

// entityNames resolves the live directory names of every faction and
// alliance role in the state. Entity names live on their roles, not in the
// snapshot.
func (r *Registry) entityNames(ctx context.Context, state store.State) (map[string]directory.Role, error) {
	roleIDs := make([]string, 0, len(state.Factions)+len(state.Alliances))
	for _, faction := range state.Factions {
		roleIDs = append(roleIDs, faction.RoleID)
	}
	for _, alliance := range state.Alliances {
		roleIDs = append(roleIDs, alliance.RoleID)
	}
	roles, err := r.dir.RolesByIDs(ctx, roleIDs)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDirectoryFailure, "resolve entity roles", err)
	}
	return roles, nil
}

// factionByName finds a faction by its live role name.
func (r *Registry) factionByName(ctx context.Context, state store.State, name string) (domain.Faction, error) {
	roles, err := r.entityNames(ctx, state)
	if err != nil {
		return domain.Faction{}, err
	}
	for _, faction := range state.Factions {
		if role, ok := roles[faction.RoleID]; ok && domain.NamesEqual(role.Name, name) {
			return faction, nil
		}
	}
	return domain.Faction{}, apperrors.WithMetadata(apperrors.CodeFactionNotFound,
		"faction not found", map[string]string{"Name": name})
}

// allianceByName finds an alliance by its live role name.
func (r *Registry) allianceByName(ctx context.Context, state store.State, name string) (domain.Alliance, error) {
	roles, err := r.entityNames(ctx, state)
	if err != nil {
		return domain.Alliance{}, err
	}
	for _, alliance := range state.Alliances {
		if role, ok := roles[alliance.RoleID]; ok && domain.NamesEqual(role.Name, name) {
			return alliance, nil
		}
	}
	return domain.Alliance{}, apperrors.WithMetadata(apperrors.CodeAllianceNotFound,
		"alliance not found", map[string]string{"Name": name})
}

// checkNameFree enforces global caseless uniqueness across faction and
// alliance names. excludeRoleID skips an entity's own role during rename.
func (r *Registry) checkNameFree(ctx context.Context, state store.State, name, excludeRoleID string) error {
	roles, err := r.entityNames(ctx, state)
	if err != nil {
		return err
	}
	for roleID, role := range roles {
		if roleID == excludeRoleID {
			continue
		}
		if domain.NamesEqual(role.Name, name) {
			return apperrors.WithMetadata(apperrors.CodeNameTaken,
				"a faction or alliance already uses this name", map[string]string{"Name": name})
		}
	}
	return nil
}

// validateName runs the full admission pipeline for a new or renamed entity
// name: format, denylist, then global uniqueness.
func (r *Registry) validateName(ctx context.Context, state store.State, raw, excludeRoleID string) (string, error) {
	name, err := domain.NormalizeName(raw)
	if err != nil {
		return "", err
	}
	if err := domain.CheckNameAllowed(name, r.settings.ReservedNames); err != nil {
		return "", err
	}
	if err := r.checkNameFree(ctx, state, name, excludeRoleID); err != nil {
		return "", err
	}
	return name, nil
}
