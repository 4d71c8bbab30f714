package registry

import (
	"context"
	"fmt"

	"github.com/concordia-bot/concordia/internal/directory"
	"github.com/concordia-bot/concordia/internal/guild/approval"
	"github.com/concordia-bot/concordia/internal/guild/domain"
	"github.com/concordia-bot/concordia/internal/guild/store"
	apperrors "github.com/concordia-bot/concordia/internal/platform/errors"
)

// CreateFactionInput carries the caller-supplied attributes of a new faction.
type CreateFactionInput struct {
	Name  string
	Color string
	// Emoji is optional.
	Emoji string
	// InviteOnly gates the join protocol.
	InviteOnly bool
}

// CreateFaction creates a faction for a caller who belongs to nothing yet.
// Directory resources are allocated before the record persists, so a failure
// mid-sequence can orphan resources; a record never references resources that
// were not created first.
func (r *Registry) CreateFaction(ctx context.Context, callerID string, input CreateFactionInput) (domain.Faction, error) {
	ctx, span := r.startSpan(ctx, "CreateFaction")
	defer span.End()

	snap, err := r.store.Load(ctx)
	if err != nil {
		return domain.Faction{}, apperrors.Wrap(apperrors.CodePersistenceFailure, "load registry state", err)
	}

	founder, err := r.isFounder(ctx, callerID)
	if err != nil {
		return domain.Faction{}, err
	}
	if founder {
		return domain.Faction{}, apperrors.New(apperrors.CodeActorAlreadyFounder, "caller already founded a faction")
	}
	if _, member, err := r.memberFaction(ctx, snap.Current, callerID); err != nil {
		return domain.Faction{}, err
	} else if member {
		return domain.Faction{}, apperrors.New(apperrors.CodeActorAlreadyMember, "caller already belongs to a faction")
	}

	name, err := r.validateName(ctx, snap.Current, input.Name, "")
	if err != nil {
		return domain.Faction{}, err
	}
	color, err := domain.NormalizeColor(input.Color)
	if err != nil {
		return domain.Faction{}, err
	}
	emoji, err := domain.NormalizeEmoji(input.Emoji)
	if err != nil {
		return domain.Faction{}, err
	}

	reason := fmt.Sprintf("faction %q created by %s", name, callerID)
	roleID, err := r.dir.CreateRole(ctx, directory.CreateRoleInput{
		Name:   name,
		Color:  color,
		Emoji:  emoji,
		Hoist:  true,
		Reason: reason,
	})
	if err != nil {
		return domain.Faction{}, apperrors.Wrap(apperrors.CodeDirectoryFailure, "create faction role", err)
	}

	categoryID, err := r.dir.CreateCategory(ctx, directory.CreateCategoryInput{
		Name:       name,
		ViewRoleID: roleID,
		Reason:     reason,
	})
	if err != nil {
		return domain.Faction{}, apperrors.Wrap(apperrors.CodeDirectoryFailure, "create faction category", err)
	}

	channelName := domain.ChannelName(name)
	textChannelID, err := r.dir.CreateTextChannel(ctx, directory.CreateChannelInput{
		Name:       channelName,
		CategoryID: categoryID,
		Reason:     reason,
	})
	if err != nil {
		return domain.Faction{}, apperrors.Wrap(apperrors.CodeDirectoryFailure, "create faction text channel", err)
	}
	// The admin channel starts hidden even from the faction role; visibility
	// is what admin status means, granted per subject.
	adminChannelID, err := r.dir.CreateTextChannel(ctx, directory.CreateChannelInput{
		Name:             channelName + "-admin",
		CategoryID:       categoryID,
		HideFromEveryone: true,
		Reason:           reason,
	})
	if err != nil {
		return domain.Faction{}, apperrors.Wrap(apperrors.CodeDirectoryFailure, "create faction admin channel", err)
	}
	voiceChannelID, err := r.dir.CreateVoiceChannel(ctx, directory.CreateChannelInput{
		Name:       channelName + "-vc",
		CategoryID: categoryID,
		Reason:     reason,
	})
	if err != nil {
		return domain.Faction{}, apperrors.Wrap(apperrors.CodeDirectoryFailure, "create faction voice channel", err)
	}

	if err := r.dir.GrantRole(ctx, callerID, roleID); err != nil {
		return domain.Faction{}, apperrors.Wrap(apperrors.CodeDirectoryFailure, "grant faction role", err)
	}
	if err := r.dir.GrantRole(ctx, callerID, r.settings.FounderRoleID); err != nil {
		return domain.Faction{}, apperrors.Wrap(apperrors.CodeDirectoryFailure, "grant founder role", err)
	}
	if err := r.dir.SetChannelPermission(ctx, adminChannelID, callerID, true); err != nil {
		return domain.Faction{}, apperrors.Wrap(apperrors.CodeDirectoryFailure, "grant admin channel access", err)
	}

	faction, err := domain.NewFaction(domain.NewFactionInput{
		RoleID:         roleID,
		CategoryID:     categoryID,
		TextChannelID:  textChannelID,
		VoiceChannelID: voiceChannelID,
		AdminChannelID: adminChannelID,
		IsInviteOnly:   input.InviteOnly,
	}, r.clock, r.idGenerator)
	if err != nil {
		return domain.Faction{}, err
	}

	next := snap.Current.Clone()
	next.UpsertFaction(faction)
	if err := r.save(ctx, next, snap.Revision); err != nil {
		return domain.Faction{}, err
	}

	r.announce(ctx, Event{Kind: EventFactionCreated, EntityName: name, SubjectID: callerID})
	return faction, nil
}

// RenameFaction renames a faction. Admin-only; the new name passes the same
// admission pipeline as creation, excluding the faction's own role.
func (r *Registry) RenameFaction(ctx context.Context, callerID, currentName, newName string) error {
	ctx, span := r.startSpan(ctx, "RenameFaction")
	defer span.End()

	return r.updateFaction(ctx, callerID, currentName, func(snap store.Snapshot, faction domain.Faction) (domain.Faction, error) {
		name, err := r.validateName(ctx, snap.Current, newName, faction.RoleID)
		if err != nil {
			return domain.Faction{}, err
		}
		if err := r.dir.RenameRole(ctx, faction.RoleID, name); err != nil {
			return domain.Faction{}, apperrors.Wrap(apperrors.CodeDirectoryFailure, "rename faction role", err)
		}
		return faction, nil
	})
}

// RecolorFaction changes the faction role color. Admin-only.
func (r *Registry) RecolorFaction(ctx context.Context, callerID, name, rawColor string) error {
	ctx, span := r.startSpan(ctx, "RecolorFaction")
	defer span.End()

	return r.updateFaction(ctx, callerID, name, func(_ store.Snapshot, faction domain.Faction) (domain.Faction, error) {
		color, err := domain.NormalizeColor(rawColor)
		if err != nil {
			return domain.Faction{}, err
		}
		if err := r.dir.RecolorRole(ctx, faction.RoleID, color); err != nil {
			return domain.Faction{}, apperrors.Wrap(apperrors.CodeDirectoryFailure, "recolor faction role", err)
		}
		return faction, nil
	})
}

// SetFactionEmoji changes or clears the faction role emoji. Admin-only.
func (r *Registry) SetFactionEmoji(ctx context.Context, callerID, name, rawEmoji string) error {
	ctx, span := r.startSpan(ctx, "SetFactionEmoji")
	defer span.End()

	return r.updateFaction(ctx, callerID, name, func(_ store.Snapshot, faction domain.Faction) (domain.Faction, error) {
		emoji, err := domain.NormalizeEmoji(rawEmoji)
		if err != nil {
			return domain.Faction{}, err
		}
		if err := r.dir.SetRoleEmoji(ctx, faction.RoleID, emoji); err != nil {
			return domain.Faction{}, apperrors.Wrap(apperrors.CodeDirectoryFailure, "set faction role emoji", err)
		}
		return faction, nil
	})
}

// SetInvitePolicy toggles whether joining requires approval. Admin-only.
func (r *Registry) SetInvitePolicy(ctx context.Context, callerID, name string, inviteOnly bool) error {
	ctx, span := r.startSpan(ctx, "SetInvitePolicy")
	defer span.End()

	return r.updateFaction(ctx, callerID, name, func(_ store.Snapshot, faction domain.Faction) (domain.Faction, error) {
		faction.IsInviteOnly = inviteOnly
		return faction, nil
	})
}

// updateFaction runs an admin-only mutation of one faction record and
// persists the result.
func (r *Registry) updateFaction(ctx context.Context, callerID, name string, mutate func(store.Snapshot, domain.Faction) (domain.Faction, error)) error {
	snap, err := r.store.Load(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.CodePersistenceFailure, "load registry state", err)
	}
	faction, err := r.factionByName(ctx, snap.Current, name)
	if err != nil {
		return err
	}
	admin, err := r.isFactionAdmin(ctx, faction, callerID)
	if err != nil {
		return err
	}
	if !admin {
		return apperrors.New(apperrors.CodeActorNotAdmin, "caller is not a faction admin")
	}

	updated, err := mutate(snap, faction)
	if err != nil {
		return err
	}
	updated.UpdatedAt = r.clock().UTC()

	next := snap.Current.Clone()
	next.UpsertFaction(updated)
	return r.save(ctx, next, snap.Revision)
}

// DeleteFaction destroys the caller's faction. Founder-only. Every alliance
// the faction founded is deleted first, then the faction's directory
// resources, then the record, in one persisted write.
func (r *Registry) DeleteFaction(ctx context.Context, callerID string) error {
	ctx, span := r.startSpan(ctx, "DeleteFaction")
	defer span.End()

	snap, err := r.store.Load(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.CodePersistenceFailure, "load registry state", err)
	}
	faction, member, err := r.memberFaction(ctx, snap.Current, callerID)
	if err != nil {
		return err
	}
	if !member {
		return apperrors.New(apperrors.CodeActorNotMember, "caller does not belong to a faction")
	}
	founder, err := r.isFounderOf(ctx, faction, callerID)
	if err != nil {
		return err
	}
	if !founder {
		return apperrors.New(apperrors.CodeActorNotFounder, "only the founder may delete the faction")
	}

	roles, err := r.entityNames(ctx, snap.Current)
	if err != nil {
		return err
	}
	name := roles[faction.RoleID].Name

	next := snap.Current.Clone()
	for _, alliance := range next.AlliancesFoundedBy(faction.ID) {
		if err := r.deleteAllianceResources(ctx, alliance); err != nil {
			return err
		}
		next.RemoveAlliance(alliance.ID)
	}

	if err := r.deleteCategoryTree(ctx, faction.CategoryID); err != nil {
		return err
	}
	if err := r.dir.DeleteRole(ctx, faction.RoleID); err != nil {
		return apperrors.Wrap(apperrors.CodeDirectoryFailure, "delete faction role", err)
	}
	if err := r.dir.RevokeRole(ctx, callerID, r.settings.FounderRoleID); err != nil {
		return apperrors.Wrap(apperrors.CodeDirectoryFailure, "revoke founder role", err)
	}

	next.RemoveFaction(faction.ID)
	if err := r.save(ctx, next, snap.Revision); err != nil {
		return err
	}

	r.announce(ctx, Event{Kind: EventFactionDeleted, EntityName: name, SubjectID: callerID})
	return nil
}

// JoinOutcome reports how a join request resolved.
type JoinOutcome struct {
	// Joined is true when membership was granted immediately.
	Joined bool
	// Pending holds the approval request when the target requires one.
	Pending approval.Pending
}

// JoinFaction admits the caller to an open faction immediately, or opens a
// pending approval for an invite-only one. Nothing is granted until an
// admin's signal resolves an invite-only join.
func (r *Registry) JoinFaction(ctx context.Context, callerID, name string) (JoinOutcome, error) {
	ctx, span := r.startSpan(ctx, "JoinFaction")
	defer span.End()

	snap, err := r.store.Load(ctx)
	if err != nil {
		return JoinOutcome{}, apperrors.Wrap(apperrors.CodePersistenceFailure, "load registry state", err)
	}
	if err := r.checkMayJoin(ctx, snap.Current, callerID); err != nil {
		return JoinOutcome{}, err
	}
	faction, err := r.factionByName(ctx, snap.Current, name)
	if err != nil {
		return JoinOutcome{}, err
	}

	if !faction.IsInviteOnly {
		if err := r.applyFactionJoin(ctx, faction.ID, callerID); err != nil {
			return JoinOutcome{}, err
		}
		r.announce(ctx, Event{Kind: EventFactionJoined, EntityName: name, SubjectID: callerID})
		return JoinOutcome{Joined: true}, nil
	}

	pending, err := r.approvals.Register(ctx, approval.RegisterInput{
		Kind:        approval.KindFactionJoin,
		RequesterID: callerID,
		TargetID:    faction.ID,
		Authorize: func(ctx context.Context, signalerID string) (bool, error) {
			return r.authorizeFactionJoin(ctx, faction.ID, signalerID)
		},
		Apply: func(ctx context.Context) error {
			if err := r.applyFactionJoin(ctx, faction.ID, callerID); err != nil {
				return err
			}
			r.announce(ctx, Event{Kind: EventFactionJoined, EntityName: name, SubjectID: callerID})
			return nil
		},
	})
	if err != nil {
		return JoinOutcome{}, err
	}
	return JoinOutcome{Pending: pending}, nil
}

// checkMayJoin rejects callers who already belong somewhere.
func (r *Registry) checkMayJoin(ctx context.Context, state store.State, callerID string) error {
	founder, err := r.isFounder(ctx, callerID)
	if err != nil {
		return err
	}
	if founder {
		return apperrors.New(apperrors.CodeActorAlreadyFounder, "caller already founded a faction")
	}
	if _, member, err := r.memberFaction(ctx, state, callerID); err != nil {
		return err
	} else if member {
		return apperrors.New(apperrors.CodeActorAlreadyMember, "caller already belongs to a faction")
	}
	return nil
}

// authorizeFactionJoin re-derives, at signal time, whether the signaler is
// currently an admin of the target faction.
func (r *Registry) authorizeFactionJoin(ctx context.Context, factionID, signalerID string) (bool, error) {
	snap, err := r.store.Load(ctx)
	if err != nil {
		return false, apperrors.Wrap(apperrors.CodePersistenceFailure, "load registry state", err)
	}
	faction, ok := snap.Current.FactionByID(factionID)
	if !ok {
		return false, apperrors.New(apperrors.CodeFactionNotFound, "faction no longer exists")
	}
	return r.isFactionAdmin(ctx, faction, signalerID)
}

// applyFactionJoin grants membership: the faction role plus every alliance
// role the faction currently holds, then a persisted write so the admission
// lands in history. Preconditions are re-validated against fresh state.
func (r *Registry) applyFactionJoin(ctx context.Context, factionID, memberID string) error {
	snap, err := r.store.Load(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.CodePersistenceFailure, "load registry state", err)
	}
	faction, ok := snap.Current.FactionByID(factionID)
	if !ok {
		return apperrors.New(apperrors.CodeFactionNotFound, "faction no longer exists")
	}
	if err := r.checkMayJoin(ctx, snap.Current, memberID); err != nil {
		return err
	}

	if err := r.dir.GrantRole(ctx, memberID, faction.RoleID); err != nil {
		return apperrors.Wrap(apperrors.CodeDirectoryFailure, "grant faction role", err)
	}
	for _, alliance := range snap.Current.AlliancesContaining(faction.ID) {
		if err := r.dir.GrantRole(ctx, memberID, alliance.RoleID); err != nil {
			return apperrors.Wrap(apperrors.CodeDirectoryFailure, "grant alliance role", err)
		}
	}

	faction.UpdatedAt = r.clock().UTC()
	next := snap.Current.Clone()
	next.UpsertFaction(faction)
	return r.save(ctx, next, snap.Revision)
}

// LeaveFaction removes the caller from their faction. Founders cannot leave;
// they delete.
func (r *Registry) LeaveFaction(ctx context.Context, callerID string) error {
	ctx, span := r.startSpan(ctx, "LeaveFaction")
	defer span.End()

	snap, err := r.store.Load(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.CodePersistenceFailure, "load registry state", err)
	}
	faction, member, err := r.memberFaction(ctx, snap.Current, callerID)
	if err != nil {
		return err
	}
	if !member {
		return apperrors.New(apperrors.CodeActorNotMember, "caller does not belong to a faction")
	}
	founder, err := r.isFounderOf(ctx, faction, callerID)
	if err != nil {
		return err
	}
	if founder {
		return apperrors.New(apperrors.CodeTargetIsFounder, "a founder cannot leave; delete the faction instead")
	}

	return r.removeMembership(ctx, snap, faction, callerID, EventFactionLeft)
}

// KickFromFaction removes a target member from the admin's faction. The
// founder cannot be kicked.
func (r *Registry) KickFromFaction(ctx context.Context, adminID, targetID string) error {
	ctx, span := r.startSpan(ctx, "KickFromFaction")
	defer span.End()

	snap, err := r.store.Load(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.CodePersistenceFailure, "load registry state", err)
	}
	faction, member, err := r.memberFaction(ctx, snap.Current, adminID)
	if err != nil {
		return err
	}
	if !member {
		return apperrors.New(apperrors.CodeActorNotMember, "caller does not belong to a faction")
	}
	admin, err := r.isFactionAdmin(ctx, faction, adminID)
	if err != nil {
		return err
	}
	if !admin {
		return apperrors.New(apperrors.CodeActorNotAdmin, "caller is not a faction admin")
	}

	held, err := r.dir.SubjectHasRole(ctx, targetID, faction.RoleID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDirectoryFailure, "check target faction role", err)
	}
	if !held {
		return apperrors.New(apperrors.CodeTargetNotInFaction, "target is not in the faction")
	}
	targetFounder, err := r.isFounderOf(ctx, faction, targetID)
	if err != nil {
		return err
	}
	if targetFounder {
		return apperrors.New(apperrors.CodeTargetIsFounder, "the founder cannot be kicked")
	}

	return r.removeMembership(ctx, snap, faction, targetID, EventFactionLeft)
}

// removeMembership revokes the faction role, admin channel access, and every
// alliance role inherited through the faction, from the target only, then
// persists.
func (r *Registry) removeMembership(ctx context.Context, snap store.Snapshot, faction domain.Faction, targetID string, kind EventKind) error {
	if err := r.dir.RevokeRole(ctx, targetID, faction.RoleID); err != nil {
		return apperrors.Wrap(apperrors.CodeDirectoryFailure, "revoke faction role", err)
	}
	if err := r.dir.SetChannelPermission(ctx, faction.AdminChannelID, targetID, false); err != nil {
		return apperrors.Wrap(apperrors.CodeDirectoryFailure, "revoke admin channel access", err)
	}
	for _, alliance := range snap.Current.AlliancesContaining(faction.ID) {
		if err := r.dir.RevokeRole(ctx, targetID, alliance.RoleID); err != nil {
			return apperrors.Wrap(apperrors.CodeDirectoryFailure, "revoke alliance role", err)
		}
	}

	faction.UpdatedAt = r.clock().UTC()
	next := snap.Current.Clone()
	next.UpsertFaction(faction)
	if err := r.save(ctx, next, snap.Revision); err != nil {
		return err
	}

	roles, err := r.entityNames(ctx, snap.Current)
	if err == nil {
		r.announce(ctx, Event{Kind: kind, EntityName: roles[faction.RoleID].Name, SubjectID: targetID})
	}
	return nil
}

// AddFactionAdmin grants a member admin-channel visibility. Founder-only.
// Admin status lives entirely in the directory; no snapshot write happens.
func (r *Registry) AddFactionAdmin(ctx context.Context, founderID, targetID string) error {
	ctx, span := r.startSpan(ctx, "AddFactionAdmin")
	defer span.End()

	faction, err := r.adminTarget(ctx, founderID, targetID)
	if err != nil {
		return err
	}
	if err := r.dir.SetChannelPermission(ctx, faction.AdminChannelID, targetID, true); err != nil {
		return apperrors.Wrap(apperrors.CodeDirectoryFailure, "grant admin channel access", err)
	}
	return nil
}

// RemoveFactionAdmin revokes a member's admin-channel visibility. Founder-only.
func (r *Registry) RemoveFactionAdmin(ctx context.Context, founderID, targetID string) error {
	ctx, span := r.startSpan(ctx, "RemoveFactionAdmin")
	defer span.End()

	faction, err := r.adminTarget(ctx, founderID, targetID)
	if err != nil {
		return err
	}
	if err := r.dir.SetChannelPermission(ctx, faction.AdminChannelID, targetID, false); err != nil {
		return apperrors.Wrap(apperrors.CodeDirectoryFailure, "revoke admin channel access", err)
	}
	return nil
}

// adminTarget validates a founder-only admin toggle: the caller must found
// the faction, the target must share it and must not be the founder.
func (r *Registry) adminTarget(ctx context.Context, founderID, targetID string) (domain.Faction, error) {
	snap, err := r.store.Load(ctx)
	if err != nil {
		return domain.Faction{}, apperrors.Wrap(apperrors.CodePersistenceFailure, "load registry state", err)
	}
	faction, member, err := r.memberFaction(ctx, snap.Current, founderID)
	if err != nil {
		return domain.Faction{}, err
	}
	if !member {
		return domain.Faction{}, apperrors.New(apperrors.CodeActorNotMember, "caller does not belong to a faction")
	}
	founder, err := r.isFounderOf(ctx, faction, founderID)
	if err != nil {
		return domain.Faction{}, err
	}
	if !founder {
		return domain.Faction{}, apperrors.New(apperrors.CodeActorNotFounder, "only the founder manages admins")
	}

	held, err := r.dir.SubjectHasRole(ctx, targetID, faction.RoleID)
	if err != nil {
		return domain.Faction{}, apperrors.Wrap(apperrors.CodeDirectoryFailure, "check target faction role", err)
	}
	if !held {
		return domain.Faction{}, apperrors.New(apperrors.CodeTargetNotInFaction, "target is not in the faction")
	}
	if targetID == founderID {
		return domain.Faction{}, apperrors.New(apperrors.CodeTargetIsFounder, "the founder's access is not adjustable")
	}
	return faction, nil
}

// FactionInfo is a read-model row for listings.
type FactionInfo struct {
	Faction domain.Faction
	// Name is the live directory role name.
	Name string
	// MemberCount is the current holder count of the faction role.
	MemberCount int
}

// ListFactions returns the current factions with their live names and member
// counts.
func (r *Registry) ListFactions(ctx context.Context) ([]FactionInfo, error) {
	ctx, span := r.startSpan(ctx, "ListFactions")
	defer span.End()

	snap, err := r.store.Load(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistenceFailure, "load registry state", err)
	}
	roles, err := r.entityNames(ctx, snap.Current)
	if err != nil {
		return nil, err
	}

	infos := make([]FactionInfo, 0, len(snap.Current.Factions))
	for _, faction := range snap.Current.Factions {
		holders, err := r.dir.SubjectsHoldingRole(ctx, faction.RoleID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeDirectoryFailure, "count faction members", err)
		}
		infos = append(infos, FactionInfo{
			Faction:     faction,
			Name:        roles[faction.RoleID].Name,
			MemberCount: len(holders),
		})
	}
	return infos, nil
}

// deleteCategoryTree deletes every channel under a category, then the
// category itself.
func (r *Registry) deleteCategoryTree(ctx context.Context, categoryID string) error {
	channels, err := r.dir.ChannelsUnderCategory(ctx, categoryID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDirectoryFailure, "list category channels", err)
	}
	for _, channelID := range channels {
		if err := r.dir.DeleteChannel(ctx, channelID); err != nil {
			return apperrors.Wrap(apperrors.CodeDirectoryFailure, "delete channel", err)
		}
	}
	if err := r.dir.DeleteChannel(ctx, categoryID); err != nil {
		return apperrors.Wrap(apperrors.CodeDirectoryFailure, "delete category", err)
	}
	return nil
}
