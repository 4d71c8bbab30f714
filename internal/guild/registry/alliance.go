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

// CreateAlliance founds an alliance for the caller's faction. Every current
// member of the founding faction receives the alliance role. The founder cap
// is a soft anti-spam heuristic: a faction may found no more alliances than
// it has members.
func (r *Registry) CreateAlliance(ctx context.Context, callerID, rawName string) (domain.Alliance, error) {
	ctx, span := r.startSpan(ctx, "CreateAlliance")
	defer span.End()

	snap, err := r.store.Load(ctx)
	if err != nil {
		return domain.Alliance{}, apperrors.Wrap(apperrors.CodePersistenceFailure, "load registry state", err)
	}
	faction, err := r.callerFoundedFaction(ctx, snap.Current, callerID)
	if err != nil {
		return domain.Alliance{}, err
	}

	members, err := r.dir.SubjectsHoldingRole(ctx, faction.RoleID)
	if err != nil {
		return domain.Alliance{}, apperrors.Wrap(apperrors.CodeDirectoryFailure, "list faction members", err)
	}
	if len(snap.Current.AlliancesFoundedBy(faction.ID)) >= len(members) {
		return domain.Alliance{}, apperrors.WithMetadata(apperrors.CodeAllianceCapExceeded,
			"faction already founded as many alliances as it has members",
			map[string]string{"Members": fmt.Sprint(len(members))})
	}

	name, err := r.validateName(ctx, snap.Current, rawName, "")
	if err != nil {
		return domain.Alliance{}, err
	}

	reason := fmt.Sprintf("alliance %q founded by %s", name, callerID)
	roleID, err := r.dir.CreateRole(ctx, directory.CreateRoleInput{
		Name:   name,
		Reason: reason,
	})
	if err != nil {
		return domain.Alliance{}, apperrors.Wrap(apperrors.CodeDirectoryFailure, "create alliance role", err)
	}
	categoryID, err := r.dir.CreateCategory(ctx, directory.CreateCategoryInput{
		Name:       name,
		ViewRoleID: roleID,
		Reason:     reason,
	})
	if err != nil {
		return domain.Alliance{}, apperrors.Wrap(apperrors.CodeDirectoryFailure, "create alliance category", err)
	}
	channelName := domain.ChannelName(name)
	textChannelID, err := r.dir.CreateTextChannel(ctx, directory.CreateChannelInput{
		Name:       channelName,
		CategoryID: categoryID,
		Reason:     reason,
	})
	if err != nil {
		return domain.Alliance{}, apperrors.Wrap(apperrors.CodeDirectoryFailure, "create alliance text channel", err)
	}
	voiceChannelID, err := r.dir.CreateVoiceChannel(ctx, directory.CreateChannelInput{
		Name:       channelName + "-vc",
		CategoryID: categoryID,
		Reason:     reason,
	})
	if err != nil {
		return domain.Alliance{}, apperrors.Wrap(apperrors.CodeDirectoryFailure, "create alliance voice channel", err)
	}

	for _, memberID := range members {
		if err := r.dir.GrantRole(ctx, memberID, roleID); err != nil {
			return domain.Alliance{}, apperrors.Wrap(apperrors.CodeDirectoryFailure, "grant alliance role", err)
		}
	}

	alliance, err := domain.NewAlliance(domain.NewAllianceInput{
		RoleID:            roleID,
		CategoryID:        categoryID,
		TextChannelID:     textChannelID,
		VoiceChannelID:    voiceChannelID,
		FoundingFactionID: faction.ID,
	}, r.clock, r.idGenerator)
	if err != nil {
		return domain.Alliance{}, err
	}

	next := snap.Current.Clone()
	next.UpsertAlliance(alliance)
	if err := r.save(ctx, next, snap.Revision); err != nil {
		return domain.Alliance{}, err
	}

	r.announce(ctx, Event{Kind: EventAllianceCreated, EntityName: name, SubjectID: faction.ID})
	return alliance, nil
}

// JoinAlliance opens a pending approval for the caller's faction to join an
// alliance. Only the founder of the alliance's founding faction may accept.
func (r *Registry) JoinAlliance(ctx context.Context, callerID, name string) (JoinOutcome, error) {
	ctx, span := r.startSpan(ctx, "JoinAlliance")
	defer span.End()

	snap, err := r.store.Load(ctx)
	if err != nil {
		return JoinOutcome{}, apperrors.Wrap(apperrors.CodePersistenceFailure, "load registry state", err)
	}
	faction, err := r.callerFoundedFaction(ctx, snap.Current, callerID)
	if err != nil {
		return JoinOutcome{}, err
	}
	alliance, err := r.allianceByName(ctx, snap.Current, name)
	if err != nil {
		return JoinOutcome{}, err
	}
	if alliance.HasMember(faction.ID) {
		return JoinOutcome{}, apperrors.New(apperrors.CodeFactionAlreadyInAlliance, "faction is already in the alliance")
	}

	pending, err := r.approvals.Register(ctx, approval.RegisterInput{
		Kind:        approval.KindAllianceJoin,
		RequesterID: faction.ID,
		TargetID:    alliance.ID,
		Authorize: func(ctx context.Context, signalerID string) (bool, error) {
			return r.authorizeAllianceJoin(ctx, alliance.ID, signalerID)
		},
		Apply: func(ctx context.Context) error {
			if err := r.applyAllianceJoin(ctx, alliance.ID, faction.ID); err != nil {
				return err
			}
			r.announce(ctx, Event{Kind: EventAllianceJoined, EntityName: name, SubjectID: faction.ID})
			return nil
		},
	})
	if err != nil {
		return JoinOutcome{}, err
	}
	return JoinOutcome{Pending: pending}, nil
}

// authorizeAllianceJoin re-derives, at signal time, whether the signaler is
// the founder of the alliance's founding faction.
func (r *Registry) authorizeAllianceJoin(ctx context.Context, allianceID, signalerID string) (bool, error) {
	snap, err := r.store.Load(ctx)
	if err != nil {
		return false, apperrors.Wrap(apperrors.CodePersistenceFailure, "load registry state", err)
	}
	alliance, ok := snap.Current.AllianceByID(allianceID)
	if !ok {
		return false, apperrors.New(apperrors.CodeAllianceNotFound, "alliance no longer exists")
	}
	founding, ok := snap.Current.FactionByID(alliance.FoundingFactionID)
	if !ok {
		return false, apperrors.New(apperrors.CodeFactionNotFound, "founding faction no longer exists")
	}
	return r.isFounderOf(ctx, founding, signalerID)
}

// applyAllianceJoin admits a faction into an alliance: the record gains the
// member, every current member of the joining faction gains the alliance
// role, and the write persists. Preconditions are re-checked against fresh
// state.
func (r *Registry) applyAllianceJoin(ctx context.Context, allianceID, factionID string) error {
	snap, err := r.store.Load(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.CodePersistenceFailure, "load registry state", err)
	}
	alliance, ok := snap.Current.AllianceByID(allianceID)
	if !ok {
		return apperrors.New(apperrors.CodeAllianceNotFound, "alliance no longer exists")
	}
	faction, ok := snap.Current.FactionByID(factionID)
	if !ok {
		return apperrors.New(apperrors.CodeFactionNotFound, "faction no longer exists")
	}
	if alliance.HasMember(faction.ID) {
		return apperrors.New(apperrors.CodeFactionAlreadyInAlliance, "faction is already in the alliance")
	}

	members, err := r.dir.SubjectsHoldingRole(ctx, faction.RoleID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDirectoryFailure, "list faction members", err)
	}
	for _, memberID := range members {
		if err := r.dir.GrantRole(ctx, memberID, alliance.RoleID); err != nil {
			return apperrors.Wrap(apperrors.CodeDirectoryFailure, "grant alliance role", err)
		}
	}

	alliance.AddMember(faction.ID)
	alliance.UpdatedAt = r.clock().UTC()
	next := snap.Current.Clone()
	next.UpsertAlliance(alliance)
	return r.save(ctx, next, snap.Revision)
}

// LeaveAlliance withdraws the caller's faction from an alliance. The
// founding faction cannot leave its own alliance.
func (r *Registry) LeaveAlliance(ctx context.Context, callerID, name string) error {
	ctx, span := r.startSpan(ctx, "LeaveAlliance")
	defer span.End()

	snap, err := r.store.Load(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.CodePersistenceFailure, "load registry state", err)
	}
	faction, err := r.callerFoundedFaction(ctx, snap.Current, callerID)
	if err != nil {
		return err
	}
	alliance, err := r.allianceByName(ctx, snap.Current, name)
	if err != nil {
		return err
	}
	return r.removeAllianceMember(ctx, snap, alliance, faction, name)
}

// KickFactionFromAlliance removes a member faction. Only the founding
// faction's founder may act, and the founding faction itself is protected.
func (r *Registry) KickFactionFromAlliance(ctx context.Context, callerID, allianceName, factionName string) error {
	ctx, span := r.startSpan(ctx, "KickFactionFromAlliance")
	defer span.End()

	snap, err := r.store.Load(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.CodePersistenceFailure, "load registry state", err)
	}
	alliance, err := r.allianceByName(ctx, snap.Current, allianceName)
	if err != nil {
		return err
	}
	if err := r.checkFoundingFounder(ctx, snap.Current, alliance, callerID); err != nil {
		return err
	}
	target, err := r.factionByName(ctx, snap.Current, factionName)
	if err != nil {
		return err
	}
	return r.removeAllianceMember(ctx, snap, alliance, target, allianceName)
}

// removeAllianceMember takes a faction out of an alliance and revokes the
// alliance role from every member of that faction only.
func (r *Registry) removeAllianceMember(ctx context.Context, snap store.Snapshot, alliance domain.Alliance, faction domain.Faction, allianceName string) error {
	if faction.ID == alliance.FoundingFactionID {
		return apperrors.New(apperrors.CodeFoundingFactionProtected, "the founding faction cannot be removed")
	}
	if !alliance.HasMember(faction.ID) {
		return apperrors.New(apperrors.CodeFactionNotInAlliance, "faction is not in the alliance")
	}

	members, err := r.dir.SubjectsHoldingRole(ctx, faction.RoleID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDirectoryFailure, "list faction members", err)
	}
	for _, memberID := range members {
		if err := r.dir.RevokeRole(ctx, memberID, alliance.RoleID); err != nil {
			return apperrors.Wrap(apperrors.CodeDirectoryFailure, "revoke alliance role", err)
		}
	}

	alliance.RemoveMember(faction.ID)
	alliance.UpdatedAt = r.clock().UTC()
	next := snap.Current.Clone()
	next.UpsertAlliance(alliance)
	if err := r.save(ctx, next, snap.Revision); err != nil {
		return err
	}

	r.announce(ctx, Event{Kind: EventAllianceLeft, EntityName: allianceName, SubjectID: faction.ID})
	return nil
}

// DeleteAlliance destroys an alliance. Only the founding faction's founder
// may act. Deleting the alliance role removes it from every holder by
// construction; no per-member revocation is needed.
func (r *Registry) DeleteAlliance(ctx context.Context, callerID, name string) error {
	ctx, span := r.startSpan(ctx, "DeleteAlliance")
	defer span.End()

	snap, err := r.store.Load(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.CodePersistenceFailure, "load registry state", err)
	}
	alliance, err := r.allianceByName(ctx, snap.Current, name)
	if err != nil {
		return err
	}
	if err := r.checkFoundingFounder(ctx, snap.Current, alliance, callerID); err != nil {
		return err
	}

	if err := r.deleteAllianceResources(ctx, alliance); err != nil {
		return err
	}

	next := snap.Current.Clone()
	next.RemoveAlliance(alliance.ID)
	if err := r.save(ctx, next, snap.Revision); err != nil {
		return err
	}

	r.announce(ctx, Event{Kind: EventAllianceDeleted, EntityName: name, SubjectID: alliance.FoundingFactionID})
	return nil
}

// deleteAllianceResources removes an alliance's directory footprint. Also
// used by the faction-delete cascade.
func (r *Registry) deleteAllianceResources(ctx context.Context, alliance domain.Alliance) error {
	if err := r.deleteCategoryTree(ctx, alliance.CategoryID); err != nil {
		return err
	}
	if err := r.dir.DeleteRole(ctx, alliance.RoleID); err != nil {
		return apperrors.Wrap(apperrors.CodeDirectoryFailure, "delete alliance role", err)
	}
	return nil
}

// checkFoundingFounder rejects callers who do not found the alliance's
// founding faction.
func (r *Registry) checkFoundingFounder(ctx context.Context, state store.State, alliance domain.Alliance, callerID string) error {
	founding, ok := state.FactionByID(alliance.FoundingFactionID)
	if !ok {
		return apperrors.New(apperrors.CodeFactionNotFound, "founding faction no longer exists")
	}
	founder, err := r.isFounderOf(ctx, founding, callerID)
	if err != nil {
		return err
	}
	if !founder {
		return apperrors.New(apperrors.CodeActorNotFounder, "only the founding faction's founder may act on the alliance")
	}
	return nil
}

// callerFoundedFaction resolves the caller's faction and requires founder
// status within it.
func (r *Registry) callerFoundedFaction(ctx context.Context, state store.State, callerID string) (domain.Faction, error) {
	faction, member, err := r.memberFaction(ctx, state, callerID)
	if err != nil {
		return domain.Faction{}, err
	}
	if !member {
		return domain.Faction{}, apperrors.New(apperrors.CodeActorNotMember, "caller does not belong to a faction")
	}
	founder, err := r.isFounderOf(ctx, faction, callerID)
	if err != nil {
		return domain.Faction{}, err
	}
	if !founder {
		return domain.Faction{}, apperrors.New(apperrors.CodeActorNotFounder, "caller is not the faction founder")
	}
	return faction, nil
}

// AllianceInfo is a read-model row for listings.
type AllianceInfo struct {
	Alliance domain.Alliance
	// Name is the live directory role name.
	Name string
	// MemberFactions counts current member factions.
	MemberFactions int
}

// ListAlliances returns the current alliances with their live names.
func (r *Registry) ListAlliances(ctx context.Context) ([]AllianceInfo, error) {
	ctx, span := r.startSpan(ctx, "ListAlliances")
	defer span.End()

	snap, err := r.store.Load(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistenceFailure, "load registry state", err)
	}
	roles, err := r.entityNames(ctx, snap.Current)
	if err != nil {
		return nil, err
	}

	infos := make([]AllianceInfo, 0, len(snap.Current.Alliances))
	for _, alliance := range snap.Current.Alliances {
		infos = append(infos, AllianceInfo{
			Alliance:       alliance,
			Name:           roles[alliance.RoleID].Name,
			MemberFactions: len(alliance.MemberFactionIDs),
		})
	}
	return infos, nil
}
