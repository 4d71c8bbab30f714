package registry

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/concordia-bot/concordia/internal/directory/directorytest"
	"github.com/concordia-bot/concordia/internal/guild/approval"
	"github.com/concordia-bot/concordia/internal/guild/domain"
	"github.com/concordia-bot/concordia/internal/guild/store/file"
	apperrors "github.com/concordia-bot/concordia/internal/platform/errors"
)

type fixture struct {
	t             *testing.T
	reg           *Registry
	dir           *directorytest.Fake
	store         *file.Store
	approvals     *approval.Engine
	founderRoleID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := directorytest.New()
	founderRoleID := dir.AddRole("Founder")

	st, err := file.Open(filepath.Join(t.TempDir(), "registry.json"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	approvals := approval.NewEngine(nil)

	reg, err := New(dir, st, approvals, nil, Settings{
		FounderRoleID: founderRoleID,
		ReservedNames: []string{"admin", "everyone"},
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	reg.clock = func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	seq := 0
	reg.idGenerator = func() (string, error) {
		seq++
		return fmt.Sprintf("id-%d", seq), nil
	}

	return &fixture{
		t:             t,
		reg:           reg,
		dir:           dir,
		store:         st,
		approvals:     approvals,
		founderRoleID: founderRoleID,
	}
}

func (f *fixture) createFaction(callerID, name string, inviteOnly bool) domain.Faction {
	f.t.Helper()
	faction, err := f.reg.CreateFaction(context.Background(), callerID, CreateFactionInput{
		Name:       name,
		Color:      "red",
		InviteOnly: inviteOnly,
	})
	if err != nil {
		f.t.Fatalf("create faction %q: %v", name, err)
	}
	return faction
}

func (f *fixture) revision() uint64 {
	f.t.Helper()
	snap, err := f.store.Load(context.Background())
	if err != nil {
		f.t.Fatalf("load snapshot: %v", err)
	}
	return snap.Revision
}

func TestCreateFaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	faction := f.createFaction("founder-1", "Atlas", false)

	role, ok := f.dir.Roles[faction.RoleID]
	if !ok || role.Name != "Atlas" || role.Color != "#ed4245" {
		t.Fatalf("expected Atlas role with resolved palette color, got %+v", role)
	}
	if !f.dir.Holders[faction.RoleID]["founder-1"] {
		t.Fatal("expected caller to hold the faction role")
	}
	if !f.dir.Holders[f.founderRoleID]["founder-1"] {
		t.Fatal("expected caller to hold the founder role")
	}
	if !f.dir.View[faction.AdminChannelID]["founder-1"] {
		t.Fatal("expected caller to see the admin channel")
	}

	admin := f.dir.Channels[faction.AdminChannelID]
	if !admin.HiddenFromEveryone || admin.Name != "atlas-admin" {
		t.Fatalf("expected hidden atlas-admin channel, got %+v", admin)
	}
	if f.dir.Channels[faction.TextChannelID].Name != "atlas" {
		t.Fatal("expected text channel named after the faction")
	}
	if f.dir.Channels[faction.VoiceChannelID].Name != "atlas-vc" {
		t.Fatal("expected voice channel suffixed -vc")
	}

	snap, err := f.store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.Revision != 1 || len(snap.Historic) != 1 {
		t.Fatalf("expected one persisted write, got revision %d history %d", snap.Revision, len(snap.Historic))
	}
	if _, ok := snap.Current.FactionByID(faction.ID); !ok {
		t.Fatal("expected faction record persisted")
	}
}

func TestCreateFactionRejectsDuplicateNameCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createFaction("founder-1", "Red Dawn", false)
	rolesBefore := f.dir.CallCount("CreateRole")
	revisionBefore := f.revision()

	_, err := f.reg.CreateFaction(ctx, "caller-2", CreateFactionInput{Name: "red dawn", Color: "blue"})
	if apperrors.CodeOf(err) != apperrors.CodeNameTaken {
		t.Fatalf("expected name taken, got %v", err)
	}
	if f.dir.CallCount("CreateRole") != rolesBefore {
		t.Fatal("expected no directory resources created for rejected name")
	}
	if f.revision() != revisionBefore {
		t.Fatal("expected no persistence write for rejected name")
	}
}

func TestCreateFactionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreateFactionInput
		code  apperrors.Code
	}{
		{"empty name", CreateFactionInput{Name: "  ", Color: "red"}, apperrors.CodeNameInvalid},
		{"doubled spaces", CreateFactionInput{Name: "bad  name", Color: "red"}, apperrors.CodeNameInvalid},
		{"reserved name", CreateFactionInput{Name: "Admin", Color: "red"}, apperrors.CodeNameReserved},
		{"bad color", CreateFactionInput{Name: "Atlas", Color: "sparkle"}, apperrors.CodeColorInvalid},
		{"ascii emoji", CreateFactionInput{Name: "Atlas", Color: "red", Emoji: ":)"}, apperrors.CodeEmojiInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.reg.CreateFaction(ctx, "caller-1", tt.input)
			if apperrors.CodeOf(err) != tt.code {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestCreateFactionRejectsExistingAffiliation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	faction := f.createFaction("founder-1", "Atlas", false)

	_, err := f.reg.CreateFaction(ctx, "founder-1", CreateFactionInput{Name: "Borg", Color: "blue"})
	if apperrors.CodeOf(err) != apperrors.CodeActorAlreadyFounder {
		t.Fatalf("expected already founder, got %v", err)
	}

	f.dir.Grant("member-1", faction.RoleID)
	_, err = f.reg.CreateFaction(ctx, "member-1", CreateFactionInput{Name: "Borg", Color: "blue"})
	if apperrors.CodeOf(err) != apperrors.CodeActorAlreadyMember {
		t.Fatalf("expected already member, got %v", err)
	}
}

func TestJoinOpenFactionGrantsFactionAndAllianceRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	faction := f.createFaction("founder-1", "Atlas", false)
	alliance, err := f.reg.CreateAlliance(ctx, "founder-1", "Pact")
	if err != nil {
		t.Fatalf("create alliance: %v", err)
	}
	revisionBefore := f.revision()

	outcome, err := f.reg.JoinFaction(ctx, "member-1", "Atlas")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if !outcome.Joined {
		t.Fatalf("expected immediate join, got %+v", outcome)
	}
	if !f.dir.Holders[faction.RoleID]["member-1"] {
		t.Fatal("expected member to hold the faction role")
	}
	if !f.dir.Holders[alliance.RoleID]["member-1"] {
		t.Fatal("expected member to inherit the alliance role")
	}
	if f.revision() != revisionBefore+1 {
		t.Fatal("expected exactly one persisted write for the join")
	}
}

func TestJoinInviteOnlyFactionRequiresApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	faction := f.createFaction("founder-1", "Atlas", true)
	grantsBefore := f.dir.CallCount("GrantRole")
	revisionBefore := f.revision()

	outcome, err := f.reg.JoinFaction(ctx, "member-1", "Atlas")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if outcome.Joined || outcome.Pending.ID == "" {
		t.Fatalf("expected pending approval, got %+v", outcome)
	}
	if outcome.Pending.Kind != approval.KindFactionJoin {
		t.Fatalf("expected faction join kind, got %v", outcome.Pending.Kind)
	}
	if f.dir.CallCount("GrantRole") != grantsBefore || f.revision() != revisionBefore {
		t.Fatal("expected nothing granted or persisted before approval")
	}

	// A stranger's signal is a no-op.
	signal, err := f.approvals.Signal(ctx, outcome.Pending.ID, "stranger", "")
	if err != nil {
		t.Fatalf("stranger signal: %v", err)
	}
	if signal.Applied {
		t.Fatal("expected stranger signal not to apply")
	}

	// The founder can see the admin channel and therefore approves.
	signal, err = f.approvals.Signal(ctx, outcome.Pending.ID, "founder-1", "")
	if err != nil {
		t.Fatalf("admin signal: %v", err)
	}
	if !signal.Applied {
		t.Fatal("expected admin signal to apply")
	}
	if !f.dir.Holders[faction.RoleID]["member-1"] {
		t.Fatal("expected approved member to hold the faction role")
	}
	if f.revision() != revisionBefore+1 {
		t.Fatal("expected exactly one persisted write on approval")
	}

	// A second identical signal has no further effect.
	signal, err = f.approvals.Signal(ctx, outcome.Pending.ID, "founder-1", "")
	if err != nil {
		t.Fatalf("second signal: %v", err)
	}
	if signal.Applied {
		t.Fatal("expected second signal to no-op")
	}
	if f.revision() != revisionBefore+1 {
		t.Fatal("expected no further history entries after duplicate signal")
	}
}

func TestLeaveFactionRevokesInheritedRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	faction := f.createFaction("founder-1", "Atlas", false)
	alliance, err := f.reg.CreateAlliance(ctx, "founder-1", "Pact")
	if err != nil {
		t.Fatalf("create alliance: %v", err)
	}
	if _, err := f.reg.JoinFaction(ctx, "member-1", "Atlas"); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := f.reg.LeaveFaction(ctx, "member-1"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if f.dir.Holders[faction.RoleID]["member-1"] {
		t.Fatal("expected faction role revoked")
	}
	if f.dir.Holders[alliance.RoleID]["member-1"] {
		t.Fatal("expected inherited alliance role revoked")
	}
	// Other members keep their alliance role.
	if !f.dir.Holders[alliance.RoleID]["founder-1"] {
		t.Fatal("expected founder to keep the alliance role")
	}
}

func TestFounderCannotLeaveOrBeKicked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createFaction("founder-1", "Atlas", false)
	if _, err := f.reg.JoinFaction(ctx, "member-1", "Atlas"); err != nil {
		t.Fatalf("join: %v", err)
	}
	// Promote the member to admin so it can attempt the kick.
	if err := f.reg.AddFactionAdmin(ctx, "founder-1", "member-1"); err != nil {
		t.Fatalf("add admin: %v", err)
	}

	if err := f.reg.LeaveFaction(ctx, "founder-1"); apperrors.CodeOf(err) != apperrors.CodeTargetIsFounder {
		t.Fatalf("expected founder leave rejection, got %v", err)
	}
	if err := f.reg.KickFromFaction(ctx, "member-1", "founder-1"); apperrors.CodeOf(err) != apperrors.CodeTargetIsFounder {
		t.Fatalf("expected founder kick rejection, got %v", err)
	}
}

func TestKickFromFaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	faction := f.createFaction("founder-1", "Atlas", false)
	if _, err := f.reg.JoinFaction(ctx, "member-1", "Atlas"); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := f.reg.KickFromFaction(ctx, "member-1", "founder-1"); apperrors.CodeOf(err) != apperrors.CodeActorNotAdmin {
		t.Fatalf("expected non-admin kick rejection, got %v", err)
	}
	if err := f.reg.KickFromFaction(ctx, "founder-1", "outsider"); apperrors.CodeOf(err) != apperrors.CodeTargetNotInFaction {
		t.Fatalf("expected outsider kick rejection, got %v", err)
	}

	if err := f.reg.KickFromFaction(ctx, "founder-1", "member-1"); err != nil {
		t.Fatalf("kick: %v", err)
	}
	if f.dir.Holders[faction.RoleID]["member-1"] {
		t.Fatal("expected kicked member to lose the faction role")
	}
}

func TestFactionAdminToggle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	faction := f.createFaction("founder-1", "Atlas", false)
	if _, err := f.reg.JoinFaction(ctx, "member-1", "Atlas"); err != nil {
		t.Fatalf("join: %v", err)
	}
	revisionBefore := f.revision()

	if err := f.reg.AddFactionAdmin(ctx, "member-1", "member-1"); apperrors.CodeOf(err) != apperrors.CodeActorNotFounder {
		t.Fatalf("expected non-founder rejection, got %v", err)
	}
	if err := f.reg.AddFactionAdmin(ctx, "founder-1", "founder-1"); apperrors.CodeOf(err) != apperrors.CodeTargetIsFounder {
		t.Fatalf("expected founder target rejection, got %v", err)
	}

	if err := f.reg.AddFactionAdmin(ctx, "founder-1", "member-1"); err != nil {
		t.Fatalf("add admin: %v", err)
	}
	if !f.dir.View[faction.AdminChannelID]["member-1"] {
		t.Fatal("expected member to gain admin channel access")
	}
	if err := f.reg.RemoveFactionAdmin(ctx, "founder-1", "member-1"); err != nil {
		t.Fatalf("remove admin: %v", err)
	}
	if f.dir.View[faction.AdminChannelID]["member-1"] {
		t.Fatal("expected member to lose admin channel access")
	}

	// Admin toggles touch only the directory.
	if f.revision() != revisionBefore {
		t.Fatal("expected no persistence writes for admin toggles")
	}
}

func TestUpdateFactionOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	faction := f.createFaction("founder-1", "Atlas", false)

	if err := f.reg.RenameFaction(ctx, "founder-1", "Atlas", "Titan"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if f.dir.Roles[faction.RoleID].Name != "Titan" {
		t.Fatal("expected role renamed")
	}
	if err := f.reg.RecolorFaction(ctx, "founder-1", "Titan", "#123abc"); err != nil {
		t.Fatalf("recolor: %v", err)
	}
	if f.dir.Roles[faction.RoleID].Color != "#123abc" {
		t.Fatal("expected role recolored")
	}
	if err := f.reg.SetFactionEmoji(ctx, "founder-1", "Titan", "🔥"); err != nil {
		t.Fatalf("set emoji: %v", err)
	}
	if f.dir.Roles[faction.RoleID].Emoji != "🔥" {
		t.Fatal("expected role emoji set")
	}
	if err := f.reg.SetInvitePolicy(ctx, "founder-1", "Titan", true); err != nil {
		t.Fatalf("set invite policy: %v", err)
	}

	snap, err := f.store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	updated, ok := snap.Current.FactionByID(faction.ID)
	if !ok || !updated.IsInviteOnly {
		t.Fatal("expected invite policy persisted")
	}

	// A non-admin cannot mutate the faction.
	if err := f.reg.RenameFaction(ctx, "stranger", "Titan", "Other"); apperrors.CodeOf(err) != apperrors.CodeActorNotAdmin {
		t.Fatalf("expected non-admin rejection, got %v", err)
	}
}

func TestDeleteFactionCascadesFoundedAlliances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	faction := f.createFaction("founder-1", "Atlas", false)
	alliance, err := f.reg.CreateAlliance(ctx, "founder-1", "Pact")
	if err != nil {
		t.Fatalf("create alliance: %v", err)
	}

	if err := f.reg.DeleteFaction(ctx, "founder-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, ok := f.dir.Roles[faction.RoleID]; ok {
		t.Fatal("expected faction role deleted")
	}
	if _, ok := f.dir.Roles[alliance.RoleID]; ok {
		t.Fatal("expected cascaded alliance role deleted")
	}
	if _, ok := f.dir.Channels[faction.CategoryID]; ok {
		t.Fatal("expected faction category deleted")
	}
	if _, ok := f.dir.Channels[alliance.CategoryID]; ok {
		t.Fatal("expected alliance category deleted")
	}
	if f.dir.Holders[f.founderRoleID]["founder-1"] {
		t.Fatal("expected founder role revoked")
	}

	snap, err := f.store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Current.Factions) != 0 || len(snap.Current.Alliances) != 0 {
		t.Fatalf("expected empty registry, got %+v", snap.Current)
	}
	for _, remaining := range snap.Current.Alliances {
		if remaining.FoundingFactionID == faction.ID {
			t.Fatal("expected no alliance to reference the deleted faction")
		}
	}
}

func TestDeleteFactionFounderOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createFaction("founder-1", "Atlas", false)
	if _, err := f.reg.JoinFaction(ctx, "member-1", "Atlas"); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := f.reg.DeleteFaction(ctx, "member-1"); apperrors.CodeOf(err) != apperrors.CodeActorNotFounder {
		t.Fatalf("expected founder-only rejection, got %v", err)
	}
	if err := f.reg.DeleteFaction(ctx, "stranger"); apperrors.CodeOf(err) != apperrors.CodeActorNotMember {
		t.Fatalf("expected non-member rejection, got %v", err)
	}
}

func TestListFactions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createFaction("founder-1", "Atlas", false)
	f.createFaction("founder-2", "Borg", true)
	if _, err := f.reg.JoinFaction(ctx, "member-1", "Atlas"); err != nil {
		t.Fatalf("join: %v", err)
	}

	infos, err := f.reg.ListFactions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected two factions, got %d", len(infos))
	}
	byName := map[string]FactionInfo{}
	for _, info := range infos {
		byName[info.Name] = info
	}
	if byName["Atlas"].MemberCount != 2 {
		t.Fatalf("expected Atlas with two members, got %+v", byName["Atlas"])
	}
	if byName["Borg"].MemberCount != 1 || !byName["Borg"].Faction.IsInviteOnly {
		t.Fatalf("expected invite-only Borg with one member, got %+v", byName["Borg"])
	}
}
