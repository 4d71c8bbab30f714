package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/concordia-bot/concordia/internal/platform/id"
)

// Alliance represents a pact among factions. FoundingFactionID is permanent;
// MemberFactionIDs always contains it while the alliance exists.
type Alliance struct {
	ID                string    `json:"id"`
	RoleID            string    `json:"role"`
	CategoryID        string    `json:"channelCategory"`
	TextChannelID     string    `json:"textChannel"`
	VoiceChannelID    string    `json:"voiceChannel"`
	FoundingFactionID string    `json:"foundingFaction"`
	MemberFactionIDs  []string  `json:"factions"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// NewAllianceInput carries the directory resources allocated for an alliance.
type NewAllianceInput struct {
	RoleID            string
	CategoryID        string
	TextChannelID     string
	VoiceChannelID    string
	FoundingFactionID string
}

// NewAlliance creates an alliance record with a generated ID and timestamps.
// The founding faction is its first member.
func NewAlliance(input NewAllianceInput, now func() time.Time, idGenerator func() (string, error)) (Alliance, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := normalizeNewAllianceInput(input)
	if err != nil {
		return Alliance{}, err
	}

	allianceID, err := idGenerator()
	if err != nil {
		return Alliance{}, fmt.Errorf("generate alliance id: %w", err)
	}

	createdAt := now().UTC()
	return Alliance{
		ID:                allianceID,
		RoleID:            normalized.RoleID,
		CategoryID:        normalized.CategoryID,
		TextChannelID:     normalized.TextChannelID,
		VoiceChannelID:    normalized.VoiceChannelID,
		FoundingFactionID: normalized.FoundingFactionID,
		MemberFactionIDs:  []string{normalized.FoundingFactionID},
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}, nil
}

func normalizeNewAllianceInput(input NewAllianceInput) (NewAllianceInput, error) {
	input.RoleID = strings.TrimSpace(input.RoleID)
	input.CategoryID = strings.TrimSpace(input.CategoryID)
	input.TextChannelID = strings.TrimSpace(input.TextChannelID)
	input.VoiceChannelID = strings.TrimSpace(input.VoiceChannelID)
	input.FoundingFactionID = strings.TrimSpace(input.FoundingFactionID)
	for _, required := range []struct {
		field string
		value string
	}{
		{"role id", input.RoleID},
		{"category id", input.CategoryID},
		{"text channel id", input.TextChannelID},
		{"voice channel id", input.VoiceChannelID},
		{"founding faction id", input.FoundingFactionID},
	} {
		if required.value == "" {
			return NewAllianceInput{}, fmt.Errorf("alliance %s is required", required.field)
		}
	}
	return input, nil
}

// HasMember reports whether a faction is currently in the alliance.
func (a Alliance) HasMember(factionID string) bool {
	return slices.Contains(a.MemberFactionIDs, factionID)
}

// AddMember adds a faction to the alliance. It reports whether the set changed.
func (a *Alliance) AddMember(factionID string) bool {
	if a.HasMember(factionID) {
		return false
	}
	a.MemberFactionIDs = append(a.MemberFactionIDs, factionID)
	return true
}

// RemoveMember removes a faction from the alliance. The founding faction
// cannot be removed. It reports whether the set changed.
func (a *Alliance) RemoveMember(factionID string) bool {
	if factionID == a.FoundingFactionID || !a.HasMember(factionID) {
		return false
	}
	a.MemberFactionIDs = slices.DeleteFunc(a.MemberFactionIDs, func(memberID string) bool {
		return memberID == factionID
	})
	return true
}
