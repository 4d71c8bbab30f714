package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/concordia-bot/concordia/internal/platform/id"
)

// Faction represents a self-governing group. The record holds directory
// resource handles; who belongs to the faction is derived from holders of
// RoleID, and who administers it from view permission on AdminChannelID.
type Faction struct {
	ID             string    `json:"id"`
	RoleID         string    `json:"role"`
	CategoryID     string    `json:"channelCategory"`
	TextChannelID  string    `json:"textChannel"`
	VoiceChannelID string    `json:"voiceChannel"`
	AdminChannelID string    `json:"adminChannel"`
	IsInviteOnly   bool      `json:"isInviteOnly"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// NewFactionInput carries the directory resources allocated for a faction.
type NewFactionInput struct {
	RoleID         string
	CategoryID     string
	TextChannelID  string
	VoiceChannelID string
	AdminChannelID string
	IsInviteOnly   bool
}

// NewFaction creates a faction record with a generated ID and timestamps.
func NewFaction(input NewFactionInput, now func() time.Time, idGenerator func() (string, error)) (Faction, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := normalizeNewFactionInput(input)
	if err != nil {
		return Faction{}, err
	}

	factionID, err := idGenerator()
	if err != nil {
		return Faction{}, fmt.Errorf("generate faction id: %w", err)
	}

	createdAt := now().UTC()
	return Faction{
		ID:             factionID,
		RoleID:         normalized.RoleID,
		CategoryID:     normalized.CategoryID,
		TextChannelID:  normalized.TextChannelID,
		VoiceChannelID: normalized.VoiceChannelID,
		AdminChannelID: normalized.AdminChannelID,
		IsInviteOnly:   normalized.IsInviteOnly,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}, nil
}

func normalizeNewFactionInput(input NewFactionInput) (NewFactionInput, error) {
	input.RoleID = strings.TrimSpace(input.RoleID)
	input.CategoryID = strings.TrimSpace(input.CategoryID)
	input.TextChannelID = strings.TrimSpace(input.TextChannelID)
	input.VoiceChannelID = strings.TrimSpace(input.VoiceChannelID)
	input.AdminChannelID = strings.TrimSpace(input.AdminChannelID)
	for _, required := range []struct {
		field string
		value string
	}{
		{"role id", input.RoleID},
		{"category id", input.CategoryID},
		{"text channel id", input.TextChannelID},
		{"voice channel id", input.VoiceChannelID},
		{"admin channel id", input.AdminChannelID},
	} {
		if required.value == "" {
			return NewFactionInput{}, fmt.Errorf("faction %s is required", required.field)
		}
	}
	return input, nil
}
