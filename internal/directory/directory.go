// Package directory defines the boundary to the external system of record
// for roles, channels, categories, and permission state. All calls are
// remote and fallible; none are retried automatically.
package directory

import (
	"context"
	"errors"
)

// ErrNotFound indicates a requested directory resource is missing.
var ErrNotFound = errors.New("directory resource not found")

// Role describes a directory role as the directory currently sees it.
type Role struct {
	ID    string
	Name  string
	Color string
	Emoji string
}

// CreateRoleInput describes a role to create.
type CreateRoleInput struct {
	Name  string
	Color string
	Emoji string
	// Hoist displays holders separately in the member list.
	Hoist bool
	// Reason is an audit note recorded by the directory.
	Reason string
}

// CreateCategoryInput describes a channel category to create. The category is
// visible to holders of ViewRoleID and hidden from everyone else.
type CreateCategoryInput struct {
	Name       string
	ViewRoleID string
	Reason     string
}

// CreateChannelInput describes a text or voice channel to create under a
// category. When HideFromEveryone is set the channel starts with a deny-view
// overwrite for the everyone role; visibility is then granted per subject.
type CreateChannelInput struct {
	Name             string
	CategoryID       string
	HideFromEveryone bool
	Reason           string
}

// Directory is the external collaborator owning roles, channels, categories,
// permission overwrites, and role membership.
type Directory interface {
	CreateRole(ctx context.Context, input CreateRoleInput) (string, error)
	DeleteRole(ctx context.Context, roleID string) error
	RenameRole(ctx context.Context, roleID, name string) error
	RecolorRole(ctx context.Context, roleID, color string) error
	SetRoleEmoji(ctx context.Context, roleID, emoji string) error

	CreateCategory(ctx context.Context, input CreateCategoryInput) (string, error)
	CreateTextChannel(ctx context.Context, input CreateChannelInput) (string, error)
	CreateVoiceChannel(ctx context.Context, input CreateChannelInput) (string, error)
	DeleteChannel(ctx context.Context, channelID string) error

	// SetChannelPermission grants or revokes a subject's view permission on a
	// channel via a per-subject overwrite.
	SetChannelPermission(ctx context.Context, channelID, subjectID string, canView bool) error
	// ChannelPermission reports whether a subject can currently view a channel.
	ChannelPermission(ctx context.Context, channelID, subjectID string) (bool, error)

	GrantRole(ctx context.Context, subjectID, roleID string) error
	RevokeRole(ctx context.Context, subjectID, roleID string) error

	// RolesByIDs resolves the given role IDs to their live directory state.
	// Unknown IDs are omitted from the result.
	RolesByIDs(ctx context.Context, roleIDs []string) (map[string]Role, error)
	// SubjectHasRole reports whether a subject currently holds a role.
	SubjectHasRole(ctx context.Context, subjectID, roleID string) (bool, error)
	// SubjectsHoldingRole lists the subjects currently holding a role.
	SubjectsHoldingRole(ctx context.Context, roleID string) ([]string, error)
	// ChannelsUnderCategory lists channel IDs parented to a category.
	ChannelsUnderCategory(ctx context.Context, categoryID string) ([]string, error)
}
