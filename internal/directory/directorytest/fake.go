// Package directorytest provides an in-memory Directory fake for tests.
package directorytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/concordia-bot/concordia/internal/directory"
)

// ChannelKind distinguishes fake channel records.
type ChannelKind string

const (
	KindCategory ChannelKind = "category"
	KindText     ChannelKind = "text"
	KindVoice    ChannelKind = "voice"
)

// Channel is a fake channel record.
type Channel struct {
	ID                 string
	Name               string
	CategoryID         string
	Kind               ChannelKind
	HiddenFromEveryone bool
	ViewRoleID         string
}

// Fake is an in-memory Directory implementation. Zero value is not usable;
// construct with New. Tests may seed state through the exported maps and
// inject failures per method name through Errs.
type Fake struct {
	mu sync.Mutex

	seq      int
	Roles    map[string]directory.Role
	Channels map[string]Channel
	// Holders maps roleID -> subjectID -> held.
	Holders map[string]map[string]bool
	// View maps channelID -> subjectID -> canView overwrite.
	View map[string]map[string]bool
	// Errs maps a method name (e.g. "CreateTextChannel") to an error every
	// call to that method returns.
	Errs map[string]error
	// Calls records method names in invocation order.
	Calls []string
}

var _ directory.Directory = (*Fake)(nil)

// New creates an empty fake directory.
func New() *Fake {
	return &Fake{
		Roles:    map[string]directory.Role{},
		Channels: map[string]Channel{},
		Holders:  map[string]map[string]bool{},
		View:     map[string]map[string]bool{},
		Errs:     map[string]error{},
	}
}

func (f *Fake) begin(method string) error {
	f.Calls = append(f.Calls, method)
	return f.Errs[method]
}

func (f *Fake) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

// CallCount reports how many times a method was invoked.
func (f *Fake) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, call := range f.Calls {
		if call == method {
			count++
		}
	}
	return count
}

// Seed helpers

// AddRole registers a role and returns its ID.
func (f *Fake) AddRole(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID("role")
	f.Roles[id] = directory.Role{ID: id, Name: name}
	return id
}

// Grant marks a subject as holding a role without going through GrantRole.
func (f *Fake) Grant(subjectID, roleID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grantLocked(subjectID, roleID)
}

func (f *Fake) grantLocked(subjectID, roleID string) {
	holders := f.Holders[roleID]
	if holders == nil {
		holders = map[string]bool{}
		f.Holders[roleID] = holders
	}
	holders[subjectID] = true
}

// Directory implementation

func (f *Fake) CreateRole(ctx context.Context, input directory.CreateRoleInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreateRole"); err != nil {
		return "", err
	}
	id := f.nextID("role")
	f.Roles[id] = directory.Role{ID: id, Name: input.Name, Color: input.Color, Emoji: input.Emoji}
	return id, nil
}

func (f *Fake) DeleteRole(ctx context.Context, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DeleteRole"); err != nil {
		return err
	}
	if _, ok := f.Roles[roleID]; !ok {
		return directory.ErrNotFound
	}
	delete(f.Roles, roleID)
	delete(f.Holders, roleID)
	return nil
}

func (f *Fake) RenameRole(ctx context.Context, roleID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("RenameRole"); err != nil {
		return err
	}
	role, ok := f.Roles[roleID]
	if !ok {
		return directory.ErrNotFound
	}
	role.Name = name
	f.Roles[roleID] = role
	return nil
}

func (f *Fake) RecolorRole(ctx context.Context, roleID, color string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("RecolorRole"); err != nil {
		return err
	}
	role, ok := f.Roles[roleID]
	if !ok {
		return directory.ErrNotFound
	}
	role.Color = color
	f.Roles[roleID] = role
	return nil
}

func (f *Fake) SetRoleEmoji(ctx context.Context, roleID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("SetRoleEmoji"); err != nil {
		return err
	}
	role, ok := f.Roles[roleID]
	if !ok {
		return directory.ErrNotFound
	}
	role.Emoji = emoji
	f.Roles[roleID] = role
	return nil
}

func (f *Fake) CreateCategory(ctx context.Context, input directory.CreateCategoryInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreateCategory"); err != nil {
		return "", err
	}
	id := f.nextID("category")
	f.Channels[id] = Channel{ID: id, Name: input.Name, Kind: KindCategory, ViewRoleID: input.ViewRoleID, HiddenFromEveryone: true}
	return id, nil
}

func (f *Fake) CreateTextChannel(ctx context.Context, input directory.CreateChannelInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreateTextChannel"); err != nil {
		return "", err
	}
	id := f.nextID("text")
	f.Channels[id] = Channel{ID: id, Name: input.Name, CategoryID: input.CategoryID, Kind: KindText, HiddenFromEveryone: input.HideFromEveryone}
	return id, nil
}

func (f *Fake) CreateVoiceChannel(ctx context.Context, input directory.CreateChannelInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreateVoiceChannel"); err != nil {
		return "", err
	}
	id := f.nextID("voice")
	f.Channels[id] = Channel{ID: id, Name: input.Name, CategoryID: input.CategoryID, Kind: KindVoice, HiddenFromEveryone: input.HideFromEveryone}
	return id, nil
}

func (f *Fake) DeleteChannel(ctx context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DeleteChannel"); err != nil {
		return err
	}
	if _, ok := f.Channels[channelID]; !ok {
		return directory.ErrNotFound
	}
	delete(f.Channels, channelID)
	delete(f.View, channelID)
	return nil
}

func (f *Fake) SetChannelPermission(ctx context.Context, channelID, subjectID string, canView bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("SetChannelPermission"); err != nil {
		return err
	}
	if _, ok := f.Channels[channelID]; !ok {
		return directory.ErrNotFound
	}
	view := f.View[channelID]
	if view == nil {
		view = map[string]bool{}
		f.View[channelID] = view
	}
	view[subjectID] = canView
	return nil
}

func (f *Fake) ChannelPermission(ctx context.Context, channelID, subjectID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("ChannelPermission"); err != nil {
		return false, err
	}
	channel, ok := f.Channels[channelID]
	if !ok {
		return false, directory.ErrNotFound
	}
	if canView, ok := f.View[channelID][subjectID]; ok {
		return canView, nil
	}
	return !channel.HiddenFromEveryone, nil
}

func (f *Fake) GrantRole(ctx context.Context, subjectID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("GrantRole"); err != nil {
		return err
	}
	if _, ok := f.Roles[roleID]; !ok {
		return directory.ErrNotFound
	}
	f.grantLocked(subjectID, roleID)
	return nil
}

func (f *Fake) RevokeRole(ctx context.Context, subjectID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("RevokeRole"); err != nil {
		return err
	}
	if _, ok := f.Roles[roleID]; !ok {
		return directory.ErrNotFound
	}
	delete(f.Holders[roleID], subjectID)
	return nil
}

func (f *Fake) RolesByIDs(ctx context.Context, roleIDs []string) (map[string]directory.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("RolesByIDs"); err != nil {
		return nil, err
	}
	result := make(map[string]directory.Role, len(roleIDs))
	for _, id := range roleIDs {
		if role, ok := f.Roles[id]; ok {
			result[id] = role
		}
	}
	return result, nil
}

func (f *Fake) SubjectHasRole(ctx context.Context, subjectID, roleID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("SubjectHasRole"); err != nil {
		return false, err
	}
	return f.Holders[roleID][subjectID], nil
}

func (f *Fake) SubjectsHoldingRole(ctx context.Context, roleID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("SubjectsHoldingRole"); err != nil {
		return nil, err
	}
	subjects := make([]string, 0, len(f.Holders[roleID]))
	for subjectID, held := range f.Holders[roleID] {
		if held {
			subjects = append(subjects, subjectID)
		}
	}
	return subjects, nil
}

func (f *Fake) ChannelsUnderCategory(ctx context.Context, categoryID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("ChannelsUnderCategory"); err != nil {
		return nil, err
	}
	var channels []string
	for id, channel := range f.Channels {
		if channel.CategoryID == categoryID {
			channels = append(channels, id)
		}
	}
	return channels, nil
}
