// Package registry implements faction and alliance governance: entity
// lifecycle, derived membership authorization, directory side effects, and
// snapshot persistence. Authorization is always re-derived from live
// directory state at the moment of the check; nothing is cached across
// directory calls.
package registry

import (
	"context"
	"errors"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/concordia-bot/concordia/internal/directory"
	"github.com/concordia-bot/concordia/internal/guild/approval"
	"github.com/concordia-bot/concordia/internal/guild/store"
	apperrors "github.com/concordia-bot/concordia/internal/platform/errors"
	"github.com/concordia-bot/concordia/internal/platform/id"
)

// EventKind labels a governance outcome for announcement.
type EventKind string

const (
	EventFactionCreated  EventKind = "FACTION_CREATED"
	EventFactionDeleted  EventKind = "FACTION_DELETED"
	EventFactionJoined   EventKind = "FACTION_JOINED"
	EventFactionLeft     EventKind = "FACTION_LEFT"
	EventAllianceCreated EventKind = "ALLIANCE_CREATED"
	EventAllianceDeleted EventKind = "ALLIANCE_DELETED"
	EventAllianceJoined  EventKind = "ALLIANCE_JOINED"
	EventAllianceLeft    EventKind = "ALLIANCE_LEFT"
)

// Event describes a completed governance outcome. Formatting and delivery
// belong to the presentation layer.
type Event struct {
	Kind EventKind
	// EntityName is the faction or alliance name involved.
	EntityName string
	// SubjectID is the member or faction the event concerns, when any.
	SubjectID string
}

// Announcer receives governance outcome events. Implementations must not
// block; announcement failures never fail the operation that produced them.
type Announcer interface {
	Announce(ctx context.Context, event Event)
}

// Settings carries the environment-provided constants the registry needs.
type Settings struct {
	// FounderRoleID is the guild-wide role marking faction founders.
	FounderRoleID string
	// ReservedNames is the denylist for faction and alliance names.
	ReservedNames []string
}

// Registry coordinates faction and alliance operations over the directory,
// the config store, and the approval engine.
type Registry struct {
	dir       directory.Directory
	store     store.ConfigStore
	approvals *approval.Engine
	announcer Announcer
	settings  Settings

	clock       func() time.Time
	idGenerator func() (string, error)
	tracer      trace.Tracer
}

// New creates a registry. announcer may be nil.
func New(dir directory.Directory, configStore store.ConfigStore, approvals *approval.Engine, announcer Announcer, settings Settings) (*Registry, error) {
	if dir == nil {
		return nil, errors.New("registry requires a directory")
	}
	if configStore == nil {
		return nil, errors.New("registry requires a config store")
	}
	if approvals == nil {
		return nil, errors.New("registry requires an approval engine")
	}
	if settings.FounderRoleID == "" {
		return nil, errors.New("registry requires the founder role id")
	}
	return &Registry{
		dir:         dir,
		store:       configStore,
		approvals:   approvals,
		announcer:   announcer,
		settings:    settings,
		clock:       time.Now,
		idGenerator: id.NewID,
		tracer:      otel.Tracer("github.com/concordia-bot/concordia/internal/guild/registry"),
	}, nil
}

// startSpan opens a tracing span for an operation.
func (r *Registry) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, "registry."+op)
}

// save persists the new state against the revision the operation started
// from. A concurrent writer surfaces as a stale-revision error; the caller
// reports it without retrying blindly because its validations are stale too.
func (r *Registry) save(ctx context.Context, state store.State, baseRevision uint64) error {
	if _, err := r.store.Save(ctx, state, baseRevision); err != nil {
		if errors.Is(err, store.ErrStaleRevision) {
			return apperrors.Wrap(apperrors.CodeStaleRevision,
				"registry state changed during the operation", err)
		}
		return apperrors.Wrap(apperrors.CodePersistenceFailure,
			"persist registry state", err)
	}
	return nil
}

// announce reports an outcome event, if an announcer is configured.
func (r *Registry) announce(ctx context.Context, event Event) {
	if r.announcer == nil {
		return
	}
	r.announcer.Announce(ctx, event)
}

// LogAnnouncer is an Announcer that writes events to the process log. It is
// the default when no presentation layer is wired.
type LogAnnouncer struct{}

// Announce implements Announcer.
func (LogAnnouncer) Announce(_ context.Context, event Event) {
	log.Printf("event %s entity=%q subject=%q", event.Kind, event.EntityName, event.SubjectID)
}
