// Package approval manages pending join requests that complete through a
// single authorized human signal. Requests are transient: they live in
// memory for the duration of the signal-collection window and are lost on
// restart.
package approval

import (
	"strings"
	"time"
)

// Kind identifies what a pending approval will do when accepted.
type Kind int

const (
	// KindUnspecified represents an invalid kind.
	KindUnspecified Kind = iota
	// KindFactionJoin admits a member into an invite-only faction.
	KindFactionJoin
	// KindAllianceJoin admits a faction into an alliance.
	KindAllianceJoin
)

// String returns the stable label for a kind.
func (k Kind) String() string {
	switch k {
	case KindFactionJoin:
		return "FACTION_JOIN"
	case KindAllianceJoin:
		return "ALLIANCE_JOIN"
	default:
		return "UNSPECIFIED"
	}
}

// KindFromLabel converts a kind label back to a Kind value.
func KindFromLabel(label string) Kind {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "FACTION_JOIN":
		return KindFactionJoin
	case "ALLIANCE_JOIN":
		return KindAllianceJoin
	default:
		return KindUnspecified
	}
}

// State is the lifecycle state of a pending approval.
type State int

const (
	// StateUnspecified represents an unknown request.
	StateUnspecified State = iota
	// StateOpen indicates the request is waiting for an authorized signal.
	StateOpen
	// StateAccepted indicates the effect was applied; further signals no-op.
	StateAccepted
	// StateCancelled indicates the request was withdrawn or superseded.
	StateCancelled
)

// Pending describes an open approval request.
type Pending struct {
	ID          string
	Kind        Kind
	RequesterID string
	TargetID    string
	CreatedAt   time.Time
	// Ticket is a signed grant bound to this request, empty when ticket
	// signing is not configured.
	Ticket string
}

// Outcome reports the result of a signal.
type Outcome struct {
	// Applied is true when this signal performed the effect.
	Applied bool
	// State is the request state after the signal.
	State State
}
