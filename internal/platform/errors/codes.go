// Package errors provides structured error handling for governance operations.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Validation errors
	CodeNameInvalid   Code = "NAME_INVALID"
	CodeNameReserved  Code = "NAME_RESERVED"
	CodeNameTaken     Code = "NAME_TAKEN"
	CodeColorInvalid  Code = "COLOR_INVALID"
	CodeEmojiInvalid  Code = "EMOJI_INVALID"
	CodePolicyInvalid Code = "INVITE_POLICY_INVALID"

	// Authorization errors
	CodeActorAlreadyFounder      Code = "ACTOR_ALREADY_FOUNDER"
	CodeActorAlreadyMember       Code = "ACTOR_ALREADY_MEMBER"
	CodeActorNotFounder          Code = "ACTOR_NOT_FOUNDER"
	CodeActorNotAdmin            Code = "ACTOR_NOT_ADMIN"
	CodeActorNotMember           Code = "ACTOR_NOT_MEMBER"
	CodeTargetIsFounder          Code = "TARGET_IS_FOUNDER"
	CodeTargetNotInFaction       Code = "TARGET_NOT_IN_FACTION"
	CodeFactionAlreadyInAlliance Code = "FACTION_ALREADY_IN_ALLIANCE"
	CodeFactionNotInAlliance     Code = "FACTION_NOT_IN_ALLIANCE"
	CodeFoundingFactionProtected Code = "FOUNDING_FACTION_PROTECTED"
	CodeAllianceCapExceeded      Code = "ALLIANCE_CAP_EXCEEDED"

	// Not-found errors
	CodeFactionNotFound  Code = "FACTION_NOT_FOUND"
	CodeAllianceNotFound Code = "ALLIANCE_NOT_FOUND"
	CodeRoleNotFound     Code = "ROLE_NOT_FOUND"
	CodeChannelNotFound  Code = "CHANNEL_NOT_FOUND"
	CodeApprovalNotFound Code = "APPROVAL_NOT_FOUND"

	// Approval errors
	CodeApprovalResolved Code = "APPROVAL_ALREADY_RESOLVED"
	CodeTicketInvalid    Code = "APPROVAL_TICKET_INVALID"
	CodeTicketExpired    Code = "APPROVAL_TICKET_EXPIRED"
	CodeTicketMismatch   Code = "APPROVAL_TICKET_MISMATCH"

	// External collaborator errors
	CodeDirectoryFailure Code = "DIRECTORY_FAILURE"

	// Persistence errors
	CodePersistenceFailure Code = "PERSISTENCE_FAILURE"
	CodeStaleRevision      Code = "STALE_REVISION"
)

// GRPCCode maps the error code to a gRPC status code for the dispatch boundary.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeNameInvalid, CodeNameReserved, CodeNameTaken,
		CodeColorInvalid, CodeEmojiInvalid, CodePolicyInvalid,
		CodeTicketInvalid, CodeTicketMismatch:
		return codes.InvalidArgument
	case CodeActorAlreadyFounder, CodeActorAlreadyMember,
		CodeActorNotFounder, CodeActorNotAdmin, CodeActorNotMember,
		CodeTargetIsFounder, CodeTargetNotInFaction,
		CodeFoundingFactionProtected:
		return codes.PermissionDenied
	case CodeFactionAlreadyInAlliance, CodeFactionNotInAlliance,
		CodeApprovalResolved, CodeTicketExpired:
		return codes.FailedPrecondition
	case CodeAllianceCapExceeded:
		return codes.ResourceExhausted
	case CodeFactionNotFound, CodeAllianceNotFound,
		CodeRoleNotFound, CodeChannelNotFound, CodeApprovalNotFound:
		return codes.NotFound
	case CodeStaleRevision:
		return codes.Aborted
	case CodeDirectoryFailure, CodePersistenceFailure:
		return codes.Internal
	default:
		return codes.Unknown
	}
}
