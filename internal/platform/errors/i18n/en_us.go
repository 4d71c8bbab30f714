package i18n

// enUS maps error codes to en-US message templates. Codes must match the
// codes defined in internal/platform/errors/codes.go; they are duplicated as
// strings to avoid an import cycle.
var enUS = map[Code]string{
	"UNKNOWN": "Something went wrong. Please try again.",

	"NAME_INVALID":          "That name is not valid.",
	"NAME_RESERVED":         "That name is reserved.",
	"NAME_TAKEN":            "A faction or alliance named {{.Name}} already exists.",
	"COLOR_INVALID":         "That color is not valid.",
	"EMOJI_INVALID":         "That emoji is not valid.",
	"INVITE_POLICY_INVALID": "Invite policy must be open or approval.",

	"ACTOR_ALREADY_FOUNDER":       "You are already the founder of a faction.",
	"ACTOR_ALREADY_MEMBER":        "You are already in a faction.",
	"ACTOR_NOT_FOUNDER":           "You need to be the founder of a faction.",
	"ACTOR_NOT_ADMIN":             "You are not an admin of this faction.",
	"ACTOR_NOT_MEMBER":            "You are not in a faction.",
	"TARGET_IS_FOUNDER":           "That user is the founder of the faction.",
	"TARGET_NOT_IN_FACTION":       "That user is not in your faction.",
	"FACTION_ALREADY_IN_ALLIANCE": "Your faction is already in this alliance.",
	"FACTION_NOT_IN_ALLIANCE":     "Your faction is not in this alliance.",
	"FOUNDING_FACTION_PROTECTED":  "The founding faction cannot leave its own alliance.",
	"ALLIANCE_CAP_EXCEEDED":       "You have already founded too many alliances.",

	"FACTION_NOT_FOUND":  "That faction does not exist.",
	"ALLIANCE_NOT_FOUND": "That alliance does not exist.",
	"ROLE_NOT_FOUND":     "That role could not be found.",
	"CHANNEL_NOT_FOUND":  "That channel could not be found.",
	"APPROVAL_NOT_FOUND": "That join request no longer exists.",

	"APPROVAL_ALREADY_RESOLVED": "That join request was already handled.",
	"APPROVAL_TICKET_INVALID":   "That approval ticket is not valid.",
	"APPROVAL_TICKET_EXPIRED":   "That approval ticket has expired.",
	"APPROVAL_TICKET_MISMATCH":  "That approval ticket does not match the request.",

	"DIRECTORY_FAILURE":   "Something went wrong talking to the server. Please try again.",
	"PERSISTENCE_FAILURE": "Something went wrong. Please try again.",
	"STALE_REVISION":      "Another change happened at the same time. Please try again.",
}
