package domain

import (
	"regexp"
	"strings"

	apperrors "github.com/concordia-bot/concordia/internal/platform/errors"
)

// MaxNameLength is the longest accepted faction or alliance name.
const MaxNameLength = 31

// namePattern restricts names to a conservative character set so they can be
// mapped onto channel names.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9 _'-]+$`)

var (
	// ErrNameInvalid indicates a name that fails format validation.
	ErrNameInvalid = apperrors.New(apperrors.CodeNameInvalid, "name is empty, too long, or contains invalid characters")
	// ErrNameReserved indicates a name on the reserved denylist.
	ErrNameReserved = apperrors.New(apperrors.CodeNameReserved, "name is reserved")
)

// NormalizeName trims and validates a faction or alliance name.
func NormalizeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" || len(name) > MaxNameLength {
		return "", ErrNameInvalid
	}
	if strings.Contains(name, "  ") {
		return "", ErrNameInvalid
	}
	if !namePattern.MatchString(name) {
		return "", ErrNameInvalid
	}
	return name, nil
}

// CheckNameAllowed rejects names on the reserved denylist. Comparison is
// case-insensitive on trimmed values.
func CheckNameAllowed(name string, reserved []string) error {
	for _, blocked := range reserved {
		if strings.EqualFold(strings.TrimSpace(blocked), name) {
			return apperrors.WithMetadata(apperrors.CodeNameReserved, "name is reserved", map[string]string{"Name": name})
		}
	}
	return nil
}

// NamesEqual reports whether two names collide under the uniqueness rule:
// trimmed, case-insensitive comparison.
func NamesEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// ChannelName derives a directory channel name from an entity name:
// lowercase with spaces replaced by dashes.
func ChannelName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}
