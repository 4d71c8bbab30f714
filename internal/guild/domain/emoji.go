package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	apperrors "github.com/concordia-bot/concordia/internal/platform/errors"
)

// ErrEmojiInvalid indicates an emoji value the directory cannot attach to a role.
var ErrEmojiInvalid = apperrors.New(apperrors.CodeEmojiInvalid, "emoji is not valid")

// maxEmojiRunes bounds a single emoji including variation selectors and
// joiner sequences.
const maxEmojiRunes = 8

// NormalizeEmoji trims and validates an optional role emoji. An empty value
// is allowed and clears the emoji.
func NormalizeEmoji(raw string) (string, error) {
	emoji := strings.TrimSpace(raw)
	if emoji == "" {
		return "", nil
	}
	if utf8.RuneCountInString(emoji) > maxEmojiRunes {
		return "", ErrEmojiInvalid
	}
	for _, r := range emoji {
		if unicode.IsSpace(r) {
			return "", ErrEmojiInvalid
		}
		// Reject plain ASCII; role emoji are pictographic.
		if r < 0x80 {
			return "", ErrEmojiInvalid
		}
	}
	return emoji, nil
}
