package domain

import (
	"regexp"
	"strings"

	apperrors "github.com/concordia-bot/concordia/internal/platform/errors"
)

// ErrColorInvalid indicates a color that is neither a named palette entry nor
// a hex value.
var ErrColorInvalid = apperrors.New(apperrors.CodeColorInvalid, "color is not a known name or hex value")

var hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// palette maps accepted color names to hex values. Names mirror the palette
// the directory exposes for roles.
var palette = map[string]string{
	"default":    "#000000",
	"white":      "#ffffff",
	"aqua":       "#1abc9c",
	"green":      "#57f287",
	"blue":       "#3498db",
	"yellow":     "#fee75c",
	"purple":     "#9b59b6",
	"fuchsia":    "#eb459e",
	"gold":       "#f1c40f",
	"orange":     "#e67e22",
	"red":        "#ed4245",
	"grey":       "#95a5a6",
	"navy":       "#34495e",
	"darkaqua":   "#11806a",
	"darkgreen":  "#1f8b4c",
	"darkblue":   "#206694",
	"darkpurple": "#71368a",
	"darkgold":   "#c27c0e",
	"darkorange": "#a84300",
	"darkred":    "#992d22",
	"darkgrey":   "#979c9f",
	"darknavy":   "#2c3e50",
	"blurple":    "#5865f2",
}

// NormalizeColor resolves a color name or hex string to a lowercase hex value.
func NormalizeColor(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrColorInvalid
	}
	if hexColorPattern.MatchString(trimmed) {
		return strings.ToLower(trimmed), nil
	}
	if hex, ok := palette[strings.ToLower(trimmed)]; ok {
		return hex, nil
	}
	return "", ErrColorInvalid
}
