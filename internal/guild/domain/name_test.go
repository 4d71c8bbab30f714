package domain

import (
	"errors"
	"testing"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		err   error
	}{
		{name: "trims surrounding space", input: "  Atlas  ", want: "Atlas"},
		{name: "allows internal space", input: "Iron Pact", want: "Iron Pact"},
		{name: "allows underscore and dash", input: "night_watch-2", want: "night_watch-2"},
		{name: "empty", input: "   ", err: ErrNameInvalid},
		{name: "too long", input: "abcdefghijklmnopqrstuvwxyzabcdef", err: ErrNameInvalid},
		{name: "doubled internal space", input: "Iron  Pact", err: ErrNameInvalid},
		{name: "markdown characters", input: "**Atlas**", err: ErrNameInvalid},
		{name: "mention syntax", input: "@everyone", err: ErrNameInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeName(tt.input)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("expected error %v, got %v", tt.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("normalize name: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestCheckNameAllowed(t *testing.T) {
	reserved := []string{"admin", " Moderators "}

	if err := CheckNameAllowed("Atlas", reserved); err != nil {
		t.Fatalf("expected Atlas allowed, got %v", err)
	}
	if err := CheckNameAllowed("ADMIN", reserved); !errors.Is(err, ErrNameReserved) {
		t.Fatalf("expected reserved error, got %v", err)
	}
	if err := CheckNameAllowed("moderators", reserved); !errors.Is(err, ErrNameReserved) {
		t.Fatalf("expected reserved error for trimmed entry, got %v", err)
	}
}

func TestNamesEqual(t *testing.T) {
	if !NamesEqual("Red", " red ") {
		t.Fatal("expected case-insensitive trimmed match")
	}
	if NamesEqual("Red", "Blue") {
		t.Fatal("expected distinct names not to match")
	}
}

func TestChannelName(t *testing.T) {
	if got := ChannelName("Iron Pact"); got != "iron-pact" {
		t.Fatalf("expected iron-pact, got %q", got)
	}
	if got := ChannelName("Atlas"); got != "atlas" {
		t.Fatalf("expected atlas, got %q", got)
	}
}
