package main

import (
	"strings"
	"testing"
)

func TestFirstLine(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"single line", "single line"},
		{"first\nsecond", "first …"},
		{"", ""},
		{"\nleading newline", " …"},
	}
	for _, tt := range tests {
		if got := firstLine(tt.in); got != tt.want {
			t.Errorf("firstLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestColorize(t *testing.T) {
	orig := noColor
	defer func() { noColor = orig }()

	noColor = false
	got := colorize(colorGreen, "ok")
	if !strings.HasPrefix(got, colorGreen) || !strings.HasSuffix(got, colorReset) {
		t.Errorf("colorize = %q, want wrapped in escape codes", got)
	}

	noColor = true
	if got := colorize(colorGreen, "ok"); got != "ok" {
		t.Errorf("colorize with noColor = %q, want plain text", got)
	}
}
