package tui

import (
	"strings"
	"testing"

	"debate_arena/internal/debate"
	"debate_arena/internal/playback"
)

func TestEntryLabel(t *testing.T) {
	cases := []struct {
		name  string
		entry playback.Entry
		want  string
	}{
		{name: "debater", entry: playback.Entry{Role: debate.RoleBlue, Round: 2}, want: "blue · round 2"},
		{name: "verdict", entry: playback.Entry{Role: debate.RoleModerator, IsVerdict: true}, want: "moderator · verdict"},
		{name: "assistant", entry: playback.Entry{Role: debate.RoleAssistant}, want: "assistant"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := entryLabel(tc.entry); got != tc.want {
				t.Fatalf("entryLabel = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestProgressBar(t *testing.T) {
	if got := progressBar(0.5, 10); got != "[=====     ]" {
		t.Fatalf("progressBar(0.5, 10) = %q", got)
	}
	if got := progressBar(2, 4); got != "[====]" {
		t.Fatalf("overfull bar = %q", got)
	}
	if got := progressBar(-1, 4); got != "[    ]" {
		t.Fatalf("negative bar = %q", got)
	}
	if progressBar(0.5, 0) != "" {
		t.Fatal("zero width should render nothing")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate = %q", got)
	}
	got := truncate(strings.Repeat("界", 10), 8)
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("truncated wide string = %q", got)
	}
	if truncate("abc", 0) != "" {
		t.Fatal("zero width should render nothing")
	}
}
