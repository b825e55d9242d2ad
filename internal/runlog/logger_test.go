package runlog

import (
	"strings"
	"testing"
)

func TestLogFormatsKindAndMessage(t *testing.T) {
	var file, term strings.Builder
	l := New(Options{File: &file, Term: &term, TermEnabled: true})

	l.Logf(KindRun, "run started for %q", "q")
	l.Log(KindTurn, "   ")

	got := file.String()
	if !strings.Contains(got, "[RUN] run started for \"q\"") {
		t.Fatalf("file output = %q", got)
	}
	if strings.Count(got, "\n") != 1 {
		t.Fatalf("blank messages should be dropped, got %q", got)
	}
	if term.String() != got {
		t.Errorf("terminal echo = %q, want same line", term.String())
	}
}

func TestLogTermColor(t *testing.T) {
	var term strings.Builder
	l := New(Options{Term: &term, TermEnabled: true, TermColor: true})
	l.Log(KindError, "boom")
	if !strings.HasPrefix(term.String(), ansiRed) || !strings.Contains(term.String(), ansiReset) {
		t.Fatalf("colored output = %q", term.String())
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Log(KindInfo, "ignored")
	l.Logf(KindInfo, "ignored %d", 1)
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestPreview(t *testing.T) {
	cases := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "short passes through", in: "hello", max: 40, want: "hello"},
		{name: "newlines collapse", in: "a\r\nb\n\nc", max: 40, want: "a b c"},
		{name: "long truncates", in: strings.Repeat("x", 50), max: 30, want: strings.Repeat("x", 16) + " ... (truncated)"},
		{name: "tiny max hard cuts", in: "abcdefghij", max: 4, want: "abcd"},
		{name: "zero max", in: "abc", max: 0, want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Preview(tc.in, tc.max); got != tc.want {
				t.Fatalf("Preview = %q, want %q", got, tc.want)
			}
		})
	}
}
