package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"debate_arena/internal/debate"
	"debate_arena/internal/llm"
	"debate_arena/internal/session"
	"debate_arena/internal/wire"
)

type echoCompleter struct {
	reply string
	calls int
}

func (e *echoCompleter) StreamChat(_ context.Context, _ []llm.Message, onDelta func(llm.StreamDelta) error) (llm.StreamResult, error) {
	e.calls++
	if err := onDelta(llm.StreamDelta{Content: e.reply}); err != nil {
		return llm.StreamResult{}, err
	}
	return llm.StreamResult{Content: e.reply}, nil
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.Completer == nil {
		opts.Completer = &echoCompleter{reply: "answer"}
	}
	s, err := NewServer(opts)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeStream(t *testing.T, body io.Reader) []wire.Event {
	t.Helper()
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	decoder := &wire.Decoder{}
	return decoder.Feed(data)
}

func TestDebateEndpointStreams(t *testing.T) {
	store, err := session.NewFileStore(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	s := newTestServer(t, Options{Completer: &echoCompleter{reply: "argument"}, Store: store})
	handler := s.Handler()

	rr := postJSON(t, handler, "/api/debate", debateRequest{Question: "is tea better than coffee", Rounds: 1})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("Content-Type = %q", ct)
	}

	events := decodeStream(t, rr.Body)
	starts := 0
	for _, ev := range events {
		if ev.Type == wire.EventStart {
			starts++
		}
	}
	if starts != 3 {
		t.Fatalf("start events = %d, want 3 (blue, red, verdict)", starts)
	}
	if events[len(events)-1].Type != wire.EventComplete {
		t.Fatalf("last event = %s, want complete", events[len(events)-1].Type)
	}

	// The finished run must be resumable.
	req := httptest.NewRequest(http.MethodGet, "/api/session?question=is+tea+better+than+coffee", nil)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("session lookup status = %d", rr.Code)
	}
	var rec session.Record
	if err := json.Unmarshal(rr.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode session record: %v", err)
	}
	if !rec.Complete || len(rec.Turns) != 3 {
		t.Fatalf("record = %+v", rec)
	}
}

func TestChatEndpointSingleTurn(t *testing.T) {
	completer := &echoCompleter{reply: "direct answer"}
	s := newTestServer(t, Options{Completer: completer})

	rr := postJSON(t, s.Handler(), "/api/chat", chatRequest{Message: "hello"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	events := decodeStream(t, rr.Body)
	for _, ev := range events {
		if ev.Type == wire.EventStart && ev.Speaker != string(debate.RoleAssistant) {
			t.Fatalf("speaker = %q", ev.Speaker)
		}
	}
	if completer.calls != 1 {
		t.Fatalf("completer calls = %d, want 1", completer.calls)
	}
}

func TestValidationRejectsBeforeStreaming(t *testing.T) {
	completer := &echoCompleter{reply: "x"}
	s := newTestServer(t, Options{Completer: completer})
	handler := s.Handler()

	cases := []struct {
		name string
		path string
		body any
	}{
		{name: "blank question", path: "/api/debate", body: debateRequest{Question: "   "}},
		{name: "blank message", path: "/api/chat", body: chatRequest{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := postJSON(t, handler, tc.path, tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
		})
	}
	if completer.calls != 0 {
		t.Fatalf("completer was invoked %d times for rejected requests", completer.calls)
	}
}

func TestCredentialCheckedBeforeStreaming(t *testing.T) {
	completer := &echoCompleter{reply: "x"}
	s := newTestServer(t, Options{
		Completer:       completer,
		CheckCredential: func(context.Context) error { return llm.ErrMissingCredential },
	})

	rr := postJSON(t, s.Handler(), "/api/debate", debateRequest{Question: "q"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if completer.calls != 0 {
		t.Fatal("pipeline must not start with a bad credential")
	}
}

func TestRoundsClamped(t *testing.T) {
	completer := &echoCompleter{reply: "x"}
	s := newTestServer(t, Options{Completer: completer, MaxRounds: 2})

	rr := postJSON(t, s.Handler(), "/api/debate", debateRequest{Question: "q", Rounds: 50})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if completer.calls != debate.ExpectedTurns(debate.ModeDebate, 2) {
		t.Fatalf("completer calls = %d, want %d", completer.calls, debate.ExpectedTurns(debate.ModeDebate, 2))
	}
}

func TestTranscriptExport(t *testing.T) {
	store, err := session.NewFileStore(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	rec := session.Record{
		Question: "is tea better than coffee",
		Mode:     debate.ModeDebate,
		Rounds:   1,
		Turns: []debate.Turn{
			{Role: debate.RoleBlue, Round: 1, Content: "tea wins", Reasoning: "think about it", Status: debate.TurnDone},
			{Role: debate.RoleModerator, IsVerdict: true, Content: "blue carries the day", Status: debate.TurnDone},
		},
		Sources:  map[debate.Role][]string{debate.RoleBlue: {"https://example.com/tea"}},
		Complete: true,
	}
	if err := store.Save(context.Background(), rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	s := newTestServer(t, Options{Store: store})

	req := httptest.NewRequest(http.MethodGet, "/api/transcript?question=is+tea+better+than+coffee", nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	page := rr.Body.String()
	for _, want := range []string{"<h1", "Verdict", "blue carries the day", "https://example.com/tea"} {
		if !strings.Contains(page, want) {
			t.Errorf("transcript page missing %q", want)
		}
	}
}

func TestTranscriptMarkdownLayout(t *testing.T) {
	md := TranscriptMarkdown(session.Record{
		Question: "q",
		Turns: []debate.Turn{
			{Role: debate.RoleBlue, Round: 1, Content: "pro", Status: debate.TurnDone},
			{Role: debate.RoleRed, Round: 1, Content: "con", Status: debate.TurnErrored},
			{Role: debate.RoleModerator, IsVerdict: true, Content: "draw", Status: debate.TurnDone},
		},
	})
	if !strings.Contains(md, "## Blue, round 1") || !strings.Contains(md, "## Verdict") {
		t.Fatalf("markdown = %q", md)
	}
	if strings.Contains(md, "con") {
		t.Error("errored turns must not appear in the transcript")
	}
}
