package playback

import (
	"context"
	"strings"
	"testing"
	"time"

	"debate_arena/internal/debate"
	"debate_arena/internal/session"
	"debate_arena/internal/wire"
)

func testOptions() Options {
	return Options{
		Question:     "q",
		Mode:         debate.ModeDebate,
		Rounds:       1,
		RevealRunes:  4,
		TickInterval: 10 * time.Millisecond,
		TurnPause:    100 * time.Millisecond,
		VerdictPause: 300 * time.Millisecond,
		SettleDelay:  50 * time.Millisecond,
	}
}

func feedRun(m *Machine, turns ...wire.Event) {
	m.HandleEvent(wire.Event{Type: wire.EventResearchStart})
	m.HandleEvent(wire.Event{Type: wire.EventResearchDone, Speaker: "blue", Sources: []string{"https://example.com/a"}})
	m.HandleEvent(wire.Event{Type: wire.EventResearchDone, Speaker: "red"})
	for _, done := range turns {
		m.HandleEvent(wire.Event{Type: wire.EventStart, Speaker: done.Speaker, Round: done.Round, IsVerdict: done.IsVerdict})
		m.HandleEvent(wire.Event{Type: wire.EventContent, Speaker: done.Speaker, Content: done.Content[:len(done.Content)/2]})
		m.HandleEvent(wire.Event{Type: wire.EventContent, Speaker: done.Speaker, Content: done.Content})
		m.HandleEvent(done)
	}
	m.HandleEvent(wire.Event{Type: wire.EventComplete})
}

func fullDebate(m *Machine) {
	feedRun(m,
		wire.Event{Type: wire.EventDone, Speaker: "blue", Round: 1, Content: "blue says"},
		wire.Event{Type: wire.EventDone, Speaker: "red", Round: 1, Content: "red says"},
		wire.Event{Type: wire.EventDone, Speaker: "moderator", IsVerdict: true, Content: "verdict!"},
	)
}

// drive ticks the machine at its configured interval from start until the
// given duration has elapsed.
func drive(m *Machine, start time.Time, d time.Duration) time.Time {
	now := start
	end := start.Add(d)
	for !now.After(end) {
		m.Tick(now)
		now = now.Add(m.TickInterval())
	}
	return now
}

func TestMachineLoadingBuffersWithoutRevealing(t *testing.T) {
	m := NewMachine(testOptions())
	m.HandleEvent(wire.Event{Type: wire.EventStart, Speaker: "blue", Round: 1})
	m.HandleEvent(wire.Event{Type: wire.EventContent, Speaker: "blue", Content: "partial"})

	start := time.Now()
	drive(m, start, 500*time.Millisecond)

	view := m.Snapshot()
	if view.State != StateLoading {
		t.Fatalf("state = %s, want loading while the pipeline is still running", view.State)
	}
	if len(view.Entries) != 0 {
		t.Fatalf("in-flight turn must not be buffered, got %d entries", len(view.Entries))
	}
}

func TestMachineProgress(t *testing.T) {
	m := NewMachine(testOptions())
	m.HandleEvent(wire.Event{Type: wire.EventDone, Speaker: "blue", Round: 1, Content: "a"})
	if got := m.Snapshot().Progress; got != 1.0/3.0 {
		t.Fatalf("progress after 1 of 3 turns = %v", got)
	}
}

func TestMachinePresentsAfterCompleteAndSettle(t *testing.T) {
	opts := testOptions()
	var finals []Final
	fires := 0
	opts.OnComplete = func(f []Final) { finals = f; fires++ }
	m := NewMachine(opts)
	fullDebate(m)

	start := time.Now()
	if m.Tick(start); m.Snapshot().State != StateLoading {
		t.Fatal("must settle before presenting")
	}
	drive(m, start, 5*time.Second)

	view := m.Snapshot()
	if view.State != StateComplete {
		t.Fatalf("state = %s, want complete", view.State)
	}
	for _, entry := range view.Entries {
		if entry.RevealedText() != entry.Content {
			t.Errorf("%s text not fully revealed: %q", entry.Role, entry.RevealedText())
		}
	}
	if fires != 1 {
		t.Fatalf("completion callback fired %d times, want exactly once", fires)
	}
	if len(finals) != 3 || finals[2].Role != debate.RoleModerator || finals[2].Text != "verdict!" {
		t.Fatalf("finals = %+v", finals)
	}
}

func TestMachineRevealsOneTurnAtATime(t *testing.T) {
	m := NewMachine(testOptions())
	fullDebate(m)

	start := time.Now()
	now := start
	for i := 0; i < 2000; i++ {
		m.Tick(now)
		now = now.Add(m.TickInterval())
		view := m.Snapshot()
		inFlight := 0
		for _, entry := range view.Entries {
			if entry.Revealed > 0 && entry.RevealedText() != entry.Content {
				inFlight++
			}
		}
		if inFlight > 1 {
			t.Fatalf("%d turns mid-reveal at once", inFlight)
		}
		if view.State == StateComplete {
			return
		}
	}
	t.Fatal("machine never completed")
}

func TestMachineRevealNeverSplitsRunes(t *testing.T) {
	opts := testOptions()
	opts.Mode = debate.ModeChat
	m := NewMachine(opts)
	content := "茶はコーヒーより良い, narrowly"
	m.HandleEvent(wire.Event{Type: wire.EventStart, Speaker: "assistant"})
	m.HandleEvent(wire.Event{Type: wire.EventDone, Speaker: "assistant", Content: content})
	m.HandleEvent(wire.Event{Type: wire.EventComplete})

	start := time.Now()
	now := start
	for i := 0; i < 1000 && m.Snapshot().State != StateComplete; i++ {
		m.Tick(now)
		now = now.Add(m.TickInterval())
		revealed := m.Snapshot().Entries
		if len(revealed) == 1 && !strings.HasPrefix(content, revealed[0].RevealedText()) {
			t.Fatalf("revealed text %q is not a rune-aligned prefix", revealed[0].RevealedText())
		}
	}
}

func TestMachineStaleShorterSnapshotIgnored(t *testing.T) {
	m := NewMachine(testOptions())
	long := strings.Repeat("x", 50)
	short := strings.Repeat("x", 30)
	m.HandleEvent(wire.Event{Type: wire.EventStart, Speaker: "blue", Round: 1})
	m.HandleEvent(wire.Event{Type: wire.EventContent, Speaker: "blue", Content: long})
	m.HandleEvent(wire.Event{Type: wire.EventContent, Speaker: "blue", Content: short})
	m.HandleEvent(wire.Event{Type: wire.EventDone, Speaker: "blue", Round: 1, Content: short})

	view := m.Snapshot()
	if len(view.Entries) != 1 {
		t.Fatalf("entries = %d", len(view.Entries))
	}
	if view.Entries[0].Content != long {
		t.Fatalf("turn kept %d chars, want the 50-char maximum", len(view.Entries[0].Content))
	}
}

func TestMachineStopDuringLoading(t *testing.T) {
	fired := false
	opts := testOptions()
	opts.OnComplete = func([]Final) { fired = true }
	m := NewMachine(opts)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.BindCancel(cancel)

	if !m.Stop() {
		t.Fatal("Stop during loading should take effect")
	}
	if ctx.Err() == nil {
		t.Fatal("Stop must cancel the in-flight stream read")
	}

	// Even a complete event arriving late must not revive the run.
	m.HandleEvent(wire.Event{Type: wire.EventComplete})
	drive(m, time.Now(), 2*time.Second)

	view := m.Snapshot()
	if !view.Stopped || view.State == StateComplete || fired {
		t.Fatalf("stopped run went on: %+v fired=%v", view, fired)
	}
	for _, entry := range view.Entries {
		if entry.Revealed != 0 {
			t.Fatal("stopped run performed reveal ticks")
		}
	}
}

func TestMachineStopAfterPresentingHasNoEffect(t *testing.T) {
	m := NewMachine(testOptions())
	fullDebate(m)
	drive(m, time.Now(), time.Second)
	if m.Snapshot().State == StateLoading {
		t.Fatal("machine should have started presenting")
	}
	if m.Stop() {
		t.Fatal("Stop after loading must be a no-op")
	}
}

func TestMachineErrorFreezesPlayback(t *testing.T) {
	m := NewMachine(testOptions())
	m.HandleEvent(wire.Event{Type: wire.EventDone, Speaker: "blue", Round: 1, Content: "a"})
	m.HandleEvent(wire.Event{Type: wire.EventError, Message: "usage limit reached"})
	m.HandleEvent(wire.Event{Type: wire.EventComplete}) // must be ignored after error

	drive(m, time.Now(), 2*time.Second)
	view := m.Snapshot()
	if !view.Failed || view.ErrMessage != "usage limit reached" {
		t.Fatalf("view = %+v", view)
	}
	if view.State == StateComplete {
		t.Fatal("failed run must not complete")
	}
}

func TestMachineResumeReplaysPersistedRun(t *testing.T) {
	m := NewMachine(testOptions())
	fullDebate(m)
	drive(m, time.Now(), 5*time.Second)
	rec := m.Record()
	if !rec.Complete || len(rec.Turns) != 3 {
		t.Fatalf("record = %+v", rec)
	}

	resumed := NewMachine(testOptions())
	if !resumed.Resume(rec) {
		t.Fatal("Resume refused a complete matching record")
	}
	drive(resumed, time.Now(), 5*time.Second)
	view := resumed.Snapshot()
	if view.State != StateComplete {
		t.Fatalf("resumed state = %s", view.State)
	}
	if len(view.Entries) != 3 || view.Entries[2].Content != "verdict!" {
		t.Fatalf("resumed entries = %+v", view.Entries)
	}
	if len(view.Sources[debate.RoleBlue]) != 1 {
		t.Errorf("resumed sources = %+v", view.Sources)
	}
}

func TestMachineResumeRefusals(t *testing.T) {
	cases := []struct {
		name string
		rec  session.Record
	}{
		{name: "incomplete", rec: session.Record{Question: "q", Complete: false}},
		{name: "different question", rec: session.Record{Question: "other", Complete: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewMachine(testOptions())
			if m.Resume(tc.rec) {
				t.Fatal("Resume should refuse this record")
			}
		})
	}
}

func TestConsumeStopsAtTerminalEvent(t *testing.T) {
	m := NewMachine(testOptions())
	var buf strings.Builder
	enc := wire.NewEncoder(&buf)
	events := []wire.Event{
		{Type: wire.EventStart, Speaker: "blue", Round: 1},
		{Type: wire.EventContent, Speaker: "blue", Content: "hey"},
		{Type: wire.EventDone, Speaker: "blue", Round: 1, Content: "hey"},
		{Type: wire.EventComplete},
	}
	for _, ev := range events {
		if err := enc.Write(ev); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := m.Consume(context.Background(), strings.NewReader(buf.String())); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	view := m.Snapshot()
	if len(view.Entries) != 1 || view.Entries[0].Content != "hey" {
		t.Fatalf("entries = %+v", view.Entries)
	}
	m.Tick(time.Now())
	if m.Snapshot().State == StateLoading {
		// settle timer armed; the complete event was seen
	}
}
