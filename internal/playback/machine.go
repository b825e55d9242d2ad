// Package playback buffers a run's event stream and replays it to the viewer
// on its own clock: turns are collected while loading and then revealed a few
// characters at a time, one turn after another, independent of how fast the
// server generated them.
package playback

import (
	"context"
	"sync"
	"time"

	"debate_arena/internal/debate"
	"debate_arena/internal/session"
	"debate_arena/internal/wire"
)

type State string

const (
	StateLoading    State = "loading"
	StatePresenting State = "presenting"
	StateComplete   State = "complete"
)

const (
	defaultRevealRunes  = 3
	defaultTickInterval = 40 * time.Millisecond
	defaultTurnPause    = 600 * time.Millisecond
	defaultVerdictPause = 1500 * time.Millisecond
	defaultSettleDelay  = 800 * time.Millisecond
)

// Entry is one buffered turn plus its reveal cursor.
type Entry struct {
	Role      debate.Role
	Round     int
	IsVerdict bool
	Reasoning string
	Content   string
	Revealed  int // revealed rune count
}

// Final is one (role, finalText) pair handed to the completion callback.
type Final struct {
	Role debate.Role
	Text string
}

type Options struct {
	Question string
	Mode     debate.Mode
	Rounds   int
	// RevealRunes is how many runes each tick reveals; TickInterval is the
	// clock the caller is expected to drive Tick with.
	RevealRunes  int
	TickInterval time.Duration
	TurnPause    time.Duration
	VerdictPause time.Duration
	SettleDelay  time.Duration
	// OnComplete fires exactly once when every buffered turn has been
	// revealed and the run has completed.
	OnComplete func(finals []Final)
}

// Machine is the client-side playback state machine. All methods are safe
// for concurrent use; time only advances through Tick, which makes the
// pacing deterministic under test.
type Machine struct {
	mu   sync.Mutex
	opts Options

	state      State
	stopped    bool
	failed     bool
	errMessage string

	expected     int
	entries      []Entry
	current      *Entry
	sources      map[debate.Role][]string
	pipelineDone bool

	presentIdx int
	settleAt   time.Time
	pauseUntil time.Time
	fired      bool

	cancelLoad context.CancelFunc
}

func NewMachine(opts Options) *Machine {
	if opts.Mode == "" {
		opts.Mode = debate.ModeDebate
	}
	if opts.Rounds < 1 {
		opts.Rounds = 1
	}
	if opts.RevealRunes <= 0 {
		opts.RevealRunes = defaultRevealRunes
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	if opts.TurnPause <= 0 {
		opts.TurnPause = defaultTurnPause
	}
	if opts.VerdictPause <= 0 {
		opts.VerdictPause = defaultVerdictPause
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = defaultSettleDelay
	}
	return &Machine{
		opts:     opts,
		state:    StateLoading,
		expected: debate.ExpectedTurns(opts.Mode, opts.Rounds),
		sources:  map[debate.Role][]string{},
	}
}

func (m *Machine) TickInterval() time.Duration { return m.opts.TickInterval }

// BindCancel attaches the cancel function for the in-flight stream read so
// Stop can abort it.
func (m *Machine) BindCancel(cancel context.CancelFunc) {
	m.mu.Lock()
	m.cancelLoad = cancel
	m.mu.Unlock()
}

// HandleEvent folds one decoded wire event into the buffer. Snapshots whose
// text is shorter than what has already been seen for the turn are stale and
// ignored.
func (m *Machine) HandleEvent(ev wire.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped || m.failed {
		return
	}
	switch ev.Type {
	case wire.EventResearchDone:
		m.sources[debate.Role(ev.Speaker)] = ev.Sources
	case wire.EventStart:
		m.current = &Entry{Role: debate.Role(ev.Speaker), Round: ev.Round, IsVerdict: ev.IsVerdict}
	case wire.EventReasoning:
		if m.current != nil && len(ev.Content) >= len(m.current.Reasoning) {
			m.current.Reasoning = ev.Content
		}
	case wire.EventContent:
		if m.current != nil && len(ev.Content) >= len(m.current.Content) {
			m.current.Content = ev.Content
		}
	case wire.EventDone:
		entry := Entry{Role: debate.Role(ev.Speaker), Round: ev.Round, IsVerdict: ev.IsVerdict}
		if m.current != nil {
			entry = *m.current
		}
		if len(ev.Content) >= len(entry.Content) {
			entry.Content = ev.Content
		}
		if len(ev.Reasoning) >= len(entry.Reasoning) {
			entry.Reasoning = ev.Reasoning
		}
		entry.Revealed = 0
		m.entries = append(m.entries, entry)
		m.current = nil
	case wire.EventComplete:
		m.pipelineDone = true
	case wire.EventError:
		m.failed = true
		m.errMessage = ev.Message
	}
}

// Stop aborts the run. It only has an effect while loading; once presenting
// has begun the buffered content finishes revealing regardless.
func (m *Machine) Stop() bool {
	m.mu.Lock()
	if m.state != StateLoading || m.stopped {
		m.mu.Unlock()
		return false
	}
	m.stopped = true
	cancel := m.cancelLoad
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return true
}

// Tick advances the machine to now. The caller drives it on a fixed
// interval; a stopped, failed, or complete machine ignores ticks.
func (m *Machine) Tick(now time.Time) {
	m.mu.Lock()
	var fire []Final
	switch {
	case m.stopped || m.failed || m.state == StateComplete:
	case m.state == StateLoading:
		if !m.pipelineDone {
			break
		}
		if m.settleAt.IsZero() {
			m.settleAt = now.Add(m.opts.SettleDelay)
			break
		}
		if now.Before(m.settleAt) {
			break
		}
		m.state = StatePresenting
	case m.state == StatePresenting:
		fire = m.reveal(now)
	}
	m.mu.Unlock()
	if fire != nil && m.opts.OnComplete != nil {
		m.opts.OnComplete(fire)
	}
}

// reveal advances exactly one turn's cursor. Caller holds the lock. The
// returned finals are non-nil exactly once, on the transition to complete.
func (m *Machine) reveal(now time.Time) []Final {
	if !m.pauseUntil.IsZero() {
		if now.Before(m.pauseUntil) {
			return nil
		}
		m.pauseUntil = time.Time{}
	}
	if m.presentIdx >= len(m.entries) {
		return m.finish()
	}
	entry := &m.entries[m.presentIdx]
	total := len([]rune(entry.Content))
	if entry.Revealed < total {
		entry.Revealed += m.opts.RevealRunes
		if entry.Revealed < total {
			return nil
		}
		entry.Revealed = total
	}
	pause := m.opts.TurnPause
	if entry.IsVerdict || entry.Role == debate.RoleModerator {
		pause = m.opts.VerdictPause
	}
	m.pauseUntil = now.Add(pause)
	m.presentIdx++
	return nil
}

func (m *Machine) finish() []Final {
	if m.fired {
		m.state = StateComplete
		return nil
	}
	m.fired = true
	m.state = StateComplete
	finals := make([]Final, len(m.entries))
	for i, entry := range m.entries {
		finals[i] = Final{Role: entry.Role, Text: entry.Content}
	}
	return finals
}

// View is a render-ready copy of the machine's state.
type View struct {
	State      State
	Stopped    bool
	Failed     bool
	ErrMessage string
	Progress   float64
	Entries    []Entry
	Sources    map[debate.Role][]string
}

func (m *Machine) Snapshot() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	view := View{
		State:      m.state,
		Stopped:    m.stopped,
		Failed:     m.failed,
		ErrMessage: m.errMessage,
		Entries:    append([]Entry(nil), m.entries...),
		Sources:    make(map[debate.Role][]string, len(m.sources)),
	}
	for role, urls := range m.sources {
		view.Sources[role] = append([]string(nil), urls...)
	}
	if m.expected > 0 {
		view.Progress = float64(len(m.entries)) / float64(m.expected)
		if view.Progress > 1 {
			view.Progress = 1
		}
	}
	return view
}

// RevealedText returns the portion of an entry the reveal cursor has passed.
func (e Entry) RevealedText() string {
	runes := []rune(e.Content)
	if e.Revealed >= len(runes) {
		return e.Content
	}
	return string(runes[:e.Revealed])
}

// Resume preloads a previously persisted completed run so presentation can
// replay it without contacting the server. Incomplete records are refused;
// the caller restarts the run instead.
func (m *Machine) Resume(rec session.Record) bool {
	if !rec.Complete || rec.Question != m.opts.Question {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateLoading || len(m.entries) > 0 {
		return false
	}
	for _, turn := range rec.Turns {
		if turn.Status != debate.TurnDone {
			continue
		}
		m.entries = append(m.entries, Entry{
			Role:      turn.Role,
			Round:     turn.Round,
			IsVerdict: turn.IsVerdict,
			Reasoning: turn.Reasoning,
			Content:   turn.Content,
		})
	}
	for role, urls := range rec.Sources {
		m.sources[role] = append([]string(nil), urls...)
	}
	m.pipelineDone = true
	return true
}

// Record snapshots the buffered run for persistence.
func (m *Machine) Record() session.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := session.Record{
		Question: m.opts.Question,
		Mode:     m.opts.Mode,
		Rounds:   m.opts.Rounds,
		Complete: m.pipelineDone,
		Sources:  make(map[debate.Role][]string, len(m.sources)),
	}
	for role, urls := range m.sources {
		rec.Sources[role] = append([]string(nil), urls...)
	}
	for _, entry := range m.entries {
		rec.Turns = append(rec.Turns, debate.Turn{
			Role:      entry.Role,
			Round:     entry.Round,
			IsVerdict: entry.IsVerdict,
			Reasoning: entry.Reasoning,
			Content:   entry.Content,
			Status:    debate.TurnDone,
		})
	}
	return rec
}
