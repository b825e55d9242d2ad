package debate

import (
	"context"
	"errors"
	"strings"
	"time"

	"debate_arena/internal/llm"
	"debate_arena/internal/wire"
)

const (
	defaultTurnTimeout = 2 * time.Minute
	defaultRunTimeout  = 5 * time.Minute
)

// Sink receives the ordered event stream for one run. A sink error aborts
// the run immediately (typically the client hung up).
type Sink interface {
	Emit(ev wire.Event) error
}

type SinkFunc func(ev wire.Event) error

func (f SinkFunc) Emit(ev wire.Event) error { return f(ev) }

// Completer streams one chat completion, invoking onDelta for each chunk.
type Completer interface {
	StreamChat(ctx context.Context, messages []llm.Message, onDelta func(llm.StreamDelta) error) (llm.StreamResult, error)
}

// Researcher gathers background source URLs for one side of the question.
type Researcher interface {
	Sources(ctx context.Context, question string, stance Role) ([]string, error)
}

type SchedulerOptions struct {
	Completer Completer
	Research  Researcher // optional; research phase is skipped when nil
	Mode      Mode
	Rounds    int
	// TurnTimeout bounds a single agent turn, RunTimeout the whole run.
	TurnTimeout time.Duration
	RunTimeout  time.Duration
	Logf        func(format string, args ...any)
}

// Scheduler runs turns strictly one at a time in plan order. It never
// interleaves two in-flight completions.
type Scheduler struct {
	completer   Completer
	research    Researcher
	mode        Mode
	rounds      int
	turnTimeout time.Duration
	runTimeout  time.Duration
	logf        func(format string, args ...any)
}

func NewScheduler(opts SchedulerOptions) (*Scheduler, error) {
	if opts.Completer == nil {
		return nil, errors.New("debate: completer is required")
	}
	if opts.Mode == "" {
		opts.Mode = ModeDebate
	}
	if opts.Rounds < 1 {
		opts.Rounds = 1
	}
	if opts.TurnTimeout <= 0 {
		opts.TurnTimeout = defaultTurnTimeout
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = defaultRunTimeout
	}
	logf := opts.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Scheduler{
		completer:   opts.Completer,
		research:    opts.Research,
		mode:        opts.Mode,
		rounds:      opts.Rounds,
		turnTimeout: opts.TurnTimeout,
		runTimeout:  opts.RunTimeout,
		logf:        logf,
	}, nil
}

func (s *Scheduler) Mode() Mode  { return s.mode }
func (s *Scheduler) Rounds() int { return s.rounds }

// Run executes the full pipeline for question and emits every event to sink.
// Cancellation stops the run silently: no error event, no complete event.
// Any other failure emits a single in-band error event and stops.
func (s *Scheduler) Run(ctx context.Context, question string, sink Sink) ([]Turn, error) {
	if sink == nil {
		return nil, errors.New("debate: sink is required")
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("debate: question is required")
	}
	ctx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	builder := &ContextBuilder{Question: question, Sources: map[Role][]string{}}

	if s.mode == ModeDebate && s.research != nil {
		if err := s.runResearch(ctx, question, builder, sink); err != nil {
			return nil, err
		}
	}

	var finished []Turn
	for _, spec := range Plan(s.mode, s.rounds) {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.Canceled) {
				return finished, err
			}
			_ = sink.Emit(wire.Event{Type: wire.EventError, Message: llm.UserMessage(llm.KindUpstream)})
			return finished, err
		}
		if err := sink.Emit(wire.Event{
			Type:      wire.EventStart,
			Speaker:   string(spec.Role),
			Round:     spec.Round,
			IsVerdict: spec.IsVerdict,
		}); err != nil {
			return finished, err
		}
		turn, err := s.runTurn(ctx, builder, spec, finished, sink)
		if err != nil {
			kind := llm.Classify(err)
			if kind == llm.KindCancelled {
				return finished, err
			}
			s.logf("turn %s round %d failed (%s): %v", spec.Role, spec.Round, kind, err)
			_ = sink.Emit(wire.Event{Type: wire.EventError, Message: llm.UserMessage(kind)})
			return finished, err
		}
		finished = append(finished, turn)
		if err := sink.Emit(wire.Event{
			Type:      wire.EventDone,
			Speaker:   string(spec.Role),
			Round:     spec.Round,
			IsVerdict: spec.IsVerdict,
			Content:   turn.Content,
			Reasoning: turn.Reasoning,
		}); err != nil {
			return finished, err
		}
	}
	if err := sink.Emit(wire.Event{Type: wire.EventComplete}); err != nil {
		return finished, err
	}
	return finished, nil
}

// runResearch gathers sources for both sides before the first turn. A failed
// lookup degrades to an empty source list rather than aborting the debate.
func (s *Scheduler) runResearch(ctx context.Context, question string, builder *ContextBuilder, sink Sink) error {
	if err := sink.Emit(wire.Event{Type: wire.EventResearchStart}); err != nil {
		return err
	}
	for _, side := range Sides() {
		if err := ctx.Err(); err != nil {
			return err
		}
		sources, err := s.research.Sources(ctx, question, side)
		if err != nil {
			if llm.Classify(err) == llm.KindCancelled {
				return err
			}
			s.logf("research for %s failed: %v", side, err)
			sources = nil
		}
		if err := sink.Emit(wire.Event{
			Type:    wire.EventResearchDone,
			Speaker: string(side),
			Sources: sources,
		}); err != nil {
			return err
		}
		builder.Sources[side] = sources
	}
	return nil
}

func (s *Scheduler) runTurn(ctx context.Context, builder *ContextBuilder, spec TurnSpec, finished []Turn, sink Sink) (Turn, error) {
	turnCtx, cancel := context.WithTimeout(ctx, s.turnTimeout)
	defer cancel()

	turn := Turn{Role: spec.Role, Round: spec.Round, IsVerdict: spec.IsVerdict, Status: TurnActive}
	scanner := &sentinelScanner{}
	structured := false

	snapshot := func(eventType wire.EventType, text string) error {
		return sink.Emit(wire.Event{
			Type:      eventType,
			Speaker:   string(spec.Role),
			Round:     spec.Round,
			IsVerdict: spec.IsVerdict,
			Content:   text,
		})
	}
	grow := func(reasoning, content string) error {
		if reasoning != "" {
			turn.Reasoning += reasoning
			if err := snapshot(wire.EventReasoning, turn.Reasoning); err != nil {
				return err
			}
		}
		if content != "" {
			turn.Content += content
			if err := snapshot(wire.EventContent, turn.Content); err != nil {
				return err
			}
		}
		return nil
	}

	_, err := s.completer.StreamChat(turnCtx, builder.Messages(spec, finished), func(d llm.StreamDelta) error {
		if d.Reasoning != "" {
			if !structured {
				structured = true
				if err := grow("", scanner.Disable()); err != nil {
					return err
				}
			}
			if err := grow(d.Reasoning, ""); err != nil {
				return err
			}
		}
		if d.Content != "" {
			var reasoning, content string
			if structured {
				content = d.Content
			} else {
				reasoning, content = scanner.Scan(d.Content)
			}
			if err := grow(reasoning, content); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		turn.Status = TurnErrored
		return turn, err
	}
	// Drain anything the scanner was still holding so the done event matches
	// the last snapshot.
	if reasoning, content := scanner.Flush(); reasoning != "" || content != "" {
		if err := grow(reasoning, content); err != nil {
			turn.Status = TurnErrored
			return turn, err
		}
	}
	turn.Status = TurnDone
	return turn, nil
}
