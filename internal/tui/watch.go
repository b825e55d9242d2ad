// Package tui is the terminal viewer for a debate run: it starts a run
// against an arena server, buffers the event stream, and plays it back with
// the typewriter reveal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"debate_arena/internal/debate"
	"debate_arena/internal/playback"
	"debate_arena/internal/session"
)

var watchSpinnerFrames = []string{"|", "/", "-", "\\"}

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Mode       debate.Mode
	Rounds     int
	// Store, when set, lets the viewer replay a recent run for the same
	// question without contacting the server.
	Store    session.Store
	Question string
}

func Run(ctx context.Context, in io.Reader, out io.Writer, opts Options) error {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return errors.New("tui: server base url is required")
	}
	if f, ok := out.(*os.File); ok {
		if !term.IsTerminal(int(f.Fd())) {
			return fmt.Errorf("stdout is not a TTY")
		}
	}
	if opts.Mode == "" {
		opts.Mode = debate.ModeDebate
	}
	if opts.Rounds < 1 {
		opts.Rounds = 1
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prog := tea.NewProgram(
		newWatchModel(ctx, opts),
		tea.WithAltScreen(),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	_, err := prog.Run()
	return err
}

type watchTickMsg time.Time

type watchStreamDoneMsg struct {
	err error
}

type watchModel struct {
	ctx  context.Context
	opts Options

	input    textinput.Model
	viewport viewport.Model

	machine  *playback.Machine
	question string
	running  bool
	replayed bool
	notice   string

	width        int
	height       int
	ready        bool
	spinnerFrame int
}

func newWatchModel(ctx context.Context, opts Options) watchModel {
	input := textinput.New()
	input.Placeholder = "ask a question to start a debate"
	input.CharLimit = 400
	input.SetValue(strings.TrimSpace(opts.Question))
	input.Focus()
	return watchModel{ctx: ctx, opts: opts, input: input}
}

func (m watchModel) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, watchTick()}
	if strings.TrimSpace(m.opts.Question) != "" {
		// Auto-submit a question given on the command line.
		cmds = append(cmds, func() tea.Msg {
			return tea.KeyMsg{Type: tea.KeyEnter}
		})
	}
	return tea.Batch(cmds...)
}

func watchTick() tea.Cmd {
	return tea.Tick(40*time.Millisecond, func(t time.Time) tea.Msg { return watchTickMsg(t) })
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := m.height - 6
		if vpHeight < 3 {
			vpHeight = 3
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		return m, nil

	case watchTickMsg:
		m.spinnerFrame++
		if m.machine != nil {
			m.machine.Tick(time.Time(msg))
			if m.ready {
				atBottom := m.viewport.AtBottom()
				m.viewport.SetContent(m.renderTranscript())
				if atBottom {
					m.viewport.GotoBottom()
				}
			}
		}
		return m, watchTick()

	case watchStreamDoneMsg:
		m.running = false
		if msg.err != nil {
			m.notice = msg.err.Error()
		} else if m.machine != nil && m.opts.Store != nil && !m.replayed {
			rec := m.machine.Record()
			if rec.Complete {
				saveCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				_ = m.opts.Store.Save(saveCtx, rec)
				cancel()
			}
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEsc:
			if m.machine != nil && m.machine.Stop() {
				m.notice = "run stopped"
				return m, nil
			}
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m watchModel) submit() (tea.Model, tea.Cmd) {
	if m.running {
		return m, nil
	}
	question := strings.TrimSpace(m.input.Value())
	if question == "" {
		return m, nil
	}
	m.question = question
	m.notice = ""
	m.replayed = false
	m.machine = playback.NewMachine(playback.Options{
		Question: question,
		Mode:     m.opts.Mode,
		Rounds:   m.opts.Rounds,
	})
	m.input.Blur()

	// Prefer a still-fresh saved run over replaying the pipeline.
	if m.opts.Store != nil {
		loadCtx, cancel := context.WithTimeout(m.ctx, 2*time.Second)
		rec, found, err := m.opts.Store.Load(loadCtx, question)
		cancel()
		if err == nil && found && m.machine.Resume(rec) {
			m.replayed = true
			m.notice = "replaying saved run"
			return m, nil
		}
	}

	m.running = true
	streamCtx, cancel := context.WithCancel(m.ctx)
	m.machine.BindCancel(cancel)
	machine := m.machine
	cfg := m.opts
	return m, func() tea.Msg {
		path := "/api/debate"
		req := playback.RunRequest{Question: question, Rounds: cfg.Rounds}
		if cfg.Mode == debate.ModeChat {
			path = "/api/chat"
			req = playback.RunRequest{Message: question}
		}
		body, err := playback.OpenStream(streamCtx, cfg.HTTPClient, cfg.BaseURL, path, req)
		if err != nil {
			cancel()
			return watchStreamDoneMsg{err: err}
		}
		defer body.Close()
		defer cancel()
		return watchStreamDoneMsg{err: machine.Consume(streamCtx, body)}
	}
}

var (
	watchTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	watchDimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	watchErrStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	watchSourceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

func roleStyle(role debate.Role) lipgloss.Style {
	switch role {
	case debate.RoleBlue:
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	case debate.RoleRed:
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	case debate.RoleModerator:
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))
	default:
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	}
}

func entryLabel(entry playback.Entry) string {
	switch {
	case entry.IsVerdict:
		return "moderator · verdict"
	case entry.Round > 0:
		return fmt.Sprintf("%s · round %d", entry.Role, entry.Round)
	default:
		return string(entry.Role)
	}
}

// progressBar renders loading progress as a fixed-width bar.
func progressBar(frac float64, width int) string {
	if width <= 0 {
		return ""
	}
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	filled := int(frac * float64(width))
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

// truncate clips a string to the given display width, runewidth-aware.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

func (m watchModel) renderTranscript() string {
	if m.machine == nil {
		return ""
	}
	view := m.machine.Snapshot()
	var b strings.Builder

	for _, side := range debate.Sides() {
		if sources := view.Sources[side]; len(sources) > 0 {
			b.WriteString(watchSourceStyle.Render(fmt.Sprintf("sources (%s): %s", side, strings.Join(sources, "  "))))
			b.WriteString("\n")
		}
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}

	for _, entry := range view.Entries {
		text := entry.RevealedText()
		if text == "" {
			continue
		}
		b.WriteString(roleStyle(entry.Role).Render(entryLabel(entry)))
		b.WriteString("\n")
		if entry.Reasoning != "" && text == entry.Content {
			b.WriteString(watchDimStyle.Render(truncate("thought: "+entry.Reasoning, 200)))
			b.WriteString("\n")
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	return b.String()
}

func (m watchModel) View() string {
	if !m.ready {
		return "loading…"
	}
	var b strings.Builder
	title := "debate arena"
	if m.question != "" {
		title = truncate(m.question, m.width-4)
	}
	b.WriteString(watchTitleStyle.Render(title))
	b.WriteString("\n")

	if m.machine != nil {
		view := m.machine.Snapshot()
		switch {
		case view.Failed:
			b.WriteString(watchErrStyle.Render("error: " + view.ErrMessage))
		case view.Stopped:
			b.WriteString(watchDimStyle.Render("stopped"))
		case view.State == playback.StateLoading:
			spinner := watchSpinnerFrames[m.spinnerFrame%len(watchSpinnerFrames)]
			b.WriteString(watchDimStyle.Render(fmt.Sprintf("%s generating %s", spinner, progressBar(view.Progress, 20))))
		case view.State == playback.StatePresenting:
			b.WriteString(watchDimStyle.Render("presenting"))
		case view.State == playback.StateComplete:
			b.WriteString(watchDimStyle.Render("complete"))
		}
		b.WriteString("\n")
	}

	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.notice != "" {
		b.WriteString(watchDimStyle.Render(m.notice))
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(watchDimStyle.Render("enter: ask · esc: stop/quit · ctrl+c: quit"))
	return b.String()
}
