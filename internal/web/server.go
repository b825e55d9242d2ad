// Package web exposes the debate pipeline over HTTP: one streaming endpoint
// per mode, a resume lookup, an HTML transcript export, and a websocket feed
// for spectators.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"debate_arena/internal/debate"
	"debate_arena/internal/session"
	"debate_arena/internal/wire"
)

const defaultMaxRounds = 5

type Options struct {
	Addr      string
	Completer debate.Completer
	Research  debate.Researcher
	// CheckCredential verifies the upstream credential before any stream is
	// opened, so a bad key fails the request instead of the run.
	CheckCredential func(ctx context.Context) error
	Store           session.Store
	MaxRounds       int
	TurnTimeout     time.Duration
	RunTimeout      time.Duration
	Logf            func(format string, args ...any)
}

type Server struct {
	opts Options
	hub  *Hub
}

func NewServer(opts Options) (*Server, error) {
	if opts.Completer == nil {
		return nil, errors.New("web: completer is required")
	}
	if strings.TrimSpace(opts.Addr) == "" {
		opts.Addr = ":8080"
	}
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = defaultMaxRounds
	}
	if opts.Logf == nil {
		opts.Logf = func(string, ...any) {}
	}
	return &Server{opts: opts, hub: NewHub()}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/debate", s.handleDebate)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/session", s.handleSession)
	mux.HandleFunc("GET /api/transcript", s.handleTranscript)
	mux.HandleFunc("GET /api/watch", s.handleWatch)
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{Addr: s.opts.Addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	s.opts.Logf("web server listening on %s", s.opts.Addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

type debateRequest struct {
	Question string `json:"question"`
	Rounds   int    `json:"rounds,omitempty"`
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleDebate(w http.ResponseWriter, r *http.Request) {
	var req debateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		jsonError(w, "question is required", http.StatusBadRequest)
		return
	}
	rounds := req.Rounds
	if rounds < 1 {
		rounds = 1
	}
	if rounds > s.opts.MaxRounds {
		rounds = s.opts.MaxRounds
	}
	s.stream(w, r, question, debate.ModeDebate, rounds)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		jsonError(w, "message is required", http.StatusBadRequest)
		return
	}
	s.stream(w, r, message, debate.ModeChat, 0)
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request, question string, mode debate.Mode, rounds int) {
	if s.opts.CheckCredential != nil {
		if err := s.opts.CheckCredential(r.Context()); err != nil {
			s.opts.Logf("credential check failed: %v", err)
			jsonError(w, "upstream credential is missing or invalid", http.StatusUnauthorized)
			return
		}
	}

	sched, err := debate.NewScheduler(debate.SchedulerOptions{
		Completer:   s.opts.Completer,
		Research:    s.opts.Research,
		Mode:        mode,
		Rounds:      rounds,
		TurnTimeout: s.opts.TurnTimeout,
		RunTimeout:  s.opts.RunTimeout,
		Logf:        s.opts.Logf,
	})
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	wire.PrepareHeaders(w.Header())
	w.WriteHeader(http.StatusOK)
	enc := wire.NewEncoder(w)
	sink := debate.SinkFunc(func(ev wire.Event) error {
		s.hub.Broadcast(ev)
		return enc.Write(ev)
	})

	turns, runErr := sched.Run(r.Context(), question, sink)
	if runErr != nil {
		s.opts.Logf("%s run for %q ended early: %v", mode, preview(question), runErr)
	}
	s.persist(question, mode, rounds, turns, runErr == nil)
}

func (s *Server) persist(question string, mode debate.Mode, rounds int, turns []debate.Turn, complete bool) {
	if s.opts.Store == nil || len(turns) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rec := session.Record{
		Question: question,
		Mode:     mode,
		Rounds:   rounds,
		Turns:    turns,
		Complete: complete,
	}
	if err := s.opts.Store.Save(ctx, rec); err != nil {
		s.opts.Logf("persist session for %q failed: %v", preview(question), err)
	}
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadRecord(w, r)
	if !ok {
		return
	}
	jsonResponse(w, rec, http.StatusOK)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadRecord(w, r)
	if !ok {
		return
	}
	page, err := RenderTranscriptHTML(rec)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(page))
}

func (s *Server) loadRecord(w http.ResponseWriter, r *http.Request) (session.Record, bool) {
	if s.opts.Store == nil {
		jsonError(w, "session store is not configured", http.StatusNotFound)
		return session.Record{}, false
	}
	question := strings.TrimSpace(r.URL.Query().Get("question"))
	if question == "" {
		jsonError(w, "question is required", http.StatusBadRequest)
		return session.Record{}, false
	}
	rec, found, err := s.opts.Store.Load(r.Context(), question)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return session.Record{}, false
	}
	if !found {
		jsonError(w, "no saved run for this question", http.StatusNotFound)
		return session.Record{}, false
	}
	return rec, true
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWatch(w, r, s.opts.Logf)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	jsonResponse(w, map[string]string{"error": message}, status)
}

func jsonResponse(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func preview(s string) string {
	if len(s) > 60 {
		return s[:60] + "…"
	}
	return s
}
