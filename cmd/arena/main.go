package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"debate_arena/internal/config"
	"debate_arena/internal/debate"
	"debate_arena/internal/llm"
	"debate_arena/internal/playback"
	"debate_arena/internal/research"
	"debate_arena/internal/runlog"
	"debate_arena/internal/session"
	"debate_arena/internal/tui"
	"debate_arena/internal/web"
	"debate_arena/internal/wire"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "watch":
		err = runWatch(os.Args[2:])
	case "ask":
		err = runAsk(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, strings.TrimSpace(`
usage: arena <command> [flags]

commands:
  serve   run the arena server
  watch   interactive debate viewer
  ask     stream a single chat answer to stdout
`))
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.yaml")
	addr := fs.String("addr", "", "listen address (overrides config)")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if strings.TrimSpace(*addr) != "" {
		cfg.Server.Addr = *addr
	}

	logger, err := runlog.Open(cfg.Log.File)
	if err != nil {
		return err
	}
	defer logger.Close()
	logf := func(format string, args ...any) {
		logger.Logf(runlog.KindRun, format, args...)
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	var researcher debate.Researcher
	if strings.TrimSpace(cfg.Tavily.APIKey) != "" {
		researcher = &research.Tavily{
			APIKey:     cfg.Tavily.APIKey,
			BaseURL:    cfg.Tavily.BaseURL,
			MaxResults: cfg.Tavily.MaxResults,
		}
	} else {
		logger.Log(runlog.KindResearch, "no tavily api key configured, research phase disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	server, err := web.NewServer(web.Options{
		Addr:      cfg.Server.Addr,
		Completer: client,
		Research:  researcher,
		CheckCredential: func(context.Context) error {
			return client.CheckCredential()
		},
		Store:     store,
		MaxRounds: cfg.Server.MaxRounds,
		Logf:      logf,
	})
	if err != nil {
		return err
	}
	return server.Start(ctx)
}

func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	server := fs.String("server", "http://127.0.0.1:8080", "arena server base url")
	rounds := fs.Int("rounds", 1, "debate rounds")
	chat := fs.Bool("chat", false, "single-answer chat mode instead of a debate")
	sessionDir := fs.String("session-dir", defaultSessionDir(), "local replay cache directory (empty to disable)")
	question := fs.String("question", "", "question to submit immediately")
	fs.Parse(args)

	mode := debate.ModeDebate
	if *chat {
		mode = debate.ModeChat
	}

	var store session.Store
	if strings.TrimSpace(*sessionDir) != "" {
		fileStore, err := session.NewFileStore(*sessionDir, session.DefaultTTL)
		if err != nil {
			return err
		}
		store = fileStore
	}

	return tui.Run(context.Background(), os.Stdin, os.Stdout, tui.Options{
		BaseURL:  *server,
		Mode:     mode,
		Rounds:   *rounds,
		Store:    store,
		Question: *question,
	})
}

// runAsk streams one chat-mode answer to stdout without the TUI, useful for
// scripting and for smoke-testing a server.
func runAsk(args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	server := fs.String("server", "http://127.0.0.1:8080", "arena server base url")
	timeout := fs.Duration("timeout", 5*time.Minute, "overall request timeout")
	fs.Parse(args)

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		return fmt.Errorf("usage: arena ask [flags] <question>")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	body, err := playback.OpenStream(ctx, nil, *server, "/api/chat", playback.RunRequest{Message: question})
	if err != nil {
		return err
	}
	defer body.Close()

	decoder := &wire.Decoder{}
	buf := make([]byte, 4096)
	printed := 0
	for {
		n, readErr := body.Read(buf)
		for _, ev := range decoder.Feed(buf[:n]) {
			switch ev.Type {
			case wire.EventContent:
				// Snapshots are cumulative; print only the new tail.
				if len(ev.Content) > printed {
					fmt.Print(ev.Content[printed:])
					printed = len(ev.Content)
				}
			case wire.EventComplete:
				fmt.Println()
				return nil
			case wire.EventError:
				fmt.Println()
				return fmt.Errorf("%s", ev.Message)
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				fmt.Println()
				return nil
			}
			return readErr
		}
	}
}

func newClient(cfg *config.Config) (*llm.Client, error) {
	provider, err := llm.ParseProvider(cfg.Model.Provider)
	if err != nil {
		return nil, err
	}
	return llm.NewClient(llm.Options{
		Provider:  provider,
		BaseURL:   cfg.Model.BaseURL,
		APIKey:    cfg.Model.APIKey,
		Model:     cfg.Model.Model,
		MaxTokens: cfg.Model.MaxTokens,
		Referer:   cfg.Model.Referer,
		AppTitle:  cfg.Model.Title,
	})
}

func newStore(ctx context.Context, cfg *config.Config, logger *runlog.Logger) (session.Store, error) {
	ttl := time.Duration(cfg.Session.TTLMinutes) * time.Minute
	if url := strings.TrimSpace(cfg.Session.RedisURL); url != "" {
		store, err := session.NewRedisStore(url, ttl)
		if err != nil {
			return nil, err
		}
		logger.Log(runlog.KindSession, "using redis session store")
		return store, nil
	}
	store, err := session.NewFileStore(cfg.Session.Dir, ttl)
	if err != nil {
		return nil, err
	}
	if _, err := session.StartSweeper(ctx, store, "", func(format string, args ...any) {
		logger.Logf(runlog.KindSession, format, args...)
	}); err != nil {
		return nil, err
	}
	return store, nil
}

func defaultSessionDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "data/sessions"
	}
	return home + "/.arena/sessions"
}
