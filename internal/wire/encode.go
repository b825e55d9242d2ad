package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Encoder writes events as SSE frames to a single outbound byte sink. Each
// event is flushed as soon as it is written; the first byte of a turn's first
// frame never waits for the turn to finish.
type Encoder struct {
	mu    sync.Mutex
	w     io.Writer
	flush func()
}

// NewEncoder wraps w. If w implements http.Flusher (or exposes one via
// Unwrap-style embedding), every frame is flushed immediately after writing.
func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{w: w, flush: func() {}}
	if f, ok := w.(http.Flusher); ok {
		e.flush = f.Flush
	}
	return e
}

// PrepareHeaders sets the response headers required for an SSE stream.
// Call before the first Write.
func PrepareHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// Write serializes one event as an SSE frame and flushes it.
func (e *Encoder) Write(ev Event) error {
	if e == nil || e.w == nil {
		return errors.New("encoder is not initialized")
	}
	if !Known(ev.Type) {
		return fmt.Errorf("unknown event type: %q", ev.Type)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return err
	}
	e.flush()
	return nil
}

// Comment writes an SSE comment line. Decoders ignore it; useful as a
// keepalive on idle connections.
func (e *Encoder) Comment(text string) error {
	if e == nil || e.w == nil {
		return errors.New("encoder is not initialized")
	}
	line := strings.ReplaceAll(strings.TrimSpace(text), "\n", " ")

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := fmt.Fprintf(e.w, ": %s\n\n", line); err != nil {
		return err
	}
	e.flush()
	return nil
}
