package playback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"debate_arena/internal/wire"
)

const defaultStreamTimeout = 10 * time.Minute

// Consume reads a framed event stream chunk by chunk and folds every decoded
// event into the machine until a terminal event, EOF, or cancellation.
// Cancellation is not an error; it is how Stop ends the read.
func (m *Machine) Consume(ctx context.Context, r io.Reader) error {
	decoder := &wire.Decoder{}
	buf := make([]byte, 4096)
	for {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			for _, ev := range decoder.Feed(buf[:n]) {
				m.HandleEvent(ev)
				if ev.Terminal() {
					return nil
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

// RunRequest is the body posted to start a run.
type RunRequest struct {
	Question string `json:"question,omitempty"`
	Message  string `json:"message,omitempty"`
	Rounds   int    `json:"rounds,omitempty"`
}

// OpenStream posts a run request and hands back the raw event stream. A
// non-success status is surfaced as an error before any event is decoded.
func OpenStream(ctx context.Context, client *http.Client, baseURL, path string, req RunRequest) (io.ReadCloser, error) {
	if client == nil {
		client = &http.Client{Timeout: defaultStreamTimeout}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	url := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		_ = resp.Body.Close()
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("run request rejected: %s", msg)
	}
	return resp.Body, nil
}
