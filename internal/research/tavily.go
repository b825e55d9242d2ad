// Package research gathers background source URLs for each side of a debate
// via the Tavily Search API.
package research

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

	"debate_arena/internal/debate"
)

const (
	defaultTavilyBaseURL          = "https://api.tavily.com"
	defaultTavilyTimeout          = 30 * time.Second
	defaultTavilyMaxResponseBytes = 256 * 1024
	defaultTavilyMaxResults       = 3
)

// stanceQueries biases the search toward material supporting each side.
var stanceQueries = map[debate.Role]string{
	debate.RoleBlue: "arguments and evidence in favor",
	debate.RoleRed:  "arguments and evidence against counterpoints",
}

// Tavily implements debate.Researcher against the Tavily /search endpoint.
type Tavily struct {
	APIKey     string
	BaseURL    string
	MaxResults int
	HTTPClient *http.Client
}

func (t *Tavily) resolvedBaseURL() string {
	base := strings.TrimSpace(t.BaseURL)
	if base == "" {
		return defaultTavilyBaseURL
	}
	return strings.TrimRight(base, "/")
}

func (t *Tavily) resolvedHTTPClient() *http.Client {
	if t.HTTPClient != nil {
		return t.HTTPClient
	}
	return &http.Client{Timeout: defaultTavilyTimeout}
}

func (t *Tavily) resolvedMaxResults() int {
	if t.MaxResults > 0 {
		return t.MaxResults
	}
	return defaultTavilyMaxResults
}

type tavilySearchResponse struct {
	Results []struct {
		URL string `json:"url"`
	} `json:"results"`
}

// Sources searches for stance-supporting material and returns the result
// URLs, deduplicated, at most MaxResults.
func (t *Tavily) Sources(ctx context.Context, question string, stance debate.Role) ([]string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("question is required")
	}
	if strings.TrimSpace(t.APIKey) == "" {
		return nil, errors.New("tavily api key is required (set TAVILY_API_KEY or tavily.api_key in config.yaml)")
	}

	query := question
	if suffix := stanceQueries[stance]; suffix != "" {
		query = question + " " + suffix
	}
	payload := map[string]any{
		"query":        query,
		"search_depth": "basic",
		"max_results":  t.resolvedMaxResults(),
	}

	body, err := t.doJSON(ctx, "/search", payload)
	if err != nil {
		return nil, err
	}

	var parsed tavilySearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode tavily response: %w", err)
	}
	seen := make(map[string]bool, len(parsed.Results))
	urls := make([]string, 0, len(parsed.Results))
	for _, result := range parsed.Results {
		u := strings.TrimSpace(result.URL)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
		if len(urls) >= t.resolvedMaxResults() {
			break
		}
	}
	return urls, nil
}

func (t *Tavily) doJSON(ctx context.Context, endpoint string, payload map[string]any) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, defaultTavilyTimeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, t.resolvedBaseURL()+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(t.APIKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.resolvedHTTPClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := readLimited(resp.Body, defaultTavilyMaxResponseBytes)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(data))
		if len(snippet) > 500 {
			snippet = snippet[:500] + "…"
		}
		return nil, fmt.Errorf("tavily api error: %s: %s", resp.Status, snippet)
	}
	return data, nil
}

func readLimited(r io.Reader, maxBytes int) ([]byte, error) {
	limited := io.LimitReader(r, int64(maxBytes)+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if len(data) > maxBytes {
		return data[:maxBytes], nil
	}
	return data, nil
}
