// Package session persists finished and in-progress run transcripts so a
// client can resume a question it already asked instead of replaying the
// whole pipeline.
package session

import (
	"context"
	"strings"
	"time"

	"debate_arena/internal/debate"
)

// DefaultTTL is how long a saved run stays resumable.
const DefaultTTL = time.Hour

// Record is one persisted run, keyed by its question.
type Record struct {
	Question string                   `json:"question"`
	Mode     debate.Mode              `json:"mode"`
	Rounds   int                      `json:"rounds,omitempty"`
	Turns    []debate.Turn            `json:"turns,omitempty"`
	Sources  map[debate.Role][]string `json:"sources,omitempty"`
	Complete bool                     `json:"complete"`
	SavedAt  time.Time                `json:"savedAt"`
}

// Store loads and saves records. Load reports found=false for unknown,
// expired, or unreadable entries; it never fabricates a partial record.
type Store interface {
	Load(ctx context.Context, question string) (Record, bool, error)
	Save(ctx context.Context, rec Record) error
}

// Key normalizes a question for use as a storage key.
func normalizeQuestion(question string) string {
	return strings.TrimSpace(question)
}
