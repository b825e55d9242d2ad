package session

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileStore keeps one JSON file per question under Dir. Entries older than
// the TTL are treated as missing and reclaimed by Sweep.
type FileStore struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

func NewFileStore(dir string, ttl time.Duration) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("session: dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &FileStore{dir: dir, ttl: ttl, now: time.Now}, nil
}

func questionKey(question string) string {
	h := sha1.Sum([]byte(normalizeQuestion(question)))
	return hex.EncodeToString(h[:])
}

func (s *FileStore) path(question string) string {
	return filepath.Join(s.dir, questionKey(question)+".json")
}

func (s *FileStore) Save(_ context.Context, rec Record) error {
	rec.Question = normalizeQuestion(rec.Question)
	if rec.Question == "" {
		return errors.New("session: question is required")
	}
	if rec.SavedAt.IsZero() {
		rec.SavedAt = s.now()
	}
	path := s.path(rec.Question)
	tmp, err := os.CreateTemp(s.dir, ".tmp_session_*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func (s *FileStore) Load(_ context.Context, question string) (Record, bool, error) {
	question = normalizeQuestion(question)
	if question == "" {
		return Record{}, false, nil
	}
	data, err := os.ReadFile(s.path(question))
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		// Corrupt entry. Treat as missing so the run is simply replayed.
		_ = os.Remove(s.path(question))
		return Record{}, false, nil
	}
	if rec.Question != question {
		return Record{}, false, nil
	}
	if s.now().Sub(rec.SavedAt) > s.ttl {
		_ = os.Remove(s.path(question))
		return Record{}, false, nil
	}
	return rec, true, nil
}

// Sweep removes entries whose TTL has elapsed as of now and reports how many
// files it deleted.
func (s *FileStore) Sweep(now time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var rec Record
		expired := true
		if err := json.Unmarshal(data, &rec); err == nil {
			expired = now.Sub(rec.SavedAt) > s.ttl
		}
		if !expired {
			continue
		}
		if err := os.Remove(path); err == nil {
			removed++
		}
	}
	return removed, nil
}
