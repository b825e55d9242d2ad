package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists records in redis with a native TTL, for deployments
// where several servers answer resume requests.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	url := strings.TrimSpace(redisURL)
	if url == "" {
		return nil, errors.New("session: redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func redisKey(question string) string {
	return fmt.Sprintf("arena:session:%s", questionKey(question))
}

func (s *RedisStore) Save(ctx context.Context, rec Record) error {
	rec.Question = normalizeQuestion(rec.Question)
	if rec.Question == "" {
		return errors.New("session: question is required")
	}
	if rec.SavedAt.IsZero() {
		rec.SavedAt = time.Now()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKey(rec.Question), data, s.ttl).Err()
}

func (s *RedisStore) Load(ctx context.Context, question string) (Record, bool, error) {
	question = normalizeQuestion(question)
	if question == "" {
		return Record{}, false, nil
	}
	data, err := s.client.Get(ctx, redisKey(question)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, nil
	}
	if rec.Question != question {
		return Record{}, false, nil
	}
	return rec, true, nil
}

func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
