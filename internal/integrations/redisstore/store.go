// Package redisstore keeps conversation intelligence in Redis lists, one list
// per conversation.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/omkar861856/agentic-honeypot32/internal/domain"
)

const (
	keyPrefix          = "honeypot:conv:"
	defaultTTL         = 30 * 24 * time.Hour
	defaultSearchLimit = 50
)

// redisAPI is the subset of *redis.Client used by Store.
type redisAPI interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

type storedEntry struct {
	Memory    string            `json:"memory"`
	Role      string            `json:"role"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt string            `json:"created_at"`
}

type Store struct {
	api         redisAPI
	ttl         time.Duration
	searchLimit int
}

func New(api redisAPI, ttl time.Duration, searchLimit int) (*Store, error) {
	if api == nil {
		return nil, errors.New("redisstore: api must not be nil")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if searchLimit <= 0 {
		searchLimit = defaultSearchLimit
	}
	return &Store{api: api, ttl: ttl, searchLimit: searchLimit}, nil
}

// Dial connects to redisURL and verifies the connection with PING.
func Dial(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redisstore: parse url: %w", err)
	}
	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisstore: ping: %w", err)
	}
	return client, nil
}

func listKey(conversationID string) string {
	return keyPrefix + conversationID
}

// Search returns the newest entries of the conversation, oldest first,
// keeping those whose content or metadata contains query.
func (s *Store) Search(ctx context.Context, query, conversationID string) ([]domain.MemoryEntry, error) {
	vals, err := s.api.LRange(ctx, listKey(conversationID), -int64(s.searchLimit), -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redisstore: search: %w", err)
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	entries := make([]domain.MemoryEntry, 0, len(vals))
	for _, v := range vals {
		var stored storedEntry
		if err := json.Unmarshal([]byte(v), &stored); err != nil {
			entries = appendIfMatch(entries, domain.RawTextEntry(v), v, nil, needle)
			continue
		}
		var entry domain.MemoryEntry
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			return nil, fmt.Errorf("redisstore: search: decode entry: %w", err)
		}
		entries = appendIfMatch(entries, entry, stored.Memory, stored.Metadata, needle)
	}
	return entries, nil
}

func appendIfMatch(entries []domain.MemoryEntry, e domain.MemoryEntry, content string, meta map[string]string, needle string) []domain.MemoryEntry {
	if needle == "" || strings.Contains(strings.ToLower(content), needle) {
		return append(entries, e)
	}
	for _, v := range meta {
		if strings.Contains(strings.ToLower(v), needle) {
			return append(entries, e)
		}
	}
	return entries
}

// Add appends messages to the conversation list and refreshes its TTL.
func (s *Store) Add(ctx context.Context, conversationID string, messages []domain.MemoryMessage, metadata map[string]string) error {
	if strings.TrimSpace(conversationID) == "" {
		return errors.New("redisstore: add: conversation id is required")
	}
	if len(messages) == 0 {
		return errors.New("redisstore: add: no messages")
	}
	createdAt := now().UTC().Format(time.RFC3339Nano)
	values := make([]interface{}, 0, len(messages))
	for _, m := range messages {
		b, err := json.Marshal(storedEntry{Memory: m.Content, Role: m.Role, Metadata: metadata, CreatedAt: createdAt})
		if err != nil {
			return fmt.Errorf("redisstore: add: encode entry: %w", err)
		}
		values = append(values, string(b))
	}
	key := listKey(conversationID)
	if err := s.api.RPush(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("redisstore: add: %w", err)
	}
	if err := s.api.Expire(ctx, key, s.ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: add: expire: %w", err)
	}
	return nil
}

var now = time.Now
