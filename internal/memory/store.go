// Package memory is an in-process MemoryGateway for local runs and the simulator.
package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/omkar861856/agentic-honeypot32/internal/domain"
)

type entry struct {
	role      string
	content   string
	metadata  map[string]string
	createdAt time.Time
}

// Store keeps entries per conversation until the process exits.
type Store struct {
	mu    sync.RWMutex
	convs map[string][]entry
	limit int
}

// New returns an empty Store. limit caps Search results; zero keeps everything.
func New(limit int) *Store {
	return &Store{convs: make(map[string][]entry), limit: limit}
}

func (s *Store) Search(ctx context.Context, query, conversationID string) ([]domain.MemoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(query))

	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.convs[conversationID]
	if s.limit > 0 && len(entries) > s.limit {
		entries = entries[len(entries)-s.limit:]
	}
	out := make([]domain.MemoryEntry, 0, len(entries))
	for _, e := range entries {
		if needle != "" && !e.matches(needle) {
			continue
		}
		meta := make(map[string]any, len(e.metadata))
		for k, v := range e.metadata {
			meta[k] = v
		}
		out = append(out, domain.StructuredEntry(map[string]any{
			"memory":     e.content,
			"role":       e.role,
			"metadata":   meta,
			"created_at": e.createdAt.Format(time.RFC3339Nano),
		}))
	}
	return out, nil
}

func (s *Store) Add(ctx context.Context, conversationID string, messages []domain.MemoryMessage, metadata map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(conversationID) == "" {
		return errors.New("memory: conversation id is required")
	}
	if len(messages) == 0 {
		return errors.New("memory: no messages")
	}
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	ts := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range messages {
		s.convs[conversationID] = append(s.convs[conversationID], entry{
			role: m.Role, content: m.Content, metadata: meta, createdAt: ts,
		})
	}
	return nil
}

// Len reports how many entries a conversation holds.
func (s *Store) Len(conversationID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.convs[conversationID])
}

func (e entry) matches(needle string) bool {
	if strings.Contains(strings.ToLower(e.content), needle) {
		return true
	}
	for _, v := range e.metadata {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}
