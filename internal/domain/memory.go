package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// KindScamIntelligence tags records written after a scam-positive turn.
	KindScamIntelligence = "scam_intelligence"

	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// IntelligenceRecord is the durable artifact written for one scam-positive turn.
type IntelligenceRecord struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversation_id"`
	Kind           string            `json:"kind"`
	Incoming       string            `json:"incoming_message"`
	Entities       ExtractedEntities `json:"extracted_entities"`
	RawReply       string            `json:"raw_agent_reply"`
	PersonaReply   string            `json:"persona_reply,omitempty"`
	Category       string            `json:"category,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// MemoryMessage is one entry appended to the memory store.
type MemoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MemoryEntry is a search result from the memory store. Stores return either
// plain strings or objects carrying a "memory" field; both decode here.
type MemoryEntry struct {
	raw        string
	structured map[string]any
}

// RawTextEntry wraps a plain string result.
func RawTextEntry(s string) MemoryEntry {
	return MemoryEntry{raw: s}
}

// StructuredEntry wraps an object result.
func StructuredEntry(fields map[string]any) MemoryEntry {
	return MemoryEntry{structured: fields}
}

// IsStructured reports whether the entry came back as an object.
func (m MemoryEntry) IsStructured() bool {
	return m.structured != nil
}

// Fields returns the object form, or nil for raw text entries.
func (m MemoryEntry) Fields() map[string]any {
	return m.structured
}

// Text renders the entry for prompt context. Structured entries use their
// "memory" field, falling back to "content" and then to the JSON of the object.
func (m MemoryEntry) Text() string {
	if m.structured == nil {
		return strings.TrimSpace(m.raw)
	}
	for _, key := range []string{"memory", "content"} {
		if v, ok := m.structured[key]; ok {
			if s, ok := v.(string); ok {
				return strings.TrimSpace(s)
			}
			return fmt.Sprint(v)
		}
	}
	b, err := json.Marshal(m.structured)
	if err != nil {
		return fmt.Sprint(m.structured)
	}
	return string(b)
}

// UnmarshalJSON accepts a JSON string or a JSON object.
func (m *MemoryEntry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("domain: empty memory entry")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("domain: decode memory text: %w", err)
		}
		*m = RawTextEntry(s)
	case '{':
		var fields map[string]any
		if err := json.Unmarshal(data, &fields); err != nil {
			return fmt.Errorf("domain: decode memory object: %w", err)
		}
		*m = StructuredEntry(fields)
	default:
		*m = RawTextEntry(string(data))
	}
	return nil
}

// MarshalJSON writes the entry back in its original shape.
func (m MemoryEntry) MarshalJSON() ([]byte, error) {
	if m.structured != nil {
		return json.Marshal(m.structured)
	}
	return json.Marshal(m.raw)
}
