package domain

import "time"

// IncomingMessage is a sender-attributed message as received from a channel.
type IncomingMessage struct {
	Sender    string
	Text      string
	Timestamp time.Time
	Channel   string
	Language  string
	Locale    string
}

// HistoryMessage is one earlier message of the conversation supplied by the caller.
type HistoryMessage struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// ConversationTurnRecord is one logged exchange. It is never mutated after creation.
type ConversationTurnRecord struct {
	Incoming  string
	Reply     string
	Entities  ExtractedEntities
	CreatedAt time.Time
}

// SenderIsPersona reports whether a history message was written by the honeypot side.
func (m HistoryMessage) SenderIsPersona() bool {
	switch m.Sender {
	case "user", "persona", "agent", "honeypot", "assistant":
		return true
	}
	return false
}
