// Package handbook holds the scam-awareness handbook and maps classifier
// signals to one of its categories.
package handbook

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/omkar861856/agentic-honeypot32/internal/domain"
)

//go:embed handbook.yaml
var handbookYAML []byte

const (
	CategoryKYC           = "KYC Scam"
	CategoryPhishing      = "Phishing"
	CategoryLottery       = "Lottery Fraud"
	CategoryCard          = "Debit/Credit Card Fraud"
	CategoryVishing       = "Spam/Vishing Calls"
	CategoryDigitalArrest = "Digital Arrest"
	CategoryMessaging     = "SMS, Email & Call Scams"
)

// Entry is one handbook category.
type Entry struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Dos         []string `yaml:"dos" json:"dos"`
	Donts       []string `yaml:"donts" json:"donts"`
}

type document struct {
	Categories []Entry `yaml:"categories"`
}

// Handbook is an immutable, ordered set of entries.
type Handbook struct {
	entries []Entry
	byName  map[string]int
}

// Load parses the embedded handbook.
func Load() (*Handbook, error) {
	return Parse(handbookYAML)
}

// Parse builds a Handbook from YAML.
func Parse(data []byte) (*Handbook, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("handbook: decode: %w", err)
	}
	if len(doc.Categories) == 0 {
		return nil, errors.New("handbook: no categories")
	}
	h := &Handbook{entries: doc.Categories, byName: make(map[string]int, len(doc.Categories))}
	for i, e := range doc.Categories {
		key := normalize(e.Name)
		if key == "" {
			return nil, fmt.Errorf("handbook: category %d has no name", i)
		}
		if _, dup := h.byName[key]; dup {
			return nil, fmt.Errorf("handbook: duplicate category %q", e.Name)
		}
		h.byName[key] = i
	}
	return h, nil
}

// Entries returns the categories in document order.
func (h *Handbook) Entries() []Entry {
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Lookup finds a category by name, ignoring case and surrounding space.
func (h *Handbook) Lookup(name string) (Entry, bool) {
	i, ok := h.byName[normalize(name)]
	if !ok {
		return Entry{}, false
	}
	return h.entries[i], true
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CategoryFor picks the most specific category for a set of signals.
// It returns "" when there are no signals.
func CategoryFor(signals []domain.Signal) string {
	if len(signals) == 0 {
		return ""
	}
	has := func(kind domain.SignalKind, words ...string) bool {
		for _, s := range signals {
			if s.Kind != kind {
				continue
			}
			if len(words) == 0 {
				return true
			}
			trigger := strings.ToLower(s.Trigger)
			for _, w := range words {
				if strings.Contains(trigger, w) {
					return true
				}
			}
		}
		return false
	}

	switch {
	case has(domain.SignalUrgency, "arrest", "police", "warrant", "cbi", "customs"):
		return CategoryDigitalArrest
	case has(domain.SignalPhishingLink):
		return CategoryPhishing
	case has(domain.SignalVerification):
		return CategoryKYC
	case has(domain.SignalReward):
		return CategoryLottery
	case has(domain.SignalCredentials, "card", "cvv", "expiry"):
		return CategoryCard
	case has(domain.SignalCredentials):
		return CategoryVishing
	default:
		return CategoryMessaging
	}
}
