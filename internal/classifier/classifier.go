// Package classifier decides whether an incoming message shows scam intent.
package classifier

import (
	"fmt"
	"strings"

	"github.com/omkar861856/agentic-honeypot32/internal/domain"
)

const (
	ModeCautious = "cautious"
	ModeKeyword  = "keyword"
)

// Classifier assesses one message, optionally in the light of earlier turns.
type Classifier interface {
	Assess(text string, history []domain.HistoryMessage) domain.Assessment
}

// New returns the classifier for mode. An empty mode selects the cautious policy.
func New(mode string) (Classifier, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeCautious:
		return NewCautious(), nil
	case ModeKeyword:
		return NewKeyword(), nil
	default:
		return nil, fmt.Errorf("classifier: unknown mode %q", mode)
	}
}

var defaultKeywords = []string{
	"urgent", "refund", "verify", "kyc", "upi", "account blocked",
	"lottery", "prize", "click link", "limited time",
}

// Keyword flags a message when it contains any keyword, ignoring case.
type Keyword struct {
	keywords []string
}

// NewKeyword builds a keyword classifier. Without arguments it uses the default list.
func NewKeyword(keywords ...string) *Keyword {
	if len(keywords) == 0 {
		keywords = defaultKeywords
	}
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	return &Keyword{keywords: lowered}
}

// IsLikelyScam reports whether text contains at least one keyword.
func (c *Keyword) IsLikelyScam(text string) bool {
	return len(c.matches(text)) > 0
}

func (c *Keyword) matches(text string) []string {
	content := strings.ToLower(text)
	var found []string
	for _, k := range c.keywords {
		if strings.Contains(content, k) {
			found = append(found, k)
		}
	}
	return found
}

// Assess ignores history.
func (c *Keyword) Assess(text string, _ []domain.HistoryMessage) domain.Assessment {
	found := c.matches(text)
	if len(found) == 0 {
		return domain.Assessment{Justification: "No scam indicators found"}
	}
	signals := make([]domain.Signal, len(found))
	for i, k := range found {
		signals[i] = domain.Signal{Kind: domain.SignalKeyword, Trigger: k}
	}
	return domain.Assessment{
		IsScam:        true,
		Justification: "matched scam keywords: " + strings.Join(found, ", "),
		Signals:       signals,
	}
}
