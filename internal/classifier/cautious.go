package classifier

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/omkar861856/agentic-honeypot32/internal/domain"
	"github.com/omkar861856/agentic-honeypot32/internal/handbook"
)

type rule struct {
	kind    domain.SignalKind
	pattern *regexp.Regexp
}

// Rule order fixes the order of signals in the justification.
var cautiousRules = []rule{
	{domain.SignalUrgency, regexp.MustCompile(`(?i)\b((account|card|upi|sim|wallet|number)( (is|will be|has been|was|gets|is being))? (blocked|suspended|frozen|closed|deactivated|locked)|(block|suspend|freeze|deactivate|close)(d|ed)? (your|the) (account|card|upi|sim|wallet|number)|account (suspension|deactivation)|(expires?|expiring) (today|tonight|soon|in \d+)|(pay|transfer|send|deposit)( \w+){0,2} (immediately|urgently|right now)|urgent(ly)?|last chance|limited time|within \d+ (hours?|minutes?)|penalt(y|ies)|legal action|arrest(ed)?|warrant|refund|reversal|chargeback)\b`)},
	{domain.SignalReward, regexp.MustCompile(`(?i)\b(lottery|prize|jackpot|you (have )?won|winner|cashback|reward points?|gift card)\b`)},
	{domain.SignalCredentials, regexp.MustCompile(`(?i)\b(otp|one[- ]time (password|passcode|code)|pin|m-?pin|cvv|cvc|password|passcode|card number|card details|expiry date|net ?banking (id|login|credentials)|code you (just )?(received|got)|(share|send|tell|forward) (me )?(the|that|this|your) (\d-digit |six-digit )?code|verification code)\b`)},
	{domain.SignalPhishingLink, regexp.MustCompile(`(?i)(https?://\S+|\bwww\.\S+|\b(bit\.ly|tinyurl\.com|cutt\.ly|goo\.gl|t\.co|is\.gd)/\S*|\bclick (on )?(the |this )?link\b|\b[\w-]+\.apk\b)`)},
	{domain.SignalPayment, regexp.MustCompile(`(?i)\b(upi( id| pin)?|send (the )?money|money transfer|transfer (the )?(amount|money|funds)|(send|transfer|pay|deposit)( me| us)? ((rs\.?|inr|₹) ?\d[\d,]*|\d[\d,]*( ?(rs|rupees|inr|/-))?|rupees)|(send|transfer|pay|deposit)\b[^.\n]{0,40}?[\w.-]+@[\w.-]+|processing fee|registration fee|pay (now|the fee)|make (a |the )?payment|collect request|scan (the |this )?qr|account number|ifsc)\b`)},
	{domain.SignalVerification, regexp.MustCompile(`(?i)\b(kyc|re-?verify|verify|verification|update (your )?(pan|aadhaar|details))\b`)},
}

var signalLabels = map[domain.SignalKind]string{
	domain.SignalUrgency:      "financial urgency",
	domain.SignalReward:       "reward lure",
	domain.SignalCredentials:  "credential request",
	domain.SignalPhishingLink: "phishing link",
	domain.SignalPayment:      "payment request",
	domain.SignalVerification: "verification request",
}

// Cautious flags a message only when it carries a concrete threat or request:
// financial urgency, a credential request, a phishing link, or a payment or
// verification request. Greetings and bare claims of being a bank are not
// enough. A turn without signals stays flagged when an earlier sender message
// in the history carried one.
type Cautious struct {
	rules []rule
}

func NewCautious() *Cautious {
	return &Cautious{rules: cautiousRules}
}

// Signals returns one signal per rule kind that matches text, in rule order.
func (c *Cautious) Signals(text string) []domain.Signal {
	var out []domain.Signal
	for _, r := range c.rules {
		if m := r.pattern.FindString(text); m != "" {
			out = append(out, domain.Signal{Kind: r.kind, Trigger: m})
		}
	}
	return out
}

func (c *Cautious) Assess(text string, history []domain.HistoryMessage) domain.Assessment {
	if signals := c.Signals(text); len(signals) > 0 {
		return domain.Assessment{
			IsScam:        true,
			Justification: describe(signals),
			Signals:       signals,
			Category:      handbook.CategoryFor(signals),
		}
	}

	senderTurns := 0
	for _, h := range history {
		if h.SenderIsPersona() {
			continue
		}
		senderTurns++
		if prior := c.Signals(h.Text); len(prior) > 0 {
			return domain.Assessment{
				IsScam:        true,
				Justification: "continuation of earlier " + describe(prior),
				Signals:       prior,
				Category:      handbook.CategoryFor(prior),
			}
		}
	}

	if senderTurns == 0 {
		return domain.Assessment{Justification: "first message is a greeting or unverified claim without a concrete threat or request"}
	}
	return domain.Assessment{Justification: "No scam indicators found"}
}

func describe(signals []domain.Signal) string {
	parts := make([]string, len(signals))
	for i, s := range signals {
		parts[i] = fmt.Sprintf("%s (%q)", signalLabels[s.Kind], s.Trigger)
	}
	return strings.Join(parts, "; ")
}
