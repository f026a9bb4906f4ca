package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/omkar861856/agentic-honeypot32/internal/domain"
	"github.com/omkar861856/agentic-honeypot32/internal/persona"
)

const maxPromptHistory = 20

// generationResponse is the JSON object the responder is asked to return.
type generationResponse struct {
	IsScam                bool                     `json:"is_scam"`
	Justification         string                   `json:"justification"`
	PersonaReply          string                   `json:"persona_reply"`
	ExtractedIntelligence domain.ExtractedEntities `json:"extracted_intelligence"`
}

type promptInput struct {
	catalog  *persona.Catalog
	profile  *persona.Profile
	incoming domain.IncomingMessage
	history  []domain.HistoryMessage
	memories []domain.MemoryEntry
	category string
}

func buildPrompt(in promptInput) string {
	return strings.Join([]string{
		"Role:",
		identityPrompt(in.catalog),
		profilePrompt(in.profile),
		"",
		"Task:",
		"Determine whether the latest message is a scam attempt and reply in persona to keep the sender engaged.",
		"Extract any payment handles, URLs, bank account numbers and IFSC codes the sender reveals.",
		"",
		"Disclosure Rules:",
		disclosureRules(in.catalog),
		"",
		"Prior Intelligence:",
		renderMemories(in.memories),
		"",
		"Conversation So Far:",
		renderHistory(in.history),
		"",
		"Latest Message:",
		renderIncoming(in.incoming, in.category),
		"",
		"Output Contract:",
		outputContract(),
	}, "\n")
}

func identityPrompt(c *persona.Catalog) string {
	id := c.Identity
	return strings.Join([]string{
		fmt.Sprintf("You are %s, %d, %s, %s.", id.Name, id.Age, strings.ToLower(id.Gender), id.Occupation),
		"Communication style: " + id.Communication,
		"Tech level: " + id.TechLevel,
		"Never reveal that you are an AI or that you suspect a scam.",
	}, "\n")
}

func profilePrompt(p *persona.Profile) string {
	if p == nil {
		return ""
	}
	lines := []string{fmt.Sprintf("Behave like a %s person: %s", p.Name, p.Description)}
	for _, t := range p.Traits {
		lines = append(lines, "- "+t)
	}
	if len(p.TypicalResponses) > 0 {
		lines = append(lines, "Typical phrases: "+strings.Join(quoteAll(p.TypicalResponses), ", "))
	}
	return strings.Join(lines, "\n")
}

func disclosureRules(c *persona.Catalog) string {
	b := c.Bait
	return strings.Join([]string{
		"You WILL share when asked: " + strings.Join(c.WillShare, ", ") + ".",
		fmt.Sprintf("Your details: %s, %s account %s, IFSC %s, UPI %s, %s card ending %s.",
			b.Bank, b.AccountType, b.Account, b.IFSC, strings.Join(b.UPIIDs, " or "), b.Card, b.CardLastFour),
		"You must NEVER share: " + strings.Join(c.NeverShare, ", ") + ".",
		"If pressed for those, stall, act confused, or say the message has not arrived.",
	}, "\n")
}

func renderMemories(entries []domain.MemoryEntry) string {
	var lines []string
	for _, e := range entries {
		if text := normalizePromptInput(e.Text()); text != "" {
			lines = append(lines, "- "+text)
		}
	}
	if len(lines) == 0 {
		return "None recorded for this conversation."
	}
	return strings.Join(lines, "\n")
}

func renderHistory(history []domain.HistoryMessage) string {
	if len(history) > maxPromptHistory {
		history = history[len(history)-maxPromptHistory:]
	}
	var lines []string
	for _, m := range history {
		text := normalizePromptInput(m.Text)
		if text == "" {
			continue
		}
		speaker := "Sender"
		if m.SenderIsPersona() {
			speaker = "You"
		}
		lines = append(lines, speaker+": "+text)
	}
	if len(lines) == 0 {
		return "This is the first message."
	}
	return strings.Join(lines, "\n")
}

func renderIncoming(m domain.IncomingMessage, category string) string {
	lines := []string{normalizePromptInput(m.Text)}
	if m.Channel != "" {
		lines = append(lines, "Channel: "+m.Channel)
	}
	if m.Language != "" {
		lines = append(lines, "Reply in language: "+m.Language)
	}
	if category != "" {
		lines = append(lines, "Suspected category: "+category)
	}
	return strings.Join(lines, "\n")
}

func outputContract() string {
	return "Return a single JSON object only, with keys is_scam (boolean), justification (string), " +
		"persona_reply (string) and extracted_intelligence (object with arrays upi_ids, urls, bank_accounts, ifsc_codes). " +
		"Use empty arrays when nothing was found."
}

func normalizePromptInput(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}

func quoteAll(items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}

// parseGeneration decodes the responder output leniently: code fences and
// prose around the outermost object are ignored and unknown keys are allowed.
func parseGeneration(raw string) (generationResponse, error) {
	body := strings.TrimSpace(raw)
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return generationResponse{}, errors.New("usecase: decode generation: no JSON object")
	}
	var out generationResponse
	dec := json.NewDecoder(bytes.NewBufferString(body[start : end+1]))
	if err := dec.Decode(&out); err != nil {
		return generationResponse{}, fmt.Errorf("usecase: decode generation: %w", err)
	}
	if strings.TrimSpace(out.PersonaReply) == "" {
		return generationResponse{}, errors.New("usecase: decode generation: missing persona_reply")
	}
	out.PersonaReply = strings.TrimSpace(out.PersonaReply)
	out.ExtractedIntelligence = out.ExtractedIntelligence.Normalized()
	return out, nil
}
