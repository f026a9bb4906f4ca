package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omkar861856/agentic-honeypot32/internal/domain"
	"github.com/omkar861856/agentic-honeypot32/internal/extract"
	"github.com/omkar861856/agentic-honeypot32/internal/persona"
)

const (
	defaultMaxMessageLength = 4000
	memoryQuery             = "scam"

	WarningMalformedOutput = "malformed_generation_output"
	WarningMemoryRead      = "memory_read_failed"
	WarningMemoryWrite     = "memory_write_failed"

	OutcomeNotScam           = "not_scam"
	OutcomeScamHandled       = "scam_handled"
	OutcomeGenerationFailure = "generation_failure"
	OutcomeInvalidInput      = "invalid_input"
)

type Classifier interface {
	Assess(text string, history []domain.HistoryMessage) domain.Assessment
}

// Responder turns one prompt into one block of generated text.
type Responder interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// MemoryGateway retrieves and appends conversation intelligence.
type MemoryGateway interface {
	Search(ctx context.Context, query, conversationID string) ([]domain.MemoryEntry, error)
	Add(ctx context.Context, conversationID string, messages []domain.MemoryMessage, metadata map[string]string) error
}

// Observer receives pipeline outcomes for metrics.
type Observer interface {
	TurnCompleted(outcome string)
	GenerationFinished(elapsed time.Duration, err error)
	MemoryFailed(op string)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type HoneypotService struct {
	classifier Classifier
	responder  Responder
	memory     MemoryGateway
	personas   *persona.Catalog
	logger     *zap.Logger
	observer   Observer
	maxLength  int
}

type Options struct {
	MaxMessageLength int
	Logger           *zap.Logger
	Observer         Observer
}

type EngageInput struct {
	ConversationID string
	Message        domain.IncomingMessage
	History        []domain.HistoryMessage
	PersonaID      string
}

type EngageOutput struct {
	ScamDetected          bool
	IsScam                bool
	Reason                string
	ModelJustification    string
	ConversationID        string
	ExtractedEntities     domain.ExtractedEntities
	ExtractedIntelligence domain.ExtractedEntities
	RawAgentReply         string
	PersonaReply          string
	Category              string
	PersonaID             string
	Warnings              []string
}

func NewHoneypotService(c Classifier, r Responder, m MemoryGateway, personas *persona.Catalog, opts Options) (*HoneypotService, error) {
	if c == nil {
		return nil, errors.New("usecase: classifier must not be nil")
	}
	if r == nil {
		return nil, errors.New("usecase: responder must not be nil")
	}
	if m == nil {
		return nil, errors.New("usecase: memory gateway must not be nil")
	}
	if personas == nil {
		return nil, errors.New("usecase: persona catalog must not be nil")
	}
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = defaultMaxMessageLength
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	return &HoneypotService{
		classifier: c,
		responder:  r,
		memory:     m,
		personas:   personas,
		logger:     opts.Logger,
		observer:   opts.Observer,
		maxLength:  opts.MaxMessageLength,
	}, nil
}

// Engage runs one turn: classify, and for scam-positive messages retrieve prior
// intelligence, generate a persona reply, extract indicators and persist them.
func (s *HoneypotService) Engage(ctx context.Context, in EngageInput) (EngageOutput, error) {
	text := strings.TrimSpace(in.Message.Text)
	if text == "" {
		s.observer.TurnCompleted(OutcomeInvalidInput)
		return EngageOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if utf8.RuneCountInString(text) > s.maxLength {
		s.observer.TurnCompleted(OutcomeInvalidInput)
		return EngageOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}
	var profile *persona.Profile
	if id := strings.TrimSpace(in.PersonaID); id != "" {
		p, ok := s.personas.Profile(id)
		if !ok {
			s.observer.TurnCompleted(OutcomeInvalidInput)
			return EngageOutput{}, newError(ErrorInvalidInput, "unknown_persona", nil)
		}
		profile = &p
	}

	convID := strings.TrimSpace(in.ConversationID)
	if convID == "" {
		convID = newUUID()
	}
	log := s.logger.With(zap.String("conversation_id", convID))

	assessment := s.classifier.Assess(text, in.History)
	if !assessment.IsScam {
		log.Info("message not engaged", zap.String("reason", assessment.Justification))
		s.observer.TurnCompleted(OutcomeNotScam)
		empty := domain.ExtractedEntities{}.Normalized()
		return EngageOutput{
			Reason:                assessment.Justification,
			ConversationID:        convID,
			ExtractedEntities:     empty,
			ExtractedIntelligence: empty,
		}, nil
	}

	var warnings []string
	memories, err := s.memory.Search(ctx, memoryQuery, convID)
	if err != nil {
		log.Warn("memory search failed, continuing without context", zap.Error(err))
		s.observer.MemoryFailed("search")
		warnings = append(warnings, WarningMemoryRead)
		memories = nil
	}

	in.Message.Text = text
	prompt := buildPrompt(promptInput{
		catalog:  s.personas,
		profile:  profile,
		incoming: in.Message,
		history:  in.History,
		memories: memories,
		category: assessment.Category,
	})

	started := time.Now()
	raw, err := s.responder.Generate(ctx, prompt)
	if err == nil && strings.TrimSpace(raw) == "" {
		err = errors.New("usecase: responder returned empty output")
	}
	s.observer.GenerationFinished(time.Since(started), err)
	if err != nil {
		s.observer.TurnCompleted(OutcomeGenerationFailure)
		log.Error("generation failed", zap.Error(err))
		return EngageOutput{}, generationError(err)
	}

	entities := extract.Extract(raw)
	personaReply := strings.TrimSpace(raw)
	modelIntel := domain.ExtractedEntities{}.Normalized()
	var modelJustification string
	parsed, err := parseGeneration(raw)
	if err != nil {
		log.Warn("generation output is not valid JSON", zap.Error(err))
		warnings = append(warnings, WarningMalformedOutput)
	} else {
		personaReply = parsed.PersonaReply
		modelIntel = parsed.ExtractedIntelligence
		modelJustification = parsed.Justification
	}
	if guarded, changed := persona.Guard(personaReply); changed {
		log.Warn("persona reply contained never-share values, masked")
		personaReply = guarded
	}

	record := domain.IntelligenceRecord{
		ID:             newUUID(),
		ConversationID: convID,
		Kind:           domain.KindScamIntelligence,
		Incoming:       text,
		Entities:       entities,
		RawReply:       raw,
		PersonaReply:   personaReply,
		Category:       assessment.Category,
		CreatedAt:      now().UTC(),
	}
	if err := s.persist(ctx, record); err != nil {
		log.Warn("memory write failed, result returned without durable record", zap.Error(err))
		s.observer.MemoryFailed("add")
		warnings = append(warnings, WarningMemoryWrite)
	}

	s.observer.TurnCompleted(OutcomeScamHandled)
	log.Info("scam turn handled",
		zap.String("category", assessment.Category),
		zap.Int("urls", len(entities.URLs)),
		zap.Int("upi_ids", len(entities.UPIIDs)),
		zap.Strings("warnings", warnings),
	)
	return EngageOutput{
		ScamDetected:          true,
		IsScam:                true,
		Reason:                assessment.Justification,
		ModelJustification:    modelJustification,
		ConversationID:        convID,
		ExtractedEntities:     entities,
		ExtractedIntelligence: extract.Merge(modelIntel, entities),
		RawAgentReply:         raw,
		PersonaReply:          personaReply,
		Category:              assessment.Category,
		PersonaID:             strings.TrimSpace(in.PersonaID),
		Warnings:              warnings,
	}, nil
}

// Intelligence returns what the memory store holds for a conversation.
func (s *HoneypotService) Intelligence(ctx context.Context, conversationID string) ([]domain.MemoryEntry, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, newError(ErrorInvalidInput, "empty_conversation_id", nil)
	}
	entries, err := s.memory.Search(ctx, memoryQuery, conversationID)
	if err != nil {
		s.observer.MemoryFailed("search")
		return nil, newError(ErrorInternal, "memory_search_error", err)
	}
	return entries, nil
}

func (s *HoneypotService) persist(ctx context.Context, record domain.IntelligenceRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("usecase: encode intelligence record: %w", err)
	}
	messages := []domain.MemoryMessage{
		{Role: domain.RoleUser, Content: record.Incoming},
		{Role: domain.RoleAssistant, Content: string(body)},
	}
	return s.memory.Add(ctx, record.ConversationID, messages, map[string]string{"type": domain.KindScamIntelligence})
}

func generationError(err error) *Error {
	if status, ok := upstreamStatusCode(err); ok && status == http.StatusTooManyRequests {
		return newError(ErrorRateLimited, "generation_rate_limited", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(ErrorGenerationFailure, "generation_timeout", err)
	}
	return newError(ErrorGenerationFailure, "generation_error", err)
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

type noopObserver struct{}

func (noopObserver) TurnCompleted(string)                    {}
func (noopObserver) GenerationFinished(time.Duration, error) {}
func (noopObserver) MemoryFailed(string)                     {}

var newUUID = func() string {
	return uuid.NewString()
}

var now = time.Now
