package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omkar861856/agentic-honeypot32/internal/classifier"
	"github.com/omkar861856/agentic-honeypot32/internal/domain"
	"github.com/omkar861856/agentic-honeypot32/internal/handbook"
	"github.com/omkar861856/agentic-honeypot32/internal/persona"
)

const scamText = "Your bank account will be blocked today. Verify immediately at http://scam-link.com"

type fakeResponder struct {
	reply   string
	err     error
	calls   int
	prompts []string
}

func (f *fakeResponder) Generate(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

type fakeMemory struct {
	entries   []domain.MemoryEntry
	searchErr error
	addErr    error

	searchCalls int
	searchQuery string
	searchConv  string

	addCalls int
	addConv  string
	added    []domain.MemoryMessage
	metadata map[string]string
}

func (f *fakeMemory) Search(_ context.Context, query, conversationID string) ([]domain.MemoryEntry, error) {
	f.searchCalls++
	f.searchQuery = query
	f.searchConv = conversationID
	return f.entries, f.searchErr
}

func (f *fakeMemory) Add(_ context.Context, conversationID string, messages []domain.MemoryMessage, metadata map[string]string) error {
	f.addCalls++
	f.addConv = conversationID
	f.added = messages
	f.metadata = metadata
	return f.addErr
}

type recordingObserver struct {
	outcomes       []string
	generations    int
	memoryFailures []string
}

func (r *recordingObserver) TurnCompleted(outcome string) { r.outcomes = append(r.outcomes, outcome) }
func (r *recordingObserver) GenerationFinished(time.Duration, error) {
	r.generations++
}
func (r *recordingObserver) MemoryFailed(op string) { r.memoryFailures = append(r.memoryFailures, op) }

type statusErr struct{ code int }

func (e statusErr) Error() string       { return fmt.Sprintf("status %d", e.code) }
func (e statusErr) HTTPStatusCode() int { return e.code }

func generated(reply string) string {
	body, _ := json.Marshal(map[string]any{
		"is_scam":       true,
		"justification": "threat of blocking plus a link",
		"persona_reply": reply,
		"extracted_intelligence": map[string][]string{
			"upi_ids": {}, "urls": {}, "bank_accounts": {}, "ifsc_codes": {},
		},
	})
	return string(body)
}

func newTestService(t *testing.T, r Responder, m MemoryGateway, obs Observer) *HoneypotService {
	t.Helper()
	catalog, err := persona.Load()
	require.NoError(t, err)
	svc, err := NewHoneypotService(classifier.NewCautious(), r, m, catalog, Options{MaxMessageLength: 200, Observer: obs})
	require.NoError(t, err)
	return svc
}

func expectEngageError(t *testing.T, err error, code ErrorCode, reason string) {
	t.Helper()
	var usecaseErr *Error
	require.ErrorAs(t, err, &usecaseErr)
	require.Equal(t, code, usecaseErr.Code)
	require.Equal(t, reason, usecaseErr.Reason)
}

func scamInput(conv string) EngageInput {
	return EngageInput{ConversationID: conv, Message: domain.IncomingMessage{Sender: "scammer", Text: scamText}}
}

func TestNewHoneypotService_ValidatesDependencies(t *testing.T) {
	catalog, err := persona.Load()
	require.NoError(t, err)
	c := classifier.NewCautious()

	_, err = NewHoneypotService(nil, &fakeResponder{}, &fakeMemory{}, catalog, Options{})
	require.Error(t, err)
	_, err = NewHoneypotService(c, nil, &fakeMemory{}, catalog, Options{})
	require.Error(t, err)
	_, err = NewHoneypotService(c, &fakeResponder{}, nil, catalog, Options{})
	require.Error(t, err)
	_, err = NewHoneypotService(c, &fakeResponder{}, &fakeMemory{}, nil, Options{})
	require.Error(t, err)

	svc, err := NewHoneypotService(c, &fakeResponder{}, &fakeMemory{}, catalog, Options{})
	require.NoError(t, err)
	require.Equal(t, defaultMaxMessageLength, svc.maxLength)
}

func TestEngage_ScamTurnIsHandledAndLogged(t *testing.T) {
	responder := &fakeResponder{reply: generated("Sir I opened http://scam-link.com but it shows error, what to do?")}
	memory := &fakeMemory{}
	obs := &recordingObserver{}
	svc := newTestService(t, responder, memory, obs)

	out, err := svc.Engage(context.Background(), scamInput("conv-1"))
	require.NoError(t, err)
	require.True(t, out.ScamDetected)
	require.True(t, out.IsScam)
	require.Equal(t, "conv-1", out.ConversationID)
	require.Contains(t, out.Reason, "phishing link")
	require.Equal(t, "threat of blocking plus a link", out.ModelJustification)
	require.Equal(t, handbook.CategoryPhishing, out.Category)
	require.Equal(t, []string{"http://scam-link.com"}, out.ExtractedEntities.URLs)
	require.Contains(t, out.ExtractedIntelligence.URLs, "http://scam-link.com")
	require.Equal(t, responder.reply, out.RawAgentReply)
	require.Equal(t, "Sir I opened http://scam-link.com but it shows error, what to do?", out.PersonaReply)
	require.Empty(t, out.Warnings)

	require.Equal(t, 1, memory.searchCalls)
	require.Equal(t, "scam", memory.searchQuery)
	require.Equal(t, "conv-1", memory.searchConv)
	require.Equal(t, 1, responder.calls)
	require.Equal(t, 1, memory.addCalls)
	require.Equal(t, "conv-1", memory.addConv)
	require.Equal(t, map[string]string{"type": domain.KindScamIntelligence}, memory.metadata)

	require.Len(t, memory.added, 2)
	require.Equal(t, domain.RoleUser, memory.added[0].Role)
	require.Equal(t, scamText, memory.added[0].Content)
	require.Equal(t, domain.RoleAssistant, memory.added[1].Role)
	var record domain.IntelligenceRecord
	require.NoError(t, json.Unmarshal([]byte(memory.added[1].Content), &record))
	require.Equal(t, domain.KindScamIntelligence, record.Kind)
	require.Equal(t, "conv-1", record.ConversationID)
	require.Equal(t, responder.reply, record.RawReply)
	require.Equal(t, out.ExtractedEntities, record.Entities)
	require.NotEmpty(t, record.ID)

	require.Equal(t, []string{OutcomeScamHandled}, obs.outcomes)
	require.Equal(t, 1, obs.generations)
}

func TestEngage_GreetingMakesNoCollaboratorCalls(t *testing.T) {
	responder := &fakeResponder{reply: generated("hello")}
	memory := &fakeMemory{}
	obs := &recordingObserver{}
	svc := newTestService(t, responder, memory, obs)

	out, err := svc.Engage(context.Background(), EngageInput{ConversationID: "conv-2", Message: domain.IncomingMessage{Text: "Hi"}})
	require.NoError(t, err)
	require.False(t, out.ScamDetected)
	require.False(t, out.IsScam)
	require.NotEmpty(t, out.Reason)
	require.NotNil(t, out.ExtractedEntities.URLs)
	require.Empty(t, out.RawAgentReply)

	require.Zero(t, responder.calls)
	require.Zero(t, memory.searchCalls)
	require.Zero(t, memory.addCalls)
	require.Equal(t, []string{OutcomeNotScam}, obs.outcomes)
}

func TestEngage_GenerationFailureSkipsPersistence(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		err    error
		code   ErrorCode
		reason string
	}{
		{name: "error", err: errors.New("connection reset"), code: ErrorGenerationFailure, reason: "generation_error"},
		{name: "timeout", err: fmt.Errorf("openai: chat: %w", context.DeadlineExceeded), code: ErrorGenerationFailure, reason: "generation_timeout"},
		{name: "empty", reply: "   ", code: ErrorGenerationFailure, reason: "generation_error"},
		{name: "rate limited", err: statusErr{code: 429}, code: ErrorRateLimited, reason: "generation_rate_limited"},
		{name: "upstream 500", err: statusErr{code: 500}, code: ErrorGenerationFailure, reason: "generation_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			memory := &fakeMemory{}
			obs := &recordingObserver{}
			svc := newTestService(t, &fakeResponder{reply: tt.reply, err: tt.err}, memory, obs)

			out, err := svc.Engage(context.Background(), scamInput("conv-3"))
			expectEngageError(t, err, tt.code, tt.reason)
			require.Equal(t, EngageOutput{}, out)
			require.Equal(t, 1, memory.searchCalls)
			require.Zero(t, memory.addCalls)
			require.Equal(t, []string{OutcomeGenerationFailure}, obs.outcomes)
		})
	}
}

func TestEngage_MemoryWriteFailureKeepsResult(t *testing.T) {
	responder := &fakeResponder{reply: generated("Ok sir, my UPI is rakesh.sharma46@oksbi, where do I check http://scam-link.com ?")}
	memory := &fakeMemory{addErr: errors.New("throttled")}
	obs := &recordingObserver{}
	svc := newTestService(t, responder, memory, obs)

	out, err := svc.Engage(context.Background(), scamInput("conv-4"))
	require.NoError(t, err)
	require.True(t, out.ScamDetected)
	require.Equal(t, []string{"http://scam-link.com"}, out.ExtractedEntities.URLs)
	require.Equal(t, []string{"rakesh.sharma46@oksbi"}, out.ExtractedEntities.UPIIDs)
	require.Equal(t, []string{WarningMemoryWrite}, out.Warnings)
	require.Equal(t, 1, memory.addCalls)
	require.Equal(t, []string{"add"}, obs.memoryFailures)
	require.Equal(t, []string{OutcomeScamHandled}, obs.outcomes)
}

func TestEngage_MemoryReadFailureDegradesToEmptyContext(t *testing.T) {
	responder := &fakeResponder{reply: generated("Which link sir?")}
	memory := &fakeMemory{searchErr: errors.New("timeout"), entries: []domain.MemoryEntry{domain.RawTextEntry("should not be used")}}
	svc := newTestService(t, responder, memory, nil)

	out, err := svc.Engage(context.Background(), scamInput("conv-5"))
	require.NoError(t, err)
	require.Equal(t, []string{WarningMemoryRead}, out.Warnings)
	require.Len(t, responder.prompts, 1)
	require.Contains(t, responder.prompts[0], "None recorded for this conversation.")
	require.NotContains(t, responder.prompts[0], "should not be used")
	require.Equal(t, 1, memory.addCalls)
}

func TestEngage_MalformedOutputFallsBackToRawText(t *testing.T) {
	raw := "Sir I will pay to refund.desk@ybl, account 9876543210123 IFSC HDFC0001234"
	memory := &fakeMemory{}
	svc := newTestService(t, &fakeResponder{reply: raw}, memory, nil)

	out, err := svc.Engage(context.Background(), scamInput("conv-6"))
	require.NoError(t, err)
	require.True(t, out.ScamDetected)
	require.Equal(t, []string{WarningMalformedOutput}, out.Warnings)
	require.Equal(t, raw, out.RawAgentReply)
	require.Equal(t, raw, out.PersonaReply)
	require.Empty(t, out.ModelJustification)
	require.Equal(t, []string{"refund.desk@ybl"}, out.ExtractedEntities.UPIIDs)
	require.Equal(t, []string{"9876543210123"}, out.ExtractedEntities.BankAccounts)
	require.Equal(t, []string{"HDFC0001234"}, out.ExtractedEntities.IFSCCodes)
	require.Equal(t, out.ExtractedEntities, out.ExtractedIntelligence)
	require.Equal(t, 1, memory.addCalls)
}

func TestEngage_ModelIntelligenceIsMergedWithExtraction(t *testing.T) {
	body, err := json.Marshal(map[string]any{
		"is_scam":       true,
		"justification": "asks for payment",
		"persona_reply": "Should I send it to pay.now@okaxis sir?",
		"extracted_intelligence": map[string][]string{
			"upi_ids": {"collect.fee@paytm", "pay.now@okaxis"}, "urls": {}, "bank_accounts": {"112233445566"}, "ifsc_codes": {},
		},
	})
	require.NoError(t, err)
	svc := newTestService(t, &fakeResponder{reply: string(body)}, &fakeMemory{}, nil)

	out, err := svc.Engage(context.Background(), scamInput("conv-7"))
	require.NoError(t, err)
	require.Equal(t, []string{"collect.fee@paytm", "pay.now@okaxis"}, out.ExtractedIntelligence.UPIIDs)
	require.Equal(t, []string{"112233445566"}, out.ExtractedIntelligence.BankAccounts)
	require.Contains(t, out.ExtractedEntities.UPIIDs, "pay.now@okaxis")
}

func TestEngage_NeverShareValuesAreMasked(t *testing.T) {
	reply := generated("Sir the OTP is 482913, card 4111 1111 1111 1111")
	svc := newTestService(t, &fakeResponder{reply: reply}, &fakeMemory{}, nil)

	out, err := svc.Engage(context.Background(), scamInput("conv-8"))
	require.NoError(t, err)
	require.Equal(t, "Sir the OTP is ******, card XXXXXXXXXXXX1111", out.PersonaReply)
	require.Equal(t, reply, out.RawAgentReply)
}

func TestEngage_PromptCarriesContext(t *testing.T) {
	responder := &fakeResponder{reply: "```json\n" + generated("Haan ji, bataiye") + "\n```"}
	memory := &fakeMemory{entries: []domain.MemoryEntry{
		domain.RawTextEntry("Scammer used collect.fee@paytm"),
		domain.StructuredEntry(map[string]any{"memory": "Asked for KYC update via link"}),
	}}
	svc := newTestService(t, responder, memory, nil)

	in := scamInput("conv-9")
	in.PersonaID = "trust-first"
	in.Message.Language = "Hindi"
	in.History = []domain.HistoryMessage{
		{Sender: "scammer", Text: "Hello sir, SBI here"},
		{Sender: "user", Text: "Yes, who is this?"},
	}
	out, err := svc.Engage(context.Background(), in)
	require.NoError(t, err)
	require.Empty(t, out.Warnings)
	require.Equal(t, "Haan ji, bataiye", out.PersonaReply)
	require.Equal(t, "trust-first", out.PersonaID)

	prompt := responder.prompts[0]
	for _, want := range []string{
		"Rakesh Sharma",
		"Trust-First",
		"- Scammer used collect.fee@paytm",
		"- Asked for KYC update via link",
		"Sender: Hello sir, SBI here",
		"You: Yes, who is this?",
		scamText,
		"Reply in language: Hindi",
		"Suspected category: Phishing",
		"SBIN0004578",
		"CVV",
		"persona_reply",
	} {
		require.Contains(t, prompt, want)
	}
}

func TestEngage_ValidationErrors(t *testing.T) {
	responder := &fakeResponder{}
	memory := &fakeMemory{}
	obs := &recordingObserver{}
	svc := newTestService(t, responder, memory, obs)

	_, err := svc.Engage(context.Background(), EngageInput{Message: domain.IncomingMessage{Text: "  "}})
	expectEngageError(t, err, ErrorInvalidInput, "empty_message")

	_, err = svc.Engage(context.Background(), EngageInput{Message: domain.IncomingMessage{Text: strings.Repeat("a", 201)}})
	expectEngageError(t, err, ErrorInvalidInput, "message_too_long")

	in := scamInput("conv-10")
	in.PersonaID = "nobody"
	_, err = svc.Engage(context.Background(), in)
	expectEngageError(t, err, ErrorInvalidInput, "unknown_persona")

	require.Zero(t, responder.calls)
	require.Zero(t, memory.searchCalls)
	require.Equal(t, []string{OutcomeInvalidInput, OutcomeInvalidInput, OutcomeInvalidInput}, obs.outcomes)
}

func TestEngage_MissingConversationIDGeneratesOne(t *testing.T) {
	orig := newUUID
	t.Cleanup(func() { newUUID = orig })
	newUUID = func() string { return "generated-id" }

	memory := &fakeMemory{}
	svc := newTestService(t, &fakeResponder{reply: generated("ok")}, memory, nil)

	out, err := svc.Engage(context.Background(), scamInput(""))
	require.NoError(t, err)
	require.Equal(t, "generated-id", out.ConversationID)
	require.Equal(t, "generated-id", memory.searchConv)
}

func TestEngage_ContinuationTurnStaysEngaged(t *testing.T) {
	responder := &fakeResponder{reply: generated("Which account sir?")}
	svc := newTestService(t, responder, &fakeMemory{}, nil)

	out, err := svc.Engage(context.Background(), EngageInput{
		ConversationID: "conv-11",
		Message:        domain.IncomingMessage{Text: "Did you do it?"},
		History:        []domain.HistoryMessage{{Sender: "scammer", Text: scamText}},
	})
	require.NoError(t, err)
	require.True(t, out.ScamDetected)
	require.Contains(t, out.Reason, "continuation")
	require.Equal(t, 1, responder.calls)
}

func TestIntelligence(t *testing.T) {
	memory := &fakeMemory{entries: []domain.MemoryEntry{domain.RawTextEntry("a")}}
	svc := newTestService(t, &fakeResponder{}, memory, nil)

	got, err := svc.Intelligence(context.Background(), "conv-12")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "conv-12", memory.searchConv)

	_, err = svc.Intelligence(context.Background(), " ")
	expectEngageError(t, err, ErrorInvalidInput, "empty_conversation_id")

	memory.searchErr = errors.New("down")
	_, err = svc.Intelligence(context.Background(), "conv-12")
	expectEngageError(t, err, ErrorInternal, "memory_search_error")
}
