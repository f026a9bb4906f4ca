package handler

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omkar861856/agentic-honeypot32/internal/domain"
	"github.com/omkar861856/agentic-honeypot32/internal/integrations/paramstore"
	"github.com/omkar861856/agentic-honeypot32/internal/usecase"
)

const (
	headerCorrelationID = "X-Correlation-Id"
	headerAPIKey        = "X-Api-Key"

	errorUnauthorized = "UNAUTHORIZED"
)

type Engager interface {
	Engage(ctx context.Context, in usecase.EngageInput) (usecase.EngageOutput, error)
}

// Handler adapts API Gateway proxy events to the honeypot service.
type Handler struct {
	uc      Engager
	logger  *zap.Logger
	timeout time.Duration

	apiKey     string
	keyGetter  paramstore.Getter
	keyParam   string
	keyMu      sync.Mutex
	keyEnabled bool
}

type Option func(*Handler)

func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithTimeout bounds each turn, including the generation call.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.timeout = d
	}
}

// WithAPIKey requires callers to send key in the x-api-key header.
func WithAPIKey(key string) Option {
	return func(h *Handler) {
		if key = strings.TrimSpace(key); key != "" {
			h.apiKey = key
			h.keyEnabled = true
		}
	}
}

// WithAPIKeyParameter reads the expected key from SSM on the first request.
func WithAPIKeyParameter(g paramstore.Getter, name string) Option {
	return func(h *Handler) {
		if g != nil && strings.TrimSpace(name) != "" {
			h.keyGetter = g
			h.keyParam = name
			h.keyEnabled = true
		}
	}
}

func NewHandler(uc Engager, opts ...Option) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: usecase must not be nil")
	}
	h := &Handler{uc: uc, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

type engageRequest struct {
	ConversationID      string           `json:"conversationId"`
	SessionID           string           `json:"sessionId"`
	Message             json.RawMessage  `json:"message"`
	ConversationHistory []historyMessage `json:"conversationHistory"`
	Metadata            *requestMetadata `json:"metadata"`
	PersonaID           string           `json:"personaId"`
}

type messageBody struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp timestamp `json:"timestamp"`
}

type historyMessage struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp timestamp `json:"timestamp"`
}

type requestMetadata struct {
	Channel  string `json:"channel"`
	Language string `json:"language"`
	Locale   string `json:"locale"`
}

type engageResponse struct {
	Status                string                    `json:"status"`
	ScamDetected          bool                      `json:"scamDetected"`
	IsScam                bool                      `json:"isScam"`
	Reason                string                    `json:"reason"`
	Justification         string                    `json:"justification,omitempty"`
	ConversationID        string                    `json:"conversationId"`
	ExtractedEntities     *domain.ExtractedEntities `json:"extractedEntities,omitempty"`
	ExtractedIntelligence *domain.ExtractedEntities `json:"extractedIntelligence,omitempty"`
	RawAgentReply         string                    `json:"rawAgentReply,omitempty"`
	PersonaReply          string                    `json:"personaReply,omitempty"`
	Reply                 string                    `json:"reply,omitempty"`
	Category              string                    `json:"category,omitempty"`
	PersonaID             string                    `json:"personaId,omitempty"`
	Warnings              []string                  `json:"warnings,omitempty"`
}

type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// Handle processes one turn. Errors are always rendered into the response;
// the returned error is reserved for the Lambda runtime and is always nil.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := header(event.Headers, headerCorrelationID)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	log := h.logger.With(zap.String("correlation_id", correlationID))

	if status, body := h.authorize(ctx, event.Headers); status != 0 {
		log.Warn("request rejected", zap.Int("status", status), zap.String("reason", body.Reason))
		return respond(status, correlationID, body), nil
	}

	in, err := decodeRequest(event)
	if err != nil {
		log.Info("invalid request body", zap.Error(err))
		return respond(http.StatusBadRequest, correlationID, errorResponse{
			Status: "error",
			Error:  string(usecase.ErrorInvalidInput),
			Reason: "invalid_body",
		}), nil
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	out, err := h.uc.Engage(ctx, in)
	if err != nil {
		status, body := errorFor(err)
		log.Warn("turn failed", zap.Error(err), zap.Int("status", status))
		return respond(status, correlationID, body), nil
	}
	log.Info("turn completed",
		zap.String("conversation_id", out.ConversationID),
		zap.Bool("scam_detected", out.ScamDetected),
	)
	return respond(http.StatusOK, correlationID, toResponse(out)), nil
}

// Authorized reports whether headers carry the expected API key. It is
// exposed for transports that check credentials before building an event.
func (h *Handler) Authorized(ctx context.Context, headers map[string]string) (bool, error) {
	if !h.keyEnabled {
		return true, nil
	}
	expected, err := h.expectedKey(ctx)
	if err != nil {
		return false, err
	}
	got := header(headers, headerAPIKey)
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1, nil
}

func (h *Handler) authorize(ctx context.Context, headers map[string]string) (int, errorResponse) {
	ok, err := h.Authorized(ctx, headers)
	if err != nil {
		return http.StatusInternalServerError, errorResponse{Status: "error", Error: string(usecase.ErrorInternal), Reason: "api_key_unavailable"}
	}
	if !ok {
		return http.StatusUnauthorized, errorResponse{Status: "error", Error: errorUnauthorized, Reason: "invalid_api_key"}
	}
	return 0, errorResponse{}
}

func (h *Handler) expectedKey(ctx context.Context) (string, error) {
	h.keyMu.Lock()
	defer h.keyMu.Unlock()
	if h.apiKey != "" || h.keyGetter == nil {
		return h.apiKey, nil
	}
	// Failures are not cached so a later request can retry the lookup.
	key, err := paramstore.Secret(ctx, h.keyGetter, h.keyParam)
	if err != nil {
		return "", err
	}
	h.apiKey = key
	return key, nil
}

func decodeRequest(event events.APIGatewayProxyRequest) (usecase.EngageInput, error) {
	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return usecase.EngageInput{}, err
		}
		body = decoded
	}

	var req engageRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return usecase.EngageInput{}, err
	}
	msg, err := decodeMessage(req.Message)
	if err != nil {
		return usecase.EngageInput{}, err
	}

	in := usecase.EngageInput{
		ConversationID: strings.TrimSpace(req.ConversationID),
		PersonaID:      req.PersonaID,
		Message: domain.IncomingMessage{
			Sender:    msg.Sender,
			Text:      msg.Text,
			Timestamp: msg.Timestamp.Time,
		},
	}
	if in.ConversationID == "" {
		in.ConversationID = strings.TrimSpace(req.SessionID)
	}
	if req.Metadata != nil {
		in.Message.Channel = req.Metadata.Channel
		in.Message.Language = req.Metadata.Language
		in.Message.Locale = req.Metadata.Locale
	}
	for _, m := range req.ConversationHistory {
		in.History = append(in.History, domain.HistoryMessage{Sender: m.Sender, Text: m.Text, Timestamp: m.Timestamp.Time})
	}
	return in, nil
}

// decodeMessage accepts the plain-string and the object message shapes.
func decodeMessage(raw json.RawMessage) (messageBody, error) {
	trimmed := strings.TrimSpace(string(raw))
	switch {
	case trimmed == "" || trimmed == "null":
		return messageBody{}, nil
	case strings.HasPrefix(trimmed, `"`):
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return messageBody{}, err
		}
		return messageBody{Text: text}, nil
	case strings.HasPrefix(trimmed, "{"):
		var m messageBody
		if err := json.Unmarshal(raw, &m); err != nil {
			return messageBody{}, err
		}
		return m, nil
	default:
		return messageBody{}, errors.New("handler: message must be a string or an object")
	}
}

func toResponse(out usecase.EngageOutput) engageResponse {
	resp := engageResponse{
		Status:         "success",
		ScamDetected:   out.ScamDetected,
		IsScam:         out.IsScam,
		Reason:         out.Reason,
		Justification:  out.ModelJustification,
		ConversationID: out.ConversationID,
		Category:       out.Category,
		PersonaID:      out.PersonaID,
		Warnings:       out.Warnings,
	}
	if resp.Justification == "" {
		resp.Justification = out.Reason
	}
	if out.ScamDetected {
		entities := out.ExtractedEntities.Normalized()
		intel := out.ExtractedIntelligence.Normalized()
		resp.ExtractedEntities = &entities
		resp.ExtractedIntelligence = &intel
		resp.RawAgentReply = out.RawAgentReply
		resp.PersonaReply = out.PersonaReply
		resp.Reply = out.PersonaReply
	}
	return resp
}

func errorFor(err error) (int, errorResponse) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return http.StatusInternalServerError, errorResponse{Status: "error", Error: string(usecase.ErrorInternal)}
	}
	body := errorResponse{Status: "error", Error: string(ucErr.Code), Reason: ucErr.Reason}
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, body
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests, body
	case usecase.ErrorGenerationFailure:
		return http.StatusBadGateway, body
	default:
		return http.StatusInternalServerError, body
	}
}

func respond(status int, correlationID string, body any) events.APIGatewayProxyResponse {
	payload, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		payload = []byte(`{"status":"error","error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":      "application/json",
			headerCorrelationID: correlationID,
		},
		Body: string(payload),
	}
}

func header(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
