// Package bot connects the honeypot to Telegram. Each chat is one
// conversation and every update is handled on its own goroutine.
package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/omkar861856/agentic-honeypot32/internal/domain"
	"github.com/omkar861856/agentic-honeypot32/internal/usecase"
)

const (
	channelTelegram = "Telegram"
	maxIntelEntries = 10
	maxChatHistory  = 20

	// stallReply is sent instead of model output that could not be parsed.
	stallReply = "Sorry ji, my phone is hanging. Can you send that again?"
)

type Service interface {
	Engage(ctx context.Context, in usecase.EngageInput) (usecase.EngageOutput, error)
	Intelligence(ctx context.Context, conversationID string) ([]domain.MemoryEntry, error)
}

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api     API
	service Service
	logger  *zap.Logger

	wg sync.WaitGroup

	mu      sync.Mutex
	history map[int64][]domain.HistoryMessage
}

// Dial authenticates against the Bot API with token.
func Dial(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("bot: connect: %w", err)
	}
	return api, nil
}

func New(api API, service Service, logger *zap.Logger) (*Bot, error) {
	if api == nil {
		return nil, errors.New("bot: api must not be nil")
	}
	if service == nil {
		return nil, errors.New("bot: service must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{api: api, service: service, logger: logger, history: make(map[int64][]domain.HistoryMessage)}, nil
}

// Run long-polls for updates until ctx is cancelled, then waits for
// in-flight handlers to finish.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.wg.Add(1)
			go func(m *tgbotapi.Message) {
				defer b.wg.Done()
				b.handleMessage(ctx, m)
			}(update.Message)
		}
	}
}

func conversationID(chatID int64) string {
	return fmt.Sprintf("tg-%d", chatID)
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	text := message.Text
	if text == "" {
		text = message.Caption
	}
	if strings.TrimSpace(text) == "" {
		return
	}

	convID := conversationID(message.Chat.ID)
	sender := "scammer"
	if message.From != nil && message.From.UserName != "" {
		sender = message.From.UserName
	}
	incoming := domain.IncomingMessage{
		Sender:    sender,
		Text:      text,
		Timestamp: message.Time(),
		Channel:   channelTelegram,
	}
	out, err := b.service.Engage(ctx, usecase.EngageInput{
		ConversationID: convID,
		Message:        incoming,
		History:        b.chatHistory(message.Chat.ID),
	})
	b.remember(message.Chat.ID, domain.HistoryMessage{Sender: sender, Text: text, Timestamp: incoming.Timestamp})
	if err != nil {
		b.logger.Warn("engage failed", zap.String("conversation_id", convID), zap.Error(err))
		return
	}
	if !out.ScamDetected || out.PersonaReply == "" {
		b.logger.Debug("message not engaged", zap.String("conversation_id", convID), zap.String("reason", out.Reason))
		return
	}

	text = out.PersonaReply
	if slices.Contains(out.Warnings, usecase.WarningMalformedOutput) {
		b.logger.Warn("unparsed generation withheld", zap.String("conversation_id", convID))
		text = stallReply
	}
	reply := tgbotapi.NewMessage(message.Chat.ID, text)
	reply.ReplyToMessageID = message.MessageID
	if b.send(reply) {
		b.remember(message.Chat.ID, domain.HistoryMessage{Sender: domain.RoleAssistant, Text: text, Timestamp: time.Now()})
	}
}

// chatHistory returns a copy of the recent messages of a chat, oldest first.
func (b *Bot) chatHistory(chatID int64) []domain.HistoryMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.history[chatID])
}

func (b *Bot) remember(chatID int64, m domain.HistoryMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := append(b.history[chatID], m)
	if len(h) > maxChatHistory {
		h = slices.Clone(h[len(h)-maxChatHistory:])
	}
	b.history[chatID] = h
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.send(tgbotapi.NewMessage(message.Chat.ID, "Hello ji, who is this?"))
	case "help":
		b.send(tgbotapi.NewMessage(message.Chat.ID, strings.Join([]string{
			"Commands:",
			"/intel - show intelligence gathered in this chat",
			"/help - show this message",
		}, "\n")))
	case "intel":
		b.handleIntel(ctx, message)
	default:
		b.send(tgbotapi.NewMessage(message.Chat.ID, "Unknown command. Try /help."))
	}
}

func (b *Bot) handleIntel(ctx context.Context, message *tgbotapi.Message) {
	convID := conversationID(message.Chat.ID)
	entries, err := b.service.Intelligence(ctx, convID)
	if err != nil {
		b.logger.Error("intelligence lookup failed", zap.String("conversation_id", convID), zap.Error(err))
		b.send(tgbotapi.NewMessage(message.Chat.ID, "Could not load intelligence right now."))
		return
	}
	b.send(tgbotapi.NewMessage(message.Chat.ID, renderIntel(entries)))
}

func renderIntel(entries []domain.MemoryEntry) string {
	if len(entries) == 0 {
		return "No intelligence recorded for this chat yet."
	}
	if len(entries) > maxIntelEntries {
		entries = entries[len(entries)-maxIntelEntries:]
	}
	lines := make([]string, 0, len(entries)+1)
	lines = append(lines, fmt.Sprintf("Intelligence (%d):", len(entries)))
	for i, e := range entries {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, e.Text()))
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) send(msg tgbotapi.MessageConfig) bool {
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("send failed", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
		return false
	}
	return true
}
