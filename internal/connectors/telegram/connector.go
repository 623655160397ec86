// Package telegram connects the triage assistant to Telegram via long polling.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/lewisedginton/triage_assistant/internal/connectors/executor"
	"github.com/lewisedginton/triage_assistant/pkg/logger"
)

const connectorName = "telegram"

// maxMessageLength is Telegram's limit for a single text message.
const maxMessageLength = 4096

const errorReply = "Sorry, I encountered an error processing your message."

// sender is the part of *bot.Bot used to reply.
type sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Connector represents the Telegram connector
type Connector struct {
	bot      *bot.Bot
	executor *executor.Executor
	commands *CommandRegistry
	logger   logger.Logger
	running  atomic.Bool
}

// Config holds configuration for the Telegram connector
type Config struct {
	BotToken string // Bot token from @BotFather
	Debug    bool   // Enable debug logging
	Logger   logger.Logger
}

// NewConnector creates a new Telegram connector with in-process executor
func NewConnector(config Config, exec *executor.Executor) (*Connector, error) {
	if config.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if exec == nil {
		return nil, fmt.Errorf("executor is required")
	}

	connector := newConnector(exec, config.Logger)

	opts := []bot.Option{
		bot.WithDefaultHandler(connector.handleUpdate),
	}
	if config.Debug {
		opts = append(opts, bot.WithDebug())
	}

	b, err := bot.New(config.BotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	connector.bot = b

	connector.logger.Info("Telegram bot initialized")
	return connector, nil
}

func newConnector(exec *executor.Executor, log logger.Logger) *Connector {
	if log == nil {
		log = logger.NewNopLogger()
	}
	c := &Connector{
		executor: exec,
		logger:   log.WithFields(logger.StringField("connector", connectorName)),
	}
	c.setupCommands()
	return c
}

// Start polls for updates until ctx is cancelled.
func (c *Connector) Start(ctx context.Context) error {
	c.logger.Info("Starting Telegram bot polling")
	c.running.Store(true)
	defer c.running.Store(false)

	c.bot.Start(ctx)
	return nil
}

// Ready reports an error until the connector is polling.
func (c *Connector) Ready() error {
	if !c.running.Load() {
		return fmt.Errorf("telegram connector is not polling")
	}
	return nil
}

// handleUpdate processes all incoming Telegram updates
func (c *Connector) handleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	c.respond(ctx, b, update)
}

func (c *Connector) respond(ctx context.Context, s sender, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" {
		return
	}
	// Skip messages from bots to avoid loops
	if msg.From == nil || msg.From.IsBot {
		return
	}

	if c.commands.IsCommand(msg.Text) {
		c.handleCommand(ctx, s, update)
		return
	}

	userID := strconv.FormatInt(msg.From.ID, 10)
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	c.logger.Debug("Processing message",
		logger.StringField("user_id", userID),
		logger.StringField("chat_id", chatID))

	response, err := c.executor.Execute(ctx, executor.MessageRequest{
		Connector: connectorName,
		UserID:    userID,
		ChannelID: chatID,
		Message:   msg.Text,
	})
	if err != nil {
		c.logger.Error("Error from executor", logger.StringField("user_id", userID), logger.ErrorField(err))
		c.send(ctx, s, msg.Chat.ID, errorReply)
		return
	}

	c.send(ctx, s, msg.Chat.ID, response.Text)
}

func (c *Connector) send(ctx context.Context, s sender, chatID int64, text string) {
	for _, chunk := range splitMessage(text, maxMessageLength) {
		if _, err := s.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: chunk}); err != nil {
			c.logger.Error("Error sending message to Telegram", logger.ErrorField(err))
			return
		}
	}
}

// splitMessage breaks text into pieces of at most limit runes, preferring line breaks.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	return append(chunks, string(runes))
}

// Stop gracefully stops the connector
func (c *Connector) Stop() error {
	c.logger.Info("Stopping Telegram connector")
	// Stopping is handled by context cancellation in Start
	return nil
}

// GetBotInfo returns information about the bot
func (c *Connector) GetBotInfo(ctx context.Context) (*models.User, error) {
	return c.bot.GetMe(ctx)
}
