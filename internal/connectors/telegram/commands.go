package telegram

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/lewisedginton/triage_assistant/pkg/logger"
)

// CommandHandler handles a specific Telegram bot command
type CommandHandler func(ctx context.Context, update *models.Update) (string, error)

// CommandRegistry manages bot command handlers
type CommandRegistry struct {
	handlers map[string]CommandHandler
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		handlers: make(map[string]CommandHandler),
	}
}

// Register adds a command handler to the registry
func (r *CommandRegistry) Register(command string, handler CommandHandler) {
	r.handlers[command] = handler
}

// Handle processes a command from an update
func (r *CommandRegistry) Handle(ctx context.Context, update *models.Update) (string, error) {
	if update.Message == nil || !r.IsCommand(update.Message.Text) {
		return "", nil
	}

	command := commandName(update.Message.Text)
	handler, exists := r.handlers[command]
	if !exists {
		return "Unknown command: " + command + ". Try /help.", nil
	}
	return handler(ctx, update)
}

// IsCommand checks if a message is a command
func (r *CommandRegistry) IsCommand(text string) bool {
	return strings.HasPrefix(text, "/")
}

// commandName returns "/help" for "/help@triage_bot extra words".
func commandName(text string) string {
	command := strings.Fields(text)[0]
	if at := strings.IndexByte(command, '@'); at > 0 {
		command = command[:at]
	}
	return strings.ToLower(command)
}

func (c *Connector) handleNewCommand(ctx context.Context, update *models.Update) (string, error) {
	msg := update.Message
	_, err := c.executor.NewSession(ctx, connectorName,
		strconv.FormatInt(msg.From.ID, 10), strconv.FormatInt(msg.Chat.ID, 10))
	if err != nil {
		return "", err
	}
	return "Started a new consultation. Previous symptoms have been forgotten, so please describe how you feel.", nil
}

// setupCommands initializes the command registry with all available commands
func (c *Connector) setupCommands() {
	c.commands = NewCommandRegistry()
	c.commands.Register("/new", c.handleNewCommand)
	help := func(context.Context, *models.Update) (string, error) { return c.executor.HelpText(), nil }
	c.commands.Register("/help", help)
	c.commands.Register("/start", help)
	c.commands.Register("/conditions", func(context.Context, *models.Update) (string, error) {
		return c.executor.ConditionsText(), nil
	})
}

// handleCommand processes a command update
func (c *Connector) handleCommand(ctx context.Context, s sender, update *models.Update) {
	c.logger.Info("Processing command",
		logger.Int64Field("user_id", update.Message.From.ID),
		logger.StringField("command", commandName(update.Message.Text)))

	response, err := c.commands.Handle(ctx, update)
	if err != nil {
		c.logger.Error("Error handling command", logger.ErrorField(err))
		response = "An error occurred while processing your command."
	}
	if response != "" {
		c.send(ctx, s, update.Message.Chat.ID, response)
	}
}
