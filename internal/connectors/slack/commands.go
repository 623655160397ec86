package slack

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"

	"github.com/lewisedginton/triage_assistant/pkg/logger"
)

// CommandHandler handles a specific slash command
type CommandHandler func(ctx context.Context, cmd slack.SlashCommand) (string, error)

// CommandRegistry manages slash command handlers
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

// Handle runs the handler for cmd and returns the ephemeral reply payload.
func (r *CommandRegistry) Handle(ctx context.Context, cmd slack.SlashCommand) (map[string]interface{}, error) {
	handler, exists := r.handlers[cmd.Command]
	if !exists {
		return textPayload(fmt.Sprintf("Unknown command: %s", cmd.Command)), nil
	}
	text, err := handler(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return textPayload(text), nil
}

func textPayload(text string) map[string]interface{} {
	return map[string]interface{}{"text": text}
}

// handleNewCommand handles the /new command
func (c *Connector) handleNewCommand(ctx context.Context, cmd slack.SlashCommand) (string, error) {
	if _, err := c.executor.NewSession(ctx, connectorName, cmd.UserID, cmd.ChannelID); err != nil {
		return "", err
	}
	return "Started a new consultation. Previous symptoms have been forgotten, so please describe how you feel.", nil
}

// setupCommands initialises the command registry with all available commands
func (c *Connector) setupCommands() {
	c.commands = NewCommandRegistry()
	c.commands.Register("/new", c.handleNewCommand)
	c.commands.Register("/help", func(context.Context, slack.SlashCommand) (string, error) {
		return c.executor.HelpText(), nil
	})
	c.commands.Register("/conditions", func(context.Context, slack.SlashCommand) (string, error) {
		return c.executor.ConditionsText(), nil
	})
}

// handleSlashCommand processes incoming slash command events
func (c *Connector) handleSlashCommand(ctx context.Context, envelope socketmode.Event) {
	cmd, ok := envelope.Data.(slack.SlashCommand)
	if !ok {
		c.logger.Warn("Failed to parse slash command data", logger.StringField("data", fmt.Sprintf("%+v", envelope.Data)))
		c.socketMode.Ack(*envelope.Request)
		return
	}

	c.socketMode.Ack(*envelope.Request, c.runCommand(ctx, cmd))
}

func (c *Connector) runCommand(ctx context.Context, cmd slack.SlashCommand) map[string]interface{} {
	c.logger.Info("Received slash command",
		logger.StringField("command", cmd.Command),
		logger.StringField("user_id", cmd.UserID),
		logger.StringField("channel_id", cmd.ChannelID))

	response, err := c.commands.Handle(ctx, cmd)
	if err != nil {
		c.logger.Error("Error handling command",
			logger.StringField("command", cmd.Command),
			logger.ErrorField(err))
		return textPayload("An error occurred while processing your command.")
	}
	return response
}
