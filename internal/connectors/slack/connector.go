// Package slack connects the triage assistant to Slack over Socket Mode.
// Direct messages and @mentions are answered; /new, /help and /conditions
// are served as slash commands.
package slack

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/lewisedginton/triage_assistant/internal/connectors/executor"
	"github.com/lewisedginton/triage_assistant/pkg/logger"
)

const connectorName = "slack"

const errorReply = "Sorry, I encountered an error processing your message."

// poster is the part of *slack.Client used to reply.
type poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Connector represents the Slack Socket Mode connector
type Connector struct {
	client     *slack.Client
	socketMode *socketmode.Client
	poster     poster
	executor   *executor.Executor
	commands   *CommandRegistry
	logger     logger.Logger
	connected  atomic.Bool
}

// Config holds configuration for the Slack connector
type Config struct {
	BotToken string // xoxb-*
	AppToken string // xapp-*
	Debug    bool
	Logger   logger.Logger
}

// NewConnector creates a new Slack connector with in-process executor
func NewConnector(config Config, exec *executor.Executor) (*Connector, error) {
	if !strings.HasPrefix(config.BotToken, "xoxb-") {
		return nil, fmt.Errorf("invalid bot token format, expected xoxb-*")
	}
	if !strings.HasPrefix(config.AppToken, "xapp-") {
		return nil, fmt.Errorf("invalid app token format, expected xapp-*")
	}
	if exec == nil {
		return nil, fmt.Errorf("executor is required")
	}

	client := slack.New(
		config.BotToken,
		slack.OptionAppLevelToken(config.AppToken),
		slack.OptionDebug(config.Debug),
	)

	c := newConnector(client, exec, config.Logger)
	c.client = client
	c.socketMode = socketmode.New(client, socketmode.OptionDebug(config.Debug))
	return c, nil
}

func newConnector(p poster, exec *executor.Executor, log logger.Logger) *Connector {
	if log == nil {
		log = logger.NewNopLogger()
	}
	c := &Connector{
		poster:   p,
		executor: exec,
		logger:   log.WithFields(logger.StringField("connector", connectorName)),
	}
	c.setupCommands()
	return c
}

// Start runs the Socket Mode connection until ctx is cancelled.
func (c *Connector) Start(ctx context.Context) error {
	c.logger.Info("Starting Slack Socket Mode connector")
	defer c.connected.Store(false)

	go c.consume(ctx)
	return c.socketMode.RunContext(ctx)
}

// Ready reports an error until the Socket Mode connection is up.
func (c *Connector) Ready() error {
	if !c.connected.Load() {
		return fmt.Errorf("slack socket mode is not connected")
	}
	return nil
}

func (c *Connector) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case envelope, ok := <-c.socketMode.Events:
			if !ok {
				return
			}
			c.dispatch(ctx, envelope)
		}
	}
}

func (c *Connector) dispatch(ctx context.Context, envelope socketmode.Event) {
	switch envelope.Type {
	case socketmode.EventTypeConnecting:
		c.logger.Info("Connecting to Slack with Socket Mode")

	case socketmode.EventTypeConnectionError:
		c.connected.Store(false)
		c.logger.Warn("Slack connection failed", logger.StringField("data", fmt.Sprintf("%v", envelope.Data)))

	case socketmode.EventTypeConnected:
		c.connected.Store(true)
		c.logger.Info("Connected to Slack with Socket Mode")

	case socketmode.EventTypeHello:
		// Hello event confirms WebSocket connection - no action needed

	case socketmode.EventTypeEventsAPI:
		eventsAPIEvent, ok := envelope.Data.(slackevents.EventsAPIEvent)
		if !ok {
			c.logger.Debug("Ignored event", logger.StringField("type", string(envelope.Type)))
			return
		}
		c.socketMode.Ack(*envelope.Request)

		if err := c.handleEvent(ctx, eventsAPIEvent); err != nil {
			c.logger.Error("Failed to handle event", logger.ErrorField(err))
		}

	case socketmode.EventTypeSlashCommand:
		c.handleSlashCommand(ctx, envelope)

	case socketmode.EventTypeInteractive:
		c.socketMode.Ack(*envelope.Request)

	default:
		c.logger.Debug("Unsupported event type received", logger.StringField("type", string(envelope.Type)))
	}
}

// handleEvent processes Slack events and routes them to the executor
func (c *Connector) handleEvent(ctx context.Context, event slackevents.EventsAPIEvent) error {
	if event.Type != slackevents.CallbackEvent {
		return nil
	}
	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		return c.handleMessageEvent(ctx, ev)
	case *slackevents.AppMentionEvent:
		return c.handleAppMentionEvent(ctx, ev)
	}
	return nil
}

// handleMessageEvent processes direct messages to the bot
func (c *Connector) handleMessageEvent(ctx context.Context, event *slackevents.MessageEvent) error {
	// Skip messages from bots to avoid loops
	if event.BotID != "" || event.SubType == "bot_message" {
		return nil
	}
	// Only process direct messages (DMs have channel type starting with D)
	if !strings.HasPrefix(event.Channel, "D") {
		return nil
	}

	text := extractMessageText(messageFromEvent(event))
	return c.reply(ctx, event.User, event.Channel, event.ThreadTimeStamp, text)
}

// handleAppMentionEvent processes @bot mentions in channels
func (c *Connector) handleAppMentionEvent(ctx context.Context, event *slackevents.AppMentionEvent) error {
	if event.BotID != "" {
		return nil
	}
	thread := event.ThreadTimeStamp
	if thread == "" {
		thread = event.TimeStamp
	}
	return c.reply(ctx, event.User, event.Channel, thread, removeBotMention(event.Text))
}

func (c *Connector) reply(ctx context.Context, userID, channelID, threadTS, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	c.logger.Debug("Processing message",
		logger.StringField("user_id", userID),
		logger.StringField("channel_id", channelID))

	response, err := c.executor.Execute(ctx, executor.MessageRequest{
		Connector: connectorName,
		UserID:    userID,
		ChannelID: channelID,
		Message:   text,
	})
	if err != nil {
		c.logger.Error("Error from executor", logger.StringField("user_id", userID), logger.ErrorField(err))
		return c.post(ctx, channelID, threadTS, errorReply)
	}
	return c.post(ctx, channelID, threadTS, response.Text)
}

func (c *Connector) post(ctx context.Context, channelID, threadTS, text string) error {
	if text == "" {
		return nil
	}
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	if _, _, err := c.poster.PostMessageContext(ctx, channelID, opts...); err != nil {
		return fmt.Errorf("failed to post message to Slack: %w", err)
	}
	return nil
}

// Stop gracefully stops the connector
func (c *Connector) Stop() error {
	c.logger.Info("Stopping Slack connector")
	// socketmode client doesn't have a direct stop method,
	// stopping is handled by context cancellation in RunContext
	return nil
}

// GetBotInfo returns information about the bot
func (c *Connector) GetBotInfo(ctx context.Context) (*slack.Bot, error) {
	auth, err := c.client.AuthTestContext(ctx)
	if err != nil {
		return nil, err
	}
	return c.client.GetBotInfoContext(ctx, slack.GetBotInfoParameters{Bot: auth.BotID})
}
