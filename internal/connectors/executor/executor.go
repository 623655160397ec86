// Package executor runs chat platform messages through the triage engine.
// It resolves the platform user to a triage session, records the exchange in
// history and serves the shared /new, /help and /conditions commands.
package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/lewisedginton/triage_assistant/internal/history"
	"github.com/lewisedginton/triage_assistant/internal/knowledge"
	"github.com/lewisedginton/triage_assistant/internal/prompt_manager"
	"github.com/lewisedginton/triage_assistant/internal/session_manager"
	"github.com/lewisedginton/triage_assistant/internal/triage"
	"github.com/lewisedginton/triage_assistant/pkg/logger"
)

// Engine is the part of triage.Engine the executor drives.
type Engine interface {
	Process(ctx context.Context, sessionID, text string) (triage.ChatResult, error)
	ClearSession(sessionID string) bool
	ListConditions() []knowledge.ConditionRecord
}

type Executor struct {
	engine    Engine
	sessions  session_manager.Manager
	history   history.Store
	templates prompt_manager.Templates
	logger    logger.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithHistory records every processed message. Defaults to history.Nop.
func WithHistory(h history.Store) Option {
	return func(e *Executor) { e.history = h }
}

// WithTemplates overrides the help text source.
func WithTemplates(t prompt_manager.Templates) Option {
	return func(e *Executor) { e.templates = t }
}

func WithLogger(l logger.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

func NewExecutor(engine Engine, sessions session_manager.Manager, opts ...Option) (*Executor, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session manager cannot be nil")
	}

	e := &Executor{
		engine:    engine,
		sessions:  sessions,
		history:   history.Nop{},
		templates: prompt_manager.Defaults(),
		logger:    logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Executor) Execute(ctx context.Context, req MessageRequest) (MessageResponse, error) {
	if req.Connector == "" {
		return MessageResponse{}, fmt.Errorf("connector is required")
	}
	if req.UserID == "" {
		return MessageResponse{}, fmt.Errorf("userID is required")
	}
	if strings.TrimSpace(req.Message) == "" {
		return MessageResponse{}, fmt.Errorf("message is required")
	}

	sessionID, err := e.sessions.GetOrCreateSession(ctx, req.Connector, req.UserID, req.ChannelID)
	if err != nil {
		return MessageResponse{}, fmt.Errorf("failed to resolve session: %w", err)
	}

	res, err := e.engine.Process(ctx, sessionID, req.Message)
	if err != nil {
		return MessageResponse{}, fmt.Errorf("failed to process message: %w", err)
	}

	if err := e.history.Save(ctx, history.FromResult(historyUserID(req), req.Message, res)); err != nil {
		e.logger.Warn("Failed to record conversation history",
			logger.SessionIDField(sessionID),
			logger.StringField("connector", req.Connector),
			logger.ErrorField(err))
	}

	return MessageResponse{
		Text:      res.Message,
		SessionID: sessionID,
		Result:    res,
	}, nil
}

// NewSession starts a fresh triage session for the user and forgets the
// symptoms gathered in the previous one.
func (e *Executor) NewSession(ctx context.Context, connector, userID, channelID string) (string, error) {
	previous, err := e.sessions.GetLatestSession(ctx, connector, userID)
	if err != nil {
		return "", fmt.Errorf("failed to look up current session: %w", err)
	}

	sessionID, err := e.sessions.CreateNewSession(ctx, connector, userID, channelID)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	if previous != "" {
		e.engine.ClearSession(previous)
	}

	e.logger.Info("Started new triage session",
		logger.SessionIDField(sessionID),
		logger.StringField("previous_session_id", previous),
		logger.StringField("connector", connector))
	return sessionID, nil
}

// HelpText lists what the assistant does and the chat commands.
func (e *Executor) HelpText() string {
	return e.templates.Help + "\n\n" +
		"Commands:\n" +
		"/new - Start a new consultation\n" +
		"/conditions - List the conditions I know about\n" +
		"/help - Show this help message"
}

// ConditionsText renders the knowledge base as a plain list.
func (e *Executor) ConditionsText() string {
	conditions := e.engine.ListConditions()
	if len(conditions) == 0 {
		return "No conditions are loaded."
	}

	var b strings.Builder
	b.WriteString("I can recognise these conditions:\n")
	for _, c := range conditions {
		fmt.Fprintf(&b, "- %s (%s): %s\n", c.Name, c.Severity, strings.Join(c.Symptoms, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func historyUserID(req MessageRequest) string {
	return req.Connector + ":" + req.UserID
}
