// Package mcp_server exposes the triage engine as Model Context Protocol tools,
// so an MCP client such as a desktop assistant can hold a triage conversation.
package mcp_server

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lewisedginton/triage_assistant/internal/history"
	"github.com/lewisedginton/triage_assistant/internal/knowledge"
	"github.com/lewisedginton/triage_assistant/internal/triage"
	"github.com/lewisedginton/triage_assistant/pkg/logger"
)

// Tool names.
const (
	ToolTriageMessage   = "triage_message"
	ToolAnalyzeSymptoms = "analyze_symptoms"
	ToolListConditions  = "list_conditions"
	ToolClearSession    = "clear_session"
)

// Engine is the part of the triage engine the tools call.
type Engine interface {
	Process(ctx context.Context, sessionID, text string) (triage.ChatResult, error)
	AnalyzeSymptoms(ctx context.Context, symptoms []string) (triage.Analysis, error)
	ClearSession(sessionID string) bool
	ListConditions() []knowledge.ConditionRecord
}

// Config describes the advertised server and where tool calls are recorded.
type Config struct {
	Name    string
	Version string
	// UserID is written to history for every triage_message call.
	UserID  string
	History history.Store
	Logger  logger.Logger
}

// Server owns the MCP server and its tool handlers.
type Server struct {
	engine  Engine
	history history.Store
	userID  string
	log     logger.Logger
	server  *mcp.Server
}

// New registers the triage tools on a fresh MCP server.
func New(engine Engine, cfg Config) (*Server, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	if cfg.Name == "" {
		cfg.Name = "triage-assistant"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.History == nil {
		cfg.History = history.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}

	s := &Server{
		engine:  engine,
		history: cfg.History,
		userID:  cfg.UserID,
		log:     cfg.Logger.WithFields(logger.StringField("component", "mcp_server")),
		server:  mcp.NewServer(&mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, nil),
	}
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying server, for in-process transports.
func (s *Server) MCPServer() *mcp.Server { return s.server }

// Run serves over stdin/stdout until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("Serving MCP over stdio")
	if err := s.server.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: ToolTriageMessage,
		Description: "Send one patient message to the triage assistant. Symptoms accumulate per session_id, " +
			"so follow-up messages refine the suggested conditions. The reply is not a medical diagnosis.",
	}, s.triageMessage)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolAnalyzeSymptoms,
		Description: "Rank the known conditions against an explicit list of symptom names without starting a conversation.",
	}, s.analyzeSymptoms)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolListConditions,
		Description: "List every condition in the knowledge base with its symptoms, severity and advice.",
	}, s.listConditions)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolClearSession,
		Description: "Forget everything said in a session so the next message starts fresh.",
	}, s.clearSession)
}
