package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/triage_assistant/internal/mcp_server"
	"github.com/lewisedginton/triage_assistant/internal/server"
	"github.com/lewisedginton/triage_assistant/pkg/logger"
)

// MCPCommand returns a command exposing the engine as MCP tools.
func MCPCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Model Context Protocol operations",
		Subcommands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve triage tools over stdio",
				Action: mcpServeAction,
			},
		},
	}
}

func mcpServeAction(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	log := getLogger(ctx).WithFields(logger.StringField("mode", "mcp"))

	components, err := server.BuildComponents(ctx.Context, cfg, log, nil)
	if err != nil {
		return fmt.Errorf("failed to start triage engine: %w", err)
	}
	defer components.Close()

	s, err := mcp_server.New(components.Engine, mcp_server.Config{
		Name:    cfg.MCP.ServerName,
		Version: cfg.Version,
		UserID:  cfg.MCP.UserID,
		History: components.History,
		Logger:  log,
	})
	if err != nil {
		return err
	}
	return s.Run(ctx.Context)
}
