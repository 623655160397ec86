package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/triage_assistant/internal/connectors/executor"
	"github.com/lewisedginton/triage_assistant/internal/server"
)

const (
	cliConnector = "cli"
	cliChannel   = "terminal"
)

// ChatCommand returns an interactive triage conversation over stdin.
func ChatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Talk to the triage assistant in the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "user",
				Usage:   "User ID recorded in history",
				EnvVars: []string{"USER"},
				Value:   "local",
			},
		},
		Action: chatAction,
	}
}

func chatAction(ctx *cli.Context) error {
	log := getLogger(ctx)

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	components, err := server.BuildComponents(ctx.Context, cfg, log, nil)
	if err != nil {
		return fmt.Errorf("failed to start triage engine: %w", err)
	}
	defer components.Close()

	in := ctx.App.Reader
	if in == nil {
		in = os.Stdin
	}
	fmt.Fprintln(ctx.App.Writer, components.Templates.Greeting)
	fmt.Fprintln(ctx.App.Writer, "Type /help for commands, /quit to leave.")
	return runREPL(ctx.Context, in, ctx.App.Writer, components.Executor, ctx.String("user"))
}

// runREPL answers one line at a time until EOF or /quit.
func runREPL(ctx context.Context, in io.Reader, out io.Writer, exec *executor.Executor, userID string) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "/quit", "/exit":
			return nil
		case "/help":
			fmt.Fprintln(out, exec.HelpText())
		case "/conditions":
			fmt.Fprintln(out, exec.ConditionsText())
		case "/new":
			if _, err := exec.NewSession(ctx, cliConnector, userID, cliChannel); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			fmt.Fprintln(out, "Started a new consultation. What symptoms do you have?")
		default:
			resp, err := exec.Execute(ctx, executor.MessageRequest{
				Connector: cliConnector,
				UserID:    userID,
				ChannelID: cliChannel,
				Message:   line,
			})
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			fmt.Fprintln(out, resp.Text)
		}
	}
}
