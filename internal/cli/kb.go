package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/urfave/cli/v2"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lewisedginton/triage_assistant/internal/embedding"
	"github.com/lewisedginton/triage_assistant/internal/knowledge"
	"github.com/lewisedginton/triage_assistant/internal/storage_manager"
	"github.com/lewisedginton/triage_assistant/pkg/logger"
)

// KnowledgeCommand returns a command for knowledge base operations
func KnowledgeCommand() *cli.Command {
	fileFlags := []cli.Flag{
		&cli.StringFlag{
			Name:     "file",
			Aliases:  []string{"f"},
			Usage:    "Path to a JSON or YAML knowledge file",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "format",
			Usage: "json or yaml (inferred from the extension when empty)",
		},
	}

	return &cli.Command{
		Name:    "kb",
		Aliases: []string{"knowledge"},
		Usage:   "Knowledge base operations",
		Subcommands: []*cli.Command{
			{
				Name:   "validate",
				Usage:  "Check every record of a knowledge file",
				Flags:  fileFlags,
				Action: kbValidateAction,
			},
			{
				Name:   "seed",
				Usage:  "Replace the mongo knowledge collection with the records of a file",
				Flags:  fileFlags,
				Action: kbSeedAction,
			},
		},
	}
}

func kbValidateAction(ctx *cli.Context) error {
	log := getLogger(ctx)
	path := ctx.String("file")

	kb, err := validateKnowledgeFile(ctx.Context, path, knowledge.Format(ctx.String("format")))
	if err != nil {
		log.Error("Knowledge file is invalid", logger.StringField("file", path), logger.ErrorField(err))
		return cli.Exit(err.Error(), 1)
	}

	printKnowledgeSummary(ctx.App.Writer, path, kb)
	return nil
}

// validateKnowledgeFile loads path through the same code the server uses.
// Validation does not depend on the embedder, so the local one is enough.
func validateKnowledgeFile(ctx context.Context, path string, format knowledge.Format) (*knowledge.KnowledgeBase, error) {
	provider := storage_manager.NewLocalFileProvider(filepath.Dir(path))
	return knowledge.Load(ctx, provider, filepath.Base(path), format, embedding.NewHashingEmbedder(0))
}

func printKnowledgeSummary(w io.Writer, path string, kb *knowledge.KnowledgeBase) {
	fmt.Fprintf(w, "%s is valid: %d conditions, %d distinct symptoms\n", path, kb.Len(), len(kb.Vocabulary()))
}

func kbSeedAction(ctx *cli.Context) error {
	log := getLogger(ctx)
	path := ctx.String("file")

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.Mongo.URI == "" {
		return cli.Exit("MONGO_URI is required to seed knowledge", 1)
	}

	kb, err := validateKnowledgeFile(ctx.Context, path, knowledge.Format(ctx.String("format")))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	client, err := mongo.Connect(ctx.Context, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return fmt.Errorf("failed to connect to mongo: %w", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Warn("Failed to disconnect from mongo", logger.ErrorField(err))
		}
	}()

	coll := client.Database(cfg.Mongo.Database).Collection(cfg.Knowledge.Collection)
	if err := knowledge.SeedMongo(ctx.Context, coll, kb.Conditions()); err != nil {
		return err
	}

	log.Info("Knowledge collection seeded",
		logger.StringField("database", cfg.Mongo.Database),
		logger.StringField("collection", cfg.Knowledge.Collection),
		logger.IntField("conditions", kb.Len()))
	fmt.Fprintf(ctx.App.Writer, "Seeded %d conditions into %s.%s\n", kb.Len(), cfg.Mongo.Database, cfg.Knowledge.Collection)
	return nil
}
