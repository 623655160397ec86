package server

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gopkg.in/yaml.v3"

	appconfig "github.com/lewisedginton/triage_assistant/internal/config"
	"github.com/lewisedginton/triage_assistant/internal/connectors/executor"
	"github.com/lewisedginton/triage_assistant/internal/conversation"
	"github.com/lewisedginton/triage_assistant/internal/embedding"
	"github.com/lewisedginton/triage_assistant/internal/extractor"
	"github.com/lewisedginton/triage_assistant/internal/history"
	"github.com/lewisedginton/triage_assistant/internal/intent"
	"github.com/lewisedginton/triage_assistant/internal/knowledge"
	"github.com/lewisedginton/triage_assistant/internal/matcher"
	"github.com/lewisedginton/triage_assistant/internal/prompt_manager"
	"github.com/lewisedginton/triage_assistant/internal/session_manager"
	"github.com/lewisedginton/triage_assistant/internal/storage_manager"
	"github.com/lewisedginton/triage_assistant/internal/triage"
	"github.com/lewisedginton/triage_assistant/pkg/logger"
	"github.com/lewisedginton/triage_assistant/pkg/metrics"
)

// Storage namespaces.
const (
	promptsNamespace  = "prompts"
	sessionsNamespace = "sessions"
	sessionsFile      = "sessions.json"
)

// Components are the long-lived pieces shared by every entry point:
// the HTTP server, the chat REPL and the MCP server.
type Components struct {
	Storage   *storage_manager.StorageManager
	Knowledge *knowledge.KnowledgeBase
	Engine    *triage.Engine
	History   history.Store
	Sessions  session_manager.Manager
	Executor  *executor.Executor
	Metrics   *metrics.Metrics
	Templates prompt_manager.Templates

	mongoClient *mongo.Client
	log         logger.Logger
}

// BuildComponents wires the engine and its collaborators from configuration.
// A nil m gets a fresh Metrics with no HTTP or gRPC collectors.
//
//nolint:revive // cognitive-complexity: component initialization is sequential by nature
func BuildComponents(ctx context.Context, cfg *appconfig.AppConfig, log logger.Logger, m *metrics.Metrics) (*Components, error) {
	if m == nil {
		m = metrics.NewMetrics(false, false, log)
	}
	c := &Components{Metrics: m, log: log}

	var err error
	c.Storage, err = storage_manager.New(ctx, cfg.Storage.ManagerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create storage manager: %w", err)
	}
	log.Info("Storage backend ready",
		logger.StringField("backend", string(c.Storage.Backend())),
		logger.StringField("revision", c.Storage.Revision()))

	embedder, err := embedding.New(ctx, embeddingConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	c.Knowledge, err = c.loadKnowledge(ctx, cfg, embedder)
	if err != nil {
		c.Close()
		return nil, err
	}
	log.Info("Knowledge base loaded",
		logger.IntField("conditions", c.Knowledge.Len()),
		logger.StringField("embedder", embedder.Name()))

	classifier, err := c.createClassifier(ctx, cfg)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Templates, err = prompt_manager.New(c.Storage.GetProvider(promptsNamespace)).Templates(ctx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to load response templates: %w", err)
	}

	ex := extractor.New(c.Knowledge.Vocabulary(), extractor.Config{
		LookbackWindow:   cfg.Engine.LookbackWindow,
		NegationMarkers:  cfg.Engine.NegationMarkers,
		ClauseBoundaries: cfg.Engine.ClauseBoundaries,
		Variants:         cfg.Engine.Variants,
	})

	c.Engine = triage.New(c.Knowledge, ex, classifier,
		conversation.NewStore(conversation.WithLogger(log)),
		triage.WithMatchOptions(matcher.Options{
			TopK:         cfg.Engine.TopK,
			Threshold:    cfg.Engine.Threshold,
			EmbedTimeout: cfg.Engine.EmbedTimeout,
		}),
		triage.WithTemplates(c.Templates),
		triage.WithFollowUpMarkers(cfg.Engine.FollowUpMarkers),
		triage.WithLogger(log),
		triage.WithRecorder(m.Triage),
	)

	c.History, err = history.Open(ctx, history.Config{
		Backend:       history.Backend(cfg.History.Backend),
		Provider:      c.Storage.GetProvider(cfg.History.Namespace),
		DatabaseURL:   cfg.Database.GetConnectionConfig(),
		MongoURI:      cfg.Mongo.URI,
		MongoDatabase: cfg.Mongo.Database,
	}, log)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}

	c.Sessions, err = session_manager.New(session_manager.Config{
		MetadataFile: sessionsFile,
		FileProvider: c.Storage.GetProvider(sessionsNamespace),
		Logger:       log,
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	c.Executor, err = executor.NewExecutor(c.Engine, c.Sessions,
		executor.WithHistory(c.History),
		executor.WithTemplates(c.Templates),
		executor.WithLogger(log),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create executor: %w", err)
	}
	return c, nil
}

func embeddingConfig(cfg *appconfig.AppConfig) embedding.Config {
	ec := embedding.Config{
		Provider:   cfg.Embedding.Provider,
		Dimensions: cfg.Embedding.Dimensions,
		Model:      cfg.Embedding.Model,
		Timeout:    cfg.Engine.EmbedTimeout,
	}
	switch cfg.Embedding.Provider {
	case "openai":
		ec.APIKey = cfg.OpenAI.APIKey
	case "gemini":
		ec.APIKey = cfg.Gemini.APIKey
		ec.Project = cfg.Gemini.Project
		ec.Location = cfg.Gemini.Region
	}
	return ec
}

func (c *Components) loadKnowledge(ctx context.Context, cfg *appconfig.AppConfig, embedder embedding.Embedder) (*knowledge.KnowledgeBase, error) {
	if cfg.Knowledge.Source == "mongo" {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		c.mongoClient = client
		coll := client.Database(cfg.Mongo.Database).Collection(cfg.Knowledge.Collection)
		kb, err := knowledge.LoadMongo(ctx, coll, embedder)
		if err != nil {
			return nil, fmt.Errorf("failed to load knowledge from mongo: %w", err)
		}
		return kb, nil
	}

	provider := c.Storage.GetProvider(cfg.Knowledge.Namespace)
	kb, err := knowledge.Load(ctx, provider, cfg.Knowledge.File, knowledge.Format(cfg.Knowledge.Format), embedder)
	if err != nil {
		return nil, fmt.Errorf("failed to load knowledge base: %w", err)
	}
	return kb, nil
}

func (c *Components) createClassifier(ctx context.Context, cfg *appconfig.AppConfig) (*intent.Classifier, error) {
	rules := intent.DefaultRules()
	if cfg.Intent.RulesFile != "" {
		data, err := c.Storage.GetProvider("").Read(ctx, cfg.Intent.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read intent rules: %w", err)
		}
		var extra intent.Rules
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&extra); err != nil {
			return nil, fmt.Errorf("failed to parse intent rules %s: %w", cfg.Intent.RulesFile, err)
		}
		rules = rules.Merge(extra)
	}

	ec := externalConfig(cfg)
	if ec.Provider == intent.ProviderLua {
		source, err := readLuaScript(cfg.Lua.ScriptPath)
		if err != nil {
			return nil, err
		}
		ec.ScriptSource = source
	}
	ext, err := intent.NewExternal(ctx, ec, c.log)
	if err != nil {
		return nil, err
	}
	c.log.Info("Intent classifier ready", logger.StringField("external", ext.Name()))

	return intent.NewClassifier(intent.NewRuleClassifier(rules), ext, intent.Options{
		Timeout:       cfg.Intent.Timeout,
		MinConfidence: cfg.Intent.MinConfidence,
		Logger:        c.log,
		Observer:      c.Metrics.Triage,
	}), nil
}

func externalConfig(cfg *appconfig.AppConfig) intent.ExternalConfig {
	ec := intent.ExternalConfig{Provider: intent.Provider(cfg.Intent.Provider)}
	switch ec.Provider {
	case intent.ProviderOpenAI:
		ec.APIKey, ec.Model = cfg.OpenAI.APIKey, cfg.OpenAI.Model
	case intent.ProviderAnthropic:
		ec.APIKey, ec.Model = cfg.Anthropic.APIKey, cfg.Anthropic.Model
	case intent.ProviderGemini:
		ec.APIKey, ec.Model = cfg.Gemini.APIKey, cfg.Gemini.Model
		ec.Project, ec.Location = cfg.Gemini.Project, cfg.Gemini.Region
	case intent.ProviderLua:
		ec.ScriptName = cfg.Lua.ScriptPath
	}
	return ec
}

func readLuaScript(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied script path
	if err != nil {
		return "", fmt.Errorf("failed to read lua script: %w", err)
	}
	return string(data), nil
}

// Close releases the history store and any mongo connection.
func (c *Components) Close() {
	var result error
	if c.History != nil {
		if err := c.History.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if c.mongoClient != nil {
		if err := c.mongoClient.Disconnect(context.Background()); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if result != nil {
		c.log.Warn("Error while closing components", logger.ErrorField(result))
	}
}
