package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/triage_assistant/internal/storage_manager"
	"github.com/lewisedginton/triage_assistant/pkg/logger"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "triage-assistant", cfg.ServiceName)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "storage", cfg.Knowledge.Source)
	assert.Equal(t, "medical_knowledge.json", cfg.Knowledge.File)
	assert.Equal(t, 5, cfg.Engine.TopK)
	assert.InDelta(t, 0.3, cfg.Engine.Threshold, 1e-9)
	assert.Equal(t, 3, cfg.Engine.LookbackWindow)
	assert.Equal(t, 10*time.Second, cfg.Engine.EmbedTimeout)
	assert.Equal(t, "hashing", cfg.Embedding.Provider)
	assert.Equal(t, "none", cfg.Intent.Provider)
	assert.Equal(t, 2*time.Second, cfg.Intent.Timeout)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, "file", cfg.History.Backend)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, logger.InfoLevel, cfg.GetLogLevel())
	assert.False(t, cfg.IsProduction())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
environment: production
engine:
  top_k: 3
  variants:
    tummy ache: stomach pain
intent:
  provider: openai
  timeout: 500ms
history:
  backend: none
logging:
  level: debug
`)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ENGINE_NEGATION_MARKERS", "no,never")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 3, cfg.Engine.TopK)
	assert.Equal(t, map[string]string{"tummy ache": "stomach pain"}, cfg.Engine.Variants)
	assert.Equal(t, []string{"no", "never"}, cfg.Engine.NegationMarkers)
	assert.Equal(t, "openai", cfg.Intent.Provider)
	assert.Equal(t, 500*time.Millisecond, cfg.Intent.Timeout)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "none", cfg.History.Backend)
	assert.Equal(t, logger.DebugLevel, cfg.GetLogLevel())
}

func TestEngineTuning(t *testing.T) {
	t.Run("yaml zero threshold falls back to the default", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, "engine:\n  threshold: 0\n"))
		require.NoError(t, err)
		assert.InDelta(t, 0.3, cfg.Engine.Threshold, 1e-9)
	})

	t.Run("env zero threshold is kept", func(t *testing.T) {
		t.Setenv("ENGINE_THRESHOLD", "0")
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Zero(t, cfg.Engine.Threshold)
	})

	t.Run("clause boundaries and embed timeout", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, `
engine:
  embed_timeout: 3s
  clause_boundaries: [but, except]
`))
		require.NoError(t, err)
		assert.Equal(t, 3*time.Second, cfg.Engine.EmbedTimeout)
		assert.Equal(t, []string{"but", "except"}, cfg.Engine.ClauseBoundaries)
	})
}

func TestLoadValidation(t *testing.T) {
	testCases := []struct {
		name string
		body string
		env  map[string]string
	}{
		{name: "bad top_k", body: "engine:\n  top_k: -1\n"},
		{name: "threshold above one", body: "engine:\n  threshold: 1.5\n"},
		{name: "unknown intent provider", body: "intent:\n  provider: magic\n"},
		{name: "openai without key", body: "intent:\n  provider: openai\n"},
		{name: "anthropic without key", body: "intent:\n  provider: anthropic\n"},
		{name: "lua without script", body: "intent:\n  provider: lua\n"},
		{name: "unknown history backend", body: "history:\n  backend: redis\n"},
		{name: "mongo history without uri", body: "history:\n  backend: mongo\n"},
		{name: "s3 without bucket", body: "storage:\n  backend: s3\n"},
		{name: "bad log format", body: "logging:\n  format: xml\n"},
		{name: "knowledge format", body: "knowledge:\n  format: csv\n"},
		{name: "grpc port clash", body: "health:\n  grpc_port: 8080\n"},
		{name: "history limit over max", body: "history:\n  limit: 500\n"},
		{name: "negative embed timeout", body: "engine:\n  embed_timeout: -1s\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}
}

func TestStorageManagerConfig(t *testing.T) {
	local := StorageConfig{Backend: "local", LocalDir: "/srv/data"}.ManagerConfig()
	assert.Equal(t, storage_manager.BackendLocal, local.Backend)
	require.NotNil(t, local.LocalConfig)
	assert.Equal(t, "/srv/data", local.LocalConfig.BaseDir)

	s3 := StorageConfig{Backend: "s3", S3Bucket: "kb", S3Prefix: "prod", S3Endpoint: "http://minio:9000"}.ManagerConfig()
	require.NotNil(t, s3.S3Config)
	assert.Equal(t, "kb", s3.S3Config.Bucket)
	assert.Equal(t, "http://minio:9000", s3.S3Config.Endpoint)

	git := StorageConfig{Backend: "git", GitPath: "/repo", GitInit: true}.ManagerConfig()
	require.NotNil(t, git.GitConfig)
	assert.True(t, git.GitConfig.InitIfMissing)
}

func TestConnectorsEnabled(t *testing.T) {
	tg := TelegramConfig{}
	assert.False(t, tg.Enabled())
	tg.BotToken = "t"
	assert.True(t, tg.Enabled())

	sl := SlackConfig{BotToken: "xoxb"}
	assert.False(t, sl.Enabled())
	sl.AppToken = "xapp"
	assert.True(t, sl.Enabled())
}
