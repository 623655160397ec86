package config

// MCPConfig describes the server advertised by `mcp serve`.
type MCPConfig struct {
	ServerName string `env:"MCP_SERVER_NAME" yaml:"server_name" default:"triage-assistant"`
	// UserID is recorded against history written by MCP tool calls.
	UserID string `env:"MCP_USER_ID" yaml:"user_id" default:"mcp"`
}
