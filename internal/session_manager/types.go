// Package session_manager maps connector users (a Telegram chat, a Slack user)
// to triage session ids and remembers the mapping across restarts.
package session_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"time"

	"github.com/lewisedginton/triage_assistant/internal/storage_manager"
	"github.com/lewisedginton/triage_assistant/pkg/logger"
)

// DefaultMaxSessionsPerUser bounds how many past sessions are remembered per user.
const DefaultMaxSessionsPerUser = 10

// SessionInfo represents metadata about a chat session
type SessionInfo struct {
	SessionID  string    `json:"session_id"` // e.g. "sess-0b4d..."
	Connector  string    `json:"connector"`  // "slack", "telegram", "http"
	UserID     string    `json:"user_id"`    // Platform-specific user ID
	ChannelID  string    `json:"channel_id"` // Channel/Chat ID
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

// Config holds configuration for the session manager
type Config struct {
	MetadataFile string                       // Path relative to the FileProvider root
	FileProvider storage_manager.FileProvider // Where the index is persisted
	Logger       logger.Logger

	MaxSessionsPerUser int

	// Now defaults to time.Now.
	Now func() time.Time
}

// metadataStore represents the structure of the metadata JSON file
type metadataStore struct {
	// connector -> userID -> []SessionInfo
	Sessions map[string]map[string][]SessionInfo `json:"sessions"`
}
