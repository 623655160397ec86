package executor

import "github.com/lewisedginton/triage_assistant/internal/triage"

// MessageRequest represents an incoming message from a chat platform
type MessageRequest struct {
	Connector string // "telegram", "slack", "cli"
	UserID    string // Platform-specific user ID
	ChannelID string // Chat or channel the message arrived on
	Message   string // The user's message text
}

// MessageResponse represents the assistant's reply
type MessageResponse struct {
	Text      string // Reply text to send back
	SessionID string // Triage session the message was processed in
	Result    triage.ChatResult
}
