package session_manager

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lewisedginton/triage_assistant/pkg/logger"
	"github.com/lewisedginton/triage_assistant/pkg/prefixed_uuid"
)

// Manager provides session tracking and lifecycle management
type Manager interface {
	// GetLatestSession returns the most recent session ID for a user+connector,
	// or "" when the user has none.
	GetLatestSession(ctx context.Context, connector, userID string) (string, error)

	// GetOrCreateSession returns existing latest session or creates new one
	GetOrCreateSession(ctx context.Context, connector, userID, channelID string) (string, error)

	// CreateNewSession always creates a new session (for /new command)
	CreateNewSession(ctx context.Context, connector, userID, channelID string) (string, error)

	// UpdateLastActive updates the last active timestamp for a session
	UpdateLastActive(ctx context.Context, sessionID string) error

	// ListUserSessions returns all sessions for a user+connector, most recent first
	ListUserSessions(ctx context.Context, connector, userID string) ([]SessionInfo, error)
}

type sessionManager struct {
	config    Config
	mutex     sync.RWMutex
	index     map[string]map[string][]SessionInfo // connector -> userID -> []sessions
	fileMutex sync.Mutex
}

// New creates a session manager and loads any persisted index.
func New(config Config) (Manager, error) {
	if config.MetadataFile == "" {
		return nil, fmt.Errorf("metadata file path is required")
	}
	if config.FileProvider == nil {
		return nil, fmt.Errorf("file provider is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if config.MaxSessionsPerUser <= 0 {
		config.MaxSessionsPerUser = DefaultMaxSessionsPerUser
	}
	if config.Now == nil {
		config.Now = timeNow
	}

	sm := &sessionManager{
		config: config,
		index:  make(map[string]map[string][]SessionInfo),
	}
	if err := sm.loadMetadata(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to load metadata: %w", err)
	}
	return sm, nil
}

func (sm *sessionManager) GetLatestSession(ctx context.Context, connector, userID string) (string, error) {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	if latest, ok := sm.latestLocked(connector, userID); ok {
		return latest.SessionID, nil
	}
	return "", nil
}

func (sm *sessionManager) latestLocked(connector, userID string) (SessionInfo, bool) {
	sessions := sm.index[connector][userID]
	if len(sessions) == 0 {
		return SessionInfo{}, false
	}
	latest := sessions[0]
	for _, s := range sessions[1:] {
		if s.LastActive.After(latest.LastActive) {
			latest = s
		}
	}
	return latest, true
}

func (sm *sessionManager) GetOrCreateSession(ctx context.Context, connector, userID, channelID string) (string, error) {
	sessionID, err := sm.GetLatestSession(ctx, connector, userID)
	if err != nil {
		return "", fmt.Errorf("failed to get latest session: %w", err)
	}

	if sessionID != "" {
		if err := sm.UpdateLastActive(ctx, sessionID); err != nil {
			sm.config.Logger.Warn("Failed to update last active time",
				logger.SessionIDField(sessionID),
				logger.ErrorField(err))
		}
		return sessionID, nil
	}

	return sm.CreateNewSession(ctx, connector, userID, channelID)
}

func (sm *sessionManager) CreateNewSession(ctx context.Context, connector, userID, channelID string) (string, error) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	sessionID := prefixed_uuid.NewSessionID()
	now := sm.config.Now()
	info := SessionInfo{
		SessionID:  sessionID,
		Connector:  connector,
		UserID:     userID,
		ChannelID:  channelID,
		CreatedAt:  now,
		LastActive: now,
	}

	if sm.index[connector] == nil {
		sm.index[connector] = make(map[string][]SessionInfo)
	}
	sessions := append(sm.index[connector][userID], info)
	if excess := len(sessions) - sm.config.MaxSessionsPerUser; excess > 0 {
		sort.SliceStable(sessions, func(i, j int) bool {
			return sessions[i].LastActive.Before(sessions[j].LastActive)
		})
		sessions = append([]SessionInfo(nil), sessions[excess:]...)
	}
	sm.index[connector][userID] = sessions

	// The in-memory index stays authoritative when persisting fails.
	if err := sm.saveMetadata(ctx); err != nil {
		sm.config.Logger.Error("Failed to save metadata after creating session",
			logger.SessionIDField(sessionID),
			logger.ErrorField(err))
	}

	sm.config.Logger.Info("Created new session",
		logger.SessionIDField(sessionID),
		logger.StringField("connector", connector),
		logger.StringField("user_id", userID))

	return sessionID, nil
}

func (sm *sessionManager) UpdateLastActive(ctx context.Context, sessionID string) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	found := false
	for _, users := range sm.index {
		for _, sessions := range users {
			for i := range sessions {
				if sessions[i].SessionID == sessionID {
					sessions[i].LastActive = sm.config.Now()
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if found {
			break
		}
	}
	if !found {
		return fmt.Errorf("session not found: %s", sessionID)
	}

	if err := sm.saveMetadata(ctx); err != nil {
		sm.config.Logger.Warn("Failed to save metadata after updating last active",
			logger.SessionIDField(sessionID),
			logger.ErrorField(err))
	}
	return nil
}

func (sm *sessionManager) ListUserSessions(ctx context.Context, connector, userID string) ([]SessionInfo, error) {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	sessions := sm.index[connector][userID]
	result := make([]SessionInfo, len(sessions))
	copy(result, sessions)

	sort.Slice(result, func(i, j int) bool {
		return result[i].LastActive.After(result[j].LastActive)
	})
	return result, nil
}
