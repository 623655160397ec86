package session_manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lewisedginton/triage_assistant/internal/storage_manager"
	"github.com/lewisedginton/triage_assistant/pkg/logger"
)

var timeNow = time.Now

// loadMetadata loads session metadata from the JSON file
func (sm *sessionManager) loadMetadata(ctx context.Context) error {
	sm.fileMutex.Lock()
	defer sm.fileMutex.Unlock()

	data, err := sm.config.FileProvider.Read(ctx, sm.config.MetadataFile)
	if errors.Is(err, storage_manager.ErrNotFound) {
		sm.config.Logger.Info("Metadata file does not exist, starting with empty index",
			logger.StringField("file", sm.config.MetadataFile))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read metadata file: %w", err)
	}

	var store metadataStore
	if err := json.Unmarshal(data, &store); err != nil {
		return fmt.Errorf("failed to parse metadata JSON: %w", err)
	}
	if store.Sessions != nil {
		sm.index = store.Sessions
	}

	sm.config.Logger.Info("Loaded session metadata", logger.StringField("file", sm.config.MetadataFile))
	return nil
}

// saveMetadata persists the index. Callers hold sm.mutex.
func (sm *sessionManager) saveMetadata(ctx context.Context) error {
	sm.fileMutex.Lock()
	defer sm.fileMutex.Unlock()

	data, err := json.MarshalIndent(metadataStore{Sessions: sm.index}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := sm.config.FileProvider.Write(ctx, sm.config.MetadataFile, data); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}
