package history

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/lewisedginton/triage_assistant/internal/storage_manager"
)

// FileStore keeps one JSON-lines file per user.
type FileStore struct {
	provider storage_manager.FileProvider
	now      func() time.Time
	mu       sync.Mutex
}

func NewFileStore(provider storage_manager.FileProvider) *FileStore {
	return &FileStore{provider: provider, now: time.Now}
}

func userPath(userID string) string {
	return "users/" + url.PathEscape(userID) + ".jsonl"
}

func (s *FileStore) Save(ctx context.Context, r Record) error {
	r = prepare(r, s.now())
	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode history record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := userPath(r.UserID)
	data, err := s.provider.Read(ctx, path)
	if err != nil && !errors.Is(err, storage_manager.ErrNotFound) {
		return fmt.Errorf("failed to read history for %s: %w", r.UserID, err)
	}
	data = append(data, line...)
	data = append(data, '\n')
	if err := s.provider.Write(ctx, path, data); err != nil {
		return fmt.Errorf("failed to write history for %s: %w", r.UserID, err)
	}
	return nil
}

func (s *FileStore) ListByUser(ctx context.Context, userID string, limit int) ([]Record, error) {
	s.mu.Lock()
	data, err := s.provider.Read(ctx, userPath(userID))
	s.mu.Unlock()
	if errors.Is(err, storage_manager.ErrNotFound) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history for %s: %w", userID, err)
	}

	var records []Record
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for line := 1; sc.Scan(); line++ {
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return nil, fmt.Errorf("corrupt history for %s at line %d: %w", userID, line, err)
		}
		records = append(records, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan history for %s: %w", userID, err)
	}

	// Newest is appended last. Reverse so equal timestamps keep newest first.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})

	if n := effectiveLimit(limit); len(records) > n {
		records = records[:n]
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Ping checks the provider answers.
func (s *FileStore) Ping(ctx context.Context) error {
	if _, err := s.provider.Exists(ctx, "users"); err != nil {
		return fmt.Errorf("history storage unreachable: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
