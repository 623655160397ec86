// Package history records every chat exchange per user.
//
// Backends: a no-op store, JSON lines over a storage_manager FileProvider,
// postgres and mongo. History is best-effort; callers log Save failures and
// carry on.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lewisedginton/triage_assistant/internal/extractor"
	"github.com/lewisedginton/triage_assistant/internal/storage_manager"
	"github.com/lewisedginton/triage_assistant/internal/triage"
	"github.com/lewisedginton/triage_assistant/pkg/logger"
)

// ErrUnsupportedBackend is returned by Open for an unknown backend name.
var ErrUnsupportedBackend = errors.New("unsupported history backend")

// DefaultLimit applies when ListByUser is called with limit <= 0.
const DefaultLimit = 10

// Backend names a history implementation.
type Backend string

const (
	BackendNone     Backend = "none"
	BackendFile     Backend = "file"
	BackendPostgres Backend = "postgres"
	BackendMongo    Backend = "mongo"
)

// Record is one user message and the reply it got.
type Record struct {
	ID                string             `json:"id" bson:"_id"`
	UserID            string             `json:"user_id" bson:"user_id"`
	SessionID         string             `json:"session_id" bson:"session_id"`
	Timestamp         time.Time          `json:"timestamp" bson:"timestamp"`
	UserMessage       string             `json:"user_message" bson:"user_message"`
	BotResponse       string             `json:"bot_response" bson:"bot_response"`
	Intent            string             `json:"intent" bson:"intent"`
	SymptomsDetected  []string           `json:"symptoms_detected" bson:"symptoms_detected"`
	ConditionsMatched []string           `json:"conditions_matched" bson:"conditions_matched"`
	Confidence        float64            `json:"confidence" bson:"confidence"`
	Entities          extractor.Entities `json:"entities" bson:"entities"`
}

// FromResult builds the record for one processed message.
func FromResult(userID, message string, res triage.ChatResult) Record {
	return Record{
		UserID:            userID,
		SessionID:         res.SessionID,
		UserMessage:       message,
		BotResponse:       res.Message,
		Intent:            string(res.Intent),
		SymptomsDetected:  res.DetectedSymptoms,
		ConditionsMatched: res.ConditionNames(),
		Confidence:        res.Confidence,
		Entities:          res.Entities,
	}
}

// Store persists records.
type Store interface {
	// Save assigns ID and Timestamp when they are empty.
	Save(ctx context.Context, r Record) error
	// ListByUser returns up to limit records, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]Record, error)
	Ping(ctx context.Context) error
	Close() error
}

// prepare fills the generated fields of r.
func prepare(r Record, now time.Time) Record {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = now.UTC()
	}
	if r.SymptomsDetected == nil {
		r.SymptomsDetected = []string{}
	}
	if r.ConditionsMatched == nil {
		r.ConditionsMatched = []string{}
	}
	return r
}

func effectiveLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

// Config selects a backend. Only the fields of the chosen backend are read.
type Config struct {
	Backend Backend

	// Provider is used by the file backend.
	Provider storage_manager.FileProvider

	DatabaseURL string

	MongoURI      string
	MongoDatabase string
}

// Open builds the store described by cfg. An empty backend means none.
func Open(ctx context.Context, cfg Config, log logger.Logger) (Store, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	switch cfg.Backend {
	case "", BackendNone:
		return Nop{}, nil
	case BackendFile:
		if cfg.Provider == nil {
			return nil, fmt.Errorf("file history requires a storage provider")
		}
		return NewFileStore(cfg.Provider), nil
	case BackendPostgres:
		return OpenPostgres(ctx, cfg.DatabaseURL, log)
	case BackendMongo:
		return OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, cfg.Backend)
	}
}

// Nop discards records.
type Nop struct{}

func (Nop) Save(context.Context, Record) error { return nil }

func (Nop) ListByUser(context.Context, string, int) ([]Record, error) { return []Record{}, nil }

func (Nop) Ping(context.Context) error { return nil }

func (Nop) Close() error { return nil }
