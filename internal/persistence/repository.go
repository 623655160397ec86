package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lewisedginton/triage_assistant/internal/extractor"
	"github.com/lewisedginton/triage_assistant/internal/persistence/sqlc"
	"github.com/lewisedginton/triage_assistant/pkg/logger"
)

// Conversation is one stored exchange.
type Conversation struct {
	ID                uuid.UUID
	UserID            string
	SessionID         string
	CreatedAt         time.Time
	UserMessage       string
	BotResponse       string
	Intent            string
	SymptomsDetected  []string
	ConditionsMatched []string
	Confidence        float64
	Entities          extractor.Entities
}

// ConversationRepository reads and writes the conversations table.
type ConversationRepository struct {
	db      *pgxpool.Pool
	queries sqlc.Querier
	logger  logger.Logger
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *pgxpool.Pool, log logger.Logger) *ConversationRepository {
	return &ConversationRepository{
		db:      db,
		queries: sqlc.New(db),
		logger:  log,
	}
}

// WithTx creates a new repository instance with a transaction
func (r *ConversationRepository) WithTx(tx pgx.Tx) *ConversationRepository {
	return &ConversationRepository{
		db:      r.db,
		queries: sqlc.New(tx),
		logger:  r.logger,
	}
}

// Insert stores c.
func (r *ConversationRepository) Insert(ctx context.Context, c Conversation) error {
	entities, err := json.Marshal(c.Entities)
	if err != nil {
		return fmt.Errorf("encode entities: %w", err)
	}

	err = r.queries.InsertConversation(ctx, sqlc.InsertConversationParams{
		ID:                pgtype.UUID{Bytes: c.ID, Valid: true},
		UserID:            c.UserID,
		SessionID:         c.SessionID,
		CreatedAt:         pgtype.Timestamptz{Time: c.CreatedAt, Valid: true},
		UserMessage:       c.UserMessage,
		BotResponse:       c.BotResponse,
		Intent:            c.Intent,
		SymptomsDetected:  nonNil(c.SymptomsDetected),
		ConditionsMatched: nonNil(c.ConditionsMatched),
		Confidence:        c.Confidence,
		Entities:          entities,
	})
	if err != nil {
		r.logger.Error("failed to insert conversation", logger.ErrorField(err), logger.StringField("user_id", c.UserID))
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// ListByUser returns up to limit conversations for userID, newest first.
func (r *ConversationRepository) ListByUser(ctx context.Context, userID string, limit int32) ([]Conversation, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.queries.ListConversationsByUser(ctx, sqlc.ListConversationsByUserParams{UserID: userID, Limit: limit})
	if err != nil {
		r.logger.Error("failed to list conversations", logger.ErrorField(err), logger.StringField("user_id", userID))
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	out := make([]Conversation, 0, len(rows))
	for _, row := range rows {
		c, err := convertSQLCToConversation(row)
		if err != nil {
			return nil, fmt.Errorf("convert conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Ping checks the pool can reach the database.
func (r *ConversationRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func convertSQLCToConversation(row sqlc.Conversation) (Conversation, error) {
	id, err := uuid.FromBytes(row.ID.Bytes[:])
	if err != nil {
		return Conversation{}, fmt.Errorf("convert UUID: %w", err)
	}

	var entities extractor.Entities
	if len(row.Entities) > 0 {
		if err := json.Unmarshal(row.Entities, &entities); err != nil {
			return Conversation{}, fmt.Errorf("decode entities: %w", err)
		}
	}

	return Conversation{
		ID:                id,
		UserID:            row.UserID,
		SessionID:         row.SessionID,
		CreatedAt:         row.CreatedAt.Time,
		UserMessage:       row.UserMessage,
		BotResponse:       row.BotResponse,
		Intent:            row.Intent,
		SymptomsDetected:  nonNil(row.SymptomsDetected),
		ConditionsMatched: nonNil(row.ConditionsMatched),
		Confidence:        row.Confidence,
		Entities:          entities,
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
