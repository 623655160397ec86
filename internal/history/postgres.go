package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lewisedginton/triage_assistant/internal/persistence"
	"github.com/lewisedginton/triage_assistant/pkg/logger"
)

// PostgresStore keeps records in the conversations table.
type PostgresStore struct {
	pool *pgxpool.Pool
	repo *persistence.ConversationRepository
	now  func() time.Time
}

// OpenPostgres connects, applies migrations and returns the store.
func OpenPostgres(ctx context.Context, connString string, log logger.Logger) (*PostgresStore, error) {
	if connString == "" {
		return nil, fmt.Errorf("postgres history requires a database url")
	}
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := persistence.NewMigrationManager(pool, log).RunMigrations(); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{
		pool: pool,
		repo: persistence.NewConversationRepository(pool, log),
		now:  time.Now,
	}, nil
}

func (s *PostgresStore) Save(ctx context.Context, r Record) error {
	r = prepare(r, s.now())
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return fmt.Errorf("history record id must be a uuid: %w", err)
	}
	return s.repo.Insert(ctx, persistence.Conversation{
		ID:                id,
		UserID:            r.UserID,
		SessionID:         r.SessionID,
		CreatedAt:         r.Timestamp,
		UserMessage:       r.UserMessage,
		BotResponse:       r.BotResponse,
		Intent:            r.Intent,
		SymptomsDetected:  r.SymptomsDetected,
		ConditionsMatched: r.ConditionsMatched,
		Confidence:        r.Confidence,
		Entities:          r.Entities,
	})
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit int) ([]Record, error) {
	rows, err := s.repo.ListByUser(ctx, userID, int32(effectiveLimit(limit))) //nolint:gosec // limit is bounded by the API layer
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for _, c := range rows {
		out = append(out, Record{
			ID:                c.ID.String(),
			UserID:            c.UserID,
			SessionID:         c.SessionID,
			Timestamp:         c.CreatedAt,
			UserMessage:       c.UserMessage,
			BotResponse:       c.BotResponse,
			Intent:            c.Intent,
			SymptomsDetected:  c.SymptomsDetected,
			ConditionsMatched: c.ConditionsMatched,
			Confidence:        c.Confidence,
			Entities:          c.Entities,
		})
	}
	return out, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
