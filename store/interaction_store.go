package store

import (
	"context"
	"fmt"

	"cardtalk/api/database"
	"cardtalk/api/models"
)

// InteractionStore appends question interaction audit records to ClickHouse.
type InteractionStore struct {
	DB *database.ClickHouseClient
}

func NewInteractionStore(chClient *database.ClickHouseClient) *InteractionStore {
	return &InteractionStore{DB: chClient}
}

func (s *InteractionStore) InsertInteractions(ctx context.Context, events []models.InteractionEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO question_interactions (
			event_id, question_id, category_id, action, session_id, user_id, ip_address, timestamp
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}

	for _, event := range events {
		err := batch.Append(
			event.EventID,
			event.QuestionID,
			event.CategoryID,
			string(event.Action),
			event.SessionID,
			event.UserID,
			event.IPAddress,
			event.Timestamp,
		)
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append event %s: %w", event.EventID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}
