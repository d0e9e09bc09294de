package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attune-ai/attune/internal/domain"
)

type SignalStore struct {
	db *pgxpool.Pool
}

func NewSignalStore(db *pgxpool.Pool) *SignalStore {
	return &SignalStore{db: db}
}

func (s *SignalStore) Insert(ctx context.Context, sig *domain.Signal) error {
	payload, err := json.Marshal(sig.Payload)
	if err != nil {
		return fmt.Errorf("encode signal payload: %w", err)
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO signals (id, profile_id, workspace_id, type, category, strength, payload, session_id, message_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at`,
		sig.ID, sig.ProfileID, sig.WorkspaceID, sig.Type, sig.Category,
		sig.Strength, payload, sig.SessionID, sig.MessageID,
	).Scan(&sig.CreatedAt)
}

// InsertBatch writes a message's signals in one round trip. All-or-nothing
// is not required here; signals are independent observations.
func (s *SignalStore) InsertBatch(ctx context.Context, signals []*domain.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, sig := range signals {
		payload, err := json.Marshal(sig.Payload)
		if err != nil {
			return fmt.Errorf("encode signal payload: %w", err)
		}
		batch.Queue(
			`INSERT INTO signals (id, profile_id, workspace_id, type, category, strength, payload, session_id, message_id, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			sig.ID, sig.ProfileID, sig.WorkspaceID, sig.Type, sig.Category,
			sig.Strength, payload, sig.SessionID, sig.MessageID, sig.CreatedAt,
		)
	}
	results := s.db.SendBatch(ctx, batch)
	defer results.Close()
	for range signals {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert signal batch: %w", err)
		}
	}
	return nil
}

func (s *SignalStore) ListUnprocessed(ctx context.Context, profileID uuid.UUID, limit int) ([]domain.Signal, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, profile_id, workspace_id, type, category, strength, payload, session_id, message_id, processed, created_at
		 FROM signals
		 WHERE profile_id = $1 AND NOT processed
		 ORDER BY created_at
		 LIMIT $2`,
		profileID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []domain.Signal
	for rows.Next() {
		var sig domain.Signal
		var payload []byte
		if err := rows.Scan(&sig.ID, &sig.ProfileID, &sig.WorkspaceID, &sig.Type,
			&sig.Category, &sig.Strength, &payload, &sig.SessionID, &sig.MessageID,
			&sig.Processed, &sig.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &sig.Payload); err != nil {
			return nil, fmt.Errorf("decode signal %s payload: %w", sig.ID, err)
		}
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}

func (s *SignalStore) CountUnprocessed(ctx context.Context, profileID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM signals WHERE profile_id = $1 AND NOT processed`,
		profileID,
	).Scan(&n)
	return n, err
}

func (s *SignalStore) MarkProcessed(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx,
		`UPDATE signals SET processed = TRUE WHERE id = ANY($1)`,
		ids,
	)
	return err
}

func (s *SignalStore) DeleteByProfile(ctx context.Context, profileID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM signals WHERE profile_id = $1`,
		profileID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
