package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attune-ai/attune/internal/domain"
)

type ElicitationStore struct {
	db *pgxpool.Pool
}

func NewElicitationStore(db *pgxpool.Pool) *ElicitationStore {
	return &ElicitationStore{db: db}
}

// Create records an asked question. The unique (profile_id, question_id)
// index is what enforces ask-at-most-once across racing requests.
func (s *ElicitationStore) Create(ctx context.Context, r *domain.ElicitationResponse) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO elicitation_responses (profile_id, question_id, domain, phase, trigger, session_id, fact_key, asked_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		r.ProfileID, r.QuestionID, r.Domain, r.Phase, r.Trigger,
		r.SessionID, r.FactKey, r.AskedAt,
	).Scan(&r.ID)
}

func (s *ElicitationStore) GetByID(ctx context.Context, id uuid.UUID, profileID uuid.UUID) (*domain.ElicitationResponse, error) {
	r := &domain.ElicitationResponse{}
	// answer and fact_value stay NULL until Resolve runs; scan through
	// pgtype.Text so open rows read back as empty strings.
	var answer, factKey, factValue pgtype.Text
	err := s.db.QueryRow(ctx,
		`SELECT id, profile_id, question_id, domain, phase, trigger, session_id,
			skipped, answer, fact_key, fact_value, asked_at, answered_at
		 FROM elicitation_responses
		 WHERE id = $1 AND profile_id = $2`,
		id, profileID,
	).Scan(&r.ID, &r.ProfileID, &r.QuestionID, &r.Domain, &r.Phase, &r.Trigger,
		&r.SessionID, &r.Skipped, &answer, &factKey, &factValue,
		&r.AskedAt, &r.AnsweredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	r.Answer, r.FactKey, r.FactValue = answer.String, factKey.String, factValue.String
	return r, nil
}

func (s *ElicitationStore) Resolve(ctx context.Context, id uuid.UUID, answer, factKey, factValue string, answeredAt time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE elicitation_responses
		 SET answer = $2, fact_key = $3, fact_value = $4, answered_at = $5
		 WHERE id = $1 AND answered_at IS NULL AND NOT skipped`,
		id, answer, factKey, factValue, answeredAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ElicitationStore) MarkSkipped(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE elicitation_responses
		 SET skipped = TRUE, answered_at = $2
		 WHERE id = $1 AND answered_at IS NULL AND NOT skipped`,
		id, at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ElicitationStore) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]domain.ElicitationResponse, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, profile_id, question_id, domain, phase, trigger, session_id,
			skipped, answer, fact_key, fact_value, asked_at, answered_at
		 FROM elicitation_responses
		 WHERE profile_id = $1
		 ORDER BY asked_at DESC`,
		profileID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []domain.ElicitationResponse
	for rows.Next() {
		var r domain.ElicitationResponse
		var answer, factKey, factValue pgtype.Text
		if err := rows.Scan(&r.ID, &r.ProfileID, &r.QuestionID, &r.Domain, &r.Phase,
			&r.Trigger, &r.SessionID, &r.Skipped, &answer, &factKey,
			&factValue, &r.AskedAt, &r.AnsweredAt); err != nil {
			return nil, err
		}
		r.Answer, r.FactKey, r.FactValue = answer.String, factKey.String, factValue.String
		responses = append(responses, r)
	}
	return responses, rows.Err()
}

func (s *ElicitationStore) DeleteByProfile(ctx context.Context, profileID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM elicitation_responses WHERE profile_id = $1`,
		profileID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
