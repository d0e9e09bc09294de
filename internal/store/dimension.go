package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attune-ai/attune/internal/domain"
)

type DimensionStore struct {
	db *pgxpool.Pool
}

func NewDimensionStore(db *pgxpool.Pool) *DimensionStore {
	return &DimensionStore{db: db}
}

// Upsert writes one belief keyed on (profile_id, domain). The value is
// stored as JSONB and restored through the domain decoder, so the concrete
// type always matches the domain column.
func (s *DimensionStore) Upsert(ctx context.Context, score *domain.DimensionScore) error {
	value, err := json.Marshal(score.Value)
	if err != nil {
		return fmt.Errorf("encode %s value: %w", score.Domain, err)
	}
	sources := make([]string, len(score.Sources))
	for i, src := range score.Sources {
		sources[i] = string(src)
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO dimension_scores (profile_id, domain, value, confidence, decay_rate, sources, last_updated)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (profile_id, domain) DO UPDATE SET
			value = EXCLUDED.value,
			confidence = EXCLUDED.confidence,
			decay_rate = EXCLUDED.decay_rate,
			sources = EXCLUDED.sources,
			last_updated = EXCLUDED.last_updated
		 RETURNING id, created_at`,
		score.ProfileID, score.Domain, value, score.Confidence,
		score.DecayRate, sources, score.LastUpdated,
	).Scan(&score.ID, &score.CreatedAt)
}

func (s *DimensionStore) Get(ctx context.Context, profileID uuid.UUID, d domain.BeliefDomain) (*domain.DimensionScore, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, profile_id, domain, value, confidence, decay_rate, sources, last_updated, created_at
		 FROM dimension_scores
		 WHERE profile_id = $1 AND domain = $2`,
		profileID, d,
	)
	score, err := scanDimensionScore(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return score, nil
}

func (s *DimensionStore) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]domain.DimensionScore, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, profile_id, domain, value, confidence, decay_rate, sources, last_updated, created_at
		 FROM dimension_scores
		 WHERE profile_id = $1
		 ORDER BY domain`,
		profileID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []domain.DimensionScore
	for rows.Next() {
		score, err := scanDimensionScore(rows)
		if err != nil {
			return nil, err
		}
		scores = append(scores, *score)
	}
	return scores, rows.Err()
}

func (s *DimensionStore) DeleteByProfile(ctx context.Context, profileID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM dimension_scores WHERE profile_id = $1`,
		profileID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanDimensionScore(row pgx.Row) (*domain.DimensionScore, error) {
	score := &domain.DimensionScore{}
	var value []byte
	var sources []string
	if err := row.Scan(&score.ID, &score.ProfileID, &score.Domain, &value,
		&score.Confidence, &score.DecayRate, &sources, &score.LastUpdated,
		&score.CreatedAt); err != nil {
		return nil, err
	}
	decoded, err := domain.DecodeDimensionValue(score.Domain, value)
	if err != nil {
		return nil, err
	}
	score.Value = decoded
	score.Sources = make([]domain.EvidenceSource, len(sources))
	for i, src := range sources {
		score.Sources[i] = domain.EvidenceSource(src)
	}
	return score, nil
}
