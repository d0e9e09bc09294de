package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attune-ai/attune/internal/domain"
)

type InsightStatsStore struct {
	db *pgxpool.Pool
}

func NewInsightStatsStore(db *pgxpool.Pool) *InsightStatsStore {
	return &InsightStatsStore{db: db}
}

// Bump folds one session's counters into the durable per-category row,
// creating it on first contact. Increments compose, so concurrent session
// closes never lose counts.
func (s *InsightStatsStore) Bump(ctx context.Context, profileID uuid.UUID, t domain.InsightType, shown, engaged int) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO insight_stats (profile_id, type, shown, engaged)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (profile_id, type) DO UPDATE SET
			shown = insight_stats.shown + EXCLUDED.shown,
			engaged = insight_stats.engaged + EXCLUDED.engaged,
			updated_at = NOW()`,
		profileID, t, shown, engaged,
	)
	return err
}

func (s *InsightStatsStore) AddRating(ctx context.Context, profileID uuid.UUID, t domain.InsightType, rating float64) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO insight_stats (profile_id, type, rating_sum, rating_count)
		 VALUES ($1, $2, $3, 1)
		 ON CONFLICT (profile_id, type) DO UPDATE SET
			rating_sum = insight_stats.rating_sum + EXCLUDED.rating_sum,
			rating_count = insight_stats.rating_count + 1,
			updated_at = NOW()`,
		profileID, t, rating,
	)
	return err
}

func (s *InsightStatsStore) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]domain.InsightCategoryStats, error) {
	rows, err := s.db.Query(ctx,
		`SELECT profile_id, type, shown, engaged, rating_sum, rating_count, updated_at
		 FROM insight_stats
		 WHERE profile_id = $1
		 ORDER BY type`,
		profileID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []domain.InsightCategoryStats
	for rows.Next() {
		var st domain.InsightCategoryStats
		if err := rows.Scan(&st.ProfileID, &st.Type, &st.Shown, &st.Engaged,
			&st.RatingSum, &st.RatingCount, &st.UpdatedAt); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (s *InsightStatsStore) DeleteByProfile(ctx context.Context, profileID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM insight_stats WHERE profile_id = $1`,
		profileID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
