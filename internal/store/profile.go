package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attune-ai/attune/internal/domain"
)

type ProfileStore struct {
	db *pgxpool.Pool
}

func NewProfileStore(db *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{db: db}
}

const profileColumns = `id, workspace_id, external_user_id, privacy_tier,
	session_count, signal_count, last_reflection_at, next_reflection_at,
	last_session_at, created_at, updated_at`

func scanProfile(row pgx.Row, p *domain.Profile) error {
	return row.Scan(&p.ID, &p.WorkspaceID, &p.ExternalUserID, &p.PrivacyTier,
		&p.SessionCount, &p.SignalCount, &p.LastReflectionAt, &p.NextReflectionAt,
		&p.LastSessionAt, &p.CreatedAt, &p.UpdatedAt)
}

func (s *ProfileStore) Create(ctx context.Context, p *domain.Profile) error {
	if p.PrivacyTier == "" {
		p.PrivacyTier = domain.PrivacyTierB
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO profiles (workspace_id, external_user_id, privacy_tier)
		 VALUES ($1, $2, $3)
		 RETURNING id, session_count, signal_count, created_at, updated_at`,
		p.WorkspaceID, p.ExternalUserID, p.PrivacyTier,
	).Scan(&p.ID, &p.SessionCount, &p.SignalCount, &p.CreatedAt, &p.UpdatedAt)
}

func (s *ProfileStore) GetByID(ctx context.Context, id uuid.UUID, workspaceID uuid.UUID) (*domain.Profile, error) {
	p := &domain.Profile{}
	err := scanProfile(s.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1 AND workspace_id = $2`,
		id, workspaceID,
	), p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *ProfileStore) GetByExternalID(ctx context.Context, externalID string, workspaceID uuid.UUID) (*domain.Profile, error) {
	p := &domain.Profile{}
	err := scanProfile(s.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE external_user_id = $1 AND workspace_id = $2`,
		externalID, workspaceID,
	), p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *ProfileStore) UpdatePrivacyTier(ctx context.Context, id uuid.UUID, workspaceID uuid.UUID, tier domain.PrivacyTier) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE profiles SET privacy_tier = $3, updated_at = NOW()
		 WHERE id = $1 AND workspace_id = $2`,
		id, workspaceID, tier,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ProfileStore) RecordSessionStart(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE profiles
		 SET session_count = session_count + 1, last_session_at = $2, updated_at = NOW()
		 WHERE id = $1`,
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

func (s *ProfileStore) AddSignalCount(ctx context.Context, id uuid.UUID, delta int) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE profiles SET signal_count = signal_count + $2, updated_at = NOW()
		 WHERE id = $1`,
		id, delta,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkReflected is an optimistic compare-and-set on last_reflection_at.
// IS NOT DISTINCT FROM makes the null case (first reflection) compare the
// same way as a timestamp match.
func (s *ProfileStore) MarkReflected(ctx context.Context, id uuid.UUID, observed *time.Time, ranAt, next time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE profiles
		 SET last_reflection_at = $3, next_reflection_at = $4, updated_at = NOW()
		 WHERE id = $1 AND last_reflection_at IS NOT DISTINCT FROM $2`,
		id, observed, ranAt, next,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListReflectionCandidates pre-filters the fleet sweep with the same
// admission rules the reflection service applies, so a sweep spends its
// limit on profiles that will actually reflect. The thresholds here
// mirror the service's scheduling constants; eligibility is re-checked
// per profile before any pass runs, so drift costs a wasted slot, not
// correctness.
func (s *ProfileStore) ListReflectionCandidates(ctx context.Context, limit int) ([]domain.Profile, error) {
	rows, err := s.db.Query(ctx,
		`SELECT p.id, p.workspace_id, p.external_user_id, p.privacy_tier,
			p.session_count, p.signal_count, p.last_reflection_at, p.next_reflection_at,
			p.last_session_at, p.created_at, p.updated_at, pending.n
		 FROM profiles p,
		 LATERAL (
			SELECT COUNT(*) AS n FROM signals
			WHERE signals.profile_id = p.id AND NOT signals.processed
		 ) pending
		 WHERE p.privacy_tier IN ('B', 'C')
		   AND (
			pending.n >= 10
			OR p.next_reflection_at <= NOW()
			OR (p.last_reflection_at < NOW() - INTERVAL '24 hours' AND pending.n >= 1)
			OR (p.last_reflection_at IS NULL AND pending.n >= 3)
		   )
		 ORDER BY pending.n DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		var p domain.Profile
		var pending int
		if err := rows.Scan(&p.ID, &p.WorkspaceID, &p.ExternalUserID, &p.PrivacyTier,
			&p.SessionCount, &p.SignalCount, &p.LastReflectionAt, &p.NextReflectionAt,
			&p.LastSessionAt, &p.CreatedAt, &p.UpdatedAt, &pending); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}
