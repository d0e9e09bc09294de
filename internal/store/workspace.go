package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attune-ai/attune/internal/domain"
)

type WorkspaceStore struct {
	db *pgxpool.Pool
}

func NewWorkspaceStore(db *pgxpool.Pool) *WorkspaceStore {
	return &WorkspaceStore{db: db}
}

func (s *WorkspaceStore) Create(ctx context.Context, w *domain.Workspace) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO workspaces (name, api_key_hash) VALUES ($1, $2)
		 RETURNING id, created_at, updated_at`,
		w.Name, w.APIKeyHash,
	).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
}

func (s *WorkspaceStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Workspace, error) {
	w := &domain.Workspace{}
	err := s.db.QueryRow(ctx,
		`SELECT id, name, api_key_hash, created_at, updated_at
		 FROM workspaces WHERE id = $1`,
		id,
	).Scan(&w.ID, &w.Name, &w.APIKeyHash, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return w, nil
}

func (s *WorkspaceStore) GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*domain.Workspace, error) {
	w := &domain.Workspace{}
	err := s.db.QueryRow(ctx,
		`SELECT id, name, api_key_hash, created_at, updated_at
		 FROM workspaces WHERE api_key_hash = $1`,
		apiKeyHash,
	).Scan(&w.ID, &w.Name, &w.APIKeyHash, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return w, nil
}
