package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/attune-ai/attune/internal/domain"
)

// Hand-rolled in-memory stores shared by the service tests.

type mockProfileStore struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*domain.Profile
	failGet  map[uuid.UUID]bool
}

func newMockProfileStore() *mockProfileStore {
	return &mockProfileStore{
		profiles: make(map[uuid.UUID]*domain.Profile),
		failGet:  make(map[uuid.UUID]bool),
	}
}

func (m *mockProfileStore) add(p *domain.Profile) *domain.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.profiles[p.ID] = p
	return p
}

func (m *mockProfileStore) Create(ctx context.Context, p *domain.Profile) error {
	m.add(p)
	return nil
}

func (m *mockProfileStore) GetByID(ctx context.Context, id uuid.UUID, workspaceID uuid.UUID) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet[id] {
		return nil, context.DeadlineExceeded
	}
	p, ok := m.profiles[id]
	if !ok || p.WorkspaceID != workspaceID {
		return nil, domain.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *mockProfileStore) GetByExternalID(ctx context.Context, externalID string, workspaceID uuid.UUID) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.ExternalUserID == externalID && p.WorkspaceID == workspaceID {
			clone := *p
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockProfileStore) UpdatePrivacyTier(ctx context.Context, id uuid.UUID, workspaceID uuid.UUID, tier domain.PrivacyTier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.PrivacyTier = tier
	return nil
}

func (m *mockProfileStore) RecordSessionStart(ctx context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.SessionCount++
	p.LastSessionAt = &at
	return nil
}

func (m *mockProfileStore) AddSignalCount(ctx context.Context, id uuid.UUID, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.SignalCount += delta
	return nil
}

func (m *mockProfileStore) MarkReflected(ctx context.Context, id uuid.UUID, observed *time.Time, ranAt, next time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	switch {
	case observed == nil && p.LastReflectionAt != nil:
		return false, nil
	case observed != nil && (p.LastReflectionAt == nil || !p.LastReflectionAt.Equal(*observed)):
		return false, nil
	}
	p.LastReflectionAt = &ranAt
	p.NextReflectionAt = &next
	return true, nil
}

func (m *mockProfileStore) ListReflectionCandidates(ctx context.Context, limit int) ([]domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Profile
	for _, p := range m.profiles {
		if !p.PrivacyTier.AllowsDurableSignals() {
			continue
		}
		out = append(out, *p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type mockSignalStore struct {
	mu      sync.Mutex
	signals map[uuid.UUID]*domain.Signal
	failing bool
}

func newMockSignalStore() *mockSignalStore {
	return &mockSignalStore{signals: make(map[uuid.UUID]*domain.Signal)}
}

func (m *mockSignalStore) Insert(ctx context.Context, s *domain.Signal) error {
	return m.InsertBatch(ctx, []*domain.Signal{s})
}

func (m *mockSignalStore) InsertBatch(ctx context.Context, batch []*domain.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return context.DeadlineExceeded
	}
	for _, s := range batch {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		clone := *s
		m.signals[s.ID] = &clone
	}
	return nil
}

func (m *mockSignalStore) ListUnprocessed(ctx context.Context, profileID uuid.UUID, limit int) ([]domain.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Signal
	for _, s := range m.signals {
		if s.ProfileID == profileID && !s.Processed {
			out = append(out, *s)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *mockSignalStore) CountUnprocessed(ctx context.Context, profileID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, s := range m.signals {
		if s.ProfileID == profileID && !s.Processed {
			count++
		}
	}
	return count, nil
}

func (m *mockSignalStore) MarkProcessed(ctx context.Context, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if s, ok := m.signals[id]; ok {
			s.Processed = true
		}
	}
	return nil
}

func (m *mockSignalStore) DeleteByProfile(ctx context.Context, profileID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.signals {
		if s.ProfileID == profileID {
			delete(m.signals, id)
			n++
		}
	}
	return n, nil
}

type mockDimensionStore struct {
	mu      sync.Mutex
	scores  map[uuid.UUID]map[domain.BeliefDomain]*domain.DimensionScore
	upserts int
}

func newMockDimensionStore() *mockDimensionStore {
	return &mockDimensionStore{scores: make(map[uuid.UUID]map[domain.BeliefDomain]*domain.DimensionScore)}
}

func (m *mockDimensionStore) Upsert(ctx context.Context, s *domain.DimensionScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	byDomain, ok := m.scores[s.ProfileID]
	if !ok {
		byDomain = make(map[domain.BeliefDomain]*domain.DimensionScore)
		m.scores[s.ProfileID] = byDomain
	}
	clone := *s
	byDomain[s.Domain] = &clone
	return nil
}

func (m *mockDimensionStore) Get(ctx context.Context, profileID uuid.UUID, d domain.BeliefDomain) (*domain.DimensionScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scores[profileID][d]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *s
	return &clone, nil
}

func (m *mockDimensionStore) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]domain.DimensionScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.DimensionScore
	for _, s := range m.scores[profileID] {
		out = append(out, *s)
	}
	return out, nil
}

func (m *mockDimensionStore) DeleteByProfile(ctx context.Context, profileID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.scores[profileID]))
	delete(m.scores, profileID)
	return n, nil
}

type mockElicitationStore struct {
	mu        sync.Mutex
	responses map[uuid.UUID]*domain.ElicitationResponse
}

func newMockElicitationStore() *mockElicitationStore {
	return &mockElicitationStore{responses: make(map[uuid.UUID]*domain.ElicitationResponse)}
}

func (m *mockElicitationStore) Create(ctx context.Context, r *domain.ElicitationResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.responses {
		if existing.ProfileID == r.ProfileID && existing.QuestionID == r.QuestionID {
			return context.Canceled // stand-in for a unique violation
		}
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	clone := *r
	m.responses[r.ID] = &clone
	return nil
}

func (m *mockElicitationStore) GetByID(ctx context.Context, id uuid.UUID, profileID uuid.UUID) (*domain.ElicitationResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.responses[id]
	if !ok || r.ProfileID != profileID {
		return nil, domain.ErrNotFound
	}
	clone := *r
	return &clone, nil
}

func (m *mockElicitationStore) Resolve(ctx context.Context, id uuid.UUID, answer, factKey, factValue string, answeredAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.responses[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Answer = answer
	r.FactKey = factKey
	r.FactValue = factValue
	r.AnsweredAt = &answeredAt
	return nil
}

func (m *mockElicitationStore) MarkSkipped(ctx context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.responses[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Skipped = true
	r.AnsweredAt = &at
	return nil
}

func (m *mockElicitationStore) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]domain.ElicitationResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ElicitationResponse
	for _, r := range m.responses {
		if r.ProfileID == profileID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockElicitationStore) DeleteByProfile(ctx context.Context, profileID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, r := range m.responses {
		if r.ProfileID == profileID {
			delete(m.responses, id)
			n++
		}
	}
	return n, nil
}

type mockInsightStatsStore struct {
	mu    sync.Mutex
	stats map[uuid.UUID]map[domain.InsightType]*domain.InsightCategoryStats
}

func newMockInsightStatsStore() *mockInsightStatsStore {
	return &mockInsightStatsStore{stats: make(map[uuid.UUID]map[domain.InsightType]*domain.InsightCategoryStats)}
}

func (m *mockInsightStatsStore) row(profileID uuid.UUID, t domain.InsightType) *domain.InsightCategoryStats {
	byType, ok := m.stats[profileID]
	if !ok {
		byType = make(map[domain.InsightType]*domain.InsightCategoryStats)
		m.stats[profileID] = byType
	}
	s, ok := byType[t]
	if !ok {
		s = &domain.InsightCategoryStats{ProfileID: profileID, Type: t}
		byType[t] = s
	}
	return s
}

func (m *mockInsightStatsStore) Bump(ctx context.Context, profileID uuid.UUID, t domain.InsightType, shown, engaged int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.row(profileID, t)
	s.Shown += shown
	s.Engaged += engaged
	return nil
}

func (m *mockInsightStatsStore) AddRating(ctx context.Context, profileID uuid.UUID, t domain.InsightType, rating float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.row(profileID, t)
	s.RatingSum += rating
	s.RatingCount++
	return nil
}

func (m *mockInsightStatsStore) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]domain.InsightCategoryStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.InsightCategoryStats
	for _, s := range m.stats[profileID] {
		out = append(out, *s)
	}
	return out, nil
}

func (m *mockInsightStatsStore) DeleteByProfile(ctx context.Context, profileID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.stats[profileID]))
	delete(m.stats, profileID)
	return n, nil
}
