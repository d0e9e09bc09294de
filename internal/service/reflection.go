package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	rcron "github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/attune-ai/attune/internal/domain"
)

// Reflection scheduling constants
const (
	// ReflectionSignalThreshold makes a profile eligible on backlog alone.
	ReflectionSignalThreshold = 10
	// ReflectionMaxInterval is how stale a profile may go with pending
	// signals before time alone makes it eligible.
	ReflectionMaxInterval = 24 * time.Hour
	// ReflectionBootstrapSignals is the lower bar for a profile that has
	// never reflected.
	ReflectionBootstrapSignals = 3
	// ReflectionBatchSize caps how many signals one pass consumes.
	ReflectionBatchSize = 200

	// DefaultSweepLimit is the fleet sweep's profile cap per run.
	DefaultSweepLimit = 100
	// DefaultSweepConcurrency bounds concurrent per-profile reflections
	// in a sweep.
	DefaultSweepConcurrency = 8
	// DefaultSweepSchedule is the background sweep cadence.
	DefaultSweepSchedule = "@every 30m"

	sweepRunTimeout = 5 * time.Minute
)

// ReflectionState is where a profile sits in the reflection cycle.
type ReflectionState string

const (
	ReflectionIdle     ReflectionState = "idle"
	ReflectionEligible ReflectionState = "eligible"
	ReflectionRunning  ReflectionState = "running"
)

// ElicitationGap is a domain whose confidence fell below the acting
// threshold during a pass, ranked by how weak it is.
type ElicitationGap struct {
	Domain     domain.BeliefDomain `json:"domain"`
	Confidence float64             `json:"confidence"`
	Priority   float64             `json:"priority"`
}

// ReflectionOutcome reports one reflection pass over one profile.
type ReflectionOutcome struct {
	ProfileID        uuid.UUID             `json:"profile_id"`
	Ran              bool                  `json:"ran"`
	Reason           string                `json:"reason,omitempty"`
	SignalsProcessed int                   `json:"signals_processed"`
	DomainsUpdated   []domain.BeliefDomain `json:"domains_updated,omitempty"`
	DomainsDecayed   int                   `json:"domains_decayed"`
	Gaps             []ElicitationGap      `json:"gaps,omitempty"`
	RanAt            time.Time             `json:"ran_at"`
}

// SweepResult reports a fleet-level batch reflection run.
type SweepResult struct {
	Processed int      `json:"processed"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// ReflectionService reconciles unprocessed signals into dimension scores.
// Per profile it is mutually exclusive (in-process via singleflight, across
// processes via the optimistic last-reflection guard); across profiles it
// runs freely concurrent.
type ReflectionService struct {
	profiles   domain.ProfileStore
	signals    domain.SignalStore
	dimensions domain.DimensionStore
	logger     *zap.Logger

	group   singleflight.Group
	running sync.Map // uuid.UUID -> struct{}

	cron *rcron.Cron
}

func NewReflectionService(profiles domain.ProfileStore, signals domain.SignalStore, dimensions domain.DimensionStore, logger *zap.Logger) *ReflectionService {
	return &ReflectionService{
		profiles:   profiles,
		signals:    signals,
		dimensions: dimensions,
		logger:     logger,
	}
}

// Eligible applies the reflection admission rules to a profile. The
// returned reason names the rule that admitted or refused it.
func (s *ReflectionService) Eligible(p *domain.Profile, unprocessed int, now time.Time) (bool, string) {
	if !p.PrivacyTier.AllowsDurableSignals() {
		return false, "privacy tier forbids durable inference"
	}
	if unprocessed >= ReflectionSignalThreshold {
		return true, "signal backlog"
	}
	if p.NextReflectionAt != nil && !now.Before(*p.NextReflectionAt) {
		return true, "scheduled reflection due"
	}
	if p.LastReflectionAt != nil && now.Sub(*p.LastReflectionAt) > ReflectionMaxInterval && unprocessed >= 1 {
		return true, "stale with pending signals"
	}
	if p.LastReflectionAt == nil && unprocessed >= ReflectionBootstrapSignals {
		return true, "first reflection bootstrap"
	}
	return false, "not enough pending evidence"
}

// State reports where a profile currently sits in the cycle.
func (s *ReflectionService) State(ctx context.Context, p *domain.Profile, now time.Time) (ReflectionState, error) {
	if _, busy := s.running.Load(p.ID); busy {
		return ReflectionRunning, nil
	}
	unprocessed, err := s.signals.CountUnprocessed(ctx, p.ID)
	if err != nil {
		return ReflectionIdle, fmt.Errorf("count unprocessed signals: %w", err)
	}
	if ok, _ := s.Eligible(p, unprocessed, now); ok {
		return ReflectionEligible, nil
	}
	return ReflectionIdle, nil
}

// Run evaluates eligibility and, if admitted (or forced), performs one
// reflection pass. Concurrent calls for the same profile share a single
// execution.
func (s *ReflectionService) Run(ctx context.Context, profileID, workspaceID uuid.UUID, force bool) (*ReflectionOutcome, error) {
	v, err, _ := s.group.Do(profileID.String(), func() (any, error) {
		s.running.Store(profileID, struct{}{})
		defer s.running.Delete(profileID)
		return s.runOne(ctx, profileID, workspaceID, force)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ReflectionOutcome), nil
}

func (s *ReflectionService) runOne(ctx context.Context, profileID, workspaceID uuid.UUID, force bool) (*ReflectionOutcome, error) {
	now := time.Now().UTC()
	outcome := &ReflectionOutcome{ProfileID: profileID, RanAt: now}

	profile, err := s.profiles.GetByID(ctx, profileID, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	unprocessed, err := s.signals.CountUnprocessed(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("count unprocessed signals: %w", err)
	}

	eligible, reason := s.Eligible(profile, unprocessed, now)
	if !profile.PrivacyTier.AllowsDurableSignals() {
		// Force never overrides privacy.
		outcome.Reason = reason
		return outcome, nil
	}
	if !eligible && !force {
		outcome.Reason = reason
		return outcome, nil
	}
	if force && !eligible {
		reason = "forced"
	}

	batch, err := s.signals.ListUnprocessed(ctx, profileID, ReflectionBatchSize)
	if err != nil {
		return nil, fmt.Errorf("load signal batch: %w", err)
	}

	scores, err := s.dimensions.ListByProfile(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("load dimension scores: %w", err)
	}
	existing := make(map[domain.BeliefDomain]*domain.DimensionScore, len(scores))
	for i := range scores {
		existing[scores[i].Domain] = &scores[i]
	}

	inferred := inferAll(batch, profile.SessionCount, profile.PrivacyTier, existing, now)

	for _, d := range domain.AllBeliefDomains() {
		belief := inferred[d]
		prev := existing[d]

		if belief.Value == nil {
			// Nothing new for this domain: decay what is already there.
			if prev != nil {
				if err := s.rebaseDecay(ctx, prev, now); err != nil {
					return nil, fmt.Errorf("decay %s: %w", d, err)
				}
				outcome.DomainsDecayed++
			}
			continue
		}

		if prev != nil && belief.Confidence <= prev.EffectiveConfidence(now) {
			// The standing belief is stronger than this batch; keep it
			// and only account for staleness.
			if err := s.rebaseDecay(ctx, prev, now); err != nil {
				return nil, fmt.Errorf("decay %s: %w", d, err)
			}
			outcome.DomainsDecayed++
			continue
		}

		score := &domain.DimensionScore{
			ProfileID:   profileID,
			Domain:      d,
			Value:       belief.Value,
			Confidence:  belief.Confidence,
			DecayRate:   d.Tier().DecayRate(),
			Sources:     belief.Sources,
			LastUpdated: now,
		}
		if prev != nil {
			score.ID = prev.ID
			score.CreatedAt = prev.CreatedAt
		}
		if err := s.dimensions.Upsert(ctx, score); err != nil {
			return nil, fmt.Errorf("persist %s: %w", d, err)
		}
		existing[d] = score
		outcome.DomainsUpdated = append(outcome.DomainsUpdated, d)
	}

	if len(batch) > 0 {
		ids := make([]uuid.UUID, len(batch))
		for i, sig := range batch {
			ids[i] = sig.ID
		}
		if err := s.signals.MarkProcessed(ctx, ids); err != nil {
			return nil, fmt.Errorf("mark signals processed: %w", err)
		}
	}

	next := now.Add(ReflectionMaxInterval)
	won, err := s.profiles.MarkReflected(ctx, profileID, profile.LastReflectionAt, now, next)
	if err != nil {
		return nil, fmt.Errorf("mark reflected: %w", err)
	}
	if !won {
		// Another runner finished in between. Inference over the same
		// signal set is idempotent, so the overlap is harmless.
		s.logger.Debug("lost reflection bookkeeping race",
			zap.String("profile_id", profileID.String()))
	}

	outcome.Ran = true
	outcome.Reason = reason
	outcome.SignalsProcessed = len(batch)
	outcome.Gaps = collectGaps(existing, now)

	s.logger.Info("reflection pass complete",
		zap.String("profile_id", profileID.String()),
		zap.Int("signals", outcome.SignalsProcessed),
		zap.Int("domains_updated", len(outcome.DomainsUpdated)),
		zap.Int("domains_decayed", outcome.DomainsDecayed),
		zap.Int("gaps", len(outcome.Gaps)))

	return outcome, nil
}

// rebaseDecay rewrites a score's stored confidence at its decayed value
// with a fresh timestamp. Exponential decay composes, so rebasing changes
// nothing about the curve.
func (s *ReflectionService) rebaseDecay(ctx context.Context, score *domain.DimensionScore, now time.Time) error {
	score.Confidence = score.EffectiveConfidence(now)
	score.LastUpdated = now
	return s.dimensions.Upsert(ctx, score)
}

func collectGaps(scores map[domain.BeliefDomain]*domain.DimensionScore, now time.Time) []ElicitationGap {
	var gaps []ElicitationGap
	for _, d := range domain.AllBeliefDomains() {
		confidence := 0.0
		if score, ok := scores[d]; ok {
			confidence = score.EffectiveConfidence(now)
		}
		if confidence < domain.ActWithUncertaintyThreshold {
			gaps = append(gaps, ElicitationGap{
				Domain:     d,
				Confidence: confidence,
				Priority:   GapPriority(confidence),
			})
		}
	}
	sort.SliceStable(gaps, func(i, j int) bool { return gaps[i].Priority > gaps[j].Priority })
	return gaps
}

// Sweep runs reflection across eligible profiles, bounded by limit and
// concurrency. One profile's failure never aborts the rest; errors come
// back as strings on the result.
func (s *ReflectionService) Sweep(ctx context.Context, limit int) (*SweepResult, error) {
	if limit <= 0 {
		limit = DefaultSweepLimit
	}
	candidates, err := s.profiles.ListReflectionCandidates(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list reflection candidates: %w", err)
	}

	result := &SweepResult{}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultSweepConcurrency)
	for _, candidate := range candidates {
		candidate := candidate
		g.Go(func() error {
			outcome, err := s.Run(ctx, candidate.ID, candidate.WorkspaceID, false)
			mu.Lock()
			defer mu.Unlock()
			result.Processed++
			if err != nil {
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", candidate.ID, err))
				return nil
			}
			if outcome.Ran {
				result.Succeeded++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	s.logger.Info("reflection sweep complete",
		zap.Int("processed", result.Processed),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed))

	return result, nil
}

// StartSweeper schedules periodic sweeps on a cron expression. Use
// StopSweeper on shutdown.
func (s *ReflectionService) StartSweeper(schedule string, limit int) error {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	c := rcron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepRunTimeout)
		defer cancel()
		if _, err := s.Sweep(ctx, limit); err != nil {
			s.logger.Error("scheduled reflection sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reflection sweep: %w", err)
	}
	s.cron = c
	c.Start()
	s.logger.Info("reflection sweeper started", zap.String("schedule", schedule), zap.Int("limit", limit))
	return nil
}

// StopSweeper halts the scheduler and waits for an in-flight sweep.
func (s *ReflectionService) StopSweeper() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("reflection sweeper stopped")
}
