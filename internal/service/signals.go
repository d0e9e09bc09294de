package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/attune-ai/attune/internal/domain"
)

// AskedQuestion is the zero-or-one elicitation question the pipeline may
// append to a response.
type AskedQuestion struct {
	ResponseID uuid.UUID                 `json:"response_id"`
	QuestionID string                    `json:"question_id"`
	Prompt     string                    `json:"prompt"`
	Domain     domain.BeliefDomain       `json:"domain"`
	Trigger    domain.ElicitationTrigger `json:"trigger"`
}

// IngestResult is what one user message produced: how many signals came
// out, whether a reflection pass fired, and an optional question to
// append. Everything here is best-effort telemetry for the chat pipeline,
// never a reason to fail the user's answer.
type IngestResult struct {
	ProfileKnown        bool           `json:"profile_known"`
	SignalsExtracted    int            `json:"signals_extracted"`
	SignalsStored       int            `json:"signals_stored"`
	Topics              []string       `json:"topics,omitempty"`
	ReflectionTriggered bool           `json:"reflection_triggered"`
	Question            *AskedQuestion `json:"question,omitempty"`
}

// SignalService runs the per-message leg of the pipeline: classify the
// text, persist what privacy allows, and lazily evaluate the downstream
// triggers (reflection eligibility, elicitation pacing) that hang off
// message arrival.
type SignalService struct {
	profiles    domain.ProfileStore
	signals     domain.SignalStore
	classifier  domain.MessageClassifier
	reflection  *ReflectionService
	elicitation *ElicitationService
	logger      *zap.Logger
}

func NewSignalService(profiles domain.ProfileStore, signals domain.SignalStore, classifier domain.MessageClassifier, reflection *ReflectionService, elicitation *ElicitationService, logger *zap.Logger) *SignalService {
	return &SignalService{
		profiles:    profiles,
		signals:     signals,
		classifier:  classifier,
		reflection:  reflection,
		elicitation: elicitation,
		logger:      logger,
	}
}

// Ingest processes one user message for a profile. An unknown profile is
// not an error: the message is classified (extraction is pure) and the
// result reports nothing stored.
func (s *SignalService) Ingest(ctx context.Context, workspaceID, profileID uuid.UUID, msg domain.UserMessage) (*IngestResult, error) {
	result := &IngestResult{}

	extracted, err := s.classifier.Classify(ctx, msg)
	if err != nil {
		// Extraction never blocks the pipeline; a failing classifier
		// degrades to zero pattern signals, not an error.
		s.logger.Warn("classifier failed, continuing without signals", zap.Error(err))
		extracted = nil
	}
	result.SignalsExtracted = len(extracted)
	if topics, err := s.classifier.Topics(ctx, msg.Text); err == nil {
		result.Topics = topics
	}

	profile, err := s.profiles.GetByID(ctx, profileID, workspaceID)
	if err != nil {
		if isNotFound(err) {
			return result, nil
		}
		return nil, err
	}
	result.ProfileKnown = true

	if profile.PrivacyTier.AllowsDurableSignals() && len(extracted) > 0 {
		now := time.Now().UTC()
		batch := make([]*domain.Signal, len(extracted))
		for i := range extracted {
			sig := extracted[i]
			sig.ID = uuid.New()
			sig.ProfileID = profileID
			sig.WorkspaceID = workspaceID
			sig.CreatedAt = now
			batch[i] = &sig
		}
		if err := s.signals.InsertBatch(ctx, batch); err != nil {
			// Lost signals are lost evidence, nothing more.
			s.logger.Warn("signal batch not persisted",
				zap.String("profile_id", profileID.String()), zap.Error(err))
		} else {
			result.SignalsStored = len(batch)
			if err := s.profiles.AddSignalCount(ctx, profileID, len(batch)); err != nil {
				s.logger.Warn("signal counter not bumped", zap.Error(err))
			}
		}
	}

	result.ReflectionTriggered = s.maybeReflect(ctx, profile)
	result.Question = s.maybeAsk(ctx, profile, msg.SessionID)

	return result, nil
}

// maybeReflect evaluates reflection eligibility at this trigger point and
// runs a pass inline when admitted. Failures are logged, never surfaced.
func (s *SignalService) maybeReflect(ctx context.Context, profile *domain.Profile) bool {
	outcome, err := s.reflection.Run(ctx, profile.ID, profile.WorkspaceID, false)
	if err != nil {
		s.logger.Warn("reflection failed at message trigger",
			zap.String("profile_id", profile.ID.String()), zap.Error(err))
		return false
	}
	return outcome.Ran
}

// maybeAsk consults the elicitation selector and, when it says yes,
// commits the ask so pacing holds across requests.
func (s *SignalService) maybeAsk(ctx context.Context, profile *domain.Profile, sessionID *uuid.UUID) *AskedQuestion {
	decision, err := s.elicitation.ShouldAsk(ctx, profile, sessionID)
	if err != nil {
		s.logger.Warn("elicitation selector failed",
			zap.String("profile_id", profile.ID.String()), zap.Error(err))
		return nil
	}
	if !decision.Ask {
		return nil
	}
	response, err := s.elicitation.MarkAsked(ctx, profile, decision.Question, sessionID, decision.Trigger)
	if err != nil {
		s.logger.Warn("question not recorded, withholding it",
			zap.String("question_id", decision.Question.ID), zap.Error(err))
		return nil
	}
	return &AskedQuestion{
		ResponseID: response.ID,
		QuestionID: decision.Question.ID,
		Prompt:     decision.Question.Prompt,
		Domain:     decision.Question.Domain,
		Trigger:    decision.Trigger,
	}
}
