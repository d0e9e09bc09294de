package classifier

import (
	"context"

	"github.com/attune-ai/attune/internal/domain"
)

// MockClassifier is a configurable classifier for testing. Set the
// response fields to control what each method returns.
type MockClassifier struct {
	ClassifyResponse []domain.Signal
	ClassifyError    error
	TopicsResponse   []string
	TopicsError      error

	// Call tracking for assertions
	ClassifyCalls []domain.UserMessage
	TopicsCalls   []string
}

func NewMockClassifier() *MockClassifier {
	return &MockClassifier{}
}

func (m *MockClassifier) Classify(_ context.Context, msg domain.UserMessage) ([]domain.Signal, error) {
	m.ClassifyCalls = append(m.ClassifyCalls, msg)
	if m.ClassifyError != nil {
		return nil, m.ClassifyError
	}
	if m.ClassifyResponse != nil {
		return m.ClassifyResponse, nil
	}
	// Default to the minimal style signal so callers always have data.
	return []domain.Signal{{
		Type:     domain.SignalMessageStyle,
		Category: domain.CategoryStyle,
		Strength: 0.25,
		Payload:  domain.SignalPayload{WordCount: len(msg.Text), Tone: domain.ToneNeutral},
	}}, nil
}

func (m *MockClassifier) Topics(_ context.Context, text string) ([]string, error) {
	m.TopicsCalls = append(m.TopicsCalls, text)
	if m.TopicsError != nil {
		return nil, m.TopicsError
	}
	return m.TopicsResponse, nil
}
