package classifier

import (
	"fmt"

	"github.com/attune-ai/attune/internal/domain"
)

// Provider constants
const (
	ProviderHeuristic = "heuristic"
	ProviderMock      = "mock"
)

var (
	_ domain.MessageClassifier = (*Heuristic)(nil)
	_ domain.MessageClassifier = (*MockClassifier)(nil)
)

// NewClassifier creates a message classifier by provider name. The
// heuristic provider is the production default; mock is for tests and
// local development.
func NewClassifier(provider string) (domain.MessageClassifier, error) {
	switch provider {
	case ProviderHeuristic, "":
		return NewHeuristic(), nil
	case ProviderMock:
		return NewMockClassifier(), nil
	default:
		return nil, fmt.Errorf("unknown classifier provider: %s", provider)
	}
}
