package service

import (
	"errors"

	"github.com/attune-ai/attune/internal/domain"
)

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
