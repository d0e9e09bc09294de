package store

import "github.com/attune-ai/attune/internal/domain"

// ErrNotFound is returned when a row does not exist or belongs to another
// workspace. It aliases the domain sentinel so services can test with
// errors.Is without importing this package.
var ErrNotFound = domain.ErrNotFound
