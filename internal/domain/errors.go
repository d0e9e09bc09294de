package domain

import "errors"

// ErrNotFound is returned by stores when a row does not exist. Callers
// that treat "no profile" as "unknown user" branch on it instead of
// failing.
var ErrNotFound = errors.New("not found")
