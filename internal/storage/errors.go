package storage

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrConflict is returned when a write targets a thought version that is
// no longer current, typically because a concurrent fork retired it first.
var ErrConflict = errors.New("storage: version conflict")
