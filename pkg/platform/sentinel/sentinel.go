package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (wrapped with context)
// and the registration service turns them into coded domain errors.
//
//   - ErrAlreadyUsed: a unique key (the registration email) is taken
//   - ErrNotFound: the requested row does not exist
//   - ErrUnavailable: the backing store could not be reached
//
// Field validation failures never travel as sentinels; see models.FieldErrors.
var (
	ErrNotFound    = errors.New("not found")
	ErrAlreadyUsed = errors.New("already used")
	ErrUnavailable = errors.New("unavailable")
)
