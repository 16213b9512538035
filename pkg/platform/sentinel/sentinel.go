package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// and the insured service translates them into domain error codes.
//
//   - ErrNotFound: no record with the requested identity
//   - ErrAlreadyExists: insert hit an identity that is already stored
//   - ErrConflict: stored version differs from the writer's expected version
//   - ErrUnavailable: backing database or cache could not be reached
//   - ErrInvalidData: the database rejected a value the caller supplied
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrConflict      = errors.New("version conflict")
	ErrUnavailable   = errors.New("storage unavailable")
	ErrInvalidData   = errors.New("invalid data")
)
