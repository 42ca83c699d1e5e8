package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrPersistence indicates a write that could not be confirmed; this is
	// infrastructure trouble, not a business failure, and is logged as such.
	ErrPersistence = errors.New("persistence fault")
	// ErrExternalService indicates a transient identity-provider failure.
	ErrExternalService = errors.New("external service unavailable")
)
