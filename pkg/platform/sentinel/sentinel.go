package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and transports return
// these (optionally wrapped) so services can translate them into coded domain
// errors without knowing which backend produced them.
//
//   - ErrNotFound: entity does not exist in the store
//   - ErrConflict: a uniqueness constraint rejected the write
//   - ErrUnavailable: the backend (database, broker) could not be reached
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
