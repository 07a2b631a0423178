package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so registry services can translate them into domain errors with
// the right code.
//
// These represent factual states about stored records, not validation
// failures; validation uses pkg/domain-errors directly.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)
