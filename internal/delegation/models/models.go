// Package models holds the delegation registry's record types.
package models

// DelegateData is the consent state for one (owner, delegate) pair. The
// delegate may act for the owner only while both flags are true. The zero
// value means "no relationship" and is what stores return for unknown pairs.
type DelegateData struct {
	HasAssigned bool `json:"has_assigned"`
	HasAccepted bool `json:"has_accepted"`
}

// Active reports whether the delegate is currently authorized to act for the
// owner.
func (d DelegateData) Active() bool {
	return d.HasAssigned && d.HasAccepted
}
