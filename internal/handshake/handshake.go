// Package handshake implements the bilateral consent record shared by the
// delegation and team/role registries.
//
// A relationship is active only when the granting side has assigned it and
// the receiving side has accepted it. The two registries differ only in what
// acceptance means on assignment: delegation leaves acceptance untouched when
// assigning (the delegate must opt in separately), while team roles couple
// acceptance to assignment in the same call.
package handshake

// Record is the two-flag consent state for one (grantor, grantee) pair.
// The zero value means "no relationship".
type Record struct {
	HasAssigned bool
	HasAccepted bool
}

// Active reports whether both sides have consented.
func (r Record) Active() bool {
	return r.HasAssigned && r.HasAccepted
}

// AssignMode selects what happens to the acceptance flag when assignment
// flips on.
type AssignMode int

const (
	// KeepAccept leaves the acceptance flag untouched on assignment; the
	// grantee consents through a separate request toggle.
	KeepAccept AssignMode = iota

	// CoupleAccept flips acceptance together with assignment, so one call
	// both grants and activates (or fully removes) the relationship.
	CoupleAccept
)

// Transition describes the assignment-count effect of a toggle.
type Transition int

const (
	// NoChange means the assignment flag did not transition.
	NoChange Transition = iota

	// Assigned means hasAssigned went false -> true (count increments).
	Assigned

	// Unassigned means hasAssigned went true -> false (count decrements).
	Unassigned
)

// ToggleAssign flips the assignment flag. Dropping an assignment always
// clears acceptance in the same step so no stale consent survives a
// re-assignment.
func ToggleAssign(r Record, mode AssignMode) (Record, Transition) {
	if r.HasAssigned {
		return Record{}, Unassigned
	}
	next := Record{HasAssigned: true, HasAccepted: r.HasAccepted}
	if mode == CoupleAccept {
		next.HasAccepted = true
	}
	return next, Assigned
}

// ToggleAccept flips the acceptance flag only. Assignment state and counts
// are unaffected.
func ToggleAccept(r Record) Record {
	r.HasAccepted = !r.HasAccepted
	return r
}

// ForceAccept returns the record with both flags set, used when a higher
// authority applies a change that does not require the grantee's consent.
func ForceAccept(r Record) (Record, Transition) {
	transition := NoChange
	if !r.HasAssigned {
		transition = Assigned
	}
	return Record{HasAssigned: true, HasAccepted: true}, transition
}
