package handshake

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToggleAssign(t *testing.T) {
	t.Run("assigning keeps prior acceptance in KeepAccept mode", func(t *testing.T) {
		rec, transition := ToggleAssign(Record{HasAccepted: true}, KeepAccept)
		assert.Equal(t, Assigned, transition)
		assert.True(t, rec.HasAssigned)
		assert.True(t, rec.HasAccepted)
		assert.True(t, rec.Active())
	})

	t.Run("assigning does not fabricate acceptance in KeepAccept mode", func(t *testing.T) {
		rec, transition := ToggleAssign(Record{}, KeepAccept)
		assert.Equal(t, Assigned, transition)
		assert.True(t, rec.HasAssigned)
		assert.False(t, rec.HasAccepted)
		assert.False(t, rec.Active())
	})

	t.Run("assigning couples acceptance in CoupleAccept mode", func(t *testing.T) {
		rec, transition := ToggleAssign(Record{}, CoupleAccept)
		assert.Equal(t, Assigned, transition)
		assert.True(t, rec.Active())
	})

	t.Run("unassigning always clears acceptance", func(t *testing.T) {
		for _, mode := range []AssignMode{KeepAccept, CoupleAccept} {
			rec, transition := ToggleAssign(Record{HasAssigned: true, HasAccepted: true}, mode)
			assert.Equal(t, Unassigned, transition)
			assert.False(t, rec.HasAssigned)
			assert.False(t, rec.HasAccepted, "acceptance must not survive unassignment")
		}
	})
}

func TestToggleAccept(t *testing.T) {
	rec := ToggleAccept(Record{HasAssigned: true})
	assert.True(t, rec.HasAccepted)
	assert.True(t, rec.Active())

	rec = ToggleAccept(rec)
	assert.False(t, rec.HasAccepted)
	assert.False(t, rec.Active())
	assert.True(t, rec.HasAssigned, "accept toggle must not touch assignment")
}

func TestForceAccept(t *testing.T) {
	t.Run("fresh record counts as a new assignment", func(t *testing.T) {
		rec, transition := ForceAccept(Record{})
		assert.Equal(t, Assigned, transition)
		assert.True(t, rec.Active())
	})

	t.Run("already assigned record does not change the count", func(t *testing.T) {
		rec, transition := ForceAccept(Record{HasAssigned: true, HasAccepted: true})
		assert.Equal(t, NoChange, transition)
		assert.True(t, rec.Active())
	})
}
