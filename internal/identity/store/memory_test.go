package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "portrait/pkg/domain"
	"portrait/pkg/platform/sentinel"
)

func addr(t *testing.T, s string) id.Address {
	t.Helper()
	a, err := id.ParseAddress(s)
	require.NoError(t, err)
	return a
}

func TestInMemoryStore_AllocateIsSequentialFromOne(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	owner := addr(t, "0x1111111111111111111111111111111111111111")

	first, err := s.Allocate(ctx, owner)
	require.NoError(t, err)
	second, err := s.Allocate(ctx, owner)
	require.NoError(t, err)

	assert.Equal(t, id.PortraitID(1), first)
	assert.Equal(t, id.PortraitID(2), second)

	ids, err := s.IDsOf(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, []id.PortraitID{first, second}, ids)
}

func TestInMemoryStore_GetUnknownIsNotFound(t *testing.T) {
	s := NewMemory()
	_, err := s.Get(context.Background(), id.PortraitID(42))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryStore_DiscardRemovesWithoutReuse(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	owner := addr(t, "0x1111111111111111111111111111111111111111")

	first, err := s.Allocate(ctx, owner)
	require.NoError(t, err)

	require.NoError(t, s.Discard(ctx, first))
	_, err = s.Get(ctx, first)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	ids, err := s.IDsOf(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, ids)

	// The discarded ID leaves a gap; it is never handed out again.
	next, err := s.Allocate(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, id.PortraitID(2), next)

	assert.ErrorIs(t, s.Discard(ctx, id.PortraitID(99)), sentinel.ErrNotFound)
}

func TestInMemoryStore_SetOwnerMovesBetweenLists(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	alice := addr(t, "0x1111111111111111111111111111111111111111")
	bob := addr(t, "0x2222222222222222222222222222222222222222")

	portraitID, err := s.Allocate(ctx, alice)
	require.NoError(t, err)

	require.NoError(t, s.SetOwner(ctx, portraitID, bob))

	rec, err := s.Get(ctx, portraitID)
	require.NoError(t, err)
	assert.Equal(t, bob, rec.Owner)

	aliceIDs, err := s.IDsOf(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, aliceIDs)

	bobIDs, err := s.IDsOf(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, []id.PortraitID{portraitID}, bobIDs)

	assert.ErrorIs(t, s.SetOwner(ctx, id.PortraitID(99), bob), sentinel.ErrNotFound)
}

func TestInMemoryStore_Primary(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	owner := addr(t, "0x1111111111111111111111111111111111111111")

	primary, err := s.Primary(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, primary)

	portraitID, err := s.Allocate(ctx, owner)
	require.NoError(t, err)
	require.NoError(t, s.SetPrimary(ctx, owner, portraitID))

	primary, err = s.Primary(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, portraitID, primary)

	require.NoError(t, s.SetPrimary(ctx, owner, 0))
	primary, err = s.Primary(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, primary)
}
