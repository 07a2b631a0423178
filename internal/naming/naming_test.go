package naming

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portrait/internal/sigverify"
	id "portrait/pkg/domain"
	dErrors "portrait/pkg/domain-errors"
)

func TestRegistry_ReserveName(t *testing.T) {
	ctx := context.Background()
	r := New()
	alice, err := id.ParseAddress("0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	bob, err := id.ParseAddress("0x2222222222222222222222222222222222222222")
	require.NoError(t, err)
	nameHash := sigverify.Keccak256([]byte("alice"))

	require.NoError(t, r.ReserveName(ctx, nameHash, alice))

	reserver, ok := r.ReserverOf(ctx, nameHash)
	require.True(t, ok)
	assert.Equal(t, alice, reserver)

	// Second reservation collides, even by the original reserver.
	err = r.ReserveName(ctx, nameHash, bob)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeDuplicateReservation))
	err = r.ReserveName(ctx, nameHash, alice)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeDuplicateReservation))
}

func TestRegistry_ReserveNameValidation(t *testing.T) {
	ctx := context.Background()
	r := New()
	alice, err := id.ParseAddress("0x1111111111111111111111111111111111111111")
	require.NoError(t, err)

	err = r.ReserveName(ctx, id.Hash{}, alice)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))

	err = r.ReserveName(ctx, sigverify.Keccak256([]byte("x")), id.Address{})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidAddress))
}
