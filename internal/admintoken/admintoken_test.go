package admintoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "portrait/pkg/domain"
	dErrors "portrait/pkg/domain-errors"
)

func TestServiceRoundTrip(t *testing.T) {
	svc := New("test-signing-key", "portrait")
	addr, err := id.ParseAddress("0x1111111111111111111111111111111111111111")
	require.NoError(t, err)

	token, err := svc.Issue(addr, time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, addr, claims.Address)
}

func TestServiceRejectsExpiredToken(t *testing.T) {
	svc := New("test-signing-key", "portrait")
	addr, err := id.ParseAddress("0x1111111111111111111111111111111111111111")
	require.NoError(t, err)

	token, err := svc.Issue(addr, -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Contains(t, err.Error(), "expired")
}

func TestServiceRejectsForeignKey(t *testing.T) {
	addr, err := id.ParseAddress("0x1111111111111111111111111111111111111111")
	require.NoError(t, err)

	token, err := New("key-one", "portrait").Issue(addr, time.Hour)
	require.NoError(t, err)

	_, err = New("key-two", "portrait").ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestServiceRejectsGarbage(t *testing.T) {
	_, err := New("test-signing-key", "portrait").ValidateToken("not-a-token")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
