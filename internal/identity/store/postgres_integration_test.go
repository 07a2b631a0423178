//go:build integration

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"portrait/internal/identity/store"
	id "portrait/pkg/domain"
	"portrait/pkg/platform/sentinel"
	"portrait/pkg/testutil/containers"
)

type IdentityPostgresSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore

	alice id.Address
	bob   id.Address
}

func TestIdentityPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(IdentityPostgresSuite))
}

func (s *IdentityPostgresSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.Require().NoError(s.store.Migrate(context.Background()))

	var err error
	s.alice, err = id.ParseAddress("0x1111111111111111111111111111111111111111")
	s.Require().NoError(err)
	s.bob, err = id.ParseAddress("0x2222222222222222222222222222222222222222")
	s.Require().NoError(err)
}

func (s *IdentityPostgresSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(),
		"portrait_identities", "portrait_primary_ids"))
}

func (s *IdentityPostgresSuite) TestAllocateAndGet() {
	ctx := context.Background()

	first, err := s.store.Allocate(ctx, s.alice)
	s.Require().NoError(err)
	second, err := s.store.Allocate(ctx, s.alice)
	s.Require().NoError(err)
	s.Greater(second, first)

	rec, err := s.store.Get(ctx, first)
	s.Require().NoError(err)
	s.Equal(first, rec.ID)
	s.Equal(s.alice, rec.Owner)
	s.False(rec.Tokenized)

	_, err = s.store.Get(ctx, second+1000)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *IdentityPostgresSuite) TestDiscardRemovesWithoutReuse() {
	ctx := context.Background()

	first, err := s.store.Allocate(ctx, s.alice)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Discard(ctx, first))
	_, err = s.store.Get(ctx, first)
	s.ErrorIs(err, sentinel.ErrNotFound)
	owned, err := s.store.IDsOf(ctx, s.alice)
	s.Require().NoError(err)
	s.Empty(owned)

	// The discarded ID leaves a gap; it is never handed out again.
	next, err := s.store.Allocate(ctx, s.alice)
	s.Require().NoError(err)
	s.Greater(next, first)

	s.ErrorIs(s.store.Discard(ctx, 99999), sentinel.ErrNotFound)
}

func (s *IdentityPostgresSuite) TestOwnershipMovesWithAcquisitionOrder() {
	ctx := context.Background()

	first, err := s.store.Allocate(ctx, s.alice)
	s.Require().NoError(err)
	second, err := s.store.Allocate(ctx, s.alice)
	s.Require().NoError(err)
	third, err := s.store.Allocate(ctx, s.bob)
	s.Require().NoError(err)

	// Bob receives alice's first identity; it enumerates after his own
	// because transfer reacquires.
	s.Require().NoError(s.store.SetOwner(ctx, first, s.bob))

	owned, err := s.store.IDsOf(ctx, s.alice)
	s.Require().NoError(err)
	s.Equal([]id.PortraitID{second}, owned)

	owned, err = s.store.IDsOf(ctx, s.bob)
	s.Require().NoError(err)
	s.Equal([]id.PortraitID{third, first}, owned)

	s.ErrorIs(s.store.SetOwner(ctx, 99999, s.bob), sentinel.ErrNotFound)
}

func (s *IdentityPostgresSuite) TestTokenizedFlag() {
	ctx := context.Background()

	pid, err := s.store.Allocate(ctx, s.alice)
	s.Require().NoError(err)

	s.Require().NoError(s.store.SetTokenized(ctx, pid, true))
	rec, err := s.store.Get(ctx, pid)
	s.Require().NoError(err)
	s.True(rec.Tokenized)

	s.ErrorIs(s.store.SetTokenized(ctx, 99999, true), sentinel.ErrNotFound)
}

func (s *IdentityPostgresSuite) TestPrimarySetAndClear() {
	ctx := context.Background()

	pid, err := s.store.Allocate(ctx, s.alice)
	s.Require().NoError(err)

	primary, err := s.store.Primary(ctx, s.alice)
	s.Require().NoError(err)
	s.Zero(primary)

	s.Require().NoError(s.store.SetPrimary(ctx, s.alice, pid))
	primary, err = s.store.Primary(ctx, s.alice)
	s.Require().NoError(err)
	s.Equal(pid, primary)

	s.Require().NoError(s.store.SetPrimary(ctx, s.alice, 0))
	primary, err = s.store.Primary(ctx, s.alice)
	s.Require().NoError(err)
	s.Zero(primary)
}
