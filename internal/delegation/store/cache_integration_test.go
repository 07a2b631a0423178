//go:build integration

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"portrait/internal/delegation/models"
	"portrait/internal/delegation/store"
	platformredis "portrait/internal/platform/redis"
	id "portrait/pkg/domain"
	"portrait/pkg/testutil/containers"
)

type CachedStoreSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	inner  *store.InMemoryStore
	cached *store.CachedStore

	owner    id.Address
	delegate id.Address
}

func TestCachedStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CachedStoreSuite))
}

func (s *CachedStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())

	var err error
	s.owner, err = id.ParseAddress("0x1111111111111111111111111111111111111111")
	s.Require().NoError(err)
	s.delegate, err = id.ParseAddress("0x2222222222222222222222222222222222222222")
	s.Require().NoError(err)
}

func (s *CachedStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))

	client, err := platformredis.New(s.redis.URL)
	s.Require().NoError(err)
	s.inner = store.NewMemory()
	s.cached = store.NewCached(s.inner, client, nil)
}

func (s *CachedStoreSuite) TestReadThroughCachesRecord() {
	ctx := context.Background()

	s.Require().NoError(s.inner.Save(ctx, s.owner, s.delegate, models.DelegateData{HasAssigned: true}))

	// First read populates the cache.
	rec, err := s.cached.Get(ctx, s.owner, s.delegate)
	s.Require().NoError(err)
	s.True(rec.HasAssigned)

	// A write bypassing the cache is invisible until the TTL or an
	// invalidating Save.
	s.Require().NoError(s.inner.Save(ctx, s.owner, s.delegate, models.DelegateData{}))
	rec, err = s.cached.Get(ctx, s.owner, s.delegate)
	s.Require().NoError(err)
	s.True(rec.HasAssigned)
}

func (s *CachedStoreSuite) TestSaveInvalidates() {
	ctx := context.Background()

	s.Require().NoError(s.cached.Save(ctx, s.owner, s.delegate, models.DelegateData{HasAssigned: true}))

	count, err := s.cached.AssignedCount(ctx, s.owner)
	s.Require().NoError(err)
	s.Equal(1, count)

	// Save through the cache invalidates both the record and the count.
	s.Require().NoError(s.cached.Save(ctx, s.owner, s.delegate, models.DelegateData{}))

	rec, err := s.cached.Get(ctx, s.owner, s.delegate)
	s.Require().NoError(err)
	s.Equal(models.DelegateData{}, rec)

	count, err = s.cached.AssignedCount(ctx, s.owner)
	s.Require().NoError(err)
	s.Zero(count)
}
