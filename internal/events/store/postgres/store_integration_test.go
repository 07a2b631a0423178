//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"portrait/internal/events"
	"portrait/internal/events/store/postgres"
	"portrait/pkg/testutil/containers"
)

type OutboxSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *postgres.Store
}

func TestOutboxSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(OutboxSuite))
}

func (s *OutboxSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = postgres.New(s.pg.DB)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *OutboxSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(), "portrait_event_outbox"))
}

func (s *OutboxSuite) appendAt(eventType events.Type, at time.Time) events.Event {
	event := events.Event{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: at,
	}
	s.Require().NoError(s.store.Append(context.Background(), event))
	return event
}

func (s *OutboxSuite) TestPendingReturnsCreationOrder() {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	second := s.appendAt(events.TypeDelegateToggled, base.Add(time.Second))
	first := s.appendAt(events.TypeIdentityRegistered, base)

	pending, err := s.store.Pending(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal(first.ID, pending[0].ID)
	s.Equal(second.ID, pending[1].ID)
}

func (s *OutboxSuite) TestMarkDispatchedRemovesFromPending() {
	ctx := context.Background()
	base := time.Now().UTC()

	first := s.appendAt(events.TypeDelegateToggled, base)
	second := s.appendAt(events.TypeRoleToggled, base.Add(time.Second))

	s.Require().NoError(s.store.MarkDispatched(ctx, []string{first.ID.String()}))

	pending, err := s.store.Pending(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(second.ID, pending[0].ID)

	// Empty dispatch list is a no-op.
	s.Require().NoError(s.store.MarkDispatched(ctx, nil))
}

func (s *OutboxSuite) TestPayloadRoundTrips() {
	ctx := context.Background()

	event := events.Event{
		ID:          uuid.New(),
		Type:        events.TypeDelegateToggled,
		Timestamp:   time.Now().UTC().Truncate(time.Millisecond),
		Owner:       "0x1111111111111111111111111111111111111111",
		Delegate:    "0x2222222222222222222222222222222222222222",
		HasAssigned: true,
	}
	s.Require().NoError(s.store.Append(ctx, event))

	pending, err := s.store.Pending(ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(event.Owner, pending[0].Owner)
	s.Equal(event.Delegate, pending[0].Delegate)
	s.True(pending[0].HasAssigned)
}
