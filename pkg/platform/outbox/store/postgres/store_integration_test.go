//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vcregistry/pkg/platform/outbox"
	outboxpostgres "vcregistry/pkg/platform/outbox/store/postgres"
	"vcregistry/pkg/testutil/containers"
)

type OutboxStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
}

func TestOutboxStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(OutboxStoreSuite))
}

func (s *OutboxStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
}

func (s *OutboxStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func (s *OutboxStoreSuite) seed(store *outboxpostgres.Store, n int) []*outbox.Entry {
	base := time.Now().Add(-time.Minute).UTC().Truncate(time.Microsecond)
	entries := make([]*outbox.Entry, n)
	for i := range entries {
		entries[i] = outbox.NewEntry("authority-requests", "authorization_request", "req", "upload_credential",
			[]byte(`{}`), base.Add(time.Duration(i)*time.Second))
		s.Require().NoError(store.Append(context.Background(), entries[i]))
	}
	return entries
}

func (s *OutboxStoreSuite) TestClaimedEntriesAreHiddenFromOtherWorkers() {
	ctx := context.Background()
	store := outboxpostgres.New(s.postgres.DB)
	seeded := s.seed(store, 5)

	first, err := store.FetchUnprocessed(ctx, 3)
	s.Require().NoError(err)
	s.Require().Len(first, 3)
	for i, e := range first {
		s.Equal(seeded[i].ID, e.ID, "claims come back oldest first")
	}

	second, err := store.FetchUnprocessed(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(second, 2)
	s.Equal(seeded[3].ID, second[0].ID)

	none, err := store.FetchUnprocessed(ctx, 10)
	s.Require().NoError(err)
	s.Empty(none)

	pending, err := store.CountPending(ctx)
	s.Require().NoError(err)
	s.Equal(int64(5), pending, "claimed entries still count as pending")
}

func (s *OutboxStoreSuite) TestExpiredClaimIsRetried() {
	ctx := context.Background()
	store := outboxpostgres.New(s.postgres.DB, outboxpostgres.WithClaimLease(200*time.Millisecond))
	seeded := s.seed(store, 1)

	claimed, err := store.FetchUnprocessed(ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(claimed, 1)

	s.Eventually(func() bool {
		again, err := store.FetchUnprocessed(ctx, 1)
		return err == nil && len(again) == 1 && again[0].ID == seeded[0].ID
	}, 5*time.Second, 50*time.Millisecond)
}

func (s *OutboxStoreSuite) TestMarkProcessedTwiceFails() {
	ctx := context.Background()
	store := outboxpostgres.New(s.postgres.DB)
	seeded := s.seed(store, 1)

	s.Require().NoError(store.MarkProcessed(ctx, seeded[0].ID, time.Now()))
	err := store.MarkProcessed(ctx, seeded[0].ID, time.Now())
	s.ErrorIs(err, outboxpostgres.ErrNotPending)

	removed, err := store.DeleteProcessedBefore(ctx, time.Now().Add(time.Minute))
	s.Require().NoError(err)
	s.Equal(int64(1), removed)
}
