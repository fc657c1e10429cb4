//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vcregistry/internal/registry/gate"
	"vcregistry/internal/registry/models"
	"vcregistry/internal/registry/pending"
	"vcregistry/internal/registry/service"
	"vcregistry/internal/registry/store"
	"vcregistry/internal/sentinel"
	id "vcregistry/pkg/domain"
	dErrors "vcregistry/pkg/domain-errors"
	"vcregistry/pkg/testutil"
	"vcregistry/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	state    *store.PostgresStateStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.state = store.NewPostgresState(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func credential(description string) models.VerifiableCredential {
	return models.VerifiableCredential{
		ValidSince:  "2024-01-01",
		ValidUntil:  "2025-01-01",
		SubjectDID:  "did:x:subject",
		SubjectInfo: []models.SubjectAttribute{{Name: "b", Value: "2"}, {Name: "a", Value: "1"}},
		Description: description,
	}
}

func (s *PostgresStoreSuite) TestInsertAndFindRoundTrip() {
	ctx := context.Background()
	largest, err := id.ParseVCID("340282366920938463463374607431768211455")
	s.Require().NoError(err)

	s.Require().NoError(s.store.Insert(ctx, "did:x:1", largest, credential("test")))

	got, err := s.store.Find(ctx, "did:x:1", largest)
	s.Require().NoError(err)
	s.Equal(credential("test"), *got)

	err = s.store.Insert(ctx, "did:x:1", largest, credential("dup"))
	s.True(errors.Is(err, sentinel.ErrAlreadyExists))
}

func (s *PostgresStoreSuite) TestSetRevokedChangesOnlyTheFlag() {
	ctx := context.Background()
	vcID := id.VCIDFromUint64(7)

	err := s.store.SetRevoked(ctx, "did:x:1", vcID, true)
	s.True(errors.Is(err, sentinel.ErrNotFound))

	s.Require().NoError(s.store.Insert(ctx, "did:x:1", vcID, credential("test")))
	s.Require().NoError(s.store.SetRevoked(ctx, "did:x:1", vcID, true))
	s.Require().NoError(s.store.SetRevoked(ctx, "did:x:1", vcID, true))

	got, err := s.store.Find(ctx, "did:x:1", vcID)
	s.Require().NoError(err)
	expected := credential("test")
	expected.Revoked = true
	s.Equal(expected, *got)
}

func (s *PostgresStoreSuite) TestOrdering() {
	ctx := context.Background()
	big, err := id.ParseVCID("18446744073709551616")
	s.Require().NoError(err)
	for _, vcID := range []id.VCID{big, id.VCIDFromUint64(10), id.VCIDFromUint64(2)} {
		s.Require().NoError(s.store.Insert(ctx, "did:b", vcID, credential("x")))
	}
	s.Require().NoError(s.store.Insert(ctx, "did:B", id.VCIDFromUint64(1), credential("x")))
	s.Require().NoError(s.store.Insert(ctx, "did:a", id.VCIDFromUint64(1), credential("x")))

	list, err := s.store.ListByDID(ctx, "did:b")
	s.Require().NoError(err)
	s.Require().Len(list, 3)
	s.Equal(id.VCIDFromUint64(2), list[0].VCID)
	s.Equal(id.VCIDFromUint64(10), list[1].VCID)
	s.Equal(big, list[2].VCID)

	dids, err := s.store.ListDIDs(ctx)
	s.Require().NoError(err)
	s.Equal([]id.DID{"did:B", "did:a", "did:b"}, dids)
}

// TestConcurrentInsertSameKey verifies exactly one writer wins when replicas
// commit the same DID/VC id at once.
func (s *PostgresStoreSuite) TestConcurrentInsertSameKey() {
	ctx := context.Background()
	result := testutil.RunConcurrent(16, func(int) error {
		return s.store.Insert(ctx, "did:x:race", id.VCIDFromUint64(1), credential("race"))
	})
	s.Equal(int32(1), result.Successes)
	s.Equal(int32(15), result.Conflicts)
	s.Zero(result.Errors)

	rows, err := s.postgres.CountCredentials(ctx, "did:x:race")
	s.Require().NoError(err)
	s.Equal(1, rows)
}

func (s *PostgresStoreSuite) TestStateInitializeOnce() {
	ctx := context.Background()
	owner := id.Address{19: 1}
	at := time.Now().UTC().Truncate(time.Second)

	_, err := s.state.Load(ctx)
	s.True(errors.Is(err, sentinel.ErrNotFound))

	state, created, err := s.state.Initialize(ctx, owner, models.VariantGated, at)
	s.Require().NoError(err)
	s.True(created)
	s.Equal(owner, state.Owner)
	s.False(state.AuthorityConfigured())

	state, created, err = s.state.Initialize(ctx, id.Address{19: 9}, models.VariantPerCall, at)
	s.Require().NoError(err)
	s.False(created)
	s.Equal(owner, state.Owner)
	s.Equal(models.VariantGated, state.Variant)

	authority := id.Address{0: 0xaa}
	s.Require().NoError(s.state.SetAuthority(ctx, authority))
	state, err = s.state.Load(ctx)
	s.Require().NoError(err)
	s.Equal(authority, state.Authority)
}

type countingDispatcher struct{ dispatched int }

func (d *countingDispatcher) Dispatch(context.Context, *models.PendingRequest) error {
	d.dispatched++
	return nil
}

// Postgres cannot hold NUL in TEXT or JSONB, so uploads carrying it must be
// refused at request time on every backend, before the Authority is asked.
func (s *PostgresStoreSuite) TestNULNeverReachesCommit() {
	ctx := context.Background()
	withNUL := credential("a\x00b")

	s.Run("postgres rejects NUL on insert", func() {
		s.Error(s.store.Insert(ctx, "did:x:1", id.VCIDFromUint64(1), withNUL))
		attrs := credential("ok")
		attrs.SubjectInfo[0].Value = "\x00"
		s.Error(s.store.Insert(ctx, "did:x:1", id.VCIDFromUint64(2), attrs))

		rows, err := s.postgres.CountCredentials(ctx, "did:x:1")
		s.Require().NoError(err)
		s.Zero(rows)
	})

	for name, credentials := range map[string]store.CredentialStore{
		"postgres": s.store,
		"memory":   store.NewInMemory(),
	} {
		s.Run(name+" registry refuses the upload before dispatch", func() {
			dispatcher := &countingDispatcher{}
			svc := service.New(credentials, store.NewInMemoryState(), gate.New(pending.NewInMemory(), dispatcher))
			_, err := svc.Initialize(ctx, id.Address{19: 1}, models.VariantGated)
			s.Require().NoError(err)
			_, err = svc.ConfigureAuthority(ctx, id.Address{19: 1}, id.Address{0: 0xaa})
			s.Require().NoError(err)

			_, err = svc.UploadCredential(ctx, id.Address{19: 0x0c}, service.UploadCommand{
				IssuerDID: "did:x:1", VCID: id.VCIDFromUint64(3), Credential: withNUL,
			})
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
			s.Zero(dispatcher.dispatched)
		})
	}
}
