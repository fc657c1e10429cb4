package pending

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/suite"

	"vcregistry/internal/registry/models"
	"vcregistry/internal/sentinel"
	id "vcregistry/pkg/domain"
	dErrors "vcregistry/pkg/domain-errors"
)

// StoreContractSuite runs the Store contract against any implementation.
type StoreContractSuite struct {
	suite.Suite
	newStore func() Store
	store    Store
	ctx      context.Context
}

func (s *StoreContractSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.newStore()
}

func newPendingUpload(description string) *models.PendingRequest {
	vcID := id.VCIDFromUint64(7)
	return &models.PendingRequest{
		ID:        id.NewRequestID(),
		Kind:      models.OperationUploadCredential,
		Authority: id.Address{0: 0xaa},
		DID:       "did:x:1",
		Caller:    id.Address{19: 0x0c},
		Continuation: models.NewUploadContinuation("did:x:1", vcID, models.VerifiableCredential{
			ValidSince:  "2024-01-01",
			SubjectDID:  "did:x:subject",
			SubjectInfo: []models.SubjectAttribute{{Name: "degree", Value: "BSc"}},
			Description: description,
		}),
		CreatedAt: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *StoreContractSuite) TestTakeReturnsContinuationVerbatim() {
	req := newPendingUpload("test")
	s.Require().NoError(s.store.Put(s.ctx, req))

	got, err := s.store.Take(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(req, got)
}

func (s *StoreContractSuite) TestTakeIsExactlyOnce() {
	req := newPendingUpload("once")
	s.Require().NoError(s.store.Put(s.ctx, req))

	_, err := s.store.Take(s.ctx, req.ID)
	s.Require().NoError(err)

	_, err = s.store.Take(s.ctx, req.ID)
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *StoreContractSuite) TestConcurrentTakeHasOneWinner() {
	req := newPendingUpload("race")
	s.Require().NoError(s.store.Put(s.ctx, req))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.store.Take(s.ctx, req.ID); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), wins.Load())
}

func (s *StoreContractSuite) TestPutRejectsDuplicateID() {
	req := newPendingUpload("dup")
	s.Require().NoError(s.store.Put(s.ctx, req))
	err := s.store.Put(s.ctx, req)
	s.True(errors.Is(err, sentinel.ErrAlreadyExists))
}

func (s *StoreContractSuite) TestLookup() {
	s.Run("unknown id", func() {
		_, err := s.store.Lookup(s.ctx, id.NewRequestID())
		s.True(errors.Is(err, sentinel.ErrNotFound))
	})

	s.Run("pending, resolving, then resolved", func() {
		req := newPendingUpload("status")
		s.Require().NoError(s.store.Put(s.ctx, req))

		status, err := s.store.Lookup(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Require().NotNil(status.Pending)
		s.Nil(status.Outcome)
		s.False(status.Resolving)
		s.Equal(req.ID, status.Pending.ID)

		taken, err := s.store.Take(s.ctx, req.ID)
		s.Require().NoError(err)

		status, err = s.store.Lookup(s.ctx, req.ID)
		s.Require().NoError(err, "a taken request must stay visible until its outcome is recorded")
		s.True(status.Resolving)
		s.Require().NotNil(status.Pending)
		s.Equal(req.ID, status.Pending.ID)
		s.Nil(status.Outcome)

		outcome := models.NewOutcome(taken, dErrors.New(dErrors.CodeConflict, "credential already exists"),
			time.Date(2026, 1, 1, 12, 0, 1, 0, time.UTC))
		s.Require().NoError(s.store.RecordOutcome(s.ctx, outcome))

		status, err = s.store.Lookup(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Nil(status.Pending)
		s.False(status.Resolving)
		s.Require().NotNil(status.Outcome)
		s.Equal(models.OutcomeRejected, status.Outcome.Status)
		s.Equal(dErrors.CodeConflict, status.Outcome.Code)
		s.Equal(id.VCIDFromUint64(7), status.Outcome.VCID)
	})
}

func (s *StoreContractSuite) TestPutRejectsResolvingID() {
	req := newPendingUpload("reuse")
	s.Require().NoError(s.store.Put(s.ctx, req))
	_, err := s.store.Take(s.ctx, req.ID)
	s.Require().NoError(err)

	err = s.store.Put(s.ctx, req)
	s.True(errors.Is(err, sentinel.ErrAlreadyExists))
}

func (s *StoreContractSuite) TestWithdraw() {
	s.Run("drops a pending request outright", func() {
		req := newPendingUpload("withdrawn")
		s.Require().NoError(s.store.Put(s.ctx, req))
		s.Require().NoError(s.store.Withdraw(s.ctx, req.ID))

		_, err := s.store.Lookup(s.ctx, req.ID)
		s.True(errors.Is(err, sentinel.ErrNotFound))
		_, err = s.store.Take(s.ctx, req.ID)
		s.True(errors.Is(err, sentinel.ErrNotFound))
	})

	s.Run("leaves a resolving request alone", func() {
		req := newPendingUpload("in flight")
		s.Require().NoError(s.store.Put(s.ctx, req))
		_, err := s.store.Take(s.ctx, req.ID)
		s.Require().NoError(err)

		err = s.store.Withdraw(s.ctx, req.ID)
		s.True(errors.Is(err, sentinel.ErrNotFound))
		status, err := s.store.Lookup(s.ctx, req.ID)
		s.Require().NoError(err)
		s.True(status.Resolving)
	})
}

func newOutcomeFor(req *models.PendingRequest) models.Outcome {
	return models.NewOutcome(req, nil, time.Date(2026, 1, 1, 12, 0, 1, 0, time.UTC))
}
