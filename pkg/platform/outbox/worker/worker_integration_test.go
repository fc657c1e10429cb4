//go:build integration

package worker_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	contract "vcregistry/contracts/authority"
	"vcregistry/internal/platform/kafka/producer"
	"vcregistry/pkg/platform/outbox"
	outboxpostgres "vcregistry/pkg/platform/outbox/store/postgres"
	"vcregistry/pkg/platform/outbox/worker"
	"vcregistry/pkg/testutil/containers"
)

type WorkerIntegrationSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	kafka    *containers.KafkaContainer
	store    *outboxpostgres.Store
	producer *producer.Producer
}

func TestWorkerIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(WorkerIntegrationSuite))
}

func (s *WorkerIntegrationSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.kafka = mgr.GetKafka(s.T())
	s.store = outboxpostgres.New(s.postgres.DB)

	cfg := producer.DefaultConfig(s.kafka.Brokers)
	cfg.DeliveryTimeout = 10 * time.Second
	prod, err := producer.New(cfg, nil)
	s.Require().NoError(err)
	s.producer = prod
}

func (s *WorkerIntegrationSuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close()
	}
}

func (s *WorkerIntegrationSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

// appendRequest queues one authorization request the way the registry's
// outbox dispatcher does. An empty topic defers to the worker default.
func (s *WorkerIntegrationSuite) appendRequest(ctx context.Context, topic string) (*outbox.Entry, contract.Request) {
	req := contract.Request{
		RequestID:   uuid.NewString(),
		Authority:   "0x00000000000000000000000000000000000000f1",
		DID:         "did:x:1",
		Caller:      "0x00000000000000000000000000000000000000c1",
		Operation:   contract.OperationUploadCredential,
		RequestedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(req)
	s.Require().NoError(err)

	entry := outbox.NewEntry(topic, contract.AggregateType, req.RequestID, contract.EventTypeRequested, payload, time.Now())
	s.Require().NoError(s.store.Append(ctx, entry))
	return entry, req
}

func (s *WorkerIntegrationSuite) newWorker(topic string, poll time.Duration, batch int) *worker.Worker {
	return worker.New(s.store, s.producer,
		worker.WithDefaultTopic(topic),
		worker.WithPollInterval(poll),
		worker.WithBatchSize(batch),
	)
}

func (s *WorkerIntegrationSuite) pending(ctx context.Context) int64 {
	n, err := s.store.CountPending(ctx)
	s.Require().NoError(err)
	return n
}

func (s *WorkerIntegrationSuite) stop(ctx context.Context, workers ...*worker.Worker) {
	stopCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	for _, w := range workers {
		s.Require().NoError(w.Stop(stopCtx))
	}
}

// A queued request reaches the request topic keyed by its request id and
// carrying the contract headers, and the entry is marked processed.
func (s *WorkerIntegrationSuite) TestRequestReachesTopic() {
	ctx := context.Background()
	topic := "authority-requests-flow"
	s.Require().NoError(s.kafka.CreateTopic(ctx, topic, 1, 1))

	entry, req := s.appendRequest(ctx, topic)
	s.Equal(int64(1), s.pending(ctx))

	w := s.newWorker(topic, 50*time.Millisecond, 10)
	w.Start()
	s.Eventually(func() bool { return s.pending(ctx) == 0 }, 5*time.Second, 50*time.Millisecond)
	s.stop(ctx, w)

	consumer, err := s.kafka.NewConsumer(ctx, "authority-requests-flow-check", topic)
	s.Require().NoError(err)
	defer consumer.Close()

	record := s.kafka.WaitForKey(ctx, consumer, 5*time.Second, req.RequestID)
	s.Require().NotNil(record, "request should be on the topic")

	got, err := contract.DecodeRequest(record.Value)
	s.Require().NoError(err)
	s.Equal(req.DID, got.DID)
	s.Equal(req.Caller, got.Caller)
	s.Equal(req.Operation, got.Operation)

	headers := containers.Headers(record)
	s.Equal(entry.ID.String(), headers["outbox_id"])
	s.Equal(contract.AggregateType, headers["aggregate_type"])
	s.Equal(contract.EventTypeRequested, headers["event_type"])
}

func (s *WorkerIntegrationSuite) TestBatchDrainsBacklog() {
	ctx := context.Background()
	topic := "authority-requests-backlog"
	s.Require().NoError(s.kafka.CreateTopic(ctx, topic, 1, 1))

	for i := 0; i < 5; i++ {
		s.appendRequest(ctx, topic)
	}

	w := s.newWorker(topic, 50*time.Millisecond, 2)
	w.Start()
	s.Eventually(func() bool { return s.pending(ctx) == 0 }, 10*time.Second, 50*time.Millisecond)
	s.stop(ctx, w)
}

// Entries written without a topic are routed to the worker default.
func (s *WorkerIntegrationSuite) TestWorkerUsesDefaultTopic() {
	ctx := context.Background()
	topic := "authority-requests-default"
	s.Require().NoError(s.kafka.CreateTopic(ctx, topic, 1, 1))

	_, req := s.appendRequest(ctx, "")

	w := s.newWorker(topic, 50*time.Millisecond, 10)
	w.Start()
	s.Eventually(func() bool { return s.pending(ctx) == 0 }, 5*time.Second, 50*time.Millisecond)
	s.stop(ctx, w)

	consumer, err := s.kafka.NewConsumer(ctx, "authority-requests-default-check", topic)
	s.Require().NoError(err)
	defer consumer.Close()
	s.NotNil(s.kafka.WaitForKey(ctx, consumer, 5*time.Second, req.RequestID))
}

// Stop relays what is still queued even when no poll tick has fired.
func (s *WorkerIntegrationSuite) TestDrainOnShutdown() {
	ctx := context.Background()
	topic := "authority-requests-drain"
	s.Require().NoError(s.kafka.CreateTopic(ctx, topic, 1, 1))

	w := s.newWorker(topic, 10*time.Second, 10)
	w.Start()

	s.appendRequest(ctx, topic)
	time.Sleep(100 * time.Millisecond)
	s.Equal(int64(1), s.pending(ctx))

	s.stop(ctx, w)
	s.Equal(int64(0), s.pending(ctx))
}

// Two replicas relaying the same outbox split the backlog through
// FOR UPDATE SKIP LOCKED and leave nothing behind.
func (s *WorkerIntegrationSuite) TestConcurrentWorkersShareBacklog() {
	ctx := context.Background()
	topic := "authority-requests-replicas"
	s.Require().NoError(s.kafka.CreateTopic(ctx, topic, 1, 1))

	for i := 0; i < 20; i++ {
		s.appendRequest(ctx, topic)
	}

	w1 := s.newWorker(topic, 50*time.Millisecond, 5)
	w2 := s.newWorker(topic, 50*time.Millisecond, 5)
	w1.Start()
	w2.Start()

	s.Eventually(func() bool { return s.pending(ctx) == 0 }, 15*time.Second, 100*time.Millisecond)
	s.stop(ctx, w1, w2)

	client, err := s.kafka.NewConsumer(ctx, "replicas-"+uuid.NewString(), topic)
	s.Require().NoError(err)
	defer client.Close()

	var records int
	readCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	for readCtx.Err() == nil {
		client.PollFetches(readCtx).EachRecord(func(*kgo.Record) { records++ })
	}
	s.Equal(20, records, "each entry is relayed by exactly one worker")
}
