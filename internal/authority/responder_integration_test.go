//go:build integration

package authority_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	contract "vcregistry/contracts/authority"
	"vcregistry/internal/authority"
	"vcregistry/internal/platform/kafka/consumer"
	"vcregistry/internal/platform/kafka/producer"
	id "vcregistry/pkg/domain"
	"vcregistry/pkg/testutil"
	"vcregistry/pkg/testutil/containers"
)

const (
	requestTopic = "authority-requests-responder"
	verdictTopic = "authority-verdicts-responder"
)

// ResponderIntegrationSuite runs the mock Authority against a real broker:
// requests go in on one topic and verdicts come out on the other.
type ResponderIntegrationSuite struct {
	suite.Suite
	kafka    *containers.KafkaContainer
	producer *producer.Producer
	consumer *consumer.Consumer
}

func TestResponderIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ResponderIntegrationSuite))
}

func (s *ResponderIntegrationSuite) SetupSuite() {
	ctx := context.Background()
	s.kafka = containers.GetManager().GetKafka(s.T())
	s.Require().NoError(s.kafka.CreateTopic(ctx, requestTopic, 1, 1))
	s.Require().NoError(s.kafka.CreateTopic(ctx, verdictTopic, 1, 1))

	prod, err := producer.New(producer.DefaultConfig(s.kafka.Brokers), nil)
	s.Require().NoError(err)
	s.producer = prod
	s.NoError(s.producer.Check(ctx))

	policy := authority.NewPolicy()
	policy.Allow("did:x:controlled", testutil.TestAddresses.Caller)
	responder := authority.NewResponder(authority.New(testutil.TestAddresses.AuthorityA, policy, nil), prod, verdictTopic, nil)

	s.consumer, err = consumer.New(consumer.Config{
		Brokers: s.kafka.Brokers,
		GroupID: "mock-authority-" + uuid.NewString(),
		Topics:  []string{requestTopic},
	}, responder, nil)
	s.Require().NoError(err)
	s.consumer.Start()
}

func (s *ResponderIntegrationSuite) TearDownSuite() {
	if s.consumer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.NoError(s.consumer.Stop(ctx))
	}
	if s.producer != nil {
		s.producer.Close()
	}
}

func (s *ResponderIntegrationSuite) ask(ctx context.Context, authorityAddr id.Address, did string, caller id.Address) string {
	req := contract.Request{
		RequestID:   uuid.NewString(),
		Authority:   authorityAddr.String(),
		DID:         did,
		Caller:      caller.String(),
		Operation:   contract.OperationSetRevocationStatus,
		RequestedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(req)
	s.Require().NoError(err)
	s.Require().NoError(s.producer.Produce(ctx, &producer.Message{
		Topic: requestTopic,
		Key:   []byte(req.RequestID),
		Value: payload,
		Headers: map[string]string{
			"aggregate_type": contract.AggregateType,
			"event_type":     contract.EventTypeRequested,
		},
	}))
	return req.RequestID
}

func (s *ResponderIntegrationSuite) verdictFor(ctx context.Context, requestID string) contract.Verdict {
	reader, err := s.kafka.NewConsumer(ctx, "verdict-check-"+requestID, verdictTopic)
	s.Require().NoError(err)
	defer reader.Close()

	record := s.kafka.WaitForKey(ctx, reader, 15*time.Second, requestID)
	s.Require().NotNil(record, "verdict for %s should be published", requestID)
	s.Equal(contract.EventTypeVerdict, containers.Headers(record)["event_type"])

	verdict, err := contract.DecodeVerdict(record.Value)
	s.Require().NoError(err)
	return verdict
}

func (s *ResponderIntegrationSuite) TestControllerIsGranted() {
	ctx := context.Background()
	requestID := s.ask(ctx, testutil.TestAddresses.AuthorityA, "did:x:controlled", testutil.TestAddresses.Caller)

	verdict := s.verdictFor(ctx, requestID)
	s.Equal(requestID, verdict.RequestID)
	s.True(verdict.Success)
}

func (s *ResponderIntegrationSuite) TestStrangerIsDenied() {
	ctx := context.Background()
	requestID := s.ask(ctx, testutil.TestAddresses.AuthorityA, "did:x:controlled", testutil.TestAddresses.Stranger)
	s.False(s.verdictFor(ctx, requestID).Success)
}

// A request addressed to a different Authority is answered with a denial
// rather than left unanswered.
func (s *ResponderIntegrationSuite) TestOtherAuthorityIsDenied() {
	ctx := context.Background()
	requestID := s.ask(ctx, testutil.TestAddresses.AuthorityB, "did:x:controlled", testutil.TestAddresses.Caller)
	s.False(s.verdictFor(ctx, requestID).Success)
}
