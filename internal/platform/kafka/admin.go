package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Admin provisions the authority topics at startup.
type Admin struct {
	adm *kadm.Client
}

// NewAdmin connects an admin client to brokers.
func NewAdmin(brokers []string) (*Admin, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	client, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return nil, fmt.Errorf("create kafka admin client: %w", err)
	}
	return &Admin{adm: kadm.NewClient(client)}, nil
}

// EnsureTopics creates the topics that do not exist yet.
func (a *Admin) EnsureTopics(ctx context.Context, partitions int32, replicationFactor int16, topics ...string) error {
	responses, err := a.adm.CreateTopics(ctx, partitions, replicationFactor, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, resp := range responses.Sorted() {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", resp.Topic, resp.Err)
		}
	}
	return nil
}

func (a *Admin) Close() {
	a.adm.Close()
}
