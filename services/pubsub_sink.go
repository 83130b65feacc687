package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"cloud.google.com/go/pubsub"
)

// PubSubEventSink publishes domain events to a Pub/Sub topic
type PubSubEventSink struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubEventSink uses Application Default Credentials
func NewPubSubEventSink(ctx context.Context, projectID, topicID string) (*PubSubEventSink, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	return &PubSubEventSink{client: client, topic: client.Topic(topicID)}, nil
}

func (s *PubSubEventSink) Publish(ctx context.Context, event DomainEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	result := s.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_type": event.Type,
			"company_id": strconv.FormatUint(uint64(event.CompanyID), 10),
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}

// Close flushes pending messages and closes the client
func (s *PubSubEventSink) Close() error {
	s.topic.Stop()
	return s.client.Close()
}
