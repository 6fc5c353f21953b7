// Package notify publishes recall-processed events for downstream consumers
// (the subscriber email sender listens on this topic).
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
)

// ProcessedEvent announces that a recall's label images were (re)written.
type ProcessedEvent struct {
	RunID       string    `json:"run_id"`
	RecallID    string    `json:"recall_id"`
	ImageCount  int       `json:"image_count"`
	HasErrors   bool      `json:"has_errors"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Publisher pushes completion events. A nil Publisher is valid and means
// notifications are disabled.
type Publisher interface {
	PublishProcessed(ctx context.Context, event ProcessedEvent) error
}

// PubSub implements Publisher on Google Cloud Pub/Sub, authenticating via
// Application Default Credentials.
type PubSub struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger *zap.Logger
}

// NewPubSub connects to the topic and verifies it exists.
func NewPubSub(ctx context.Context, projectID, topicID string, logger *zap.Logger) (*PubSub, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	topic := client.Topic(topicID)
	ok, err := topic.Exists(ctx)
	if err != nil {
		if cerr := client.Close(); cerr != nil {
			logger.Warn("failed to close pubsub client after existence check failure", zap.Error(cerr))
		}
		return nil, fmt.Errorf("check pubsub topic %q: %w", topicID, err)
	}
	if !ok {
		if cerr := client.Close(); cerr != nil {
			logger.Warn("failed to close pubsub client after missing topic", zap.Error(cerr))
		}
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", topicID, projectID)
	}

	return &PubSub{client: client, topic: topic, logger: logger}, nil
}

// PublishProcessed sends one event and waits for the server ack.
func (p *PubSub) PublishProcessed(ctx context.Context, event ProcessedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal processed event: %w", err)
	}
	res := p.topic.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("publish processed event: %w", err)
	}
	return nil
}

// Close flushes pending messages and releases the client.
func (p *PubSub) Close() error {
	p.topic.Stop()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
