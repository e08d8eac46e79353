package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// publishTimeout bounds the wait for the server to acknowledge a publish.
const publishTimeout = 10 * time.Second

// PubSubConfig holds configuration for the Pub/Sub notifier.
type PubSubConfig struct {
	ProjectID string
	TopicID   string
	Logger    zerolog.Logger
}

// publisher is the part of *pubsub.Publisher the notifier uses.
type publisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) publishResult
	Stop()
}

type publishResult interface {
	Get(ctx context.Context) (serverID string, err error)
}

// PubSubNotifier publishes run events as JSON messages on a topic.
type PubSubNotifier struct {
	client    *pubsub.Client
	publisher publisher
	topicID   string
	logger    zerolog.Logger
}

// NewPubSubNotifier connects to Pub/Sub and prepares a publisher for the topic.
func NewPubSubNotifier(ctx context.Context, cfg PubSubConfig) (*PubSubNotifier, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	p := client.Publisher(cfg.TopicID)
	p.PublishSettings.CountThreshold = 1

	return &PubSubNotifier{
		client:    client,
		publisher: clientPublisher{p},
		topicID:   cfg.TopicID,
		logger:    cfg.Logger,
	}, nil
}

// Notify publishes event and waits for the server id.
func (n *PubSubNotifier) Notify(ctx context.Context, event RunEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event":  string(event.Type),
			"run_id": event.RunID.String(),
		},
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	id, err := n.publisher.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.Type, n.topicID, err)
	}

	n.logger.Debug().
		Str("message_id", id).
		Str("topic", n.topicID).
		Str("event", string(event.Type)).
		Msg("published run event")
	return nil
}

// Close flushes pending messages and closes the client.
func (n *PubSubNotifier) Close() error {
	n.publisher.Stop()
	if n.client == nil {
		return nil
	}
	return n.client.Close()
}

type clientPublisher struct {
	p *pubsub.Publisher
}

func (c clientPublisher) Publish(ctx context.Context, msg *pubsub.Message) publishResult {
	return c.p.Publish(ctx, msg)
}

func (c clientPublisher) Stop() {
	c.p.Stop()
}
