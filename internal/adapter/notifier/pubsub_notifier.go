package notifier

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/rl1809/goods-issue/internal/core/domain"
)

const publishTimeout = 10 * time.Second

// PubSubNotifier publishes events to a Google Cloud Pub/Sub topic. Attributes
// let subscribers filter by material and direction without decoding.
type PubSubNotifier struct {
	topic *pubsub.Topic
}

func NewPubSubNotifier(client *pubsub.Client, topicID string) (*PubSubNotifier, error) {
	if client == nil {
		return nil, errors.New("pubsub client is nil")
	}
	if topicID == "" {
		return nil, errors.New("topic is required")
	}
	return &PubSubNotifier{topic: client.Topic(topicID)}, nil
}

func (n *PubSubNotifier) StockChanged(ctx context.Context, event domain.StockChangedEvent) error {
	payload, err := encode(event)
	if err != nil {
		return fmt.Errorf("encode stock changed event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	result := n.topic.Publish(ctx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"event_id":  event.EventID.String(),
			"order_id":  strconv.FormatInt(event.OrderID, 10),
			"material":  string(event.Material),
			"direction": string(event.Direction),
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish to %s: %w", n.topic.ID(), err)
	}
	return nil
}

// Stop flushes pending messages and stops the topic's publish goroutines.
func (n *PubSubNotifier) Stop() {
	n.topic.Stop()
}
