package notifier

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/goods-issue/internal/core/domain"
)

const DefaultRedisChannel = "goods-issue:stock-changed"

// RedisNotifier publishes events on a pub/sub channel. Subscribers that are
// not connected at publish time miss the event.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) StockChanged(ctx context.Context, event domain.StockChangedEvent) error {
	payload, err := encode(event)
	if err != nil {
		return fmt.Errorf("encode stock changed event: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", n.channel, err)
	}
	return nil
}
