package notify

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/tastetrail/backend/internal/logging"
)

// RedisBus fans events out to every server instance through one Redis
// Pub/Sub channel.
type RedisBus struct {
	client  *redis.Client
	channel string
}

func NewRedisBus(client *redis.Client, channel string) *RedisBus {
	return &RedisBus{client: client, channel: channel}
}

func (b *RedisBus) Publish(ctx context.Context, ev *Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context) (<-chan *Event, error) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	// Wait for the subscription confirmation so publishes after this call
	// are not lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	out := make(chan *Event, 256)
	go b.processMessages(ctx, pubsub, out)
	return out, nil
}

// Close is a no-op; the shared client is closed by its owner.
func (b *RedisBus) Close() error {
	return nil
}

func (b *RedisBus) processMessages(ctx context.Context, pubsub *redis.PubSub, out chan<- *Event) {
	defer close(out)
	defer pubsub.Close()

	log := logging.Component("notify.redis")
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn().Err(err).Msg("dropping malformed event")
				continue
			}
			select {
			case out <- &ev:
			case <-ctx.Done():
				return
			default:
				log.Warn().Str("user_id", ev.UserID).Msg("hub is behind, dropping event")
			}
		}
	}
}
