package current

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"olimpia/internal/domain"
)

const DefaultChannel = "olimpia:current-event"

type busMessage struct {
	Origin string              `json:"origin"`
	Event  domain.CurrentEvent `json:"event"`
}

// RedisBus shares current event changes between processes via pub/sub.
type RedisBus struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

func NewRedisBus(client *redis.Client, channel string, logger *slog.Logger) *RedisBus {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBus{client: client, channel: channel, logger: logger}
}

func (b *RedisBus) Publish(ctx context.Context, origin string, ev domain.CurrentEvent) error {
	data, err := json.Marshal(busMessage{Origin: origin, Event: ev})
	if err != nil {
		return fmt.Errorf("marshaling current event: %w", err)
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

// Listen forwards changes made by other processes to t until ctx is done.
// ready is closed once the subscription is active.
func (b *RedisBus) Listen(ctx context.Context, t *Tracker, ready chan<- struct{}) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", b.channel, err)
	}
	if ready != nil {
		close(ready)
	}
	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var m busMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				b.logger.Warn("ignoring malformed current event message", "error", err)
				continue
			}
			if m.Origin == t.ID() {
				continue
			}
			t.Notify(m.Event)
		}
	}
}
