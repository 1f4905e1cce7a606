// Package stream publishes score changes to a Redis stream per sport event so
// scoreboards and other consumers can follow results live.
package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"olimpia/internal/domain"
)

// Publisher announces score changes.
type Publisher interface {
	PublishScore(ctx context.Context, kind string, s domain.Score) error
}

// Update kinds.
const (
	KindScore     = "score"
	KindLane      = "lane"
	KindPlacement = "placement"
)

func StreamKey(eventID string) string {
	return fmt.Sprintf("olimpia.scores.%s", eventID)
}

// RedisPublisher appends to capped streams.
type RedisPublisher struct {
	client *redis.Client
	maxLen int64
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client, maxLen: 10000}
}

func (p *RedisPublisher) PublishScore(ctx context.Context, kind string, s domain.Score) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling score update: %w", err)
	}
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey(s.EventID),
		MaxLen: p.maxLen,
		Values: map[string]interface{}{
			"data":        string(data),
			"type":        kind,
			"modality_id": s.ModalityID,
			"athlete_id":  s.AthleteID,
		},
	}).Err()
}

// Nop drops every update.
type Nop struct{}

func (Nop) PublishScore(context.Context, string, domain.Score) error { return nil }
