package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ibrahimkeyboad/digibank/internal/core/domain"
)

// Channel is the pub/sub channel connected clients of one user listen on.
func Channel(userID int64) string {
	return fmt.Sprintf("notifications:user:%d", userID)
}

// RedisPublisher fans push events out over Redis pub/sub, one channel per
// user.
type RedisPublisher struct {
	client redis.UniversalClient
}

func NewRedisPublisher(client redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Dispatch(ctx context.Context, event domain.PushEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, Channel(event.UserID), payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}
