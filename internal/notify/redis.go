package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/user/hcaptcha-monitor/internal/domain"
	"github.com/user/hcaptcha-monitor/pkg/utils"
)

// RedisPublisher publishes releases on a Redis pub/sub channel so other
// services can react to a new bundle. Nothing is stored.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// releaseEvent is the message published on the channel.
type releaseEvent struct {
	ID string `json:"id"`
	domain.Release
}

// NewRedisPublisher connects to addr. The connection is lazy; use Ping to
// check it at startup.
func NewRedisPublisher(addr, channel string) *RedisPublisher {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return &RedisPublisher{client: rdb, channel: channel}
}

func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *RedisPublisher) Notify(ctx context.Context, release domain.Release) error {
	msg, err := json.Marshal(releaseEvent{ID: utils.HashURL(release.ResourceURL), Release: release})
	if err != nil {
		return fmt.Errorf("redis: marshal: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, msg).Err(); err != nil {
		return fmt.Errorf("redis: publish: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
