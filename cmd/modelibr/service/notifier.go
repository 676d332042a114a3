package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelibr/modelibr/common/events"
	redisclient "github.com/modelibr/modelibr/common/redis"
)

// channelPrefix namespaces thumbnail status channels so the fanout service
// can subscribe with a single pattern
const channelPrefix = "modelibr:events:"

// RedisNotifier publishes thumbnail status events to Redis pub/sub, one
// channel per target kind. The fanout service subscribes and forwards to
// WebSocket clients. Publishing is best effort; the dispatcher logs failures.
type RedisNotifier struct {
	redis *redisclient.Client
}

// NewRedisNotifier creates a notifier backed by the shared Redis client
func NewRedisNotifier(redis *redisclient.Client) *RedisNotifier {
	return &RedisNotifier{redis: redis}
}

// Name identifies the handler in dispatcher logs
func (n *RedisNotifier) Name() string {
	return "redis-notifier"
}

// Handle publishes the event as JSON to modelibr:events:<target kind>
func (n *RedisNotifier) Handle(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	channel := channelPrefix + string(event.TargetKind)
	return n.redis.Publish(ctx, channel, payload)
}
