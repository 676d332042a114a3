package main

import (
	"context"
	"strings"

	"github.com/modelibr/modelibr/common/logger"
	"github.com/redis/go-redis/v9"
)

// eventChannelPattern matches the per-kind channels the API publishes to
const eventChannelPattern = "modelibr:events:*"

// RedisSubscriber listens to Redis PubSub and forwards events to the hub
type RedisSubscriber struct {
	redis *redis.Client
	hub   *Hub
	log   *logger.Logger
}

// NewRedisSubscriber creates a new RedisSubscriber instance
func NewRedisSubscriber(redisClient *redis.Client, hub *Hub, log *logger.Logger) *RedisSubscriber {
	return &RedisSubscriber{
		redis: redisClient,
		hub:   hub,
		log:   log,
	}
}

// Start begins listening. Returns when the context is canceled or the
// subscription cannot be established.
func (s *RedisSubscriber) Start(ctx context.Context) error {
	pubsub := s.redis.PSubscribe(ctx, eventChannelPattern)
	defer pubsub.Close()

	s.log.Info("redis subscriber started", "pattern", eventChannelPattern)

	// Wait for confirmation that the subscription was successful
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("redis subscriber stopping")
			return nil

		case msg := <-ch:
			if msg == nil {
				continue
			}

			kind := extractKindFromChannel(msg.Channel)
			if kind == "" {
				s.log.Warn("invalid channel format", "channel", msg.Channel)
				continue
			}

			s.hub.broadcast <- &Message{
				Kind: kind,
				Data: []byte(msg.Payload),
			}
		}
	}
}

// extractKindFromChannel extracts the target kind from a channel name.
// Example: "modelibr:events:model-version" → "model-version"
func extractKindFromChannel(channel string) string {
	parts := strings.Split(channel, ":")
	if len(parts) != 3 || parts[0] != "modelibr" || parts[1] != "events" {
		return ""
	}
	return parts[2]
}
