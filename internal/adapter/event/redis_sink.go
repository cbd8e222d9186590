package event

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisSink publishes events on Redis pub/sub, one channel per topic.
type RedisSink struct {
	client *redis.Client
	prefix string
}

func NewRedisSink(client *redis.Client, prefix string) *RedisSink {
	return &RedisSink{client: client, prefix: prefix}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Channel(topic string) string {
	return s.prefix + ":" + topic
}

func (s *RedisSink) Send(ctx context.Context, topic string, payload []byte) error {
	return s.client.Publish(ctx, s.Channel(topic), payload).Err()
}
