package watch

import (
	"context"
	"fmt"

	"github.com/mbeoliero/kit/log"
	"github.com/redis/go-redis/v9"

	"github.com/mbeoliero/huddle/pkg/constant"
)

// RedisTransport fans events out across instances over Redis pub/sub
type RedisTransport struct {
	rdb *redis.Client
}

// NewRedisTransport creates a Redis pub/sub transport
func NewRedisTransport(rdb *redis.Client) *RedisTransport {
	return &RedisTransport{rdb: rdb}
}

func (t *RedisTransport) channel(topic string) string {
	return fmt.Sprintf(constant.RedisKeyWatchChannel(), topic)
}

func (t *RedisTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	return t.rdb.Publish(ctx, t.channel(topic), payload).Err()
}

func (t *RedisTransport) Subscribe(ctx context.Context, topic string, deliver func([]byte)) (Subscription, error) {
	ps := t.rdb.Subscribe(ctx, t.channel(topic))
	// Wait for the confirmation so events published after return are not lost
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range ps.Channel() {
			deliver([]byte(msg.Payload))
		}
	}()

	return &redisSubscription{ps: ps, done: done, topic: topic}, nil
}

// Close is a no-op; the Redis client is owned by the caller
func (t *RedisTransport) Close() error {
	return nil
}

type redisSubscription struct {
	ps    *redis.PubSub
	done  chan struct{}
	topic string
}

func (s *redisSubscription) Unsubscribe() error {
	err := s.ps.Close()
	<-s.done
	if err != nil {
		log.Warn("close redis subscription failed: topic=%s, error=%v", s.topic, err)
	}
	return err
}
