package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const DefaultRelayChannel = "wyzar:relay"

// RedisBackplane relays envelopes over Redis pub/sub.
type RedisBackplane struct {
	client  *redis.Client
	channel string
}

// NewRedisBackplane connects to redisURL and verifies it with a ping.
func NewRedisBackplane(redisURL, channel string) (*RedisBackplane, error) {
	if redisURL == "" {
		return nil, errors.New("redis: REDIS_URL is not set")
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return NewRedisBackplaneFromClient(c, channel), nil
}

func NewRedisBackplaneFromClient(client *redis.Client, channel string) *RedisBackplane {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	return &RedisBackplane{client: client, channel: channel}
}

var _ Backplane = (*RedisBackplane)(nil)

func (b *RedisBackplane) Publish(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

func (b *RedisBackplane) Subscribe(ctx context.Context) (<-chan Envelope, error) {
	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis: subscribe: %w", err)
	}

	out := make(chan Envelope, 256)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					log.Printf("relay: dropping malformed envelope: %v", err)
					continue
				}
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *RedisBackplane) Close() error {
	return b.client.Close()
}
