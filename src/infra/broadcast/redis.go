package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/contre95/jukebox/src/features/config"
	"github.com/contre95/jukebox/src/features/requesting"
	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes snapshots on a pub/sub channel and keeps the latest one under "<channel>:latest".
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher connects to redis and checks the connection.
func NewRedisPublisher(ctx context.Context, cfg config.Redis) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	channel := cfg.Channel
	if channel == "" {
		channel = "jukebox:state"
	}
	return &RedisPublisher{client: client, channel: channel}, nil
}

func (p *RedisPublisher) Broadcast(ctx context.Context, state requesting.State) {
	data, err := json.Marshal(state)
	if err != nil {
		slog.Error("Failed to encode state snapshot", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, p.channel+":latest", data, 0)
		pipe.Publish(ctx, p.channel, data)
		return nil
	})
	if err != nil {
		slog.Warn("Failed to publish state to redis", "channel", p.channel, "error", err)
	}
}

// Close closes the redis client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
