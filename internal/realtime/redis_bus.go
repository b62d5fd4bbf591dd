package realtime

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the fixed pub/sub channel shared by every instance on a
// deployment. The bus is unauthenticated by design: anything that can reach
// the Redis instance can join.
const DefaultChannel = "codeduel:realtime"

// RedisBus carries frames between processes over a Redis pub/sub channel.
type RedisBus struct {
	rdb     *redis.Client
	channel string
	log     *zap.Logger
}

func NewRedisBus(rdb *redis.Client, channel string, log *zap.Logger) *RedisBus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBus{rdb: rdb, channel: channel, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, f Frame) error {
	data, err := sonic.Marshal(f)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, data).Err()
}

func (b *RedisBus) Subscribe(fn func(Frame)) (func(), error) {
	pubsub := b.rdb.Subscribe(context.Background(), b.channel)
	if _, err := pubsub.Receive(context.Background()); err != nil {
		pubsub.Close()
		return nil, err
	}

	ch := pubsub.Channel()
	go func() {
		for msg := range ch {
			var f Frame
			if err := sonic.Unmarshal([]byte(msg.Payload), &f); err != nil {
				b.log.Debug("dropping malformed bus frame", zap.Error(err))
				continue
			}
			fn(f)
		}
	}()

	return func() { _ = pubsub.Close() }, nil
}
