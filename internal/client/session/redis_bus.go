package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/assettrack/internal/logging"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannel is the pub/sub channel used when none is configured.
const DefaultRedisChannel = "assettrack:storage"

// RedisBus relays events through Redis pub/sub so that browsing contexts in
// different processes see each other's changes. Events received from Redis
// are fanned out to local subscribers with the usual origin filtering.
type RedisBus struct {
	client  *redis.Client
	channel string
	local   *LocalBus
	pubsub  *redis.PubSub
	log     logging.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRedisBus subscribes to channel and starts relaying. Close stops it.
func NewRedisBus(ctx context.Context, client *redis.Client, channel string, log logging.Logger) (*RedisBus, error) {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	if log == nil {
		log = logging.Nop{}
	}

	pubsub := client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", channel, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	b := &RedisBus{
		client:  client,
		channel: channel,
		local:   NewLocalBus(),
		pubsub:  pubsub,
		log:     log.With("bus", "redis", "channel", channel),
		cancel:  cancel,
	}

	b.wg.Add(1)
	go b.relay(runCtx)
	return b, nil
}

func (b *RedisBus) relay(ctx context.Context) {
	defer b.wg.Done()
	ch := b.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Warn(ctx, "dropping malformed storage event", "error", err)
				continue
			}
			_ = b.local.Publish(ctx, ev)
		}
	}
}

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(origin string, fn func(Event)) func() {
	return b.local.Subscribe(origin, fn)
}

// Close stops relaying and releases the subscription. The redis client is
// owned by the caller.
func (b *RedisBus) Close() error {
	b.cancel()
	err := b.pubsub.Close()
	b.wg.Wait()
	return err
}
