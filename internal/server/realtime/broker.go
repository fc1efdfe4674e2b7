package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/chatterbox/internal/logging"
	"github.com/redis/go-redis/v9"
)

// Broker carries envelopes between relay instances. Subscribe registers the
// callback that hands envelopes to the local hub.
type Broker interface {
	Publish(ctx context.Context, env Envelope) error
	Subscribe(ctx context.Context, deliver func(Envelope)) error
	Close() error
}

// LocalBroker delivers in-process. It is enough for a single instance.
type LocalBroker struct {
	mu      sync.RWMutex
	deliver func(Envelope)
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{}
}

func (b *LocalBroker) Publish(_ context.Context, env Envelope) error {
	b.mu.RLock()
	deliver := b.deliver
	b.mu.RUnlock()

	if deliver != nil {
		deliver(env)
	}
	return nil
}

func (b *LocalBroker) Subscribe(_ context.Context, deliver func(Envelope)) error {
	b.mu.Lock()
	b.deliver = deliver
	b.mu.Unlock()
	return nil
}

func (b *LocalBroker) Close() error { return nil }

// RedisChannel is the pub/sub channel shared by all relay instances.
const RedisChannel = "chatterbox:relay"

type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
	Close() error
}

// RedisBroker fans envelopes out over Redis pub/sub so that sockets connected
// to different instances share rooms.
type RedisBroker struct {
	client  redisClient
	channel string
	log     logging.Logger
}

func NewRedisBroker(addr string, log logging.Logger) *RedisBroker {
	return &RedisBroker{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: RedisChannel,
		log:     log.With("module", "relay-redis"),
	}
}

func (b *RedisBroker) Publish(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Subscribe waits for the subscription to be confirmed, then delivers
// messages in the background until ctx is done.
func (b *RedisBroker) Subscribe(ctx context.Context, deliver func(Envelope)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
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
				b.handle(ctx, msg.Payload, deliver)
			}
		}
	}()

	return nil
}

func (b *RedisBroker) handle(ctx context.Context, payload string, deliver func(Envelope)) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.log.Warn(ctx, "dropping malformed relay envelope", "error", err)
		return
	}
	deliver(env)
}

func (b *RedisBroker) Close() error { return b.client.Close() }
