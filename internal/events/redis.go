package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisChannel broadcasts events over Redis PUBLISH/SUBSCRIBE so windows in
// different processes of the same origin converge.
type RedisChannel struct {
	client  *redis.Client
	channel string
	pubsub  *redis.PubSub
	logger  *zerolog.Logger

	mu       sync.RWMutex
	handlers map[uint64]Handler
	nextID   uint64

	done chan struct{}
}

// NewRedisChannel subscribes to channel and waits for the server to confirm,
// so events published after it returns are not missed.
func NewRedisChannel(ctx context.Context, client *redis.Client, channel string, logger *zerolog.Logger) (*RedisChannel, error) {
	pubsub := client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	c := &RedisChannel{
		client:   client,
		channel:  channel,
		pubsub:   pubsub,
		logger:   logger,
		handlers: make(map[uint64]Handler),
		done:     make(chan struct{}),
	}
	go c.receive()

	logger.Info().Str("channel", channel).Msg("Subscribed to redis channel")
	return c, nil
}

func (c *RedisChannel) Name() string { return "redis" }

func (c *RedisChannel) Publish(ctx context.Context, event *Event) error {
	payload, err := Encode(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := c.client.Publish(ctx, c.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", c.channel, err)
	}
	return nil
}

func (c *RedisChannel) Subscribe(handler Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.handlers, id)
			c.mu.Unlock()
		})
	}
}

func (c *RedisChannel) receive() {
	defer close(c.done)
	for msg := range c.pubsub.Channel() {
		event, err := Decode([]byte(msg.Payload))
		if err != nil {
			c.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("Dropping malformed event")
			continue
		}
		if event.Request == nil {
			c.logger.Warn().Str("type", event.Type).Msg("Dropping event without request")
			continue
		}

		c.mu.RLock()
		handlers := make([]Handler, 0, len(c.handlers))
		for _, h := range c.handlers {
			handlers = append(handlers, h)
		}
		c.mu.RUnlock()

		for _, h := range handlers {
			h(event)
		}
	}
}

// Close unsubscribes and waits for the receive loop to exit.
func (c *RedisChannel) Close() error {
	err := c.pubsub.Close()
	<-c.done
	return err
}
