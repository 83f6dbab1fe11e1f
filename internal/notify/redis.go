package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/streamify/internal/cache"
)

// RedisBroker publishes over redis pub/sub so every API instance can reach a
// user's websocket sessions.
type RedisBroker struct {
	rdb    *redis.Client
	logger *logrus.Logger
}

func NewRedisBroker(rdb *redis.Client, logger *logrus.Logger) *RedisBroker {
	return &RedisBroker{rdb: rdb, logger: logger}
}

// Channel is the pub/sub channel carrying userID's events.
func Channel(userID string) string {
	return cache.KeyPrefix + "user:" + userID
}

func (b *RedisBroker) Publish(ctx context.Context, userID string, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.rdb.Publish(ctx, Channel(userID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", Channel(userID), err)
	}
	return nil
}

type redisSub struct {
	ps   *redis.PubSub
	ch   chan Event
	once sync.Once
	done chan struct{}
}

func (s *redisSub) Events() <-chan Event { return s.ch }

func (s *redisSub) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

func (b *RedisBroker) Subscribe(ctx context.Context, userID string) (Subscription, error) {
	ps := b.rdb.Subscribe(ctx, Channel(userID))
	// wait for the subscription confirmation so no publish is missed afterwards
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", Channel(userID), err)
	}

	sub := &redisSub{ps: ps, ch: make(chan Event, subscriptionBuffer), done: make(chan struct{})}
	go func() {
		defer close(sub.ch)
		msgs := ps.Channel()
		for {
			select {
			case <-sub.done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.Warnf("discarding malformed event on %s: %v", msg.Channel, err)
					continue
				}
				select {
				case sub.ch <- ev:
				case <-sub.done:
					return
				}
			}
		}
	}()
	return sub, nil
}

// Close is a no-op; the redis client is owned by the caller.
func (b *RedisBroker) Close() error { return nil }
