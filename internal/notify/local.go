package notify

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

const subscriptionBuffer = 32

// LocalBroker is an in-process Broker for single-instance deployments.
type LocalBroker struct {
	mu     sync.RWMutex
	subs   map[string]map[*localSub]struct{}
	logger *logrus.Logger
}

func NewLocalBroker(logger *logrus.Logger) *LocalBroker {
	return &LocalBroker{subs: make(map[string]map[*localSub]struct{}), logger: logger}
}

type localSub struct {
	broker *LocalBroker
	userID string
	ch     chan Event
	once   sync.Once
}

func (s *localSub) Events() <-chan Event { return s.ch }

func (s *localSub) Close() error {
	s.once.Do(func() {
		s.broker.mu.Lock()
		if set, ok := s.broker.subs[s.userID]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(s.broker.subs, s.userID)
			}
		}
		s.broker.mu.Unlock()
		close(s.ch)
	})
	return nil
}

func (b *LocalBroker) Subscribe(_ context.Context, userID string) (Subscription, error) {
	sub := &localSub{broker: b, userID: userID, ch: make(chan Event, subscriptionBuffer)}
	b.mu.Lock()
	set, ok := b.subs[userID]
	if !ok {
		set = make(map[*localSub]struct{})
		b.subs[userID] = set
	}
	set[sub] = struct{}{}
	b.mu.Unlock()
	return sub, nil
}

// Publish never blocks; a subscriber with a full buffer misses the event.
func (b *LocalBroker) Publish(_ context.Context, userID string, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[userID] {
		select {
		case sub.ch <- ev:
		default:
			b.logger.WithFields(logrus.Fields{"user": userID, "type": ev.Type}).Warn("dropping notification for slow subscriber")
		}
	}
	return nil
}

// Subscribers returns the number of open subscriptions for userID.
func (b *LocalBroker) Subscribers(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[userID])
}

func (b *LocalBroker) Close() error {
	b.mu.Lock()
	var all []*localSub
	for _, set := range b.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	b.mu.Unlock()
	for _, sub := range all {
		sub.Close()
	}
	return nil
}
