package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/go-redis/redis/v8"

	"bookletku/internal/platform"
)

const FEED_BUFFER = 16

type feedSubscription struct {
	pubsub *redis.PubSub
	events chan platform.ChangeEvent
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// Subscribe listens for row changes on the given tables. Events are delivered
// in publish order; a reader that falls behind by more than FEED_BUFFER
// events loses the oldest pending notification, never the newest.
func (b *Backend) Subscribe(ctx context.Context, tables ...string) (platform.Subscription, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("subscribe: no tables given")
	}
	channels := make([]string, len(tables))
	for i, t := range tables {
		channels[i] = FEED_CHANNEL_PREFIX + t
	}

	pubsub := b.redis.Subscribe(ctx, channels...)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe to %v: %w", channels, err)
	}

	sub := &feedSubscription{
		pubsub: pubsub,
		events: make(chan platform.ChangeEvent, FEED_BUFFER),
		done:   make(chan struct{}),
	}
	sub.wg.Add(1)
	go sub.run()
	return sub, nil
}

func (s *feedSubscription) run() {
	defer s.wg.Done()
	defer close(s.events)

	for msg := range s.pubsub.Channel() {
		var ev platform.ChangeEvent
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			log.Printf("backend: bad change event on %s: %v", msg.Channel, err)
			continue
		}
		s.deliver(ev)
	}
}

func (s *feedSubscription) deliver(ev platform.ChangeEvent) {
	for {
		select {
		case <-s.done:
			return
		case s.events <- ev:
			return
		default:
		}
		// Drop the oldest pending event to make room.
		select {
		case <-s.events:
		default:
		}
	}
}

func (s *feedSubscription) Events() <-chan platform.ChangeEvent {
	return s.events
}

func (s *feedSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
		s.wg.Wait()
	})
	return err
}
