package ros

import (
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/atomic"

	"go.viam.com/xdwa/logging"
)

// Handler receives a published message.
type Handler func(msg interface{})

type subscription struct {
	id      uint64
	handler Handler
}

// BusStats counts bus traffic.
type BusStats struct {
	Published uint64
	Delivered uint64
	Dropped   uint64
}

// Bus is an in-process topic bus. Publish delivers synchronously, on the publisher's goroutine, to
// every subscriber of the topic in subscription order.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	nextID uint64
	logger logging.Logger

	published atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewBus returns an empty bus.
func NewBus(logger logging.Logger) *Bus {
	return &Bus{subs: map[string][]subscription{}, logger: logger}
}

// Subscribe registers handler on topic and returns a function that removes it.
func (b *Bus) Subscribe(topic string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			remaining := slices.DeleteFunc(slices.Clone(b.subs[topic]), func(s subscription) bool { return s.id == id })
			if len(remaining) == 0 {
				delete(b.subs, topic)
				return
			}
			b.subs[topic] = remaining
		})
	}
}

// Publish delivers msg to the current subscribers of topic.
func (b *Bus) Publish(topic string, msg interface{}) {
	b.mu.RLock()
	subs := b.subs[topic]
	b.mu.RUnlock()

	b.published.Inc()
	if len(subs) == 0 {
		b.dropped.Inc()
		return
	}
	for _, s := range subs {
		s.handler(msg)
		b.delivered.Inc()
	}
}

// Topics lists topics with at least one subscriber, sorted.
func (b *Bus) Topics() []string {
	b.mu.RLock()
	topics := lo.Keys(b.subs)
	b.mu.RUnlock()
	slices.Sort(topics)
	return topics
}

// Stats returns the traffic counters.
func (b *Bus) Stats() BusStats {
	return BusStats{
		Published: b.published.Load(),
		Delivered: b.delivered.Load(),
		Dropped:   b.dropped.Load(),
	}
}

// Subscribe registers a handler for messages of type T on topic. Messages of other types are
// logged and skipped.
func Subscribe[T any](b *Bus, topic string, handler func(T)) (unsubscribe func()) {
	return b.Subscribe(topic, func(msg interface{}) {
		typed, ok := msg.(T)
		if !ok {
			if b.logger != nil {
				b.logger.Warnw("unexpected message type", "topic", topic, "type", fmt.Sprintf("%T", msg))
			}
			return
		}
		handler(typed)
	})
}
