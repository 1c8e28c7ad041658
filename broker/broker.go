package broker

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mbocsi/kiosk/proto"
)

// TopicAll subscribes a channel to every topic.
const TopicAll = "*"

type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan proto.Event]struct{} // Map topic to hashset of Event channels

	dropped atomic.Uint64
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan proto.Event]struct{}),
	}
}

func (b *Broker) Subscribe(topic string, ch chan proto.Event) {
	slog.Debug("Subscribing", "topic", topic)
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[chan proto.Event]struct{})
	}
	b.subs[topic][ch] = struct{}{}
}

// Publish never blocks: subscribers with a full buffer miss the event.
func (b *Broker) Publish(evt proto.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	deliver := func(subs map[chan proto.Event]struct{}) {
		for ch := range subs {
			select {
			case ch <- evt:
				delivered++
			default:
				b.dropped.Add(1)
				slog.Warn("Dropped event (subscriber buffer full)", "topic", evt.Topic)
			}
		}
	}
	deliver(b.subs[evt.Topic])
	if evt.Topic != TopicAll {
		deliver(b.subs[TopicAll])
	}

	slog.Debug("Event published", "topic", evt.Topic, "subscribers", delivered, "size", len(evt.Payload))
}

// PublishPayload marshals payload and publishes it on topic.
func (b *Broker) PublishPayload(topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	b.Publish(proto.Event{Topic: topic, Payload: data, Timestamp: time.Now().Unix()})
	return nil
}

func (b *Broker) Unsubscribe(topic string, ch chan proto.Event) {
	slog.Debug("Unsubscribing", "topic", topic)
	b.mu.Lock()
	defer b.mu.Unlock()

	if subs, ok := b.subs[topic]; ok {
		if _, exists := subs[ch]; exists {
			delete(subs, ch)
		} else {
			slog.Warn("Did not find channel in topic subs", "topic", topic)
		}
		if len(subs) == 0 {
			delete(b.subs, topic)
		}
	}
}

// Subscribers returns the number of channels subscribed to topic.
func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

func (b *Broker) Dropped() uint64 {
	return b.dropped.Load()
}
