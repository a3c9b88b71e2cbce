package messaging

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"nftmarket/contexts/trading/nft-marketplace/ports"
)

var ErrBusClosed = errors.New("event bus is closed")

const subscriberBuffer = 128

// Kafka is the event bus used by the outbox relay. Delivery is in-process
// publish/subscribe keyed by topic; Brokers is kept for when an external
// cluster replaces it.
type Kafka struct {
	Brokers []string

	mu          sync.RWMutex
	closed      bool
	subscribers map[string][]chan ports.EventEnvelope
	onDrop      func(topic string)
	logger      *slog.Logger
	wg          sync.WaitGroup
}

func NewKafka(brokers []string, logger *slog.Logger) (*Kafka, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return &Kafka{
		Brokers:     append([]string(nil), brokers...),
		subscribers: make(map[string][]chan ports.EventEnvelope),
		logger:      logger,
	}, nil
}

// OnDrop registers a callback for events skipped because a consumer was full.
func (k *Kafka) OnDrop(fn func(topic string)) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.onDrop = fn
}

// Publish never blocks on a subscriber, so the read lock is held across the
// sends and Close cannot close a channel mid-publish.
func (k *Kafka) Publish(ctx context.Context, topic string, event ports.EventEnvelope) error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return ErrBusClosed
	}
	subs := k.subscribers[topic]
	onDrop := k.onDrop

	for _, sub := range subs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sub <- event:
		default:
			if onDrop != nil {
				onDrop(topic)
			}
			k.logger.Warn("dropping event for slow subscriber",
				"event", "kafka_publish_drop",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"topic", topic,
				"event_id", event.EventID,
			)
		}
	}

	k.logger.Debug("event published",
		"event", "kafka_publish",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"topic", topic,
		"event_id", event.EventID,
		"partition_key", event.PartitionKey,
		"subscriber_count", len(subs),
	)
	return nil
}

// Subscribe starts a consumer goroutine that runs until ctx is done or the
// bus is closed.
func (k *Kafka) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	ch := make(chan ports.EventEnvelope, subscriberBuffer)

	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return ErrBusClosed
	}
	k.subscribers[topic] = append(k.subscribers[topic], ch)
	k.wg.Add(1)
	k.mu.Unlock()

	go func() {
		defer k.wg.Done()
		for {
			select {
			case <-ctx.Done():
				k.removeSubscriber(topic, ch)
				return
			case event, ok := <-ch:
				if !ok {
					return
				}
				if err := handler(ctx, event); err != nil {
					k.logger.Error("consumer handler failed",
						"event", "kafka_consume_failed",
						"module", "internal/platform/messaging",
						"layer", "platform",
						"topic", topic,
						"consumer_group", consumerGroup,
						"event_id", event.EventID,
						"event_type", event.EventType,
						"error", err.Error(),
					)
				}
			}
		}
	}()
	return nil
}

// Close stops every consumer and waits for in-flight handlers.
func (k *Kafka) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	for topic, subs := range k.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(k.subscribers, topic)
	}
	k.mu.Unlock()

	k.wg.Wait()
	return nil
}

func (k *Kafka) removeSubscriber(topic string, target chan ports.EventEnvelope) {
	k.mu.Lock()
	defer k.mu.Unlock()

	items := k.subscribers[topic]
	if len(items) == 0 {
		return
	}
	filtered := make([]chan ports.EventEnvelope, 0, len(items))
	for _, item := range items {
		if item != target {
			filtered = append(filtered, item)
		}
	}
	k.subscribers[topic] = filtered
}
