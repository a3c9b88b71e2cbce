package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"nftmarket/contexts/trading/nft-marketplace/domain/entities"
	"nftmarket/contexts/trading/nft-marketplace/ports"
	contractsv1 "nftmarket/contracts/gen/events/v1"
)

const (
	sourceService    = "nft-marketplace"
	schemaVersion    = 1
	partitionKeyPath = "listing_key"
	defaultBuffer    = 64
)

// Notifier fans market events out to in-process subscribers and appends them
// to the outbox for the relay. Delivery to a subscriber never blocks: when
// its buffer is full the event is dropped for that subscriber only.
type Notifier struct {
	Outbox   ports.OutboxWriter
	IDGen    ports.IDGenerator
	Clock    ports.Clock
	Observer ports.OperationObserver
	Logger   *slog.Logger

	mu          sync.RWMutex
	nextID      int
	subscribers map[int]chan entities.MarketEvent
}

// Subscribe registers a buffered channel. The returned cancel func
// unregisters and closes it.
func (n *Notifier) Subscribe(buffer int) (<-chan entities.MarketEvent, func()) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	ch := make(chan entities.MarketEvent, buffer)

	n.mu.Lock()
	if n.subscribers == nil {
		n.subscribers = make(map[int]chan entities.MarketEvent)
	}
	id := n.nextID
	n.nextID++
	n.subscribers[id] = ch
	n.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subscribers, id)
			n.mu.Unlock()
			close(ch)
		})
	}
}

// Emit stamps the event, persists its envelope and delivers it. Subscribers
// receive the event even when the outbox write fails; the error is returned
// so the caller can log it.
func (n *Notifier) Emit(ctx context.Context, event entities.MarketEvent) error {
	var errs []error
	if event.EventID == "" && n.IDGen != nil {
		id, err := n.IDGen.NewID(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("generate event id: %w", err))
		} else {
			event.EventID = id
		}
	}
	if event.OccurredAt.IsZero() && n.Clock != nil {
		event.OccurredAt = n.Clock.Now().UTC()
	}

	if n.Outbox != nil && event.EventID != "" {
		envelope, err := toEnvelope(event)
		if err != nil {
			errs = append(errs, err)
		} else if err := n.Outbox.AppendOutbox(ctx, envelope); err != nil {
			errs = append(errs, fmt.Errorf("append outbox: %w", err))
		}
	}

	n.fanOut(event)
	return errors.Join(errs...)
}

func (n *Notifier) fanOut(event entities.MarketEvent) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for id, ch := range n.subscribers {
		select {
		case ch <- event:
		default:
			if n.Observer != nil {
				n.Observer.ObserveDroppedEvent(event.Kind)
			}
			ResolveLogger(n.Logger).Warn("slow subscriber skipped",
				"event", "nft_marketplace_event_dropped",
				"module", moduleName,
				"layer", "application",
				"subscriber", id,
				"event_kind", event.Kind,
				"event_id", event.EventID,
			)
		}
	}
}

func toEnvelope(event entities.MarketEvent) (ports.EventEnvelope, error) {
	data := contractsv1.MarketItemData{
		Asset:  event.Asset.Hex(),
		ItemID: event.ItemID.Dec(),
	}
	switch event.Kind {
	case entities.EventItemBought:
		data.Buyer = event.Account.Hex()
	default:
		data.Seller = event.Account.Hex()
	}
	if !event.Price.IsZero() {
		data.Price = event.Price.Dec()
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, fmt.Errorf("encode %s payload: %w", event.Kind, err)
	}
	return ports.EventEnvelope{
		EventID:          event.EventID,
		EventType:        string(event.Kind),
		OccurredAt:       event.OccurredAt,
		SourceService:    sourceService,
		SchemaVersion:    schemaVersion,
		PartitionKeyPath: partitionKeyPath,
		PartitionKey:     event.Key().String(),
		Data:             payload,
	}, nil
}

// FromEnvelope decodes a relayed envelope back into a market event.
func FromEnvelope(envelope ports.EventEnvelope) (entities.MarketEvent, error) {
	var data contractsv1.MarketItemData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return entities.MarketEvent{}, fmt.Errorf("decode %s payload: %w", envelope.EventType, err)
	}
	event := entities.MarketEvent{
		EventID:    envelope.EventID,
		Kind:       entities.EventKind(envelope.EventType),
		Asset:      common.HexToAddress(data.Asset),
		OccurredAt: envelope.OccurredAt,
	}
	if err := event.ItemID.SetFromDecimal(data.ItemID); err != nil {
		return entities.MarketEvent{}, fmt.Errorf("decode item id %q: %w", data.ItemID, err)
	}
	if data.Price != "" {
		if err := event.Price.SetFromDecimal(data.Price); err != nil {
			return entities.MarketEvent{}, fmt.Errorf("decode price %q: %w", data.Price, err)
		}
	}
	if data.Buyer != "" {
		event.Account = common.HexToAddress(data.Buyer)
	} else {
		event.Account = common.HexToAddress(data.Seller)
	}
	return event, nil
}
