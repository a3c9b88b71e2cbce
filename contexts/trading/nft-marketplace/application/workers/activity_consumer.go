package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	application "nftmarket/contexts/trading/nft-marketplace/application"
	"nftmarket/contexts/trading/nft-marketplace/domain/entities"
	"nftmarket/contexts/trading/nft-marketplace/ports"
)

const (
	defaultActivityConsumerGroup = "nft-marketplace-activity-cg"
	defaultActivityReplayWindow  = 1024
)

// ActivityConsumer reads marketplace envelopes back off the bus and hands the
// decoded events to Sink. The relay delivers at least once, so event ids seen
// within the replay window are skipped.
type ActivityConsumer struct {
	Subscriber    ports.EventSubscriber
	ConsumerGroup string
	ReplayWindow  int
	Sink          func(context.Context, entities.MarketEvent) error
	Logger        *slog.Logger

	seen *replayWindow
}

func (c *ActivityConsumer) Start(ctx context.Context) error {
	group := c.ConsumerGroup
	if group == "" {
		group = defaultActivityConsumerGroup
	}
	size := c.ReplayWindow
	if size <= 0 {
		size = defaultActivityReplayWindow
	}
	c.seen = newReplayWindow(size)

	for _, kind := range []entities.EventKind{
		entities.EventItemListed,
		entities.EventItemCanceled,
		entities.EventItemBought,
	} {
		if err := c.Subscriber.Subscribe(ctx, string(kind), group, c.handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", kind, err)
		}
	}
	return nil
}

func (c *ActivityConsumer) handle(ctx context.Context, envelope ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)
	if !c.seen.add(envelope.EventID) {
		logger.Debug("marketplace event already processed",
			"event", "nft_marketplace_activity_replayed",
			"module", "trading/nft-marketplace",
			"layer", "worker",
			"event_id", envelope.EventID,
		)
		return nil
	}

	event, err := application.FromEnvelope(envelope)
	if err != nil {
		return fmt.Errorf("decode marketplace event %s: %w", envelope.EventID, err)
	}

	logger.Info("marketplace activity",
		"event", "nft_marketplace_activity",
		"module", "trading/nft-marketplace",
		"layer", "worker",
		"event_id", event.EventID,
		"kind", string(event.Kind),
		"account", event.Account.Hex(),
		"asset", event.Asset.Hex(),
		"item_id", event.ItemID.Dec(),
		"price", event.Price.Dec(),
	)
	if c.Sink == nil {
		return nil
	}
	return c.Sink(ctx, event)
}

type replayWindow struct {
	mu    sync.Mutex
	size  int
	order []string
	ids   map[string]struct{}
}

func newReplayWindow(size int) *replayWindow {
	return &replayWindow{size: size, ids: make(map[string]struct{}, size)}
}

// add reports false when id is already inside the window.
func (w *replayWindow) add(id string) bool {
	if id == "" {
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.ids[id]; ok {
		return false
	}
	if len(w.order) == w.size {
		delete(w.ids, w.order[0])
		w.order = w.order[1:]
	}
	w.order = append(w.order, id)
	w.ids[id] = struct{}{}
	return true
}
