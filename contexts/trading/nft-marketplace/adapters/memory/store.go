package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	application "nftmarket/contexts/trading/nft-marketplace/application"
	"nftmarket/contexts/trading/nft-marketplace/domain/entities"
	domainerrors "nftmarket/contexts/trading/nft-marketplace/domain/errors"
	"nftmarket/contexts/trading/nft-marketplace/domain/services"
	"nftmarket/contexts/trading/nft-marketplace/ports"
)

// Store is an in-memory adapter implementing the listing store, proceeds
// ledger, payout queue and outbox ports for local runtime and tests.
type Store struct {
	mu          sync.RWMutex
	listings    map[entities.ListingKey]entities.Listing
	proceeds    map[common.Address]uint256.Int
	payouts     map[string]entities.PendingPayout
	payoutOrder []string
	outbox      map[string]ports.OutboxMessage
	outboxOrder []string
	outboxSent  map[string]time.Time
	sequence    uint64
	logger      *slog.Logger
}

func NewStore(logger *slog.Logger) *Store {
	return &Store{
		listings:    make(map[entities.ListingKey]entities.Listing),
		proceeds:    make(map[common.Address]uint256.Int),
		payouts:     make(map[string]entities.PendingPayout),
		payoutOrder: make([]string, 0),
		outbox:      make(map[string]ports.OutboxMessage),
		outboxOrder: make([]string, 0),
		outboxSent:  make(map[string]time.Time),
		logger:      application.ResolveLogger(logger),
	}
}

func (s *Store) GetListing(_ context.Context, key entities.ListingKey) (entities.Listing, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	listing, ok := s.listings[key]
	if !ok || !listing.IsActive() {
		return entities.Listing{}, false, nil
	}
	return listing, true, nil
}

func (s *Store) PutListing(_ context.Context, key entities.ListingKey, listing entities.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !listing.IsActive() {
		delete(s.listings, key)
		return nil
	}
	s.listings[key] = listing
	return nil
}

func (s *Store) RemoveListing(_ context.Context, key entities.ListingKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.listings, key)
	return nil
}

func (s *Store) Credit(_ context.Context, seller common.Address, amount uint256.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.proceeds[seller]
	next, err := services.CheckedAdd(&current, &amount)
	if err != nil {
		return err
	}
	s.proceeds[seller] = next
	return nil
}

func (s *Store) Balance(_ context.Context, seller common.Address) (uint256.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.proceeds[seller], nil
}

func (s *Store) Clear(_ context.Context, seller common.Address) (uint256.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.proceeds[seller]
	if current.IsZero() {
		return uint256.Int{}, domainerrors.ErrNoProceeds
	}
	delete(s.proceeds, seller)

	s.logger.Debug("proceeds cleared in memory store",
		"event", "memory_clear_proceeds",
		"module", "trading/nft-marketplace",
		"layer", "adapter",
		"seller", seller.Hex(),
		"amount", current.Dec(),
	)
	return current, nil
}

func (s *Store) Reverse(_ context.Context, seller common.Address, amount uint256.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.proceeds[seller]
	if current.Lt(&amount) {
		return domainerrors.ErrReconciliationRequired
	}
	current.Sub(&current, &amount)
	if current.IsZero() {
		delete(s.proceeds, seller)
		return nil
	}
	s.proceeds[seller] = current
	return nil
}

func (s *Store) EnqueuePayout(_ context.Context, payout entities.PendingPayout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payouts[payout.PayoutID]; exists {
		return fmt.Errorf("payout %s already queued", payout.PayoutID)
	}
	payout.CreatedAt = payout.CreatedAt.UTC()
	payout.UpdatedAt = payout.UpdatedAt.UTC()
	s.payouts[payout.PayoutID] = payout
	s.payoutOrder = append(s.payoutOrder, payout.PayoutID)
	return nil
}

func (s *Store) ListPendingPayouts(_ context.Context, limit int) ([]entities.PendingPayout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]entities.PendingPayout, 0, limit)
	for _, id := range s.payoutOrder {
		payout := s.payouts[id]
		if payout.Status != entities.PayoutStatusPending {
			continue
		}
		items = append(items, payout)
		if len(items) >= limit {
			break
		}
	}
	return items, nil
}

func (s *Store) ListPayoutsByRecipient(_ context.Context, recipient common.Address) ([]entities.PendingPayout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.PendingPayout, 0)
	for _, id := range s.payoutOrder {
		if payout := s.payouts[id]; payout.Recipient == recipient {
			items = append(items, payout)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) MarkPayoutPaid(_ context.Context, payoutID string, paidAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payout, ok := s.payouts[payoutID]
	if !ok {
		return domainerrors.ErrPayoutNotFound
	}
	payout.Status = entities.PayoutStatusPaid
	payout.Attempts++
	payout.LastError = ""
	payout.UpdatedAt = paidAt.UTC()
	s.payouts[payoutID] = payout
	return nil
}

func (s *Store) RecordPayoutFailure(_ context.Context, payoutID string, reason string, failedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payout, ok := s.payouts[payoutID]
	if !ok {
		return domainerrors.ErrPayoutNotFound
	}
	payout.Attempts++
	payout.LastError = reason
	payout.UpdatedAt = failedAt.UTC()
	s.payouts[payoutID] = payout
	return nil
}

func (s *Store) MarkPayoutExhausted(_ context.Context, payoutID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payout, ok := s.payouts[payoutID]
	if !ok {
		return domainerrors.ErrPayoutNotFound
	}
	payout.Status = entities.PayoutStatusExhausted
	payout.UpdatedAt = at.UTC()
	s.payouts[payoutID] = payout
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.outbox[envelope.EventID]; exists {
		return nil
	}
	s.outbox[envelope.EventID] = ports.OutboxMessage{
		OutboxID:     envelope.EventID,
		EventType:    envelope.EventType,
		PartitionKey: envelope.PartitionKey,
		Payload:      payload,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	s.outboxOrder = append(s.outboxOrder, envelope.EventID)
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	messages := make([]ports.OutboxMessage, 0, limit)
	for _, id := range s.outboxOrder {
		if _, sent := s.outboxSent[id]; sent {
			continue
		}
		if msg, ok := s.outbox[id]; ok {
			messages = append(messages, msg)
		}
		if len(messages) >= limit {
			break
		}
	}
	return messages, nil
}

func (s *Store) MarkOutboxSent(_ context.Context, outboxID string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.outbox[outboxID]; !ok {
		return fmt.Errorf("outbox message %s not found", outboxID)
	}
	s.outboxSent[outboxID] = sentAt.UTC()
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	value := atomic.AddUint64(&s.sequence, 1)
	return fmt.Sprintf("nftm-%d", value), nil
}

func (s *Store) OutboxEvents() []ports.OutboxMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]ports.OutboxMessage, 0, len(s.outboxOrder))
	for _, id := range s.outboxOrder {
		if evt, ok := s.outbox[id]; ok {
			events = append(events, evt)
		}
	}
	return events
}
