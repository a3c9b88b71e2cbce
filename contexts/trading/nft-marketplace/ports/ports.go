package ports

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"nftmarket/contexts/trading/nft-marketplace/domain/entities"
	contractsv1 "nftmarket/contracts/gen/events/v1"
)

// ListingStore is plain keyed storage for active listings. Validation lives
// in the engine; a stored zero-price listing reads back as absent.
type ListingStore interface {
	GetListing(ctx context.Context, key entities.ListingKey) (entities.Listing, bool, error)
	PutListing(ctx context.Context, key entities.ListingKey, listing entities.Listing) error
	// RemoveListing is idempotent.
	RemoveListing(ctx context.Context, key entities.ListingKey) error
}

// ProceedsLedger tracks accrued, withdrawable balances per seller.
type ProceedsLedger interface {
	// Credit fails with ErrOverflow and leaves the balance untouched.
	Credit(ctx context.Context, seller common.Address, amount uint256.Int) error
	Balance(ctx context.Context, seller common.Address) (uint256.Int, error)
	// Clear returns the prior balance and resets it, or fails with ErrNoProceeds.
	Clear(ctx context.Context, seller common.Address) (uint256.Int, error)
	// Reverse undoes a credit whose sale did not settle. It fails with
	// ErrReconciliationRequired when the balance no longer covers amount.
	Reverse(ctx context.Context, seller common.Address, amount uint256.Int) error
}

// AssetRegistry is the external ownership/approval oracle.
type AssetRegistry interface {
	OwnerOf(ctx context.Context, asset common.Address, itemID uint256.Int) (common.Address, error)
	// IsApprovedOrOperator reports whether operator may move the item, either
	// through a per-item approval or a blanket operator approval by the owner.
	IsApprovedOrOperator(ctx context.Context, asset common.Address, itemID uint256.Int, operator common.Address) (bool, error)
	Transfer(ctx context.Context, asset common.Address, itemID uint256.Int, from common.Address, to common.Address) error
}

// FundTransfer moves withdrawn proceeds to their recipient.
type FundTransfer interface {
	Send(ctx context.Context, to common.Address, amount uint256.Int) error
}

// PayoutQueue stores cleared proceeds whose transfer failed.
type PayoutQueue interface {
	EnqueuePayout(ctx context.Context, payout entities.PendingPayout) error
	ListPendingPayouts(ctx context.Context, limit int) ([]entities.PendingPayout, error)
	ListPayoutsByRecipient(ctx context.Context, recipient common.Address) ([]entities.PendingPayout, error)
	MarkPayoutPaid(ctx context.Context, payoutID string, paidAt time.Time) error
	RecordPayoutFailure(ctx context.Context, payoutID string, reason string, failedAt time.Time) error
	MarkPayoutExhausted(ctx context.Context, payoutID string, at time.Time) error
}

// OperationObserver receives one sample per engine operation.
type OperationObserver interface {
	ObserveOperation(operation string, outcome string, elapsed time.Duration)
	ObserveDroppedEvent(kind entities.EventKind)
}

// Clock allows deterministic testing of timestamps.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts event/payout identifier generation.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// EventEnvelope reuses the canonical cross-runtime envelope contract.
type EventEnvelope = contractsv1.Envelope

// OutboxWriter persists envelopes for later relay to the bus.
type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

// OutboxMessage is a row ready to relay from the module outbox.
type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// OutboxRepository models worker-side outbox polling/acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error
}

// EventPublisher publishes canonical envelopes to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

// EventSubscriber registers a topic consumer callback.
type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}
