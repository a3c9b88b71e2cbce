package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"nftmarket/contexts/trading/nft-marketplace/domain/entities"
	domainerrors "nftmarket/contexts/trading/nft-marketplace/domain/errors"
	"nftmarket/contexts/trading/nft-marketplace/ports"
)

const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

type Dependencies struct {
	Listings ports.ListingStore
	Proceeds ports.ProceedsLedger
	Registry ports.AssetRegistry
	Funds    ports.FundTransfer
	Payouts  ports.PayoutQueue
	Notifier *Notifier
	Observer ports.OperationObserver
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	// Operator is the marketplace address that must be approved to move items.
	Operator       common.Address
	WithdrawPolicy entities.WithdrawFailurePolicy
	Logger         *slog.Logger
}

// Engine orchestrates list/cancel/update/buy/withdraw.
//
// Every operation holds the lock of the listing key it touches and then the
// lock of the seller balance it touches, in that order. Locks cover
// validation and all ledger writes and are released before Transfer or Send
// is called, so a callback that re-enters the engine sees final state.
type Engine struct {
	deps         Dependencies
	listingLocks *keyedLocks
	balanceLocks *keyedLocks
}

func NewEngine(deps Dependencies) *Engine {
	if !deps.WithdrawPolicy.Valid() {
		deps.WithdrawPolicy = entities.WithdrawFailureReconcile
	}
	return &Engine{
		deps:         deps,
		listingLocks: newKeyedLocks(),
		balanceLocks: newKeyedLocks(),
	}
}

func (e *Engine) lockListing(key entities.ListingKey) func() {
	return e.listingLocks.Lock(key.String())
}

func (e *Engine) lockBalance(account common.Address) func() {
	return e.balanceLocks.Lock(account.Hex())
}

func (e *Engine) logger() *slog.Logger {
	return ResolveLogger(e.deps.Logger)
}

func (e *Engine) now() time.Time {
	if e.deps.Clock == nil {
		return time.Now().UTC()
	}
	return e.deps.Clock.Now().UTC()
}

func (e *Engine) observe(operation string, err error, started time.Time) {
	if e.deps.Observer == nil {
		return
	}
	e.deps.Observer.ObserveOperation(operation, outcomeOf(err), time.Since(started))
}

// emit publishes a state change. The operation has already committed, so a
// notifier failure is logged and never turned into an operation error.
func (e *Engine) emit(ctx context.Context, event entities.MarketEvent) {
	if e.deps.Notifier == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.now()
	}
	if err := e.deps.Notifier.Emit(ctx, event); err != nil {
		e.logger().Error("market event emission failed",
			"event", "nft_marketplace_emit_failed",
			"module", moduleName,
			"layer", "application",
			"event_kind", event.Kind,
			"listing_key", event.Key().String(),
			"error", err.Error(),
		)
	}
}

// logRejection logs domain rejections at warn and infrastructure failures at
// error level.
func (e *Engine) logRejection(operation string, err error, attrs ...any) {
	fields := append([]any{
		"event", "nft_marketplace_" + operation + "_failed",
		"module", moduleName,
		"layer", "application",
		"error", err.Error(),
	}, attrs...)
	if isDomainError(err) {
		e.logger().Warn(operation+" rejected", fields...)
		return
	}
	e.logger().Error(operation+" failed", fields...)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case isDomainError(err):
		return outcomeRejected
	default:
		return outcomeError
	}
}

func isDomainError(err error) bool {
	for _, target := range []error{
		domainerrors.ErrPriceMustBeAboveZero,
		domainerrors.ErrAlreadyListed,
		domainerrors.ErrNotListed,
		domainerrors.ErrNotOwner,
		domainerrors.ErrNotApprovedForMarketplace,
		domainerrors.ErrPriceNotMet,
		domainerrors.ErrNoProceeds,
		domainerrors.ErrTransferFailed,
		domainerrors.ErrOverflow,
		domainerrors.ErrInvalidRequest,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func wrapStoreErr(action string, key fmt.Stringer, err error) error {
	return fmt.Errorf("%s %s: %w", action, key, err)
}
