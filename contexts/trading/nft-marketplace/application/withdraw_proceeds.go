package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"nftmarket/contexts/trading/nft-marketplace/domain/entities"
	domainerrors "nftmarket/contexts/trading/nft-marketplace/domain/errors"
)

type WithdrawProceedsCommand struct {
	Caller common.Address
}

// TransferFailedError is returned by WithdrawProceeds when Send fails.
// Restored reports that the amount went back to the ledger; otherwise
// PayoutID names the queued payout that will settle it.
type TransferFailedError struct {
	Amount   uint256.Int
	PayoutID string
	Restored bool
	Err      error
}

func (e *TransferFailedError) Error() string {
	switch {
	case e.Restored:
		return fmt.Sprintf("send %s: proceeds restored: %v", e.Amount.Dec(), e.Err)
	case e.PayoutID != "":
		return fmt.Sprintf("send %s: queued as payout %s: %v", e.Amount.Dec(), e.PayoutID, e.Err)
	default:
		return fmt.Sprintf("send %s: %v", e.Amount.Dec(), e.Err)
	}
}

func (e *TransferFailedError) Unwrap() []error {
	return []error{domainerrors.ErrTransferFailed, e.Err}
}

// WithdrawProceeds zeroes the caller's balance and then sends it. The
// balance is cleared before Send so a reentrant withdrawal sees
// ErrNoProceeds.
func (e *Engine) WithdrawProceeds(ctx context.Context, cmd WithdrawProceedsCommand) (uint256.Int, error) {
	started := time.Now()

	amount, err := e.withdrawProceeds(ctx, cmd)
	e.observe("withdraw_proceeds", err, started)
	if err != nil {
		e.logRejection("withdraw_proceeds", err, "caller", cmd.Caller.Hex())
		return uint256.Int{}, err
	}

	e.logger().Info("proceeds withdrawn",
		"event", "nft_marketplace_proceeds_withdrawn",
		"module", moduleName,
		"layer", "application",
		"seller", cmd.Caller.Hex(),
		"amount", amount.Dec(),
	)
	return amount, nil
}

func (e *Engine) withdrawProceeds(ctx context.Context, cmd WithdrawProceedsCommand) (uint256.Int, error) {
	amount, err := e.clearProceeds(ctx, cmd.Caller)
	if err != nil {
		return uint256.Int{}, err
	}

	if err := e.deps.Funds.Send(ctx, cmd.Caller, amount); err != nil {
		return uint256.Int{}, e.recoverWithdrawal(ctx, cmd.Caller, amount, err)
	}
	return amount, nil
}

func (e *Engine) clearProceeds(ctx context.Context, seller common.Address) (uint256.Int, error) {
	release := e.lockBalance(seller)
	defer release()

	amount, err := e.deps.Proceeds.Clear(ctx, seller)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNoProceeds) {
			return uint256.Int{}, domainerrors.ErrNoProceeds
		}
		return uint256.Int{}, wrapStoreErr("clear proceeds of", seller, err)
	}
	return amount, nil
}

// recoverWithdrawal applies the configured failure policy to cleared
// proceeds whose Send failed.
func (e *Engine) recoverWithdrawal(ctx context.Context, seller common.Address, amount uint256.Int, cause error) error {
	failure := &TransferFailedError{Amount: amount, Err: cause}

	if e.deps.WithdrawPolicy == entities.WithdrawFailureRestore {
		release := e.lockBalance(seller)
		defer release()
		if err := e.deps.Proceeds.Credit(ctx, seller, amount); err != nil {
			e.logReconciliation(seller, amount, "", err)
			failure.Err = errors.Join(cause, domainerrors.ErrReconciliationRequired, err)
			return failure
		}
		failure.Restored = true
		return failure
	}

	if e.deps.Payouts == nil {
		e.logReconciliation(seller, amount, "", errors.New("payout queue is not configured"))
		failure.Err = errors.Join(cause, domainerrors.ErrReconciliationRequired)
		return failure
	}

	payoutID, err := e.newID(ctx)
	if err != nil {
		e.logReconciliation(seller, amount, "", err)
		failure.Err = errors.Join(cause, domainerrors.ErrReconciliationRequired, err)
		return failure
	}
	now := e.now()
	payout := entities.PendingPayout{
		PayoutID:  payoutID,
		Recipient: seller,
		Amount:    amount,
		Status:    entities.PayoutStatusPending,
		Attempts:  1,
		LastError: cause.Error(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.deps.Payouts.EnqueuePayout(ctx, payout); err != nil {
		e.logReconciliation(seller, amount, payoutID, err)
		failure.Err = errors.Join(cause, domainerrors.ErrReconciliationRequired, err)
		return failure
	}
	failure.PayoutID = payoutID
	return failure
}

func (e *Engine) logReconciliation(seller common.Address, amount uint256.Int, payoutID string, err error) {
	e.logger().Error("withdrawal needs manual reconciliation",
		"event", "nft_marketplace_reconciliation_required",
		"module", moduleName,
		"layer", "application",
		"seller", seller.Hex(),
		"amount", amount.Dec(),
		"payout_id", payoutID,
		"error", err.Error(),
	)
}

func (e *Engine) newID(ctx context.Context) (string, error) {
	if e.deps.IDGen == nil {
		return "", errors.New("id generator is not configured")
	}
	return e.deps.IDGen.NewID(ctx)
}
