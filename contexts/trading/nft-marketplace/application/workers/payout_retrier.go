package workers

import (
	"context"
	"log/slog"
	"time"

	application "nftmarket/contexts/trading/nft-marketplace/application"
	"nftmarket/contexts/trading/nft-marketplace/domain/entities"
	"nftmarket/contexts/trading/nft-marketplace/ports"
)

// PayoutRetrier re-sends proceeds that were cleared from the ledger but whose
// withdrawal transfer failed. The ledger is never touched here: the balance
// was already zeroed when the payout was queued. With MaxAttempts set, a
// payout that uses up its attempts is marked exhausted and leaves the pending
// queue; zero retries forever.
type PayoutRetrier struct {
	Payouts     ports.PayoutQueue
	Funds       ports.FundTransfer
	Clock       ports.Clock
	BatchSize   int
	MaxAttempts int
	Logger      *slog.Logger
}

func (r PayoutRetrier) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 50
	}

	pending, err := r.Payouts.ListPendingPayouts(ctx, limit)
	if err != nil {
		logger.Error("pending payout listing failed",
			"event", "nft_marketplace_payout_list_failed",
			"module", "trading/nft-marketplace",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	paid := 0
	for _, payout := range pending {
		if r.exhausted(payout.Attempts) {
			if err := r.exhaust(ctx, logger, payout, payout.Attempts); err != nil {
				return err
			}
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		sendErr := r.Funds.Send(ctx, payout.Recipient, payout.Amount)
		now := r.now()
		if sendErr != nil {
			logger.Warn("payout retry failed",
				"event", "nft_marketplace_payout_retry_failed",
				"module", "trading/nft-marketplace",
				"layer", "worker",
				"payout_id", payout.PayoutID,
				"recipient", payout.Recipient.Hex(),
				"attempts", payout.Attempts+1,
				"error", sendErr.Error(),
			)
			if err := r.Payouts.RecordPayoutFailure(ctx, payout.PayoutID, sendErr.Error(), now); err != nil {
				return err
			}
			if r.exhausted(payout.Attempts + 1) {
				if err := r.exhaust(ctx, logger, payout, payout.Attempts+1); err != nil {
					return err
				}
			}
			continue
		}
		if err := r.Payouts.MarkPayoutPaid(ctx, payout.PayoutID, now); err != nil {
			logger.Error("payout mark paid failed",
				"event", "nft_marketplace_payout_mark_paid_failed",
				"module", "trading/nft-marketplace",
				"layer", "worker",
				"payout_id", payout.PayoutID,
				"error", err.Error(),
			)
			return err
		}
		paid++
	}

	if paid > 0 {
		logger.Info("payout retry cycle completed",
			"event", "nft_marketplace_payout_retry_completed",
			"module", "trading/nft-marketplace",
			"layer", "worker",
			"paid_count", paid,
			"pending_count", len(pending)-paid,
		)
	}
	return nil
}

func (r PayoutRetrier) exhausted(attempts int) bool {
	return r.MaxAttempts > 0 && attempts >= r.MaxAttempts
}

func (r PayoutRetrier) exhaust(ctx context.Context, logger *slog.Logger, payout entities.PendingPayout, attempts int) error {
	if err := r.Payouts.MarkPayoutExhausted(ctx, payout.PayoutID, r.now()); err != nil {
		return err
	}
	logger.Error("payout retries exhausted",
		"event", "nft_marketplace_reconciliation_required",
		"module", "trading/nft-marketplace",
		"layer", "worker",
		"payout_id", payout.PayoutID,
		"recipient", payout.Recipient.Hex(),
		"amount", payout.Amount.Dec(),
		"attempts", attempts,
		"last_error", payout.LastError,
	)
	return nil
}

func (r PayoutRetrier) now() time.Time {
	if r.Clock == nil {
		return time.Now().UTC()
	}
	return r.Clock.Now().UTC()
}
