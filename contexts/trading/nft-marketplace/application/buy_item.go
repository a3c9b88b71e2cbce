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
	"nftmarket/contexts/trading/nft-marketplace/domain/services"
)

type BuyItemCommand struct {
	Caller  common.Address
	Asset   common.Address
	ItemID  uint256.Int
	Payment uint256.Int
}

// Purchase is the settled sale returned to the buyer.
type Purchase struct {
	Seller common.Address
	Buyer  common.Address
	Price  uint256.Int
	// Excess is payment above price. It is accepted and not refunded.
	Excess uint256.Int
}

// BuyItem settles a purchase. The listing is removed and the seller credited
// before the registry transfer; if the transfer fails both writes are undone.
func (e *Engine) BuyItem(ctx context.Context, cmd BuyItemCommand) (Purchase, error) {
	started := time.Now()
	key := entities.NewListingKey(cmd.Asset, &cmd.ItemID)

	purchase, err := e.buyItem(ctx, key, cmd)
	e.observe("buy_item", err, started)
	if err != nil {
		e.logRejection("buy_item", err,
			"listing_key", key.String(),
			"caller", cmd.Caller.Hex(),
			"payment", cmd.Payment.Dec(),
		)
		return Purchase{}, err
	}

	fields := []any{
		"event", "nft_marketplace_item_bought",
		"module", moduleName,
		"layer", "application",
		"listing_key", key.String(),
		"seller", purchase.Seller.Hex(),
		"buyer", purchase.Buyer.Hex(),
		"price", purchase.Price.Dec(),
	}
	if !purchase.Excess.IsZero() {
		fields = append(fields, "excess", purchase.Excess.Dec())
	}
	e.logger().Info("item bought", fields...)
	return purchase, nil
}

func (e *Engine) buyItem(ctx context.Context, key entities.ListingKey, cmd BuyItemCommand) (Purchase, error) {
	listing, err := e.reserveSale(ctx, key, cmd)
	if err != nil {
		return Purchase{}, err
	}

	// Locks are released here. A reentrant call from the registry sees the
	// listing gone and the seller already credited.
	if err := e.deps.Registry.Transfer(ctx, cmd.Asset, cmd.ItemID, listing.Seller, cmd.Caller); err != nil {
		return Purchase{}, e.rollbackSale(ctx, key, listing, err)
	}

	e.emit(ctx, entities.MarketEvent{
		Kind:    entities.EventItemBought,
		Account: cmd.Caller,
		Asset:   key.Asset,
		ItemID:  key.ItemID,
		Price:   listing.Price,
	})

	purchase := Purchase{Seller: listing.Seller, Buyer: cmd.Caller, Price: listing.Price}
	purchase.Excess.Sub(&cmd.Payment, &listing.Price)
	return purchase, nil
}

// reserveSale validates the purchase and commits the ledger side under the
// listing and seller balance locks.
func (e *Engine) reserveSale(ctx context.Context, key entities.ListingKey, cmd BuyItemCommand) (entities.Listing, error) {
	releaseListing := e.lockListing(key)
	defer releaseListing()

	listing, found, err := e.deps.Listings.GetListing(ctx, key)
	if err != nil {
		return entities.Listing{}, wrapStoreErr("load listing", key, err)
	}
	if err := services.EvaluatePurchase(listing, found, &cmd.Payment); err != nil {
		return entities.Listing{}, err
	}

	releaseBalance := e.lockBalance(listing.Seller)
	defer releaseBalance()

	balance, err := e.deps.Proceeds.Balance(ctx, listing.Seller)
	if err != nil {
		return entities.Listing{}, wrapStoreErr("load proceeds of", listing.Seller, err)
	}
	if _, err := services.CheckedAdd(&balance, &listing.Price); err != nil {
		return entities.Listing{}, err
	}

	if err := e.deps.Listings.RemoveListing(ctx, key); err != nil {
		return entities.Listing{}, wrapStoreErr("remove listing", key, err)
	}
	if err := e.deps.Proceeds.Credit(ctx, listing.Seller, listing.Price); err != nil {
		if restoreErr := e.deps.Listings.PutListing(ctx, key, listing); restoreErr != nil {
			return entities.Listing{}, errors.Join(
				wrapStoreErr("credit proceeds of", listing.Seller, err),
				wrapStoreErr("restore listing", key, restoreErr),
				domainerrors.ErrReconciliationRequired,
			)
		}
		return entities.Listing{}, wrapStoreErr("credit proceeds of", listing.Seller, err)
	}
	return listing, nil
}

// rollbackSale undoes reserveSale after a failed registry transfer. The credit
// is reversed first; the listing comes back only when the reversal succeeded
// and nobody relisted the key in the meantime. A seller who already withdrew
// the credit leaves the listing removed so the item cannot be sold again.
func (e *Engine) rollbackSale(ctx context.Context, key entities.ListingKey, listing entities.Listing, cause error) error {
	releaseListing := e.lockListing(key)
	defer releaseListing()

	failure := fmt.Errorf("transfer %s to buyer: %w", key, errors.Join(domainerrors.ErrTransferFailed, cause))

	releaseBalance := e.lockBalance(listing.Seller)
	reverseErr := e.deps.Proceeds.Reverse(ctx, listing.Seller, listing.Price)
	releaseBalance()

	var problems []error
	if reverseErr != nil {
		problems = append(problems, wrapStoreErr("reverse proceeds of", listing.Seller, reverseErr))
	} else {
		current, found, err := e.deps.Listings.GetListing(ctx, key)
		switch {
		case err != nil:
			problems = append(problems, wrapStoreErr("load listing", key, err))
		case !found || !current.IsActive():
			if err := e.deps.Listings.PutListing(ctx, key, listing); err != nil {
				problems = append(problems, wrapStoreErr("restore listing", key, err))
			}
		}
	}

	if len(problems) == 0 {
		return failure
	}

	joined := errors.Join(problems...)
	e.logger().Error("sale rollback incomplete",
		"event", "nft_marketplace_reconciliation_required",
		"module", moduleName,
		"layer", "application",
		"listing_key", key.String(),
		"seller", listing.Seller.Hex(),
		"price", listing.Price.Dec(),
		"listing_restored", reverseErr == nil,
		"error", joined.Error(),
	)
	if !errors.Is(joined, domainerrors.ErrReconciliationRequired) {
		joined = errors.Join(joined, domainerrors.ErrReconciliationRequired)
	}
	return errors.Join(failure, joined)
}
