package application

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"nftmarket/contexts/trading/nft-marketplace/domain/entities"
)

// ListingView is the read model of one listing slot. An absent listing is
// reported as the zero listing with Listed=false.
type ListingView struct {
	Asset  common.Address
	ItemID uint256.Int
	Seller common.Address
	Price  uint256.Int
	Listed bool
}

func (e *Engine) GetListing(ctx context.Context, asset common.Address, itemID uint256.Int) (ListingView, error) {
	key := entities.NewListingKey(asset, &itemID)
	view := ListingView{Asset: asset, ItemID: itemID}

	listing, found, err := e.deps.Listings.GetListing(ctx, key)
	if err != nil {
		return ListingView{}, wrapStoreErr("load listing", key, err)
	}
	if !found || !listing.IsActive() {
		return view, nil
	}
	view.Seller = listing.Seller
	view.Price = listing.Price
	view.Listed = true
	return view, nil
}

func (e *Engine) GetProceeds(ctx context.Context, seller common.Address) (uint256.Int, error) {
	balance, err := e.deps.Proceeds.Balance(ctx, seller)
	if err != nil {
		return uint256.Int{}, wrapStoreErr("load proceeds of", seller, err)
	}
	return balance, nil
}

// ListPayouts returns the queued payouts of recipient, newest first.
func (e *Engine) ListPayouts(ctx context.Context, recipient common.Address) ([]entities.PendingPayout, error) {
	if e.deps.Payouts == nil {
		return []entities.PendingPayout{}, nil
	}
	items, err := e.deps.Payouts.ListPayoutsByRecipient(ctx, recipient)
	if err != nil {
		return nil, wrapStoreErr("list payouts of", recipient, err)
	}
	return items, nil
}
